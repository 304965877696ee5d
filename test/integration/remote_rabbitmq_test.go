package integration

import (
	"context"
	"testing"
	"time"

	hub "github.com/northseadl/eventhub"
)

func TestRabbitRemote_EndToEnd(t *testing.T) {
	uri := requireEnv(t, "EH_RABBITMQ_URI")
	ex := requireEnv(t, "EH_RABBITMQ_EXCHANGE")
	cfg := hub.Config{Remote: hub.RemoteConfig{Provider: hub.RemoteProviderRabbitMQ, RabbitMQ: hub.RabbitMQConfig{URI: uri, Exchange: ex}, Group: "it-g1"}}
	ctx := context.Background()
	cli, err := hub.New(ctx, cfg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer cli.Close(ctx)

	recv := make(chan []any, 10)
	_, err = cli.Bus().On(hub.K("it.rabbit.basic"), func(ctx context.Context, args ...any) (any, error) {
		recv <- args
		return nil, nil
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := cli.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	// 等待队列绑定完成后再发布
	time.Sleep(300 * time.Millisecond)

	if err := cli.Remote().Emit(ctx, "it.rabbit.basic", "hi"); err != nil {
		t.Fatalf("emit: %v", err)
	}

	select {
	case args := <-recv:
		if len(args) != 1 || args[0] != "hi" {
			t.Fatalf("unexpected args: %v", args)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timeout waiting for relayed emission")
	}
}

func TestRabbitRemote_TTLAcrossRelay(t *testing.T) {
	uri := requireEnv(t, "EH_RABBITMQ_URI")
	ex := requireEnv(t, "EH_RABBITMQ_EXCHANGE")
	cfg := hub.Config{Remote: hub.RemoteConfig{Provider: hub.RemoteProviderRabbitMQ, RabbitMQ: hub.RabbitMQConfig{URI: uri, Exchange: ex}, Group: "it-g2"}}
	ctx := context.Background()
	cli, err := hub.New(ctx, cfg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer cli.Close(ctx)

	recv := make(chan struct{}, 10)
	_, err = cli.Bus().On(hub.K("it.rabbit.ttl"), func(ctx context.Context, args ...any) (any, error) {
		recv <- struct{}{}
		return nil, nil
	}, hub.WithTTL(2))
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := cli.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	time.Sleep(300 * time.Millisecond)

	for i := 0; i < 3; i++ {
		if err := cli.Remote().Emit(ctx, "it.rabbit.ttl"); err != nil {
			t.Fatalf("emit: %v", err)
		}
	}

	got := 0
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) && got < 2 {
		select {
		case <-recv:
			got++
		case <-time.After(100 * time.Millisecond):
		}
	}
	time.Sleep(500 * time.Millisecond)
	select {
	case <-recv:
		got++
	default:
	}
	if got != 2 {
		t.Fatalf("expected 2 invocations, got %d", got)
	}
}

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	eventhub "github.com/northseadl/eventhub"
)

func main() {
	ctx := context.Background()

	cfg := eventhub.Config{}
	if addr := os.Getenv("EH_REDIS_ADDR"); addr != "" {
		cfg.Remote.Provider = eventhub.RemoteProviderRedis
		cfg.Remote.Redis.Addr = addr
		fmt.Println("[Remote] 使用 Redis Streams:", addr)
	} else if uri := os.Getenv("EH_RABBITMQ_URI"); uri != "" {
		cfg.Remote.Provider = eventhub.RemoteProviderRabbitMQ
		cfg.Remote.RabbitMQ.URI = uri
		cfg.Remote.RabbitMQ.Exchange = os.Getenv("EH_RABBITMQ_EXCHANGE")
		fmt.Println("[Remote] 使用 RabbitMQ:", uri)
	} else {
		fmt.Println("[Remote] 未配置 broker，使用 Noop（仅演示 API，不会实际路由）")
	}

	cli, err := eventhub.New(ctx, cfg)
	if err != nil {
		panic(err)
	}
	defer func() { _ = cli.Close(ctx) }()

	_, _ = cli.Bus().On(eventhub.K("demo.topic"), func(ctx context.Context, args ...any) (any, error) {
		fmt.Println("[Remote] 收到转发发射:", args)
		return nil, nil
	})

	if err := cli.Start(ctx); err != nil {
		panic(err)
	}

	// broker 发射：经外部队列绕回本地总线
	if err := cli.Remote().Emit(ctx, "demo.topic", "hello", 42); err != nil {
		panic(err)
	}

	time.Sleep(2 * time.Second)
	fmt.Println("[Remote] 结束")
}

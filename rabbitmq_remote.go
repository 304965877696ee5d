package eventhub

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// rabbitRemote 基于 topic exchange 转发发射：事件键作为 routing key，
// 消费队列以 "#" 绑定接收全部发射。消息按 at-most-once 投递给本地总线
// （处理失败记录日志后 ACK，避免毒消息循环）。

type rabbitRemote struct {
	cfg    RabbitMQConfig
	logger Logger

	conn   *amqp.Connection
	connMu sync.Mutex
}

func newRabbitRemote(cfg RabbitMQConfig, logger Logger) (Remote, error) {
	if cfg.URI == "" || cfg.Exchange == "" {
		return nil, fmt.Errorf("rabbitmq config invalid")
	}
	r := &rabbitRemote{cfg: cfg, logger: logger}
	if err := r.ensureConnection(); err != nil {
		return nil, err
	}
	if err := r.declareTopology(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *rabbitRemote) ensureConnection() error {
	r.connMu.Lock()
	defer r.connMu.Unlock()
	if r.conn != nil && !r.conn.IsClosed() {
		return nil
	}
	conn, err := amqp.Dial(r.cfg.URI)
	if err != nil {
		return err
	}
	r.conn = conn
	return nil
}

func (r *rabbitRemote) declareTopology() error {
	ch, err := r.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()
	r.logger.Info(context.Background(), "declare exchange", "exchange", r.cfg.Exchange)
	return ch.ExchangeDeclare(r.cfg.Exchange, "topic", true, false, false, false, nil)
}

func (r *rabbitRemote) Publish(ctx context.Context, env Envelope) error {
	if err := r.ensureConnection(); err != nil {
		return fmt.Errorf("rabbitmq connection failed: %w", err)
	}
	ch, err := r.conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq channel creation failed: %w", err)
	}
	defer ch.Close()

	err = ch.PublishWithContext(ctx, r.cfg.Exchange, env.Key, false, false, amqp.Publishing{
		ContentType: "application/json",
		Timestamp:   time.Now(),
		Headers:     stringMapToTable(env.Headers),
		Body:        env.Args,
	})
	if err != nil {
		return fmt.Errorf("rabbitmq publish failed (key=%s): %w", env.Key, err)
	}
	return nil
}

func (r *rabbitRemote) Listen(ctx context.Context, group string, fn func(context.Context, Envelope) error) (func(context.Context) error, error) {
	if err := r.ensureConnection(); err != nil {
		return nil, err
	}
	if group == "" {
		group = "default"
	}
	ch, err := r.conn.Channel()
	if err != nil {
		return nil, err
	}
	// 注意：channel 关闭在 stop 时处理
	if r.cfg.Prefetch > 0 {
		_ = ch.Qos(r.cfg.Prefetch, 0, false)
	}
	qName := fmt.Sprintf("eventhub-%s", sanitizeQueueName(group))
	q, err := ch.QueueDeclare(qName, true, false, false, false, amqp.Table{})
	if err != nil {
		ch.Close()
		return nil, err
	}
	r.logger.Info(ctx, "queue bind", "queue", q.Name, "exchange", r.cfg.Exchange, "binding_key", "#")
	if err := ch.QueueBind(q.Name, "#", r.cfg.Exchange, false, nil); err != nil {
		ch.Close()
		return nil, err
	}
	msgs, err := ch.Consume(q.Name, "", false, false, false, false, nil)
	if err != nil {
		ch.Close()
		return nil, err
	}

	closeChan := ch.NotifyClose(make(chan *amqp.Error, 1))

	done := make(chan struct{})
	go func() {
		defer close(done)
		concurrency := r.cfg.ConsumerConcurrency
		if concurrency <= 0 {
			concurrency = 1
		}
		wg := &sync.WaitGroup{}
		sem := make(chan struct{}, concurrency)
		for {
			select {
			case <-ctx.Done():
				wg.Wait()
				return
			case err := <-closeChan:
				if err != nil {
					r.logger.Error(ctx, "rabbitmq channel closed by server", "queue", q.Name, "error", err.Error())
				}
				wg.Wait()
				return
			case d, ok := <-msgs:
				if !ok {
					wg.Wait()
					return
				}
				sem <- struct{}{}
				wg.Add(1)
				go func(del amqp.Delivery) {
					defer func() { <-sem; wg.Done() }()
					env := Envelope{Key: del.RoutingKey, Args: del.Body, Headers: tableToStringMap(del.Headers)}
					if err := fn(ctx, env); err != nil {
						r.logger.Error(ctx, "remote emission failed", "key", env.Key, "error", err)
					}
					_ = del.Ack(false)
				}(d)
			}
		}
	}()

	stop := func(sctx context.Context) error {
		if err := ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			return err
		}
		select {
		case <-done:
			return nil
		case <-sctx.Done():
			return sctx.Err()
		}
	}
	return stop, nil
}

func (r *rabbitRemote) Close(ctx context.Context) error {
	r.connMu.Lock()
	defer r.connMu.Unlock()
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

func stringMapToTable(m map[string]string) amqp.Table {
	if len(m) == 0 {
		return nil
	}
	t := amqp.Table{}
	for k, v := range m {
		t[k] = v
	}
	return t
}

func tableToStringMap(t amqp.Table) map[string]string {
	if len(t) == 0 {
		return nil
	}
	m := make(map[string]string, len(t))
	for k, v := range t {
		if s, ok := v.(string); ok {
			m[k] = s
		}
	}
	return m
}

func sanitizeQueueName(s string) string {
	forbidden := []rune{' ', '*', '#', '/'}
	out := []rune{}
	for _, r := range s {
		skip := false
		for _, f := range forbidden {
			if r == f {
				skip = true
				break
			}
		}
		if !skip {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return "q"
	}
	return string(out)
}

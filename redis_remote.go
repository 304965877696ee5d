package eventhub

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisRemote 基于单条 Redis Stream 转发发射；事件键作为消息字段携带，
// 消费组内按 ConsumerConcurrency 并发处理。

const redisEmissionStream = "eh:emissions"

type redisRemote struct {
	rdb    *redis.Client
	cfg    RedisConfig
	logger Logger

	wg sync.WaitGroup
}

func newRedisRemote(cfg RedisConfig, logger Logger) (Remote, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis addr empty")
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Addr, Username: cfg.Username, Password: cfg.Password, DB: cfg.DB})
	return &redisRemote{rdb: rdb, cfg: cfg, logger: logger}, nil
}

func (r *redisRemote) Publish(ctx context.Context, env Envelope) error {
	fields := map[string]any{
		"key":  env.Key,
		"args": base64.StdEncoding.EncodeToString(env.Args),
	}
	for k, v := range env.Headers {
		fields["h:"+k] = v
	}
	return r.rdb.XAdd(ctx, &redis.XAddArgs{Stream: redisEmissionStream, Values: fields}).Err()
}

func (r *redisRemote) Listen(ctx context.Context, group string, fn func(context.Context, Envelope) error) (func(context.Context) error, error) {
	if group == "" {
		group = "default"
	}
	// 确保 group 存在，使用 "0" 从头开始读取
	_ = r.rdb.XGroupCreateMkStream(ctx, redisEmissionStream, group, "0").Err()

	done := make(chan struct{})
	cctx, cancel := context.WithCancel(ctx)
	r.wg.Add(1)
	go func() {
		defer func() { r.wg.Done(); close(done) }()
		concurrency := r.cfg.ConsumerConcurrency
		if concurrency <= 0 {
			concurrency = 1
		}
		sem := make(chan struct{}, concurrency)
		for {
			select {
			case <-cctx.Done():
				return
			default:
			}
			res, err := r.rdb.XReadGroup(cctx, &redis.XReadGroupArgs{
				Group:    group,
				Consumer: fmt.Sprintf("%s-%d", group, time.Now().UnixNano()),
				Streams:  []string{redisEmissionStream, ">"},
				Count:    int64(concurrency),
				Block:    2 * time.Second,
			}).Result()
			if err == redis.Nil || (err != nil && cctx.Err() != nil) {
				continue
			}
			if err != nil {
				continue
			}
			for _, str := range res {
				for _, xmsg := range str.Messages {
					sem <- struct{}{}
					go func(m redis.XMessage) {
						defer func() { <-sem }()
						env := decodeXMessage(m)
						if err := fn(cctx, env); err != nil {
							r.logger.Error(cctx, "remote emission failed", "key", env.Key, "error", err)
						}
						_, _ = r.rdb.XAck(cctx, redisEmissionStream, group, m.ID).Result()
					}(xmsg)
				}
			}
		}
	}()
	stop := func(sctx context.Context) error {
		cancel()
		select {
		case <-done:
			return nil
		case <-sctx.Done():
			return sctx.Err()
		}
	}
	return stop, nil
}

func (r *redisRemote) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() { r.wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-ctx.Done():
	}
	return r.rdb.Close()
}

func decodeXMessage(xm redis.XMessage) Envelope {
	env := Envelope{Headers: make(map[string]string)}
	for k, v := range xm.Values {
		switch k {
		case "key":
			env.Key, _ = v.(string)
		case "args":
			if s, ok := v.(string); ok {
				env.Args, _ = base64.StdEncoding.DecodeString(s)
			}
		default:
			if len(k) > 2 && k[:2] == "h:" {
				if s, ok := v.(string); ok {
					env.Headers[k[2:]] = s
				}
			}
		}
	}
	return env
}

package eventhub

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

// Client 对外统一入口，聚合 Bus/Remote/Cron。
// 通过 New 构造，按配置选择 broker 适配器与中间件。
// 所有方法要求调用方传递 context 控制超时/取消。
//
// 线程安全：实现需保障并发安全。

type Client interface {
	// Start 启动后台资源（remote 消费循环、cron 调度器）。
	Start(ctx context.Context) error
	// Close 优雅关闭：停止 cron 与 remote 消费，drain 引擎在途任务，遵循 ctx 超时。
	Close(ctx context.Context) error

	// Bus 暴露进程内事件总线。
	Bus() *Bus
	// Remote 暴露 broker 转发发射器。
	Remote() *RemoteEmitter
	// Cron 暴露定时发射调度。
	Cron() Cron
}

// New 创建 Client 实例。
func New(ctx context.Context, cfg Config, opts ...Option) (Client, error) {
	c := &client{cfg: cfg}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = newDefaultLogger(cfg.Logger.Level)
	}

	// 幂等中间件集成（可选启用）：提供 KV 或 Redis 参数即开启
	var emws []EmitMiddleware
	if cfg.Idempotency.KV != nil || cfg.Idempotency.RedisAddr != "" {
		idemCfg := cfg.Idempotency
		// 如果未提供 KV 尝试用 Redis 参数构建
		if idemCfg.KV == nil && idemCfg.RedisAddr != "" {
			idemCfg.KV = RedisKV{R: redis.NewClient(&redis.Options{Addr: idemCfg.RedisAddr, Username: idemCfg.RedisUsername, Password: idemCfg.RedisPassword, DB: idemCfg.RedisDB})}
		}
		emws = append(emws, NewIdempotencyMiddleware(idemCfg))
	}

	c.bus = NewBus(
		WithBusLogger(c.logger),
		WithWorkers(cfg.Engine.Workers),
		WithEmitMiddleware(emws...),
	)

	// 根据 Provider 装配 Remote
	switch cfg.Remote.Provider {
	case RemoteProviderRabbitMQ:
		rm, err := newRabbitRemote(cfg.Remote.RabbitMQ, c.logger)
		if err != nil {
			return nil, err
		}
		c.remote = rm
	case RemoteProviderRedis:
		rm, err := newRedisRemote(cfg.Remote.Redis, c.logger)
		if err != nil {
			return nil, err
		}
		c.remote = rm
	default:
		c.remote = newNoopRemote()
	}
	c.emitter = &RemoteEmitter{remote: c.remote, logger: c.logger}
	c.cron = newCron(c.bus, cfg.Cron, c.logger)
	return c, nil
}

type client struct {
	cfg    Config
	logger Logger

	bus     *Bus
	remote  Remote
	emitter *RemoteEmitter
	cron    Cron

	stopListen func(context.Context) error
}

func (c *client) Start(ctx context.Context) error {
	if _, ok := c.remote.(noopRemote); !ok {
		group := c.cfg.Remote.Group
		if group == "" {
			group = "default"
		}
		// broker 消费侧：Envelope 还原为本地发射
		stop, err := c.remote.Listen(ctx, group, func(ctx context.Context, env Envelope) error {
			var args []any
			if len(env.Args) > 0 {
				if err := json.Unmarshal(env.Args, &args); err != nil {
					return err
				}
			}
			return c.bus.Emit(ctx, env.Key, args...)
		})
		if err != nil {
			return err
		}
		c.stopListen = stop
	}
	return c.cron.Start(ctx)
}

func (c *client) Close(ctx context.Context) error {
	_ = c.cron.Stop(ctx)
	if c.stopListen != nil {
		_ = c.stopListen(ctx)
	}
	_ = c.remote.Close(ctx)
	return c.bus.Close(ctx)
}

func (c *client) Bus() *Bus              { return c.bus }
func (c *client) Remote() *RemoteEmitter { return c.emitter }
func (c *client) Cron() Cron             { return c.cron }

// Option 允许注入替换默认行为（如 Logger）。
type Option func(*client)

// WithLogger 注入自定义日志实现。
func WithLogger(l Logger) Option {
	return func(c *client) {
		if l != nil {
			c.logger = l
		}
	}
}

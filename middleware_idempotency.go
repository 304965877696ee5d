package eventhub

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"time"
)

// KV 是幂等中间件依赖的最小键值接口，便于单元测试注入 mock。
type KV interface {
	SetNX(ctx context.Context, key string, value string, ttl time.Duration) (bool, error)
}

// IdempotencyConfig 配置发射去重中间件。
// Key 计算顺序：优先 KeyFunc；否则以事件键 + 参数指纹计算。
// 最终存储 key 为 Prefix + ":" + sha1(keyRaw)。
type IdempotencyConfig struct {
	KV KV // 可选：键值存储（生产用 RedisKV），若为 nil 且提供 Redis* 参数则自动创建

	// 可选 Redis 连接参数（若 KV 为空则使用这些参数自动启用）
	RedisAddr     string
	RedisUsername string
	RedisPassword string
	RedisDB       int

	Prefix string        // key 前缀，如 "eh:idem"
	TTL    time.Duration // 幂等键过期时间
	// KeyFunc 可选：自定义业务唯一键；返回空串表示本次发射不做去重。
	KeyFunc func(ctx context.Context, key Key, args []any) (string, error)
}

// NewIdempotencyMiddleware 生成发射去重 EmitMiddleware：
// 同一业务键在 TTL 窗口内的重复发射被整体跳过（不调度任何订阅者）。
func NewIdempotencyMiddleware(cfg IdempotencyConfig) EmitMiddleware {
	if cfg.KV == nil {
		panic("IdempotencyMiddleware requires KV")
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "eh:idem"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	return func(next EmitHandler) EmitHandler {
		return func(ctx context.Context, key Key, args []any) error {
			var keyRaw string
			if cfg.KeyFunc != nil {
				s, err := cfg.KeyFunc(ctx, key, args)
				if err != nil {
					return err
				}
				keyRaw = s
			} else {
				keyRaw = fmt.Sprintf("%s|%v", key.String(), args)
			}
			if keyRaw == "" {
				return next(ctx, key, args)
			}
			// sha1 规整 key
			h := sha1.Sum([]byte(keyRaw))
			storeKey := fmt.Sprintf("%s:%s", prefix, hex.EncodeToString(h[:]))
			ok, err := cfg.KV.SetNX(ctx, storeKey, "1", cfg.TTL)
			if err != nil {
				return err
			}
			if !ok {
				return nil // 已处理，直接跳过
			}
			return next(ctx, key, args)
		}
	}
}

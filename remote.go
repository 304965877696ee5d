package eventhub

import (
	"context"
	"encoding/json"
	"fmt"
)

// Envelope 跨进程发射信封：仅支持字面量键（类型标识不可跨进程），
// 参数为 JSON 数组编码。
type Envelope struct {
	Key     string
	Args    []byte
	Headers map[string]string
}

// Remote 将发射转发到外部 broker；消费侧还原为本地发射。
// 完成语义与 Emitter 对齐：处理失败由消费回调上抛（本地重发射），取消静默丢弃。
// 注意：Bus.WaitForDrain 不覆盖 broker 侧的在途消息，跨进程执行无法观察静默。
type Remote interface {
	Publish(ctx context.Context, env Envelope) error
	Listen(ctx context.Context, group string, fn func(context.Context, Envelope) error) (stop func(context.Context) error, err error)
	Close(ctx context.Context) error
}

// RemoteEmitter 提供与本地 Emit 相同的调用面，把发射交给 broker。
type RemoteEmitter struct {
	remote Remote
	logger Logger
}

// Emit 序列化参数并发布到 broker；仅接受非空字面量键。
func (r *RemoteEmitter) Emit(ctx context.Context, key string, args ...any) error {
	if key == "" {
		return ErrNilEvent
	}
	var body []byte
	if len(args) > 0 {
		b, err := json.Marshal(args)
		if err != nil {
			return fmt.Errorf("marshal args: %w", err)
		}
		body = b
	}
	return r.remote.Publish(ctx, Envelope{Key: key, Args: body})
}

// ---- no-op 实现 ----

type noopRemote struct{}

func newNoopRemote() Remote { return noopRemote{} }

func (noopRemote) Publish(ctx context.Context, env Envelope) error { return nil }
func (noopRemote) Listen(ctx context.Context, group string, fn func(context.Context, Envelope) error) (func(context.Context) error, error) {
	return func(context.Context) error { return nil }, nil
}
func (noopRemote) Close(ctx context.Context) error { return nil }

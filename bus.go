package eventhub

import (
	"context"
	"errors"
)

var (
	// ErrNilCallback 事件回调为空。
	ErrNilCallback = errors.New("event callback nil")
	// ErrInvalidTTL TTL 非正数。
	ErrInvalidTTL = errors.New("ttl must be a positive integer")
	// ErrNilEvent 发射载荷或键无法解析。
	ErrNilEvent = errors.New("event key unresolvable")
	// ErrEngineClosed 引擎已关闭，拒绝新调度。
	ErrEngineClosed = errors.New("engine closed")
	// ErrNoKeys Subscribe 未提供任何键。
	ErrNoKeys = errors.New("subscribe requires at least one key")
)

// Bus 聚合注册表、派发器与执行引擎；每个实例状态独立，可并存多条总线。
type Bus struct {
	reg    *Registry
	disp   *Dispatcher
	eng    *Engine
	logger Logger
}

// BusOption 总线构造选项。
type BusOption func(*busOpts)

type busOpts struct {
	logger  Logger
	workers int
	dmws    []DispatchMiddleware
	emws    []EmitMiddleware
}

// WithBusLogger 注入日志实现。
func WithBusLogger(l Logger) BusOption {
	return func(o *busOpts) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithWorkers 设定 forceAsync 工作池大小（默认 16）。
func WithWorkers(n int) BusOption {
	return func(o *busOpts) { o.workers = n }
}

// WithDispatchMiddleware 追加订阅者派发中间件。
func WithDispatchMiddleware(mws ...DispatchMiddleware) BusOption {
	return func(o *busOpts) { o.dmws = append(o.dmws, mws...) }
}

// WithEmitMiddleware 追加发射入口中间件（如幂等去重）。
func WithEmitMiddleware(mws ...EmitMiddleware) BusOption {
	return func(o *busOpts) { o.emws = append(o.emws, mws...) }
}

// NewBus 创建独立事件总线。
func NewBus(opts ...BusOption) *Bus {
	o := &busOpts{}
	for _, fn := range opts {
		fn(o)
	}
	if o.logger == nil {
		o.logger = newDefaultLogger("")
	}
	reg := NewRegistry()
	eng := newEngine(o.workers, o.logger, o.dmws...)
	disp := newDispatcher(reg, eng, o.logger, o.emws...)
	eng.reemit = disp.Emit
	return &Bus{reg: reg, disp: disp, eng: eng, logger: o.logger}
}

// Subscribe 为一组键注册订阅者；回调为空、TTL 非正或键非法时同步报错。
func (b *Bus) Subscribe(keys []Key, cb EventCallback, opts ...SubscribeOption) (*Subscriber, error) {
	if len(keys) == 0 {
		return nil, ErrNoKeys
	}
	for _, k := range keys {
		if k.IsZero() {
			return nil, ErrNilEvent
		}
	}
	sub, err := newSubscriber(cb, opts...)
	if err != nil {
		return nil, err
	}
	sub.detach = b.reg.removeListener
	b.reg.insert(sub, keys...)
	return sub, nil
}

// On 为单个键注册订阅者。
func (b *Bus) On(key Key, cb EventCallback, opts ...SubscribeOption) (*Subscriber, error) {
	return b.Subscribe([]Key{key}, cb, opts...)
}

// Unsubscribe 注销订阅：不带键时整体 teardown（幂等，返回是否生效）；
// 带键时仅从指定键移除。
func (b *Bus) Unsubscribe(sub *Subscriber, keys ...Key) bool {
	if sub == nil {
		return false
	}
	if len(keys) == 0 {
		return sub.Teardown()
	}
	b.reg.remove(sub, keys...)
	return true
}

// Emit 发射事件或错误；发射为 fire-and-forget，仅调度失败同步返回。
func (b *Bus) Emit(ctx context.Context, ev any, args ...any) error {
	return b.disp.Emit(ctx, ev, args...)
}

// RemoveEvent 删除键的整个订阅条目，返回其是否存在。
func (b *Bus) RemoveEvent(key Key) bool { return b.reg.RemoveEvent(key) }

// RemoveAll 清空注册表。
func (b *Bus) RemoveAll() { b.reg.RemoveAll() }

// Events 返回当前存在订阅的全部键。
func (b *Bus) Events() []Key { return b.reg.Events() }

// Subscribers 返回键当前订阅者集合的快照。
func (b *Bus) Subscribers(key Key) []*Subscriber { return b.reg.Subscribers(key) }

// KeysOf 返回订阅者注册的全部键。
func (b *Bus) KeysOf(sub *Subscriber) []Key { return b.reg.KeysOf(sub) }

// InFlight 返回引擎当前在途任务数。
func (b *Bus) InFlight() int { return b.eng.InFlight() }

// WaitForDrain 阻塞直到引擎在途集合为空（含错误重发射传递产生的任务）。
func (b *Bus) WaitForDrain(ctx context.Context) error { return b.eng.WaitForDrain(ctx) }

// Close 拒绝后续发射调度并 drain 在途任务。
func (b *Bus) Close(ctx context.Context) error { return b.eng.Close(ctx) }

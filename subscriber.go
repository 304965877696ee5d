package eventhub

import (
	"context"
	"sync"
)

// EventCallback 事件回调；返回值交给成功回调，错误交给失败回调或引擎。
type EventCallback func(ctx context.Context, args ...any) (any, error)

// SuccessCallback 成功延续回调，接收事件回调的返回值。
type SuccessCallback func(ctx context.Context, result any)

// FailureCallback 失败延续回调，消费事件回调返回的错误。
type FailureCallback func(ctx context.Context, err error)

// ttlUnbounded 表示不限派发次数；0 表示额度已耗尽。
const ttlUnbounded = -1

// Subscriber 订阅者句柄：事件回调 + 可选延续回调 + once/TTL 生命周期策略。
// 由 Bus.Subscribe 构造；并发安全。
type Subscriber struct {
	event   EventCallback
	success SuccessCallback
	failure FailureCallback

	forceAsync bool
	once       bool

	mu     sync.Mutex
	ttl    int
	fired  bool // once 订阅是否已领取过派发
	active bool

	detach func(*Subscriber) // 由总线注入：从注册表的全部键移除
}

// SubscribeOption 订阅选项。
type SubscribeOption func(*subscribeOpts)

type subscribeOpts struct {
	success    SuccessCallback
	failure    FailureCallback
	forceAsync bool
	once       bool
	ttl        int
}

// WithSuccess 指定成功回调。
func WithSuccess(cb SuccessCallback) SubscribeOption {
	return func(o *subscribeOpts) { o.success = cb }
}

// WithFailure 指定失败回调；未设置时错误上抛给引擎并重新发射。
func WithFailure(cb FailureCallback) SubscribeOption {
	return func(o *subscribeOpts) { o.failure = cb }
}

// WithForceAsync 将回调放入引擎的有界工作池执行，避免长耗时同步回调无限占用调度单元。
func WithForceAsync() SubscribeOption {
	return func(o *subscribeOpts) { o.forceAsync = true }
}

// WithOnce 首次派发后自动注销（无论 TTL 配置如何）。
func WithOnce() SubscribeOption {
	return func(o *subscribeOpts) { o.once = true }
}

// WithTTL 限定派发次数；必须为正数，否则 Subscribe 报错。
func WithTTL(n int) SubscribeOption {
	return func(o *subscribeOpts) { o.ttl = n }
}

func newSubscriber(cb EventCallback, opts ...SubscribeOption) (*Subscriber, error) {
	if cb == nil {
		return nil, ErrNilCallback
	}
	o := &subscribeOpts{ttl: ttlUnbounded}
	for _, fn := range opts {
		fn(o)
	}
	if o.ttl != ttlUnbounded && o.ttl <= 0 {
		return nil, ErrInvalidTTL
	}
	return &Subscriber{
		event:      cb,
		success:    o.success,
		failure:    o.failure,
		forceAsync: o.forceAsync,
		once:       o.once,
		ttl:        o.ttl,
		active:     true,
	}, nil
}

// claim 领取一次派发额度：已耗尽返回 false，有界则扣减。
// once 订阅仅可领取一次，即使注销尚未完成时有并发发射命中快照。
func (s *Subscriber) claim() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.once && s.fired {
		return false
	}
	if s.ttl == 0 {
		return false
	}
	s.fired = true
	if s.ttl > 0 {
		s.ttl--
	}
	return true
}

// TTL 返回剩余派发次数；-1 表示不限。
func (s *Subscriber) TTL() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ttl
}

// Active 报告订阅是否仍有效（未执行 Teardown）。
func (s *Subscriber) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Teardown 从注册表移除自身；幂等，重复调用返回 false。
func (s *Subscriber) Teardown() bool {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return false
	}
	s.active = false
	detach := s.detach
	s.mu.Unlock()
	if detach != nil {
		detach(s)
	}
	return true
}

// invoke 执行单次派发：TTL 耗尽直接跳过（不触发任何回调）；
// 错误若无失败回调消费则返回给引擎；once 在派发后注销（含失败路径）。
// 成功/失败回调自身的 panic 不在此拦截。
func (s *Subscriber) invoke(ctx context.Context, args []any) error {
	if !s.claim() {
		return nil
	}
	if s.once {
		defer s.Teardown()
	}
	res, err := s.event(ctx, args...)
	if err != nil {
		if s.failure != nil {
			s.failure(ctx, err)
			return nil
		}
		return err
	}
	if s.success != nil {
		s.success(ctx, res)
	}
	return nil
}

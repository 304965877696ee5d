package eventhub

import (
	"context"
	"errors"
	"sync"
)

const defaultWorkers = 16

// Engine 异步执行引擎：每次订阅者派发对应一个在途任务，后台并发执行；
// 完成时未被消费的错误按运行时类型重新发射，取消静默丢弃。
// 在途任务集合是引擎唯一的共享可变状态。
type Engine struct {
	logger Logger
	pool   chan struct{} // forceAsync 工作池令牌

	// reemit 由总线装配为 Dispatcher.Emit，错误经此回到派发管线
	reemit func(ctx context.Context, ev any, args ...any) error
	chain  DispatchHandler

	mu     sync.Mutex
	tasks  map[*task]struct{}
	drain  chan struct{}
	closed bool
}

type task struct {
	sub  *Subscriber
	args []any
}

func newEngine(workers int, logger Logger, mws ...DispatchMiddleware) *Engine {
	if workers <= 0 {
		workers = defaultWorkers
	}
	e := &Engine{
		logger: logger,
		pool:   make(chan struct{}, workers),
		tasks:  make(map[*task]struct{}),
	}
	final := DispatchHandler(func(ctx context.Context, sub *Subscriber, args []any) error {
		return sub.invoke(ctx, args)
	})
	for i := len(mws) - 1; i >= 0; i-- {
		final = mws[i](final)
	}
	e.chain = final
	return e
}

// Schedule 将一次订阅者派发加入在途集合并在后台执行。
// 引擎关闭后同步返回 ErrEngineClosed；调度本身不阻塞。
func (e *Engine) Schedule(ctx context.Context, sub *Subscriber, args []any) error {
	t := &task{sub: sub, args: args}
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrEngineClosed
	}
	e.tasks[t] = struct{}{}
	e.mu.Unlock()
	go e.run(ctx, t)
	return nil
}

func (e *Engine) run(ctx context.Context, t *task) {
	if t.sub.forceAsync {
		e.pool <- struct{}{}
		defer func() { <-e.pool }()
	}
	err := e.chain(ctx, t.sub, t.args)
	e.complete(ctx, t, err)
}

// complete 每任务恰好执行一次。先转换未消费错误为新发射，再移除任务句柄，
// 保证在途集合在传递性工作仍未调度时不会瞬时为空。
func (e *Engine) complete(ctx context.Context, t *task, err error) {
	switch {
	case err == nil:
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		// 取消：静默丢弃，不重新发射
	default:
		if e.reemit != nil {
			if rerr := e.reemit(ctx, err); rerr != nil {
				e.logger.Error(ctx, "re-emit failed", "error", rerr)
			}
		}
	}
	e.mu.Lock()
	delete(e.tasks, t)
	if len(e.tasks) == 0 && e.drain != nil {
		close(e.drain)
		e.drain = nil
	}
	e.mu.Unlock()
}

// InFlight 返回当前在途任务数。
func (e *Engine) InFlight() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.tasks)
}

// WaitForDrain 阻塞直到在途集合为空，包含由错误重发射传递产生的任务；
// 可与进行中的发射并发调用。
func (e *Engine) WaitForDrain(ctx context.Context) error {
	for {
		e.mu.Lock()
		if len(e.tasks) == 0 {
			e.mu.Unlock()
			return nil
		}
		if e.drain == nil {
			e.drain = make(chan struct{})
		}
		ch := e.drain
		e.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close 拒绝后续调度并等待在途任务完成。
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	return e.WaitForDrain(ctx)
}

package eventhub

import (
	"context"
	"errors"
)

// Emitter 为执行后端契约：将单个订阅者派发调度为独立执行单元。
// 进程内由 Engine 实现；外部后端需满足相同的完成语义
// （未消费错误重新发射、取消静默丢弃）。
type Emitter interface {
	Schedule(ctx context.Context, sub *Subscriber, args []any) error
}

// Dispatcher 解析发射键，对注册表取快照并经 Emitter 调度匹配的订阅者。
type Dispatcher struct {
	reg    *Registry
	em     Emitter
	logger Logger
	handle EmitHandler
}

func newDispatcher(reg *Registry, em Emitter, logger Logger, mws ...EmitMiddleware) *Dispatcher {
	d := &Dispatcher{reg: reg, em: em, logger: logger}
	final := EmitHandler(d.dispatch)
	for i := len(mws) - 1; i >= 0; i-- {
		final = mws[i](final)
	}
	d.handle = final
	return d
}

// Emit 发射事件：字符串/Key 按字面量路由，其余载荷（含错误）按运行时类型路由
// 且载荷前置为首个参数。无订阅者时为 no-op。
// 仅阻塞到调度完成，不等待订阅者执行；调度失败同步返回。
func (d *Dispatcher) Emit(ctx context.Context, ev any, args ...any) error {
	key, callArgs, err := keyOf(ev, args)
	if err != nil {
		return err
	}
	return d.handle(ctx, key, callArgs)
}

// dispatch 对当前订阅者集合取快照后逐个调度；
// 回调内的订阅/退订不影响本次发射的在途集合。
func (d *Dispatcher) dispatch(ctx context.Context, key Key, args []any) error {
	subs := d.reg.Subscribers(key)
	if len(subs) == 0 {
		return nil
	}
	var errs []error
	for _, sub := range subs {
		if err := d.em.Schedule(ctx, sub, args); err != nil {
			d.logger.Error(ctx, "schedule failed", "key", key.String(), "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

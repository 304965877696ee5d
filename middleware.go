package eventhub

import "context"

// DispatchHandler 为单次订阅者派发的执行函数。
type DispatchHandler func(ctx context.Context, sub *Subscriber, args []any) error

// DispatchMiddleware 包装单个订阅者的派发执行，由引擎在回调外层应用。
type DispatchMiddleware func(next DispatchHandler) DispatchHandler

// EmitHandler 为一次发射（键已解析、载荷已前置）的处理函数。
type EmitHandler func(ctx context.Context, key Key, args []any) error

// EmitMiddleware 包装发射入口；错误重新发射同样经过该链。
type EmitMiddleware func(next EmitHandler) EmitHandler

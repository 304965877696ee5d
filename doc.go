package eventhub

// Package eventhub 提供进程内的发布订阅事件总线：订阅者可挂载成功/失败延续回调
// 与 once/TTL 生命周期策略，派发引擎在后台并发执行、跟踪在途任务并支持 drain 到静默；
// 未被消费的错误会按其运行时类型作为新事件重新发射。
// 通过可插拔的 Remote 适配器（RabbitMQ/Redis Streams）可将发射转发到外部 broker，
// 并内置发射去重中间件与定时发射调度。

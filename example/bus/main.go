package main

import (
	"context"
	"fmt"
	"time"

	eventhub "github.com/northseadl/eventhub"
)

type orderCreated struct {
	ID     string
	Amount int
}

type paymentDeclined struct{ Order string }

func (e *paymentDeclined) Error() string { return "payment declined: " + e.Order }

func main() {
	ctx := context.Background()
	bus := eventhub.NewBus()
	defer func() { _ = bus.Close(ctx) }()

	// 类型键订阅：载荷自动前置为首个参数
	_, _ = bus.On(eventhub.TypeOf[orderCreated](), func(ctx context.Context, args ...any) (any, error) {
		o := args[0].(orderCreated)
		fmt.Println("[Bus] 订单创建:", o.ID, o.Amount)
		if o.Amount > 100 {
			return nil, &paymentDeclined{Order: o.ID}
		}
		return "charged:" + o.ID, nil
	}, eventhub.WithSuccess(func(ctx context.Context, res any) {
		fmt.Println("[Bus] 扣款成功:", res)
	}))

	// 错误作为一等事件：未被消费的错误按运行时类型重新发射
	_, _ = bus.On(eventhub.TypeOf[*paymentDeclined](), func(ctx context.Context, args ...any) (any, error) {
		fmt.Println("[Bus] 观察到扣款失败:", args[0].(*paymentDeclined).Order)
		return nil, nil
	})

	// once + TTL 生命周期策略
	_, _ = bus.On(eventhub.K("audit"), func(ctx context.Context, args ...any) (any, error) {
		fmt.Println("[Bus] 首次审计:", args)
		return nil, nil
	}, eventhub.WithOnce())

	_ = bus.Emit(ctx, orderCreated{ID: "o-1", Amount: 50})
	_ = bus.Emit(ctx, orderCreated{ID: "o-2", Amount: 500})
	_ = bus.Emit(ctx, "audit", "first")
	_ = bus.Emit(ctx, "audit", "second") // once 已注销，不再触达

	dctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_ = bus.WaitForDrain(dctx)
	fmt.Println("[Bus] 在途任务已清空")
}

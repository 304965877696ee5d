package main

import (
	"context"
	"fmt"
	"time"

	eventhub "github.com/northseadl/eventhub"
)

func main() {
	ctx := context.Background()

	cli, err := eventhub.New(ctx, eventhub.Config{})
	if err != nil {
		panic(err)
	}
	defer func() { _ = cli.Close(ctx) }()

	count := 0
	_, _ = cli.Bus().On(eventhub.K("tick"), func(ctx context.Context, args ...any) (any, error) {
		count++
		fmt.Println("[Cron] tick", count)
		return nil, nil
	})

	// 每秒定时发射，运行约 3.5 秒后退出
	if _, err := cli.Cron().AddEmit("*/1 * * * * *", "tick-1s", "tick"); err != nil {
		panic(err)
	}

	_ = cli.Start(ctx)
	fmt.Println("[Cron] 已启动，本示例将运行约 3.5s...")
	time.Sleep(3500 * time.Millisecond)
}

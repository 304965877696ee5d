package eventhub

import (
	"context"
	"sync"
	"time"

	cronv3 "github.com/robfig/cron/v3"
)

// Cron 提供基于 Cron 表达式的定时发射调度。
type Cron interface {
	// Add 注册定时任务；name 为空时以 spec 作为 id。
	Add(spec string, name string, fn func(context.Context) error) (id string, err error)
	// AddEmit 注册定时发射：按表达式周期性向本地总线发射事件。
	AddEmit(spec string, name string, ev any, args ...any) (id string, err error)
	Remove(id string) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

type cronSvc struct {
	bus    *Bus
	cron   *cronv3.Cron
	logger Logger
	mu     sync.Mutex
	ids    map[string]cronv3.EntryID
}

func newCron(bus *Bus, cfg CronConfig, logger Logger) Cron {
	loc := time.Local
	if cfg.Timezone != "" {
		if l, err := time.LoadLocation(cfg.Timezone); err == nil {
			loc = l
		}
	}
	cr := cronv3.New(cronv3.WithSeconds(), cronv3.WithLocation(loc))
	return &cronSvc{bus: bus, cron: cr, logger: logger, ids: make(map[string]cronv3.EntryID)}
}

func (s *cronSvc) Add(spec string, name string, fn func(context.Context) error) (string, error) {
	if fn == nil {
		return "", nil
	}
	id, err := s.cron.AddFunc(spec, func() {
		ctx := context.Background()
		if err := fn(ctx); err != nil {
			s.logger.Error(ctx, "cron task failed", "name", name, "error", err)
		}
	})
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := name
	if key == "" {
		key = spec
	}
	s.ids[key] = id
	return key, nil
}

func (s *cronSvc) AddEmit(spec string, name string, ev any, args ...any) (string, error) {
	return s.Add(spec, name, func(ctx context.Context) error {
		return s.bus.Emit(ctx, ev, args...)
	})
}

func (s *cronSvc) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if eid, ok := s.ids[id]; ok {
		s.cron.Remove(eid)
		delete(s.ids, id)
	}
	return nil
}

func (s *cronSvc) Start(ctx context.Context) error { s.cron.Start(); return nil }

func (s *cronSvc) Stop(ctx context.Context) error { s.cron.Stop(); return nil }

package eventhub

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type paymentDeclined struct{ code int }

func (e *paymentDeclined) Error() string { return "payment declined" }

type orderCreated struct{ ID string }

func drain(t *testing.T, b *Bus) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, b.WaitForDrain(ctx))
}

func TestBus_TTLBounded(t *testing.T) {
	b := NewBus()
	defer b.Close(context.Background())

	var count atomic.Int64
	var mu sync.Mutex
	var got []any
	_, err := b.On(K("A"), func(ctx context.Context, args ...any) (any, error) {
		count.Add(1)
		mu.Lock()
		got = append(got, args[0])
		mu.Unlock()
		return nil, nil
	}, WithTTL(2))
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, b.Emit(ctx, "A", 1))
	}
	drain(t, b)

	assert.Equal(t, int64(2), count.Load())
	mu.Lock()
	defer mu.Unlock()
	for _, a := range got {
		assert.Equal(t, 1, a)
	}
}

func TestBus_TTLExhaustedStaysRegistered(t *testing.T) {
	b := NewBus()
	defer b.Close(context.Background())

	sub, err := b.On(K("A"), func(ctx context.Context, args ...any) (any, error) { return nil, nil }, WithTTL(1))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, b.Emit(ctx, "A"))
	drain(t, b)
	require.NoError(t, b.Emit(ctx, "A"))
	drain(t, b)

	assert.Equal(t, 0, sub.TTL())
	assert.True(t, sub.Active())
	assert.Contains(t, b.Subscribers(K("A")), sub)
}

func TestBus_Once(t *testing.T) {
	b := NewBus()
	defer b.Close(context.Background())

	var count atomic.Int64
	sub, err := b.On(K("A"), func(ctx context.Context, args ...any) (any, error) {
		count.Add(1)
		return nil, nil
	}, WithOnce())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, b.Emit(ctx, "A"))
	drain(t, b)
	assert.NotContains(t, b.Subscribers(K("A")), sub)
	assert.False(t, sub.Active())

	require.NoError(t, b.Emit(ctx, "A"))
	drain(t, b)
	assert.Equal(t, int64(1), count.Load())
}

func TestBus_EmitNoSubscribers(t *testing.T) {
	b := NewBus()
	defer b.Close(context.Background())

	require.NoError(t, b.Emit(context.Background(), "nobody.home", 42))
	drain(t, b)
	assert.Zero(t, b.InFlight())
}

func TestBus_SelfUnsubscribe(t *testing.T) {
	b := NewBus()
	defer b.Close(context.Background())

	var count atomic.Int64
	var sub *Subscriber
	sub, _ = b.On(K("A"), func(ctx context.Context, args ...any) (any, error) {
		count.Add(1)
		b.Unsubscribe(sub)
		return nil, nil
	})

	ctx := context.Background()
	require.NoError(t, b.Emit(ctx, "A"))
	drain(t, b)
	assert.Equal(t, int64(1), count.Load())
	assert.Empty(t, b.Subscribers(K("A")))

	require.NoError(t, b.Emit(ctx, "A"))
	drain(t, b)
	assert.Equal(t, int64(1), count.Load())
}

func TestBus_ErrorReemission(t *testing.T) {
	b := NewBus()
	defer b.Close(context.Background())

	boom := &paymentDeclined{code: 51}
	var got atomic.Value
	var observed atomic.Int64
	_, err := b.On(TypeOf[*paymentDeclined](), func(ctx context.Context, args ...any) (any, error) {
		observed.Add(1)
		got.Store(args[0])
		return nil, nil
	})
	require.NoError(t, err)
	_, err = b.On(K("charge"), func(ctx context.Context, args ...any) (any, error) {
		return nil, boom
	})
	require.NoError(t, err)

	require.NoError(t, b.Emit(context.Background(), "charge"))
	drain(t, b)

	assert.Equal(t, int64(1), observed.Load())
	assert.Same(t, boom, got.Load())
}

func TestBus_FailureCallbackConsumesError(t *testing.T) {
	b := NewBus()
	defer b.Close(context.Background())

	boom := &paymentDeclined{code: 5}
	var consumed atomic.Value
	var observed atomic.Int64
	_, err := b.On(TypeOf[*paymentDeclined](), func(ctx context.Context, args ...any) (any, error) {
		observed.Add(1)
		return nil, nil
	})
	require.NoError(t, err)
	_, err = b.On(K("charge"), func(ctx context.Context, args ...any) (any, error) {
		return nil, boom
	}, WithFailure(func(ctx context.Context, err error) {
		consumed.Store(err)
	}))
	require.NoError(t, err)

	require.NoError(t, b.Emit(context.Background(), "charge"))
	drain(t, b)

	assert.Same(t, boom, consumed.Load())
	assert.Zero(t, observed.Load(), "consumed error must not be re-emitted")
}

func TestBus_SuccessCallback(t *testing.T) {
	b := NewBus()
	defer b.Close(context.Background())

	var result atomic.Value
	_, err := b.On(K("A"), func(ctx context.Context, args ...any) (any, error) {
		return "done", nil
	}, WithSuccess(func(ctx context.Context, res any) {
		result.Store(res)
	}))
	require.NoError(t, err)

	require.NoError(t, b.Emit(context.Background(), "A"))
	drain(t, b)
	assert.Equal(t, "done", result.Load())
}

func TestBus_DrainCoversTransitiveWork(t *testing.T) {
	b := NewBus()
	defer b.Close(context.Background())

	var observed atomic.Bool
	_, err := b.On(TypeOf[*paymentDeclined](), func(ctx context.Context, args ...any) (any, error) {
		time.Sleep(50 * time.Millisecond)
		observed.Store(true)
		return nil, nil
	})
	require.NoError(t, err)
	_, err = b.On(K("charge"), func(ctx context.Context, args ...any) (any, error) {
		time.Sleep(20 * time.Millisecond)
		return nil, &paymentDeclined{}
	})
	require.NoError(t, err)

	require.NoError(t, b.Emit(context.Background(), "charge"))
	drain(t, b)
	assert.True(t, observed.Load(), "drain must wait for work spawned by re-emission")
}

func TestBus_TypedEventPayload(t *testing.T) {
	b := NewBus()
	defer b.Close(context.Background())

	var got atomic.Value
	_, err := b.On(TypeOf[orderCreated](), func(ctx context.Context, args ...any) (any, error) {
		got.Store(args[0])
		return nil, nil
	})
	require.NoError(t, err)

	require.NoError(t, b.Emit(context.Background(), orderCreated{ID: "o-1"}))
	drain(t, b)
	assert.Equal(t, orderCreated{ID: "o-1"}, got.Load())
}

type haltErr struct{}

func (e *haltErr) Error() string        { return "halt" }
func (e *haltErr) Is(target error) bool { return target == context.Canceled }

func TestBus_CancellationSwallowed(t *testing.T) {
	b := NewBus()
	defer b.Close(context.Background())

	var observed atomic.Int64
	_, err := b.On(TypeOf[*haltErr](), func(ctx context.Context, args ...any) (any, error) {
		observed.Add(1)
		return nil, nil
	})
	require.NoError(t, err)
	_, err = b.On(K("A"), func(ctx context.Context, args ...any) (any, error) {
		<-ctx.Done()
		return nil, &haltErr{}
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, b.Emit(ctx, "A"))
	cancel()
	drain(t, b)
	assert.Zero(t, observed.Load(), "cancelled unit must not re-emit")
}

func TestBus_MultiKeySubscribe(t *testing.T) {
	b := NewBus()
	defer b.Close(context.Background())

	var count atomic.Int64
	sub, err := b.Subscribe([]Key{K("A"), K("B")}, func(ctx context.Context, args ...any) (any, error) {
		count.Add(1)
		return nil, nil
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, b.Emit(ctx, "A"))
	require.NoError(t, b.Emit(ctx, "B"))
	drain(t, b)
	assert.Equal(t, int64(2), count.Load())

	// 仅从 A 退订，B 仍生效
	b.Unsubscribe(sub, K("A"))
	assert.Equal(t, []Key{K("B")}, b.KeysOf(sub))
	require.NoError(t, b.Emit(ctx, "A"))
	require.NoError(t, b.Emit(ctx, "B"))
	drain(t, b)
	assert.Equal(t, int64(3), count.Load())
}

func TestBus_UnsubscribeIdempotent(t *testing.T) {
	b := NewBus()
	defer b.Close(context.Background())

	sub, err := b.On(K("A"), func(ctx context.Context, args ...any) (any, error) { return nil, nil })
	require.NoError(t, err)

	assert.True(t, b.Unsubscribe(sub))
	assert.False(t, b.Unsubscribe(sub))
	assert.False(t, b.Unsubscribe(nil))
}

func TestBus_ForceAsyncBoundedPool(t *testing.T) {
	b := NewBus(WithWorkers(1))
	defer b.Close(context.Background())

	var count atomic.Int64
	for _, k := range []Key{K("A"), K("B")} {
		_, err := b.On(k, func(ctx context.Context, args ...any) (any, error) {
			time.Sleep(10 * time.Millisecond)
			count.Add(1)
			return nil, nil
		}, WithForceAsync())
		require.NoError(t, err)
	}

	ctx := context.Background()
	require.NoError(t, b.Emit(ctx, "A"))
	require.NoError(t, b.Emit(ctx, "B"))
	drain(t, b)
	assert.Equal(t, int64(2), count.Load())
}

func TestBus_ValidationErrors(t *testing.T) {
	b := NewBus()
	defer b.Close(context.Background())

	cb := func(ctx context.Context, args ...any) (any, error) { return nil, nil }

	_, err := b.Subscribe(nil, cb)
	assert.ErrorIs(t, err, ErrNoKeys)

	_, err = b.On(K("A"), nil)
	assert.ErrorIs(t, err, ErrNilCallback)

	_, err = b.On(K("A"), cb, WithTTL(0))
	assert.ErrorIs(t, err, ErrInvalidTTL)

	_, err = b.On(K("A"), cb, WithTTL(-3))
	assert.ErrorIs(t, err, ErrInvalidTTL)

	_, err = b.On(Key{}, cb)
	assert.ErrorIs(t, err, ErrNilEvent)

	assert.ErrorIs(t, b.Emit(context.Background(), nil), ErrNilEvent)
	assert.ErrorIs(t, b.Emit(context.Background(), ""), ErrNilEvent)
}

func TestBus_RemoveEventAndAll(t *testing.T) {
	b := NewBus()
	defer b.Close(context.Background())

	cb := func(ctx context.Context, args ...any) (any, error) { return nil, nil }
	_, err := b.On(K("A"), cb)
	require.NoError(t, err)
	_, err = b.On(K("B"), cb)
	require.NoError(t, err)

	assert.Len(t, b.Events(), 2)
	assert.True(t, b.RemoveEvent(K("A")))
	assert.False(t, b.RemoveEvent(K("A")))
	assert.Len(t, b.Events(), 1)

	b.RemoveAll()
	assert.Empty(t, b.Events())
}

func TestBus_EmitAfterClose(t *testing.T) {
	b := NewBus()
	_, err := b.On(K("A"), func(ctx context.Context, args ...any) (any, error) { return nil, nil })
	require.NoError(t, err)
	require.NoError(t, b.Close(context.Background()))

	err = b.Emit(context.Background(), "A")
	assert.True(t, errors.Is(err, ErrEngineClosed))
}

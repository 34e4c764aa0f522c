package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/joeydtaylor/scalogram/pkg/internal/types"
	"github.com/joeydtaylor/scalogram/pkg/internal/worker"
)

func TestChannel_CallReturnsReply(t *testing.T) {
	ch := worker.NewChannel(context.Background(), func(ctx context.Context, n int) (int, error) {
		return n * 2, nil
	})
	defer ch.Close()

	got, err := ch.Call(context.Background(), 21)
	if err != nil || got != 42 {
		t.Fatalf("Call = %d, %v", got, err)
	}
	if ch.Served() != 1 {
		t.Fatalf("expected 1 served, got %d", ch.Served())
	}
}

func TestChannel_HandlerErrorIsChannelError(t *testing.T) {
	ch := worker.NewChannel(context.Background(), func(ctx context.Context, n int) (int, error) {
		return 0, errors.New("ValueError: NaN in signal")
	})
	defer ch.Close()

	_, err := ch.Call(context.Background(), 1)
	var ce *types.ChannelError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ChannelError, got %T %v", err, err)
	}
	if ce.Message != "ValueError: NaN in signal" || ce.CorrelationID == "" {
		t.Fatalf("unexpected channel error %+v", ce)
	}
	if types.KindOf(err) != types.KindChannel {
		t.Fatalf("expected channel kind, got %v", types.KindOf(err))
	}
}

func TestChannel_KeepsHandlerErrorKind(t *testing.T) {
	ch := worker.NewChannel(context.Background(), func(ctx context.Context, n int) (int, error) {
		return 0, types.NewNumericalError("extract", types.ErrNonFinite)
	})
	defer ch.Close()

	_, err := ch.Call(context.Background(), 1)
	if !errors.Is(err, types.ErrNonFinite) || !types.IsNumerical(err) {
		t.Fatalf("expected numerical ErrNonFinite, got %v", err)
	}
}

func TestChannel_PanicBecomesError(t *testing.T) {
	ch := worker.NewChannel(context.Background(), func(ctx context.Context, n int) (int, error) {
		panic("boom")
	})
	defer ch.Close()

	if _, err := ch.Call(context.Background(), 1); err == nil {
		t.Fatalf("expected error from panicking handler")
	}
	if _, err := ch.Call(context.Background(), 2); err == nil {
		t.Fatalf("channel should keep serving after a panic")
	}
}

func TestChannel_SerializesInSubmissionOrder(t *testing.T) {
	var mu sync.Mutex
	var order []int
	active := 0
	maxActive := 0
	ch := worker.NewChannel(context.Background(), func(ctx context.Context, n int) (int, error) {
		mu.Lock()
		active++
		if active > maxActive {
			maxActive = active
		}
		order = append(order, n)
		mu.Unlock()
		time.Sleep(time.Millisecond)
		mu.Lock()
		active--
		mu.Unlock()
		return n, nil
	})
	defer ch.Close()

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, err := ch.Call(context.Background(), i)
			if err != nil || got != i {
				t.Errorf("Call(%d) = %d, %v", i, got, err)
			}
		}(i)
	}
	wg.Wait()

	if maxActive != 1 {
		t.Fatalf("expected one request in flight, saw %d", maxActive)
	}
	if len(order) != n {
		t.Fatalf("expected %d requests served, got %d", n, len(order))
	}
}

func TestChannel_FIFO(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	var mu sync.Mutex
	var order []int
	ch := worker.NewChannel(context.Background(), func(ctx context.Context, n int) (int, error) {
		if n == 0 {
			started <- struct{}{}
			<-release
		}
		mu.Lock()
		order = append(order, n)
		mu.Unlock()
		return n, nil
	})
	defer ch.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = ch.Call(context.Background(), 0)
	}()
	<-started

	for i := 1; i <= 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = ch.Call(context.Background(), i)
		}(i)
		for ch.Pending() < i {
			time.Sleep(time.Millisecond)
		}
	}
	if !ch.Busy() {
		t.Fatalf("expected channel busy")
	}
	close(release)
	wg.Wait()

	for i, v := range order {
		if v != i {
			t.Fatalf("expected FIFO order, got %v", order)
		}
	}
}

func TestChannel_CloseRejectsPending(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	ch := worker.NewChannel(context.Background(), func(ctx context.Context, n int) (int, error) {
		started <- struct{}{}
		select {
		case <-release:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
		return n, nil
	})

	first := make(chan error, 1)
	go func() {
		_, err := ch.Call(context.Background(), 1)
		first <- err
	}()
	<-started

	second := make(chan error, 1)
	go func() {
		_, err := ch.Call(context.Background(), 2)
		second <- err
	}()
	for ch.Pending() < 1 {
		time.Sleep(time.Millisecond)
	}

	ch.Close()

	if err := <-second; !errors.Is(err, types.ErrChannelClosed) {
		t.Fatalf("expected queued call rejected with ErrChannelClosed, got %v", err)
	}
	if err := <-first; err == nil {
		t.Fatalf("expected in-flight call to be cancelled")
	}
	if _, err := ch.Call(context.Background(), 3); !errors.Is(err, types.ErrChannelClosed) {
		t.Fatalf("expected closed channel error, got %v", err)
	}
	if ch.Ready() {
		t.Fatalf("closed channel must not report ready")
	}
	ch.Close()
}

func TestChannel_CallerCancellation(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	ch := worker.NewChannel(context.Background(), func(ctx context.Context, n int) (int, error) {
		if n == 0 {
			started <- struct{}{}
			<-release
		}
		return n, nil
	})
	defer ch.Close()

	go func() { _, _ = ch.Call(context.Background(), 0) }()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := ch.Call(ctx, 1)
		done <- err
	}()
	for ch.Pending() < 1 {
		time.Sleep(time.Millisecond)
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	close(release)

	if got, err := ch.Call(context.Background(), 5); err != nil || got != 5 {
		t.Fatalf("channel should keep serving, got %d %v", got, err)
	}
}

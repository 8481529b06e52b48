package async

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"
)

func TestLoop_DrainOrder(t *testing.T) {
	l := NewLoop()
	var got []int

	l.Post(func() { got = append(got, 1) })
	l.Post(func() {
		got = append(got, 2)
		l.Post(func() { got = append(got, 4) })
	})
	l.Post(func() { got = append(got, 3) })

	if n := l.Drain(); n != 4 {
		t.Errorf("Drain() = %d, want 4", n)
	}
	if want := []int{1, 2, 3, 4}; !reflect.DeepEqual(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
	if l.Len() != 0 {
		t.Errorf("Len() = %d, want 0", l.Len())
	}
}

func TestLoop_RunStops(t *testing.T) {
	l := NewLoop()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	ran := make(chan struct{})
	l.Post(func() { close(ran) })
	select {
	case <-ran:
	case <-ctx.Done():
		t.Fatal("posted task did not run")
	}

	l.Stop()
	if err := <-done; !errors.Is(err, ErrLoopStopped) {
		t.Errorf("Run() = %v, want ErrLoopStopped", err)
	}
}

func TestLoop_PostAfterStopDropped(t *testing.T) {
	l := NewLoop()
	l.Stop()
	l.Post(func() { t.Error("task ran after Stop") })
	l.Drain()
}

func TestFuture_ThenRunsOnScheduler(t *testing.T) {
	l := NewLoop()
	f, settle := NewFuture(l)

	var got error = errors.New("unset")
	calls := 0
	f.Then(func(err error) { got = err; calls++ })

	settle(nil)
	if calls != 0 {
		t.Fatal("callback ran before the loop drained")
	}

	l.Drain()
	if calls != 1 || got != nil {
		t.Errorf("calls = %d, err = %v; want 1, nil", calls, got)
	}
}

func TestFuture_SettleOnce(t *testing.T) {
	l := NewLoop()
	f, settle := NewFuture(l)

	settle(errors.New("first"))
	settle(nil)

	var got error
	f.Then(func(err error) { got = err })
	l.Drain()

	if got == nil || got.Error() != "first" {
		t.Errorf("err = %v, want first", got)
	}
	if settled, _ := f.Settled(); !settled {
		t.Error("Settled() = false, want true")
	}
}

func TestResolved(t *testing.T) {
	l := NewLoop()
	calls := 0
	Resolved(l, nil).Then(func(err error) {
		if err != nil {
			t.Errorf("err = %v, want nil", err)
		}
		calls++
	})

	if calls != 0 {
		t.Fatal("Then on a settled future must not run synchronously")
	}
	l.Drain()
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestGo_Settle(t *testing.T) {
	l := NewLoop()
	release := make(chan struct{})

	var got error = errors.New("unset")
	Go(context.Background(), l, func(ctx context.Context) error {
		<-release
		return errors.New("timeout")
	}).Then(func(err error) { got = err })

	if l.InFlight() != 1 {
		t.Errorf("InFlight() = %d, want 1", l.InFlight())
	}
	close(release)

	if !l.Settle(time.Second) {
		t.Fatal("Settle() timed out")
	}
	if got == nil || got.Error() != "timeout" {
		t.Errorf("err = %v, want timeout", got)
	}
}

func TestGo_PanicRejects(t *testing.T) {
	l := NewLoop()
	var got error
	Go(context.Background(), l, func(ctx context.Context) error {
		panic("radio exploded")
	}).Then(func(err error) { got = err })

	if !l.Settle(time.Second) {
		t.Fatal("Settle() timed out")
	}
	if got == nil {
		t.Error("panicking operation should reject the future")
	}
}

func TestQueue_RunsInSubmissionOrder(t *testing.T) {
	l := NewLoop()
	q := NewQueue(context.Background(), l)

	var (
		mu  sync.Mutex
		got []int
	)
	for i := 0; i < 50; i++ {
		i := i
		q.Go(func(context.Context) error {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
			return nil
		})
	}
	if !l.Settle(2 * time.Second) {
		t.Fatal("loop did not settle")
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("order = %v, want ascending", got)
		}
	}
	if len(got) != 50 {
		t.Errorf("ran %d operations, want 50", len(got))
	}
}

func TestQueue_PanicDoesNotBlock(t *testing.T) {
	l := NewLoop()
	q := NewQueue(context.Background(), l)

	var (
		first error
		ran   bool
	)
	q.Go(func(context.Context) error { panic("boom") }).Then(func(err error) { first = err })
	q.Go(func(context.Context) error {
		ran = true
		return nil
	})

	if !l.Settle(2 * time.Second) {
		t.Fatal("loop did not settle")
	}
	if first == nil {
		t.Error("panicking operation should reject its future")
	}
	if !ran {
		t.Error("operation after a panic should still run")
	}
}

package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestNewRejectsZeroInterval(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("零间隔应 panic")
		}
	}()
	New(Options{}, zerolog.Nop())
}

func TestRunTicksUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := New(Options{Interval: 10 * time.Millisecond}, zerolog.Nop())

	var ticks atomic.Int32
	errc := make(chan error, 1)
	go func() {
		errc <- s.Run(ctx, func(ctx context.Context, _ time.Time) error {
			if ticks.Add(1) == 3 {
				cancel()
			}
			return errors.New("tick failures are logged, not fatal")
		})
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("取消后应返回 context.Canceled, 实际 %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("调度器未在取消后退出")
	}
	if ticks.Load() < 3 {
		t.Fatalf("错误不应中断循环, 实际 %d 次", ticks.Load())
	}
}

func TestImmediateFiresBeforeInterval(t *testing.T) {
	s := New(Options{Interval: time.Hour, Immediate: true}, zerolog.Nop())
	fired := make(chan struct{}, 1)
	h := Start(context.Background(), s, func(context.Context, time.Time) error {
		fired <- struct{}{}
		return nil
	})
	defer h.Stop()

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("Immediate 应立即触发一次")
	}
}

func TestAlignedBuckets(t *testing.T) {
	s := New(Options{Interval: time.Minute, AlignToStart: true}, zerolog.Nop())
	now := time.Date(2024, 1, 1, 12, 0, 30, 0, time.UTC)
	if got := s.nextTick(now); !got.Equal(time.Date(2024, 1, 1, 12, 1, 0, 0, time.UTC)) {
		t.Fatalf("对齐下一个整分钟, 实际 %s", got)
	}
	if got := s.bucketStart(now); !got.Equal(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("bucket 起点错误, 实际 %s", got)
	}
}

func TestHandleStopPreventsFurtherTicks(t *testing.T) {
	s := New(Options{Interval: 5 * time.Millisecond, Immediate: true}, zerolog.Nop())
	var ticks atomic.Int32
	h := Start(context.Background(), s, func(context.Context, time.Time) error {
		ticks.Add(1)
		return nil
	})
	time.Sleep(30 * time.Millisecond)
	h.Stop()
	h.Stop()

	after := ticks.Load()
	time.Sleep(30 * time.Millisecond)
	if ticks.Load() != after {
		t.Fatal("Stop 之后不应再触发回调")
	}
	select {
	case <-h.Done():
	default:
		t.Fatal("Stop 返回时循环应已退出")
	}
}

func TestRegistryReplacesAndStops(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	s := New(Options{Interval: time.Hour}, zerolog.Nop())
	noop := func(context.Context, time.Time) error { return nil }

	first := r.Start(context.Background(), "cards", s, noop)
	second := r.Start(context.Background(), "cards", s, noop)
	select {
	case <-first.Done():
	default:
		t.Fatal("同 key 重复启动应停止旧循环")
	}
	if r.Len() != 1 {
		t.Fatalf("期望 1 个循环, 实际 %d", r.Len())
	}

	r.Start(context.Background(), "chart", s, noop)
	if !r.Stop("chart") || r.Stop("chart") {
		t.Fatal("Stop 应只对运行中的循环返回 true")
	}

	r.StopAll()
	if r.Len() != 0 {
		t.Fatal("StopAll 后应为空")
	}
	select {
	case <-second.Done():
	default:
		t.Fatal("StopAll 应停止所有循环")
	}
}

package swarm

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/queez/quizbots/internal/bot"
	"github.com/queez/quizbots/internal/metrics"
)

func TestBatchSizes(t *testing.T) {
	tests := []struct {
		total, size int
		want        []int
	}{
		{23, 10, []int{10, 10, 3}},
		{10, 10, []int{10}},
		{5, 10, []int{5}},
		{1, 1, []int{1}},
		{30, 10, []int{10, 10, 10}},
	}
	for _, tt := range tests {
		got := batchSizes(tt.total, tt.size)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("batchSizes(%d, %d) = %v, want %v", tt.total, tt.size, got, tt.want)
		}
	}
}

// inertTransport connects (optionally failing) and then blocks on
// Receive until closed.
type inertTransport struct {
	connectErr error
	once       sync.Once
	closed     chan struct{}
}

func newInertTransport(connectErr error) *inertTransport {
	return &inertTransport{connectErr: connectErr, closed: make(chan struct{})}
}

func (f *inertTransport) Connect(ctx context.Context) error { return f.connectErr }
func (f *inertTransport) Send(data []byte) error            { return nil }
func (f *inertTransport) Receive(deadline time.Time) ([]byte, error) {
	<-f.closed
	return nil, errors.New("closed")
}
func (f *inertTransport) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func inertFactory(attempts *int64, failEvery int) Factory {
	return func(n int) *bot.Session {
		atomic.AddInt64(attempts, 1)
		var connectErr error
		if failEvery > 0 && n%failEvery == 0 {
			connectErr = errors.New("connection refused")
		}
		return bot.New(bot.Config{
			ID:        fmt.Sprintf("bot-%d", n),
			Username:  fmt.Sprintf("TestBot_%d", n),
			Persona:   bot.Persona{Accuracy: 1},
			Transport: newInertTransport(connectErr),
			Rand:      rand.New(rand.NewSource(int64(n))),
		})
	}
}

func TestBatcherIssuesAllAttempts(t *testing.T) {
	var attempts int64
	opt := Options{
		Bots:      23,
		BatchSize: 10,
		JoinRate:  1000,
		Factory:   inertFactory(&attempts, 0),
		Collector: metrics.NewCollector(),
	}
	opt.normalize()

	connected, all := NewBatcher(opt).Run(context.Background())
	if attempts != 23 {
		t.Fatalf("expected 23 factory calls, got %d", attempts)
	}
	if len(all) != 23 || len(connected) != 23 {
		t.Fatalf("expected 23 sessions all connected, got all=%d connected=%d", len(all), len(connected))
	}
	for _, s := range all {
		s.Shutdown()
	}
}

func TestBatcherFailuresDoNotBlockWave(t *testing.T) {
	var attempts int64
	opt := Options{
		Bots:      23,
		BatchSize: 10,
		JoinRate:  1000,
		Factory:   inertFactory(&attempts, 5), // every 5th dial fails
		Collector: metrics.NewCollector(),
	}
	opt.normalize()

	connected, all := NewBatcher(opt).Run(context.Background())
	if attempts != 23 {
		t.Fatalf("failures must not reduce attempts: got %d", attempts)
	}
	if len(all) != 23 {
		t.Fatalf("expected 23 sessions created, got %d", len(all))
	}
	if len(connected) != 19 {
		t.Fatalf("expected 19 connected (4 failures), got %d", len(connected))
	}
	errored := 0
	for _, s := range all {
		if s.Status() == bot.StatusErrored {
			errored++
		}
	}
	if errored != 4 {
		t.Fatalf("expected 4 errored sessions, got %d", errored)
	}
	for _, s := range all {
		s.Shutdown()
	}
}

func TestBatcherPacesBetweenWaves(t *testing.T) {
	var attempts int64
	opt := Options{
		Bots:       6,
		BatchSize:  2,
		BatchDelay: 60 * time.Millisecond,
		JoinRate:   1000,
		Factory:    inertFactory(&attempts, 0),
		Collector:  metrics.NewCollector(),
	}
	opt.normalize()

	start := time.Now()
	_, all := NewBatcher(opt).Run(context.Background())
	elapsed := time.Since(start)

	// Three waves means two inter-wave pauses.
	if elapsed < 120*time.Millisecond {
		t.Fatalf("waves not paced: finished in %s", elapsed)
	}
	for _, s := range all {
		s.Shutdown()
	}
}

func TestBatcherHonorsCancellation(t *testing.T) {
	var attempts int64
	opt := Options{
		Bots:       100,
		BatchSize:  5,
		BatchDelay: time.Second,
		JoinRate:   1000,
		Factory:    inertFactory(&attempts, 0),
		Collector:  metrics.NewCollector(),
	}
	opt.normalize()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, all := NewBatcher(opt).Run(ctx)
	if len(all) >= 100 {
		t.Fatalf("cancellation ignored: %d sessions created", len(all))
	}
	for _, s := range all {
		s.Shutdown()
	}
}

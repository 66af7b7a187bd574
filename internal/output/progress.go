package output

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/queez/quizbots/internal/metrics"
	"github.com/queez/quizbots/internal/swarm"
)

// ProgressReporter displays a periodic one-line status while a run is
// in flight.
type ProgressReporter struct {
	collector *metrics.Collector
	stateFn   func() swarm.State
	ticker    *time.Ticker
	done      chan struct{}
	finished  chan struct{}
	writer    io.Writer
	active    int32
	start     time.Time
}

// NewProgressReporter creates a progress reporter that updates at the
// given interval.
func NewProgressReporter(collector *metrics.Collector, stateFn func() swarm.State, interval time.Duration, writer io.Writer) *ProgressReporter {
	if writer == nil {
		writer = io.Discard
	}
	return &ProgressReporter{
		collector: collector,
		stateFn:   stateFn,
		ticker:    time.NewTicker(interval),
		done:      make(chan struct{}),
		finished:  make(chan struct{}),
		writer:    writer,
		start:     time.Now(),
	}
}

// Start begins displaying progress updates in a background goroutine.
func (p *ProgressReporter) Start() {
	if !atomic.CompareAndSwapInt32(&p.active, 0, 1) {
		return // already running
	}
	go p.run()
}

// Stop halts progress updates and waits for the last line to flush.
func (p *ProgressReporter) Stop() {
	if atomic.CompareAndSwapInt32(&p.active, 1, 0) {
		close(p.done)
		<-p.finished
	}
}

func (p *ProgressReporter) run() {
	defer close(p.finished)
	defer p.ticker.Stop()
	for {
		select {
		case <-p.done:
			return
		case <-p.ticker.C:
			p.print()
		}
	}
}

func (p *ProgressReporter) print() {
	elapsed := time.Since(p.start)
	stats := p.collector.Stats(elapsed)
	fmt.Fprintf(p.writer, "[%s] state=%s connected=%d answers=%d correct=%d disconnects=%d\n",
		elapsed.Round(time.Second), p.stateFn(),
		stats.Connects, stats.Answers, stats.Correct, stats.Disconnects)
}

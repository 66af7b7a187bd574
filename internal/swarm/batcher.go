package swarm

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/queez/quizbots/internal/bot"
)

// Batcher brings sessions up in fixed-size waves with inter-wave
// pacing. Batching bounds the server's accept-rate burst, not total
// concurrency: every successfully connected session stays live once
// admitted.
type Batcher struct {
	opt     Options
	limiter *rate.Limiter
}

// NewBatcher creates a batcher for the given (already normalized)
// options.
func NewBatcher(opt Options) *Batcher {
	return &Batcher{
		opt:     opt,
		limiter: rate.NewLimiter(rate.Limit(opt.JoinRate), 1),
	}
}

// batchSizes partitions total into ceil(total/size) waves.
func batchSizes(total, size int) []int {
	var sizes []int
	for total > 0 {
		n := size
		if total < n {
			n = total
		}
		sizes = append(sizes, n)
		total -= n
	}
	return sizes
}

// Run connects all sessions. Within a wave, dials run concurrently; a
// failed dial marks its session errored and never blocks the rest of
// the wave. Join frames are paced by the join limiter so a wave of
// accepted sockets does not hammer the session handler at once.
//
// Run returns the connected sessions and every session created,
// including failed ones, in creation order.
func (b *Batcher) Run(ctx context.Context) (connected, all []*bot.Session) {
	next := 1
	for waveIdx, size := range batchSizes(b.opt.Bots, b.opt.BatchSize) {
		if ctx.Err() != nil {
			break
		}
		if waveIdx > 0 && b.opt.BatchDelay > 0 {
			select {
			case <-time.After(b.opt.BatchDelay):
			case <-ctx.Done():
				return connected, all
			}
		}

		wave := make([]*bot.Session, size)
		for i := range wave {
			wave[i] = b.opt.Factory(next)
			next++
		}
		all = append(all, wave...)

		results := make([]error, size)
		var wg sync.WaitGroup
		wg.Add(size)
		for i, s := range wave {
			go func(i int, s *bot.Session) {
				defer wg.Done()
				start := time.Now()
				err := s.Connect(ctx)
				b.opt.Collector.RecordConnect(time.Since(start), err)
				results[i] = err
			}(i, s)
		}
		wg.Wait()

		for i, s := range wave {
			if results[i] != nil {
				b.opt.Logf("bot %s: %v", s.Username(), results[i])
				continue
			}
			if err := b.limiter.Wait(ctx); err != nil {
				return connected, all
			}
			if err := s.Join(); err != nil {
				b.opt.Logf("bot %s: %v", s.Username(), err)
				continue
			}
			connected = append(connected, s)
		}

		b.opt.Logf("connected %d/%d bots", len(connected), b.opt.Bots)
	}
	return connected, all
}

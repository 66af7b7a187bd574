// Package swarm orchestrates the pool of simulated participants: it
// admits bots in batches, fans question events out across the pool,
// waits rounds out, and aggregates the terminal state into a summary.
package swarm

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/queez/quizbots/internal/bot"
	"github.com/queez/quizbots/internal/protocol"
	"github.com/queez/quizbots/internal/tracing"
)

// State is the coordinator's run lifecycle.
type State int32

const (
	StateIdle State = iota
	StateBatching
	StateRunning
	StateDraining
	StateComplete
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBatching:
		return "batching"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// Coordinator drives all connected sessions through one live quiz as a
// synchronized unit. Synchronization means every bot reacts to the same
// question sighting at the same moment; their submissions still spread
// out over each bot's own think delay.
type Coordinator struct {
	opt     Options
	batcher *Batcher
	state   atomic.Int32

	mu       sync.Mutex
	sessions []*bot.Session
}

// New creates a coordinator. Options are normalized here.
func New(opt Options) *Coordinator {
	opt.normalize()
	return &Coordinator{
		opt:     opt,
		batcher: NewBatcher(opt),
	}
}

// State returns the current lifecycle state.
func (c *Coordinator) State() State {
	return State(c.state.Load())
}

func (c *Coordinator) setState(s State) {
	c.state.Store(int32(s))
}

// Sessions returns every session created so far, failed ones included.
func (c *Coordinator) Sessions() []*bot.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*bot.Session(nil), c.sessions...)
}

// Run executes the full lifecycle and always produces a summary, even
// if every bot errors out. Per-bot failures never abort the run; only
// ctx cancellation ends it early, and even then the summary reflects
// whatever state was reached.
func (c *Coordinator) Run(ctx context.Context) Summary {
	start := time.Now()

	c.setState(StateBatching)
	ctx, runSpan := tracing.StartPhaseSpan(ctx, c.opt.Tracer, "quiz run",
		attribute.Int("quizbots.requested", c.opt.Bots))
	defer runSpan.End()

	batchCtx, batchSpan := tracing.StartPhaseSpan(ctx, c.opt.Tracer, "batching")
	connected, all := c.batcher.Run(batchCtx)
	tracing.EndSpan(batchSpan, nil, attribute.Int("quizbots.connected", len(connected)))
	c.mu.Lock()
	c.sessions = all
	c.mu.Unlock()

	if len(connected) == 0 {
		c.opt.Logf("no bots connected")
		c.setState(StateComplete)
		return Summarize(all, time.Since(start))
	}

	notes := make(chan bot.Note, len(connected)*8)
	live := make(map[string]*bot.Session, len(connected))
	for _, s := range connected {
		live[s.ID()] = s
		s.Start(notes)
	}

	c.setState(StateRunning)
	roundsCtx, roundsSpan := tracing.StartPhaseSpan(ctx, c.opt.Tracer, "rounds")
	c.runRounds(roundsCtx, notes, live)
	tracing.EndSpan(roundsSpan, nil, attribute.Int("quizbots.live", len(live)))

	c.setState(StateDraining)
	// One pass over the pool cancels every outstanding answer timer;
	// submissions already in flight complete, nothing new fires.
	for _, s := range live {
		s.CancelPending()
	}
	c.drain(ctx, notes)

	for _, s := range all {
		s.Shutdown()
	}
	c.setState(StateComplete)
	return Summarize(all, time.Since(start))
}

// runRounds is the Running state: it reacts to whichever comes first on
// every round, all live bots finishing or the server moving on.
func (c *Coordinator) runRounds(ctx context.Context, notes <-chan bot.Note, live map[string]*bot.Session) {
	curIndex := -1
	waitSet := make(map[string]struct{})

	startCh := time.After(c.opt.StartTimeout)
	var timeoutCh <-chan time.Time // wait-set safety valve
	var advanceCh <-chan time.Time // inter-question pacing

	closeRound := func() {
		for id := range waitSet {
			delete(waitSet, id)
		}
		timeoutCh = nil
		advanceCh = time.After(c.opt.QuestionDelay)
	}

	for {
		if len(live) == 0 {
			c.opt.Logf("all bots left the run")
			return
		}
		allDone := true
		for _, s := range live {
			if !s.Completed() {
				allDone = false
				break
			}
		}
		if allDone {
			return
		}

		select {
		case <-ctx.Done():
			return

		case <-startCh:
			if curIndex < 0 {
				c.opt.Logf("timed out waiting for the quiz to start")
				return
			}
			startCh = nil

		case <-timeoutCh:
			c.opt.Logf("round %d: %d bots neither answered nor disconnected, moving on",
				curIndex, len(waitSet))
			closeRound()

		case <-advanceCh:
			advanceCh = nil
			for _, s := range live {
				if s.Completed() {
					continue
				}
				if err := s.RequestNext(); err != nil {
					c.opt.Logf("bot %s: request next: %v", s.Username(), err)
				}
			}

		case n := <-notes:
			switch n.Kind {
			case bot.NoteClosed:
				c.opt.Collector.RecordDisconnect(n.Bot.Err())
				delete(live, n.Bot.ID())
				delete(waitSet, n.Bot.ID())
				if len(waitSet) == 0 && timeoutCh != nil {
					closeRound()
				}

			case bot.NoteAnswered:
				delete(waitSet, n.Bot.ID())
				if len(waitSet) == 0 && timeoutCh != nil {
					closeRound()
				}

			case bot.NoteEvent:
				c.opt.Collector.RecordEvent(string(n.Event.Kind()))
				switch ev := n.Event.(type) {
				case protocol.Question:
					if ev.Index <= curIndex {
						break // a bot's own copy of an already-broadcast question
					}
					curIndex = ev.Index
					startCh = nil
					advanceCh = nil
					for id := range waitSet {
						delete(waitSet, id)
					}
					for id, s := range live {
						waitSet[id] = struct{}{}
						s.AskQuestion(ev)
					}
					timeoutCh = time.After(c.opt.AnswerTimeout)
					c.opt.Logf("question %d/%d broadcast to %d bots",
						ev.Index+1, ev.Total, len(live))

				case protocol.AnswerResult:
					c.opt.Collector.RecordAnswer(n.ResultLatency, ev.IsCorrect)

				case protocol.QuizEnded:
					c.opt.Logf("session ended by server")
					return
				}
			}
		}
	}
}

// drain is the Draining state: the pool is held alive for the grace
// period so late final-state broadcasts (leaderboards, completion
// notices) still land before the summary is built.
func (c *Coordinator) drain(ctx context.Context, notes <-chan bot.Note) {
	if c.opt.GracePeriod == 0 {
		return
	}
	timer := time.NewTimer(c.opt.GracePeriod)
	defer timer.Stop()
	for {
		select {
		case <-timer.C:
			return
		case <-ctx.Done():
			return
		case n := <-notes:
			if n.Kind == bot.NoteEvent {
				c.opt.Collector.RecordEvent(string(n.Event.Kind()))
			}
			if n.Kind == bot.NoteClosed {
				c.opt.Collector.RecordDisconnect(n.Bot.Err())
			}
		}
	}
}

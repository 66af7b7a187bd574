package swarm

import (
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/queez/quizbots/internal/bot"
	"github.com/queez/quizbots/internal/metrics"
)

// Factory builds the session for bot number n (1-based). The batcher
// calls it lazily, one bot at a time, as batches come up.
type Factory func(n int) *bot.Session

// Options configure a run.
type Options struct {
	Bots       int           // total sessions to bring up
	BatchSize  int           // sessions connected per wave
	BatchDelay time.Duration // pause between waves
	JoinRate   int           // join frames per second within a wave

	QuestionDelay time.Duration // pause after a round closes before advancing
	AnswerTimeout time.Duration // max wait for the wait-set to drain
	StartTimeout  time.Duration // max wait for the first question
	GracePeriod   time.Duration // post-end wait for final broadcasts

	Factory   Factory // required
	Collector *metrics.Collector
	Tracer    trace.Tracer
	Logf      func(format string, args ...any)
}

func (o *Options) normalize() {
	if o.Bots < 1 {
		o.Bots = 1
	}
	if o.BatchSize < 1 {
		o.BatchSize = 10
	}
	if o.BatchDelay < 0 {
		o.BatchDelay = 0
	}
	if o.JoinRate <= 0 {
		o.JoinRate = 10
	}
	if o.QuestionDelay <= 0 {
		o.QuestionDelay = 2500 * time.Millisecond
	}
	if o.AnswerTimeout <= 0 {
		o.AnswerTimeout = 20 * time.Second
	}
	if o.StartTimeout <= 0 {
		o.StartTimeout = 5 * time.Minute
	}
	if o.GracePeriod < 0 {
		o.GracePeriod = 0
	}
	if o.Collector == nil {
		o.Collector = metrics.NewCollector()
	}
	if o.Tracer == nil {
		o.Tracer = noop.NewTracerProvider().Tracer("swarm")
	}
	if o.Logf == nil {
		o.Logf = func(string, ...any) {}
	}
}

// Package metrics aggregates swarm-wide counters and latency
// distributions while a run is in flight.
package metrics

import (
	"fmt"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Collector records connection and answer outcomes in a thread-safe
// manner. One collector serves the whole swarm.
type Collector struct {
	mu sync.Mutex

	connectHist *hdrhistogram.Histogram
	answerHist  *hdrhistogram.Histogram

	connects        int64
	connectFailures int64
	answers         int64
	correct         int64
	disconnects     int64
	eventCounts     map[string]int64
	errorsByType    map[string]int64

	start time.Time
}

// Stats is an aggregated snapshot.
type Stats struct {
	Connects        int64         `json:"connects"`
	ConnectFailures int64         `json:"connect_failures"`
	Answers         int64         `json:"answers"`
	Correct         int64         `json:"correct"`
	Disconnects     int64         `json:"disconnects"`
	Duration        time.Duration `json:"-"`

	ConnectP50 time.Duration `json:"-"`
	ConnectP99 time.Duration `json:"-"`
	AnswerMin  time.Duration `json:"-"`
	AnswerMean time.Duration `json:"-"`
	AnswerP50  time.Duration `json:"-"`
	AnswerP90  time.Duration `json:"-"`
	AnswerP99  time.Duration `json:"-"`
	AnswerMax  time.Duration `json:"-"`

	// JSON-friendly millisecond fields.
	DurationMs   float64 `json:"duration_ms"`
	ConnectP50Ms float64 `json:"connect_p50_ms"`
	ConnectP99Ms float64 `json:"connect_p99_ms"`
	AnswerMeanMs float64 `json:"answer_mean_ms"`
	AnswerP50Ms  float64 `json:"answer_p50_ms"`
	AnswerP90Ms  float64 `json:"answer_p90_ms"`
	AnswerP99Ms  float64 `json:"answer_p99_ms"`

	Events map[string]int64 `json:"events,omitempty"`
	Errors map[string]int64 `json:"errors,omitempty"`
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	// Track latencies from 1µs up to 60s with 3 significant figures.
	return &Collector{
		connectHist:  hdrhistogram.New(1, 60_000_000, 3),
		answerHist:   hdrhistogram.New(1, 60_000_000, 3),
		eventCounts:  make(map[string]int64),
		errorsByType: make(map[string]int64),
		start:        time.Now(),
	}
}

// RecordConnect records one connection attempt.
func (c *Collector) RecordConnect(latency time.Duration, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.connectFailures++
		c.recordErrorLocked(err)
		return
	}
	c.connects++
	c.recordLocked(c.connectHist, latency)
}

// RecordAnswer records a submitted answer and its result round-trip
// latency once known. A zero latency records the count only.
func (c *Collector) RecordAnswer(latency time.Duration, correct bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.answers++
	if correct {
		c.correct++
	}
	if latency > 0 {
		c.recordLocked(c.answerHist, latency)
	}
}

// RecordDisconnect records a mid-run connection loss.
func (c *Collector) RecordDisconnect(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnects++
	if err != nil {
		c.recordErrorLocked(err)
	}
}

// RecordEvent counts one inbound event by kind.
func (c *Collector) RecordEvent(kind string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.eventCounts[kind]++
}

func (c *Collector) recordLocked(h *hdrhistogram.Histogram, latency time.Duration) {
	us := latency.Microseconds()
	if us < h.LowestTrackableValue() {
		us = h.LowestTrackableValue()
	}
	if us > h.HighestTrackableValue() {
		us = h.HighestTrackableValue()
	}
	_ = h.RecordValue(us)
}

func (c *Collector) recordErrorLocked(err error) {
	errorType := fmt.Sprintf("%T", err)
	if len(errorType) > 30 {
		errorType = errorType[len(errorType)-30:]
	}
	c.errorsByType[errorType]++
}

// Stats computes the current aggregated snapshot.
func (c *Collector) Stats(elapsed time.Duration) Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elapsed <= 0 {
		elapsed = time.Since(c.start)
	}

	us := func(v int64) time.Duration { return time.Duration(v) * time.Microsecond }

	s := Stats{
		Connects:        c.connects,
		ConnectFailures: c.connectFailures,
		Answers:         c.answers,
		Correct:         c.correct,
		Disconnects:     c.disconnects,
		Duration:        elapsed,
		ConnectP50:      us(c.connectHist.ValueAtQuantile(50)),
		ConnectP99:      us(c.connectHist.ValueAtQuantile(99)),
		AnswerMin:       us(c.answerHist.Min()),
		AnswerMean:      time.Duration(c.answerHist.Mean()) * time.Microsecond,
		AnswerP50:       us(c.answerHist.ValueAtQuantile(50)),
		AnswerP90:       us(c.answerHist.ValueAtQuantile(90)),
		AnswerP99:       us(c.answerHist.ValueAtQuantile(99)),
		AnswerMax:       us(c.answerHist.Max()),
	}
	if c.answerHist.TotalCount() == 0 {
		s.AnswerMin = 0
	}

	s.DurationMs = float64(s.Duration.Microseconds()) / 1000
	s.ConnectP50Ms = float64(s.ConnectP50.Microseconds()) / 1000
	s.ConnectP99Ms = float64(s.ConnectP99.Microseconds()) / 1000
	s.AnswerMeanMs = float64(s.AnswerMean.Microseconds()) / 1000
	s.AnswerP50Ms = float64(s.AnswerP50.Microseconds()) / 1000
	s.AnswerP90Ms = float64(s.AnswerP90.Microseconds()) / 1000
	s.AnswerP99Ms = float64(s.AnswerP99.Microseconds()) / 1000

	if len(c.eventCounts) > 0 {
		s.Events = make(map[string]int64, len(c.eventCounts))
		for k, v := range c.eventCounts {
			s.Events[k] = v
		}
	}
	if len(c.errorsByType) > 0 {
		s.Errors = make(map[string]int64, len(c.errorsByType))
		for k, v := range c.errorsByType {
			s.Errors[k] = v
		}
	}
	return s
}

package metrics_test

import (
	"errors"
	"testing"
	"time"

	"github.com/queez/quizbots/internal/metrics"
)

func TestCollectorCounts(t *testing.T) {
	c := metrics.NewCollector()

	c.RecordConnect(10*time.Millisecond, nil)
	c.RecordConnect(20*time.Millisecond, nil)
	c.RecordConnect(0, errors.New("refused"))

	c.RecordAnswer(50*time.Millisecond, true)
	c.RecordAnswer(70*time.Millisecond, false)
	c.RecordAnswer(0, true) // latency unknown, count only

	c.RecordDisconnect(errors.New("dropped"))

	s := c.Stats(time.Second)
	if s.Connects != 2 || s.ConnectFailures != 1 {
		t.Fatalf("unexpected connect counts: %+v", s)
	}
	if s.Answers != 3 || s.Correct != 2 {
		t.Fatalf("unexpected answer counts: %+v", s)
	}
	if s.Disconnects != 1 {
		t.Fatalf("unexpected disconnects: %d", s.Disconnects)
	}
	if len(s.Errors) != 1 {
		t.Fatalf("expected one error bucket, got %v", s.Errors)
	}
}

func TestCollectorLatencyPercentiles(t *testing.T) {
	c := metrics.NewCollector()
	for i := 1; i <= 100; i++ {
		c.RecordAnswer(time.Duration(i)*time.Millisecond, true)
	}

	s := c.Stats(time.Second)
	if s.AnswerP50 < 40*time.Millisecond || s.AnswerP50 > 60*time.Millisecond {
		t.Fatalf("p50 out of range: %s", s.AnswerP50)
	}
	if s.AnswerP99 < 90*time.Millisecond {
		t.Fatalf("p99 out of range: %s", s.AnswerP99)
	}
	if s.AnswerMax < 99*time.Millisecond {
		t.Fatalf("max out of range: %s", s.AnswerMax)
	}
	if s.AnswerP50Ms <= 0 {
		t.Fatal("millisecond mirror fields not populated")
	}
}

func TestCollectorEvents(t *testing.T) {
	c := metrics.NewCollector()
	c.RecordEvent("question")
	c.RecordEvent("question")
	c.RecordEvent("leaderboard_update")

	s := c.Stats(time.Second)
	if s.Events["question"] != 2 || s.Events["leaderboard_update"] != 1 {
		t.Fatalf("unexpected event counts: %v", s.Events)
	}
}

func TestCollectorEmpty(t *testing.T) {
	c := metrics.NewCollector()
	s := c.Stats(time.Second)
	if s.AnswerMin != 0 || s.Answers != 0 {
		t.Fatalf("empty collector produced non-zero stats: %+v", s)
	}
	if s.Events != nil || s.Errors != nil {
		t.Fatalf("empty collector produced maps: %+v", s)
	}
}

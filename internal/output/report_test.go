package output_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/queez/quizbots/internal/bot"
	"github.com/queez/quizbots/internal/metrics"
	"github.com/queez/quizbots/internal/output"
	"github.com/queez/quizbots/internal/swarm"
)

func sampleSummary() swarm.Summary {
	return swarm.Summary{
		Entries: []swarm.Entry{
			{ID: "bot-1", Username: "QuizMaster_1", Score: 300, Answered: 3, Correct: 3, Status: bot.StatusConnected},
			{ID: "bot-2", Username: "TestBot_2", Score: 100, Answered: 3, Correct: 1, Status: bot.StatusConnected},
			{ID: "bot-3", Username: "BrainBot_3", Score: 0, Answered: 1, Correct: 0, Status: bot.StatusDisconnected},
		},
		Scores:        map[string]int{"bot-1": 300, "bot-2": 100, "bot-3": 0},
		Completed:     2,
		Disconnected:  1,
		TotalAnswered: 7,
		TotalCorrect:  4,
		Elapsed:       42 * time.Second,
	}
}

func TestPrintReport(t *testing.T) {
	c := metrics.NewCollector()
	c.RecordAnswer(120*time.Millisecond, true)
	c.RecordConnect(15*time.Millisecond, nil)

	var buf bytes.Buffer
	output.PrintReport(&buf, sampleSummary(), c.Stats(42*time.Second))
	got := buf.String()

	for _, want := range []string{
		"Completed:         2",
		"Disconnected:      1",
		"QuizMaster_1: 300 pts (3/3 correct)",
		"[lost] BrainBot_3",
		"Leaderboard:",
		"Answer Round-Trip Latency:",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("report missing %q:\n%s", want, got)
		}
	}
}

func TestPrintReportTruncatesLongPool(t *testing.T) {
	summary := swarm.Summary{Scores: map[string]int{}}
	for i := 0; i < 30; i++ {
		summary.Entries = append(summary.Entries, swarm.Entry{
			ID: "x", Username: "Bot", Status: bot.StatusConnected,
		})
	}

	var buf bytes.Buffer
	output.PrintReport(&buf, summary, metrics.NewCollector().Stats(time.Second))
	if !strings.Contains(buf.String(), "and 10 more bots") {
		t.Fatalf("long pool not truncated:\n%s", buf.String())
	}
}

func TestPrintJSONReport(t *testing.T) {
	c := metrics.NewCollector()
	c.RecordAnswer(80*time.Millisecond, true)

	var buf bytes.Buffer
	if err := output.PrintJSONReport(&buf, sampleSummary(), c.Stats(42*time.Second)); err != nil {
		t.Fatalf("json report: %v", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if doc["completed"].(float64) != 2 {
		t.Fatalf("unexpected completed count: %v", doc["completed"])
	}
	scores := doc["scores"].(map[string]any)
	if scores["bot-1"].(float64) != 300 {
		t.Fatalf("unexpected scores: %v", scores)
	}
}

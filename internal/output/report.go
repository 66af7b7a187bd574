// Package output renders run results for the terminal: a final report,
// an optional JSON document, and a periodic progress line.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/queez/quizbots/internal/bot"
	"github.com/queez/quizbots/internal/metrics"
	"github.com/queez/quizbots/internal/swarm"
)

// maxListedBots caps the per-bot breakdown in the human report.
const maxListedBots = 20

// PrintReport outputs a human-readable summary of a finished run.
func PrintReport(w io.Writer, summary swarm.Summary, stats metrics.Stats) {
	fmt.Fprintln(w, "\n--- Quiz Bot Run Results ---")
	fmt.Fprintf(w, "Bots:              %d\n", len(summary.Entries))
	fmt.Fprintf(w, "Completed:         %d\n", summary.Completed)
	fmt.Fprintf(w, "Disconnected:      %d\n", summary.Disconnected)
	fmt.Fprintf(w, "Errored:           %d\n", summary.Errored)
	fmt.Fprintf(w, "Duration:          %s\n", summary.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "Answers:           %d\n", summary.TotalAnswered)
	fmt.Fprintf(w, "Correct:           %d (%.1f%%)\n", summary.TotalCorrect, summary.Accuracy()*100)

	if stats.Answers > 0 {
		fmt.Fprintln(w, "\nAnswer Round-Trip Latency:")
		fmt.Fprintf(w, "  Mean:            %s\n", stats.AnswerMean)
		fmt.Fprintf(w, "  P50:             %s\n", stats.AnswerP50)
		fmt.Fprintf(w, "  P90:             %s\n", stats.AnswerP90)
		fmt.Fprintf(w, "  P99:             %s\n", stats.AnswerP99)
		fmt.Fprintf(w, "  Max:             %s\n", stats.AnswerMax)
	}
	if stats.Connects > 0 {
		fmt.Fprintln(w, "\nConnect Latency:")
		fmt.Fprintf(w, "  P50:             %s\n", stats.ConnectP50)
		fmt.Fprintf(w, "  P99:             %s\n", stats.ConnectP99)
	}

	if len(summary.Entries) > 0 {
		fmt.Fprintln(w, "\nLeaderboard:")
		for i, entry := range summary.Entries {
			if i >= maxListedBots {
				fmt.Fprintf(w, "  ... and %d more bots\n", len(summary.Entries)-maxListedBots)
				break
			}
			fmt.Fprintf(w, "  %2d. %s %s: %d pts (%d/%d correct)\n",
				i+1, statusMarker(entry.Status), entry.Username,
				entry.Score, entry.Correct, entry.Answered)
		}
	}

	if len(stats.Errors) > 0 {
		fmt.Fprintln(w, "\nErrors:")
		for kind, count := range stats.Errors {
			fmt.Fprintf(w, "  %s: %d\n", kind, count)
		}
	}
	fmt.Fprintln(w)
}

func statusMarker(s bot.Status) string {
	switch s {
	case bot.StatusDisconnected:
		return "[lost]"
	case bot.StatusErrored:
		return "[err] "
	default:
		return "[ok]  "
	}
}

// jsonReport is the machine-readable run document.
type jsonReport struct {
	Bots         int            `json:"bots"`
	Completed    int            `json:"completed"`
	Disconnected int            `json:"disconnected"`
	Errored      int            `json:"errored"`
	DurationMs   float64        `json:"duration_ms"`
	Answers      int            `json:"answers"`
	Correct      int            `json:"correct"`
	Accuracy     float64        `json:"accuracy"`
	Scores       map[string]int `json:"scores"`
	Stats        metrics.Stats  `json:"stats"`
}

// PrintJSONReport outputs the run summary as a single JSON document.
func PrintJSONReport(w io.Writer, summary swarm.Summary, stats metrics.Stats) error {
	report := jsonReport{
		Bots:         len(summary.Entries),
		Completed:    summary.Completed,
		Disconnected: summary.Disconnected,
		Errored:      summary.Errored,
		DurationMs:   float64(summary.Elapsed.Microseconds()) / 1000,
		Answers:      summary.TotalAnswered,
		Correct:      summary.TotalCorrect,
		Accuracy:     summary.Accuracy(),
		Scores:       summary.Scores,
		Stats:        stats,
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

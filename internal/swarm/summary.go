package swarm

import (
	"sort"
	"time"

	"github.com/queez/quizbots/internal/bot"
)

// Entry is one bot's terminal state.
type Entry struct {
	ID       string
	Username string
	Score    int
	Answered int
	Correct  int
	Status   bot.Status
}

// Summary is the immutable aggregate built once at the end of a run.
type Summary struct {
	Entries       []Entry        // sorted by score, highest first
	Scores        map[string]int // bot ID -> final score
	Completed     int
	Disconnected  int
	Errored       int
	TotalAnswered int
	TotalCorrect  int
	Elapsed       time.Duration
}

// Failures counts bots that left the run before finishing.
func (s Summary) Failures() int {
	return s.Disconnected + s.Errored
}

// Accuracy is the pool-wide fraction of correct answers.
func (s Summary) Accuracy() float64 {
	if s.TotalAnswered == 0 {
		return 0
	}
	return float64(s.TotalCorrect) / float64(s.TotalAnswered)
}

// Summarize aggregates the pool's terminal state. Pure: it only reads
// session state and never touches connections.
func Summarize(sessions []*bot.Session, elapsed time.Duration) Summary {
	s := Summary{
		Scores:  make(map[string]int, len(sessions)),
		Elapsed: elapsed,
	}

	for _, sess := range sessions {
		entry := Entry{
			ID:       sess.ID(),
			Username: sess.Username(),
			Score:    sess.Score(),
			Answered: sess.Answered(),
			Correct:  sess.Correct(),
			Status:   sess.Status(),
		}
		s.Entries = append(s.Entries, entry)
		s.Scores[entry.ID] = entry.Score
		s.TotalAnswered += entry.Answered
		s.TotalCorrect += entry.Correct

		switch {
		case sess.Completed():
			s.Completed++
		case entry.Status == bot.StatusDisconnected:
			s.Disconnected++
		case entry.Status == bot.StatusErrored:
			s.Errored++
		}
	}

	sort.SliceStable(s.Entries, func(i, j int) bool {
		return s.Entries[i].Score > s.Entries[j].Score
	})
	return s
}

package bot

import (
	"math/rand"
	"time"

	"github.com/queez/quizbots/internal/protocol"
)

// Decision is the outcome of the answer strategy for one question.
type Decision struct {
	Answer int           // option index to submit
	Delay  time.Duration // think time before submitting
}

// Decide picks an answer and a think delay for q according to the
// persona. With probability persona.Accuracy it returns the correct
// option; otherwise it picks uniformly among the wrong ones, falling
// back to the correct option if none exist. The delay is drawn
// uniformly from [MinThink, MaxThink] and capped at the question's time
// limit so submissions are never late by construction.
//
// Decide has no state of its own: given the same question, persona and
// rng it is fully deterministic.
func Decide(q protocol.Question, p Persona, rng *rand.Rand) Decision {
	correct := q.Body.CorrectAnswerIndex

	answer := correct
	if rng.Float64() >= p.Accuracy {
		wrong := make([]int, 0, len(q.Body.Options))
		for i := range q.Body.Options {
			if i != correct {
				wrong = append(wrong, i)
			}
		}
		if len(wrong) > 0 {
			answer = wrong[rng.Intn(len(wrong))]
		}
	}

	return Decision{Answer: answer, Delay: drawDelay(q, p, rng)}
}

func drawDelay(q protocol.Question, p Persona, rng *rand.Rand) time.Duration {
	lo, hi := p.MinThink, p.MaxThink
	if hi < lo {
		hi = lo
	}

	delay := lo
	if hi > lo {
		delay = lo + time.Duration(rng.Int63n(int64(hi-lo)+1))
	}

	if limit := q.TimeLimit(); limit > 0 && delay > limit {
		delay = limit
	}
	if delay < 0 {
		delay = 0
	}
	return delay
}

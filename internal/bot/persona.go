package bot

import (
	"math/rand"
	"time"
)

// Persona is a bot's fixed behavioral profile: how often it answers
// correctly and how long it "thinks" before submitting. Immutable once
// assigned.
type Persona struct {
	Accuracy float64 // probability of choosing the correct option, in [0,1]
	MinThink time.Duration
	MaxThink time.Duration
}

// PersonaRanges describes the configured ranges personas are drawn from.
type PersonaRanges struct {
	AccuracyMin float64
	AccuracyMax float64
	ThinkMin    time.Duration
	ThinkMax    time.Duration
}

// DrawPersona samples a persona from the configured ranges using rng.
func DrawPersona(rng *rand.Rand, r PersonaRanges) Persona {
	acc := r.AccuracyMin
	if r.AccuracyMax > r.AccuracyMin {
		acc += rng.Float64() * (r.AccuracyMax - r.AccuracyMin)
	}
	return Persona{
		Accuracy: acc,
		MinThink: r.ThinkMin,
		MaxThink: r.ThinkMax,
	}
}

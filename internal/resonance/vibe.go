package resonance

import "math"

// VibeState is a coarse bucket over a reading score.
type VibeState string

const (
	VibeLow    VibeState = "low"
	VibeMedium VibeState = "medium"
	VibeHigh   VibeState = "high"
)

// vibeBand covers [From, To). Bands are ordered and contiguous; the first
// starts at math.MinInt and the last ends at math.MaxInt, so every score
// falls into exactly one band. Scores are expected in [0,100].
type vibeBand struct {
	From  int
	To    int
	State VibeState
}

var vibeBands = []vibeBand{
	{From: math.MinInt, To: 20, State: VibeLow},
	{From: 20, To: 60, State: VibeMedium},
	{From: 60, To: math.MaxInt, State: VibeHigh},
}

// ClassifyVibe maps a score onto its band. A boundary value belongs to the
// band it opens.
func ClassifyVibe(score int) VibeState {
	for _, b := range vibeBands {
		if score >= b.From && score < b.To {
			return b.State
		}
	}
	// only math.MaxInt itself reaches here
	return vibeBands[len(vibeBands)-1].State
}

func clampScore(score int) int {
	switch {
	case score < 0:
		return 0
	case score > 100:
		return 100
	}
	return score
}

package resonance

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"dreamcatcher/internal/domain"
)

// Variant names a scoring strategy. Variants are not interchangeable; a
// reading always carries the variant that produced it.
type Variant string

const (
	VariantTrigram      Variant = "v1-trigram"
	VariantDomainMatrix Variant = "v2-domain-matrix"
	VariantTriFactor    Variant = "v3-tri-factor"
)

var variantAliases = map[string]Variant{
	"v1": VariantTrigram,
	"v2": VariantDomainMatrix,
	"v3": VariantTriFactor,
}

// ParseVariant accepts a full variant name or its short alias.
func ParseVariant(s string) (Variant, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if v, ok := variantAliases[s]; ok {
		return v, nil
	}
	switch Variant(s) {
	case VariantTrigram, VariantDomainMatrix, VariantTriFactor:
		return Variant(s), nil
	}
	return "", fmt.Errorf("%w: %q", domain.ErrUnknownVariant, s)
}

// Inputs are the seeds of a reading.
type Inputs struct {
	A      int       `json:"a"`
	B      int       `json:"b"`
	C      int       `json:"c"`
	Mode   Mode      `json:"mode"`
	Locale string    `json:"locale"`
	At     time.Time `json:"-"`
}

// Reading is the computed output of a strategy.
type Reading struct {
	Variant        Variant        `json:"variant"`
	Inputs         Inputs         `json:"inputs"`
	Upper          Trigram        `json:"upperTrigram"`
	Lower          Trigram        `json:"lowerTrigram"`
	MovingPosition int            `json:"movingPosition"`
	Score          int            `json:"score"`
	Vibe           VibeState      `json:"vibeState"`
	Mode           Mode           `json:"mode"`
	Card           Card           `json:"card"`
	Details        map[string]any `json:"details,omitempty"`
	Timestamp      time.Time      `json:"timestamp"`
}

// Card is the rendered card chosen for a reading.
type Card struct {
	Template string `json:"template"`
	Advisory
}

// Strategy computes a reading. Compute must be deterministic in its inputs.
type Strategy interface {
	Variant() Variant
	Compute(in Inputs) Reading
}

// assemble fills in the parts of a reading shared by every strategy.
func assemble(v Variant, in Inputs, score int, details map[string]any) Reading {
	if in.Mode == "" {
		in.Mode = ModeGuest
	}
	upper, lower, moving := ComputeTrigrams(in.A, in.B, in.C)
	score = clampScore(score)
	vibe := ClassifyVibe(score)
	tpl := SelectCardTemplate(in.Mode, vibe, Pair{Upper: upper, Lower: lower})
	adv := RenderAdvisory(tpl, AdvisoryContext{
		Upper:   upper,
		Lower:   lower,
		Moving:  moving,
		Score:   score,
		Vibe:    vibe,
		Mode:    in.Mode,
		Variant: v,
		Locale:  in.Locale,
	})
	return Reading{
		Variant:        v,
		Inputs:         in,
		Upper:          upper,
		Lower:          lower,
		MovingPosition: moving,
		Score:          score,
		Vibe:           vibe,
		Mode:           in.Mode,
		Card:           Card{Template: tpl.Key, Advisory: adv},
		Details:        details,
		Timestamp:      in.At,
	}
}

// Engine dispatches readings to an explicitly selected strategy.
type Engine struct {
	strategies map[Variant]Strategy
	now        func() time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithClock sets the clock used to stamp readings without a time.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// WithStrategy registers or replaces a strategy.
func WithStrategy(s Strategy) EngineOption {
	return func(e *Engine) { e.strategies[s.Variant()] = s }
}

// NewEngine returns an engine with the three built-in strategies.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		strategies: map[Variant]Strategy{},
		now:        time.Now,
	}
	for _, s := range []Strategy{TrigramStrategy{}, DomainMatrixStrategy{}, TriFactorStrategy{}} {
		e.strategies[s.Variant()] = s
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Read computes a reading with the requested variant. Unknown variants are
// an error; the engine never substitutes another strategy.
func (e *Engine) Read(v Variant, in Inputs) (Reading, error) {
	s, ok := e.strategies[v]
	if !ok {
		return Reading{}, fmt.Errorf("%w: %q", domain.ErrUnknownVariant, v)
	}
	if in.At.IsZero() {
		in.At = e.now().UTC()
	}
	return s.Compute(in), nil
}

// Variants lists the registered variants in name order.
func (e *Engine) Variants() []Variant {
	out := make([]Variant, 0, len(e.strategies))
	for v := range e.strategies {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

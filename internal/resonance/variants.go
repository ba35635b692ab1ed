package resonance

// TrigramStrategy scores the five-element relation of the lower trigram
// (self) to the upper trigram (situation). A moving line in the lower half
// means the self is in flux and costs a little; in the upper half the
// situation is shifting and helps a little.
type TrigramStrategy struct{}

var relationScores = map[Relation]int{
	RelationSupported:  85,
	RelationSame:       65,
	RelationConquering: 55,
	RelationDraining:   35,
	RelationPressured:  15,
}

const movingLineShift = 5

func (TrigramStrategy) Variant() Variant { return VariantTrigram }

func (s TrigramStrategy) Compute(in Inputs) Reading {
	upper, lower, moving := ComputeTrigrams(in.A, in.B, in.C)
	rel := Relate(lower.Element(), upper.Element())
	score := relationScores[rel]
	if moving <= 3 {
		score -= movingLineShift
	} else {
		score += movingLineShift
	}
	return assemble(s.Variant(), in, score, map[string]any{
		"relation":         rel,
		"selfElement":      lower.Element(),
		"situationElement": upper.Element(),
	})
}

// Domain is a life area scored by DomainMatrixStrategy.
type Domain string

const (
	DomainCareer       Domain = "career"
	DomainWealth       Domain = "wealth"
	DomainRelationship Domain = "relationship"
	DomainHealth       Domain = "health"
	DomainStudy        Domain = "study"
)

var domainOrder = []Domain{DomainCareer, DomainWealth, DomainRelationship, DomainHealth, DomainStudy}

// affinity[d][t] is in [0,10]; columns follow trigram index order
// Kun, Qian, Dui, Li, Zhen, Xun, Kan, Gen.
var affinity = map[Domain][8]int{
	DomainCareer:       {3, 9, 5, 7, 8, 6, 1, 4},
	DomainWealth:       {6, 7, 9, 5, 4, 8, 1, 7},
	DomainRelationship: {8, 3, 9, 6, 4, 7, 2, 1},
	DomainHealth:       {7, 5, 4, 2, 8, 6, 3, 9},
	DomainStudy:        {4, 8, 2, 9, 6, 7, 8, 5},
}

const (
	upperWeight = 6
	lowerWeight = 4
)

// DomainMatrixStrategy scores every domain as
// 6·affinity[upper] + 4·affinity[lower] (so 0..100). The moving line picks
// the focus domain and the reading score is that domain's score.
type DomainMatrixStrategy struct{}

func (DomainMatrixStrategy) Variant() Variant { return VariantDomainMatrix }

func (s DomainMatrixStrategy) Compute(in Inputs) Reading {
	upper, lower, moving := ComputeTrigrams(in.A, in.B, in.C)
	scores := DomainScores(upper, lower)
	focus := domainOrder[(moving-1)%len(domainOrder)]
	return assemble(s.Variant(), in, scores[focus], map[string]any{
		"domains": scores,
		"focus":   focus,
	})
}

// DomainScores returns the per-domain scores for a trigram pair.
func DomainScores(upper, lower Trigram) map[Domain]int {
	out := make(map[Domain]int, len(domainOrder))
	for _, d := range domainOrder {
		row := affinity[d]
		out[d] = upperWeight*row[upper.Info().Index] + lowerWeight*row[lower.Info().Index]
	}
	return out
}

// Factor names one of the three tri-factor inputs.
type Factor string

const (
	FactorTime   Factor = "time"
	FactorSpace  Factor = "space"
	FactorPerson Factor = "person"
)

// TriFactorStrategy reduces the time (A), space (B) and person (C) inputs to
// numerology digits 1..9 and scores how closely they agree: the sum of
// pairwise distances is at most 16, and score = 100 - spread·100/16.
type TriFactorStrategy struct{}

const maxSpread = 16

func (TriFactorStrategy) Variant() Variant { return VariantTriFactor }

func (s TriFactorStrategy) Compute(in Inputs) Reading {
	f := [3]int{reduceToDigit(in.A), reduceToDigit(in.B), reduceToDigit(in.C)}
	spread := abs(f[0]-f[1]) + abs(f[1]-f[2]) + abs(f[0]-f[2])
	score := 100 - spread*100/maxSpread
	names := [3]Factor{FactorTime, FactorSpace, FactorPerson}
	dominant := 0
	for i := 1; i < len(f); i++ {
		if f[i] > f[dominant] {
			dominant = i
		}
	}
	return assemble(s.Variant(), in, score, map[string]any{
		"factors": map[Factor]int{
			FactorTime:   f[0],
			FactorSpace:  f[1],
			FactorPerson: f[2],
		},
		"spread":   spread,
		"dominant": names[dominant],
	})
}

// reduceToDigit maps any integer onto 1..9.
func reduceToDigit(n int) int {
	return mod(n, 9) + 1
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

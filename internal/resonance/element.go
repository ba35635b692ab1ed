package resonance

// Element is one of the five phases.
type Element string

const (
	Wood  Element = "wood"
	Fire  Element = "fire"
	Earth Element = "earth"
	Metal Element = "metal"
	Water Element = "water"
)

var generates = map[Element]Element{
	Wood:  Fire,
	Fire:  Earth,
	Earth: Metal,
	Metal: Water,
	Water: Wood,
}

var controls = map[Element]Element{
	Wood:  Earth,
	Earth: Water,
	Water: Fire,
	Fire:  Metal,
	Metal: Wood,
}

// Relation describes how a situation element acts on a self element.
type Relation string

const (
	RelationSame       Relation = "same"
	RelationSupported  Relation = "supported"  // situation generates self
	RelationDraining   Relation = "draining"   // self generates situation
	RelationConquering Relation = "conquering" // self controls situation
	RelationPressured  Relation = "pressured"  // situation controls self
)

// Relate classifies the pair. The five cases are exhaustive for any two
// phases.
func Relate(self, situation Element) Relation {
	switch {
	case self == situation:
		return RelationSame
	case generates[situation] == self:
		return RelationSupported
	case generates[self] == situation:
		return RelationDraining
	case controls[self] == situation:
		return RelationConquering
	default:
		return RelationPressured
	}
}

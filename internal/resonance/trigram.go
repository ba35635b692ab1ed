// Package resonance computes deterministic symbolic readings from small
// integer seeds. Nothing in this package performs I/O or reads the clock.
package resonance

import "encoding/json"

// Trigram is one of the eight symbolic states, numbered the plum-blossom
// way: 1 Qian through 7 Gen, with 0 standing in for 8 (Kun).
type Trigram int

const (
	Kun Trigram = iota
	Qian
	Dui
	Li
	Zhen
	Xun
	Kan
	Gen
)

// TrigramInfo is the display form of a trigram.
type TrigramInfo struct {
	Index   int     `json:"index"`
	Name    string  `json:"name"`
	Chinese string  `json:"chinese"`
	Symbol  string  `json:"symbol"`
	Image   string  `json:"image"`
	Element Element `json:"element"`
}

var trigramTable = [8]TrigramInfo{
	{Index: 0, Name: "Kun", Chinese: "坤", Symbol: "☷", Image: "Earth", Element: Earth},
	{Index: 1, Name: "Qian", Chinese: "乾", Symbol: "☰", Image: "Heaven", Element: Metal},
	{Index: 2, Name: "Dui", Chinese: "兑", Symbol: "☱", Image: "Lake", Element: Metal},
	{Index: 3, Name: "Li", Chinese: "离", Symbol: "☲", Image: "Fire", Element: Fire},
	{Index: 4, Name: "Zhen", Chinese: "震", Symbol: "☳", Image: "Thunder", Element: Wood},
	{Index: 5, Name: "Xun", Chinese: "巽", Symbol: "☴", Image: "Wind", Element: Wood},
	{Index: 6, Name: "Kan", Chinese: "坎", Symbol: "☵", Image: "Water", Element: Water},
	{Index: 7, Name: "Gen", Chinese: "艮", Symbol: "☶", Image: "Mountain", Element: Earth},
}

// TrigramOf normalizes any integer onto the eight trigrams.
func TrigramOf(n int) Trigram {
	return Trigram(mod(n, 8))
}

// Info returns the trigram's display attributes.
func (t Trigram) Info() TrigramInfo {
	return trigramTable[mod(int(t), 8)]
}

// Element returns the trigram's phase.
func (t Trigram) Element() Element {
	return t.Info().Element
}

// Label renders the trigram name for a locale.
func (t Trigram) Label(locale string) string {
	info := t.Info()
	if locale == LocaleChinese {
		return info.Chinese
	}
	return info.Name + " (" + info.Image + ")"
}

func (t Trigram) String() string {
	return t.Info().Name
}

func (t Trigram) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Info())
}

// Pair is an upper and lower trigram, the two halves of a hexagram.
type Pair struct {
	Upper Trigram
	Lower Trigram
}

// PairKind groups pairs for card selection.
type PairKind string

const (
	PairPlain  PairKind = "plain"
	PairMirror PairKind = "mirror"
)

// Kind reports whether both halves are the same trigram.
func (p Pair) Kind() PairKind {
	if p.Upper == p.Lower {
		return PairMirror
	}
	return PairPlain
}

// ComputeTrigrams derives the upper and lower trigram and the moving line
// from three seeds:
//
//	upper  = (a+b) mod 8
//	lower  = (b+c) mod 8
//	moving = (a+b+c) mod 6 + 1
//
// Every integer is accepted. Operands are reduced before adding, so the
// result never overflows and is always a non-negative residue.
func ComputeTrigrams(a, b, c int) (upper, lower Trigram, moving int) {
	upper = Trigram(mod(mod(a, 8)+mod(b, 8), 8))
	lower = Trigram(mod(mod(b, 8)+mod(c, 8), 8))
	moving = mod(mod(a, 6)+mod(b, 6)+mod(c, 6), 6) + 1
	return upper, lower, moving
}

// mod returns the non-negative residue of n modulo m.
func mod(n, m int) int {
	r := n % m
	if r < 0 {
		r += m
	}
	return r
}

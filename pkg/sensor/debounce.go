// Debounce gate for raw presence candidates.
//
// Copyright (C) 2025 mmu-sensors-go authors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package sensor

// DebounceGate accepts a presence candidate only after it has held
// steady for a full debounce window, and forwards only edges: steady
// repetition of an already-accepted value is absorbed.
type DebounceGate struct {
	interval float64

	lastCandidate  *bool
	lastChangeTime float64
	lastAccepted   *bool
}

// NewDebounceGate creates a gate with the given hysteresis window in
// seconds.
func NewDebounceGate(interval float64) *DebounceGate {
	return &DebounceGate{interval: interval}
}

// Update feeds one candidate reading. It returns true when the candidate
// is accepted as a stable edge; the accepted value is the candidate
// itself.
func (g *DebounceGate) Update(readTime float64, candidate bool) bool {
	if g.lastCandidate == nil || *g.lastCandidate != candidate {
		g.lastChangeTime = readTime
	}

	accepted := false
	if (readTime-g.lastChangeTime) >= g.interval &&
		g.lastCandidate != nil && *g.lastCandidate == candidate &&
		(g.lastAccepted == nil || *g.lastAccepted != candidate) {
		v := candidate
		g.lastAccepted = &v
		accepted = true
	}

	c := candidate
	g.lastCandidate = &c
	return accepted
}

// Accepted returns the last accepted stable value, or nil before any
// reading has survived the window.
func (g *DebounceGate) Accepted() *bool {
	return g.lastAccepted
}

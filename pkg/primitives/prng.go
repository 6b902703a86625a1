package primitives

import "math/rand"

// PseudoRandom is a deterministic, replayable source of randomness for
// message-identifier draws. Chain state owns one instance, seeded once
// at ActionInitChain and advanced only inside the pure transition, so
// that replaying the state-change log from a snapshot reproduces every
// draw exactly (spec §3, §8 replay-determinism property).
//
// math/rand.Rand's internal state is itself deterministic given the
// same seed and the same sequence of draws, which is exactly the
// property we need; we snapshot (Seed, DrawCount) and replay by
// re-seeding and re-drawing DrawCount times.
type PseudoRandom struct {
	Seed      int64
	DrawCount uint64
	rng       *rand.Rand
}

// NewPseudoRandom seeds a fresh generator.
func NewPseudoRandom(seed int64) *PseudoRandom {
	return &PseudoRandom{Seed: seed, rng: rand.New(rand.NewSource(seed))}
}

// rebuild constructs a *rand.Rand positioned at exactly DrawCount draws
// past the seed, used lazily after construction or after a gob-decode
// where the unexported *rand.Rand field was not serialized.
func (p *PseudoRandom) rebuild() *rand.Rand {
	r := rand.New(rand.NewSource(p.Seed))
	for i := uint64(0); i < p.DrawCount; i++ {
		r.Uint64()
	}
	return r
}

func (p *PseudoRandom) rngFor() *rand.Rand {
	if p.rng == nil {
		p.rng = p.rebuild()
	}
	return p.rng
}

// Clone returns an independent copy positioned at the same draw count,
// so a chain-state transition can draw from a copy without mutating the
// caller's view until the new state is committed.
func (p *PseudoRandom) Clone() *PseudoRandom {
	return &PseudoRandom{Seed: p.Seed, DrawCount: p.DrawCount, rng: p.rebuild()}
}

// NextMessageIdentifier draws the next 64-bit message identifier.
func (p *PseudoRandom) NextMessageIdentifier() uint64 {
	r := p.rngFor()
	p.DrawCount++
	return r.Uint64()
}

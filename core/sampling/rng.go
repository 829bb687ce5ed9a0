package sampling

import "math/rand/v2"

// golden is the 64-bit golden ratio, used to decorrelate derived streams.
const golden = 0x9e3779b97f4a7c15

// NewStream returns a deterministic generator for a named component stream.
// Distinct stream ids under the same seed give independent sequences, so each
// component (sampler, optimizer search, Monte-Carlo draws) can be seeded
// without sharing a generator.
func NewStream(seed, stream uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, stream*golden+1))
}

// Stream ids used across a run.
const (
	StreamTraining uint64 = iota + 1
	StreamPriorSearch
	StreamPriorDraws
	StreamRevealed
	StreamValidation
	StreamSurrogate
	// StreamPosterior is the first id of the per-problem posterior streams.
	// Problem i uses StreamPosterior+2i for its search and
	// StreamPosterior+2i+1 for its Monte-Carlo draws.
	StreamPosterior
)

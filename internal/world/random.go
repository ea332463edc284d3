package world

import (
	"hash/fnv"
	"math"
	"math/rand"
)

const spawnCandidates = 10

// RNGFactory produces deterministic RNG instances for world subsystems.
type RNGFactory func(rootSeed, label string) *rand.Rand

func DeterministicSeedValue(rootSeed, label string) int64 {
	hasher := fnv.New64a()
	hasher.Write([]byte(rootSeed))
	hasher.Write([]byte{0})
	hasher.Write([]byte(label))
	sum := hasher.Sum64()
	if sum == 0 {
		sum = 1
	}
	return int64(sum)
}

func NewDeterministicRNG(rootSeed, label string) *rand.Rand {
	seedValue := DeterministicSeedValue(rootSeed, label)
	return rand.New(rand.NewSource(seedValue))
}

// RandomPosition picks a point at least radius away from every world edge.
func (w *World) RandomPosition(radius float64) (float64, float64) {
	return randomBetween(w.rng, radius, w.config.Width-radius), randomBetween(w.rng, radius, w.config.Height-radius)
}

// UniformPosition samples a handful of random candidates and keeps the one
// farthest from every existing player centre.
func (w *World) UniformPosition(radius float64) (float64, float64) {
	if len(w.players) == 0 {
		return w.RandomPosition(radius)
	}
	bestX, bestY := w.RandomPosition(radius)
	best := -1.0
	for i := 0; i < spawnCandidates; i++ {
		x, y := w.RandomPosition(radius)
		nearest := math.Inf(1)
		for _, p := range w.players {
			if d := math.Hypot(p.X-x, p.Y-y); d < nearest {
				nearest = d
			}
		}
		if nearest > best {
			best = nearest
			bestX, bestY = x, y
		}
	}
	return bestX, bestY
}

// SpawnPosition applies the configured spawn policy.
func (w *World) SpawnPosition(radius float64) (float64, float64) {
	if w.config.SpawnPolicy == SpawnRandom {
		return w.RandomPosition(radius)
	}
	return w.UniformPosition(radius)
}

func randomBetween(rng *rand.Rand, min, max float64) float64 {
	if max <= min {
		return min
	}
	return min + rng.Float64()*(max-min)
}

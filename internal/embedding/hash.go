package embedding

import (
	"context"
	"math"
	"strings"
)

// HashDims is the fixed dimensionality of the hash fallback tier.
const HashDims = 64

// Distinct FNV-style seeds; each hash contributes dimsPerSeed dimensions.
var hashSeeds = [4]uint64{
	0xcbf29ce484222325, // FNV-1a offset basis
	0x9e3779b97f4a7c15, // golden ratio
	0xbf58476d1ce4e5b9,
	0x94d049bb133111eb,
}

const dimsPerSeed = HashDims / len(hashSeeds)

// HashProvider is the deterministic fallback embedding tier. It has no
// semantic meaning beyond exact/near-exact text identity; it exists so that
// every stored text carries some vector even with no model available.
type HashProvider struct{}

func (HashProvider) Name() string { return "hash" }

// Embed returns a 64-dim unit vector derived from the normalized text,
// or an empty vector for empty/whitespace-only input.
func (HashProvider) Embed(_ context.Context, text string) ([]float32, error) {
	return HashEmbed(text), nil
}

// HashEmbed computes the hash pseudo-embedding directly.
func HashEmbed(text string) []float32 {
	norm := strings.ToLower(strings.TrimSpace(text))
	if norm == "" {
		return nil
	}

	vec := make([]float32, 0, HashDims)
	for _, seed := range hashSeeds {
		h := fnvWithSeed(norm, seed)
		// Expand one 64-bit hash into dimsPerSeed dimensions by shifting
		// out 4 bits at a time and masking a byte.
		for j := 0; j < dimsPerSeed; j++ {
			b := (h >> (uint(j) * 4)) & 0xff
			vec = append(vec, float32(b)/255.0-0.5)
		}
	}

	return l2Normalize(vec)
}

func fnvWithSeed(s string, seed uint64) uint64 {
	const prime = 0x100000001b3
	h := seed
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= prime
	}
	return h
}

func l2Normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return vec
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}

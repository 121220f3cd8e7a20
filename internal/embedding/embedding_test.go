package embedding

import (
	"context"
	"testing"
)

func TestCosineSimilarity(t *testing.T) {
	// Identical vectors → 1.0
	a := []float32{1, 0, 0}
	b := []float32{1, 0, 0}
	if sim := CosineSimilarity(a, b); sim < 0.99 {
		t.Errorf("identical vectors: similarity = %f, want ~1.0", sim)
	}

	// Orthogonal vectors → 0.0
	a = []float32{1, 0}
	b = []float32{0, 1}
	if sim := CosineSimilarity(a, b); sim > 0.01 {
		t.Errorf("orthogonal vectors: similarity = %f, want ~0.0", sim)
	}

	// Opposite vectors → -1.0
	a = []float32{1, 0}
	b = []float32{-1, 0}
	if sim := CosineSimilarity(a, b); sim > -0.99 {
		t.Errorf("opposite vectors: similarity = %f, want ~-1.0", sim)
	}
}

func TestCosineSimilarity_DegenerateInputs(t *testing.T) {
	cases := []struct {
		name string
		a, b []float32
	}{
		{"both empty", nil, nil},
		{"one empty", []float32{1, 2}, nil},
		{"mismatched length", []float32{1, 2}, []float32{1, 2, 3}},
		{"zero norm", []float32{0, 0}, []float32{1, 1}},
	}
	for _, tc := range cases {
		if sim := CosineSimilarity(tc.a, tc.b); sim != 0 {
			t.Errorf("%s: similarity = %f, want 0", tc.name, sim)
		}
	}
}

func TestCosineSimilarity_Bounds(t *testing.T) {
	a := []float32{0.3, -0.7, 2.1, 0.01}
	b := []float32{-1.4, 0.2, 0.9, 3.3}
	sim := CosineSimilarity(a, b)
	if sim < -1.0 || sim > 1.0 {
		t.Errorf("similarity out of bounds: %f", sim)
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	vec := []float32{0.1, -2.5, 3.25, 0}
	got := Deserialize(Serialize(vec))
	if len(got) != len(vec) {
		t.Fatalf("length = %d, want %d", len(got), len(vec))
	}
	for i := range vec {
		if got[i] != vec[i] {
			t.Errorf("dim %d = %f, want %f", i, got[i], vec[i])
		}
	}
}

func TestDeserialize_BadBlob(t *testing.T) {
	if vec := Deserialize([]byte{1, 2, 3}); vec != nil {
		t.Errorf("truncated blob should yield nil, got %v", vec)
	}
	if vec := Deserialize(nil); vec != nil {
		t.Errorf("empty blob should yield nil, got %v", vec)
	}
}

func TestHashEmbed_EmptyInput(t *testing.T) {
	if vec := HashEmbed(""); len(vec) != 0 {
		t.Errorf("empty input should yield empty vector, got %d dims", len(vec))
	}
	if vec := HashEmbed("   \n\t"); len(vec) != 0 {
		t.Errorf("whitespace input should yield empty vector, got %d dims", len(vec))
	}
}

func TestHashEmbed_DeterministicAndNormalized(t *testing.T) {
	a := HashEmbed("Paris is in France")
	b := HashEmbed("paris is in france") // case-insensitive normalization
	if len(a) != HashDims {
		t.Fatalf("dims = %d, want %d", len(a), HashDims)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("hash embedding not normalization-stable at dim %d", i)
		}
	}

	// Unit length
	if sim := CosineSimilarity(a, a); sim < 0.999 {
		t.Errorf("self-similarity = %f, want ~1.0", sim)
	}

	// Different texts should differ
	c := HashEmbed("a completely different sentence")
	same := true
	for i := range a {
		if a[i] != c[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("distinct texts produced identical hash embeddings")
	}
}

func TestTiered_FallsBackToHash(t *testing.T) {
	// No primary configured → hash tier.
	tiered := NewTiered(nil)
	vec, err := tiered.Embed(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != HashDims {
		t.Errorf("dims = %d, want %d", len(vec), HashDims)
	}

	// Failing primary → hash tier, no error surfaced.
	tiered = NewTiered(failingProvider{})
	vec, err = tiered.Embed(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("Embed with failing primary: %v", err)
	}
	if len(vec) != HashDims {
		t.Errorf("dims = %d, want %d", len(vec), HashDims)
	}
}

type failingProvider struct{}

func (failingProvider) Name() string { return "failing" }
func (failingProvider) Embed(context.Context, string) ([]float32, error) {
	return nil, ErrUnavailable
}

type countingProvider struct{ calls int }

func (p *countingProvider) Name() string { return "counting" }
func (p *countingProvider) Embed(_ context.Context, text string) ([]float32, error) {
	p.calls++
	return HashEmbed(text), nil
}

func TestCached_HitsOnce(t *testing.T) {
	inner := &countingProvider{}
	cached, err := NewCached(inner, 8)
	if err != nil {
		t.Fatalf("NewCached: %v", err)
	}

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := cached.Embed(ctx, "same text"); err != nil {
			t.Fatalf("Embed: %v", err)
		}
	}

	if inner.calls != 1 {
		t.Errorf("inner calls = %d, want 1", inner.calls)
	}
}

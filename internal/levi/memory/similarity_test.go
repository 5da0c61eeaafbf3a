package memory

import (
	"math"
	"testing"
)

func TestCosine_Identical(t *testing.T) {
	v := []float32{0.3, -1.2, 4.5}
	if sim := Cosine(v, v); math.Abs(sim-1.0) > 1e-9 {
		t.Errorf("self-similarity = %v, want 1.0", sim)
	}
}

func TestCosine_Symmetric(t *testing.T) {
	a := []float32{1, 2, 3}
	b := []float32{-2, 0.5, 7}
	if Cosine(a, b) != Cosine(b, a) {
		t.Errorf("Cosine(a,b)=%v != Cosine(b,a)=%v", Cosine(a, b), Cosine(b, a))
	}
}

func TestCosine_Orthogonal(t *testing.T) {
	if sim := Cosine([]float32{1, 0}, []float32{0, 1}); sim != 0 {
		t.Errorf("orthogonal similarity = %v, want 0", sim)
	}
}

func TestCosine_Opposite(t *testing.T) {
	if sim := Cosine([]float32{1, 0}, []float32{-1, 0}); math.Abs(sim+1.0) > 1e-9 {
		t.Errorf("opposite similarity = %v, want -1.0", sim)
	}
}

func TestCosine_Undefined(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
	}{
		{"both nil", nil, nil},
		{"one nil", []float32{1, 2}, nil},
		{"length mismatch", []float32{1, 2}, []float32{1, 2, 3}},
		{"both empty", []float32{}, []float32{}},
		{"zero magnitude", []float32{0, 0}, []float32{1, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if sim := Cosine(tt.a, tt.b); sim != 0 {
				t.Errorf("Cosine(%v, %v) = %v, want 0", tt.a, tt.b, sim)
			}
		})
	}
}

func TestCosine_KnownValue(t *testing.T) {
	// [1,0] vs [0.9,0.1] → 0.9/sqrt(0.82) ≈ 0.99388
	sim := Cosine([]float32{1, 0}, []float32{0.9, 0.1})
	want := 0.9 / math.Sqrt(0.82)
	if math.Abs(sim-want) > 1e-6 {
		t.Errorf("similarity = %v, want %v", sim, want)
	}
}

package ai

import "math"

// NormalizeVector scales a vector to unit length in place and returns it.
// Zero vectors are returned unchanged. Normalized vectors let the index
// use the dot product as cosine similarity.
func NormalizeVector(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}

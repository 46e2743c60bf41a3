package ml

import "github.com/montanaflynn/stats"

// NormalizeConfidences maps raw per-object confidence values into [0, 1].
// Values already inside the unit interval pass through untouched. If any value
// falls outside it, the whole slice is treated as logits and run through a
// sigmoid.
func NormalizeConfidences(in []float64) []float64 {
	if len(in) == 0 {
		return in
	}
	for _, v := range in {
		if v < 0 || v > 1 {
			out, err := stats.Sigmoid(in)
			if err != nil {
				return in
			}
			return out
		}
	}
	return in
}

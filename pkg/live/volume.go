package live

import "math"

// Level is the mean absolute amplitude of a frame scaled to 0..255.
func Level(samples []float32) uint8 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += math.Abs(float64(s))
	}
	v := sum / float64(len(samples)) * 255
	if math.IsNaN(v) {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

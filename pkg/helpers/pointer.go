package helpers

// Float32Pointer converts a configured float64 to the float32 pointer the
// provider SDK expects.
func Float32Pointer(f float64) *float32 {
	v := float32(f)
	return &v
}

func Float64Pointer(f float64) *float64 {
	return &f
}

package extraction

// Gradient returns dy/dx using second-order central differences in the
// interior and first-order one-sided differences at both ends. Spacing may be
// non-uniform; when every step is identical the uniform formula is used so
// results match a scalar-spacing gradient bit for bit.
//
// len(x) must equal len(y) and be at least 2.
func Gradient(y, x []float64) []float64 {
	n := len(y)
	out := make([]float64, n)
	if n < 2 {
		return out
	}

	if h, ok := uniformStep(x); ok {
		out[0] = (y[1] - y[0]) / h
		out[n-1] = (y[n-1] - y[n-2]) / h
		for i := 1; i < n-1; i++ {
			out[i] = (y[i+1] - y[i-1]) / (2 * h)
		}
		return out
	}

	out[0] = (y[1] - y[0]) / (x[1] - x[0])
	out[n-1] = (y[n-1] - y[n-2]) / (x[n-1] - x[n-2])
	for i := 1; i < n-1; i++ {
		hs := x[i] - x[i-1]
		hd := x[i+1] - x[i]
		a := -hd / (hs * (hd + hs))
		b := (hd - hs) / (hd * hs)
		c := hs / (hd * (hd + hs))
		out[i] = a*y[i-1] + b*y[i] + c*y[i+1]
	}
	return out
}

func uniformStep(x []float64) (float64, bool) {
	h := x[1] - x[0]
	for i := 2; i < len(x); i++ {
		if x[i]-x[i-1] != h {
			return 0, false
		}
	}
	return h, true
}

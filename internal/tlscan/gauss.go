package tlscan

import "math"

// Gaussian evaluates a unit-area normal distribution of width sigma centred
// on mu at x.
func Gaussian(x, sigma, mu float64) float64 {
	d := x - mu
	return math.Exp(-d*d/(2*sigma*sigma)) / (sigma * math.Sqrt(2*math.Pi))
}

// DetermineGaussSep returns the distance from the centre of a return pulse
// of width sigma at which its unit-area Gaussian drops to thresh. Two
// returns closer than this cannot be told apart.
//
// Returns 0 when the pulse peak is already at or below thresh and
// SepUndefined when sigma or thresh is not a positive finite number.
func DetermineGaussSep(sigma, thresh float32) float32 {
	s, t := float64(sigma), float64(thresh)
	if !(s > 0) || !(t > 0) || math.IsInf(s, 0) || math.IsInf(t, 0) {
		return SepUndefined
	}

	peak := 1 / (s * math.Sqrt(2*math.Pi))
	if peak <= t {
		return 0
	}

	// exp(-x²/2σ²)·peak = t  =>  x = σ·sqrt(2·ln(peak/t))
	x := s * math.Sqrt(2*math.Log(peak/t))
	if math.IsNaN(x) || math.IsInf(x, 0) || x > math.MaxFloat32 {
		return SepUndefined
	}
	return float32(x)
}

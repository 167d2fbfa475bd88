package panorama

import "math"

// CalculateX maps an azimuth in degrees (-180..180) onto a column of an
// image width pixels wide.
func CalculateX(width int, azDeg float64) float64 {
	return float64(width) * (azDeg + 180) / 360
}

// CalculateY maps a zenith angle in degrees onto the vertical axis of a
// conformal projection scaled to width. Smaller zeniths map higher.
func CalculateY(width int, zenDeg float64) float64 {
	return float64(width) / (2 * math.Pi) * math.Log(1/math.Tan(zenDeg*math.Pi/360))
}

// DistanceFromZenithRange returns the horizontal distance of a return at
// range r along a beam with zenith zenDeg.
func DistanceFromZenithRange(zenDeg, r float64) float64 {
	return math.Cos((90-zenDeg)*math.Pi/180) * r
}

// GaussianSmooth weights x by a Gaussian of width sigma centred on zero.
func GaussianSmooth(x, sigma float64) float64 {
	s2 := 2 * sigma
	return 1 / math.Sqrt(math.Pi*s2) * math.Exp(-(x*x)/(s2*s2))
}

// NormalizeToUint8 scales x from [min, max] to 0..255. Values outside the
// range are clamped; a degenerate range maps to 0.
func NormalizeToUint8(x, min, max float64) uint8 {
	if !(max > min) || math.IsNaN(x) {
		return 0
	}
	v := 255 * (x - min) / (max - min)
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	}
	return uint8(v)
}

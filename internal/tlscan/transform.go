package tlscan

import "math"

// RotateX rotates v about the horizontal (X) axis by theta radians.
// The result is written through v.
func RotateX(v *[3]float64, theta float64) {
	s, c := math.Sincos(theta)
	y := v[1]*c - v[2]*s
	z := v[1]*s + v[2]*c
	v[1], v[2] = y, z
}

// RotateZ rotates v about the vertical (Z) axis by theta radians.
// The result is written through v.
func RotateZ(v *[3]float64, theta float64) {
	s, c := math.Sincos(theta)
	x := v[0]*c - v[1]*s
	y := v[0]*s + v[1]*c
	v[0], v[1] = x, y
}

// PolarToCartesian converts a range along zenith/azimuth (radians) into an
// offset from the beam origin.
// Convention: azimuth 0 points along +Y, zenith 0 points along +Z.
func PolarToCartesian(zen, az, r float64) (x, y, z float64) {
	sinZen, cosZen := math.Sincos(zen)
	sinAz, cosAz := math.Sincos(az)

	x = r * sinZen * sinAz
	y = r * sinZen * cosAz
	z = r * cosZen
	return
}

// CartesianToPolar inverts PolarToCartesian. Azimuth is in (-π, π].
// A zero vector yields all zeros.
func CartesianToPolar(x, y, z float64) (zen, az, r float64) {
	r = math.Sqrt(x*x + y*y + z*z)
	if r == 0 {
		return 0, 0, 0
	}
	zen = math.Acos(math.Max(-1, math.Min(1, z/r)))
	az = math.Atan2(x, y)
	return
}

// applyMatrix applies the 4x4 row-major transform in reg to v.
func applyMatrix(reg MatrixRegistration, v *[3]float64) {
	if reg.M == nil {
		return
	}
	m := reg.M
	x := m.At(0, 0)*v[0] + m.At(0, 1)*v[1] + m.At(0, 2)*v[2] + m.At(0, 3)
	y := m.At(1, 0)*v[0] + m.At(1, 1)*v[1] + m.At(1, 2)*v[2] + m.At(1, 3)
	z := m.At(2, 0)*v[0] + m.At(2, 1)*v[1] + m.At(2, 2)*v[2] + m.At(2, 3)
	v[0], v[1], v[2] = x, y, z
}

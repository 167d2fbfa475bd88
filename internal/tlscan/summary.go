package tlscan

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary describes an assembled scan.
type Summary struct {
	ID      string
	Name    string
	NBeams  uint32
	NPoints uint32

	// World-frame bounds of all points.
	Min, Max [3]float64

	RangeMean, RangeStdDev float64
	// GapMean averages only points with a defined gap.
	GapMean      float64
	GapUndefined int
	// HitsHistogram counts points by the hit count of their beam.
	HitsHistogram map[uint8]int
}

// Summarize computes a Summary of s. A scan without points yields zeroed
// statistics.
func Summarize(s *Scan) Summary {
	sum := Summary{
		ID:            s.ID.String(),
		Name:          s.Name,
		NBeams:        s.NBeams,
		NPoints:       s.NPoints,
		HitsHistogram: make(map[uint8]int),
	}
	if len(s.Points) == 0 {
		return sum
	}

	ranges := make([]float64, len(s.Points))
	gaps := make([]float64, 0, len(s.Points))
	xs := make([]float64, len(s.Points))
	ys := make([]float64, len(s.Points))
	zs := make([]float64, len(s.Points))
	for i, p := range s.Points {
		ranges[i] = float64(p.R)
		xs[i], ys[i], zs[i] = s.World(p)
		if p.Gap == GapUndefined {
			sum.GapUndefined++
		} else {
			gaps = append(gaps, float64(p.Gap))
		}
		sum.HitsHistogram[p.NHits]++
	}

	sum.RangeMean, sum.RangeStdDev = stat.MeanStdDev(ranges, nil)
	if math.IsNaN(sum.RangeStdDev) {
		sum.RangeStdDev = 0
	}
	if len(gaps) > 0 {
		sum.GapMean = stat.Mean(gaps, nil)
	}
	for i, axis := range [][]float64{xs, ys, zs} {
		sum.Min[i] = floats.Min(axis)
		sum.Max[i] = floats.Max(axis)
	}
	return sum
}

func (s Summary) String() string {
	return fmt.Sprintf("%s: %d beams, %d points, range %.2f±%.2f m, gap %.3f (%d undefined), bounds [%.2f %.2f %.2f]-[%.2f %.2f %.2f]",
		s.Name, s.NBeams, s.NPoints, s.RangeMean, s.RangeStdDev, s.GapMean, s.GapUndefined,
		s.Min[0], s.Min[1], s.Min[2], s.Max[0], s.Max[1], s.Max[2])
}

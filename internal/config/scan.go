package config

import (
	"encoding/json"
	"fmt"
	"math"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/voxel.report/internal/fsutil"
)

// DefaultConfigPath is the path to the canonical scan defaults file,
// relative to the repository root.
const DefaultConfigPath = "config/scan.defaults.json"

// ScanConfig holds the tunable parameters for loading TLS scans and for
// the panorama projection. Omitted fields fall back to the defaults
// returned by the Get* accessors, so partial files are safe.
type ScanConfig struct {
	// Buffered reading
	BatchSize *int `json:"batch_size,omitempty" yaml:"batch_size,omitempty"` // beams per read (nRead)
	MaxRead   *int `json:"max_read,omitempty" yaml:"max_read,omitempty"`     // upper bound on beams held at once

	// Offset compression
	OffsetGrid *float64 `json:"offset_grid,omitempty" yaml:"offset_grid,omitempty"` // metres

	// Single-scan orientation, applied about the vertical then the
	// horizontal axis.
	RotateZDeg *float64 `json:"rotate_z_deg,omitempty" yaml:"rotate_z_deg,omitempty"`
	RotateXDeg *float64 `json:"rotate_x_deg,omitempty" yaml:"rotate_x_deg,omitempty"`

	// Pulse model feeding the Gaussian separation estimate
	PulseSigma     *float64 `json:"pulse_sigma,omitempty" yaml:"pulse_sigma,omitempty"`         // metres
	PulseThreshold *float64 `json:"pulse_threshold,omitempty" yaml:"pulse_threshold,omitempty"` // detection threshold

	// Panorama
	Panorama *PanoramaConfig `json:"panorama,omitempty" yaml:"panorama,omitempty"`
}

// PanoramaConfig mirrors the options of the panorama projection.
type PanoramaConfig struct {
	Width   *int     `json:"width,omitempty" yaml:"width,omitempty"`
	ZenMin  *float64 `json:"zen_min,omitempty" yaml:"zen_min,omitempty"`   // degrees
	ZenMax  *float64 `json:"zen_max,omitempty" yaml:"zen_max,omitempty"`   // degrees
	DistMin *float64 `json:"dist_min,omitempty" yaml:"dist_min,omitempty"` // metres
	DistMax *float64 `json:"dist_max,omitempty" yaml:"dist_max,omitempty"` // metres
	Sigma   *float64 `json:"sigma,omitempty" yaml:"sigma,omitempty"`       // gaussian weighting about mid distance

	// Distance sweep: Frames windows of RangeView metres stepping from
	// FromDist to ToDist. A negative ToDist disables the sweep.
	FromDist  *float64 `json:"from_dist,omitempty" yaml:"from_dist,omitempty"`
	ToDist    *float64 `json:"to_dist,omitempty" yaml:"to_dist,omitempty"`
	Frames    *int     `json:"frames,omitempty" yaml:"frames,omitempty"`
	RangeView *float64 `json:"range_view,omitempty" yaml:"range_view,omitempty"`

	// Split also writes the pixel weights and weighted reflectance sums.
	Split *bool `json:"split,omitempty" yaml:"split,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyScanConfig returns a ScanConfig with all fields unset.
func EmptyScanConfig() *ScanConfig {
	return &ScanConfig{}
}

// LoadScanConfig loads a ScanConfig from a JSON or YAML file on the local
// filesystem.
func LoadScanConfig(path string) (*ScanConfig, error) {
	return LoadScanConfigFS(fsutil.OSFileSystem{}, path)
}

// LoadScanConfigFS loads a ScanConfig from fsys, parsing it as JSON or YAML
// by extension (.json, .yaml, .yml). The file must be under 1MB.
func LoadScanConfigFS(fsys fsutil.FileSystem, path string) (*ScanConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := filepath.Ext(cleanPath)
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := fsys.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := fsys.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyScanConfig()
	if ext == ".json" {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configured values are usable.
func (c *ScanConfig) Validate() error {
	if c.BatchSize != nil && (*c.BatchSize <= 0 || int64(*c.BatchSize) > math.MaxUint32) {
		return fmt.Errorf("batch_size must be in [1, %d], got %d", uint32(math.MaxUint32), *c.BatchSize)
	}
	if c.MaxRead != nil && (*c.MaxRead <= 0 || int64(*c.MaxRead) > math.MaxUint32) {
		return fmt.Errorf("max_read must be in [1, %d], got %d", uint32(math.MaxUint32), *c.MaxRead)
	}
	if c.GetBatchSize() > c.GetMaxRead() {
		return fmt.Errorf("batch_size %d exceeds max_read %d", c.GetBatchSize(), c.GetMaxRead())
	}
	if c.OffsetGrid != nil && !(*c.OffsetGrid > 0) {
		return fmt.Errorf("offset_grid must be positive, got %f", *c.OffsetGrid)
	}
	for name, v := range map[string]*float64{
		"rotate_z_deg":    c.RotateZDeg,
		"rotate_x_deg":    c.RotateXDeg,
		"pulse_sigma":     c.PulseSigma,
		"pulse_threshold": c.PulseThreshold,
	} {
		if v != nil && (math.IsNaN(*v) || math.IsInf(*v, 0)) {
			return fmt.Errorf("%s must be finite", name)
		}
	}
	if c.PulseSigma != nil && *c.PulseSigma < 0 {
		return fmt.Errorf("pulse_sigma must be non-negative, got %f", *c.PulseSigma)
	}
	if c.PulseThreshold != nil && *c.PulseThreshold < 0 {
		return fmt.Errorf("pulse_threshold must be non-negative, got %f", *c.PulseThreshold)
	}

	if p := c.Panorama; p != nil {
		if p.Width != nil && *p.Width <= 0 {
			return fmt.Errorf("panorama.width must be positive, got %d", *p.Width)
		}
		if c.GetZenMin() >= c.GetZenMax() {
			return fmt.Errorf("panorama.zen_min %.2f must be below zen_max %.2f", c.GetZenMin(), c.GetZenMax())
		}
		if c.GetZenMin() <= 0 || c.GetZenMax() >= 180 {
			return fmt.Errorf("panorama zenith range must lie inside (0, 180) degrees")
		}
		if c.GetDistMin() >= c.GetDistMax() {
			return fmt.Errorf("panorama.dist_min %.2f must be below dist_max %.2f", c.GetDistMin(), c.GetDistMax())
		}
		if p.Sigma != nil && *p.Sigma < 0 {
			return fmt.Errorf("panorama.sigma must be non-negative, got %f", *p.Sigma)
		}
		if c.Sweeping() {
			if c.GetFrames() <= 0 {
				return fmt.Errorf("panorama.frames must be positive, got %d", c.GetFrames())
			}
			if !(c.GetRangeView() > 0) {
				return fmt.Errorf("panorama.range_view must be positive, got %f", c.GetRangeView())
			}
			if c.GetFromDist() > c.GetToDist() {
				return fmt.Errorf("panorama.from_dist %.2f must not exceed to_dist %.2f", c.GetFromDist(), c.GetToDist())
			}
		}
	}
	return nil
}

// GetBatchSize returns the number of beams read per batch.
func (c *ScanConfig) GetBatchSize() int {
	if c.BatchSize == nil {
		return 1000
	}
	return *c.BatchSize
}

// GetMaxRead returns the upper bound on beams buffered at once.
func (c *ScanConfig) GetMaxRead() int {
	if c.MaxRead == nil {
		return 100000
	}
	return *c.MaxRead
}

// GetOffsetGrid returns the grid the scan offset is snapped to.
func (c *ScanConfig) GetOffsetGrid() float64 {
	if c.OffsetGrid == nil {
		return 100.0
	}
	return *c.OffsetGrid
}

// GetRotateZDeg returns the rotation about the vertical axis in degrees.
func (c *ScanConfig) GetRotateZDeg() float64 {
	if c.RotateZDeg == nil {
		return 0
	}
	return *c.RotateZDeg
}

// GetRotateXDeg returns the rotation about the horizontal axis in degrees.
func (c *ScanConfig) GetRotateXDeg() float64 {
	if c.RotateXDeg == nil {
		return 0
	}
	return *c.RotateXDeg
}

// GetPulseSigma returns the return pulse width in metres.
func (c *ScanConfig) GetPulseSigma() float64 {
	if c.PulseSigma == nil {
		return 0.5
	}
	return *c.PulseSigma
}

// GetPulseThreshold returns the pulse detection threshold.
func (c *ScanConfig) GetPulseThreshold() float64 {
	if c.PulseThreshold == nil {
		return 0.01
	}
	return *c.PulseThreshold
}

func (c *ScanConfig) panorama() *PanoramaConfig {
	if c.Panorama == nil {
		return &PanoramaConfig{}
	}
	return c.Panorama
}

// GetWidth returns the panorama width in pixels.
func (c *ScanConfig) GetWidth() int {
	if p := c.panorama(); p.Width != nil {
		return *p.Width
	}
	return 1800
}

// GetZenMin returns the minimum panorama zenith in degrees.
func (c *ScanConfig) GetZenMin() float64 {
	if p := c.panorama(); p.ZenMin != nil {
		return *p.ZenMin
	}
	return 30.0
}

// GetZenMax returns the maximum panorama zenith in degrees.
func (c *ScanConfig) GetZenMax() float64 {
	if p := c.panorama(); p.ZenMax != nil {
		return *p.ZenMax
	}
	return 120.0
}

// GetDistMin returns the minimum horizontal distance drawn, in metres.
func (c *ScanConfig) GetDistMin() float64 {
	if p := c.panorama(); p.DistMin != nil {
		return *p.DistMin
	}
	return 0
}

// GetDistMax returns the maximum horizontal distance drawn, in metres.
func (c *ScanConfig) GetDistMax() float64 {
	if p := c.panorama(); p.DistMax != nil {
		return *p.DistMax
	}
	return 20.0
}

// GetSigma returns the gaussian weighting width; zero disables weighting.
func (c *ScanConfig) GetSigma() float64 {
	if p := c.panorama(); p.Sigma != nil {
		return *p.Sigma
	}
	return 0
}

// GetFromDist returns the near edge of the first sweep window, in metres.
func (c *ScanConfig) GetFromDist() float64 {
	if p := c.panorama(); p.FromDist != nil {
		return *p.FromDist
	}
	return -1
}

// GetToDist returns the near edge of the last sweep window, in metres.
func (c *ScanConfig) GetToDist() float64 {
	if p := c.panorama(); p.ToDist != nil {
		return *p.ToDist
	}
	return -1
}

// GetFrames returns the number of sweep frames.
func (c *ScanConfig) GetFrames() int {
	if p := c.panorama(); p.Frames != nil {
		return *p.Frames
	}
	return 120
}

// GetRangeView returns the width of each sweep window, in metres.
func (c *ScanConfig) GetRangeView() float64 {
	if p := c.panorama(); p.RangeView != nil {
		return *p.RangeView
	}
	return 6.0
}

// GetSplit reports whether weight and sum images are written too.
func (c *ScanConfig) GetSplit() bool {
	if p := c.panorama(); p.Split != nil {
		return *p.Split
	}
	return false
}

// Sweeping reports whether a distance sweep is configured.
func (c *ScanConfig) Sweeping() bool { return c.GetToDist() > -1 }

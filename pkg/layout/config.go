package layout

// Config holds the geometry constants of both layout modes.
type Config struct {
	// Node boxes.
	NodeWidth    float64 `toml:"node_width" json:"node_width"`
	NodeHeight   float64 `toml:"node_height" json:"node_height"`
	SensorWidth  float64 `toml:"sensor_width" json:"sensor_width"`
	SensorHeight float64 `toml:"sensor_height" json:"sensor_height"`
	DeepLevel    int     `toml:"deep_level" json:"deep_level"`

	// Horizontal mode.
	VGap            float64 `toml:"v_gap" json:"v_gap"`
	XSpacing        float64 `toml:"x_spacing" json:"x_spacing"`
	DeepXSpacing    float64 `toml:"deep_x_spacing" json:"deep_x_spacing"`
	LeftMargin      float64 `toml:"left_margin" json:"left_margin"`
	RightPadding    float64 `toml:"right_padding" json:"right_padding"`
	ExtraWidth      float64 `toml:"extra_width" json:"extra_width"`
	MinBandHeight   float64 `toml:"min_band_height" json:"min_band_height"`
	MinCanvasHeight float64 `toml:"min_canvas_height" json:"min_canvas_height"`
	MinCompression  float64 `toml:"min_compression" json:"min_compression"`
	CompressionStep float64 `toml:"compression_step" json:"compression_step"`

	// Vertical mode.
	SideMargin       float64 `toml:"side_margin" json:"side_margin"`
	MinGap           float64 `toml:"min_gap" json:"min_gap"`
	TopMargin        float64 `toml:"top_margin" json:"top_margin"`
	LevelSpacing     float64 `toml:"level_spacing" json:"level_spacing"`
	DefaultContainer float64 `toml:"default_container" json:"default_container"`
	MinContainer     float64 `toml:"min_container" json:"min_container"`
}

// DefaultConfig returns the standard geometry.
func DefaultConfig() Config {
	return Config{
		NodeWidth:    200,
		NodeHeight:   160,
		SensorWidth:  600,
		SensorHeight: 160.0 / 3,
		DeepLevel:    8,

		VGap:            15,
		XSpacing:        220,
		DeepXSpacing:    320,
		LeftMargin:      60,
		RightPadding:    160,
		ExtraWidth:      300,
		MinBandHeight:   400,
		MinCanvasHeight: 600,
		MinCompression:  0.3,
		CompressionStep: 0.05,

		SideMargin:       80,
		MinGap:           40,
		TopMargin:        60,
		LevelSpacing:     240,
		DefaultContainer: 1000,
		MinContainer:     400,
	}
}

// Merge returns c with every zero field taken from base.
func (c Config) Merge(base Config) Config {
	pick := func(v, d float64) float64 {
		if v == 0 {
			return d
		}
		return v
	}
	out := Config{
		NodeWidth:    pick(c.NodeWidth, base.NodeWidth),
		NodeHeight:   pick(c.NodeHeight, base.NodeHeight),
		SensorWidth:  pick(c.SensorWidth, base.SensorWidth),
		SensorHeight: pick(c.SensorHeight, base.SensorHeight),
		DeepLevel:    c.DeepLevel,

		VGap:            pick(c.VGap, base.VGap),
		XSpacing:        pick(c.XSpacing, base.XSpacing),
		DeepXSpacing:    pick(c.DeepXSpacing, base.DeepXSpacing),
		LeftMargin:      pick(c.LeftMargin, base.LeftMargin),
		RightPadding:    pick(c.RightPadding, base.RightPadding),
		ExtraWidth:      pick(c.ExtraWidth, base.ExtraWidth),
		MinBandHeight:   pick(c.MinBandHeight, base.MinBandHeight),
		MinCanvasHeight: pick(c.MinCanvasHeight, base.MinCanvasHeight),
		MinCompression:  pick(c.MinCompression, base.MinCompression),
		CompressionStep: pick(c.CompressionStep, base.CompressionStep),

		SideMargin:       pick(c.SideMargin, base.SideMargin),
		MinGap:           pick(c.MinGap, base.MinGap),
		TopMargin:        pick(c.TopMargin, base.TopMargin),
		LevelSpacing:     pick(c.LevelSpacing, base.LevelSpacing),
		DefaultContainer: pick(c.DefaultContainer, base.DefaultContainer),
		MinContainer:     pick(c.MinContainer, base.MinContainer),
	}
	if out.DeepLevel == 0 {
		out.DeepLevel = base.DeepLevel
	}
	return out
}

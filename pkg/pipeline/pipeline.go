// Package pipeline runs the normalize → state → layout → connect → render
// sequence shared by the CLI and the HTTP server.
//
// # Stages
//
//  1. Normalize: decode a raw payload and build the canonical forest
//  2. State: apply expansion, spread, search and active directives
//  3. Layout: place the visible nodes in horizontal or vertical mode
//  4. Connect: derive connector curves from the placements
//  5. Render: produce json, svg, dot or graphviz artifacts
//
// Normalize, layout and render results are cached by content hash through
// a [cache.Cache]; identical concurrent layouts are computed once.
//
// # Usage
//
//	runner := pipeline.NewRunner(c, nil, logger)
//	res, err := runner.Execute(ctx, payload, pipeline.Options{
//	    Levels:  2,
//	    Mode:    "vertical",
//	    Formats: []string{"svg"},
//	})
//	svg := res.Artifacts["svg"]
package pipeline

import (
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/sensortree/pkg/cache"
	"github.com/matzehuels/sensortree/pkg/connector"
	"github.com/matzehuels/sensortree/pkg/errors"
	"github.com/matzehuels/sensortree/pkg/layout"
	"github.com/matzehuels/sensortree/pkg/normalize"
	"github.com/matzehuels/sensortree/pkg/tree"
	"github.com/matzehuels/sensortree/pkg/visibility"
)

// =============================================================================
// Default Values
// =============================================================================

const (
	// DefaultWidth is the default viewport width in pixels.
	DefaultWidth = 1280.0

	// DefaultHeight is the default viewport height in pixels.
	DefaultHeight = 800.0
)

// Format constants for output formats.
const (
	// FormatJSON is the layout document: placements, curves and extents.
	FormatJSON = "json"
	// FormatSVG draws the computed layout.
	FormatSVG = "svg"
	// FormatDOT is Graphviz source of the visible tree.
	FormatDOT = "dot"
	// FormatGraphviz is the visible tree laid out and drawn by Graphviz.
	FormatGraphviz = "graphviz"
)

// ValidFormats is the set of supported output formats.
var ValidFormats = map[string]bool{
	FormatJSON:     true,
	FormatSVG:      true,
	FormatDOT:      true,
	FormatGraphviz: true,
}

// =============================================================================
// Options
// =============================================================================

// Options configures a pipeline run. It is JSON-serializable for API
// requests.
type Options struct {
	// Normalize options
	Format   string `json:"format,omitempty"`   // json, yaml or csv
	Selector string `json:"selector,omitempty"` // JSONPath to the tree inside an envelope
	Refresh  bool   `json:"refresh,omitempty"`  // bypass the forest cache

	// State directives, applied in this order
	Expand    []string `json:"expand,omitempty"`
	ExpandAll bool     `json:"expand_all,omitempty"`
	Levels    int      `json:"levels,omitempty"` // ExpandNextLevel repetitions
	Spread    string   `json:"spread,omitempty"`
	Search    string   `json:"search,omitempty"`
	Active    string   `json:"active,omitempty"`

	// Layout options
	Mode   string        `json:"mode,omitempty"`
	Width  float64       `json:"width,omitempty"`
	Height float64       `json:"height,omitempty"`
	Layout layout.Config `json:"layout"`

	// Render options
	Formats  []string `json:"formats,omitempty"`
	Detailed bool     `json:"detailed,omitempty"` // type/value lines in labels
	Title    string   `json:"title,omitempty"`

	// Runtime options (not serialized)
	Logger *log.Logger `json:"-"`

	validated bool
}

// Result contains the outputs of a pipeline run.
type Result struct {
	Forest     *tree.Forest
	ForestHash string
	Shape      normalize.Shape
	State      *visibility.State
	Layout     layout.Result
	Curves     []connector.Curve
	Artifacts  map[string][]byte
	Stats      Stats
	CacheInfo  CacheInfo
}

// Stats contains forest statistics and stage timings.
type Stats struct {
	Tree          tree.Stats
	Visible       int
	NormalizeTime time.Duration
	LayoutTime    time.Duration
	RenderTime    time.Duration
}

// CacheInfo tracks cache hits for each stage.
type CacheInfo struct {
	NormalizeHit bool
	LayoutHit    bool
	RenderHit    bool // all requested artifacts came from cache
}

// =============================================================================
// Validation Functions
// =============================================================================

// ValidateFormat checks that a format is supported.
func ValidateFormat(format string) error {
	if !ValidFormats[format] {
		return errors.New(errors.ErrCodeInvalidFormat, "invalid format: %q (must be one of: json, svg, dot, graphviz)", format)
	}
	return nil
}

// ValidateFormats checks that all formats are supported.
func ValidateFormats(formats []string) error {
	for _, f := range formats {
		if err := ValidateFormat(f); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// Options Methods
// =============================================================================

// ValidateAndSetDefaults checks every field and applies defaults. It is
// idempotent.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if err := o.ValidateForNormalize(); err != nil {
		return err
	}
	if err := o.ValidateForState(); err != nil {
		return err
	}
	if err := o.ValidateForLayout(); err != nil {
		return err
	}
	if err := o.ValidateForRender(); err != nil {
		return err
	}
	o.validated = true
	return nil
}

// ValidateForNormalize checks the payload options.
func (o *Options) ValidateForNormalize() error {
	switch normalize.Format(o.Format) {
	case "", normalize.FormatJSON, normalize.FormatYAML, normalize.FormatCSV:
	default:
		return errors.New(errors.ErrCodeInvalidFormat, "invalid payload format: %q (must be one of: json, yaml, csv)", o.Format)
	}
	if o.Format == "" {
		o.Format = string(normalize.FormatJSON)
	}
	o.setLogger()
	return nil
}

// ValidateForState checks the state directives.
func (o *Options) ValidateForState() error {
	if o.Levels < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "levels must not be negative")
	}
	if err := errors.ValidateSearch(o.Search); err != nil {
		return err
	}
	for _, id := range o.Expand {
		if err := errors.ValidateNodeID(id); err != nil {
			return err
		}
	}
	return nil
}

// SetLayoutDefaults sets default values for layout computation.
func (o *Options) SetLayoutDefaults() {
	if o.Mode == "" {
		o.Mode = string(layout.Horizontal)
	}
	if o.Width == 0 {
		o.Width = DefaultWidth
	}
	if o.Height == 0 {
		o.Height = DefaultHeight
	}
	o.Layout = o.Layout.Merge(layout.DefaultConfig())
	o.setLogger()
}

// ValidateForLayout validates and sets defaults for layout computation.
func (o *Options) ValidateForLayout() error {
	if err := errors.ValidateMode(o.Mode); err != nil {
		return err
	}
	o.SetLayoutDefaults()
	m, err := layout.ParseMode(o.Mode)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidMode, err, "invalid mode")
	}
	o.Mode = string(m)
	return nil
}

// SetRenderDefaults sets default values for rendering.
func (o *Options) SetRenderDefaults() {
	if len(o.Formats) == 0 {
		o.Formats = []string{FormatSVG}
	}
	o.setLogger()
}

// ValidateForRender validates and sets defaults for rendering.
func (o *Options) ValidateForRender() error {
	if err := o.ValidateForLayout(); err != nil {
		return err
	}
	o.SetRenderDefaults()
	return ValidateFormats(o.Formats)
}

func (o *Options) setLogger() {
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
}

// LayoutMode returns the parsed layout mode.
func (o *Options) LayoutMode() layout.Mode {
	m, _ := layout.ParseMode(o.Mode)
	return m
}

// Viewport returns the viewport size.
func (o *Options) Viewport() layout.Size {
	return layout.Size{Width: o.Width, Height: o.Height}
}

// LayoutOptions converts to layout engine options.
func (o *Options) LayoutOptions() layout.Options {
	return layout.Options{Mode: o.LayoutMode(), Viewport: o.Viewport(), Config: o.Layout}
}

// ForestKeyOpts returns cache key options for normalization.
func (o *Options) ForestKeyOpts() cache.ForestKeyOpts {
	return cache.ForestKeyOpts{Format: o.Format, Selector: o.Selector}
}

// LayoutKeyOpts returns cache key options for a layout of st.
func (o *Options) LayoutKeyOpts(st *visibility.State) (cache.LayoutKeyOpts, error) {
	stateHash, err := cache.HashJSON(st)
	if err != nil {
		return cache.LayoutKeyOpts{}, err
	}
	configHash, err := cache.HashJSON(o.Layout)
	if err != nil {
		return cache.LayoutKeyOpts{}, err
	}
	return cache.LayoutKeyOpts{
		Mode:       o.Mode,
		StateHash:  stateHash,
		Width:      o.Width,
		Height:     o.Height,
		ConfigHash: configHash,
	}, nil
}

// ArtifactKeyOpts returns cache key options for one artifact.
func (o *Options) ArtifactKeyOpts(format string) cache.ArtifactKeyOpts {
	return cache.ArtifactKeyOpts{Format: format, Detailed: o.Detailed, Title: o.Title}
}

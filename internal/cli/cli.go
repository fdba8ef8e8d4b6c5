package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/sensortree/pkg/buildinfo"
	"github.com/matzehuels/sensortree/pkg/cache"
	"github.com/matzehuels/sensortree/pkg/config"
	"github.com/matzehuels/sensortree/pkg/normalize"
	"github.com/matzehuels/sensortree/pkg/pipeline"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "sensortree"

	// stdinPath reads the payload from standard input.
	stdinPath = "-"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// Global flags
	configPath string
	cacheKind  string
	redisAddr  string

	stdin io.Reader
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		stdin:  os.Stdin,
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "Sensortree lays out sensor hierarchies as collapsible trees",
		Long:         `Sensortree normalizes sensor hierarchy payloads (nested objects, node maps, tag paths or tag sheets) into a forest of up to nine levels and lays the expanded part out horizontally or vertically, with connector curves between parents and children.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())

	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (TOML)")
	root.PersistentFlags().StringVar(&c.cacheKind, "cache", "", "cache backend: file, redis, none (overrides config)")
	root.PersistentFlags().StringVar(&c.redisAddr, "redis-addr", "", "redis address (overrides config)")

	root.AddCommand(c.normalizeCommand())
	root.AddCommand(c.layoutCommand())
	root.AddCommand(c.renderCommand())
	root.AddCommand(c.statsCommand())
	root.AddCommand(c.exploreCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())
	registerFlagCompletions(root)

	return root
}

// =============================================================================
// Configuration
// =============================================================================

// loadConfig reads --config and applies the global flag overrides.
func (c *CLI) loadConfig() (config.Config, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if c.cacheKind != "" {
		cfg.Cache.Backend = c.cacheKind
	}
	if c.redisAddr != "" {
		cfg.Cache.RedisAddr = c.redisAddr
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// =============================================================================
// Runner Factory
// =============================================================================

// newRunner creates a pipeline runner for CLI use.
func (c *CLI) newRunner(ctx context.Context, cfg config.Config, noCache bool) (*pipeline.Runner, error) {
	ch, err := c.newCache(ctx, cfg.Cache, noCache)
	if err != nil {
		return nil, err
	}
	var keyer cache.Keyer
	if cfg.Cache.Prefix != "" {
		keyer = cache.NewScopedKeyer(nil, cfg.Cache.Prefix)
	}
	r := pipeline.NewRunner(ch, keyer, c.Logger)
	r.ForestTTL = cfg.Cache.ForestTTL.Duration
	r.LayoutTTL = cfg.Cache.LayoutTTL.Duration
	r.ArtifactTTL = cfg.Cache.ArtifactTTL.Duration
	return r, nil
}

// newCache opens the configured backend. An unusable file cache degrades to
// no caching; an unreachable redis is an error.
func (c *CLI) newCache(ctx context.Context, cfg config.Cache, noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	switch cfg.Backend {
	case "none":
		return cache.NewNullCache(), nil
	case "redis":
		ch, err := cache.NewRedisCache(ctx, cfg.RedisAddr, "", cfg.RedisDB)
		if err != nil {
			return nil, fmt.Errorf("open cache: %w", err)
		}
		return ch, nil
	default:
		ch, err := cache.NewFileCache(cfg.Dir)
		if err != nil {
			c.Logger.Warn("file cache unavailable, caching disabled", "dir", cfg.Dir, "err", err)
			return cache.NewNullCache(), nil
		}
		return ch, nil
	}
}

// =============================================================================
// Input
// =============================================================================

// readPayload reads path, or stdin for "-".
func (c *CLI) readPayload(path string) ([]byte, error) {
	if path == stdinPath {
		data, err := io.ReadAll(c.stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	return data, nil
}

// payloadFormat returns the explicit format, else one guessed from the file
// extension.
func payloadFormat(explicit, path string) string {
	if explicit != "" {
		return explicit
	}
	if path == stdinPath {
		return string(normalize.FormatJSON)
	}
	return string(normalize.FormatFromPath(path))
}

// outputPath derives <input-without-ext><suffix>, or <appName><suffix> for
// stdin.
func outputPath(output, input, suffix string) string {
	if output != "" {
		return output
	}
	if input == stdinPath {
		return appName + suffix
	}
	return strings.TrimSuffix(input, filepath.Ext(input)) + suffix
}

// =============================================================================
// Options Helpers
// =============================================================================

// bindPayloadFlags registers the normalize options.
func bindPayloadFlags(cmd *cobra.Command, opts *pipeline.Options) {
	cmd.Flags().StringVarP(&opts.Format, "input-format", "i", "", "payload format: json, yaml, csv (default: from extension)")
	cmd.Flags().StringVar(&opts.Selector, "selector", "", "JSONPath to the tree inside an envelope (e.g. $.data)")
	cmd.Flags().BoolVar(&opts.Refresh, "refresh", false, "re-normalize even when cached")
}

// bindStateFlags registers the visibility directives.
func bindStateFlags(cmd *cobra.Command, opts *pipeline.Options) {
	cmd.Flags().StringSliceVar(&opts.Expand, "expand", nil, "node ids to expand (repeatable)")
	cmd.Flags().BoolVar(&opts.ExpandAll, "expand-all", false, "expand every node")
	cmd.Flags().IntVarP(&opts.Levels, "levels", "l", 0, "expand this many levels below the roots")
	cmd.Flags().StringVar(&opts.Spread, "spread", "", "node id whose children are spread")
	cmd.Flags().StringVar(&opts.Search, "search", "", "filter leaves by name, keeping their ancestors")
	cmd.Flags().StringVar(&opts.Active, "active", "", "active node id")
}

// bindLayoutFlags registers the layout options.
func bindLayoutFlags(cmd *cobra.Command, opts *pipeline.Options) {
	cmd.Flags().StringVarP(&opts.Mode, "mode", "m", "", "layout mode: horizontal (default), vertical")
	cmd.Flags().Float64Var(&opts.Width, "width", pipeline.DefaultWidth, "viewport width")
	cmd.Flags().Float64Var(&opts.Height, "height", pipeline.DefaultHeight, "viewport height")
}

// setCLIDefaults applies the config file on top of pipeline defaults.
func setCLIDefaults(opts *pipeline.Options, cfg config.Config, input string) {
	opts.Format = payloadFormat(opts.Format, input)
	opts.Layout = opts.Layout.Merge(cfg.Layout)
	opts.SetLayoutDefaults()
	opts.SetRenderDefaults()
}

// parseFormats parses a comma-separated format string into a slice.
func parseFormats(s string) []string {
	if s == "" {
		return []string{pipeline.FormatSVG}
	}
	return strings.Split(s, ",")
}

package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/matzehuels/sensortree/internal/server"
	"github.com/matzehuels/sensortree/pkg/cache"
	"github.com/matzehuels/sensortree/pkg/config"
	"github.com/matzehuels/sensortree/pkg/errors"
	"github.com/matzehuels/sensortree/pkg/normalize"
	"github.com/matzehuels/sensortree/pkg/observability"
	"github.com/matzehuels/sensortree/pkg/pipeline"
	"github.com/matzehuels/sensortree/pkg/session"
	"github.com/matzehuels/sensortree/pkg/storage"
)

type serveOpts struct {
	addr      string
	sessions  string
	tree      string
	importRaw string
	sweep     time.Duration
	noMetrics bool
}

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var opts serveOpts

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Long: `Run the HTTP server that hosts viewer sessions.

Clients create a session from a payload (or a stored tree), send actions such
as toggle-expand or toggle-spread, and read back placements, connector curves
and rendered artifacts. Stored trees and node notes live in the configured
storage backend (file or mongo); sessions live in memory or redis.

With --tree, a session over that stored tree is created at startup. Combine
with --import to store a payload file under that name first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", "", "listen address (default from config, :8080)")
	cmd.Flags().StringVar(&opts.sessions, "sessions", "", "session store: memory, redis (overrides config)")
	cmd.Flags().StringVar(&opts.tree, "tree", "", "stored tree to open a session on at startup")
	cmd.Flags().StringVar(&opts.importRaw, "import", "", "payload file to store under --tree before serving")
	cmd.Flags().DurationVar(&opts.sweep, "sweep", time.Minute, "interval for removing expired sessions")
	cmd.Flags().BoolVar(&opts.noMetrics, "no-metrics", false, "do not serve /metrics")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, opts serveOpts) error {
	logger := loggerFromContext(ctx)

	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	if opts.addr != "" {
		cfg.Server.Addr = opts.addr
	}
	if opts.sessions != "" {
		cfg.Server.Sessions = opts.sessions
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if opts.importRaw != "" && opts.tree == "" {
		return errors.New(errors.ErrCodeInvalidInput, "--import requires --tree")
	}

	runner, err := c.newRunner(ctx, cfg, false)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	store, err := openStorage(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer store.Close(context.Background())

	sessions, closeSessions, err := openSessions(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeSessions()

	srvOpts := []server.Option{
		server.WithStorage(store),
		server.WithLogger(logger),
		server.WithConfig(server.Config{
			SessionTTL: cfg.Server.SessionTTL.Duration,
			Layout:     cfg.Layout,
		}),
	}
	if !opts.noMetrics {
		metrics := server.NewMetrics()
		metrics.Register()
		defer observability.Reset()
		srvOpts = append(srvOpts, server.WithMetrics(metrics))
	}

	if opts.importRaw != "" {
		if err := importTree(ctx, store, opts.tree, opts.importRaw); err != nil {
			return err
		}
		printSuccess("Stored %s as tree %q", opts.importRaw, opts.tree)
	}
	if opts.tree != "" {
		id, err := openTreeSession(ctx, runner, store, sessions, opts.tree, cfg.Server.SessionTTL.Duration)
		if err != nil {
			return err
		}
		printSuccess("Opened session on tree %q", opts.tree)
		printKeyValue("Session", id)
	}

	srv := server.New(runner, sessions, srvOpts...)
	printInfo("Serving on %s", StyleHighlight.Render(cfg.Server.Addr))
	return srv.ListenAndServe(ctx, cfg.Server.Addr, opts.sweep)
}

// openStorage opens the configured tree and note backend.
func openStorage(ctx context.Context, cfg config.Storage) (storage.Store, error) {
	if cfg.Backend == "mongo" {
		st, err := storage.NewMongoStore(ctx, cfg.Mongo)
		if err != nil {
			return nil, err
		}
		return st, nil
	}
	st, err := storage.NewFileStore(cfg.Dir)
	if err != nil {
		return nil, err
	}
	return st, nil
}

// openSessions opens the configured session store. The returned func
// releases it.
func openSessions(ctx context.Context, cfg config.Config) (session.Store, func(), error) {
	if cfg.Server.Sessions != "redis" {
		return session.NewMemoryStore(), func() {}, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr: cfg.Cache.RedisAddr,
		DB:   cfg.Cache.RedisDB,
	})
	err := cache.RetryWithBackoff(ctx, func() error {
		if err := client.Ping(ctx).Err(); err != nil {
			return cache.Retryable(err)
		}
		return nil
	})
	if err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("session store redis %s: %w", cfg.Cache.RedisAddr, err)
	}
	return session.NewRedisStore(client), func() { _ = client.Close() }, nil
}

// importTree stores the payload file at path under name.
func importTree(ctx context.Context, store storage.Store, name, path string) error {
	if err := errors.ValidateTreeName(name); err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read payload: %w", err)
	}
	format := normalize.FormatFromPath(path)
	if _, err := normalize.Decode(data, format); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "payload is not valid %s: %v", format, err)
	}
	return store.SaveTree(ctx, storage.Tree{
		Name:      name,
		Format:    string(format),
		Payload:   data,
		Size:      len(data),
		UpdatedAt: time.Now().UTC(),
	})
}

// openTreeSession normalizes the stored tree name and stores a session
// over it.
func openTreeSession(ctx context.Context, runner *pipeline.Runner, store storage.Store, sessions session.Store, name string, ttl time.Duration) (string, error) {
	t, err := store.LoadTree(ctx, name)
	if err != nil {
		return "", fmt.Errorf("load tree %q: %w", name, err)
	}
	f, err := runner.Normalize(ctx, t.Payload, pipeline.Options{Format: t.Format})
	if err != nil {
		return "", fmt.Errorf("normalize tree %q: %w", name, err)
	}
	sess := session.New(f, ttl)
	sess.Tree = name
	if err := sessions.Set(ctx, sess); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	return sess.ID, nil
}

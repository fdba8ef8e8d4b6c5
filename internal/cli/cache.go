package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/sensortree/pkg/cache"
	"github.com/matzehuels/sensortree/pkg/config"
)

// cacheCommand creates the cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the forest, layout and artifact cache",
	}

	cmd.AddCommand(c.cacheClearCommand())
	cmd.AddCommand(c.cachePathCommand())

	return cmd
}

// cacheClearCommand creates the "cache clear" subcommand.
func (c *CLI) cacheClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			return c.runCacheClear(cmd.Context(), cfg)
		},
	}
}

func (c *CLI) runCacheClear(ctx context.Context, cfg config.Config) error {
	if cfg.Cache.Backend == "none" {
		printInfo("Caching is disabled")
		return nil
	}
	if cfg.Cache.Backend == "file" {
		if _, err := os.Stat(cfg.Cache.Dir); os.IsNotExist(err) {
			printInfo("Cache is empty")
			return nil
		}
	}

	ch, err := c.newCache(ctx, cfg.Cache, false)
	if err != nil {
		return err
	}
	defer ch.Close()

	clearer, ok := ch.(cache.Clearer)
	if !ok {
		printInfo("Cache is empty")
		return nil
	}
	count, err := clearer.Clear(ctx)
	if err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}

	printSuccess("Cleared %d cached entries", count)
	printDetail("Location: %s", cacheLocation(cfg.Cache))
	return nil
}

// cachePathCommand creates the "cache path" subcommand.
func (c *CLI) cachePathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print where the cache lives",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			fmt.Println(cacheLocation(cfg.Cache))
			return nil
		},
	}
}

// cacheLocation is the directory of a file cache or the URL of a redis one.
func cacheLocation(cfg config.Cache) string {
	switch cfg.Backend {
	case "redis":
		return fmt.Sprintf("redis://%s/%d", cfg.RedisAddr, cfg.RedisDB)
	case "none":
		return "(disabled)"
	default:
		return cfg.Dir
	}
}

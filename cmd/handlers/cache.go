package handlers

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"watchtrail/internal/config"
	"watchtrail/internal/logger"
	"watchtrail/internal/store"
)

// NewCacheCmd creates the cache management command
func NewCacheCmd() *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the embedding cache",
		Long:  `Inspect, clean, and manage the SQLite cache of text embeddings.`,
	}

	// Add subcommands
	cacheCmd.AddCommand(newCacheStatsCmd())
	cacheCmd.AddCommand(newCacheClearCmd())
	cacheCmd.AddCommand(newCacheCleanupCmd())

	return cacheCmd
}

func newCacheStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics and storage information",
		Long:  `Display the number of cached embeddings, how many models they span, and storage usage.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCacheStats(cmd.OutOrStdout())
		},
	}
}

func newCacheClearCmd() *cobra.Command {
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear the cache (removes all cached embeddings)",
		Long:  `Remove all cached embeddings from the SQLite database.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			confirm, _ := cmd.Flags().GetBool("confirm")
			return runCacheClear(cmd.InOrStdin(), cmd.OutOrStdout(), confirm)
		},
	}

	clearCmd.Flags().Bool("confirm", false, "Skip confirmation prompt")
	return clearCmd
}

func newCacheCleanupCmd() *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove embeddings older than a given age",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(s *store.Store) error {
				removed, err := s.CleanupOldCache(olderThan)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d embeddings older than %s\n", removed, olderThan)
				return nil
			})
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "maximum age of kept embeddings")
	return cmd
}

// withStore opens the configured cache store for the duration of fn
func withStore(fn func(*store.Store) error) error {
	cacheStore, err := store.NewStore(config.GetCache().Directory)
	if err != nil {
		return fmt.Errorf("failed to initialize cache store: %w", err)
	}
	defer func() {
		if err := cacheStore.Close(); err != nil {
			logger.Error("Failed to close cache store", err)
		}
	}()
	return fn(cacheStore)
}

func runCacheStats(out io.Writer) error {
	return withStore(func(s *store.Store) error {
		stats, err := s.GetCacheStats()
		if err != nil {
			return fmt.Errorf("failed to get cache statistics: %w", err)
		}

		fmt.Fprintln(out, "Cache Statistics")
		fmt.Fprintln(out, "================")
		fmt.Fprintf(out, "Location:          %s\n", s.Path())
		fmt.Fprintf(out, "Embeddings cached: %d\n", stats.EmbeddingCount)
		fmt.Fprintf(out, "Models:            %d\n", stats.ModelCount)
		fmt.Fprintf(out, "Cache size:        %.2f MB\n", float64(stats.CacheSize)/1024/1024)
		fmt.Fprintf(out, "Last updated:      %s\n", stats.LastUpdated.Format("2006-01-02 15:04:05"))
		return nil
	})
}

func runCacheClear(in io.Reader, out io.Writer, confirm bool) error {
	if !confirm {
		fmt.Fprint(out, "This will remove all cached embeddings. Continue? [y/N]: ")
		response, _ := bufio.NewReader(in).ReadString('\n')
		response = strings.TrimSpace(response)
		if response != "y" && response != "Y" && response != "yes" {
			fmt.Fprintln(out, "Cache clear cancelled")
			return nil
		}
	}

	return withStore(func(s *store.Store) error {
		if err := s.ClearCache(); err != nil {
			return fmt.Errorf("failed to clear cache: %w", err)
		}
		fmt.Fprintln(out, "Cache cleared successfully")
		return nil
	})
}

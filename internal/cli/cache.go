package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/keelpm/keel/pkg/cache"
)

// newCacheCmd creates the cache management command.
func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the candidate match cache",
	}

	cmd.AddCommand(newCacheClearCmd())
	cmd.AddCommand(newCachePathCmd())
	cmd.AddCommand(newCacheInfoCmd())

	return cmd
}

func newCacheClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Clear all cached match results",
		RunE: func(cmd *cobra.Command, args []string) error {
			fc, err := openFileCache()
			if err != nil {
				return err
			}
			count, _, err := fc.Size()
			if err != nil {
				return err
			}
			if err := fc.Clear(); err != nil {
				return err
			}
			printSuccess("Cleared %d cached entries", count)
			return nil
		},
	}
}

func newCachePathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the cache directory path",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := cacheDir()
			if err != nil {
				return fmt.Errorf("get cache dir: %w", err)
			}
			fmt.Println(dir)
			return nil
		},
	}
}

func newCacheInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := cacheDir()
			if err != nil {
				return err
			}
			fc, err := openFileCache()
			if err != nil {
				return err
			}
			count, bytes, err := fc.Size()
			if err != nil {
				return err
			}
			printKeyValue("directory", dir)
			printKeyValue("entries", fmt.Sprintf("%d", count))
			printKeyValue("size", fmt.Sprintf("%.1f KiB", float64(bytes)/1024))
			return nil
		},
	}
}

// openFileCache opens the default file cache with its concrete type so the
// cache commands can reach Clear and Size.
func openFileCache() (*cache.FileCache, error) {
	dir, err := cacheDir()
	if err != nil {
		return nil, err
	}
	c, err := cache.NewFileCache(dir)
	if err != nil {
		return nil, err
	}
	return c.(*cache.FileCache), nil
}

package main

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sanonone/termgraph/pkg/cache"
)

func newCacheCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect the response cache",
	}

	purge := &cobra.Command{
		Use:   "purge [PATH_PREFIX]",
		Short: "Drop cached responses whose path starts with PATH_PREFIX (all when omitted)",
		Example: `  termgraph cache purge
  termgraph cache purge /content/current/CUI/C0011849`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := g.load(cmd)
			if err != nil {
				return err
			}
			store, err := cache.Open(cfg.Cache, logger)
			if err != nil {
				return err
			}
			if store == nil {
				return fmt.Errorf("cache backend %q stores nothing", cfg.Cache.Backend)
			}
			defer store.Close()

			purger, ok := store.(cache.Purger)
			if !ok {
				return fmt.Errorf("cache backend %q cannot purge", cfg.Cache.Backend)
			}

			prefix := ""
			if len(args) == 1 {
				prefix = purgePrefix(cfg.UMLS.BaseURL, args[0])
			}
			n, err := purger.PurgePrefix(contextOf(cmd), prefix)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d entries\n", n)
			return nil
		},
	}
	cmd.AddCommand(purge)
	return cmd
}

// purgePrefix turns a path relative to the service base URL into the
// leading part of the cache keys stored for it.
func purgePrefix(baseURL, path string) string {
	return http.MethodGet + " " + strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

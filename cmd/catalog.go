package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sdmxkit/catalog-builder/internal/catalog"
	"github.com/sdmxkit/catalog-builder/internal/sdmx"
)

// newCatalogCmd creates the 'catalog' subcommand: directory-only operations
// that never touch the quota-governed structure endpoint.
func newCatalogCmd() *cobra.Command {
	var search string

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Fetches the dataset directory without extracting dimensions",
		Long: `Refreshes dataset names, descriptions and agencies from the dataflow
directory and persists them into the catalog file. Existing dimension lists
are preserved. The directory endpoint is not quota-governed, so this is
always cheap. Use --search to print matching datasets instead of listing
everything.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			raw, err := appInstance.Fetcher.ListDataflows(ctx)
			if err != nil {
				return fmt.Errorf("fetch dataset directory: %w", err)
			}
			discovered, err := sdmx.ParseDataflows(raw)
			if err != nil {
				return fmt.Errorf("parse dataset directory: %w", err)
			}

			cat, _, err := appInstance.Catalogs.Load(ctx)
			if err != nil {
				return fmt.Errorf("load catalog: %w", err)
			}
			if cat == nil {
				cat = catalog.Catalog{}
			}
			cat.Update(discovered)
			if err := appInstance.Catalogs.Save(ctx, cat); err != nil {
				return fmt.Errorf("save catalog: %w", err)
			}
			appInstance.Logger.Info("directory refreshed",
				zap.Int("datasets", len(cat)),
				zap.Int("structures", len(cat.Items())))

			if search != "" {
				printDatasets(cmd, cat.Search(search))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&search, "search", "", "print datasets whose name or description matches the term")
	return cmd
}

func printDatasets(cmd *cobra.Command, matches catalog.Catalog) {
	ids := make([]string, 0, len(matches))
	for id := range matches {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		ds := matches[id]
		cmd.Printf("%s\t%s\t%s\n", id, ds.Agency, ds.Name)
	}
	cmd.Printf("%d dataset(s) matched\n", len(ids))
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/koustreak/rowmap/internal/schema"
)

func newIntrospectCmd(a *app) *cobra.Command {
	var (
		outPath string
		publish string
		tables  []string
	)

	cmd := &cobra.Command{
		Use:   "introspect",
		Short: "Generate schema documents from the configured database",
		Long: `Reads information_schema of the configured database and writes one
model per table. The result goes to stdout, to --out, and with --publish
to the object store as well.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if !a.cfg.HasDatabase() {
				return fmt.Errorf("introspect needs database.host or ROWMAP_DB_DSN")
			}
			db, err := a.openDB(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			info, err := db.InspectSchema(ctx)
			if err != nil {
				return err
			}
			defs, err := schema.FromSchema(info)
			if err != nil {
				return err
			}
			defs, err = only(defs, tables)
			if err != nil {
				return err
			}
			a.log.With().Int("tables", len(defs)).Logger().Info("schema introspected")

			out, err := schema.MarshalYAML(defs...)
			if err != nil {
				return err
			}
			if outPath == "" {
				if _, err := cmd.OutOrStdout().Write(out); err != nil {
					return err
				}
			} else if err := os.WriteFile(outPath, out, 0o644); err != nil {
				return err
			}

			if publish == "" {
				return nil
			}
			if !a.cfg.HasStore() {
				return fmt.Errorf("--publish needs store.endpoint in the configuration")
			}
			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()
			obj, err := schema.PublishStore(ctx, store, a.cfg.Store.Bucket, publish, defs...)
			if err != nil {
				return err
			}
			a.log.With().Str("bucket", a.cfg.Store.Bucket).Str("key", obj.Key).Str("etag", obj.ETag).Logger().Info("schema published")
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "write the document to this file instead of stdout")
	cmd.Flags().StringVar(&publish, "publish", "", "also upload the document to the object store under this key")
	cmd.Flags().StringSliceVar(&tables, "table", nil, "restrict to these tables (repeatable)")
	return cmd
}

// only keeps the definitions of the named tables, in the order given.
func only(defs []*schema.Definition, tables []string) ([]*schema.Definition, error) {
	if len(tables) == 0 {
		return defs, nil
	}
	byTable := make(map[string]*schema.Definition, len(defs))
	for _, d := range defs {
		byTable[d.Table()] = d
	}
	out := make([]*schema.Definition, 0, len(tables))
	for _, t := range tables {
		d, ok := byTable[t]
		if !ok {
			return nil, fmt.Errorf("table %q does not exist", t)
		}
		out = append(out, d)
	}
	return out, nil
}

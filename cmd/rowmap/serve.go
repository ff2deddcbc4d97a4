package main

import (
	"github.com/spf13/cobra"

	"github.com/koustreak/rowmap/internal/persist"
	"github.com/koustreak/rowmap/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		fromStore bool
		addr      string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve model metadata, and records when a database is configured",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			reg, err := a.registry(ctx, fromStore)
			if err != nil {
				return err
			}

			opts := []server.Option{server.WithLogger(a.log)}
			if a.cfg.HasDatabase() {
				db, err := a.openDB(ctx)
				if err != nil {
					return err
				}
				defer db.Close()
				opts = append(opts, server.WithRepository(persist.New(db, a.cfg.DB().Driver.Dialect())))
			}

			if addr == "" {
				addr = a.cfg.Server.Addr
			}
			return server.New(reg, opts...).ListenAndServe(ctx, addr)
		},
	}
	cmd.Flags().BoolVar(&fromStore, "from-store", false, "read schema documents from the object store")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from configuration)")
	return cmd
}

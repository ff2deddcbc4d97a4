package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/koustreak/rowmap/internal/config"
	"github.com/koustreak/rowmap/internal/database"
	"github.com/koustreak/rowmap/internal/database/mysql"
	"github.com/koustreak/rowmap/internal/database/postgres"
	"github.com/koustreak/rowmap/internal/filestore"
	"github.com/koustreak/rowmap/internal/filestore/minio"
	"github.com/koustreak/rowmap/internal/logger"
	"github.com/koustreak/rowmap/internal/record"
	"github.com/koustreak/rowmap/internal/schema"
)

// app carries what every subcommand shares once the configuration is read.
type app struct {
	configPath string
	logLevel   string

	cfg *config.Config
	log *logger.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:          "rowmap",
		Short:        "Schema tooling for rowmap models",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			if a.logLevel != "" {
				cfg.Log.Level = a.logLevel
			}
			lc := cfg.Logger()
			lc.Output = cmd.ErrOrStderr()
			a.cfg = cfg
			a.log = logger.New(lc)
			logger.SetGlobal(a.log)
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to a YAML configuration file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override the configured log level")

	root.AddCommand(
		newDescribeCmd(a),
		newIntrospectCmd(a),
		newServeCmd(a),
	)
	return root
}

// openDB connects to the configured database.
func (a *app) openDB(ctx context.Context) (database.DB, error) {
	cfg := a.cfg.DB()
	if cfg.Driver == database.DriverMySQL {
		db, err := mysql.New(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return db, nil
	}
	db, err := postgres.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// openStore connects to the configured object store.
func (a *app) openStore(ctx context.Context) (filestore.Store, error) {
	store, err := minio.New(ctx, a.cfg.FileStore())
	if err != nil {
		return nil, err
	}
	return store, nil
}

// catalog reads schema documents from the object store when fromStore is
// set, from the configured directory otherwise.
func (a *app) catalog(ctx context.Context, fromStore bool) (*schema.Catalog, error) {
	if !fromStore {
		return schema.LoadDir(a.cfg.Schema.Dir)
	}
	if !a.cfg.HasStore() {
		return nil, fmt.Errorf("--from-store needs store.endpoint in the configuration")
	}
	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	defer store.Close()
	return schema.LoadStore(ctx, store, a.cfg.Store.Bucket, a.cfg.Store.Prefix)
}

// registry compiles a catalog into a frozen registry.
func (a *app) registry(ctx context.Context, fromStore bool) (*record.Registry, error) {
	cat, err := a.catalog(ctx, fromStore)
	if err != nil {
		return nil, err
	}
	reg := record.NewRegistry()
	if _, err := record.Build(cat, reg); err != nil {
		return nil, err
	}
	reg.Freeze()
	a.log.With().Int("models", len(reg.Models())).Logger().Info("schemas loaded")
	return reg, nil
}

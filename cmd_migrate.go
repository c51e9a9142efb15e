package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"khabiteq-backend/db"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the ledger, log and selection tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, _, err := a.openDatabase(cmd.Context())
			if err != nil {
				return err
			}
			defer conn.Close()
			fmt.Fprintln(cmd.OutOrStdout(), "Migration completed successfully")
			return nil
		},
	}
}

// openDatabase connects using the loaded config and brings the schema up to date.
func (a *app) openDatabase(ctx context.Context) (*sql.DB, db.Dialect, error) {
	dbCfg := a.cfg.Database
	conn, dialect, err := db.Open(dbCfg.Driver, dbCfg.DataSourceName(), db.PoolOptions{
		MaxOpenConns:    dbCfg.MaxOpenConns,
		MaxIdleConns:    dbCfg.MaxIdleConns,
		ConnMaxLifetime: dbCfg.ConnMaxLifetime,
	})
	if err != nil {
		return nil, db.Dialect{}, err
	}
	a.logger.Info("connected to database", zap.String("driver", dbCfg.Driver))

	if err := db.Migrate(ctx, conn, dialect); err != nil {
		conn.Close()
		return nil, db.Dialect{}, err
	}
	return conn, dialect, nil
}

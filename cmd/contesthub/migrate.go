package main

import (
	"context"
	"fmt"
	"time"

	"contesthub-server/common/logger"
	"contesthub-server/internal/config"
	infmysql "contesthub-server/internal/infra/mysql"

	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create database tables (idempotent)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dryRun {
				for _, s := range infmysql.Statements() {
					fmt.Println(s + ";")
				}
				return nil
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()
			cfg, err := config.Load(ctx)
			if err != nil {
				return err
			}
			logger.InitLogger(cfg.Server.LogLevel)
			defer logger.Sync()

			db, err := infmysql.Open(ctx, infmysql.Options{DSN: cfg.Database.DSN, MaxOpenConns: 2, MaxIdleConns: 1})
			if err != nil {
				return err
			}
			defer db.Close()

			n, err := infmysql.Migrate(ctx, db)
			if err != nil {
				return err
			}
			fmt.Printf("applied %d statements\n", n)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the schema without touching the database")
	return cmd
}

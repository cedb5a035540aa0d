package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/getpup/pupsourcing-replay/config"
	"github.com/getpup/pupsourcing-replay/pkg/migrations"
	"github.com/getpup/pupsourcing-replay/store"
	"github.com/getpup/pupsourcing-replay/store/sqlstore"
)

var runsFlags struct {
	driver string
	dsn    string
	table  string
}

func init() {
	runsCmd.Flags().StringVar(&runsFlags.driver, "db-driver", "", "sql checkpoint dialect: postgres, mysql or sqlite")
	runsCmd.Flags().StringVar(&runsFlags.dsn, "db-dsn", "", "sql checkpoint data source name")
	runsCmd.Flags().StringVar(&runsFlags.table, "db-table", "", "sql checkpoint table (default replay_checkpoints)")
	rootCmd.AddCommand(runsCmd)
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List the runs recorded in a sql checkpoint table",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(flags.configPath)
		if err != nil {
			return err
		}

		fs := cmd.Flags()
		if fs.Changed("db-driver") {
			cfg.Checkpoint.Driver = runsFlags.driver
		}
		if fs.Changed("db-dsn") {
			cfg.Checkpoint.DSN = runsFlags.dsn
		}
		if fs.Changed("db-table") {
			cfg.Checkpoint.Table = runsFlags.table
		}
		if cfg.Checkpoint.DSN == "" {
			return fmt.Errorf("%w: --db-dsn is required", config.ErrInvalidConfig)
		}

		dialect, err := migrations.ParseDialect(cfg.Checkpoint.Driver)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		db, err := sqlstore.Open(ctx, dialect, cfg.Checkpoint.DSN)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		s, err := sqlstore.New(sqlstore.Config{DB: db, Dialect: dialect, Table: cfg.Checkpoint.Table})
		if err != nil {
			return err
		}

		runs, err := s.Runs(ctx)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(runs) == 0 {
			fmt.Fprintln(out, dimText.Render("no runs recorded"))
			return nil
		}

		for _, runID := range runs {
			data, err := s.Load(ctx, runID, store.DocumentFailed)
			if err != nil {
				return err
			}
			failed, err := store.DecodeJobs(data)
			if err != nil {
				return err
			}

			status := okText.Render("ok")
			if len(failed) > 0 {
				status = failText.Render(fmt.Sprintf("%d failed", len(failed)))
			}
			fmt.Fprintf(out, "%s %s\n", runID, status)
		}

		return nil
	},
}

package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/asaidimu/go-restful/config"
	"github.com/asaidimu/go-restful/contrib/admin"
	"github.com/asaidimu/go-restful/sqlstore"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	migrateUp      = "up"
	migrateDown    = "down"
	migrateVersion = "version"
)

func (a *App) migrateCommand() *cobra.Command {
	var (
		dir   string
		steps int
	)
	cmd := &cobra.Command{
		Use:       "migrate [up|down|version]",
		Short:     "Apply or roll back SQL migrations",
		Long:      "Apply or roll back the SQL migrations in --dir (default migrations.dir). up also creates the admin tables.",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{migrateUp, migrateDown, migrateVersion},
		RunE: func(cmd *cobra.Command, args []string) error {
			action := migrateUp
			if len(args) == 1 {
				action = args[0]
			}
			if dir == "" {
				dir = a.cfg.Migrations.Dir
			}
			if err := decryptSecrets(a.cfg); err != nil {
				return err
			}
			logger, err := config.NewLogger(a.cfg)
			if err != nil {
				return err
			}
			defer logger.Sync()
			return runMigrations(cmd.OutOrStdout(), a.cfg, logger, action, dir, steps)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "directory of NNN_name.up.sql / NNN_name.down.sql files")
	cmd.Flags().IntVar(&steps, "steps", 0, "number of migrations to roll back; 0 rolls back all")
	return cmd
}

func runMigrations(out io.Writer, cfg *config.Config, logger *zap.Logger, action, dir string, steps int) error {
	driver, dsn := cfg.DB.Driver, cfg.DB.URL
	if action == migrateUp {
		if err := admin.Migrate(driver, dsn, logger); err != nil {
			return err
		}
	}

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		if action == migrateDown {
			return fmt.Errorf("migrations directory %s does not exist", dir)
		}
		fmt.Fprintf(out, "No application migrations in %s\n", dir)
		return nil
	}
	m, err := sqlstore.NewMigrator(os.DirFS(dir), ".", driver, dsn, "", logger)
	if err != nil {
		return err
	}
	defer m.Close()

	switch action {
	case migrateUp:
		err = m.Up()
	case migrateDown:
		err = m.Down(steps)
	}
	if err != nil {
		return err
	}
	version, dirty, ok, err := m.Version()
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(out, "No migrations applied")
		return nil
	}
	fmt.Fprintf(out, "Version %d", version)
	if dirty {
		fmt.Fprint(out, " (dirty)")
	}
	fmt.Fprintln(out)
	return nil
}

// Command credsyncd serves the credsync API.
package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/persistorai/credsync/internal/config"
	"github.com/persistorai/credsync/internal/crypto"
	"github.com/persistorai/credsync/internal/db"
	"github.com/persistorai/credsync/internal/db/migrations"
	"github.com/persistorai/credsync/internal/dbpool"
)

func main() {
	root := &cobra.Command{
		Use:          "credsyncd",
		Short:        "credsync server: reconciles password-manager imports against saved credentials",
		Version:      config.Version,
		SilenceUsage: true,
	}
	root.SetVersionTemplate("{{.Version}}\n")

	root.AddCommand(newServeCmd())
	root.AddCommand(newMigrateCmd())
	root.AddCommand(newOwnerCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// newLogger builds the JSON logger used by every subsystem.
func newLogger(level string) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parsing LOG_LEVEL: %w", err)
	}

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetLevel(lvl)

	return log, nil
}

// env holds what every subcommand needs: validated config, a logger and an
// open, migrated pool.
type env struct {
	cfg  *config.Config
	log  *logrus.Logger
	pool *dbpool.Pool
}

func setup(ctx context.Context) (*env, error) {
	e, err := connect(ctx)
	if err != nil {
		return nil, err
	}

	if err := db.RunMigrations(ctx, e.pool, e.log, migrations.FS); err != nil {
		e.pool.Close()

		return nil, err
	}

	return e, nil
}

// connect is setup without the migration step.
func connect(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	pool, err := dbpool.NewPool(ctx, cfg.DatabaseURL.Value(), cfg.DBMaxConns)
	if err != nil {
		return nil, err
	}

	return &env{cfg: cfg, log: log, pool: pool}, nil
}

func newKeyProvider(cfg *config.Config) (crypto.KeyProvider, error) {
	switch cfg.EncryptionProvider {
	case "vault":
		return crypto.NewVaultProvider(cfg.VaultAddr, cfg.VaultToken.Value()), nil
	default:
		p, err := crypto.NewStaticProvider(cfg.EncryptionKey.Value())
		if err != nil {
			return nil, err
		}

		return p, nil
	}
}

func newMigrateCmd() *cobra.Command {
	var status bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if status {
				return printMigrationStatus(cmd)
			}

			e, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer e.pool.Close()

			e.log.WithField("schema_version", db.SchemaVersion()).Info("schema up to date")

			return nil
		},
	}

	cmd.Flags().BoolVar(&status, "status", false, "list migrations and whether each is applied, without applying any")

	return cmd
}

func printMigrationStatus(cmd *cobra.Command) error {
	e, err := connect(cmd.Context())
	if err != nil {
		return err
	}
	defer e.pool.Close()

	states, err := db.MigrationStatus(cmd.Context(), e.pool, migrations.FS)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tFILE\tAPPLIED")

	for _, st := range states {
		applied := "pending"
		if st.Applied {
			applied = st.AppliedAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\n", st.Version, st.File, applied)
	}

	return tw.Flush()
}

func newOwnerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "owner",
		Short: "Manage owners",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "create <name>",
		Short: "Create an owner and print its API key",
		Long:  "Create an owner. The API key is printed once and only its hash is stored.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer e.pool.Close()

			owner, apiKey, err := newOwnerStore(e).CreateOwner(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "owner_id: %s\napi_key:  %s\n", owner.ID, apiKey)

			return nil
		},
	})

	return cmd
}

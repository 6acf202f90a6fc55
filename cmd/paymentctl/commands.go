package main

import (
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"payment-records/internal/cache"
	"payment-records/internal/config"
	"payment-records/internal/logging"
	"payment-records/internal/migrations"
	"payment-records/internal/model"
	"payment-records/internal/policy"
	"payment-records/internal/repository"
	"payment-records/internal/service"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "paymentctl",
		Short:         "Operator tools for the payment records service",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(createPrincipalCmd())
	rootCmd.AddCommand(setRoleCmd())
	rootCmd.AddCommand(renewDateCmd())

	return rootCmd
}

// openDB reads configuration, opens the database and applies migrations.
func openDB(cmd *cobra.Command) (*sqlx.DB, *config.Config, *slog.Logger, error) {
	cfg, err := config.Read()
	if err != nil {
		return nil, nil, nil, err
	}

	cfg.Log.Format = "text"
	logger, err := logging.New(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, nil, err
	}

	db, err := repository.Open(cfg.DB)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := migrations.Up(cmd.Context(), db, logger); err != nil {
		db.Close()
		return nil, nil, nil, fmt.Errorf("migrate database: %w", err)
	}

	return db, cfg, logger, nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the users and payments tables if they do not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, _, _, err := openDB(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied")
			return nil
		},
	}
}

func createPrincipalCmd() *cobra.Command {
	var name, email, password, role string

	cmd := &cobra.Command{
		Use:   "create-principal",
		Short: "Create an admin or user account",
		Example: `  paymentctl create-principal --name "Asha Rai" --email asha@example.com --password s3cret-pass --role user
  paymentctl create-principal --name Root --email root@example.com --password s3cret-pass --role admin`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, _, logger, err := openDB(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			authService := service.NewAuthService(repository.NewPrincipalRepository(db), nil, logger)
			p, err := authService.CreatePrincipal(cmd.Context(), name, email, password, model.Role(role))
			if err != nil {
				return fmt.Errorf("create principal: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created %s %d (%s)\n", p.Role, p.ID, p.Email)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "login email")
	cmd.Flags().StringVar(&password, "password", "", "login password")
	cmd.Flags().StringVar(&role, "role", string(model.RoleUser), "admin or user")
	for _, f := range []string{"name", "email", "password"} {
		_ = cmd.MarkFlagRequired(f)
	}

	return cmd
}

func setRoleCmd() *cobra.Command {
	var (
		id   int64
		role string
	)

	cmd := &cobra.Command{
		Use:     "set-role",
		Short:   "Change an account between admin and user",
		Example: `  paymentctl set-role --id 5 --role admin`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r := model.Role(role)
			if !r.Valid() {
				return fmt.Errorf("set role: unknown role %q", role)
			}

			db, cfg, logger, err := openDB(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			rdb := cache.Connect(cmd.Context(), cfg.Redis)
			if rdb != nil {
				defer rdb.Close()
			}

			principals := cache.NewPrincipalCache(repository.NewPrincipalRepository(db), rdb, cfg.Redis.TTL)
			if err := principals.UpdateRole(cmd.Context(), id, r); err != nil {
				return fmt.Errorf("set role: %w", err)
			}

			logger.Info("principal role changed", "principal_id", id, "role", r)
			fmt.Fprintf(cmd.OutOrStdout(), "Principal %d is now %s\n", id, r)
			return nil
		},
	}

	cmd.Flags().Int64Var(&id, "id", 0, "principal id")
	cmd.Flags().StringVar(&role, "role", "", "admin or user")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("role")

	return cmd
}

func renewDateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "renew-date YYYY-MM-DD",
		Short: "Print the renewal date for a payment date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := model.ParseDate(args[0])
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), policy.DeriveRenewDate(d))
			return nil
		},
	}
}

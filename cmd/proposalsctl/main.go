// Command proposalsctl is the operator tool for the proposals server: it
// applies migrations, prints the transition table and issues development
// tokens.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"

	"proposals/internal/platform/config"
	"proposals/internal/proposal/lifecycle"
	"proposals/migrations"
	id "proposals/pkg/domain"
	"proposals/pkg/platform/middleware/auth"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "proposalsctl",
		Short:         "Operate the proposal lifecycle server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(migrateCmd(), transitionsCmd(), tokenCmd())
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded schema to DATABASE_URL",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			if !cfg.UsesPostgres() {
				return fmt.Errorf("DATABASE_URL is not set")
			}
			db, err := sql.Open("postgres", cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()
			if err := migrations.Up(ctx, db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func transitionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "transitions",
		Short: "Print the legal status transitions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printTransitions(cmd.OutOrStdout())
		},
	}
}

func printTransitions(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FROM\tTO\tACTOR\tAUDIT\tEVENT")
	for _, t := range lifecycle.Transitions() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", t.From, t.To, t.Actor, t.Action, t.Name)
	}
	return tw.Flush()
}

func tokenCmd() *cobra.Command {
	var (
		user string
		role string
		ttl  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token signed with JWT_SIGNING_KEY",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			token, err := issueToken(cfg, user, role, ttl, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "User ID (UUID) to embed as subject")
	cmd.Flags().StringVar(&role, "role", string(id.RoleStudent), "Role: student, reviewer or admin")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func issueToken(cfg config.Server, user, role string, ttl time.Duration, now time.Time) (string, error) {
	userID, err := id.ParseUserID(user)
	if err != nil {
		return "", err
	}
	parsedRole, err := id.ParseRole(role)
	if err != nil {
		return "", err
	}
	validator := auth.NewHS256Validator(cfg.JWTSigningKey, cfg.JWTIssuer)
	return validator.Issue(id.Caller{ID: userID, Role: parsedRole}, ttl, now)
}

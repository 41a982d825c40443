package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/noah-isme/gema-grader/internal/middleware"
)

func newTokenCmd(app *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the grading API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.runToken(cmd)
		},
	}
	cmd.Flags().String("subject", "", "grader identifier stored as the token subject")
	cmd.Flags().String("login", "", "grader login")
	cmd.Flags().String("role", "grader", "role granted by the token")
	cmd.Flags().Duration("ttl", 8*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

func (a *cli) runToken(cmd *cobra.Command) error {
	cfg, err := a.config()
	if err != nil {
		return err
	}
	if cfg.JWTSecret == "" {
		return errors.New("GRADER_JWT_SECRET or jwt.secret must be set")
	}

	subject, _ := cmd.Flags().GetString("subject")
	login, _ := cmd.Flags().GetString("login")
	role, _ := cmd.Flags().GetString("role")
	ttl, _ := cmd.Flags().GetDuration("ttl")

	token, err := middleware.IssueToken(cfg.JWTSecret, subject, login, role, ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}

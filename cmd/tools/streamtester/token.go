package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/king-app/king/backend/internal/auth"
)

func newTokenCmd() *cobra.Command {
	var (
		userID    int64
		role      string
		tokenType string
		ttl       time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development token signed with JWT_SECRET",
		RunE: func(cmd *cobra.Command, args []string) error {
			tokens, err := auth.NewTokenService(os.Getenv("JWT_SECRET"), os.Getenv("JWT_ISSUER"), ttl)
			if err != nil {
				return err
			}
			token, err := tokens.Issue(userID, role, tokenType)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 1, "user id placed in the userId claim")
	cmd.Flags().StringVar(&role, "role", "ROLE_USER", "role claim")
	cmd.Flags().StringVar(&tokenType, "type", auth.TypeAccess, "token type (accessToken or refreshToken)")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}

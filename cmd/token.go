package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/dutysched/auth"
)

var (
	tokenSubject string
	tokenRole    string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an API token signed with http.auth.jwt_secret",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.HTTP.Auth.JWTSecret == "" {
			return errors.New("http.auth.jwt_secret is not configured")
		}
		tok, err := auth.IssueToken(cfg.HTTP.Auth, tokenSubject, tokenRole, time.Now())
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), tok)
		return err
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "operator", "token subject")
	tokenCmd.Flags().StringVar(&tokenRole, "role", auth.RoleViewer, "role: viewer or dispatcher")
	rootCmd.AddCommand(tokenCmd)
}

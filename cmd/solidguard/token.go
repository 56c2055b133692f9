package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/xxxsen/solidguard/internal/pkg/password"
	"github.com/xxxsen/solidguard/internal/service"
)

func newTokenCmd(load configLoader) *cobra.Command {
	var (
		hash    bool
		subject string
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "mint an api token, or with --hash print a bcrypt hash of a password read from stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			if hash {
				line, err := bufio.NewReader(os.Stdin).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read password: %w", err)
				}
				plain := strings.TrimRight(line, "\r\n")
				if plain == "" {
					return fmt.Errorf("empty password")
				}
				hashed, err := password.Hash(plain)
				if err != nil {
					return err
				}
				fmt.Println(hashed)
				return nil
			}
			cfg, err := load()
			if err != nil {
				return err
			}
			auth := service.NewAuthService(cfg.Auth.PasswordHash, []byte(cfg.Auth.JWTSecret),
				time.Hour*time.Duration(cfg.Auth.JWTTTLHours))
			if !auth.Enabled() {
				return fmt.Errorf("auth.jwt_secret is not configured")
			}
			token, err := auth.IssueToken(subject)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().BoolVar(&hash, "hash", false, "hash a password for auth.password_hash")
	cmd.Flags().StringVar(&subject, "subject", "operator", "token subject")
	return cmd
}

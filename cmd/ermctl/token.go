package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/emergent-company/erm/domain/policy"
	"github.com/emergent-company/erm/internal/config"
	"github.com/emergent-company/erm/pkg/auth"
)

// newTokenCommand mints identity tokens against AUTH_TOKEN_SECRET. Local
// development only; production tokens come from the identity service.
func newTokenCommand() *cobra.Command {
	var (
		id  auth.Identity
		ttl time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a development identity token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Parse()
			if err != nil {
				return err
			}
			token, err := issueToken(cfg.Auth, id, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&id.Subject, "subject", "dev-user", "token subject")
	cmd.Flags().StringVarP(&id.WorkspaceID, "workspace", "w", "", "workspace id")
	cmd.Flags().StringVar(&id.Role, "role", string(policy.RoleOwner), "owner, admin, member or guest")
	cmd.Flags().BoolVar(&id.WorkspacePublic, "public", false, "mark the workspace public")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("workspace")
	return cmd
}

func issueToken(cfg config.AuthConfig, id auth.Identity, ttl time.Duration) (string, error) {
	if cfg.TokenSecret == "" {
		return "", auth.ErrMissingSecret
	}
	if !policy.Role(id.Role).Valid() {
		return "", fmt.Errorf("unknown role %q", id.Role)
	}
	return auth.NewTokenVerifier(cfg.TokenSecret, cfg.Issuer, cfg.ClockSkew).Issue(id, ttl)
}

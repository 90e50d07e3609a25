package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/noah-isme/tutoring-scheduler-api/internal/models"
	"github.com/noah-isme/tutoring-scheduler-api/internal/service"
	"github.com/noah-isme/tutoring-scheduler-api/pkg/config"
)

// TokenOptions holds flags for the token command.
type TokenOptions struct {
	*RootOptions
	UserID string
	Role   string
	TTL    time.Duration
}

// NewTokenCommand creates the token command.
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TokenOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token signed with JWT_SECRET",
		Long: `Mint a bearer token for local development. Production tokens come from
the identity service and share its secret.

Example:
  tutoring-scheduler token --user tutor-1 --role TUTOR --ttl 2h`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cfg.Env == config.EnvProduction {
				return fmt.Errorf("token minting is disabled in production")
			}
			role := models.UserRole(strings.ToUpper(opts.Role))
			switch role {
			case models.RoleAdmin, models.RoleTutor, models.RoleStudent:
			default:
				return fmt.Errorf("unknown role %q", opts.Role)
			}

			auth := service.NewAuthService(service.AuthConfig{Secret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer}, nil)
			token, err := auth.IssueToken(opts.UserID, role, opts.TTL)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.Format == "json" {
				return json.NewEncoder(out).Encode(map[string]string{"token": token, "user_id": opts.UserID, "role": string(role)})
			}
			_, err = fmt.Fprintln(out, token)
			return err
		},
	}

	cmd.Flags().StringVar(&opts.UserID, "user", "", "user id carried in the token (required)")
	cmd.Flags().StringVar(&opts.Role, "role", string(models.RoleStudent), "ADMIN, TUTOR or STUDENT")
	cmd.Flags().DurationVar(&opts.TTL, "ttl", time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

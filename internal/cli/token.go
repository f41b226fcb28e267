package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/amerhub/amerhub/internal/config"
	"github.com/amerhub/amerhub/internal/gateway"
	"github.com/amerhub/amerhub/internal/hub"
)

// newTokenCmd mints a signed bearer token for a given identity. Useful
// for local testing and for backends that delegate token issuance.
func newTokenCmd() *cobra.Command {
	var (
		identity string
		role     string
		name     string
		ttl      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for an identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}
			if cfg.Hub.Auth.Secret == "" {
				return fmt.Errorf("hub.auth.secret is not configured")
			}
			if identity == "" {
				return fmt.Errorf("--identity is required")
			}
			if !hub.ValidRole(role) {
				return fmt.Errorf("--role must be applicant, officer or admin")
			}
			if ttl == 0 {
				ttl = time.Duration(cfg.Hub.Auth.TokenTTLMinutes) * time.Minute
			}

			token, err := gateway.NewVerifier(cfg.Hub.Auth.Secret).Mint(identity, role, name, ttl)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}

	cmd.Flags().StringVar(&identity, "identity", "", "stable user identity (token subject)")
	cmd.Flags().StringVar(&role, "role", "applicant", "role claim (applicant, officer, admin)")
	cmd.Flags().StringVar(&name, "name", "", "display name claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default from config)")

	return cmd
}

package commands

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	jwttoken "edureg/internal/jwt_token"
	"edureg/internal/platform/config"
	id "edureg/pkg/domain"
)

type tokenOutput struct {
	Token     string `json:"token"`
	Identity  string `json:"identity"`
	ExpiresAt string `json:"expires_at"`
	Usage     string `json:"usage"`
}

func tokenCmd() *cobra.Command {
	var (
		identity string
		ttl      time.Duration
		key      string
		issuer   string
		audience string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token that authenticates as the given identity",
		Long: "Mint a bearer token that authenticates as the given identity.\n" +
			"Without --key the development signing key is used, which the server rejects in production.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			caller, err := id.ParseIdentity(identity)
			if err != nil {
				return fmt.Errorf("--identity: %w", err)
			}

			svc := jwttoken.NewJWTService(key, issuer, audience, ttl)
			token, err := svc.GenerateCallerToken(cmd.Context(), caller)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !asJSON {
				_, err = fmt.Fprintln(out, token)
				return err
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(tokenOutput{
				Token:     token,
				Identity:  caller.String(),
				ExpiresAt: time.Now().Add(ttl).UTC().Format(time.RFC3339),
				Usage:     "Authorization: Bearer " + token,
			})
		},
	}

	cmd.Flags().StringVar(&identity, "identity", "", "caller identity carried in the token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token time-to-live")
	cmd.Flags().StringVar(&key, "key", config.DevSigningKey, "HS256 signing key (JWT_SIGNING_KEY on the server)")
	cmd.Flags().StringVar(&issuer, "issuer", "edureg", "token issuer (JWT_ISSUER on the server)")
	cmd.Flags().StringVar(&audience, "audience", "edureg-api", "token audience (JWT_AUDIENCE on the server)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print token details as JSON")
	_ = cmd.MarkFlagRequired("identity")
	return cmd
}

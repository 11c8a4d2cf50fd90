package cmd

import (
	"fmt"
	"os"

	"github.com/longkey1/lome/internal/lome/api"
	"github.com/longkey1/lome/internal/lome/auth"
	"github.com/spf13/cobra"
)

var (
	tokenEmail  string
	tokenRemote bool
)

// tokenCmd represents the token command
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a session token for a persona",
	Long: `Issue a session token for a development or test persona.

The email must use the @dev.lome-chat.com or @test.lome-chat.com domain. The
token is signed locally with session_secret, or, with --remote, requested
from server_url (which must run with --dev-personas).

Store the printed token as session_token in the config file or export it:
  export LOME_SESSION_TOKEN=$(lome token --email alice@dev.lome-chat.com)`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}

		if tokenRemote {
			if !cfg.Remote() {
				return fmt.Errorf("--remote requires server_url to be set")
			}
			session, err := api.NewClient(cfg.ServerURL, "").DevSession(cmd.Context(), tokenEmail)
			if err != nil {
				return fmt.Errorf("requesting session: %w", err)
			}
			fmt.Println(session.Token)
			fmt.Fprintf(os.Stderr, "Signed in as %s (%s)\n", session.User.Name, session.User.Email)
			return nil
		}

		user, err := auth.Persona(tokenEmail)
		if err != nil {
			return err
		}
		ttl, err := cfg.SessionTTLDuration()
		if err != nil {
			return err
		}
		if ttl <= 0 {
			ttl = auth.DefaultTTL
		}
		issuer, err := auth.NewIssuer(cfg.SessionSecret, ttl)
		if err != nil {
			return fmt.Errorf("creating token issuer: %w", err)
		}
		token, err := issuer.Issue(*user)
		if err != nil {
			return fmt.Errorf("issuing token: %w", err)
		}

		logger.Debug("issued token", "user_id", user.ID, "email", user.Email)
		fmt.Println(token)
		fmt.Fprintf(os.Stderr, "Token for %s (%s), valid for %s\n", user.Name, user.Email, ttl)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd)

	tokenCmd.Flags().StringVar(&tokenEmail, "email", "", "Persona email (@dev.lome-chat.com or @test.lome-chat.com)")
	tokenCmd.Flags().BoolVar(&tokenRemote, "remote", false, "Request the token from server_url")
	tokenCmd.MarkFlagRequired("email")
}

package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/vigil/pkg/config"
	"github.com/marmos91/vigil/pkg/restoreauth"
)

var tokenTTL time.Duration

var tokenCmd = &cobra.Command{
	Use:   "issue-token <subject>",
	Short: "Issue a bearer token for the query API",
	Long: `Issue issues an HS256 bearer token scoped to subject, for use against
File/List.json and Data/*.json when the server is configured with
server.query_auth_secret. Fails with an error when that secret is
unset; the query endpoints then need no token.`,
	Args: cobra.ExactArgs(1),
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}
	if cfg.Server.QueryAuthSecret == "" {
		return fmt.Errorf("issue-token: server.query_auth_secret is not configured")
	}

	auth, err := restoreauth.New(cfg.Server.QueryAuthSecret, "vigil-server")
	if err != nil {
		return err
	}

	token, err := auth.IssueToken(args[0], tokenTTL)
	if err != nil {
		return err
	}

	fmt.Println(token)
	return nil
}

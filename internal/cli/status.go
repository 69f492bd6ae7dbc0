package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lazypower/strata/internal/client"
)

var statusURL string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report the health of a running strata server",
	RunE: func(cmd *cobra.Command, args []string) error {
		url := statusURL
		if url == "" {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			url = "http://" + cfg.ListenAddr()
		}
		h, err := client.New(url).Health(cmd.Context())
		if err != nil {
			return fmt.Errorf("server at %s: %w", url, err)
		}
		return printJSON(cmd.OutOrStdout(), h)
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusURL, "url", "", "server base URL (default from STRATA_BIND and STRATA_PORT)")
}

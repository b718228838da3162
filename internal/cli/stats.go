package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/BioHazard786/Huddle/internal/config"
	"github.com/BioHazard786/Huddle/internal/dns"
	"github.com/BioHazard786/Huddle/internal/ui"
)

const statsTimeout = 10 * time.Second

var flagToken string

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show room and connection counts of the relay",
	Long: `Query the relay's /stats endpoint.

The relay only serves stats when it is started with STATS_TOKEN; pass the
same token with --token or the STATS_TOKEN environment variable.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		token := flagToken
		if token == "" {
			token = os.Getenv("STATS_TOKEN")
		}

		stopSpinner := ui.RunConnectionSpinner("Fetching relay stats...")
		stats, err := fetchStats(cmd.Context(), newHTTPClient(&dns.Resolver{}), cfg, token)
		stopSpinner()
		if err != nil {
			return err
		}

		fmt.Println(ui.StatsView(cfg.Domain, stats, time.Now()))
		return nil
	},
}

func init() {
	statsCmd.Flags().StringVarP(&flagToken, "token", "t", "", "Stats token configured on the relay (env: STATS_TOKEN)")
}

func newHTTPClient(r *dns.Resolver) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = r.DialContext
	return &http.Client{Transport: transport, Timeout: statsTimeout}
}

func fetchStats(ctx context.Context, client *http.Client, cfg *config.Config, token string) (ui.RelayStats, error) {
	var stats ui.RelayStats

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.GetStatsURL(), nil)
	if err != nil {
		return stats, fmt.Errorf("build stats request: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return stats, fmt.Errorf("fetch stats: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return stats, errors.New("relay rejected the stats token")
	case http.StatusNotFound:
		return stats, fmt.Errorf("stats are disabled on %s", cfg.Domain)
	default:
		return stats, fmt.Errorf("fetch stats: unexpected status %s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return stats, fmt.Errorf("decode stats: %w", err)
	}
	return stats, nil
}

package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"inbox/internal/config"
	"inbox/internal/content"
	"inbox/internal/relay"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
)

func newWhoCommand() *cobra.Command {
	var adminAddr string

	cmd := &cobra.Command{
		Use:   "who",
		Short: "List users connected to a running relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(false)
			if err != nil {
				return err
			}
			if adminAddr != "" {
				cfg.AdminAddr = adminAddr
			}
			return Who(cmd.OutOrStdout(), cfg)
		},
	}

	cmd.Flags().StringVar(&adminAddr, "admin-addr", "", "relay admin address (overrides RELAY_ADMIN_ADDR)")

	return cmd
}

// Who prints the presence list of the relay whose admin API listens on
// cfg.AdminAddr.
func Who(out io.Writer, cfg *config.Config) error {
	client := &http.Client{Timeout: 5 * time.Second}

	url := fmt.Sprintf("http://%s/presence", cfg.AdminAddr)
	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("failed to call admin API: %w. Is the relay running?", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("failed to list users (Status: %d): %s", resp.StatusCode, string(body))
	}

	var online []relay.Presence
	if err := json.NewDecoder(resp.Body).Decode(&online); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if len(online) == 0 {
		_, err := fmt.Fprintln(out, "Nobody is online.")
		return err
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("NAME", "ROLE", "ID", "ONLINE SINCE")
	for _, p := range online {
		role := "user"
		if p.IsAdmin {
			role = "admin"
		}
		since := time.Unix(p.Since, 0).Format(time.DateTime)
		// Names and ids come from peers.
		t.Row(content.Sanitize(p.Name), role, content.Sanitize(p.ID), since)
	}

	_, err = fmt.Fprintln(out, t.Render())
	return err
}

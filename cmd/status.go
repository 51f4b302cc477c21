package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/crystaldolphin/hermes/internal/config"
	"github.com/crystaldolphin/hermes/internal/providers"
	"github.com/crystaldolphin/hermes/internal/shared/cmdutils"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show hermes configuration and, if running, link status",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	path := configPath()

	cmdutils.Heading(out, "hermes status")

	_, statErr := os.Stat(path)
	cmdutils.Row(out, "Config", path+" "+cmdutils.Mark(statErr == nil))

	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(out, "  (could not load config: %v)\n", err)
		return nil
	}

	cmdutils.Row(out, "Backend", cfg.Backend.URL)
	cmdutils.Row(out, "Websocket", cfg.Backend.WebsocketURL())
	cmdutils.Row(out, "API key", cmdutils.TokenHint(cfg.Backend.APIKey))
	cmdutils.Row(out, "Frontend", cfg.Gateway.FrontendURL)
	cmdutils.Row(out, "Model", cfg.Agent.Model)
	persona := cfg.PersonaPath()
	if persona == "" {
		persona = cmdutils.Dim("(built-in)")
	}
	cmdutils.Row(out, "Persona", persona)
	fmt.Fprintln(out)

	printProviders(out, cfg)
	fmt.Fprintln(out)
	printLink(out, cfg)
	return nil
}

func printProviders(out io.Writer, cfg *config.Config) {
	active := cfg.GetProviderName("")
	fmt.Fprintln(out, "Providers:")
	for _, spec := range providers.Providers {
		p := cfg.ProviderByName(spec.Name)
		if p == nil {
			continue
		}
		label := spec.Label()
		if spec.Name == active {
			label += " *"
		}
		switch {
		case spec.IsLocal:
			if p.APIBase != "" {
				fmt.Fprintf(out, "  %-20s %s %s\n", label, cmdutils.Mark(true), p.APIBase)
			} else {
				fmt.Fprintf(out, "  %-20s %s\n", label, cmdutils.Dim("(not set)"))
			}
		default:
			if p.APIKey != "" {
				fmt.Fprintf(out, "  %-20s %s\n", label, cmdutils.Mark(true))
			} else {
				fmt.Fprintf(out, "  %-20s %s\n", label, cmdutils.Dim("(not set)"))
			}
		}
	}
}

// printLink asks a running gateway for its link status.
func printLink(out io.Writer, cfg *config.Config) {
	host := cfg.Gateway.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	url := "http://" + net.JoinHostPort(host, strconv.Itoa(cfg.Gateway.Port)) + "/healthz"

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		cmdutils.Row(out, "Link", cmdutils.Dim("not running"))
		return
	}
	defer resp.Body.Close()

	var health struct {
		State   string `json:"state"`
		Ready   bool   `json:"ready"`
		Sockets int    `json:"sockets"`
		Stats   struct {
			Reconnects int64 `json:"reconnects"`
			Handled    int64 `json:"handled"`
			Failed     int64 `json:"failed"`
		} `json:"stats"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		cmdutils.Row(out, "Link", fmt.Sprintf("unreadable health response (%v)", err))
		return
	}
	cmdutils.Row(out, "Link", health.State+" "+cmdutils.Mark(health.Ready))
	cmdutils.Row(out, "Sockets", strconv.Itoa(health.Sockets))
	cmdutils.Row(out, "Replies", fmt.Sprintf("%d handled, %d failed, %d reconnects",
		health.Stats.Handled, health.Stats.Failed, health.Stats.Reconnects))
}

package cmd

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/crystaldolphin/hermes/internal/config"
	"github.com/crystaldolphin/hermes/internal/shared/cmdutils"
)

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Initialize configuration and persona",
	RunE:  runOnboard,
}

const personaTemplate = `---
name: hermes
window: 5
eviction: false
---
You are a helpful assistant.
`

func runOnboard(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	path := configPath()
	personaPath := filepath.Join(filepath.Dir(path), "persona.md")

	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(out, "Config already exists at %s\n", path)
		fmt.Fprintf(out, "Press Enter to refresh (keep existing values) or Ctrl+C to cancel: ")
		_, _ = bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		existing, loadErr := config.LoadWith(path, nil)
		if loadErr != nil {
			def := config.DefaultConfig()
			existing = &def
		}
		if err := config.Save(existing, path); err != nil {
			return err
		}
		fmt.Fprintf(out, "%s Config refreshed at %s\n", cmdutils.Mark(true), path)
	} else {
		cfg := config.DefaultConfig()
		cfg.Agent.PersonaPath = personaPath
		if err := config.Save(&cfg, path); err != nil {
			return err
		}
		fmt.Fprintf(out, "%s Created config at %s\n", cmdutils.Mark(true), path)
	}

	if _, err := os.Stat(personaPath); os.IsNotExist(err) {
		if err := os.WriteFile(personaPath, []byte(personaTemplate), 0o644); err != nil {
			return fmt.Errorf("write persona: %w", err)
		}
		fmt.Fprintf(out, "%s Created persona at %s\n", cmdutils.Mark(true), personaPath)
	}

	fmt.Fprintf(out, "\n%s hermes is ready!\n\n", cmdutils.Logo)
	fmt.Fprintln(out, "Next steps:")
	fmt.Fprintf(out, "  1. Set %s (the agent account key) and %s, or edit %s\n",
		config.EnvOuroAPIKey, config.EnvOpenAIAPIKey, path)
	fmt.Fprintln(out, "  2. Run: hermes serve")
	return nil
}

// Package main implements streamsup-init, the first-run setup wizard and
// day-two configuration helper for the streamsup daemon.
//
// Usage:
//
//	streamsup-init wizard    Interactively populate the required config fields
//	streamsup-init validate  Validate the config file and print errors, if any
//	streamsup-init restore --from=PATH  Restore config from a backup
//	streamsup-init menu      Launch the interactive management menu
package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/huh"

	"github.com/edgestream/streamsup/internal/config"
	"github.com/edgestream/streamsup/internal/menu"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "wizard":
		err = runWizard(config.ConfigFilePath)
	case "validate":
		err = runValidate(config.ConfigFilePath)
	case "restore":
		err = runRestore(os.Args[2:])
	case "menu":
		err = menu.CreateMainMenu().Display()
	default:
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "streamsup-init: %v\n", err)
		os.Exit(1)
	}
}

// runWizard prompts for the fields DefaultConfig leaves empty — the ones
// that are deployment-specific rather than production-sensible defaults —
// then backs up any existing config and saves the result.
func runWizard(path string) error {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		cfg = config.DefaultConfig()
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Control-plane base URL").
				Description("e.g. https://api.example.com").
				Value(&cfg.BaseURL).
				Validate(requireNonEmpty("base URL")),
			huh.NewInput().
				Title("Ground ID").
				Description("Identifies this agent to the control plane").
				Value(&cfg.GroundID).
				Validate(requireNonEmpty("ground ID")),
			huh.NewInput().
				Title("Client logo path").
				Description("Overlay image composited onto every outgoing stream").
				Value(&cfg.Overlay.ClientLogoPath).
				Validate(requireNonEmpty("client logo path")),
		),
	)

	if err := form.Run(); err != nil {
		if err == huh.ErrUserAborted {
			return fmt.Errorf("setup aborted")
		}
		return fmt.Errorf("run wizard form: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration is still invalid: %w", err)
	}

	backupDir := config.GetBackupDir(path)
	if _, err := config.BackupBeforeSave(cfg, path, backupDir); err != nil {
		return fmt.Errorf("save configuration: %w", err)
	}

	fmt.Printf("Configuration saved to %s\n", path)
	return nil
}

func runValidate(path string) error {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%s is invalid: %w", path, err)
	}
	fmt.Printf("%s is valid\n", path)
	return nil
}

func runRestore(args []string) error {
	var from string
	for _, a := range args {
		if v, ok := flagValue(a, "--from="); ok {
			from = v
		}
	}
	if from == "" {
		return fmt.Errorf("usage: streamsup-init restore --from=PATH")
	}

	path := config.ConfigFilePath
	backupDir := config.GetBackupDir(path)
	prev, err := config.RestoreBackup(from, path, backupDir)
	if err != nil {
		return fmt.Errorf("restore backup: %w", err)
	}
	if prev != "" {
		fmt.Printf("Previous configuration backed up to %s\n", prev)
	}
	fmt.Printf("Configuration restored from %s\n", from)
	return nil
}

func flagValue(arg, prefix string) (string, bool) {
	if len(arg) <= len(prefix) || arg[:len(prefix)] != prefix {
		return "", false
	}
	return arg[len(prefix):], true
}

func requireNonEmpty(field string) func(string) error {
	return func(s string) error {
		if s == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

func printUsage() {
	fmt.Println("streamsup-init - setup wizard for streamsup")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  streamsup-init wizard                 Interactively configure required fields")
	fmt.Println("  streamsup-init validate                Validate the config file")
	fmt.Println("  streamsup-init restore --from=PATH     Restore config from a backup")
	fmt.Println("  streamsup-init menu                    Launch the interactive management menu")
}

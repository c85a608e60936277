package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/persistorai/credsync/client"
)

func newInitCmd() *cobra.Command {
	var (
		initURL    string
		initAPIKey string
		profile    string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Set up credsync CLI configuration",
		Long:  "Interactive setup wizard that writes a profile to ~/.credsync/config.yaml",
		RunE: func(cmd *cobra.Command, args []string) error {
			nonInteractive := initURL != "" || initAPIKey != ""
			return runInit(cmd.Context(), initURL, initAPIKey, profile, nonInteractive)
		},
	}

	cmd.Flags().StringVar(&initURL, "url", "", "Server URL (non-interactive mode)")
	cmd.Flags().StringVar(&initAPIKey, "api-key", "", "API key (non-interactive mode)")
	cmd.Flags().StringVar(&profile, "profile", "default", "Profile name to write and activate")
	return cmd
}

func runInit(ctx context.Context, url, apiKey, profile string, nonInteractive bool) error {
	if !nonInteractive {
		fmt.Println("\n  credsync setup")
		fmt.Println("  --------------")
		fmt.Println()

		reader := bufio.NewReader(os.Stdin)

		fmt.Printf("  Server URL [%s]: ", defaultURL)
		line, _ := reader.ReadString('\n')
		if line = strings.TrimSpace(line); line != "" {
			url = line
		}

		fmt.Print("  API Key: ")
		keyLine, _ := reader.ReadString('\n')
		apiKey = strings.TrimSpace(keyLine)
	}

	if url == "" {
		url = defaultURL
	}
	if apiKey == "" {
		return fmt.Errorf("API key is required")
	}

	ver, err := testConnection(ctx, url, apiKey)
	if err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	if !nonInteractive {
		fmt.Printf("\n  Connected (v%s)\n", ver)
	}

	cfgPath, err := writeConfig(url, apiKey, profile)
	if err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	fmt.Printf("Config saved to %s\n", cfgPath)
	if !nonInteractive {
		fmt.Println()
		fmt.Println("  Next steps:")
		fmt.Println("    credsync doctor              # Full diagnostic check")
		fmt.Println("    credsync plan export.csv     # Preview an import")
		fmt.Println()
	}
	return nil
}

// testConnection checks the server is up and the key is accepted.
func testConnection(ctx context.Context, url, apiKey string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	c := client.New(url, client.WithAPIKey(apiKey), client.WithRetries(0, 0))
	health, err := c.Health(ctx)
	if err != nil {
		return "", err
	}
	if _, err := c.Credentials.List(ctx); err != nil {
		return "", err
	}

	if health.Version == "" {
		return "unknown", nil
	}
	return health.Version, nil
}

// writeConfig adds or replaces profile in the config file and makes it active.
func writeConfig(url, apiKey, profile string) (string, error) {
	cfgPath, cfg, err := loadConfigFile()
	if cfgPath == "" {
		return "", err
	}
	if cfg == nil {
		cfg = &configFile{}
	}
	if cfg.Profiles == nil {
		cfg.Profiles = make(map[string]configProfile)
	}
	cfg.Profiles[profile] = configProfile{URL: url, APIKey: apiKey}
	cfg.ActiveProfile = profile

	if err := os.MkdirAll(filepath.Dir(cfgPath), 0o700); err != nil {
		return "", err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(cfgPath, data, 0o600); err != nil {
		return "", err
	}
	return cfgPath, nil
}

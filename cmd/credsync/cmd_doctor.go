package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/persistorai/credsync/client"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose configuration and connectivity",
		Long:  "Run diagnostic checks against config, server, schema, and auth",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(cmd.Context())
		},
	}
}

type checkResult struct {
	Name   string
	Passed bool
	Detail string
	Hint   string
}

var errDoctorFailed = errors.New("doctor found issues")

func runDoctor(ctx context.Context) error {
	results := doctorChecks(ctx)

	fmt.Println("\ncredsync doctor")
	fmt.Println("===============")
	fmt.Println()

	allPassed := true
	for _, r := range results {
		mark := "ok  "
		if !r.Passed {
			mark = "FAIL"
			allPassed = false
		}
		if r.Detail != "" {
			fmt.Printf("[%s] %s: %s\n", mark, r.Name, r.Detail)
		} else {
			fmt.Printf("[%s] %s\n", mark, r.Name)
		}
		if !r.Passed && r.Hint != "" {
			fmt.Printf("       Hint: %s\n", r.Hint)
		}
	}

	fmt.Println()
	if !allPassed {
		fmt.Println("Some checks failed.")
		return errDoctorFailed
	}
	fmt.Println("All checks passed.")
	return nil
}

// doctorChecks runs each check against the settings resolveConfig produced.
func doctorChecks(ctx context.Context) []checkResult {
	var results []checkResult

	cfgPath, _, cfgErr := loadConfigFile()
	if cfgErr != nil {
		results = append(results, checkResult{Name: "Config file", Detail: cfgPath, Hint: "Run: credsync init"})
	} else {
		results = append(results, checkResult{Name: "Config file", Passed: true, Detail: fmt.Sprintf("found (%s)", cfgPath)})
	}

	results = append(results, checkResult{Name: "Server URL", Passed: true, Detail: flagURL})

	if flagKey == "" {
		results = append(results, checkResult{Name: "API key", Hint: "Set --api-key, CREDSYNC_API_KEY, or run credsync init"})
	} else {
		results = append(results, checkResult{Name: "API key", Passed: true, Detail: "configured"})
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	c := apiClient
	if c == nil {
		c = client.New(flagURL, client.WithAPIKey(flagKey))
	}

	health, err := c.Health(ctx)
	if err != nil {
		return append(results, checkResult{
			Name: "Server reachable", Detail: flagURL,
			Hint: fmt.Sprintf("Is credsyncd running? Error: %v", err),
		})
	}
	results = append(results, checkResult{Name: "Server reachable", Passed: true, Detail: "v" + health.Version})

	if ready, err := c.Ready(ctx); err != nil {
		results = append(results, checkResult{
			Name: "Database schema",
			Hint: fmt.Sprintf("Run: credsyncd migrate. Error: %v", err),
		})
	} else {
		results = append(results, checkResult{Name: "Database schema", Passed: true, Detail: fmt.Sprintf("version %d", ready.SchemaVersion)})
	}

	if flagKey != "" {
		if _, err := c.Credentials.List(ctx); err != nil {
			hint := fmt.Sprintf("Error: %v", err)
			if client.IsUnauthorized(err) {
				hint = "The API key was rejected. Create one with: credsyncd owner create <name>"
			}
			results = append(results, checkResult{Name: "Authentication", Hint: hint})
		} else {
			results = append(results, checkResult{Name: "Authentication", Passed: true, Detail: "valid"})
		}
	}

	return results
}

package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/stellarlinkco/kindred/internal/config"
	"github.com/stellarlinkco/kindred/internal/gateway"
	"github.com/stellarlinkco/kindred/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "kindred",
	Short: "kindred - conversational companion gateway",
}

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Start the full gateway (telegram + sweeps)",
	RunE:  runGateway,
}

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Initialize config and data directories",
	RunE:  runOnboard,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show config and database counters",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(gatewayCmd, onboardCmd, statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runGateway(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	if cfg.Provider.APIKey == "" {
		return fmt.Errorf("API key not set. Run 'kindred onboard' or set KINDRED_API_KEY / ANTHROPIC_API_KEY")
	}
	if cfg.Telegram.Token == "" {
		fmt.Println("Warning: telegram token not set, no channel will be started")
	}

	gw, err := gateway.New(cfg)
	if err != nil {
		return err
	}
	return gw.Run(context.Background())
}

func runOnboard(cmd *cobra.Command, args []string) error {
	cfgPath := config.ConfigPath()

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		cfg := config.DefaultConfig()
		if err := config.SaveConfig(cfg); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		fmt.Printf("Created config: %s\n", cfgPath)
	} else {
		fmt.Printf("Config already exists: %s\n", cfgPath)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.Data.BlobDir, 0755); err != nil {
		return fmt.Errorf("create blob dir: %w", err)
	}
	fmt.Printf("Memory dir ready: %s\n", cfg.Data.BlobDir)

	fmt.Println("\nNext steps:")
	fmt.Printf("  1. Edit %s to set your API key and telegram token\n", cfgPath)
	fmt.Println("  2. Or set KINDRED_API_KEY and KINDRED_TELEGRAM_TOKEN environment variables")
	fmt.Println("  3. Run 'kindred gateway' to start")

	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Config: error (%v)\n", err)
		return nil
	}

	fmt.Printf("Config: %s\n", config.ConfigPath())
	fmt.Printf("Character: %s\n", cfg.Character.Name)
	fmt.Printf("Model: %s\n", cfg.Provider.Model)
	fmt.Printf("Extraction model: %s\n", cfg.Provider.ExtractionModel)
	if key := cfg.Provider.APIKey; key != "" && len(key) > 8 {
		fmt.Printf("API Key: %s...%s\n", key[:4], key[len(key)-4:])
	} else if cfg.Provider.APIKey != "" {
		fmt.Println("API Key: set")
	} else {
		fmt.Println("API Key: not set")
	}
	fmt.Printf("Telegram: configured=%v\n", cfg.Telegram.Token != "")

	if _, err := os.Stat(cfg.Data.DBPath); err != nil {
		fmt.Println("Database: not found (run 'kindred gateway' to create)")
		return nil
	}

	st, err := store.Open(cfg.Data.DBPath)
	if err != nil {
		fmt.Printf("Database: error (%v)\n", err)
		return nil
	}
	defer st.Close()

	ctx := context.Background()

	byStatus, err := st.CountUsersByStatus(ctx)
	if err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	total := 0
	statuses := make([]string, 0, len(byStatus))
	for status, n := range byStatus {
		total += n
		statuses = append(statuses, status)
	}
	sort.Strings(statuses)
	fmt.Printf("Users: %d\n", total)
	for _, status := range statuses {
		fmt.Printf("  %s: %d\n", status, byStatus[status])
	}

	sessTotal, sessOpen, err := st.CountSessions(ctx)
	if err != nil {
		return fmt.Errorf("count sessions: %w", err)
	}
	fmt.Printf("Sessions: %d (%d open)\n", sessTotal, sessOpen)

	recent, err := st.CountMessagesSince(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		return fmt.Errorf("count messages: %w", err)
	}
	fmt.Printf("Messages last 24h: %d\n", recent)

	return nil
}

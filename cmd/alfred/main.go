package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sagrawal11/alfred-sub000/internal/config"
	"github.com/sagrawal11/alfred-sub000/internal/gateway"
)

var rootCmd = &cobra.Command{
	Use:   "alfred",
	Short: "alfred - personal messaging assistant",
}

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Start the full gateway (channels + sweeps)",
	RunE:  runGateway,
}

var turnCmd = &cobra.Command{
	Use:   "turn",
	Short: "Process a single message from the command line",
	RunE:  runTurn,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the config file",
	RunE:  runInit,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show alfred status",
	RunE:  runStatus,
}

var (
	messageFlag string
	userFlag    string
)

func init() {
	turnCmd.Flags().StringVarP(&messageFlag, "message", "m", "", "Message to process")
	turnCmd.Flags().StringVarP(&userFlag, "user", "u", "cli", "User id the message is from")
	rootCmd.AddCommand(gatewayCmd, turnCmd, initCmd, statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfigWithKey() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.Provider.APIKey == "" {
		return nil, fmt.Errorf("API key not set. Run 'alfred init' and edit the config, or set ALFRED_API_KEY / ANTHROPIC_API_KEY")
	}
	return cfg, nil
}

func runGateway(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfigWithKey()
	if err != nil {
		return err
	}

	gw, err := gateway.New(cfg)
	if err != nil {
		return fmt.Errorf("create gateway: %w", err)
	}
	return gw.Run(context.Background())
}

func runTurn(cmd *cobra.Command, args []string) error {
	if messageFlag == "" {
		return fmt.Errorf("use -m to pass a message")
	}

	cfg, err := loadConfigWithKey()
	if err != nil {
		return err
	}

	gw, err := gateway.New(cfg)
	if err != nil {
		return fmt.Errorf("create gateway: %w", err)
	}
	defer func() { _ = gw.Shutdown() }()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	for _, reply := range gw.ProcessDirect(ctx, userFlag, messageFlag) {
		fmt.Println(reply)
	}
	return nil
}

func runInit(cmd *cobra.Command, args []string) error {
	cfgDir := config.ConfigDir()
	cfgPath := config.ConfigPath()

	if err := os.MkdirAll(cfgDir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		cfg := config.DefaultConfig()
		data, _ := json.MarshalIndent(cfg, "", "  ")
		if err := os.WriteFile(cfgPath, data, 0644); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		fmt.Printf("Created config: %s\n", cfgPath)
	} else {
		fmt.Printf("Config already exists: %s\n", cfgPath)
	}

	fmt.Println("\nNext steps:")
	fmt.Printf("  1. Edit %s to set your API key and Telegram token\n", cfgPath)
	fmt.Println("  2. Or set ALFRED_API_KEY and ALFRED_TELEGRAM_TOKEN environment variables")
	fmt.Println("  3. Run 'alfred gateway'")
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfgPath := config.ConfigPath()
	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		fmt.Println("Not configured. Run 'alfred init' first.")
		return nil
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	fmt.Printf("Config:   %s\n", cfgPath)
	fmt.Printf("Provider: %s (%s)\n", providerName(cfg), cfg.Provider.Model)
	if cfg.Provider.APIKey != "" {
		fmt.Println("API key:  set")
	} else {
		fmt.Println("API key:  missing")
	}
	if cfg.Channels.Telegram.Enabled {
		fmt.Println("Telegram: enabled")
	} else {
		fmt.Println("Telegram: disabled")
	}
	return nil
}

func providerName(cfg *config.Config) string {
	if cfg.Provider.Type != "" {
		return cfg.Provider.Type
	}
	return "anthropic"
}

package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dungnx/chathist/chat"
	"github.com/dungnx/chathist/configuration"
	"github.com/dungnx/chathist/internal/llm"
	"github.com/dungnx/chathist/retention"
	"github.com/dungnx/chathist/server"
	"github.com/dungnx/chathist/store"
	"github.com/dungnx/chathist/store/db/postgres"
	"github.com/dungnx/chathist/store/db/sqlite"
)

const configFilepath = "~/.config/chathist/config.json"

var rootCmd = &cobra.Command{
	Use:   "chathist",
	Short: "Conversation persistence and serving for LLM chats",
}

func main() {
	// Env overrides are optional; a missing .env file is fine.
	godotenv.Load()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))

	config, err := configuration.Parse(configFilepath)
	if err != nil {
		slog.Error("parsing configuration", "error", err)
		os.Exit(1)
	}

	driver, err := openDriver(config)
	if err != nil {
		slog.Error("opening database", "error", err)
		os.Exit(1)
	}
	defer driver.Close()
	s := store.New(driver)

	provider := newProvider(config)

	rootCmd.AddCommand(server.NewServeCmd(config, s, provider))
	rootCmd.AddCommand(chat.NewCmd(config, s, provider))
	rootCmd.AddCommand(retention.NewCmd(s))
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// openDriver picks postgres when a URL is configured, sqlite otherwise.
func openDriver(config *configuration.Config) (store.Driver, error) {
	if config.DatabaseURL != "" {
		return postgres.New(context.Background(), config.DatabaseURL)
	}
	return sqlite.New(config.Database)
}

func newProvider(config *configuration.Config) llm.Client {
	if config.Provider.Name == "anthropic" {
		return llm.NewAnthropicClient(config.Provider.APIKey)
	}
	return llm.NewOpenAIClient(config.Provider.APIKey, config.Provider.APIHost)
}

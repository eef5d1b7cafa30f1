package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/hrygo/orioncx/internal/profile"
	"github.com/hrygo/orioncx/server"
	"github.com/hrygo/orioncx/store"
	"github.com/hrygo/orioncx/store/db"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "orioncx",
	Short: "Customer support chat backend with bounded conversation memory.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServe(cmd.Context())
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("driver", "sqlite")
	viper.SetDefault("port", profile.DefaultPort)

	flags := rootCmd.PersistentFlags()
	flags.String("mode", "dev", `mode of server, can be "prod" or "dev" or "demo"`)
	flags.String("addr", "", "address of server")
	flags.Int("port", profile.DefaultPort, "port of server")
	flags.String("data", "", "data directory")
	flags.String("driver", "sqlite", "database driver, can be \"sqlite\" or \"postgres\"")
	flags.String("dsn", "", "database source name")
	flags.String("chat-model", profile.DefaultChatModel, "chat completion model")
	flags.Int("context-window", profile.DefaultContextWindow, "model context window in tokens")
	flags.Int("max-out-tokens", profile.DefaultMaxOutTokens, "tokens reserved for the model output")
	flags.String("default-language", profile.DefaultLanguage, "two-letter language of new conversations")
	flags.Int("retrieval-top-k", profile.DefaultRetrievalTopK, "documents joined into the retrieved context")
	flags.String("extraction-mode", "json", `how extraction replies are stored, "json" or "raw"`)
	flags.Bool("strict-status-transitions", false, "reject status changes outside the lifecycle table")
	flags.Float64("rate-limit", 0, "requests per second per client, 0 disables limiting")
	flags.Int("rate-burst", 0, "rate limiter burst, defaults to twice the rate")

	flags.VisitAll(func(f *pflag.Flag) {
		if err := viper.BindPFlag(f.Name, f); err != nil {
			panic(err)
		}
	})

	viper.SetEnvPrefix("orioncx")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	rootCmd.AddCommand(serveCmd, loadDocumentsCmd, versionCmd)
}

// loadProfile reads the profile from flags and ORIONCX_* environment.
func loadProfile() (*profile.Profile, error) {
	p := &profile.Profile{
		Mode:                    viper.GetString("mode"),
		Addr:                    viper.GetString("addr"),
		Port:                    viper.GetInt("port"),
		Data:                    viper.GetString("data"),
		Driver:                  viper.GetString("driver"),
		DSN:                     viper.GetString("dsn"),
		Version:                 version,
		ChatModel:               viper.GetString("chat-model"),
		ContextWindow:           viper.GetInt("context-window"),
		MaxOutTokens:            viper.GetInt("max-out-tokens"),
		DefaultLanguage:         viper.GetString("default-language"),
		RetrievalTopK:           viper.GetInt("retrieval-top-k"),
		ExtractionMode:          viper.GetString("extraction-mode"),
		StrictStatusTransitions: viper.GetBool("strict-status-transitions"),
		RateLimit:               viper.GetFloat64("rate-limit"),
		RateBurst:               viper.GetInt("rate-burst"),
	}
	p.FromEnv()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// openStore connects to the configured database and migrates it.
func openStore(ctx context.Context, p *profile.Profile) (*store.Store, error) {
	driver, err := db.NewDBDriver(p)
	if err != nil {
		return nil, fmt.Errorf("failed to create db driver: %w", err)
	}
	s := store.New(driver, p)
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	return s, nil
}

func runServe(ctx context.Context) error {
	p, err := loadProfile()
	if err != nil {
		return err
	}
	if !p.IsAIEnabled() {
		slog.Warn("no model provider key configured, set ORIONCX_OPENAI_API_KEY")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s, err := openStore(ctx, p)
	if err != nil {
		return err
	}

	srv, err := server.NewServer(ctx, p, s)
	if err != nil {
		_ = s.Close()
		return fmt.Errorf("failed to create server: %w", err)
	}

	c := make(chan os.Signal, 1)
	// Trigger graceful shutdown on SIGINT or SIGTERM.
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	if err := srv.Start(ctx); err != nil {
		_ = s.Close()
		return fmt.Errorf("failed to start server: %w", err)
	}
	printGreetings(p)

	go func() {
		<-c
		srv.Shutdown(ctx)
		cancel()
	}()

	<-ctx.Done()
	return nil
}

func printGreetings(p *profile.Profile) {
	fmt.Printf("OrionCX %s started successfully!\n", p.Version)
	if p.IsDev() {
		fmt.Fprintf(os.Stderr, "Development mode is enabled\n")
		if p.DSN != "" {
			fmt.Fprintf(os.Stderr, "Database: %s\n", p.DSN)
		}
	}

	host := p.Addr
	if host == "" {
		host = "localhost"
	}
	fmt.Printf("Server running on http://%s:%d\n", host, p.Port)
	fmt.Printf("Driver: %s, model: %s, extraction: %s\n", p.Driver, p.ChatModel, p.ExtractionMode)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

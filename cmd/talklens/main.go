package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/talklens/talklens/agent"
	"github.com/talklens/talklens/agent/tools"
	"github.com/talklens/talklens/embed"
	"github.com/talklens/talklens/internal/profile"
	"github.com/talklens/talklens/internal/version"
	"github.com/talklens/talklens/metrics"
	"github.com/talklens/talklens/server"
	"github.com/talklens/talklens/session"
)

var rootCmd = &cobra.Command{
	Use:   "talklens",
	Short: `Hybrid retrieval over a conference talk corpus: metadata filters, semantic search across transcripts, abstracts, bios and video, served as agent tools.`,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		// Try to load .env from the current directory; absence is fine.
		_ = godotenv.Load()
		return nil
	},
	Run: func(_ *cobra.Command, _ []string) {
		instanceProfile := &profile.Profile{
			Mode:    viper.GetString("mode"),
			Addr:    viper.GetString("addr"),
			Port:    viper.GetInt("port"),
			Data:    viper.GetString("data"),
			Driver:  viper.GetString("driver"),
			DSN:     viper.GetString("dsn"),
			Version: version.GetCurrentVersion(viper.GetString("mode")),
		}
		instanceProfile.FromEnv()
		if err := instanceProfile.Validate(); err != nil {
			slog.Error("invalid configuration", "error", err)
			os.Exit(1)
		}

		logger := newLogger(instanceProfile)
		slog.SetDefault(logger)

		exporter := metrics.NewPrometheusExporter(metrics.DefaultConfig())

		embedText, err := embed.NewService(&embed.Config{
			Model:      instanceProfile.EmbeddingModel,
			APIKey:     instanceProfile.EmbeddingAPIKey,
			BaseURL:    instanceProfile.EmbeddingBaseURL,
			Dimensions: instanceProfile.EmbeddingDim,
		})
		if err != nil {
			slog.Error("failed to create text embedding service", "error", err)
			os.Exit(1)
		}
		var embedVideo embed.Service
		if instanceProfile.VideoEmbeddingModel != "" && instanceProfile.VideoEmbeddingBaseURL != "" {
			embedVideo, err = embed.NewService(&embed.Config{
				Model:      instanceProfile.VideoEmbeddingModel,
				APIKey:     instanceProfile.VideoEmbeddingAPIKey,
				BaseURL:    instanceProfile.VideoEmbeddingBaseURL,
				Dimensions: instanceProfile.VideoEmbeddingDim,
			})
			if err != nil {
				slog.Error("failed to create video embedding service", "error", err)
				os.Exit(1)
			}
		} else {
			slog.Warn("video embedding not configured, video search disabled")
		}

		sess := session.New(instanceProfile, exporter, logger)
		defer func() {
			if err := sess.Close(); err != nil {
				slog.Error("failed to close session", "error", err)
			}
		}()

		runtime := tools.NewRuntime(
			sess,
			embedText,
			embedVideo,
			time.Duration(instanceProfile.StageTimeout)*time.Second,
			exporter,
			logger,
		)
		registry := agent.NewRegistry()
		cache := tools.NewResultCache(100, exporter)
		tools.RegisterAll(registry, runtime, cache)

		s := server.NewServer(instanceProfile, registry, exporter, logger)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		c := make(chan os.Signal, 1)
		// SIGTERM is the graceful shutdown signal for most process
		// managers (systemd, kubernetes).
		signal.Notify(c, terminationSignals...)
		go func() {
			<-c
			s.Shutdown(ctx)
			cancel()
		}()

		printGreetings(instanceProfile)
		if err := s.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("failed to start server", "error", err)
			cancel()
		}
		<-ctx.Done()
	},
}

func newLogger(p *profile.Profile) *slog.Logger {
	level := slog.LevelInfo
	if p.IsDev() {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("driver", "sqlite")
	viper.SetDefault("port", 28090)

	rootCmd.PersistentFlags().String("mode", "dev", `mode of server, can be "prod" or "dev" or "demo"`)
	rootCmd.PersistentFlags().String("addr", "", "address of server")
	rootCmd.PersistentFlags().Int("port", 28090, "port of server")
	rootCmd.PersistentFlags().String("data", "", "data directory")
	rootCmd.PersistentFlags().String("driver", "sqlite", "database driver (sqlite, postgres, memory)")
	rootCmd.PersistentFlags().String("dsn", "", "database source name (aka. DSN)")

	for _, flag := range []string{"mode", "addr", "port", "data", "driver", "dsn"} {
		if err := viper.BindPFlag(flag, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("talklens")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

func printGreetings(p *profile.Profile) {
	fmt.Printf("TalkLens %s started\n", p.Version)
	fmt.Printf("Mode: %s, driver: %s\n", p.Mode, p.Driver)
	if p.IsDev() && p.DSN != "" {
		fmt.Fprintf(os.Stderr, "Database: %s\n", p.DSN)
	}
	if p.Addr == "" {
		fmt.Printf("Listening on port %d\n", p.Port)
	} else {
		fmt.Printf("Listening on %s:%d\n", p.Addr, p.Port)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		panic(err)
	}
}

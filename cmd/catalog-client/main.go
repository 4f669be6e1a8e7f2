package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/Sternrassler/enterprise-catalog-client/internal/config"
	"github.com/Sternrassler/enterprise-catalog-client/pkg/auth"
	"github.com/Sternrassler/enterprise-catalog-client/pkg/catalog"
	"github.com/Sternrassler/enterprise-catalog-client/pkg/client"
	"github.com/Sternrassler/enterprise-catalog-client/pkg/logging"
	"github.com/Sternrassler/enterprise-catalog-client/pkg/metrics"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// flags shared by all subcommands
type rootFlags struct {
	envFile         string
	configFile      string
	metricsTextfile string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	rootCmd := &cobra.Command{
		Use:           "catalog-client",
		Short:         "Query the enterprise catalog service",
		Long:          "Command line access to enterprise catalog membership checks, distinct catalog query counts and course key listings.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if flags.metricsTextfile == "" {
				return nil
			}
			if err := prometheus.WriteToTextfile(flags.metricsTextfile, metrics.Gatherer); err != nil {
				return fmt.Errorf("write metrics: %w", err)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&flags.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	rootCmd.PersistentFlags().StringVar(&flags.configFile, "config", "", "optional config file (yaml, toml or json)")
	rootCmd.PersistentFlags().StringVar(&flags.metricsTextfile, "metrics-textfile", "", "write Prometheus metrics to this file on exit")

	rootCmd.AddCommand(
		newContainsCmd(flags),
		newDistinctQueriesCmd(flags),
		newCourseKeysCmd(flags),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "catalog-client v%s\n", version)
			},
		},
	)

	return rootCmd
}

func newContainsCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "contains <catalog-uuid> [content-id...]",
		Short: "Check whether a catalog contains the given course runs or programs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			catalogID, err := parseCatalogID(args[0])
			if err != nil {
				return err
			}

			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				contains, err := a.catalog.ContainsContentItems(ctx, catalogID, args[1:])
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"catalog_uuid":           catalogID.String(),
					"contains_content_items": contains,
				})
			})
		},
	}
}

func newDistinctQueriesCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "distinct-queries [catalog-uuid...]",
		Short: "Count the distinct catalog queries behind the given catalogs",
		RunE: func(cmd *cobra.Command, args []string) error {
			catalogIDs := make([]uuid.UUID, 0, len(args))
			for _, arg := range args {
				id, err := parseCatalogID(arg)
				if err != nil {
					return err
				}
				catalogIDs = append(catalogIDs, id)
			}

			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				result, err := a.catalog.GetDistinctCatalogQueries(ctx, catalogIDs)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), result.Raw)
			})
		},
	}
}

func newCourseKeysCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "course-keys <catalog-uuid>",
		Short: "List the first course run key of every course in a catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			catalogID, err := parseCatalogID(args[0])
			if err != nil {
				return err
			}

			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				keys, err := a.catalog.GetCatalogCourseKeys(ctx, catalogID)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), keys)
			})
		},
	}
}

// app bundles everything a subcommand needs.
type app struct {
	catalog *catalog.Client
	redis   *redis.Client
	logger  zerolog.Logger
}

func (a *app) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to close Redis client")
		}
	}
}

func withApp(cmd *cobra.Command, flags *rootFlags, run func(ctx context.Context, a *app) error) error {
	cfg, err := config.Load(config.Options{EnvFile: flags.envFile, ConfigFile: flags.configFile})
	if err != nil {
		return err
	}

	logging.Setup(logging.Config{
		Level:   logging.LogLevel(cfg.LogLevel),
		Pretty:  cfg.LogPretty,
		Output:  cmd.ErrOrStderr(),
		Service: cfg.AppName,
	})

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := run(ctx, a); err != nil {
		a.logger.Error().Err(err).
			Str("command", cmd.Name()).
			Str("error_class", string(client.ClassOf(err))).
			Msg("Command failed")
		return err
	}
	return nil
}

func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{logger: logging.NewLogger("cli")}

	var store auth.Store = auth.NewMemoryStore()
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis_url: %w", err)
		}
		a.redis = redis.NewClient(opts)
		if err := a.redis.Ping(ctx).Err(); err != nil {
			a.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		store = auth.NewRedisStore(a.redis)
		a.logger.Debug().Str("addr", opts.Addr).Msg("Using Redis token store")
	}

	tokens, err := auth.NewOAuthSource(auth.OAuthConfig{
		URL:          cfg.OAuthURL,
		ClientID:     cfg.OAuthClientID,
		ClientSecret: cfg.OAuthClientSecret,
		Timeout:      cfg.RequestTimeout,
	}, store)
	if err != nil {
		a.Close()
		return nil, err
	}

	clientCfg := client.DefaultConfig(tokens, cfg.UserAgent)
	clientCfg.Timeout = cfg.RequestTimeout
	transport, err := client.New(clientCfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.catalog, err = catalog.New(catalog.Config{
		BaseURL:  cfg.APIBaseURL(),
		MaxPages: cfg.MaxPages,
	}, transport)
	if err != nil {
		a.Close()
		return nil, err
	}

	return a, nil
}

func parseCatalogID(arg string) (uuid.UUID, error) {
	id, err := uuid.Parse(arg)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid catalog uuid %q: %w", arg, err)
	}
	return id, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/nao1215/plexdns-gateway/internal/config"
	"github.com/nao1215/plexdns-gateway/internal/dnsservice"
	"github.com/nao1215/plexdns-gateway/internal/gateway"
	"github.com/nao1215/plexdns-gateway/pkg/database"
	"github.com/nao1215/plexdns-gateway/pkg/provider"
	"github.com/nao1215/plexdns-gateway/pkg/provider/cloudns"
	"github.com/nao1215/plexdns-gateway/pkg/provider/local"
	"github.com/nao1215/plexdns-gateway/pkg/provider/rfc2136"
)

// shutdownTimeout は停止時に処理中のリクエストを待つ時間。
const shutdownTimeout = 10 * time.Second

// newRootCmd はゲートウェイを起動するルートコマンドを生成する。
func newRootCmd() *cobra.Command {
	v := config.New()
	var envFile string

	cmd := &cobra.Command{
		Use:          "plexdns-gateway",
		Short:        "Authenticated HTTP gateway for DNS domain and record management",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return config.LoadEnvFile(envFile)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}

	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "path to the .env file (existing environment variables take precedence)")
	cmd.Flags().String("port", "", "port to listen on (overrides PORT)")
	cmd.Flags().String("metrics-addr", "", "address to expose Prometheus metrics on (overrides METRICS_ADDR)")
	bindFlags(v, cmd.Flags(), map[string]string{
		"port":         config.KeyPort,
		"metrics-addr": config.KeyMetricsAddr,
	})

	cmd.AddCommand(
		newSchemaCmd(v, "install", "Install the database structure", (*dnsservice.Service).Install, "Database structure installed"),
		newSchemaCmd(v, "uninstall", "Uninstall the database structure", (*dnsservice.Service).Uninstall, "Database structure uninstalled"),
	)
	return cmd
}

// bindFlags はフラグを設定キーに紐付ける。変更されたフラグは環境変数より優先される。
func bindFlags(v *viper.Viper, flags *pflag.FlagSet, keys map[string]string) {
	for name, key := range keys {
		_ = v.BindPFlag(key, flags.Lookup(name))
	}
}

// newSchemaCmd はスキーマの構築・撤去を1回だけ実行するサブコマンドを生成する。
func newSchemaCmd(v *viper.Viper, use, short string, run func(*dnsservice.Service, context.Context) error, done string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			pool, err := database.Open(ctx, cfg.Database.PoolConfig())
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := run(newService(pool, cfg), ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), done)
			return nil
		},
	}
}

// newRegistry は利用可能なDNSプロバイダを登録したレジストリを生成する。
func newRegistry() *provider.Registry {
	r := provider.NewRegistry()
	r.Register(local.Name, local.New)
	r.Register(cloudns.Name, cloudns.New)
	r.Register(rfc2136.Name, rfc2136.New)
	return r
}

func newService(pool *database.Pool, cfg *config.Config) *dnsservice.Service {
	return dnsservice.New(pool, dnsservice.Config{
		Registry:         newRegistry(),
		ProviderSettings: cfg.Providers,
		DefaultProvider:  cfg.Provider,
		DefaultAPIKey:    cfg.APIKey,
		ProviderTimeout:  cfg.ProviderTimeout,
	})
}

// serve はゲートウェイを起動し、SIGINTまたはSIGTERMを受け取るまで処理を続ける。
func serve(ctx context.Context, cfg *config.Config) error {
	if !newRegistry().Has(cfg.Provider) {
		return fmt.Errorf("unsupported DNS provider: %q", cfg.Provider)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.Open(ctx, cfg.Database.PoolConfig())
	if err != nil {
		return err
	}
	defer pool.Close()
	log.Printf("データベースに接続: type=%s", pool.Dialect())

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		newPoolCollector(pool),
	)

	server := gateway.NewServer(cfg.Port, gateway.Config{
		APIToken:       cfg.APIToken,
		Identity:       gateway.Identity{Provider: cfg.Provider, APIKey: cfg.APIKey},
		AllowedOrigins: cfg.AllowedOrigins,
	}, newService(pool, cfg), gateway.WithRegisterer(reg))

	errCh := make(chan error, 2)
	go func() { errCh <- server.Run() }()

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
		metricsServer = &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		go func() {
			log.Printf("メトリクスを公開: addr=%s", cfg.MetricsAddr)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("メトリクスサーバーの起動に失敗: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		log.Printf("停止シグナルを受信")
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("ゲートウェイの停止に失敗: %v", err)
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("メトリクスサーバーの停止に失敗: %v", err)
		}
	}
	return runErr
}

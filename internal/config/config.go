package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/nao1215/plexdns-gateway/pkg/database"
	"github.com/nao1215/plexdns-gateway/pkg/provider"
	"github.com/nao1215/plexdns-gateway/pkg/provider/cloudns"
)

// 設定キー。環境変数名と同じ。
const (
	KeyPort              = "PORT"
	KeyAPIToken          = "API_TOKEN"
	KeyAPIKey            = "API_KEY"
	KeyProvider          = "PROVIDER"
	KeyAuthID            = "AUTH_ID"
	KeyAuthPassword      = "AUTH_PASSWORD"
	KeyDBType            = "DB_TYPE"
	KeyDBHost            = "DB_HOST"
	KeyDBPort            = "DB_PORT"
	KeyDBName            = "DB_NAME"
	KeyDBUser            = "DB_USER"
	KeyDBPass            = "DB_PASS"
	KeyDBSQLitePath      = "DB_SQLITE_PATH"
	KeyDBMaxOpenConns    = "DB_MAX_OPEN_CONNS"
	KeyDBMaxIdleConns    = "DB_MAX_IDLE_CONNS"
	KeyDBConnMaxLifetime = "DB_CONN_MAX_LIFETIME"
	KeyProvidersFile     = "PROVIDERS_FILE"
	KeyProviderTimeout   = "PROVIDER_TIMEOUT"
	KeyMetricsAddr       = "METRICS_ADDR"
	KeyCORSOrigins       = "CORS_ALLOWED_ORIGINS"
)

// 設定の検証エラー。
var (
	ErrMissingCredentials = errors.New("Missing required environment variables (API_KEY, PROVIDER or API_TOKEN)")
	ErrMissingClouDNS     = errors.New("Missing ClouDNS credentials (AUTH_ID and AUTH_PASSWORD)")
	ErrMissingDatabase    = errors.New("Missing required database configuration (DB_NAME, DB_USER and DB_PASS)")
)

// Config はゲートウェイ全体の設定。
type Config struct {
	// Port はAPIのリッスンポート。
	Port string
	// APIToken はクライアント認証用の共有トークン。
	APIToken string
	// APIKey はプロバイダに渡すAPIキー。
	APIKey string
	// Provider は既定のDNSプロバイダ名。
	Provider string
	// Database はデータベース接続の設定。
	Database Database
	// Providers はプロバイダ名ごとの設定値。
	Providers map[string]provider.Settings
	// ProviderTimeout はプロバイダ呼び出し1回あたりのタイムアウト。
	ProviderTimeout time.Duration
	// MetricsAddr はPrometheusメトリクスを公開するアドレス。空の場合は公開しない。
	MetricsAddr string
	// AllowedOrigins はCORSを許可するオリジン。
	AllowedOrigins []string
}

// Database はデータベース接続の設定。
type Database struct {
	Dialect         database.Dialect
	Host            string
	Port            string
	Name            string
	User            string
	Password        string
	SQLitePath      string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// New は既定値と環境変数の読み取りを設定したviperを生成する。
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyPort, "9501")
	v.SetDefault(KeyDBType, string(database.DialectMySQL))
	v.SetDefault(KeyDBHost, "127.0.0.1")
	v.SetDefault(KeyDBSQLitePath, "./database.sqlite")
	v.SetDefault(KeyDBMaxOpenConns, 10)
	v.SetDefault(KeyDBMaxIdleConns, 5)
	v.SetDefault(KeyDBConnMaxLifetime, "30m")
	v.SetDefault(KeyProviderTimeout, "15s")
	v.AutomaticEnv()
	return v
}

// LoadEnvFile は.envファイルを環境変数に読み込む。既に設定済みの環境変数は上書きしない。
// ファイルが存在しない場合は何もしない。
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf(".envファイルの読み込みに失敗: %w", err)
	}
	return nil
}

// Load はviperから設定を読み取り、検証する。
func Load(v *viper.Viper) (*Config, error) {
	dialect, err := database.ParseDialect(v.GetString(KeyDBType))
	if err != nil {
		return nil, err
	}

	lifetime, err := time.ParseDuration(v.GetString(KeyDBConnMaxLifetime))
	if err != nil {
		return nil, fmt.Errorf("Invalid %s: %w", KeyDBConnMaxLifetime, err)
	}
	providerTimeout, err := time.ParseDuration(v.GetString(KeyProviderTimeout))
	if err != nil || providerTimeout <= 0 {
		return nil, fmt.Errorf("Invalid %s: %q", KeyProviderTimeout, v.GetString(KeyProviderTimeout))
	}

	cfg := &Config{
		Port:     v.GetString(KeyPort),
		APIToken: v.GetString(KeyAPIToken),
		APIKey:   v.GetString(KeyAPIKey),
		Provider: v.GetString(KeyProvider),
		Database: Database{
			Dialect:         dialect,
			Host:            v.GetString(KeyDBHost),
			Port:            v.GetString(KeyDBPort),
			Name:            v.GetString(KeyDBName),
			User:            v.GetString(KeyDBUser),
			Password:        v.GetString(KeyDBPass),
			SQLitePath:      v.GetString(KeyDBSQLitePath),
			MaxOpenConns:    v.GetInt(KeyDBMaxOpenConns),
			MaxIdleConns:    v.GetInt(KeyDBMaxIdleConns),
			ConnMaxLifetime: lifetime,
		},
		Providers:       map[string]provider.Settings{},
		ProviderTimeout: providerTimeout,
		MetricsAddr:     v.GetString(KeyMetricsAddr),
		AllowedOrigins:  splitList(v.GetString(KeyCORSOrigins)),
	}

	if path := v.GetString(KeyProvidersFile); path != "" {
		if cfg.Providers, err = LoadProviders(path); err != nil {
			return nil, err
		}
	}

	if id, pw := v.GetString(KeyAuthID), v.GetString(KeyAuthPassword); id != "" || pw != "" {
		key := cloudns.Name
		for k := range cfg.Providers {
			if strings.EqualFold(k, cloudns.Name) {
				key = k
			}
		}
		cfg.Providers[key] = cfg.Providers[key].Merge(provider.Settings{
			cloudns.SettingAuthID:       id,
			cloudns.SettingAuthPassword: pw,
		})
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate は必須項目が揃っているかを検証する。
func (c *Config) Validate() error {
	if c.APIKey == "" || c.Provider == "" || c.APIToken == "" {
		return ErrMissingCredentials
	}
	if strings.EqualFold(c.Provider, cloudns.Name) {
		s := c.ProviderSettings(cloudns.Name)
		if (s[cloudns.SettingAuthID] == "" && s[cloudns.SettingSubAuthID] == "") || s[cloudns.SettingAuthPassword] == "" {
			return ErrMissingClouDNS
		}
	}
	if c.Database.Dialect != database.DialectSQLite &&
		(c.Database.Name == "" || c.Database.User == "" || c.Database.Password == "") {
		return ErrMissingDatabase
	}
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("Invalid %s: %q", KeyPort, c.Port)
	}
	return nil
}

// ProviderSettings は名前が一致するプロバイダの設定を返す。名前は大文字小文字を区別しない。
func (c *Config) ProviderSettings(name string) provider.Settings {
	for k, s := range c.Providers {
		if strings.EqualFold(k, name) {
			return s
		}
	}
	return nil
}

// DSN はドライバに渡す接続文字列を返す。
func (d Database) DSN() string {
	switch d.Dialect {
	case database.DialectMySQL:
		mc := mysql.NewConfig()
		mc.User = d.User
		mc.Passwd = d.Password
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(d.Host, d.portOr("3306"))
		mc.DBName = d.Name
		mc.ParseTime = true
		return mc.FormatDSN()
	case database.DialectPostgres:
		u := url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(d.User, d.Password),
			Host:   net.JoinHostPort(d.Host, d.portOr("5432")),
			Path:   "/" + d.Name,
		}
		return u.String()
	}
	return database.SQLiteDSN(d.SQLitePath)
}

// PoolConfig は接続プールの設定を返す。
func (d Database) PoolConfig() database.Config {
	return database.Config{
		Dialect:         d.Dialect,
		DSN:             d.DSN(),
		MaxOpenConns:    d.MaxOpenConns,
		MaxIdleConns:    d.MaxIdleConns,
		ConnMaxLifetime: d.ConnMaxLifetime,
	}
}

func (d Database) portOr(def string) string {
	if d.Port != "" {
		return d.Port
	}
	return def
}

// splitList はカンマ区切りの文字列を分割する。空の要素は除く。
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

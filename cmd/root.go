package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile      string
	apiURL       string
	apiToken     string
	snapshotPath string
	redisURL     string
	logLevel     string
	locale       string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "secboard",
	Short: "Terminal client for the security dashboard",
	Long: `Secboard is a terminal client for a security dashboard API. It fetches
tickets, threats, vulnerabilities, artifacts and members, and derives filtered,
sorted, paginated and aggregated views of them locally.

Features:
- Case-insensitive search and category filters over every collection
- Locale-aware and risk-ordered sorting
- Summary histograms over the full collection, breakdowns over the filtered subset
- Concurrent, memoized resolution of referenced threats
- Offline SQLite snapshots, file import and JSON export
- Interactive terminal browser`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.secboard.yaml)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "Dashboard API base URL")
	rootCmd.PersistentFlags().StringVar(&apiToken, "api-token", "", "Bearer token for the dashboard API")
	rootCmd.PersistentFlags().StringVar(&snapshotPath, "snapshot", "./data/secboard.db", "SQLite snapshot database path")
	rootCmd.PersistentFlags().StringVar(&redisURL, "redis", "", "Redis URL for the shared enrichment cache (optional)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&locale, "locale", "en", "Locale used for text sorting (BCP 47)")

	// Bind flags to viper
	viper.BindPFlag("api.url", rootCmd.PersistentFlags().Lookup("api-url"))
	viper.BindPFlag("api.token", rootCmd.PersistentFlags().Lookup("api-token"))
	viper.BindPFlag("snapshot.path", rootCmd.PersistentFlags().Lookup("snapshot"))
	viper.BindPFlag("redis.url", rootCmd.PersistentFlags().Lookup("redis"))
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("view.locale", rootCmd.PersistentFlags().Lookup("locale"))
}

// initConfig reads in .env, the config file and ENV variables if set.
func initConfig() {
	// .env files are optional; real environment variables win.
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load(".env")

	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory and cwd with name ".secboard" (without extension).
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".secboard")
	}

	// SECBOARD_API_URL -> api.url
	viper.SetEnvPrefix("secboard")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil && viper.GetString("log.level") == "debug" {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	setDefaults()
}

func setDefaults() {
	viper.SetDefault("api.url", "")
	viper.SetDefault("api.token", "")
	viper.SetDefault("api.timeout", 30*time.Second)
	viper.SetDefault("snapshot.path", "./data/secboard.db")
	viper.SetDefault("redis.url", "")
	viper.SetDefault("redis.ttl", 15*time.Minute)
	viper.SetDefault("enrich.ceiling", 50)
	viper.SetDefault("enrich.workers", 8)
	viper.SetDefault("enrich.timeout", 10*time.Second)
	viper.SetDefault("view.page_size", 10)
	viper.SetDefault("view.locale", "en")
	viper.SetDefault("log.level", "info")
}

// GetConfig returns the current configuration values
func GetConfig() Config {
	return Config{
		API: APIConfig{
			URL:     viper.GetString("api.url"),
			Token:   viper.GetString("api.token"),
			Timeout: viper.GetDuration("api.timeout"),
		},
		Snapshot: SnapshotConfig{
			Path: viper.GetString("snapshot.path"),
		},
		Redis: RedisConfig{
			URL: viper.GetString("redis.url"),
			TTL: viper.GetDuration("redis.ttl"),
		},
		Enrich: EnrichConfig{
			Ceiling: viper.GetInt("enrich.ceiling"),
			Workers: viper.GetInt("enrich.workers"),
			Timeout: viper.GetDuration("enrich.timeout"),
		},
		View: ViewConfig{
			PageSize: viper.GetInt("view.page_size"),
			Locale:   viper.GetString("view.locale"),
		},
		Log: LogConfig{
			Level: viper.GetString("log.level"),
		},
	}
}

// Config represents the application configuration
type Config struct {
	API      APIConfig      `mapstructure:"api"`
	Snapshot SnapshotConfig `mapstructure:"snapshot"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Enrich   EnrichConfig   `mapstructure:"enrich"`
	View     ViewConfig     `mapstructure:"view"`
	Log      LogConfig      `mapstructure:"log"`
}

type APIConfig struct {
	URL     string        `mapstructure:"url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type SnapshotConfig struct {
	Path string `mapstructure:"path"`
}

type RedisConfig struct {
	URL string        `mapstructure:"url"`
	TTL time.Duration `mapstructure:"ttl"`
}

type EnrichConfig struct {
	Ceiling int           `mapstructure:"ceiling"`
	Workers int           `mapstructure:"workers"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type ViewConfig struct {
	PageSize int    `mapstructure:"page_size"`
	Locale   string `mapstructure:"locale"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Debug reports whether component logs should be written
func (c LogConfig) Debug() bool {
	return strings.EqualFold(c.Level, "debug")
}

// newLogger returns a component logger that writes to w only at debug level.
func newLogger(cfg Config, w io.Writer, prefix string) *log.Logger {
	if !cfg.Log.Debug() || w == nil {
		return log.New(io.Discard, "", 0)
	}
	return log.New(w, prefix, log.LstdFlags)
}

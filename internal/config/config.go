package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Chain     ChainConfig     `mapstructure:"chain"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Scanner   ScannerConfig   `mapstructure:"scanner"`
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
}

// ChainConfig configures the EVM node connection and the watched factory.
type ChainConfig struct {
	NodeURL            string        `mapstructure:"node_url"`
	BackupNodes        []string      `mapstructure:"backup_nodes"`
	NetworkID          int64         `mapstructure:"network_id"`
	FactoryAddress     string        `mapstructure:"factory_address"`
	BaseTokenAddress   string        `mapstructure:"base_token_address"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
	RetryAttempts      int           `mapstructure:"retry_attempts"`
	RetryDelay         time.Duration `mapstructure:"retry_delay"`
	StartBlockLookback uint64        `mapstructure:"start_block_lookback"`
	MaxBlockRange      uint64        `mapstructure:"max_block_range"`
}

// ProvidersConfig configures the external risk APIs.
type ProvidersConfig struct {
	HoneypotURL     string        `mapstructure:"honeypot_url"`
	SecurityURL     string        `mapstructure:"security_url"`
	SecurityChainID string        `mapstructure:"security_chain_id"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	RetryAttempts   int           `mapstructure:"retry_attempts"`
	RetryDelay      time.Duration `mapstructure:"retry_delay"`
}

type StorageConfig struct {
	Type             string        `mapstructure:"type"`
	ConnectionString string        `mapstructure:"connection_string"`
	MaxConnections   int           `mapstructure:"max_connections"`
	MaxIdleTime      time.Duration `mapstructure:"max_idle_time"`
}

// ScannerConfig holds the scan cadence and retention policy knobs.
type ScannerConfig struct {
	PollInterval            time.Duration `mapstructure:"poll_interval"`
	RescanInterval          time.Duration `mapstructure:"rescan_interval"`
	MinRescanAge            time.Duration `mapstructure:"min_rescan_age"`
	MaxScans                int           `mapstructure:"max_scans"`
	HoneypotFailureLimit    int           `mapstructure:"honeypot_failure_limit"`
	LiquiditySampleInterval int           `mapstructure:"liquidity_sample_interval"`
	ScanDelay               time.Duration `mapstructure:"scan_delay"`
	ScanTimeout             time.Duration `mapstructure:"scan_timeout"`
}

type ServerConfig struct {
	Port          int           `mapstructure:"port"`
	Host          string        `mapstructure:"host"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	EnableMetrics bool          `mapstructure:"enable_metrics"`
	EnableHealth  bool          `mapstructure:"enable_health"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
	File   string `mapstructure:"file"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/token-monitor")
	}

	v.SetEnvPrefix("TOKEN_MONITOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "token-monitor")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.debug", false)

	// Chain defaults (Ethereum mainnet, Uniswap V2)
	v.SetDefault("chain.node_url", "http://localhost:8545")
	v.SetDefault("chain.backup_nodes", []string{})
	v.SetDefault("chain.network_id", 1)
	v.SetDefault("chain.factory_address", "0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f")
	v.SetDefault("chain.base_token_address", "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	v.SetDefault("chain.request_timeout", "30s")
	v.SetDefault("chain.retry_attempts", 3)
	v.SetDefault("chain.retry_delay", "5s")
	v.SetDefault("chain.start_block_lookback", 100)
	v.SetDefault("chain.max_block_range", 1000)

	// Provider defaults
	v.SetDefault("providers.honeypot_url", "https://api.honeypot.is/v2/IsHoneypot")
	v.SetDefault("providers.security_url", "https://api.gopluslabs.io/api/v1/token_security")
	v.SetDefault("providers.security_chain_id", "1")
	v.SetDefault("providers.request_timeout", "10s")
	v.SetDefault("providers.retry_attempts", 3)
	v.SetDefault("providers.retry_delay", "2s")

	// Storage defaults
	v.SetDefault("storage.type", "sqlite")
	v.SetDefault("storage.connection_string", "./data/tokens.db")
	v.SetDefault("storage.max_connections", 10)
	v.SetDefault("storage.max_idle_time", "30m")

	// Scanner defaults
	v.SetDefault("scanner.poll_interval", "3s")
	v.SetDefault("scanner.rescan_interval", "60s")
	v.SetDefault("scanner.min_rescan_age", "1m")
	v.SetDefault("scanner.max_scans", 1000)
	v.SetDefault("scanner.honeypot_failure_limit", 5)
	v.SetDefault("scanner.liquidity_sample_interval", 1)
	v.SetDefault("scanner.scan_delay", "1s")
	v.SetDefault("scanner.scan_timeout", "2m")

	// Server defaults
	v.SetDefault("server.port", 8081)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.enable_metrics", true)
	v.SetDefault("server.enable_health", true)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.file", "")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Chain.NodeURL == "" {
		return fmt.Errorf("chain node URL is required")
	}
	if c.Chain.FactoryAddress == "" {
		return fmt.Errorf("factory address is required")
	}
	if c.Chain.BaseTokenAddress == "" {
		return fmt.Errorf("base token address is required")
	}
	if c.Providers.HoneypotURL == "" {
		return fmt.Errorf("honeypot provider URL is required")
	}
	if c.Providers.SecurityURL == "" {
		return fmt.Errorf("security provider URL is required")
	}
	if c.Providers.RetryAttempts < 1 {
		return fmt.Errorf("provider retry attempts must be at least 1")
	}
	if c.Storage.Type != "sqlite" && c.Storage.Type != "postgres" {
		return fmt.Errorf("storage type must be 'sqlite' or 'postgres'")
	}
	if c.Storage.ConnectionString == "" {
		return fmt.Errorf("storage connection string is required")
	}
	if c.Scanner.PollInterval <= 0 {
		return fmt.Errorf("scanner poll interval must be positive")
	}
	if c.Scanner.RescanInterval <= 0 {
		return fmt.Errorf("scanner rescan interval must be positive")
	}
	if c.Scanner.MaxScans < 1 {
		return fmt.Errorf("scanner max scans must be at least 1")
	}
	if c.Scanner.HoneypotFailureLimit < 1 {
		return fmt.Errorf("honeypot failure limit must be at least 1")
	}
	if c.Scanner.LiquiditySampleInterval < 1 {
		return fmt.Errorf("liquidity sample interval must be at least 1")
	}
	if c.Scanner.ScanTimeout <= 0 {
		return fmt.Errorf("scanner scan timeout must be positive")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535")
	}
	switch c.Logging.Level {
	case "trace", "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return fmt.Errorf("invalid logging level: %s", c.Logging.Level)
	}
	return nil
}

// GetServerAddress returns the server address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

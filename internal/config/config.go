package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Voodoo   VoodooConfig   `mapstructure:"voodoo"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Bidding  BiddingConfig  `mapstructure:"bidding"`
	Ahrefs   AhrefsConfig   `mapstructure:"ahrefs"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
}

type MySQLConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// VoodooConfig describes the auction site endpoints and credentials.
type VoodooConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	BidPath     string        `mapstructure:"bid_path"`
	ListingPath string        `mapstructure:"listing_path"`
	AuthPath    string        `mapstructure:"auth_path"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type TelegramConfig struct {
	Token       string        `mapstructure:"token"`
	GroupChatID int64         `mapstructure:"group_chat_id"`
	PollTimeout time.Duration `mapstructure:"poll_timeout"`
}

type BiddingConfig struct {
	// Daytime window: inside [StartHour, EndHour) bids run in normal mode,
	// outside of it the conservative night mode applies.
	StartHour int    `mapstructure:"start_hour"`
	EndHour   int    `mapstructure:"end_hour"`
	Timezone  string `mapstructure:"timezone"`

	LookAhead     time.Duration `mapstructure:"look_ahead"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	MinimalBet    int64         `mapstructure:"minimal_bet"`

	// Randomized pre-sweep delay keeps the request cadence against the
	// auction site from being a fixed pattern.
	JitterMin time.Duration `mapstructure:"jitter_min"`
	JitterMax time.Duration `mapstructure:"jitter_max"`

	SweepLockTTL   time.Duration `mapstructure:"sweep_lock_ttl"`
	EscalationTTL  time.Duration `mapstructure:"escalation_ttl"`
	CatalogDaysOut int           `mapstructure:"catalog_days_out"`
}

type AhrefsConfig struct {
	Token       string `mapstructure:"token"`
	Concurrency int    `mapstructure:"concurrency"`
}

func Load() (*Config, error) {
	// Set default values
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("mysql.dsn", "autobidder:autobidder@tcp(localhost:3306)/autobidder?parseTime=true")
	viper.SetDefault("mysql.max_open_conns", 25)
	viper.SetDefault("mysql.max_idle_conns", 10)
	viper.SetDefault("mysql.conn_max_lifetime", 5*time.Minute)
	viper.SetDefault("redis.address", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("voodoo.base_url", "https://voodoo.domains")
	viper.SetDefault("voodoo.bid_path", "/uk/voodoo1domainlisting/bid")
	viper.SetDefault("voodoo.listing_path", "/uk/listings/all")
	viper.SetDefault("voodoo.auth_path", "/uk/accounts/ajax/auth")
	viper.SetDefault("voodoo.timeout", 10*time.Second)
	viper.SetDefault("telegram.poll_timeout", 30*time.Second)
	viper.SetDefault("bidding.start_hour", 9)
	viper.SetDefault("bidding.end_hour", 22)
	viper.SetDefault("bidding.timezone", "Europe/Bucharest")
	viper.SetDefault("bidding.look_ahead", time.Hour)
	viper.SetDefault("bidding.sweep_interval", 10*time.Minute)
	viper.SetDefault("bidding.minimal_bet", 900)
	viper.SetDefault("bidding.jitter_min", time.Minute)
	viper.SetDefault("bidding.jitter_max", 10*time.Minute)
	viper.SetDefault("bidding.sweep_lock_ttl", 15*time.Minute)
	viper.SetDefault("bidding.escalation_ttl", 2*time.Hour)
	viper.SetDefault("bidding.catalog_days_out", 3)
	viper.SetDefault("ahrefs.concurrency", 8)

	// Configuration file settings
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/autobidder/")

	// Environment variable support
	viper.AutomaticEnv()

	// Environment variable mappings
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.host", "SERVER_HOST")
	viper.BindEnv("mysql.dsn", "MYSQL_DSN")
	viper.BindEnv("redis.address", "REDIS_ADDRESS")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")
	viper.BindEnv("voodoo.base_url", "VOODOO_BASE_URL")
	viper.BindEnv("voodoo.username", "VOODOO_USERNAME")
	viper.BindEnv("voodoo.password", "VOODOO_PASSWORD")
	viper.BindEnv("telegram.token", "TELEGRAM_TOKEN")
	viper.BindEnv("telegram.group_chat_id", "GROUP_CHAT_ID")
	viper.BindEnv("ahrefs.token", "AHREFS_API")

	// Read configuration file (optional - will use defaults/env vars if not found)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		// Config file not found, continue with defaults and environment variables
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	if config.Bidding.JitterMax < config.Bidding.JitterMin {
		return nil, fmt.Errorf("bidding.jitter_max %s is below bidding.jitter_min %s",
			config.Bidding.JitterMax, config.Bidding.JitterMin)
	}

	return &config, nil
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	viper "github.com/spf13/viper"
)

/*
把init config跟read config分開
init : 需要設置viper watch 與 onConfigChange
read config : 一般讀取  需要使用讀寫鎖
*/
var config_singleton *ConfigSingleTon
var muonce sync.Once

const configPathEnv = "STOREFRONT_CONFIG"

type ConfigSingleTon struct {
	Config *Config
	mu     sync.RWMutex
}

type Config struct {
	ServerPort         string        `mapstructure:"SERVER_PORT"`
	StoreBackend       string        `mapstructure:"STORE_BACKEND"`
	DbName             string        `mapstructure:"POSTGRES_DB"`
	DbHost             string        `mapstructure:"POSTGRES_HOST"`
	DbPort             string        `mapstructure:"POSTGRES_PORT"`
	DbUser             string        `mapstructure:"POSTGRES_USER"`
	DbPas              string        `mapstructure:"POSTGRES_PASSWORD"`
	LockTimeout        time.Duration `mapstructure:"LOCK_TIMEOUT"`
	RedisAddr          string        `mapstructure:"REDIS_ADDR"`
	RedisPassword      string        `mapstructure:"REDIS_PASSWORD"`
	RateLimitCapacity  int           `mapstructure:"RATE_LIMIT_CAPACITY"`
	RateLimitRate      int           `mapstructure:"RATE_LIMIT_RATE"`
	KafkaBrokers       string        `mapstructure:"KAFKA_BROKERS"`
	KafkaOrderTopic    string        `mapstructure:"KAFKA_ORDER_TOPIC"`
	OutboxPollInterval time.Duration `mapstructure:"OUTBOX_POLL_INTERVAL"`
	OutboxBatchSize    int           `mapstructure:"OUTBOX_BATCH_SIZE"`
	PortOneBaseURL     string        `mapstructure:"PORTONE_BASE_URL"`
	PortOneSecret      string        `mapstructure:"PORTONE_SECRET"`
	LogLevel           string        `mapstructure:"LOG_LEVEL"`
	LogPretty          bool          `mapstructure:"LOG_PRETTY"`
}

const (
	StoreBackendPostgres = "postgres"
	StoreBackendMemory   = "memory"
)

// Brokers KAFKA_BROKERS 以逗號分隔, 空字串代表不啟用 kafka
func (c *Config) Brokers() []string {
	var out []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

func GetConfig() *Config {
	initConfig()
	config_singleton.mu.RLock()
	defer config_singleton.mu.RUnlock()
	return config_singleton.Config
}

func initConfig() {
	muonce.Do(func() {
		config_singleton = &ConfigSingleTon{}
		v := viper.GetViper()
		cf, err := loadConfig(v)
		if err != nil {
			log.Fatal().Err(err).Msg("error read config")
		}
		config_singleton.Config = cf

		if v.ConfigFileUsed() == "" {
			return
		}
		if _, err := os.Stat(v.ConfigFileUsed()); err != nil {
			return
		}
		v.OnConfigChange(func(e fsnotify.Event) {
			cf, err := loadConfig(v)
			if err != nil {
				log.Error().Err(err).Str("file", e.Name).Msg("failed to reload config file")
				return
			}
			config_singleton.mu.Lock()
			config_singleton.Config = cf
			config_singleton.mu.Unlock()
			log.Info().Str("file", e.Name).Msg("config reloaded")
		})
		v.WatchConfig()
	})
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("STORE_BACKEND", StoreBackendMemory)
	v.SetDefault("POSTGRES_DB", "storefront")
	v.SetDefault("POSTGRES_HOST", "localhost")
	v.SetDefault("POSTGRES_PORT", "5432")
	v.SetDefault("POSTGRES_USER", "postgres")
	v.SetDefault("POSTGRES_PASSWORD", "")
	v.SetDefault("LOCK_TIMEOUT", 3*time.Second)
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("RATE_LIMIT_CAPACITY", 10)
	v.SetDefault("RATE_LIMIT_RATE", 1)
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("KAFKA_ORDER_TOPIC", "storefront.orders")
	v.SetDefault("OUTBOX_POLL_INTERVAL", time.Second)
	v.SetDefault("OUTBOX_BATCH_SIZE", 100)
	v.SetDefault("PORTONE_BASE_URL", "https://api.portone.io")
	v.SetDefault("PORTONE_SECRET", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", false)
}

/*
單純回傳錯誤  由外部決定要不要Fatal
設定檔不存在時只用預設值與環境變數
*/
func loadConfig(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	path := os.Getenv(configPathEnv)
	if path == "" {
		path = ".env"
	}
	v.SetConfigFile(path)
	v.SetConfigType("env")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cf := &Config{}
	if err := v.Unmarshal(cf); err != nil {
		return nil, err
	}
	return cf, nil
}

// LoadConfig 不經過 singleton, 給 cmd/seed 與測試使用
func LoadConfig() (*Config, error) {
	return loadConfig(viper.New())
}

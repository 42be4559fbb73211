package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/render"
)

const defaultAddr = "0.0.0.0:8080"

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds the complete application configuration, loadable from
// environment variables (STOREFRONT_ prefix), flags, or YAML config files.
type Config struct {
	Addr     string `default:"0.0.0.0:8080" usage:"HTTP listen address"`
	Sources  SourcesConfig
	Storage  StorageConfig
	Events   EventsConfig
	Reload   ReloadConfig
	UI       UIConfig
	Graceful GracefulConfig
}

// SourcesConfig points at the two upstream catalogs.
type SourcesConfig struct {
	DummyJSONURL string        `default:"https://dummyjson.com/products" usage:"DummyJSON-shaped product list endpoint"`
	FakeStoreURL string        `default:"https://fakestoreapi.com/products" usage:"FakeStore-shaped product list endpoint"`
	Timeout      time.Duration `default:"10s" usage:"Upstream request timeout"`
}

// StorageConfig selects where the cart snapshot is persisted.
type StorageConfig struct {
	Driver      string `default:"sqlite" usage:"Snapshot storage: memory, sqlite or postgres"`
	SQLitePath  string `default:"storefront.db" usage:"SQLite database file" flag:"sqlite-path"`
	DatabaseURL string `usage:"PostgreSQL connection URL (STOREFRONT_STORAGE_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Key         string `default:"cart" usage:"Snapshot key"`
}

// EventsConfig controls cart event publishing. No brokers disables it.
type EventsConfig struct {
	Brokers []string      `usage:"Kafka seed brokers"`
	Topic   string        `default:"storefront.cart-events" usage:"Kafka topic for cart events"`
	Timeout time.Duration `default:"2s" usage:"Per-event publish timeout"`
}

// ReloadConfig throttles catalog reloads per client.
type ReloadConfig struct {
	Every time.Duration `default:"5s" usage:"Minimum interval between reloads once the burst is spent"`
	Burst int           `default:"3" usage:"Reloads allowed back to back"`
}

// UIConfig holds presentation timings.
type UIConfig struct {
	ToastShowDelay     time.Duration `default:"10ms" usage:"Delay before the toast becomes visible"`
	ToastHideAfter     time.Duration `default:"3s" usage:"Time the toast stays visible"`
	ToastRemoveAfter   time.Duration `default:"300ms" usage:"Delay between hiding and removing the toast"`
	BackToTopThreshold int           `default:"300" usage:"Scroll offset in pixels that reveals the back-to-top button"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s" usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// ToastTiming converts the UI settings into render timing.
func (c UIConfig) ToastTiming() render.ToastTiming {
	return render.ToastTiming{
		ShowDelay:   c.ToastShowDelay,
		HideAfter:   c.ToastHideAfter,
		RemoveAfter: c.ToastRemoveAfter,
	}
}

// LoadConfig loads configuration from environment variables, flags and YAML
// config files, then applies platform defaults and validates the result.
func LoadConfig() (*Config, error) {
	return loadConfig(aconfig.Config{
		EnvPrefix: "STOREFRONT",
		Files:     []string{"config.yaml", "/etc/storefront/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
}

func loadConfig(acfg aconfig.Config) (*Config, error) {
	var cfg Config
	if err := aconfig.LoaderFor(&cfg, acfg).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformDefaults honours the conventional PORT and DATABASE_URL
// variables set by hosting platforms.
func (c *Config) applyPlatformDefaults() {
	if c.Storage.DatabaseURL == "" {
		c.Storage.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case DriverMemory:
	case DriverSQLite:
		if c.Storage.SQLitePath == "" {
			return errors.New("sqlite path is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.Storage.DatabaseURL == "" {
			return errors.New("database URL is required for the postgres driver: set STOREFRONT_STORAGE_DATABASE_URL or DATABASE_URL")
		}
	default:
		return errors.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if len(c.Events.Brokers) > 0 && c.Events.Topic == "" {
		return errors.New("events topic is required when brokers are set")
	}
	return nil
}

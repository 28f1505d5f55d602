package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// EngineConfig tunes the write path and the event consumers.
type EngineConfig struct {
	Dispatcher   DispatcherConfig   `mapstructure:"dispatcher"`
	Projection   ProjectionConfig   `mapstructure:"projection"`
	OCR          OCRConfig          `mapstructure:"ocr"`
	Notification NotificationConfig `mapstructure:"notification"`
}

type DispatcherConfig struct {
	MaxAttempts  int           `mapstructure:"maxAttempts"`
	RetryBackoff time.Duration `mapstructure:"retryBackoff"`
}

type ProjectionConfig struct {
	BatchSize    int           `mapstructure:"batchSize"`
	PollInterval time.Duration `mapstructure:"pollInterval"`
	GapTimeout   time.Duration `mapstructure:"gapTimeout"`
}

type OCRConfig struct {
	MaxAttempts  int           `mapstructure:"maxAttempts"`
	PollInterval time.Duration `mapstructure:"pollInterval"`
}

type NotificationConfig struct {
	PollInterval time.Duration `mapstructure:"pollInterval"`
}

func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Dispatcher: DispatcherConfig{
			MaxAttempts:  3,
			RetryBackoff: 5 * time.Millisecond,
		},
		Projection: ProjectionConfig{
			BatchSize:    100,
			PollInterval: time.Second,
			GapTimeout:   5 * time.Second,
		},
		OCR: OCRConfig{
			MaxAttempts:  3,
			PollInterval: 2 * time.Second,
		},
		Notification: NotificationConfig{
			PollInterval: 2 * time.Second,
		},
	}
}

// EngineConfigHolder keeps the current engine configuration and swaps it on
// file changes.
type EngineConfigHolder struct {
	current atomic.Value // holds EngineConfig
}

// NewStaticEngineConfig returns a holder that never reloads.
func NewStaticEngineConfig(cfg EngineConfig) *EngineConfigHolder {
	holder := &EngineConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewEngineConfigHolder() (*EngineConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("engine")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/billflow")
	v.AddConfigPath(".")

	v.SetEnvPrefix("BILLFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultEngineConfig()
	v.SetDefault("dispatcher.maxAttempts", defaults.Dispatcher.MaxAttempts)
	v.SetDefault("dispatcher.retryBackoff", defaults.Dispatcher.RetryBackoff)
	v.SetDefault("projection.batchSize", defaults.Projection.BatchSize)
	v.SetDefault("projection.pollInterval", defaults.Projection.PollInterval)
	v.SetDefault("projection.gapTimeout", defaults.Projection.GapTimeout)
	v.SetDefault("ocr.maxAttempts", defaults.OCR.MaxAttempts)
	v.SetDefault("ocr.pollInterval", defaults.OCR.PollInterval)
	v.SetDefault("notification.pollInterval", defaults.Notification.PollInterval)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileLoaded = false
	}

	var cfg EngineConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := validateEngineConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticEngineConfig(cfg)
	if !fileLoaded {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated EngineConfig
		if err := v.Unmarshal(&updated); err != nil {
			log.Printf("[engine-config] reload failed: %v", err)
			return
		}
		if err := validateEngineConfig(updated); err != nil {
			log.Printf("[engine-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[engine-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *EngineConfigHolder) Get() EngineConfig {
	if h == nil {
		return DefaultEngineConfig()
	}
	cfg, ok := h.current.Load().(EngineConfig)
	if !ok {
		return DefaultEngineConfig()
	}
	return cfg
}

func validateEngineConfig(cfg EngineConfig) error {
	if cfg.Dispatcher.MaxAttempts < 1 {
		return errors.New("dispatcher.maxAttempts must be at least 1")
	}
	if cfg.Projection.BatchSize < 1 {
		return errors.New("projection.batchSize must be at least 1")
	}
	if cfg.Projection.PollInterval <= 0 {
		return errors.New("projection.pollInterval must be positive")
	}
	if cfg.OCR.MaxAttempts < 1 {
		return errors.New("ocr.maxAttempts must be at least 1")
	}
	return nil
}

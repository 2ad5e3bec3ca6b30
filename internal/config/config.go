// Package config loads AppConfig from a JSON file with environment
// variable overrides, adapted from
// EdgxCloud-EdgeFlow/internal/config/config.go's viper pattern. Because the
// gpio package's wire types (PinConfig, GpioState, EdgeDetect) already carry
// hand-written encoding/json (Un)MarshalJSON implementing the kebab-case
// wire vocabulary, Load merges viper's file+env view back into raw JSON and
// decodes it with encoding/json rather than viper's mapstructure path, so
// those methods run.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/gmgr/gmgr/internal/gpio"
	"github.com/gmgr/gmgr/internal/logger"
)

// HTTPConfig describes the listener: either a unix socket path or a
// host:port TCP listener, never both.
type HTTPConfig struct {
	UnixSocket     string `json:"unix_socket,omitempty"`
	UnixSocketMode string `json:"unix_socket_mode,omitempty"`
	Host           string `json:"host,omitempty"`
	Path           string `json:"path"`
	TimeoutSeconds uint64 `json:"timeout"`
}

// SocketMode parses UnixSocketMode as an octal file mode, accepting "0o660",
// "0660", or "660". Returns ok=false when unset.
func (h HTTPConfig) SocketMode() (mode uint32, ok bool, err error) {
	if h.UnixSocketMode == "" {
		return 0, false, nil
	}
	s := strings.TrimPrefix(h.UnixSocketMode, "0o")
	s = strings.TrimPrefix(s, "0")
	if s == "" {
		return 0, true, nil
	}
	v, err := strconv.ParseUint(s, 8, 32)
	if err != nil {
		return 0, false, fmt.Errorf("invalid unix_socket_mode %q: %w", h.UnixSocketMode, err)
	}
	return uint32(v), true, nil
}

// LogConfig maps to logger.Config.
type LogConfig struct {
	Level      string `json:"level"`
	Format     string `json:"format"`
	Dir        string `json:"dir"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
	Compress   bool   `json:"compress"`
}

func (l LogConfig) ToLoggerConfig() logger.Config {
	return logger.Config{
		Level:      l.Level,
		Format:     l.Format,
		LogDir:     l.Dir,
		MaxSizeMB:  l.MaxSizeMB,
		MaxBackups: l.MaxBackups,
		MaxAgeDays: l.MaxAgeDays,
		Compress:   l.Compress,
	}
}

// AppConfig is the full decoded configuration file, matching
// original_source/src/config.rs's AppConfig.
type AppConfig struct {
	HTTP                 HTTPConfig                    `json:"http"`
	Gpios                map[gpio.PinId]gpio.PinConfig `json:"gpios"`
	BroadcastCapacity    int                           `json:"broadcast_capacity"`
	EventHistoryCapacity int                           `json:"event_history_capacity"`
	Log                  LogConfig                     `json:"log"`
}

// Load reads config from path (JSON), applying GMGR_-prefixed environment
// overrides for scalar fields via viper, then defaults missing fields.
func Load(path string) (*AppConfig, error) {
	v := viper.New()
	setDefaults(v)
	// Cast env-sourced strings to the type of the key's default, so
	// GMGR_BROADCAST_CAPACITY=512 decodes as an int.
	v.SetTypeByDefaultValue(true)

	v.SetConfigType("json")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	v.SetEnvPrefix("GMGR")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	raw, err := json.Marshal(v.AllSettings())
	if err != nil {
		return nil, fmt.Errorf("failed to remarshal merged config: %w", err)
	}

	var cfg AppConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config json: %w", err)
	}

	for id, pin := range cfg.Gpios {
		if pin.ChipPath == "" {
			return nil, fmt.Errorf("pin %d: chip is required", id)
		}
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.path", "/")
	v.SetDefault("http.timeout", 30)
	v.SetDefault("broadcast_capacity", gpio.DefaultBroadcastCapacity)
	v.SetDefault("event_history_capacity", gpio.DefaultEventHistoryCapacity)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "")
	v.SetDefault("log.max_size_mb", 50)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 7)
	v.SetDefault("log.compress", true)
}

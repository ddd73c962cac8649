// Package storagecfg loads the storage core's tunables (frame count,
// page-count overrides, log level) from a YAML file via viper, adapted
// from the teacher's internal.LoadConfig.
package storagecfg

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/tuannm99/novasql-storage-core/internal/pageio"
)

// Config holds everything the bench CLI needs to wire up a disk
// manager, buffer pool, and heap file.
type Config struct {
	BufferPool struct {
		NumFrames int `mapstructure:"num_frames"`
	} `mapstructure:"buffer_pool"`
	Heap struct {
		NumPages int `mapstructure:"num_pages"`
	} `mapstructure:"heap"`
	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	cfg := &Config{}
	cfg.BufferPool.NumFrames = 64
	cfg.Heap.NumPages = pageio.MaxPages
	cfg.Log.Level = "info"
	return cfg
}

// Load reads a YAML config file at path and overlays it onto Default.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// NOVASQL_BUFFER_POOL_NUM_FRAMES etc. override the file, matching
	// viper's standard AutomaticEnv idiom.
	v.SetEnvPrefix("novasql")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := Default()
	v.SetDefault("buffer_pool.num_frames", cfg.BufferPool.NumFrames)
	v.SetDefault("heap.num_pages", cfg.Heap.NumPages)
	v.SetDefault("log.level", cfg.Log.Level)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

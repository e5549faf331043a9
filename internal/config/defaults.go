package config

import (
	"time"

	"github.com/spf13/viper"
)

// SetDefaults 设置所有配置项的默认值
func SetDefaults() {
	viper.SetDefault("version", SchemaVersion)

	// Log 配置
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "auto")
	viper.SetDefault("log.file", "")

	// Render 配置
	viper.SetDefault("render.token_budget", 2048)
	viper.SetDefault("render.suffix_percent", 15)
	viper.SetDefault("render.delimiter", "\n")
	viper.SetDefault("render.suffix_similarity_threshold", 10)
	viper.SetDefault("render.split_context", false)
	viper.SetDefault("render.suffix_chars_per_token", 4)

	// Tokenizer 配置
	viper.SetDefault("tokenizer.kind", "approx")
	viper.SetDefault("tokenizer.encoding", "cl100k_base")

	// Storage 配置
	viper.SetDefault("storage.path", "~/.promptkit/renders.db")
	viper.SetDefault("storage.journal", true)
	viper.SetDefault("storage.retention", 7*24*time.Hour)
	viper.SetDefault("storage.prune_schedule", "@hourly")
	viper.SetDefault("storage.suffix_ttl", 24*time.Hour)

	// Server 配置
	viper.SetDefault("server.host", "127.0.0.1")
	viper.SetDefault("server.port", 8765)

	// Watch 配置
	viper.SetDefault("watch.debounce", 100*time.Millisecond)
}

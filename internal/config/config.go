package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// SchemaVersion is the configuration schema this build understands. Files
// with a different major version are rejected.
const SchemaVersion = "1.0.0"

// ErrIncompatibleVersion indicates a config file written for another major
// schema version.
var ErrIncompatibleVersion = errors.New("config: incompatible schema version")

// Config 是应用配置的根结构体
type Config struct {
	Version   string          `mapstructure:"version" yaml:"version"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
	Render    RenderConfig    `mapstructure:"render" yaml:"render"`
	Tokenizer TokenizerConfig `mapstructure:"tokenizer" yaml:"tokenizer"`
	Storage   StorageConfig   `mapstructure:"storage" yaml:"storage"`
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Watch     WatchConfig     `mapstructure:"watch" yaml:"watch"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"` // auto, console, json
	File   string `mapstructure:"file" yaml:"file"`
}

// RenderConfig holds the default render options.
type RenderConfig struct {
	TokenBudget               int    `mapstructure:"token_budget" yaml:"token_budget"`
	SuffixPercent             int    `mapstructure:"suffix_percent" yaml:"suffix_percent"`
	Delimiter                 string `mapstructure:"delimiter" yaml:"delimiter"`
	SuffixSimilarityThreshold int    `mapstructure:"suffix_similarity_threshold" yaml:"suffix_similarity_threshold"`
	SplitContext              bool   `mapstructure:"split_context" yaml:"split_context"`
	SuffixCharsPerToken       int    `mapstructure:"suffix_chars_per_token" yaml:"suffix_chars_per_token"`
}

// TokenizerConfig selects the token counter.
type TokenizerConfig struct {
	Kind     string `mapstructure:"kind" yaml:"kind"` // approx, tiktoken
	Encoding string `mapstructure:"encoding" yaml:"encoding"`
}

// StorageConfig 存储配置
type StorageConfig struct {
	Path          string        `mapstructure:"path" yaml:"path"`
	Journal       bool          `mapstructure:"journal" yaml:"journal"`
	Retention     time.Duration `mapstructure:"retention" yaml:"retention"`
	PruneSchedule string        `mapstructure:"prune_schedule" yaml:"prune_schedule"` // cron 表达式
	SuffixTTL     time.Duration `mapstructure:"suffix_ttl" yaml:"suffix_ttl"`
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
}

// Addr returns host:port.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// WatchConfig 文件监听配置
type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`
}

var (
	globalConfig *Config
	configPath   string
	mu           sync.RWMutex
)

// Load 加载配置文件
// 优先级: ENV > 配置文件 > 默认值
func Load(path string) (*Config, error) {
	mu.Lock()
	defer mu.Unlock()

	SetDefaults()

	viper.SetEnvPrefix("PROMPTKIT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if path != "" {
		expanded, err := ExpandPath(path)
		if err != nil {
			return nil, err
		}
		configPath = expanded

		viper.SetConfigFile(expanded)
		if err := viper.ReadInConfig(); err != nil {
			// 忽略文件不存在错误，解析错误直接返回
			var parseErr viper.ConfigParseError
			if errors.As(err, &parseErr) {
				return nil, err
			}
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := checkVersion(cfg.Version); err != nil {
		return nil, err
	}

	globalConfig = &cfg
	return &cfg, nil
}

func checkVersion(v string) error {
	got, err := semver.NewVersion(v)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrIncompatibleVersion, v, err)
	}
	want := semver.MustParse(SchemaVersion)
	if got.Major() != want.Major() {
		return fmt.Errorf("%w: file is %s, supported %s", ErrIncompatibleVersion, got, want)
	}
	return nil
}

// GetConfig 获取当前配置
func GetConfig() *Config {
	mu.RLock()
	defer mu.RUnlock()
	return globalConfig
}

// Path returns the config file in use, or "" when none was given.
func Path() string {
	mu.RLock()
	defer mu.RUnlock()
	return configPath
}

// Get 获取任意配置键值
func Get(key string) any {
	return viper.Get(key)
}

// GetString 获取字符串配置值
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt 获取整数配置值
func GetInt(key string) int {
	return viper.GetInt(key)
}

// AllSettings returns every resolved key, for display.
func AllSettings() map[string]any {
	return viper.AllSettings()
}

// Set 设置配置值并持久化
func Set(key string, value any) error {
	mu.Lock()
	defer mu.Unlock()

	if !viper.IsSet(key) {
		return fmt.Errorf("config: unknown key %q", key)
	}
	viper.Set(key, value)

	if configPath != "" {
		return save()
	}
	return nil
}

// Save 保存配置到文件
func Save() error {
	mu.Lock()
	defer mu.Unlock()
	return save()
}

// save 内部保存函数，调用者需要持有锁
func save() error {
	if configPath == "" {
		return errors.New("config path not set")
	}
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return err
	}
	data, err := yaml.Marshal(viper.AllSettings())
	if err != nil {
		return err
	}
	return os.WriteFile(configPath, data, 0644)
}

// Reset 重置配置（主要用于测试）
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	globalConfig = nil
	configPath = ""
	viper.Reset()
}

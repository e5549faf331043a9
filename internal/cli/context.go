package cli

import (
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"promptkit/internal/config"
	"promptkit/internal/render"
	"promptkit/internal/storage"
	"promptkit/internal/tokenizer"
	"promptkit/pkg/logger"
)

var errNoContext = errors.New("CLI context not initialized")

// CLIContext CLI 上下文
type CLIContext struct {
	Config      *config.Config
	ConfigPath  string
	Logger      *zerolog.Logger
	StoragePath string

	storageOnce sync.Once
	storage     *storage.DB
	storageErr  error

	tokOnce sync.Once
	tok     tokenizer.Tokenizer
	tokErr  error
}

// NewCLIContext 创建 CLI 上下文
func NewCLIContext(cfg *config.Config, configPath string, log *zerolog.Logger, storagePath string) *CLIContext {
	return &CLIContext{
		Config:      cfg,
		ConfigPath:  configPath,
		Logger:      log,
		StoragePath: storagePath,
	}
}

// GetStorage 获取存储连接（懒加载）
func (c *CLIContext) GetStorage() (*storage.DB, error) {
	c.storageOnce.Do(func() {
		c.storage, c.storageErr = storage.Open(c.StoragePath)
	})
	return c.storage, c.storageErr
}

// GetTokenizer returns the configured tokenizer, built on first use.
func (c *CLIContext) GetTokenizer() (tokenizer.Tokenizer, error) {
	c.tokOnce.Do(func() {
		c.tok, c.tokErr = tokenizer.New(c.Config.Tokenizer.Kind, c.Config.Tokenizer.Encoding)
	})
	return c.tok, c.tokErr
}

// RenderOptions returns the configured render defaults.
func (c *CLIContext) RenderOptions() render.Options {
	return render.OptionsFromConfig(c.Config.Render)
}

// Journal records res when the journal is enabled. Failures are logged.
func (c *CLIContext) Journal(res render.Result, origin, documentPath string) {
	if !c.Config.Storage.Journal {
		return
	}
	db, err := c.GetStorage()
	if err != nil {
		c.Log().Warn().Err(err).Msg("journal unavailable")
		return
	}
	rec := storage.NewRenderRecord(res, origin, documentPath)
	if err := db.SaveRender(rec); err != nil {
		c.Log().Warn().Err(err).Str("render_id", rec.ID).Msg("failed to journal render")
	}
}

// Close 关闭资源
func (c *CLIContext) Close() error {
	if c.storage != nil {
		return c.storage.Close()
	}
	return nil
}

// Log 获取 Logger
func (c *CLIContext) Log() *zerolog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return logger.Get()
}

package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Client 封裝 GORM DB 實例
type Client struct {
	db *gorm.DB
}

const (
	initialBackoff = 500 * time.Millisecond
	maxBackoff     = 8 * time.Second
)

// NewClient 依 cfg.Driver 開啟資料庫，連線失敗時以指數退避重試
//
// 參數:
//
//	ctx: context.Context - 取消時停止重試
//	cfg: Config - 連線配置，未設定的欄位使用預設值
//	log: *slog.Logger - 重試訊息與 GORM 日誌的輸出
//
// 回傳值:
//
//	*Client: 封裝後的客戶端
//	error: 超過 MaxRetries 或 ctx 結束
func NewClient(ctx context.Context, cfg Config, log *slog.Logger) (*Client, error) {
	cfg.SetDefaults()
	if log == nil {
		log = slog.Default()
	}

	dialector, err := dialectorFor(&cfg)
	if err != nil {
		return nil, err
	}

	backoff := initialBackoff
	for attempt := 1; ; attempt++ {
		client, err := open(ctx, dialector, cfg, log)
		if err == nil {
			return client, nil
		}
		if attempt >= cfg.MaxRetries {
			return nil, fmt.Errorf("connect to %s after %d attempts: %w", cfg.Driver, attempt, err)
		}

		log.Warn("database connect failed, retrying",
			"driver", cfg.Driver, "attempt", attempt, "max", cfg.MaxRetries, "retry_in", backoff, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

// NewClientWithDialector 以現成的 dialector 建立客戶端，不重試 (測試時搭配 sqlmock 或記憶體 SQLite)
func NewClientWithDialector(dialector gorm.Dialector, cfg Config) (*Client, error) {
	cfg.SetDefaults()
	return open(context.Background(), dialector, cfg, slog.Default())
}

func dialectorFor(cfg *Config) (gorm.Dialector, error) {
	switch cfg.Driver {
	case DriverMySQL:
		return mysql.Open(cfg.DSN()), nil
	case DriverSQLite:
		// SQLite 只允許單一寫入者，單一連線讓交易整段序列化
		cfg.MaxOpenConns = 1
		cfg.MaxIdleConns = 1
		return sqlite.Open(cfg.Path), nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
}

func open(ctx context.Context, dialector gorm.Dialector, cfg Config, log *slog.Logger) (*Client, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		// 帳務寫入一律在明確的 Transaction 中完成，不需要 GORM 的單筆預設交易
		SkipDefaultTransaction: true,
		// duplicate key 轉成 gorm.ErrDuplicatedKey
		TranslateError: true,
		Logger:         newLogger(cfg.LogLevel, log),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	// 連線池上限，避免耗盡資料庫連線
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Client{db: db}, nil
}

// DB 回傳底層的 *gorm.DB 實例，供 adapter 使用
func (c *Client) DB() *gorm.DB {
	return c.db
}

// AutoMigrate 建立或更新資料表
func (c *Client) AutoMigrate(models ...any) error {
	return c.db.AutoMigrate(models...)
}

// Close 關閉資料庫連線
func (c *Client) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

var logLevels = map[string]logger.LogLevel{
	"silent": logger.Silent,
	"error":  logger.Error,
	"warn":   logger.Warn,
	"info":   logger.Info,
}

// newLogger GORM 日誌導向 slog，未知等級只記錄錯誤
func newLogger(level string, log *slog.Logger) logger.Interface {
	logLevel, ok := logLevels[strings.ToLower(level)]
	if !ok {
		logLevel = logger.Error
	}
	return logger.New(slogWriter{log: log.With("component", "gorm")}, logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logLevel,
		IgnoreRecordNotFoundError: true,
	})
}

// slogWriter 實作 logger.Writer
type slogWriter struct {
	log *slog.Logger
}

func (w slogWriter) Printf(format string, args ...any) {
	w.log.Info(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/JoeShih716/go-bank-ledger/pkg/database"
	"github.com/JoeShih716/go-bank-ledger/pkg/logger"
)

// EnvPrefix 環境變數前綴，例如 LEDGER_SERVER_ADDR、LEDGER_DATABASE_HOST
const EnvPrefix = "LEDGER"

const (
	StoreMemory = "memory"
	StoreSQL    = "sql"
)

// Config 服務設定，載入順序: yaml 檔 -> .env -> 環境變數 -> 預設值
type Config struct {
	Server   ServerConfig    `yaml:"server"`
	Store    StoreConfig     `yaml:"store"`
	Database database.Config `yaml:"database"`
	Ledger   LedgerConfig    `yaml:"ledger"`
	Log      logger.Config   `yaml:"log"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" split_words:"true"`
}

// StoreConfig 選擇帳本的儲存實作
type StoreConfig struct {
	// Driver: memory (MutexLedger + WAL) | sql (gorm，見 Database)
	Driver string `yaml:"driver"`
	// WALPath: memory 模式的 WAL 檔案，空字串代表不持久化
	WALPath string `yaml:"wal_path" split_words:"true"`
}

type LedgerConfig struct {
	// TxTimeout: 單筆交易 (鎖定、寫入、commit) 的時間上限
	TxTimeout time.Duration `yaml:"tx_timeout" split_words:"true"`
}

// Load 讀取設定
//
// 參數:
//
//	path: string - yaml 設定檔路徑，空字串代表只使用環境變數
//	envFiles: ...string - .env 檔案，不存在時略過
//
// 回傳值:
//
//	*Config: 已補上預設值的設定
//	error: 檔案格式錯誤或設定值不合法
func Load(path string, envFiles ...string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		// godotenv 不覆蓋已存在的環境變數
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load env file %s: %w", f, err)
		}
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults 補全未設定的欄位
func (c *Config) SetDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":50051"
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Store.Driver == "" {
		c.Store.Driver = StoreMemory
	}
	if c.Ledger.TxTimeout == 0 {
		c.Ledger.TxTimeout = 5 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	c.Database.SetDefaults()
}

func (c *Config) Validate() error {
	switch c.Store.Driver {
	case StoreMemory, StoreSQL:
	default:
		return fmt.Errorf("unsupported store driver %q", c.Store.Driver)
	}
	if c.Store.Driver == StoreSQL {
		switch c.Database.Driver {
		case database.DriverMySQL, database.DriverSQLite:
		default:
			return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
		}
	}
	if c.Ledger.TxTimeout < 0 {
		return fmt.Errorf("ledger.tx_timeout must be positive, got %s", c.Ledger.TxTimeout)
	}
	return nil
}

package database

import (
	"fmt"
	"time"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// Config 定義資料庫連線與連線池的配置
type Config struct {
	Driver   string `yaml:"driver"`   // "mysql" 或 "sqlite"
	Host     string `yaml:"host"`     // 資料庫主機地址
	Port     int    `yaml:"port"`     // 資料庫埠號 (預設 3306)
	User     string `yaml:"user"`     // 使用者名稱
	Password string `yaml:"password"` // 密碼
	DBName   string `yaml:"dbname"`   // 資料庫名稱
	Path     string `yaml:"path"`     // SQLite 檔案路徑

	// 連線池設定 (Connection Pool)
	// 參考: https://github.com/go-sql-driver/mysql#important-settings
	MaxOpenConns    int           `yaml:"max_open_conns" split_words:"true"`    // 最大開啟連線數
	MaxIdleConns    int           `yaml:"max_idle_conns" split_words:"true"`    // 最大閒置連線數
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" split_words:"true"` // 連線最大存活時間

	// GORM 設定
	LogLevel    string `yaml:"log_level" split_words:"true"` // Log 等級: "silent", "error", "warn", "info"
	AutoMigrate bool   `yaml:"auto_migrate" split_words:"true"`
	MaxRetries  int    `yaml:"max_retries" split_words:"true"`
}

// DSN (Data Source Name) 產生連線字串
// 格式: user:password@tcp(host:port)/dbname?charset=utf8mb4&parseTime=True&loc=UTC
func (c *Config) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.DBName,
	)
}

// SetDefaults 補全未設定的欄位
func (c *Config) SetDefaults() {
	if c.Driver == "" {
		c.Driver = DriverMySQL
	}
	if c.Port == 0 {
		c.Port = 3306
	}
	if c.Path == "" {
		c.Path = "ledger.db"
	}
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = 100
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = 10
	}
	if c.ConnMaxLifetime == 0 {
		c.ConnMaxLifetime = 30 * time.Minute
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 10
	}
}

package logger

import (
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

// Config 日誌設定
type Config struct {
	// Level: debug | info | warn | error
	Level string `yaml:"level"`
	// Format: text | json | logfmt
	Format string `yaml:"format"`
	Prefix string `yaml:"prefix"`
	// ReportCaller: 是否輸出呼叫位置
	ReportCaller bool `yaml:"report_caller" split_words:"true"`
}

var formatters = map[string]log.Formatter{
	"text":   log.TextFormatter,
	"json":   log.JSONFormatter,
	"logfmt": log.LogfmtFormatter,
}

// New 建立以 charmbracelet/log 為 handler 的 slog.Logger
//
// 參數:
//
//	w: io.Writer - 輸出目的地 (通常是 os.Stderr)
//	cfg: Config - 日誌設定，未知的 level/format 回退為 info/text
//
// 回傳值:
//
//	*slog.Logger: 全專案統一使用 slog API
func New(w io.Writer, cfg Config) *slog.Logger {
	formatter, ok := formatters[strings.ToLower(cfg.Format)]
	if !ok {
		formatter = log.TextFormatter
	}

	handler := log.NewWithOptions(w, log.Options{
		ReportCaller:    cfg.ReportCaller,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Level:           ParseLevel(cfg.Level),
		Prefix:          cfg.Prefix,
		Formatter:       formatter,
	})
	handler.SetStyles(styles())

	return slog.New(handler)
}

// ParseLevel 未知的字串回傳 InfoLevel
func ParseLevel(s string) log.Level {
	level, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return log.InfoLevel
	}
	return level
}

func styles() *log.Styles {
	s := log.DefaultStyles()
	errorColor := lipgloss.AdaptiveColor{Light: "#FF6B6B", Dark: "#FF6B6B"}
	warnColor := lipgloss.AdaptiveColor{Light: "#EE6FF8", Dark: "#EE6FF8"}

	s.Levels[log.ErrorLevel] = lipgloss.NewStyle().SetString("ERROR").Bold(true).Foreground(errorColor)
	s.Levels[log.WarnLevel] = lipgloss.NewStyle().SetString("WARN").Bold(true).Foreground(warnColor)
	s.Keys["error"] = lipgloss.NewStyle().Foreground(errorColor)
	s.Values["error"] = lipgloss.NewStyle().Bold(true)
	s.Keys["tax_id"] = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575"))
	return s
}

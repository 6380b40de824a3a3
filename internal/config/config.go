package config

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
	_ "time/tzdata"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfighcl"
	"github.com/go-playground/validator/v10"
)

type Config struct {
	TelegramBotToken    string `hcl:"telegram_bot_token" env:"TELEGRAM_BOT_TOKEN" required:"true" validate:"required"`
	TelegramChatID      string `hcl:"telegram_chat_id" env:"TELEGRAM_CHAT_ID" required:"true" validate:"required"`
	TelegramAdminChatID int64  `hcl:"telegram_admin_chat_id" env:"TELEGRAM_ADMIN_CHAT_ID"`
	Signature           string `hcl:"signature" env:"SIGNATURE" default:"@TheAnimeTimes_acn" validate:"max=200"`
	ParseMode           string `hcl:"parse_mode" env:"PARSE_MODE" default:"html" validate:"oneof=html markdownv2"`

	LedgerBackend    string `hcl:"ledger_backend" env:"LEDGER_BACKEND" default:"file" validate:"oneof=file postgres sqlite"`
	LedgerPath       string `hcl:"ledger_path" env:"LEDGER_PATH" default:"posted_titles.json" validate:"required_if=LedgerBackend file"`
	LedgerKey        string `hcl:"ledger_key" env:"LEDGER_KEY" default:"title" validate:"oneof=title link hash"`
	LedgerMaxEntries int    `hcl:"ledger_max_entries" env:"LEDGER_MAX_ENTRIES" default:"0" validate:"gte=0"`
	DatabaseDSN      string `hcl:"database_dsn" env:"DATABASE_DSN" validate:"required_unless=LedgerBackend file"`

	BaseURL        string        `hcl:"base_url" env:"BASE_URL" default:"https://www.animenewsnetwork.com" validate:"required,url"`
	FeedURLs       []string      `hcl:"feed_urls" env:"FEED_URLS" validate:"dive,url"`
	Timezone       string        `hcl:"timezone" env:"TIMEZONE" default:"Asia/Kolkata" validate:"required"`
	AllDates       bool          `hcl:"all_dates" env:"ALL_DATES"`
	FilterKeywords []string      `hcl:"filter_keywords" env:"FILTER_KEYWORDS"`
	FetchWorkers   int           `hcl:"fetch_workers" env:"FETCH_WORKERS" default:"3" validate:"min=1,max=32"`
	RequestTimeout time.Duration `hcl:"request_timeout" env:"REQUEST_TIMEOUT" default:"10s" validate:"gt=0"`
	SendInterval   time.Duration `hcl:"send_interval" env:"SEND_INTERVAL" default:"2s" validate:"gte=0"`

	Schedule string `hcl:"schedule" env:"SCHEDULE"`
	HTTPAddr string `hcl:"http_addr" env:"HTTP_ADDR" default:"127.0.0.1:8088" validate:"required_with=Schedule"`
	LogLevel string `hcl:"log_level" env:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	AIType    string        `hcl:"ai_type" env:"AI_TYPE" default:"none" validate:"oneof=none ollama openai"`
	AIBaseURL string        `hcl:"ai_base_url" env:"AI_BASE_URL" validate:"required_if=AIType ollama"`
	AIKey     string        `hcl:"ai_key" env:"AI_KEY" validate:"required_if=AIType openai"`
	AIPrompt  string        `hcl:"ai_prompt" env:"AI_PROMPT"`
	AIModel   string        `hcl:"ai_model" env:"AI_MODEL" default:"llama3"`
	AITimeout time.Duration `hcl:"ai_timeout" env:"AI_TIMEOUT" default:"5m"`
}

var (
	cfg     Config
	loadErr error
	once    sync.Once
)

// Load reads config.hcl files, ANNBOT_* environment variables and flags, in
// that order of precedence, and validates the result. It runs once per process.
func Load() (Config, error) {
	once.Do(func() {
		loader := aconfig.LoaderFor(&cfg, aconfig.Config{
			EnvPrefix: "ANNBOT",
			Files:     []string{"./config.hcl", "./config.local.hcl", "$HOME/.config/anime-times/config.hcl"},
			FileDecoders: map[string]aconfig.FileDecoder{
				".hcl": aconfighcl.New(),
			},
		})

		if err := loader.Load(); err != nil {
			loadErr = fmt.Errorf("load config: %w", err)
			return
		}
		loadErr = cfg.Validate()
	})

	return cfg, loadErr
}

// Validate checks field constraints and that the timezone is known.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid config: timezone %q: %w", c.Timezone, err)
	}
	return nil
}

// Location is the zone used to decide which articles were published today.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		slog.Warn("unknown timezone, using UTC", "timezone", c.Timezone, "err", err)
		return time.UTC
	}
	return loc
}

func (c Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// Package wallpaper parses wallpaper command flags and drives the
// derived-state cache from the command line.
package wallpaper

import (
	"flag"
	"fmt"
	"strings"
	"time"

	entrypoint "github.com/Sheshiyer/sacred-wallpaper-tg-ui/internal/platform/cmd"
)

// Store backends selectable with -store.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreBBolt  = "bbolt"
	StoreRedis  = "redis"
)

// Config holds wallpaper command configuration.
type Config struct {
	APIURL            string        `env:"SACRED_WALLPAPER_API_URL" envDefault:"https://sacred-wallpaper-api.onrender.com/api/v1"`
	RequestsPerSecond float64       `env:"SACRED_WALLPAPER_API_RPS" envDefault:"2"`
	RequestTimeout    time.Duration `env:"SACRED_WALLPAPER_API_TIMEOUT" envDefault:"30s"`
	Store             string        `env:"SACRED_WALLPAPER_STORE" envDefault:"sqlite"`
	StorePath         string        `env:"SACRED_WALLPAPER_STORE_PATH" envDefault:"data/wallpaper.db"`
	RedisAddr         string        `env:"SACRED_WALLPAPER_REDIS_ADDR" envDefault:"127.0.0.1:6379"`
	RedisPassword     string        `env:"SACRED_WALLPAPER_REDIS_PASSWORD"`
	RedisDB           int           `env:"SACRED_WALLPAPER_REDIS_DB" envDefault:"0"`
	UserID            int64         `env:"SACRED_WALLPAPER_USER_ID"`
	InitData          string        `env:"SACRED_WALLPAPER_INIT_DATA"`
	BotToken          string        `env:"SACRED_WALLPAPER_BOT_TOKEN"`
	InitDataMaxAge    time.Duration `env:"SACRED_WALLPAPER_INIT_DATA_MAX_AGE" envDefault:"24h"`
	Locale            string        `env:"SACRED_WALLPAPER_LOCALE"`
	Tier              string        `env:"SACRED_WALLPAPER_TIER"`
	LogLevel          string        `env:"SACRED_WALLPAPER_LOG_LEVEL" envDefault:"warning"`
	LogFormat         string        `env:"SACRED_WALLPAPER_LOG_FORMAT" envDefault:"text"`
	RetryInitial      time.Duration `env:"SACRED_WALLPAPER_RETRY_INITIAL" envDefault:"500ms"`
	RetryMaxElapsed   time.Duration `env:"SACRED_WALLPAPER_RETRY_MAX_ELAPSED" envDefault:"30s"`

	// Command and Args are the subcommand and its arguments.
	Command string
	Args    []string
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.APIURL, "api-url", cfg.APIURL, "Computation service base URL")
	fs.Float64Var(&cfg.RequestsPerSecond, "rps", cfg.RequestsPerSecond, "Client-side request rate limit (0 disables)")
	fs.DurationVar(&cfg.RequestTimeout, "timeout", cfg.RequestTimeout, "Per-request timeout")
	fs.StringVar(&cfg.Store, "store", cfg.Store, "Durable store backend (sqlite, bbolt, redis, memory)")
	fs.StringVar(&cfg.StorePath, "store-path", cfg.StorePath, "SQLite or BoltDB file path")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", cfg.RedisAddr, "Redis address for the redis store")
	fs.Int64Var(&cfg.UserID, "user-id", cfg.UserID, "Host user id used to namespace stored state")
	fs.StringVar(&cfg.InitData, "init-data", cfg.InitData, "Host launch init data")
	fs.StringVar(&cfg.Locale, "locale", cfg.Locale, "Message locale override")
	fs.StringVar(&cfg.Tier, "tier", cfg.Tier, "Subscription tier override (free, basic, premium)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}

	rest := fs.Args()
	if len(rest) == 0 {
		return Config{}, fmt.Errorf("command is required (%s)", strings.Join(commandNames(), ", "))
	}
	cfg.Command = rest[0]
	cfg.Args = rest[1:]
	if _, ok := commands[cfg.Command]; !ok {
		return Config{}, fmt.Errorf("unknown command %q (%s)", cfg.Command, strings.Join(commandNames(), ", "))
	}
	switch cfg.Store {
	case StoreMemory, StoreSQLite, StoreBBolt, StoreRedis:
	default:
		return Config{}, fmt.Errorf("unknown store %q", cfg.Store)
	}
	return cfg, nil
}

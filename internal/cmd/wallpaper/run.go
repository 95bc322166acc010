package wallpaper

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sirupsen/logrus"

	"github.com/Sheshiyer/sacred-wallpaper-tg-ui/internal/derived"
	"github.com/Sheshiyer/sacred-wallpaper-tg-ui/internal/host"
	"github.com/Sheshiyer/sacred-wallpaper-tg-ui/internal/kvstore"
	"github.com/Sheshiyer/sacred-wallpaper-tg-ui/internal/kvstore/bbolt"
	"github.com/Sheshiyer/sacred-wallpaper-tg-ui/internal/kvstore/memory"
	"github.com/Sheshiyer/sacred-wallpaper-tg-ui/internal/kvstore/redis"
	"github.com/Sheshiyer/sacred-wallpaper-tg-ui/internal/kvstore/sqlite"
	entrypoint "github.com/Sheshiyer/sacred-wallpaper-tg-ui/internal/platform/cmd"
	apperrors "github.com/Sheshiyer/sacred-wallpaper-tg-ui/internal/platform/errors"
	"github.com/Sheshiyer/sacred-wallpaper-tg-ui/internal/platform/i18n/catalog"
	"github.com/Sheshiyer/sacred-wallpaper-tg-ui/internal/platform/timeouts"
	"github.com/Sheshiyer/sacred-wallpaper-tg-ui/internal/remote"
)

const redisKeyPrefix = "sacred-wallpaper:"

// session is the state one command invocation works with.
type session struct {
	cfg      Config
	out      io.Writer
	log      logrus.FieldLogger
	identity host.Identity
	locale   string
	tier     host.Tier
	client   *remote.Client
	cache    *derived.Cache
}

// Run executes the configured command. User-facing failures are written to
// errOut in the session locale before being returned.
func Run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}
	command, ok := commands[cfg.Command]
	if !ok {
		return fmt.Errorf("unknown command %q", cfg.Command)
	}

	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceWallpaper, func(ctx context.Context) error {
		logger, err := newLogger(cfg, errOut)
		if err != nil {
			return err
		}
		s, err := newSession(cfg, out, logger)
		if err != nil {
			return err
		}

		store := openStore(ctx, cfg, logger)
		if closer, ok := store.(kvstore.Closer); ok {
			defer func() {
				if err := closer.Close(); err != nil {
					logger.WithError(err).Warn("close store")
				}
			}()
		}
		s.cache = derived.New(s.client, store,
			derived.WithLogger(logger),
			derived.WithNamespace(s.identity.Namespace()),
		)
		s.cache.Load(ctx)

		if err := command(ctx, s, cfg.Args); err != nil {
			if _, ok := apperrors.As(err); ok {
				fmt.Fprintln(errOut, apperrors.UserMessage(err, s.locale))
			}
			return err
		}
		if s.cache.Degraded() {
			fmt.Fprintln(errOut, apperrors.UserMessage(apperrors.New(apperrors.CodeStoreUnavailable, "store unavailable"), s.locale))
		}
		return nil
	})
}

func newSession(cfg Config, out io.Writer, logger logrus.FieldLogger) (*session, error) {
	identity, err := resolveIdentity(cfg, logger)
	if err != nil {
		return nil, err
	}
	locale := identity.Locale()
	if strings.TrimSpace(cfg.Locale) != "" {
		locale = catalog.Default().Match(cfg.Locale)
	}
	tier := identity.Tier()
	if strings.TrimSpace(cfg.Tier) != "" {
		kind, ok := host.ParseTierKind(cfg.Tier)
		if !ok {
			return nil, fmt.Errorf("unknown tier %q", cfg.Tier)
		}
		tier = host.TierFor(kind)
	}
	return &session{
		cfg:      cfg,
		out:      out,
		log:      logger,
		identity: identity,
		locale:   locale,
		tier:     tier,
		client: remote.New(remote.Config{
			BaseURL:           cfg.APIURL,
			RequestsPerSecond: cfg.RequestsPerSecond,
			Burst:             1,
			Timeout:           cfg.RequestTimeout,
		}),
	}, nil
}

func newLogger(cfg Config, out io.Writer) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetOutput(out)
	level := logrus.WarnLevel
	if strings.TrimSpace(cfg.LogLevel) != "" {
		parsed, err := logrus.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		level = parsed
	}
	logger.SetLevel(level)
	if strings.EqualFold(cfg.LogFormat, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger, nil
}

// resolveIdentity reads the host user from init data when present, falling
// back to the configured user id.
func resolveIdentity(cfg Config, logger logrus.FieldLogger) (host.Identity, error) {
	raw := strings.TrimSpace(cfg.InitData)
	if raw == "" {
		return host.Identity{ID: cfg.UserID}, nil
	}
	var (
		data host.InitData
		err  error
	)
	if strings.TrimSpace(cfg.BotToken) != "" {
		data, err = host.Validate(raw, cfg.BotToken, host.ValidateOptions{MaxAge: cfg.InitDataMaxAge})
	} else {
		logger.Warn("init data signature not checked: no bot token configured")
		data, err = host.ParseInitData(raw)
	}
	if err != nil {
		return host.Identity{}, fmt.Errorf("init data: %w", err)
	}
	if data.User.ID == 0 {
		data.User.ID = cfg.UserID
	}
	return data.User, nil
}

// openStore opens the configured backend, falling back to memory when it
// cannot be reached.
func openStore(ctx context.Context, cfg Config, logger logrus.FieldLogger) kvstore.Store {
	store, err := dialStore(ctx, cfg)
	if err != nil {
		logger.WithError(err).WithField("code", string(apperrors.CodeStoreUnavailable)).
			Warn("durable store unavailable, continuing in memory only")
		return memory.New()
	}
	return store
}

func dialStore(ctx context.Context, cfg Config) (kvstore.Store, error) {
	switch cfg.Store {
	case StoreSQLite, StoreBBolt:
		if dir := filepath.Dir(cfg.StorePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create store directory: %w", err)
			}
		}
		if cfg.Store == StoreBBolt {
			return bbolt.Open(cfg.StorePath)
		}
		return sqlite.Open(ctx, cfg.StorePath)
	case StoreRedis:
		dialCtx, cancel := context.WithTimeout(ctx, timeouts.StoreOpen)
		defer cancel()
		return redis.Open(dialCtx, redis.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   redisKeyPrefix,
		})
	default:
		return memory.New(), nil
	}
}

// withRetry retries transport failures with exponential backoff. Every
// other error is returned immediately.
func withRetry[T any](ctx context.Context, s *session, op func() (T, error)) (T, error) {
	policy := backoff.NewExponentialBackOff()
	if s.cfg.RetryInitial > 0 {
		policy.InitialInterval = s.cfg.RetryInitial
	}
	opts := []backoff.RetryOption{
		backoff.WithBackOff(policy),
		backoff.WithNotify(func(err error, next time.Duration) {
			s.log.WithError(err).WithField("retry_in", next.String()).Warn("transport failure, retrying")
		}),
	}
	if s.cfg.RetryMaxElapsed > 0 {
		opts = append(opts, backoff.WithMaxElapsedTime(s.cfg.RetryMaxElapsed))
	}
	return backoff.Retry(ctx, func() (T, error) {
		value, err := op()
		if err != nil && !apperrors.Retryable(err) {
			return value, backoff.Permanent(err)
		}
		return value, err
	}, opts...)
}

func writeJSON(out io.Writer, value any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

func commandNames() []string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/asaidimu/go-restful/auth"
	"github.com/asaidimu/go-restful/cache"
	"github.com/asaidimu/go-restful/config"
	"github.com/asaidimu/go-restful/contrib/admin"
	"github.com/asaidimu/go-restful/core/persistence"
	"github.com/asaidimu/go-restful/sqlstore"
	"github.com/asaidimu/go-restful/utils"
	"go.uber.org/zap"
)

// CipherPrefix marks a config value encrypted with the configured cipher,
// e.g. "cipher:q83v...". See the encrypt command.
const CipherPrefix = "cipher:"

// Runtime is what a command needs to reach the database: the merged config,
// the logger, the engine and the admin resources.
type Runtime struct {
	Config *config.Config
	Logger *zap.Logger
	DB     *sqlstore.SQLInteractor
	Engine *persistence.Engine
	Cache  *cache.Client
	Admin  *admin.Admin
}

// cipher returns the configured cipher, or nil when no key is set.
func cipher(cfg *config.Config) (*utils.Cipher, error) {
	if cfg.Cipher.Key == "" {
		return nil, nil
	}
	iv := cfg.Cipher.IV
	if iv == "" {
		iv = utils.DefaultIV
	}
	return utils.NewCipher(cfg.Cipher.Key, iv)
}

// decryptSecrets replaces cipher: values in place.
func decryptSecrets(cfg *config.Config) error {
	c, err := cipher(cfg)
	if err != nil {
		return err
	}
	for name, field := range map[string]*string{
		"db.url":          &cfg.DB.URL,
		"cache.redis.url": &cfg.Cache.Redis.URL,
		"auth.jwt_secret": &cfg.Auth.JWTSecret,
	} {
		if !strings.HasPrefix(*field, CipherPrefix) {
			continue
		}
		if c == nil {
			return fmt.Errorf("%s is encrypted but cipher.key is not set", name)
		}
		plain, err := c.Decrypt(strings.TrimPrefix(*field, CipherPrefix))
		if err != nil {
			return fmt.Errorf("failed to decrypt %s: %w", name, err)
		}
		*field = plain
	}
	return nil
}

// Open builds a Runtime from cfg. The admin tables are migrated first.
func Open(ctx context.Context, cfg *config.Config) (*Runtime, error) {
	if err := decryptSecrets(cfg); err != nil {
		return nil, err
	}
	logger, err := config.NewLogger(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.UTC {
		utils.SetLocation(time.UTC)
	} else if err := utils.SetTimeZone(cfg.TimeZone); err != nil {
		return nil, fmt.Errorf("invalid time zone %q: %w", cfg.TimeZone, err)
	}

	if err := admin.Migrate(cfg.DB.Driver, cfg.DB.URL, logger); err != nil {
		return nil, err
	}
	db, err := sqlstore.Open(ctx, cfg.DB.Driver, cfg.DB.URL, logger, nil)
	if err != nil {
		return nil, err
	}
	if cfg.DB.MaxOpenConns > 0 {
		db.DB().SetMaxOpenConns(cfg.DB.MaxOpenConns)
	}
	rt := &Runtime{Config: cfg, Logger: logger, DB: db}

	if rt.Engine, err = persistence.NewEngine(db, logger); err != nil {
		rt.Close()
		return nil, err
	}
	if rt.Cache, err = cache.New(cfg.Cache.Cache(), logger); err != nil {
		rt.Close()
		return nil, err
	}
	opts := admin.Options{
		Cache:         rt.Cache,
		TokenDuration: cfg.Auth.TokenDuration,
		TokenCacheMax: cfg.Auth.TokenCacheMax,
		Logger:        logger,
	}
	if cfg.Auth.JWTSecret != "" {
		opts.JWT = &auth.JWTAuthentication{
			Secret: []byte(cfg.Auth.JWTSecret),
			Issuer: cfg.Name,
			TTL:    cfg.Auth.TokenDuration,
		}
	}
	if rt.Admin, err = admin.New(rt.Engine, opts); err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

// Close releases the cache and the database.
func (rt *Runtime) Close() error {
	var errs []error
	if rt.Cache != nil {
		errs = append(errs, rt.Cache.Close())
	}
	if rt.DB != nil {
		errs = append(errs, rt.DB.Close())
	}
	_ = rt.Logger.Sync()
	return errors.Join(errs...)
}

// runtime opens a Runtime for the loaded config.
func (a *App) runtime(ctx context.Context) (*Runtime, error) {
	if a.cfg == nil {
		return nil, errors.New("configuration is not loaded")
	}
	return Open(ctx, a.cfg)
}

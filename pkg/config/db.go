package config

import (
	"context"
	"fmt"
	"time"

	"ai-bot-network/backend/pkg/logger"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewDB opens the database handle described by cfg. The handle is created once
// at process start and passed to every component that needs it.
//
// Opening never requires a reachable server: the handle connects lazily, and
// when the database stays unreachable through every retry the handle is still
// returned so the service can start and answer from its degraded tiers.
func NewDB(ctx context.Context, cfg *Config, log *logger.Logger) (*gorm.DB, error) {
	if log == nil {
		log = logger.GetGlobal()
	}
	gormConfig := &gorm.Config{DisableAutomaticPing: true}

	if cfg.Server.Env == "development" {
		gormConfig.Logger = gormlogger.Default.LogMode(gormlogger.Info)
	} else {
		gormConfig.Logger = gormlogger.Default.LogMode(gormlogger.Error)
	}

	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database connection: %w", err)
	}

	if cfg.Database.Driver == "sqlite" {
		// sqlite serializes writers; one connection avoids SQLITE_BUSY
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(cfg.Database.MaxConns)
		sqlDB.SetConnMaxLifetime(time.Hour)
		sqlDB.SetConnMaxIdleTime(10 * time.Minute)
	}

	retries := cfg.Database.Retries
	if retries < 1 {
		retries = 1
	}
	delay := 2 * time.Second
	timeout := cfg.Database.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	for i := 1; i <= retries; i++ {
		pingCtx, cancel := context.WithTimeout(ctx, timeout)
		err = sqlDB.PingContext(pingCtx)
		cancel()
		if err == nil {
			return db, nil
		}
		if i == retries {
			break
		}

		log.Warn("Failed to connect to database, retrying",
			"attempt", i,
			"retries", retries,
			"delay", delay.String(),
			"error", err.Error(),
		)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return db, nil
		}
	}

	log.Warn("Database unreachable, starting without it",
		"driver", cfg.Database.Driver,
		"error", err.Error(),
	)
	return db, nil
}

func dialectorFor(cfg *Config) (gorm.Dialector, error) {
	switch cfg.Database.Driver {
	case "postgres", "":
		dsn := fmt.Sprintf(
			"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s connect_timeout=%d",
			cfg.Database.Host,
			cfg.Database.Port,
			cfg.Database.User,
			cfg.Database.Password,
			cfg.Database.Name,
			cfg.Database.SSLMode,
			int(cfg.Database.Timeout.Seconds()),
		)
		return postgres.Open(dsn), nil
	case "sqlite":
		return sqlite.Open(cfg.Database.Path), nil
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Database.Driver)
	}
}

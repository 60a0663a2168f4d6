// Package slurmdb reads association state directly from slurmdbd's MySQL
// database. It is a read-only alternative to parsing sacctmgr output, for
// hosts with database access but no sacctmgr.
package slurmdb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	glogger "gorm.io/gorm/logger"

	"slurmtools/config"
)

// Client wraps a GORM DB connection for SlurmDB.
type Client struct {
	DB          *gorm.DB
	ClusterName string
	logger      *slog.Logger
}

// Close closes the underlying connection pool.
func (c *Client) Close() error {
	if c == nil || c.DB == nil {
		return nil
	}
	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// New creates a read-only GORM Client configured from config.Slurmdb.
func New(cfg config.Slurmdb, cluster string, logger *slog.Logger) (*Client, error) {
	dsn, err := buildDSN(cfg)
	if err != nil {
		return nil, err
	}

	logger.Debug("build dsn", "dsn", dsn)

	gcfg := &gorm.Config{
		Logger: glogger.Default.LogMode(glogger.Warn),
	}

	db, err := gorm.Open(mysql.Open(dsn), gcfg)
	if err != nil {
		return nil, err
	}

	// Tune the underlying connection pool
	if sqlDB, err := db.DB(); err == nil {
		if cfg.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		}
		if d := parseDuration(cfg.ConnMaxLifetime); d > 0 {
			sqlDB.SetConnMaxLifetime(d)
		}
		// Proactive connectivity check with timeout to avoid hanging on unreachable DB
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := sqlDB.PingContext(ctx); err != nil {
			return nil, err
		}
	}

	// Enforce read-only at ORM layer
	enforceReadOnly(db)

	return &Client{DB: db, ClusterName: cluster, logger: logger}, nil
}

// buildDSN constructs a DSN string without importing the mysql driver package.
// Format: user:pass@tcp(host:port)/dbname?param=value
func buildDSN(cfg config.Slurmdb) (string, error) {
	creds := cfg.User
	if cfg.Password != "" {
		creds = fmt.Sprintf("%s:%s", cfg.User, cfg.Password)
	}

	addr := fmt.Sprintf("tcp(%s:%d)", cfg.Host, cfg.Port)
	dbname := cfg.Database

	params := make([]string, 0, 8)
	if cfg.Charset != "" {
		params = append(params, fmt.Sprintf("charset=%s", cfg.Charset))
	}
	if cfg.ParseTime {
		params = append(params, "parseTime=true")
	} else {
		params = append(params, "parseTime=false")
	}
	if cfg.Loc != "" {
		params = append(params, fmt.Sprintf("loc=%s", url.QueryEscape(cfg.Loc)))
	}
	if cfg.TLS != "" {
		params = append(params, fmt.Sprintf("tls=%s", cfg.TLS))
	}
	// Conservative timeouts to prevent hangs on connect/read/write
	params = append(params, "timeout=5s")
	params = append(params, "readTimeout=5s")
	params = append(params, "writeTimeout=5s")

	dsn := fmt.Sprintf("%s@%s/%s", creds, addr, dbname)
	if len(params) > 0 {
		dsn = dsn + "?" + joinParams(params)
	}
	return dsn, nil
}

// parseDuration returns 0 on empty or invalid duration strings.
func parseDuration(s string) time.Duration {
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}

// joinParams joins DSN parameters with '&'.
func joinParams(params []string) string {
	if len(params) == 0 {
		return ""
	}
	out := params[0]
	for i := 1; i < len(params); i++ {
		out += "&" + params[i]
	}
	return out
}

// enforceReadOnly installs GORM callbacks that reject write operations and non-read raw SQL.
func enforceReadOnly(db *gorm.DB) {
	block := func(tx *gorm.DB) {
		tx.AddError(errors.New("slurmdb Client is read-only"))
	}
	// Block create/update/delete
	_ = db.Callback().Create().Before("gorm:create").Register("slurmtools:readonly_create", block)
	_ = db.Callback().Update().Before("gorm:update").Register("slurmtools:readonly_update", block)
	_ = db.Callback().Delete().Before("gorm:delete").Register("slurmtools:readonly_delete", block)

	// Block raw/exec that are not read-only
	_ = db.Callback().Raw().Before("gorm:raw").Register("slurmtools:readonly_raw", func(tx *gorm.DB) {
		sql := strings.TrimSpace(tx.Statement.SQL.String())
		up := strings.ToUpper(sql)
		if strings.HasPrefix(up, "SELECT") || strings.HasPrefix(up, "SHOW") || strings.HasPrefix(up, "DESCRIBE") || strings.HasPrefix(up, "EXPLAIN") {
			return
		}
		tx.AddError(errors.New("read-only: raw SQL must be SELECT/SHOW/DESCRIBE/EXPLAIN"))
	})
}

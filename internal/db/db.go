package db

import (
	"database/sql"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"oddlynews/internal/config"
)

// DB holds the read-path handle and the admin handle used for writes.
// When both DSNs are equal the same pool backs both.
type DB struct {
	Gorm      *gorm.DB
	SQL       *sql.DB
	Admin     *gorm.DB
	AdminSQL  *sql.DB
	sharedDSN bool
}

func Open(cfg config.DBConfig) (*DB, error) {
	gdb, sqldb, err := open(cfg.DSN, cfg)
	if err != nil {
		return nil, err
	}
	out := &DB{Gorm: gdb, SQL: sqldb}

	adminDSN := strings.TrimSpace(cfg.AdminDSN)
	if adminDSN == "" || adminDSN == cfg.DSN {
		out.Admin = gdb
		out.AdminSQL = sqldb
		out.sharedDSN = true
		return out, nil
	}
	adb, asql, err := open(adminDSN, cfg)
	if err != nil {
		_ = sqldb.Close()
		return nil, err
	}
	out.Admin = adb
	out.AdminSQL = asql
	return out, nil
}

func open(dsn string, cfg config.DBConfig) (*gorm.DB, *sql.DB, error) {
	gcfg := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	}

	gdb, err := gorm.Open(postgres.Open(dsn), gcfg)
	if err != nil {
		return nil, nil, err
	}

	sqldb, err := gdb.DB()
	if err != nil {
		return nil, nil, err
	}

	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqldb.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	return gdb, sqldb, nil
}

func Close(db *DB) error {
	if db == nil || db.SQL == nil {
		return nil
	}
	if !db.sharedDSN && db.AdminSQL != nil {
		_ = db.AdminSQL.Close()
	}
	return db.SQL.Close()
}

func SetTimezone(db *DB, tz string) error {
	if db == nil || tz == "" {
		return nil
	}
	if _, err := db.SQL.Exec("SET TIME ZONE '" + tz + "'"); err != nil {
		return err
	}
	if db.sharedDSN || db.AdminSQL == nil {
		return nil
	}
	_, err := db.AdminSQL.Exec("SET TIME ZONE '" + tz + "'")
	return err
}

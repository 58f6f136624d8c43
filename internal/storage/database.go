package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"vaanigo/internal/config"
	"vaanigo/internal/models"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
)

// Open connects to the configured database. dbType selects one of the
// entries under "databases" in the config file.
func Open(dbType string, cfg *config.Config) (*sql.DB, error) {
	dbCfg, ok := cfg.Databases[dbType]
	if !ok {
		return nil, fmt.Errorf("database config for %s not found", dbType)
	}

	var (
		db  *sql.DB
		err error
	)

	switch strings.ToLower(dbType) {
	case "sqlite", "sqlite3":
		if dbCfg.DSN == "" {
			return nil, fmt.Errorf("sqlite dsn must be provided")
		}
		db, err = sql.Open("sqlite3", dbCfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite database: %w", err)
		}
	case "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
			dbCfg.Username,
			dbCfg.Password,
			dbCfg.Host,
			dbCfg.Port,
			dbCfg.DBName,
			dbCfg.Params,
		)
		db, err = sql.Open("mysql", dsn)
		if err != nil {
			return nil, fmt.Errorf("open mysql database: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", dbType)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// Migrate ensures the required tables are present.
func Migrate(db *sql.DB, driver string) error {
	var stmt string
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		stmt = `CREATE TABLE IF NOT EXISTS uploads (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			file_name TEXT NOT NULL,
			stored_name TEXT NOT NULL UNIQUE,
			location TEXT NOT NULL,
			mime_type TEXT NOT NULL,
			size INTEGER NOT NULL,
			created_at DATETIME NOT NULL
		)`
	case "mysql":
		stmt = `CREATE TABLE IF NOT EXISTS uploads (
			id BIGINT PRIMARY KEY AUTO_INCREMENT,
			file_name VARCHAR(512) NOT NULL,
			stored_name VARCHAR(512) NOT NULL UNIQUE,
			location TEXT NOT NULL,
			mime_type VARCHAR(255) NOT NULL,
			size BIGINT NOT NULL,
			created_at DATETIME NOT NULL
		)`
	default:
		return fmt.Errorf("unsupported driver: %s", driver)
	}
	if _, err := db.Exec(stmt); err != nil {
		return fmt.Errorf("create uploads table: %w", err)
	}
	return nil
}

// RecordUpload persists one upload record and returns its id.
func RecordUpload(ctx context.Context, db *sql.DB, rec *models.UploadRecord) (int64, error) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	res, err := db.ExecContext(ctx,
		`INSERT INTO uploads (file_name, stored_name, location, mime_type, size, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.FileName, rec.StoredName, rec.Location, rec.MimeType, rec.Size, rec.CreatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert upload: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("upload insert id: %w", err)
	}
	rec.ID = id
	return id, nil
}

// ListUploads returns the most recent upload records, newest first.
func ListUploads(ctx context.Context, db *sql.DB, limit int) ([]*models.UploadRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.QueryContext(ctx,
		`SELECT id, file_name, stored_name, location, mime_type, size, created_at
		 FROM uploads ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	defer rows.Close()

	var records []*models.UploadRecord
	for rows.Next() {
		rec := &models.UploadRecord{}
		if err := rows.Scan(&rec.ID, &rec.FileName, &rec.StoredName, &rec.Location,
			&rec.MimeType, &rec.Size, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan upload: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

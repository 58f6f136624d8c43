// Package upload persists user files to an S3-compatible object store with
// local disk as automatic fallback, and records upload metadata.
package upload

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"vaanigo/internal/models"
	"vaanigo/internal/redis"
	"vaanigo/internal/storage"
)

// ObjectPutter is the slice of the object store the service needs.
type ObjectPutter interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// Service stores uploads. store, db and cache are all optional; with none of
// them configured every upload lands on local disk and only the returned
// location identifies it.
type Service struct {
	store ObjectPutter
	dir   string
	db    *sql.DB
	cache *redis.Client
}

func NewService(store ObjectPutter, dir string, db *sql.DB, cache *redis.Client) *Service {
	if dir == "" {
		dir = "uploads"
	}
	return &Service{store: store, dir: dir, db: db, cache: cache}
}

// Store persists the file and returns its location: an object-store URL when
// the store took it, otherwise an absolute local path. Callers treat the
// location as opaque.
func (s *Service) Store(ctx context.Context, filename string, data []byte, contentType string) (string, error) {
	storedName := uniqueName(filename)

	location, err := s.put(ctx, storedName, data, contentType)
	if err != nil {
		return "", err
	}

	s.record(ctx, &models.UploadRecord{
		FileName:   filepath.Base(filename),
		StoredName: storedName,
		Location:   location,
		MimeType:   contentType,
		Size:       int64(len(data)),
	})
	log.Printf("file uploaded: %s -> %s", filename, location)
	return location, nil
}

func (s *Service) put(ctx context.Context, storedName string, data []byte, contentType string) (string, error) {
	if s.store != nil {
		url, err := s.store.Put(ctx, storedName, data, contentType)
		if err == nil {
			return url, nil
		}
		log.Printf("object store upload failed, falling back to disk: %v", err)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload directory: %w", err)
	}
	path := filepath.Join(s.dir, storedName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return path, nil
	}
	return abs, nil
}

// record keeps upload bookkeeping best-effort: a failed insert or cache
// write never fails the upload itself.
func (s *Service) record(ctx context.Context, rec *models.UploadRecord) {
	if s.db != nil {
		if _, err := storage.RecordUpload(ctx, s.db, rec); err != nil {
			log.Printf("record upload %s: %v", rec.StoredName, err)
		}
	}
	s.cache.CacheUpload(ctx, rec.StoredName, rec.Location)
}

// ListRecent returns recent upload records, newest first. Empty without a
// database.
func (s *Service) ListRecent(ctx context.Context, limit int) ([]*models.UploadRecord, error) {
	if s.db == nil {
		return nil, nil
	}
	return storage.ListUploads(ctx, s.db, limit)
}

// uniqueName builds a collision-resistant stored name, preserving the
// original extension: <unix-ts>_<random-hex><ext>.
func uniqueName(filename string) string {
	ext := filepath.Ext(filename)
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")
	return fmt.Sprintf("%d_%s%s", time.Now().Unix(), suffix, ext)
}

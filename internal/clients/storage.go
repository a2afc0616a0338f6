package clients

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrFileNotFound = errors.New("file not found")

// StorageClient keeps generated export files on the local disk and serves
// them under PublicPrefix.
type StorageClient struct {
	BaseDir      string
	PublicPrefix string // e.g. "/files"
	BaseURL      string // optional scheme+host used for absolute links
}

// NewLocalStorage creates baseDir when missing.
func NewLocalStorage(baseDir, publicPrefix, baseURL string) (*StorageClient, error) {
	if baseDir == "" {
		baseDir = "./exports"
	}
	if publicPrefix == "" {
		publicPrefix = "/files"
	}
	if !strings.HasPrefix(publicPrefix, "/") {
		publicPrefix = "/" + publicPrefix
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to ensure storage dir %q: %w", baseDir, err)
	}

	return &StorageClient{
		BaseDir:      baseDir,
		PublicPrefix: strings.TrimRight(publicPrefix, "/"),
		BaseURL:      strings.TrimRight(baseURL, "/"),
	}, nil
}

// Save writes data under a unique name that ends with fileName and returns that name.
func (s *StorageClient) Save(_ context.Context, fileName string, data []byte) (string, error) {
	stored := uniqueName(fileName)
	path := filepath.Join(s.BaseDir, stored)

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("failed to finalize file: %w", err)
	}
	return stored, nil
}

func (s *StorageClient) URL(_ context.Context, stored string) (string, error) {
	return s.GetURL(stored), nil
}

// GetURL is absolute when BaseURL is set and relative to the host otherwise.
func (s *StorageClient) GetURL(stored string) string {
	return s.BaseURL + s.PublicPrefix + "/" + stored
}

// Path resolves a stored name to a file inside BaseDir.
func (s *StorageClient) Path(stored string) (string, error) {
	if stored == "" || stored != filepath.Base(stored) || strings.HasSuffix(stored, ".tmp") {
		return "", ErrFileNotFound
	}
	path := filepath.Join(s.BaseDir, stored)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", ErrFileNotFound
	}
	return path, nil
}

// CleanupOlderThan deletes files last written more than d ago and reports how many went.
func (s *StorageClient) CleanupOlderThan(_ context.Context, d time.Duration) (int, error) {
	now := time.Now()
	removed := 0
	err := filepath.WalkDir(s.BaseDir, func(path string, de fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if de.IsDir() {
			return nil
		}
		info, err := de.Info()
		if err != nil {
			return nil
		}
		if now.Sub(info.ModTime()) > d && os.Remove(path) == nil {
			removed++
		}
		return nil
	})
	return removed, err
}

func uniqueName(fileName string) string {
	return uuid.NewString() + "_" + filepath.Base(fileName)
}

// DisplayName strips the unique prefix Save adds.
func DisplayName(stored string) string {
	stored = filepath.Base(stored)
	if _, rest, ok := strings.Cut(stored, "_"); ok {
		return rest
	}
	return stored
}

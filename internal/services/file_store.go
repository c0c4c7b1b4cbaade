package services

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/charlesng35/authapp/pkg/errors"
	"github.com/charlesng35/authapp/pkg/logger"
)

const (
	// DefaultMaxUploadSize caps profile images at 5 MiB.
	DefaultMaxUploadSize int64 = 5 << 20
	// ProfilesRoute is the public route profile images are served from.
	ProfilesRoute = "/api/files/profiles"

	profilesDir = "profiles"
)

var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

var (
	ErrEmptyUpload       = apperrors.NewValidation("uploaded file is empty")
	ErrUploadTooLarge    = apperrors.NewValidation("file size must not exceed 5MB")
	ErrUnsupportedUpload = apperrors.NewValidation("unsupported file type (JPEG, PNG, GIF, WebP)")
	// ErrForeignProfileImage rejects a stored image URL that belongs to another account.
	ErrForeignProfileImage = apperrors.NewValidation("profile image belongs to another user")
)

// FileStoreConfig configures local profile image storage.
type FileStoreConfig struct {
	UploadDir string
	BaseURL   string
	MaxSize   int64
}

// Upload is a received file.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// FileStore keeps profile images on local disk and hands out public URLs for them.
type FileStore struct {
	root    string
	baseURL string
	maxSize int64
}

// NewFileStore creates the profiles directory under cfg.UploadDir.
func NewFileStore(cfg FileStoreConfig) (*FileStore, error) {
	uploadDir := strings.TrimSpace(cfg.UploadDir)
	if uploadDir == "" {
		uploadDir = "uploads"
	}
	root, err := filepath.Abs(uploadDir)
	if err != nil {
		return nil, fmt.Errorf("file store: resolve upload dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(root, profilesDir), 0o755); err != nil {
		return nil, fmt.Errorf("file store: create upload dir: %w", err)
	}

	maxSize := cfg.MaxSize
	if maxSize <= 0 {
		maxSize = DefaultMaxUploadSize
	}

	return &FileStore{
		root:    root,
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		maxSize: maxSize,
	}, nil
}

// ProfilesDir is the directory served under ProfilesRoute.
func (s *FileStore) ProfilesDir() string {
	return filepath.Join(s.root, profilesDir)
}

// MaxSize is the largest accepted upload in bytes.
func (s *FileStore) MaxSize() int64 { return s.maxSize }

// Validate checks size and declared content type.
func (s *FileStore) Validate(upload Upload) error {
	if upload.Body == nil || upload.Size <= 0 {
		return ErrEmptyUpload
	}
	if upload.Size > s.maxSize {
		return ErrUploadTooLarge
	}
	if _, ok := allowedImageTypes[normaliseContentType(upload.ContentType)]; !ok {
		return ErrUnsupportedUpload
	}
	return nil
}

// SaveProfileImage stores the upload as user_<id>_<uuid><ext> and returns its public URL.
func (s *FileStore) SaveProfileImage(accountID uint64, upload Upload) (string, error) {
	if err := s.Validate(upload); err != nil {
		return "", err
	}

	name := ownerPrefix(accountID) + uuid.NewString() + imageExtension(upload)
	target := filepath.Join(s.ProfilesDir(), name)

	file, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return "", apperrors.Wrap(err, "failed to store file")
	}

	// One extra byte detects bodies longer than the declared size.
	written, err := io.Copy(file, io.LimitReader(upload.Body, s.maxSize+1))
	closeErr := file.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && written > s.maxSize {
		err = ErrUploadTooLarge
	}
	if err != nil {
		_ = os.Remove(target)
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return "", appErr
		}
		return "", apperrors.Wrap(err, "failed to store file")
	}

	logger.WithModule("files").Info("stored profile image", zap.Uint64("account_id", accountID), zap.String("file", name))
	return s.baseURL + ProfilesRoute + "/" + name, nil
}

// managedName returns the file name behind a URL served by this store. ok is false for
// URLs outside the store and for names that would escape the profiles directory.
func (s *FileStore) managedName(url string) (name string, ok bool) {
	prefix := s.baseURL + ProfilesRoute + "/"
	if url == "" || !strings.HasPrefix(url, prefix) {
		return "", false
	}
	rest := strings.TrimPrefix(url, prefix)
	name = path.Base(rest)
	if name != rest || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", false
	}
	return name, true
}

// IsManaged reports whether url points into this store's public URL space.
func (s *FileStore) IsManaged(url string) bool {
	return strings.HasPrefix(url, s.baseURL+ProfilesRoute+"/")
}

// Owns reports whether url names a file stored for ownerID.
func (s *FileStore) Owns(ownerID uint64, url string) bool {
	name, ok := s.managedName(url)
	return ok && strings.HasPrefix(name, ownerPrefix(ownerID))
}

// Delete removes a file SaveProfileImage stored for ownerID. URLs outside this store,
// files owned by another account and missing files are ignored.
func (s *FileStore) Delete(ownerID uint64, url string) error {
	if !s.Owns(ownerID, url) {
		return nil
	}
	name, _ := s.managedName(url)
	if err := os.Remove(filepath.Join(s.ProfilesDir(), name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("file store: delete %s: %w", name, err)
	}
	return nil
}

func ownerPrefix(ownerID uint64) string {
	return fmt.Sprintf("user_%d_", ownerID)
}

func normaliseContentType(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if idx := strings.Index(value, ";"); idx >= 0 {
		value = strings.TrimSpace(value[:idx])
	}
	return value
}

func imageExtension(upload Upload) string {
	ext := strings.ToLower(filepath.Ext(upload.Filename))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		return ext
	}
	return allowedImageTypes[normaliseContentType(upload.ContentType)]
}

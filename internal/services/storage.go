package services

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ImageStore keeps uploaded images and hands back a stable reference.
type ImageStore interface {
	Save(file *multipart.FileHeader) (string, error)
	Delete(name string) error
}

var allowedImageExt = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".gif":  true,
}

// LocalImageStore writes images under a directory served at /uploads.
type LocalImageStore struct {
	dir string
}

// NewLocalImageStore creates dir if needed.
func NewLocalImageStore(dir string) (*LocalImageStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalImageStore{dir: dir}, nil
}

// Save copies the upload under a random name and returns that name.
func (s *LocalImageStore) Save(file *multipart.FileHeader) (string, error) {
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedImageExt[ext] {
		return "", invalidInput("unsupported image type %q", ext)
	}

	src, err := file.Open()
	if err != nil {
		return "", invalidInput("unreadable upload")
	}
	defer src.Close()

	name := uuid.NewString() + ext
	dst, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return "", storeError(err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", storeError(err)
	}
	return name, nil
}

// Delete removes a stored image. Unknown names are ignored.
func (s *LocalImageStore) Delete(name string) error {
	if name == "" || name != filepath.Base(name) {
		return nil
	}
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !os.IsNotExist(err) {
		return storeError(err)
	}
	return nil
}

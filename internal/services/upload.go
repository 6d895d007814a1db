package services

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/agrosentry/backend/internal/logger"
	"github.com/agrosentry/backend/internal/utils"
)

const maxUploadBytes = 10 * 1024 * 1024

// Client-input failures, rejected before anything touches disk.
var (
	ErrNoFile          = fmt.Errorf("No image file uploaded")
	ErrFileTooLarge    = fmt.Errorf("Image exceeds the 10MB upload limit")
	ErrUnsupportedType = fmt.Errorf("Only image files are allowed")
)

var allowedExtensions = map[string]bool{
	".jpeg": true,
	".jpg":  true,
	".png":  true,
	".gif":  true,
}

var allowedContentTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/gif":  true,
}

// UploadService stores uploaded images on local disk and knows how to
// undo a store when a later pipeline step fails.
type UploadService interface {
	Save(file *multipart.FileHeader) (string, error)
	Remove(path string) error
	PublicURL(path string) string
	Dir() string
}

type uploadService struct {
	log *logger.Logger
	dir string
}

func NewUploadService(baseLog *logger.Logger) (UploadService, error) {
	serviceLog := baseLog.With("service", "UploadService")
	dir := utils.GetEnv("UPLOAD_DIR", "./uploads", baseLog)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("Failed to create upload directory %s: %w", dir, err)
	}
	return &uploadService{log: serviceLog, dir: dir}, nil
}

func (us *uploadService) Save(file *multipart.FileHeader) (string, error) {
	if file == nil {
		return "", ErrNoFile
	}
	if file.Size > maxUploadBytes {
		return "", ErrFileTooLarge
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	contentType := strings.ToLower(file.Header.Get("Content-Type"))
	if !allowedExtensions[ext] || !allowedContentTypes[contentType] {
		return "", ErrUnsupportedType
	}

	src, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("Failed to open uploaded file: %w", err)
	}
	defer src.Close()

	name := fmt.Sprintf("%s-%d%s", uuid.New().String(), time.Now().UnixMilli(), ext)
	path := filepath.Join(us.dir, name)

	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("Failed to create stored file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("Failed to write stored file: %w", err)
	}

	us.log.Debug("Stored uploaded image", "path", path, "original_filename", file.Filename)
	return path, nil
}

func (us *uploadService) Remove(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		us.log.Warn("Failed to remove stored file", "error", err, "path", path)
		return err
	}
	return nil
}

func (us *uploadService) PublicURL(path string) string {
	return "/uploads/" + filepath.Base(path)
}

func (us *uploadService) Dir() string {
	return us.dir
}

package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math"
	"mime"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/timmy/threatforge/internal/config"
	"github.com/timmy/threatforge/internal/domain"
	"github.com/timmy/threatforge/internal/logger"
	"github.com/timmy/threatforge/internal/storage"
	_ "golang.org/x/image/webp"
)

const maxFilenameLength = 255

var (
	extensionTypes = map[string]domain.FileType{
		".drawio": domain.FileTypeDrawio,
		".xml":    domain.FileTypeXML,
		".png":    domain.FileTypePNG,
		".jpg":    domain.FileTypeJPG,
		".jpeg":   domain.FileTypeJPG,
		".svg":    domain.FileTypeSVG,
		".webp":   domain.FileTypeWebP,
	}

	allowedMIMETypes = map[string]bool{
		"application/xml":          true,
		"text/xml":                 true,
		"image/png":                true,
		"image/jpeg":               true,
		"image/svg+xml":            true,
		"image/webp":               true,
		"application/octet-stream": true,
	}

	contentTypes = map[domain.FileType]string{
		domain.FileTypeDrawio: "application/xml",
		domain.FileTypeXML:    "application/xml",
		domain.FileTypePNG:    "image/png",
		domain.FileTypeJPG:    "image/jpeg",
		domain.FileTypeSVG:    "image/svg+xml",
		domain.FileTypeWebP:   "image/webp",
	}

	fileIDPattern   = regexp.MustCompile(`^[a-f0-9-]+$`)
	unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)
)

// ValidFileID reports whether id has the accepted upload id shape.
func ValidFileID(id string) bool {
	return fileIDPattern.MatchString(id)
}

// FileMetadataStore persists upload metadata. Lookups return nil, nil when
// the record does not exist.
type FileMetadataStore interface {
	Create(ctx context.Context, file *domain.UploadedFile) error
	GetByID(ctx context.Context, id string) (*domain.UploadedFile, error)
	GetByHash(ctx context.Context, hash string) (*domain.UploadedFile, error)
	List(ctx context.Context) ([]domain.UploadedFile, error)
	ListOlderThan(ctx context.Context, cutoff time.Time) ([]domain.UploadedFile, error)
	Delete(ctx context.Context, id string) (bool, error)
	Stats(ctx context.Context) (domain.FileStats, error)
}

// FileService validates, stores and describes uploaded diagrams.
type FileService struct {
	meta    FileMetadataStore
	blobs   storage.ObjectStorage
	cfg     config.UploadsConfig
	clock   Clock
	newUUID func() string
}

// NewFileService wires metadata and blob storage together.
func NewFileService(meta FileMetadataStore, blobs storage.ObjectStorage, cfg config.UploadsConfig, clock Clock) *FileService {
	if clock == nil {
		clock = SystemClock{}
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = 10 * 1024 * 1024
	}
	return &FileService{
		meta:    meta,
		blobs:   blobs,
		cfg:     cfg,
		clock:   clock,
		newUUID: func() string { return uuid.NewString() },
	}
}

func (s *FileService) log(ctx context.Context) *logger.Logger {
	return logger.FromContext(logger.SetComponent(ctx, "files"))
}

func invalidFile(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidFile, fmt.Sprintf(format, args...))
}

// Upload validates and stores a file. Byte-identical content returns the
// previously stored metadata instead of a new record.
func (s *FileService) Upload(ctx context.Context, filename, contentType string, r io.Reader) (*domain.UploadedFile, error) {
	fileType, err := validateFilename(filename)
	if err != nil {
		return nil, err
	}
	if err := validateMIMEType(contentType); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(r, s.cfg.MaxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if len(data) == 0 {
		return nil, invalidFile("Empty file not allowed")
	}
	if int64(len(data)) > s.cfg.MaxSize {
		return nil, invalidFile("File too large (max %dMB)", s.cfg.MaxSize/(1024*1024))
	}

	hash := hashBytes(data)
	existing, err := s.meta.GetByHash(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to check duplicate: %w", err)
	}
	if existing != nil {
		s.log(ctx).WithField(logger.FieldFileID, existing.ID).Info("Duplicate file detected, returning existing file")
		return existing, nil
	}

	if !s.cfg.SkipContentValidation && !validContent(data, fileType) {
		return nil, invalidFile("File content validation failed")
	}

	id := s.newUUID()
	key := fmt.Sprintf("uploads/%s_%s", id, unsafeNameChars.ReplaceAllString(filename, "_"))
	ct := contentTypes[fileType]

	if err := s.blobs.Upload(ctx, key, bytes.NewReader(data), int64(len(data)), ct); err != nil {
		return nil, fmt.Errorf("failed to store file: %w", err)
	}

	file := &domain.UploadedFile{
		ID:          id,
		Filename:    filename,
		FileType:    fileType,
		MimeType:    ct,
		Size:        int64(len(data)),
		ContentHash: hash,
		StorageKey:  key,
		UploadDate:  s.clock.Now().UTC(),
	}
	if err := s.meta.Create(ctx, file); err != nil {
		_ = s.blobs.Delete(ctx, key)
		return nil, fmt.Errorf("failed to save file metadata: %w", err)
	}

	logger.With(logger.Fields{logger.FieldFileID: id}).WithSize(file.Size).
		Info(ctx, "File saved successfully: %s", filename)
	return file, nil
}

func validateFilename(name string) (domain.FileType, error) {
	if name == "" {
		return "", invalidFile("No filename provided")
	}
	if len(name) > maxFilenameLength {
		return "", invalidFile("Filename too long. Maximum %d characters allowed.", maxFilenameLength)
	}
	if strings.ContainsAny(name, `<>:"|?*\/`) {
		return "", invalidFile("Filename contains dangerous characters")
	}
	if strings.Contains(name, "..") {
		return "", invalidFile("Filename contains path traversal characters")
	}

	ext := strings.ToLower(filepath.Ext(name))
	ft, ok := extensionTypes[ext]
	if !ok {
		return "", invalidFile("File type not allowed. Allowed types: .drawio, .jpeg, .jpg, .png, .svg, .webp, .xml")
	}
	return ft, nil
}

func validateMIMEType(contentType string) error {
	if contentType == "" {
		return nil
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil || !allowedMIMETypes[strings.ToLower(mt)] {
		return invalidFile("MIME type not allowed: %s", contentType)
	}
	return nil
}

// validContent sniffs the payload so a renamed binary is not accepted as a diagram.
func validContent(data []byte, ft domain.FileType) bool {
	head := data
	if len(head) > 100 {
		head = head[:100]
	}

	switch ft {
	case domain.FileTypeDrawio, domain.FileTypeXML:
		return bytes.Contains(head, []byte("<?xml")) || bytes.Contains(head, []byte("<mxfile"))
	case domain.FileTypeSVG:
		return bytes.Contains(bytes.ToLower(head), []byte("<svg"))
	case domain.FileTypePNG, domain.FileTypeJPG, domain.FileTypeWebP:
		_, format, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return false
		}
		switch ft {
		case domain.FileTypePNG:
			return format == "png"
		case domain.FileTypeJPG:
			return format == "jpeg"
		default:
			return format == "webp"
		}
	}
	return false
}

func hashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// List returns uploads newest first.
func (s *FileService) List(ctx context.Context) ([]domain.UploadedFile, error) {
	files, err := s.meta.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	return files, nil
}

// Get returns the metadata for id or ErrFileNotFound.
func (s *FileService) Get(ctx context.Context, id string) (*domain.UploadedFile, error) {
	file, err := s.Lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if file == nil {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, id)
	}
	return file, nil
}

// Lookup returns nil, nil when id is unknown or malformed.
func (s *FileService) Lookup(ctx context.Context, id string) (*domain.UploadedFile, error) {
	if !ValidFileID(id) {
		return nil, nil
	}
	file, err := s.meta.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to look up file %s: %w", id, err)
	}
	return file, nil
}

// Delete removes the blob and the metadata record.
func (s *FileService) Delete(ctx context.Context, id string) error {
	file, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.blobs.Delete(ctx, file.StorageKey); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	if _, err := s.meta.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete file metadata: %w", err)
	}
	s.log(ctx).WithField(logger.FieldFileID, id).Info("File deleted successfully")
	return nil
}

// CleanupOlderThan deletes uploads older than age and returns how many went.
// Individual failures are logged and skipped.
func (s *FileService) CleanupOlderThan(ctx context.Context, age time.Duration) (int, error) {
	files, err := s.meta.ListOlderThan(ctx, s.clock.Now().UTC().Add(-age))
	if err != nil {
		return 0, fmt.Errorf("failed to list old files: %w", err)
	}

	deleted := 0
	for _, f := range files {
		if err := s.Delete(ctx, f.ID); err != nil {
			s.log(ctx).WithError(err).WithField(logger.FieldFileID, f.ID).Warn("Failed to delete old file")
			continue
		}
		deleted++
	}
	logger.With(logger.Fields{logger.FieldCount: deleted}).Info(ctx, "Cleaned up old files")
	return deleted, nil
}

// Stats summarises stored uploads.
func (s *FileService) Stats(ctx context.Context) (domain.FileStats, error) {
	stats, err := s.meta.Stats(ctx)
	if err != nil {
		return domain.FileStats{}, fmt.Errorf("failed to get storage stats: %w", err)
	}
	stats.TotalSizeMB = math.Round(float64(stats.TotalSize)/(1024*1024)*100) / 100
	return stats, nil
}

// VerifyIntegrity re-hashes the stored blob and compares it to the recorded hash.
func (s *FileService) VerifyIntegrity(ctx context.Context, id string) (domain.IntegrityReport, error) {
	file, err := s.Get(ctx, id)
	if err != nil {
		return domain.IntegrityReport{}, err
	}
	report := domain.IntegrityReport{FileID: id, ExpectedHash: file.ContentHash}

	rc, err := s.blobs.Download(ctx, file.StorageKey)
	if errors.Is(err, storage.ErrNotFound) {
		return report, nil
	}
	if err != nil {
		return report, fmt.Errorf("failed to read stored file: %w", err)
	}
	defer rc.Close()

	h := sha256.New()
	n, err := io.Copy(h, rc)
	if err != nil {
		return report, fmt.Errorf("failed to read stored file: %w", err)
	}

	report.Exists = true
	report.ActualHash = hex.EncodeToString(h.Sum(nil))
	report.SizeMatches = n == file.Size
	report.Valid = report.SizeMatches && report.ActualHash == file.ContentHash
	return report, nil
}

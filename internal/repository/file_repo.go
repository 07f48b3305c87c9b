package repository

import (
	"context"
	"errors"
	"time"

	"github.com/timmy/threatforge/internal/domain"
	"gorm.io/gorm"
)

// FileRepository persists uploaded-file metadata.
type FileRepository struct {
	db *gorm.DB
}

// NewFileRepository creates a new FileRepository.
func NewFileRepository(db *gorm.DB) *FileRepository {
	return &FileRepository{db: db}
}

// Create inserts a new metadata record.
func (r *FileRepository) Create(ctx context.Context, file *domain.UploadedFile) error {
	return r.db.WithContext(ctx).Create(file).Error
}

// GetByID returns the record for id, or nil when it does not exist.
func (r *FileRepository) GetByID(ctx context.Context, id string) (*domain.UploadedFile, error) {
	var file domain.UploadedFile
	err := r.db.WithContext(ctx).First(&file, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &file, nil
}

// GetByHash returns the record whose content hash matches, or nil.
func (r *FileRepository) GetByHash(ctx context.Context, hash string) (*domain.UploadedFile, error) {
	var file domain.UploadedFile
	err := r.db.WithContext(ctx).First(&file, "content_hash = ?", hash).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &file, nil
}

// List returns all records, newest upload first.
func (r *FileRepository) List(ctx context.Context) ([]domain.UploadedFile, error) {
	var files []domain.UploadedFile
	err := r.db.WithContext(ctx).Order("upload_date DESC").Order("id").Find(&files).Error
	return files, err
}

// ListOlderThan returns records uploaded before cutoff.
func (r *FileRepository) ListOlderThan(ctx context.Context, cutoff time.Time) ([]domain.UploadedFile, error) {
	var files []domain.UploadedFile
	err := r.db.WithContext(ctx).Where("upload_date < ?", cutoff).Find(&files).Error
	return files, err
}

// Delete removes the record for id and reports whether one existed.
func (r *FileRepository) Delete(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).Delete(&domain.UploadedFile{}, "id = ?", id)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Stats aggregates count and size per file type.
func (r *FileRepository) Stats(ctx context.Context) (domain.FileStats, error) {
	var rows []struct {
		FileType domain.FileType
		Count    int
		Size     int64
	}
	err := r.db.WithContext(ctx).
		Model(&domain.UploadedFile{}).
		Select("file_type, COUNT(*) AS count, COALESCE(SUM(size), 0) AS size").
		Group("file_type").
		Scan(&rows).Error
	if err != nil {
		return domain.FileStats{}, err
	}

	stats := domain.FileStats{ByType: make(map[domain.FileType]int, len(rows))}
	for _, row := range rows {
		stats.TotalFiles += row.Count
		stats.TotalSize += row.Size
		stats.ByType[row.FileType] = row.Count
	}
	return stats, nil
}

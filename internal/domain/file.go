package domain

import "time"

// FileType is the normalized upload type, derived from the extension.
type FileType string

const (
	FileTypeDrawio FileType = "drawio"
	FileTypeXML    FileType = "xml"
	FileTypePNG    FileType = "png"
	FileTypeJPG    FileType = "jpg"
	FileTypeSVG    FileType = "svg"
	FileTypeWebP   FileType = "webp"
)

// IsDiagram reports whether the file carries a structured diagram.
func (t FileType) IsDiagram() bool {
	return t == FileTypeDrawio || t == FileTypeXML
}

// UploadedFile is the metadata persisted for an uploaded diagram.
type UploadedFile struct {
	ID          string    `gorm:"type:text;primaryKey" json:"file_id"`
	Filename    string    `gorm:"type:text;not null" json:"filename"`
	FileType    FileType  `gorm:"type:text;not null;index" json:"file_type"`
	MimeType    string    `gorm:"type:text" json:"mime_type,omitempty"`
	Size        int64     `gorm:"not null" json:"size"`
	ContentHash string    `gorm:"type:text;uniqueIndex" json:"content_hash"`
	StorageKey  string    `gorm:"type:text;not null" json:"file_path"`
	UploadDate  time.Time `gorm:"index" json:"upload_date"`
}

// TableName returns the database table name for UploadedFile.
func (UploadedFile) TableName() string {
	return "uploaded_files"
}

// FileStats summarises stored uploads.
type FileStats struct {
	TotalFiles  int              `json:"total_files"`
	TotalSize   int64            `json:"total_size_bytes"`
	TotalSizeMB float64          `json:"total_size_mb"`
	ByType      map[FileType]int `json:"type_distribution"`
}

// IntegrityReport is the result of re-hashing a stored blob.
type IntegrityReport struct {
	FileID       string `json:"file_id"`
	Exists       bool   `json:"exists"`
	ExpectedHash string `json:"expected_hash"`
	ActualHash   string `json:"actual_hash,omitempty"`
	SizeMatches  bool   `json:"size_matches"`
	Valid        bool   `json:"valid"`
}

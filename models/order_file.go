package models

import (
	"path"
	"strings"
	"time"

	"gorm.io/gorm"
)

// OrderFile is the metadata of a drawing or document attached to an order
type OrderFile struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	OrderID          uint      `gorm:"not null;index" json:"order_id"`
	OriginalFilename string    `gorm:"size:255;not null" json:"original_filename"`
	FileType         string    `gorm:"size:100" json:"file_type"`
	FileSize         int64     `gorm:"not null" json:"file_size"`
	StorageKey       string    `gorm:"size:512;not null" json:"storage_key"`
	StoredName       string    `gorm:"-" json:"-"` // name reported by the file store
	StoredSize       int64     `gorm:"-" json:"-"` // size reported by the file store
	URL              string    `gorm:"-" json:"url,omitempty"`
	UploadedAt       time.Time `gorm:"autoCreateTime" json:"uploaded_at"`
}

// TableName specifies the table name for the OrderFile model
func (OrderFile) TableName() string {
	return "order_files"
}

// BeforeSave back-fills filename, size and type from the stored file when they were not provided
func (f *OrderFile) BeforeSave(tx *gorm.DB) error {
	if f.OriginalFilename == "" {
		name := f.StoredName
		if name == "" {
			name = f.StorageKey
		}
		f.OriginalFilename = path.Base(name)
	}
	if f.FileSize == 0 {
		f.FileSize = f.StoredSize
	}
	if f.FileType == "" {
		f.FileType = strings.TrimPrefix(strings.ToLower(path.Ext(f.OriginalFilename)), ".")
	}
	return nil
}

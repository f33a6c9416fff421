package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"time"

	"github.com/carrigar/order-crm-api/logging"
	"github.com/carrigar/order-crm-api/models"
	"github.com/carrigar/order-crm-api/utils"
	"gorm.io/gorm"
)

// OrderFileService stores order attachments and records their metadata
type OrderFileService struct {
	db    *gorm.DB
	store FileStore

	// Now and Token are replaceable for tests
	Now   func() time.Time
	Token func() string
}

// NewOrderFileService creates an attachment service writing to store
func NewOrderFileService(db *gorm.DB, store FileStore) *OrderFileService {
	return &OrderFileService{db: db, store: store, Now: time.Now, Token: utils.NewUploadToken}
}

// Attach validates and stores an uploaded file for an order. Owned orders only accept
// files from their owner; anonymous orders accept files from anyone holding the identifier.
func (s *OrderFileService) Attach(ctx context.Context, orderNumber, requesterAuth0ID string, fileHeader *multipart.FileHeader) (*models.OrderFile, error) {
	if err := utils.ValidateOrderFile(fileHeader); err != nil {
		var uploadErr *utils.FileUploadError
		if errors.As(err, &uploadErr) {
			return nil, Validation(uploadErr.Code, "%s", uploadErr.Message)
		}
		return nil, Validation("INVALID_FILE", "%s", err.Error())
	}

	db := s.db.WithContext(ctx)
	var order models.Order
	if err := db.Preload("User").Where("order_number = ?", orderNumber).First(&order).Error; err != nil {
		return nil, wrapDBError(err, orderNotFound(orderNumber), "", "Failed to load order")
	}
	if order.User != nil && order.User.Auth0ID != requesterAuth0ID {
		return nil, Forbidden("FORBIDDEN", "You can only add files to your own orders")
	}

	if s.store == nil {
		return nil, Internal("File storage is not configured", nil)
	}

	content, err := readUpload(fileHeader)
	if err != nil {
		return nil, Validation("INVALID_FILE", "Failed to read uploaded file")
	}

	key := utils.OrderFileKey(order.CustomerName(), order.OrderNumber, s.Token(), fileHeader.Filename, s.Now().UTC())
	stored, err := s.store.Save(ctx, key, content)
	if err != nil {
		return nil, Internal("Failed to store file", err)
	}

	file := models.OrderFile{
		OrderID:          order.ID,
		OriginalFilename: filepath.Base(fileHeader.Filename),
		StorageKey:       stored.Key,
		StoredName:       stored.Name,
		StoredSize:       stored.Size,
	}
	if err := db.Create(&file).Error; err != nil {
		if delErr := s.store.Delete(ctx, stored.Key); delErr != nil {
			logging.LogKV("error", "failed to remove orphaned upload", map[string]interface{}{
				"key":   stored.Key,
				"error": delErr.Error(),
			})
		}
		return nil, Internal("Failed to save file metadata", err)
	}

	s.resolveURL(ctx, &file)
	return &file, nil
}

// ResolveURLs fills the download URL of each file from the store
func (s *OrderFileService) ResolveURLs(ctx context.Context, files []models.OrderFile) {
	for i := range files {
		s.resolveURL(ctx, &files[i])
	}
}

func (s *OrderFileService) resolveURL(ctx context.Context, file *models.OrderFile) {
	if s.store == nil {
		return
	}
	url, err := s.store.URL(ctx, file.StorageKey)
	if err != nil {
		logging.LogKV("warn", "failed to resolve file url", map[string]interface{}{
			"key":   file.StorageKey,
			"error": err.Error(),
		})
		return
	}
	file.URL = url
}

func readUpload(fileHeader *multipart.FileHeader) ([]byte, error) {
	file, err := fileHeader.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return io.ReadAll(file)
}

package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/carrigar/order-crm-api/config"
	"github.com/carrigar/order-crm-api/utils"
	"github.com/gabriel-vasile/mimetype"
)

// PresignExpiry is how long a presigned S3 download link stays valid
const PresignExpiry = time.Hour

// ErrFileNotFound is returned by Open when nothing is stored under the key
var ErrFileNotFound = errors.New("file not found")

// StoredFile describes an object after it has been written to a store
type StoredFile struct {
	Key         string
	Name        string
	Size        int64
	ContentType string
}

// FileStore persists uploaded attachments under caller-chosen keys
type FileStore interface {
	Save(ctx context.Context, key string, content []byte) (*StoredFile, error)
	URL(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

// NewFileStore returns the store selected by FILE_STORAGE
func NewFileStore(cfg *config.Config) (FileStore, error) {
	switch cfg.FileStorage {
	case "s3":
		return NewS3FileStore(cfg)
	case "local", "":
		return NewLocalFileStore(cfg.UploadDir), nil
	default:
		return nil, fmt.Errorf("unknown file storage %q", cfg.FileStorage)
	}
}

func storedFile(key string, content []byte) *StoredFile {
	return &StoredFile{
		Key:         key,
		Name:        path.Base(key),
		Size:        int64(len(content)),
		ContentType: mimetype.Detect(content).String(),
	}
}

// S3FileStore keeps attachments in a private bucket and hands out presigned links
type S3FileStore struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
}

// NewS3FileStore builds an S3 client from the AWS settings in cfg
func NewS3FileStore(cfg *config.Config) (*S3FileStore, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.AWSRegion)}
	if cfg.AWSAccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AWSAccessKeyID,
			cfg.AWSSecretAccessKey,
			"",
		)))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg)
	return &S3FileStore{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  cfg.AWSS3Bucket,
	}, nil
}

// Save uploads content to the bucket under key
func (s *S3FileStore) Save(ctx context.Context, key string, content []byte) (*StoredFile, error) {
	if !utils.SafeStorageKey(key) {
		return nil, fmt.Errorf("invalid storage key %q", key)
	}

	stored := storedFile(key, content)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(content),
		ContentType:   aws.String(stored.ContentType),
		ContentLength: aws.Int64(stored.Size),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload to S3: %w", err)
	}
	return stored, nil
}

// URL returns a presigned GET link valid for PresignExpiry
func (s *S3FileStore) URL(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", nil
	}

	request, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = PresignExpiry
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	return request.URL, nil
}

// Delete removes key from the bucket
func (s *S3FileStore) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete file from S3: %w", err)
	}
	return nil
}

// LocalFileStore writes attachments below a directory served by the uploads route
type LocalFileStore struct {
	root string
}

// NewLocalFileStore creates a store rooted at dir
func NewLocalFileStore(dir string) *LocalFileStore {
	return &LocalFileStore{root: dir}
}

// Save writes content to root/key
func (s *LocalFileStore) Save(ctx context.Context, key string, content []byte) (*StoredFile, error) {
	if err := utils.SaveFile(s.root, key, content); err != nil {
		return nil, err
	}
	return storedFile(key, content), nil
}

// URL returns the API path for key
func (s *LocalFileStore) URL(ctx context.Context, key string) (string, error) {
	return utils.LocalFileURL(key), nil
}

// Delete removes root/key; a missing file is not an error
func (s *LocalFileStore) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	if !utils.SafeStorageKey(key) {
		return fmt.Errorf("invalid storage key %q", key)
	}
	err := os.Remove(filepath.Join(s.root, filepath.FromSlash(key)))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// Open returns the local path for key after checking it exists
func (s *LocalFileStore) Open(key string) (string, error) {
	if !utils.SafeStorageKey(key) {
		return "", ErrFileNotFound
	}
	full := filepath.Join(s.root, filepath.FromSlash(key))
	info, err := os.Stat(full)
	if err != nil || info.IsDir() {
		return "", ErrFileNotFound
	}
	return full, nil
}

// MockFileStore is an in-memory FileStore for tests
type MockFileStore struct {
	files map[string][]byte
	mu    sync.RWMutex

	// SaveErr, when set, is returned from every Save
	SaveErr error
}

// NewMockFileStore creates an empty in-memory store
func NewMockFileStore() *MockFileStore {
	return &MockFileStore{files: make(map[string][]byte)}
}

// Save records content under key
func (m *MockFileStore) Save(ctx context.Context, key string, content []byte) (*StoredFile, error) {
	if m.SaveErr != nil {
		return nil, m.SaveErr
	}
	if !utils.SafeStorageKey(key) {
		return nil, fmt.Errorf("invalid storage key %q", key)
	}

	m.mu.Lock()
	m.files[key] = append([]byte(nil), content...)
	m.mu.Unlock()

	return storedFile(key, content), nil
}

// URL returns a fake presigned link for key
func (m *MockFileStore) URL(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", nil
	}
	return fmt.Sprintf("https://mock-bucket.s3.amazonaws.com/%s?presigned=true", key), nil
}

// Delete forgets key
func (m *MockFileStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.files, key)
	m.mu.Unlock()
	return nil
}

// Has reports whether key has been saved
func (m *MockFileStore) Has(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.files[key]
	return ok
}

// Content returns the bytes stored under key
func (m *MockFileStore) Content(key string) []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.files[key]
}

// Count returns how many files are stored
func (m *MockFileStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.files)
}

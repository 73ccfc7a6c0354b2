package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"albumvault/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

const minioAudioPrefix = "audio/"

// MinioStore 将音频保存到 MinIO 存储桶的 audio/ 前缀下
type MinioStore struct {
	client *minio.Client
	bucket string
}

// NewMinioStore 初始化 MinIO 客户端并确保存储桶存在
func NewMinioStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (*MinioStore, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
		Region: cfg.MinioRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("创建 MinIO 客户端失败: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return nil, fmt.Errorf("检查存储桶失败: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{Region: cfg.MinioRegion}); err != nil {
			return nil, fmt.Errorf("创建存储桶失败: %w", err)
		}
		log.Info("created MinIO bucket", zap.String("bucket", cfg.MinioBucket))
	}

	return &MinioStore{client: client, bucket: cfg.MinioBucket}, nil
}

func objectName(key string) string {
	return minioAudioPrefix + key
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}

// Save uploads r. PutObject would silently replace an existing object, so the
// key is checked first.
func (s *MinioStore) Save(ctx context.Context, key string, r io.Reader, size int64, contentType string) (int64, error) {
	if err := ValidateKey(key); err != nil {
		return 0, err
	}
	if _, err := s.client.StatObject(ctx, s.bucket, objectName(key), minio.StatObjectOptions{}); err == nil {
		return 0, fmt.Errorf("%w: %s", ErrObjectExists, key)
	} else if !isNoSuchKey(err) {
		return 0, fmt.Errorf("failed to stat %s: %w", key, err)
	}

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	info, err := s.client.PutObject(ctx, s.bucket, objectName(key), ctxReader{ctx: ctx, r: r}, size,
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return 0, fmt.Errorf("上传文件失败 %s: %w", key, err)
	}
	return info.Size, nil
}

func (s *MinioStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	obj, err := s.client.GetObject(ctx, s.bucket, objectName(key), minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	// GetObject is lazy; Stat surfaces a missing key before the caller writes headers.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		if isNoSuchKey(err) {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return nil, err
	}
	return obj, nil
}

func (s *MinioStore) Remove(ctx context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	err := s.client.RemoveObject(ctx, s.bucket, objectName(key), minio.RemoveObjectOptions{})
	if err != nil && !isNoSuchKey(err) {
		return fmt.Errorf("删除文件失败 %s: %w", key, err)
	}
	return nil
}

func (s *MinioStore) List(ctx context.Context) ([]ObjectInfo, error) {
	var out []ObjectInfo
	for object := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    minioAudioPrefix,
		Recursive: true,
	}) {
		if object.Err != nil {
			return nil, fmt.Errorf("列出对象时出错: %w", object.Err)
		}
		out = append(out, ObjectInfo{
			Key:          strings.TrimPrefix(object.Key, minioAudioPrefix),
			Size:         object.Size,
			LastModified: object.LastModified,
		})
	}
	return out, nil
}

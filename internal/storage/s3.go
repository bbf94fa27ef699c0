// Пакет storage — клиент S3-совместимого объектного хранилища.
// Отвечает за presigned PUT URL, проверку и удаление объектов.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/avkuznetsov/assethub/internal/config"
)

// Ошибки слоя хранилища.
var (
	// ErrObjectNotFound — объект отсутствует в bucket.
	ErrObjectNotFound = errors.New("объект не найден в хранилище")
	// ErrBucketNotFound — bucket не существует.
	ErrBucketNotFound = errors.New("bucket не существует")
)

// ObjectInfo — метаданные объекта в хранилище.
type ObjectInfo struct {
	// SizeBytes — фактический размер объекта
	SizeBytes int64
	// ContentType — фактический Content-Type объекта
	ContentType string
	// ETag — ETag объекта
	ETag string
}

// ObjectStore — операции с объектным хранилищем, используемые сервисным слоем.
type ObjectStore interface {
	// PresignPut возвращает presigned PUT URL для ключа и время его истечения.
	PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, time.Time, error)
	// Stat возвращает метаданные объекта или ErrObjectNotFound.
	Stat(ctx context.Context, key string) (*ObjectInfo, error)
	// Delete удаляет объект. Отсутствие объекта — не ошибка.
	Delete(ctx context.Context, key string) error
	// Bucket возвращает имя bucket.
	Bucket() string
	// Region возвращает регион хранилища.
	Region() string
}

// Client — реализация ObjectStore поверх aws-sdk-go-v2.
type Client struct {
	s3      *s3.Client
	presign *s3.PresignClient
	bucket  string
	region  string
	logger  *slog.Logger
}

// New создаёт клиент S3 по конфигурации.
// Для MinIO и других S3-совместимых хранилищ задаются endpoint и path-style.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("ошибка конфигурации S3: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		}
		o.UsePathStyle = cfg.S3UsePathStyle
	})

	return &Client{
		s3:      client,
		presign: s3.NewPresignClient(client),
		bucket:  cfg.S3Bucket,
		region:  cfg.S3Region,
		logger:  logger.With(slog.String("component", "storage")),
	}, nil
}

func (c *Client) Bucket() string { return c.bucket }
func (c *Client) Region() string { return c.region }

func (c *Client) PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, time.Time, error) {
	req, err := c.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("ошибка создания presigned URL: %w", err)
	}

	expiresAt := time.Now().Add(ttl)
	c.logger.Debug("Создан presigned PUT URL",
		slog.String("key", key),
		slog.Time("expires_at", expiresAt))
	return req.URL, expiresAt, nil
}

func (c *Client) Stat(ctx context.Context, key string) (*ObjectInfo, error) {
	out, err := c.s3.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("ошибка проверки объекта %q: %w", key, err)
	}

	info := &ObjectInfo{
		SizeBytes:   aws.ToInt64(out.ContentLength),
		ContentType: aws.ToString(out.ContentType),
		ETag:        aws.ToString(out.ETag),
	}
	return info, nil
}

func (c *Client) Delete(ctx context.Context, key string) error {
	// DeleteObject в S3 идемпотентен: удаление отсутствующего объекта — успех.
	_, err := c.s3.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("ошибка удаления объекта %q: %w", key, err)
	}

	c.logger.Debug("Объект удалён из хранилища", slog.String("key", key))
	return nil
}

// CheckBucket проверяет доступность bucket.
func (c *Client) CheckBucket(ctx context.Context) error {
	_, err := c.s3.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(c.bucket),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return fmt.Errorf("%w: %s", ErrBucketNotFound, c.bucket)
		}
		return fmt.Errorf("bucket %q недоступен: %w", c.bucket, err)
	}
	return nil
}

// ReadinessChecker проверяет доступность хранилища для readiness probe.
type ReadinessChecker struct {
	Client *Client
}

// CheckReady возвращает статус и сообщение для readiness probe.
func (c *ReadinessChecker) CheckReady() (status string, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := c.Client.CheckBucket(ctx); err != nil {
		return "fail", err.Error()
	}
	return "ok", "хранилище доступно"
}

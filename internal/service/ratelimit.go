// ratelimit.go — лимиты загрузок и квота хранилища.
// Скользящие окна считаются запросами к БД по таблице assets,
// отдельного состояния у сервиса нет.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/avkuznetsov/assethub/internal/domain/model"
	"github.com/avkuznetsov/assethub/internal/repository"
)

// RateLimitService — проверка лимитов загрузок и квоты хранилища владельца.
type RateLimitService struct {
	assetRepo repository.AssetRepository
	// uploadsPerHour — максимум загрузок за скользящий час
	uploadsPerHour int
	// uploadsPerDay — максимум загрузок за скользящие сутки
	uploadsPerDay int
	// quotaBytes — квота хранилища владельца в байтах
	quotaBytes int64
	logger     *slog.Logger
}

// NewRateLimitService создаёт сервис лимитов.
func NewRateLimitService(assetRepo repository.AssetRepository, uploadsPerHour, uploadsPerDay int, quotaBytes int64, logger *slog.Logger) *RateLimitService {
	return &RateLimitService{
		assetRepo:      assetRepo,
		uploadsPerHour: uploadsPerHour,
		uploadsPerDay:  uploadsPerDay,
		quotaBytes:     quotaBytes,
		logger:         logger.With(slog.String("component", "ratelimit_service")),
	}
}

// CheckUploadAllowed проверяет часовой и суточный лимиты загрузок.
// Запрос при счётчике, равном лимиту, отклоняется: лимит N означает
// не более N загрузок в окне.
func (s *RateLimitService) CheckUploadAllowed(ctx context.Context, ownerID string) error {
	now := time.Now()

	hourly, err := s.assetRepo.CountUploadsSince(ctx, ownerID, now.Add(-time.Hour))
	if err != nil {
		return fmt.Errorf("ошибка проверки часового лимита: %w", err)
	}
	if hourly >= s.uploadsPerHour {
		s.logger.Warn("Превышен часовой лимит загрузок",
			slog.String("owner_id", ownerID),
			slog.Int("count", hourly),
			slog.Int("limit", s.uploadsPerHour))
		return fmt.Errorf("%w: %d загрузок за последний час (лимит %d)",
			ErrRateLimited, hourly, s.uploadsPerHour)
	}

	daily, err := s.assetRepo.CountUploadsSince(ctx, ownerID, now.Add(-24*time.Hour))
	if err != nil {
		return fmt.Errorf("ошибка проверки суточного лимита: %w", err)
	}
	if daily >= s.uploadsPerDay {
		s.logger.Warn("Превышен суточный лимит загрузок",
			slog.String("owner_id", ownerID),
			slog.Int("count", daily),
			slog.Int("limit", s.uploadsPerDay))
		return fmt.Errorf("%w: %d загрузок за последние сутки (лимит %d)",
			ErrRateLimited, daily, s.uploadsPerDay)
	}

	return nil
}

// CheckQuota проверяет, что загрузка sizeBytes не превысит квоту владельца.
// Использование ровно в квоту допустимо, на байт больше — нет.
func (s *RateLimitService) CheckQuota(ctx context.Context, ownerID string, sizeBytes int64) error {
	used, err := s.assetRepo.SumActiveBytes(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("ошибка проверки квоты: %w", err)
	}

	if used+sizeBytes > s.quotaBytes {
		s.logger.Warn("Превышена квота хранилища",
			slog.String("owner_id", ownerID),
			slog.Int64("used_bytes", used),
			slog.Int64("size_bytes", sizeBytes),
			slog.Int64("quota_bytes", s.quotaBytes))
		return fmt.Errorf("%w: занято %d из %d байт, запрошено ещё %d",
			ErrQuotaExceeded, used, s.quotaBytes, sizeBytes)
	}

	return nil
}

// Usage возвращает текущее использование хранилища владельцем.
func (s *RateLimitService) Usage(ctx context.Context, ownerID string) (*model.StorageUsage, error) {
	used, err := s.assetRepo.SumActiveBytes(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("ошибка подсчёта использования: %w", err)
	}

	return &model.StorageUsage{
		OwnerID:    ownerID,
		UsedBytes:  used,
		QuotaBytes: s.quotaBytes,
	}, nil
}

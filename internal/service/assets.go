// assets.go — сервис жизненного цикла assets.
// initiateUpload выдаёт presigned PUT URL и создаёт pending-запись,
// confirmUpload сверяет объект в хранилище, delete удаляет объект и запись.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/avkuznetsov/assethub/internal/domain/model"
	"github.com/avkuznetsov/assethub/internal/repository"
	"github.com/avkuznetsov/assethub/internal/storage"
)

// Метрики жизненного цикла загрузок.
// outcome: initiated, confirmed, failed, deleted.
var assetUploadsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ah_asset_uploads_total",
		Help: "Количество событий жизненного цикла загрузок по исходу",
	},
	[]string{"outcome"},
)

// AssetService — сервис управления assets.
type AssetService struct {
	assetRepo  repository.AssetRepository
	namespaces *NamespaceService
	limits     *RateLimitService
	store      storage.ObjectStore
	// presignTTL — время жизни presigned PUT URL
	presignTTL time.Duration
	logger     *slog.Logger
}

// NewAssetService создаёт сервис assets.
func NewAssetService(
	assetRepo repository.AssetRepository,
	namespaces *NamespaceService,
	limits *RateLimitService,
	store storage.ObjectStore,
	presignTTL time.Duration,
	logger *slog.Logger,
) *AssetService {
	return &AssetService{
		assetRepo:  assetRepo,
		namespaces: namespaces,
		limits:     limits,
		store:      store,
		presignTTL: presignTTL,
		logger:     logger.With(slog.String("component", "asset_service")),
	}
}

// InitiateUploadInput — параметры инициации загрузки.
type InitiateUploadInput struct {
	OwnerID        string
	Namespace      string
	Filename       string
	MimeType       string
	SizeBytes      int64
	Checksum       string
	IdempotencyKey *string
}

// InitiateUpload валидирует запрос, проверяет лимиты и квоту,
// выдаёт presigned PUT URL и создаёт pending-запись asset.
//
// Порядок проверок фиксирован: namespace → MIME → размер →
// идемпотентность → часовой лимит → суточный лимит → квота.
// Повтор с тем же ключом идемпотентности возвращает существующий asset
// без новых проверок.
func (s *AssetService) InitiateUpload(ctx context.Context, in InitiateUploadInput) (*model.Asset, error) {
	if strings.TrimSpace(in.OwnerID) == "" {
		return nil, fmt.Errorf("%w: ownerId не может быть пустым", ErrValidation)
	}
	if strings.TrimSpace(in.MimeType) == "" {
		return nil, fmt.Errorf("%w: mimeType не может быть пустым", ErrValidation)
	}
	if in.SizeBytes <= 0 {
		return nil, fmt.Errorf("%w: sizeBytes должен быть положительным", ErrValidation)
	}

	ns, err := s.namespaces.Get(ctx, in.Namespace)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: namespace %q не существует", ErrValidation, in.Namespace)
		}
		return nil, err
	}
	if !ns.Enabled {
		return nil, fmt.Errorf("%w: namespace %q отключён", ErrValidation, in.Namespace)
	}
	if !ns.AllowsMimeType(in.MimeType) {
		return nil, fmt.Errorf("%w: MIME-тип %q не разрешён в namespace %q",
			ErrValidation, in.MimeType, in.Namespace)
	}
	if in.SizeBytes > ns.MaxSizeBytes {
		return nil, fmt.Errorf("%w: размер %d превышает лимит namespace %d байт",
			ErrValidation, in.SizeBytes, ns.MaxSizeBytes)
	}

	// Идемпотентность: повтор с тем же ключом возвращает существующий asset
	// независимо от его текущего статуса.
	if in.IdempotencyKey != nil && *in.IdempotencyKey != "" {
		existing, err := s.assetRepo.GetByIdempotencyKey(ctx, in.OwnerID, *in.IdempotencyKey)
		if err == nil {
			s.logger.Info("Повторный запрос загрузки по ключу идемпотентности",
				slog.String("owner_id", in.OwnerID),
				slog.String("asset_id", existing.ID))
			return existing, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
	}

	if err := s.limits.CheckUploadAllowed(ctx, in.OwnerID); err != nil {
		return nil, err
	}
	if err := s.limits.CheckQuota(ctx, in.OwnerID, in.SizeBytes); err != nil {
		return nil, err
	}

	id := uuid.New().String()
	storageKey := buildStorageKey(in.Namespace, id, in.Filename)

	uploadURL, expiresAt, err := s.store.PresignPut(ctx, storageKey, in.MimeType, s.presignTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err) //nolint:errorlint // намеренный двойной wrap
	}

	asset := &model.Asset{
		ID:              id,
		OwnerID:         in.OwnerID,
		Namespace:       in.Namespace,
		StorageKey:      storageKey,
		Bucket:          s.store.Bucket(),
		Region:          s.store.Region(),
		MimeType:        in.MimeType,
		SizeBytes:       in.SizeBytes,
		Checksum:        in.Checksum,
		Status:          model.AssetStatusPending,
		UploadURL:       &uploadURL,
		UploadExpiresAt: &expiresAt,
		IdempotencyKey:  in.IdempotencyKey,
	}

	if err := s.assetRepo.Create(ctx, asset); err != nil {
		// Гонка двух запросов с одним ключом: уникальный индекс пропустил
		// только один insert, возвращаем уже созданный asset.
		if errors.Is(err, repository.ErrConflict) && in.IdempotencyKey != nil {
			existing, readErr := s.assetRepo.GetByIdempotencyKey(ctx, in.OwnerID, *in.IdempotencyKey)
			if readErr == nil {
				return existing, nil
			}
		}
		return nil, err
	}

	assetUploadsTotal.WithLabelValues("initiated").Inc()
	s.logger.Info("Загрузка инициирована",
		slog.String("asset_id", asset.ID),
		slog.String("owner_id", in.OwnerID),
		slog.String("namespace", in.Namespace),
		slog.Int64("size_bytes", in.SizeBytes))
	return asset, nil
}

// buildStorageKey строит ключ объекта: namespace/uuid/имя-файла.
// Имя файла нормализуется до последнего элемента пути.
func buildStorageKey(namespace, id, filename string) string {
	filename = path.Base(strings.TrimSpace(filename))
	if filename == "" || filename == "." || filename == "/" {
		return namespace + "/" + id
	}
	return namespace + "/" + id + "/" + filename
}

// ConfirmUpload сверяет загруженный объект с заявленными метаданными.
// Объект найден и размер совпал — READY, иначе — FAILED.
// В обоих случаях presigned URL очищается. Подтверждать можно только pending.
func (s *AssetService) ConfirmUpload(ctx context.Context, assetID string) (*model.Asset, error) {
	asset, err := s.Get(ctx, assetID)
	if err != nil {
		return nil, err
	}
	if asset.Status != model.AssetStatusPending {
		return nil, fmt.Errorf("%w: asset в статусе %q, подтверждать можно только pending",
			ErrValidation, asset.Status)
	}

	info, err := s.store.Stat(ctx, asset.StorageKey)
	switch {
	case errors.Is(err, storage.ErrObjectNotFound):
		s.logger.Warn("Подтверждение без загруженного объекта",
			slog.String("asset_id", assetID),
			slog.String("storage_key", asset.StorageKey))
		return s.failUpload(ctx, assetID)
	case err != nil:
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err) //nolint:errorlint // намеренный двойной wrap
	case info.SizeBytes != asset.SizeBytes:
		s.logger.Warn("Размер объекта не совпадает с заявленным",
			slog.String("asset_id", assetID),
			slog.Int64("declared", asset.SizeBytes),
			slog.Int64("actual", info.SizeBytes))
		return s.failUpload(ctx, assetID)
	}

	updated, err := s.assetRepo.SetStatusFromPending(ctx, assetID, model.AssetStatusReady)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Статус сменился между чтением и обновлением.
			return nil, fmt.Errorf("%w: asset уже не pending", ErrValidation)
		}
		return nil, err
	}

	assetUploadsTotal.WithLabelValues("confirmed").Inc()
	s.logger.Info("Загрузка подтверждена", slog.String("asset_id", assetID))
	return updated, nil
}

func (s *AssetService) failUpload(ctx context.Context, assetID string) (*model.Asset, error) {
	updated, err := s.assetRepo.SetStatusFromPending(ctx, assetID, model.AssetStatusFailed)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: asset уже не pending", ErrValidation)
		}
		return nil, err
	}
	assetUploadsTotal.WithLabelValues("failed").Inc()
	return updated, nil
}

// Delete удаляет объект из хранилища, затем запись из БД.
// Отсутствие объекта в хранилище удалению не мешает.
func (s *AssetService) Delete(ctx context.Context, assetID string) error {
	asset, err := s.Get(ctx, assetID)
	if err != nil {
		return err
	}

	if err := s.store.Delete(ctx, asset.StorageKey); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err) //nolint:errorlint // намеренный двойной wrap
	}

	if err := s.assetRepo.Delete(ctx, assetID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: asset %q", ErrNotFound, assetID)
		}
		return err
	}

	assetUploadsTotal.WithLabelValues("deleted").Inc()
	s.logger.Info("Asset удалён",
		slog.String("asset_id", assetID),
		slog.String("storage_key", asset.StorageKey))
	return nil
}

// Get возвращает asset по id.
func (s *AssetService) Get(ctx context.Context, assetID string) (*model.Asset, error) {
	asset, err := s.assetRepo.GetByID(ctx, assetID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: asset %q", ErrNotFound, assetID)
		}
		return nil, err
	}
	return asset, nil
}

// AssetPage — страница assets для GraphQL-connection.
type AssetPage struct {
	Items      []*model.Asset
	HasNext    bool
	TotalCount int
	// OrderBy — фактическая колонка сортировки (для построения курсоров)
	OrderBy string
}

// List возвращает страницу assets с фильтрацией и keyset-пагинацией.
func (s *AssetService) List(ctx context.Context, filters repository.AssetListFilters, params ListParams) (*AssetPage, error) {
	page, err := buildPage(params)
	if err != nil {
		return nil, err
	}
	switch page.OrderBy {
	case "":
		page.OrderBy = repository.AssetOrderByCreatedAt
	case repository.AssetOrderByCreatedAt, repository.AssetOrderBySizeBytes:
	default:
		return nil, fmt.Errorf("%w: недопустимая сортировка %q", ErrValidation, page.OrderBy)
	}

	items, hasNext, err := s.assetRepo.List(ctx, filters, page)
	if err != nil {
		return nil, err
	}

	total, err := s.assetRepo.Count(ctx, filters)
	if err != nil {
		return nil, err
	}

	return &AssetPage{
		Items:      items,
		HasNext:    hasNext,
		TotalCount: total,
		OrderBy:    page.OrderBy,
	}, nil
}

package repository

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/avkuznetsov/assethub/internal/domain/model"
)

// Колонки сортировки списка assets.
const (
	AssetOrderByCreatedAt = "created_at"
	AssetOrderBySizeBytes = "size_bytes"
)

// AssetRepository — интерфейс доступа к таблице assets.
type AssetRepository interface {
	// Create создаёт новую запись asset (status pending).
	Create(ctx context.Context, a *model.Asset) error
	// GetByID возвращает asset по UUID.
	GetByID(ctx context.Context, id string) (*model.Asset, error)
	// GetByIdempotencyKey возвращает asset владельца по ключу идемпотентности.
	GetByIdempotencyKey(ctx context.Context, ownerID, key string) (*model.Asset, error)
	// List возвращает страницу assets с keyset-пагинацией.
	// Второе возвращаемое значение — есть ли следующая страница.
	List(ctx context.Context, filters AssetListFilters, page Page) ([]*model.Asset, bool, error)
	// Count возвращает количество assets с фильтрацией.
	Count(ctx context.Context, filters AssetListFilters) (int, error)
	// SetStatusFromPending переводит pending asset в ready или failed,
	// очищая upload_url и upload_expires_at.
	// Возвращает ErrNotFound, если asset не существует или уже не pending.
	SetStatusFromPending(ctx context.Context, id, status string) (*model.Asset, error)
	// Delete физически удаляет запись asset.
	Delete(ctx context.Context, id string) error
	// CountUploadsSince считает загрузки владельца с момента since
	// (failed не учитываются — неудачные попытки не расходуют лимит).
	CountUploadsSince(ctx context.Context, ownerID string, since time.Time) (int, error)
	// SumActiveBytes возвращает сумму байт pending и ready assets владельца.
	SumActiveBytes(ctx context.Context, ownerID string) (int64, error)
}

// AssetListFilters — фильтры списка assets.
type AssetListFilters struct {
	OwnerID   *string
	Namespace *string
	Status    *string
}

// assetRepo — реализация AssetRepository.
type assetRepo struct {
	db DBTX
}

// NewAssetRepository создаёт репозиторий assets.
func NewAssetRepository(db DBTX) AssetRepository {
	return &assetRepo{db: db}
}

const assetColumns = `id, owner_id, namespace, storage_key, bucket, region,
		mime_type, size_bytes, checksum, status, upload_url, upload_expires_at,
		idempotency_key, created_at, updated_at`

// scanAsset сканирует одну строку в model.Asset.
func scanAsset(row pgx.Row) (*model.Asset, error) {
	a := &model.Asset{}
	err := row.Scan(
		&a.ID, &a.OwnerID, &a.Namespace, &a.StorageKey, &a.Bucket, &a.Region,
		&a.MimeType, &a.SizeBytes, &a.Checksum, &a.Status, &a.UploadURL, &a.UploadExpiresAt,
		&a.IdempotencyKey, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *assetRepo) Create(ctx context.Context, a *model.Asset) error {
	query := `
		INSERT INTO assets (id, owner_id, namespace, storage_key, bucket, region,
			mime_type, size_bytes, checksum, status, upload_url, upload_expires_at,
			idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		a.ID, a.OwnerID, a.Namespace, a.StorageKey, a.Bucket, a.Region,
		a.MimeType, a.SizeBytes, a.Checksum, a.Status, a.UploadURL, a.UploadExpiresAt,
		a.IdempotencyKey,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: asset с таким ключом идемпотентности уже существует", ErrConflict)
		}
		return fmt.Errorf("ошибка создания asset: %w", err)
	}
	return nil
}

func (r *assetRepo) GetByID(ctx context.Context, id string) (*model.Asset, error) {
	query := fmt.Sprintf(`SELECT %s FROM assets WHERE id = $1`, assetColumns)

	a, err := scanAsset(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения asset: %w", err)
	}
	return a, nil
}

func (r *assetRepo) GetByIdempotencyKey(ctx context.Context, ownerID, key string) (*model.Asset, error) {
	query := fmt.Sprintf(`SELECT %s FROM assets WHERE owner_id = $1 AND idempotency_key = $2`, assetColumns)

	a, err := scanAsset(r.db.QueryRow(ctx, query, ownerID, key))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка поиска asset по ключу идемпотентности: %w", err)
	}
	return a, nil
}

// buildAssetWhere строит WHERE-условия и аргументы для фильтрации assets.
func buildAssetWhere(filters AssetListFilters, startArg int) ([]string, []any) {
	var conditions []string
	var args []any
	argNum := startArg

	if filters.OwnerID != nil {
		conditions = append(conditions, fmt.Sprintf("owner_id = $%d", argNum))
		args = append(args, *filters.OwnerID)
		argNum++
	}
	if filters.Namespace != nil {
		conditions = append(conditions, fmt.Sprintf("namespace = $%d", argNum))
		args = append(args, *filters.Namespace)
		argNum++
	}
	if filters.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argNum))
		args = append(args, *filters.Status)
	}

	return conditions, args
}

// assetSortArg парсит значение курсора в типизированный аргумент сортировки.
func assetSortArg(orderBy, sortValue string) (any, error) {
	switch orderBy {
	case AssetOrderByCreatedAt:
		t, err := time.Parse(time.RFC3339Nano, sortValue)
		if err != nil {
			return nil, fmt.Errorf("некорректный курсор created_at: %w", err)
		}
		return t, nil
	case AssetOrderBySizeBytes:
		n, err := strconv.ParseInt(sortValue, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("некорректный курсор size_bytes: %w", err)
		}
		return n, nil
	default:
		return nil, fmt.Errorf("недопустимая колонка сортировки: %q", orderBy)
	}
}

// AssetSortValue возвращает строковое значение колонки сортировки для курсора.
func AssetSortValue(a *model.Asset, orderBy string) string {
	if orderBy == AssetOrderBySizeBytes {
		return strconv.FormatInt(a.SizeBytes, 10)
	}
	return a.CreatedAt.UTC().Format(time.RFC3339Nano)
}

func (r *assetRepo) List(ctx context.Context, filters AssetListFilters, page Page) ([]*model.Asset, bool, error) {
	orderBy := page.OrderBy
	if orderBy == "" {
		orderBy = AssetOrderByCreatedAt
	}
	if orderBy != AssetOrderByCreatedAt && orderBy != AssetOrderBySizeBytes {
		return nil, false, fmt.Errorf("недопустимая колонка сортировки: %q", orderBy)
	}

	conditions, args := buildAssetWhere(filters, 1)

	if page.After != nil {
		sortArg, err := assetSortArg(orderBy, page.After.SortValue)
		if err != nil {
			return nil, false, err
		}
		cond, condArgs := keysetCondition(orderBy, "id", *page.After, page.Desc, sortArg, len(args)+1)
		conditions = append(conditions, cond)
		args = append(args, condArgs...)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	// Выбираем на одну запись больше, чтобы определить hasNext.
	query := fmt.Sprintf(`
		SELECT %s
		FROM assets
		%s
		%s
		LIMIT $%d`, assetColumns, where, orderClause(orderBy, "id", page.Desc), len(args)+1)
	args = append(args, page.First+1)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("ошибка получения списка assets: %w", err)
	}
	defer rows.Close()

	var result []*model.Asset
	for rows.Next() {
		a, scanErr := scanAsset(rows)
		if scanErr != nil {
			return nil, false, fmt.Errorf("ошибка сканирования asset: %w", scanErr)
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}

	hasNext := len(result) > page.First
	if hasNext {
		result = result[:page.First]
	}
	return result, hasNext, nil
}

func (r *assetRepo) Count(ctx context.Context, filters AssetListFilters) (int, error) {
	conditions, args := buildAssetWhere(filters, 1)
	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var count int
	err := r.db.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM assets %s`, where), args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта assets: %w", err)
	}
	return count, nil
}

func (r *assetRepo) SetStatusFromPending(ctx context.Context, id, status string) (*model.Asset, error) {
	query := fmt.Sprintf(`
		UPDATE assets
		SET status = $2, upload_url = NULL, upload_expires_at = NULL
		WHERE id = $1 AND status = 'pending'
		RETURNING %s`, assetColumns)

	a, err := scanAsset(r.db.QueryRow(ctx, query, id, status))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка смены статуса asset: %w", err)
	}
	return a, nil
}

func (r *assetRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM assets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления asset: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *assetRepo) CountUploadsSince(ctx context.Context, ownerID string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM assets
		WHERE owner_id = $1 AND created_at >= $2 AND status != 'failed'`

	var count int
	if err := r.db.QueryRow(ctx, query, ownerID, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта загрузок: %w", err)
	}
	return count, nil
}

func (r *assetRepo) SumActiveBytes(ctx context.Context, ownerID string) (int64, error) {
	query := `
		SELECT COALESCE(SUM(size_bytes), 0)
		FROM assets
		WHERE owner_id = $1 AND status IN ('pending', 'ready')`

	var total int64
	if err := r.db.QueryRow(ctx, query, ownerID).Scan(&total); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта занятых байт: %w", err)
	}
	return total, nil
}

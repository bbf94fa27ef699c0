package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/avkuznetsov/assethub/internal/domain/model"
)

// NamespaceRepository — интерфейс доступа к таблице namespaces.
type NamespaceRepository interface {
	// Get возвращает namespace по имени.
	Get(ctx context.Context, name string) (*model.Namespace, error)
	// List возвращает все namespaces, отсортированные по имени.
	List(ctx context.Context) ([]*model.Namespace, error)
	// Upsert создаёт или обновляет namespace.
	Upsert(ctx context.Context, ns *model.Namespace) error
	// Delete удаляет namespace. Возвращает ErrConflict,
	// если на namespace ссылаются assets.
	Delete(ctx context.Context, name string) error
}

type namespaceRepo struct {
	db DBTX
}

// NewNamespaceRepository создаёт репозиторий namespaces.
func NewNamespaceRepository(db DBTX) NamespaceRepository {
	return &namespaceRepo{db: db}
}

const namespaceColumns = `name, allowed_mime_types, max_size_bytes, enabled, created_at, updated_at`

func scanNamespace(row pgx.Row) (*model.Namespace, error) {
	ns := &model.Namespace{}
	err := row.Scan(&ns.Name, &ns.AllowedMimeTypes, &ns.MaxSizeBytes, &ns.Enabled, &ns.CreatedAt, &ns.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return ns, nil
}

func (r *namespaceRepo) Get(ctx context.Context, name string) (*model.Namespace, error) {
	query := fmt.Sprintf(`SELECT %s FROM namespaces WHERE name = $1`, namespaceColumns)

	ns, err := scanNamespace(r.db.QueryRow(ctx, query, name))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения namespace: %w", err)
	}
	return ns, nil
}

func (r *namespaceRepo) List(ctx context.Context) ([]*model.Namespace, error) {
	query := fmt.Sprintf(`SELECT %s FROM namespaces ORDER BY name`, namespaceColumns)

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка namespaces: %w", err)
	}
	defer rows.Close()

	var result []*model.Namespace
	for rows.Next() {
		ns, scanErr := scanNamespace(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("ошибка сканирования namespace: %w", scanErr)
		}
		result = append(result, ns)
	}
	return result, rows.Err()
}

func (r *namespaceRepo) Upsert(ctx context.Context, ns *model.Namespace) error {
	query := fmt.Sprintf(`
		INSERT INTO namespaces (name, allowed_mime_types, max_size_bytes, enabled)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO UPDATE
		SET allowed_mime_types = EXCLUDED.allowed_mime_types,
			max_size_bytes = EXCLUDED.max_size_bytes,
			enabled = EXCLUDED.enabled
		RETURNING %s`, namespaceColumns)

	updated, err := scanNamespace(r.db.QueryRow(ctx, query,
		ns.Name, ns.AllowedMimeTypes, ns.MaxSizeBytes, ns.Enabled))
	if err != nil {
		return fmt.Errorf("ошибка upsert namespace: %w", err)
	}
	*ns = *updated
	return nil
}

func (r *namespaceRepo) Delete(ctx context.Context, name string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM namespaces WHERE name = $1`, name)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: namespace используется assets", ErrConflict)
		}
		return fmt.Errorf("ошибка удаления namespace: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/avkuznetsov/assethub/internal/domain/model"
)

// Колонки сортировки списка users.
const (
	UserOrderByUsername  = "username"
	UserOrderByCreatedAt = "created_at"
)

// UserRepository — интерфейс доступа к таблице users.
type UserRepository interface {
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	Update(ctx context.Context, u *model.User) error
	Delete(ctx context.Context, id string) error
	// List возвращает страницу users с keyset-пагинацией.
	List(ctx context.Context, page Page) ([]*model.User, bool, error)
	Count(ctx context.Context) (int, error)
}

type userRepo struct {
	db DBTX
}

// NewUserRepository создаёт репозиторий users.
func NewUserRepository(db DBTX) UserRepository {
	return &userRepo{db: db}
}

const userColumns = `id, username, email, display_name, created_at, updated_at`

func scanUser(row pgx.Row) (*model.User, error) {
	u := &model.User{}
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.DisplayName, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (r *userRepo) Create(ctx context.Context, u *model.User) error {
	query := `
		INSERT INTO users (id, username, email, display_name)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query, u.ID, u.Username, u.Email, u.DisplayName).
		Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: пользователь %q уже существует", ErrConflict, u.Username)
		}
		return fmt.Errorf("ошибка создания пользователя: %w", err)
	}
	return nil
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = $1`, userColumns)

	u, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения пользователя: %w", err)
	}
	return u, nil
}

func (r *userRepo) Update(ctx context.Context, u *model.User) error {
	query := `
		UPDATE users
		SET username = $2, email = $3, display_name = $4
		WHERE id = $1
		RETURNING updated_at`

	err := r.db.QueryRow(ctx, query, u.ID, u.Username, u.Email, u.DisplayName).
		Scan(&u.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return ErrNotFound
		}
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: пользователь %q уже существует", ErrConflict, u.Username)
		}
		return fmt.Errorf("ошибка обновления пользователя: %w", err)
	}
	return nil
}

func (r *userRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления пользователя: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// userSortArg парсит значение курсора в аргумент сортировки.
func userSortArg(orderBy, sortValue string) (any, error) {
	if orderBy == UserOrderByCreatedAt {
		t, err := time.Parse(time.RFC3339Nano, sortValue)
		if err != nil {
			return nil, fmt.Errorf("некорректный курсор created_at: %w", err)
		}
		return t, nil
	}
	return sortValue, nil
}

// UserSortValue возвращает строковое значение колонки сортировки для курсора.
func UserSortValue(u *model.User, orderBy string) string {
	if orderBy == UserOrderByCreatedAt {
		return u.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	return u.Username
}

func (r *userRepo) List(ctx context.Context, page Page) ([]*model.User, bool, error) {
	orderBy := page.OrderBy
	if orderBy == "" {
		orderBy = UserOrderByUsername
	}
	if orderBy != UserOrderByUsername && orderBy != UserOrderByCreatedAt {
		return nil, false, fmt.Errorf("недопустимая колонка сортировки: %q", orderBy)
	}

	var conditions []string
	var args []any

	if page.After != nil {
		sortArg, err := userSortArg(orderBy, page.After.SortValue)
		if err != nil {
			return nil, false, err
		}
		cond, condArgs := keysetCondition(orderBy, "id", *page.After, page.Desc, sortArg, 1)
		conditions = append(conditions, cond)
		args = append(args, condArgs...)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM users
		%s
		%s
		LIMIT $%d`, userColumns, where, orderClause(orderBy, "id", page.Desc), len(args)+1)
	args = append(args, page.First+1)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("ошибка получения списка пользователей: %w", err)
	}
	defer rows.Close()

	var result []*model.User
	for rows.Next() {
		u, scanErr := scanUser(rows)
		if scanErr != nil {
			return nil, false, fmt.Errorf("ошибка сканирования пользователя: %w", scanErr)
		}
		result = append(result, u)
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

func (r *userRepo) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта пользователей: %w", err)
	}
	return count, nil
}

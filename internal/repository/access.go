// access.go — репозитории RBAC-сущностей (groups, roles, permissions)
// и связей между ними. Таблицы сущностей имеют одинаковую структуру,
// поэтому реализация общая и параметризована именем таблицы.
package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/avkuznetsov/assethub/internal/domain/model"
)

// Колонки сортировки списков groups, roles и permissions.
const (
	NameOrderByName      = "name"
	NameOrderByCreatedAt = "created_at"
)

// namedRecord — общая форма строки таблиц groups, roles и permissions.
type namedRecord struct {
	ID          string
	Name        string
	Description *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NamedEntityRepo — общая реализация CRUD для сущностей вида (id, name, description).
type NamedEntityRepo[T any] struct {
	db    DBTX
	table string
	// label — название сущности в сообщениях об ошибках
	label      string
	fromRecord func(namedRecord) *T
	toRecord   func(*T) namedRecord
}

// NewGroupRepository создаёт репозиторий groups.
func NewGroupRepository(db DBTX) *NamedEntityRepo[model.Group] {
	return &NamedEntityRepo[model.Group]{
		db:    db,
		table: "groups",
		label: "группа",
		fromRecord: func(rec namedRecord) *model.Group {
			return &model.Group{ID: rec.ID, Name: rec.Name, Description: rec.Description,
				CreatedAt: rec.CreatedAt, UpdatedAt: rec.UpdatedAt}
		},
		toRecord: func(g *model.Group) namedRecord {
			return namedRecord{ID: g.ID, Name: g.Name, Description: g.Description}
		},
	}
}

// NewRoleRepository создаёт репозиторий roles.
func NewRoleRepository(db DBTX) *NamedEntityRepo[model.Role] {
	return &NamedEntityRepo[model.Role]{
		db:    db,
		table: "roles",
		label: "роль",
		fromRecord: func(rec namedRecord) *model.Role {
			return &model.Role{ID: rec.ID, Name: rec.Name, Description: rec.Description,
				CreatedAt: rec.CreatedAt, UpdatedAt: rec.UpdatedAt}
		},
		toRecord: func(r *model.Role) namedRecord {
			return namedRecord{ID: r.ID, Name: r.Name, Description: r.Description}
		},
	}
}

// NewPermissionRepository создаёт репозиторий permissions.
func NewPermissionRepository(db DBTX) *NamedEntityRepo[model.Permission] {
	return &NamedEntityRepo[model.Permission]{
		db:    db,
		table: "permissions",
		label: "permission",
		fromRecord: func(rec namedRecord) *model.Permission {
			return &model.Permission{ID: rec.ID, Name: rec.Name, Description: rec.Description,
				CreatedAt: rec.CreatedAt, UpdatedAt: rec.UpdatedAt}
		},
		toRecord: func(p *model.Permission) namedRecord {
			return namedRecord{ID: p.ID, Name: p.Name, Description: p.Description}
		},
	}
}

func scanNamed(row pgx.Row) (namedRecord, error) {
	var rec namedRecord
	err := row.Scan(&rec.ID, &rec.Name, &rec.Description, &rec.CreatedAt, &rec.UpdatedAt)
	return rec, err
}

// Create создаёт сущность. Возвращает ErrConflict при дублирующемся имени.
func (r *NamedEntityRepo[T]) Create(ctx context.Context, e *T) error {
	rec := r.toRecord(e)
	query := fmt.Sprintf(`
		INSERT INTO %s (id, name, description)
		VALUES ($1, $2, $3)
		RETURNING created_at, updated_at`, r.table)

	err := r.db.QueryRow(ctx, query, rec.ID, rec.Name, rec.Description).
		Scan(&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s %q уже существует", ErrConflict, r.label, rec.Name)
		}
		return fmt.Errorf("ошибка создания (%s): %w", r.label, err)
	}
	*e = *r.fromRecord(rec)
	return nil
}

// GetByID возвращает сущность по UUID.
func (r *NamedEntityRepo[T]) GetByID(ctx context.Context, id string) (*T, error) {
	query := fmt.Sprintf(`SELECT id, name, description, created_at, updated_at FROM %s WHERE id = $1`, r.table)

	rec, err := scanNamed(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения (%s): %w", r.label, err)
	}
	return r.fromRecord(rec), nil
}

// Update обновляет имя и описание сущности.
func (r *NamedEntityRepo[T]) Update(ctx context.Context, e *T) error {
	rec := r.toRecord(e)
	query := fmt.Sprintf(`
		UPDATE %s
		SET name = $2, description = $3
		WHERE id = $1
		RETURNING created_at, updated_at`, r.table)

	err := r.db.QueryRow(ctx, query, rec.ID, rec.Name, rec.Description).
		Scan(&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return ErrNotFound
		}
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s %q уже существует", ErrConflict, r.label, rec.Name)
		}
		return fmt.Errorf("ошибка обновления (%s): %w", r.label, err)
	}
	*e = *r.fromRecord(rec)
	return nil
}

// Delete удаляет сущность. Связи удаляются каскадно.
func (r *NamedEntityRepo[T]) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.table), id)
	if err != nil {
		return fmt.Errorf("ошибка удаления (%s): %w", r.label, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// NameSortValue возвращает строковое значение колонки сортировки для курсора
// сущностей, сортируемых по name или created_at.
func NameSortValue(name string, createdAt time.Time, orderBy string) string {
	if orderBy == NameOrderByCreatedAt {
		return createdAt.UTC().Format(time.RFC3339Nano)
	}
	return name
}

// List возвращает страницу сущностей с keyset-пагинацией.
func (r *NamedEntityRepo[T]) List(ctx context.Context, page Page) ([]*T, bool, error) {
	orderBy := page.OrderBy
	if orderBy == "" {
		orderBy = NameOrderByName
	}
	if orderBy != NameOrderByName && orderBy != NameOrderByCreatedAt {
		return nil, false, fmt.Errorf("недопустимая колонка сортировки: %q", orderBy)
	}

	var conditions []string
	var args []any

	if page.After != nil {
		var sortArg any = page.After.SortValue
		if orderBy == NameOrderByCreatedAt {
			t, err := time.Parse(time.RFC3339Nano, page.After.SortValue)
			if err != nil {
				return nil, false, fmt.Errorf("некорректный курсор created_at: %w", err)
			}
			sortArg = t
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
		SELECT id, name, description, created_at, updated_at
		FROM %s
		%s
		%s
		LIMIT $%d`, r.table, where, orderClause(orderBy, "id", page.Desc), len(args)+1)
	args = append(args, page.First+1)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("ошибка получения списка (%s): %w", r.label, err)
	}
	defer rows.Close()

	var result []*T
	for rows.Next() {
		rec, scanErr := scanNamed(rows)
		if scanErr != nil {
			return nil, false, fmt.Errorf("ошибка сканирования (%s): %w", r.label, scanErr)
		}
		result = append(result, r.fromRecord(rec))
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

// Count возвращает количество сущностей.
func (r *NamedEntityRepo[T]) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, r.table)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта (%s): %w", r.label, err)
	}
	return count, nil
}

// MembershipRepository — связи many-to-many между RBAC-сущностями.
type MembershipRepository interface {
	// AddUserToGroup добавляет пользователя в группу (идемпотентно).
	// Возвращает ErrNotFound, если пользователь или группа не существуют.
	AddUserToGroup(ctx context.Context, userID, groupID string) error
	// RemoveUserFromGroup убирает пользователя из группы.
	RemoveUserFromGroup(ctx context.Context, userID, groupID string) error
	// AssignRoleToGroup назначает роль группе (идемпотентно).
	AssignRoleToGroup(ctx context.Context, groupID, roleID string) error
	// RemoveRoleFromGroup снимает роль с группы.
	RemoveRoleFromGroup(ctx context.Context, groupID, roleID string) error
	// GrantPermissionToRole добавляет permission роли (идемпотентно).
	GrantPermissionToRole(ctx context.Context, roleID, permissionID string) error
	// RevokePermissionFromRole убирает permission у роли.
	RevokePermissionFromRole(ctx context.Context, roleID, permissionID string) error

	// GroupsForUser возвращает группы пользователя, отсортированные по имени.
	GroupsForUser(ctx context.Context, userID string) ([]*model.Group, error)
	// UsersForGroup возвращает пользователей группы, отсортированных по username.
	UsersForGroup(ctx context.Context, groupID string) ([]*model.User, error)
	// RolesForGroup возвращает роли группы, отсортированные по имени.
	RolesForGroup(ctx context.Context, groupID string) ([]*model.Role, error)
	// PermissionsForRole возвращает permissions роли, отсортированные по имени.
	PermissionsForRole(ctx context.Context, roleID string) ([]*model.Permission, error)
	// PermissionsForUser возвращает эффективные permissions пользователя:
	// объединение permissions всех ролей всех его групп, без дубликатов.
	PermissionsForUser(ctx context.Context, userID string) ([]*model.Permission, error)
}

type membershipRepo struct {
	db DBTX
}

// NewMembershipRepository создаёт репозиторий связей RBAC.
func NewMembershipRepository(db DBTX) MembershipRepository {
	return &membershipRepo{db: db}
}

// addLink вставляет связь в join-таблицу. Повторная вставка — no-op.
func (r *membershipRepo) addLink(ctx context.Context, table, colA, colB, idA, idB string) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (%s, %s) VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, table, colA, colB)

	if _, err := r.db.Exec(ctx, query, idA, idB); err != nil {
		if isForeignKeyViolation(err) {
			return ErrNotFound
		}
		return fmt.Errorf("ошибка добавления связи %s: %w", table, err)
	}
	return nil
}

// removeLink удаляет связь из join-таблицы.
// Возвращает ErrNotFound, если связи не было.
func (r *membershipRepo) removeLink(ctx context.Context, table, colA, colB, idA, idB string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1 AND %s = $2`, table, colA, colB)

	tag, err := r.db.Exec(ctx, query, idA, idB)
	if err != nil {
		return fmt.Errorf("ошибка удаления связи %s: %w", table, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *membershipRepo) AddUserToGroup(ctx context.Context, userID, groupID string) error {
	return r.addLink(ctx, "user_groups", "user_id", "group_id", userID, groupID)
}

func (r *membershipRepo) RemoveUserFromGroup(ctx context.Context, userID, groupID string) error {
	return r.removeLink(ctx, "user_groups", "user_id", "group_id", userID, groupID)
}

func (r *membershipRepo) AssignRoleToGroup(ctx context.Context, groupID, roleID string) error {
	return r.addLink(ctx, "group_roles", "group_id", "role_id", groupID, roleID)
}

func (r *membershipRepo) RemoveRoleFromGroup(ctx context.Context, groupID, roleID string) error {
	return r.removeLink(ctx, "group_roles", "group_id", "role_id", groupID, roleID)
}

func (r *membershipRepo) GrantPermissionToRole(ctx context.Context, roleID, permissionID string) error {
	return r.addLink(ctx, "role_permissions", "role_id", "permission_id", roleID, permissionID)
}

func (r *membershipRepo) RevokePermissionFromRole(ctx context.Context, roleID, permissionID string) error {
	return r.removeLink(ctx, "role_permissions", "role_id", "permission_id", roleID, permissionID)
}

func (r *membershipRepo) GroupsForUser(ctx context.Context, userID string) ([]*model.Group, error) {
	query := `
		SELECT g.id, g.name, g.description, g.created_at, g.updated_at
		FROM groups g
		JOIN user_groups ug ON ug.group_id = g.id
		WHERE ug.user_id = $1
		ORDER BY g.name`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения групп пользователя: %w", err)
	}
	defer rows.Close()

	var result []*model.Group
	for rows.Next() {
		g := &model.Group{}
		if err := rows.Scan(&g.ID, &g.Name, &g.Description, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования группы: %w", err)
		}
		result = append(result, g)
	}
	return result, rows.Err()
}

func (r *membershipRepo) UsersForGroup(ctx context.Context, groupID string) ([]*model.User, error) {
	query := `
		SELECT u.id, u.username, u.email, u.display_name, u.created_at, u.updated_at
		FROM users u
		JOIN user_groups ug ON ug.user_id = u.id
		WHERE ug.group_id = $1
		ORDER BY u.username`

	rows, err := r.db.Query(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения пользователей группы: %w", err)
	}
	defer rows.Close()

	var result []*model.User
	for rows.Next() {
		u, scanErr := scanUser(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("ошибка сканирования пользователя: %w", scanErr)
		}
		result = append(result, u)
	}
	return result, rows.Err()
}

func (r *membershipRepo) RolesForGroup(ctx context.Context, groupID string) ([]*model.Role, error) {
	query := `
		SELECT r.id, r.name, r.description, r.created_at, r.updated_at
		FROM roles r
		JOIN group_roles gr ON gr.role_id = r.id
		WHERE gr.group_id = $1
		ORDER BY r.name`

	rows, err := r.db.Query(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения ролей группы: %w", err)
	}
	defer rows.Close()

	var result []*model.Role
	for rows.Next() {
		role := &model.Role{}
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования роли: %w", err)
		}
		result = append(result, role)
	}
	return result, rows.Err()
}

func (r *membershipRepo) PermissionsForRole(ctx context.Context, roleID string) ([]*model.Permission, error) {
	query := `
		SELECT p.id, p.name, p.description, p.created_at, p.updated_at
		FROM permissions p
		JOIN role_permissions rp ON rp.permission_id = p.id
		WHERE rp.role_id = $1
		ORDER BY p.name`

	return r.queryPermissions(ctx, query, roleID)
}

func (r *membershipRepo) PermissionsForUser(ctx context.Context, userID string) ([]*model.Permission, error) {
	// Один запрос по всей цепочке user → groups → roles → permissions.
	query := `
		SELECT DISTINCT p.id, p.name, p.description, p.created_at, p.updated_at
		FROM permissions p
		JOIN role_permissions rp ON rp.permission_id = p.id
		JOIN group_roles gr ON gr.role_id = rp.role_id
		JOIN user_groups ug ON ug.group_id = gr.group_id
		WHERE ug.user_id = $1
		ORDER BY p.name`

	return r.queryPermissions(ctx, query, userID)
}

func (r *membershipRepo) queryPermissions(ctx context.Context, query string, arg any) ([]*model.Permission, error) {
	rows, err := r.db.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения permissions: %w", err)
	}
	defer rows.Close()

	var result []*model.Permission
	for rows.Next() {
		p := &model.Permission{}
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования permission: %w", err)
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

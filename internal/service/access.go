// access.go — сервис RBAC: пользователи, группы, роли, permissions
// и связи между ними. Эффективные permissions пользователя кэшируются
// с TTL; изменения связей инвалидируют кэш.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/avkuznetsov/assethub/internal/domain/model"
	"github.com/avkuznetsov/assethub/internal/repository"
)

// AccessService — сервис управления RBAC-сущностями.
type AccessService struct {
	users      repository.UserRepository
	groups     *repository.NamedEntityRepo[model.Group]
	roles      *repository.NamedEntityRepo[model.Role]
	perms      *repository.NamedEntityRepo[model.Permission]
	membership repository.MembershipRepository
	// permCache — кэш эффективных permissions по user id
	permCache *Cache[[]*model.Permission]
	logger    *slog.Logger
}

// NewAccessService создаёт сервис RBAC.
func NewAccessService(
	users repository.UserRepository,
	groups *repository.NamedEntityRepo[model.Group],
	roles *repository.NamedEntityRepo[model.Role],
	perms *repository.NamedEntityRepo[model.Permission],
	membership repository.MembershipRepository,
	permCache *Cache[[]*model.Permission],
	logger *slog.Logger,
) *AccessService {
	return &AccessService{
		users:      users,
		groups:     groups,
		roles:      roles,
		perms:      perms,
		membership: membership,
		permCache:  permCache,
		logger:     logger.With(slog.String("component", "access_service")),
	}
}

// mapRepoErr переводит ошибки репозитория в ошибки сервисного слоя.
func mapRepoErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%w: %s", ErrNotFound, err)
	case errors.Is(err, repository.ErrConflict):
		return fmt.Errorf("%w: %s", ErrConflict, err)
	default:
		return err
	}
}

// --- Пользователи ---

// CreateUser создаёт пользователя.
func (s *AccessService) CreateUser(ctx context.Context, username, email string, displayName *string) (*model.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("%w: username не может быть пустым", ErrValidation)
	}
	if strings.TrimSpace(email) == "" {
		return nil, fmt.Errorf("%w: email не может быть пустым", ErrValidation)
	}

	u := &model.User{
		ID:          uuid.New().String(),
		Username:    username,
		Email:       email,
		DisplayName: displayName,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, mapRepoErr(err)
	}

	s.logger.Info("Пользователь создан", slog.String("user_id", u.ID), slog.String("username", username))
	return u, nil
}

// UpdateUser обновляет пользователя. Nil-поля не меняются.
func (s *AccessService) UpdateUser(ctx context.Context, id string, username, email, displayName *string) (*model.User, error) {
	u, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	if username != nil {
		if strings.TrimSpace(*username) == "" {
			return nil, fmt.Errorf("%w: username не может быть пустым", ErrValidation)
		}
		u.Username = strings.TrimSpace(*username)
	}
	if email != nil {
		u.Email = *email
	}
	if displayName != nil {
		u.DisplayName = displayName
	}

	if err := s.users.Update(ctx, u); err != nil {
		return nil, mapRepoErr(err)
	}
	return u, nil
}

// DeleteUser удаляет пользователя, членства удаляются каскадно.
func (s *AccessService) DeleteUser(ctx context.Context, id string) error {
	if err := s.users.Delete(ctx, id); err != nil {
		return mapRepoErr(err)
	}
	s.permCache.Delete(id)
	s.logger.Info("Пользователь удалён", slog.String("user_id", id))
	return nil
}

// GetUser возвращает пользователя по id.
func (s *AccessService) GetUser(ctx context.Context, id string) (*model.User, error) {
	u, err := s.users.GetByID(ctx, id)
	return u, mapRepoErr(err)
}

// UserPage — страница пользователей.
type UserPage struct {
	Items      []*model.User
	HasNext    bool
	TotalCount int
	OrderBy    string
}

// ListUsers возвращает страницу пользователей.
func (s *AccessService) ListUsers(ctx context.Context, params ListParams) (*UserPage, error) {
	page, err := buildPage(params)
	if err != nil {
		return nil, err
	}
	switch page.OrderBy {
	case "":
		page.OrderBy = repository.UserOrderByUsername
	case repository.UserOrderByUsername, repository.UserOrderByCreatedAt:
	default:
		return nil, fmt.Errorf("%w: недопустимая сортировка %q", ErrValidation, page.OrderBy)
	}

	items, hasNext, err := s.users.List(ctx, page)
	if err != nil {
		return nil, err
	}
	total, err := s.users.Count(ctx)
	if err != nil {
		return nil, err
	}
	return &UserPage{Items: items, HasNext: hasNext, TotalCount: total, OrderBy: page.OrderBy}, nil
}

// --- Группы, роли, permissions ---

// NamedPage — страница сущностей вида (id, name, description).
type NamedPage[T any] struct {
	Items      []*T
	HasNext    bool
	TotalCount int
	OrderBy    string
}

// createNamed создаёт сущность с валидацией имени.
func createNamed[T any](ctx context.Context, repo *repository.NamedEntityRepo[T],
	build func(id, name string, description *string) *T, name string, description *string) (*T, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: имя не может быть пустым", ErrValidation)
	}

	e := build(uuid.New().String(), name, description)
	if err := repo.Create(ctx, e); err != nil {
		return nil, mapRepoErr(err)
	}
	return e, nil
}

// listNamed возвращает страницу сущностей с нормализацией пагинации.
func listNamed[T any](ctx context.Context, repo *repository.NamedEntityRepo[T], params ListParams) (*NamedPage[T], error) {
	page, err := buildPage(params)
	if err != nil {
		return nil, err
	}
	switch page.OrderBy {
	case "":
		page.OrderBy = repository.NameOrderByName
	case repository.NameOrderByName, repository.NameOrderByCreatedAt:
	default:
		return nil, fmt.Errorf("%w: недопустимая сортировка %q", ErrValidation, page.OrderBy)
	}

	items, hasNext, err := repo.List(ctx, page)
	if err != nil {
		return nil, err
	}
	total, err := repo.Count(ctx)
	if err != nil {
		return nil, err
	}
	return &NamedPage[T]{Items: items, HasNext: hasNext, TotalCount: total, OrderBy: page.OrderBy}, nil
}

func (s *AccessService) CreateGroup(ctx context.Context, name string, description *string) (*model.Group, error) {
	return createNamed(ctx, s.groups, func(id, name string, d *string) *model.Group {
		return &model.Group{ID: id, Name: name, Description: d}
	}, name, description)
}

func (s *AccessService) CreateRole(ctx context.Context, name string, description *string) (*model.Role, error) {
	return createNamed(ctx, s.roles, func(id, name string, d *string) *model.Role {
		return &model.Role{ID: id, Name: name, Description: d}
	}, name, description)
}

func (s *AccessService) CreatePermission(ctx context.Context, name string, description *string) (*model.Permission, error) {
	return createNamed(ctx, s.perms, func(id, name string, d *string) *model.Permission {
		return &model.Permission{ID: id, Name: name, Description: d}
	}, name, description)
}

func (s *AccessService) GetGroup(ctx context.Context, id string) (*model.Group, error) {
	g, err := s.groups.GetByID(ctx, id)
	return g, mapRepoErr(err)
}

func (s *AccessService) GetRole(ctx context.Context, id string) (*model.Role, error) {
	r, err := s.roles.GetByID(ctx, id)
	return r, mapRepoErr(err)
}

func (s *AccessService) GetPermission(ctx context.Context, id string) (*model.Permission, error) {
	p, err := s.perms.GetByID(ctx, id)
	return p, mapRepoErr(err)
}

// UpdateGroup обновляет имя и описание группы. Nil-поля не меняются.
func (s *AccessService) UpdateGroup(ctx context.Context, id string, name, description *string) (*model.Group, error) {
	g, err := s.GetGroup(ctx, id)
	if err != nil {
		return nil, err
	}
	applyNamed(&g.Name, &g.Description, name, description)
	if g.Name == "" {
		return nil, fmt.Errorf("%w: имя не может быть пустым", ErrValidation)
	}
	if err := s.groups.Update(ctx, g); err != nil {
		return nil, mapRepoErr(err)
	}
	return g, nil
}

func (s *AccessService) UpdateRole(ctx context.Context, id string, name, description *string) (*model.Role, error) {
	r, err := s.GetRole(ctx, id)
	if err != nil {
		return nil, err
	}
	applyNamed(&r.Name, &r.Description, name, description)
	if r.Name == "" {
		return nil, fmt.Errorf("%w: имя не может быть пустым", ErrValidation)
	}
	if err := s.roles.Update(ctx, r); err != nil {
		return nil, mapRepoErr(err)
	}
	return r, nil
}

func (s *AccessService) UpdatePermission(ctx context.Context, id string, name, description *string) (*model.Permission, error) {
	p, err := s.GetPermission(ctx, id)
	if err != nil {
		return nil, err
	}
	applyNamed(&p.Name, &p.Description, name, description)
	if p.Name == "" {
		return nil, fmt.Errorf("%w: имя не может быть пустым", ErrValidation)
	}
	if err := s.perms.Update(ctx, p); err != nil {
		return nil, mapRepoErr(err)
	}
	return p, nil
}

func applyNamed(name *string, description **string, newName, newDescription *string) {
	if newName != nil {
		*name = strings.TrimSpace(*newName)
	}
	if newDescription != nil {
		*description = newDescription
	}
}

// DeleteGroup удаляет группу; эффективные permissions её членов меняются.
func (s *AccessService) DeleteGroup(ctx context.Context, id string) error {
	if err := s.groups.Delete(ctx, id); err != nil {
		return mapRepoErr(err)
	}
	s.permCache.Purge()
	s.logger.Info("Группа удалена", slog.String("group_id", id))
	return nil
}

func (s *AccessService) DeleteRole(ctx context.Context, id string) error {
	if err := s.roles.Delete(ctx, id); err != nil {
		return mapRepoErr(err)
	}
	s.permCache.Purge()
	s.logger.Info("Роль удалена", slog.String("role_id", id))
	return nil
}

func (s *AccessService) DeletePermission(ctx context.Context, id string) error {
	if err := s.perms.Delete(ctx, id); err != nil {
		return mapRepoErr(err)
	}
	s.permCache.Purge()
	s.logger.Info("Permission удалён", slog.String("permission_id", id))
	return nil
}

func (s *AccessService) ListGroups(ctx context.Context, params ListParams) (*NamedPage[model.Group], error) {
	return listNamed(ctx, s.groups, params)
}

func (s *AccessService) ListRoles(ctx context.Context, params ListParams) (*NamedPage[model.Role], error) {
	return listNamed(ctx, s.roles, params)
}

func (s *AccessService) ListPermissions(ctx context.Context, params ListParams) (*NamedPage[model.Permission], error) {
	return listNamed(ctx, s.perms, params)
}

// --- Связи ---

// AddUserToGroup добавляет пользователя в группу. Повтор — no-op.
func (s *AccessService) AddUserToGroup(ctx context.Context, userID, groupID string) error {
	if err := s.membership.AddUserToGroup(ctx, userID, groupID); err != nil {
		return mapRepoErr(err)
	}
	s.permCache.Delete(userID)
	return nil
}

// RemoveUserFromGroup убирает пользователя из группы.
func (s *AccessService) RemoveUserFromGroup(ctx context.Context, userID, groupID string) error {
	if err := s.membership.RemoveUserFromGroup(ctx, userID, groupID); err != nil {
		return mapRepoErr(err)
	}
	s.permCache.Delete(userID)
	return nil
}

// AssignRoleToGroup назначает роль группе.
// Меняются permissions всех членов группы, кэш сбрасывается целиком.
func (s *AccessService) AssignRoleToGroup(ctx context.Context, groupID, roleID string) error {
	if err := s.membership.AssignRoleToGroup(ctx, groupID, roleID); err != nil {
		return mapRepoErr(err)
	}
	s.permCache.Purge()
	return nil
}

func (s *AccessService) RemoveRoleFromGroup(ctx context.Context, groupID, roleID string) error {
	if err := s.membership.RemoveRoleFromGroup(ctx, groupID, roleID); err != nil {
		return mapRepoErr(err)
	}
	s.permCache.Purge()
	return nil
}

func (s *AccessService) GrantPermissionToRole(ctx context.Context, roleID, permissionID string) error {
	if err := s.membership.GrantPermissionToRole(ctx, roleID, permissionID); err != nil {
		return mapRepoErr(err)
	}
	s.permCache.Purge()
	return nil
}

func (s *AccessService) RevokePermissionFromRole(ctx context.Context, roleID, permissionID string) error {
	if err := s.membership.RevokePermissionFromRole(ctx, roleID, permissionID); err != nil {
		return mapRepoErr(err)
	}
	s.permCache.Purge()
	return nil
}

// --- Навигация по связям (вложенные поля GraphQL) ---

func (s *AccessService) GroupsForUser(ctx context.Context, userID string) ([]*model.Group, error) {
	return s.membership.GroupsForUser(ctx, userID)
}

func (s *AccessService) UsersForGroup(ctx context.Context, groupID string) ([]*model.User, error) {
	return s.membership.UsersForGroup(ctx, groupID)
}

func (s *AccessService) RolesForGroup(ctx context.Context, groupID string) ([]*model.Role, error) {
	return s.membership.RolesForGroup(ctx, groupID)
}

func (s *AccessService) PermissionsForRole(ctx context.Context, roleID string) ([]*model.Permission, error) {
	return s.membership.PermissionsForRole(ctx, roleID)
}

// UserPermissions возвращает эффективные permissions пользователя:
// объединение permissions всех ролей всех его групп. Результат кэшируется.
func (s *AccessService) UserPermissions(ctx context.Context, userID string) ([]*model.Permission, error) {
	if cached, ok := s.permCache.Get(userID); ok {
		return cached, nil
	}

	// Несуществующий пользователь — NOT_FOUND, а не пустой список.
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, mapRepoErr(err)
	}

	perms, err := s.membership.PermissionsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	s.permCache.Set(userID, perms)
	return perms, nil
}

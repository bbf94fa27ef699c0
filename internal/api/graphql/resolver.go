// resolver.go — резолверы GraphQL-операций.
// Резолверы проверяют роль из JWT-claims, делегируют в сервисный слой
// и переводят модели в map для default resolver graphql-go.
package graphql

import (
	"context"
	"log/slog"

	"github.com/graphql-go/graphql"

	apierrors "github.com/avkuznetsov/assethub/internal/api/errors"
	"github.com/avkuznetsov/assethub/internal/api/middleware"
	"github.com/avkuznetsov/assethub/internal/domain/model"
	"github.com/avkuznetsov/assethub/internal/domain/rbac"
	"github.com/avkuznetsov/assethub/internal/repository"
	"github.com/avkuznetsov/assethub/internal/service"
)

// Resolver — контейнер сервисов для GraphQL-операций.
type Resolver struct {
	assets     *service.AssetService
	access     *service.AccessService
	namespaces *service.NamespaceService
	limits     *service.RateLimitService
	logger     *slog.Logger
}

// NewResolver создаёт резолвер GraphQL-операций.
func NewResolver(
	assets *service.AssetService,
	access *service.AccessService,
	namespaces *service.NamespaceService,
	limits *service.RateLimitService,
	logger *slog.Logger,
) *Resolver {
	return &Resolver{
		assets:     assets,
		access:     access,
		namespaces: namespaces,
		limits:     limits,
		logger:     logger.With(slog.String("component", "graphql_resolver")),
	}
}

// --- Контроль доступа ---

// requireRole проверяет роль из claims в контексте запроса.
func requireRole(ctx context.Context, roles ...string) error {
	claims := middleware.ClaimsFromContext(ctx)
	if claims == nil {
		return newOpError(apierrors.CodeUnauthorized, "требуется аутентификация")
	}
	if !claims.HasAnyRole(roles...) {
		return newOpError(apierrors.CodeForbidden, "недостаточно прав для операции")
	}
	return nil
}

// requireRead — запросы доступны ролям admin и readonly.
func requireRead(ctx context.Context) error {
	return requireRole(ctx, rbac.RoleAdmin, rbac.RoleReadonly)
}

// requireAdmin — мутации доступны только роли admin.
func requireAdmin(ctx context.Context) error {
	return requireRole(ctx, rbac.RoleAdmin)
}

// --- Конвертация моделей в map ---
// graphql-go резолвит поля map по ключу, поэтому модели переводятся
// в map c именами полей схемы.

func assetToMap(a *model.Asset) map[string]interface{} {
	m := map[string]interface{}{
		"id":         a.ID,
		"ownerId":    a.OwnerID,
		"namespace":  a.Namespace,
		"storageKey": a.StorageKey,
		"bucket":     a.Bucket,
		"region":     a.Region,
		"mimeType":   a.MimeType,
		"sizeBytes":  a.SizeBytes,
		"checksum":   a.Checksum,
		"status":     a.Status,
		"createdAt":  a.CreatedAt,
		"updatedAt":  a.UpdatedAt,
	}
	if a.UploadURL != nil {
		m["uploadUrl"] = *a.UploadURL
	}
	if a.UploadExpiresAt != nil {
		m["uploadExpiresAt"] = *a.UploadExpiresAt
	}
	if a.IdempotencyKey != nil {
		m["idempotencyKey"] = *a.IdempotencyKey
	}
	return m
}

func userToMap(u *model.User) map[string]interface{} {
	m := map[string]interface{}{
		"id":        u.ID,
		"username":  u.Username,
		"email":     u.Email,
		"createdAt": u.CreatedAt,
		"updatedAt": u.UpdatedAt,
	}
	if u.DisplayName != nil {
		m["displayName"] = *u.DisplayName
	}
	return m
}

func namedToMap(id, name string, description *string, createdAt, updatedAt interface{}) map[string]interface{} {
	m := map[string]interface{}{
		"id":        id,
		"name":      name,
		"createdAt": createdAt,
		"updatedAt": updatedAt,
	}
	if description != nil {
		m["description"] = *description
	}
	return m
}

func groupToMap(g *model.Group) map[string]interface{} {
	return namedToMap(g.ID, g.Name, g.Description, g.CreatedAt, g.UpdatedAt)
}

func roleToMap(r *model.Role) map[string]interface{} {
	return namedToMap(r.ID, r.Name, r.Description, r.CreatedAt, r.UpdatedAt)
}

func permissionToMap(p *model.Permission) map[string]interface{} {
	return namedToMap(p.ID, p.Name, p.Description, p.CreatedAt, p.UpdatedAt)
}

func namespaceToMap(ns *model.Namespace) map[string]interface{} {
	return map[string]interface{}{
		"name":             ns.Name,
		"allowedMimeTypes": ns.AllowedMimeTypes,
		"maxSizeBytes":     ns.MaxSizeBytes,
		"enabled":          ns.Enabled,
		"createdAt":        ns.CreatedAt,
		"updatedAt":        ns.UpdatedAt,
	}
}

// connectionMap собирает relay-style connection из edges.
func connectionMap(edges []map[string]interface{}, hasNext bool, total int) map[string]interface{} {
	var endCursor interface{}
	if len(edges) > 0 {
		endCursor = edges[len(edges)-1]["cursor"]
	}
	return map[string]interface{}{
		"edges": edges,
		"pageInfo": map[string]interface{}{
			"hasNextPage": hasNext,
			"endCursor":   endCursor,
		},
		"totalCount": total,
	}
}

// --- Аргументы пагинации ---

// listParamsFromArgs извлекает first/after/orderBy/order из аргументов запроса.
// orderBy уже приведён enum-типом схемы к имени колонки.
func listParamsFromArgs(args map[string]interface{}) service.ListParams {
	params := service.ListParams{}
	if first, ok := args["first"].(int); ok {
		params.First = &first
	}
	if after, ok := args["after"].(string); ok {
		params.After = &after
	}
	if orderBy, ok := args["orderBy"].(string); ok {
		params.OrderBy = orderBy
	}
	if order, ok := args["order"].(string); ok {
		params.Desc = order == "DESC"
	}
	return params
}

func optionalString(args map[string]interface{}, key string) *string {
	if v, ok := args[key].(string); ok {
		return &v
	}
	return nil
}

// --- Запросы: assets ---

func (r *Resolver) resolveAsset(p graphql.ResolveParams) (interface{}, error) {
	if err := requireRead(p.Context); err != nil {
		return nil, err
	}

	asset, err := r.assets.Get(p.Context, p.Args["id"].(string))
	if err != nil {
		return nil, mapServiceError(err)
	}
	return assetToMap(asset), nil
}

func (r *Resolver) resolveAssets(p graphql.ResolveParams) (interface{}, error) {
	if err := requireRead(p.Context); err != nil {
		return nil, err
	}

	filters := repository.AssetListFilters{
		OwnerID:   optionalString(p.Args, "ownerId"),
		Namespace: optionalString(p.Args, "namespace"),
		Status:    optionalString(p.Args, "status"),
	}

	page, err := r.assets.List(p.Context, filters, listParamsFromArgs(p.Args))
	if err != nil {
		return nil, mapServiceError(err)
	}

	edges := make([]map[string]interface{}, 0, len(page.Items))
	for _, a := range page.Items {
		edges = append(edges, map[string]interface{}{
			"cursor": repository.EncodeCursor(repository.Cursor{
				SortValue: repository.AssetSortValue(a, page.OrderBy),
				ID:        a.ID,
			}),
			"node": assetToMap(a),
		})
	}
	return connectionMap(edges, page.HasNext, page.TotalCount), nil
}

func (r *Resolver) resolveStorageUsage(p graphql.ResolveParams) (interface{}, error) {
	if err := requireRead(p.Context); err != nil {
		return nil, err
	}

	usage, err := r.limits.Usage(p.Context, p.Args["ownerId"].(string))
	if err != nil {
		return nil, mapServiceError(err)
	}
	return map[string]interface{}{
		"ownerId":    usage.OwnerID,
		"usedBytes":  usage.UsedBytes,
		"quotaBytes": usage.QuotaBytes,
	}, nil
}

// --- Запросы: namespaces ---

func (r *Resolver) resolveNamespace(p graphql.ResolveParams) (interface{}, error) {
	if err := requireRead(p.Context); err != nil {
		return nil, err
	}

	ns, err := r.namespaces.Get(p.Context, p.Args["name"].(string))
	if err != nil {
		return nil, mapServiceError(err)
	}
	return namespaceToMap(ns), nil
}

func (r *Resolver) resolveNamespaces(p graphql.ResolveParams) (interface{}, error) {
	if err := requireRead(p.Context); err != nil {
		return nil, err
	}

	list, err := r.namespaces.List(p.Context)
	if err != nil {
		return nil, mapServiceError(err)
	}
	result := make([]map[string]interface{}, 0, len(list))
	for _, ns := range list {
		result = append(result, namespaceToMap(ns))
	}
	return result, nil
}

// --- Запросы: RBAC ---

func (r *Resolver) resolveUser(p graphql.ResolveParams) (interface{}, error) {
	if err := requireRead(p.Context); err != nil {
		return nil, err
	}

	u, err := r.access.GetUser(p.Context, p.Args["id"].(string))
	if err != nil {
		return nil, mapServiceError(err)
	}
	return userToMap(u), nil
}

func (r *Resolver) resolveUsers(p graphql.ResolveParams) (interface{}, error) {
	if err := requireRead(p.Context); err != nil {
		return nil, err
	}

	page, err := r.access.ListUsers(p.Context, listParamsFromArgs(p.Args))
	if err != nil {
		return nil, mapServiceError(err)
	}

	edges := make([]map[string]interface{}, 0, len(page.Items))
	for _, u := range page.Items {
		edges = append(edges, map[string]interface{}{
			"cursor": repository.EncodeCursor(repository.Cursor{
				SortValue: repository.UserSortValue(u, page.OrderBy),
				ID:        u.ID,
			}),
			"node": userToMap(u),
		})
	}
	return connectionMap(edges, page.HasNext, page.TotalCount), nil
}

func (r *Resolver) resolveGroup(p graphql.ResolveParams) (interface{}, error) {
	if err := requireRead(p.Context); err != nil {
		return nil, err
	}
	g, err := r.access.GetGroup(p.Context, p.Args["id"].(string))
	if err != nil {
		return nil, mapServiceError(err)
	}
	return groupToMap(g), nil
}

func (r *Resolver) resolveRole(p graphql.ResolveParams) (interface{}, error) {
	if err := requireRead(p.Context); err != nil {
		return nil, err
	}
	role, err := r.access.GetRole(p.Context, p.Args["id"].(string))
	if err != nil {
		return nil, mapServiceError(err)
	}
	return roleToMap(role), nil
}

func (r *Resolver) resolvePermission(p graphql.ResolveParams) (interface{}, error) {
	if err := requireRead(p.Context); err != nil {
		return nil, err
	}
	perm, err := r.access.GetPermission(p.Context, p.Args["id"].(string))
	if err != nil {
		return nil, mapServiceError(err)
	}
	return permissionToMap(perm), nil
}

func (r *Resolver) resolveGroups(p graphql.ResolveParams) (interface{}, error) {
	if err := requireRead(p.Context); err != nil {
		return nil, err
	}
	page, err := r.access.ListGroups(p.Context, listParamsFromArgs(p.Args))
	if err != nil {
		return nil, mapServiceError(err)
	}

	edges := make([]map[string]interface{}, 0, len(page.Items))
	for _, g := range page.Items {
		edges = append(edges, map[string]interface{}{
			"cursor": repository.EncodeCursor(repository.Cursor{
				SortValue: repository.NameSortValue(g.Name, g.CreatedAt, page.OrderBy),
				ID:        g.ID,
			}),
			"node": groupToMap(g),
		})
	}
	return connectionMap(edges, page.HasNext, page.TotalCount), nil
}

func (r *Resolver) resolveRoles(p graphql.ResolveParams) (interface{}, error) {
	if err := requireRead(p.Context); err != nil {
		return nil, err
	}
	page, err := r.access.ListRoles(p.Context, listParamsFromArgs(p.Args))
	if err != nil {
		return nil, mapServiceError(err)
	}

	edges := make([]map[string]interface{}, 0, len(page.Items))
	for _, role := range page.Items {
		edges = append(edges, map[string]interface{}{
			"cursor": repository.EncodeCursor(repository.Cursor{
				SortValue: repository.NameSortValue(role.Name, role.CreatedAt, page.OrderBy),
				ID:        role.ID,
			}),
			"node": roleToMap(role),
		})
	}
	return connectionMap(edges, page.HasNext, page.TotalCount), nil
}

func (r *Resolver) resolvePermissions(p graphql.ResolveParams) (interface{}, error) {
	if err := requireRead(p.Context); err != nil {
		return nil, err
	}
	page, err := r.access.ListPermissions(p.Context, listParamsFromArgs(p.Args))
	if err != nil {
		return nil, mapServiceError(err)
	}

	edges := make([]map[string]interface{}, 0, len(page.Items))
	for _, perm := range page.Items {
		edges = append(edges, map[string]interface{}{
			"cursor": repository.EncodeCursor(repository.Cursor{
				SortValue: repository.NameSortValue(perm.Name, perm.CreatedAt, page.OrderBy),
				ID:        perm.ID,
			}),
			"node": permissionToMap(perm),
		})
	}
	return connectionMap(edges, page.HasNext, page.TotalCount), nil
}

func (r *Resolver) resolveUserPermissions(p graphql.ResolveParams) (interface{}, error) {
	if err := requireRead(p.Context); err != nil {
		return nil, err
	}

	perms, err := r.access.UserPermissions(p.Context, p.Args["userId"].(string))
	if err != nil {
		return nil, mapServiceError(err)
	}
	names := make([]string, 0, len(perms))
	for _, perm := range perms {
		names = append(names, perm.Name)
	}
	return names, nil
}

// --- Вложенные поля ---
// Корневые резолверы уже проверили роль, поэтому вложенные поля
// не повторяют контроль доступа.

func sourceID(p graphql.ResolveParams) string {
	src, _ := p.Source.(map[string]interface{})
	id, _ := src["id"].(string)
	return id
}

func (r *Resolver) resolveUserGroups(p graphql.ResolveParams) (interface{}, error) {
	groups, err := r.access.GroupsForUser(p.Context, sourceID(p))
	if err != nil {
		return nil, mapServiceError(err)
	}
	result := make([]map[string]interface{}, 0, len(groups))
	for _, g := range groups {
		result = append(result, groupToMap(g))
	}
	return result, nil
}

func (r *Resolver) resolveGroupUsers(p graphql.ResolveParams) (interface{}, error) {
	users, err := r.access.UsersForGroup(p.Context, sourceID(p))
	if err != nil {
		return nil, mapServiceError(err)
	}
	result := make([]map[string]interface{}, 0, len(users))
	for _, u := range users {
		result = append(result, userToMap(u))
	}
	return result, nil
}

func (r *Resolver) resolveGroupRoles(p graphql.ResolveParams) (interface{}, error) {
	roles, err := r.access.RolesForGroup(p.Context, sourceID(p))
	if err != nil {
		return nil, mapServiceError(err)
	}
	result := make([]map[string]interface{}, 0, len(roles))
	for _, role := range roles {
		result = append(result, roleToMap(role))
	}
	return result, nil
}

func (r *Resolver) resolveRolePermissions(p graphql.ResolveParams) (interface{}, error) {
	perms, err := r.access.PermissionsForRole(p.Context, sourceID(p))
	if err != nil {
		return nil, mapServiceError(err)
	}
	result := make([]map[string]interface{}, 0, len(perms))
	for _, perm := range perms {
		result = append(result, permissionToMap(perm))
	}
	return result, nil
}

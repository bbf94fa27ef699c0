// mutations.go — резолверы GraphQL-мутаций.
// Все мутации требуют роль admin.
package graphql

import (
	"github.com/graphql-go/graphql"

	"github.com/avkuznetsov/assethub/internal/domain/model"
	"github.com/avkuznetsov/assethub/internal/service"
)

// --- Жизненный цикл asset ---

func (r *Resolver) resolveInitiateUpload(p graphql.ResolveParams) (interface{}, error) {
	if err := requireAdmin(p.Context); err != nil {
		return nil, err
	}

	input, _ := p.Args["input"].(map[string]interface{})
	in := service.InitiateUploadInput{
		OwnerID:   stringArg(input, "ownerId"),
		Namespace: stringArg(input, "namespace"),
		Filename:  stringArg(input, "filename"),
		MimeType:  stringArg(input, "mimeType"),
		Checksum:  stringArg(input, "checksum"),
	}
	if size, ok := input["sizeBytes"].(int64); ok {
		in.SizeBytes = size
	}
	in.IdempotencyKey = optionalString(input, "idempotencyKey")

	asset, err := r.assets.InitiateUpload(p.Context, in)
	if err != nil {
		return nil, mapServiceError(err)
	}
	return assetToMap(asset), nil
}

func (r *Resolver) resolveConfirmUpload(p graphql.ResolveParams) (interface{}, error) {
	if err := requireAdmin(p.Context); err != nil {
		return nil, err
	}

	asset, err := r.assets.ConfirmUpload(p.Context, p.Args["assetId"].(string))
	if err != nil {
		return nil, mapServiceError(err)
	}
	return assetToMap(asset), nil
}

func (r *Resolver) resolveDeleteAsset(p graphql.ResolveParams) (interface{}, error) {
	if err := requireAdmin(p.Context); err != nil {
		return nil, err
	}

	if err := r.assets.Delete(p.Context, p.Args["assetId"].(string)); err != nil {
		return nil, mapServiceError(err)
	}
	return true, nil
}

// --- Namespaces ---

func (r *Resolver) resolveUpsertNamespace(p graphql.ResolveParams) (interface{}, error) {
	if err := requireAdmin(p.Context); err != nil {
		return nil, err
	}

	input, _ := p.Args["input"].(map[string]interface{})
	ns := &model.Namespace{
		Name:    stringArg(input, "name"),
		Enabled: true,
	}
	if size, ok := input["maxSizeBytes"].(int64); ok {
		ns.MaxSizeBytes = size
	}
	if enabled, ok := input["enabled"].(bool); ok {
		ns.Enabled = enabled
	}
	if mimeTypes, ok := input["allowedMimeTypes"].([]interface{}); ok {
		for _, mt := range mimeTypes {
			if s, ok := mt.(string); ok {
				ns.AllowedMimeTypes = append(ns.AllowedMimeTypes, s)
			}
		}
	}

	updated, err := r.namespaces.Upsert(p.Context, ns)
	if err != nil {
		return nil, mapServiceError(err)
	}
	return namespaceToMap(updated), nil
}

func (r *Resolver) resolveDeleteNamespace(p graphql.ResolveParams) (interface{}, error) {
	if err := requireAdmin(p.Context); err != nil {
		return nil, err
	}

	if err := r.namespaces.Delete(p.Context, p.Args["name"].(string)); err != nil {
		return nil, mapServiceError(err)
	}
	return true, nil
}

// --- RBAC: пользователи ---

func (r *Resolver) resolveCreateUser(p graphql.ResolveParams) (interface{}, error) {
	if err := requireAdmin(p.Context); err != nil {
		return nil, err
	}

	input, _ := p.Args["input"].(map[string]interface{})
	u, err := r.access.CreateUser(p.Context,
		stringArg(input, "username"),
		stringArg(input, "email"),
		optionalString(input, "displayName"))
	if err != nil {
		return nil, mapServiceError(err)
	}
	return userToMap(u), nil
}

func (r *Resolver) resolveUpdateUser(p graphql.ResolveParams) (interface{}, error) {
	if err := requireAdmin(p.Context); err != nil {
		return nil, err
	}

	input, _ := p.Args["input"].(map[string]interface{})
	u, err := r.access.UpdateUser(p.Context, p.Args["id"].(string),
		optionalString(input, "username"),
		optionalString(input, "email"),
		optionalString(input, "displayName"))
	if err != nil {
		return nil, mapServiceError(err)
	}
	return userToMap(u), nil
}

func (r *Resolver) resolveDeleteUser(p graphql.ResolveParams) (interface{}, error) {
	if err := requireAdmin(p.Context); err != nil {
		return nil, err
	}

	if err := r.access.DeleteUser(p.Context, p.Args["id"].(string)); err != nil {
		return nil, mapServiceError(err)
	}
	return true, nil
}

// --- RBAC: группы, роли, permissions ---

func (r *Resolver) resolveCreateGroup(p graphql.ResolveParams) (interface{}, error) {
	if err := requireAdmin(p.Context); err != nil {
		return nil, err
	}
	input, _ := p.Args["input"].(map[string]interface{})
	g, err := r.access.CreateGroup(p.Context, stringArg(input, "name"), optionalString(input, "description"))
	if err != nil {
		return nil, mapServiceError(err)
	}
	return groupToMap(g), nil
}

func (r *Resolver) resolveUpdateGroup(p graphql.ResolveParams) (interface{}, error) {
	if err := requireAdmin(p.Context); err != nil {
		return nil, err
	}
	input, _ := p.Args["input"].(map[string]interface{})
	g, err := r.access.UpdateGroup(p.Context, p.Args["id"].(string),
		optionalString(input, "name"), optionalString(input, "description"))
	if err != nil {
		return nil, mapServiceError(err)
	}
	return groupToMap(g), nil
}

func (r *Resolver) resolveDeleteGroup(p graphql.ResolveParams) (interface{}, error) {
	if err := requireAdmin(p.Context); err != nil {
		return nil, err
	}
	if err := r.access.DeleteGroup(p.Context, p.Args["id"].(string)); err != nil {
		return nil, mapServiceError(err)
	}
	return true, nil
}

func (r *Resolver) resolveCreateRole(p graphql.ResolveParams) (interface{}, error) {
	if err := requireAdmin(p.Context); err != nil {
		return nil, err
	}
	input, _ := p.Args["input"].(map[string]interface{})
	role, err := r.access.CreateRole(p.Context, stringArg(input, "name"), optionalString(input, "description"))
	if err != nil {
		return nil, mapServiceError(err)
	}
	return roleToMap(role), nil
}

func (r *Resolver) resolveUpdateRole(p graphql.ResolveParams) (interface{}, error) {
	if err := requireAdmin(p.Context); err != nil {
		return nil, err
	}
	input, _ := p.Args["input"].(map[string]interface{})
	role, err := r.access.UpdateRole(p.Context, p.Args["id"].(string),
		optionalString(input, "name"), optionalString(input, "description"))
	if err != nil {
		return nil, mapServiceError(err)
	}
	return roleToMap(role), nil
}

func (r *Resolver) resolveDeleteRole(p graphql.ResolveParams) (interface{}, error) {
	if err := requireAdmin(p.Context); err != nil {
		return nil, err
	}
	if err := r.access.DeleteRole(p.Context, p.Args["id"].(string)); err != nil {
		return nil, mapServiceError(err)
	}
	return true, nil
}

func (r *Resolver) resolveCreatePermission(p graphql.ResolveParams) (interface{}, error) {
	if err := requireAdmin(p.Context); err != nil {
		return nil, err
	}
	input, _ := p.Args["input"].(map[string]interface{})
	perm, err := r.access.CreatePermission(p.Context, stringArg(input, "name"), optionalString(input, "description"))
	if err != nil {
		return nil, mapServiceError(err)
	}
	return permissionToMap(perm), nil
}

func (r *Resolver) resolveUpdatePermission(p graphql.ResolveParams) (interface{}, error) {
	if err := requireAdmin(p.Context); err != nil {
		return nil, err
	}
	input, _ := p.Args["input"].(map[string]interface{})
	perm, err := r.access.UpdatePermission(p.Context, p.Args["id"].(string),
		optionalString(input, "name"), optionalString(input, "description"))
	if err != nil {
		return nil, mapServiceError(err)
	}
	return permissionToMap(perm), nil
}

func (r *Resolver) resolveDeletePermission(p graphql.ResolveParams) (interface{}, error) {
	if err := requireAdmin(p.Context); err != nil {
		return nil, err
	}
	if err := r.access.DeletePermission(p.Context, p.Args["id"].(string)); err != nil {
		return nil, mapServiceError(err)
	}
	return true, nil
}

// --- RBAC: связи ---

func (r *Resolver) resolveAddUserToGroup(p graphql.ResolveParams) (interface{}, error) {
	if err := requireAdmin(p.Context); err != nil {
		return nil, err
	}
	if err := r.access.AddUserToGroup(p.Context, p.Args["userId"].(string), p.Args["groupId"].(string)); err != nil {
		return nil, mapServiceError(err)
	}
	return true, nil
}

func (r *Resolver) resolveRemoveUserFromGroup(p graphql.ResolveParams) (interface{}, error) {
	if err := requireAdmin(p.Context); err != nil {
		return nil, err
	}
	if err := r.access.RemoveUserFromGroup(p.Context, p.Args["userId"].(string), p.Args["groupId"].(string)); err != nil {
		return nil, mapServiceError(err)
	}
	return true, nil
}

func (r *Resolver) resolveAssignRoleToGroup(p graphql.ResolveParams) (interface{}, error) {
	if err := requireAdmin(p.Context); err != nil {
		return nil, err
	}
	if err := r.access.AssignRoleToGroup(p.Context, p.Args["groupId"].(string), p.Args["roleId"].(string)); err != nil {
		return nil, mapServiceError(err)
	}
	return true, nil
}

func (r *Resolver) resolveRemoveRoleFromGroup(p graphql.ResolveParams) (interface{}, error) {
	if err := requireAdmin(p.Context); err != nil {
		return nil, err
	}
	if err := r.access.RemoveRoleFromGroup(p.Context, p.Args["groupId"].(string), p.Args["roleId"].(string)); err != nil {
		return nil, mapServiceError(err)
	}
	return true, nil
}

func (r *Resolver) resolveGrantPermissionToRole(p graphql.ResolveParams) (interface{}, error) {
	if err := requireAdmin(p.Context); err != nil {
		return nil, err
	}
	if err := r.access.GrantPermissionToRole(p.Context, p.Args["roleId"].(string), p.Args["permissionId"].(string)); err != nil {
		return nil, mapServiceError(err)
	}
	return true, nil
}

func (r *Resolver) resolveRevokePermissionFromRole(p graphql.ResolveParams) (interface{}, error) {
	if err := requireAdmin(p.Context); err != nil {
		return nil, err
	}
	if err := r.access.RevokePermissionFromRole(p.Context, p.Args["roleId"].(string), p.Args["permissionId"].(string)); err != nil {
		return nil, mapServiceError(err)
	}
	return true, nil
}

// stringArg возвращает строковый аргумент или пустую строку.
func stringArg(args map[string]interface{}, key string) string {
	s, _ := args[key].(string)
	return s
}

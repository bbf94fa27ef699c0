// schema.go — описание GraphQL-схемы.
// Схема собирается программно через graphql-go: типы, enum'ы,
// relay-style connections и корневые Query/Mutation.
package graphql

import (
	"fmt"
	"strconv"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"

	"github.com/avkuznetsov/assethub/internal/repository"
)

// int64Scalar — скаляр для размеров в байтах.
// Стандартный Int в graphql-go ограничен 32 битами, размеры файлов
// и квоты в него не помещаются.
var int64Scalar = graphql.NewScalar(graphql.ScalarConfig{
	Name:        "Int64",
	Description: "64-битное целое (размеры в байтах).",
	Serialize: func(value interface{}) interface{} {
		switch v := value.(type) {
		case int64:
			return v
		case int:
			return int64(v)
		case int32:
			return int64(v)
		case float64:
			return int64(v)
		default:
			return nil
		}
	},
	ParseValue: func(value interface{}) interface{} {
		switch v := value.(type) {
		case int64:
			return v
		case int:
			return int64(v)
		case float64:
			return int64(v)
		case string:
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return nil
			}
			return n
		default:
			return nil
		}
	},
	ParseLiteral: func(valueAST ast.Value) interface{} {
		switch v := valueAST.(type) {
		case *ast.IntValue:
			n, err := strconv.ParseInt(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			return n
		case *ast.StringValue:
			n, err := strconv.ParseInt(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			return n
		default:
			return nil
		}
	},
})

// --- Enum'ы ---
// Внутренние значения enum'ов совпадают со значениями БД и именами колонок,
// поэтому резолверы передают их в сервисный слой как есть.

var assetStatusEnum = graphql.NewEnum(graphql.EnumConfig{
	Name: "AssetStatus",
	Values: graphql.EnumValueConfigMap{
		"PENDING": &graphql.EnumValueConfig{Value: "pending"},
		"READY":   &graphql.EnumValueConfig{Value: "ready"},
		"FAILED":  &graphql.EnumValueConfig{Value: "failed"},
	},
})

var assetOrderByEnum = graphql.NewEnum(graphql.EnumConfig{
	Name: "AssetOrderBy",
	Values: graphql.EnumValueConfigMap{
		"CREATED_AT": &graphql.EnumValueConfig{Value: repository.AssetOrderByCreatedAt},
		"SIZE_BYTES": &graphql.EnumValueConfig{Value: repository.AssetOrderBySizeBytes},
	},
})

var userOrderByEnum = graphql.NewEnum(graphql.EnumConfig{
	Name: "UserOrderBy",
	Values: graphql.EnumValueConfigMap{
		"USERNAME":   &graphql.EnumValueConfig{Value: repository.UserOrderByUsername},
		"CREATED_AT": &graphql.EnumValueConfig{Value: repository.UserOrderByCreatedAt},
	},
})

var nameOrderByEnum = graphql.NewEnum(graphql.EnumConfig{
	Name: "NameOrderBy",
	Values: graphql.EnumValueConfigMap{
		"NAME":       &graphql.EnumValueConfig{Value: repository.NameOrderByName},
		"CREATED_AT": &graphql.EnumValueConfig{Value: repository.NameOrderByCreatedAt},
	},
})

var sortOrderEnum = graphql.NewEnum(graphql.EnumConfig{
	Name: "SortOrder",
	Values: graphql.EnumValueConfigMap{
		"ASC":  &graphql.EnumValueConfig{Value: "ASC"},
		"DESC": &graphql.EnumValueConfig{Value: "DESC"},
	},
})

// --- Общие типы ---

var pageInfoType = graphql.NewObject(graphql.ObjectConfig{
	Name: "PageInfo",
	Fields: graphql.Fields{
		"hasNextPage": &graphql.Field{Type: graphql.NewNonNull(graphql.Boolean)},
		"endCursor":   &graphql.Field{Type: graphql.String},
	},
})

// connectionType собирает пару Edge/Connection для node-типа.
func connectionType(name string, nodeType *graphql.Object) *graphql.Object {
	edge := graphql.NewObject(graphql.ObjectConfig{
		Name: name + "Edge",
		Fields: graphql.Fields{
			"cursor": &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"node":   &graphql.Field{Type: graphql.NewNonNull(nodeType)},
		},
	})
	return graphql.NewObject(graphql.ObjectConfig{
		Name: name + "Connection",
		Fields: graphql.Fields{
			"edges":      &graphql.Field{Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(edge)))},
			"pageInfo":   &graphql.Field{Type: graphql.NewNonNull(pageInfoType)},
			"totalCount": &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
		},
	})
}

// paginationArgs — общие аргументы списочных запросов.
func paginationArgs(orderByEnum *graphql.Enum) graphql.FieldConfigArgument {
	return graphql.FieldConfigArgument{
		"first":   &graphql.ArgumentConfig{Type: graphql.Int},
		"after":   &graphql.ArgumentConfig{Type: graphql.String},
		"orderBy": &graphql.ArgumentConfig{Type: orderByEnum},
		"order":   &graphql.ArgumentConfig{Type: sortOrderEnum},
	}
}

// NewSchema собирает GraphQL-схему поверх резолвера.
func NewSchema(r *Resolver) (graphql.Schema, error) {
	// --- Объектные типы ---

	assetType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Asset",
		Fields: graphql.Fields{
			"id":              &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
			"ownerId":         &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
			"namespace":       &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"storageKey":      &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"bucket":          &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"region":          &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"mimeType":        &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"sizeBytes":       &graphql.Field{Type: graphql.NewNonNull(int64Scalar)},
			"checksum":        &graphql.Field{Type: graphql.String},
			"status":          &graphql.Field{Type: graphql.NewNonNull(assetStatusEnum)},
			"uploadUrl":       &graphql.Field{Type: graphql.String},
			"uploadExpiresAt": &graphql.Field{Type: graphql.DateTime},
			"idempotencyKey":  &graphql.Field{Type: graphql.String},
			"createdAt":       &graphql.Field{Type: graphql.NewNonNull(graphql.DateTime)},
			"updatedAt":       &graphql.Field{Type: graphql.NewNonNull(graphql.DateTime)},
		},
	})

	userType := graphql.NewObject(graphql.ObjectConfig{
		Name: "User",
		Fields: graphql.Fields{
			"id":          &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
			"username":    &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"email":       &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"displayName": &graphql.Field{Type: graphql.String},
			"createdAt":   &graphql.Field{Type: graphql.NewNonNull(graphql.DateTime)},
			"updatedAt":   &graphql.Field{Type: graphql.NewNonNull(graphql.DateTime)},
		},
	})

	groupType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Group",
		Fields: graphql.Fields{
			"id":          &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
			"name":        &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"description": &graphql.Field{Type: graphql.String},
			"createdAt":   &graphql.Field{Type: graphql.NewNonNull(graphql.DateTime)},
			"updatedAt":   &graphql.Field{Type: graphql.NewNonNull(graphql.DateTime)},
		},
	})

	roleType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Role",
		Fields: graphql.Fields{
			"id":          &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
			"name":        &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"description": &graphql.Field{Type: graphql.String},
			"createdAt":   &graphql.Field{Type: graphql.NewNonNull(graphql.DateTime)},
			"updatedAt":   &graphql.Field{Type: graphql.NewNonNull(graphql.DateTime)},
		},
	})

	permissionType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Permission",
		Fields: graphql.Fields{
			"id":          &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
			"name":        &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"description": &graphql.Field{Type: graphql.String},
			"createdAt":   &graphql.Field{Type: graphql.NewNonNull(graphql.DateTime)},
			"updatedAt":   &graphql.Field{Type: graphql.NewNonNull(graphql.DateTime)},
		},
	})

	// Вложенные поля добавляются после создания типов:
	// User.groups и Group.users ссылаются друг на друга.
	userType.AddFieldConfig("groups", &graphql.Field{
		Type:    graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(groupType))),
		Resolve: r.resolveUserGroups,
	})
	groupType.AddFieldConfig("users", &graphql.Field{
		Type:    graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(userType))),
		Resolve: r.resolveGroupUsers,
	})
	groupType.AddFieldConfig("roles", &graphql.Field{
		Type:    graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(roleType))),
		Resolve: r.resolveGroupRoles,
	})
	roleType.AddFieldConfig("permissions", &graphql.Field{
		Type:    graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(permissionType))),
		Resolve: r.resolveRolePermissions,
	})

	namespaceType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Namespace",
		Fields: graphql.Fields{
			"name":             &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"allowedMimeTypes": &graphql.Field{Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(graphql.String)))},
			"maxSizeBytes":     &graphql.Field{Type: graphql.NewNonNull(int64Scalar)},
			"enabled":          &graphql.Field{Type: graphql.NewNonNull(graphql.Boolean)},
			"createdAt":        &graphql.Field{Type: graphql.NewNonNull(graphql.DateTime)},
			"updatedAt":        &graphql.Field{Type: graphql.NewNonNull(graphql.DateTime)},
		},
	})

	storageUsageType := graphql.NewObject(graphql.ObjectConfig{
		Name: "StorageUsage",
		Fields: graphql.Fields{
			"ownerId":    &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
			"usedBytes":  &graphql.Field{Type: graphql.NewNonNull(int64Scalar)},
			"quotaBytes": &graphql.Field{Type: graphql.NewNonNull(int64Scalar)},
		},
	})

	assetConnection := connectionType("Asset", assetType)
	userConnection := connectionType("User", userType)
	groupConnection := connectionType("Group", groupType)
	roleConnection := connectionType("Role", roleType)
	permissionConnection := connectionType("Permission", permissionType)

	// --- Input-типы ---

	initiateUploadInput := graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "InitiateUploadInput",
		Fields: graphql.InputObjectConfigFieldMap{
			"ownerId":        &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.ID)},
			"namespace":      &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
			"filename":       &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
			"mimeType":       &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
			"sizeBytes":      &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(int64Scalar)},
			"checksum":       &graphql.InputObjectFieldConfig{Type: graphql.String},
			"idempotencyKey": &graphql.InputObjectFieldConfig{Type: graphql.String},
		},
	})

	namespaceInput := graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "NamespaceInput",
		Fields: graphql.InputObjectConfigFieldMap{
			"name":             &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
			"allowedMimeTypes": &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(graphql.String)))},
			"maxSizeBytes":     &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(int64Scalar)},
			"enabled":          &graphql.InputObjectFieldConfig{Type: graphql.Boolean},
		},
	})

	createUserInput := graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "CreateUserInput",
		Fields: graphql.InputObjectConfigFieldMap{
			"username":    &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
			"email":       &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
			"displayName": &graphql.InputObjectFieldConfig{Type: graphql.String},
		},
	})

	updateUserInput := graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "UpdateUserInput",
		Fields: graphql.InputObjectConfigFieldMap{
			"username":    &graphql.InputObjectFieldConfig{Type: graphql.String},
			"email":       &graphql.InputObjectFieldConfig{Type: graphql.String},
			"displayName": &graphql.InputObjectFieldConfig{Type: graphql.String},
		},
	})

	namedInput := func(name string, required bool) *graphql.InputObject {
		var nameType graphql.Input = graphql.String
		if required {
			nameType = graphql.NewNonNull(graphql.String)
		}
		return graphql.NewInputObject(graphql.InputObjectConfig{
			Name: name,
			Fields: graphql.InputObjectConfigFieldMap{
				"name":        &graphql.InputObjectFieldConfig{Type: nameType},
				"description": &graphql.InputObjectFieldConfig{Type: graphql.String},
			},
		})
	}
	createNamedInput := namedInput("CreateNamedInput", true)
	updateNamedInput := namedInput("UpdateNamedInput", false)

	idArg := graphql.FieldConfigArgument{
		"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
	}

	// --- Query ---

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"asset": &graphql.Field{
				Type:    assetType,
				Args:    idArg,
				Resolve: r.resolveAsset,
			},
			"assets": &graphql.Field{
				Type: graphql.NewNonNull(assetConnection),
				Args: mergeArgs(paginationArgs(assetOrderByEnum), graphql.FieldConfigArgument{
					"ownerId":   &graphql.ArgumentConfig{Type: graphql.ID},
					"namespace": &graphql.ArgumentConfig{Type: graphql.String},
					"status":    &graphql.ArgumentConfig{Type: assetStatusEnum},
				}),
				Resolve: r.resolveAssets,
			},
			"storageUsage": &graphql.Field{
				Type: graphql.NewNonNull(storageUsageType),
				Args: graphql.FieldConfigArgument{
					"ownerId": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
				},
				Resolve: r.resolveStorageUsage,
			},
			"namespace": &graphql.Field{
				Type: namespaceType,
				Args: graphql.FieldConfigArgument{
					"name": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: r.resolveNamespace,
			},
			"namespaces": &graphql.Field{
				Type:    graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(namespaceType))),
				Resolve: r.resolveNamespaces,
			},
			"user": &graphql.Field{
				Type:    userType,
				Args:    idArg,
				Resolve: r.resolveUser,
			},
			"users": &graphql.Field{
				Type:    graphql.NewNonNull(userConnection),
				Args:    paginationArgs(userOrderByEnum),
				Resolve: r.resolveUsers,
			},
			"group": &graphql.Field{
				Type:    groupType,
				Args:    idArg,
				Resolve: r.resolveGroup,
			},
			"groups": &graphql.Field{
				Type:    graphql.NewNonNull(groupConnection),
				Args:    paginationArgs(nameOrderByEnum),
				Resolve: r.resolveGroups,
			},
			"role": &graphql.Field{
				Type:    roleType,
				Args:    idArg,
				Resolve: r.resolveRole,
			},
			"roles": &graphql.Field{
				Type:    graphql.NewNonNull(roleConnection),
				Args:    paginationArgs(nameOrderByEnum),
				Resolve: r.resolveRoles,
			},
			"permission": &graphql.Field{
				Type:    permissionType,
				Args:    idArg,
				Resolve: r.resolvePermission,
			},
			"permissions": &graphql.Field{
				Type:    graphql.NewNonNull(permissionConnection),
				Args:    paginationArgs(nameOrderByEnum),
				Resolve: r.resolvePermissions,
			},
			"userPermissions": &graphql.Field{
				Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(graphql.String))),
				Args: graphql.FieldConfigArgument{
					"userId": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
				},
				Resolve: r.resolveUserPermissions,
			},
		},
	})

	// --- Mutation ---

	assetIDArg := graphql.FieldConfigArgument{
		"assetId": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
	}
	userGroupArgs := graphql.FieldConfigArgument{
		"userId":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
		"groupId": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
	}
	groupRoleArgs := graphql.FieldConfigArgument{
		"groupId": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
		"roleId":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
	}
	rolePermArgs := graphql.FieldConfigArgument{
		"roleId":       &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
		"permissionId": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
	}

	mutationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"initiateUpload": &graphql.Field{
				Type: graphql.NewNonNull(assetType),
				Args: graphql.FieldConfigArgument{
					"input": &graphql.ArgumentConfig{Type: graphql.NewNonNull(initiateUploadInput)},
				},
				Resolve: r.resolveInitiateUpload,
			},
			"confirmUpload": &graphql.Field{
				Type:    graphql.NewNonNull(assetType),
				Args:    assetIDArg,
				Resolve: r.resolveConfirmUpload,
			},
			"deleteAsset": &graphql.Field{
				Type:    graphql.NewNonNull(graphql.Boolean),
				Args:    assetIDArg,
				Resolve: r.resolveDeleteAsset,
			},
			"upsertNamespace": &graphql.Field{
				Type: graphql.NewNonNull(namespaceType),
				Args: graphql.FieldConfigArgument{
					"input": &graphql.ArgumentConfig{Type: graphql.NewNonNull(namespaceInput)},
				},
				Resolve: r.resolveUpsertNamespace,
			},
			"deleteNamespace": &graphql.Field{
				Type: graphql.NewNonNull(graphql.Boolean),
				Args: graphql.FieldConfigArgument{
					"name": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: r.resolveDeleteNamespace,
			},
			"createUser": &graphql.Field{
				Type: graphql.NewNonNull(userType),
				Args: graphql.FieldConfigArgument{
					"input": &graphql.ArgumentConfig{Type: graphql.NewNonNull(createUserInput)},
				},
				Resolve: r.resolveCreateUser,
			},
			"updateUser": &graphql.Field{
				Type: graphql.NewNonNull(userType),
				Args: mergeArgs(idArg, graphql.FieldConfigArgument{
					"input": &graphql.ArgumentConfig{Type: graphql.NewNonNull(updateUserInput)},
				}),
				Resolve: r.resolveUpdateUser,
			},
			"deleteUser": &graphql.Field{
				Type:    graphql.NewNonNull(graphql.Boolean),
				Args:    idArg,
				Resolve: r.resolveDeleteUser,
			},
			"createGroup": &graphql.Field{
				Type: graphql.NewNonNull(groupType),
				Args: graphql.FieldConfigArgument{
					"input": &graphql.ArgumentConfig{Type: graphql.NewNonNull(createNamedInput)},
				},
				Resolve: r.resolveCreateGroup,
			},
			"updateGroup": &graphql.Field{
				Type: graphql.NewNonNull(groupType),
				Args: mergeArgs(idArg, graphql.FieldConfigArgument{
					"input": &graphql.ArgumentConfig{Type: graphql.NewNonNull(updateNamedInput)},
				}),
				Resolve: r.resolveUpdateGroup,
			},
			"deleteGroup": &graphql.Field{
				Type:    graphql.NewNonNull(graphql.Boolean),
				Args:    idArg,
				Resolve: r.resolveDeleteGroup,
			},
			"createRole": &graphql.Field{
				Type: graphql.NewNonNull(roleType),
				Args: graphql.FieldConfigArgument{
					"input": &graphql.ArgumentConfig{Type: graphql.NewNonNull(createNamedInput)},
				},
				Resolve: r.resolveCreateRole,
			},
			"updateRole": &graphql.Field{
				Type: graphql.NewNonNull(roleType),
				Args: mergeArgs(idArg, graphql.FieldConfigArgument{
					"input": &graphql.ArgumentConfig{Type: graphql.NewNonNull(updateNamedInput)},
				}),
				Resolve: r.resolveUpdateRole,
			},
			"deleteRole": &graphql.Field{
				Type:    graphql.NewNonNull(graphql.Boolean),
				Args:    idArg,
				Resolve: r.resolveDeleteRole,
			},
			"createPermission": &graphql.Field{
				Type: graphql.NewNonNull(permissionType),
				Args: graphql.FieldConfigArgument{
					"input": &graphql.ArgumentConfig{Type: graphql.NewNonNull(createNamedInput)},
				},
				Resolve: r.resolveCreatePermission,
			},
			"updatePermission": &graphql.Field{
				Type: graphql.NewNonNull(permissionType),
				Args: mergeArgs(idArg, graphql.FieldConfigArgument{
					"input": &graphql.ArgumentConfig{Type: graphql.NewNonNull(updateNamedInput)},
				}),
				Resolve: r.resolveUpdatePermission,
			},
			"deletePermission": &graphql.Field{
				Type:    graphql.NewNonNull(graphql.Boolean),
				Args:    idArg,
				Resolve: r.resolveDeletePermission,
			},
			"addUserToGroup": &graphql.Field{
				Type:    graphql.NewNonNull(graphql.Boolean),
				Args:    userGroupArgs,
				Resolve: r.resolveAddUserToGroup,
			},
			"removeUserFromGroup": &graphql.Field{
				Type:    graphql.NewNonNull(graphql.Boolean),
				Args:    userGroupArgs,
				Resolve: r.resolveRemoveUserFromGroup,
			},
			"assignRoleToGroup": &graphql.Field{
				Type:    graphql.NewNonNull(graphql.Boolean),
				Args:    groupRoleArgs,
				Resolve: r.resolveAssignRoleToGroup,
			},
			"removeRoleFromGroup": &graphql.Field{
				Type:    graphql.NewNonNull(graphql.Boolean),
				Args:    groupRoleArgs,
				Resolve: r.resolveRemoveRoleFromGroup,
			},
			"grantPermissionToRole": &graphql.Field{
				Type:    graphql.NewNonNull(graphql.Boolean),
				Args:    rolePermArgs,
				Resolve: r.resolveGrantPermissionToRole,
			},
			"revokePermissionFromRole": &graphql.Field{
				Type:    graphql.NewNonNull(graphql.Boolean),
				Args:    rolePermArgs,
				Resolve: r.resolveRevokePermissionFromRole,
			},
		},
	})

	schema, err := graphql.NewSchema(graphql.SchemaConfig{
		Query:    queryType,
		Mutation: mutationType,
	})
	if err != nil {
		return graphql.Schema{}, fmt.Errorf("сборка GraphQL-схемы: %w", err)
	}
	return schema, nil
}

// mergeArgs объединяет наборы аргументов поля.
func mergeArgs(sets ...graphql.FieldConfigArgument) graphql.FieldConfigArgument {
	merged := graphql.FieldConfigArgument{}
	for _, set := range sets {
		for name, arg := range set {
			merged[name] = arg
		}
	}
	return merged
}

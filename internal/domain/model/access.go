package model

import "time"

// User — пользователь системы.
// Хранится в таблице users. Членство в группах — через user_groups.
type User struct {
	// ID — UUID записи
	ID string
	// Username — уникальное имя пользователя
	Username string
	// Email — электронная почта
	Email string
	// DisplayName — отображаемое имя (опционально)
	DisplayName *string
	// CreatedAt — время создания записи
	CreatedAt time.Time
	// UpdatedAt — время последнего обновления
	UpdatedAt time.Time
}

// Group — группа пользователей.
// Роли назначаются группам через group_roles.
type Group struct {
	// ID — UUID записи
	ID string
	// Name — уникальное имя группы
	Name string
	// Description — описание (опционально)
	Description *string
	// CreatedAt — время создания записи
	CreatedAt time.Time
	// UpdatedAt — время последнего обновления
	UpdatedAt time.Time
}

// Role — роль, объединяющая набор permissions.
type Role struct {
	// ID — UUID записи
	ID string
	// Name — уникальное имя роли
	Name string
	// Description — описание (опционально)
	Description *string
	// CreatedAt — время создания записи
	CreatedAt time.Time
	// UpdatedAt — время последнего обновления
	UpdatedAt time.Time
}

// Permission — атомарное право (например, assets:write).
type Permission struct {
	// ID — UUID записи
	ID string
	// Name — уникальное имя permission
	Name string
	// Description — описание (опционально)
	Description *string
	// CreatedAt — время создания записи
	CreatedAt time.Time
	// UpdatedAt — время последнего обновления
	UpdatedAt time.Time
}

package model

import "time"

// Статусы жизненного цикла asset.
const (
	// AssetStatusPending — загрузка инициирована, объект ещё не подтверждён.
	AssetStatusPending = "pending"
	// AssetStatusReady — объект подтверждён в хранилище.
	AssetStatusReady = "ready"
	// AssetStatusFailed — объект не найден при подтверждении.
	AssetStatusFailed = "failed"
)

// Asset — метаданные загруженного файла.
// Хранится в таблице assets. Жизненный цикл: pending → ready | failed,
// удаление — физическое (строка БД + объект в хранилище).
type Asset struct {
	// ID — UUID asset
	ID string
	// OwnerID — идентификатор владельца (sub из JWT или user id)
	OwnerID string
	// Namespace — пространство загрузки, определяет правила валидации
	Namespace string
	// StorageKey — ключ объекта в bucket
	StorageKey string
	// Bucket — имя bucket
	Bucket string
	// Region — регион хранилища
	Region string
	// MimeType — заявленный MIME-тип
	MimeType string
	// SizeBytes — заявленный размер в байтах
	SizeBytes int64
	// Checksum — контрольная сумма содержимого (заявленная клиентом)
	Checksum string
	// Status — статус (pending, ready, failed)
	Status string
	// UploadURL — presigned PUT URL (только для pending, очищается после confirm)
	UploadURL *string
	// UploadExpiresAt — время истечения presigned URL
	UploadExpiresAt *time.Time
	// IdempotencyKey — клиентский ключ идемпотентности (уникален в рамках владельца)
	IdempotencyKey *string
	// CreatedAt — время создания записи
	CreatedAt time.Time
	// UpdatedAt — время последнего обновления
	UpdatedAt time.Time
}

// Namespace — пространство загрузки с правилами валидации.
// Хранится в таблице namespaces.
type Namespace struct {
	// Name — имя namespace (первичный ключ)
	Name string
	// AllowedMimeTypes — разрешённые MIME-типы (пустой список — разрешены все)
	AllowedMimeTypes []string
	// MaxSizeBytes — максимальный размер файла в байтах
	MaxSizeBytes int64
	// Enabled — разрешены ли загрузки в namespace
	Enabled bool
	// CreatedAt — время создания записи
	CreatedAt time.Time
	// UpdatedAt — время последнего обновления
	UpdatedAt time.Time
}

// AllowsMimeType проверяет, разрешён ли MIME-тип правилами namespace.
func (n *Namespace) AllowsMimeType(mimeType string) bool {
	if len(n.AllowedMimeTypes) == 0 {
		return true
	}
	for _, m := range n.AllowedMimeTypes {
		if m == mimeType {
			return true
		}
	}
	return false
}

// StorageUsage — текущее использование хранилища владельцем.
type StorageUsage struct {
	// OwnerID — идентификатор владельца
	OwnerID string
	// UsedBytes — сумма байт pending и ready assets
	UsedBytes int64
	// QuotaBytes — квота владельца
	QuotaBytes int64
}

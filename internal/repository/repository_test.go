package repository

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/avkuznetsov/assethub/internal/config"
	"github.com/avkuznetsov/assethub/internal/database"
	"github.com/avkuznetsov/assethub/internal/domain/model"

	"github.com/jackc/pgx/v5/pgxpool"
)

// setupTestDB запускает PostgreSQL контейнер, применяет миграции.
// Возвращает pgxpool.Pool, контейнер останавливается при завершении теста.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("Пропуск интеграционного теста: TEST_INTEGRATION не установлена")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("assethub_test"),
		postgres.WithUsername("assethub"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Не удалось запустить PostgreSQL контейнер: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Ошибка остановки контейнера: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Не удалось получить host контейнера: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Не удалось получить port контейнера: %v", err)
	}

	// Настраиваем env для config.Load()
	os.Setenv("AH_DB_HOST", host)
	os.Setenv("AH_DB_PORT", port.Port())
	os.Setenv("AH_DB_NAME", "assethub_test")
	os.Setenv("AH_DB_USER", "assethub")
	os.Setenv("AH_DB_PASSWORD", "test-password")
	os.Setenv("AH_DB_SSL_MODE", "disable")
	os.Setenv("AH_S3_BUCKET", "assethub-test")
	os.Setenv("AH_S3_ACCESS_KEY", "test")
	os.Setenv("AH_S3_SECRET_KEY", "test")
	os.Setenv("AH_JWT_JWKS_URL", "http://localhost:8080/jwks")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	// Применяем миграции
	if err := database.Migrate(cfg, logger); err != nil {
		t.Fatalf("Ошибка миграций: %v", err)
	}

	// Подключаемся
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("Ошибка подключения: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	return pool
}

// testAsset создаёт валидный pending asset для владельца.
func testAsset(ownerID string) *model.Asset {
	url := "https://s3.example.com/presigned"
	expires := time.Now().Add(15 * time.Minute)
	return &model.Asset{
		ID:              uuid.New().String(),
		OwnerID:         ownerID,
		Namespace:       "default",
		StorageKey:      "default/" + uuid.New().String(),
		Bucket:          "assethub-test",
		Region:          "us-east-1",
		MimeType:        "image/png",
		SizeBytes:       2048,
		Checksum:        "sha256:abc",
		Status:          model.AssetStatusPending,
		UploadURL:       &url,
		UploadExpiresAt: &expires,
	}
}

// --- Тесты AssetRepository ---

func TestAssetCRUD(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewAssetRepository(pool)

	a := testAsset("user-1")

	// Create
	if err := repo.Create(ctx, a); err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}
	if a.CreatedAt.IsZero() {
		t.Error("CreatedAt не установлен")
	}

	// GetByID
	got, err := repo.GetByID(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetByID() ошибка: %v", err)
	}
	if got.StorageKey != a.StorageKey {
		t.Errorf("StorageKey = %q, хотели %q", got.StorageKey, a.StorageKey)
	}
	if got.Status != model.AssetStatusPending {
		t.Errorf("Status = %q, хотели %q", got.Status, model.AssetStatusPending)
	}
	if got.UploadURL == nil {
		t.Error("UploadURL не сохранён")
	}

	// GetByID несуществующего
	if _, err := repo.GetByID(ctx, uuid.New().String()); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID(несуществующий) = %v, хотели ErrNotFound", err)
	}

	// Delete
	if err := repo.Delete(ctx, a.ID); err != nil {
		t.Fatalf("Delete() ошибка: %v", err)
	}
	if err := repo.Delete(ctx, a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("повторный Delete() = %v, хотели ErrNotFound", err)
	}
}

func TestAssetIdempotencyKey(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewAssetRepository(pool)

	key := "req-" + uuid.New().String()

	a1 := testAsset("user-idem")
	a1.IdempotencyKey = &key
	if err := repo.Create(ctx, a1); err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}

	// Повторная вставка с тем же ключом того же владельца — конфликт.
	a2 := testAsset("user-idem")
	a2.IdempotencyKey = &key
	if err := repo.Create(ctx, a2); !errors.Is(err, ErrConflict) {
		t.Errorf("Create(дубликат ключа) = %v, хотели ErrConflict", err)
	}

	// Тот же ключ у другого владельца — не конфликт.
	a3 := testAsset("user-other")
	a3.IdempotencyKey = &key
	if err := repo.Create(ctx, a3); err != nil {
		t.Errorf("Create(другой владелец) ошибка: %v", err)
	}

	// Поиск по ключу.
	got, err := repo.GetByIdempotencyKey(ctx, "user-idem", key)
	if err != nil {
		t.Fatalf("GetByIdempotencyKey() ошибка: %v", err)
	}
	if got.ID != a1.ID {
		t.Errorf("ID = %q, хотели %q", got.ID, a1.ID)
	}

	if _, err := repo.GetByIdempotencyKey(ctx, "user-idem", "нет такого"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByIdempotencyKey(нет) = %v, хотели ErrNotFound", err)
	}
}

func TestAssetSetStatusFromPending(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewAssetRepository(pool)

	a := testAsset("user-status")
	if err := repo.Create(ctx, a); err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}

	got, err := repo.SetStatusFromPending(ctx, a.ID, model.AssetStatusReady)
	if err != nil {
		t.Fatalf("SetStatusFromPending() ошибка: %v", err)
	}
	if got.Status != model.AssetStatusReady {
		t.Errorf("Status = %q, хотели %q", got.Status, model.AssetStatusReady)
	}
	// Presigned URL очищается при выходе из pending.
	if got.UploadURL != nil || got.UploadExpiresAt != nil {
		t.Error("UploadURL/UploadExpiresAt не очищены")
	}

	// Повторный переход — asset уже не pending.
	if _, err := repo.SetStatusFromPending(ctx, a.ID, model.AssetStatusFailed); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetStatusFromPending(не pending) = %v, хотели ErrNotFound", err)
	}
}

func TestAssetRateLimitCounters(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewAssetRepository(pool)

	owner := "user-limits"

	// Две активные загрузки и одна неудачная.
	for i := 0; i < 2; i++ {
		if err := repo.Create(ctx, testAsset(owner)); err != nil {
			t.Fatalf("Create() ошибка: %v", err)
		}
	}
	failed := testAsset(owner)
	if err := repo.Create(ctx, failed); err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}
	if _, err := repo.SetStatusFromPending(ctx, failed.ID, model.AssetStatusFailed); err != nil {
		t.Fatalf("SetStatusFromPending() ошибка: %v", err)
	}

	// failed не расходует лимит загрузок.
	count, err := repo.CountUploadsSince(ctx, owner, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("CountUploadsSince() ошибка: %v", err)
	}
	if count != 2 {
		t.Errorf("CountUploadsSince() = %d, хотели 2", count)
	}

	// failed не учитывается в занятых байтах.
	total, err := repo.SumActiveBytes(ctx, owner)
	if err != nil {
		t.Fatalf("SumActiveBytes() ошибка: %v", err)
	}
	if total != 4096 {
		t.Errorf("SumActiveBytes() = %d, хотели 4096", total)
	}

	// Владелец без загрузок.
	total, err = repo.SumActiveBytes(ctx, "user-empty")
	if err != nil {
		t.Fatalf("SumActiveBytes() ошибка: %v", err)
	}
	if total != 0 {
		t.Errorf("SumActiveBytes(пустой) = %d, хотели 0", total)
	}
}

func TestAssetListPagination(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewAssetRepository(pool)

	owner := "user-paging"
	const total = 5
	for i := 0; i < total; i++ {
		a := testAsset(owner)
		a.SizeBytes = int64((i + 1) * 1000)
		if err := repo.Create(ctx, a); err != nil {
			t.Fatalf("Create() ошибка: %v", err)
		}
	}

	filters := AssetListFilters{OwnerID: &owner}

	// Первая страница по size_bytes.
	page1, hasNext, err := repo.List(ctx, filters, Page{First: 2, OrderBy: AssetOrderBySizeBytes})
	if err != nil {
		t.Fatalf("List() ошибка: %v", err)
	}
	if len(page1) != 2 || !hasNext {
		t.Fatalf("List() = %d записей, hasNext=%v; хотели 2, true", len(page1), hasNext)
	}
	if page1[0].SizeBytes != 1000 || page1[1].SizeBytes != 2000 {
		t.Errorf("порядок сортировки: %d, %d", page1[0].SizeBytes, page1[1].SizeBytes)
	}

	// Вторая страница через курсор последней записи.
	after := Cursor{
		SortValue: AssetSortValue(page1[1], AssetOrderBySizeBytes),
		ID:        page1[1].ID,
	}
	page2, hasNext, err := repo.List(ctx, filters, Page{First: 2, After: &after, OrderBy: AssetOrderBySizeBytes})
	if err != nil {
		t.Fatalf("List(страница 2) ошибка: %v", err)
	}
	if len(page2) != 2 || !hasNext {
		t.Fatalf("List(страница 2) = %d записей, hasNext=%v; хотели 2, true", len(page2), hasNext)
	}
	if page2[0].SizeBytes != 3000 {
		t.Errorf("первая запись страницы 2: %d, хотели 3000", page2[0].SizeBytes)
	}

	// Последняя страница.
	after = Cursor{
		SortValue: AssetSortValue(page2[1], AssetOrderBySizeBytes),
		ID:        page2[1].ID,
	}
	page3, hasNext, err := repo.List(ctx, filters, Page{First: 2, After: &after, OrderBy: AssetOrderBySizeBytes})
	if err != nil {
		t.Fatalf("List(страница 3) ошибка: %v", err)
	}
	if len(page3) != 1 || hasNext {
		t.Errorf("List(страница 3) = %d записей, hasNext=%v; хотели 1, false", len(page3), hasNext)
	}

	// Count с фильтром.
	count, err := repo.Count(ctx, filters)
	if err != nil {
		t.Fatalf("Count() ошибка: %v", err)
	}
	if count != total {
		t.Errorf("Count() = %d, хотели %d", count, total)
	}

	// Недопустимая колонка сортировки.
	if _, _, err := repo.List(ctx, filters, Page{First: 2, OrderBy: "owner_id"}); err == nil {
		t.Error("List(owner_id) не вернул ошибку")
	}
}

// --- Тесты NamespaceRepository ---

func TestNamespaceUpsert(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewNamespaceRepository(pool)

	ns := &model.Namespace{
		Name:             "avatars",
		AllowedMimeTypes: []string{"image/png", "image/jpeg"},
		MaxSizeBytes:     5 * 1024 * 1024,
		Enabled:          true,
	}

	if err := repo.Upsert(ctx, ns); err != nil {
		t.Fatalf("Upsert() ошибка: %v", err)
	}
	if ns.CreatedAt.IsZero() {
		t.Error("CreatedAt не установлен")
	}

	// Повторный upsert обновляет правила.
	ns.MaxSizeBytes = 1024
	ns.Enabled = false
	if err := repo.Upsert(ctx, ns); err != nil {
		t.Fatalf("повторный Upsert() ошибка: %v", err)
	}

	got, err := repo.Get(ctx, "avatars")
	if err != nil {
		t.Fatalf("Get() ошибка: %v", err)
	}
	if got.MaxSizeBytes != 1024 || got.Enabled {
		t.Errorf("после обновления: MaxSizeBytes=%d, Enabled=%v", got.MaxSizeBytes, got.Enabled)
	}
	if len(got.AllowedMimeTypes) != 2 {
		t.Errorf("AllowedMimeTypes = %v", got.AllowedMimeTypes)
	}

	// Миграции создают namespace default.
	list, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() ошибка: %v", err)
	}
	found := false
	for _, n := range list {
		if n.Name == "default" {
			found = true
		}
	}
	if !found {
		t.Error("namespace default не найден")
	}
}

func TestNamespaceDeleteInUse(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	nsRepo := NewNamespaceRepository(pool)
	assetRepo := NewAssetRepository(pool)

	// На default ссылается asset — удаление запрещено.
	if err := assetRepo.Create(ctx, testAsset("user-ns")); err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}
	if err := nsRepo.Delete(ctx, "default"); !errors.Is(err, ErrConflict) {
		t.Errorf("Delete(используемый) = %v, хотели ErrConflict", err)
	}

	if err := nsRepo.Delete(ctx, "нет такого"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete(несуществующий) = %v, хотели ErrNotFound", err)
	}
}

// --- Тесты RBAC-репозиториев ---

func TestUserCRUD(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewUserRepository(pool)

	u := &model.User{
		ID:       uuid.New().String(),
		Username: "ivanov",
		Email:    "ivanov@example.com",
	}
	if err := repo.Create(ctx, u); err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}

	// Дублирующийся username.
	dup := &model.User{ID: uuid.New().String(), Username: "ivanov", Email: "x@example.com"}
	if err := repo.Create(ctx, dup); !errors.Is(err, ErrConflict) {
		t.Errorf("Create(дубликат) = %v, хотели ErrConflict", err)
	}

	// Update
	display := "Иванов И.И."
	u.DisplayName = &display
	if err := repo.Update(ctx, u); err != nil {
		t.Fatalf("Update() ошибка: %v", err)
	}
	got, err := repo.GetByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetByID() ошибка: %v", err)
	}
	if got.DisplayName == nil || *got.DisplayName != display {
		t.Errorf("DisplayName = %v, хотели %q", got.DisplayName, display)
	}

	// Delete
	if err := repo.Delete(ctx, u.ID); err != nil {
		t.Fatalf("Delete() ошибка: %v", err)
	}
	if _, err := repo.GetByID(ctx, u.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID(удалённый) = %v, хотели ErrNotFound", err)
	}
}

func TestEffectivePermissions(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()

	users := NewUserRepository(pool)
	groups := NewGroupRepository(pool)
	roles := NewRoleRepository(pool)
	perms := NewPermissionRepository(pool)
	membership := NewMembershipRepository(pool)

	u := &model.User{ID: uuid.New().String(), Username: "petrov", Email: "petrov@example.com"}
	if err := users.Create(ctx, u); err != nil {
		t.Fatalf("Create(user) ошибка: %v", err)
	}

	g1 := &model.Group{ID: uuid.New().String(), Name: "editors"}
	g2 := &model.Group{ID: uuid.New().String(), Name: "viewers"}
	role1 := &model.Role{ID: uuid.New().String(), Name: "editor"}
	role2 := &model.Role{ID: uuid.New().String(), Name: "viewer"}
	pWrite := &model.Permission{ID: uuid.New().String(), Name: "assets:write"}
	pRead := &model.Permission{ID: uuid.New().String(), Name: "assets:read"}

	for _, e := range []error{
		groups.Create(ctx, g1), groups.Create(ctx, g2),
		roles.Create(ctx, role1), roles.Create(ctx, role2),
		perms.Create(ctx, pWrite), perms.Create(ctx, pRead),
	} {
		if e != nil {
			t.Fatalf("подготовка данных: %v", e)
		}
	}

	// user → {editors, viewers}; editors → editor → {write, read};
	// viewers → viewer → {read}. Эффективно: {write, read} без дубликата read.
	steps := []error{
		membership.AddUserToGroup(ctx, u.ID, g1.ID),
		membership.AddUserToGroup(ctx, u.ID, g2.ID),
		membership.AssignRoleToGroup(ctx, g1.ID, role1.ID),
		membership.AssignRoleToGroup(ctx, g2.ID, role2.ID),
		membership.GrantPermissionToRole(ctx, role1.ID, pWrite.ID),
		membership.GrantPermissionToRole(ctx, role1.ID, pRead.ID),
		membership.GrantPermissionToRole(ctx, role2.ID, pRead.ID),
	}
	for _, e := range steps {
		if e != nil {
			t.Fatalf("настройка связей: %v", e)
		}
	}

	effective, err := membership.PermissionsForUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("PermissionsForUser() ошибка: %v", err)
	}
	if len(effective) != 2 {
		t.Fatalf("PermissionsForUser() = %d permissions, хотели 2", len(effective))
	}
	if effective[0].Name != "assets:read" || effective[1].Name != "assets:write" {
		t.Errorf("permissions = %q, %q", effective[0].Name, effective[1].Name)
	}

	// Повторное добавление связи — no-op.
	if err := membership.AddUserToGroup(ctx, u.ID, g1.ID); err != nil {
		t.Errorf("повторный AddUserToGroup() = %v", err)
	}

	// Несуществующая группа — ErrNotFound по внешнему ключу.
	if err := membership.AddUserToGroup(ctx, u.ID, uuid.New().String()); !errors.Is(err, ErrNotFound) {
		t.Errorf("AddUserToGroup(нет группы) = %v, хотели ErrNotFound", err)
	}

	// Удаление связи сужает эффективные permissions.
	if err := membership.RemoveUserFromGroup(ctx, u.ID, g1.ID); err != nil {
		t.Fatalf("RemoveUserFromGroup() ошибка: %v", err)
	}
	effective, err = membership.PermissionsForUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("PermissionsForUser() ошибка: %v", err)
	}
	if len(effective) != 1 || effective[0].Name != "assets:read" {
		t.Errorf("после удаления связи: %d permissions", len(effective))
	}

	// Каскад: удаление группы убирает её из цепочки.
	if err := groups.Delete(ctx, g2.ID); err != nil {
		t.Fatalf("Delete(group) ошибка: %v", err)
	}
	effective, err = membership.PermissionsForUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("PermissionsForUser() ошибка: %v", err)
	}
	if len(effective) != 0 {
		t.Errorf("после удаления группы: %d permissions, хотели 0", len(effective))
	}
}

func TestGroupListPagination(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewGroupRepository(pool)

	for _, name := range []string{"alpha", "beta", "gamma"} {
		g := &model.Group{ID: uuid.New().String(), Name: name}
		if err := repo.Create(ctx, g); err != nil {
			t.Fatalf("Create() ошибка: %v", err)
		}
	}

	page1, hasNext, err := repo.List(ctx, Page{First: 2, OrderBy: NameOrderByName})
	if err != nil {
		t.Fatalf("List() ошибка: %v", err)
	}
	if len(page1) != 2 || !hasNext {
		t.Fatalf("List() = %d записей, hasNext=%v", len(page1), hasNext)
	}
	if page1[0].Name != "alpha" || page1[1].Name != "beta" {
		t.Errorf("порядок: %q, %q", page1[0].Name, page1[1].Name)
	}

	after := Cursor{SortValue: NameSortValue(page1[1].Name, page1[1].CreatedAt, NameOrderByName), ID: page1[1].ID}
	page2, hasNext, err := repo.List(ctx, Page{First: 2, After: &after, OrderBy: NameOrderByName})
	if err != nil {
		t.Fatalf("List(страница 2) ошибка: %v", err)
	}
	if len(page2) != 1 || hasNext {
		t.Fatalf("List(страница 2) = %d записей, hasNext=%v", len(page2), hasNext)
	}
	if page2[0].Name != "gamma" {
		t.Errorf("страница 2: %q", page2[0].Name)
	}

	count, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("Count() ошибка: %v", err)
	}
	if count != 3 {
		t.Errorf("Count() = %d, хотели 3", count)
	}
}

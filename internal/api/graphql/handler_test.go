package graphql

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/graphql-go/graphql"

	apierrors "github.com/avkuznetsov/assethub/internal/api/errors"
	"github.com/avkuznetsov/assethub/internal/api/middleware"
	"github.com/avkuznetsov/assethub/internal/domain/model"
	"github.com/avkuznetsov/assethub/internal/domain/rbac"
	"github.com/avkuznetsov/assethub/internal/repository"
	"github.com/avkuznetsov/assethub/internal/service"
	"github.com/avkuznetsov/assethub/internal/storage"
)

// --- In-memory фейки для выполнения схемы без БД и хранилища ---

type stubAssetRepo struct {
	assets      map[string]*model.Asset
	nextID      int
	hourlyCount int
	dailyCount  int
	usedBytes   int64
}

func newStubAssetRepo() *stubAssetRepo {
	return &stubAssetRepo{assets: make(map[string]*model.Asset)}
}

func (r *stubAssetRepo) Create(_ context.Context, a *model.Asset) error {
	r.nextID++
	if a.ID == "" {
		a.ID = fmt.Sprintf("asset-%d", r.nextID)
	}
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now.Add(time.Duration(r.nextID) * time.Millisecond)
	}
	a.UpdatedAt = a.CreatedAt
	copied := *a
	r.assets[a.ID] = &copied
	return nil
}

func (r *stubAssetRepo) GetByID(_ context.Context, id string) (*model.Asset, error) {
	a, ok := r.assets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *a
	return &copied, nil
}

func (r *stubAssetRepo) GetByIdempotencyKey(_ context.Context, ownerID, key string) (*model.Asset, error) {
	for _, a := range r.assets {
		if a.OwnerID == ownerID && a.IdempotencyKey != nil && *a.IdempotencyKey == key {
			copied := *a
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *stubAssetRepo) matches(a *model.Asset, f repository.AssetListFilters) bool {
	if f.OwnerID != nil && a.OwnerID != *f.OwnerID {
		return false
	}
	if f.Namespace != nil && a.Namespace != *f.Namespace {
		return false
	}
	if f.Status != nil && a.Status != *f.Status {
		return false
	}
	return true
}

func (r *stubAssetRepo) List(_ context.Context, filters repository.AssetListFilters, page repository.Page) ([]*model.Asset, bool, error) {
	var items []*model.Asset
	for _, a := range r.assets {
		if r.matches(a, filters) {
			copied := *a
			items = append(items, &copied)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if page.Desc {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	if page.After != nil {
		idx := -1
		for i, a := range items {
			if a.ID == page.After.ID {
				idx = i
				break
			}
		}
		items = items[idx+1:]
	}
	hasNext := len(items) > page.First
	if hasNext {
		items = items[:page.First]
	}
	return items, hasNext, nil
}

func (r *stubAssetRepo) Count(_ context.Context, filters repository.AssetListFilters) (int, error) {
	count := 0
	for _, a := range r.assets {
		if r.matches(a, filters) {
			count++
		}
	}
	return count, nil
}

func (r *stubAssetRepo) SetStatusFromPending(_ context.Context, id, status string) (*model.Asset, error) {
	a, ok := r.assets[id]
	if !ok || a.Status != model.AssetStatusPending {
		return nil, repository.ErrNotFound
	}
	a.Status = status
	a.UploadURL = nil
	a.UploadExpiresAt = nil
	a.UpdatedAt = time.Now().UTC()
	copied := *a
	return &copied, nil
}

func (r *stubAssetRepo) Delete(_ context.Context, id string) error {
	if _, ok := r.assets[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.assets, id)
	return nil
}

func (r *stubAssetRepo) CountUploadsSince(_ context.Context, _ string, since time.Time) (int, error) {
	// Часовое окно отличаем от суточного по давности since.
	if time.Since(since) < 2*time.Hour {
		return r.hourlyCount, nil
	}
	return r.dailyCount, nil
}

func (r *stubAssetRepo) SumActiveBytes(_ context.Context, _ string) (int64, error) {
	return r.usedBytes, nil
}

type stubNamespaceRepo struct {
	namespaces map[string]*model.Namespace
}

func (r *stubNamespaceRepo) Get(_ context.Context, name string) (*model.Namespace, error) {
	ns, ok := r.namespaces[name]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *ns
	return &copied, nil
}

func (r *stubNamespaceRepo) List(_ context.Context) ([]*model.Namespace, error) {
	var result []*model.Namespace
	for _, ns := range r.namespaces {
		copied := *ns
		result = append(result, &copied)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (r *stubNamespaceRepo) Upsert(_ context.Context, ns *model.Namespace) error {
	now := time.Now().UTC()
	if existing, ok := r.namespaces[ns.Name]; ok {
		ns.CreatedAt = existing.CreatedAt
	} else {
		ns.CreatedAt = now
	}
	ns.UpdatedAt = now
	copied := *ns
	r.namespaces[ns.Name] = &copied
	return nil
}

func (r *stubNamespaceRepo) Delete(_ context.Context, name string) error {
	if _, ok := r.namespaces[name]; !ok {
		return repository.ErrNotFound
	}
	delete(r.namespaces, name)
	return nil
}

type stubStore struct {
	objects map[string]int64
}

func (s *stubStore) PresignPut(_ context.Context, key, _ string, ttl time.Duration) (string, time.Time, error) {
	return "https://storage.test/assets/" + key + "?signed=1", time.Now().UTC().Add(ttl), nil
}

func (s *stubStore) Stat(_ context.Context, key string) (*storage.ObjectInfo, error) {
	size, ok := s.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return &storage.ObjectInfo{SizeBytes: size}, nil
}

func (s *stubStore) Delete(_ context.Context, key string) error {
	delete(s.objects, key)
	return nil
}

func (s *stubStore) Bucket() string { return "assets" }
func (s *stubStore) Region() string { return "us-east-1" }

// --- Обвязка ---

type schemaFixture struct {
	schema graphql.Schema
	repo   *stubAssetRepo
	store  *stubStore
}

func newSchemaFixture(t *testing.T) *schemaFixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	repo := newStubAssetRepo()
	nsRepo := &stubNamespaceRepo{namespaces: map[string]*model.Namespace{
		"images": {
			Name:             "images",
			AllowedMimeTypes: []string{"image/png", "image/jpeg"},
			MaxSizeBytes:     10 << 20,
			Enabled:          true,
		},
	}}
	store := &stubStore{objects: make(map[string]int64)}

	nsCache := service.NewCache[*model.Namespace]("namespaces_schema_test", 16, time.Minute)
	namespaces := service.NewNamespaceService(nsRepo, nsCache, logger)
	limits := service.NewRateLimitService(repo, 10, 100, 1<<20, logger)
	assets := service.NewAssetService(repo, namespaces, limits, store, 15*time.Minute, logger)

	resolver := NewResolver(assets, nil, namespaces, limits, logger)
	schema, err := NewSchema(resolver)
	if err != nil {
		t.Fatalf("NewSchema() вернула ошибку: %v", err)
	}
	return &schemaFixture{schema: schema, repo: repo, store: store}
}

// execAs выполняет запрос с claims указанной роли (пустая роль — без claims).
func (f *schemaFixture) execAs(role, query string, vars map[string]interface{}) *graphql.Result {
	ctx := context.Background()
	if role != "" {
		ctx = context.WithValue(ctx, middleware.ContextKeyClaims, &middleware.AuthClaims{
			Subject: "tester",
			Role:    role,
		})
	}
	return graphql.Do(graphql.Params{
		Schema:         f.schema,
		RequestString:  query,
		VariableValues: vars,
		Context:        ctx,
	})
}

// errorCode возвращает extensions.code первой ошибки результата.
func errorCode(t *testing.T, result *graphql.Result) string {
	t.Helper()
	if len(result.Errors) == 0 {
		t.Fatalf("ожидалась ошибка GraphQL, получен результат без ошибок: %+v", result.Data)
	}
	code, _ := result.Errors[0].Extensions["code"].(string)
	return code
}

// dataField извлекает поле верхнего уровня из result.Data.
func dataField(t *testing.T, result *graphql.Result, field string) map[string]interface{} {
	t.Helper()
	if len(result.Errors) > 0 {
		t.Fatalf("неожиданные ошибки GraphQL: %v", result.Errors)
	}
	data, ok := result.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("result.Data имеет тип %T, хотели map", result.Data)
	}
	value, ok := data[field].(map[string]interface{})
	if !ok {
		t.Fatalf("поле %q имеет тип %T, хотели map", field, data[field])
	}
	return value
}

const initiateUploadMutation = `
mutation Initiate($input: InitiateUploadInput!) {
  initiateUpload(input: $input) {
    id
    status
    uploadUrl
    sizeBytes
    namespace
  }
}`

func uploadVars(namespace string) map[string]interface{} {
	return map[string]interface{}{
		"input": map[string]interface{}{
			"ownerId":   "owner-1",
			"namespace": namespace,
			"filename":  "cat.png",
			"mimeType":  "image/png",
			"sizeBytes": 2048,
		},
	}
}

// --- Тесты ---

func TestSchemaInitiateUpload(t *testing.T) {
	f := newSchemaFixture(t)

	result := f.execAs(rbac.RoleAdmin, initiateUploadMutation, uploadVars("images"))
	asset := dataField(t, result, "initiateUpload")

	if asset["status"] != "PENDING" {
		t.Errorf("status = %v, хотели PENDING", asset["status"])
	}
	uploadURL, _ := asset["uploadUrl"].(string)
	if uploadURL == "" {
		t.Error("uploadUrl пустой, хотели presigned URL")
	}
	if size, _ := asset["sizeBytes"].(int64); size != 2048 {
		t.Errorf("sizeBytes = %v, хотели 2048", asset["sizeBytes"])
	}
}

func TestSchemaConfirmUpload(t *testing.T) {
	f := newSchemaFixture(t)

	result := f.execAs(rbac.RoleAdmin, initiateUploadMutation, uploadVars("images"))
	created := dataField(t, result, "initiateUpload")
	id, _ := created["id"].(string)

	// Объект "загружен" с заявленным размером.
	stored := f.repo.assets[id]
	f.store.objects[stored.StorageKey] = 2048

	confirm := f.execAs(rbac.RoleAdmin, `
mutation Confirm($id: ID!) {
  confirmUpload(assetId: $id) { id status uploadUrl }
}`, map[string]interface{}{"id": id})
	confirmed := dataField(t, confirm, "confirmUpload")

	if confirmed["status"] != "READY" {
		t.Errorf("status = %v, хотели READY", confirmed["status"])
	}
	if _, ok := confirmed["uploadUrl"].(string); ok {
		t.Error("uploadUrl должен быть очищен после подтверждения")
	}
}

func TestSchemaAssetNotFound(t *testing.T) {
	f := newSchemaFixture(t)

	result := f.execAs(rbac.RoleReadonly, `{ asset(id: "missing") { id } }`, nil)
	if code := errorCode(t, result); code != apierrors.CodeNotFound {
		t.Errorf("extensions.code = %q, хотели %q", code, apierrors.CodeNotFound)
	}
}

func TestSchemaValidationCode(t *testing.T) {
	f := newSchemaFixture(t)

	result := f.execAs(rbac.RoleAdmin, initiateUploadMutation, uploadVars("no-such-namespace"))
	if code := errorCode(t, result); code != apierrors.CodeValidationError {
		t.Errorf("extensions.code = %q, хотели %q", code, apierrors.CodeValidationError)
	}
}

func TestSchemaRateLimitedCode(t *testing.T) {
	f := newSchemaFixture(t)
	f.repo.hourlyCount = 10 // лимит фикстуры

	result := f.execAs(rbac.RoleAdmin, initiateUploadMutation, uploadVars("images"))
	if code := errorCode(t, result); code != apierrors.CodeRateLimited {
		t.Errorf("extensions.code = %q, хотели %q", code, apierrors.CodeRateLimited)
	}
}

func TestSchemaMutationForbiddenForReadonly(t *testing.T) {
	f := newSchemaFixture(t)

	result := f.execAs(rbac.RoleReadonly, `
mutation { deleteAsset(assetId: "any") }`, nil)
	if code := errorCode(t, result); code != apierrors.CodeForbidden {
		t.Errorf("extensions.code = %q, хотели %q", code, apierrors.CodeForbidden)
	}
}

func TestSchemaUnauthorizedWithoutClaims(t *testing.T) {
	f := newSchemaFixture(t)

	result := f.execAs("", `{ namespaces { name } }`, nil)
	if code := errorCode(t, result); code != apierrors.CodeUnauthorized {
		t.Errorf("extensions.code = %q, хотели %q", code, apierrors.CodeUnauthorized)
	}
}

func TestSchemaAssetsConnection(t *testing.T) {
	f := newSchemaFixture(t)

	for i := 0; i < 3; i++ {
		result := f.execAs(rbac.RoleAdmin, initiateUploadMutation, uploadVars("images"))
		dataField(t, result, "initiateUpload")
	}

	const query = `
query Assets($first: Int, $after: String) {
  assets(first: $first, after: $after, orderBy: CREATED_AT, order: ASC) {
    edges { cursor node { id } }
    pageInfo { hasNextPage endCursor }
    totalCount
  }
}`

	result := f.execAs(rbac.RoleReadonly, query, map[string]interface{}{"first": 2})
	conn := dataField(t, result, "assets")

	edges, _ := conn["edges"].([]interface{})
	if len(edges) != 2 {
		t.Fatalf("len(edges) = %d, хотели 2", len(edges))
	}
	if conn["totalCount"] != 3 {
		t.Errorf("totalCount = %v, хотели 3", conn["totalCount"])
	}
	pageInfo, _ := conn["pageInfo"].(map[string]interface{})
	if pageInfo["hasNextPage"] != true {
		t.Error("hasNextPage = false, хотели true")
	}

	// Вторая страница по endCursor.
	endCursor, _ := pageInfo["endCursor"].(string)
	result = f.execAs(rbac.RoleReadonly, query, map[string]interface{}{"first": 2, "after": endCursor})
	conn = dataField(t, result, "assets")

	edges, _ = conn["edges"].([]interface{})
	if len(edges) != 1 {
		t.Fatalf("len(edges) на второй странице = %d, хотели 1", len(edges))
	}
	pageInfo, _ = conn["pageInfo"].(map[string]interface{})
	if pageInfo["hasNextPage"] != false {
		t.Error("hasNextPage на последней странице = true, хотели false")
	}
}

func TestSchemaUpsertNamespace(t *testing.T) {
	f := newSchemaFixture(t)

	result := f.execAs(rbac.RoleAdmin, `
mutation Upsert($input: NamespaceInput!) {
  upsertNamespace(input: $input) { name maxSizeBytes enabled allowedMimeTypes }
}`, map[string]interface{}{
		"input": map[string]interface{}{
			"name":             "docs",
			"allowedMimeTypes": []interface{}{"application/pdf"},
			"maxSizeBytes":     50 << 20,
			"enabled":          true,
		},
	})
	ns := dataField(t, result, "upsertNamespace")

	if ns["name"] != "docs" {
		t.Errorf("name = %v, хотели docs", ns["name"])
	}
	if size, _ := ns["maxSizeBytes"].(int64); size != 50<<20 {
		t.Errorf("maxSizeBytes = %v, хотели %d", ns["maxSizeBytes"], 50<<20)
	}
}

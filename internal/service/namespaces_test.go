package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/avkuznetsov/assethub/internal/domain/model"
)

func newNamespaceFixture(t *testing.T) (*NamespaceService, *fakeNamespaceRepo) {
	t.Helper()

	repo := &fakeNamespaceRepo{namespaces: map[string]*model.Namespace{
		"docs": {Name: "docs", MaxSizeBytes: 1024, Enabled: true},
	}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewNamespaceService(repo, NewCache[*model.Namespace]("ns-svc-test", 16, time.Minute), logger)
	return svc, repo
}

func TestNamespaceGetCached(t *testing.T) {
	svc, repo := newNamespaceFixture(t)
	ctx := context.Background()

	if _, err := svc.Get(ctx, "docs"); err != nil {
		t.Fatalf("Get() ошибка: %v", err)
	}
	if _, err := svc.Get(ctx, "docs"); err != nil {
		t.Fatalf("повторный Get() ошибка: %v", err)
	}

	// Второе чтение из кэша, репозиторий вызван один раз.
	if repo.gets != 1 {
		t.Errorf("обращений к репозиторию = %d, хотели 1", repo.gets)
	}

	if _, err := svc.Get(ctx, "нет-такого"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(несуществующий) = %v, хотели ErrNotFound", err)
	}
}

func TestNamespaceUpsertInvalidatesCache(t *testing.T) {
	svc, repo := newNamespaceFixture(t)
	ctx := context.Background()

	// Прогреваем кэш.
	if _, err := svc.Get(ctx, "docs"); err != nil {
		t.Fatalf("Get() ошибка: %v", err)
	}

	// Обновляем правила.
	ns := &model.Namespace{Name: "docs", MaxSizeBytes: 4096, Enabled: false}
	if _, err := svc.Upsert(ctx, ns); err != nil {
		t.Fatalf("Upsert() ошибка: %v", err)
	}

	// Следующее чтение идёт мимо кэша и видит новые правила.
	got, err := svc.Get(ctx, "docs")
	if err != nil {
		t.Fatalf("Get() после Upsert ошибка: %v", err)
	}
	if got.MaxSizeBytes != 4096 || got.Enabled {
		t.Errorf("после Upsert: MaxSizeBytes=%d, Enabled=%v", got.MaxSizeBytes, got.Enabled)
	}
	if repo.gets != 2 {
		t.Errorf("обращений к репозиторию = %d, хотели 2", repo.gets)
	}
}

func TestNamespaceUpsertValidation(t *testing.T) {
	svc, _ := newNamespaceFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		ns   *model.Namespace
	}{
		{name: "пустое имя", ns: &model.Namespace{Name: "  ", MaxSizeBytes: 1024}},
		{name: "нулевой max_size_bytes", ns: &model.Namespace{Name: "x", MaxSizeBytes: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Upsert(ctx, tt.ns); !errors.Is(err, ErrValidation) {
				t.Errorf("Upsert() = %v, хотели ErrValidation", err)
			}
		})
	}
}

func TestNamespaceDelete(t *testing.T) {
	svc, _ := newNamespaceFixture(t)
	ctx := context.Background()

	if err := svc.Delete(ctx, "docs"); err != nil {
		t.Fatalf("Delete() ошибка: %v", err)
	}
	if _, err := svc.Get(ctx, "docs"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(удалённый) = %v, хотели ErrNotFound", err)
	}
	if err := svc.Delete(ctx, "docs"); !errors.Is(err, ErrNotFound) {
		t.Errorf("повторный Delete() = %v, хотели ErrNotFound", err)
	}
}

// namespaces.go — сервис управления namespaces.
// Правила валидации загрузок читаются на каждый initiateUpload,
// поэтому кэшируются in-process с TTL.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/avkuznetsov/assethub/internal/domain/model"
	"github.com/avkuznetsov/assethub/internal/repository"
)

// NamespaceService — сервис управления namespaces.
type NamespaceService struct {
	repo   repository.NamespaceRepository
	cache  *Cache[*model.Namespace]
	logger *slog.Logger
}

// NewNamespaceService создаёт сервис namespaces.
func NewNamespaceService(repo repository.NamespaceRepository, cache *Cache[*model.Namespace], logger *slog.Logger) *NamespaceService {
	return &NamespaceService{
		repo:   repo,
		cache:  cache,
		logger: logger.With(slog.String("component", "namespace_service")),
	}
}

// Get возвращает namespace по имени, сначала из кэша.
func (s *NamespaceService) Get(ctx context.Context, name string) (*model.Namespace, error) {
	if ns, ok := s.cache.Get(name); ok {
		return ns, nil
	}

	ns, err := s.repo.Get(ctx, name)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: namespace %q", ErrNotFound, name)
		}
		return nil, err
	}

	s.cache.Set(name, ns)
	return ns, nil
}

// List возвращает все namespaces.
func (s *NamespaceService) List(ctx context.Context) ([]*model.Namespace, error) {
	return s.repo.List(ctx)
}

// Upsert создаёт или обновляет namespace и инвалидирует кэш.
func (s *NamespaceService) Upsert(ctx context.Context, ns *model.Namespace) (*model.Namespace, error) {
	ns.Name = strings.TrimSpace(ns.Name)
	if ns.Name == "" {
		return nil, fmt.Errorf("%w: имя namespace не может быть пустым", ErrValidation)
	}
	if ns.MaxSizeBytes <= 0 {
		return nil, fmt.Errorf("%w: max_size_bytes должен быть положительным", ErrValidation)
	}

	if err := s.repo.Upsert(ctx, ns); err != nil {
		return nil, err
	}

	s.cache.Delete(ns.Name)
	s.logger.Info("Namespace сохранён",
		slog.String("namespace", ns.Name),
		slog.Int64("max_size_bytes", ns.MaxSizeBytes),
		slog.Bool("enabled", ns.Enabled))
	return ns, nil
}

// Delete удаляет namespace и инвалидирует кэш.
// Namespace, на который ссылаются assets, удалить нельзя.
func (s *NamespaceService) Delete(ctx context.Context, name string) error {
	err := s.repo.Delete(ctx, name)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: namespace %q", ErrNotFound, name)
		}
		if errors.Is(err, repository.ErrConflict) {
			return fmt.Errorf("%w: namespace %q используется assets", ErrConflict, name)
		}
		return err
	}

	s.cache.Delete(name)
	s.logger.Info("Namespace удалён", slog.String("namespace", name))
	return nil
}

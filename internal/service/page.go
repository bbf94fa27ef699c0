// page.go — нормализация параметров пагинации GraphQL-connections.
package service

import (
	"fmt"

	"github.com/avkuznetsov/assethub/internal/repository"
)

// Пределы размера страницы.
const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ListParams — параметры пагинации из GraphQL-запроса.
type ListParams struct {
	// First — запрошенный размер страницы (nil — значение по умолчанию)
	First *int
	// After — курсор предыдущей страницы (nil — с начала)
	After *string
	// OrderBy — колонка сортировки (пустая — по умолчанию для сущности)
	OrderBy string
	// Desc — сортировка по убыванию
	Desc bool
}

// buildPage нормализует параметры в repository.Page.
// Размер страницы ограничивается сверху, некорректный курсор — ErrValidation.
func buildPage(p ListParams) (repository.Page, error) {
	first := defaultPageSize
	if p.First != nil {
		if *p.First <= 0 {
			return repository.Page{}, fmt.Errorf("%w: first должен быть положительным", ErrValidation)
		}
		first = *p.First
		if first > maxPageSize {
			first = maxPageSize
		}
	}

	page := repository.Page{
		First:   first,
		OrderBy: p.OrderBy,
		Desc:    p.Desc,
	}

	if p.After != nil && *p.After != "" {
		cursor, err := repository.DecodeCursor(*p.After)
		if err != nil {
			return repository.Page{}, fmt.Errorf("%w: %s", ErrValidation, err)
		}
		page.After = &cursor
	}

	return page, nil
}

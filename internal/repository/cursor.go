// cursor.go — keyset-пагинация для relay-style connections.
// Курсор кодирует пару (значение колонки сортировки, id) в base64.
// Пагинация только вперёд (first/after), что соответствует GraphQL-схеме.
package repository

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// Cursor — позиция в отсортированной выборке.
type Cursor struct {
	// SortValue — строковое представление значения колонки сортировки
	SortValue string
	// ID — id записи (tie-breaker при равных значениях сортировки)
	ID string
}

// Page — параметры страницы выборки.
type Page struct {
	// First — размер страницы (уже нормализован сервисным слоем)
	First int
	// After — курсор, после которого начинается страница (nil — с начала)
	After *Cursor
	// OrderBy — колонка сортировки (валидируется репозиторием)
	OrderBy string
	// Desc — сортировка по убыванию
	Desc bool
}

// EncodeCursor кодирует курсор в непрозрачную base64-строку.
func EncodeCursor(c Cursor) string {
	raw := c.SortValue + "|" + c.ID
	return base64.StdEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor разбирает base64-строку курсора.
// Возвращает ошибку для некорректного формата.
func DecodeCursor(s string) (Cursor, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return Cursor{}, fmt.Errorf("некорректный курсор: %w", err)
	}

	// SortValue может содержать '|' (например, RFC3339 не содержит,
	// но имена — могут), поэтому разделяем по последнему вхождению.
	idx := strings.LastIndexByte(string(raw), '|')
	if idx < 0 {
		return Cursor{}, fmt.Errorf("некорректный курсор: отсутствует разделитель")
	}

	return Cursor{
		SortValue: string(raw[:idx]),
		ID:        string(raw[idx+1:]),
	}, nil
}

// keysetCondition строит SQL-условие продолжения keyset-пагинации
// для пары (sortCol, idCol) и направления сортировки.
// Возвращает условие вида "(sort_col, id) > ($1, $2)" и аргументы.
func keysetCondition(sortCol, idCol string, after Cursor, desc bool, sortArg any, startArg int) (string, []any) {
	op := ">"
	if desc {
		op = "<"
	}
	cond := fmt.Sprintf("(%s, %s) %s ($%d, $%d)", sortCol, idCol, op, startArg, startArg+1)
	return cond, []any{sortArg, after.ID}
}

// orderClause строит ORDER BY для keyset-пагинации.
func orderClause(sortCol, idCol string, desc bool) string {
	dir := "ASC"
	if desc {
		dir = "DESC"
	}
	return fmt.Sprintf("ORDER BY %s %s, %s %s", sortCol, dir, idCol, dir)
}

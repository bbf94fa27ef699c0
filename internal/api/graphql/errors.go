// errors.go — маппинг ошибок сервисного слоя в GraphQL-ошибки.
// Каждая ошибка операции несёт машиночитаемый код в extensions.code,
// тот же набор кодов, что и REST-формат api/errors.
package graphql

import (
	"errors"

	apierrors "github.com/avkuznetsov/assethub/internal/api/errors"
	"github.com/avkuznetsov/assethub/internal/service"
)

// opError — ошибка GraphQL-операции с кодом в extensions.
// Реализует gqlerrors.ExtendedError.
type opError struct {
	code    string
	message string
}

func (e *opError) Error() string { return e.message }

// Extensions возвращает extensions для GraphQL-ответа.
func (e *opError) Extensions() map[string]interface{} {
	return map[string]interface{}{"code": e.code}
}

func newOpError(code, message string) *opError {
	return &opError{code: code, message: message}
}

// mapServiceError переводит sentinel-ошибки сервисного слоя в opError
// с соответствующим кодом. Неопознанные ошибки — INTERNAL_ERROR
// с нейтральным сообщением (детали остаются в логах).
func mapServiceError(err error) *opError {
	switch {
	case errors.Is(err, service.ErrValidation):
		return newOpError(apierrors.CodeValidationError, err.Error())
	case errors.Is(err, service.ErrNotFound):
		return newOpError(apierrors.CodeNotFound, err.Error())
	case errors.Is(err, service.ErrConflict):
		return newOpError(apierrors.CodeConflict, err.Error())
	case errors.Is(err, service.ErrRateLimited):
		return newOpError(apierrors.CodeRateLimited, err.Error())
	case errors.Is(err, service.ErrQuotaExceeded):
		return newOpError(apierrors.CodeQuotaExceeded, err.Error())
	case errors.Is(err, service.ErrStorageUnavailable):
		return newOpError(apierrors.CodeStorageUnavailable, err.Error())
	default:
		return newOpError(apierrors.CodeInternalError, "внутренняя ошибка сервера")
	}
}

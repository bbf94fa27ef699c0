// handler.go — HTTP-обработчик GraphQL endpoint.
// Принимает POST /graphql с телом {query, variables, operationName},
// выполняет запрос и пишет стандартный GraphQL-ответ {data, errors}.
package graphql

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/graphql-go/graphql"

	apierrors "github.com/avkuznetsov/assethub/internal/api/errors"
	"github.com/avkuznetsov/assethub/internal/api/middleware"
)

// maxRequestBody — лимит размера тела запроса (1 MiB).
const maxRequestBody = 1 << 20

// Handler — HTTP-обработчик GraphQL-запросов.
type Handler struct {
	schema graphql.Schema
	logger *slog.Logger
}

// NewHandler создаёт обработчик GraphQL endpoint.
func NewHandler(schema graphql.Schema, logger *slog.Logger) *Handler {
	return &Handler{
		schema: schema,
		logger: logger.With(slog.String("component", "graphql_handler")),
	}
}

// graphqlRequest — тело POST-запроса.
type graphqlRequest struct {
	Query         string                 `json:"query"`
	Variables     map[string]interface{} `json:"variables"`
	OperationName string                 `json:"operationName"`
}

// ServeHTTP обрабатывает POST /graphql.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		apierrors.WriteError(w, http.StatusMethodNotAllowed, apierrors.CodeValidationError,
			"поддерживается только POST")
		return
	}

	var req graphqlRequest
	body := http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "некорректное тело запроса: ожидается JSON {query, variables}")
		return
	}
	if req.Query == "" {
		apierrors.ValidationError(w, "поле query обязательно")
		return
	}

	result := graphql.Do(graphql.Params{
		Schema:         h.schema,
		RequestString:  req.Query,
		VariableValues: req.Variables,
		OperationName:  req.OperationName,
		Context:        r.Context(),
	})

	status := "ok"
	if len(result.Errors) > 0 {
		status = "error"
		h.logger.Warn("GraphQL операция завершилась с ошибками",
			slog.String("operation", req.OperationName),
			slog.Int("error_count", len(result.Errors)),
		)
	}
	middleware.ObserveGraphQLOperation(req.OperationName, status)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(result); err != nil {
		h.logger.Error("не удалось записать GraphQL-ответ", slog.String("error", err.Error()))
	}
}

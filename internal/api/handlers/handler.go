// handler.go — основной обработчик HTTP API реестра.
// Объединяет доменные обработчики и делегирует запросы в сервисный слой.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apierrors "github.com/uyinene-ledger/registry/internal/api/errors"
	"github.com/uyinene-ledger/registry/internal/ipfs"
	"github.com/uyinene-ledger/registry/internal/service"
)

// APIHandler — основной обработчик API реестра.
type APIHandler struct {
	health   *HealthHandler
	registry *service.RegistryService
	admin    *service.AdminService
	storage  *ipfs.Client
	logger   *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(
	health *HealthHandler,
	registry *service.RegistryService,
	admin *service.AdminService,
	storage *ipfs.Client,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		health:   health,
		registry: registry,
		admin:    admin,
		storage:  storage,
		logger:   logger.With(slog.String("component", "api_handler")),
	}
}

// HealthLive — liveness probe (делегируется в HealthHandler).
func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

// HealthReady — readiness probe (делегируется в HealthHandler).
func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// GetMetrics — Prometheus метрики (делегируется в HealthHandler).
func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.health.GetMetrics(w, r)
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeServiceError маппит ошибку сервисного слоя в HTTP-ответ.
// Неизвестные ошибки логируются и возвращаются как 500.
func (h *APIHandler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		apierrors.ValidationError(w, err.Error())
	case errors.Is(err, service.ErrInvalidRole):
		apierrors.ValidationError(w, err.Error())
	case errors.Is(err, service.ErrInvalidRecipient):
		apierrors.ValidationError(w, err.Error())
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, err.Error())
	case errors.Is(err, service.ErrDeleted):
		apierrors.Gone(w, err.Error())
	case errors.Is(err, service.ErrUnauthorized):
		apierrors.Forbidden(w, err.Error())
	case errors.Is(err, service.ErrNotOwner):
		apierrors.Forbidden(w, err.Error())
	case errors.Is(err, service.ErrDuplicateShare):
		apierrors.Conflict(w, err.Error())
	case errors.Is(err, service.ErrAlreadyDeleted):
		apierrors.Conflict(w, err.Error())
	case errors.Is(err, service.ErrPaused):
		apierrors.RegistryPaused(w, err.Error())
	default:
		h.logger.Error("Внутренняя ошибка обработки запроса",
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "внутренняя ошибка сервера")
	}
}

package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/razmetka/server/internal/models"
	"github.com/razmetka/server/internal/services"
)

// writeJSON сериализует полезную нагрузку в ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("[Handlers] Ошибка кодирования JSON-ответа: %v", err)
	}
}

// lockConflictResponse - полезная нагрузка ответа 423 Locked.
type lockConflictResponse struct {
	Error        string    `json:"error"`
	LockedBy     int64     `json:"locked_by,omitempty"`
	LockedByName string    `json:"locked_by_name,omitempty"`
	ExpiresAt    time.Time `json:"expires_at,omitzero"`
}

// writeServiceError транслирует ошибку сервисного слоя в HTTP-ответ.
// Конфликты блокировки и версий уходят со структурированным JSON-телом,
// чтобы клиент мог показать держателя или перечитать запись.
func writeServiceError(w http.ResponseWriter, err error) {
	var lockErr *services.LockConflictError
	if errors.As(err, &lockErr) {
		writeJSON(w, http.StatusLocked, lockConflictResponse{
			Error:        lockErr.Error(),
			LockedBy:     lockErr.LockedBy,
			LockedByName: lockErr.LockedByName,
			ExpiresAt:    lockErr.ExpiresAt,
		})
		return
	}

	var verErr *services.VersionConflictError
	if errors.As(err, &verErr) {
		writeJSON(w, http.StatusConflict, models.VersionConflictResponse{
			Error:            verErr.Error(),
			CurrentVersion:   verErr.CurrentVersion,
			RequestedVersion: verErr.RequestedVersion,
			LastModifiedBy:   verErr.LastModifiedBy,
			LastModifiedAt:   verErr.LastModifiedAt,
		})
		return
	}

	var valErr *services.ValidationError
	if errors.As(err, &valErr) {
		http.Error(w, valErr.Error(), http.StatusBadRequest)
		return
	}

	switch {
	case errors.Is(err, services.ErrAnnotationNotFound),
		errors.Is(err, services.ErrVersionNotFound),
		errors.Is(err, services.ErrProjectNotFound),
		errors.Is(err, services.ErrImageNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, services.ErrVersionNumberTaken):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		log.Printf("[Handlers] Внутренняя ошибка: %v", err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
	}
}

// pathID извлекает числовой параметр маршрута chi.
// Возвращает false, если параметр отсутствует или не является положительным числом.
func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// queryInt извлекает необязательный целочисленный query-параметр.
// Возвращает false, если параметр отсутствует или не является числом.
func queryInt(r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

package handlers

import (
	"log"
	"net/http"

	"github.com/razmetka/server/internal/middleware"
	"github.com/razmetka/server/internal/models"
	"github.com/razmetka/server/internal/services"
)

// LockHandler обрабатывает HTTP-запросы, связанные с блокировками изображений.
type LockHandler struct {
	locks services.LockService
}

// NewLockHandler создает новый экземпляр LockHandler.
func NewLockHandler(locks services.LockService) *LockHandler {
	return &LockHandler{locks: locks}
}

// lockKey извлекает пару (проект, изображение) из маршрута и ID пользователя
// из контекста. При ошибке пишет ответ и возвращает false.
func lockKey(w http.ResponseWriter, r *http.Request) (projectID, imageID, userID int64, ok bool) {
	userID, ok = middleware.GetUserIDFromContext(r.Context())
	if !ok {
		log.Printf("[LockHandler] Не удалось получить userID из контекста")
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return 0, 0, 0, false
	}
	projectID, ok = pathID(r, "projectID")
	if !ok {
		http.Error(w, "Неверный ID проекта", http.StatusBadRequest)
		return 0, 0, 0, false
	}
	imageID, ok = pathID(r, "imageID")
	if !ok {
		http.Error(w, "Неверный ID изображения", http.StatusBadRequest)
		return 0, 0, 0, false
	}
	return projectID, imageID, userID, true
}

// Acquire обрабатывает POST запрос на захват блокировки изображения.
// Повторный захват держателем продлевает аренду; занятый чужой блокировкой
// ключ дает 423 Locked со сведениями о держателе.
func (h *LockHandler) Acquire(w http.ResponseWriter, r *http.Request) {
	projectID, imageID, userID, ok := lockKey(w, r)
	if !ok {
		return
	}

	result, err := h.locks.Acquire(r.Context(), projectID, imageID, userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	status := http.StatusOK
	if result.Status == models.LockStatusAlreadyLocked {
		status = http.StatusLocked
	}
	writeJSON(w, status, result)
}

// Heartbeat обрабатывает POST запрос на продление аренды блокировки.
func (h *LockHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	projectID, imageID, userID, ok := lockKey(w, r)
	if !ok {
		return
	}

	result, err := h.locks.Heartbeat(r.Context(), projectID, imageID, userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	status := http.StatusOK
	switch result.Status {
	case models.LockStatusNotLocked:
		status = http.StatusNotFound
	case models.LockStatusNotOwner:
		status = http.StatusConflict
	}
	writeJSON(w, status, result)
}

// Release обрабатывает DELETE запрос на снятие собственной блокировки.
func (h *LockHandler) Release(w http.ResponseWriter, r *http.Request) {
	projectID, imageID, userID, ok := lockKey(w, r)
	if !ok {
		return
	}

	result, err := h.locks.Release(r.Context(), projectID, imageID, userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	status := http.StatusOK
	switch result.Status {
	case models.LockStatusNotLocked:
		status = http.StatusNotFound
	case models.LockStatusNotOwner:
		status = http.StatusConflict
	}
	writeJSON(w, status, result)
}

// ForceRelease обрабатывает DELETE запрос на принудительное снятие блокировки
// независимо от держателя (административный сценарий).
func (h *LockHandler) ForceRelease(w http.ResponseWriter, r *http.Request) {
	projectID, imageID, userID, ok := lockKey(w, r)
	if !ok {
		return
	}

	log.Printf("[LockHandler] Пользователь %d принудительно снимает блокировку (%d, %d)",
		userID, projectID, imageID)

	result, err := h.locks.ForceRelease(r.Context(), projectID, imageID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Status обрабатывает GET запрос состояния блокировки изображения.
// Свободное изображение - 200 с lock: null, а не 404: отсутствие блокировки
// нормальное состояние, не ошибка.
func (h *LockHandler) Status(w http.ResponseWriter, r *http.Request) {
	projectID, imageID, _, ok := lockKey(w, r)
	if !ok {
		return
	}

	lock, err := h.locks.Status(r.Context(), projectID, imageID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"lock": lock})
}

// ListProjectLocks обрабатывает GET запрос всех живых блокировок проекта.
func (h *LockHandler) ListProjectLocks(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathID(r, "projectID")
	if !ok {
		http.Error(w, "Неверный ID проекта", http.StatusBadRequest)
		return
	}

	locks, err := h.locks.ListProjectLocks(r.Context(), projectID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"locks": locks})
}

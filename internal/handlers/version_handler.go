package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/razmetka/server/internal/middleware"
	"github.com/razmetka/server/internal/models"
	"github.com/razmetka/server/internal/services"
)

// VersionHandler обрабатывает HTTP-запросы, связанные с версиями разметки
// и их сравнением.
type VersionHandler struct {
	versions services.VersionService
	diff     services.DiffService
}

// NewVersionHandler создает новый экземпляр VersionHandler.
func NewVersionHandler(versions services.VersionService, diff services.DiffService) *VersionHandler {
	return &VersionHandler{versions: versions, diff: diff}
}

// Publish обрабатывает POST запрос на публикацию версии разметки.
func (h *VersionHandler) Publish(w http.ResponseWriter, r *http.Request) {
	uid, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		log.Printf("[VerHandler] Не удалось получить userID из контекста")
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}
	projectID, ok := pathID(r, "projectID")
	if !ok {
		http.Error(w, "Неверный ID проекта", http.StatusBadRequest)
		return
	}
	taskType := models.TaskType(chi.URLParam(r, "taskType"))

	var req models.PublishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("[VerHandler] Ошибка декодирования запроса публикации: %v", err)
		http.Error(w, "Неверный формат запроса", http.StatusBadRequest)
		return
	}

	version, err := h.versions.Publish(r.Context(), uid, projectID, taskType, &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, version)
}

// List обрабатывает GET запрос списка версий проекта для типа задачи.
// Виртуальные версии working и draft всегда присутствуют в выдаче.
func (h *VersionHandler) List(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathID(r, "projectID")
	if !ok {
		http.Error(w, "Неверный ID проекта", http.StatusBadRequest)
		return
	}
	taskType := models.TaskType(chi.URLParam(r, "taskType"))

	list, err := h.versions.List(r.Context(), projectID, taskType)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"versions": list})
}

// Get обрабатывает GET запрос одной версии по идентификатору.
func (h *VersionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "versionID")
	if !ok {
		http.Error(w, "Неверный ID версии", http.StatusBadRequest)
		return
	}

	version, err := h.versions.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, version)
}

// Compare обрабатывает GET запрос сравнения двух версий.
// Query-параметры: version_a, version_b (обязательные ID версий),
// image_id (необязательное сужение до одного изображения),
// include_entries (детализация по каждой аннотации; по умолчанию
// возвращается только сводка).
func (h *VersionHandler) Compare(w http.ResponseWriter, r *http.Request) {
	versionA, err := strconv.ParseInt(r.URL.Query().Get("version_a"), 10, 64)
	if err != nil || versionA <= 0 {
		http.Error(w, "Неверный или отсутствующий параметр version_a", http.StatusBadRequest)
		return
	}
	versionB, err := strconv.ParseInt(r.URL.Query().Get("version_b"), 10, 64)
	if err != nil || versionB <= 0 {
		http.Error(w, "Неверный или отсутствующий параметр version_b", http.StatusBadRequest)
		return
	}

	var imageID *int64
	if raw := r.URL.Query().Get("image_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			http.Error(w, "Неверный параметр image_id", http.StatusBadRequest)
			return
		}
		imageID = &id
	}

	includeEntries := r.URL.Query().Get("include_entries") == "true"

	result, err := h.diff.Compare(r.Context(), versionA, versionB, imageID, includeEntries)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

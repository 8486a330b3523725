package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/razmetka/server/internal/middleware"
	"github.com/razmetka/server/internal/models"
	"github.com/razmetka/server/internal/services"
)

// ProjectHandler обрабатывает HTTP-запросы, связанные с проектами.
type ProjectHandler struct {
	projects services.ProjectService
}

// NewProjectHandler создает новый экземпляр ProjectHandler.
func NewProjectHandler(projects services.ProjectService) *ProjectHandler {
	return &ProjectHandler{projects: projects}
}

// Create обрабатывает POST запрос на создание проекта.
func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	uid, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		log.Printf("[ProjHandler] Не удалось получить userID из контекста")
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	var req models.CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("[ProjHandler] Ошибка декодирования запроса создания проекта: %v", err)
		http.Error(w, "Неверный формат запроса", http.StatusBadRequest)
		return
	}

	p, err := h.projects.Create(r.Context(), uid, &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, p)
}

// Get обрабатывает GET запрос одного проекта.
func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "projectID")
	if !ok {
		http.Error(w, "Неверный ID проекта", http.StatusBadRequest)
		return
	}

	p, err := h.projects.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, p)
}

// List обрабатывает GET запрос списка проектов.
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.projects.List(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"projects": list})
}

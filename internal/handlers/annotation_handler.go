package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/razmetka/server/internal/middleware"
	"github.com/razmetka/server/internal/models"
	"github.com/razmetka/server/internal/services"
)

// AnnotationHandler обрабатывает HTTP-запросы, связанные с аннотациями.
type AnnotationHandler struct {
	anns services.AnnotationService
}

// NewAnnotationHandler создает новый экземпляр AnnotationHandler.
func NewAnnotationHandler(anns services.AnnotationService) *AnnotationHandler {
	return &AnnotationHandler{anns: anns}
}

// userID извлекает ID пользователя из контекста запроса.
// При отсутствии пишет ответ 500 и возвращает false.
func userID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		log.Printf("[AnnHandler] Не удалось получить userID из контекста")
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
	}
	return id, ok
}

// Create обрабатывает POST запрос на создание аннотации.
func (h *AnnotationHandler) Create(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	projectID, ok := pathID(r, "projectID")
	if !ok {
		http.Error(w, "Неверный ID проекта", http.StatusBadRequest)
		return
	}
	imageID, ok := pathID(r, "imageID")
	if !ok {
		http.Error(w, "Неверный ID изображения", http.StatusBadRequest)
		return
	}

	var req models.CreateAnnotationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("[AnnHandler] Ошибка декодирования запроса создания: %v", err)
		http.Error(w, "Неверный формат запроса", http.StatusBadRequest)
		return
	}

	a, err := h.anns.Create(r.Context(), uid, projectID, imageID, &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, a)
}

// Update обрабатывает PUT запрос на изменение аннотации. Тело запроса несет
// только изменяемые поля; expected_version, если задан, сверяется с текущей
// версией записи.
func (h *AnnotationHandler) Update(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(r, "annotationID")
	if !ok {
		http.Error(w, "Неверный ID аннотации", http.StatusBadRequest)
		return
	}

	var req models.UpdateAnnotationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("[AnnHandler] Ошибка декодирования запроса изменения: %v", err)
		http.Error(w, "Неверный формат запроса", http.StatusBadRequest)
		return
	}

	a, err := h.anns.Update(r.Context(), uid, id, &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, a)
}

// stateChange - общий каркас обработчиков смены статуса аннотации.
func (h *AnnotationHandler) stateChange(
	w http.ResponseWriter,
	r *http.Request,
	change func(uid, id int64, expectedVersion *int) (*models.Annotation, error),
) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(r, "annotationID")
	if !ok {
		http.Error(w, "Неверный ID аннотации", http.StatusBadRequest)
		return
	}

	// Пустое тело допустимо: смена статуса без проверки версии.
	var req models.StateChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		log.Printf("[AnnHandler] Ошибка декодирования запроса смены статуса: %v", err)
		http.Error(w, "Неверный формат запроса", http.StatusBadRequest)
		return
	}

	a, err := change(uid, id, req.ExpectedVersion)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, a)
}

// Confirm обрабатывает POST запрос на подтверждение аннотации.
func (h *AnnotationHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	h.stateChange(w, r, func(uid, id int64, ev *int) (*models.Annotation, error) {
		return h.anns.Confirm(r.Context(), uid, id, ev)
	})
}

// Unconfirm обрабатывает POST запрос на возврат аннотации в черновик.
func (h *AnnotationHandler) Unconfirm(w http.ResponseWriter, r *http.Request) {
	h.stateChange(w, r, func(uid, id int64, ev *int) (*models.Annotation, error) {
		return h.anns.Unconfirm(r.Context(), uid, id, ev)
	})
}

// Delete обрабатывает DELETE запрос на удаление аннотации.
// expected_version передается необязательным query-параметром.
func (h *AnnotationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(r, "annotationID")
	if !ok {
		http.Error(w, "Неверный ID аннотации", http.StatusBadRequest)
		return
	}

	expectedVersion, ok := queryInt(r, "expected_version")
	var ev *int
	if ok {
		ev = &expectedVersion
	}

	if err := h.anns.Delete(r.Context(), uid, id, ev); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListByImage обрабатывает GET запрос аннотаций изображения.
func (h *AnnotationHandler) ListByImage(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathID(r, "projectID")
	if !ok {
		http.Error(w, "Неверный ID проекта", http.StatusBadRequest)
		return
	}
	imageID, ok := pathID(r, "imageID")
	if !ok {
		http.Error(w, "Неверный ID изображения", http.StatusBadRequest)
		return
	}

	list, err := h.anns.ListByImage(r.Context(), projectID, imageID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"annotations": list})
}

// BatchCreate обрабатывает POST запрос на пакетное создание аннотаций
// с частичным успехом.
func (h *AnnotationHandler) BatchCreate(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	projectID, ok := pathID(r, "projectID")
	if !ok {
		http.Error(w, "Неверный ID проекта", http.StatusBadRequest)
		return
	}
	imageID, ok := pathID(r, "imageID")
	if !ok {
		http.Error(w, "Неверный ID изображения", http.StatusBadRequest)
		return
	}

	var req models.BatchCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("[AnnHandler] Ошибка декодирования пакетного запроса: %v", err)
		http.Error(w, "Неверный формат запроса", http.StatusBadRequest)
		return
	}
	if len(req.Items) == 0 {
		http.Error(w, "Пустой пакет", http.StatusBadRequest)
		return
	}

	result, err := h.anns.BatchCreate(r.Context(), uid, projectID, imageID, &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	// 207: внутри пакета могут быть и успехи, и ошибки.
	writeJSON(w, http.StatusMultiStatus, result)
}

// BulkConfirm обрабатывает POST запрос на массовое подтверждение аннотаций.
func (h *AnnotationHandler) BulkConfirm(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	var req models.BulkConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("[AnnHandler] Ошибка декодирования запроса массового подтверждения: %v", err)
		http.Error(w, "Неверный формат запроса", http.StatusBadRequest)
		return
	}
	if len(req.AnnotationIDs) == 0 {
		http.Error(w, "Пустой список аннотаций", http.StatusBadRequest)
		return
	}

	result, err := h.anns.BulkConfirm(r.Context(), uid, &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusMultiStatus, result)
}

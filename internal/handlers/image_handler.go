package handlers

import (
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/razmetka/server/internal/middleware"
	"github.com/razmetka/server/internal/services"
)

// ImageHandler обрабатывает HTTP-запросы, связанные с изображениями.
type ImageHandler struct {
	images services.ImageService
}

// NewImageHandler создает новый экземпляр ImageHandler.
func NewImageHandler(images services.ImageService) *ImageHandler {
	return &ImageHandler{images: images}
}

// Upload обрабатывает POST запрос на загрузку файла изображения.
// Тело запроса - сырой файл; имя берется из query-параметра filename,
// размер - из заголовка Content-Length.
func (h *ImageHandler) Upload(w http.ResponseWriter, r *http.Request) {
	uid, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		log.Printf("[ImgHandler] Не удалось получить userID из контекста")
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}
	projectID, ok := pathID(r, "projectID")
	if !ok {
		http.Error(w, "Неверный ID проекта", http.StatusBadRequest)
		return
	}

	filename := r.URL.Query().Get("filename")
	if filename == "" {
		http.Error(w, "Не задан параметр filename", http.StatusBadRequest)
		return
	}

	size, err := strconv.ParseInt(r.Header.Get("Content-Length"), 10, 64)
	if err != nil || size <= 0 {
		log.Printf("[ImgHandler] Неверный или отсутствующий заголовок Content-Length")
		http.Error(w, "Неверный или отсутствующий заголовок Content-Length", http.StatusBadRequest)
		return
	}

	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	img, err := h.images.Upload(r.Context(), uid, projectID, filename, contentType, size, r.Body)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, img)
}

// Get обрабатывает GET запрос метаданных изображения.
func (h *ImageHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "imageID")
	if !ok {
		http.Error(w, "Неверный ID изображения", http.StatusBadRequest)
		return
	}

	img, err := h.images.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, img)
}

// Download обрабатывает GET запрос содержимого изображения.
func (h *ImageHandler) Download(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "imageID")
	if !ok {
		http.Error(w, "Неверный ID изображения", http.StatusBadRequest)
		return
	}

	img, body, err := h.images.Download(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	defer func() {
		if closeErr := body.Close(); closeErr != nil {
			log.Printf("[ImgHandler] Ошибка закрытия потока изображения %d: %v", id, closeErr)
		}
	}()

	w.Header().Set("Content-Disposition", `attachment; filename="`+img.Filename+`"`)
	w.Header().Set("Content-Type", img.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(img.SizeBytes, 10))

	if _, err = io.Copy(w, body); err != nil {
		log.Printf("[ImgHandler] Ошибка отправки содержимого изображения %d: %v", id, err)
		return
	}

	log.Printf("[ImgHandler] Изображение %d ('%s') успешно отправлено", id, img.Filename)
}

// ListByProject обрабатывает GET запрос списка изображений проекта.
func (h *ImageHandler) ListByProject(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathID(r, "projectID")
	if !ok {
		http.Error(w, "Неверный ID проекта", http.StatusBadRequest)
		return
	}

	list, err := h.images.ListByProject(r.Context(), projectID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"images": list})
}

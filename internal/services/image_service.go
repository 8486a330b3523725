package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/razmetka/server/internal/models"
	"github.com/razmetka/server/internal/repository"
	"github.com/razmetka/server/internal/storage"
)

// ImageService определяет интерфейс для загрузки и выдачи изображений проекта.
// Файл живет в объектном хранилище, метаданные - в БД.
type ImageService interface {
	Upload(ctx context.Context, userID, projectID int64, filename, contentType string,
		size int64, reader io.Reader) (*models.Image, error)
	Download(ctx context.Context, id int64) (*models.Image, io.ReadCloser, error)
	GetByID(ctx context.Context, id int64) (*models.Image, error)
	ListByProject(ctx context.Context, projectID int64) ([]models.Image, error)
}

// Убедимся, что imageService удовлетворяет интерфейсу ImageService.
var _ ImageService = (*imageService)(nil)

type imageService struct {
	images   repository.ImageRepository
	projects repository.ProjectRepository
	files    storage.FileStorage
}

// NewImageService создает новый экземпляр сервиса изображений.
func NewImageService(
	images repository.ImageRepository,
	projects repository.ProjectRepository,
	files storage.FileStorage,
) ImageService {
	return &imageService{images: images, projects: projects, files: files}
}

// Upload загружает файл изображения в объектное хранилище и создает запись
// метаданных. Ключ объекта генерируется сервером - имя файла клиента
// сохраняется только как метаданные.
func (s *imageService) Upload(
	ctx context.Context,
	userID, projectID int64,
	filename, contentType string,
	size int64,
	reader io.Reader,
) (*models.Image, error) {
	if filename == "" {
		return nil, NewValidationError("имя файла не задано")
	}

	if _, err := s.projects.GetByID(ctx, projectID); err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}

	objectKey := fmt.Sprintf("projects/%d/images/%s%s", projectID, uuid.NewString(), filepath.Ext(filename))

	if err := s.files.UploadFile(ctx, objectKey, reader, size, contentType); err != nil {
		return nil, err
	}

	img := &models.Image{
		ProjectID:   projectID,
		Filename:    filename,
		ObjectKey:   objectKey,
		ContentType: contentType,
		SizeBytes:   size,
		CreatedBy:   userID,
		CreatedAt:   time.Now().UTC(),
	}

	id, err := s.images.Create(ctx, img)
	if err != nil {
		// Файл уже в хранилище, запись не создана - убираем осиротевший объект.
		if delErr := s.files.DeleteFile(ctx, objectKey); delErr != nil {
			log.Printf("[ImgService] Не удалось удалить осиротевший объект '%s': %v", objectKey, delErr)
		}
		return nil, err
	}
	img.ID = id

	log.Printf("[ImgService] Пользователь %d загрузил изображение '%s' (ID %d) в проект %d",
		userID, filename, id, projectID)
	return img, nil
}

// Download возвращает метаданные изображения и поток содержимого.
// Закрыть поток обязан вызывающий.
func (s *imageService) Download(ctx context.Context, id int64) (*models.Image, io.ReadCloser, error) {
	img, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	body, err := s.files.DownloadFile(ctx, img.ObjectKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			log.Printf("[ImgService] Метаданные изображения %d есть, объект '%s' отсутствует", id, img.ObjectKey)
			return nil, nil, ErrImageNotFound
		}
		return nil, nil, err
	}

	return img, body, nil
}

// GetByID возвращает метаданные изображения.
func (s *imageService) GetByID(ctx context.Context, id int64) (*models.Image, error) {
	img, err := s.images.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrImageNotFound) {
			return nil, ErrImageNotFound
		}
		return nil, err
	}
	return img, nil
}

// ListByProject возвращает изображения проекта.
func (s *imageService) ListByProject(ctx context.Context, projectID int64) ([]models.Image, error) {
	if _, err := s.projects.GetByID(ctx, projectID); err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}
	return s.images.ListByProject(ctx, projectID)
}

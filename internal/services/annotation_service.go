package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/razmetka/server/internal/models"
	"github.com/razmetka/server/internal/repository"
)

// AnnotationService определяет интерфейс для работы с аннотациями.
// Каждая мутация проходит две проверки в одной транзакции: неявную проверку
// блокировки изображения и оптимистическую проверку версии записи.
type AnnotationService interface {
	Create(ctx context.Context, userID, projectID, imageID int64, req *models.CreateAnnotationRequest) (*models.Annotation, error)
	Update(ctx context.Context, userID, id int64, req *models.UpdateAnnotationRequest) (*models.Annotation, error)
	Confirm(ctx context.Context, userID, id int64, expectedVersion *int) (*models.Annotation, error)
	Unconfirm(ctx context.Context, userID, id int64, expectedVersion *int) (*models.Annotation, error)
	Delete(ctx context.Context, userID, id int64, expectedVersion *int) error
	ListByImage(ctx context.Context, projectID, imageID int64) ([]models.Annotation, error)
	BatchCreate(ctx context.Context, userID, projectID, imageID int64, req *models.BatchCreateRequest) (*models.BatchResult, error)
	BulkConfirm(ctx context.Context, userID int64, req *models.BulkConfirmRequest) (*models.BatchResult, error)
}

// Убедимся, что annotationService удовлетворяет интерфейсу AnnotationService.
var _ AnnotationService = (*annotationService)(nil)

type annotationService struct {
	db       *sqlx.DB
	anns     repository.AnnotationRepository
	locks    LockService
	registry models.TaskRegistry
}

// NewAnnotationService создает новый экземпляр сервиса аннотаций.
// Реестр задач передается явно - сервис не обращается к глобальному состоянию.
func NewAnnotationService(
	db *sqlx.DB,
	anns repository.AnnotationRepository,
	locks LockService,
	registry models.TaskRegistry,
) AnnotationService {
	return &annotationService{db: db, anns: anns, locks: locks, registry: registry}
}

// Create создает аннотацию. Проверка expected_version не применяется:
// у новой записи нет предыдущей версии, счетчик инициализируется единицей.
func (s *annotationService) Create(
	ctx context.Context,
	userID, projectID, imageID int64,
	req *models.CreateAnnotationRequest,
) (*models.Annotation, error) {
	def, ok := s.registry.Definition(req.TaskType)
	if !ok {
		return nil, NewValidationError("неизвестный тип задачи '%s'", req.TaskType)
	}

	geometry, err := models.NormalizeGeometry(req.Geometry)
	if err != nil {
		return nil, NewValidationError("недопустимая геометрия: %v", err)
	}
	if !def.AllowsGeometry(geometry.Type) {
		return nil, NewValidationError("геометрия '%s' недопустима для задачи '%s'", geometry.Type, req.TaskType)
	}

	now := time.Now().UTC()
	a := &models.Annotation{
		ProjectID:  projectID,
		ImageID:    imageID,
		TaskType:   req.TaskType,
		ClassID:    req.ClassID,
		ClassName:  req.ClassName,
		Geometry:   geometry,
		Confidence: req.Confidence,
		Attributes: req.Attributes,
		Notes:      req.Notes,
		State:      models.AnnotationStateDraft,
		Version:    1,
		CreatedBy:  userID,
		UpdatedBy:  userID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Проверка блокировки - в той же транзакции, что и вставка.
	if err = s.locks.EnsureForMutation(ctx, tx, projectID, imageID, userID); err != nil {
		return nil, err
	}

	a.ID, err = s.anns.Create(ctx, tx, a)
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}

	log.Printf("[AnnService] Пользователь %d создал аннотацию %d на изображении %d", userID, a.ID, imageID)
	return a, nil
}

// mutate выполняет общий каркас мутации существующей аннотации:
// чтение с блокировкой строки, неявная проверка блокировки изображения,
// оптимистическая проверка версии, применение изменений, инкремент счетчика
// версии ровно на 1 и отметка автора/времени изменения - все в одной транзакции.
func (s *annotationService) mutate(
	ctx context.Context,
	userID, id int64,
	expectedVersion *int,
	apply func(a *models.Annotation) error,
) (*models.Annotation, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	a, err := s.anns.GetByIDForUpdate(ctx, tx, id)
	if err != nil {
		if errors.Is(err, repository.ErrAnnotationNotFound) {
			return nil, ErrAnnotationNotFound
		}
		return nil, err
	}

	if err = s.locks.EnsureForMutation(ctx, tx, a.ProjectID, a.ImageID, userID); err != nil {
		return nil, err
	}

	if expectedVersion != nil && *expectedVersion != a.Version {
		log.Printf("[AnnService] Конфликт версий аннотации %d: текущая %d, запрошенная %d (пользователь %d)",
			id, a.Version, *expectedVersion, userID)
		return nil, &VersionConflictError{
			AnnotationID:     id,
			CurrentVersion:   a.Version,
			RequestedVersion: *expectedVersion,
			LastModifiedBy:   a.UpdatedBy,
			LastModifiedAt:   a.UpdatedAt,
		}
	}

	if err = apply(a); err != nil {
		return nil, err
	}

	a.Version++
	a.UpdatedBy = userID
	a.UpdatedAt = time.Now().UTC()

	if err = s.anns.Update(ctx, tx, a); err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}
	return a, nil
}

// Update изменяет поля аннотации. Ненулевые указатели запроса означают
// изменение поля; expected_version, если задан, должен совпасть с текущей
// версией записи, иначе мутация отклоняется с VersionConflictError.
func (s *annotationService) Update(
	ctx context.Context,
	userID, id int64,
	req *models.UpdateAnnotationRequest,
) (*models.Annotation, error) {
	return s.mutate(ctx, userID, id, req.ExpectedVersion, func(a *models.Annotation) error {
		if req.Geometry != nil {
			geometry, err := models.NormalizeGeometry(req.Geometry)
			if err != nil {
				return NewValidationError("недопустимая геометрия: %v", err)
			}
			def, ok := s.registry.Definition(a.TaskType)
			if ok && !def.AllowsGeometry(geometry.Type) {
				return NewValidationError("геометрия '%s' недопустима для задачи '%s'", geometry.Type, a.TaskType)
			}
			a.Geometry = geometry
		}
		if req.ClassID != nil {
			a.ClassID = req.ClassID
		}
		if req.ClassName != nil {
			a.ClassName = *req.ClassName
		}
		if req.Confidence != nil {
			a.Confidence = req.Confidence
		}
		if req.Attributes != nil {
			a.Attributes = *req.Attributes
		}
		if req.Notes != nil {
			a.Notes = *req.Notes
		}
		return nil
	})
}

// Confirm переводит аннотацию в статус confirmed. Это полноценная мутация:
// проверка версии и инкремент счетчика действуют независимо от того,
// менялись ли геометрия или класс.
func (s *annotationService) Confirm(
	ctx context.Context,
	userID, id int64,
	expectedVersion *int,
) (*models.Annotation, error) {
	return s.mutate(ctx, userID, id, expectedVersion, func(a *models.Annotation) error {
		a.State = models.AnnotationStateConfirmed
		return nil
	})
}

// Unconfirm возвращает аннотацию в статус draft.
func (s *annotationService) Unconfirm(
	ctx context.Context,
	userID, id int64,
	expectedVersion *int,
) (*models.Annotation, error) {
	return s.mutate(ctx, userID, id, expectedVersion, func(a *models.Annotation) error {
		a.State = models.AnnotationStateDraft
		return nil
	})
}

// Delete удаляет аннотацию с теми же проверками блокировки и версии,
// что и остальные мутации.
func (s *annotationService) Delete(ctx context.Context, userID, id int64, expectedVersion *int) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	a, err := s.anns.GetByIDForUpdate(ctx, tx, id)
	if err != nil {
		if errors.Is(err, repository.ErrAnnotationNotFound) {
			return ErrAnnotationNotFound
		}
		return err
	}

	if err = s.locks.EnsureForMutation(ctx, tx, a.ProjectID, a.ImageID, userID); err != nil {
		return err
	}

	if expectedVersion != nil && *expectedVersion != a.Version {
		return &VersionConflictError{
			AnnotationID:     id,
			CurrentVersion:   a.Version,
			RequestedVersion: *expectedVersion,
			LastModifiedBy:   a.UpdatedBy,
			LastModifiedAt:   a.UpdatedAt,
		}
	}

	if err = s.anns.Delete(ctx, tx, id); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}

	log.Printf("[AnnService] Пользователь %d удалил аннотацию %d", userID, id)
	return nil
}

// ListByImage возвращает аннотации изображения с текущими номерами версий -
// клиент берет отсюда expected_version для последующих мутаций.
func (s *annotationService) ListByImage(ctx context.Context, projectID, imageID int64) ([]models.Annotation, error) {
	return s.anns.ListByImage(ctx, s.db, projectID, imageID)
}

// BatchCreate создает набор аннотаций с частичным успехом: каждая запись
// обрабатывается в собственной транзакции, ошибка одной не прерывает
// остальные, результат по каждому элементу возвращается вызывающему.
func (s *annotationService) BatchCreate(
	ctx context.Context,
	userID, projectID, imageID int64,
	req *models.BatchCreateRequest,
) (*models.BatchResult, error) {
	result := &models.BatchResult{Items: make([]models.BatchItemResult, 0, len(req.Items))}

	for i := range req.Items {
		item := models.BatchItemResult{Index: i}
		a, err := s.Create(ctx, userID, projectID, imageID, &req.Items[i])
		if err != nil {
			item.Error = err.Error()
			result.Failed++
		} else {
			item.AnnotationID = a.ID
			item.Annotation = a
			result.Succeeded++
		}
		result.Items = append(result.Items, item)
	}

	log.Printf("[AnnService] Пакетное создание на изображении %d: %d успешно, %d с ошибками",
		imageID, result.Succeeded, result.Failed)
	return result, nil
}

// BulkConfirm подтверждает набор аннотаций с частичным успехом,
// без проверки expected_version (доверенный массовый сценарий).
func (s *annotationService) BulkConfirm(
	ctx context.Context,
	userID int64,
	req *models.BulkConfirmRequest,
) (*models.BatchResult, error) {
	result := &models.BatchResult{Items: make([]models.BatchItemResult, 0, len(req.AnnotationIDs))}

	for i, id := range req.AnnotationIDs {
		item := models.BatchItemResult{Index: i, AnnotationID: id}
		a, err := s.Confirm(ctx, userID, id, nil)
		if err != nil {
			item.Error = err.Error()
			result.Failed++
		} else {
			item.Annotation = a
			result.Succeeded++
		}
		result.Items = append(result.Items, item)
	}

	log.Printf("[AnnService] Массовое подтверждение: %d успешно, %d с ошибками",
		result.Succeeded, result.Failed)
	return result, nil
}

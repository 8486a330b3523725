package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/razmetka/server/internal/models"
	"github.com/razmetka/server/internal/repository"
)

// VersionService определяет интерфейс для публикации и получения версий
// разметки. Опубликованная версия фиксирует неизменяемый набор снапшотов;
// виртуальные версии (working/draft) снапшотов не имеют и всегда отражают
// текущее состояние живой таблицы аннотаций.
type VersionService interface {
	Publish(
		ctx context.Context,
		userID, projectID int64,
		taskType models.TaskType,
		req *models.PublishRequest,
	) (*models.AnnotationVersion, error)
	List(ctx context.Context, projectID int64, taskType models.TaskType) ([]models.AnnotationVersion, error)
	GetByID(ctx context.Context, id int64) (*models.AnnotationVersion, error)
}

// Убедимся, что versionService удовлетворяет интерфейсу VersionService.
var _ VersionService = (*versionService)(nil)

type versionService struct {
	db        *sqlx.DB
	versions  repository.VersionRepository
	snapshots repository.SnapshotRepository
	anns      repository.AnnotationRepository
	registry  models.TaskRegistry
}

// NewVersionService создает новый экземпляр сервиса версий.
func NewVersionService(
	db *sqlx.DB,
	versions repository.VersionRepository,
	snapshots repository.SnapshotRepository,
	anns repository.AnnotationRepository,
	registry models.TaskRegistry,
) VersionService {
	return &versionService{db: db, versions: versions, snapshots: snapshots, anns: anns, registry: registry}
}

// publishableStates возвращает статусы аннотаций, попадающие в публикацию.
func (s *versionService) publishableStates(
	def models.TaskDefinition,
	includeDrafts bool,
) []models.AnnotationState {
	states := append([]models.AnnotationState(nil), def.PublishableStates...)
	if includeDrafts {
		states = append(states, models.AnnotationStateDraft)
	}
	return states
}

// Publish создает опубликованную версию и полный набор снапшотов всех
// аннотаций, подходящих под фильтр статусов задачи, - одной транзакцией:
// частично созданных публикаций не бывает. Повтор номера версии в рамках
// (проект, тип задачи) отклоняется.
func (s *versionService) Publish(
	ctx context.Context,
	userID, projectID int64,
	taskType models.TaskType,
	req *models.PublishRequest,
) (*models.AnnotationVersion, error) {
	def, ok := s.registry.Definition(taskType)
	if !ok {
		return nil, NewValidationError("неизвестный тип задачи '%s'", taskType)
	}

	label := strings.TrimSpace(req.VersionNumber)
	if label == "" {
		return nil, NewValidationError("номер версии не задан")
	}
	if label == models.VersionLabelWorking || label == models.VersionLabelDraft {
		return nil, NewValidationError("метка '%s' зарезервирована за виртуальной версией", label)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	states := s.publishableStates(def, req.IncludeDrafts)
	anns, err := s.anns.ListByStates(ctx, tx, projectID, taskType, states, nil)
	if err != nil {
		return nil, err
	}

	images := make(map[int64]struct{}, len(anns))
	for i := range anns {
		images[anns[i].ImageID] = struct{}{}
	}

	version := &models.AnnotationVersion{
		ProjectID:       projectID,
		TaskType:        taskType,
		VersionNumber:   label,
		VersionType:     models.VersionTypePublished,
		CreatedBy:       userID,
		CreatedAt:       time.Now().UTC(),
		AnnotationCount: len(anns),
		ImageCount:      len(images),
	}

	version.ID, err = s.versions.Create(ctx, tx, version)
	if err != nil {
		if errors.Is(err, repository.ErrVersionNumberTaken) {
			return nil, ErrVersionNumberTaken
		}
		return nil, err
	}

	snapshots := make([]models.AnnotationSnapshot, 0, len(anns))
	for i := range anns {
		snapshots = append(snapshots, models.NewSnapshot(version.ID, &anns[i]))
	}
	if err = s.snapshots.InsertBatch(ctx, tx, snapshots); err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}

	log.Printf("[VerService] Опубликована версия '%s' проекта %d (задача %s): %d аннотаций на %d изображениях",
		label, projectID, taskType, version.AnnotationCount, version.ImageCount)
	return version, nil
}

// List возвращает версии проекта для типа задачи, от новых к старым.
// Перед выдачей гарантирует существование placeholder-строк виртуальных
// версий working и draft, чтобы клиенты могли ссылаться на них по ID
// (например, в запросе сравнения).
func (s *versionService) List(
	ctx context.Context,
	projectID int64,
	taskType models.TaskType,
) ([]models.AnnotationVersion, error) {
	if _, ok := s.registry.Definition(taskType); !ok {
		return nil, NewValidationError("неизвестный тип задачи '%s'", taskType)
	}

	if _, err := s.versions.EnsureVirtual(ctx, s.db, projectID, taskType, models.VersionTypeWorking); err != nil {
		return nil, err
	}
	if _, err := s.versions.EnsureVirtual(ctx, s.db, projectID, taskType, models.VersionTypeDraft); err != nil {
		return nil, err
	}

	list, err := s.versions.ListByProjectAndTask(ctx, s.db, projectID, taskType)
	if err != nil {
		return nil, err
	}

	SortVersionsLatestFirst(list)
	return list, nil
}

// GetByID возвращает версию по идентификатору.
func (s *versionService) GetByID(ctx context.Context, id int64) (*models.AnnotationVersion, error) {
	v, err := s.versions.GetByID(ctx, s.db, id)
	if err != nil {
		if errors.Is(err, repository.ErrVersionNotFound) {
			return nil, ErrVersionNotFound
		}
		return nil, err
	}
	return v, nil
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/razmetka/server/internal/models"
)

// Кастомные ошибки репозитория версий.
var (
	ErrVersionNotFound    = errors.New("версия не найдена")
	ErrVersionNumberTaken = errors.New("номер версии уже существует")
)

const versionColumns = `id, project_id, task_type, version_number, version_type,
	created_by, created_at, annotation_count, image_count`

// VersionRepository определяет методы для работы с версиями разметки.
type VersionRepository interface {
	Create(ctx context.Context, q sqlx.ExtContext, v *models.AnnotationVersion) (int64, error)
	GetByID(ctx context.Context, q sqlx.ExtContext, id int64) (*models.AnnotationVersion, error)
	ListByProjectAndTask(
		ctx context.Context,
		q sqlx.ExtContext,
		projectID int64,
		taskType models.TaskType,
	) ([]models.AnnotationVersion, error)
	EnsureVirtual(
		ctx context.Context,
		q sqlx.ExtContext,
		projectID int64,
		taskType models.TaskType,
		vtype models.VersionType,
	) (*models.AnnotationVersion, error)
}

// postgresVersionRepository реализует VersionRepository для PostgreSQL.
type postgresVersionRepository struct{}

// NewPostgresVersionRepository создает новый экземпляр репозитория версий.
func NewPostgresVersionRepository() VersionRepository {
	return &postgresVersionRepository{}
}

// Create вставляет запись версии. Для опубликованных версий уникальность
// (project_id, task_type, version_number) обеспечивается частичным индексом;
// нарушение транслируется в ErrVersionNumberTaken.
func (r *postgresVersionRepository) Create(
	ctx context.Context,
	q sqlx.ExtContext,
	v *models.AnnotationVersion,
) (int64, error) {
	query := `INSERT INTO annotation_versions
	          (project_id, task_type, version_number, version_type, created_by, annotation_count, image_count)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)
	          RETURNING id`
	var id int64

	err := sqlx.GetContext(ctx, q, &id, query,
		v.ProjectID, v.TaskType, v.VersionNumber, v.VersionType, v.CreatedBy, v.AnnotationCount, v.ImageCount,
	)
	if err != nil {
		var pgErr *pq.Error
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolationCode {
			log.Printf("[VerRepo] Номер версии '%s' уже существует для проекта %d (задача %s)",
				v.VersionNumber, v.ProjectID, v.TaskType)
			return 0, ErrVersionNumberTaken
		}
		log.Printf("[VerRepo] Ошибка создания версии '%s': %v", v.VersionNumber, err)
		return 0, fmt.Errorf("ошибка выполнения запроса на создание версии: %w", err)
	}

	return id, nil
}

// GetByID читает версию по идентификатору.
func (r *postgresVersionRepository) GetByID(
	ctx context.Context,
	q sqlx.ExtContext,
	id int64,
) (*models.AnnotationVersion, error) {
	query := `SELECT ` + versionColumns + ` FROM annotation_versions WHERE id = $1`
	var v models.AnnotationVersion

	err := sqlx.GetContext(ctx, q, &v, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrVersionNotFound
		}
		log.Printf("[VerRepo] Ошибка чтения версии %d: %v", id, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на чтение версии: %w", err)
	}

	return &v, nil
}

// ListByProjectAndTask возвращает все версии проекта для типа задачи,
// включая виртуальные placeholder-строки. Сортировку по старшинству номеров
// выполняет сервисный слой.
func (r *postgresVersionRepository) ListByProjectAndTask(
	ctx context.Context,
	q sqlx.ExtContext,
	projectID int64,
	taskType models.TaskType,
) ([]models.AnnotationVersion, error) {
	query := `SELECT ` + versionColumns + `
	          FROM annotation_versions
	          WHERE project_id = $1 AND task_type = $2
	          ORDER BY created_at`
	var list []models.AnnotationVersion

	if err := sqlx.SelectContext(ctx, q, &list, query, projectID, taskType); err != nil {
		log.Printf("[VerRepo] Ошибка получения версий проекта %d (задача %s): %v", projectID, taskType, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на получение версий: %w", err)
	}

	return list, nil
}

// EnsureVirtual возвращает placeholder-строку виртуальной версии
// (working/draft), создавая ее при отсутствии. Содержимое таких версий
// никогда не читается из снапшотов - только из живой таблицы аннотаций.
func (r *postgresVersionRepository) EnsureVirtual(
	ctx context.Context,
	q sqlx.ExtContext,
	projectID int64,
	taskType models.TaskType,
	vtype models.VersionType,
) (*models.AnnotationVersion, error) {
	if vtype == models.VersionTypePublished {
		return nil, fmt.Errorf("EnsureVirtual не применим к опубликованным версиям")
	}

	label := models.VersionLabelWorking
	if vtype == models.VersionTypeDraft {
		label = models.VersionLabelDraft
	}

	insert := `INSERT INTO annotation_versions
	           (project_id, task_type, version_number, version_type, created_by, annotation_count, image_count)
	           VALUES ($1, $2, $3, $4, 0, 0, 0)
	           ON CONFLICT DO NOTHING`
	if _, err := q.ExecContext(ctx, insert, projectID, taskType, label, vtype); err != nil {
		log.Printf("[VerRepo] Ошибка создания виртуальной версии '%s': %v", label, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на создание виртуальной версии: %w", err)
	}

	query := `SELECT ` + versionColumns + `
	          FROM annotation_versions
	          WHERE project_id = $1 AND task_type = $2 AND version_type = $3`
	var v models.AnnotationVersion
	if err := sqlx.GetContext(ctx, q, &v, query, projectID, taskType, vtype); err != nil {
		log.Printf("[VerRepo] Ошибка чтения виртуальной версии '%s': %v", label, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на чтение виртуальной версии: %w", err)
	}

	return &v, nil
}

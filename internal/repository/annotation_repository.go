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

// Кастомные ошибки репозитория аннотаций.
var (
	ErrAnnotationNotFound = errors.New("аннотация не найдена")
)

const annotationColumns = `id, project_id, image_id, task_type, class_id, class_name,
	geometry, confidence, attributes, notes, annotation_state, version,
	created_by, updated_by, created_at, updated_at`

// AnnotationRepository определяет методы для работы с аннотациями.
// Мутирующие методы принимают исполнитель запросов (q), чтобы проверка
// блокировки, проверка версии и сама запись выполнялись в одной транзакции.
type AnnotationRepository interface {
	Create(ctx context.Context, q sqlx.ExtContext, a *models.Annotation) (int64, error)
	GetByID(ctx context.Context, q sqlx.ExtContext, id int64) (*models.Annotation, error)
	GetByIDForUpdate(ctx context.Context, q sqlx.ExtContext, id int64) (*models.Annotation, error)
	Update(ctx context.Context, q sqlx.ExtContext, a *models.Annotation) error
	Delete(ctx context.Context, q sqlx.ExtContext, id int64) error
	ListByImage(ctx context.Context, q sqlx.ExtContext, projectID, imageID int64) ([]models.Annotation, error)
	ListByStates(
		ctx context.Context,
		q sqlx.ExtContext,
		projectID int64,
		taskType models.TaskType,
		states []models.AnnotationState,
		imageID *int64,
	) ([]models.Annotation, error)
}

// postgresAnnotationRepository реализует AnnotationRepository для PostgreSQL.
type postgresAnnotationRepository struct{}

// NewPostgresAnnotationRepository создает новый экземпляр репозитория аннотаций.
func NewPostgresAnnotationRepository() AnnotationRepository {
	return &postgresAnnotationRepository{}
}

// Create вставляет новую аннотацию. Счетчик версии инициализируется
// значением из модели (для новых записей - 1).
func (r *postgresAnnotationRepository) Create(
	ctx context.Context,
	q sqlx.ExtContext,
	a *models.Annotation,
) (int64, error) {
	query := `INSERT INTO annotations
	          (project_id, image_id, task_type, class_id, class_name, geometry,
	           confidence, attributes, notes, annotation_state, version, created_by, updated_by)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	          RETURNING id`
	var id int64

	err := sqlx.GetContext(ctx, q, &id, query,
		a.ProjectID, a.ImageID, a.TaskType, a.ClassID, a.ClassName, a.Geometry,
		a.Confidence, a.Attributes, a.Notes, a.State, a.Version, a.CreatedBy, a.UpdatedBy,
	)
	if err != nil {
		log.Printf("[AnnRepo] Ошибка создания аннотации для изображения %d: %v", a.ImageID, err)
		return 0, fmt.Errorf("ошибка выполнения запроса на создание аннотации: %w", err)
	}

	return id, nil
}

// GetByID читает аннотацию по идентификатору.
func (r *postgresAnnotationRepository) GetByID(
	ctx context.Context,
	q sqlx.ExtContext,
	id int64,
) (*models.Annotation, error) {
	return r.getByID(ctx, q, id, false)
}

// GetByIDForUpdate читает аннотацию с блокировкой строки (FOR UPDATE),
// чтобы проверка expected_version и последующая запись были атомарны
// относительно конкурирующих мутаций той же записи.
func (r *postgresAnnotationRepository) GetByIDForUpdate(
	ctx context.Context,
	q sqlx.ExtContext,
	id int64,
) (*models.Annotation, error) {
	return r.getByID(ctx, q, id, true)
}

func (r *postgresAnnotationRepository) getByID(
	ctx context.Context,
	q sqlx.ExtContext,
	id int64,
	forUpdate bool,
) (*models.Annotation, error) {
	query := `SELECT ` + annotationColumns + ` FROM annotations WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var a models.Annotation

	err := sqlx.GetContext(ctx, q, &a, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAnnotationNotFound
		}
		log.Printf("[AnnRepo] Ошибка чтения аннотации %d: %v", id, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на чтение аннотации: %w", err)
	}

	return &a, nil
}

// Update перезаписывает изменяемые поля аннотации вместе со счетчиком версии
// и отметками о последнем изменении.
func (r *postgresAnnotationRepository) Update(ctx context.Context, q sqlx.ExtContext, a *models.Annotation) error {
	query := `UPDATE annotations
	          SET class_id = $2, class_name = $3, geometry = $4, confidence = $5,
	              attributes = $6, notes = $7, annotation_state = $8, version = $9,
	              updated_by = $10, updated_at = $11
	          WHERE id = $1`

	res, err := q.ExecContext(ctx, query,
		a.ID, a.ClassID, a.ClassName, a.Geometry, a.Confidence,
		a.Attributes, a.Notes, a.State, a.Version, a.UpdatedBy, a.UpdatedAt,
	)
	if err != nil {
		log.Printf("[AnnRepo] Ошибка обновления аннотации %d: %v", a.ID, err)
		return fmt.Errorf("ошибка выполнения запроса на обновление аннотации: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ошибка получения числа обновленных строк: %w", err)
	}
	if affected == 0 {
		return ErrAnnotationNotFound
	}

	return nil
}

// Delete удаляет аннотацию по идентификатору.
func (r *postgresAnnotationRepository) Delete(ctx context.Context, q sqlx.ExtContext, id int64) error {
	res, err := q.ExecContext(ctx, `DELETE FROM annotations WHERE id = $1`, id)
	if err != nil {
		log.Printf("[AnnRepo] Ошибка удаления аннотации %d: %v", id, err)
		return fmt.Errorf("ошибка выполнения запроса на удаление аннотации: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ошибка получения числа удаленных строк: %w", err)
	}
	if affected == 0 {
		return ErrAnnotationNotFound
	}

	return nil
}

// ListByImage возвращает все аннотации изображения в порядке создания.
func (r *postgresAnnotationRepository) ListByImage(
	ctx context.Context,
	q sqlx.ExtContext,
	projectID, imageID int64,
) ([]models.Annotation, error) {
	query := `SELECT ` + annotationColumns + `
	          FROM annotations WHERE project_id = $1 AND image_id = $2 ORDER BY id`
	var list []models.Annotation

	if err := sqlx.SelectContext(ctx, q, &list, query, projectID, imageID); err != nil {
		log.Printf("[AnnRepo] Ошибка получения аннотаций изображения %d: %v", imageID, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на получение аннотаций изображения: %w", err)
	}

	return list, nil
}

// ListByStates возвращает аннотации проекта и типа задачи в заданных статусах,
// опционально ограничиваясь одним изображением. Используется публикацией
// (отбор снапшотов) и движком диффа (живой источник working/draft).
func (r *postgresAnnotationRepository) ListByStates(
	ctx context.Context,
	q sqlx.ExtContext,
	projectID int64,
	taskType models.TaskType,
	states []models.AnnotationState,
	imageID *int64,
) ([]models.Annotation, error) {
	stateNames := make([]string, len(states))
	for i, s := range states {
		stateNames[i] = string(s)
	}

	query := `SELECT ` + annotationColumns + `
	          FROM annotations
	          WHERE project_id = $1 AND task_type = $2 AND annotation_state = ANY($3)`
	args := []interface{}{projectID, taskType, pq.Array(stateNames)}
	if imageID != nil {
		query += ` AND image_id = $4`
		args = append(args, *imageID)
	}
	query += ` ORDER BY image_id, id`

	var list []models.Annotation
	if err := sqlx.SelectContext(ctx, q, &list, query, args...); err != nil {
		log.Printf("[AnnRepo] Ошибка выборки аннотаций проекта %d (задача %s): %v", projectID, taskType, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на выборку аннотаций: %w", err)
	}

	return list, nil
}

package repository

import (
	"context"
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	"github.com/razmetka/server/internal/models"
)

// SnapshotRepository определяет методы для работы со снапшотами аннотаций.
// Снапшоты создаются только при публикации и никогда не изменяются.
type SnapshotRepository interface {
	InsertBatch(ctx context.Context, q sqlx.ExtContext, snapshots []models.AnnotationSnapshot) error
	ListByVersion(
		ctx context.Context,
		q sqlx.ExtContext,
		versionID int64,
		imageID *int64,
	) ([]models.AnnotationSnapshot, error)
}

// postgresSnapshotRepository реализует SnapshotRepository для PostgreSQL.
type postgresSnapshotRepository struct{}

// NewPostgresSnapshotRepository создает новый экземпляр репозитория снапшотов.
func NewPostgresSnapshotRepository() SnapshotRepository {
	return &postgresSnapshotRepository{}
}

// InsertBatch вставляет набор снапшотов одной версии. Вызывается внутри
// транзакции публикации: при любой ошибке вся публикация откатывается целиком.
func (r *postgresSnapshotRepository) InsertBatch(
	ctx context.Context,
	q sqlx.ExtContext,
	snapshots []models.AnnotationSnapshot,
) error {
	query := `INSERT INTO annotation_snapshots (version_id, annotation_id, image_id, payload)
	          VALUES ($1, $2, $3, $4)`

	for i := range snapshots {
		s := &snapshots[i]
		if _, err := q.ExecContext(ctx, query, s.VersionID, s.AnnotationID, s.ImageID, s.Payload); err != nil {
			log.Printf("[SnapRepo] Ошибка вставки снапшота аннотации %d (версия %d): %v",
				s.AnnotationID, s.VersionID, err)
			return fmt.Errorf("ошибка выполнения запроса на вставку снапшота: %w", err)
		}
	}

	return nil
}

// ListByVersion возвращает снапшоты опубликованной версии,
// опционально ограничиваясь одним изображением.
func (r *postgresSnapshotRepository) ListByVersion(
	ctx context.Context,
	q sqlx.ExtContext,
	versionID int64,
	imageID *int64,
) ([]models.AnnotationSnapshot, error) {
	query := `SELECT id, version_id, annotation_id, image_id, payload
	          FROM annotation_snapshots
	          WHERE version_id = $1`
	args := []interface{}{versionID}
	if imageID != nil {
		query += ` AND image_id = $2`
		args = append(args, *imageID)
	}
	query += ` ORDER BY image_id, annotation_id`

	var list []models.AnnotationSnapshot
	if err := sqlx.SelectContext(ctx, q, &list, query, args...); err != nil {
		log.Printf("[SnapRepo] Ошибка получения снапшотов версии %d: %v", versionID, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на получение снапшотов: %w", err)
	}

	return list, nil
}

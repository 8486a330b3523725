package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	"github.com/razmetka/server/internal/models"
)

// Кастомные ошибки репозитория изображений.
var (
	ErrImageNotFound = errors.New("изображение не найдено")
)

const imageColumns = `id, project_id, filename, object_key, content_type, size_bytes,
	width, height, created_by, created_at`

// ImageRepository определяет методы для работы с метаданными изображений.
type ImageRepository interface {
	Create(ctx context.Context, img *models.Image) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.Image, error)
	ListByProject(ctx context.Context, projectID int64) ([]models.Image, error)
}

// postgresImageRepository реализует ImageRepository для PostgreSQL.
type postgresImageRepository struct {
	db *sqlx.DB
}

// NewPostgresImageRepository создает новый экземпляр репозитория изображений.
func NewPostgresImageRepository(db *sqlx.DB) ImageRepository {
	return &postgresImageRepository{db: db}
}

// Create создает запись о новом изображении.
func (r *postgresImageRepository) Create(ctx context.Context, img *models.Image) (int64, error) {
	query := `INSERT INTO images (project_id, filename, object_key, content_type, size_bytes, width, height, created_by)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`
	var id int64

	err := r.db.QueryRowxContext(ctx, query,
		img.ProjectID, img.Filename, img.ObjectKey, img.ContentType,
		img.SizeBytes, img.Width, img.Height, img.CreatedBy,
	).Scan(&id)
	if err != nil {
		log.Printf("[ImgRepo] Ошибка создания записи об изображении '%s': %v", img.Filename, err)
		return 0, fmt.Errorf("ошибка выполнения запроса на создание изображения: %w", err)
	}

	return id, nil
}

// GetByID читает метаданные изображения по идентификатору.
func (r *postgresImageRepository) GetByID(ctx context.Context, id int64) (*models.Image, error) {
	query := `SELECT ` + imageColumns + ` FROM images WHERE id = $1`
	var img models.Image

	err := r.db.GetContext(ctx, &img, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrImageNotFound
		}
		log.Printf("[ImgRepo] Ошибка чтения изображения %d: %v", id, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на чтение изображения: %w", err)
	}

	return &img, nil
}

// ListByProject возвращает все изображения проекта.
func (r *postgresImageRepository) ListByProject(ctx context.Context, projectID int64) ([]models.Image, error) {
	query := `SELECT ` + imageColumns + ` FROM images WHERE project_id = $1 ORDER BY id`
	var list []models.Image

	if err := r.db.SelectContext(ctx, &list, query, projectID); err != nil {
		log.Printf("[ImgRepo] Ошибка получения изображений проекта %d: %v", projectID, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на получение изображений: %w", err)
	}

	return list, nil
}

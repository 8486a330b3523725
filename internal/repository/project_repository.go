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

// Кастомные ошибки репозитория проектов.
var (
	ErrProjectNotFound = errors.New("проект не найден")
)

// ProjectRepository определяет методы для работы с проектами.
type ProjectRepository interface {
	Create(ctx context.Context, p *models.Project) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.Project, error)
	List(ctx context.Context) ([]models.Project, error)
}

// postgresProjectRepository реализует ProjectRepository для PostgreSQL.
type postgresProjectRepository struct {
	db *sqlx.DB
}

// NewPostgresProjectRepository создает новый экземпляр репозитория проектов.
func NewPostgresProjectRepository(db *sqlx.DB) ProjectRepository {
	return &postgresProjectRepository{db: db}
}

// Create создает новый проект.
func (r *postgresProjectRepository) Create(ctx context.Context, p *models.Project) (int64, error) {
	query := `INSERT INTO projects (name, description, created_by) VALUES ($1, $2, $3) RETURNING id`
	var id int64

	err := r.db.QueryRowxContext(ctx, query, p.Name, p.Description, p.CreatedBy).Scan(&id)
	if err != nil {
		log.Printf("[ProjRepo] Ошибка создания проекта '%s': %v", p.Name, err)
		return 0, fmt.Errorf("ошибка выполнения запроса на создание проекта: %w", err)
	}

	log.Printf("[ProjRepo] Проект '%s' успешно создан с ID %d", p.Name, id)
	return id, nil
}

// GetByID читает проект по идентификатору.
func (r *postgresProjectRepository) GetByID(ctx context.Context, id int64) (*models.Project, error) {
	query := `SELECT id, name, description, created_by, created_at, updated_at FROM projects WHERE id = $1`
	var p models.Project

	err := r.db.GetContext(ctx, &p, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProjectNotFound
		}
		log.Printf("[ProjRepo] Ошибка чтения проекта %d: %v", id, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на чтение проекта: %w", err)
	}

	return &p, nil
}

// List возвращает все проекты.
func (r *postgresProjectRepository) List(ctx context.Context) ([]models.Project, error) {
	query := `SELECT id, name, description, created_by, created_at, updated_at FROM projects ORDER BY id`
	var list []models.Project

	if err := r.db.SelectContext(ctx, &list, query); err != nil {
		log.Printf("[ProjRepo] Ошибка получения списка проектов: %v", err)
		return nil, fmt.Errorf("ошибка выполнения запроса на получение проектов: %w", err)
	}

	return list, nil
}

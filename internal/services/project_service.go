package services

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/razmetka/server/internal/models"
	"github.com/razmetka/server/internal/repository"
)

// ProjectService определяет интерфейс для работы с проектами разметки.
type ProjectService interface {
	Create(ctx context.Context, userID int64, req *models.CreateProjectRequest) (*models.Project, error)
	GetByID(ctx context.Context, id int64) (*models.Project, error)
	List(ctx context.Context) ([]models.Project, error)
}

// Убедимся, что projectService удовлетворяет интерфейсу ProjectService.
var _ ProjectService = (*projectService)(nil)

type projectService struct {
	projects repository.ProjectRepository
}

// NewProjectService создает новый экземпляр сервиса проектов.
func NewProjectService(projects repository.ProjectRepository) ProjectService {
	return &projectService{projects: projects}
}

// Create создает проект разметки.
func (s *projectService) Create(
	ctx context.Context,
	userID int64,
	req *models.CreateProjectRequest,
) (*models.Project, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, NewValidationError("имя проекта не задано")
	}

	now := time.Now().UTC()
	p := &models.Project{
		Name:        name,
		Description: req.Description,
		CreatedBy:   userID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	id, err := s.projects.Create(ctx, p)
	if err != nil {
		return nil, err
	}
	p.ID = id

	log.Printf("[ProjService] Пользователь %d создал проект '%s' (ID %d)", userID, name, id)
	return p, nil
}

// GetByID возвращает проект по идентификатору.
func (s *projectService) GetByID(ctx context.Context, id int64) (*models.Project, error) {
	p, err := s.projects.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}
	return p, nil
}

// List возвращает все проекты.
func (s *projectService) List(ctx context.Context) ([]models.Project, error) {
	return s.projects.List(ctx)
}

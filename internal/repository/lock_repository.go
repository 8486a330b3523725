package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/razmetka/server/internal/models"
)

// Кастомные ошибки репозитория блокировок.
var (
	ErrLockNotFound = errors.New("блокировка не найдена")
	ErrLockExists   = errors.New("блокировка уже существует")
)

// LockRepository определяет методы для работы с блокировками изображений.
// Методы принимают исполнитель запросов (q): сервис передает *sqlx.Tx, когда
// проверка блокировки должна быть видна атомарно с мутацией аннотации,
// либо *sqlx.DB для одиночных операций.
type LockRepository interface {
	GetForUpdate(ctx context.Context, q sqlx.ExtContext, projectID, imageID int64) (*models.ImageLock, error)
	Insert(ctx context.Context, q sqlx.ExtContext, lock *models.ImageLock) error
	Refresh(ctx context.Context, q sqlx.ExtContext, projectID, imageID int64, heartbeatAt, expiresAt time.Time) error
	Delete(ctx context.Context, q sqlx.ExtContext, projectID, imageID int64) (bool, error)
	ListByProject(ctx context.Context, q sqlx.ExtContext, projectID int64) ([]models.ImageLock, error)
}

// postgresLockRepository реализует LockRepository для PostgreSQL.
type postgresLockRepository struct{}

// NewPostgresLockRepository создает новый экземпляр репозитория блокировок.
func NewPostgresLockRepository() LockRepository {
	return &postgresLockRepository{}
}

// GetForUpdate читает блокировку по ключу (проект, изображение).
// Внутри транзакции строка блокируется (FOR UPDATE), чтобы конкурирующие
// операции над тем же ключом сериализовались.
func (r *postgresLockRepository) GetForUpdate(
	ctx context.Context,
	q sqlx.ExtContext,
	projectID, imageID int64,
) (*models.ImageLock, error) {
	query := `SELECT l.project_id, l.image_id, l.locked_by,
	                 (SELECT u.username FROM users u WHERE u.id = l.locked_by) AS locked_by_name,
	                 l.acquired_at, l.heartbeat_at, l.expires_at
	          FROM image_locks l
	          WHERE l.project_id = $1 AND l.image_id = $2
	          FOR UPDATE OF l`
	var lock models.ImageLock

	err := sqlx.GetContext(ctx, q, &lock, query, projectID, imageID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLockNotFound
		}
		log.Printf("[LockRepo] Ошибка чтения блокировки (%d, %d): %v", projectID, imageID, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на чтение блокировки: %w", err)
	}

	return &lock, nil
}

// Insert создает новую блокировку. При гонке двух одновременных захватов
// ключа вторая вставка нарушит первичный ключ и вернет ErrLockExists.
func (r *postgresLockRepository) Insert(ctx context.Context, q sqlx.ExtContext, lock *models.ImageLock) error {
	query := `INSERT INTO image_locks (project_id, image_id, locked_by, acquired_at, heartbeat_at, expires_at)
	          VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := q.ExecContext(ctx, query,
		lock.ProjectID, lock.ImageID, lock.LockedBy,
		lock.AcquiredAt, lock.HeartbeatAt, lock.ExpiresAt,
	)
	if err != nil {
		var pgErr *pq.Error
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolationCode {
			log.Printf("[LockRepo] Гонка при захвате блокировки (%d, %d)", lock.ProjectID, lock.ImageID)
			return ErrLockExists
		}
		log.Printf("[LockRepo] Ошибка создания блокировки (%d, %d): %v", lock.ProjectID, lock.ImageID, err)
		return fmt.Errorf("ошибка выполнения запроса на создание блокировки: %w", err)
	}

	return nil
}

// Refresh продлевает аренду блокировки: обновляет heartbeat_at и expires_at.
func (r *postgresLockRepository) Refresh(
	ctx context.Context,
	q sqlx.ExtContext,
	projectID, imageID int64,
	heartbeatAt, expiresAt time.Time,
) error {
	query := `UPDATE image_locks SET heartbeat_at = $3, expires_at = $4
	          WHERE project_id = $1 AND image_id = $2`

	res, err := q.ExecContext(ctx, query, projectID, imageID, heartbeatAt, expiresAt)
	if err != nil {
		log.Printf("[LockRepo] Ошибка продления блокировки (%d, %d): %v", projectID, imageID, err)
		return fmt.Errorf("ошибка выполнения запроса на продление блокировки: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ошибка получения числа обновленных строк: %w", err)
	}
	if affected == 0 {
		return ErrLockNotFound
	}

	return nil
}

// Delete удаляет блокировку. Возвращает true, если строка существовала.
func (r *postgresLockRepository) Delete(
	ctx context.Context,
	q sqlx.ExtContext,
	projectID, imageID int64,
) (bool, error) {
	query := `DELETE FROM image_locks WHERE project_id = $1 AND image_id = $2`

	res, err := q.ExecContext(ctx, query, projectID, imageID)
	if err != nil {
		log.Printf("[LockRepo] Ошибка удаления блокировки (%d, %d): %v", projectID, imageID, err)
		return false, fmt.Errorf("ошибка выполнения запроса на удаление блокировки: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("ошибка получения числа удаленных строк: %w", err)
	}

	return affected > 0, nil
}

// ListByProject возвращает все блокировки проекта, включая просроченные -
// ленивую очистку просроченных выполняет сервисный слой.
func (r *postgresLockRepository) ListByProject(
	ctx context.Context,
	q sqlx.ExtContext,
	projectID int64,
) ([]models.ImageLock, error) {
	query := `SELECT l.project_id, l.image_id, l.locked_by,
	                 (SELECT u.username FROM users u WHERE u.id = l.locked_by) AS locked_by_name,
	                 l.acquired_at, l.heartbeat_at, l.expires_at
	          FROM image_locks l
	          WHERE l.project_id = $1
	          ORDER BY l.image_id`
	var locks []models.ImageLock

	if err := sqlx.SelectContext(ctx, q, &locks, query, projectID); err != nil {
		log.Printf("[LockRepo] Ошибка получения блокировок проекта %d: %v", projectID, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на получение блокировок проекта: %w", err)
	}

	return locks, nil
}

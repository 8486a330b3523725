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

// LockTTL - фиксированная длительность аренды блокировки изображения.
// Клиенты обязаны слать heartbeat чаще, чтобы не потерять блокировку
// во время активной сессии редактирования.
const LockTTL = 5 * time.Minute

// LockService определяет интерфейс менеджера блокировок изображений.
// Все операции действуют на ключ (проект, изображение); просроченные
// блокировки удаляются лениво - при следующем обращении к ключу, фоновой
// чистки нет.
type LockService interface {
	Acquire(ctx context.Context, projectID, imageID, userID int64) (*models.LockResult, error)
	Heartbeat(ctx context.Context, projectID, imageID, userID int64) (*models.LockResult, error)
	Release(ctx context.Context, projectID, imageID, userID int64) (*models.LockResult, error)
	ForceRelease(ctx context.Context, projectID, imageID int64) (*models.LockResult, error)
	Status(ctx context.Context, projectID, imageID int64) (*models.ImageLock, error)
	ListProjectLocks(ctx context.Context, projectID int64) ([]models.ImageLock, error)
	EnsureForMutation(ctx context.Context, q sqlx.ExtContext, projectID, imageID, userID int64) error
}

// Убедимся, что lockService удовлетворяет интерфейсу LockService.
var _ LockService = (*lockService)(nil)

type lockService struct {
	db    *sqlx.DB
	locks repository.LockRepository
}

// NewLockService создает новый экземпляр менеджера блокировок.
func NewLockService(db *sqlx.DB, locks repository.LockRepository) LockService {
	return &lockService{db: db, locks: locks}
}

// getLive читает блокировку ключа и лениво удаляет ее, если аренда истекла.
// Возвращает nil без ошибки, когда живой блокировки нет.
func (s *lockService) getLive(
	ctx context.Context,
	q sqlx.ExtContext,
	projectID, imageID int64,
	now time.Time,
) (*models.ImageLock, error) {
	lock, err := s.locks.GetForUpdate(ctx, q, projectID, imageID)
	if err != nil {
		if errors.Is(err, repository.ErrLockNotFound) {
			return nil, nil
		}
		return nil, err
	}

	if lock.Expired(now) {
		log.Printf("[LockService] Ленивое удаление просроченной блокировки (%d, %d), держатель %d",
			projectID, imageID, lock.LockedBy)
		if _, err := s.locks.Delete(ctx, q, projectID, imageID); err != nil {
			return nil, err
		}
		return nil, nil
	}

	return lock, nil
}

// Acquire захватывает блокировку изображения для пользователя.
// Повторный захват держателем продлевает аренду (refreshed); захват чужой
// живой блокировки не меняет состояние и возвращает already_locked
// со сведениями о держателе.
func (s *lockService) Acquire(ctx context.Context, projectID, imageID, userID int64) (*models.LockResult, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	lock, err := s.getLive(ctx, tx, projectID, imageID, now)
	if err != nil {
		return nil, err
	}

	var result *models.LockResult
	switch {
	case lock == nil:
		newLock := &models.ImageLock{
			ProjectID:   projectID,
			ImageID:     imageID,
			LockedBy:    userID,
			AcquiredAt:  now,
			HeartbeatAt: now,
			ExpiresAt:   now.Add(LockTTL),
		}
		if err = s.locks.Insert(ctx, tx, newLock); err != nil {
			if errors.Is(err, repository.ErrLockExists) {
				// Гонка двух захватов свободного ключа: вставка конкурента
				// победила, наша транзакция прервана. Состояние не изменено.
				return &models.LockResult{Status: models.LockStatusAlreadyLocked}, nil
			}
			return nil, err
		}
		result = &models.LockResult{Status: models.LockStatusAcquired, Lock: newLock}
		log.Printf("[LockService] Пользователь %d захватил блокировку (%d, %d)", userID, projectID, imageID)
	case lock.LockedBy == userID:
		lock.HeartbeatAt = now
		lock.ExpiresAt = now.Add(LockTTL)
		if err = s.locks.Refresh(ctx, tx, projectID, imageID, lock.HeartbeatAt, lock.ExpiresAt); err != nil {
			return nil, err
		}
		result = &models.LockResult{Status: models.LockStatusRefreshed, Lock: lock}
	default:
		log.Printf("[LockService] Блокировка (%d, %d) занята пользователем %d, отказ пользователю %d",
			projectID, imageID, lock.LockedBy, userID)
		result = &models.LockResult{Status: models.LockStatusAlreadyLocked, Lock: lock}
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}
	return result, nil
}

// Heartbeat продлевает аренду блокировки держателя: heartbeat_at обновляется,
// expires_at сдвигается на heartbeat_at + LockTTL. Аренда никогда
// не укорачивается.
func (s *lockService) Heartbeat(ctx context.Context, projectID, imageID, userID int64) (*models.LockResult, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	lock, err := s.getLive(ctx, tx, projectID, imageID, now)
	if err != nil {
		return nil, err
	}

	var result *models.LockResult
	switch {
	case lock == nil:
		result = &models.LockResult{Status: models.LockStatusNotLocked}
	case lock.LockedBy != userID:
		result = &models.LockResult{Status: models.LockStatusNotOwner, Lock: lock}
	default:
		lock.HeartbeatAt = now
		lock.ExpiresAt = now.Add(LockTTL)
		if err = s.locks.Refresh(ctx, tx, projectID, imageID, lock.HeartbeatAt, lock.ExpiresAt); err != nil {
			return nil, err
		}
		result = &models.LockResult{Status: models.LockStatusUpdated, Lock: lock}
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}
	return result, nil
}

// Release снимает блокировку держателя. Чужая блокировка не удаляется
// (not_owner) - это защищает от случайного перехвата через release.
func (s *lockService) Release(ctx context.Context, projectID, imageID, userID int64) (*models.LockResult, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	lock, err := s.getLive(ctx, tx, projectID, imageID, now)
	if err != nil {
		return nil, err
	}

	var result *models.LockResult
	switch {
	case lock == nil:
		result = &models.LockResult{Status: models.LockStatusNotLocked}
	case lock.LockedBy != userID:
		result = &models.LockResult{Status: models.LockStatusNotOwner, Lock: lock}
	default:
		if _, err = s.locks.Delete(ctx, tx, projectID, imageID); err != nil {
			return nil, err
		}
		result = &models.LockResult{Status: models.LockStatusReleased}
		log.Printf("[LockService] Пользователь %d снял блокировку (%d, %d)", userID, projectID, imageID)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}
	return result, nil
}

// ForceRelease безусловно снимает блокировку независимо от держателя.
// Доступно только привилегированным вызывающим - это решает слой API.
func (s *lockService) ForceRelease(ctx context.Context, projectID, imageID int64) (*models.LockResult, error) {
	deleted, err := s.locks.Delete(ctx, s.db, projectID, imageID)
	if err != nil {
		return nil, err
	}

	if !deleted {
		return &models.LockResult{Status: models.LockStatusNotLocked}, nil
	}
	log.Printf("[LockService] Принудительно снята блокировка (%d, %d)", projectID, imageID)
	return &models.LockResult{Status: models.LockStatusReleased}, nil
}

// Status возвращает живую блокировку ключа или nil, если ее нет.
// Побочный эффект: найденная просроченная блокировка удаляется.
func (s *lockService) Status(ctx context.Context, projectID, imageID int64) (*models.ImageLock, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	lock, err := s.getLive(ctx, tx, projectID, imageID, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}
	return lock, nil
}

// ListProjectLocks возвращает все живые блокировки проекта.
// Побочный эффект: встреченные просроченные блокировки удаляются.
func (s *lockService) ListProjectLocks(ctx context.Context, projectID int64) ([]models.ImageLock, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	all, err := s.locks.ListByProject(ctx, tx, projectID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	live := make([]models.ImageLock, 0, len(all))
	for i := range all {
		if all[i].Expired(now) {
			if _, err = s.locks.Delete(ctx, tx, all[i].ProjectID, all[i].ImageID); err != nil {
				return nil, err
			}
			continue
		}
		live = append(live, all[i])
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}
	return live, nil
}

// EnsureForMutation - неявная проверка блокировки перед мутацией аннотации.
// Выполняется внутри той же транзакции (q), что и сама мутация: свободное
// изображение автоматически захватывается для пользователя (однопользовательский
// сценарий без явного захвата), своя блокировка продлевается, чужая живая
// блокировка приводит к LockConflictError и отказу всей мутации.
// Откат мутации откатывает и захват - «фантомных» блокировок не остается.
func (s *lockService) EnsureForMutation(
	ctx context.Context,
	q sqlx.ExtContext,
	projectID, imageID, userID int64,
) error {
	now := time.Now().UTC()
	lock, err := s.getLive(ctx, q, projectID, imageID, now)
	if err != nil {
		return err
	}

	switch {
	case lock == nil:
		newLock := &models.ImageLock{
			ProjectID:   projectID,
			ImageID:     imageID,
			LockedBy:    userID,
			AcquiredAt:  now,
			HeartbeatAt: now,
			ExpiresAt:   now.Add(LockTTL),
		}
		if err = s.locks.Insert(ctx, q, newLock); err != nil {
			if errors.Is(err, repository.ErrLockExists) {
				return &LockConflictError{ProjectID: projectID, ImageID: imageID}
			}
			return err
		}
		return nil
	case lock.LockedBy == userID:
		return s.locks.Refresh(ctx, q, projectID, imageID, now, now.Add(LockTTL))
	default:
		return &LockConflictError{
			ProjectID:    projectID,
			ImageID:      imageID,
			LockedBy:     lock.LockedBy,
			LockedByName: lock.LockedByName,
			ExpiresAt:    lock.ExpiresAt,
		}
	}
}

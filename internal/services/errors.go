package services

import (
	"errors"
	"fmt"
	"time"
)

// Кастомные ошибки сервисного слоя.
var (
	ErrAnnotationNotFound = errors.New("аннотация не найдена")
	ErrVersionNotFound    = errors.New("версия не найдена")
	ErrProjectNotFound    = errors.New("проект не найден")
	ErrImageNotFound      = errors.New("изображение не найдено")
	ErrVersionNumberTaken = errors.New("номер версии уже опубликован")
)

// ValidationError - ошибка входных данных клиента (несовместимые версии для
// сравнения, недопустимая геометрия, зарезервированная метка версии и т.п.).
// Отличается от ошибок хранилища: это всегда вина запроса, а не сервера.
type ValidationError struct {
	Message string
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError создает ошибку валидации с форматированием.
func NewValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// LockConflictError - изображение заблокировано другим пользователем.
// Мутация отклоняется целиком и никогда не повторяется автоматически.
type LockConflictError struct {
	ProjectID    int64
	ImageID      int64
	LockedBy     int64
	LockedByName string
	ExpiresAt    time.Time
}

// Error реализует интерфейс error.
func (e *LockConflictError) Error() string {
	if e.LockedByName != "" {
		return fmt.Sprintf("изображение %d заблокировано пользователем '%s' до %s",
			e.ImageID, e.LockedByName, e.ExpiresAt.Format(time.RFC3339))
	}
	return fmt.Sprintf("изображение %d заблокировано другим пользователем", e.ImageID)
}

// VersionConflictError - не совпала ожидаемая версия записи (оптимистическая
// блокировка). Несет данные, по которым клиент решает, повторять ли попытку.
type VersionConflictError struct {
	AnnotationID     int64
	CurrentVersion   int
	RequestedVersion int
	LastModifiedBy   int64
	LastModifiedAt   time.Time
}

// Error реализует интерфейс error.
func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("конфликт версий аннотации %d: текущая версия %d, запрошенная %d",
		e.AnnotationID, e.CurrentVersion, e.RequestedVersion)
}

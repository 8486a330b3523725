package repository_test

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/razmetka/server/internal/models"
	"github.com/razmetka/server/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Вспомогательная функция для создания мока БД и репозитория пользователей.
func setupUserRepoMock(t *testing.T) (repository.UserRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	sqlxDB := sqlx.NewDb(db, "sqlmock")
	return repository.NewPostgresUserRepository(sqlxDB), mock
}

func TestUserRepository_CreateUser(t *testing.T) {
	insertQuery := regexp.QuoteMeta(`INSERT INTO users (username, password_hash) VALUES ($1, $2) RETURNING id`)

	tests := []struct {
		name        string
		user        *models.User
		mockSetup   func(mock sqlmock.Sqlmock, user *models.User)
		expectedID  int64
		expectedErr error
	}{
		{
			name: "Успешное создание",
			user: &models.User{Username: "newuser", PasswordHash: "hash123"},
			mockSetup: func(mock sqlmock.Sqlmock, user *models.User) {
				rows := sqlmock.NewRows([]string{"id"}).AddRow(int64(1))
				mock.ExpectQuery(insertQuery).WithArgs(user.Username, user.PasswordHash).WillReturnRows(rows)
			},
			expectedID: 1,
		},
		{
			name: "Имя пользователя занято",
			user: &models.User{Username: "existinguser", PasswordHash: "hash456"},
			mockSetup: func(mock sqlmock.Sqlmock, user *models.User) {
				mock.ExpectQuery(insertQuery).WithArgs(user.Username, user.PasswordHash).
					WillReturnError(&pq.Error{Code: "23505"})
			},
			expectedErr: repository.ErrUsernameTaken,
		},
		{
			name: "Ошибка базы данных",
			user: &models.User{Username: "erroruser", PasswordHash: "hash789"},
			mockSetup: func(mock sqlmock.Sqlmock, user *models.User) {
				mock.ExpectQuery(insertQuery).WithArgs(user.Username, user.PasswordHash).
					WillReturnError(errors.New("database error"))
			},
			expectedErr: errors.New("ошибка выполнения запроса"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := setupUserRepoMock(t)
			tt.mockSetup(mock, tt.user)

			userID, err := repo.CreateUser(context.Background(), tt.user)

			assert.Equal(t, tt.expectedID, userID)
			if tt.expectedErr == nil {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
				if errors.Is(tt.expectedErr, repository.ErrUsernameTaken) {
					assert.ErrorIs(t, err, repository.ErrUsernameTaken)
				} else {
					assert.Contains(t, err.Error(), "ошибка выполнения запроса")
				}
			}

			assert.NoError(t, mock.ExpectationsWereMet(), "Не все ожидания мока были выполнены")
		})
	}
}

func TestUserRepository_GetUserByUsername(t *testing.T) {
	selectQuery := regexp.QuoteMeta(
		`SELECT id, username, password_hash, created_at, updated_at FROM users WHERE username=$1`)

	now := time.Now()
	testUser := &models.User{
		ID:           1,
		Username:     "testuser",
		PasswordHash: "hash123",
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	t.Run("Успешный поиск", func(t *testing.T) {
		repo, mock := setupUserRepoMock(t)

		rows := sqlmock.NewRows([]string{"id", "username", "password_hash", "created_at", "updated_at"}).
			AddRow(testUser.ID, testUser.Username, testUser.PasswordHash, testUser.CreatedAt, testUser.UpdatedAt)
		mock.ExpectQuery(selectQuery).WithArgs("testuser").WillReturnRows(rows)

		user, err := repo.GetUserByUsername(context.Background(), "testuser")
		require.NoError(t, err)
		assert.Equal(t, testUser, user)
	})

	t.Run("Пользователь не найден", func(t *testing.T) {
		repo, mock := setupUserRepoMock(t)

		mock.ExpectQuery(selectQuery).WithArgs("ghost").WillReturnError(sql.ErrNoRows)

		user, err := repo.GetUserByUsername(context.Background(), "ghost")
		require.ErrorIs(t, err, repository.ErrUserNotFound)
		assert.Nil(t, user)
	})

	t.Run("Ошибка базы данных", func(t *testing.T) {
		repo, mock := setupUserRepoMock(t)

		mock.ExpectQuery(selectQuery).WithArgs("erroruser").WillReturnError(errors.New("database error"))

		_, err := repo.GetUserByUsername(context.Background(), "erroruser")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ошибка выполнения запроса")
	})
}

func TestUserRepository_GetUserByID(t *testing.T) {
	selectQuery := regexp.QuoteMeta(
		`SELECT id, username, password_hash, created_at, updated_at FROM users WHERE id=$1`)

	t.Run("Успешный поиск", func(t *testing.T) {
		repo, mock := setupUserRepoMock(t)

		now := time.Now()
		rows := sqlmock.NewRows([]string{"id", "username", "password_hash", "created_at", "updated_at"}).
			AddRow(int64(42), "annotator", "hash", now, now)
		mock.ExpectQuery(selectQuery).WithArgs(int64(42)).WillReturnRows(rows)

		user, err := repo.GetUserByID(context.Background(), 42)
		require.NoError(t, err)
		assert.Equal(t, "annotator", user.Username)
	})

	t.Run("Пользователь не найден", func(t *testing.T) {
		repo, mock := setupUserRepoMock(t)

		mock.ExpectQuery(selectQuery).WithArgs(int64(404)).WillReturnError(sql.ErrNoRows)

		user, err := repo.GetUserByID(context.Background(), 404)
		require.ErrorIs(t, err, repository.ErrUserNotFound)
		assert.Nil(t, user)
	})
}

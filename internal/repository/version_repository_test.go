package repository_test

import (
	"context"
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

// Вспомогательная функция для создания мока БД и репозитория версий.
func setupVersionRepoMock(t *testing.T) (repository.VersionRepository, *sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	sqlxDB := sqlx.NewDb(db, "sqlmock")
	return repository.NewPostgresVersionRepository(), sqlxDB, mock
}

func versionColumns() []string {
	return []string{
		"id", "project_id", "task_type", "version_number", "version_type",
		"created_by", "created_at", "annotation_count", "image_count",
	}
}

func TestVersionRepository_Create(t *testing.T) {
	ctx := context.Background()
	insertQuery := regexp.QuoteMeta(`INSERT INTO annotation_versions
		(project_id, task_type, version_number, version_type, created_by, annotation_count, image_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`)

	version := &models.AnnotationVersion{
		ProjectID:       1,
		TaskType:        models.TaskDetection,
		VersionNumber:   "v1.0",
		VersionType:     models.VersionTypePublished,
		CreatedBy:       10,
		AnnotationCount: 3,
		ImageCount:      2,
	}

	t.Run("Успешное создание", func(t *testing.T) {
		repo, db, mock := setupVersionRepoMock(t)

		mock.ExpectQuery(insertQuery).
			WithArgs(version.ProjectID, version.TaskType, version.VersionNumber, version.VersionType,
				version.CreatedBy, version.AnnotationCount, version.ImageCount).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(500)))

		id, err := repo.Create(ctx, db, version)
		require.NoError(t, err)
		assert.Equal(t, int64(500), id)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Номер версии уже занят: нарушение частичного индекса", func(t *testing.T) {
		repo, db, mock := setupVersionRepoMock(t)

		mock.ExpectQuery(insertQuery).
			WillReturnError(&pq.Error{Code: "23505"})

		_, err := repo.Create(ctx, db, version)
		require.ErrorIs(t, err, repository.ErrVersionNumberTaken)
	})

	t.Run("Ошибка базы данных", func(t *testing.T) {
		repo, db, mock := setupVersionRepoMock(t)

		mock.ExpectQuery(insertQuery).
			WillReturnError(errors.New("database error"))

		_, err := repo.Create(ctx, db, version)
		require.Error(t, err)
		assert.NotErrorIs(t, err, repository.ErrVersionNumberTaken)
	})
}

func TestVersionRepository_GetByID(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	selectQuery := regexp.QuoteMeta(`SELECT id, project_id, task_type, version_number, version_type,
		created_by, created_at, annotation_count, image_count FROM annotation_versions WHERE id = $1`)

	t.Run("Версия найдена", func(t *testing.T) {
		repo, db, mock := setupVersionRepoMock(t)

		rows := sqlmock.NewRows(versionColumns()).
			AddRow(int64(500), int64(1), "detection", "v1.0", "published", int64(10), now, 3, 2)
		mock.ExpectQuery(selectQuery).
			WithArgs(int64(500)).
			WillReturnRows(rows)

		v, err := repo.GetByID(ctx, db, 500)
		require.NoError(t, err)
		assert.Equal(t, "v1.0", v.VersionNumber)
		assert.Equal(t, models.VersionTypePublished, v.VersionType)
	})

	t.Run("Версия не найдена", func(t *testing.T) {
		repo, db, mock := setupVersionRepoMock(t)

		mock.ExpectQuery(selectQuery).
			WithArgs(int64(404)).
			WillReturnRows(sqlmock.NewRows(versionColumns()))

		_, err := repo.GetByID(ctx, db, 404)
		require.ErrorIs(t, err, repository.ErrVersionNotFound)
	})
}

func TestVersionRepository_ListByProjectAndTask(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	listQuery := regexp.QuoteMeta(`SELECT id, project_id, task_type, version_number, version_type,
		created_by, created_at, annotation_count, image_count
		FROM annotation_versions
		WHERE project_id = $1 AND task_type = $2
		ORDER BY created_at`)

	t.Run("Возвращает опубликованные и виртуальные версии", func(t *testing.T) {
		repo, db, mock := setupVersionRepoMock(t)

		rows := sqlmock.NewRows(versionColumns()).
			AddRow(int64(1), int64(1), "detection", "working", "working", int64(0), now, 0, 0).
			AddRow(int64(2), int64(1), "detection", "v1.0", "published", int64(10), now, 3, 2)
		mock.ExpectQuery(listQuery).
			WithArgs(int64(1), models.TaskDetection).
			WillReturnRows(rows)

		list, err := repo.ListByProjectAndTask(ctx, db, 1, models.TaskDetection)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, models.VersionTypeWorking, list[0].VersionType)
	})
}

func TestVersionRepository_EnsureVirtual(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	insertQuery := regexp.QuoteMeta(`INSERT INTO annotation_versions
		(project_id, task_type, version_number, version_type, created_by, annotation_count, image_count)
		VALUES ($1, $2, $3, $4, 0, 0, 0)
		ON CONFLICT DO NOTHING`)
	selectQuery := regexp.QuoteMeta(`SELECT id, project_id, task_type, version_number, version_type,
		created_by, created_at, annotation_count, image_count
		FROM annotation_versions
		WHERE project_id = $1 AND task_type = $2 AND version_type = $3`)

	t.Run("Создает placeholder и возвращает строку", func(t *testing.T) {
		repo, db, mock := setupVersionRepoMock(t)

		mock.ExpectExec(insertQuery).
			WithArgs(int64(1), models.TaskDetection, "working", models.VersionTypeWorking).
			WillReturnResult(sqlmock.NewResult(0, 1))
		rows := sqlmock.NewRows(versionColumns()).
			AddRow(int64(7), int64(1), "detection", "working", "working", int64(0), now, 0, 0)
		mock.ExpectQuery(selectQuery).
			WithArgs(int64(1), models.TaskDetection, models.VersionTypeWorking).
			WillReturnRows(rows)

		v, err := repo.EnsureVirtual(ctx, db, 1, models.TaskDetection, models.VersionTypeWorking)
		require.NoError(t, err)
		assert.Equal(t, int64(7), v.ID)
		assert.Equal(t, "working", v.VersionNumber)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Повторный вызов идемпотентен: вставка ничего не меняет", func(t *testing.T) {
		repo, db, mock := setupVersionRepoMock(t)

		mock.ExpectExec(insertQuery).
			WithArgs(int64(1), models.TaskDetection, "draft", models.VersionTypeDraft).
			WillReturnResult(sqlmock.NewResult(0, 0))
		rows := sqlmock.NewRows(versionColumns()).
			AddRow(int64(8), int64(1), "detection", "draft", "draft", int64(0), now, 0, 0)
		mock.ExpectQuery(selectQuery).
			WithArgs(int64(1), models.TaskDetection, models.VersionTypeDraft).
			WillReturnRows(rows)

		v, err := repo.EnsureVirtual(ctx, db, 1, models.TaskDetection, models.VersionTypeDraft)
		require.NoError(t, err)
		assert.Equal(t, int64(8), v.ID)
	})

	t.Run("Не применим к опубликованным версиям", func(t *testing.T) {
		repo, db, _ := setupVersionRepoMock(t)

		_, err := repo.EnsureVirtual(ctx, db, 1, models.TaskDetection, models.VersionTypePublished)
		require.Error(t, err)
	})
}

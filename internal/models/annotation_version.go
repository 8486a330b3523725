package models

import "time"

// VersionType определяет тип версии разметки.
type VersionType string

// Типы версий.
const (
	VersionTypePublished VersionType = "published"
	VersionTypeWorking   VersionType = "working"
	VersionTypeDraft     VersionType = "draft"
)

// Псевдометки виртуальных версий. Сортируются после любых числовых меток:
// working - самая поздняя, draft - перед ней.
const (
	VersionLabelWorking = "working"
	VersionLabelDraft   = "draft"
)

// AnnotationVersion представляет именованную версию разметки в рамках
// (проект, тип задачи). Опубликованные версии создаются один раз при
// публикации и неизменяемы; working/draft - виртуальные, их содержимое
// всегда разрешается из живой таблицы аннотаций, а не из снапшотов.
type AnnotationVersion struct {
	ID              int64       `db:"id" json:"id"`
	ProjectID       int64       `db:"project_id" json:"project_id"`
	TaskType        TaskType    `db:"task_type" json:"task_type"`
	VersionNumber   string      `db:"version_number" json:"version_number"`
	VersionType     VersionType `db:"version_type" json:"version_type"`
	CreatedBy       int64       `db:"created_by" json:"created_by"`
	CreatedAt       time.Time   `db:"created_at" json:"created_at"`
	AnnotationCount int         `db:"annotation_count" json:"annotation_count"`
	ImageCount      int         `db:"image_count" json:"image_count"`
}

// PublishRequest представляет тело запроса на публикацию версии.
type PublishRequest struct {
	VersionNumber string `json:"version_number"`
	IncludeDrafts bool   `json:"include_drafts,omitempty"`
}

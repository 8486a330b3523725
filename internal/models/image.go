package models

import "time"

// Image представляет изображение проекта. Сам файл хранится в объектном
// хранилище по ключу ObjectKey, в БД - только метаданные.
type Image struct {
	ID          int64     `db:"id" json:"id"`
	ProjectID   int64     `db:"project_id" json:"project_id"`
	Filename    string    `db:"filename" json:"filename"`
	ObjectKey   string    `db:"object_key" json:"-"`
	ContentType string    `db:"content_type" json:"content_type"`
	SizeBytes   int64     `db:"size_bytes" json:"size_bytes"`
	Width       *int      `db:"width" json:"width,omitempty"`
	Height      *int      `db:"height" json:"height,omitempty"`
	CreatedBy   int64     `db:"created_by" json:"created_by"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// SnapshotPayload - копия изменяемых полей аннотации на момент публикации.
// Хранится в JSONB; после создания никогда не изменяется.
type SnapshotPayload struct {
	ClassID    *int64          `json:"class_id,omitempty"`
	ClassName  string          `json:"class_name"`
	Geometry   Geometry        `json:"geometry"`
	Confidence *float64        `json:"confidence,omitempty"`
	Attributes Attributes      `json:"attributes,omitempty"`
	Notes      string          `json:"notes,omitempty"`
	State      AnnotationState `json:"annotation_state"`
	Version    int             `json:"version"`
	UpdatedBy  int64           `json:"updated_by"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Value реализует driver.Valuer для сохранения снапшота в JSONB.
func (p SnapshotPayload) Value() (driver.Value, error) {
	return json.Marshal(p)
}

// Scan реализует sql.Scanner для чтения снапшота из JSONB.
func (p *SnapshotPayload) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, p)
	case string:
		return json.Unmarshal([]byte(v), p)
	default:
		return fmt.Errorf("неподдерживаемый тип для SnapshotPayload: %T", src)
	}
}

// AnnotationSnapshot - неизменяемая копия одной аннотации, привязанная
// ровно к одной опубликованной версии. Одна строка на (version_id, annotation_id).
type AnnotationSnapshot struct {
	ID           int64           `db:"id" json:"id"`
	VersionID    int64           `db:"version_id" json:"version_id"`
	AnnotationID int64           `db:"annotation_id" json:"annotation_id"`
	ImageID      int64           `db:"image_id" json:"image_id"`
	Payload      SnapshotPayload `db:"payload" json:"payload"`
}

// NewSnapshot формирует снапшот из текущего состояния аннотации.
func NewSnapshot(versionID int64, a *Annotation) AnnotationSnapshot {
	return AnnotationSnapshot{
		VersionID:    versionID,
		AnnotationID: a.ID,
		ImageID:      a.ImageID,
		Payload: SnapshotPayload{
			ClassID:    a.ClassID,
			ClassName:  a.ClassName,
			Geometry:   a.Geometry,
			Confidence: a.Confidence,
			Attributes: a.Attributes,
			Notes:      a.Notes,
			State:      a.State,
			Version:    a.Version,
			UpdatedBy:  a.UpdatedBy,
			UpdatedAt:  a.UpdatedAt,
		},
	}
}

package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// AnnotationState определяет статус аннотации в рабочем процессе разметки.
type AnnotationState string

// Статусы аннотации.
const (
	AnnotationStateDraft     AnnotationState = "draft"
	AnnotationStateConfirmed AnnotationState = "confirmed"
	AnnotationStateVerified  AnnotationState = "verified"
)

// Attributes - произвольные атрибуты аннотации (ключ-значение).
// Хранятся в БД как JSONB.
type Attributes map[string]interface{}

// Value реализует driver.Valuer для сохранения атрибутов в JSONB.
func (a Attributes) Value() (driver.Value, error) {
	if a == nil {
		return json.Marshal(Attributes{})
	}
	return json.Marshal(a)
}

// Scan реализует sql.Scanner для чтения атрибутов из JSONB.
func (a *Attributes) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	case nil:
		*a = nil
		return nil
	default:
		return fmt.Errorf("неподдерживаемый тип для Attributes: %T", src)
	}
}

// Annotation представляет одну размеченную запись на изображении.
// Поле Version монотонно растет: +1 на каждую успешную мутацию
// (update/confirm/unconfirm), никогда не уменьшается и не сбрасывается.
type Annotation struct {
	ID         int64           `db:"id" json:"id"`
	ProjectID  int64           `db:"project_id" json:"project_id"`
	ImageID    int64           `db:"image_id" json:"image_id"`
	TaskType   TaskType        `db:"task_type" json:"task_type"`
	ClassID    *int64          `db:"class_id" json:"class_id,omitempty"`
	ClassName  string          `db:"class_name" json:"class_name"`
	Geometry   Geometry        `db:"geometry" json:"geometry"`
	Confidence *float64        `db:"confidence" json:"confidence,omitempty"`
	Attributes Attributes      `db:"attributes" json:"attributes,omitempty"`
	Notes      string          `db:"notes" json:"notes,omitempty"`
	State      AnnotationState `db:"annotation_state" json:"annotation_state"`
	Version    int             `db:"version" json:"version"`
	CreatedBy  int64           `db:"created_by" json:"created_by"`
	UpdatedBy  int64           `db:"updated_by" json:"updated_by"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time       `db:"updated_at" json:"updated_at"`
}

// CreateAnnotationRequest представляет тело запроса на создание аннотации.
// Геометрия принимается сырым JSON и нормализуется на границе API.
type CreateAnnotationRequest struct {
	TaskType   TaskType        `json:"task_type"`
	ClassID    *int64          `json:"class_id,omitempty"`
	ClassName  string          `json:"class_name"`
	Geometry   json.RawMessage `json:"geometry"`
	Confidence *float64        `json:"confidence,omitempty"`
	Attributes Attributes      `json:"attributes,omitempty"`
	Notes      string          `json:"notes,omitempty"`
}

// UpdateAnnotationRequest представляет тело запроса на изменение аннотации.
// Ненулевые указатели означают изменение поля; ExpectedVersion - опциональная
// проверка оптимистической блокировки.
type UpdateAnnotationRequest struct {
	ClassID         *int64          `json:"class_id,omitempty"`
	ClassName       *string         `json:"class_name,omitempty"`
	Geometry        json.RawMessage `json:"geometry,omitempty"`
	Confidence      *float64        `json:"confidence,omitempty"`
	Attributes      *Attributes     `json:"attributes,omitempty"`
	Notes           *string         `json:"notes,omitempty"`
	ExpectedVersion *int            `json:"expected_version,omitempty"`
}

// StateChangeRequest представляет тело запроса confirm/unconfirm/delete
// с опциональной проверкой версии.
type StateChangeRequest struct {
	ExpectedVersion *int `json:"expected_version,omitempty"`
}

// VersionConflictResponse - полезная нагрузка ответа при конфликте версий.
type VersionConflictResponse struct {
	Error            string    `json:"error"`
	CurrentVersion   int       `json:"current_version"`
	RequestedVersion int       `json:"requested_version"`
	LastModifiedBy   int64     `json:"last_modified_by"`
	LastModifiedAt   time.Time `json:"last_modified_at"`
}

// BatchCreateRequest представляет тело запроса на пакетное создание аннотаций.
type BatchCreateRequest struct {
	Items []CreateAnnotationRequest `json:"items"`
}

// BulkConfirmRequest представляет тело запроса на массовое подтверждение.
type BulkConfirmRequest struct {
	AnnotationIDs []int64 `json:"annotation_ids"`
}

// BatchItemResult - результат обработки одного элемента пакетной операции.
// Пакет обрабатывается с частичным успехом: ошибка одного элемента
// не прерывает остальные.
type BatchItemResult struct {
	Index        int         `json:"index"`
	AnnotationID int64       `json:"annotation_id,omitempty"`
	Annotation   *Annotation `json:"annotation,omitempty"`
	Error        string      `json:"error,omitempty"`
}

// BatchResult - агрегированный результат пакетной операции.
type BatchResult struct {
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
	Items     []BatchItemResult `json:"items"`
}

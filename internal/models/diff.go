package models

import "strconv"

// AnnotationRecord - единая форма записи аннотации для движка диффа.
// В нее приводятся и снапшоты опубликованных версий, и живые аннотации
// виртуальных (working/draft) версий.
type AnnotationRecord struct {
	AnnotationID int64           `json:"annotation_id"`
	ImageID      int64           `json:"image_id"`
	ClassID      *int64          `json:"class_id,omitempty"`
	ClassName    string          `json:"class_name"`
	Geometry     Geometry        `json:"geometry"`
	Confidence   *float64        `json:"confidence,omitempty"`
	Attributes   Attributes      `json:"attributes,omitempty"`
	Notes        string          `json:"notes,omitempty"`
	State        AnnotationState `json:"annotation_state"`
	Version      int             `json:"version"`
}

// RecordFromAnnotation приводит живую аннотацию к форме записи диффа.
func RecordFromAnnotation(a *Annotation) AnnotationRecord {
	return AnnotationRecord{
		AnnotationID: a.ID,
		ImageID:      a.ImageID,
		ClassID:      a.ClassID,
		ClassName:    a.ClassName,
		Geometry:     a.Geometry,
		Confidence:   a.Confidence,
		Attributes:   a.Attributes,
		Notes:        a.Notes,
		State:        a.State,
		Version:      a.Version,
	}
}

// RecordFromSnapshot приводит снапшот опубликованной версии к форме записи диффа.
func RecordFromSnapshot(s *AnnotationSnapshot) AnnotationRecord {
	return AnnotationRecord{
		AnnotationID: s.AnnotationID,
		ImageID:      s.ImageID,
		ClassID:      s.Payload.ClassID,
		ClassName:    s.Payload.ClassName,
		Geometry:     s.Payload.Geometry,
		Confidence:   s.Payload.Confidence,
		Attributes:   s.Payload.Attributes,
		Notes:        s.Payload.Notes,
		State:        s.Payload.State,
		Version:      s.Payload.Version,
	}
}

// ClassLabel возвращает имя класса записи для сводки по классам:
// имя класса, затем идентификатор класса, затем "unknown".
func (r AnnotationRecord) ClassLabel() string {
	if r.ClassName != "" {
		return r.ClassName
	}
	if r.ClassID != nil {
		return "class_" + strconv.FormatInt(*r.ClassID, 10)
	}
	return "unknown"
}

// DiffEntryStatus - классификация записи в диффе.
type DiffEntryStatus string

// Статусы записей диффа. Каждая запись стороны A попадает ровно в одну из
// категорий removed/modified/unchanged, каждая запись стороны B - в одну из
// added/modified/unchanged.
const (
	DiffStatusAdded     DiffEntryStatus = "added"
	DiffStatusRemoved   DiffEntryStatus = "removed"
	DiffStatusModified  DiffEntryStatus = "modified"
	DiffStatusUnchanged DiffEntryStatus = "unchanged"
)

// ValueChange хранит старое и новое значение измененного поля.
type ValueChange struct {
	Old interface{} `json:"old"`
	New interface{} `json:"new"`
}

// GeometryChanges - флаги изменения геометрии сопоставленной пары.
type GeometryChanges struct {
	PositionChanged *ValueChange `json:"position_changed,omitempty"`
	SizeChanged     *ValueChange `json:"size_changed,omitempty"`
}

// FieldChanges - структурированная запись изменений сопоставленной пары.
// Каждый флаг независим и несет старое/новое значение.
type FieldChanges struct {
	ClassChanged      *ValueChange     `json:"class_changed,omitempty"`
	GeometryChanged   *GeometryChanges `json:"geometry_changed,omitempty"`
	ConfidenceChanged *ValueChange     `json:"confidence_changed,omitempty"`
	AttributesChanged *ValueChange     `json:"attributes_changed,omitempty"`
}

// Empty сообщает, что ни один флаг изменений не установлен -
// такая пара классифицируется как unchanged.
func (c *FieldChanges) Empty() bool {
	return c.ClassChanged == nil && c.GeometryChanged == nil &&
		c.ConfidenceChanged == nil && c.AttributesChanged == nil
}

// DiffEntry - одна запись пер-изображенческого диффа.
type DiffEntry struct {
	Status  DiffEntryStatus   `json:"status"`
	Before  *AnnotationRecord `json:"before,omitempty"`
	After   *AnnotationRecord `json:"after,omitempty"`
	Changes *FieldChanges     `json:"changes,omitempty"`
}

// ImageDiff - дифф одного изображения.
type ImageDiff struct {
	ImageID   int64       `json:"image_id"`
	Added     int         `json:"added"`
	Removed   int         `json:"removed"`
	Modified  int         `json:"modified"`
	Unchanged int         `json:"unchanged"`
	Entries   []DiffEntry `json:"entries,omitempty"`
}

// HasChanges сообщает, есть ли в диффе изображения хоть одно изменение.
func (d *ImageDiff) HasChanges() bool {
	return d.Added > 0 || d.Removed > 0 || d.Modified > 0
}

// ClassDiffRow - строка сводной таблицы изменений по классам.
type ClassDiffRow struct {
	Added    int `json:"added"`
	Removed  int `json:"removed"`
	Modified int `json:"modified"`
}

// DiffSummary - сводка диффа на уровне проекта.
type DiffSummary struct {
	TotalAdded        int `json:"total_added"`
	TotalRemoved      int `json:"total_removed"`
	TotalModified     int `json:"total_modified"`
	TotalUnchanged    int `json:"total_unchanged"`
	ImagesWithChanges int `json:"images_with_changes"`
	TotalImages       int `json:"total_images"`
}

// DiffResult - полный результат сравнения двух версий.
type DiffResult struct {
	VersionA *AnnotationVersion       `json:"version_a"`
	VersionB *AnnotationVersion       `json:"version_b"`
	Summary  DiffSummary              `json:"summary"`
	ByClass  map[string]*ClassDiffRow `json:"by_class"`
	Images   []ImageDiff              `json:"images,omitempty"`
}

package services

import (
	"context"
	"errors"
	"log"
	"reflect"
	"sort"

	"github.com/jmoiron/sqlx"
	"github.com/razmetka/server/internal/models"
	"github.com/razmetka/server/internal/repository"
)

// DefaultIoUThreshold - минимальный IoU, при котором два bbox без совпадения
// идентификаторов считаются одной логической сущностью.
const DefaultIoUThreshold = 0.5

// DiffService определяет интерфейс движка сравнения двух версий разметки.
type DiffService interface {
	Compare(
		ctx context.Context,
		versionAID, versionBID int64,
		imageID *int64,
		includeEntries bool,
	) (*models.DiffResult, error)
}

// Убедимся, что diffService удовлетворяет интерфейсу DiffService.
var _ DiffService = (*diffService)(nil)

type diffService struct {
	db           *sqlx.DB
	versions     repository.VersionRepository
	snapshots    repository.SnapshotRepository
	anns         repository.AnnotationRepository
	registry     models.TaskRegistry
	iouThreshold float64
}

// NewDiffService создает новый экземпляр движка сравнения.
func NewDiffService(
	db *sqlx.DB,
	versions repository.VersionRepository,
	snapshots repository.SnapshotRepository,
	anns repository.AnnotationRepository,
	registry models.TaskRegistry,
) DiffService {
	return &diffService{
		db:           db,
		versions:     versions,
		snapshots:    snapshots,
		anns:         anns,
		registry:     registry,
		iouThreshold: DefaultIoUThreshold,
	}
}

// Compare сравнивает две версии одной пары (проект, тип задачи),
// опционально ограничиваясь одним изображением. Версии из разных проектов
// или задач - ошибка клиента, не сервера.
func (s *diffService) Compare(
	ctx context.Context,
	versionAID, versionBID int64,
	imageID *int64,
	includeEntries bool,
) (*models.DiffResult, error) {
	va, err := s.getVersion(ctx, versionAID)
	if err != nil {
		return nil, err
	}
	vb, err := s.getVersion(ctx, versionBID)
	if err != nil {
		return nil, err
	}

	if va.ProjectID != vb.ProjectID {
		return nil, NewValidationError("версии %d и %d принадлежат разным проектам", versionAID, versionBID)
	}
	if va.TaskType != vb.TaskType {
		return nil, NewValidationError("версии %d и %d относятся к разным типам задач", versionAID, versionBID)
	}

	recordsA, err := s.resolve(ctx, va, imageID)
	if err != nil {
		return nil, err
	}
	recordsB, err := s.resolve(ctx, vb, imageID)
	if err != nil {
		return nil, err
	}

	result := &models.DiffResult{
		VersionA: va,
		VersionB: vb,
		ByClass:  make(map[string]*models.ClassDiffRow),
	}

	for _, id := range unionImageIDs(recordsA, recordsB) {
		imageDiff := s.diffImage(id, recordsA[id], recordsB[id], includeEntries, result.ByClass)
		result.Summary.TotalAdded += imageDiff.Added
		result.Summary.TotalRemoved += imageDiff.Removed
		result.Summary.TotalModified += imageDiff.Modified
		result.Summary.TotalUnchanged += imageDiff.Unchanged
		result.Summary.TotalImages++
		if imageDiff.HasChanges() {
			result.Summary.ImagesWithChanges++
		}
		result.Images = append(result.Images, imageDiff)
	}

	log.Printf("[DiffService] Сравнение версий %d и %d: +%d/-%d/~%d по %d изображениям",
		versionAID, versionBID,
		result.Summary.TotalAdded, result.Summary.TotalRemoved, result.Summary.TotalModified,
		result.Summary.TotalImages)
	return result, nil
}

// getVersion читает версию, транслируя отсутствие в ошибку сервисного слоя.
func (s *diffService) getVersion(ctx context.Context, id int64) (*models.AnnotationVersion, error) {
	v, err := s.versions.GetByID(ctx, s.db, id)
	if err != nil {
		if errors.Is(err, repository.ErrVersionNotFound) {
			return nil, ErrVersionNotFound
		}
		return nil, err
	}
	return v, nil
}

// resolve разворачивает версию в отображение изображение -> записи.
// Опубликованные версии читаются из неизменяемых снапшотов; working/draft -
// живым запросом к таблице аннотаций, без какого-либо кеширования.
func (s *diffService) resolve(
	ctx context.Context,
	v *models.AnnotationVersion,
	imageID *int64,
) (map[int64][]models.AnnotationRecord, error) {
	byImage := make(map[int64][]models.AnnotationRecord)

	if v.VersionType == models.VersionTypePublished {
		snapshots, err := s.snapshots.ListByVersion(ctx, s.db, v.ID, imageID)
		if err != nil {
			return nil, err
		}
		for i := range snapshots {
			rec := models.RecordFromSnapshot(&snapshots[i])
			byImage[rec.ImageID] = append(byImage[rec.ImageID], rec)
		}
		return byImage, nil
	}

	states, err := s.liveStates(v)
	if err != nil {
		return nil, err
	}
	anns, err := s.anns.ListByStates(ctx, s.db, v.ProjectID, v.TaskType, states, imageID)
	if err != nil {
		return nil, err
	}
	for i := range anns {
		rec := models.RecordFromAnnotation(&anns[i])
		byImage[rec.ImageID] = append(byImage[rec.ImageID], rec)
	}
	return byImage, nil
}

// liveStates возвращает фильтр статусов живого источника: working отражает
// публикуемое состояние (confirmed/verified), draft дополнительно включает
// черновики.
func (s *diffService) liveStates(v *models.AnnotationVersion) ([]models.AnnotationState, error) {
	def, ok := s.registry.Definition(v.TaskType)
	if !ok {
		return nil, NewValidationError("неизвестный тип задачи '%s'", v.TaskType)
	}
	states := append([]models.AnnotationState(nil), def.PublishableStates...)
	if v.VersionType == models.VersionTypeDraft {
		states = append(states, models.AnnotationStateDraft)
	}
	return states, nil
}

// unionImageIDs возвращает отсортированное объединение идентификаторов
// изображений обеих сторон.
func unionImageIDs(a, b map[int64][]models.AnnotationRecord) []int64 {
	seen := make(map[int64]struct{}, len(a)+len(b))
	ids := make([]int64, 0, len(a)+len(b))
	for id := range a {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	for id := range b {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// diffImage сравнивает записи одного изображения.
//
// Правила сопоставления, в порядке приоритета:
//  1. точное совпадение идентификатора аннотации;
//  2. геометрическое совпадение: только для bbox, лучший кандидат по IoU
//     при IoU >= порога; полигоны и ломаные так не сопоставляются.
//
// Сопоставление жадное, в порядке обхода записей A: кандидат, потребленный
// более ранней записью, недоступен последующим, глобально оптимальное
// назначение не строится. Каждая запись A попадает ровно в одну из категорий
// removed/modified/unchanged, каждая запись B - в одну из added/modified/unchanged.
func (s *diffService) diffImage(
	imageID int64,
	a, b []models.AnnotationRecord,
	includeEntries bool,
	byClass map[string]*models.ClassDiffRow,
) models.ImageDiff {
	diff := models.ImageDiff{ImageID: imageID}

	byID := make(map[int64]int, len(b))
	for j := range b {
		byID[b[j].AnnotationID] = j
	}
	used := make([]bool, len(b))

	addEntry := func(entry models.DiffEntry) {
		if includeEntries {
			diff.Entries = append(diff.Entries, entry)
		}
	}

	for i := range a {
		ra := &a[i]
		match := -1

		if j, ok := byID[ra.AnnotationID]; ok && !used[j] {
			match = j
		} else if ra.Geometry.Type == models.GeometryBBox && ra.Geometry.BBox != nil {
			bestIoU := 0.0
			for j := range b {
				rb := &b[j]
				if used[j] || rb.Geometry.Type != models.GeometryBBox || rb.Geometry.BBox == nil {
					continue
				}
				if v := IoU(*ra.Geometry.BBox, *rb.Geometry.BBox); v > bestIoU {
					bestIoU = v
					match = j
				}
			}
			if bestIoU < s.iouThreshold {
				match = -1
			}
		}

		if match < 0 {
			diff.Removed++
			classRow(byClass, ra.ClassLabel()).Removed++
			addEntry(models.DiffEntry{Status: models.DiffStatusRemoved, Before: ra})
			continue
		}

		used[match] = true
		rb := &b[match]
		changes := compareRecords(ra, rb)
		if changes.Empty() {
			diff.Unchanged++
			addEntry(models.DiffEntry{Status: models.DiffStatusUnchanged, Before: ra, After: rb})
		} else {
			diff.Modified++
			classRow(byClass, rb.ClassLabel()).Modified++
			addEntry(models.DiffEntry{Status: models.DiffStatusModified, Before: ra, After: rb, Changes: changes})
		}
	}

	for j := range b {
		if used[j] {
			continue
		}
		rb := &b[j]
		diff.Added++
		classRow(byClass, rb.ClassLabel()).Added++
		addEntry(models.DiffEntry{Status: models.DiffStatusAdded, After: rb})
	}

	return diff
}

// classRow возвращает строку сводки для класса, создавая ее при отсутствии.
func classRow(byClass map[string]*models.ClassDiffRow, label string) *models.ClassDiffRow {
	row, ok := byClass[label]
	if !ok {
		row = &models.ClassDiffRow{}
		byClass[label] = row
	}
	return row
}

// compareRecords строит структурированную запись изменений сопоставленной
// пары. Каждый флаг независим и несет старое/новое значение; пара без
// единого флага считается неизмененной.
func compareRecords(a, b *models.AnnotationRecord) *models.FieldChanges {
	changes := &models.FieldChanges{}

	if !equalClassID(a.ClassID, b.ClassID) || a.ClassName != b.ClassName {
		changes.ClassChanged = &models.ValueChange{Old: a.ClassLabel(), New: b.ClassLabel()}
	}

	changes.GeometryChanged = compareGeometry(&a.Geometry, &b.Geometry)

	if !equalConfidence(a.Confidence, b.Confidence) {
		changes.ConfidenceChanged = &models.ValueChange{Old: a.Confidence, New: b.Confidence}
	}

	if !reflect.DeepEqual(a.Attributes, b.Attributes) &&
		!(len(a.Attributes) == 0 && len(b.Attributes) == 0) {
		changes.AttributesChanged = &models.ValueChange{Old: a.Attributes, New: b.Attributes}
	}

	return changes
}

// compareGeometry сравнивает геометрии пары. Для пары bbox изменения
// положения (x/y) и размера (width/height) фиксируются независимыми
// подфлагами; для остальных сочетаний любое различие считается
// изменением положения фигуры.
func compareGeometry(a, b *models.Geometry) *models.GeometryChanges {
	if a.Type == models.GeometryBBox && b.Type == models.GeometryBBox &&
		a.BBox != nil && b.BBox != nil {
		gc := &models.GeometryChanges{}
		if a.BBox.X != b.BBox.X || a.BBox.Y != b.BBox.Y {
			gc.PositionChanged = &models.ValueChange{
				Old: []float64{a.BBox.X, a.BBox.Y},
				New: []float64{b.BBox.X, b.BBox.Y},
			}
		}
		if a.BBox.Width != b.BBox.Width || a.BBox.Height != b.BBox.Height {
			gc.SizeChanged = &models.ValueChange{
				Old: []float64{a.BBox.Width, a.BBox.Height},
				New: []float64{b.BBox.Width, b.BBox.Height},
			}
		}
		if gc.PositionChanged == nil && gc.SizeChanged == nil {
			return nil
		}
		return gc
	}

	if reflect.DeepEqual(a, b) {
		return nil
	}
	return &models.GeometryChanges{
		PositionChanged: &models.ValueChange{Old: *a, New: *b},
	}
}

// equalClassID сравнивает опциональные идентификаторы классов.
func equalClassID(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// equalConfidence сравнивает опциональные значения уверенности.
func equalConfidence(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

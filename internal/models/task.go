package models

// TaskType определяет тип задачи разметки в проекте.
type TaskType string

// Поддерживаемые типы задач.
const (
	TaskDetection      TaskType = "detection"
	TaskSegmentation   TaskType = "segmentation"
	TaskClassification TaskType = "classification"
)

// TaskDefinition описывает правила задачи разметки: какие геометрии допустимы
// и какие статусы аннотаций попадают в публикацию по умолчанию.
type TaskDefinition struct {
	Type              TaskType
	Geometries        []GeometryType
	PublishableStates []AnnotationState
}

// AllowsGeometry сообщает, допустима ли геометрия данного вида в задаче.
func (d TaskDefinition) AllowsGeometry(gt GeometryType) bool {
	for _, g := range d.Geometries {
		if g == gt {
			return true
		}
	}
	return false
}

// TaskRegistry - явная таблица соответствия типов задач их определениям.
// Передается зависимостью в сервисы вместо глобального реестра.
type TaskRegistry map[TaskType]TaskDefinition

// Definition возвращает определение задачи по типу.
func (r TaskRegistry) Definition(t TaskType) (TaskDefinition, bool) {
	def, ok := r[t]
	return def, ok
}

// NewTaskRegistry создает реестр задач со стандартным набором типов.
func NewTaskRegistry() TaskRegistry {
	return TaskRegistry{
		TaskDetection: {
			Type:              TaskDetection,
			Geometries:        []GeometryType{GeometryBBox},
			PublishableStates: []AnnotationState{AnnotationStateConfirmed, AnnotationStateVerified},
		},
		TaskSegmentation: {
			Type:              TaskSegmentation,
			Geometries:        []GeometryType{GeometryPolygon, GeometryPolyline, GeometryBBox},
			PublishableStates: []AnnotationState{AnnotationStateConfirmed, AnnotationStateVerified},
		},
		TaskClassification: {
			Type:              TaskClassification,
			Geometries:        []GeometryType{GeometryBBox},
			PublishableStates: []AnnotationState{AnnotationStateConfirmed, AnnotationStateVerified},
		},
	}
}

package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

// GeometryType определяет вид геометрии аннотации.
type GeometryType string

// Поддерживаемые виды геометрии.
const (
	GeometryBBox     GeometryType = "bbox"
	GeometryPolygon  GeometryType = "polygon"
	GeometryPolyline GeometryType = "polyline"
)

// Point представляет точку на изображении в пикселях.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// BoundingBox представляет выровненный по осям прямоугольник.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Geometry - нормализованная геометрия аннотации (размеченный union).
// Для типа bbox заполнено поле BBox, для polygon/polyline - Points.
// Хранится в БД как JSONB.
type Geometry struct {
	Type   GeometryType `json:"type"`
	BBox   *BoundingBox `json:"bbox,omitempty"`
	Points []Point      `json:"points,omitempty"`
}

// Value реализует driver.Valuer для сохранения геометрии в JSONB.
func (g Geometry) Value() (driver.Value, error) {
	return json.Marshal(g)
}

// Scan реализует sql.Scanner для чтения геометрии из JSONB.
func (g *Geometry) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, g)
	case string:
		return json.Unmarshal([]byte(v), g)
	case nil:
		*g = Geometry{}
		return nil
	default:
		return fmt.Errorf("неподдерживаемый тип для Geometry: %T", src)
	}
}

// Ошибки нормализации геометрии.
var (
	ErrGeometryEmpty   = errors.New("геометрия не задана")
	ErrGeometryInvalid = errors.New("неверный формат геометрии")
)

// rawGeometry - промежуточная форма для разбора входной геометрии.
// Клиенты исторически присылают bbox и как массив [x, y, w, h],
// и как объект с ключами; points - как массив пар и как массив объектов.
type rawGeometry struct {
	Type   string          `json:"type"`
	BBox   json.RawMessage `json:"bbox"`
	Points json.RawMessage `json:"points"`
	X      *float64        `json:"x"`
	Y      *float64        `json:"y"`
	Width  *float64        `json:"width"`
	Height *float64        `json:"height"`
}

// NormalizeGeometry разбирает входной JSON геометрии в нормализованную форму.
// Это единственная точка входа для «утиных» форматов клиентов: дальше по коду
// (движок диффа, сопоставление по IoU) используется только Geometry.
func NormalizeGeometry(raw json.RawMessage) (Geometry, error) {
	if len(raw) == 0 {
		return Geometry{}, ErrGeometryEmpty
	}

	var rg rawGeometry
	if err := json.Unmarshal(raw, &rg); err != nil {
		return Geometry{}, fmt.Errorf("%w: %v", ErrGeometryInvalid, err)
	}

	// bbox, заданный плоскими ключами x/y/width/height
	if rg.X != nil && rg.Y != nil && rg.Width != nil && rg.Height != nil {
		return Geometry{
			Type: GeometryBBox,
			BBox: &BoundingBox{X: *rg.X, Y: *rg.Y, Width: *rg.Width, Height: *rg.Height},
		}, nil
	}

	switch GeometryType(rg.Type) {
	case GeometryBBox, "":
		if len(rg.BBox) == 0 {
			return Geometry{}, ErrGeometryInvalid
		}
		box, err := parseBBox(rg.BBox)
		if err != nil {
			return Geometry{}, err
		}
		return Geometry{Type: GeometryBBox, BBox: box}, nil
	case GeometryPolygon, GeometryPolyline:
		if len(rg.Points) == 0 {
			return Geometry{}, ErrGeometryInvalid
		}
		points, err := parsePoints(rg.Points)
		if err != nil {
			return Geometry{}, err
		}
		const minPolygonPoints = 3
		const minPolylinePoints = 2
		if GeometryType(rg.Type) == GeometryPolygon && len(points) < minPolygonPoints {
			return Geometry{}, fmt.Errorf("%w: полигону нужно минимум %d точки", ErrGeometryInvalid, minPolygonPoints)
		}
		if GeometryType(rg.Type) == GeometryPolyline && len(points) < minPolylinePoints {
			return Geometry{}, fmt.Errorf("%w: ломаной нужно минимум %d точки", ErrGeometryInvalid, minPolylinePoints)
		}
		return Geometry{Type: GeometryType(rg.Type), Points: points}, nil
	default:
		return Geometry{}, fmt.Errorf("%w: неизвестный тип '%s'", ErrGeometryInvalid, rg.Type)
	}
}

// parseBBox разбирает bbox из массива [x, y, w, h] или объекта с ключами.
func parseBBox(raw json.RawMessage) (*BoundingBox, error) {
	// Форма массива [x, y, w, h]
	var arr []float64
	if err := json.Unmarshal(raw, &arr); err == nil {
		const bboxArrayLen = 4
		if len(arr) != bboxArrayLen {
			return nil, fmt.Errorf("%w: bbox-массив должен содержать 4 числа", ErrGeometryInvalid)
		}
		return &BoundingBox{X: arr[0], Y: arr[1], Width: arr[2], Height: arr[3]}, nil
	}

	// Форма объекта {"x":..., "y":..., "width":..., "height":...}
	var box BoundingBox
	if err := json.Unmarshal(raw, &box); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeometryInvalid, err)
	}
	if box.Width < 0 || box.Height < 0 {
		return nil, fmt.Errorf("%w: отрицательные размеры bbox", ErrGeometryInvalid)
	}
	return &box, nil
}

// parsePoints разбирает точки из массива пар [[x,y],...] или массива объектов.
func parsePoints(raw json.RawMessage) ([]Point, error) {
	// Форма массива пар [[x, y], ...]
	var pairs [][]float64
	if err := json.Unmarshal(raw, &pairs); err == nil {
		points := make([]Point, len(pairs))
		for i, p := range pairs {
			const pairLen = 2
			if len(p) != pairLen {
				return nil, fmt.Errorf("%w: точка должна быть парой [x, y]", ErrGeometryInvalid)
			}
			points[i] = Point{X: p[0], Y: p[1]}
		}
		return points, nil
	}

	// Форма массива объектов [{"x":..., "y":...}, ...]
	var points []Point
	if err := json.Unmarshal(raw, &points); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeometryInvalid, err)
	}
	return points, nil
}

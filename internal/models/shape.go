package models

type ShapeType string

const (
	ShapeSticky    ShapeType = "sticky"
	ShapeRectangle ShapeType = "rectangle"
	ShapeFreehand  ShapeType = "freehand"
)

// Shape is one element of a shared document. Identifiers are unique within
// a document; positions carry no collision or containment constraint.
type Shape struct {
	ID     string    `json:"id" validate:"required"`
	Type   ShapeType `json:"type" validate:"required,oneof=sticky rectangle freehand"`
	X      float64   `json:"x"`
	Y      float64   `json:"y"`
	W      *float64  `json:"w,omitempty"`
	H      *float64  `json:"h,omitempty"`
	Text   *string   `json:"text,omitempty"`
	Color  *string   `json:"color,omitempty"`
	Points []Point   `json:"points,omitempty"`
}

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ShapePatch is a partial shape. Nil fields are left untouched when applied.
type ShapePatch struct {
	X      *float64 `json:"x,omitempty"`
	Y      *float64 `json:"y,omitempty"`
	W      *float64 `json:"w,omitempty"`
	H      *float64 `json:"h,omitempty"`
	Text   *string  `json:"text,omitempty"`
	Color  *string  `json:"color,omitempty"`
	Points []Point  `json:"points,omitempty"`
}

// Apply returns a copy of s with every non-nil field of p merged in. The
// result shares no memory with s or p.
func (p ShapePatch) Apply(s Shape) Shape {
	s = s.Clone()
	if p.X != nil {
		s.X = *p.X
	}
	if p.Y != nil {
		s.Y = *p.Y
	}
	if p.W != nil {
		s.W = clonePtr(p.W)
	}
	if p.H != nil {
		s.H = clonePtr(p.H)
	}
	if p.Text != nil {
		s.Text = clonePtr(p.Text)
	}
	if p.Color != nil {
		s.Color = clonePtr(p.Color)
	}
	if p.Points != nil {
		s.Points = append([]Point(nil), p.Points...)
	}
	return s
}

// Clone returns a deep copy of s.
func (s Shape) Clone() Shape {
	s.W = clonePtr(s.W)
	s.H = clonePtr(s.H)
	s.Text = clonePtr(s.Text)
	s.Color = clonePtr(s.Color)
	if s.Points != nil {
		s.Points = append([]Point(nil), s.Points...)
	}
	return s
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Document is a whiteboard: an ordered collection of shapes.
type Document struct {
	ID     string  `json:"id"`
	Name   string  `json:"name,omitempty"`
	Shapes []Shape `json:"shapes"`
}

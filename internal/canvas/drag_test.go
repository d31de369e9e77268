package canvas

import (
	"testing"

	"Seshat/internal/models"

	"github.com/stretchr/testify/require"
)

func TestDrag_MovesByPointerDelta(t *testing.T) {
	req := require.New(t)
	store := NewStore(nil, Options{})
	shape := store.AddShape(models.ShapeSticky, models.ShapePatch{})
	drag := NewDrag(store)

	req.NoError(drag.Press(shape.ID, 100, 100))
	req.True(drag.Dragging())
	req.NoError(drag.Move(110, 95))
	req.NoError(drag.Move(130, 90))

	moved, _ := store.Shape(shape.ID)
	req.Equal(shape.X+30, moved.X)
	req.Equal(shape.Y-10, moved.Y)

	req.NoError(drag.Release(130, 90))
	req.False(drag.Dragging())
	req.NoError(drag.Move(500, 500))

	after, _ := store.Shape(shape.ID)
	req.Equal(moved.X, after.X)
	req.Equal(moved.Y, after.Y)
}

func TestDrag_ZeroDistanceStillUpdates(t *testing.T) {
	req := require.New(t)
	updates := 0
	store := NewStore(nil, Options{OnChange: func(models.Document) { updates++ }})
	shape := store.AddShape(models.ShapeRectangle, models.ShapePatch{})
	updates = 0

	drag := NewDrag(store)
	req.NoError(drag.Press(shape.ID, 10, 10))
	req.NoError(drag.Release(10, 10))

	req.Equal(1, updates)
	got, _ := store.Shape(shape.ID)
	req.Equal(shape.X, got.X)
	req.Equal(shape.Y, got.Y)
}

func TestDrag_TargetsShapeByIDAcrossRemoteInserts(t *testing.T) {
	req := require.New(t)
	store, sock := newAttachedStore(t)
	sock.deliver(t, `{"action":"update_canvas","payload":{"shapes":[{"id":"a","type":"sticky","x":0,"y":0},{"id":"b","type":"sticky","x":50,"y":50}]}}`)

	drag := NewDrag(store)
	req.NoError(drag.Press("b", 0, 0))

	sock.deliver(t, `{"action":"update_canvas","payload":{"shapes":[{"id":"z","type":"rectangle","x":7,"y":7},{"id":"a","type":"sticky","x":0,"y":0},{"id":"b","type":"sticky","x":50,"y":50}]}}`)
	req.NoError(drag.Release(5, 5))

	b, _ := store.Shape("b")
	req.Equal(55.0, b.X)
	z, _ := store.Shape("z")
	req.Equal(7.0, z.X)
	a, _ := store.Shape("a")
	req.Equal(0.0, a.X)
}

func TestDrag_PressUnknownShape(t *testing.T) {
	drag := NewDrag(NewStore(nil, Options{}))
	require.ErrorIs(t, drag.Press("missing", 0, 0), ErrShapeNotFound)
	require.False(t, drag.Dragging())
}

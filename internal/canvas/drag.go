package canvas

import "Seshat/internal/models"

// Drag moves one shape with the pointer. It goes Idle -> Dragging on Press
// and back to Idle on Release. Each Move writes the original position plus
// the pointer delta; Release writes a final position, so a press and
// release without movement still produces one update.
//
// A Drag is driven by a single input loop and is not safe for concurrent use.
type Drag struct {
	store *Store

	active           bool
	shapeID          string
	startX, startY   float64
	originX, originY float64
}

func NewDrag(store *Store) *Drag {
	return &Drag{store: store}
}

func (d *Drag) Press(shapeID string, px, py float64) error {
	shape, ok := d.store.Shape(shapeID)
	if !ok {
		return ErrShapeNotFound
	}
	d.active = true
	d.shapeID = shapeID
	d.startX, d.startY = px, py
	d.originX, d.originY = shape.X, shape.Y
	return nil
}

func (d *Drag) Move(px, py float64) error {
	if !d.active {
		return nil
	}
	x := d.originX + (px - d.startX)
	y := d.originY + (py - d.startY)
	return d.store.UpdateShape(d.shapeID, models.ShapePatch{X: &x, Y: &y})
}

func (d *Drag) Release(px, py float64) error {
	if !d.active {
		return nil
	}
	err := d.Move(px, py)
	d.active = false
	d.shapeID = ""
	return err
}

func (d *Drag) Dragging() bool {
	return d.active
}

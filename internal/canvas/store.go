//go:generate go run go.uber.org/mock/mockgen -source=store.go -destination=../mocks/mock_board_api.go -package=mocks -exclude_interfaces=Socket
package canvas

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"Seshat/internal/api"
	"Seshat/internal/models"
	"Seshat/internal/protocol"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

const (
	cascadeOrigin = 40.0
	cascadeStep   = 24.0
)

var (
	ErrShapeNotFound = errors.New("shape not found")
	ErrNoBoard       = errors.New("no board open")
)

type BoardAPI interface {
	GetBoard(ctx context.Context, id string) (models.Document, error)
	SaveBoard(ctx context.Context, doc models.Document) (models.Document, error)
	CreateBoard(ctx context.Context, req api.CreateBoardRequest) (models.Document, error)
}

type Socket interface {
	Connect(ctx context.Context) error
	Send(action protocol.Action, payload any) error
	On(action protocol.Action, h protocol.Handler)
	Off(action protocol.Action)
	Disconnect()
	IsOpen() bool
}

type Options struct {
	Logger   *slog.Logger
	OnChange func(models.Document)
}

// Store holds one shared document. Shapes are keyed by id with a separate
// display order, so concurrent inserts never redirect an update to the
// wrong shape. Local mutations apply immediately; the document is only
// persisted by Save.
type Store struct {
	boards BoardAPI
	opts   Options
	logger *slog.Logger

	mu     sync.Mutex
	id     string
	name   string
	shapes map[string]models.Shape
	order  []string
	socket Socket
	dirty  bool
}

func NewStore(boards BoardAPI, opts Options) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "canvas")
	}
	return &Store{boards: boards, opts: opts, logger: logger, shapes: make(map[string]models.Shape)}
}

// Open loads a board. A board unknown to the remote system opens empty.
func (s *Store) Open(ctx context.Context, id string) error {
	doc, err := s.boards.GetBoard(ctx, id)
	switch {
	case errors.Is(err, api.ErrNotFound):
		s.logger.Info("Board not found, starting empty", "board_id", id)
		doc = models.Document{ID: id}
	case err != nil:
		return fmt.Errorf("open board %s: %w", id, err)
	}
	if doc.ID == "" {
		doc.ID = id
	}
	s.mu.Lock()
	s.replaceLocked(doc)
	s.dirty = false
	s.mu.Unlock()
	s.notify()
	return nil
}

// Create asks the remote system for a new board and opens it.
func (s *Store) Create(ctx context.Context, name string) (models.Document, error) {
	doc, err := s.boards.CreateBoard(ctx, api.CreateBoardRequest{Name: name})
	if err != nil {
		return models.Document{}, fmt.Errorf("create board: %w", err)
	}
	s.mu.Lock()
	s.replaceLocked(doc)
	s.dirty = false
	s.mu.Unlock()
	s.notify()
	return doc, nil
}

// Save persists the current document.
func (s *Store) Save(ctx context.Context) error {
	doc := s.Document()
	if doc.ID == "" {
		return ErrNoBoard
	}
	if _, err := s.boards.SaveBoard(ctx, doc); err != nil {
		return fmt.Errorf("save board %s: %w", doc.ID, err)
	}
	s.mu.Lock()
	s.dirty = false
	s.mu.Unlock()
	s.logger.Info("Board saved", "board_id", doc.ID, "shapes", len(doc.Shapes))
	return nil
}

// Attach binds the store to a board connection and opens it. Inbound
// frames are applied as authoritative.
func (s *Store) Attach(ctx context.Context, sock Socket) error {
	sock.On(protocol.ActionUpdateCanvas, func(ev protocol.Event) {
		if e, ok := ev.(protocol.UpdateCanvas); ok {
			s.applyCanvas(e.Document)
		}
	})
	sock.On(protocol.ActionAppendShape, func(ev protocol.Event) {
		if e, ok := ev.(protocol.AppendShape); ok {
			s.applyAppend(e.Shape)
		}
	})
	sock.On(protocol.ActionUpdateShape, func(ev protocol.Event) {
		if e, ok := ev.(protocol.UpdateShape); ok {
			s.applyUpdate(e.ID, e.Patch)
		}
	})
	sock.On(protocol.ActionAny, func(ev protocol.Event) {
		s.logger.Debug("Ignoring action", "action", ev.Action())
	})

	s.mu.Lock()
	old := s.socket
	s.socket = sock
	s.mu.Unlock()
	if old != nil && old != sock {
		old.Disconnect()
	}
	return sock.Connect(ctx)
}

// Detach closes the board connection. Local state is kept.
func (s *Store) Detach() {
	s.mu.Lock()
	sock := s.socket
	s.socket = nil
	s.mu.Unlock()
	if sock != nil {
		sock.Disconnect()
	}
}

// AddShape creates a shape with a fresh id at a cascading position so that
// successive shapes do not stack exactly, applies the caller's defaults on
// top, appends it and broadcasts it when connected.
func (s *Store) AddShape(kind models.ShapeType, defaults models.ShapePatch) models.Shape {
	s.mu.Lock()
	offset := float64(len(s.order)) * cascadeStep
	shape := kindDefaults(kind).Apply(models.Shape{
		ID:   "shape-" + uuid.NewString(),
		Type: kind,
		X:    cascadeOrigin + offset,
		Y:    cascadeOrigin + offset,
	})
	shape = defaults.Apply(shape)
	s.shapes[shape.ID] = shape.Clone()
	s.order = append(s.order, shape.ID)
	s.dirty = true
	sock := s.socket
	s.mu.Unlock()

	s.broadcast(sock, protocol.ActionAppendShape, shape)
	s.notify()
	return shape
}

// UpdateShape merges patch into the shape with the given id and
// broadcasts the patch when connected.
func (s *Store) UpdateShape(id string, patch models.ShapePatch) error {
	s.mu.Lock()
	shape, ok := s.shapes[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrShapeNotFound, id)
	}
	s.shapes[id] = patch.Apply(shape)
	s.dirty = true
	sock := s.socket
	s.mu.Unlock()

	s.broadcast(sock, protocol.ActionUpdateShape, protocol.UpdateShape{ID: id, Patch: patch})
	s.notify()
	return nil
}

func (s *Store) broadcast(sock Socket, action protocol.Action, payload any) {
	if sock == nil || !sock.IsOpen() {
		return
	}
	if err := sock.Send(action, payload); err != nil {
		s.logger.Warn("Broadcast failed", "action", action, "error", err)
	}
}

func (s *Store) applyCanvas(doc models.Document) {
	s.mu.Lock()
	if doc.ID == "" {
		doc.ID = s.id
	}
	s.replaceLocked(doc)
	s.dirty = false
	s.mu.Unlock()
	s.notify()
}

func (s *Store) applyAppend(shape models.Shape) {
	if shape.ID == "" {
		s.logger.Warn("Dropping shape without id")
		return
	}
	s.mu.Lock()
	if _, exists := s.shapes[shape.ID]; !exists {
		s.order = append(s.order, shape.ID)
	}
	s.shapes[shape.ID] = shape.Clone()
	s.mu.Unlock()
	s.notify()
}

func (s *Store) applyUpdate(id string, patch models.ShapePatch) {
	s.mu.Lock()
	shape, ok := s.shapes[id]
	if ok {
		s.shapes[id] = patch.Apply(shape)
	}
	s.mu.Unlock()
	if !ok {
		s.logger.Debug("Update for unknown shape", "shape_id", id)
		return
	}
	s.notify()
}

func (s *Store) replaceLocked(doc models.Document) {
	s.id = doc.ID
	s.name = doc.Name
	s.shapes = make(map[string]models.Shape, len(doc.Shapes))
	s.order = make([]string, 0, len(doc.Shapes))
	for _, shape := range doc.Shapes {
		if _, dup := s.shapes[shape.ID]; !dup {
			s.order = append(s.order, shape.ID)
		}
		s.shapes[shape.ID] = shape.Clone()
	}
}

func (s *Store) Shape(id string) (models.Shape, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	shape, ok := s.shapes[id]
	return shape.Clone(), ok
}

// Shapes returns copies of the shapes in display order.
func (s *Store) Shapes() []models.Shape {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shapesLocked()
}

func (s *Store) shapesLocked() []models.Shape {
	return lo.Map(s.order, func(id string, _ int) models.Shape { return s.shapes[id].Clone() })
}

func (s *Store) Document() models.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.Document{ID: s.id, Name: s.name, Shapes: s.shapesLocked()}
}

// Dirty reports whether there are local changes since the last open, save
// or full overwrite.
func (s *Store) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

func (s *Store) notify() {
	if s.opts.OnChange != nil {
		s.opts.OnChange(s.Document())
	}
}

func kindDefaults(kind models.ShapeType) models.ShapePatch {
	switch kind {
	case models.ShapeSticky:
		return models.ShapePatch{W: lo.ToPtr(160.0), H: lo.ToPtr(120.0), Text: lo.ToPtr("New note"), Color: lo.ToPtr("#fde68a")}
	case models.ShapeRectangle:
		return models.ShapePatch{W: lo.ToPtr(120.0), H: lo.ToPtr(80.0), Color: lo.ToPtr("#93c5fd")}
	case models.ShapeFreehand:
		return models.ShapePatch{Color: lo.ToPtr("#111827")}
	default:
		return models.ShapePatch{}
	}
}

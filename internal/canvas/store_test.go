package canvas

import (
	"context"
	"sync"
	"testing"

	"Seshat/internal/api"
	"Seshat/internal/mocks"
	"Seshat/internal/models"
	"Seshat/internal/protocol"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type fakeSocket struct {
	mu       sync.Mutex
	open     bool
	sent     []protocol.Event
	handlers map[protocol.Action]protocol.Handler
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{handlers: map[protocol.Action]protocol.Handler{}}
}

func (f *fakeSocket) Connect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.open = true
	return nil
}

func (f *fakeSocket) Send(action protocol.Action, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch p := payload.(type) {
	case models.Shape:
		f.sent = append(f.sent, protocol.AppendShape{Shape: p})
	case protocol.UpdateShape:
		f.sent = append(f.sent, p)
	default:
		f.sent = append(f.sent, protocol.Unknown{Name: action})
	}
	return nil
}

func (f *fakeSocket) On(action protocol.Action, h protocol.Handler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[action] = h
}

func (f *fakeSocket) Off(action protocol.Action) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.handlers, action)
}

func (f *fakeSocket) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.open = false
}

func (f *fakeSocket) IsOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

func (f *fakeSocket) deliver(t *testing.T, raw string) {
	t.Helper()
	ev, err := protocol.DecodeEvent([]byte(raw))
	require.NoError(t, err)
	f.mu.Lock()
	h, ok := f.handlers[ev.Action()]
	f.mu.Unlock()
	require.True(t, ok, "no handler for %s", ev.Action())
	h(ev)
}

func (f *fakeSocket) frames() []protocol.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]protocol.Event(nil), f.sent...)
}

func newAttachedStore(t *testing.T) (*Store, *fakeSocket) {
	t.Helper()
	store := NewStore(mocks.NewMockBoardAPI(gomock.NewController(t)), Options{})
	sock := newFakeSocket()
	require.NoError(t, store.Attach(context.Background(), sock))
	return store, sock
}

func TestStore_AddShapeRoundTrip(t *testing.T) {
	req := require.New(t)
	store := NewStore(nil, Options{})

	created := store.AddShape(models.ShapeRectangle, models.ShapePatch{Text: lo.ToPtr("Q3 plan"), Color: lo.ToPtr("#f00")})

	shapes := store.Shapes()
	req.Len(shapes, 1)
	req.Equal(created, shapes[0])
	req.Equal(models.ShapeRectangle, shapes[0].Type)
	req.Equal(cascadeOrigin, shapes[0].X)
	req.Equal(120.0, *shapes[0].W)
	req.Equal(80.0, *shapes[0].H)
	req.Equal("Q3 plan", *shapes[0].Text)
	req.Equal("#f00", *shapes[0].Color)
	req.True(store.Dirty())
}

func TestStore_ShapesAreIsolatedFromCallers(t *testing.T) {
	req := require.New(t)
	store := NewStore(nil, Options{})

	color := "#f00"
	created := store.AddShape(models.ShapeSticky, models.ShapePatch{Color: &color})
	color = "#0f0"
	*created.Text = "changed by caller"

	read, ok := store.Shape(created.ID)
	req.True(ok)
	*read.W = 1
	store.Shapes()[0].Points = []models.Point{{X: 1, Y: 1}}
	*store.Document().Shapes[0].H = 2

	got, _ := store.Shape(created.ID)
	req.Equal("#f00", *got.Color)
	req.Equal("New note", *got.Text)
	req.Equal(160.0, *got.W)
	req.Equal(120.0, *got.H)
	req.Nil(got.Points)

	// Patches applied later keep no link to the patch values either.
	text := "v1"
	req.NoError(store.UpdateShape(created.ID, models.ShapePatch{Text: &text}))
	text = "v2"
	got, _ = store.Shape(created.ID)
	req.Equal("v1", *got.Text)
}

func TestStore_AddShapeCascades(t *testing.T) {
	req := require.New(t)
	store := NewStore(nil, Options{})

	a := store.AddShape(models.ShapeSticky, models.ShapePatch{})
	b := store.AddShape(models.ShapeSticky, models.ShapePatch{})
	c := store.AddShape(models.ShapeSticky, models.ShapePatch{X: lo.ToPtr(5.0)})

	req.NotEqual(a.ID, b.ID)
	req.Equal(cascadeOrigin+cascadeStep, b.X)
	req.Equal(cascadeOrigin+cascadeStep, b.Y)
	req.Equal(5.0, c.X)
	req.Equal(cascadeOrigin+2*cascadeStep, c.Y)
}

func TestStore_BroadcastsOnlyWhenConnected(t *testing.T) {
	req := require.New(t)
	store, sock := newAttachedStore(t)

	shape := store.AddShape(models.ShapeSticky, models.ShapePatch{})
	req.NoError(store.UpdateShape(shape.ID, models.ShapePatch{Text: lo.ToPtr("edited")}))

	frames := sock.frames()
	req.Len(frames, 2)
	req.Equal(protocol.AppendShape{Shape: shape}, frames[0])
	req.Equal(protocol.UpdateShape{ID: shape.ID, Patch: models.ShapePatch{Text: lo.ToPtr("edited")}}, frames[1])

	store.Detach()
	store.AddShape(models.ShapeSticky, models.ShapePatch{})
	req.Len(sock.frames(), 2)
	req.Len(store.Shapes(), 2)
}

func TestStore_UpdateUnknownShape(t *testing.T) {
	store := NewStore(nil, Options{})
	err := store.UpdateShape("missing", models.ShapePatch{})
	require.ErrorIs(t, err, ErrShapeNotFound)
}

func TestStore_UpdateCanvasOverwritesEverything(t *testing.T) {
	req := require.New(t)
	store, sock := newAttachedStore(t)
	store.AddShape(models.ShapeRectangle, models.ShapePatch{})
	store.AddShape(models.ShapeFreehand, models.ShapePatch{})

	sock.deliver(t, `{"action":"update_canvas","payload":{"shapes":[{"id":"s1","type":"sticky","x":0,"y":0,"text":"hello"}]}}`)

	shapes := store.Shapes()
	req.Len(shapes, 1)
	req.Equal(models.Shape{ID: "s1", Type: models.ShapeSticky, Text: lo.ToPtr("hello")}, shapes[0])
	req.False(store.Dirty())
}

func TestStore_InboundAppendAndUpdate(t *testing.T) {
	req := require.New(t)
	store, sock := newAttachedStore(t)

	sock.deliver(t, `{"action":"append_shape","payload":{"id":"s1","type":"sticky","x":1,"y":2}}`)
	sock.deliver(t, `{"action":"append_shape","payload":{"id":"s2","type":"rectangle","x":3,"y":4}}`)
	sock.deliver(t, `{"action":"append_shape","payload":{"id":"s1","type":"sticky","x":9,"y":9}}`)
	sock.deliver(t, `{"action":"update_shape","payload":{"id":"s2","patch":{"x":30}}}`)
	sock.deliver(t, `{"action":"update_shape","payload":{"id":"ghost","patch":{"x":30}}}`)

	shapes := store.Shapes()
	req.Equal([]string{"s1", "s2"}, lo.Map(shapes, func(s models.Shape, _ int) string { return s.ID }))
	req.Equal(9.0, shapes[0].X)
	req.Equal(30.0, shapes[1].X)
	req.Equal(4.0, shapes[1].Y)
}

func TestStore_OpenAndSave(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	boards := mocks.NewMockBoardAPI(ctrl)
	store := NewStore(boards, Options{})

	boards.EXPECT().GetBoard(gomock.Any(), "b1").
		Return(models.Document{}, &api.RequestError{StatusCode: 404})
	req.NoError(store.Open(context.Background(), "b1"))
	req.Equal("b1", store.Document().ID)
	req.Empty(store.Shapes())

	shape := store.AddShape(models.ShapeSticky, models.ShapePatch{})
	boards.EXPECT().SaveBoard(gomock.Any(), models.Document{ID: "b1", Shapes: []models.Shape{shape}}).
		DoAndReturn(func(_ context.Context, doc models.Document) (models.Document, error) { return doc, nil })

	req.True(store.Dirty())
	req.NoError(store.Save(context.Background()))
	req.False(store.Dirty())
}

func TestStore_Create(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	boards := mocks.NewMockBoardAPI(ctrl)
	store := NewStore(boards, Options{})

	boards.EXPECT().CreateBoard(gomock.Any(), api.CreateBoardRequest{Name: "Roster"}).
		Return(models.Document{ID: "b9", Name: "Roster", Shapes: []models.Shape{}}, nil)

	doc, err := store.Create(context.Background(), "Roster")
	req.NoError(err)
	req.Equal("b9", doc.ID)
	req.Equal("b9", store.Document().ID)
}

func TestStore_SaveWithoutBoard(t *testing.T) {
	store := NewStore(nil, Options{})
	require.ErrorIs(t, store.Save(context.Background()), ErrNoBoard)
}

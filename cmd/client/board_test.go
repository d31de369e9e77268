package main

import (
	"context"
	"testing"

	"Seshat/internal/canvas"
	"Seshat/internal/models"

	"github.com/stretchr/testify/require"
)

func TestParseBoardCommand(t *testing.T) {
	tests := []struct {
		line    string
		want    boardCommand
		wantErr bool
	}{
		{line: "", want: boardCommand{name: "show"}},
		{line: "add sticky ship it", want: boardCommand{name: "add", kind: models.ShapeSticky, text: "ship it"}},
		{line: "add circle", wantErr: true},
		{line: "move s1 10 -5.5", want: boardCommand{name: "move", id: "s1", dx: 10, dy: -5.5}},
		{line: "move s1 ten 0", wantErr: true},
		{line: "text s1 hello world", want: boardCommand{name: "text", id: "s1", text: "hello world"}},
		{line: "erase", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := parseBoardCommand(tt.line)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestBoardCommand_MoveDragsShape(t *testing.T) {
	req := require.New(t)
	store := canvas.NewStore(nil, canvas.Options{})
	shape := store.AddShape(models.ShapeRectangle, models.ShapePatch{})

	cmd, err := parseBoardCommand("move " + shape.ID + " 15 -10")
	req.NoError(err)
	req.NoError(cmd.run(context.Background(), store, canvas.NewDrag(store)))

	moved, _ := store.Shape(shape.ID)
	req.Equal(shape.X+15, moved.X)
	req.Equal(shape.Y-10, moved.Y)
}

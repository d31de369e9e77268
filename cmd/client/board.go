package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"Seshat/internal/canvas"
	"Seshat/internal/models"
	"Seshat/internal/transport"

	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
)

const boardHelp = `commands:
  add sticky|rectangle|freehand [text]
  move <shape-id> <dx> <dy>
  text <shape-id> <text>
  show | save | quit`

func (a *app) board(ctx context.Context, boardID, newName string) error {
	store := canvas.NewStore(a.api, canvas.Options{Logger: a.logger.With("component", "canvas")})
	if boardID == "" {
		doc, err := store.Create(ctx, newName)
		if err != nil {
			return err
		}
		boardID = doc.ID
		color.Info.Printf("Created board %s\n", boardID)
	} else if err := store.Open(ctx, boardID); err != nil {
		return err
	}
	if err := store.Attach(ctx, a.socket(transport.Channel{Kind: transport.KindBoard, ID: boardID})); err != nil {
		color.Warn.Println(err)
	}
	defer store.Detach()

	printShapes(store.Shapes())
	color.Info.Println(boardHelp)

	drag := canvas.NewDrag(store)
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		cmd, err := parseBoardCommand(scanner.Text())
		if err != nil {
			color.Warn.Println(err)
			continue
		}
		if cmd.name == "quit" {
			return nil
		}
		if err := cmd.run(ctx, store, drag); err != nil {
			color.Warn.Println(err)
		}
	}
	return scanner.Err()
}

type boardCommand struct {
	name   string
	kind   models.ShapeType
	id     string
	text   string
	dx, dy float64
}

func parseBoardCommand(line string) (boardCommand, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return boardCommand{name: "show"}, nil
	}
	cmd := boardCommand{name: fields[0]}
	switch cmd.name {
	case "show", "save", "quit", "help":
		return cmd, nil
	case "add":
		if len(fields) < 2 {
			return cmd, fmt.Errorf("usage: add sticky|rectangle|freehand [text]")
		}
		cmd.kind = models.ShapeType(fields[1])
		switch cmd.kind {
		case models.ShapeSticky, models.ShapeRectangle, models.ShapeFreehand:
		default:
			return cmd, fmt.Errorf("unknown shape type %q", fields[1])
		}
		cmd.text = strings.Join(fields[2:], " ")
		return cmd, nil
	case "move":
		if len(fields) != 4 {
			return cmd, fmt.Errorf("usage: move <shape-id> <dx> <dy>")
		}
		cmd.id = fields[1]
		var err error
		if cmd.dx, err = strconv.ParseFloat(fields[2], 64); err != nil {
			return cmd, fmt.Errorf("dx: %w", err)
		}
		if cmd.dy, err = strconv.ParseFloat(fields[3], 64); err != nil {
			return cmd, fmt.Errorf("dy: %w", err)
		}
		return cmd, nil
	case "text":
		if len(fields) < 3 {
			return cmd, fmt.Errorf("usage: text <shape-id> <text>")
		}
		cmd.id = fields[1]
		cmd.text = strings.Join(fields[2:], " ")
		return cmd, nil
	default:
		return cmd, fmt.Errorf("unknown command %q", cmd.name)
	}
}

func (c boardCommand) run(ctx context.Context, store *canvas.Store, drag *canvas.Drag) error {
	switch c.name {
	case "help":
		fmt.Println(boardHelp)
	case "show":
		printShapes(store.Shapes())
	case "save":
		if err := store.Save(ctx); err != nil {
			return err
		}
		color.Info.Println("saved")
	case "add":
		var defaults models.ShapePatch
		if c.text != "" {
			defaults.Text = &c.text
		}
		shape := store.AddShape(c.kind, defaults)
		color.Info.Printf("added %s\n", shape.ID)
	case "move":
		// A move is a drag from the origin to the offset.
		if err := drag.Press(c.id, 0, 0); err != nil {
			return err
		}
		return drag.Release(c.dx, c.dy)
	case "text":
		return store.UpdateShape(c.id, models.ShapePatch{Text: &c.text})
	}
	return nil
}

func printShapes(shapes []models.Shape) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "Type", "X", "Y", "Text"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	for _, s := range shapes {
		text := ""
		if s.Text != nil {
			text = *s.Text
		}
		table.Append([]string{
			s.ID,
			string(s.Type),
			strconv.FormatFloat(s.X, 'f', -1, 64),
			strconv.FormatFloat(s.Y, 'f', -1, 64),
			text,
		})
	}
	table.Render()
}

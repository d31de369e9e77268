package main

import (
	"context"
	"errors"
	"os"

	"Seshat/internal/api"
	"Seshat/internal/models"
	"Seshat/internal/rooms"

	"github.com/olekukonko/tablewriter"
)

func (a *app) roomsCommand(ctx context.Context, args []string) error {
	if len(args) > 0 {
		if args[0] != "create" || len(args) != 2 {
			return errors.New("usage: rooms | rooms create <name>")
		}
		room, err := a.api.CreateRoom(ctx, api.CreateRoomRequest{Name: args[1], Kind: models.RoomPublic})
		if err != nil {
			return err
		}
		printRooms([]models.Room{room})
		return nil
	}

	dir := rooms.NewDirectory(a.api)
	list, err := dir.Refresh(ctx)
	if err != nil {
		return err
	}
	printRooms(list)
	return nil
}

func printRooms(list []models.Room) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "Name", "Kind", "Created"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	for _, r := range list {
		table.Append([]string{r.ID, r.Name, string(r.Kind), r.CreatedAt.Local().Format("2006-01-02 15:04")})
	}
	table.Render()
}

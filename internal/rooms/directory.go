//go:generate go run go.uber.org/mock/mockgen -source=directory.go -destination=../mocks/mock_room_lister.go -package=mocks
package rooms

import (
	"context"
	"fmt"
	"sync"
	"time"

	"Seshat/internal/models"

	"github.com/samber/lo"
)

type Lister interface {
	ListRooms(ctx context.Context) ([]models.Room, error)
}

// Directory caches the list of joinable rooms. The list is only ever
// replaced by a fetch; it is never edited locally.
type Directory struct {
	lister Lister

	mu        sync.RWMutex
	rooms     []models.Room
	fetchedAt time.Time
}

func NewDirectory(lister Lister) *Directory {
	return &Directory{lister: lister}
}

// Refresh fetches the room list. On failure the previous list is kept.
func (d *Directory) Refresh(ctx context.Context) ([]models.Room, error) {
	rooms, err := d.lister.ListRooms(ctx)
	if err != nil {
		return d.Rooms(), fmt.Errorf("list rooms: %w", err)
	}

	d.mu.Lock()
	d.rooms = rooms
	d.fetchedAt = time.Now()
	d.mu.Unlock()
	return d.Rooms(), nil
}

func (d *Directory) Rooms() []models.Room {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]models.Room(nil), d.rooms...)
}

func (d *Directory) Lookup(id string) (models.Room, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return lo.Find(d.rooms, func(r models.Room) bool { return r.ID == id })
}

func (d *Directory) FetchedAt() time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.fetchedAt
}

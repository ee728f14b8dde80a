package domain

import "time"

// DefaultMaxSaveSlots is the size of the slot id space 1..N.
const DefaultMaxSaveSlots = 10

// SaveSlot is a durable, numbered storage location for one GameState snapshot.
type SaveSlot struct {
	ID        int        `json:"id"`
	Name      string     `json:"name"`
	GameState *GameState `json:"gameState"`
	Thumbnail string     `json:"thumbnail,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// Clone returns a deep copy of the slot.
func (s SaveSlot) Clone() SaveSlot {
	s.GameState = s.GameState.Clone()
	return s
}

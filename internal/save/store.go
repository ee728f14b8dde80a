package save

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"story-engine/internal/domain"

	"go.uber.org/zap"
)

// Options configures a Store.
type Options struct {
	MaxSlots int
	Now      func() time.Time
	Logger   *zap.Logger
}

// SaveOption customises a single CreateSave call.
type SaveOption func(*domain.SaveSlot)

// WithThumbnail attaches a thumbnail reference to the slot.
func WithThumbnail(thumbnail string) SaveOption {
	return func(s *domain.SaveSlot) { s.Thumbnail = thumbnail }
}

// Store manages numbered save slots over a Backend. The in-memory index
// always mirrors the durable index record: it is replaced only after the
// backend accepted the write.
type Store struct {
	backend  Backend
	maxSlots int
	now      func() time.Time
	logger   *zap.Logger

	mu    sync.RWMutex
	slots []domain.SaveSlot // sorted by ID
}

// NewStore loads the slot index from backend. An unreadable index record is
// logged and treated as empty; a failing backend is an error.
func NewStore(ctx context.Context, backend Backend, opts Options) (*Store, error) {
	if opts.MaxSlots <= 0 {
		opts.MaxSlots = domain.DefaultMaxSaveSlots
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	s := &Store{
		backend:  backend,
		maxSlots: opts.MaxSlots,
		now:      opts.Now,
		logger:   opts.Logger.Named("SaveStore"),
	}

	data, found, err := backend.Get(ctx, IndexKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load save index: %w: %w", domain.ErrPersistenceFailure, err)
	}
	if found {
		var slots []domain.SaveSlot
		if err := json.Unmarshal(data, &slots); err != nil {
			s.logger.Error("Save index is corrupt, starting empty", zap.Error(err))
		} else {
			sort.Slice(slots, func(i, j int) bool { return slots[i].ID < slots[j].ID })
			s.slots = slots
		}
	}
	s.logger.Info("Save index loaded", zap.Int("slots", len(s.slots)), zap.Int("maxSlots", s.maxSlots))
	return s, nil
}

func (s *Store) checkSlot(slotID int) error {
	if slotID < 1 || slotID > s.maxSlots {
		return fmt.Errorf("%w: %d not in 1..%d", domain.ErrInvalidSlotID, slotID, s.maxSlots)
	}
	return nil
}

// CreateSave writes a deep snapshot of state to slotID, overwriting any
// previous save there while keeping its CreatedAt. An empty name becomes
// "Save <slotID>". The snapshot's LastSaved is set to now; state itself is
// not modified.
func (s *Store) CreateSave(ctx context.Context, slotID int, state *domain.GameState, name string, opts ...SaveOption) (domain.SaveSlot, error) {
	if err := s.checkSlot(slotID); err != nil {
		return domain.SaveSlot{}, err
	}
	if state == nil {
		return domain.SaveSlot{}, fmt.Errorf("%w: nil game state", domain.ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	snapshot := state.Clone()
	snapshot.LastSaved = now
	snapshot.GameVariables = domain.NormalizeVariables(snapshot.GameVariables)

	if name == "" {
		name = fmt.Sprintf("Save %d", slotID)
	}
	slot := domain.SaveSlot{
		ID:        slotID,
		Name:      name,
		GameState: snapshot,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if prev := s.find(slotID); prev != nil {
		slot.CreatedAt = prev.CreatedAt
	}
	for _, opt := range opts {
		opt(&slot)
	}

	next := make([]domain.SaveSlot, 0, len(s.slots)+1)
	for _, existing := range s.slots {
		if existing.ID != slotID {
			next = append(next, existing)
		}
	}
	next = append(next, slot)
	sort.Slice(next, func(i, j int) bool { return next[i].ID < next[j].ID })

	payload, err := json.Marshal(snapshot)
	if err != nil {
		return domain.SaveSlot{}, fmt.Errorf("failed to encode game state: %w: %w", domain.ErrPersistenceFailure, err)
	}
	index, err := json.Marshal(next)
	if err != nil {
		return domain.SaveSlot{}, fmt.Errorf("failed to encode save index: %w: %w", domain.ErrPersistenceFailure, err)
	}

	var batch Batch
	batch.Put(SlotKey(slotID), payload)
	batch.Put(IndexKey, index)
	if err := s.backend.Write(ctx, batch); err != nil {
		s.logger.Error("Failed to write save", zap.Int("slotID", slotID), zap.Error(err))
		return domain.SaveSlot{}, fmt.Errorf("failed to write slot %d: %w: %w", slotID, domain.ErrPersistenceFailure, err)
	}
	s.slots = next

	s.logger.Info("Game saved",
		zap.Int("slotID", slotID),
		zap.String("name", name),
		zap.String("storyID", snapshot.StoryID),
		zap.String("sceneID", snapshot.CurrentSceneID),
	)
	return slot.Clone(), nil
}

// LoadSave returns the GameState stored in slotID.
func (s *Store) LoadSave(ctx context.Context, slotID int) (*domain.GameState, error) {
	if err := s.checkSlot(slotID); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, found, err := s.backend.Get(ctx, SlotKey(slotID))
	if err != nil {
		return nil, fmt.Errorf("failed to read slot %d: %w: %w", slotID, domain.ErrPersistenceFailure, err)
	}
	if !found {
		return nil, fmt.Errorf("slot %d: %w", slotID, domain.ErrSaveNotFound)
	}
	var state domain.GameState
	if err := json.Unmarshal(data, &state); err != nil {
		s.logger.Error("Save payload is corrupt", zap.Int("slotID", slotID), zap.Error(err))
		return nil, fmt.Errorf("failed to decode slot %d: %w: %w", slotID, domain.ErrPersistenceFailure, err)
	}
	if state.GameVariables == nil {
		state.GameVariables = domain.Variables{}
	}
	if state.PlayerChoices == nil {
		state.PlayerChoices = []string{}
	}
	if state.CompletedMiniGames == nil {
		state.CompletedMiniGames = []string{}
	}
	return &state, nil
}

// DeleteSave removes slotID. Deleting an empty slot succeeds.
func (s *Store) DeleteSave(ctx context.Context, slotID int) error {
	if err := s.checkSlot(slotID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]domain.SaveSlot, 0, len(s.slots))
	for _, existing := range s.slots {
		if existing.ID != slotID {
			next = append(next, existing)
		}
	}
	index, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("failed to encode save index: %w: %w", domain.ErrPersistenceFailure, err)
	}

	var batch Batch
	batch.Delete(SlotKey(slotID))
	batch.Put(IndexKey, index)
	if err := s.backend.Write(ctx, batch); err != nil {
		s.logger.Error("Failed to delete save", zap.Int("slotID", slotID), zap.Error(err))
		return fmt.Errorf("failed to delete slot %d: %w: %w", slotID, domain.ErrPersistenceFailure, err)
	}
	existed := len(next) != len(s.slots)
	s.slots = next

	s.logger.Info("Save deleted", zap.Int("slotID", slotID), zap.Bool("existed", existed))
	return nil
}

// ListSlots returns copies of all occupied slots, ascending by ID.
func (s *Store) ListSlots() []domain.SaveSlot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.SaveSlot, len(s.slots))
	for i, slot := range s.slots {
		out[i] = slot.Clone()
	}
	return out
}

// HasSave reports whether slotID is occupied.
func (s *Store) HasSave(slotID int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.find(slotID) != nil
}

// EmptySlotID returns the lowest unoccupied slot id; ok is false when all
// slots are taken.
func (s *Store) EmptySlotID() (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id := 1; id <= s.maxSlots; id++ {
		if s.find(id) == nil {
			return id, true
		}
	}
	return 0, false
}

// Count returns the number of occupied slots.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.slots)
}

// MaxSlots returns N, the size of the slot id space.
func (s *Store) MaxSlots() int {
	return s.maxSlots
}

// Close closes the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

func (s *Store) find(slotID int) *domain.SaveSlot {
	for i := range s.slots {
		if s.slots[i].ID == slotID {
			return &s.slots[i]
		}
	}
	return nil
}

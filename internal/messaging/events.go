// Package messaging defines engine events and the publishers that carry
// them out of the process.
package messaging

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType names an engine event.
type EventType string

const (
	EventStoryStarted      EventType = "story_started"
	EventChoiceSubmitted   EventType = "choice_submitted"
	EventSceneChanged      EventType = "scene_changed"
	EventGameSaved         EventType = "game_saved"
	EventGameLoaded        EventType = "game_loaded"
	EventSaveDeleted       EventType = "save_deleted"
	EventVariablesMerged   EventType = "variables_merged"
	EventMiniGameStarted   EventType = "minigame_started"
	EventMiniGameCompleted EventType = "minigame_completed"
	EventMiniGameExited    EventType = "minigame_exited"
	EventElementActivated  EventType = "element_activated"
)

// Event is one notification about an engine state change.
type Event struct {
	ID        uuid.UUID      `json:"id"`
	Type      EventType      `json:"type"`
	StoryID   string         `json:"storyId,omitempty"`
	SceneID   string         `json:"sceneId,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewEvent stamps a new event.
func NewEvent(t EventType, storyID, sceneID string, payload map[string]any, now time.Time) Event {
	return Event{
		ID:        uuid.New(),
		Type:      t,
		StoryID:   storyID,
		SceneID:   sceneID,
		Payload:   payload,
		Timestamp: now,
	}
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NoopPublisher drops every event.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) error { return nil }

// FanOut publishes each event to every publisher and joins their errors.
type FanOut []Publisher

func (f FanOut) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder keeps every published event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

// Events returns what was published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Types returns the types of the recorded events in order.
func (r *Recorder) Types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

// Reset forgets recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

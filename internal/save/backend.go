// Package save implements the numbered save-slot store and its durable backends.
package save

import (
	"context"
	"fmt"
	"strconv"
)

const (
	keyPrefix = "story-engine:"
	// IndexKey holds the JSON array of all occupied slots.
	IndexKey = keyPrefix + "save-slots"
)

// SlotKey returns the record key of a slot's GameState payload.
func SlotKey(slotID int) string {
	return keyPrefix + "save:" + strconv.Itoa(slotID)
}

// Record is one key/value write.
type Record struct {
	Key   string
	Value []byte
}

// Batch is a set of puts and deletes that a Backend applies atomically:
// either every change is visible afterwards or none is.
type Batch struct {
	Puts    []Record
	Deletes []string
}

// Put adds a write to the batch.
func (b *Batch) Put(key string, value []byte) {
	b.Puts = append(b.Puts, Record{Key: key, Value: value})
}

// Delete adds a removal to the batch. Removing an absent key is not an error.
func (b *Batch) Delete(key string) {
	b.Deletes = append(b.Deletes, key)
}

// Backend is a durable key-value medium.
type Backend interface {
	// Get returns the value stored under key. found is false when the key
	// does not exist.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	// Write applies the batch atomically.
	Write(ctx context.Context, batch Batch) error
	Close() error
}

// Kind names a backend implementation.
type Kind string

const (
	KindMemory   Kind = "memory"
	KindFile     Kind = "file"
	KindRedis    Kind = "redis"
	KindPostgres Kind = "postgres"
)

// ParseKind validates a backend name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindMemory, KindFile, KindRedis, KindPostgres:
		return k, nil
	}
	return "", fmt.Errorf("unknown save backend %q", s)
}

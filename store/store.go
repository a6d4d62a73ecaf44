// Package store is the room state store: per-room configuration, the
// message ledger, and the usage ledger. All operations are atomic with
// respect to a single room; there are no cross-room transactions.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"
)

// ErrStorageUnavailable wraps any failure to reach the backing database.
// Callers must treat it as a permanent failure for the current event.
var ErrStorageUnavailable = errors.New("storage unavailable")

// Store is the persistence contract the dispatcher and command handlers
// depend on.
type Store interface {
	// Config returns the room's configuration, or defaults if none is stored.
	Config(ctx context.Context, roomID string) (RoomConfig, error)
	// SetConfig applies a partial update all-or-nothing and returns the
	// resulting configuration.
	SetConfig(ctx context.Context, roomID string, update ConfigUpdate) (RoomConfig, error)
	// AppendMessage persists one chat turn and returns its ordering key.
	AppendMessage(ctx context.Context, roomID, sender, role, body string) (MessageRecord, error)
	// RecentMessages returns up to limit records above the room's history
	// floor, in chronological order (newest last).
	RecentMessages(ctx context.Context, roomID string, limit int) ([]MessageRecord, error)
	// MessageCount returns the number of stored records for a room.
	MessageCount(ctx context.Context, roomID string) (int64, error)
	// AddUsage appends a usage record and returns the new running total.
	AddUsage(ctx context.Context, roomID, backend string, tokens int64) (int64, error)
	// TotalUsage returns the sum of recorded tokens for a room.
	TotalUsage(ctx context.Context, roomID string) (int64, error)
}

// DB is the gorm-backed Store. A per-room mutex keeps single-room
// operations atomic even when the dispatcher is processing events for
// different rooms concurrently.
type DB struct {
	gdb *gorm.DB

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

var _ Store = (*DB)(nil)

func NewDB(gdb *gorm.DB) (*DB, error) {
	if gdb == nil {
		return nil, fmt.Errorf("nil gorm db")
	}
	return &DB{gdb: gdb, locks: make(map[string]*sync.Mutex)}, nil
}

func (s *DB) roomLock(roomID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[roomID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[roomID] = l
	}
	return l
}

func (s *DB) Config(ctx context.Context, roomID string) (RoomConfig, error) {
	var cfg RoomConfig
	err := s.gdb.WithContext(ctx).First(&cfg, "room_id = ?", roomID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return RoomConfig{RoomID: roomID}, nil
	}
	if err != nil {
		return RoomConfig{}, storageErr("load config", err)
	}
	return cfg, nil
}

func (s *DB) SetConfig(ctx context.Context, roomID string, update ConfigUpdate) (RoomConfig, error) {
	lock := s.roomLock(roomID)
	lock.Lock()
	defer lock.Unlock()

	var cfg RoomConfig
	err := s.gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.First(&cfg, "room_id = ?", roomID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			cfg = RoomConfig{RoomID: roomID, CreatedAt: time.Now().UTC()}
		} else if err != nil {
			return err
		}

		if update.Backend != nil {
			cfg.Backend = *update.Backend
		}
		if update.SystemMessage != nil {
			cfg.SystemMessage = *update.SystemMessage
		}
		if update.ForceSystemMessage != nil {
			cfg.ForceSystemMessage = *update.ForceSystemMessage
		}
		if update.HistoryFloor != nil {
			cfg.HistoryFloor = *update.HistoryFloor
		}
		cfg.UpdatedAt = time.Now().UTC()
		return tx.Save(&cfg).Error
	})
	if err != nil {
		return RoomConfig{}, storageErr("set config", err)
	}
	return cfg, nil
}

func (s *DB) AppendMessage(ctx context.Context, roomID, sender, role, body string) (MessageRecord, error) {
	lock := s.roomLock(roomID)
	lock.Lock()
	defer lock.Unlock()

	rec := MessageRecord{
		RoomID:    roomID,
		Sender:    sender,
		Role:      role,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}
	err := s.gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var maxSeq int64
		row := tx.Model(&MessageRecord{}).Where("room_id = ?", roomID).Select("COALESCE(MAX(seq), 0)")
		if err := row.Scan(&maxSeq).Error; err != nil {
			return err
		}
		rec.Seq = maxSeq + 1
		return tx.Create(&rec).Error
	})
	if err != nil {
		return MessageRecord{}, storageErr("append message", err)
	}
	return rec, nil
}

func (s *DB) RecentMessages(ctx context.Context, roomID string, limit int) ([]MessageRecord, error) {
	if limit <= 0 {
		return nil, nil
	}

	cfg, err := s.Config(ctx, roomID)
	if err != nil {
		return nil, err
	}

	var records []MessageRecord
	err = s.gdb.WithContext(ctx).
		Where("room_id = ? AND seq > ?", roomID, cfg.HistoryFloor).
		Order("seq DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, storageErr("recent messages", err)
	}

	// Newest-first from the query; reverse to chronological order.
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	return records, nil
}

func (s *DB) MessageCount(ctx context.Context, roomID string) (int64, error) {
	var n int64
	err := s.gdb.WithContext(ctx).Model(&MessageRecord{}).Where("room_id = ?", roomID).Count(&n).Error
	if err != nil {
		return 0, storageErr("message count", err)
	}
	return n, nil
}

func (s *DB) AddUsage(ctx context.Context, roomID, backend string, tokens int64) (int64, error) {
	lock := s.roomLock(roomID)
	lock.Lock()
	defer lock.Unlock()

	var total int64
	err := s.gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec := UsageRecord{
			RoomID:    roomID,
			Backend:   backend,
			Tokens:    tokens,
			CreatedAt: time.Now().UTC(),
		}
		if err := tx.Create(&rec).Error; err != nil {
			return err
		}
		return tx.Model(&UsageRecord{}).Where("room_id = ?", roomID).
			Select("COALESCE(SUM(tokens), 0)").Scan(&total).Error
	})
	if err != nil {
		return 0, storageErr("add usage", err)
	}
	return total, nil
}

func (s *DB) TotalUsage(ctx context.Context, roomID string) (int64, error) {
	var total int64
	err := s.gdb.WithContext(ctx).Model(&UsageRecord{}).Where("room_id = ?", roomID).
		Select("COALESCE(SUM(tokens), 0)").Scan(&total).Error
	if err != nil {
		return 0, storageErr("total usage", err)
	}
	return total, nil
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStorageUnavailable, op, err)
}

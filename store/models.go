package store

import "time"

// RoomConfig holds per-room settings. A room without a row behaves as all
// defaults; the row is created on the first mutation.
type RoomConfig struct {
	RoomID             string `gorm:"primaryKey"`
	Backend            string
	SystemMessage      string
	ForceSystemMessage bool
	// HistoryFloor is an ordering-key floor: message records with Seq <= floor
	// are excluded from context assembly. Set by the ignoreolder command.
	HistoryFloor int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// MessageRecord is one persisted chat turn. Immutable once written.
// Seq is strictly increasing within a room and defines replay order.
type MessageRecord struct {
	ID        uint   `gorm:"primaryKey"`
	RoomID    string `gorm:"index:idx_room_seq,unique"`
	Seq       int64  `gorm:"index:idx_room_seq,unique"`
	Sender    string
	Role      string
	Body      string
	CreatedAt time.Time
}

// UsageRecord is one accounting entry. Append-only.
type UsageRecord struct {
	ID        uint   `gorm:"primaryKey"`
	RoomID    string `gorm:"index"`
	Backend   string
	Tokens    int64
	CreatedAt time.Time
}

// ConfigUpdate is a partial RoomConfig mutation. Nil fields are untouched.
type ConfigUpdate struct {
	Backend            *string
	SystemMessage      *string
	ForceSystemMessage *bool
	HistoryFloor       *int64
}

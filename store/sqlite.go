package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ResolveSQLitePath picks the database location. Precedence: explicit path,
// existing ./gptbot.sqlite, $HOME/.gptbot/gptbot.sqlite (created on demand).
func ResolveSQLitePath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path != "" {
		return path, nil
	}

	localDB := filepath.Clean("./gptbot.sqlite")
	if _, err := os.Stat(localDB); err == nil {
		return localDB, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	homeDir := filepath.Join(home, ".gptbot")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		return "", err
	}
	return filepath.Join(homeDir, "gptbot.sqlite"), nil
}

// OpenSQLite opens (and migrates) the sqlite database at path.
// A single connection with WAL and a busy timeout keeps concurrent per-room
// writers from tripping over SQLITE_BUSY.
func OpenSQLite(path string) (*gorm.DB, error) {
	dsn := path + "?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on"
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Discard,
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	if err := AutoMigrate(gdb); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return gdb, nil
}

func AutoMigrate(gdb *gorm.DB) error {
	if gdb == nil {
		return fmt.Errorf("nil gorm db")
	}
	return gdb.AutoMigrate(
		&RoomConfig{},
		&MessageRecord{},
		&UsageRecord{},
	)
}

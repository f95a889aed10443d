package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/TRPB/key-mapper/pkg/journal"
	"github.com/TRPB/key-mapper/pkg/journal/sqlite/migrations"
)

// Store persists journal entries in a sqlite database.
type Store struct {
	db *sql.DB
}

func NewStore(filename string, log *zap.SugaredLogger) (*Store, error) {
	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := migrations.Migrate(db, log); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Record(device, preset, action string) error {
	_, err := s.db.Exec(
		`insert into injections (at, device, preset, action) values (?, ?, ?, ?)`,
		time.Now().Unix(), device, preset, action,
	)
	if err != nil {
		return fmt.Errorf("sqlite insert: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(limit int) ([]journal.Entry, error) {
	rows, err := s.db.Query(
		`select at, device, preset, action from injections order by at desc, id desc limit ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite select: %w", err)
	}
	defer rows.Close()

	var entries []journal.Entry
	for rows.Next() {
		var at int64
		var entry journal.Entry
		if err := rows.Scan(&at, &entry.Device, &entry.Preset, &entry.Action); err != nil {
			return nil, fmt.Errorf("sqlite scan: %w", err)
		}
		entry.When = time.Unix(at, 0)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite rows: %w", err)
	}

	return entries, nil
}

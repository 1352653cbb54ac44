package playbook

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"

	"github.com/XiaoConstantine/ace-go/pkg/errors"
	"github.com/XiaoConstantine/ace-go/pkg/logging"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore persists playbooks in a SQLite database, as an alternative
// to the JSON File store for embedders that already carry a database.
// If path is ":memory:", the database is created in-memory.
type SQLiteStore struct {
	db   *sql.DB
	mu   sync.Mutex
	path string

	initialized sync.Once
}

// NewSQLiteStore opens (and initializes if needed) a SQLite-backed store.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.WithFields(
			errors.Wrap(err, errors.StorageFailed, "failed to open SQLite database"),
			errors.Fields{"path": path},
		)
	}

	store := &SQLiteStore{db: db, path: path}
	if err := store.ensureInitialized(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) ensureInitialized() error {
	var initErr error
	s.initialized.Do(func() {
		// Enable WAL mode for better concurrency
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			initErr = errors.Wrap(err, errors.StorageFailed, "failed to enable WAL mode")
			return
		}

		query := `
        CREATE TABLE IF NOT EXISTS bullets (
            id TEXT PRIMARY KEY,
            section TEXT NOT NULL,
            content TEXT NOT NULL,
            helpful_count INTEGER NOT NULL DEFAULT 0,
            harmful_count INTEGER NOT NULL DEFAULT 0,
            metadata TEXT,
            position INTEGER NOT NULL
        );

        CREATE TABLE IF NOT EXISTS section_counters (
            section TEXT PRIMARY KEY,
            counter INTEGER NOT NULL
        );

        CREATE INDEX IF NOT EXISTS idx_bullets_section ON bullets(section);
        `
		if _, err := s.db.Exec(query); err != nil {
			initErr = errors.Wrap(err, errors.StorageFailed, "failed to initialize database schema")
		}
	})
	return initErr
}

// Save replaces the stored state with a snapshot of the playbook, in a
// single transaction.
func (s *SQLiteStore) Save(ctx context.Context, p *Playbook) error {
	state := p.Snapshot()

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.StorageFailed, "failed to begin transaction")
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			logging.GetLogger().Error(ctx, "failed to rollback transaction: %v", err)
		}
	}()

	if _, err := tx.ExecContext(ctx, "DELETE FROM bullets"); err != nil {
		return errors.Wrap(err, errors.StorageFailed, "failed to clear bullets")
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM section_counters"); err != nil {
		return errors.Wrap(err, errors.StorageFailed, "failed to clear counters")
	}

	for i, b := range state.Bullets {
		var meta []byte
		if len(b.Metadata) > 0 {
			meta, err = json.Marshal(b.Metadata)
			if err != nil {
				return errors.WithFields(
					errors.Wrap(err, errors.StorageFailed, "failed to encode bullet metadata"),
					errors.Fields{"bullet_id": b.ID},
				)
			}
		}
		_, err = tx.ExecContext(ctx, `
            INSERT INTO bullets (id, section, content, helpful_count, harmful_count, metadata, position)
            VALUES (?, ?, ?, ?, ?, ?, ?)`,
			b.ID, b.Section, b.Content, b.HelpfulCount, b.HarmfulCount, nullableString(meta), i)
		if err != nil {
			return errors.WithFields(
				errors.Wrap(err, errors.StorageFailed, "failed to insert bullet"),
				errors.Fields{"bullet_id": b.ID},
			)
		}
	}

	for section, counter := range state.SectionCounters {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO section_counters (section, counter) VALUES (?, ?)",
			section, counter)
		if err != nil {
			return errors.WithFields(
				errors.Wrap(err, errors.StorageFailed, "failed to insert section counter"),
				errors.Fields{"section": section},
			)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, errors.StorageFailed, "failed to commit transaction")
	}
	return nil
}

// Load reconstructs the stored playbook. An empty database loads as an
// empty playbook.
func (s *SQLiteStore) Load(ctx context.Context) (*Playbook, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := &State{SectionCounters: make(map[string]int)}

	rows, err := s.db.QueryContext(ctx, `
        SELECT id, section, content, helpful_count, harmful_count, metadata
        FROM bullets ORDER BY position`)
	if err != nil {
		return nil, errors.Wrap(err, errors.StorageFailed, "failed to query bullets")
	}
	defer rows.Close()

	for rows.Next() {
		var b Bullet
		var meta sql.NullString
		if err := rows.Scan(&b.ID, &b.Section, &b.Content, &b.HelpfulCount, &b.HarmfulCount, &meta); err != nil {
			return nil, errors.Wrap(err, errors.StorageFailed, "failed to scan bullet row")
		}
		if meta.Valid && meta.String != "" {
			if err := json.Unmarshal([]byte(meta.String), &b.Metadata); err != nil {
				return nil, errors.WithFields(
					errors.Wrap(err, errors.StorageFailed, "failed to decode bullet metadata"),
					errors.Fields{"bullet_id": b.ID},
				)
			}
		}
		state.Bullets = append(state.Bullets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.StorageFailed, "failed to iterate bullet rows")
	}

	counterRows, err := s.db.QueryContext(ctx, "SELECT section, counter FROM section_counters")
	if err != nil {
		return nil, errors.Wrap(err, errors.StorageFailed, "failed to query section counters")
	}
	defer counterRows.Close()

	for counterRows.Next() {
		var section string
		var counter int
		if err := counterRows.Scan(&section, &counter); err != nil {
			return nil, errors.Wrap(err, errors.StorageFailed, "failed to scan counter row")
		}
		state.SectionCounters[section] = counter
	}
	if err := counterRows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.StorageFailed, "failed to iterate counter rows")
	}

	return FromState(state)
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func nullableString(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

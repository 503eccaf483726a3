package db

import (
	"context"
	"fmt"
)

// Store is the storage collaborator shared by the certificate pool and the
// competition engine.
type Store struct {
	db *Database
}

// NewStore opens the database at dbPath and applies the schema.
func NewStore(dbPath string) (*Store, error) {
	database, err := NewDatabase(dbPath)
	if err != nil {
		return nil, err
	}

	s := &Store{db: database}
	if err := s.migrate(context.Background()); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Database exposes the underlying connection wrapper.
func (s *Store) Database() *Database {
	return s.db
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS certificates (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			certificate_data TEXT NOT NULL,
			available INTEGER NOT NULL DEFAULT 1,
			allocated_at TEXT,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%d %H:%M:%f', 'now'))
		);

		CREATE INDEX IF NOT EXISTS idx_certificates_available ON certificates(available);

		CREATE TABLE IF NOT EXISTS competition_sessions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			csid TEXT NOT NULL UNIQUE,
			ccid TEXT NOT NULL DEFAULT '',
			profile_id INTEGER NOT NULL DEFAULT 0,
			state TEXT NOT NULL DEFAULT 'created',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			UNIQUE (csid, ccid)
		);

		CREATE TABLE IF NOT EXISTS match_reports (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			csid TEXT NOT NULL,
			ccid TEXT NOT NULL DEFAULT '',
			profile_id INTEGER NOT NULL,
			raw_report BLOB,
			result TEXT NOT NULL DEFAULT '',
			duration INTEGER NOT NULL DEFAULT 0,
			game_type TEXT NOT NULL DEFAULT '',
			raw_game_type INTEGER NOT NULL DEFAULT 0,
			protocol_version INTEGER NOT NULL DEFAULT 0,
			developer_version INTEGER NOT NULL DEFAULT 0,
			game_status INTEGER NOT NULL DEFAULT 0,
			flags INTEGER NOT NULL DEFAULT 0,
			player_count INTEGER NOT NULL DEFAULT 0,
			team_count INTEGER NOT NULL DEFAULT 0,
			auto_match INTEGER NOT NULL DEFAULT 0,
			map_path TEXT NOT NULL DEFAULT '',
			replay_guid TEXT NOT NULL DEFAULT '',
			players TEXT NOT NULL DEFAULT '[]',
			winner_ids TEXT NOT NULL DEFAULT '[]',
			loser_ids TEXT NOT NULL DEFAULT '[]',
			decode_error TEXT NOT NULL DEFAULT '',
			submitted_at TEXT NOT NULL,
			UNIQUE (csid, profile_id)
		);

		CREATE INDEX IF NOT EXISTS idx_match_reports_csid ON match_reports(csid);
	`

	if _, err := s.db.Exec(ctx, schema); err != nil {
		return err
	}

	// Databases created before reclamation existed lack allocated_at.
	return s.ensureColumn(ctx, "certificates", "allocated_at", "TEXT")
}

func (s *Store) ensureColumn(ctx context.Context, table, column, decl string) error {
	rows, err := s.db.Query(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return fmt.Errorf("failed to inspect %s: %w", table, err)
	}

	found := false
	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dfltValue any
			pk        int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			rows.Close()
			return err
		}
		if name == column {
			found = true
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	if found {
		return nil
	}
	_, err = s.db.Exec(ctx, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, decl))
	return err
}

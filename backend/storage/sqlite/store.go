package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/devinterview/collab/backend/model"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

var (
	ErrSessionNotFound = errors.New("session is not found")
)

// Store persists interview session metadata and the last saved code
// buffer outside the real-time stream.
type Store struct {
	logger zerolog.Logger
	db     *sql.DB
}

func New(dbPath string, logger *zerolog.Logger) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	// WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, err
	}

	if err := createTables(db); err != nil {
		return nil, err
	}

	st := &Store{
		logger: logger.With().Str("component", "session-store").Logger(),
		db:     db,
	}
	st.logger.Info().Str("path", dbPath).Msg("session store initialized")
	return st, nil
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		candidate_name TEXT NOT NULL,
		candidate_email TEXT NOT NULL DEFAULT '',
		date DATETIME DEFAULT CURRENT_TIMESTAMP,
		duration INTEGER DEFAULT 0,
		score INTEGER,
		status TEXT NOT NULL DEFAULT 'scheduled',
		language TEXT NOT NULL DEFAULT 'python',
		notes TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS session_code (
		session_id TEXT PRIMARY KEY,
		code TEXT NOT NULL DEFAULT '',
		language TEXT NOT NULL DEFAULT '',
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_date ON sessions(date DESC);
	`
	_, err := db.Exec(schema)
	return err
}

func (st *Store) Close() error {
	return st.db.Close()
}

// CreateSession allocates a short shareable id and stores the session
// as scheduled.
func (st *Store) CreateSession(candidateName, candidateEmail, language string) (*model.Session, error) {
	id := strings.Split(uuid.NewString(), "-")[0]
	now := time.Now().UTC()
	_, err := st.db.Exec(
		"INSERT INTO sessions (id, candidate_name, candidate_email, date, status, language) VALUES (?, ?, ?, ?, ?, ?)",
		id, candidateName, candidateEmail, now, model.SessionScheduled, language,
	)
	if err != nil {
		return nil, err
	}
	return &model.Session{
		ID:             id,
		CandidateName:  candidateName,
		CandidateEmail: candidateEmail,
		Date:           now,
		Status:         model.SessionScheduled,
		Language:       language,
	}, nil
}

func (st *Store) GetSession(id string) (*model.Session, error) {
	row := st.db.QueryRow(
		"SELECT id, candidate_name, candidate_email, date, duration, score, status, language, notes FROM sessions WHERE id = ?",
		id,
	)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (st *Store) ListSessions() ([]model.Session, error) {
	rows, err := st.db.Query(
		"SELECT id, candidate_name, candidate_email, date, duration, score, status, language, notes FROM sessions ORDER BY date DESC",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// UpdateSession applies the non-nil fields of patch and returns the
// updated session.
func (st *Store) UpdateSession(id string, patch model.SessionPatch) (*model.Session, error) {
	var (
		sets []string
		args []any
	)
	if patch.Score != nil {
		sets = append(sets, "score = ?")
		args = append(args, *patch.Score)
	}
	if patch.Notes != nil {
		sets = append(sets, "notes = ?")
		args = append(args, *patch.Notes)
	}
	if patch.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, *patch.Status)
	}
	if patch.Duration != nil {
		sets = append(sets, "duration = ?")
		args = append(args, *patch.Duration)
	}
	if patch.Language != nil {
		sets = append(sets, "language = ?")
		args = append(args, *patch.Language)
	}
	if len(sets) > 0 {
		args = append(args, id)
		res, err := st.db.Exec("UPDATE sessions SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
		if err != nil {
			return nil, err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil, ErrSessionNotFound
		}
	}
	return st.GetSession(id)
}

func (st *Store) TerminateSession(id string) error {
	status := model.SessionCompleted
	_, err := st.UpdateSession(id, model.SessionPatch{Status: &status})
	return err
}

// SaveCode upserts the debounced code buffer for a session.
func (st *Store) SaveCode(ctx context.Context, id, code, language string) error {
	_, err := st.db.ExecContext(ctx, `
		INSERT INTO session_code (session_id, code, language, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(session_id) DO UPDATE SET
			code = excluded.code,
			language = excluded.language,
			updated_at = CURRENT_TIMESTAMP`,
		id, code, language,
	)
	return err
}

func (st *Store) GetCode(id string) (string, string, error) {
	row := st.db.QueryRow("SELECT code, language FROM session_code WHERE session_id = ?", id)
	var code, language string
	err := row.Scan(&code, &language)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", nil
	}
	if err != nil {
		return "", "", err
	}
	return code, language, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*model.Session, error) {
	var (
		s     model.Session
		score sql.NullInt64
	)
	err := row.Scan(
		&s.ID, &s.CandidateName, &s.CandidateEmail, &s.Date,
		&s.Duration, &score, &s.Status, &s.Language, &s.Notes,
	)
	if err != nil {
		return nil, err
	}
	if score.Valid {
		v := int(score.Int64)
		s.Score = &v
	}
	return &s, nil
}

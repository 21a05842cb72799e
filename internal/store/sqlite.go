package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/DoyleJ11/scrim-review/internal/engine"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLite is the default on-disk store.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite creates the database file if needed, applies pending migrations
// and opens it.
func OpenSQLite(path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("store: create database directory: %w", err)
	}
	if err := migrateUp(path); err != nil {
		return nil, err
	}

	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: ping sqlite: %w", err)
	}
	return &SQLite{db: db}, nil
}

func migrateUp(path string) error {
	dir, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("store: migrations: %w", err)
	}
	src, err := iofs.New(dir, ".")
	if err != nil {
		return fmt.Errorf("store: migrations source: %w", err)
	}

	normalized := filepath.ToSlash(path)
	if filepath.IsAbs(path) && normalized[0] != '/' {
		normalized = "/" + normalized
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, "sqlite://"+normalized)
	if err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("store: apply migrations: %w", err)
	}
	return nil
}

const seriesColumns = `series_id, finished, start_time_scheduled, patch,
	team1_id, team1_name, team1_logo, team1_score,
	team2_id, team2_name, team2_logo, team2_score`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSeries(row rowScanner) (Series, error) {
	var (
		s                  Series
		start              sql.NullString
		t1id, t1name, t1lg sql.NullString
		t2id, t2name, t2lg sql.NullString
		t1score, t2score   sql.NullInt64
	)
	err := row.Scan(&s.ID, &s.Finished, &start, &s.Patch,
		&t1id, &t1name, &t1lg, &t1score,
		&t2id, &t2name, &t2lg, &t2score)
	if err != nil {
		return Series{}, err
	}
	if start.Valid {
		if ts, err := time.Parse(time.RFC3339, start.String); err == nil {
			s.StartTime = &ts
		}
	}
	s.Team1 = Side{ID: t1id.String, Name: t1name.String, Logo: t1lg.String, Score: nullInt(t1score)}
	s.Team2 = Side{ID: t2id.String, Name: t2name.String, Logo: t2lg.String, Score: nullInt(t2score)}
	return s, nil
}

func nullInt(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

func (s *SQLite) UpsertSeries(ctx context.Context, in Series) (Series, Change, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Series{}, Unchanged, fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	existing, err := scanSeries(tx.QueryRowContext(ctx,
		`SELECT `+seriesColumns+` FROM series WHERE series_id = ?`, in.ID))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = tx.ExecContext(ctx, `INSERT INTO series (series_id, finished, start_time_scheduled, patch,
			team1_id, team1_name, team1_logo, team2_id, team2_name, team2_logo)
			VALUES (?, ?, ?, '', ?, ?, ?, ?, ?, ?)`,
			in.ID, in.Finished, nullTime(in.StartTime),
			in.Team1.ID, in.Team1.Name, in.Team1.Logo,
			in.Team2.ID, in.Team2.Name, in.Team2.Logo)
		if err != nil {
			return Series{}, Unchanged, fmt.Errorf("store: insert series %s: %w", in.ID, err)
		}
		if err := tx.Commit(); err != nil {
			return Series{}, Unchanged, fmt.Errorf("store: commit: %w", err)
		}
		in.Team1.Score, in.Team2.Score, in.Patch = nil, nil, ""
		return in, Inserted, nil
	case err != nil:
		return Series{}, Unchanged, fmt.Errorf("store: read series %s: %w", in.ID, err)
	}

	if existing.sameDetails(in) {
		return existing, Unchanged, nil
	}
	updated := existing.withDetails(in)
	_, err = tx.ExecContext(ctx, `UPDATE series SET finished = ?, start_time_scheduled = ?,
		team1_id = ?, team1_name = ?, team1_logo = ?, team2_id = ?, team2_name = ?, team2_logo = ?
		WHERE series_id = ?`,
		updated.Finished, nullTime(updated.StartTime),
		updated.Team1.ID, updated.Team1.Name, updated.Team1.Logo,
		updated.Team2.ID, updated.Team2.Name, updated.Team2.Logo,
		in.ID)
	if err != nil {
		return Series{}, Unchanged, fmt.Errorf("store: update series %s: %w", in.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return Series{}, Unchanged, fmt.Errorf("store: commit: %w", err)
	}
	return updated, Updated, nil
}

func (s *SQLite) GetSeries(ctx context.Context, id string) (Series, error) {
	out, err := scanSeries(s.db.QueryRowContext(ctx,
		`SELECT `+seriesColumns+` FROM series WHERE series_id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Series{}, ErrNotFound
	}
	if err != nil {
		return Series{}, fmt.Errorf("store: get series %s: %w", id, err)
	}
	return out, nil
}

func (s *SQLite) ListSeries(ctx context.Context) ([]Series, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+seriesColumns+` FROM series ORDER BY series_id`)
	if err != nil {
		return nil, fmt.Errorf("store: list series: %w", err)
	}
	defer rows.Close()

	var out []Series
	for rows.Next() {
		sr, err := scanSeries(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan series: %w", err)
		}
		out = append(out, sr)
	}
	return out, rows.Err()
}

func (s *SQLite) UpdateResult(ctx context.Context, id, patch string, score1, score2 int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE series SET patch = ?, team1_score = ?, team2_score = ? WHERE series_id = ?`,
		patch, score1, score2, id)
	if err != nil {
		return fmt.Errorf("store: update result %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLite) AddParticipants(ctx context.Context, seriesID string, ps []Participant) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	added := 0
	for _, p := range ps {
		res, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO participants
			(series_id, player_id, player_name, champion_name, stats_json) VALUES (?, ?, ?, ?, ?)`,
			seriesID, p.PlayerID, p.PlayerName, p.ChampionName, string(p.Stats))
		if err != nil {
			return 0, fmt.Errorf("store: insert participant %s/%s: %w", seriesID, p.PlayerID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			added++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: commit: %w", err)
	}
	return added, nil
}

func (s *SQLite) Participants(ctx context.Context, seriesID string) ([]Participant, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT series_id, player_id, player_name, champion_name, stats_json
		FROM participants WHERE series_id = ? ORDER BY id`, seriesID)
	if err != nil {
		return nil, fmt.Errorf("store: participants %s: %w", seriesID, err)
	}
	defer rows.Close()

	var out []Participant
	for rows.Next() {
		var (
			p     Participant
			stats string
		)
		if err := rows.Scan(&p.SeriesID, &p.PlayerID, &p.PlayerName, &p.ChampionName, &stats); err != nil {
			return nil, fmt.Errorf("store: scan participant: %w", err)
		}
		if stats != "" {
			p.Stats = []byte(stats)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLite) SaveEventLog(ctx context.Context, seriesID string, events []engine.FeedEvent) error {
	raw, err := encodeLog(events)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO event_logs (series_id, event_log) VALUES (?, ?)
		ON CONFLICT(series_id) DO UPDATE SET event_log = excluded.event_log`, seriesID, raw)
	if err != nil {
		return fmt.Errorf("store: save event log %s: %w", seriesID, err)
	}
	return nil
}

func (s *SQLite) EventLog(ctx context.Context, seriesID string) ([]engine.FeedEvent, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT event_log FROM event_logs WHERE series_id = ?`, seriesID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: event log %s: %w", seriesID, err)
	}
	return decodeLog(raw)
}

func (s *SQLite) SearchPlayers(ctx context.Context, query string, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT player_name FROM participants
		WHERE player_name LIKE '%' || ? || '%' ORDER BY player_name LIMIT ?`, query, searchLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("store: search players: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("store: scan player: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func (s *SQLite) SearchTeams(ctx context.Context, query string, limit int) ([]TeamRef, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, logo FROM (
			SELECT team1_id AS id, team1_name AS name, team1_logo AS logo FROM series
			UNION
			SELECT team2_id, team2_name, team2_logo FROM series
		) WHERE name IS NOT NULL AND name != '' AND name LIKE '%' || ? || '%'
		GROUP BY name ORDER BY name LIMIT ?`, query, searchLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("store: search teams: %w", err)
	}
	defer rows.Close()

	var out []TeamRef
	for rows.Next() {
		var id, name, logo sql.NullString
		if err := rows.Scan(&id, &name, &logo); err != nil {
			return nil, fmt.Errorf("store: scan team: %w", err)
		}
		out = append(out, TeamRef{ID: id.String, Name: name.String, Logo: logo.String})
	}
	return out, rows.Err()
}

func (s *SQLite) Setting(ctx context.Context, key string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("store: setting %s: %w", key, err)
	}
	return v, nil
}

func (s *SQLite) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("store: set setting %s: %w", key, err)
	}
	return nil
}

func (s *SQLite) Clear(ctx context.Context) (ClearStats, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ClearStats{}, fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	var st ClearStats
	for _, t := range []struct {
		table string
		n     *int64
	}{
		{"event_logs", &st.EventLogs},
		{"participants", &st.Participants},
		{"series", &st.Series},
	} {
		res, err := tx.ExecContext(ctx, "DELETE FROM "+t.table)
		if err != nil {
			return ClearStats{}, fmt.Errorf("store: clear %s: %w", t.table, err)
		}
		*t.n, _ = res.RowsAffected()
	}
	if err := tx.Commit(); err != nil {
		return ClearStats{}, fmt.Errorf("store: commit: %w", err)
	}
	return st, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

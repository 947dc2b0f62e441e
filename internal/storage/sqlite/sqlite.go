// Package sqlite is the single-node storage driver, backed by the pure-Go
// modernc.org/sqlite engine. Transactions begin IMMEDIATE, so the write lock
// is taken up front and LockMatch needs no row-level locking.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/albapepper/matchday/internal/domain"
	"github.com/albapepper/matchday/internal/storage"
	"github.com/albapepper/matchday/internal/storage/sqlite/migrations"
)

// insertChunk keeps multi-row inserts under SQLite's bound parameter limit.
const insertChunk = 500

// Store persists lifecycle state in SQLite.
type Store struct {
	*queries
	sqlDB *sql.DB
}

var _ storage.Store = (*Store)(nil)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

func nullMillis(value *time.Time) any {
	if value == nil {
		return nil
	}
	return toMillis(*value)
}

func timePtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMillis(v.Int64)
	return &t
}

// Open opens the database file and applies embedded migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) +
		"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{queries: &queries{db: sqlDB}, sqlDB: sqlDB}, nil
}

func (s *Store) InTx(ctx context.Context, fn func(q storage.Queries) error) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return classify("begin", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()
	if err := fn(&queries{db: tx}); err != nil {
		_ = tx.Rollback()
		return classify("transaction", err)
	}
	return classify("commit", tx.Commit())
}

func (s *Store) Ping(ctx context.Context) error {
	return classify("ping", s.sqlDB.PingContext(ctx))
}

func (s *Store) Close() { _ = s.sqlDB.Close() }

// classify keeps domain errors intact and marks driver failures transient.
// CHECK constraint violations are reported as invalid events.
func classify(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	case errors.Is(err, domain.ErrInvalidState),
		errors.Is(err, domain.ErrInvalidEvent),
		errors.Is(err, domain.ErrUnauthorized),
		errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrTransientStore):
		return err
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code() == sqlite3lib.SQLITE_CONSTRAINT_CHECK {
		return fmt.Errorf("%s: %w: %w", op, domain.ErrInvalidEvent, err)
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrTransientStore, op, err)
}

// --------------------------------------------------------------------------
// queries
// --------------------------------------------------------------------------

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type queries struct {
	db execer
}

type scanner interface {
	Scan(dest ...any) error
}

const matchSelect = `SELECT m.id, m.tournament_id, t.sport, m.home_team_id, m.away_team_id,
	m.referee_uid, m.state, m.score_home, m.score_away, m.scheduled_at, m.started_at,
	m.paused_at, m.finished_at, m.referee_notes, m.updated_at
	FROM matches m JOIN tournaments t ON t.id = m.tournament_id`

const tournamentCols = `id, name, sport, state, registration_close_at, starts_at, ends_at,
	max_teams, confirmed_team_count, created_at, updated_at`

const eventCols = `id, match_id, seq, event_type, team_id, player_id, minute, period,
	point_value, recorded_by, created_at`

const notificationCols = `id, event_id, kind, subject_id, recipient_uid, subject, body, type,
	origin, priority, action_url, status, scheduled_for, attempts, last_error, created_at, updated_at`

func scanMatch(row scanner) (domain.Match, error) {
	var (
		m                         domain.Match
		referee                   sql.NullString
		state                     string
		scheduled, updated        int64
		started, paused, finished sql.NullInt64
	)
	if err := row.Scan(&m.ID, &m.TournamentID, &m.Sport, &m.HomeTeamID, &m.AwayTeamID, &referee,
		&state, &m.ScoreHome, &m.ScoreAway, &scheduled, &started, &paused, &finished,
		&m.RefereeNotes, &updated); err != nil {
		return m, err
	}
	if referee.Valid {
		m.RefereeID = &referee.String
	}
	m.State = domain.MatchState(state)
	m.ScheduledAt = fromMillis(scheduled)
	m.StartedAt = timePtr(started)
	m.PausedAt = timePtr(paused)
	m.FinishedAt = timePtr(finished)
	m.UpdatedAt = fromMillis(updated)
	return m, nil
}

func scanTournament(row scanner) (domain.Tournament, error) {
	var (
		t                          domain.Tournament
		state                      string
		closeAt                    sql.NullInt64
		starts, ends, created, upd int64
	)
	if err := row.Scan(&t.ID, &t.Name, &t.Sport, &state, &closeAt, &starts, &ends,
		&t.MaxTeams, &t.ConfirmedTeamCount, &created, &upd); err != nil {
		return t, err
	}
	t.State = domain.TournamentState(state)
	t.RegistrationCloseAt = timePtr(closeAt)
	t.StartsAt = fromMillis(starts)
	t.EndsAt = fromMillis(ends)
	t.CreatedAt = fromMillis(created)
	t.UpdatedAt = fromMillis(upd)
	return t, nil
}

func scanEvent(row scanner) (domain.MatchEvent, error) {
	var (
		ev             domain.MatchEvent
		player         sql.NullInt64
		minute, period sql.NullInt32
		created        int64
	)
	if err := row.Scan(&ev.ID, &ev.MatchID, &ev.Seq, &ev.Type, &ev.TeamID, &player, &minute,
		&period, &ev.PointValue, &ev.RecordedBy, &created); err != nil {
		return ev, err
	}
	if player.Valid {
		ev.PlayerID = &player.Int64
	}
	if minute.Valid {
		v := int(minute.Int32)
		ev.Minute = &v
	}
	if period.Valid {
		v := int(period.Int32)
		ev.Period = &v
	}
	ev.CreatedAt = fromMillis(created)
	return ev, nil
}

func scanNotification(row scanner) (domain.Notification, error) {
	var (
		n                       domain.Notification
		eventID, kind, prio, st string
		due, created, updated   int64
	)
	if err := row.Scan(&n.ID, &eventID, &kind, &n.SubjectID, &n.RecipientUID, &n.Subject, &n.Body,
		&n.Type, &n.Origin, &prio, &n.ActionURL, &st, &due, &n.Attempts, &n.LastError,
		&created, &updated); err != nil {
		return n, err
	}
	id, err := uuid.Parse(eventID)
	if err != nil {
		return n, err
	}
	n.EventID = id
	n.Kind = domain.EventKind(kind)
	n.Priority = domain.Priority(prio)
	n.Status = domain.NotificationStatus(st)
	n.ScheduledFor = fromMillis(due)
	n.CreatedAt = fromMillis(created)
	n.UpdatedAt = fromMillis(updated)
	return n, nil
}

func collect[T any](rows *sql.Rows, scan func(scanner) (T, error)) ([]T, error) {
	defer rows.Close()
	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func query[T any](ctx context.Context, q *queries, op string, scan func(scanner) (T, error), stmt string, args ...any) ([]T, error) {
	rows, err := q.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, classify(op, err)
	}
	out, err := collect(rows, scan)
	return out, classify(op, err)
}

func scanString(row scanner) (string, error) {
	var s string
	err := row.Scan(&s)
	return s, err
}

// placeholders returns "?, ?, ?" for n values.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// ---- matches ----

func (q *queries) GetMatch(ctx context.Context, id int64) (domain.Match, error) {
	m, err := scanMatch(q.db.QueryRowContext(ctx, matchSelect+` WHERE m.id = ?`, id))
	return m, classify(fmt.Sprintf("match %d", id), err)
}

// LockMatch is a plain read: the IMMEDIATE transaction already holds the
// database write lock.
func (q *queries) LockMatch(ctx context.Context, id int64) (domain.Match, error) {
	return q.GetMatch(ctx, id)
}

func (q *queries) ListRefereeMatches(ctx context.Context, refereeID string, f domain.MatchFilter) ([]domain.Match, error) {
	return query(ctx, q, "list referee matches", scanMatch, matchSelect+`
		WHERE m.referee_uid = ?1
		  AND (?2 = '' OR m.state = ?2)
		  AND (?3 IS NULL OR m.scheduled_at >= ?3)
		  AND (?4 IS NULL OR m.scheduled_at <= ?4)
		ORDER BY m.scheduled_at, m.id`,
		refereeID, string(f.State), nullMillis(f.From), nullMillis(f.To))
}

func (q *queries) ListMatchesInState(ctx context.Context, states ...domain.MatchState) ([]domain.Match, error) {
	if len(states) == 0 {
		return nil, nil
	}
	args := make([]any, len(states))
	for i, s := range states {
		args[i] = string(s)
	}
	return query(ctx, q, "list matches by state", scanMatch,
		matchSelect+` WHERE m.state IN (`+placeholders(len(states))+`) ORDER BY m.id`, args...)
}

func (q *queries) UpdateMatch(ctx context.Context, m domain.Match) error {
	res, err := q.db.ExecContext(ctx, `UPDATE matches SET
			state = ?, score_home = ?, score_away = ?, started_at = ?, paused_at = ?,
			finished_at = ?, referee_notes = ?, updated_at = ?
		WHERE id = ?`,
		string(m.State), m.ScoreHome, m.ScoreAway, nullMillis(m.StartedAt), nullMillis(m.PausedAt),
		nullMillis(m.FinishedAt), m.RefereeNotes, toMillis(m.UpdatedAt), m.ID)
	if err != nil {
		return classify("update match", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("match %d: %w", m.ID, domain.ErrNotFound)
	}
	return nil
}

// ---- ledger ----

func (q *queries) InsertEvent(ctx context.Context, ev domain.MatchEvent) (domain.MatchEvent, error) {
	var player, minute, period any
	if ev.PlayerID != nil {
		player = *ev.PlayerID
	}
	if ev.Minute != nil {
		minute = *ev.Minute
	}
	if ev.Period != nil {
		period = *ev.Period
	}
	err := q.db.QueryRowContext(ctx, `INSERT INTO match_events (match_id, seq, event_type, team_id,
			player_id, minute, period, point_value, recorded_by, created_at)
		VALUES (?1, (SELECT COALESCE(MAX(seq), 0) + 1 FROM match_events WHERE match_id = ?1),
			?2, ?3, ?4, ?5, ?6, ?7, ?8, ?9)
		RETURNING id, seq`,
		ev.MatchID, ev.Type, ev.TeamID, player, minute, period, ev.PointValue, ev.RecordedBy,
		toMillis(ev.CreatedAt)).Scan(&ev.ID, &ev.Seq)
	return ev, classify("insert event", err)
}

func (q *queries) ListEvents(ctx context.Context, matchID int64) ([]domain.MatchEvent, error) {
	return query(ctx, q, "list events", scanEvent,
		`SELECT `+eventCols+` FROM match_events WHERE match_id = ? ORDER BY seq`, matchID)
}

// ---- tournaments ----

func (q *queries) GetTournament(ctx context.Context, id int64) (domain.Tournament, error) {
	t, err := scanTournament(q.db.QueryRowContext(ctx,
		`SELECT `+tournamentCols+` FROM tournaments WHERE id = ?`, id))
	return t, classify(fmt.Sprintf("tournament %d", id), err)
}

var phaseUpdates = map[storage.Phase]string{
	storage.PhaseCloseRegistration: `UPDATE tournaments SET state = 'closed', updated_at = ?1
		WHERE state = 'open'
		  AND registration_close_at IS NOT NULL
		  AND registration_close_at <= ?1
		  AND ?1 <= ends_at`,
	storage.PhaseStart: `UPDATE tournaments SET state = 'in_progress', updated_at = ?1
		WHERE state IN ('open', 'closed')
		  AND starts_at <= ?1
		  AND ?1 <= ends_at
		  AND EXISTS (SELECT 1 FROM matches m WHERE m.tournament_id = tournaments.id)`,
	storage.PhaseFinish: `UPDATE tournaments SET state = 'finished', updated_at = ?1
		WHERE state = 'in_progress' AND ends_at < ?1`,
}

func (q *queries) TransitionTournaments(ctx context.Context, phase storage.Phase, now time.Time) ([]domain.Tournament, error) {
	stmt, ok := phaseUpdates[phase]
	if !ok {
		return nil, fmt.Errorf("unknown phase %q", phase)
	}
	moved, err := query(ctx, q, "transition "+string(phase), scanTournament,
		stmt+` RETURNING `+tournamentCols, toMillis(now))
	if err != nil {
		return nil, err
	}
	sort.Slice(moved, func(i, j int) bool { return moved[i].ID < moved[j].ID })
	return moved, nil
}

func (q *queries) ListAwaitingFixtures(ctx context.Context, now time.Time) ([]domain.Tournament, error) {
	return query(ctx, q, "list awaiting fixtures", scanTournament, `SELECT `+tournamentCols+`
		FROM tournaments t
		WHERE t.state IN ('open', 'closed')
		  AND t.starts_at <= ?1
		  AND ?1 <= t.ends_at
		  AND NOT EXISTS (SELECT 1 FROM matches m WHERE m.tournament_id = t.id)
		ORDER BY t.id`, toMillis(now))
}

// ---- recipients ----

func (q *queries) AdminUIDs(ctx context.Context) ([]string, error) {
	return query(ctx, q, "admin uids", scanString,
		`SELECT uid FROM users WHERE role = 'admin' ORDER BY uid`)
}

func (q *queries) CaptainUIDs(ctx context.Context, tournamentID int64, f domain.CaptainFilter) ([]string, error) {
	return query(ctx, q, "captain uids", scanString, `SELECT DISTINCT tm.captain_uid
		FROM inscriptions i JOIN teams tm ON tm.id = i.team_id
		WHERE i.tournament_id = ?
		  AND i.approved = 1
		  AND (? = 0 OR i.state = 'registered')
		  AND tm.captain_uid IS NOT NULL
		ORDER BY 1`, tournamentID, f.RegisteredOnly)
}

func (q *queries) TeamCaptainUIDs(ctx context.Context, teamIDs ...int64) ([]string, error) {
	if len(teamIDs) == 0 {
		return nil, nil
	}
	args := make([]any, len(teamIDs))
	for i, id := range teamIDs {
		args[i] = id
	}
	return query(ctx, q, "team captain uids", scanString, `SELECT DISTINCT captain_uid FROM teams
		WHERE id IN (`+placeholders(len(teamIDs))+`) AND captain_uid IS NOT NULL
		ORDER BY 1`, args...)
}

// ---- notification outbox ----

func (q *queries) InsertNotifications(ctx context.Context, batch []domain.Notification) (int, error) {
	const cols = 14
	inserted := 0
	for start := 0; start < len(batch); start += insertChunk {
		chunk := batch[start:min(start+insertChunk, len(batch))]
		rows := make([]string, len(chunk))
		args := make([]any, 0, len(chunk)*cols)
		for i, n := range chunk {
			rows[i] = "(" + placeholders(cols) + ")"
			created := n.CreatedAt
			if created.IsZero() {
				created = time.Now()
			}
			args = append(args, n.EventID.String(), string(n.Kind), n.SubjectID, n.RecipientUID,
				n.Subject, n.Body, n.Type, n.Origin, string(n.Priority), n.ActionURL,
				string(domain.NotificationScheduled), toMillis(n.ScheduledFor),
				toMillis(created), toMillis(created))
		}
		res, err := q.db.ExecContext(ctx, `INSERT INTO notifications (event_id, kind, subject_id,
				recipient_uid, subject, body, type, origin, priority, action_url, status,
				scheduled_for, created_at, updated_at)
			VALUES `+strings.Join(rows, ", ")+`
			ON CONFLICT (event_id, recipient_uid) DO NOTHING`, args...)
		if err != nil {
			return inserted, classify("insert notifications", err)
		}
		n, _ := res.RowsAffected()
		inserted += int(n)
	}
	return inserted, nil
}

func (q *queries) ClaimDueNotifications(ctx context.Context, now time.Time, limit int) ([]domain.Notification, error) {
	out, err := query(ctx, q, "claim notifications", scanNotification, `UPDATE notifications
		SET status = 'sending', attempts = attempts + 1, updated_at = ?1
		WHERE id IN (
			SELECT id FROM notifications
			WHERE (status = 'scheduled' AND scheduled_for <= ?1)
			   OR (status = 'sending' AND updated_at <= ?3)
			ORDER BY scheduled_for, id
			LIMIT ?2)
		RETURNING `+notificationCols, toMillis(now), limit, toMillis(now.Add(-domain.ClaimLease)))
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ScheduledFor.Equal(out[j].ScheduledFor) {
			return out[i].ScheduledFor.Before(out[j].ScheduledFor)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (q *queries) setStatus(ctx context.Context, id int64, status domain.NotificationStatus, reason string, now time.Time) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE notifications SET status = ?, last_error = ?, updated_at = ? WHERE id = ?`,
		string(status), reason, toMillis(now), id)
	if err != nil {
		return classify("mark "+string(status), err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("notification %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (q *queries) MarkNotificationSent(ctx context.Context, id int64, now time.Time) error {
	return q.setStatus(ctx, id, domain.NotificationSent, "", now)
}

func (q *queries) MarkNotificationFailed(ctx context.Context, id int64, reason string, now time.Time) error {
	return q.setStatus(ctx, id, domain.NotificationFailed, reason, now)
}

func (q *queries) PurgeNotifications(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM notifications
		WHERE status IN ('sent', 'failed') AND updated_at < ?`, toMillis(olderThan))
	if err != nil {
		return 0, classify("purge notifications", err)
	}
	return res.RowsAffected()
}

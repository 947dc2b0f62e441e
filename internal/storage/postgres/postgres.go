// Package postgres is the production storage driver. Every statement is
// prepared on connection setup (see internal/db) and referenced by name.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/albapepper/matchday/internal/db"
	"github.com/albapepper/matchday/internal/domain"
	"github.com/albapepper/matchday/internal/storage"
)

// dbtx is satisfied by both *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is the pgx-backed storage.Store.
type Store struct {
	*queries
	pool *db.Pool
}

var _ storage.Store = (*Store)(nil)

// New wraps an open pool.
func New(pool *db.Pool) *Store {
	return &Store{queries: &queries{db: pool}, pool: pool}
}

// InTx runs fn in a transaction. pgx.BeginTxFunc rolls back on error or panic.
func (s *Store) InTx(ctx context.Context, fn func(q storage.Queries) error) error {
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return fn(&queries{db: tx})
	})
	return classify("transaction", err)
}

func (s *Store) Ping(ctx context.Context) error {
	return classify("ping", s.pool.HealthCheck(ctx))
}

func (s *Store) Close() { s.pool.Close() }

// classify keeps domain errors intact and marks everything else transient.
func classify(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	case errors.Is(err, domain.ErrInvalidState),
		errors.Is(err, domain.ErrInvalidEvent),
		errors.Is(err, domain.ErrUnauthorized),
		errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrTransientStore):
		return err
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrTransientStore, op, err)
}

// --------------------------------------------------------------------------
// queries
// --------------------------------------------------------------------------

type queries struct {
	db dbtx
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMatch(row scanner) (domain.Match, error) {
	var m domain.Match
	var state string
	err := row.Scan(&m.ID, &m.TournamentID, &m.Sport, &m.HomeTeamID, &m.AwayTeamID, &m.RefereeID,
		&state, &m.ScoreHome, &m.ScoreAway, &m.ScheduledAt, &m.StartedAt, &m.PausedAt,
		&m.FinishedAt, &m.RefereeNotes, &m.UpdatedAt)
	m.State = domain.MatchState(state)
	return m, err
}

func scanTournament(row scanner) (domain.Tournament, error) {
	var t domain.Tournament
	var state string
	err := row.Scan(&t.ID, &t.Name, &t.Sport, &state, &t.RegistrationCloseAt, &t.StartsAt, &t.EndsAt,
		&t.MaxTeams, &t.ConfirmedTeamCount, &t.CreatedAt, &t.UpdatedAt)
	t.State = domain.TournamentState(state)
	return t, err
}

func scanEvent(row scanner) (domain.MatchEvent, error) {
	var ev domain.MatchEvent
	err := row.Scan(&ev.ID, &ev.MatchID, &ev.Seq, &ev.Type, &ev.TeamID, &ev.PlayerID, &ev.Minute,
		&ev.Period, &ev.PointValue, &ev.RecordedBy, &ev.CreatedAt)
	return ev, err
}

func scanNotification(row scanner) (domain.Notification, error) {
	var n domain.Notification
	var eventID, kind, priority, status string
	err := row.Scan(&n.ID, &eventID, &kind, &n.SubjectID, &n.RecipientUID, &n.Subject, &n.Body,
		&n.Type, &n.Origin, &priority, &n.ActionURL, &status, &n.ScheduledFor, &n.Attempts,
		&n.LastError, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return n, err
	}
	n.Kind = domain.EventKind(kind)
	n.Priority = domain.Priority(priority)
	n.Status = domain.NotificationStatus(status)
	n.EventID, err = uuid.Parse(eventID)
	return n, err
}

// collect drains rows through scan.
func collect[T any](rows pgx.Rows, scan func(scanner) (T, error)) ([]T, error) {
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

func (q *queries) listMatches(ctx context.Context, op, stmt string, args ...any) ([]domain.Match, error) {
	rows, err := q.db.Query(ctx, stmt, args...)
	if err != nil {
		return nil, classify(op, err)
	}
	out, err := collect(rows, scanMatch)
	return out, classify(op, err)
}

func (q *queries) listTournaments(ctx context.Context, op, stmt string, args ...any) ([]domain.Tournament, error) {
	rows, err := q.db.Query(ctx, stmt, args...)
	if err != nil {
		return nil, classify(op, err)
	}
	out, err := collect(rows, scanTournament)
	return out, classify(op, err)
}

func (q *queries) listUIDs(ctx context.Context, op, stmt string, args ...any) ([]string, error) {
	rows, err := q.db.Query(ctx, stmt, args...)
	if err != nil {
		return nil, classify(op, err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowTo[string])
	return out, classify(op, err)
}

// ---- matches ----

func (q *queries) GetMatch(ctx context.Context, id int64) (domain.Match, error) {
	m, err := scanMatch(q.db.QueryRow(ctx, db.StmtGetMatch, id))
	return m, classify(fmt.Sprintf("match %d", id), err)
}

func (q *queries) LockMatch(ctx context.Context, id int64) (domain.Match, error) {
	m, err := scanMatch(q.db.QueryRow(ctx, db.StmtLockMatch, id))
	return m, classify(fmt.Sprintf("lock match %d", id), err)
}

func (q *queries) ListRefereeMatches(ctx context.Context, refereeID string, f domain.MatchFilter) ([]domain.Match, error) {
	return q.listMatches(ctx, "list referee matches", db.StmtListRefereeMatches,
		refereeID, string(f.State), f.From, f.To)
}

func (q *queries) ListMatchesInState(ctx context.Context, states ...domain.MatchState) ([]domain.Match, error) {
	names := make([]string, len(states))
	for i, s := range states {
		names[i] = string(s)
	}
	return q.listMatches(ctx, "list matches by state", db.StmtListMatchesByState, names)
}

func (q *queries) UpdateMatch(ctx context.Context, m domain.Match) error {
	tag, err := q.db.Exec(ctx, db.StmtUpdateMatch, m.ID, string(m.State), m.ScoreHome, m.ScoreAway,
		m.StartedAt, m.PausedAt, m.FinishedAt, m.RefereeNotes, m.UpdatedAt)
	if err != nil {
		return classify("update match", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("match %d: %w", m.ID, domain.ErrNotFound)
	}
	return nil
}

// ---- ledger ----

func (q *queries) InsertEvent(ctx context.Context, ev domain.MatchEvent) (domain.MatchEvent, error) {
	err := q.db.QueryRow(ctx, db.StmtInsertEvent, ev.MatchID, ev.Type, ev.TeamID, ev.PlayerID,
		ev.Minute, ev.Period, ev.PointValue, ev.RecordedBy, ev.CreatedAt).Scan(&ev.ID, &ev.Seq)
	return ev, classify("insert event", err)
}

func (q *queries) ListEvents(ctx context.Context, matchID int64) ([]domain.MatchEvent, error) {
	rows, err := q.db.Query(ctx, db.StmtListEvents, matchID)
	if err != nil {
		return nil, classify("list events", err)
	}
	out, err := collect(rows, scanEvent)
	return out, classify("list events", err)
}

// ---- tournaments ----

func (q *queries) GetTournament(ctx context.Context, id int64) (domain.Tournament, error) {
	t, err := scanTournament(q.db.QueryRow(ctx, db.StmtGetTournament, id))
	return t, classify(fmt.Sprintf("tournament %d", id), err)
}

var phaseStatements = map[storage.Phase]string{
	storage.PhaseCloseRegistration: db.StmtCloseRegistration,
	storage.PhaseStart:             db.StmtStartTournaments,
	storage.PhaseFinish:            db.StmtFinishTournaments,
}

func (q *queries) TransitionTournaments(ctx context.Context, phase storage.Phase, now time.Time) ([]domain.Tournament, error) {
	stmt, ok := phaseStatements[phase]
	if !ok {
		return nil, fmt.Errorf("unknown phase %q", phase)
	}
	moved, err := q.listTournaments(ctx, "transition "+string(phase), stmt, now)
	if err != nil {
		return nil, err
	}
	sort.Slice(moved, func(i, j int) bool { return moved[i].ID < moved[j].ID })
	return moved, nil
}

func (q *queries) ListAwaitingFixtures(ctx context.Context, now time.Time) ([]domain.Tournament, error) {
	return q.listTournaments(ctx, "list awaiting fixtures", db.StmtListAwaitingFixtures, now)
}

// ---- recipients ----

func (q *queries) AdminUIDs(ctx context.Context) ([]string, error) {
	return q.listUIDs(ctx, "admin uids", db.StmtAdminUIDs)
}

func (q *queries) CaptainUIDs(ctx context.Context, tournamentID int64, f domain.CaptainFilter) ([]string, error) {
	return q.listUIDs(ctx, "captain uids", db.StmtCaptainUIDs, tournamentID, f.RegisteredOnly)
}

func (q *queries) TeamCaptainUIDs(ctx context.Context, teamIDs ...int64) ([]string, error) {
	if len(teamIDs) == 0 {
		return nil, nil
	}
	return q.listUIDs(ctx, "team captain uids", db.StmtTeamCaptainUIDs, teamIDs)
}

// ---- notification outbox ----

func (q *queries) InsertNotifications(ctx context.Context, batch []domain.Notification) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}
	n := len(batch)
	var (
		eventIDs   = make([]string, n)
		kinds      = make([]string, n)
		subjects   = make([]int64, n)
		recipients = make([]string, n)
		titles     = make([]string, n)
		bodies     = make([]string, n)
		types      = make([]string, n)
		origins    = make([]string, n)
		priorities = make([]string, n)
		urls       = make([]string, n)
		due        = make([]time.Time, n)
	)
	for i, row := range batch {
		eventIDs[i] = row.EventID.String()
		kinds[i] = string(row.Kind)
		subjects[i] = row.SubjectID
		recipients[i] = row.RecipientUID
		titles[i] = row.Subject
		bodies[i] = row.Body
		types[i] = row.Type
		origins[i] = row.Origin
		priorities[i] = string(row.Priority)
		urls[i] = row.ActionURL
		due[i] = row.ScheduledFor
	}
	createdAt := batch[0].CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	tag, err := q.db.Exec(ctx, db.StmtInsertNotifications, eventIDs, kinds, subjects, recipients,
		titles, bodies, types, origins, priorities, urls, due, createdAt)
	if err != nil {
		return 0, classify("insert notifications", err)
	}
	return int(tag.RowsAffected()), nil
}

func (q *queries) ClaimDueNotifications(ctx context.Context, now time.Time, limit int) ([]domain.Notification, error) {
	rows, err := q.db.Query(ctx, db.StmtClaimNotifications, now, limit, now.Add(-domain.ClaimLease))
	if err != nil {
		return nil, classify("claim notifications", err)
	}
	out, err := collect(rows, scanNotification)
	if err != nil {
		return nil, classify("claim notifications", err)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ScheduledFor.Equal(out[j].ScheduledFor) {
			return out[i].ScheduledFor.Before(out[j].ScheduledFor)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (q *queries) exec1(ctx context.Context, op string, id int64, stmt string, args ...any) error {
	tag, err := q.db.Exec(ctx, stmt, args...)
	if err != nil {
		return classify(op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("notification %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (q *queries) MarkNotificationSent(ctx context.Context, id int64, now time.Time) error {
	return q.exec1(ctx, "mark sent", id, db.StmtMarkSent, id, now)
}

func (q *queries) MarkNotificationFailed(ctx context.Context, id int64, reason string, now time.Time) error {
	return q.exec1(ctx, "mark failed", id, db.StmtMarkFailed, id, reason, now)
}

func (q *queries) PurgeNotifications(ctx context.Context, olderThan time.Time) (int64, error) {
	tag, err := q.db.Exec(ctx, db.StmtPurgeNotifications, olderThan)
	if err != nil {
		return 0, classify("purge notifications", err)
	}
	return tag.RowsAffected(), nil
}

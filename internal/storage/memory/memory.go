// Package memory is an in-process storage driver. Transactions work on a
// copy of the data set and swap it in on commit, so a failed callback leaves
// nothing behind. Used by tests and by STORE_DRIVER=memory for local runs.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/albapepper/matchday/internal/domain"
	"github.com/albapepper/matchday/internal/storage"
)

type state struct {
	tournaments   map[int64]domain.Tournament
	matches       map[int64]domain.Match
	events        map[int64][]domain.MatchEvent
	inscriptions  []domain.Inscription
	captains      map[int64]string
	admins        map[string]bool
	notifications []domain.Notification
	nextEventID   int64
	nextNotifID   int64
}

func newState() *state {
	return &state{
		tournaments: make(map[int64]domain.Tournament),
		matches:     make(map[int64]domain.Match),
		events:      make(map[int64][]domain.MatchEvent),
		captains:    make(map[int64]string),
		admins:      make(map[string]bool),
	}
}

func (s *state) clone() *state {
	c := &state{
		tournaments:   maps.Clone(s.tournaments),
		matches:       maps.Clone(s.matches),
		events:        make(map[int64][]domain.MatchEvent, len(s.events)),
		inscriptions:  slices.Clone(s.inscriptions),
		captains:      maps.Clone(s.captains),
		admins:        maps.Clone(s.admins),
		notifications: slices.Clone(s.notifications),
		nextEventID:   s.nextEventID,
		nextNotifID:   s.nextNotifID,
	}
	for id, evs := range s.events {
		c.events[id] = slices.Clone(evs)
	}
	return c
}

// Store is the in-memory storage.Store.
type Store struct {
	mu     sync.Mutex
	st     *state
	faults map[string]error
}

var _ storage.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{st: newState(), faults: make(map[string]error)}
}

// Fail makes every later call of the named operation return err, wrapped as a
// transient store error. A nil err clears the fault.
func (s *Store) Fail(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.faults, op)
		return
	}
	s.faults[op] = err
}

// FailPhase is Fail for a single scheduler phase.
func (s *Store) FailPhase(p storage.Phase, err error) {
	s.Fail("TransitionTournaments:"+string(p), err)
}

// InTx runs fn against a private copy of the data and publishes the copy only
// when fn returns nil.
func (s *Store) InTx(ctx context.Context, fn func(q storage.Queries) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(&view{st: work, faults: s.faults}); err != nil {
		return err
	}
	s.st = work
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

func (s *Store) Close() {}

// run executes a single statement outside an explicit transaction.
func (s *Store) run(fn func(v *view) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	work := s.st.clone()
	if err := fn(&view{st: work, faults: s.faults}); err != nil {
		return err
	}
	s.st = work
	return nil
}

// --------------------------------------------------------------------------
// Seeding
// --------------------------------------------------------------------------

// PutTournament inserts or replaces a tournament.
func (s *Store) PutTournament(t domain.Tournament) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.tournaments[t.ID] = t
}

// PutMatch inserts or replaces a match.
func (s *Store) PutMatch(m domain.Match) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.matches[m.ID] = m
}

// AddInscription registers a team in a tournament.
func (s *Store) AddInscription(in domain.Inscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.inscriptions = append(s.st.inscriptions, in)
}

// SetCaptain sets the captain of a team.
func (s *Store) SetCaptain(teamID int64, uid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.captains[teamID] = uid
}

// AddAdmin grants the admin role.
func (s *Store) AddAdmin(uid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.admins[uid] = true
}

// Notifications returns a snapshot of the outbox in insertion order.
func (s *Store) Notifications() []domain.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.st.notifications)
}

// --------------------------------------------------------------------------
// Queries on the committed data set
// --------------------------------------------------------------------------

func (s *Store) GetMatch(ctx context.Context, id int64) (m domain.Match, err error) {
	err = s.run(func(v *view) error { m, err = v.GetMatch(ctx, id); return err })
	return m, err
}

func (s *Store) LockMatch(ctx context.Context, id int64) (m domain.Match, err error) {
	return s.GetMatch(ctx, id)
}

func (s *Store) ListRefereeMatches(ctx context.Context, refereeID string, f domain.MatchFilter) (out []domain.Match, err error) {
	err = s.run(func(v *view) error { out, err = v.ListRefereeMatches(ctx, refereeID, f); return err })
	return out, err
}

func (s *Store) ListMatchesInState(ctx context.Context, states ...domain.MatchState) (out []domain.Match, err error) {
	err = s.run(func(v *view) error { out, err = v.ListMatchesInState(ctx, states...); return err })
	return out, err
}

func (s *Store) UpdateMatch(ctx context.Context, m domain.Match) error {
	return s.run(func(v *view) error { return v.UpdateMatch(ctx, m) })
}

func (s *Store) InsertEvent(ctx context.Context, ev domain.MatchEvent) (out domain.MatchEvent, err error) {
	err = s.run(func(v *view) error { out, err = v.InsertEvent(ctx, ev); return err })
	return out, err
}

func (s *Store) ListEvents(ctx context.Context, matchID int64) (out []domain.MatchEvent, err error) {
	err = s.run(func(v *view) error { out, err = v.ListEvents(ctx, matchID); return err })
	return out, err
}

func (s *Store) GetTournament(ctx context.Context, id int64) (t domain.Tournament, err error) {
	err = s.run(func(v *view) error { t, err = v.GetTournament(ctx, id); return err })
	return t, err
}

func (s *Store) TransitionTournaments(ctx context.Context, phase storage.Phase, now time.Time) (out []domain.Tournament, err error) {
	err = s.run(func(v *view) error { out, err = v.TransitionTournaments(ctx, phase, now); return err })
	return out, err
}

func (s *Store) ListAwaitingFixtures(ctx context.Context, now time.Time) (out []domain.Tournament, err error) {
	err = s.run(func(v *view) error { out, err = v.ListAwaitingFixtures(ctx, now); return err })
	return out, err
}

func (s *Store) AdminUIDs(ctx context.Context) (out []string, err error) {
	err = s.run(func(v *view) error { out, err = v.AdminUIDs(ctx); return err })
	return out, err
}

func (s *Store) CaptainUIDs(ctx context.Context, tournamentID int64, f domain.CaptainFilter) (out []string, err error) {
	err = s.run(func(v *view) error { out, err = v.CaptainUIDs(ctx, tournamentID, f); return err })
	return out, err
}

func (s *Store) TeamCaptainUIDs(ctx context.Context, teamIDs ...int64) (out []string, err error) {
	err = s.run(func(v *view) error { out, err = v.TeamCaptainUIDs(ctx, teamIDs...); return err })
	return out, err
}

func (s *Store) InsertNotifications(ctx context.Context, batch []domain.Notification) (n int, err error) {
	err = s.run(func(v *view) error { n, err = v.InsertNotifications(ctx, batch); return err })
	return n, err
}

func (s *Store) ClaimDueNotifications(ctx context.Context, now time.Time, limit int) (out []domain.Notification, err error) {
	err = s.run(func(v *view) error { out, err = v.ClaimDueNotifications(ctx, now, limit); return err })
	return out, err
}

func (s *Store) MarkNotificationSent(ctx context.Context, id int64, now time.Time) error {
	return s.run(func(v *view) error { return v.MarkNotificationSent(ctx, id, now) })
}

func (s *Store) MarkNotificationFailed(ctx context.Context, id int64, reason string, now time.Time) error {
	return s.run(func(v *view) error { return v.MarkNotificationFailed(ctx, id, reason, now) })
}

func (s *Store) PurgeNotifications(ctx context.Context, olderThan time.Time) (n int64, err error) {
	err = s.run(func(v *view) error { n, err = v.PurgeNotifications(ctx, olderThan); return err })
	return n, err
}

// --------------------------------------------------------------------------
// view: the statements, applied to one working copy
// --------------------------------------------------------------------------

type view struct {
	st     *state
	faults map[string]error
}

func (v *view) fault(op string) error {
	if err, ok := v.faults[op]; ok {
		return fmt.Errorf("%w: %s: %w", domain.ErrTransientStore, op, err)
	}
	return nil
}

func (v *view) GetMatch(_ context.Context, id int64) (domain.Match, error) {
	if err := v.fault("GetMatch"); err != nil {
		return domain.Match{}, err
	}
	m, ok := v.st.matches[id]
	if !ok {
		return domain.Match{}, fmt.Errorf("match %d: %w", id, domain.ErrNotFound)
	}
	return m, nil
}

func (v *view) LockMatch(ctx context.Context, id int64) (domain.Match, error) {
	if err := v.fault("LockMatch"); err != nil {
		return domain.Match{}, err
	}
	return v.GetMatch(ctx, id)
}

func (v *view) ListRefereeMatches(_ context.Context, refereeID string, f domain.MatchFilter) ([]domain.Match, error) {
	if err := v.fault("ListRefereeMatches"); err != nil {
		return nil, err
	}
	var out []domain.Match
	for _, m := range v.st.matches {
		if m.AssignedTo(refereeID) && f.Match(m) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ScheduledAt.Equal(out[j].ScheduledAt) {
			return out[i].ScheduledAt.Before(out[j].ScheduledAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (v *view) ListMatchesInState(_ context.Context, states ...domain.MatchState) ([]domain.Match, error) {
	if err := v.fault("ListMatchesInState"); err != nil {
		return nil, err
	}
	var out []domain.Match
	for _, m := range v.st.matches {
		if slices.Contains(states, m.State) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (v *view) UpdateMatch(_ context.Context, m domain.Match) error {
	if err := v.fault("UpdateMatch"); err != nil {
		return err
	}
	if _, ok := v.st.matches[m.ID]; !ok {
		return fmt.Errorf("match %d: %w", m.ID, domain.ErrNotFound)
	}
	v.st.matches[m.ID] = m
	return nil
}

func (v *view) InsertEvent(_ context.Context, ev domain.MatchEvent) (domain.MatchEvent, error) {
	if err := v.fault("InsertEvent"); err != nil {
		return domain.MatchEvent{}, err
	}
	v.st.nextEventID++
	ev.ID = v.st.nextEventID
	ev.Seq = len(v.st.events[ev.MatchID]) + 1
	v.st.events[ev.MatchID] = append(v.st.events[ev.MatchID], ev)
	return ev, nil
}

func (v *view) ListEvents(_ context.Context, matchID int64) ([]domain.MatchEvent, error) {
	if err := v.fault("ListEvents"); err != nil {
		return nil, err
	}
	return slices.Clone(v.st.events[matchID]), nil
}

func (v *view) GetTournament(_ context.Context, id int64) (domain.Tournament, error) {
	if err := v.fault("GetTournament"); err != nil {
		return domain.Tournament{}, err
	}
	t, ok := v.st.tournaments[id]
	if !ok {
		return domain.Tournament{}, fmt.Errorf("tournament %d: %w", id, domain.ErrNotFound)
	}
	return t, nil
}

func (v *view) hasFixtures(tournamentID int64) bool {
	for _, m := range v.st.matches {
		if m.TournamentID == tournamentID {
			return true
		}
	}
	return false
}

func (v *view) TransitionTournaments(_ context.Context, phase storage.Phase, now time.Time) ([]domain.Tournament, error) {
	if err := v.fault("TransitionTournaments:" + string(phase)); err != nil {
		return nil, err
	}
	var moved []domain.Tournament
	for id, t := range v.st.tournaments {
		var ok bool
		switch phase {
		case storage.PhaseCloseRegistration:
			ok = t.CanCloseRegistration(now)
		case storage.PhaseStart:
			ok = t.CanStart(now, v.hasFixtures(id))
		case storage.PhaseFinish:
			ok = t.CanFinish(now)
		default:
			return nil, fmt.Errorf("unknown phase %q", phase)
		}
		if !ok {
			continue
		}
		t.State = phase.Target()
		t.UpdatedAt = now
		v.st.tournaments[id] = t
		moved = append(moved, t)
	}
	sort.Slice(moved, func(i, j int) bool { return moved[i].ID < moved[j].ID })
	return moved, nil
}

func (v *view) ListAwaitingFixtures(_ context.Context, now time.Time) ([]domain.Tournament, error) {
	if err := v.fault("ListAwaitingFixtures"); err != nil {
		return nil, err
	}
	var out []domain.Tournament
	for id, t := range v.st.tournaments {
		if t.AwaitingFixtures(now, v.hasFixtures(id)) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (v *view) AdminUIDs(_ context.Context) ([]string, error) {
	if err := v.fault("AdminUIDs"); err != nil {
		return nil, err
	}
	out := slices.Collect(maps.Keys(v.st.admins))
	sort.Strings(out)
	return out, nil
}

func (v *view) CaptainUIDs(_ context.Context, tournamentID int64, f domain.CaptainFilter) ([]string, error) {
	if err := v.fault("CaptainUIDs"); err != nil {
		return nil, err
	}
	set := make(map[string]bool)
	for _, in := range v.st.inscriptions {
		if in.TournamentID != tournamentID || !in.Approved {
			continue
		}
		if f.RegisteredOnly && in.State != domain.InscriptionRegistered {
			continue
		}
		if uid, ok := v.st.captains[in.TeamID]; ok && uid != "" {
			set[uid] = true
		}
	}
	out := slices.Collect(maps.Keys(set))
	sort.Strings(out)
	return out, nil
}

func (v *view) TeamCaptainUIDs(_ context.Context, teamIDs ...int64) ([]string, error) {
	if err := v.fault("TeamCaptainUIDs"); err != nil {
		return nil, err
	}
	set := make(map[string]bool)
	for _, id := range teamIDs {
		if uid, ok := v.st.captains[id]; ok && uid != "" {
			set[uid] = true
		}
	}
	out := slices.Collect(maps.Keys(set))
	sort.Strings(out)
	return out, nil
}

func (v *view) InsertNotifications(_ context.Context, batch []domain.Notification) (int, error) {
	if err := v.fault("InsertNotifications"); err != nil {
		return 0, err
	}
	type key struct {
		event string
		uid   string
	}
	seen := make(map[key]bool, len(v.st.notifications))
	for _, n := range v.st.notifications {
		seen[key{n.EventID.String(), n.RecipientUID}] = true
	}
	inserted := 0
	for _, n := range batch {
		k := key{n.EventID.String(), n.RecipientUID}
		if seen[k] {
			continue
		}
		seen[k] = true
		v.st.nextNotifID++
		n.ID = v.st.nextNotifID
		if n.Status == "" {
			n.Status = domain.NotificationScheduled
		}
		v.st.notifications = append(v.st.notifications, n)
		inserted++
	}
	return inserted, nil
}

func (v *view) ClaimDueNotifications(_ context.Context, now time.Time, limit int) ([]domain.Notification, error) {
	if err := v.fault("ClaimDueNotifications"); err != nil {
		return nil, err
	}
	var claimed []domain.Notification
	for i, n := range v.st.notifications {
		if len(claimed) >= limit {
			break
		}
		if !n.Claimable(now) {
			continue
		}
		n.Status = domain.NotificationSending
		n.Attempts++
		n.UpdatedAt = now
		v.st.notifications[i] = n
		claimed = append(claimed, n)
	}
	return claimed, nil
}

func (v *view) setStatus(id int64, status domain.NotificationStatus, reason string, now time.Time) error {
	for i, n := range v.st.notifications {
		if n.ID == id {
			n.Status = status
			n.LastError = reason
			n.UpdatedAt = now
			v.st.notifications[i] = n
			return nil
		}
	}
	return fmt.Errorf("notification %d: %w", id, domain.ErrNotFound)
}

func (v *view) MarkNotificationSent(_ context.Context, id int64, now time.Time) error {
	if err := v.fault("MarkNotificationSent"); err != nil {
		return err
	}
	return v.setStatus(id, domain.NotificationSent, "", now)
}

func (v *view) MarkNotificationFailed(_ context.Context, id int64, reason string, now time.Time) error {
	if err := v.fault("MarkNotificationFailed"); err != nil {
		return err
	}
	return v.setStatus(id, domain.NotificationFailed, reason, now)
}

func (v *view) PurgeNotifications(_ context.Context, olderThan time.Time) (int64, error) {
	if err := v.fault("PurgeNotifications"); err != nil {
		return 0, err
	}
	kept := v.st.notifications[:0:0]
	var purged int64
	for _, n := range v.st.notifications {
		done := n.Status == domain.NotificationSent || n.Status == domain.NotificationFailed
		if done && n.UpdatedAt.Before(olderThan) {
			purged++
			continue
		}
		kept = append(kept, n)
	}
	v.st.notifications = kept
	return purged, nil
}

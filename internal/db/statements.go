package db

// Prepared statement names. Pass them as the SQL argument to Query/Exec; pgx
// resolves a name registered on the connection to the prepared statement.
const (
	StmtHealthCheck = "health_check"

	StmtGetMatch           = "match_get"
	StmtLockMatch          = "match_lock"
	StmtListRefereeMatches = "match_list_referee"
	StmtListMatchesByState = "match_list_state"
	StmtUpdateMatch        = "match_update"

	StmtInsertEvent = "event_insert"
	StmtListEvents  = "event_list"

	StmtGetTournament        = "tournament_get"
	StmtCloseRegistration    = "tournament_close_registration"
	StmtStartTournaments     = "tournament_start"
	StmtFinishTournaments    = "tournament_finish"
	StmtListAwaitingFixtures = "tournament_awaiting_fixtures"

	StmtAdminUIDs       = "recipients_admins"
	StmtCaptainUIDs     = "recipients_captains"
	StmtTeamCaptainUIDs = "recipients_team_captains"

	StmtInsertNotifications = "notification_insert_batch"
	StmtClaimNotifications  = "notification_claim"
	StmtMarkSent            = "notification_mark_sent"
	StmtMarkFailed          = "notification_mark_failed"
	StmtPurgeNotifications  = "notification_purge"
)

const matchColumns = `
	m.id, m.tournament_id, t.sport, m.home_team_id, m.away_team_id, m.referee_uid,
	m.state, m.score_home, m.score_away, m.scheduled_at, m.started_at, m.paused_at,
	m.finished_at, m.referee_notes, m.updated_at
	FROM matches m JOIN tournaments t ON t.id = m.tournament_id`

const tournamentColumns = `
	id, name, sport, state, registration_close_at, starts_at, ends_at,
	max_teams, confirmed_team_count, created_at, updated_at`

const eventColumns = `
	id, match_id, seq, event_type, team_id, player_id, minute, period,
	point_value, recorded_by, created_at`

const notificationColumns = `
	id, event_id::text, kind, subject_id, recipient_uid, subject, body, type,
	origin, priority, action_url, status, scheduled_for, attempts, last_error,
	created_at, updated_at`

// statements is registered on every pooled connection in AfterConnect.
var statements = map[string]string{
	StmtHealthCheck: "SELECT 1",

	// ---- matches ----

	StmtGetMatch:  "SELECT" + matchColumns + " WHERE m.id = $1",
	StmtLockMatch: "SELECT" + matchColumns + " WHERE m.id = $1 FOR UPDATE OF m",
	StmtListRefereeMatches: "SELECT" + matchColumns + `
		WHERE m.referee_uid = $1
		  AND ($2::text = '' OR m.state = $2)
		  AND ($3::timestamptz IS NULL OR m.scheduled_at >= $3)
		  AND ($4::timestamptz IS NULL OR m.scheduled_at <= $4)
		ORDER BY m.scheduled_at, m.id`,
	StmtListMatchesByState: "SELECT" + matchColumns + `
		WHERE m.state = ANY($1::text[])
		ORDER BY m.id`,
	StmtUpdateMatch: `
		UPDATE matches SET
			state = $2, score_home = $3, score_away = $4,
			started_at = $5, paused_at = $6, finished_at = $7,
			referee_notes = $8, updated_at = $9
		WHERE id = $1`,

	// ---- ledger ----

	// The caller holds the match row lock, so MAX(seq)+1 cannot race.
	StmtInsertEvent: `
		INSERT INTO match_events (match_id, seq, event_type, team_id, player_id,
			minute, period, point_value, recorded_by, created_at)
		VALUES ($1, (SELECT COALESCE(MAX(seq), 0) + 1 FROM match_events WHERE match_id = $1),
			$2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, seq`,
	StmtListEvents: "SELECT" + eventColumns + " FROM match_events WHERE match_id = $1 ORDER BY seq",

	// ---- tournaments ----

	StmtGetTournament: "SELECT" + tournamentColumns + " FROM tournaments WHERE id = $1",
	StmtCloseRegistration: `
		UPDATE tournaments SET state = 'closed', updated_at = $1
		WHERE state = 'open'
		  AND registration_close_at IS NOT NULL
		  AND registration_close_at <= $1
		  AND $1 <= ends_at
		RETURNING` + tournamentColumns,
	StmtStartTournaments: `
		UPDATE tournaments t SET state = 'in_progress', updated_at = $1
		WHERE t.state IN ('open', 'closed')
		  AND t.starts_at <= $1
		  AND $1 <= t.ends_at
		  AND EXISTS (SELECT 1 FROM matches m WHERE m.tournament_id = t.id)
		RETURNING` + tournamentColumns,
	StmtFinishTournaments: `
		UPDATE tournaments SET state = 'finished', updated_at = $1
		WHERE state = 'in_progress' AND ends_at < $1
		RETURNING` + tournamentColumns,
	StmtListAwaitingFixtures: "SELECT" + tournamentColumns + ` FROM tournaments t
		WHERE t.state IN ('open', 'closed')
		  AND t.starts_at <= $1
		  AND $1 <= t.ends_at
		  AND NOT EXISTS (SELECT 1 FROM matches m WHERE m.tournament_id = t.id)
		ORDER BY t.id`,

	// ---- recipients ----

	StmtAdminUIDs: "SELECT uid FROM users WHERE role = 'admin' ORDER BY uid",
	StmtCaptainUIDs: `
		SELECT DISTINCT tm.captain_uid
		FROM inscriptions i JOIN teams tm ON tm.id = i.team_id
		WHERE i.tournament_id = $1
		  AND i.approved
		  AND (NOT $2::bool OR i.state = 'registered')
		  AND tm.captain_uid IS NOT NULL
		ORDER BY 1`,
	StmtTeamCaptainUIDs: `
		SELECT DISTINCT captain_uid FROM teams
		WHERE id = ANY($1::bigint[]) AND captain_uid IS NOT NULL
		ORDER BY 1`,

	// ---- notification outbox ----

	// One round trip per batch: parallel arrays unnested into rows.
	StmtInsertNotifications: `
		INSERT INTO notifications (event_id, kind, subject_id, recipient_uid, subject,
			body, type, origin, priority, action_url, status, scheduled_for,
			created_at, updated_at)
		SELECT e::uuid, k, s, r, subj, b, ty, o, p, u, 'scheduled', sf, $12, $12
		FROM unnest($1::text[], $2::text[], $3::bigint[], $4::text[], $5::text[],
			$6::text[], $7::text[], $8::text[], $9::text[], $10::text[], $11::timestamptz[])
			AS x(e, k, s, r, subj, b, ty, o, p, u, sf)
		ON CONFLICT (event_id, recipient_uid) DO NOTHING`,
	StmtClaimNotifications: `
		UPDATE notifications SET status = 'sending', attempts = attempts + 1, updated_at = $1
		WHERE id IN (
			SELECT id FROM notifications
			WHERE (status = 'scheduled' AND scheduled_for <= $1)
			   OR (status = 'sending' AND updated_at <= $3)
			ORDER BY scheduled_for, id
			LIMIT $2
			FOR UPDATE SKIP LOCKED)
		RETURNING` + notificationColumns,
	StmtMarkSent: `
		UPDATE notifications SET status = 'sent', sent_at = $2, updated_at = $2, last_error = ''
		WHERE id = $1`,
	StmtMarkFailed: `
		UPDATE notifications SET status = 'failed', last_error = $2, updated_at = $3
		WHERE id = $1`,
	StmtPurgeNotifications: `
		DELETE FROM notifications
		WHERE status IN ('sent', 'failed') AND updated_at < $1`,
}

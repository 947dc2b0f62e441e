package notifications

import (
	"context"
	"fmt"
	"sort"

	"github.com/albapepper/matchday/internal/domain"
	"github.com/albapepper/matchday/internal/storage"
)

// Recipients resolves the distinct users to notify for evt:
//
//	registration_closed  → platform admins
//	tournament_started   → captains of approved, registered inscriptions
//	tournament_finished  → captains of approved inscriptions, eliminated included
//	match finished       → captains of both teams and admins
//
// Any other event has no recipients.
func Recipients(ctx context.Context, q storage.Queries, evt domain.Event) ([]string, error) {
	switch evt.Kind {
	case domain.KindRegistrationClosed:
		uids, err := q.AdminUIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolve admins: %w", err)
		}
		return dedupe(uids), nil

	case domain.KindTournamentStarted, domain.KindTournamentFinished:
		if evt.Tournament == nil {
			return nil, fmt.Errorf("%s event without tournament", evt.Kind)
		}
		filter := domain.CaptainFilter{RegisteredOnly: evt.Kind == domain.KindTournamentStarted}
		uids, err := q.CaptainUIDs(ctx, evt.Tournament.ID, filter)
		if err != nil {
			return nil, fmt.Errorf("resolve captains of tournament %d: %w", evt.Tournament.ID, err)
		}
		return dedupe(uids), nil

	case domain.KindMatchTransitioned:
		if evt.To != domain.MatchFinished || evt.Match == nil {
			return nil, nil
		}
		captains, err := q.TeamCaptainUIDs(ctx, evt.Match.HomeTeamID, evt.Match.AwayTeamID)
		if err != nil {
			return nil, fmt.Errorf("resolve captains of match %d: %w", evt.Match.ID, err)
		}
		admins, err := q.AdminUIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolve admins: %w", err)
		}
		return dedupe(captains, admins), nil
	}
	return nil, nil
}

// dedupe merges uid lists into a sorted set, dropping blanks.
func dedupe(lists ...[]string) []string {
	set := make(map[string]struct{})
	for _, l := range lists {
		for _, uid := range l {
			if uid != "" {
				set[uid] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(set))
	for uid := range set {
		out = append(out, uid)
	}
	sort.Strings(out)
	return out
}

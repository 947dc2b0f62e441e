package notifications

import (
	"fmt"
	"strings"

	"github.com/gosimple/slug"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/albapepper/matchday/internal/domain"
)

const dateLayout = "02/01/2006 15:04"

func init() {
	es := language.Spanish
	message.SetString(es, "registration_closed.subject", "Inscripciones cerradas: %s")
	message.SetString(es, "registration_closed.body", "Se cerraron las inscripciones de %s. El torneo comienza el %s.")
	message.SetString(es, "tournament_started.subject", "¡Comienza %s!")
	message.SetString(es, "tournament_started.body", "El torneo %s ya está en curso. Revisa el fixture de tu equipo.")
	message.SetString(es, "tournament_finished.subject", "Finalizó %s")
	message.SetString(es, "tournament_finished.body", "El torneo %s terminó. Gracias por participar.")
	message.SetString(es, "match_finished.subject", "Partido #%d finalizado")
	message.SetString(es, "match_finished.body", "Resultado final: %d - %d.")

	en := language.English
	message.SetString(en, "registration_closed.subject", "Registration closed: %s")
	message.SetString(en, "registration_closed.body", "Registration for %s is closed. The tournament starts on %s.")
	message.SetString(en, "tournament_started.subject", "%s has started!")
	message.SetString(en, "tournament_started.body", "%s is now in progress. Check your team's fixtures.")
	message.SetString(en, "tournament_finished.subject", "%s is over")
	message.SetString(en, "tournament_finished.body", "%s has finished. Thanks for taking part.")
	message.SetString(en, "match_finished.subject", "Match #%d finished")
	message.SetString(en, "match_finished.body", "Final score: %d - %d.")
}

// Renderer builds subject, body and action URL for an event.
type Renderer struct {
	printer *message.Printer
	baseURL string
}

// NewRenderer returns a renderer for locale (Spanish when unknown) linking
// to baseURL.
func NewRenderer(locale, baseURL string) *Renderer {
	supported := []language.Tag{language.Spanish, language.English}
	tag := language.Spanish
	if parsed, err := language.Parse(locale); err == nil {
		_, idx, _ := language.NewMatcher(supported).Match(parsed)
		tag = supported[idx]
	}
	return &Renderer{
		printer: message.NewPrinter(tag),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Render returns the localized subject and body for evt.
func (r *Renderer) Render(evt domain.Event) (subject, body string) {
	p := r.printer
	switch evt.Kind {
	case domain.KindRegistrationClosed:
		t := evt.Tournament
		return p.Sprintf("registration_closed.subject", t.Name),
			p.Sprintf("registration_closed.body", t.Name, t.StartsAt.Format(dateLayout))
	case domain.KindTournamentStarted:
		t := evt.Tournament
		return p.Sprintf("tournament_started.subject", t.Name), p.Sprintf("tournament_started.body", t.Name)
	case domain.KindTournamentFinished:
		t := evt.Tournament
		return p.Sprintf("tournament_finished.subject", t.Name), p.Sprintf("tournament_finished.body", t.Name)
	case domain.KindMatchTransitioned:
		m := evt.Match
		return p.Sprintf("match_finished.subject", m.ID), p.Sprintf("match_finished.body", m.ScoreHome, m.ScoreAway)
	}
	return string(evt.Kind), ""
}

// ActionURL links a notification to the page of its subject.
func (r *Renderer) ActionURL(evt domain.Event) string {
	switch {
	case evt.Match != nil:
		return fmt.Sprintf("%s/partidos/%d", r.baseURL, evt.Match.ID)
	case evt.Tournament != nil:
		return fmt.Sprintf("%s/torneos/%d-%s", r.baseURL, evt.Tournament.ID, slug.Make(evt.Tournament.Name))
	}
	return r.baseURL
}

// origin and priority of each notifiable event kind.
func classify(evt domain.Event) (origin string, priority domain.Priority) {
	switch evt.Kind {
	case domain.KindTournamentStarted:
		return OriginTournaments, domain.PriorityHigh
	case domain.KindRegistrationClosed, domain.KindTournamentFinished:
		return OriginTournaments, domain.PriorityNormal
	}
	return OriginMatches, domain.PriorityNormal
}

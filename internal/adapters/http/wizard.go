package http

import (
	"context"
	"net/http"

	"github.com/NicklasHM/P3-sleep-diary/pkg/domain"
	"github.com/NicklasHM/P3-sleep-diary/pkg/wizard"
	"github.com/go-chi/chi/v5"
)

// wizardView is the state of a wizard session as sent to clients.
type wizardView struct {
	SessionID  string            `json:"sessionId"`
	Locale     domain.Locale     `json:"locale"`
	Step       wizard.Step       `json:"step"`
	Rail       []wizard.RailItem `json:"rail"`
	Answered   int               `json:"answered"`
	Total      int               `json:"total"`
	Answers    domain.Answers    `json:"answers"`
	ResponseID string            `json:"responseId,omitempty"`
	Feedback   *wizard.Feedback  `json:"feedback,omitempty"`
}

func view(nav *wizard.Navigator) wizardView {
	snap := nav.Snapshot()
	answered, total := nav.Progress()
	answers := snap.Answers
	if answers == nil {
		answers = domain.Answers{}
	}
	return wizardView{
		SessionID:  snap.SessionID,
		Locale:     snap.Locale,
		Step:       nav.Current(),
		Rail:       nav.Rail(),
		Answered:   answered,
		Total:      total,
		Answers:    answers,
		ResponseID: snap.ResponseID,
	}
}

// withNavigator restores the session, applies fn and saves the resulting
// snapshot, all under the session lock. Nothing is saved when fn fails.
func (s *Server) withNavigator(ctx context.Context, sessionID string, fn func(*wizard.Navigator) error) (*wizard.Navigator, error) {
	var nav *wizard.Navigator
	_, err := s.app.Sessions.Update(ctx, sessionID, func(snap *domain.WizardSnapshot) error {
		n, err := s.app.RestoreNavigator(ctx, snap)
		if err != nil {
			return err
		}
		if err := fn(n); err != nil {
			return err
		}
		updated := n.Snapshot()
		updated.UpdatedAt = snap.UpdatedAt
		*snap = *updated
		nav = n
		return nil
	})
	return nav, err
}

type startWizardRequest struct {
	Type         domain.QuestionnaireType `json:"type"`
	RespondentID string                   `json:"respondentId"`
	Language     string                   `json:"language"`
}

func (s *Server) startWizard(w http.ResponseWriter, r *http.Request) {
	var body startWizardRequest
	if err := decode(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	if body.Type == "" {
		s.fail(w, r, badRequest("type is required"))
		return
	}
	nav, _, err := s.app.NewNavigator(r.Context(), domain.NewID(), body.Type, body.RespondentID, domain.ParseLocale(body.Language))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	snap := nav.Snapshot()
	if err := s.app.Sessions.Save(r.Context(), snap.SessionID, snap); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, view(nav))
}

func (s *Server) getWizard(w http.ResponseWriter, r *http.Request) {
	snap, err := s.app.Sessions.Load(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	nav, err := s.app.RestoreNavigator(r.Context(), snap)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view(nav))
}

type answerRequest struct {
	Value any `json:"value"`
}

func (s *Server) setAnswer(w http.ResponseWriter, r *http.Request) {
	var body answerRequest
	if err := decode(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	var fb wizard.Feedback
	nav, err := s.withNavigator(r.Context(), chi.URLParam(r, "id"), func(nav *wizard.Navigator) error {
		var err error
		fb, err = nav.SetAnswer(chi.URLParam(r, "questionId"), body.Value)
		return err
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	v := view(nav)
	v.Feedback = &fb
	writeJSON(w, http.StatusOK, v)
}

// step runs one navigation action. A rejected step leaves the stored
// session untouched.
func (s *Server) step(w http.ResponseWriter, r *http.Request, action func(context.Context, *wizard.Navigator) error) {
	nav, err := s.withNavigator(r.Context(), chi.URLParam(r, "id"), func(nav *wizard.Navigator) error {
		return action(r.Context(), nav)
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view(nav))
}

func (s *Server) wizardNext(w http.ResponseWriter, r *http.Request) {
	s.step(w, r, func(ctx context.Context, nav *wizard.Navigator) error {
		_, err := nav.Next(ctx)
		return err
	})
}

func (s *Server) wizardPrevious(w http.ResponseWriter, r *http.Request) {
	s.step(w, r, func(ctx context.Context, nav *wizard.Navigator) error {
		_, err := nav.Previous()
		return err
	})
}

func (s *Server) wizardJump(w http.ResponseWriter, r *http.Request) {
	target := chi.URLParam(r, "questionId")
	s.step(w, r, func(ctx context.Context, nav *wizard.Navigator) error {
		_, err := nav.JumpTo(target)
		return err
	})
}

func (s *Server) wizardSubmit(w http.ResponseWriter, r *http.Request) {
	s.step(w, r, func(ctx context.Context, nav *wizard.Navigator) error {
		_, err := nav.Submit(ctx)
		return err
	})
}

type localeRequest struct {
	Language string `json:"language"`
}

func (s *Server) wizardLocale(w http.ResponseWriter, r *http.Request) {
	var body localeRequest
	if err := decode(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	s.step(w, r, func(ctx context.Context, nav *wizard.Navigator) error {
		return nav.SetLocale(ctx, domain.ParseLocale(body.Language))
	})
}

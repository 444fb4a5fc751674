package http

import (
	"net/http"

	"github.com/NicklasHM/P3-sleep-diary/pkg/domain"
	"github.com/go-chi/chi/v5"
)

func (s *Server) findQuestionnaire(r *http.Request) (domain.Questionnaire, error) {
	t := domain.QuestionnaireType(chi.URLParam(r, "type"))
	return s.app.Store.FindQuestionnaire(r.Context(), t)
}

func (s *Server) getQuestionnaire(w http.ResponseWriter, r *http.Request) {
	qn, err := s.findQuestionnaire(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, qn)
}

type startResponse struct {
	Questionnaire domain.Questionnaire `json:"questionnaire"`
	Questions     []domain.Question    `json:"questions"`
}

func (s *Server) startQuestionnaire(w http.ResponseWriter, r *http.Request) {
	t := domain.QuestionnaireType(chi.URLParam(r, "type"))
	qn, qs, err := s.app.Service.Start(r.Context(), t, locale(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, startResponse{Questionnaire: qn, Questions: qs})
}

type reorderRootsRequest struct {
	QuestionIDs []string `json:"questionIds"`
}

func (s *Server) reorderRoots(w http.ResponseWriter, r *http.Request) {
	var body reorderRootsRequest
	if err := decode(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	qn, err := s.findQuestionnaire(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	roots, err := s.app.Editor.ReorderRoots(r.Context(), qn.ID, body.QuestionIDs)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, roots)
}

func (s *Server) listQuestions(w http.ResponseWriter, r *http.Request) {
	qnID, err := requireParam(r, "questionnaireId")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	archived, err := boolParam(r, "includeDeleted")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	qs, err := s.app.Store.List(r.Context(), qnID, locale(r), archived)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if qs == nil {
		qs = []domain.Question{}
	}
	writeJSON(w, http.StatusOK, qs)
}

func (s *Server) createQuestion(w http.ResponseWriter, r *http.Request) {
	var q domain.Question
	if err := decode(r, &q); err != nil {
		s.fail(w, r, err)
		return
	}
	if q.QuestionnaireID == "" {
		s.fail(w, r, badRequest("questionnaireId is required"))
		return
	}
	if _, err := s.app.Store.GetQuestionnaire(r.Context(), q.QuestionnaireID); err != nil {
		s.fail(w, r, err)
		return
	}
	created, err := s.app.Editor.CreateQuestion(r.Context(), q.QuestionnaireID, q)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) getQuestion(w http.ResponseWriter, r *http.Request) {
	archived, err := boolParam(r, "includeDeleted")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	q, err := s.app.Store.Get(r.Context(), chi.URLParam(r, "id"), locale(r), archived)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

// updateQuestion replaces the content of a question. Its edges are kept;
// edge changes go through the draft endpoint.
func (s *Server) updateQuestion(w http.ResponseWriter, r *http.Request) {
	var q domain.Question
	if err := decode(r, &q); err != nil {
		s.fail(w, r, err)
		return
	}
	updated, err := s.app.Store.Update(r.Context(), chi.URLParam(r, "id"), q)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.app.InvalidateQuestions()
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) deleteQuestion(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Editor.DeleteQuestion(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type draftRequest struct {
	Question                domain.Question   `json:"question"`
	NewConditionalQuestions []domain.Question `json:"newConditionalQuestions"`
}

// commitDraft saves an edited question together with the branch questions
// its edges reference by temporary ID.
func (s *Server) commitDraft(w http.ResponseWriter, r *http.Request) {
	var body draftRequest
	if err := decode(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	body.Question.ID = chi.URLParam(r, "id")
	d, err := s.app.Editor.OpenEdited(r.Context(), body.Question, body.NewConditionalQuestions)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	saved, err := s.app.Editor.Commit(r.Context(), d)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func edgeParams(r *http.Request) (optionID, childID string, err error) {
	if optionID, err = requireParam(r, "optionId"); err != nil {
		return "", "", err
	}
	if childID, err = requireParam(r, "childQuestionId"); err != nil {
		return "", "", err
	}
	return optionID, childID, nil
}

func (s *Server) addEdge(w http.ResponseWriter, r *http.Request) {
	optionID, childID, err := edgeParams(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	q, err := s.app.Store.AddEdge(r.Context(), chi.URLParam(r, "id"), optionID, childID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.app.InvalidateQuestions()
	writeJSON(w, http.StatusOK, q)
}

func (s *Server) removeEdge(w http.ResponseWriter, r *http.Request) {
	optionID, childID, err := edgeParams(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	q, err := s.app.Store.RemoveEdge(r.Context(), chi.URLParam(r, "id"), optionID, childID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.app.InvalidateQuestions()
	writeJSON(w, http.StatusOK, q)
}

type reorderEdgesRequest struct {
	OptionID         string   `json:"optionId"`
	ChildQuestionIDs []string `json:"childQuestionIds"`
}

func (s *Server) reorderEdges(w http.ResponseWriter, r *http.Request) {
	var body reorderEdgesRequest
	if err := decode(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	if body.OptionID == "" {
		s.fail(w, r, badRequest("optionId is required"))
		return
	}
	q, err := s.app.Store.ReorderEdges(r.Context(), chi.URLParam(r, "id"), body.OptionID, body.ChildQuestionIDs)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.app.InvalidateQuestions()
	writeJSON(w, http.StatusOK, q)
}

type submitRequest struct {
	QuestionnaireID string         `json:"questionnaireId"`
	RespondentID    string         `json:"respondentId"`
	Answers         domain.Answers `json:"answers"`
}

func (s *Server) submitResponse(w http.ResponseWriter, r *http.Request) {
	var body submitRequest
	if err := decode(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	resp, err := s.app.Service.Submit(r.Context(), body.QuestionnaireID, body.RespondentID, body.Answers)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

type nextRequest struct {
	QuestionnaireID   string         `json:"questionnaireId"`
	CurrentQuestionID string         `json:"currentQuestionId"`
	Answers           domain.Answers `json:"answers"`
	Language          string         `json:"language"`
}

func (s *Server) nextQuestion(w http.ResponseWriter, r *http.Request) {
	var body nextRequest
	if err := decode(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	next, err := s.app.Service.NextQuestion(r.Context(), body.QuestionnaireID, body.CurrentQuestionID, body.Answers, domain.ParseLocale(body.Language))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if next == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, next)
}

func (s *Server) checkToday(w http.ResponseWriter, r *http.Request) {
	qnID, err := requireParam(r, "questionnaireId")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondentID, err := requireParam(r, "respondentId")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	done, err := s.app.Service.CheckToday(r.Context(), qnID, respondentID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"answeredToday": done})
}

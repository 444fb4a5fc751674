package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	sleepdiary "github.com/NicklasHM/P3-sleep-diary"
	"github.com/NicklasHM/P3-sleep-diary/internal/metrics"
	"github.com/NicklasHM/P3-sleep-diary/internal/testutils"
	"github.com/NicklasHM/P3-sleep-diary/pkg/adapters/memory"
	"github.com/NicklasHM/P3-sleep-diary/pkg/domain"
	"github.com/NicklasHM/P3-sleep-diary/pkg/validation"
	"github.com/NicklasHM/P3-sleep-diary/pkg/wizard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	store, err := memory.NewFromQuestions(testutils.Morning, testutils.MorningQuestions()...)
	require.NoError(t, err)
	app, err := sleepdiary.New(sleepdiary.WithStore(store), sleepdiary.WithMetrics(metrics.New()))
	require.NoError(t, err)
	return New(app).Handler()
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestGetHealth(t *testing.T) {
	h := newTestServer(t)

	rr := do(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", decodeBody[map[string]string](t, rr)["status"])
}

func TestGetInfo(t *testing.T) {
	h := newTestServer(t)

	rr := do(t, h, http.MethodGet, "/info", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	resp := decodeBody[map[string]string](t, rr)
	assert.Equal(t, "sleepdiary-http", resp["app"])
	assert.Equal(t, sleepdiary.Version, resp["version"])
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestServer(t)

	do(t, h, http.MethodPost, "/api/responses", submitRequest{
		QuestionnaireID: testutils.Morning.ID,
		Answers:         testutils.CompleteMorningAnswers(),
	})
	rr := do(t, h, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `sleepdiary_responses_total{questionnaire="qn-morning"} 1`)
}

func TestQuestionnaires(t *testing.T) {
	h := newTestServer(t)

	rr := do(t, h, http.MethodGet, "/api/questionnaires/morning", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, testutils.Morning.ID, decodeBody[domain.Questionnaire](t, rr).ID)

	rr = do(t, h, http.MethodGet, "/api/questionnaires/evening", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, h, http.MethodGet, "/api/questionnaires/morning/start?language=en", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	start := decodeBody[startResponse](t, rr)
	require.Len(t, start.Questions, 12)
	assert.Equal(t, "q1", start.Questions[0].ID)
	assert.Equal(t, "Did you take sleep medication yesterday?", start.Questions[0].Text)
}

func TestListAndGetQuestions(t *testing.T) {
	h := newTestServer(t)

	rr := do(t, h, http.MethodGet, "/api/questions?questionnaireId=qn-morning&language=en", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	qs := decodeBody[[]domain.Question](t, rr)
	assert.Len(t, qs, 12)

	rr = do(t, h, http.MethodGet, "/api/questions", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, http.MethodGet, "/api/questions/q9?language=en", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "How would you rate your sleep?", decodeBody[domain.Question](t, rr).Text)

	rr = do(t, h, http.MethodGet, "/api/questions/missing", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestQuestionLifecycle(t *testing.T) {
	h := newTestServer(t)

	rr := do(t, h, http.MethodPost, "/api/questions", domain.Question{
		QuestionnaireID: testutils.Morning.ID,
		Type:            domain.TypeText,
		Text:            "Noter",
	})
	require.Equal(t, http.StatusCreated, rr.Code)
	created := decodeBody[domain.Question](t, rr)
	assert.Equal(t, 10, created.Order)

	created.Text = "Noter til natten"
	rr = do(t, h, http.MethodPut, "/api/questions/"+created.ID, created)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Noter til natten", decodeBody[domain.Question](t, rr).Text)

	rr = do(t, h, http.MethodDelete, "/api/questions/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = do(t, h, http.MethodGet, "/api/questions/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	rr = do(t, h, http.MethodGet, "/api/questions/"+created.ID+"?includeDeleted=true", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, h, http.MethodPost, "/api/questions", domain.Question{QuestionnaireID: testutils.Morning.ID, Type: "essay"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestQuestionWritesDropCachedTexts(t *testing.T) {
	ctx := context.Background()
	store, err := memory.NewFromQuestions(testutils.Morning, testutils.MorningQuestions()...)
	require.NoError(t, err)
	app, err := sleepdiary.New(sleepdiary.WithStore(store))
	require.NoError(t, err)
	h := New(app).Handler()

	cached, err := app.Fetcher.Fetch(ctx, []string{"q2"}, domain.LocaleEnglish, wizard.FailClosed)
	require.NoError(t, err)
	q2 := cached[0]
	q2.Translations[domain.LocaleEnglish] = "Evening routine?"

	rr := do(t, h, http.MethodPut, "/api/questions/q2", q2)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	fresh, err := app.Fetcher.Fetch(ctx, []string{"q2"}, domain.LocaleEnglish, wizard.FailClosed)
	require.NoError(t, err)
	assert.Equal(t, "Evening routine?", fresh[0].Text)
}

func TestLockedQuestionIsForbidden(t *testing.T) {
	h := newTestServer(t)

	rr := do(t, h, http.MethodPut, "/api/questions/q3", domain.Question{Type: domain.TypeTimePicker, Text: "changed"})
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Contains(t, decodeBody[errorBody](t, rr).Error, "locked")
}

func TestConditionalEdges(t *testing.T) {
	h := newTestServer(t)

	rr := do(t, h, http.MethodPost, "/api/questions/q1/conditional?optionId=med_yes&childQuestionId=q2", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	q := decodeBody[domain.Question](t, rr)
	assert.Len(t, q.Bucket("med_yes"), 2)

	rr = do(t, h, http.MethodPost, "/api/questions/q1/conditional?optionId=med_yes&childQuestionId=q2", nil)
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = do(t, h, http.MethodPost, "/api/questions/q1/conditional?optionId=nope&childQuestionId=q9", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, h, http.MethodPost, "/api/questions/q101/conditional?optionId=med_melatonin&childQuestionId=q1", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = do(t, h, http.MethodPost, "/api/questions/q1/conditional?optionId=med_yes", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, http.MethodPut, "/api/questions/q1/conditional/order", reorderEdgesRequest{
		OptionID:         "med_yes",
		ChildQuestionIDs: []string{"q2", "q101"},
	})
	require.Equal(t, http.StatusOK, rr.Code)
	q = decodeBody[domain.Question](t, rr)
	assert.Equal(t, "q2", q.Bucket("med_yes")[0].ChildQuestionID)

	rr = do(t, h, http.MethodDelete, "/api/questions/q1/conditional?optionId=med_yes&childQuestionId=q2", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	afterDelete := decodeBody[domain.Question](t, rr)
	assert.Len(t, afterDelete.Bucket("med_yes"), 1)

	rr = do(t, h, http.MethodDelete, "/api/questions/q1/conditional?optionId=med_yes&childQuestionId=q2", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCommitDraftResolvesTemporaryIDs(t *testing.T) {
	h := newTestServer(t)
	tempID := domain.NewTempID()

	q1 := testutils.MorningQuestions()[0]
	q1.Edges = append(q1.Edges, domain.Edge{OptionID: "med_no", ChildQuestionID: tempID, Order: 1})
	rr := do(t, h, http.MethodPut, "/api/questions/q1/draft", draftRequest{
		Question: q1,
		NewConditionalQuestions: []domain.Question{
			{ID: tempID, Type: domain.TypeText, Text: "Hvorfor ikke?"},
		},
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	saved := decodeBody[domain.Question](t, rr)

	bucket := saved.Bucket("med_no")
	require.Len(t, bucket, 1)
	childID := bucket[0].ChildQuestionID
	assert.False(t, domain.IsTempID(childID))
	assert.Equal(t, "q101", saved.Bucket("med_yes")[0].ChildQuestionID)

	rr = do(t, h, http.MethodGet, "/api/questions/"+childID, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	child := decodeBody[domain.Question](t, rr)
	assert.Equal(t, "Hvorfor ikke?", child.Text)
	assert.Equal(t, domain.ChildOrder(1, 1), child.Order)
}

func TestCommitDraftRejectsCycle(t *testing.T) {
	h := newTestServer(t)

	q101 := testutils.MorningQuestions()[1]
	q101.Edges = []domain.Edge{{OptionID: "med_melatonin", ChildQuestionID: "q1", Order: 1}}
	rr := do(t, h, http.MethodPut, "/api/questions/q101/draft", draftRequest{Question: q101})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = do(t, h, http.MethodGet, "/api/questions/q101", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decodeBody[domain.Question](t, rr).Edges)
}

func TestReorderRoots(t *testing.T) {
	h := newTestServer(t)

	rr := do(t, h, http.MethodPut, "/api/questionnaires/morning/order", reorderRootsRequest{
		QuestionIDs: []string{"q2", "q1", "q3", "q4", "q5", "q6", "q7", "q8", "q9"},
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	roots := decodeBody[[]domain.Question](t, rr)
	assert.Equal(t, "q2", roots[0].ID)

	rr = do(t, h, http.MethodPut, "/api/questionnaires/morning/order", reorderRootsRequest{
		QuestionIDs: []string{"q1", "q2", "q4", "q3", "q5", "q6", "q7", "q8", "q9"},
	})
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = do(t, h, http.MethodPut, "/api/questionnaires/morning/order", reorderRootsRequest{QuestionIDs: []string{"q1"}})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestResponses(t *testing.T) {
	h := newTestServer(t)

	rr := do(t, h, http.MethodPost, "/api/responses/next", nextRequest{
		QuestionnaireID:   testutils.Morning.ID,
		CurrentQuestionID: "q1",
		Answers:           domain.Answers{"q1": "med_no"},
	})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "q2", decodeBody[domain.Question](t, rr).ID)

	rr = do(t, h, http.MethodPost, "/api/responses/next", nextRequest{
		QuestionnaireID:   testutils.Morning.ID,
		CurrentQuestionID: "q9",
		Answers:           testutils.CompleteMorningAnswers(),
	})
	assert.Equal(t, http.StatusNoContent, rr.Code)

	bad := testutils.CompleteMorningAnswers()
	bad["q4"] = "22:00"
	rr = do(t, h, http.MethodPost, "/api/responses/next", nextRequest{
		QuestionnaireID:   testutils.Morning.ID,
		CurrentQuestionID: "q4",
		Answers:           bad,
	})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.NotEmpty(t, decodeBody[errorBody](t, rr).Error)

	rr = do(t, h, http.MethodGet, "/api/responses/check-today?questionnaireId=qn-morning&respondentId=r1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.False(t, decodeBody[map[string]bool](t, rr)["answeredToday"])

	submit := submitRequest{QuestionnaireID: testutils.Morning.ID, RespondentID: "r1", Answers: testutils.CompleteMorningAnswers()}
	rr = do(t, h, http.MethodPost, "/api/responses", submit)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.NotEmpty(t, decodeBody[domain.Response](t, rr).ID)

	rr = do(t, h, http.MethodGet, "/api/responses/check-today?questionnaireId=qn-morning&respondentId=r1", nil)
	assert.True(t, decodeBody[map[string]bool](t, rr)["answeredToday"])

	rr = do(t, h, http.MethodPost, "/api/responses", submit)
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestWizardSession(t *testing.T) {
	h := newTestServer(t)

	rr := do(t, h, http.MethodPost, "/api/wizard", startWizardRequest{Type: domain.QuestionnaireMorning, RespondentID: "r1", Language: "en"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	v := decodeBody[wizardView](t, rr)
	require.NotNil(t, v.Step.Question)
	assert.Equal(t, "q1", v.Step.Question.ID)
	assert.Equal(t, 9, v.Total)
	base := "/api/wizard/" + v.SessionID

	rr = do(t, h, http.MethodPost, base+"/next", nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, string(validation.ReasonRequired), decodeBody[errorBody](t, rr).Details.([]any)[0].(map[string]any)["reason"])

	answers := testutils.CompleteMorningAnswers()
	children := map[string][]string{"q6": {"q601", "q602"}}
	for _, root := range []string{"q1", "q2", "q3", "q4", "q5", "q6", "q7", "q8", "q9"} {
		for _, id := range append([]string{root}, children[root]...) {
			rr = do(t, h, http.MethodPut, base+"/answers/"+id, answerRequest{Value: answers[id]})
			require.Equal(t, http.StatusOK, rr.Code, "%s: %s", id, rr.Body.String())
		}
		rr = do(t, h, http.MethodPost, base+"/next", nil)
		require.Equal(t, http.StatusOK, rr.Code, "%s: %s", root, rr.Body.String())
	}
	v = decodeBody[wizardView](t, rr)
	assert.Equal(t, domain.StateReview, v.Step.State)
	assert.Equal(t, 9, v.Answered)

	rr = do(t, h, http.MethodPost, base+"/jump/q601", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "q6", decodeBody[wizardView](t, rr).Step.Question.ID)

	rr = do(t, h, http.MethodPut, base+"/locale", localeRequest{Language: "da"})
	require.Equal(t, http.StatusOK, rr.Code)
	v = decodeBody[wizardView](t, rr)
	assert.Equal(t, domain.LocaleDanish, v.Locale)
	assert.Equal(t, "Vågnede du i løbet af natten?", v.Step.Question.Text)

	for range 4 {
		rr = do(t, h, http.MethodPost, base+"/next", nil)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	}
	rr = do(t, h, http.MethodPost, base+"/submit", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	v = decodeBody[wizardView](t, rr)
	assert.Equal(t, domain.StateDone, v.Step.State)
	assert.NotEmpty(t, v.ResponseID)

	rr = do(t, h, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, domain.StateDone, decodeBody[wizardView](t, rr).Step.State)

	rr = do(t, h, http.MethodPost, base+"/previous", nil)
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestWizardAnswerFeedback(t *testing.T) {
	h := newTestServer(t)

	rr := do(t, h, http.MethodPost, "/api/wizard", startWizardRequest{Type: domain.QuestionnaireMorning})
	require.Equal(t, http.StatusCreated, rr.Code)
	base := "/api/wizard/" + decodeBody[wizardView](t, rr).SessionID

	rr = do(t, h, http.MethodPut, base+"/answers/q1", answerRequest{Value: "med_yes"})
	require.Equal(t, http.StatusOK, rr.Code)
	v := decodeBody[wizardView](t, rr)
	require.NotNil(t, v.Feedback)
	require.Len(t, v.Feedback.Children, 1)
	assert.Equal(t, "q101", v.Feedback.Children[0].ID)

	rr = do(t, h, http.MethodPut, base+"/answers/q101", answerRequest{Value: "nope"})
	require.Equal(t, http.StatusOK, rr.Code)
	v = decodeBody[wizardView](t, rr)
	require.NotNil(t, v.Feedback.Field)
	assert.Equal(t, validation.ReasonUnknownOption, v.Feedback.Field.Reason)

	rr = do(t, h, http.MethodPut, base+"/answers/missing", answerRequest{Value: "x"})
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, h, http.MethodGet, "/api/wizard/unknown", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestStatusOf(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{&domain.ValidationError{Reason: validation.ReasonRequired}, http.StatusBadRequest},
		{errors.Join(&domain.ValidationError{Reason: "a"}, &domain.ValidationError{Reason: "b"}), http.StatusBadRequest},
		{fmt.Errorf("get: %w", domain.ErrQuestionNotFound), http.StatusNotFound},
		{domain.ErrQuestionLocked, http.StatusForbidden},
		{domain.ErrResponseExists, http.StatusConflict},
		{&domain.StructuralError{Kind: domain.ErrCycle}, http.StatusUnprocessableEntity},
		{&domain.ReconciliationError{QuestionID: "q1", Unresolved: []string{"tmp"}}, http.StatusConflict},
		{domain.Transient("list", errors.New("disk")), http.StatusServiceUnavailable},
		{badRequest("nope"), http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(strings.ReplaceAll(tc.err.Error(), "\n", " "), func(t *testing.T) {
			assert.Equal(t, tc.want, statusOf(tc.err))
		})
	}
	assert.Len(t, validationErrors(cases[1].err), 2)
}

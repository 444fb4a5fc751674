package wizard_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/NicklasHM/P3-sleep-diary/internal/testutils"
	"github.com/NicklasHM/P3-sleep-diary/pkg/adapters/memory"
	"github.com/NicklasHM/P3-sleep-diary/pkg/domain"
	"github.com/NicklasHM/P3-sleep-diary/pkg/ports"
	"github.com/NicklasHM/P3-sleep-diary/pkg/responses"
	"github.com/NicklasHM/P3-sleep-diary/pkg/validation"
	"github.com/NicklasHM/P3-sleep-diary/pkg/wizard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func morningStore(t *testing.T) *memory.Store {
	t.Helper()
	store, err := memory.NewFromQuestions(testutils.Morning, testutils.MorningQuestions()...)
	require.NoError(t, err)
	return store
}

func newMorning(t *testing.T, opts ...wizard.Option) (*wizard.Navigator, *responses.Service) {
	t.Helper()
	store := morningStore(t)
	svc := responses.New(store, store, store)
	nav := wizard.New(wizard.Config{
		Type:         domain.QuestionnaireMorning,
		RespondentID: "alice",
		Service:      svc,
		Bootstrap:    svc,
	}, opts...)
	_, err := nav.Start(context.Background())
	require.NoError(t, err)
	return nav, svc
}

func ids(qs []domain.Question) []string {
	out := make([]string, len(qs))
	for i, q := range qs {
		out[i] = q.ID
	}
	return out
}

func set(t *testing.T, nav *wizard.Navigator, id string, v any) wizard.Feedback {
	t.Helper()
	fb, err := nav.SetAnswer(id, v)
	require.NoError(t, err)
	return fb
}

func TestNavigator_ConditionalChildInsertedAfterRoot(t *testing.T) {
	qn := domain.Questionnaire{ID: "qn-s1", Type: domain.QuestionnaireEvening}
	store, err := memory.NewFromQuestions(qn,
		domain.Question{ID: "Q1", Order: 1, Type: domain.TypeSingleChoice, Text: "Q1",
			Options: []domain.Option{{ID: "O1", Text: "O1"}, {ID: "O2", Text: "O2"}},
			Edges:   []domain.Edge{{OptionID: "O1", ChildQuestionID: "Q3", Order: 1}}},
		domain.Question{ID: "Q2", Order: 2, Type: domain.TypeText, Text: "Q2"},
		domain.Question{ID: "Q3", Order: 101, Type: domain.TypeText, Text: "Q3"},
	)
	require.NoError(t, err)
	svc := responses.New(store, store, store)
	nav := wizard.New(wizard.Config{Type: qn.Type, Service: svc, Bootstrap: svc})
	ctx := context.Background()

	step, err := nav.Start(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Q1", step.Question.ID)

	fb := set(t, nav, "Q1", "O1")
	assert.Equal(t, []string{"Q3"}, ids(fb.Children))
	assert.Equal(t, []string{"Q1", "Q3", "Q2"}, ids(nav.Visible()))

	_, err = nav.Next(ctx)
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr, "the visible child must be answered first")
	assert.Equal(t, "Q3", verr.QuestionID)
	assert.Equal(t, validation.ReasonRequired, verr.Reason)

	fb = set(t, nav, "Q1", "O2")
	assert.Empty(t, fb.Children)
	assert.Equal(t, []string{"Q1", "Q2"}, ids(nav.Visible()))

	step, err = nav.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Q2", step.Question.ID)
}

func TestNavigator_FullMorningRun(t *testing.T) {
	var steps []string
	nav, svc := newMorning(t, wizard.WithStepObserver(func(action, outcome string) {
		steps = append(steps, action+":"+outcome)
	}))
	ctx := context.Background()
	all := testutils.CompleteMorningAnswers()

	for nav.State() == domain.StatePresenting {
		step := nav.Current()
		set(t, nav, step.Question.ID, all[step.Question.ID])
		for _, child := range nav.Current().Children {
			set(t, nav, child.ID, all[child.ID])
		}
		_, err := nav.Next(ctx)
		require.NoError(t, err, "step %s", step.Question.ID)
	}
	assert.Equal(t, domain.StateReview, nav.State())
	assert.Equal(t, []string{"q1", "q2", "q3", "q4", "q5", "q6", "q7", "q8", "q9"}, nav.History())

	answered, total := nav.Progress()
	assert.Equal(t, 9, answered)
	assert.Equal(t, 9, total)
	assert.Empty(t, nav.Validate())

	resp, err := nav.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StateDone, nav.State())
	assert.Equal(t, resp.ID, nav.Snapshot().ResponseID)

	done, err := svc.CheckToday(ctx, testutils.Morning.ID, "alice")
	require.NoError(t, err)
	assert.True(t, done)
	assert.Contains(t, steps, "submit:ok")
}

func TestNavigator_AutoCopy(t *testing.T) {
	nav, _ := newMorning(t)

	set(t, nav, "q3", "23:00")
	assert.Equal(t, "23:00", nav.Answers()["q4"], "copied into unanswered light-off")

	set(t, nav, "q3", "22:45")
	assert.Equal(t, "22:45", nav.Answers()["q4"], "follows while still equal to the previous bedtime")

	set(t, nav, "q4", "23:30")
	set(t, nav, "q3", "23:10")
	assert.Equal(t, "23:30", nav.Answers()["q4"], "a deliberate answer is never overwritten")

	set(t, nav, "q7", "06:30")
	assert.Equal(t, "06:30", nav.Answers()["q8"])
}

func TestNavigator_CrossFeedbackIsAdvisory(t *testing.T) {
	nav, _ := newMorning(t)

	set(t, nav, "q3", "23:00")
	fb := set(t, nav, "q4", "22:30")
	require.NotNil(t, fb.Field)
	require.Len(t, fb.Cross, 1)
	assert.Equal(t, validation.ReasonLightOffBeforeBedtime, fb.Cross[0].Reason)
	assert.Contains(t, fb.Cross[0].Message, "22:30")
	assert.Contains(t, fb.Cross[0].Message, "23:00")

	fb = set(t, nav, "q4", "23:15")
	assert.Nil(t, fb.Field)
	assert.Empty(t, fb.Cross)
}

func TestNavigator_WakeNoForcesZero(t *testing.T) {
	nav, _ := newMorning(t)

	fb := set(t, nav, "q6", "wake_no")
	assert.Equal(t, 0.0, nav.Answers()["q602"])
	assert.Equal(t, []string{"q602"}, ids(fb.Children))

	fb = set(t, nav, "q602", 5.0)
	require.Len(t, fb.Cross, 1)
	assert.Equal(t, validation.ReasonWakeDurationNotZero, fb.Cross[0].Reason)

	set(t, nav, "q6", "wake_yes")
	fb = set(t, nav, "q602", 5.0)
	assert.Empty(t, fb.Cross, "duration before count is an accepted intermediate state")
}

func TestNavigator_PreviousAndHistory(t *testing.T) {
	nav, _ := newMorning(t)
	ctx := context.Background()

	_, err := nav.Previous()
	assert.ErrorIs(t, err, domain.ErrNoPrevious)

	set(t, nav, "q1", "med_no")
	_, err = nav.Next(ctx)
	require.NoError(t, err)

	set(t, nav, "q2", "Læste")
	step, err := nav.Previous()
	require.NoError(t, err)
	assert.Equal(t, "q1", step.Question.ID)

	step, err = nav.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "q2", step.Question.ID)
	assert.Equal(t, []string{"q1", "q2"}, nav.History(), "history has no duplicates")
}

func TestNavigator_RailAndJump(t *testing.T) {
	nav, _ := newMorning(t)
	ctx := context.Background()

	set(t, nav, "q1", "med_no")
	_, err := nav.Next(ctx)
	require.NoError(t, err)
	set(t, nav, "q2", "Læste")
	_, err = nav.Next(ctx)
	require.NoError(t, err)

	_, err = nav.JumpTo("q7")
	assert.ErrorIs(t, err, domain.ErrNotNavigable)
	_, err = nav.JumpTo("q601")
	assert.ErrorIs(t, err, domain.ErrNotNavigable, "children resolve to their root")
	_, err = nav.JumpTo("nope")
	assert.ErrorIs(t, err, domain.ErrQuestionNotFound)

	step, err := nav.JumpTo("q1")
	require.NoError(t, err)
	assert.Equal(t, "q1", step.Question.ID)

	rail := nav.Rail()
	require.Len(t, rail, 9)
	assert.True(t, rail[0].Current)
	assert.True(t, rail[2].Navigable, "visited before")
	assert.False(t, rail[3].Navigable)

	step, err = nav.JumpTo("q3")
	require.NoError(t, err)
	assert.Equal(t, "q3", step.Question.ID)
}

// blockingService holds NextQuestion until released.
type blockingService struct {
	ports.ResponseService
	entered chan struct{}
	release chan struct{}
}

func (b *blockingService) NextQuestion(ctx context.Context, qnID, currentID string, answers domain.Answers, locale domain.Locale) (*domain.Question, error) {
	b.entered <- struct{}{}
	<-b.release
	return b.ResponseService.NextQuestion(ctx, qnID, currentID, answers, locale)
}

func TestNavigator_StaleResponseDiscarded(t *testing.T) {
	store := morningStore(t)
	svc := responses.New(store, store, store)
	blocking := &blockingService{ResponseService: svc, entered: make(chan struct{}, 1), release: make(chan struct{})}
	nav := wizard.New(wizard.Config{Type: domain.QuestionnaireMorning, Service: blocking, Bootstrap: svc})
	ctx := context.Background()
	_, err := nav.Start(ctx)
	require.NoError(t, err)
	set(t, nav, "q1", "med_no")

	result := make(chan error, 1)
	go func() {
		_, err := nav.Next(ctx)
		result <- err
	}()
	<-blocking.entered

	_, err = nav.Next(ctx)
	assert.ErrorIs(t, err, domain.ErrStepInFlight)
	_, err = nav.SetAnswer("q1", "med_yes")
	assert.ErrorIs(t, err, domain.ErrStepInFlight)

	_, err = nav.JumpTo("q1")
	require.NoError(t, err)
	close(blocking.release)

	assert.ErrorIs(t, <-result, domain.ErrStaleResponse)
	assert.Equal(t, "q1", nav.Current().Question.ID)

	go func() { <-blocking.entered }()
	step, err := nav.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "q2", step.Question.ID)
}

type rejectingService struct {
	ports.ResponseService
	err error
}

func (r rejectingService) NextQuestion(context.Context, string, string, domain.Answers, domain.Locale) (*domain.Question, error) {
	return nil, r.err
}

func (r rejectingService) Submit(context.Context, string, string, domain.Answers) (domain.Response, error) {
	return domain.Response{}, r.err
}

func TestNavigator_ServiceErrors(t *testing.T) {
	store := morningStore(t)
	svc := responses.New(store, store, store)
	ctx := context.Background()

	t.Run("validation message is surfaced verbatim", func(t *testing.T) {
		rejection := &domain.ValidationError{QuestionID: "q1", Reason: "server_rule", Message: "Serveren afviste svaret."}
		nav := wizard.New(wizard.Config{Type: domain.QuestionnaireMorning, Service: rejectingService{err: rejection}, Bootstrap: svc})
		_, err := nav.Start(ctx)
		require.NoError(t, err)
		set(t, nav, "q1", "med_no")

		step, err := nav.Next(ctx)
		assert.EqualError(t, err, "Serveren afviste svaret.")
		assert.Equal(t, "q1", step.Question.ID)
	})

	t.Run("other failures are transient", func(t *testing.T) {
		nav := wizard.New(wizard.Config{Type: domain.QuestionnaireMorning, Service: rejectingService{err: errors.New("connection refused")}, Bootstrap: svc})
		_, err := nav.Start(ctx)
		require.NoError(t, err)
		set(t, nav, "q1", "med_no")

		_, err = nav.Next(ctx)
		assert.ErrorIs(t, err, domain.ErrTransient)
		assert.Equal(t, domain.StatePresenting, nav.State())
	})
}

func TestNavigator_SubmitReturnsToReviewOnFailure(t *testing.T) {
	store := morningStore(t)
	svc := responses.New(store, store, store)
	ctx := context.Background()
	nav, err := wizard.Restore(ctx, wizard.Config{Service: rejectingService{ResponseService: svc, err: errors.New("down")}, Bootstrap: svc},
		&domain.WizardSnapshot{SessionID: "s1", QuestionnaireType: domain.QuestionnaireMorning, State: domain.StateReview, CurrentID: "q9", Answers: testutils.CompleteMorningAnswers()})
	require.NoError(t, err)

	_, err = nav.Submit(ctx)
	assert.Error(t, err)
	assert.Equal(t, domain.StateReview, nav.State())

	_, err = nav.JumpTo("q4")
	require.NoError(t, err)
	_, err = nav.Submit(ctx)
	assert.ErrorIs(t, err, domain.ErrInvalidState, "submit only from review")
}

func TestNavigator_SubmitValidatesCrossRules(t *testing.T) {
	store := morningStore(t)
	svc := responses.New(store, store, store)
	answers := testutils.CompleteMorningAnswers()
	answers["q8"] = "06:00"

	nav, err := wizard.Restore(context.Background(), wizard.Config{Service: svc, Bootstrap: svc},
		&domain.WizardSnapshot{SessionID: "s1", QuestionnaireType: domain.QuestionnaireMorning, State: domain.StateReview, CurrentID: "q9", Answers: answers})
	require.NoError(t, err)

	_, err = nav.Submit(context.Background())
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "q8", verr.QuestionID)
	assert.Equal(t, domain.StateReview, nav.State())
}

func TestNavigator_SnapshotRestore(t *testing.T) {
	nav, svc := newMorning(t)
	ctx := context.Background()
	set(t, nav, "q1", "med_yes")
	set(t, nav, "q101", []domain.Selection{{OptionID: "med_other", CustomText: "baldrian"}})
	_, err := nav.Next(ctx)
	require.NoError(t, err)
	require.NoError(t, nav.SetLocale(ctx, domain.LocaleEnglish))

	snap := nav.Snapshot()
	assert.Equal(t, "q2", snap.CurrentID)
	assert.Equal(t, domain.LocaleEnglish, snap.Locale)

	restored, err := wizard.Restore(ctx, wizard.Config{Service: svc, Bootstrap: svc}, snap)
	require.NoError(t, err)
	assert.Equal(t, domain.StatePresenting, restored.State())
	assert.Equal(t, "q2", restored.Current().Question.ID)
	assert.Equal(t, "What did you do in the last hour before bed?", restored.Current().Question.Text)
	assert.Equal(t, []string{"q1", "q2"}, restored.History())
	assert.Equal(t, nav.Answers(), restored.Answers())
}

type failingBootstrap struct{}

func (failingBootstrap) Start(context.Context, domain.QuestionnaireType, domain.Locale) (domain.Questionnaire, []domain.Question, error) {
	return domain.Questionnaire{}, nil, domain.Transient("list questions", errors.New("timeout"))
}

func TestNavigator_StartFailsClosed(t *testing.T) {
	nav := wizard.New(wizard.Config{Type: domain.QuestionnaireMorning, Bootstrap: failingBootstrap{}})
	_, err := nav.Start(context.Background())
	assert.ErrorIs(t, err, domain.ErrTransient)
	assert.Equal(t, domain.StateLoading, nav.State())

	_, err = nav.SetAnswer("q1", "med_no")
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

// rootsOnly drops the branch questions from the bootstrap set so the
// navigator has to fetch them.
type rootsOnly struct {
	ports.Bootstrap
}

func (b rootsOnly) Start(ctx context.Context, t domain.QuestionnaireType, locale domain.Locale) (domain.Questionnaire, []domain.Question, error) {
	qn, qs, err := b.Bootstrap.Start(ctx, t, locale)
	roots := make([]domain.Question, 0, len(qs))
	for _, q := range qs {
		if q.Order < 100 {
			roots = append(roots, q)
		}
	}
	return qn, roots, err
}

// watchingReader records whether the navigator answered while a fetch was
// running.
type watchingReader struct {
	ports.QuestionReader
	nav     **wizard.Navigator
	blocked atomic.Bool
	fetched atomic.Int32
}

func (r *watchingReader) Get(ctx context.Context, id string, locale domain.Locale, includeArchived bool) (domain.Question, error) {
	r.fetched.Add(1)
	done := make(chan struct{})
	go func() {
		(*r.nav).State()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		r.blocked.Store(true)
	}
	return r.QuestionReader.Get(ctx, id, locale, includeArchived)
}

func TestNavigator_FetchesBranchesWithoutHoldingTheSession(t *testing.T) {
	store := morningStore(t)
	svc := responses.New(store, store, store)
	var nav *wizard.Navigator
	reader := &watchingReader{QuestionReader: store, nav: &nav}
	fetcher, err := wizard.NewFetcher(reader, 16)
	require.NoError(t, err)
	nav = wizard.New(wizard.Config{
		Type:      domain.QuestionnaireMorning,
		Service:   svc,
		Bootstrap: rootsOnly{svc},
		Fetcher:   fetcher,
	})

	_, err = nav.Start(context.Background())
	require.NoError(t, err)
	assert.Positive(t, reader.fetched.Load())
	assert.False(t, reader.blocked.Load(), "session was locked during the fetch")

	fb := set(t, nav, "q1", "med_yes")
	assert.Equal(t, []string{"q101"}, ids(fb.Children), "fetched branch question is part of the graph")
}

package tui_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	sleepdiary "github.com/NicklasHM/P3-sleep-diary"
	"github.com/NicklasHM/P3-sleep-diary/internal/presentation/tui"
	"github.com/NicklasHM/P3-sleep-diary/internal/testutils"
	"github.com/NicklasHM/P3-sleep-diary/pkg/adapters/memory"
	"github.com/NicklasHM/P3-sleep-diary/pkg/domain"
	"github.com/NicklasHM/P3-sleep-diary/pkg/wizard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newNavigator(t *testing.T) *wizard.Navigator {
	t.Helper()
	store, err := memory.NewFromQuestions(testutils.Morning, testutils.MorningQuestions()...)
	require.NoError(t, err)
	app, err := sleepdiary.New(sleepdiary.WithStore(store))
	require.NoError(t, err)
	nav, _, err := app.NewNavigator(context.Background(), "", domain.QuestionnaireMorning, "patient-1", domain.LocaleDanish)
	require.NoError(t, err)
	return nav
}

func script(lines ...string) *strings.Reader {
	return strings.NewReader(strings.Join(lines, "\n") + "\n")
}

func TestPrompterCompletesDiary(t *testing.T) {
	nav := newNavigator(t)
	var out bytes.Buffer
	in := script(
		"1",      // q1 med_no
		"Læste",  // q2
		"23:00",  // q3
		"",       // q4 keeps the copied bedtime
		"abc",    // q5 rejected
		"15",     // q5
		"2",      // q6 wake_yes
		"2",      // q601
		"10",     // q602
		"06:30",  // q7
		"",       // q8 keeps the copied wake time
		"4",      // q9
		"y",
	)

	resp, err := tui.NewPrompter(in, &out).Run(context.Background(), nav)
	require.NoError(t, err)

	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, domain.StateDone, nav.State())
	answers := nav.Answers()
	assert.Equal(t, "23:00", answers["q4"])
	assert.Equal(t, "06:30", answers["q8"])
	assert.Equal(t, 10.0, answers["q602"])

	text := out.String()
	assert.Contains(t, text, "Hvornår gik du i seng?")
	assert.Contains(t, text, `"abc" is not a number`)
	assert.Contains(t, text, "[23:00] > ")
	assert.Contains(t, text, "Saved response "+resp.ID)
	assert.NotContains(t, text, "\x1b[")
}

func TestPrompterCommands(t *testing.T) {
	nav := newNavigator(t)
	var out bytes.Buffer
	in := script(
		"1",
		":back",
		"",     // q1 keeps med_no
		":lang en",
		"Read", // q2 in English
		":jump q1",
		":quit",
	)

	_, err := tui.NewPrompter(in, &out).Run(context.Background(), nav)
	assert.ErrorIs(t, err, tui.ErrQuit)

	assert.Equal(t, domain.LocaleEnglish, nav.Locale())
	assert.Equal(t, "Read", nav.Answers()["q2"])
	step := nav.Current()
	require.NotNil(t, step.Question)
	assert.Equal(t, "q1", step.Question.ID)
	assert.Contains(t, out.String(), "What did you do in the last hour before bed?")
	assert.Contains(t, out.String(), "[Nej] > ")
}

func TestPrompterInputClosed(t *testing.T) {
	nav := newNavigator(t)
	_, err := tui.NewPrompter(strings.NewReader(""), &bytes.Buffer{}).Run(context.Background(), nav)
	assert.ErrorIs(t, err, tui.ErrQuit)
}

func TestPrompterMultiChoiceOther(t *testing.T) {
	nav := newNavigator(t)
	var out bytes.Buffer
	in := script(
		"med_yes",
		"2, 3",
		"Baldrian",
		":quit",
	)

	render, err := tui.NewPlainRenderer(60)
	require.NoError(t, err)
	_, err = tui.NewPrompter(in, &out, tui.WithRenderer(render)).Run(context.Background(), nav)
	assert.ErrorIs(t, err, tui.ErrQuit)
	assert.Equal(t, []domain.Selection{
		{OptionID: "med_melatonin"},
		{OptionID: "med_other", CustomText: "Baldrian"},
	}, nav.Answers()["q101"])
	assert.Contains(t, out.String(), "Hvilken medicin?")
}

func TestPrintBanner(t *testing.T) {
	var out bytes.Buffer
	tui.PrintBanner(&out, "1.2.3")
	assert.Contains(t, out.String(), "v1.2.3")
	assert.Contains(t, out.String(), `|____/|_|\___|\___|`)
}

func TestPlainRenderer(t *testing.T) {
	render, err := tui.NewPlainRenderer(80)
	require.NoError(t, err)
	got, err := render("Hvor mange *minutter*?")
	require.NoError(t, err)
	assert.Contains(t, got, "Hvor mange")
	assert.Equal(t, strings.TrimSpace(got), got)
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, tui.IsTerminal(&bytes.Buffer{}))
}

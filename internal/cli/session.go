package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	sleepdiary "github.com/NicklasHM/P3-sleep-diary"
	"github.com/NicklasHM/P3-sleep-diary/internal/presentation/tui"
	"github.com/NicklasHM/P3-sleep-diary/pkg/domain"
	"github.com/NicklasHM/P3-sleep-diary/pkg/wizard"
)

// WizardOptions configure one terminal wizard session.
type WizardOptions struct {
	Type         domain.QuestionnaireType
	RespondentID string
	Locale       domain.Locale
	// SessionID resumes a stored session when it exists; otherwise a new
	// session is started under this ID.
	SessionID string
	In        io.Reader
	Out       io.Writer
	// Banner prints the banner first when Out is a terminal.
	Banner bool
}

// RunWizard answers a diary in the terminal. Leaving with :quit, or
// closing the input, stores the session so it can be resumed with the same
// SessionID.
func RunWizard(ctx context.Context, app *sleepdiary.App, opts WizardOptions) (domain.Response, error) {
	if opts.Banner && tui.IsTerminal(opts.Out) {
		tui.PrintBanner(opts.Out, sleepdiary.Version)
	}

	nav, resumed, err := openNavigator(ctx, app, opts)
	if err != nil {
		return domain.Response{}, err
	}
	snap := nav.Snapshot()
	app.Logger.Info("wizard session", "session_id", snap.SessionID, "questionnaire_id", snap.QuestionnaireID, "resumed", resumed)
	if resumed {
		fmt.Fprintf(opts.Out, "Resuming session %s\n", snap.SessionID)
	}

	resp, runErr := tui.NewPrompter(opts.In, opts.Out).Run(ctx, nav)
	if runErr == nil {
		if err := app.Sessions.Delete(ctx, snap.SessionID); err != nil {
			app.Logger.Warn("failed to delete finished session", "session_id", snap.SessionID, "err", err)
		}
		return resp, nil
	}
	if !errors.Is(runErr, tui.ErrQuit) && !errors.Is(runErr, context.Canceled) {
		return domain.Response{}, runErr
	}

	// the interrupted context must not cancel the final save
	if err := app.Sessions.Save(context.WithoutCancel(ctx), snap.SessionID, nav.Snapshot()); err != nil {
		return domain.Response{}, errors.Join(runErr, fmt.Errorf("save session: %w", err))
	}
	fmt.Fprintf(opts.Out, "\nSession saved. Resume with --session %s\n", snap.SessionID)
	return domain.Response{}, runErr
}

func openNavigator(ctx context.Context, app *sleepdiary.App, opts WizardOptions) (*wizard.Navigator, bool, error) {
	if opts.SessionID != "" {
		snap, err := app.Sessions.Load(ctx, opts.SessionID)
		switch {
		case err == nil:
			if snap.State == domain.StateDone {
				return nil, false, fmt.Errorf("session %s is already submitted: %w", opts.SessionID, domain.ErrInvalidState)
			}
			nav, err := app.RestoreNavigator(ctx, snap)
			if err != nil {
				return nil, false, fmt.Errorf("restore session %s: %w", opts.SessionID, err)
			}
			return nav, true, nil
		case !errors.Is(err, domain.ErrSessionNotFound):
			return nil, false, err
		}
	}
	nav, _, err := app.NewNavigator(ctx, opts.SessionID, opts.Type, opts.RespondentID, opts.Locale)
	if err != nil {
		return nil, false, fmt.Errorf("start %s diary: %w", opts.Type, err)
	}
	return nav, false, nil
}

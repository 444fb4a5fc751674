package tui

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/NicklasHM/P3-sleep-diary/pkg/domain"
	"github.com/NicklasHM/P3-sleep-diary/pkg/wizard"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// ErrQuit is returned by Run when the respondent leaves with :quit.
var ErrQuit = errors.New("wizard left before submit")

const help = `Commands: :back  :jump <question-id>  :lang <da|en>  :quit
Press Enter to keep the current answer.`

// Prompter drives a wizard Navigator over a line-based terminal.
type Prompter struct {
	in       *bufio.Scanner
	w        io.Writer
	out      *termenv.Output
	render   Renderer
	explicit bool
}

// PrompterOption configures a Prompter.
type PrompterOption func(*Prompter)

// WithRenderer renders question texts as markdown.
func WithRenderer(r Renderer) PrompterOption {
	return func(p *Prompter) {
		p.render = r
		p.explicit = true
	}
}

// NewPrompter reads answers from in and writes prompts to out. When out is
// a terminal, question texts go through glamour and messages are colored.
func NewPrompter(in io.Reader, out io.Writer, opts ...PrompterOption) *Prompter {
	p := &Prompter{
		in:     bufio.NewScanner(in),
		w:      out,
		render: identity,
	}
	profile := termenv.Ascii
	if IsTerminal(out) {
		profile = termenv.EnvColorProfile()
	}
	p.out = termenv.NewOutput(out, termenv.WithProfile(profile))
	for _, opt := range opts {
		opt(p)
	}
	if !p.explicit && profile != termenv.Ascii {
		if r, err := NewRenderer(80); err == nil {
			p.render = r
		}
	}
	return p
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// command is a parsed ":" input line.
type command struct {
	name string
	arg  string
}

var errEOF = errors.New("input closed")

// readLine returns the next input line, or a command when the line starts
// with ":". Lines failing SanitizeInput are asked again.
func (p *Prompter) readLine(prompt string) (string, *command, error) {
	var line string
	for {
		fmt.Fprint(p.w, prompt)
		if !p.in.Scan() {
			if err := p.in.Err(); err != nil {
				return "", nil, err
			}
			return "", nil, errEOF
		}
		clean, err := SanitizeInput(p.in.Text())
		if err == nil {
			line = strings.TrimSpace(clean)
			break
		}
		p.fail(err.Error() + ". Please try again.")
	}
	if strings.HasPrefix(line, ":") {
		name, arg, _ := strings.Cut(strings.TrimPrefix(line, ":"), " ")
		return "", &command{name: strings.ToLower(name), arg: strings.TrimSpace(arg)}, nil
	}
	return line, nil, nil
}

func (p *Prompter) warn(msg string) {
	fmt.Fprintln(p.w, p.out.String("! "+msg).Foreground(p.out.Color("#f59e0b")))
}

func (p *Prompter) fail(msg string) {
	fmt.Fprintln(p.w, p.out.String("✗ "+msg).Foreground(p.out.Color("#ef4444")))
}

func (p *Prompter) ok(msg string) {
	fmt.Fprintln(p.w, p.out.String("✓ "+msg).Foreground(p.out.Color("#22c55e")))
}

// Run asks the questions of nav until the response is submitted. The
// navigator must be started.
func (p *Prompter) Run(ctx context.Context, nav *wizard.Navigator) (domain.Response, error) {
	fmt.Fprintln(p.w, p.out.String(help).Faint())
	for {
		if err := ctx.Err(); err != nil {
			return domain.Response{}, err
		}
		step := nav.Current()
		var (
			cmd *command
			err error
		)
		switch step.State {
		case domain.StatePresenting:
			cmd, err = p.present(ctx, nav, step)
		case domain.StateReview:
			var resp domain.Response
			var done bool
			resp, done, cmd, err = p.review(ctx, nav)
			if done {
				return resp, nil
			}
		case domain.StateDone:
			return domain.Response{}, domain.ErrInvalidState
		default:
			return domain.Response{}, fmt.Errorf("wizard is %s: %w", step.State, domain.ErrInvalidState)
		}
		if errors.Is(err, errEOF) {
			return domain.Response{}, ErrQuit
		}
		if err != nil {
			return domain.Response{}, err
		}
		if cmd != nil {
			if err := p.apply(ctx, nav, cmd); err != nil {
				return domain.Response{}, err
			}
		}
	}
}

func (p *Prompter) apply(ctx context.Context, nav *wizard.Navigator, cmd *command) error {
	var err error
	switch cmd.name {
	case "quit", "q":
		return ErrQuit
	case "back", "b":
		_, err = nav.Previous()
	case "jump", "j":
		_, err = nav.JumpTo(cmd.arg)
	case "lang":
		err = nav.SetLocale(ctx, domain.ParseLocale(cmd.arg))
	case "help", "h":
		fmt.Fprintln(p.w, help)
	default:
		p.warn(fmt.Sprintf("unknown command :%s", cmd.name))
	}
	if err != nil {
		p.warn(err.Error())
	}
	return nil
}

// present asks the current root and its visible branch, then moves on.
func (p *Prompter) present(ctx context.Context, nav *wizard.Navigator, step wizard.Step) (*command, error) {
	if step.Question == nil {
		return nil, fmt.Errorf("no current question: %w", domain.ErrInvalidState)
	}
	answered, total := nav.Progress()
	root := *step.Question
	fmt.Fprintf(p.w, "\n[%d/%d]\n", answered, total)

	fb, cmd, err := p.ask(nav, root)
	if cmd != nil || err != nil {
		return cmd, err
	}

	asked := map[string]bool{root.ID: true}
	for {
		var child *domain.Question
		for i := range fb.Children {
			if !asked[fb.Children[i].ID] {
				child = &fb.Children[i]
				break
			}
		}
		if child == nil {
			break
		}
		asked[child.ID] = true
		childFb, cmd, err := p.ask(nav, *child)
		if cmd != nil || err != nil {
			return cmd, err
		}
		fb = childFb
	}

	if _, err := nav.Next(ctx); err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) || errors.Is(err, domain.ErrTransient) {
			p.fail(err.Error())
			return nil, nil
		}
		return nil, err
	}
	return nil, nil
}

// ask prompts for one question until the answer passes its own rules.
func (p *Prompter) ask(nav *wizard.Navigator, q domain.Question) (wizard.Feedback, *command, error) {
	text, err := p.render(q.Text)
	if err != nil {
		text = q.Text
	}
	fmt.Fprintln(p.w, p.out.String(text).Bold())
	for i, o := range q.Options {
		fmt.Fprintf(p.w, "  %d) %s\n", i+1, o.Text)
	}

	for {
		current := nav.Answers()[q.ID]
		prompt := "> "
		if !domain.IsBlank(current) {
			prompt = fmt.Sprintf("[%s] > ", describe(q, current))
		}
		line, cmd, err := p.readLine(prompt)
		if cmd != nil || err != nil {
			return wizard.Feedback{}, cmd, err
		}

		var value any
		if line == "" && !domain.IsBlank(current) {
			value = current
		} else {
			value, err = p.parse(q, line)
			if errors.Is(err, errEOF) {
				return wizard.Feedback{}, nil, err
			}
			if err != nil {
				p.fail(err.Error())
				continue
			}
		}

		fb, err := nav.SetAnswer(q.ID, value)
		if err != nil {
			return wizard.Feedback{}, nil, err
		}
		if fb.Field != nil {
			p.fail(fb.Field.Error())
			continue
		}
		for _, c := range fb.Cross {
			p.warn(c.Error())
		}
		return fb, nil, nil
	}
}

// parse converts an input line to the answer shape of q.
func (p *Prompter) parse(q domain.Question, line string) (any, error) {
	switch q.Type {
	case domain.TypeNumeric, domain.TypeSlider:
		if line == "" {
			return nil, nil
		}
		f, err := strconv.ParseFloat(strings.ReplaceAll(line, ",", "."), 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", line)
		}
		return f, nil
	case domain.TypeSingleChoice:
		if line == "" {
			return nil, nil
		}
		sel, err := p.choose(q, line)
		if err != nil {
			return nil, err
		}
		if sel.CustomText == "" {
			return sel.OptionID, nil
		}
		return sel, nil
	case domain.TypeMultiChoice:
		if line == "" {
			return nil, nil
		}
		var out []domain.Selection
		for _, part := range strings.Split(line, ",") {
			sel, err := p.choose(q, strings.TrimSpace(part))
			if err != nil {
				return nil, err
			}
			out = append(out, sel)
		}
		return out, nil
	}
	return line, nil
}

// choose resolves an option by number or ID and asks for the free text of
// an "other" option.
func (p *Prompter) choose(q domain.Question, in string) (domain.Selection, error) {
	var opt domain.Option
	if n, err := strconv.Atoi(in); err == nil && n >= 1 && n <= len(q.Options) {
		opt = q.Options[n-1]
	} else if o, ok := q.Option(in); ok {
		opt = o
	} else {
		return domain.Selection{}, fmt.Errorf("no option %q", in)
	}
	sel := domain.Selection{OptionID: opt.ID}
	if opt.IsOther {
		text, cmd, err := p.readLine(fmt.Sprintf("  %s: ", opt.Text))
		if err != nil {
			return domain.Selection{}, err
		}
		if cmd != nil {
			return domain.Selection{}, fmt.Errorf("commands are not accepted here")
		}
		sel.CustomText = text
	}
	return sel, nil
}

// review lists the answers and asks for confirmation.
func (p *Prompter) review(ctx context.Context, nav *wizard.Navigator) (domain.Response, bool, *command, error) {
	fmt.Fprintln(p.w)
	answers := nav.Answers()
	for _, q := range nav.Visible() {
		fmt.Fprintf(p.w, "  %-6s %s: %s\n", q.ID, q.Text, describe(q, answers[q.ID]))
	}
	line, cmd, err := p.readLine("Submit? [y/N] > ")
	if cmd != nil || err != nil {
		return domain.Response{}, false, cmd, err
	}
	if !strings.EqualFold(line, "y") && !strings.EqualFold(line, "yes") && !strings.EqualFold(line, "j") {
		return domain.Response{}, false, &command{name: "back"}, nil
	}
	resp, err := nav.Submit(ctx)
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) || errors.Is(err, domain.ErrResponseExists) || errors.Is(err, domain.ErrTransient) {
			p.fail(err.Error())
			return domain.Response{}, false, nil, nil
		}
		return domain.Response{}, false, nil, err
	}
	p.ok("Saved response " + resp.ID)
	return resp, true, nil, nil
}

// describe renders an answer for display, using option texts for choices.
func describe(q domain.Question, v any) string {
	if domain.IsBlank(v) {
		return "-"
	}
	if !q.Type.IsChoice() {
		return domain.Text(v)
	}
	sel, err := domain.Selections(v)
	if err != nil {
		return domain.Text(v)
	}
	parts := make([]string, 0, len(sel))
	for _, s := range sel {
		text := s.OptionID
		if o, ok := q.Option(s.OptionID); ok {
			text = o.Text
		}
		if s.CustomText != "" {
			text += " (" + s.CustomText + ")"
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, ", ")
}

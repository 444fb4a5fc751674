package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	sleepdiary "github.com/NicklasHM/P3-sleep-diary"
	mermaid "github.com/NicklasHM/P3-sleep-diary/internal/presentation/graph"
	"github.com/NicklasHM/P3-sleep-diary/pkg/domain"
	"github.com/NicklasHM/P3-sleep-diary/pkg/validation"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// QuestionsResponse is the output of list_questions.
type QuestionsResponse struct {
	Questionnaire domain.Questionnaire `json:"questionnaire" jsonschema_description:"The questionnaire"`
	Questions     []domain.Question    `json:"questions" jsonschema_description:"Root questions in flow order followed by branch questions"`
}

// ValidationResponse is the output of validate_answers.
type ValidationResponse struct {
	Valid  bool                      `json:"valid" jsonschema_description:"True when no rule failed"`
	Errors []*domain.ValidationError `json:"errors" jsonschema_description:"Failed rules with localized messages"`
}

// NextResponse is the output of next_question.
type NextResponse struct {
	Question *domain.Question `json:"question,omitempty" jsonschema_description:"The next root question"`
	Done     bool             `json:"done" jsonschema_description:"True when the flow is complete"`
}

// Server exposes the sleep diary services as an MCP Server.
type Server struct {
	app       *sleepdiary.App
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP Server instance.
func NewServer(app *sleepdiary.App) *Server {
	s := &Server{
		app:       app,
		logger:    app.Logger,
		mcpServer: server.NewMCPServer("sleepdiary-mcp", sleepdiary.Version),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the MCP protocol over SSE on addr until ctx is canceled.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP server listening (SSE)", "addr", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func (s *Server) registerTools() {
	typeParam := mcp.WithString("questionnaire_type",
		mcp.Required(),
		mcp.Enum(string(domain.QuestionnaireMorning), string(domain.QuestionnaireEvening)),
		mcp.Description("The diary to use: morning or evening"),
	)
	languageParam := mcp.WithString("language", mcp.Description("Language of question texts and messages: da (default) or en"))
	answersParam := mcp.WithString("answers", mcp.Description(`JSON object of answers keyed by question ID. Choice answers are an option ID or {"optionId": "...", "customText": "..."}`))

	s.mcpServer.AddTool(mcp.NewTool("list_questions",
		mcp.WithDescription("List the questions of a diary: root questions in flow order, then the conditional branch questions."),
		typeParam,
		languageParam,
		mcp.WithOutputSchema[QuestionsResponse](),
	), mcp.NewStructuredToolHandler(s.handleListQuestions))

	s.mcpServer.AddTool(mcp.NewTool("validate_answers",
		mcp.WithDescription("Validate answers against the per-question rules and the cross-question rules. Hidden conditional questions are skipped."),
		typeParam,
		answersParam,
		mcp.WithString("mode",
			mcp.Enum("interactive", "submit"),
			mcp.Description("interactive checks answered questions only; submit (default) requires every visible question"),
		),
		languageParam,
		mcp.WithOutputSchema[ValidationResponse](),
	), mcp.NewStructuredToolHandler(s.handleValidateAnswers))

	s.mcpServer.AddTool(mcp.NewTool("next_question",
		mcp.WithDescription("Return the root question after the current one, or done when the flow is complete. Rejects invalid answers."),
		typeParam,
		mcp.WithString("current_question_id", mcp.Required(), mcp.Description("ID of the current question")),
		answersParam,
		languageParam,
		mcp.WithOutputSchema[NextResponse](),
	), mcp.NewStructuredToolHandler(s.handleNextQuestion))

	s.mcpServer.AddTool(mcp.NewTool("render_graph",
		mcp.WithDescription("Render the question graph of a diary as a Mermaid flowchart, optionally highlighting answered, current and hidden questions."),
		typeParam,
		answersParam,
		mcp.WithString("current_question_id", mcp.Description("Question to highlight as current")),
		languageParam,
	), s.handleRenderGraph)
}

func stringArg(args map[string]interface{}, key string) string {
	v, _ := args[key].(string)
	return v
}

// answersArg accepts the answers as a JSON object or as a string holding one.
func answersArg(args map[string]interface{}) (domain.Answers, error) {
	switch v := args["answers"].(type) {
	case nil:
		return domain.Answers{}, nil
	case map[string]interface{}:
		return domain.Answers(v), nil
	case string:
		if v == "" {
			return domain.Answers{}, nil
		}
		var answers domain.Answers
		if err := json.Unmarshal([]byte(v), &answers); err != nil {
			return nil, fmt.Errorf("answers must be a JSON object: %w", err)
		}
		return answers, nil
	default:
		return nil, fmt.Errorf("answers must be a JSON object, got %T", v)
	}
}

func (s *Server) questionnaire(ctx context.Context, args map[string]interface{}) (domain.Questionnaire, error) {
	t := stringArg(args, "questionnaire_type")
	if t == "" {
		return domain.Questionnaire{}, errors.New("questionnaire_type is required")
	}
	return s.app.Store.FindQuestionnaire(ctx, domain.QuestionnaireType(t))
}

func (s *Server) handleListQuestions(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (QuestionsResponse, error) {
	t := domain.QuestionnaireType(stringArg(args, "questionnaire_type"))
	qn, qs, err := s.app.Service.Start(ctx, t, domain.ParseLocale(stringArg(args, "language")))
	if err != nil {
		return QuestionsResponse{}, fmt.Errorf("list questions: %w", err)
	}
	return QuestionsResponse{Questionnaire: qn, Questions: qs}, nil
}

func (s *Server) handleValidateAnswers(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (ValidationResponse, error) {
	qn, err := s.questionnaire(ctx, args)
	if err != nil {
		return ValidationResponse{}, err
	}
	answers, err := answersArg(args)
	if err != nil {
		return ValidationResponse{}, err
	}
	mode := validation.Submit
	switch stringArg(args, "mode") {
	case "", "submit":
	case "interactive":
		mode = validation.Interactive
	default:
		return ValidationResponse{}, fmt.Errorf("unknown mode %q", stringArg(args, "mode"))
	}

	locale := domain.ParseLocale(stringArg(args, "language"))
	engine, err := s.app.Service.Engine(ctx, qn.ID, locale)
	if err != nil {
		return ValidationResponse{}, err
	}
	errs := validation.Localize(engine.ValidateAll(answers, mode), locale)
	if errs == nil {
		errs = []*domain.ValidationError{}
	}
	return ValidationResponse{Valid: len(errs) == 0, Errors: errs}, nil
}

func (s *Server) handleNextQuestion(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (NextResponse, error) {
	qn, err := s.questionnaire(ctx, args)
	if err != nil {
		return NextResponse{}, err
	}
	answers, err := answersArg(args)
	if err != nil {
		return NextResponse{}, err
	}
	current := stringArg(args, "current_question_id")
	next, err := s.app.Service.NextQuestion(ctx, qn.ID, current, answers, domain.ParseLocale(stringArg(args, "language")))
	if err != nil {
		s.logger.Debug("MCP next_question rejected", "question_id", current, "err", err)
		return NextResponse{}, err
	}
	return NextResponse{Question: next, Done: next == nil}, nil
}

func (s *Server) handleRenderGraph(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	qn, err := s.questionnaire(ctx, args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	qs, err := s.app.Store.List(ctx, qn.ID, domain.ParseLocale(stringArg(args, "language")), false)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list questions failed: %v", err)), nil
	}
	var overlay *mermaid.Overlay
	_, hasAnswers := args["answers"]
	current := stringArg(args, "current_question_id")
	if hasAnswers || current != "" {
		answers, err := answersArg(args)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		overlay = &mermaid.Overlay{Answers: answers, Current: current}
	}
	return mcp.NewToolResultText(mermaid.GenerateMermaid(qs, overlay)), nil
}

func (s *Server) registerResources() {
	for _, t := range []domain.QuestionnaireType{domain.QuestionnaireMorning, domain.QuestionnaireEvening} {
		uri := "sleepdiary://questionnaires/" + string(t)
		s.mcpServer.AddResource(mcp.NewResource(uri, fmt.Sprintf("Questions of the %s diary", t),
			mcp.WithMIMEType("application/json"),
		), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			_, qs, err := s.app.Service.Start(ctx, t, domain.DefaultLocale)
			if err != nil {
				return nil, fmt.Errorf("failed to load %s questions: %w", t, err)
			}
			jsonBytes, err := json.Marshal(qs)
			if err != nil {
				return nil, err
			}
			return []mcp.ResourceContents{
				mcp.TextResourceContents{
					URI:      uri,
					MIMEType: "application/json",
					Text:     string(jsonBytes),
				},
			}, nil
		})
	}
}

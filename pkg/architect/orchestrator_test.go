package architect

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cexll/promptarch/pkg/catalog"
	"github.com/cexll/promptarch/pkg/gate"
	"github.com/cexll/promptarch/pkg/jsonx"
	"github.com/cexll/promptarch/pkg/model"
	"github.com/cexll/promptarch/pkg/plan"
	"github.com/cexll/promptarch/pkg/selection"
)

type stubGenerator struct {
	fn     func(ctx context.Context, stage model.Stage, req model.Request) (model.Response, error)
	stages []model.Stage
}

func (s *stubGenerator) Generate(ctx context.Context, stage model.Stage, req model.Request) (model.Response, error) {
	s.stages = append(s.stages, stage)
	return s.fn(ctx, stage, req)
}

func jsonResponse(t *testing.T, v any) model.Response {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return model.Response{Content: string(data)}
}

func testTool(id, category string, free bool, tags ...string) catalog.Tool {
	return catalog.Tool{
		ID:               id,
		Name:             id,
		Category:         category,
		Tags:             tags,
		HasFreeTier:      free,
		BestPracticePath: []string{"video", "generator"},
		Specs:            catalog.Specs{Reasoning: 5, Coding: 5, Speed: 5, EaseOfUse: 5},
		IdealUseCase:     "testing",
	}
}

func testCatalog(t *testing.T) *catalog.Store {
	t.Helper()
	store, err := catalog.NewStore([]catalog.Tool{
		testTool("visionary", "Video", true, "Generator"),
		testTool("clipsmith", "Video", true, "Generator", "Editing"),
		testTool("cinemax", "Video", false, "Generator"),
		testTool("terminalist", "Code", true, "CLI", "Agentic"),
	}, catalog.NewPractices(map[string]any{
		"video": map[string]any{"generator": map[string]any{"strategy": "Describe the shot."}},
	}))
	require.NoError(t, err)
	return store
}

type fixture struct {
	orchestrator *Orchestrator
	sessions     *SessionStore
	generator    *stubGenerator
}

func newFixture(t *testing.T, gateOpts ...gate.Option) *fixture {
	t.Helper()
	opts := append([]gate.Option{gate.WithLimits(1000, time.Minute)}, gateOpts...)
	sessions := NewSessionStore(time.Minute)
	t.Cleanup(sessions.Close)
	gen := &stubGenerator{}
	return &fixture{
		orchestrator: New(testCatalog(t), gate.New(opts...), gen, sessions),
		sessions:     sessions,
		generator:    gen,
	}
}

func videoSelectInput(sessionID string) SelectInput {
	return SelectInput{
		SessionID:    sessionID,
		ClientID:     "client-1",
		Request:      "make a product marketing video",
		Constraints:  selection.Constraints{FreeOnly: true},
		Capabilities: []string{"Video"},
	}
}

func selectionResponse(t *testing.T, winner string, aux ...string) model.Response {
	return jsonResponse(t, selection.Result{
		WinnerID:         winner,
		ReasoningSummary: "video generation fits",
		Scored: []selection.ScoredCandidate{
			{ToolID: "visionary", FitScore: 70},
			{ToolID: "clipsmith", FitScore: 90},
		},
		AuxiliaryIDs: aux,
	})
}

func TestSelectHappyPath(t *testing.T) {
	f := newFixture(t)
	f.generator.fn = func(_ context.Context, _ model.Stage, req model.Request) (model.Response, error) {
		require.True(t, req.JSONMode)
		require.Contains(t, req.Messages[0].Content, "marketing video")
		return selectionResponse(t, "visionary", "clipsmith"), nil
	}

	out, err := f.orchestrator.Select(context.Background(), videoSelectInput(""))
	require.NoError(t, err)
	require.Equal(t, "visionary", out.Winner.ID)
	require.Len(t, out.Auxiliary, 1)
	require.Equal(t, "clipsmith", out.Auxiliary[0].ID)
	require.Equal(t, []model.Stage{model.StageSelection}, f.generator.stages)

	session, ok := f.sessions.Get(out.SessionID)
	require.True(t, ok)
	require.Equal(t, StageConfirmation, session.Stage)
	require.Equal(t, "visionary", session.Tool.ID)
}

func TestSelectUnknownSession(t *testing.T) {
	f := newFixture(t)
	_, err := f.orchestrator.Select(context.Background(), videoSelectInput("no-such-session"))
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSelectThrottled(t *testing.T) {
	f := newFixture(t, gate.WithLimits(1, time.Minute))
	f.generator.fn = func(_ context.Context, _ model.Stage, _ model.Request) (model.Response, error) {
		return selectionResponse(t, "visionary"), nil
	}

	_, err := f.orchestrator.Select(context.Background(), videoSelectInput(""))
	require.NoError(t, err)

	_, err = f.orchestrator.Select(context.Background(), videoSelectInput(""))
	require.ErrorIs(t, err, ErrThrottled)
}

func TestSelectInvalidInput(t *testing.T) {
	f := newFixture(t)

	in := videoSelectInput("")
	in.Request = "hi"
	_, err := f.orchestrator.Select(context.Background(), in)
	var invalid *InvalidInputError
	require.ErrorAs(t, err, &invalid)
	require.Equal(t, "userRequest", invalid.Field)

	in = videoSelectInput("")
	in.Capabilities = []string{"Telepathy"}
	_, err = f.orchestrator.Select(context.Background(), in)
	require.ErrorAs(t, err, &invalid)
	require.Equal(t, "required_capabilities", invalid.Field)

	require.Empty(t, f.generator.stages, "invalid input must never reach a generator")
}

func TestSelectNoCandidates(t *testing.T) {
	f := newFixture(t)
	session := f.sessions.Create()

	in := videoSelectInput(session.ID)
	in.Constraints = selection.Constraints{NoCode: true}
	in.Capabilities = []string{"Code"}
	_, err := f.orchestrator.Select(context.Background(), in)
	require.ErrorIs(t, err, ErrNoCandidates)
	require.Empty(t, f.generator.stages)

	got, ok := f.sessions.Get(session.ID)
	require.True(t, ok)
	require.Equal(t, StageInput, got.Stage)
}

func TestSelectRefusal(t *testing.T) {
	f := newFixture(t)
	session := f.sessions.Create()
	f.generator.fn = func(_ context.Context, _ model.Stage, _ model.Request) (model.Response, error) {
		return jsonResponse(t, selection.Result{WinnerID: selection.RefusalSentinel, ReasoningSummary: "Safety violation."}), nil
	}

	_, err := f.orchestrator.Select(context.Background(), videoSelectInput(session.ID))
	var refusal *SafetyRefusalError
	require.ErrorAs(t, err, &refusal)
	require.Equal(t, "Safety violation.", refusal.Summary)

	got, _ := f.sessions.Get(session.ID)
	require.Equal(t, StageInput, got.Stage)
}

func TestSelectHallucinatedWinnerRecovers(t *testing.T) {
	f := newFixture(t)
	f.generator.fn = func(_ context.Context, _ model.Stage, _ model.Request) (model.Response, error) {
		return selectionResponse(t, "made-up-tool"), nil
	}

	out, err := f.orchestrator.Select(context.Background(), videoSelectInput(""))
	require.NoError(t, err)
	require.Equal(t, "clipsmith", out.Winner.ID, "highest-scoring resolvable candidate wins")
	require.Equal(t, "clipsmith", out.Result.WinnerID)
}

func TestSelectGeneratorExhausted(t *testing.T) {
	f := newFixture(t)
	session := f.sessions.Create()
	exhausted := &model.ExhaustedError{Stage: model.StageSelection, Attempts: 2, Last: errors.New("down")}
	f.generator.fn = func(_ context.Context, _ model.Stage, _ model.Request) (model.Response, error) {
		return model.Response{}, exhausted
	}

	_, err := f.orchestrator.Select(context.Background(), videoSelectInput(session.ID))
	var got *model.ExhaustedError
	require.ErrorAs(t, err, &got)

	s, _ := f.sessions.Get(session.ID)
	require.Equal(t, StageInput, s.Stage)
}

func TestSelectUnparseableOutput(t *testing.T) {
	f := newFixture(t)
	f.generator.fn = func(_ context.Context, _ model.Stage, _ model.Request) (model.Response, error) {
		return model.Response{Content: "I think the best tool would be..."}, nil
	}

	_, err := f.orchestrator.Select(context.Background(), videoSelectInput(""))
	var parseErr *jsonx.ParseError
	require.ErrorAs(t, err, &parseErr)
}

func validPlan() plan.Plan {
	return plan.Plan{
		Title:       "Product Launch Video",
		Description: "A short launch video produced end to end.",
		IsComplete:  true,
		ToolStack: []plan.StackItem{
			{ToolName: "visionary", OutputType: "Video", UseCase: "Generate clips", InvolvedSteps: []int{1}},
		},
		Steps: []plan.Step{
			{StepNumber: 1, Title: "Generate the hero shot", ToolUsed: "visionary", Instruction: "Paste this prompt", Prompt: "# PROJECT CONTEXT\n..."},
		},
	}
}

// confirmedSession drives a session through selection into CONFIRMATION.
func confirmedSession(t *testing.T, f *fixture) string {
	t.Helper()
	f.generator.fn = func(_ context.Context, _ model.Stage, _ model.Request) (model.Response, error) {
		return selectionResponse(t, "visionary", "clipsmith"), nil
	}
	out, err := f.orchestrator.Select(context.Background(), videoSelectInput(""))
	require.NoError(t, err)
	return out.SessionID
}

func TestPlanHappyPath(t *testing.T) {
	f := newFixture(t)
	sessionID := confirmedSession(t, f)

	f.generator.fn = func(_ context.Context, stage model.Stage, req model.Request) (model.Response, error) {
		require.Equal(t, model.StagePlanning, stage)
		require.Contains(t, req.Messages[0].Content, "Describe the shot.", "best-practice guidance must reach the planner")
		return jsonResponse(t, validPlan()), nil
	}

	out, err := f.orchestrator.Plan(context.Background(), PlanInput{SessionID: sessionID, ClientID: "client-1"})
	require.NoError(t, err)
	require.Equal(t, "Product Launch Video", out.Plan.Title)

	session, _ := f.sessions.Get(sessionID)
	require.Equal(t, StageResult, session.Stage)
	require.NotNil(t, session.Plan)
}

func TestPlanWrongStage(t *testing.T) {
	f := newFixture(t)
	session := f.sessions.Create()

	_, err := f.orchestrator.Plan(context.Background(), PlanInput{SessionID: session.ID, ClientID: "client-1"})
	var invalid *InvalidInputError
	require.ErrorAs(t, err, &invalid)
}

func TestPlanDenied(t *testing.T) {
	f := newFixture(t)
	sessionID := confirmedSession(t, f)

	f.generator.fn = func(_ context.Context, _ model.Stage, _ model.Request) (model.Response, error) {
		return jsonResponse(t, plan.Plan{Title: plan.DenialSentinel, Description: "cannot help with that"}), nil
	}

	_, err := f.orchestrator.Plan(context.Background(), PlanInput{SessionID: sessionID, ClientID: "client-1"})
	var refusal *SafetyRefusalError
	require.ErrorAs(t, err, &refusal)

	session, _ := f.sessions.Get(sessionID)
	require.Equal(t, StageConfirmation, session.Stage, "failed planning must return to confirmation")
}

func TestPlanSchemaFailure(t *testing.T) {
	f := newFixture(t)
	sessionID := confirmedSession(t, f)

	broken := validPlan()
	broken.Steps[0].StepNumber = 7
	f.generator.fn = func(_ context.Context, _ model.Stage, _ model.Request) (model.Response, error) {
		return jsonResponse(t, broken), nil
	}

	_, err := f.orchestrator.Plan(context.Background(), PlanInput{SessionID: sessionID, ClientID: "client-1"})
	var schemaErr *jsonx.SchemaError
	require.ErrorAs(t, err, &schemaErr)

	session, _ := f.sessions.Get(sessionID)
	require.Equal(t, StageConfirmation, session.Stage)
}

// resultSession drives a session all the way to RESULT.
func resultSession(t *testing.T, f *fixture) string {
	t.Helper()
	sessionID := confirmedSession(t, f)
	f.generator.fn = func(_ context.Context, _ model.Stage, _ model.Request) (model.Response, error) {
		return jsonResponse(t, validPlan()), nil
	}
	_, err := f.orchestrator.Plan(context.Background(), PlanInput{SessionID: sessionID, ClientID: "client-1"})
	require.NoError(t, err)
	return sessionID
}

func TestReviseReplacesPlanWholesale(t *testing.T) {
	f := newFixture(t)
	sessionID := resultSession(t, f)

	revised := validPlan()
	revised.Title = "Product Launch Video v2"
	f.generator.fn = func(_ context.Context, stage model.Stage, req model.Request) (model.Response, error) {
		require.Equal(t, model.StagePlanning, stage)
		require.Contains(t, req.Messages[0].Content, "Product Launch Video", "current plan must travel in the prompt")
		return jsonResponse(t, revised), nil
	}

	out, err := f.orchestrator.Revise(context.Background(), ReviseInput{SessionID: sessionID, ClientID: "client-1", Instruction: "punchier title"})
	require.NoError(t, err)
	require.Equal(t, "Product Launch Video v2", out.Plan.Title)

	session, _ := f.sessions.Get(sessionID)
	require.Equal(t, StageResult, session.Stage)
	require.Equal(t, "Product Launch Video v2", session.Plan.Title)
}

func TestReviseFailureRetainsPriorPlan(t *testing.T) {
	f := newFixture(t)
	sessionID := resultSession(t, f)

	f.generator.fn = func(_ context.Context, _ model.Stage, _ model.Request) (model.Response, error) {
		return model.Response{Content: "not json at all"}, nil
	}

	_, err := f.orchestrator.Revise(context.Background(), ReviseInput{SessionID: sessionID, ClientID: "client-1", Instruction: "change step 1"})
	var parseErr *jsonx.ParseError
	require.ErrorAs(t, err, &parseErr)

	session, _ := f.sessions.Get(sessionID)
	require.Equal(t, StageResult, session.Stage)
	require.NotNil(t, session.Plan)
	require.Equal(t, "Product Launch Video", session.Plan.Title, "prior plan survives a failed revision")
}

func TestReviseRequiresResultStage(t *testing.T) {
	f := newFixture(t)
	sessionID := confirmedSession(t, f)

	_, err := f.orchestrator.Revise(context.Background(), ReviseInput{SessionID: sessionID, ClientID: "client-1", Instruction: "tweak"})
	var invalid *InvalidInputError
	require.ErrorAs(t, err, &invalid)
}

func TestReviseEmptyInstruction(t *testing.T) {
	f := newFixture(t)
	sessionID := resultSession(t, f)

	_, err := f.orchestrator.Revise(context.Background(), ReviseInput{SessionID: sessionID, ClientID: "client-1", Instruction: "   "})
	var invalid *InvalidInputError
	require.ErrorAs(t, err, &invalid)
	require.Equal(t, "instruction", invalid.Field)
}

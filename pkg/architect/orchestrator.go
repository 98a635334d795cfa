// Package architect drives the selection/planning pipeline: admission,
// deterministic filtering, generation, validation and session staging.
package architect

import (
	"context"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/cexll/promptarch/pkg/catalog"
	"github.com/cexll/promptarch/pkg/gate"
	"github.com/cexll/promptarch/pkg/jsonx"
	"github.com/cexll/promptarch/pkg/model"
	"github.com/cexll/promptarch/pkg/plan"
	"github.com/cexll/promptarch/pkg/prompt"
	"github.com/cexll/promptarch/pkg/selection"
)

// minRequestLength is the shortest user request worth sending downstream.
const minRequestLength = 5

// Generator abstracts the model gateway so orchestrator tests can stub it.
type Generator interface {
	Generate(ctx context.Context, stage model.Stage, req model.Request) (model.Response, error)
}

// Orchestrator owns the pipeline state machine. One instance serves all
// sessions; per-session state lives in the SessionStore.
type Orchestrator struct {
	catalog   *catalog.Store
	gate      *gate.Gate
	generator Generator
	sessions  *SessionStore

	logger *slog.Logger
	tracer trace.Tracer
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger attaches a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// New wires the orchestrator's collaborators together.
func New(cat *catalog.Store, g *gate.Gate, gen Generator, sessions *SessionStore, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		catalog:   cat,
		gate:      g,
		generator: gen,
		sessions:  sessions,
		logger:    slog.Default(),
		tracer:    otel.Tracer("promptarch/architect"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// SelectInput is the payload for the direct selection path. SessionID may
// be empty; a fresh session is created then.
type SelectInput struct {
	SessionID    string
	ClientID     string
	Request      string
	Constraints  selection.Constraints
	Capabilities []string
}

// SelectOutcome is the confirmed winner plus its squad.
type SelectOutcome struct {
	SessionID string
	Winner    catalog.Tool
	Auxiliary []catalog.Tool
	Result    selection.Result
}

// Select runs the full selection pass: admission, validation, filtering,
// generation and hydration. On success the session lands in CONFIRMATION;
// on any failure after admission it reverts to INPUT.
func (o *Orchestrator) Select(ctx context.Context, in SelectInput) (*SelectOutcome, error) {
	ctx, span := o.tracer.Start(ctx, "architect.select")
	defer span.End()

	if !o.gate.Admit(in.ClientID) {
		return nil, ErrThrottled
	}
	request, caps, err := validateSelectPayload(in.Request, in.Capabilities)
	if err != nil {
		return nil, err
	}
	session, err := o.sessionFor(in.SessionID)
	if err != nil {
		return nil, err
	}
	return o.runSelection(ctx, session.ID, request, in.Constraints, caps)
}

func validateSelectPayload(request string, rawCaps []string) (string, []selection.Capability, error) {
	request = strings.TrimSpace(request)
	if len(request) < minRequestLength {
		return "", nil, invalidInputf("userRequest", "must be at least %d characters", minRequestLength)
	}
	caps, err := selection.ParseCapabilities(rawCaps)
	if err != nil {
		return "", nil, invalidInputf("required_capabilities", "%v", err)
	}
	return request, caps, nil
}

// sessionFor resolves an existing session or creates a fresh one.
func (o *Orchestrator) sessionFor(id string) (Session, error) {
	if id == "" {
		return o.sessions.Create(), nil
	}
	session, ok := o.sessions.Get(id)
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return session, nil
}

// runSelection is the admission-free selection core, shared by Select and
// the chat trigger path.
func (o *Orchestrator) runSelection(ctx context.Context, sessionID, request string, constraints selection.Constraints, caps []selection.Capability) (*SelectOutcome, error) {
	if err := o.sessions.Update(sessionID, func(s *Session) {
		s.Stage = StageSelecting
		s.Request = request
		s.Constraints = constraints
		s.Capabilities = caps
	}); err != nil {
		return nil, err
	}

	candidates := selection.Filter(o.catalog.All(), constraints, caps)
	if len(candidates) == 0 {
		o.revert(sessionID, StageInput)
		return nil, ErrNoCandidates
	}

	resp, err := o.generator.Generate(ctx, model.StageSelection, model.Request{
		Messages: []model.Message{{Role: "user", Content: prompt.Selection(request, constraints, candidates)}},
		JSONMode: true,
	})
	if err != nil {
		o.revert(sessionID, StageInput)
		return nil, err
	}

	var res selection.Result
	if err := jsonx.Decode(resp.Content, &res); err != nil {
		o.revert(sessionID, StageInput)
		return nil, err
	}
	if res.Refused() {
		o.revert(sessionID, StageInput)
		return nil, &SafetyRefusalError{Summary: res.ReasoningSummary}
	}
	if err := res.Validate(); err != nil {
		o.revert(sessionID, StageInput)
		return nil, err
	}

	hydrated, err := selection.Hydrate(res, candidates)
	if err != nil {
		o.revert(sessionID, StageInput)
		return nil, err
	}
	if hydrated.HallucinatedID != "" {
		o.logger.Warn("architect: winner id did not resolve, substituted fallback",
			"session_id", sessionID,
			"hallucinated_id", hydrated.HallucinatedID,
			"substituted_id", hydrated.Winner.ID,
		)
	}

	if err := o.sessions.Update(sessionID, func(s *Session) {
		s.Stage = StageConfirmation
		s.Selection = hydrated.Result
		s.Tool = hydrated.Winner
		s.Auxiliary = hydrated.Auxiliary
		s.Plan = nil
	}); err != nil {
		return nil, err
	}

	return &SelectOutcome{
		SessionID: sessionID,
		Winner:    hydrated.Winner,
		Auxiliary: hydrated.Auxiliary,
		Result:    hydrated.Result,
	}, nil
}

// PlanInput requests a launch plan for the session's confirmed tool.
type PlanInput struct {
	SessionID string
	ClientID  string
}

// PlanOutcome carries the validated plan.
type PlanOutcome struct {
	SessionID string
	Plan      plan.Plan
}

// Plan runs the planning pass. The session must be in CONFIRMATION; on
// success it lands in RESULT, on failure it returns to CONFIRMATION so the
// client can retry without reselecting.
func (o *Orchestrator) Plan(ctx context.Context, in PlanInput) (*PlanOutcome, error) {
	ctx, span := o.tracer.Start(ctx, "architect.plan")
	defer span.End()

	if !o.gate.Admit(in.ClientID) {
		return nil, ErrThrottled
	}
	session, ok := o.sessions.Get(in.SessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	if session.Stage != StageConfirmation {
		return nil, invalidInputf("session", "stage %s does not accept planning", session.Stage)
	}
	if err := o.sessions.Update(in.SessionID, func(s *Session) { s.Stage = StagePlanning }); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("tool_id", session.Tool.ID))

	practices := o.catalog.Practices().Lookup(session.Tool.BestPracticePath)
	resp, err := o.generator.Generate(ctx, model.StagePlanning, model.Request{
		Messages: []model.Message{{Role: "user", Content: prompt.Planning(session.Request, session.Tool, practices)}},
		JSONMode: true,
	})
	if err != nil {
		o.revert(in.SessionID, StageConfirmation)
		return nil, err
	}

	var p plan.Plan
	if err := jsonx.Decode(resp.Content, &p); err != nil {
		o.revert(in.SessionID, StageConfirmation)
		return nil, err
	}
	if p.Denied() {
		o.revert(in.SessionID, StageConfirmation)
		return nil, &SafetyRefusalError{Summary: p.Description}
	}
	if err := p.Validate(); err != nil {
		o.revert(in.SessionID, StageConfirmation)
		return nil, err
	}

	if err := o.sessions.Update(in.SessionID, func(s *Session) {
		s.Stage = StageResult
		s.Plan = &p
	}); err != nil {
		return nil, err
	}
	return &PlanOutcome{SessionID: in.SessionID, Plan: p}, nil
}

// ReviseInput requests a wholesale plan replacement.
type ReviseInput struct {
	SessionID   string
	ClientID    string
	Instruction string
}

// Revise regenerates the plan under the user's feedback. The prior plan is
// retained verbatim on any failure; there is no partial merge.
func (o *Orchestrator) Revise(ctx context.Context, in ReviseInput) (*PlanOutcome, error) {
	ctx, span := o.tracer.Start(ctx, "architect.revise")
	defer span.End()

	if !o.gate.Admit(in.ClientID) {
		return nil, ErrThrottled
	}
	instruction := strings.TrimSpace(in.Instruction)
	if instruction == "" {
		return nil, invalidInputf("instruction", "missing or empty")
	}
	session, ok := o.sessions.Get(in.SessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	if session.Stage != StageResult || session.Plan == nil {
		return nil, invalidInputf("session", "no plan available to revise")
	}
	if err := o.sessions.Update(in.SessionID, func(s *Session) { s.Stage = StageRevising }); err != nil {
		return nil, err
	}

	resp, err := o.generator.Generate(ctx, model.StagePlanning, model.Request{
		Messages: []model.Message{{Role: "user", Content: prompt.Revision(*session.Plan, instruction)}},
		JSONMode: true,
	})
	if err != nil {
		o.revert(in.SessionID, StageResult)
		return nil, err
	}

	var p plan.Plan
	if err := jsonx.Decode(resp.Content, &p); err != nil {
		o.revert(in.SessionID, StageResult)
		return nil, err
	}
	if p.Denied() {
		o.revert(in.SessionID, StageResult)
		return nil, &SafetyRefusalError{Summary: p.Description}
	}
	if err := p.Validate(); err != nil {
		o.revert(in.SessionID, StageResult)
		return nil, err
	}

	if err := o.sessions.Update(in.SessionID, func(s *Session) {
		s.Stage = StageResult
		s.Plan = &p
	}); err != nil {
		return nil, err
	}
	return &PlanOutcome{SessionID: in.SessionID, Plan: p}, nil
}

// revert is a best-effort stage rollback; a vanished session needs no
// rollback.
func (o *Orchestrator) revert(sessionID string, stage Stage) {
	_ = o.sessions.Update(sessionID, func(s *Session) { s.Stage = stage })
}

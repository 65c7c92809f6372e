// Package suggest turns a scored diagram into concrete next steps: a short
// list of immediate actions, node additions placed on the editor canvas, and
// optional free-text advice from an LLM provider.
package suggest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/efebarandurmaz/archscore/internal/diagram"
	"github.com/efebarandurmaz/archscore/internal/issues"
	"github.com/efebarandurmaz/archscore/internal/llm"
	"github.com/efebarandurmaz/archscore/internal/llmutil"
	"github.com/efebarandurmaz/archscore/internal/observability"
	"github.com/efebarandurmaz/archscore/internal/scoring"
)

// Context describes what the user is designing.
type Context struct {
	Stage         string   `json:"stage,omitempty"`
	ProblemDomain string   `json:"problemDomain,omitempty"`
	Requirements  []string `json:"requirements,omitempty"`
}

// Input is everything the suggester looks at.
type Input struct {
	Diagram *diagram.Diagram
	Report  *scoring.Report
	Context Context
}

// Action is an immediate fix, most urgent first.
type Action struct {
	Type     string                `json:"type"`
	Priority string                `json:"priority"`
	Action   string                `json:"action"`
	NodeType diagram.ComponentType `json:"nodeType"`
}

// Change is a proposed edit to the diagram.
type Change struct {
	Type        string                `json:"type"`
	NodeType    diagram.ComponentType `json:"nodeType"`
	Position    diagram.Position      `json:"position"`
	Connections []string              `json:"connections"`
}

// Suggestions is the result of Suggest.
type Suggestions struct {
	ImmediateActions []Action `json:"immediateActions"`
	ProposedChanges  []Change `json:"proposedChanges"`
	AISuggestions    []string `json:"aiSuggestions"`
	AIError          string   `json:"aiError,omitempty"`
	TokensUsed       int      `json:"tokensUsed,omitempty"`
}

// Suggester builds Suggestions. A nil provider disables AI suggestions.
type Suggester struct {
	provider llm.Provider
}

// New creates a Suggester.
func New(provider llm.Provider) *Suggester {
	return &Suggester{provider: provider}
}

// Enabled reports whether an LLM provider is configured.
func (s *Suggester) Enabled() bool { return s.provider != nil }

// ProviderName returns the configured provider's name, or "none".
func (s *Suggester) ProviderName() string {
	if s.provider == nil {
		return "none"
	}
	return s.provider.Name()
}

// Suggest computes immediate actions and proposed changes and, when a
// provider is configured, asks it for free-text advice. Provider failures are
// reported in AIError and never fail the call.
func (s *Suggester) Suggest(ctx context.Context, in Input) (*Suggestions, error) {
	if in.Diagram == nil || in.Report == nil {
		return nil, fmt.Errorf("suggest: diagram and report are required")
	}

	missing := MissingPatterns(in.Diagram, in.Report)
	out := &Suggestions{
		ImmediateActions: ImmediateActions(in.Report, missing),
		ProposedChanges:  ProposedChanges(in.Diagram, missing),
		AISuggestions:    make([]string, 0),
	}
	if s.provider == nil {
		return out, nil
	}

	text, tokens, err := s.complete(ctx, in, missing)
	out.TokensUsed = tokens
	if err != nil {
		slog.Warn("ai suggestions unavailable", "provider", s.provider.Name(), "error", err)
		out.AIError = err.Error()
		return out, nil
	}
	out.AISuggestions = text
	return out, nil
}

// MissingPatterns lists the scalability building blocks the diagram lacks:
// the detector-backed loadBalancing, caching and messageQueue patterns, then
// component types with no dedicated pattern.
func MissingPatterns(d *diagram.Diagram, r *scoring.Report) []string {
	var missing []string
	for _, id := range []string{"loadBalancing", "caching", "messageQueue"} {
		if !r.HasPattern(id) {
			missing = append(missing, id)
		}
	}
	counts := d.TypeCounts()
	for _, c := range []struct {
		id   string
		kind diagram.ComponentType
	}{
		{"apiGateway", diagram.ComponentGateway},
		{"serviceDiscovery", diagram.ComponentServiceDiscovery},
		{"cdn", diagram.ComponentCDN},
	} {
		if counts[c.kind] == 0 {
			missing = append(missing, c.id)
		}
	}
	return missing
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// ImmediateActions returns the high-impact fixes for the report.
func ImmediateActions(r *scoring.Report, missing []string) []Action {
	actions := make([]Action, 0)
	for _, ci := range r.CriticalIssues {
		if ci.Category == issues.CategorySecurity {
			actions = append(actions, Action{
				Type:     "security",
				Priority: "high",
				Action:   "Add API Gateway for authentication and authorization",
				NodeType: diagram.ComponentGateway,
			})
			break
		}
	}
	if contains(missing, "loadBalancing") {
		actions = append(actions, Action{
			Type:     "scalability",
			Priority: "high",
			Action:   "Add load balancer to distribute traffic",
			NodeType: diagram.ComponentLoadBalancer,
		})
	}
	if contains(missing, "caching") {
		actions = append(actions, Action{
			Type:     "performance",
			Priority: "medium",
			Action:   "Add caching layer to improve response times",
			NodeType: diagram.ComponentCache,
		})
	}
	return actions
}

// ProposedChanges places new nodes around the centre of the positioned
// nodes: a load balancer up and left fronting the services, a cache to the
// right wired to the databases, and a queue below connected to the services.
func ProposedChanges(d *diagram.Diagram, missing []string) []Change {
	cx, cy := Center(d)
	services := nonNil(d.NodesOfKind(diagram.ComponentService))
	databases := nonNil(d.NodesOfKind(diagram.ComponentDatabase))

	changes := make([]Change, 0)
	for _, id := range missing {
		switch id {
		case "loadBalancing":
			changes = append(changes, Change{
				Type:        "add_node",
				NodeType:    diagram.ComponentLoadBalancer,
				Position:    diagram.Position{X: cx - 200, Y: cy - 100},
				Connections: services,
			})
		case "caching":
			changes = append(changes, Change{
				Type:        "add_node",
				NodeType:    diagram.ComponentCache,
				Position:    diagram.Position{X: cx + 200, Y: cy},
				Connections: databases,
			})
		case "messageQueue":
			changes = append(changes, Change{
				Type:        "add_node",
				NodeType:    diagram.ComponentQueue,
				Position:    diagram.Position{X: cx, Y: cy + 150},
				Connections: services,
			})
		}
	}
	return changes
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

// Center returns the midpoint of the bounding box of positioned nodes, or
// the origin when no node has a position.
func Center(d *diagram.Diagram) (float64, float64) {
	var minX, maxX, minY, maxY float64
	seen := false
	for _, n := range d.Nodes {
		if n.Position == nil {
			continue
		}
		p := *n.Position
		if !seen {
			minX, maxX, minY, maxY = p.X, p.X, p.Y, p.Y
			seen = true
			continue
		}
		minX, maxX = min(minX, p.X), max(maxX, p.X)
		minY, maxY = min(minY, p.Y), max(maxY, p.Y)
	}
	return (minX + maxX) / 2, (minY + maxY) / 2
}

const systemPrompt = `You review system-design diagrams. Reply with a JSON array of at most
five short, concrete suggestions (strings). No prose outside the array.`

type promptConnection struct {
	Type diagram.ConnectionType `json:"type"`
	With string                 `json:"with"`
}

type promptComponent struct {
	ID          string                `json:"id"`
	Type        diagram.ComponentType `json:"type"`
	Connections []promptConnection    `json:"connections"`
}

type promptBody struct {
	Type       diagram.DiagramType `json:"type"`
	Components struct {
		Current []promptComponent `json:"current"`
		Missing []string          `json:"missing"`
	} `json:"components"`
	Score          int                    `json:"score"`
	CriticalIssues []issues.CriticalIssue `json:"criticalIssues"`
	Context        Context                `json:"context"`
}

// BuildPrompt renders the diagram, its analysis and the user context as the
// JSON payload sent to the model.
func BuildPrompt(in Input, missing []string) (*llm.Prompt, error) {
	var body promptBody
	body.Type = in.Diagram.Type
	body.Components.Missing = missing
	body.Score = in.Report.Total
	body.CriticalIssues = in.Report.CriticalIssues
	body.Context = in.Context

	for _, n := range in.Diagram.Nodes {
		c := promptComponent{ID: n.ID, Type: n.Kind(), Connections: make([]promptConnection, 0)}
		for _, e := range in.Diagram.Edges {
			switch n.ID {
			case e.Source:
				c.Connections = append(c.Connections, promptConnection{Type: e.Type.Normalize(), With: e.Target})
			case e.Target:
				c.Connections = append(c.Connections, promptConnection{Type: e.Type.Normalize(), With: e.Source})
			}
		}
		body.Components.Current = append(body.Components.Current, c)
	}

	data, err := json.MarshalIndent(body, "", "  ")
	if err != nil {
		return nil, err
	}
	return llm.NewPrompt(systemPrompt, string(data)), nil
}

func (s *Suggester) complete(ctx context.Context, in Input, missing []string) ([]string, int, error) {
	prompt, err := BuildPrompt(in, missing)
	if err != nil {
		return nil, 0, err
	}

	ctx, span := observability.StartLLMSpan(ctx, s.provider.Name())
	defer span.End()

	maxTokens, temperature := 2000, 0.3
	resp, err := s.provider.Complete(ctx, prompt, &llm.RequestOptions{MaxTokens: &maxTokens, Temperature: &temperature})
	if err != nil {
		observability.RecordError(span, err)
		return nil, 0, err
	}
	observability.RecordLLMTokens(span, resp.InputTokens, resp.OutputTokens)
	tokens := resp.InputTokens + resp.OutputTokens

	var items []string
	if err := llmutil.DecodeJSON(resp.Content, &items); err != nil {
		items = llmutil.Bullets(resp.Content)
	}
	if items == nil {
		items = make([]string, 0)
	}
	return items, tokens, nil
}

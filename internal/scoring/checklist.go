package scoring

import (
	"fmt"
	"strings"

	"github.com/efebarandurmaz/archscore/internal/diagram"
)

// CheckResult is the outcome of a single checklist item.
type CheckResult struct {
	Name    string   `json:"name"`
	Passed  bool     `json:"passed"`
	Advice  string   `json:"advice,omitempty"`
	Details []string `json:"details,omitempty"`
}

// Check is a single best-practice checklist item.
type Check interface {
	Name() string
	Advice() string
	Evaluate(d *diagram.Diagram) CheckResult
}

// ChecklistResult captures a full checklist evaluation.
type ChecklistResult struct {
	Results     []CheckResult `json:"results"`
	PassedCount int           `json:"passedCount"`
	FailedCount int           `json:"failedCount"`
	// Score is the passed fraction, 0 for an empty checklist.
	Score float64 `json:"score"`
}

// Failed returns the results that did not pass.
func (r ChecklistResult) Failed() []CheckResult {
	var out []CheckResult
	for _, c := range r.Results {
		if !c.Passed {
			out = append(out, c)
		}
	}
	return out
}

// Checklist evaluates checks in order.
type Checklist struct {
	checks []Check
}

// NewChecklist creates a checklist from the given checks.
func NewChecklist(checks ...Check) *Checklist {
	return &Checklist{checks: checks}
}

// DefaultChecklist returns the five standard checks.
func DefaultChecklist() *Checklist {
	return NewChecklist(
		&LoadBalancerCheck{},
		&CachingCheck{},
		&ErrorHandlingCheck{},
		&AuthenticationCheck{},
		&RedundancyCheck{},
	)
}

// AddCheck appends a check.
func (c *Checklist) AddCheck(check Check) {
	c.checks = append(c.checks, check)
}

// Len returns the number of checks.
func (c *Checklist) Len() int { return len(c.checks) }

// Run evaluates every check.
func (c *Checklist) Run(d *diagram.Diagram) ChecklistResult {
	res := ChecklistResult{Results: make([]CheckResult, 0, len(c.checks))}
	for _, check := range c.checks {
		r := check.Evaluate(d)
		r.Name = check.Name()
		if r.Passed {
			res.PassedCount++
		} else {
			r.Advice = check.Advice()
			res.FailedCount++
		}
		res.Results = append(res.Results, r)
	}
	if len(c.checks) > 0 {
		res.Score = float64(res.PassedCount) / float64(len(c.checks))
	}
	return res
}

// LoadBalancerCheck passes when a load balancer exists.
type LoadBalancerCheck struct{}

func (c *LoadBalancerCheck) Name() string { return "hasLoadBalancer" }
func (c *LoadBalancerCheck) Advice() string {
	return "Add a load balancer to distribute traffic across service instances"
}

func (c *LoadBalancerCheck) Evaluate(d *diagram.Diagram) CheckResult {
	return presence(d, diagram.ComponentLoadBalancer)
}

// CachingCheck passes when a cache exists.
type CachingCheck struct{}

func (c *CachingCheck) Name() string { return "hasCaching" }
func (c *CachingCheck) Advice() string {
	return "Add a caching layer to reduce latency and database load"
}

func (c *CachingCheck) Evaluate(d *diagram.Diagram) CheckResult {
	return presence(d, diagram.ComponentCache)
}

// ErrorHandlingCheck passes when any node or edge carries a dead-letter or
// error-handling tag.
type ErrorHandlingCheck struct{}

var errorHandlingTags = []string{"deadLetter", "deadLetterQueue", "dlq", "errorHandling", "retry"}

func (c *ErrorHandlingCheck) Name() string { return "hasErrorHandling" }
func (c *ErrorHandlingCheck) Advice() string {
	return "Add error handling such as dead letter queues or retries for failed messages"
}

func (c *ErrorHandlingCheck) Evaluate(d *diagram.Diagram) CheckResult {
	return tagged(d, errorHandlingTags)
}

// AuthenticationCheck passes when an auth component exists or any node or
// edge carries an authentication tag.
type AuthenticationCheck struct{}

var authTags = []string{"auth", "authentication", "oauth", "jwt"}

func (c *AuthenticationCheck) Name() string { return "hasAuthentication" }
func (c *AuthenticationCheck) Advice() string {
	return "Add authentication at the system boundary, for example on the API gateway"
}

func (c *AuthenticationCheck) Evaluate(d *diagram.Diagram) CheckResult {
	if r := presence(d, diagram.ComponentAuth); r.Passed {
		return r
	}
	return tagged(d, authTags)
}

// RedundancyCheck passes when any recognised component type appears more
// than once.
type RedundancyCheck struct{}

func (c *RedundancyCheck) Name() string { return "hasRedundancy" }
func (c *RedundancyCheck) Advice() string {
	return "Add redundant instances of critical components to avoid single points of failure"
}

func (c *RedundancyCheck) Evaluate(d *diagram.Diagram) CheckResult {
	var details []string
	counts := d.TypeCounts()
	for _, t := range diagram.KnownComponentTypes {
		if n := counts[t]; n > 1 {
			details = append(details, fmt.Sprintf("%d %s nodes", n, t))
		}
	}
	return CheckResult{Passed: len(details) > 0, Details: details}
}

func presence(d *diagram.Diagram, kind diagram.ComponentType) CheckResult {
	ids := d.NodesOfKind(kind)
	return CheckResult{Passed: len(ids) > 0, Details: ids}
}

func tagged(d *diagram.Diagram, tags []string) CheckResult {
	var details []string
	for _, n := range d.Nodes {
		for _, tag := range tags {
			if n.HasProperty(tag) {
				details = append(details, fmt.Sprintf("node %s: %s", n.ID, tag))
				break
			}
		}
	}
	for i, e := range d.Edges {
		for _, tag := range tags {
			if e.HasProperty(tag) {
				details = append(details, fmt.Sprintf("edge %s->%s#%d: %s", e.Source, e.Target, i, tag))
				break
			}
		}
	}
	return CheckResult{Passed: len(details) > 0, Details: details}
}

// FormatChecklist renders the checklist as text.
func FormatChecklist(r ChecklistResult) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Best practices: %d/%d\n", r.PassedCount, r.PassedCount+r.FailedCount))
	for _, c := range r.Results {
		mark := "[ ]"
		if c.Passed {
			mark = "[x]"
		}
		b.WriteString(fmt.Sprintf("  %s %s", mark, c.Name))
		if !c.Passed && c.Advice != "" {
			b.WriteString(" - " + c.Advice)
		}
		b.WriteString("\n")
	}
	return b.String()
}

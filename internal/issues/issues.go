// Package issues detects structural risks in a diagram. It is deliberately
// separate from pattern matching: a diagram can implement load balancing and
// still depend on a single cache instance.
package issues

import (
	"fmt"

	"github.com/efebarandurmaz/archscore/internal/diagram"
)

// Category classifies a critical issue.
type Category string

const (
	CategorySinglePointOfFailure Category = "singlePointOfFailure"
	CategorySecurity             Category = "security"
	CategoryOther                Category = "other"
)

// CriticalIssue is recomputed on every scoring call.
type CriticalIssue struct {
	Category       Category `json:"category"`
	Description    string   `json:"description"`
	Recommendation string   `json:"recommendation"`
	NodeID         string   `json:"nodeId,omitempty"`
}

// redundantTypes are component types that must not exist as a single instance.
var redundantTypes = []diagram.ComponentType{
	diagram.ComponentCache,
	diagram.ComponentDatabase,
}

// Find returns the critical issues of d in a stable order: single points of
// failure in node order, then the security boundary gap, then entry point
// problems.
func Find(d *diagram.Diagram) []CriticalIssue {
	found := make([]CriticalIssue, 0)
	counts := d.TypeCounts()

	for _, n := range d.Nodes {
		kind := n.Kind()
		if !isRedundantType(kind) || counts[kind] != 1 {
			continue
		}
		found = append(found, CriticalIssue{
			Category:       CategorySinglePointOfFailure,
			Description:    fmt.Sprintf("%s %q is a single point of failure", kind, n.ID),
			Recommendation: fmt.Sprintf("Add a redundant %s instance (replica or cluster) alongside %q", kind, n.ID),
			NodeID:         n.ID,
		})
	}

	if counts[diagram.ComponentService] >= 2 && counts[diagram.ComponentGateway] == 0 {
		found = append(found, CriticalIssue{
			Category:       CategorySecurity,
			Description:    fmt.Sprintf("%d services are exposed without a gateway boundary", counts[diagram.ComponentService]),
			Recommendation: "Introduce an API gateway to centralise authentication, authorization and rate limiting",
		})
	}

	if len(d.Nodes) > 0 && len(diagram.Roots(d)) == 0 {
		found = append(found, CriticalIssue{
			Category:       CategoryOther,
			Description:    "diagram has no entry point: every node has an incoming connection",
			Recommendation: "Add a client or gateway node from which requests enter the system",
		})
	}
	return found
}

func isRedundantType(t diagram.ComponentType) bool {
	for _, r := range redundantTypes {
		if t == r {
			return true
		}
	}
	return false
}

// Package schema validates raw analysis backend responses against the
// expected shape for each analysis kind before they are trusted.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Kind identifies one analysis backend.
type Kind string

const (
	KindTopology  Kind = "topology"
	KindCausal    Kind = "causal"
	KindConsensus Kind = "consensus"
)

// Kinds returns all known analysis kinds.
func Kinds() []Kind {
	return []Kind{KindTopology, KindCausal, KindConsensus}
}

// Valid reports whether k is a known analysis kind.
func (k Kind) Valid() bool {
	switch k {
	case KindTopology, KindCausal, KindConsensus:
		return true
	}
	return false
}

// ErrInvalidPayload marks a backend response that failed shape validation.
// Failures of this class are never retried.
var ErrInvalidPayload = errors.New("invalid backend payload")

// Payload is a validated backend response.
type Payload interface {
	Kind() Kind
	// Score is the numeric confidence contribution of this result,
	// always within [0,1].
	Score() float64
}

// TopologyPayload holds the four feature counts returned by the topology
// backend.
type TopologyPayload struct {
	Components int `json:"components" validate:"gte=0"`
	Cycles     int `json:"cycles" validate:"gte=0"`
	Voids      int `json:"voids" validate:"gte=0"`
	Features   int `json:"features" validate:"gte=0"`
}

func (p *TopologyPayload) Kind() Kind { return KindTopology }

// Score for topology is full confidence: the backend reports structure, not
// certainty, so a validated result contributes 1.
func (p *TopologyPayload) Score() float64 { return 1.0 }

// CausalNode is a node in the causal graph.
type CausalNode struct {
	ID    string `json:"id" validate:"required"`
	Label string `json:"label"`
}

// CausalEdge is a directed edge in the causal graph.
type CausalEdge struct {
	Source string `json:"source" validate:"required"`
	Target string `json:"target" validate:"required"`
}

// CausalLink is one inferred cause-effect pair.
type CausalLink struct {
	Cause    string  `json:"cause" validate:"required"`
	Effect   string  `json:"effect" validate:"required"`
	Strength float64 `json:"strength"`
}

// CausalPayload holds the causal graph and inferred links.
type CausalPayload struct {
	Nodes []CausalNode `json:"nodes" validate:"dive"`
	Edges []CausalEdge `json:"edges" validate:"dive"`
	Links []CausalLink `json:"links" validate:"required,min=1,dive"`
}

func (p *CausalPayload) Kind() Kind { return KindCausal }

// Score for causal analysis is the mean absolute link strength, clamped
// to [0,1].
func (p *CausalPayload) Score() float64 {
	if len(p.Links) == 0 {
		return 0
	}
	var sum float64
	for _, l := range p.Links {
		s := l.Strength
		if s < 0 {
			s = -s
		}
		if s > 1 {
			s = 1
		}
		sum += s
	}
	return sum / float64(len(p.Links))
}

// ConsensusPayload holds the consensus backend result.
type ConsensusPayload struct {
	ConsensusScore float64 `json:"consensusScore" validate:"gte=0,lte=1"`
	CohomologyRank int     `json:"cohomologyRank" validate:"gte=0"`
	Unanimity      bool    `json:"unanimity"`
}

func (p *ConsensusPayload) Kind() Kind { return KindConsensus }

func (p *ConsensusPayload) Score() float64 { return p.ConsensusScore }

var validate = validator.New()

// Validate decodes raw into the typed payload for kind and checks its shape.
// Any failure wraps ErrInvalidPayload.
func Validate(kind Kind, raw []byte) (Payload, error) {
	var payload Payload
	switch kind {
	case KindTopology:
		payload = &TopologyPayload{}
	case KindCausal:
		payload = &CausalPayload{}
	case KindConsensus:
		payload = &ConsensusPayload{}
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidPayload, kind)
	}

	if err := json.Unmarshal(raw, payload); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrInvalidPayload, kind, err)
	}
	if err := validate.Struct(payload); err != nil {
		return nil, fmt.Errorf("%w: shape check %s: %v", ErrInvalidPayload, kind, err)
	}
	return payload, nil
}

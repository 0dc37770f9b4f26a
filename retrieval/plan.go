package retrieval

import (
	"github.com/talklens/talklens/store"
	"github.com/talklens/talklens/vector"
)

// Mode selects the stage ordering for a hybrid request.
type Mode string

const (
	ModeMetadataOnly       Mode = "metadata-only"
	ModeSemanticOnly       Mode = "semantic-only"
	ModeSemanticThenFilter Mode = "semantic-then-filter"
	ModeFilterThenSemantic Mode = "filter-then-semantic"
	ModeMultiHop           Mode = "multi-hop"
)

// CombinatorAnd is the only supported predicate combinator. Callers that
// need OR issue multiple requests and union the results themselves.
const CombinatorAnd = "and"

// Request is the planner input: metadata predicates, an optional semantic
// query and an optional scope restriction, already reduced to engine
// types by the tool layer.
type Request struct {
	Mode       Mode
	Combinator string // "" or "and"; anything else is rejected

	Filter *store.FindTalk

	// Query is the raw query text; the executor embeds it per probed set.
	// QueryVector, when set, is used as-is (reference-vector searches).
	Query       string
	QueryVector []float32

	// Sets names the descriptor sets to probe. Empty defaults to talk
	// metadata for semantic modes.
	Sets []string

	// ScopeTalkIDs restricts probes to the given talks. Nil means
	// unrestricted; empty means an empty scope (probes short-circuit).
	ScopeTalkIDs []string

	// Traverse, for multi-hop requests, expands the scope through the
	// entity graph before the probe stage.
	Traverse *TraverseSpec

	K              int
	MinScore       float64
	ExcludeTalkIDs []string
}

// TraverseSpec describes one bounded graph expansion. A probe stage
// behind the traversal consumes the reached frontier as talk ids, so
// speaker traversals feeding a probe must use an even hop count to land
// back on talks.
type TraverseSpec struct {
	EdgeType  store.EdgeType
	Direction store.Direction
	Hops      int
}

// StageKind names what a stage talks to.
type StageKind string

const (
	StageFilter   StageKind = "filter"
	StageTraverse StageKind = "traverse"
	StageProbe    StageKind = "probe"
)

// Stage is one step of an execution plan. Later stages consume earlier
// stages' talk-id sets as candidate scope.
type Stage struct {
	Kind StageKind
	Name string

	// Probe stages only.
	Sets []string
}

// Plan is an ordered list of stages.
type Plan struct {
	Mode   Mode
	Stages []Stage
}

// BuildPlan validates the request and lays out its stages. When no mode
// is given and both filters and a semantic query are present, the plan
// defaults to filter-then-semantic: filters are cheap and bound the
// probe to the filtered candidate set instead of the full index.
func BuildPlan(req *Request) (*Plan, error) {
	if req == nil {
		return nil, E(KindValidation, "nil request")
	}
	if req.Combinator != "" && req.Combinator != CombinatorAnd {
		return nil, E(KindUnsupportedPredicate, "combinator %q not supported, issue one request per branch and union the results", req.Combinator)
	}
	if req.K <= 0 {
		return nil, E(KindValidation, "k must be positive, got %d", req.K)
	}
	for _, set := range req.Sets {
		if _, ok := vector.Spaces[set]; !ok {
			return nil, E(KindIndexNotFound, "unknown descriptor set %q", set)
		}
	}

	hasFilter := req.Filter != nil
	hasQuery := req.Query != "" || req.QueryVector != nil

	mode := req.Mode
	if mode == "" {
		switch {
		case req.Traverse != nil:
			mode = ModeMultiHop
		case hasFilter && hasQuery:
			mode = ModeFilterThenSemantic
		case hasQuery:
			mode = ModeSemanticOnly
		default:
			mode = ModeMetadataOnly
		}
	}

	plan := &Plan{Mode: mode}
	probe := Stage{Kind: StageProbe, Name: "probe", Sets: req.Sets}
	if len(probe.Sets) == 0 {
		probe.Sets = []string{vector.SetTalkMeta}
	}

	switch mode {
	case ModeMetadataOnly:
		if !hasFilter {
			return nil, E(KindValidation, "metadata-only request needs filters")
		}
		plan.Stages = []Stage{{Kind: StageFilter, Name: "filter"}}
	case ModeSemanticOnly:
		if !hasQuery {
			return nil, E(KindValidation, "semantic request needs a query")
		}
		plan.Stages = []Stage{probe}
	case ModeFilterThenSemantic:
		if !hasFilter || !hasQuery {
			return nil, E(KindValidation, "filter-then-semantic needs both filters and a query")
		}
		plan.Stages = []Stage{{Kind: StageFilter, Name: "filter"}, probe}
	case ModeSemanticThenFilter:
		if !hasFilter || !hasQuery {
			return nil, E(KindValidation, "semantic-then-filter needs both filters and a query")
		}
		plan.Stages = []Stage{probe, {Kind: StageFilter, Name: "filter"}}
	case ModeMultiHop:
		if req.Traverse == nil {
			return nil, E(KindValidation, "multi-hop request needs a traversal spec")
		}
		if req.Traverse.Hops <= 0 {
			return nil, E(KindValidation, "hop count must be positive, got %d", req.Traverse.Hops)
		}
		if hasQuery && req.Traverse.EdgeType == store.EdgeHasSpeaker && req.Traverse.Hops%2 != 0 {
			return nil, E(KindValidation, "speaker traversal over %d hops ends on persons; a probe needs a talk frontier, use an even hop count", req.Traverse.Hops)
		}
		stages := []Stage{}
		if hasFilter {
			stages = append(stages, Stage{Kind: StageFilter, Name: "filter"})
		}
		stages = append(stages, Stage{Kind: StageTraverse, Name: "traverse"})
		if hasQuery {
			stages = append(stages, probe)
		}
		plan.Stages = stages
	default:
		return nil, E(KindValidation, "unknown mode %q", mode)
	}

	return plan, nil
}

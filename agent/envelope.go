package agent

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/talklens/talklens/retrieval"
)

// Envelope is the tagged response shape every tool returns.
type Envelope struct {
	Status    string          `json:"status"`
	Data      json.RawMessage `json:"data,omitempty"`
	ErrorKind string          `json:"errorKind,omitempty"`
	Message   string          `json:"message,omitempty"`
}

const (
	StatusOK    = "ok"
	StatusError = "error"
)

// OK wraps a payload in an ok envelope.
func OK(data any) (string, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return "", errors.Wrap(err, "marshal tool payload")
	}
	out, err := json.Marshal(Envelope{Status: StatusOK, Data: raw})
	if err != nil {
		return "", errors.Wrap(err, "marshal envelope")
	}
	return string(out), nil
}

// Fail classifies an error and renders the error envelope. Raw upstream
// error text never crosses this boundary; an engine Error's own message
// is safe, everything else gets a canned line per kind.
func Fail(err error) string {
	kind := retrieval.Classify(err)
	env := Envelope{
		Status:    StatusError,
		ErrorKind: string(kind),
		Message:   safeMessage(err, kind),
	}
	out, merr := json.Marshal(env)
	if merr != nil {
		return `{"status":"error","errorKind":"INTERNAL"}`
	}
	return string(out)
}

func safeMessage(err error, kind retrieval.Kind) string {
	var engineErr *retrieval.Error
	if errors.As(err, &engineErr) {
		return engineErr.Msg
	}
	switch kind {
	case retrieval.KindIndexNotFound:
		return "unknown descriptor set"
	case retrieval.KindDimensionMismatch:
		return "query vector dimension does not match the descriptor set"
	case retrieval.KindTraversalDepthExceeded:
		return "graph traversal exceeded the hop cap"
	case retrieval.KindUpstreamTimeout:
		return "store or index call exceeded its deadline"
	case retrieval.KindUpstreamUnavailable:
		return "store connection unavailable"
	case retrieval.KindNotFound:
		return "entity not found"
	default:
		return "internal error"
	}
}

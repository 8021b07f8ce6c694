package policy

import "errors"

// ErrDenied is returned by gating callers when a decision does not allow the
// input through.
var ErrDenied = errors.New("policy denied")

// Decision captures the result of one evaluation.
type Decision struct {
	// Allow is true when the entrypoint evaluated to true, or to an object
	// whose "allow" field is true. Undefined results deny.
	Allow bool `json:"allow"`
	// Reason is taken from an object result's "reason" field.
	Reason string `json:"reason,omitempty"`
	// Value is the raw entrypoint value.
	Value any `json:"value,omitempty"`
}

func decisionFromValue(v any) Decision {
	switch val := v.(type) {
	case bool:
		return Decision{Allow: val, Value: val}
	case map[string]any:
		allow, _ := val["allow"].(bool)
		reason, _ := val["reason"].(string)
		return Decision{Allow: allow, Reason: reason, Value: val}
	default:
		return Decision{Value: v}
	}
}

package task

import (
	"fmt"
	"strings"
)

// ResultType describes the value an actor must deliver to complete a task.
// It is a closed sum: Open for free-form results, Classifier for label
// selection. Validation dispatch is a type switch, never reflection.
type ResultType interface {
	// Validate checks raw against the descriptor and returns the validated
	// value stored as the task result.
	Validate(raw any) (any, error)

	// WireType names the type the calling agent is asked to produce.
	WireType() string

	// Describe renders the natural-language instructions communicated to the
	// actor, including any index-to-label mapping.
	Describe() string
}

// Open accepts any free-form result. The zero value is ready to use.
type Open struct{}

// Validate returns raw unchanged.
func (Open) Validate(raw any) (any, error) {
	return raw, nil
}

// WireType implements ResultType.
func (Open) WireType() string { return "string" }

// Describe implements ResultType.
func (Open) Describe() string { return "Respond with the result of the task as text." }

// Classifier restricts the result to an index (or index list) into a fixed
// label sequence. The labels may be any comparable values; validation returns
// the label value itself so equality checks against the caller's own
// constants hold.
type Classifier struct {
	Labels []any
	Multi  bool
}

// NewLabels builds a classifier from a label sequence. A single-element
// sequence whose only member is itself a sequence selects multi-label mode,
// classifying against the inner labels.
func NewLabels(values []any) (*Classifier, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("labels cannot be empty")
	}
	if len(values) == 1 {
		if inner, ok := asSlice(values[0]); ok {
			if len(inner) == 0 {
				return nil, fmt.Errorf("multi-label set cannot be empty")
			}
			return &Classifier{Labels: inner, Multi: true}, nil
		}
	}
	return &Classifier{Labels: values, Multi: false}, nil
}

// NewLabelStrings builds a single-label classifier over string labels.
func NewLabelStrings(values ...string) *Classifier {
	labels := make([]any, len(values))
	for i, v := range values {
		labels[i] = v
	}
	return &Classifier{Labels: labels}
}

// Validate implements ResultType. Single-label expects an integer index;
// multi-label expects a non-empty list of distinct in-range integers, order
// preserved.
func (c *Classifier) Validate(raw any) (any, error) {
	if c.Multi {
		return c.validateMulti(raw)
	}
	index, ok := asInt(raw)
	if !ok {
		return nil, fmt.Errorf("classifier result must be an integer index, got %T", raw)
	}
	if index < 0 || index >= len(c.Labels) {
		return nil, fmt.Errorf("classifier index %d out of range [0, %d)", index, len(c.Labels))
	}
	return c.Labels[index], nil
}

func (c *Classifier) validateMulti(raw any) (any, error) {
	items, ok := asSlice(raw)
	if !ok {
		return nil, fmt.Errorf("multi-label classifier result must be a list of integer indices, got %T", raw)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("multi-label classifier result cannot be empty")
	}

	seen := make(map[int]bool, len(items))
	out := make([]any, 0, len(items))
	for _, item := range items {
		index, ok := asInt(item)
		if !ok {
			return nil, fmt.Errorf("multi-label classifier indices must be integers, got %T", item)
		}
		if index < 0 || index >= len(c.Labels) {
			return nil, fmt.Errorf("classifier index %d out of range [0, %d)", index, len(c.Labels))
		}
		if seen[index] {
			return nil, fmt.Errorf("duplicate classifier index %d", index)
		}
		seen[index] = true
		out = append(out, c.Labels[index])
	}
	return out, nil
}

// WireType implements ResultType. The agent always answers with indices; the
// label mapping travels in the prompt.
func (c *Classifier) WireType() string {
	if c.Multi {
		return "list[int]"
	}
	return "int"
}

// Describe implements ResultType.
func (c *Classifier) Describe() string {
	var b strings.Builder
	if c.Multi {
		b.WriteString("Respond with a list of integer indices selecting every applicable label:\n")
	} else {
		b.WriteString("Respond with the integer index of the single best label:\n")
	}
	for i, label := range c.Labels {
		fmt.Fprintf(&b, "  %d: %v\n", i, label)
	}
	return strings.TrimRight(b.String(), "\n")
}

// asInt accepts the integer shapes a JSON-decoding runtime may deliver.
// Floats are accepted only when integral.
func asInt(raw any) (int, bool) {
	switch v := raw.(type) {
	case int:
		return v, true
	case int8:
		return int(v), true
	case int16:
		return int(v), true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case float64:
		if v == float64(int(v)) {
			return int(v), true
		}
		return 0, false
	case float32:
		if v == float32(int(v)) {
			return int(v), true
		}
		return 0, false
	default:
		return 0, false
	}
}

func asSlice(raw any) ([]any, bool) {
	switch v := raw.(type) {
	case []any:
		return v, true
	case []int:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = item
		}
		return out, true
	case []string:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = item
		}
		return out, true
	default:
		return nil, false
	}
}

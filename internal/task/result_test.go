package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSingleLabelValidateInRange(t *testing.T) {
	t.Parallel()

	c := NewLabelStrings("red", "green", "blue")
	for i, want := range []string{"red", "green", "blue"} {
		got, err := c.Validate(i)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestSingleLabelValidateRejectsOutOfRange(t *testing.T) {
	t.Parallel()

	c := NewLabelStrings("red", "green")
	_, err := c.Validate(2)
	assert.Error(t, err)
	_, err = c.Validate(-1)
	assert.Error(t, err)
}

func TestSingleLabelValidateRejectsNonInteger(t *testing.T) {
	t.Parallel()

	c := NewLabelStrings("red", "green")
	_, err := c.Validate("red")
	assert.Error(t, err)
	_, err = c.Validate(1.5)
	assert.Error(t, err)
}

func TestSingleLabelAcceptsIntegralFloat(t *testing.T) {
	t.Parallel()

	// JSON decoding hands numbers over as float64.
	c := NewLabelStrings("red", "green")
	got, err := c.Validate(float64(1))
	require.NoError(t, err)
	assert.Equal(t, "green", got)
}

func TestMultiLabelValidatePreservesOrder(t *testing.T) {
	t.Parallel()

	c, err := NewLabels([]any{[]any{"a", "b", "c"}})
	require.NoError(t, err)
	require.True(t, c.Multi)

	got, err := c.Validate([]any{2, 0})
	require.NoError(t, err)
	assert.Equal(t, []any{"c", "a"}, got)
}

func TestMultiLabelValidateRejections(t *testing.T) {
	t.Parallel()

	c, err := NewLabels([]any{[]any{"a", "b", "c"}})
	require.NoError(t, err)

	cases := map[string]any{
		"empty list":   []any{},
		"duplicate":    []any{1, 1},
		"out of range": []any{0, 3},
		"non-list":     1,
		"non-integer":  []any{"a"},
	}
	for name, raw := range cases {
		_, err := c.Validate(raw)
		assert.Error(t, err, name)
	}
}

type severity int

const (
	sevLow severity = iota
	sevHigh
)

func TestEnumTypedLabelsValidateToMember(t *testing.T) {
	t.Parallel()

	c, err := NewLabels([]any{sevLow, sevHigh})
	require.NoError(t, err)

	got, err := c.Validate(1)
	require.NoError(t, err)
	// Identity against the caller's own constant must hold.
	assert.Equal(t, sevHigh, got)
}

func TestWireTypes(t *testing.T) {
	t.Parallel()

	single := NewLabelStrings("a", "b")
	assert.Equal(t, "int", single.WireType())

	multi, err := NewLabels([]any{[]any{"a", "b"}})
	require.NoError(t, err)
	assert.Equal(t, "list[int]", multi.WireType())

	assert.Equal(t, "string", Open{}.WireType())
}

func TestDescribeListsIndexMapping(t *testing.T) {
	t.Parallel()

	c := NewLabelStrings("yes", "no")
	desc := c.Describe()
	assert.Contains(t, desc, "0: yes")
	assert.Contains(t, desc, "1: no")
}

func TestNewLabelsRejectsEmpty(t *testing.T) {
	t.Parallel()

	_, err := NewLabels(nil)
	assert.Error(t, err)
	_, err = NewLabels([]any{[]any{}})
	assert.Error(t, err)
}

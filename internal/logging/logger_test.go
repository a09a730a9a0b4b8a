package logging

import "testing"

type countingLogger struct {
	calls int
}

func (c *countingLogger) Debug(string, ...any) { c.calls++ }
func (c *countingLogger) Info(string, ...any)  { c.calls++ }
func (c *countingLogger) Warn(string, ...any)  { c.calls++ }
func (c *countingLogger) Error(string, ...any) { c.calls++ }

func TestOrNopNilInterface(t *testing.T) {
	t.Parallel()

	logger := OrNop(nil)
	logger.Info("must not panic")
}

func TestOrNopNilPointer(t *testing.T) {
	t.Parallel()

	var typed *countingLogger
	logger := OrNop(typed)
	logger.Warn("must not panic")
}

func TestMultiFansOut(t *testing.T) {
	t.Parallel()

	a := &countingLogger{}
	b := &countingLogger{}
	logger := Multi(a, nil, b)
	logger.Info("hello")
	logger.Error("world")

	if a.calls != 2 || b.calls != 2 {
		t.Fatalf("expected both loggers to receive 2 calls, got %d and %d", a.calls, b.calls)
	}
}

func TestMultiFlattensNested(t *testing.T) {
	t.Parallel()

	a := &countingLogger{}
	inner := Multi(a, a)
	outer := Multi(inner)
	ml, ok := outer.(*multiLogger)
	if !ok {
		t.Fatalf("expected *multiLogger, got %T", outer)
	}
	if len(ml.loggers) != 2 {
		t.Fatalf("expected nested loggers flattened to 2, got %d", len(ml.loggers))
	}
}

package stream_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weft/internal/agentrun"
	"weft/internal/events"
	"weft/internal/logging"
	"weft/internal/stream"
	"weft/internal/tools"
)

func textEvents(deltas ...string) []agentrun.Event {
	evs := []agentrun.Event{
		{Kind: agentrun.KindPartStart, Index: 0, Part: agentrun.Part{Type: agentrun.PartText, Text: deltas[0]}},
	}
	for _, d := range deltas[1:] {
		evs = append(evs, agentrun.Event{
			Kind: agentrun.KindPartDelta, Index: 0,
			Delta: agentrun.PartDelta{Text: d},
		})
	}
	evs = append(evs,
		agentrun.Event{Kind: agentrun.KindFinalResult},
		agentrun.Event{Kind: agentrun.KindEnd, ToolName: agentrun.DefaultOutputTool},
	)
	return evs
}

func TestTextStreamSnapshotEqualsConcatenation(t *testing.T) {
	t.Parallel()

	collector := &events.Collector{}
	tr := stream.NewTranslator(stream.Config{
		ActorName: "writer",
		Handler:   collector,
		Logger:    logging.Nop(),
	})

	run := agentrun.NewScriptedRun(textEvents("The ", "quick ", "brown ", "fox"), agentrun.Result{})
	require.NoError(t, tr.Drive(context.Background(), run.Stream()))

	deltas := collector.OfType("message-delta")
	require.Len(t, deltas, 4)

	var concat string
	for _, e := range deltas {
		concat += e.(events.MessageDelta).Delta
	}
	last := deltas[len(deltas)-1].(events.MessageDelta)
	assert.Equal(t, "The quick brown fox", concat)
	assert.Equal(t, concat, last.Snapshot)
	// The final-result sentinel and default output-tool end produce nothing.
	assert.Empty(t, collector.OfType("tool-call"))
	assert.Empty(t, collector.OfType("end-turn-tool-result"))
	assert.Equal(t, 0, tr.SuppressedErrors())
}

func TestToolCallStartAndDeltasEmitExactlyOneCallEvent(t *testing.T) {
	t.Parallel()

	lookup := tools.Tool{Name: "lookup"}
	resolver := tools.NewResolver()
	resolver.AddNative(lookup)

	collector := &events.Collector{}
	tr := stream.NewTranslator(stream.Config{
		ActorName: "writer",
		Resolver:  resolver,
		Handler:   collector,
		Logger:    logging.Nop(),
	})

	evs := []agentrun.Event{
		{Kind: agentrun.KindPartStart, Index: 0, Part: agentrun.Part{
			Type: agentrun.PartToolCall, ToolName: "look", ToolCallID: "call-1",
		}},
		{Kind: agentrun.KindPartDelta, Index: 0, Delta: agentrun.PartDelta{ToolName: "up", Arguments: `{"q":`}},
		{Kind: agentrun.KindPartDelta, Index: 0, Delta: agentrun.PartDelta{Arguments: `"go"}`}},
		{Kind: agentrun.KindToolCall, ToolName: "lookup", CallID: "call-1", Arguments: `{"q":"go"}`},
		{Kind: agentrun.KindToolResult, ToolName: "lookup", CallID: "call-1", Content: "found"},
		{Kind: agentrun.KindEnd, ToolName: agentrun.DefaultOutputTool},
	}
	for _, ev := range evs {
		tr.Translate(ev)
	}

	calls := collector.OfType("tool-call")
	require.Len(t, calls, 1, "part start + deltas must not double count the call")
	call := calls[0].(events.ToolCall)
	assert.Equal(t, tools.OriginNative, call.Origin)
	assert.Equal(t, "call-1", call.CallID)
	assert.Equal(t, `{"q":"go"}`, call.Arguments)

	results := collector.OfType("tool-result")
	require.Len(t, results, 1)
	assert.Equal(t, "found", results[0].(events.ToolResult).Content)
}

func TestEndTurnToolRecoversCallIDByName(t *testing.T) {
	t.Parallel()

	done := tools.Tool{Name: "mark_done"}
	resolver := tools.NewResolver()
	resolver.AddEndTurn(done)

	collector := &events.Collector{}
	tr := stream.NewTranslator(stream.Config{
		ActorName: "writer",
		Resolver:  resolver,
		Handler:   collector,
		Logger:    logging.Nop(),
	})

	evs := []agentrun.Event{
		{Kind: agentrun.KindPartStart, Index: 0, Part: agentrun.Part{
			Type: agentrun.PartToolCall, ToolName: "mark_done", ToolCallID: "call-9",
		}},
		{Kind: agentrun.KindToolCall, ToolName: "mark_done", CallID: "call-9", Arguments: `{}`},
		{Kind: agentrun.KindEnd, ToolName: "mark_done"},
	}
	for _, ev := range evs {
		tr.Translate(ev)
	}

	ends := collector.OfType("end-turn-tool-result")
	require.Len(t, ends, 1)
	end := ends[0].(events.EndTurnToolResult)
	assert.Equal(t, "call-9", end.CallID)
	require.NotNil(t, end.Handle)
	assert.Equal(t, "mark_done", end.Handle.Definition().Name)
}

func TestUnresolvedToolNameForwardedWithNilHandle(t *testing.T) {
	t.Parallel()

	collector := &events.Collector{}
	tr := stream.NewTranslator(stream.Config{Handler: collector, Logger: logging.Nop()})

	tr.Translate(agentrun.Event{Kind: agentrun.KindToolCall, ToolName: "ghost", CallID: "call-2"})

	calls := collector.OfType("tool-call")
	require.Len(t, calls, 1)
	call := calls[0].(events.ToolCall)
	assert.Equal(t, tools.OriginUnknown, call.Origin)
	assert.Nil(t, call.Handle)
}

func TestMalformedArgumentsRepaired(t *testing.T) {
	t.Parallel()

	collector := &events.Collector{}
	tr := stream.NewTranslator(stream.Config{Handler: collector, Logger: logging.Nop()})

	tr.Translate(agentrun.Event{
		Kind: agentrun.KindToolCall, ToolName: "ghost", CallID: "call-3",
		Arguments: `{"q": "go"`,
	})

	call := collector.OfType("tool-call")[0].(events.ToolCall)
	assert.JSONEq(t, `{"q":"go"}`, call.Arguments)
}

func TestTranslationErrorSuppressedStreamContinues(t *testing.T) {
	t.Parallel()

	collector := &events.Collector{}
	tr := stream.NewTranslator(stream.Config{Handler: collector, Logger: logging.Nop()})

	// Delta for a part that never started is a translation error, not fatal.
	tr.Translate(agentrun.Event{Kind: agentrun.KindPartDelta, Index: 7, Delta: agentrun.PartDelta{Text: "x"}})
	tr.Translate(agentrun.Event{Kind: agentrun.KindPartStart, Index: 0, Part: agentrun.Part{
		Type: agentrun.PartText, Text: "ok",
	}})

	assert.Equal(t, 1, tr.SuppressedErrors())
	assert.Len(t, collector.OfType("message-delta"), 1)
}

func TestEventsAfterEndIgnored(t *testing.T) {
	t.Parallel()

	collector := &events.Collector{}
	tr := stream.NewTranslator(stream.Config{Handler: collector, Logger: logging.Nop()})

	tr.Translate(agentrun.Event{Kind: agentrun.KindEnd, ToolName: agentrun.DefaultOutputTool})
	tr.Translate(agentrun.Event{Kind: agentrun.KindPartStart, Index: 0, Part: agentrun.Part{
		Type: agentrun.PartText, Text: "late",
	}})

	assert.Empty(t, collector.Events)
}

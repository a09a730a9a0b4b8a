package stream

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/kaptinlin/jsonrepair"

	"weft/internal/agentrun"
	"weft/internal/events"
	"weft/internal/logging"
	"weft/internal/thread"
	"weft/internal/tools"
)

// Translator converts agent-run events into internal events and forwards
// them to a handler. One translator serves one run.
type Translator struct {
	actorName string
	resolver  *tools.Resolver
	handler   events.Handler
	logger    logging.Logger
	acc       *Accumulator

	suppressed int
	ended      bool
}

// Config configures a Translator.
type Config struct {
	ActorName string
	Resolver  *tools.Resolver
	Handler   events.Handler
	Logger    logging.Logger
}

// NewTranslator builds a translator for one run.
func NewTranslator(cfg Config) *Translator {
	resolver := cfg.Resolver
	if resolver == nil {
		resolver = tools.NewResolver()
	}
	handler := cfg.Handler
	if handler == nil {
		handler = events.HandlerFunc(func(events.Event) {})
	}
	return &Translator{
		actorName: cfg.ActorName,
		resolver:  resolver,
		handler:   handler,
		logger:    logging.OrNop(cfg.Logger),
		acc:       NewAccumulator(),
	}
}

// SuppressedErrors reports how many events failed translation and were
// dropped.
func (t *Translator) SuppressedErrors() int { return t.suppressed }

// Drive pulls the stream to exhaustion, translating every event. Stream
// errors other than io.EOF abort the run; translation errors do not.
func (t *Translator) Drive(ctx context.Context, s agentrun.Stream) error {
	for {
		ev, err := s.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		t.Translate(ev)
	}
}

// Translate applies one event. Errors and panics are confined to the single
// event: they are logged, counted, and the stream continues.
func (t *Translator) Translate(ev agentrun.Event) {
	defer func() {
		if r := recover(); r != nil {
			t.suppressed++
			t.logger.Error("Panic translating %s event: %v", ev.Kind, r)
		}
	}()
	if err := t.translate(ev); err != nil {
		t.suppressed++
		t.logger.Error("Failed to translate %s event: %v", ev.Kind, err)
	}
}

func (t *Translator) translate(ev agentrun.Event) error {
	if t.ended {
		return nil
	}
	switch ev.Kind {
	case agentrun.KindUserPrompt:
		if ev.Content != "" {
			t.handler.HandleEvent(events.UserMessage{
				Message: thread.Message{Role: thread.RoleUser, Content: ev.Content},
			})
		}
		return nil

	case agentrun.KindPartStart:
		snap := t.acc.Start(ev.Index, ev.Part)
		// Tool-call parts stay silent until the runtime reports the call
		// with complete arguments.
		if snap.Type == agentrun.PartText && snap.Text != "" {
			t.emitDelta(snap.Text, snap.Text)
		}
		return nil

	case agentrun.KindPartDelta:
		snap, err := t.acc.Apply(ev.Index, ev.Delta)
		if err != nil {
			return err
		}
		if snap.Type == agentrun.PartText && ev.Delta.Text != "" {
			t.emitDelta(ev.Delta.Text, snap.Text)
		}
		return nil

	case agentrun.KindFinalResult:
		// Output shaping finished. Nothing externally meaningful.
		return nil

	case agentrun.KindToolCall:
		origin, handle := t.resolve(ev.ToolName)
		t.handler.HandleEvent(events.ToolCall{
			ActorName: t.actorName,
			Origin:    origin,
			Handle:    handle,
			Name:      ev.ToolName,
			CallID:    ev.CallID,
			Arguments: normalizeArguments(ev.Arguments),
		})
		return nil

	case agentrun.KindToolResult:
		origin, handle := t.resolve(ev.ToolName)
		t.handler.HandleEvent(events.ToolResult{
			ActorName: t.actorName,
			Origin:    origin,
			Handle:    handle,
			Name:      ev.ToolName,
			CallID:    ev.CallID,
			Content:   ev.Content,
			IsError:   ev.IsError,
		})
		return nil

	case agentrun.KindToolRetry:
		t.handler.HandleEvent(events.ToolRetry{
			ActorName: t.actorName,
			Name:      ev.ToolName,
			CallID:    ev.CallID,
			Content:   ev.Content,
		})
		return nil

	case agentrun.KindEnd:
		t.ended = true
		if ev.ToolName == agentrun.DefaultOutputTool || ev.ToolName == "" {
			// Final text already streamed through deltas.
			return nil
		}
		callID := ev.CallID
		if callID == "" {
			if snap, ok := t.acc.FindToolCall(ev.ToolName); ok {
				callID = snap.ToolCallID
			} else {
				t.logger.Warn("No tool-call part found for end tool %q", ev.ToolName)
			}
		}
		origin, handle := t.resolve(ev.ToolName)
		if origin != tools.OriginEndTurn {
			t.logger.Warn("End tool %q did not resolve to a turn-ending tool (origin %s)", ev.ToolName, origin)
		}
		t.handler.HandleEvent(events.EndTurnToolResult{
			ActorName: t.actorName,
			Handle:    handle,
			Name:      ev.ToolName,
			CallID:    callID,
		})
		return nil

	default:
		t.logger.Warn("Unknown run event kind %q ignored", ev.Kind)
		return nil
	}
}

func (t *Translator) emitDelta(delta, snapshot string) {
	t.handler.HandleEvent(events.MessageDelta{
		ActorName: t.actorName,
		Delta:     delta,
		Snapshot:  snapshot,
	})
}

// resolve maps a tool name to its origin and handle. Unresolved names are
// logged and forwarded with a nil handle rather than dropped.
func (t *Translator) resolve(name string) (tools.Origin, tools.Handle) {
	origin, handle, ok := t.resolver.Resolve(name)
	if !ok {
		t.logger.Warn("Tool name %q resolved against no known origin", name)
		return tools.OriginUnknown, nil
	}
	return origin, handle
}

// normalizeArguments repairs argument JSON that arrived truncated or
// malformed from fragment accumulation. Unrepairable input passes through
// unchanged so handlers still see what the model produced.
func normalizeArguments(raw string) string {
	if raw == "" || json.Valid([]byte(raw)) {
		return raw
	}
	repaired, err := jsonrepair.JSONRepair(raw)
	if err != nil {
		return raw
	}
	return repaired
}

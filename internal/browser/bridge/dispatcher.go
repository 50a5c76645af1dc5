package bridge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/bridgecheck/api/schemas"
	"github.com/xkilldash9x/bridgecheck/internal/fixtures"
)

// event is the payload the page reports through the binding.
type event struct {
	Kind    schemas.BridgeCallKind `json:"kind"`
	Channel string                 `json:"channel"`
	Args    jsonRaw                `json:"args"`
	ID      int64                  `json:"id"`
	Handled bool                   `json:"handled"`
	Reply   bool                   `json:"reply"`
}

// jsonRaw keeps args undecoded; fixtures decode what they need.
type jsonRaw []byte

func (r *jsonRaw) UnmarshalJSON(b []byte) error {
	*r = append((*r)[:0], b...)
	return nil
}

// Evaluator runs a JS expression in the page the dispatcher serves.
type Evaluator func(ctx context.Context, expression string) error

// CallLog records every call the page made, in arrival order.
type CallLog struct {
	mu    sync.RWMutex
	calls []schemas.BridgeCall
	now   func() time.Time
}

// NewCallLog returns an empty log.
func NewCallLog() *CallLog {
	return &CallLog{now: time.Now}
}

func (l *CallLog) add(c schemas.BridgeCall) schemas.BridgeCall {
	l.mu.Lock()
	defer l.mu.Unlock()
	c.Seq = len(l.calls) + 1
	c.At = l.now()
	l.calls = append(l.calls, c)
	return c
}

// Calls returns a snapshot.
func (l *CallLog) Calls() []schemas.BridgeCall {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]schemas.BridgeCall, len(l.calls))
	copy(out, l.calls)
	return out
}

// Count returns how many calls were made on channel.
func (l *CallLog) Count(channel string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := 0
	for _, c := range l.calls {
		if c.Channel == channel {
			n++
		}
	}
	return n
}

// Dispatcher turns binding payloads into call log entries and answers
// dynamic invokes from the spec.
type Dispatcher struct {
	spec   *fixtures.Spec
	log    *CallLog
	logger *zap.Logger
	eval   Evaluator

	// ctx bounds reply goroutines; cancelled by Close.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	// mu orders wg.Add against Close's Wait.
	mu     sync.Mutex
	closed bool
	// replyTimeout caps each reply evaluation.
	replyTimeout time.Duration
}

// NewDispatcher creates a dispatcher answering from spec. eval is used to
// deliver dynamic results back into the page.
func NewDispatcher(spec *fixtures.Spec, eval Evaluator, logger *zap.Logger) *Dispatcher {
	if spec == nil {
		spec = fixtures.NewSpec()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		spec:         spec,
		log:          NewCallLog(),
		logger:       logger.Named("bridge"),
		eval:         eval,
		ctx:          ctx,
		cancel:       cancel,
		replyTimeout: 5 * time.Second,
	}
}

// Log exposes the call log.
func (d *Dispatcher) Log() *CallLog { return d.log }

// Handle processes one binding payload. It never blocks on the page: replies
// are delivered from a goroutine, since it is called from the CDP event loop.
func (d *Dispatcher) Handle(payload string) error {
	var ev event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return fmt.Errorf("malformed bridge payload: %w", err)
	}
	if ev.Kind != schemas.BridgeInvoke && ev.Kind != schemas.BridgeSend {
		return fmt.Errorf("unknown bridge call kind %q", ev.Kind)
	}

	var args []byte
	if len(ev.Args) > 0 && string(ev.Args) != "null" {
		args = ev.Args
	}
	call := d.log.add(schemas.BridgeCall{
		Kind:    ev.Kind,
		Channel: ev.Channel,
		Args:    args,
		Handled: ev.Handled,
	})
	d.logger.Debug("Bridge call",
		zap.Int("seq", call.Seq),
		zap.String("kind", string(call.Kind)),
		zap.String("channel", call.Channel),
		zap.ByteString("args", args),
		zap.Bool("handled", call.Handled),
	)
	if !call.Handled {
		d.logger.Info("Unmapped bridge channel answered with empty collection", zap.String("channel", call.Channel))
	}

	if !ev.Reply || ev.Kind != schemas.BridgeInvoke {
		return nil
	}

	value, _ := d.spec.Resolve(ev.Channel, args)
	encoded, err := json.Marshal(value)
	if err != nil {
		// The page falls back to [] after its own timeout.
		return fmt.Errorf("failed to encode reply for %s: %w", ev.Channel, err)
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		// The page falls back to [] after its own timeout.
		return nil
	}
	d.wg.Add(1)
	d.mu.Unlock()
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(d.ctx, d.replyTimeout)
		defer cancel()
		if err := d.eval(ctx, ResolveExpression(ev.ID, encoded)); err != nil && d.ctx.Err() == nil {
			d.logger.Warn("Failed to deliver bridge reply", zap.String("channel", ev.Channel), zap.Int64("id", ev.ID), zap.Error(err))
		}
	}()
	return nil
}

// Close cancels outstanding replies and waits for their goroutines. Payloads
// handled afterwards are still logged but never answered.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.cancel()
	d.wg.Wait()
}

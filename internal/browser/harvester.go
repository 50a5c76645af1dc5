// internal/browser/harvester.go
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/log"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/bridgecheck/api/schemas"
)

// BindingHandler receives the payload of every call to the session's binding.
type BindingHandler func(payload string) error

// Harvester listens to one tab's events. It keeps the console, exception and
// failed-request evidence, hands binding payloads to the bridge dispatcher,
// and dismisses JavaScript dialogs so they cannot stall a run.
type Harvester struct {
	logger      *zap.Logger
	bindingName string
	onBinding   BindingHandler

	// The context for the browser tab this harvester is attached to.
	sessionCtx     context.Context
	listenerCtx    context.Context
	cancelListener context.CancelFunc

	requestURLs map[network.RequestID]string
	consoleLogs []schemas.ConsoleLog
	dialogs     int
	lock        sync.RWMutex

	// Tracks dialog dismissals still talking to the browser.
	dialogWG sync.WaitGroup

	isStarted bool
}

// NewHarvester creates a harvester for a session. Binding calls named
// bindingName are forwarded to onBinding.
func NewHarvester(sessionCtx context.Context, logger *zap.Logger, bindingName string, onBinding BindingHandler) *Harvester {
	return &Harvester{
		sessionCtx:  sessionCtx,
		logger:      logger.Named("harvester"),
		bindingName: bindingName,
		onBinding:   onBinding,
		requestURLs: make(map[network.RequestID]string),
		consoleLogs: make([]schemas.ConsoleLog, 0),
	}
}

// Start registers the listener and enables the CDP domains it relies on.
func (h *Harvester) Start(ctx context.Context) error {
	h.lock.Lock()
	if h.isStarted {
		h.lock.Unlock()
		return nil
	}
	// Derived from the session, so the listener dies with the tab.
	h.listenerCtx, h.cancelListener = context.WithCancel(h.sessionCtx)
	h.isStarted = true
	h.lock.Unlock()

	chromedp.ListenTarget(h.listenerCtx, h.dispatch)

	// The lock stays free here: handlers for events fired by enabling the
	// domains run on the same loop that delivers the responses.
	runCtx, cancel := CombineContext(h.sessionCtx, ctx)
	defer cancel()
	if err := chromedp.Run(runCtx,
		network.Enable(),
		runtime.Enable(),
		log.Enable(),
	); err != nil {
		h.lock.Lock()
		h.isStarted = false
		h.cancelListener()
		h.lock.Unlock()
		return fmt.Errorf("failed to enable event domains: %w", err)
	}

	h.logger.Debug("Harvester started and listening for events.")
	return nil
}

// dispatch runs on chromedp's event loop and must never block on the browser.
func (h *Harvester) dispatch(ev interface{}) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("Recovered from panic in event handler.", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()
	switch e := ev.(type) {
	case *runtime.EventBindingCalled:
		h.handleBindingCalled(e)
	case *runtime.EventConsoleAPICalled:
		h.handleConsoleAPICalled(e)
	case *runtime.EventExceptionThrown:
		h.handleExceptionThrown(e)
	case *log.EventEntryAdded:
		h.handleLogEntryAdded(e)
	case *network.EventRequestWillBeSent:
		h.handleRequestWillBeSent(e)
	case *network.EventLoadingFailed:
		h.handleLoadingFailed(e)
	case *page.EventJavascriptDialogOpening:
		h.handleDialogOpening(e)
	}
}

// Stop detaches the listener, waits for pending dialog dismissals and returns
// the console evidence gathered so far.
func (h *Harvester) Stop(ctx context.Context) []schemas.ConsoleLog {
	h.lock.Lock()
	if !h.isStarted {
		h.lock.Unlock()
		return h.ConsoleLogs()
	}
	h.isStarted = false
	h.cancelListener()
	h.lock.Unlock()

	done := make(chan struct{})
	go func() {
		h.dialogWG.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		h.logger.Warn("Timed out waiting for dialog handling to finish.", zap.Error(ctx.Err()))
	}

	return h.ConsoleLogs()
}

// ConsoleLogs returns a snapshot of the collected entries in arrival order.
func (h *Harvester) ConsoleLogs() []schemas.ConsoleLog {
	h.lock.RLock()
	defer h.lock.RUnlock()
	logs := make([]schemas.ConsoleLog, len(h.consoleLogs))
	copy(logs, h.consoleLogs)
	return logs
}

// DialogsDismissed counts dialogs closed on the page's behalf.
func (h *Harvester) DialogsDismissed() int {
	h.lock.RLock()
	defer h.lock.RUnlock()
	return h.dialogs
}

func (h *Harvester) appendLog(entry schemas.ConsoleLog) {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.consoleLogs = append(h.consoleLogs, entry)
}

// -- Bridge --

func (h *Harvester) handleBindingCalled(e *runtime.EventBindingCalled) {
	if e.Name != h.bindingName || h.onBinding == nil {
		return
	}
	if err := h.onBinding(e.Payload); err != nil {
		h.logger.Warn("Rejected bridge payload.", zap.Error(err))
		h.appendLog(schemas.ConsoleLog{
			Type:      "error",
			Timestamp: time.Now(),
			Text:      err.Error(),
			Source:    "bridge",
		})
	}
}

// -- Console and Log Handlers --

func (h *Harvester) handleConsoleAPICalled(e *runtime.EventConsoleAPICalled) {
	var textBuilder strings.Builder
	for i, arg := range e.Args {
		if i > 0 {
			textBuilder.WriteString(" ")
		}
		var val interface{}
		if arg.Value != nil && json.Unmarshal(arg.Value, &val) == nil {
			textBuilder.WriteString(fmt.Sprintf("%v", val))
		} else if arg.Description != "" {
			textBuilder.WriteString(arg.Description)
		} else {
			textBuilder.WriteString(fmt.Sprintf("[%s]", arg.Type))
		}
	}

	entry := schemas.ConsoleLog{
		Type:   string(e.Type),
		Text:   textBuilder.String(),
		Source: "console-api",
	}
	if e.Timestamp != nil {
		entry.Timestamp = e.Timestamp.Time()
	}
	if e.StackTrace != nil && len(e.StackTrace.CallFrames) > 0 {
		entry.URL = e.StackTrace.CallFrames[0].URL
		entry.Line = int64(e.StackTrace.CallFrames[0].LineNumber)
	}
	h.appendLog(entry)
}

func (h *Harvester) handleLogEntryAdded(e *log.EventEntryAdded) {
	if e.Entry == nil {
		return
	}
	entry := schemas.ConsoleLog{
		Type:   string(e.Entry.Level),
		Text:   e.Entry.Text,
		Source: string(e.Entry.Source),
		URL:    e.Entry.URL,
		Line:   int64(e.Entry.LineNumber),
	}
	if e.Entry.Timestamp != nil {
		entry.Timestamp = e.Entry.Timestamp.Time()
	}
	h.appendLog(entry)
}

func (h *Harvester) handleExceptionThrown(e *runtime.EventExceptionThrown) {
	if e.ExceptionDetails == nil {
		return
	}
	// The description carries the stack trace when there is one.
	text := e.ExceptionDetails.Text
	if e.ExceptionDetails.Exception != nil && e.ExceptionDetails.Exception.Description != "" {
		text = e.ExceptionDetails.Exception.Description
	}

	entry := schemas.ConsoleLog{
		Type:   "exception",
		Text:   text,
		Source: "runtime",
		URL:    e.ExceptionDetails.URL,
		Line:   int64(e.ExceptionDetails.LineNumber),
	}
	if e.Timestamp != nil {
		entry.Timestamp = e.Timestamp.Time()
	}
	h.logger.Debug("Page exception", zap.String("text", text))
	h.appendLog(entry)
}

// -- Network --

func (h *Harvester) handleRequestWillBeSent(e *network.EventRequestWillBeSent) {
	if e.Request == nil {
		return
	}
	h.lock.Lock()
	defer h.lock.Unlock()
	h.requestURLs[e.RequestID] = e.Request.URL
}

func (h *Harvester) handleLoadingFailed(e *network.EventLoadingFailed) {
	h.lock.Lock()
	url := h.requestURLs[e.RequestID]
	delete(h.requestURLs, e.RequestID)
	h.lock.Unlock()

	if e.Canceled {
		return
	}
	entry := schemas.ConsoleLog{
		Type:   "error",
		Text:   fmt.Sprintf("request failed: %s", e.ErrorText),
		Source: "network",
		URL:    url,
	}
	if e.Timestamp != nil {
		entry.Timestamp = e.Timestamp.Time()
	}
	h.appendLog(entry)
}

// -- Dialogs --

func (h *Harvester) handleDialogOpening(e *page.EventJavascriptDialogOpening) {
	h.lock.Lock()
	h.dialogs++
	listenerCtx := h.listenerCtx
	h.lock.Unlock()

	h.appendLog(schemas.ConsoleLog{
		Type:      "dialog",
		Timestamp: time.Now(),
		Text:      fmt.Sprintf("%s: %s", e.Type, e.Message),
		Source:    "page",
		URL:       e.URL,
	})

	if listenerCtx == nil {
		return
	}
	// Answering from the event loop would deadlock it.
	h.dialogWG.Add(1)
	go func() {
		defer h.dialogWG.Done()
		ctx, cancel := context.WithTimeout(listenerCtx, 5*time.Second)
		defer cancel()
		if err := chromedp.Run(ctx, page.HandleJavaScriptDialog(true)); err != nil && listenerCtx.Err() == nil {
			h.logger.Warn("Failed to dismiss dialog.", zap.String("type", string(e.Type)), zap.Error(err))
		}
	}()
}

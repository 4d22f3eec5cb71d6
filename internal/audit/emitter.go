// Package audit provides the append-only audit log service and the
// fire-and-forget emitter the other services record events through.
package audit

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/ryanwelchtech/iamd-threat-detection-platform/pkg/logger"
)

// Emitter sends audit events to the audit-log service. Delivery is
// best-effort: each event gets a single timeout-bounded attempt on a
// background goroutine and failures are logged and dropped, never
// surfaced to the caller.
type Emitter struct {
	baseURL       string
	sourceService string
	client        *http.Client
	logger        *logger.Logger
}

// NewEmitter creates a new audit emitter. An empty baseURL disables
// emission entirely.
func NewEmitter(baseURL, sourceService string, timeout time.Duration, log *logger.Logger) *Emitter {
	return &Emitter{
		baseURL:       baseURL,
		sourceService: sourceService,
		client:        &http.Client{Timeout: timeout},
		logger:        log.Named("audit-emitter"),
	}
}

// Emit records an audit event asynchronously. It returns immediately;
// the POST happens on a background goroutine.
func (e *Emitter) Emit(actor, action string, details map[string]any) {
	if e.baseURL == "" {
		return
	}

	event := &Event{
		EventID:       uuid.NewString(),
		TsUTC:         time.Now().UTC(),
		SourceService: e.sourceService,
		Actor:         actor,
		Action:        action,
		Details:       details,
	}

	go e.send(event)
}

func (e *Emitter) send(event *Event) {
	body, err := json.Marshal(event)
	if err != nil {
		e.logger.Debug("Failed to marshal audit event", logger.Error(err))
		return
	}

	resp, err := e.client.Post(e.baseURL+"/api/v1/audit/events", "application/json", bytes.NewReader(body))
	if err != nil {
		e.logger.Debug("Audit event delivery failed",
			logger.Error(err),
			logger.String("action", event.Action))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		e.logger.Debug("Audit sink rejected event",
			logger.Int("status", resp.StatusCode),
			logger.String("action", event.Action))
	}
}

package api

import (
	"github.com/ryanwelchtech/iamd-threat-detection-platform/internal/fusion"
	"github.com/ryanwelchtech/iamd-threat-detection-platform/internal/scoring"
	"github.com/ryanwelchtech/iamd-threat-detection-platform/internal/websocket"
	"github.com/ryanwelchtech/iamd-threat-detection-platform/pkg/logger"
)

// WebSocketHandler handles incoming WebSocket messages from COP clients.
// The snapshot it serves spans both the fusion and scoring services.
type WebSocketHandler struct {
	fusionService  *fusion.Service
	scoringService *scoring.Service
	logger         *logger.Logger
}

// NewWebSocketHandler creates a new WebSocket message handler
func NewWebSocketHandler(fusionService *fusion.Service, scoringService *scoring.Service, log *logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		fusionService:  fusionService,
		scoringService: scoringService,
		logger:         log.Named("cop-ws-handler"),
	}
}

// HandleMessage handles incoming WebSocket messages
func (h *WebSocketHandler) HandleMessage(client *websocket.Client, messageType string, data map[string]any) error {
	switch messageType {
	case websocket.MessageTypeSnapshotRequest:
		return h.handleSnapshotRequest(client)
	case websocket.MessageTypeFilterUpdate:
		return h.handleFilterUpdate(client, data)
	default:
		h.logger.Debug("Unhandled message type", logger.String("type", messageType))
		return nil
	}
}

// handleSnapshotRequest sends the current tracks and threats to one client
func (h *WebSocketHandler) handleSnapshotRequest(client *websocket.Client) error {
	h.logger.Debug("Handling snapshot request")

	tracks := h.fusionService.ListTracks()
	threats := h.scoringService.ListThreats()

	message := &websocket.Message{
		Type: websocket.MessageTypeSnapshotResponse,
		Data: map[string]any{
			"tracks":  tracks,
			"threats": threats,
		},
	}

	if !client.SendMessage(message) {
		h.logger.Warn("Client send channel full, dropping snapshot")
	}
	return nil
}

// handleFilterUpdate applies contact-type filter preferences for one client
func (h *WebSocketHandler) handleFilterUpdate(client *websocket.Client, data map[string]any) error {
	var filters websocket.ClientFilters

	if showAir, ok := data["show_air"].(bool); ok {
		filters.ShowAir = showAir
	}
	if showSea, ok := data["show_sea"].(bool); ok {
		filters.ShowSea = showSea
	}
	if showBenign, ok := data["show_benign"].(bool); ok {
		filters.ShowBenign = showBenign
	}
	if showUnknown, ok := data["show_unknown"].(bool); ok {
		filters.ShowUnknown = showUnknown
	}

	client.UpdateFilters(&filters)

	h.logger.Info("Updated client filters",
		logger.Bool("show_air", filters.ShowAir),
		logger.Bool("show_sea", filters.ShowSea),
		logger.Bool("show_benign", filters.ShowBenign),
		logger.Bool("show_unknown", filters.ShowUnknown))

	return h.handleSnapshotRequest(client)
}

package dashboard

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	wsReadLimit  = 4096
	wsWriteWait  = 5 * time.Second
	wsIdleExpiry = 10 * time.Minute
)

type liveAlertsMessage struct {
	Alerts []alertView `json:"alerts"`
	Error  string      `json:"error,omitempty"`
}

// handleWebSocket answers every slider reading with the alert set for it.
// Alerts need no model, so this keeps working while the model is unavailable.
func (d *Dashboard) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := d.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}
	defer conn.Close()

	d.clientsMu.Lock()
	d.clients[conn] = true
	d.clientsMu.Unlock()

	defer func() {
		d.clientsMu.Lock()
		delete(d.clients, conn)
		d.clientsMu.Unlock()
	}()

	conn.SetReadLimit(wsReadLimit)

	for {
		_ = conn.SetReadDeadline(time.Now().Add(wsIdleExpiry))
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Msg("Live alerts connection closed")
			}
			return
		}

		msg := d.liveAlerts(data)

		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteJSON(msg); err != nil {
			log.Debug().Err(err).Msg("Failed to write live alerts")
			return
		}
	}
}

func (d *Dashboard) liveAlerts(data []byte) liveAlertsMessage {
	var req vectorRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return liveAlertsMessage{Alerts: []alertView{}, Error: "invalid JSON: " + err.Error()}
	}
	v, err := req.vector()
	if err != nil {
		return liveAlertsMessage{Alerts: []alertView{}, Error: err.Error()}
	}
	alerts, err := d.evaluator.Alerts(v)
	if err != nil {
		return liveAlertsMessage{Alerts: []alertView{}, Error: err.Error()}
	}
	return liveAlertsMessage{Alerts: alertViews(alerts)}
}

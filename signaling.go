package main

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const DEFAULT_STATUS_INTERVAL = 250 * time.Millisecond

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// StatusStream pushes a status snapshot to the client every status interval until the
// client goes away or the server is shutting down.
func (api *MotorAPI) StatusStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("upgrade")
		return
	}
	defer conn.Close()

	interval := api.vehicle.Config().StatusInterval
	if interval <= 0 {
		interval = DEFAULT_STATUS_INTERVAL
	}

	// the client never sends anything useful, reading only notices it leaving
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := conn.WriteJSON(api.vehicle.Snapshot()); err != nil {
			log.WithError(err).Debug("status stream closed")
			return
		}

		select {
		case <-gone:
			return
		case <-api.done:
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
			return
		case <-ticker.C:
		}
	}
}

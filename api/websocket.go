package api

import (
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gorilla/sessions"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"github.com/tifye/kousaten/assert"
	"github.com/tifye/kousaten/stream"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const viewerIDSessionKey = "viewerID"

// handleWebsocketConn upgrades a viewer onto the stream hub. A viewer
// id is pinned in the session so a dropped connection resumes under
// the same identity.
func handleWebsocketConn(
	logger *log.Logger,
	hub *stream.Hub,
	newSessionCookie func(s *sessions.Session) (*http.Cookie, error),
) echo.HandlerFunc {
	assert.AssertNotNil(logger)
	assert.AssertNotNil(hub)

	return func(c echo.Context) error {
		sesh, err := session.Get("session", c)
		if err != nil {
			logger.Error("get session", "err", err)
		}

		// trigger save to ensure session has an ID
		if err := sesh.Save(c.Request(), c.Response()); err != nil {
			logger.Error("save session for ID", "err", err)
		}

		responseHeader := http.Header{}
		sessionCookie, err := newSessionCookie(sesh)
		if err != nil {
			logger.Error("new session cookie", "err", err)
		} else {
			assert.AssertNotNil(sessionCookie)
			responseHeader.Add("Set-Cookie", sessionCookie.String())
		}

		logger.Debug("upgrading to websocket connection")

		conn, err := upgrader.Upgrade(c.Response(), c.Request(), responseHeader)
		if err != nil {
			logger.Error(err)
			return err
		}
		defer conn.Close()

		write := func(id stream.ID, data []byte) {
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logger.Debug("ws write", "err", err, "id", id)
			}
		}

		var viewerID stream.ID
		if prev, ok := sesh.Values[viewerIDSessionKey].(uint32); ok {
			viewerID = prev
			if err := hub.Reconnect(viewerID, write); err != nil {
				// Same session opened a second tab; give it its own id.
				viewerID = hub.Connect(write)
			}
		} else {
			viewerID = hub.Connect(write)
			sesh.Values[viewerIDSessionKey] = uint32(viewerID)
			if err := sesh.Save(c.Request(), c.Response()); err != nil {
				logger.Error("save session viewer id", "err", err)
			}
		}
		defer hub.Disconnect(viewerID)

		logger.Debug("viewer connected", "viewerID", viewerID)

		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				logger.Debug("ws read", "err", err, "id", viewerID)
				break
			}

			if err = hub.ViewerMessage(viewerID, msg); err != nil {
				logger.Errorf("hub viewer message: %s", err)
				break
			}
		}

		return c.NoContent(http.StatusOK)
	}
}

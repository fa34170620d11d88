package server

import (
	"bytes"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"

	"github.com/ivlev/mockupwarp/internal/wizard"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	wsReadTimeout  = 60 * time.Second
	wsWriteTimeout = 10 * time.Second
	wizardLocalKey = "wizard"
)

// upgradeSession resolves the session before the websocket handshake so an
// unknown id is answered with a plain 404.
func (h *MockupHandler) upgradeSession(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	errHandler := NewErrorHandler(h.log)

	if !websocket.IsWebSocketUpgrade(ctx) {
		return errHandler.Handle(ctx, requestID, ErrWebSocketOnly, ctx.Path(), "websocket_upgrade")
	}
	wz, err := h.store.Get(ctx.Params("id"))
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "get_session")
	}
	ctx.Locals(wizardLocalKey, wz)
	return ctx.Next()
}

// handleSessionWebSocket applies JSON point updates and answers each one
// with the re-rendered frame as a binary PNG message.
func (h *MockupHandler) handleSessionWebSocket(c *websocket.Conn) {
	id := c.Params("id")
	wz, ok := c.Locals(wizardLocalKey).(*wizard.Wizard)
	if !ok {
		return
	}

	log := h.log.WithField("session_id", id)
	log.Info("Session WebSocket client connected")
	defer log.Info("Session WebSocket client disconnected")

	c.SetPingHandler(func(data string) error {
		if err := c.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second)); err != nil {
			log.Errorf("Error sending pong: %v", err)
		}
		return nil
	})

	if wz.Session().Ready() {
		if err := h.writeFrame(c, wz); err != nil {
			log.Errorf("Error writing initial frame: %v", err)
			return
		}
	}

	for {
		if err := c.SetReadDeadline(time.Now().Add(wsReadTimeout)); err != nil {
			log.Errorf("Error setting read deadline: %v", err)
			break
		}

		messageType, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Errorf("Session WebSocket error: %v", err)
			} else {
				log.Info("Session WebSocket connection closed")
			}
			break
		}

		if messageType != websocket.TextMessage {
			log.Warnf("Received unexpected message type: %d", messageType)
			continue
		}

		if err := applyMessage(wz, message); err != nil {
			log.WithFields(logrus.Fields{"message": string(message)}).Warnf("Rejected point update: %v", err)
			if writeErr := c.WriteJSON(map[string]string{"error": err.Error()}); writeErr != nil {
				log.Errorf("Error sending error response: %v", writeErr)
				break
			}
			continue
		}

		if err := h.writeFrame(c, wz); err != nil {
			log.Errorf("Error writing frame: %v", err)
			break
		}
	}
}

func applyMessage(wz *wizard.Wizard, message []byte) error {
	var msg wsMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		return err
	}
	if msg.Points != nil {
		return wz.SetPoints(*msg.Points)
	}
	if msg.Value == nil {
		return ErrBadPointFormat
	}
	return applyPoint(wz, msg.Corner, msg.Axis, *msg.Value)
}

func (h *MockupHandler) writeFrame(c *websocket.Conn, wz *wizard.Wizard) error {
	var buf bytes.Buffer
	if err := wz.Session().EncodePNG(&buf); err != nil {
		return c.WriteJSON(map[string]string{"error": err.Error()})
	}

	if err := c.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
		return err
	}
	if err := c.WriteMessage(websocket.BinaryMessage, buf.Bytes()); err != nil {
		return err
	}
	return c.SetWriteDeadline(time.Time{})
}

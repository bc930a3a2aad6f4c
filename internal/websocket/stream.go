package websocket

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/sirupsen/logrus"

	"github.com/recipecast/api/internal/apperr"
	"github.com/recipecast/api/internal/model"
	"github.com/recipecast/api/pkg/response"
)

const (
	pingInterval   = 30 * time.Second
	closeGrace     = 5 * time.Second
	sendBufferSize = 16
)

// closeFrame is queued after the final message to end the stream.
var closeFrame = []byte{}

// Poller runs the status loop for one job.
type Poller interface {
	Run(ctx context.Context, jobID string, emit func(*model.StatusResponse) error) (*model.StatusResponse, error)
}

// Stream pushes transcription status updates to a websocket client until
// the job settles.
type Stream struct {
	poller Poller
	log    *logrus.Entry
}

// NewStream creates a status stream backed by poller
func NewStream(poller Poller, log *logrus.Entry) *Stream {
	return &Stream{poller: poller, log: log}
}

// HandleConnection handles a WebSocket connection
func (s *Stream) HandleConnection(c *websocket.Conn, jobID string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log := s.log.WithField("job_id", jobID)
	log.Debug("status stream opened")
	defer log.Debug("status stream closed")

	send := make(chan []byte, sendBufferSize)

	go s.writeLoop(ctx, cancel, c, send)
	go s.pollLoop(ctx, jobID, send, log)

	// Reader loop
	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.WithError(err).Warn("websocket read failed")
			}
			return
		}

		var msg model.WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		if msg.Type == model.WSMessageTypePing {
			enqueue(ctx, send, encode(model.WSMessage{Type: model.WSMessageTypePong}))
		}
	}
}

func (s *Stream) pollLoop(ctx context.Context, jobID string, send chan<- []byte, log *logrus.Entry) {
	final, err := s.poller.Run(ctx, jobID, func(status *model.StatusResponse) error {
		msg := model.WSStatusMessage{Type: model.WSMessageTypeStatus, JobID: jobID, Status: status}
		if !enqueue(ctx, send, encode(msg)) {
			return ctx.Err()
		}
		return nil
	})

	switch {
	case ctx.Err() != nil:
		return
	case err != nil:
		_, code := response.Classify(err)
		enqueue(ctx, send, encode(model.WSErrorMessage{
			Type:  model.WSMessageTypeError,
			JobID: jobID,
			Error: model.WSError{Code: code, Message: apperr.UserMessage(err)},
		}))
	case final.Status == model.StatusError:
		enqueue(ctx, send, encode(model.WSErrorMessage{
			Type:  model.WSMessageTypeError,
			JobID: jobID,
			Error: model.WSError{Code: response.CodeProviderError, Message: final.Error},
		}))
	default:
		enqueue(ctx, send, encode(model.WSStatusMessage{
			Type:   model.WSMessageTypeComplete,
			JobID:  jobID,
			Status: final,
		}))
	}

	log.Debug("status stream finished")
	enqueue(ctx, send, closeFrame)
}

func (s *Stream) writeLoop(ctx context.Context, cancel context.CancelFunc, c *websocket.Conn, send <-chan []byte) {
	defer cancel()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case message := <-send:
			if len(message) == 0 {
				c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				// Give the client a moment to answer the close frame
				c.SetReadDeadline(time.Now().Add(closeGrace))
				return
			}
			if err := c.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func enqueue(ctx context.Context, send chan<- []byte, data []byte) bool {
	select {
	case send <- data:
		return true
	case <-ctx.Done():
		return false
	}
}

func encode(v interface{}) []byte {
	data, _ := json.Marshal(v)
	return data
}

package websocket

import (
	"errors"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/parlemonde/clap/model"
)

// session manages one authenticated connection: a reader duty decoding
// inbound frames into broadcasts and a writer duty draining the peer's own
// outbound queue. The two never share state beyond that queue.
type session struct {
	conn     *websocket.Conn
	roomName string
	peerID   uuid.UUID
	queue    *model.Queue
	svc      RelayService

	logger zerolog.Logger
}

func newSession(conn *websocket.Conn, roomName string, svc RelayService, logger *zerolog.Logger) *session {
	peerID := uuid.New()
	return &session{
		conn:     conn,
		roomName: roomName,
		peerID:   peerID,
		queue:    model.NewQueue(),
		svc:      svc,
		logger: logger.With().
			Str("roomName", roomName).
			Str("peerID", peerID.String()).
			Logger(),
	}
}

// run joins the room, starts both duties, and tears the session down as
// soon as either one stops. The reader is not awaited; the writer gets a
// short grace to flush whatever is already queued (in particular the close
// handshake) before the transport goes away.
func (s *session) run() {
	s.svc.Join(s.roomName, s.peerID, s.queue)

	readerDone := make(chan struct{})
	writerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		s.readLoop()
	}()
	go func() {
		defer close(writerDone)
		s.writeLoop()
	}()
	select {
	case <-readerDone:
	case <-writerDone:
	}

	s.svc.Leave(s.roomName, s.peerID)
	s.queue.Close()
	select {
	case <-writerDone:
	case <-time.After(defaultWriterGraceTimeout):
		s.logger.Debug().Msg("writer did not drain in time")
	}
	if err := s.conn.Close(); err != nil {
		s.logger.Debug().Err(err).Msg("transport close failed")
	}
}

// readLoop decodes inbound frames until the transport errors out or the
// peer starts the close handshake. Text frames fan out to the room; binary
// and ping frames are ignored. A close frame queues the close instruction
// on this session's own writer, not on peers.
func (s *session) readLoop() {
	// Close and ping frames are handled in this loop, not auto-replied.
	s.conn.SetCloseHandler(func(int, string) error { return nil })
	s.conn.SetPingHandler(func(string) error { return nil })

	for {
		msgType, payload, err := s.conn.ReadMessage()
		if err != nil {
			// Any close frame, whatever its code (including the
			// empty-payload 1005), gets the normal-closure reply.
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				s.queue.Push(model.Message{Kind: model.KindClose})
				s.logger.Debug().Int("code", closeErr.Code).Msg("peer requested close")
			} else {
				s.logger.Warn().Err(err).Msg("receive failed")
			}
			return
		}

		if msgType != websocket.TextMessage {
			continue
		}
		if !utf8.Valid(payload) {
			s.logger.Warn().Msg("invalid utf-8 in text frame")
			return
		}
		s.svc.Broadcast(s.roomName, s.peerID, string(payload))
	}
}

// writeLoop drains the outbound queue in FIFO order until it is closed, a
// write fails, or a close instruction completes the close handshake.
func (s *session) writeLoop() {
	for {
		msg, ok := s.queue.Pop()
		if !ok {
			return
		}
		switch msg.Kind {
		case model.KindText:
			if err := s.conn.WriteMessage(websocket.TextMessage, []byte(msg.Text)); err != nil {
				s.logger.Warn().Err(err).Msg("send failed")
				return
			}
		case model.KindClose:
			data := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			if err := s.conn.WriteMessage(websocket.CloseMessage, data); err != nil {
				s.logger.Debug().Err(err).Msg("close frame send failed")
			}
			return
		}
	}
}

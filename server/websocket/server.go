// Package websocket serves the relay endpoint: it authenticates upgrade
// requests, promotes them to full-duplex sessions, and exposes the
// liveness probe.
package websocket

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/parlemonde/clap/model"
)

const (
	defaultShutdownDeadline = 10 * time.Second

	defaultWebsocketReadBufferSize   = 4096
	defaultWebsocketWriteBufferSize  = 4096
	defaultWebSocketHandshakeTimeout = 3 * time.Second
	defaultWriterGraceTimeout        = time.Second

	// fallbackRoomName is used when the room query param is absent.
	// Inherited behavior; connections without a room land here instead
	// of being rejected.
	fallbackRoomName = "none"
)

var (
	ErrUnexpected = errors.New("unexpected server error")
)

type (
	// RelayService performs room membership and fan-out operations on
	// behalf of sessions.
	RelayService interface {
		Join(roomName string, peerID uuid.UUID, queue *model.Queue)
		Broadcast(roomName string, sender uuid.UUID, text string)
		Leave(roomName string, peerID uuid.UUID)
	}

	// SignatureVerifier gates upgrade requests.
	SignatureVerifier interface {
		Verify(room, date, signature string) bool
	}

	Config struct {
		Logger       *zerolog.Logger
		RelayService RelayService
		Verifier     SignatureVerifier
		ListenAddr   string
	}

	Server struct {
		svc      RelayService
		verifier SignatureVerifier
		ws       *websocket.Upgrader
		*http.Server

		logger zerolog.Logger
	}
)

func NewServer(cfg Config) *Server {
	srv := &Server{
		logger:   cfg.Logger.With().Str("component", "websocket-server").Logger(),
		svc:      cfg.RelayService,
		verifier: cfg.Verifier,
		ws: &websocket.Upgrader{
			HandshakeTimeout: defaultWebSocketHandshakeTimeout,
			ReadBufferSize:   defaultWebsocketReadBufferSize,
			WriteBufferSize:  defaultWebsocketWriteBufferSize,
			CheckOrigin:      func(r *http.Request) bool { return true },
		},
	}

	// Go 1.21 ServeMux has no method/exact-path pattern syntax, so the
	// "GET /{$}" and "GET /health_check" routes are expressed with an
	// equivalent wrapper.
	mux := http.NewServeMux()
	mux.Handle("/", exactGet("/", http.HandlerFunc(srv.relay)))
	mux.Handle("/health_check", exactGet("/health_check", http.HandlerFunc(healthCheck)))

	srv.Server = &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: mux,
	}
	return srv
}

func (srv *Server) Run(ctx context.Context, wg *sync.WaitGroup, errc chan<- error) {
	defer func() {
		srv.logger.Debug().Msg("server stopped")
		wg.Done()
	}()

	errSrv := make(chan error)
	go func() {
		errSrv <- srv.ListenAndServe()
	}()

	srv.logger.Info().Str("addr", srv.Addr).Msg("server started")

	select {
	case err := <-errSrv:
		if !errors.Is(err, http.ErrServerClosed) {
			errc <- errors.Join(ErrUnexpected, err)
		}
	case <-ctx.Done():
		shCtx, shCancel := context.WithTimeout(context.Background(), defaultShutdownDeadline)
		defer shCancel()
		if err := srv.Shutdown(shCtx); err != nil {
			srv.logger.Error().Err(err).Msg("server shutdown failed")
		}
	}
}

// relay authenticates the upgrade request and hands the connection over to
// a session. Missing query params come through as empty strings and fail
// verification on their own.
func (srv *Server) relay(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	roomName := query.Get("room")
	date := query.Get("date")
	signature := query.Get("signature")

	if !srv.verifier.Verify(roomName, date, signature) {
		srv.logger.Warn().
			Str("roomName", roomName).
			Str("date", date).
			Msg("signature check failed")
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	conn, err := srv.ws.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error.
		srv.logger.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	if roomName == "" {
		roomName = fallbackRoomName
	}

	sess := newSession(conn, roomName, srv.svc, &srv.logger)
	go sess.run()
}

// exactGet replicates the Go 1.22 "GET /path" (and "GET /{$}") mux
// semantics on the Go 1.21 ServeMux: exact path match, GET and HEAD
// only, 405 with an Allow header otherwise.
func exactGet(path string, h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != path {
			http.NotFound(w, r)
			return
		}
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}
		h.ServeHTTP(w, r)
	})
}

func healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprint(w, "Ok")
}

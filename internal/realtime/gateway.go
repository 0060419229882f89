package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/suPer8Hu/support-desk/internal/auth"
	"github.com/suPer8Hu/support-desk/internal/chat"
)

// Gateway authenticates websocket handshakes and binds each connection to
// its identity for the connection's lifetime.
type Gateway struct {
	hub      *Hub
	router   *chat.Router
	secret   string
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

func NewGateway(hub *Hub, router *chat.Router, secret string, allowedOrigins []string, log zerolog.Logger) *Gateway {
	g := &Gateway{
		hub:    hub,
		router: router,
		secret: secret,
		log:    log.With().Str("component", "gateway").Logger(),
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return g
}

func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		if o != "" {
			set[o] = struct{}{}
		}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[strings.TrimRight(origin, "/")]
		return ok
	}
}

// Authenticate returns chat.ErrMissingCredential or chat.ErrInvalidCredential
// on failure.
func (g *Gateway) Authenticate(r *http.Request) (auth.Identity, error) {
	id, err := auth.ParseJWT(auth.TokenFromRequest(r), g.secret)
	switch {
	case err == nil:
		return id, nil
	case errors.Is(err, auth.ErrMissingToken):
		return auth.Identity{}, chat.ErrMissingCredential
	default:
		return auth.Identity{}, &chat.Error{Kind: chat.KindAuth, Message: chat.ErrInvalidCredential.Message, Err: err}
	}
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	identity, err := g.Authenticate(r)
	if err != nil {
		var ce *chat.Error
		msg := "invalid"
		if errors.As(err, &ce) {
			msg = ce.Message
		}
		g.log.Debug().Err(err).Str("remote", r.RemoteAddr).Msg("handshake rejected")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
		return
	}

	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	connID := uuid.NewString()
	client := newClient(connID, ws, g.log)
	g.hub.Register(client)
	rc := g.router.Connect(connID, identity)
	g.log.Info().Str("conn_id", connID).Str("user_id", identity.ID).Str("role", string(identity.Role)).Msg("client connected")

	go client.writePump()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	client.readPump(ctx, g.router, rc, g.hub)

	g.router.Disconnect(rc)
	g.hub.Unregister(connID)
	g.log.Info().Str("conn_id", connID).Msg("client disconnected")
}

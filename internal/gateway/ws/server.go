// Package ws implements the WebSocket server for agent connections. Agents
// connect, advertise the actions they can perform, and keep them alive with
// heartbeats; disconnecting removes the agent's advertisements from the
// catalog.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/jkaninda/actiondex/internal/config"
	"github.com/jkaninda/actiondex/internal/discovery"
	"github.com/jkaninda/actiondex/internal/domain"
	"github.com/jkaninda/actiondex/internal/observability"
	"github.com/jkaninda/actiondex/internal/protocol"
)

const helloTimeout = 10 * time.Second

// Server is the WebSocket server that manages agent connections.
type Server struct {
	svc    *discovery.Service
	cfg    *config.WebSocketConfig
	obs    *observability.Observability
	logger *slog.Logger
}

// NewServer creates a WebSocket server backed by the discovery service.
// obs may be nil.
func NewServer(svc *discovery.Service, cfg *config.WebSocketConfig, obs *observability.Observability, logger *slog.Logger) *Server {
	return &Server{
		svc:    svc,
		cfg:    cfg,
		obs:    obs,
		logger: logger,
	}
}

// Handler returns an http.Handler that upgrades connections to WebSocket.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.handleUpgrade)
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	// Authenticate agent via token.
	if s.cfg != nil && s.cfg.AgentToken != "" {
		token := r.URL.Query().Get("token")
		if token == "" {
			token = r.Header.Get("Authorization")
			if len(token) > 7 && token[:7] == "Bearer " {
				token = token[7:]
			}
		}
		if token != s.cfg.AgentToken {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols: []string{"actiondex-agent-v1"},
	})
	if err != nil {
		s.logger.Error("websocket accept failed", slog.String("error", err.Error()))
		return
	}

	s.handleConnection(r.Context(), conn)
}

func (s *Server) handleConnection(ctx context.Context, conn *websocket.Conn) {
	var agentID string
	defer func() {
		if agentID != "" {
			removed := s.svc.DeregisterAgent(context.Background(), agentID)
			s.connectedDelta(-1)
			s.logger.Info("agent deregistered",
				slog.String("agent_id", agentID),
				slog.Int("withdrawn", removed),
			)
		}
		conn.Close(websocket.StatusNormalClosure, "connection closed")
	}()

	hello, err := s.waitForHello(ctx, conn)
	if err != nil {
		s.logger.Error("agent registration failed", slog.String("error", err.Error()))
		return
	}
	agentID = hello.AgentID
	s.connectedDelta(1)

	ttl := s.helloTTL(hello)
	registered, rejected := 0, 0
	for _, offer := range hello.Advertisements {
		if err := s.svc.Advertise(ctx, s.toAdvertisement(agentID, ttl, offer)); err != nil {
			rejected++
			s.logger.Warn("rejecting advertisement",
				slog.String("agent_id", agentID),
				slog.String("name", offer.Name),
				slog.String("error", err.Error()),
			)
			continue
		}
		registered++
	}

	resp, _ := protocol.NewEnvelope(protocol.MsgRegistered, protocol.RegisteredPayload{
		Message:    fmt.Sprintf("registered as %s", agentID),
		Registered: registered,
		Rejected:   rejected,
	})
	resp.AgentID = agentID
	s.writeEnvelope(ctx, conn, resp)

	s.logger.Info("agent connected",
		slog.String("agent_id", agentID),
		slog.String("version", hello.Version),
		slog.Int("advertised", registered),
	)

	// Start heartbeat pinger.
	hbCtx, hbCancel := context.WithCancel(ctx)
	defer hbCancel()
	go s.heartbeatLoop(hbCtx, conn, agentID)

	// Main message loop.
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				s.logger.Info("agent disconnected normally", slog.String("agent_id", agentID))
			} else {
				s.logger.Warn("agent connection error",
					slog.String("agent_id", agentID),
					slog.String("error", err.Error()),
				)
			}
			return
		}

		var env protocol.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			s.logger.Warn("invalid message from agent",
				slog.String("agent_id", agentID),
				slog.String("error", err.Error()),
			)
			continue
		}
		env.AgentID = agentID

		s.handleMessage(ctx, conn, agentID, ttl, &env)
	}
}

func (s *Server) waitForHello(ctx context.Context, conn *websocket.Conn) (*protocol.AgentHello, error) {
	regCtx, cancel := context.WithTimeout(ctx, helloTimeout)
	defer cancel()

	_, data, err := conn.Read(regCtx)
	if err != nil {
		return nil, fmt.Errorf("reading registration: %w", err)
	}

	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("parsing registration: %w", err)
	}

	if env.Type != protocol.MsgAgentRegister {
		return nil, fmt.Errorf("expected %s, got %s", protocol.MsgAgentRegister, env.Type)
	}

	var hello protocol.AgentHello
	if err := env.Decode(&hello); err != nil {
		return nil, fmt.Errorf("parsing hello: %w", err)
	}
	if hello.AgentID == "" {
		return nil, fmt.Errorf("agent_id is required")
	}
	return &hello, nil
}

func (s *Server) handleMessage(ctx context.Context, conn *websocket.Conn, agentID string, ttl time.Duration, env *protocol.Envelope) {
	switch env.Type {
	case protocol.MsgAgentHeartbeat:
		var hb protocol.HeartbeatPayload
		if err := env.Decode(&hb); err == nil {
			s.svc.Touch(agentID)
			s.logger.Debug("heartbeat",
				slog.String("agent_id", agentID),
				slog.Int("active_actions", hb.ActiveActions),
			)
		}

	case protocol.MsgAdvertise:
		var offer protocol.ActionOffer
		if err := env.Decode(&offer); err != nil {
			s.writeError(ctx, conn, agentID, "bad_payload", err.Error())
			return
		}
		if err := s.svc.Advertise(ctx, s.toAdvertisement(agentID, ttl, offer)); err != nil {
			s.writeError(ctx, conn, agentID, "invalid_advertisement", err.Error())
			return
		}
		ack, _ := protocol.NewEnvelope(protocol.MsgAccepted, protocol.AcceptedPayload{Name: offer.Name})
		ack.AgentID = agentID
		s.writeEnvelope(ctx, conn, ack)

	case protocol.MsgWithdraw:
		var w protocol.WithdrawPayload
		if err := env.Decode(&w); err != nil {
			s.writeError(ctx, conn, agentID, "bad_payload", err.Error())
			return
		}
		if err := s.svc.Withdraw(ctx, w.Name); err != nil {
			s.writeError(ctx, conn, agentID, "not_found", err.Error())
			return
		}
		ack, _ := protocol.NewEnvelope(protocol.MsgAccepted, protocol.AcceptedPayload{Name: w.Name})
		ack.AgentID = agentID
		s.writeEnvelope(ctx, conn, ack)

	case protocol.MsgPong:
		// Liveness only.

	default:
		s.logger.Warn("unknown message type from agent",
			slog.String("agent_id", agentID),
			slog.String("type", string(env.Type)),
		)
	}
}

func (s *Server) toAdvertisement(agentID string, ttl time.Duration, offer protocol.ActionOffer) domain.Advertisement {
	return domain.Advertisement{
		AgentID:      agentID,
		Name:         offer.Name,
		Description:  offer.Description,
		Similes:      offer.Similes,
		Capabilities: offer.Capabilities,
		TTL:          ttl,
	}
}

func (s *Server) helloTTL(hello *protocol.AgentHello) time.Duration {
	if hello.TTLSeconds > 0 {
		return time.Duration(hello.TTLSeconds) * time.Second
	}
	return s.cfg.DefaultTTL()
}

func (s *Server) heartbeatLoop(ctx context.Context, conn *websocket.Conn, agentID string) {
	interval := s.cfg.WSHeartbeatInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			env, _ := protocol.NewEnvelope(protocol.MsgPing, nil)
			if err := s.writeEnvelope(ctx, conn, env); err != nil {
				s.logger.Debug("heartbeat ping failed",
					slog.String("agent_id", agentID),
					slog.String("error", err.Error()),
				)
				return
			}
		}
	}
}

func (s *Server) writeError(ctx context.Context, conn *websocket.Conn, agentID, code, msg string) {
	env, _ := protocol.NewEnvelope(protocol.MsgError, protocol.ErrorPayload{
		Code:    code,
		Message: msg,
	})
	env.AgentID = agentID
	s.writeEnvelope(ctx, conn, env)
}

func (s *Server) writeEnvelope(ctx context.Context, conn *websocket.Conn, env *protocol.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}

func (s *Server) connectedDelta(d float64) {
	if s.obs != nil && s.obs.Metrics != nil {
		s.obs.Metrics.ConnectedAgents.Add(d)
	}
}

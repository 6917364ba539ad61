package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/segmentio/encoding/json"
	"go.uber.org/zap"

	"github.com/quizparty/party-backend/internal/registry"
	"github.com/quizparty/party-backend/internal/session"
	"github.com/quizparty/party-backend/internal/types"
)

const (
	outboxSize   = 16
	writeTimeout = 3 * time.Second
)

// Handler accepts a websocket connection and routes its events: create and
// join go through the registry, ready and answer go straight to the
// connection's session, and a closed connection runs the disconnect path.
func Handler(reg *registry.Registry, hub *Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		c := &client{
			id:  uuid.NewString(),
			out: make(chan []byte, outboxSize),
			reg: reg,
			hub: hub,
			log: log,
		}
		defer c.disconnect()

		// Writer goroutine, ended by writeCancel when the handler returns.
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for {
				select {
				case <-writeCtx.Done():
					return
				case msg := <-c.out:
					ctx, cancel := context.WithTimeout(writeCtx, writeTimeout)
					_ = conn.Write(ctx, websocket.MessageText, msg)
					cancel()
				}
			}
		}()

		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					return
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				c.sendError("invalid message")
				continue
			}
			c.handle(cm)
		}
	}
}

type client struct {
	id  string
	out chan []byte
	reg *registry.Registry
	hub *Hub
	log *zap.Logger

	code string // party this connection belongs to, "" until joined
}

func (c *client) handle(cm types.ClientMessage) {
	switch cm.Type {
	case "createParty":
		c.createParty(cm.PlayerName)

	case "joinParty":
		c.joinParty(cm.PartyCode, cm.PlayerName)

	case "playerReady":
		if sess := c.session(); sess != nil {
			sess.Inbox() <- session.MarkReady{ID: c.id}
		}

	case "submitAnswer":
		if sess := c.session(); sess != nil {
			sess.Inbox() <- session.SubmitAnswer{ID: c.id, Option: cm.AnswerIndex}
		}

	default:
		c.sendError("unknown message type")
	}
}

func (c *client) createParty(name string) {
	if c.code != "" || name == "" {
		return
	}
	reply := make(chan registry.CreateResult, 1)
	c.reg.Inbox() <- registry.CreateParty{ConnID: c.id, Name: name, Reply: reply}
	res := <-reply
	if res.Err != nil {
		c.log.Error("create party", zap.Error(res.Err))
		c.sendError("failed to create party")
		return
	}

	c.code = res.Code
	c.hub.Join(res.Code, c.id, c.out)
	c.send("partyCreated", types.PartyCreated{PartyID: res.Code, PartyCode: res.Code, PlayerName: name})
}

func (c *client) joinParty(code, name string) {
	if c.code != "" || name == "" {
		return
	}
	reply := make(chan registry.JoinResult, 1)
	c.reg.Inbox() <- registry.JoinParty{Code: code, ConnID: c.id, Name: name, Reply: reply}
	res := <-reply
	switch {
	case errors.Is(res.Err, registry.ErrNotFound):
		c.sendError("Party not found")
		return
	case errors.Is(res.Err, session.ErrPartyFull):
		c.sendError("Party is full")
		return
	case res.Err != nil:
		c.sendError("failed to join party")
		return
	}

	c.code = res.Code
	c.hub.Join(res.Code, c.id, c.out)
	c.send("partyJoined", types.PartyJoined{PartyID: res.Code, PlayerName: name})
	c.hub.Broadcast(res.Code, "playerJoined", types.PlayerJoined{PlayerName: name, PlayerCount: res.Players})
}

func (c *client) session() *session.Session {
	reply := make(chan *session.Session, 1)
	c.reg.Inbox() <- registry.SessionFor{ConnID: c.id, Reply: reply}
	return <-reply
}

func (c *client) disconnect() {
	reply := make(chan registry.Departure, 1)
	c.reg.Inbox() <- registry.Disconnect{ConnID: c.id, Reply: reply}
	dep := <-reply
	if !dep.Found {
		return
	}
	c.hub.Leave(dep.Code, c.id)
	if dep.Remaining > 0 {
		c.hub.Broadcast(dep.Code, "playerLeft", types.PlayerLeft{PlayerName: dep.Name, PlayerCount: dep.Remaining})
	}
}

// send delivers an event to this connection only.
func (c *client) send(event string, payload any) {
	msg, err := json.Marshal(types.ServerEvent{Event: event, Data: payload})
	if err != nil {
		c.log.Error("marshal event", zap.String("event", event), zap.Error(err))
		return
	}
	select {
	case c.out <- msg:
	default:
	}
}

func (c *client) sendError(message string) {
	c.send("error", types.ErrorEvent{Message: message})
}

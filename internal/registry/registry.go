package registry

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"strings"

	"go.uber.org/zap"

	"github.com/quizparty/party-backend/internal/quiz"
	"github.com/quizparty/party-backend/internal/session"
)

var ErrNotFound = errors.New("party not found")

const (
	codeLength  = 8
	codeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

type Msg interface{ isRegistryMsg() }

type CreateParty struct {
	ConnID string
	Name   string
	Reply  chan CreateResult
}

type CreateResult struct {
	Code string
	Err  error
}

type JoinParty struct {
	Code   string
	ConnID string
	Name   string
	Reply  chan JoinResult
}

type JoinResult struct {
	Code    string // canonical (upper-case) party code
	Players int
	Err     error
}

type Disconnect struct {
	ConnID string
	Reply  chan Departure
}

// Departure reports who left which party so the caller can notify the
// remaining members.
type Departure struct {
	Found     bool
	Code      string
	Name      string
	Remaining int
}

type SessionFor struct {
	ConnID string
	Reply  chan *session.Session
}

type HasParty struct {
	Code  string
	Reply chan bool
}

type List struct{ Reply chan []PartyInfo }

type Shutdown struct{}

func (CreateParty) isRegistryMsg() {}
func (JoinParty) isRegistryMsg()   {}
func (Disconnect) isRegistryMsg()  {}
func (SessionFor) isRegistryMsg()  {}
func (HasParty) isRegistryMsg()    {}
func (List) isRegistryMsg()        {}
func (Shutdown) isRegistryMsg()    {}

type PartyInfo struct {
	Code    string        `json:"partyId"`
	Players int           `json:"playerCount"`
	State   session.State `json:"gameState"`
}

type memberRef struct {
	code string
	name string
}

// Registry owns every live session and the connection back-references.
// Both maps live on the loop goroutine, so a join and a disconnect on the
// same code can never interleave.
type Registry struct {
	inbox    chan Msg
	sessions map[string]*session.Session
	members  map[string]memberRef

	bank   *quiz.Bank
	b      session.Broadcaster
	log    *zap.Logger
	timing session.Timing

	ctx    context.Context
	cancel context.CancelFunc
}

func New(parent context.Context, bank *quiz.Bank, b session.Broadcaster, log *zap.Logger, timing session.Timing) *Registry {
	ctx, cancel := context.WithCancel(parent)
	r := &Registry{
		inbox:    make(chan Msg, 64),
		sessions: make(map[string]*session.Session),
		members:  make(map[string]memberRef),
		bank:     bank,
		b:        b,
		log:      log,
		timing:   timing,
		ctx:      ctx,
		cancel:   cancel,
	}
	go r.loop()
	return r
}

func (r *Registry) Inbox() chan<- Msg { return r.inbox }

func (r *Registry) loop() {
	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case CreateParty:
				msg.Reply <- r.createParty(msg.ConnID, msg.Name)

			case JoinParty:
				msg.Reply <- r.joinParty(msg.Code, msg.ConnID, msg.Name)

			case Disconnect:
				msg.Reply <- r.disconnect(msg.ConnID)

			case SessionFor:
				var sess *session.Session
				if ref, ok := r.members[msg.ConnID]; ok {
					sess = r.sessions[ref.code]
				}
				msg.Reply <- sess

			case HasParty:
				_, ok := r.sessions[strings.ToUpper(msg.Code)]
				msg.Reply <- ok

			case List:
				msg.Reply <- r.list()

			case Shutdown:
				r.shutdown()
				return
			}
		}
	}
}

func (r *Registry) createParty(connID, name string) CreateResult {
	var code string
	for {
		c, err := generateCode()
		if err != nil {
			return CreateResult{Err: err}
		}
		if _, taken := r.sessions[c]; !taken {
			code = c
			break
		}
		r.log.Warn("party code collision, regenerating", zap.String("code", c))
	}

	sess := session.New(r.ctx, code, r.bank, r.b, r.log, r.timing)
	r.sessions[code] = sess

	reply := make(chan error, 1)
	sess.Inbox() <- session.AddPlayer{ID: connID, Name: name, Reply: reply}
	<-reply // fresh session, cannot be full
	r.members[connID] = memberRef{code: code, name: name}

	r.log.Info("party created", zap.String("code", code), zap.String("creator", name))
	return CreateResult{Code: code}
}

func (r *Registry) joinParty(code, connID, name string) JoinResult {
	code = strings.ToUpper(code)
	sess, ok := r.sessions[code]
	if !ok {
		return JoinResult{Err: ErrNotFound}
	}

	reply := make(chan error, 1)
	sess.Inbox() <- session.AddPlayer{ID: connID, Name: name, Reply: reply}
	if err := <-reply; err != nil {
		return JoinResult{Err: err}
	}
	r.members[connID] = memberRef{code: code, name: name}

	view := r.view(sess)
	return JoinResult{Code: code, Players: view.Players}
}

func (r *Registry) disconnect(connID string) Departure {
	ref, ok := r.members[connID]
	if !ok {
		return Departure{}
	}
	delete(r.members, connID)

	sess, ok := r.sessions[ref.code]
	if !ok {
		return Departure{}
	}

	reply := make(chan int, 1)
	sess.Inbox() <- session.RemovePlayer{ID: connID, Reply: reply}
	remaining := <-reply

	if remaining == 0 {
		sess.Inbox() <- session.Shutdown{}
		delete(r.sessions, ref.code)
		r.log.Info("party cleaned up", zap.String("code", ref.code))
	}
	return Departure{Found: true, Code: ref.code, Name: ref.name, Remaining: remaining}
}

func (r *Registry) list() []PartyInfo {
	infos := make([]PartyInfo, 0, len(r.sessions))
	for code, sess := range r.sessions {
		view := r.view(sess)
		infos = append(infos, PartyInfo{Code: code, Players: view.Players, State: view.State})
	}
	return infos
}

func (r *Registry) view(sess *session.Session) session.View {
	reply := make(chan session.View, 1)
	sess.Inbox() <- session.GetView{Reply: reply}
	return <-reply
}

func (r *Registry) shutdown() {
	for _, sess := range r.sessions {
		sess.Inbox() <- session.Shutdown{}
	}
	clear(r.sessions)
	clear(r.members)
	r.cancel()
}

func generateCode() (string, error) {
	code := make([]byte, codeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeCharset))))
		if err != nil {
			return "", err
		}
		code[i] = codeCharset[n.Int64()]
	}
	return string(code), nil
}

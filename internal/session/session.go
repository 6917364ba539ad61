package session

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/quizparty/party-backend/internal/quiz"
	"github.com/quizparty/party-backend/internal/types"
)

var ErrPartyFull = errors.New("party is full")

// MaxPlayers is the party capacity. The ready and fullness checks below
// are written against a two-seat party.
const MaxPlayers = 2

// Broadcaster fans an event out to every connection currently joined to a
// party. Delivery is fire-and-forget; the session never waits on it.
type Broadcaster interface {
	Broadcast(code string, event string, payload any)
}

type State string

const (
	StateWaiting  State = "waiting"
	StatePlaying  State = "playing"
	StateFinished State = "finished"
)

// Timing holds the session's timer durations. Zero values fall back to the
// production defaults; tests shrink them.
type Timing struct {
	Countdown    time.Duration // ready-check to game start
	RoundTime    time.Duration // answer window per question
	AdvanceDelay time.Duration // result display before next question
}

func (t Timing) withDefaults() Timing {
	if t.Countdown == 0 {
		t.Countdown = 3 * time.Second
	}
	if t.RoundTime == 0 {
		t.RoundTime = 15 * time.Second
	}
	if t.AdvanceDelay == 0 {
		t.AdvanceDelay = 3 * time.Second
	}
	return t
}

type Msg interface{ isSessionMsg() }

type AddPlayer struct {
	ID    string
	Name  string
	Reply chan error
}

type RemovePlayer struct {
	ID    string
	Reply chan int // remaining player count
}

type MarkReady struct{ ID string }

type SubmitAnswer struct {
	ID     string
	Option int
}

type GetView struct{ Reply chan View }

type Shutdown struct{}

// Timer fires re-enter the loop as messages so every mutation stays on the
// session goroutine. Round-scoped fires carry the round they were armed
// for; the loop drops stale ones.
type countdownFired struct{}

type roundTimeout struct{ Round int }

type advanceRound struct{ Round int }

func (AddPlayer) isSessionMsg()      {}
func (RemovePlayer) isSessionMsg()   {}
func (MarkReady) isSessionMsg()      {}
func (SubmitAnswer) isSessionMsg()   {}
func (GetView) isSessionMsg()        {}
func (Shutdown) isSessionMsg()       {}
func (countdownFired) isSessionMsg() {}
func (roundTimeout) isSessionMsg()   {}
func (advanceRound) isSessionMsg()   {}

// View is a read-only reflection of session state for tests and the live
// listing endpoint.
type View struct {
	Code    string
	State   State
	Players int
	Ready   int
	Round   int
	Scores  map[string]int
}

type player struct {
	id    string
	name  string
	score int
	ready bool
}

type answer struct {
	option  int
	correct bool
	elapsed time.Duration
}

// Session drives one party from formation through question rounds to
// completion. All state below is owned by the loop goroutine; the only way
// in is the inbox.
type Session struct {
	code   string
	bank   *quiz.Bank
	b      Broadcaster
	log    *zap.Logger
	timing Timing

	inbox  chan Msg
	ctx    context.Context
	cancel context.CancelFunc

	state      State
	players    map[string]*player
	order      []string // join order, for stable result listings
	answers    map[string]answer
	round      int // 0-based question index
	roundStart time.Time
	resolved   bool // current round already resolved

	startTimer   *time.Timer
	roundTimer   *time.Timer
	advanceTimer *time.Timer
}

func New(parent context.Context, code string, bank *quiz.Bank, b Broadcaster, log *zap.Logger, timing Timing) *Session {
	ctx, cancel := context.WithCancel(parent)
	s := &Session{
		code:    code,
		bank:    bank,
		b:       b,
		log:     log.With(zap.String("party", code)),
		timing:  timing.withDefaults(),
		inbox:   make(chan Msg, 64),
		ctx:     ctx,
		cancel:  cancel,
		state:   StateWaiting,
		players: make(map[string]*player),
		answers: make(map[string]answer),
	}
	go s.loop()
	return s
}

func (s *Session) Inbox() chan<- Msg { return s.inbox }

func (s *Session) Code() string { return s.code }

func (s *Session) loop() {
	for {
		select {
		case <-s.ctx.Done():
			s.shutdown()
			return

		case m := <-s.inbox:
			switch msg := m.(type) {
			case AddPlayer:
				msg.Reply <- s.addPlayer(msg.ID, msg.Name)

			case RemovePlayer:
				s.removePlayer(msg.ID)
				msg.Reply <- len(s.players)

			case MarkReady:
				s.markReady(msg.ID)

			case SubmitAnswer:
				s.submitAnswer(msg.ID, msg.Option)

			case countdownFired:
				// A fire can already be queued when the countdown is
				// cancelled; re-check eligibility here.
				if s.startTimer == nil || s.state != StateWaiting || len(s.players) < MaxPlayers {
					break
				}
				s.startTimer = nil
				s.startGame()

			case roundTimeout:
				if s.state != StatePlaying || msg.Round != s.round || s.resolved {
					break // stale fire
				}
				s.roundTimer = nil
				s.resolveRound()

			case advanceRound:
				if s.state != StatePlaying || msg.Round != s.round {
					break
				}
				s.advanceTimer = nil
				s.round++
				s.beginRound()

			case GetView:
				scores := make(map[string]int, len(s.players))
				ready := 0
				for id, p := range s.players {
					scores[id] = p.score
					if p.ready {
						ready++
					}
				}
				msg.Reply <- View{
					Code:    s.code,
					State:   s.state,
					Players: len(s.players),
					Ready:   ready,
					Round:   s.round,
					Scores:  scores,
				}

			case Shutdown:
				s.shutdown()
				return
			}
		}
	}
}

func (s *Session) addPlayer(id, name string) error {
	if len(s.players) >= MaxPlayers {
		return ErrPartyFull
	}
	s.players[id] = &player{id: id, name: name}
	s.order = append(s.order, id)
	s.log.Info("player joined", zap.String("player", name), zap.Int("count", len(s.players)))
	return nil
}

func (s *Session) removePlayer(id string) {
	if _, ok := s.players[id]; !ok {
		return
	}
	delete(s.players, id)
	delete(s.answers, id)
	for i, pid := range s.order {
		if pid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}

	// A party that drops below capacity while waiting is no longer
	// start-eligible; a pending countdown must not fire.
	if s.state == StateWaiting && len(s.players) < MaxPlayers && s.startTimer != nil {
		s.startTimer.Stop()
		s.startTimer = nil
	}

	// Mid-round departures can leave every remaining player already
	// answered; resolve now instead of waiting out the timer.
	if s.state == StatePlaying && !s.resolved && len(s.players) > 0 && len(s.answers) == len(s.players) {
		s.resolveRound()
	}
}

func (s *Session) markReady(id string) {
	p, ok := s.players[id]
	if !ok {
		return
	}
	p.ready = true

	if s.state != StateWaiting || len(s.players) < MaxPlayers || s.startTimer != nil {
		return
	}
	for _, p := range s.players {
		if !p.ready {
			return
		}
	}

	countdown := int(s.timing.Countdown.Round(time.Second) / time.Second)
	s.b.Broadcast(s.code, "gameStarting", types.GameStarting{Countdown: countdown})
	s.startTimer = s.afterFunc(s.timing.Countdown, countdownFired{})
}

func (s *Session) startGame() {
	if s.state != StateWaiting {
		return
	}
	s.state = StatePlaying
	s.round = 0
	for _, p := range s.players {
		p.score = 0
	}
	s.log.Info("game started", zap.Int("players", len(s.players)))
	s.beginRound()
}

func (s *Session) beginRound() {
	if s.round >= s.bank.Len() {
		s.endGame()
		return
	}

	q := s.bank.Question(s.round)
	s.resolved = false
	s.roundStart = time.Now()
	s.answers = make(map[string]answer)

	s.b.Broadcast(s.code, "question", types.Question{
		QuestionIndex:  s.round + 1,
		TotalQuestions: s.bank.Len(),
		Question:       q.Text,
		Options:        q.Options,
		TimeLimit:      s.timing.RoundTime.Milliseconds(),
	})
	s.roundTimer = s.afterFunc(s.timing.RoundTime, roundTimeout{Round: s.round})
}

func (s *Session) submitAnswer(id string, option int) {
	if s.state != StatePlaying || s.resolved {
		return
	}
	p, ok := s.players[id]
	if !ok {
		return
	}
	if _, dup := s.answers[id]; dup {
		return
	}

	q := s.bank.Question(s.round)
	elapsed := time.Since(s.roundStart)
	correct := option == q.Correct
	s.answers[id] = answer{option: option, correct: correct, elapsed: elapsed}
	if correct {
		p.score += awardPoints(elapsed)
	}

	if len(s.answers) == len(s.players) {
		s.resolveRound()
	}
}

// awardPoints is the score for a correct answer: a flat base plus a speed
// bonus that decays one point per elapsed second, floored at zero.
func awardPoints(elapsed time.Duration) int {
	bonus := 15 - int(elapsed.Seconds())
	if bonus < 0 {
		bonus = 0
	}
	return 10 + bonus
}

// resolveRound emits the round's results and schedules the advance to the
// next question. The resolved flag plus the round-index guards on timer
// fires make this run exactly once per round, whichever of the timeout and
// the all-answered paths gets here first.
func (s *Session) resolveRound() {
	s.resolved = true
	if s.roundTimer != nil {
		s.roundTimer.Stop()
		s.roundTimer = nil
	}

	q := s.bank.Question(s.round)
	results := make([]types.PlayerResult, 0, len(s.players))
	for _, id := range s.order {
		p := s.players[id]
		r := types.PlayerResult{PlayerID: p.id, PlayerName: p.name, Score: p.score}
		if a, ok := s.answers[id]; ok {
			option := a.option
			r.Answer = &option
			r.IsCorrect = a.correct
		}
		results = append(results, r)
	}

	s.b.Broadcast(s.code, "questionResult", types.QuestionResult{
		QuestionIndex: s.round + 1,
		CorrectAnswer: q.Correct,
		Results:       results,
	})
	s.advanceTimer = s.afterFunc(s.timing.AdvanceDelay, advanceRound{Round: s.round})
}

func (s *Session) endGame() {
	s.state = StateFinished
	s.stopTimers()

	highest := -1
	holders := 0
	var winner *player
	for _, id := range s.order {
		p := s.players[id]
		switch {
		case p.score > highest:
			highest = p.score
			holders = 1
			winner = p
		case p.score == highest:
			holders++
		}
	}
	tie := holders > 1

	final := make([]types.FinalResult, 0, len(s.players))
	for _, id := range s.order {
		p := s.players[id]
		final = append(final, types.FinalResult{PlayerID: p.id, PlayerName: p.name, Score: p.score})
	}

	end := types.GameEnd{Tie: tie, FinalResults: final}
	if !tie && winner != nil {
		end.Winner = &winner.id
		end.WinnerName = &winner.name
	}
	s.log.Info("game ended", zap.Bool("tie", tie), zap.Int("topScore", highest))
	s.b.Broadcast(s.code, "gameEnd", end)
}

func (s *Session) stopTimers() {
	for _, t := range []**time.Timer{&s.startTimer, &s.roundTimer, &s.advanceTimer} {
		if *t != nil {
			(*t).Stop()
			*t = nil
		}
	}
}

func (s *Session) shutdown() {
	s.stopTimers()
	s.cancel()
}

// afterFunc arms a timer whose fire is delivered back into the inbox. A
// cancelled session never observes the fire.
func (s *Session) afterFunc(d time.Duration, m Msg) *time.Timer {
	return time.AfterFunc(d, func() {
		select {
		case s.inbox <- m:
		case <-s.ctx.Done():
		}
	})
}

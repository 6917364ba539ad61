package types

// ClientMessage is a single inbound frame from a connection.
type ClientMessage struct {
	Type        string `json:"type"` // "createParty" | "joinParty" | "playerReady" | "submitAnswer"
	PlayerName  string `json:"playerName,omitempty"`
	PartyCode   string `json:"partyCode,omitempty"`
	AnswerIndex int    `json:"answerIndex"`
}

// ServerEvent is the envelope for every outbound frame.
type ServerEvent struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type PartyCreated struct {
	PartyID    string `json:"partyId"`
	PartyCode  string `json:"partyCode"`
	PlayerName string `json:"playerName"`
}

type PartyJoined struct {
	PartyID    string `json:"partyId"`
	PlayerName string `json:"playerName"`
}

type PlayerJoined struct {
	PlayerName  string `json:"playerName"`
	PlayerCount int    `json:"playerCount"`
}

type PlayerLeft struct {
	PlayerName  string `json:"playerName"`
	PlayerCount int    `json:"playerCount"`
}

type GameStarting struct {
	Countdown int `json:"countdown"` // seconds
}

type Question struct {
	QuestionIndex  int      `json:"questionIndex"` // 1-based on the wire
	TotalQuestions int      `json:"totalQuestions"`
	Question       string   `json:"question"`
	Options        []string `json:"options"`
	TimeLimit      int64    `json:"timeLimit"` // milliseconds
}

// PlayerResult is one player's outcome for a single round. Answer is nil
// when the player never submitted.
type PlayerResult struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	Answer     *int   `json:"answer"`
	IsCorrect  bool   `json:"isCorrect"`
	Score      int    `json:"score"` // cumulative
}

type QuestionResult struct {
	QuestionIndex int            `json:"questionIndex"`
	CorrectAnswer int            `json:"correctAnswer"`
	Results       []PlayerResult `json:"results"`
}

type FinalResult struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	Score      int    `json:"score"`
}

// GameEnd carries the final standings. Winner and WinnerName are nil on a
// tie for the top score.
type GameEnd struct {
	Winner       *string       `json:"winner"`
	WinnerName   *string       `json:"winnerName"`
	Tie          bool          `json:"tie"`
	FinalResults []FinalResult `json:"finalResults"`
}

type ErrorEvent struct {
	Message string `json:"message"`
}

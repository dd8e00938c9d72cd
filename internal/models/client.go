package models

import "database/sql"

// Client-partner statuses.
const (
	StatusVisited  = "visited"
	StatusClaimed  = "claimed"
	StatusRejected = "rejected"
)

// IsTerminalStatus сообщает, что статус пары клиент-партнер больше не перезаписывается на visited.
func IsTerminalStatus(status string) bool {
	return status == StatusClaimed || status == StatusRejected
}

// Conversation stages.
const (
	StageNew                 = "NEW"
	StageAwaitingSpinConsent = "AWAITING_SPIN_CONSENT"
	StageOfferedChoice       = "OFFERED_CHOICE"
	StageExhausted           = "EXHAUSTED"
	StageClaimed             = "CLAIMED"
)

// ClientSession is the per-client conversation record, keyed by the chat identifier.
type ClientSession struct {
	ChatID             string
	ClientName         string
	InitialPartnerID   string // Партнер, по ссылке которого пришел клиент
	InitialPartnerName string
	City               string
	ChosenPartnerID    sql.NullString // Текущее предложение
	ClaimedPartnerID   sql.NullString
	AttemptsLeft       int
	DiscountClaimed    bool
}

// NewClientSession создает сессию клиента, пришедшего по ссылке партнера.
func NewClientSession(chatID, clientName string, origin Partner) ClientSession {
	s := ClientSession{ChatID: chatID, ClientName: clientName}
	s.ResetRound(origin)
	return s
}

// ResetRound переинициализирует сессию при новом входе по ссылке партнера.
// История статусов при этом не трогается.
func (s *ClientSession) ResetRound(origin Partner) {
	s.InitialPartnerID = origin.ID
	s.InitialPartnerName = origin.Name
	s.City = origin.CityName
	s.ChosenPartnerID = sql.NullString{}
	s.ClaimedPartnerID = sql.NullString{}
	s.AttemptsLeft = 1
	s.DiscountClaimed = false
}

// HasOffer сообщает, предложен ли клиенту партнер.
func (s ClientSession) HasOffer() bool {
	return s.ChosenPartnerID.Valid && s.ChosenPartnerID.String != ""
}

// Stage выводит стадию диалога из полей сессии.
func (s ClientSession) Stage() string {
	switch {
	case s.ChatID == "":
		return StageNew
	case s.DiscountClaimed:
		return StageClaimed
	case s.AttemptsLeft <= 0:
		return StageExhausted
	case s.HasOffer():
		return StageOfferedChoice
	default:
		return StageAwaitingSpinConsent
	}
}

// StatusRow is one (partner, status) pair from a client's interaction history.
type StatusRow struct {
	PartnerID string
	Status    string
}

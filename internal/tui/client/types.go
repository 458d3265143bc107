package client

import "encoding/json"

// MessageType mirrors the server's event names.
type MessageType string

const (
	MsgRequestAdmin    MessageType = "requestAdmin"
	MsgRequestVoteData MessageType = "requestVoteData"
	MsgSubmitVote      MessageType = "submitVote"

	MsgVoteUpdate   MessageType = "voteUpdate"
	MsgAdminGranted MessageType = "adminGranted"
	MsgAdminDenied  MessageType = "adminDenied"
	MsgVoteRejected MessageType = "voteRejected"
	MsgError        MessageType = "error"
)

// WSMessage is the envelope for all server messages.
type WSMessage struct {
	Type    MessageType     `json:"type"`
	Seq     uint64          `json:"seq"`
	Payload json.RawMessage `json:"payload"`
}

type Counters struct {
	OptionA uint64 `json:"optionA"`
	OptionB uint64 `json:"optionB"`
	Blank   uint64 `json:"blank"`
}

func (c Counters) Total() uint64 {
	return c.OptionA + c.OptionB + c.Blank
}

type Unit struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Eligible   uint64   `json:"eligible"`
	CandidateA string   `json:"candidateA"`
	CandidateB string   `json:"candidateB"`
	Position   int      `json:"position"`
	Votes      Counters `json:"votes"`
}

type VoteRejectedPayload struct {
	Reason string `json:"reason"`
	UnitID string `json:"unitId"`
}

type ErrorPayload struct {
	Reason string `json:"reason"`
}

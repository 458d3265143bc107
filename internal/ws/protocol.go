package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/votecast/backend/internal/tally"
)

var ErrMalformed = errors.New("malformed request")

type MessageType string

// Client to server.
const (
	MsgRequestAdmin    MessageType = "requestAdmin"
	MsgRequestVoteData MessageType = "requestVoteData"
	MsgSubmitVote      MessageType = "submitVote"
)

// Server to client.
const (
	MsgVoteUpdate   MessageType = "voteUpdate"
	MsgAdminGranted MessageType = "adminGranted"
	MsgAdminDenied  MessageType = "adminDenied"
	MsgVoteRejected MessageType = "voteRejected"
	MsgError        MessageType = "error"
)

// Rejection reasons carried by voteRejected.
const (
	ReasonDenied   = "denied"
	ReasonNotFound = "not_found"
)

const adminDeniedReason = "Incorrect password"

// WSMessage is the outbound envelope. Seq is the snapshot version on
// voteUpdate and zero elsewhere.
type WSMessage struct {
	Type    MessageType `json:"type"`
	Seq     uint64      `json:"seq,omitempty"`
	Payload interface{} `json:"payload,omitempty"`
}

// InboundMessage is the client envelope; Payload is decoded per Type.
type InboundMessage struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// VoteUpdatePayload maps unit id to unit.
type VoteUpdatePayload map[string]tally.Unit

// SubmitVotePayload names the vote being cast. Faculty and VoteType are the
// legacy field names and are used when UnitID and Option are empty.
type SubmitVotePayload struct {
	UnitID   string `json:"unitId,omitempty"`
	Option   string `json:"option,omitempty"`
	Faculty  string `json:"faculty,omitempty"`
	VoteType string `json:"voteType,omitempty"`
}

type VoteRejectedPayload struct {
	Reason string `json:"reason"`
	UnitID string `json:"unitId,omitempty"`
}

type ErrorPayload struct {
	Reason string `json:"reason"`
}

func snapshotMessage(snap tally.Snapshot) WSMessage {
	return WSMessage{
		Type:    MsgVoteUpdate,
		Seq:     snap.Version,
		Payload: VoteUpdatePayload(snap.ByID()),
	}
}

func decodeInbound(data []byte) (InboundMessage, error) {
	var in InboundMessage
	if err := json.Unmarshal(data, &in); err != nil {
		return InboundMessage{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if in.Type == "" {
		return InboundMessage{}, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	return in, nil
}

// decodeSecret accepts the secret as a bare JSON string.
func decodeSecret(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", fmt.Errorf("%w: missing secret", ErrMalformed)
	}
	var secret string
	if err := json.Unmarshal(raw, &secret); err != nil {
		return "", fmt.Errorf("%w: secret must be a string", ErrMalformed)
	}
	return secret, nil
}

func decodeSubmitVote(raw json.RawMessage) (string, tally.Option, error) {
	if len(raw) == 0 {
		return "", "", fmt.Errorf("%w: missing vote", ErrMalformed)
	}
	var p SubmitVotePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	unitID := strings.TrimSpace(p.UnitID)
	if unitID == "" {
		unitID = strings.TrimSpace(p.Faculty)
	}
	option := p.Option
	if option == "" {
		option = p.VoteType
	}
	if unitID == "" {
		return "", "", fmt.Errorf("%w: missing unitId", ErrMalformed)
	}
	if option == "" {
		return "", "", fmt.Errorf("%w: missing option", ErrMalformed)
	}
	opt, err := tally.ParseOption(option)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return unitID, opt, nil
}

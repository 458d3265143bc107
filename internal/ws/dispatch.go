package ws

import (
	"errors"
	"log/slog"

	"github.com/votecast/backend/internal/connid"
	"github.com/votecast/backend/internal/gateway"
	"github.com/votecast/backend/internal/tally"
)

// handleMessage runs one inbound event for id. Failures are answered to id
// only; nothing here is ever broadcast except through the gateway.
func (s *Server) handleMessage(id connid.ID, data []byte) {
	in, err := decodeInbound(data)
	if err != nil {
		s.replyMalformed(id, err)
		return
	}

	switch in.Type {
	case MsgRequestAdmin:
		secret, err := decodeSecret(in.Payload)
		if err != nil {
			s.replyMalformed(id, err)
			return
		}
		s.handleRequestAdmin(id, secret)

	case MsgRequestVoteData:
		if err := s.broadcaster.SendSnapshotTo(id); err != nil {
			slog.Warn("snapshot not delivered", "conn", id, "error", err)
		}

	case MsgSubmitVote:
		unitID, option, err := decodeSubmitVote(in.Payload)
		if err != nil {
			s.gateway.RecordMalformed()
			s.replyMalformed(id, err)
			return
		}
		s.handleSubmitVote(id, unitID, option)

	default:
		s.replyMalformed(id, errors.New("unknown event "+string(in.Type)))
	}
}

func (s *Server) handleRequestAdmin(id connid.ID, secret string) {
	if s.gateway.Authorize(id, secret) {
		s.reply(id, WSMessage{Type: MsgAdminGranted})
	} else {
		s.reply(id, WSMessage{Type: MsgAdminDenied, Payload: adminDeniedReason})
	}
	s.sessions.Refresh()
}

func (s *Server) handleSubmitVote(id connid.ID, unitID string, option tally.Option) {
	_, err := s.gateway.Submit(id, unitID, option)
	switch {
	case err == nil:
	case errors.Is(err, gateway.ErrDenied):
		slog.Warn("vote denied", "conn", id, "unit", unitID)
		s.reply(id, WSMessage{Type: MsgVoteRejected, Payload: VoteRejectedPayload{Reason: ReasonDenied, UnitID: unitID}})
	case errors.Is(err, tally.ErrNotFound):
		slog.Warn("vote for unknown unit", "conn", id, "unit", unitID)
		s.reply(id, WSMessage{Type: MsgVoteRejected, Payload: VoteRejectedPayload{Reason: ReasonNotFound, UnitID: unitID}})
	default:
		s.replyMalformed(id, err)
	}
}

func (s *Server) replyMalformed(id connid.ID, err error) {
	slog.Warn("malformed request", "conn", id, "error", err)
	s.reply(id, WSMessage{Type: MsgError, Payload: ErrorPayload{Reason: err.Error()}})
}

func (s *Server) reply(id connid.ID, msg WSMessage) {
	if err := s.broadcaster.Send(id, msg); err != nil {
		slog.Warn("reply not delivered", "conn", id, "type", msg.Type, "error", err)
	}
}

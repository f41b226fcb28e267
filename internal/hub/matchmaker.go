package hub

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/amerhub/amerhub/internal/logging"
	"github.com/amerhub/amerhub/internal/protocol"
)

// HelpRequest is an applicant's outstanding ask for live assistance.
// It is terminal once accepted, declined, cancelled or expired.
type HelpRequest struct {
	ID            string
	RequesterID   string // session id
	RequesterName string
	Service       string
	ApplicationID string
	Language      string
	CreatedAt     time.Time

	invited map[string]bool // officer session ids still able to respond
	expiry  *time.Timer
}

// chatSession pairs exactly one applicant and one officer inside a room
// created by an accepted help request.
type chatSession struct {
	id            string
	roomID        string
	requestID     string
	applicantID   string
	officerID     string
	applicantName string
	officerName   string
	startedAt     time.Time
}

func (c *chatSession) counterpart(sessionID string) string {
	if c.applicantID == sessionID {
		return c.officerID
	}
	return c.applicantID
}

// RequestOutcome is returned to the gateway after a help request.
type RequestOutcome struct {
	RequestID    string
	Invited      int
	ExistingChat *protocol.ChatStartedData // set when the applicant already has an open chat
}

// takenRetention bounds how long an accepted request id is remembered
// so late accepts can be answered with "already taken" rather than
// "not found".
const takenRetention = 10 * time.Minute

// Matchmaker runs the officer-availability and request/accept/decline
// protocol. Pending requests and active chat sessions live in one
// goroutine, which is what makes "first accept wins" race-free: the
// first accept processed transitions the request, all later ones find
// it in the taken set.
type Matchmaker struct {
	ops   chan func()
	done  chan struct{}
	reg   *SessionRegistry
	rooms *RoomManager
	store MessageStore
	log   *logging.Logger

	requestTTL   time.Duration
	historyLimit int

	pending       map[string]*HelpRequest
	taken         map[string]string // request id → accepting officer identity
	chats         map[string]*chatSession
	chatBySession map[string]string // participant session id → chat id
	chatByRoom    map[string]string // room id → chat id
}

// NewMatchmaker creates a matchmaker and starts its owner goroutine.
func NewMatchmaker(reg *SessionRegistry, rooms *RoomManager, store MessageStore, requestTTL time.Duration, historyLimit int, log *logging.Logger) *Matchmaker {
	m := &Matchmaker{
		ops:           make(chan func(), 64),
		done:          make(chan struct{}),
		reg:           reg,
		rooms:         rooms,
		store:         store,
		log:           log.Sub("matchmaker"),
		requestTTL:    requestTTL,
		historyLimit:  historyLimit,
		pending:       make(map[string]*HelpRequest),
		taken:         make(map[string]string),
		chats:         make(map[string]*chatSession),
		chatBySession: make(map[string]string),
		chatByRoom:    make(map[string]string),
	}
	go m.run()
	return m
}

func (m *Matchmaker) run() {
	for {
		select {
		case <-m.done:
			return
		case op := <-m.ops:
			op()
		}
	}
}

// Stop terminates the owner goroutine.
func (m *Matchmaker) Stop() {
	close(m.done)
}

func (m *Matchmaker) do(fn func()) {
	ran := make(chan struct{})
	select {
	case m.ops <- func() { fn(); close(ran) }:
		<-ran
	case <-m.done:
	}
}

// chatRoomID derives the deterministic room id for an accepted request.
// Requests tied to an application record share a room id across
// conversations, which is how history hydration finds prior messages.
func chatRoomID(req *HelpRequest) string {
	if req.ApplicationID != "" {
		return "chat_app_" + req.ApplicationID
	}
	return "chat_" + req.ID
}

// Request creates a pending help request and broadcasts it to every
// available officer at once: first responder wins, this is not a queue.
// ErrNoOfficers is returned immediately when nobody can take it.
func (m *Matchmaker) Request(sess *Session, data protocol.RequestAssistanceData) (RequestOutcome, error) {
	var (
		out RequestOutcome
		err error
	)
	m.do(func() {
		if chatID, ok := m.chatBySession[sess.ID]; ok {
			chat := m.chats[chatID]
			out.ExistingChat = &protocol.ChatStartedData{
				ChatID:      chat.id,
				RequestID:   chat.requestID,
				RoomID:      chat.roomID,
				OfficerName: chat.officerName,
			}
			return
		}

		available := m.availableOfficersLocked()
		if len(available) == 0 {
			err = ErrNoOfficers
			return
		}

		req := &HelpRequest{
			ID:            uuid.New().String(),
			RequesterID:   sess.ID,
			RequesterName: sess.DisplayName,
			Service:       data.Service,
			ApplicationID: data.ApplicationID,
			Language:      data.Language,
			CreatedAt:     time.Now(),
			invited:       make(map[string]bool, len(available)),
		}

		invite := protocol.MustNew(protocol.KindHelpRequest, protocol.HelpRequestData{
			RequestID:     req.ID,
			ApplicantName: req.RequesterName,
			Service:       req.Service,
			ApplicationID: req.ApplicationID,
			Language:      req.Language,
			CreatedAt:     req.CreatedAt,
		})
		for _, officer := range available {
			if m.reg.Send(officer.ID, invite) {
				req.invited[officer.ID] = true
			}
		}
		if len(req.invited) == 0 {
			err = ErrNoOfficers
			return
		}

		req.expiry = time.AfterFunc(m.requestTTL, func() { m.expire(req.ID) })
		m.pending[req.ID] = req

		m.log.Info().
			Str("requestId", req.ID).
			Str("service", req.Service).
			Int("invited", len(req.invited)).
			Msg("help request broadcast")

		out.RequestID = req.ID
		out.Invited = len(req.invited)
	})
	return out, err
}

// availableOfficersLocked computes officers with presence online that
// are not inside an active chat session.
func (m *Matchmaker) availableOfficersLocked() []SessionInfo {
	var out []SessionInfo
	for _, officer := range m.reg.ByRole(RoleOfficer) {
		if officer.Presence != StatusOnline {
			continue
		}
		if _, busy := m.chatBySession[officer.ID]; busy {
			continue
		}
		out = append(out, officer)
	}
	return out
}

// Accept transitions a pending request to accepted. Exactly one officer
// can win; everyone else gets ErrRequestTaken. On success the chat room
// is materialized, both sides joined, prior history replayed, and the
// officer flipped to busy. The returned payload is the officer's
// chat_session_started data; the applicant is notified directly.
func (m *Matchmaker) Accept(officer *Session, requestID string) (protocol.ChatStartedData, error) {
	var (
		started protocol.ChatStartedData
		err     error
	)
	m.do(func() {
		req, ok := m.pending[requestID]
		if !ok {
			if _, wasTaken := m.taken[requestID]; wasTaken {
				err = ErrRequestTaken
			} else {
				err = ErrRequestNotFound
			}
			return
		}
		if !req.invited[officer.ID] {
			err = ErrRequestNotFound
			return
		}

		delete(m.pending, requestID)
		req.expiry.Stop()
		m.taken[requestID] = officer.Identity
		time.AfterFunc(takenRetention, func() {
			m.do(func() { delete(m.taken, requestID) })
		})

		applicant, ok := m.reg.Get(req.RequesterID)
		if !ok {
			// Requester vanished between broadcast and accept.
			err = ErrRequestNotFound
			return
		}

		roomID := chatRoomID(req)
		m.rooms.Join(applicant, roomID, RoomKindApplicationChat)
		m.rooms.Join(officer, roomID, RoomKindApplicationChat)

		m.hydrateLocked(roomID, applicant.ID, officer.ID)

		m.reg.SetPresence(officer.ID, StatusBusy)

		chat := &chatSession{
			id:            uuid.New().String(),
			roomID:        roomID,
			requestID:     req.ID,
			applicantID:   applicant.ID,
			officerID:     officer.ID,
			applicantName: applicant.DisplayName,
			officerName:   officer.DisplayName,
			startedAt:     time.Now(),
		}
		m.chats[chat.id] = chat
		m.chatBySession[chat.applicantID] = chat.id
		m.chatBySession[chat.officerID] = chat.id
		m.chatByRoom[roomID] = chat.id

		m.reg.Send(applicant.ID, protocol.MustNew(protocol.KindAmerConnected, protocol.ChatStartedData{
			ChatID:      chat.id,
			RequestID:   req.ID,
			RoomID:      roomID,
			OfficerName: officer.DisplayName,
		}))

		withdrawal := protocol.MustNew(protocol.KindRequestTaken, protocol.RequestRefData{
			RequestID: req.ID,
			TakenBy:   officer.Identity,
		})
		for invitee := range req.invited {
			if invitee == officer.ID {
				continue
			}
			m.reg.Send(invitee, withdrawal)
		}

		m.log.Info().
			Str("requestId", req.ID).
			Str("chatId", chat.id).
			Str("officer", officer.Identity).
			Msg("help request accepted")

		started = protocol.ChatStartedData{
			ChatID:        chat.id,
			RequestID:     req.ID,
			RoomID:        roomID,
			ApplicantName: applicant.DisplayName,
		}
	})
	return started, err
}

// hydrateLocked replays stored history for the chat room to both
// participants. Persistence problems only cost the replay.
func (m *Matchmaker) hydrateLocked(roomID, applicantID, officerID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	history, err := m.store.History(ctx, roomID, m.historyLimit)
	if err != nil {
		m.log.Warn().Err(err).Str("roomId", roomID).Msg("history hydration failed")
		return
	}
	for _, msg := range history {
		env := protocol.MustNew(protocol.KindNewMessage, protocol.NewMessageData{
			MessageID:  msg.ID,
			RoomID:     msg.RoomID,
			SenderID:   msg.SenderID,
			SenderName: msg.SenderName,
			Content:    msg.Content,
			Language:   msg.Language,
			Origin:     msg.Origin,
			Timestamp:  msg.CreatedAt,
		})
		m.reg.Send(applicantID, env)
		m.reg.Send(officerID, env)
	}
}

// Decline is terminal for the declining officer only; the request stays
// pending while other invitees remain. When the last invitee declines
// the request is declined outright and the applicant notified.
func (m *Matchmaker) Decline(officer *Session, requestID string) error {
	var err error
	m.do(func() {
		req, ok := m.pending[requestID]
		if !ok || !req.invited[officer.ID] {
			err = ErrRequestNotFound
			return
		}
		delete(req.invited, officer.ID)
		if len(req.invited) > 0 {
			return
		}
		delete(m.pending, requestID)
		req.expiry.Stop()
		m.reg.Send(req.RequesterID, protocol.MustNew(protocol.KindRequestDeclined, protocol.RequestRefData{
			RequestID: requestID,
		}))
		m.log.Info().Str("requestId", requestID).Msg("help request declined by all officers")
	})
	return err
}

// Cancel withdraws a pending request on the applicant's initiative and
// notifies every invited officer immediately.
func (m *Matchmaker) Cancel(applicant *Session, requestID string) error {
	var err error
	m.do(func() {
		req, ok := m.pending[requestID]
		if !ok {
			err = ErrRequestNotFound
			return
		}
		if req.RequesterID != applicant.ID {
			err = ErrAccessDenied
			return
		}
		m.withdrawLocked(req, protocol.KindRequestCancelled)
		m.log.Info().Str("requestId", requestID).Msg("help request cancelled")
	})
	return err
}

// expire fires from the request's timer. The request is removed and the
// applicant told; invited officers get a withdrawal notice. Expiry
// cancels rather than escalates.
func (m *Matchmaker) expire(requestID string) {
	m.do(func() {
		req, ok := m.pending[requestID]
		if !ok {
			return
		}
		m.withdrawLocked(req, protocol.KindRequestCancelled)
		m.reg.Send(req.RequesterID, protocol.MustNew(protocol.KindRequestExpired, protocol.RequestRefData{
			RequestID: requestID,
		}))
		m.log.Info().Str("requestId", requestID).Msg("help request expired")
	})
}

// withdrawLocked removes a pending request and sends the given notice
// kind to all still-invited officers.
func (m *Matchmaker) withdrawLocked(req *HelpRequest, noticeKind string) {
	delete(m.pending, req.ID)
	req.expiry.Stop()
	notice := protocol.MustNew(noticeKind, protocol.RequestRefData{RequestID: req.ID})
	for invitee := range req.invited {
		m.reg.Send(invitee, notice)
	}
}

// EndChatByRoom ends the chat session bound to roomID on behalf of a
// participant who explicitly leaves. It reports whether a chat existed
// there; when it does, the counterpart is notified and the room is
// dissolved.
func (m *Matchmaker) EndChatByRoom(sess *Session, roomID, reason string) bool {
	var handled bool
	m.do(func() {
		chatID, ok := m.chatByRoom[roomID]
		if !ok {
			return
		}
		chat := m.chats[chatID]
		if chat.applicantID != sess.ID && chat.officerID != sess.ID {
			return
		}
		m.endChatLocked(chat, sess.ID, reason)
		handled = true
	})
	return handled
}

// endChatLocked tears a chat session down: counterpart notified, the
// surviving officer returned to available, room dissolved. History
// stays in the message store regardless.
func (m *Matchmaker) endChatLocked(chat *chatSession, leavingID, reason string) {
	delete(m.chats, chat.id)
	delete(m.chatBySession, chat.applicantID)
	delete(m.chatBySession, chat.officerID)
	delete(m.chatByRoom, chat.roomID)

	other := chat.counterpart(leavingID)
	m.reg.Send(other, protocol.MustNew(protocol.KindChatEnded, protocol.ChatEndedData{
		ChatID: chat.id,
		RoomID: chat.roomID,
		Reason: reason,
	}))
	if other == chat.officerID {
		m.reg.SetPresence(chat.officerID, StatusOnline)
	}
	m.rooms.Dissolve(chat.roomID)

	m.log.Info().Str("chatId", chat.id).Str("reason", reason).Msg("chat session ended")
}

// DropSession garbage-collects everything tied to a disconnecting
// session: its pending requests, its invitations, and any active chat.
func (m *Matchmaker) DropSession(sess *Session) {
	m.do(func() {
		for id, req := range m.pending {
			if req.RequesterID == sess.ID {
				m.withdrawLocked(req, protocol.KindRequestCancelled)
				continue
			}
			if req.invited[sess.ID] {
				delete(req.invited, sess.ID)
				if len(req.invited) == 0 {
					delete(m.pending, id)
					req.expiry.Stop()
					m.reg.Send(req.RequesterID, protocol.MustNew(protocol.KindRequestDeclined, protocol.RequestRefData{
						RequestID: id,
					}))
				}
			}
		}

		if chatID, ok := m.chatBySession[sess.ID]; ok {
			chat := m.chats[chatID]
			reason := "applicant disconnected"
			if sess.ID == chat.officerID {
				reason = "officer disconnected"
			}
			m.endChatLocked(chat, sess.ID, reason)
		}
	})
}

// PendingCount returns the number of pending requests.
func (m *Matchmaker) PendingCount() int {
	var n int
	m.do(func() { n = len(m.pending) })
	return n
}

// ActiveChats returns the number of live chat sessions.
func (m *Matchmaker) ActiveChats() int {
	var n int
	m.do(func() { n = len(m.chats) })
	return n
}

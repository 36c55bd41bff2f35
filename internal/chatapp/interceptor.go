package chatapp

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"originmesh/internal/observability/metrics"
	"originmesh/internal/wsexchange"
)

// Interceptor is a concrete wsexchange.Interceptor implementing a live
// chat room over WebSocketSessions, adapted from the teacher's
// chat.Gateway. Where Gateway fanned out to *client structs it owned
// directly, Interceptor fans out to *wsexchange.WebSocketSession, and
// persistence (the teacher's Queue/Store) is dropped: chat state lives
// only for the process lifetime, the same way the rest of this module's
// ambient state does.
type Interceptor struct {
	logger *slog.Logger

	mu       sync.RWMutex
	rooms    map[string]map[*wsexchange.WebSocketSession]struct{}
	members  map[*wsexchange.WebSocketSession]map[string]struct{}
	users    map[*wsexchange.WebSocketSession]string
	bans     map[string]map[string]struct{}
	timeouts map[string]map[string]time.Time
}

// NewInterceptor constructs an empty Interceptor.
func NewInterceptor(logger *slog.Logger) *Interceptor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Interceptor{
		logger:   logger,
		rooms:    make(map[string]map[*wsexchange.WebSocketSession]struct{}),
		members:  make(map[*wsexchange.WebSocketSession]map[string]struct{}),
		users:    make(map[*wsexchange.WebSocketSession]string),
		bans:     make(map[string]map[string]struct{}),
		timeouts: make(map[string]map[string]time.Time),
	}
}

type inboundMessage struct {
	Type       string `json:"type"`
	ChannelID  string `json:"channelId"`
	Content    string `json:"content"`
	TargetID   string `json:"targetId"`
	DurationMs int    `json:"durationMs"`
	Reason     string `json:"reason"`
	MessageID  string `json:"messageId"`
}

type outboundMessage struct {
	Type  string `json:"type,omitempty"`
	Error string `json:"error,omitempty"`
	Event *Event `json:"event,omitempty"`
}

// OnRequestPrepared registers session's sole client and requires a "user"
// query parameter identifying the connecting viewer, mirroring the
// minimal identity the teacher's HandleConnection received from its
// caller as an already-authenticated models.User.
func (in *Interceptor) OnRequestPrepared(session *wsexchange.WebSocketSession) error {
	userID := strings.TrimSpace(session.GetRequest().URL.Query().Get("user"))
	if userID == "" {
		return fmt.Errorf("chatapp: user query parameter is required")
	}

	info := wsexchange.NewWebSocketSessionInfo(session.NextSessionInfoID(), "", session.GetRequest().Host, "chat", "", session.GetRequest().URL)
	info.SetString("userID", userID)
	if !session.AddClient(info) {
		return fmt.Errorf("chatapp: session already has a client attached")
	}

	in.mu.Lock()
	in.members[session] = make(map[string]struct{})
	in.users[session] = userID
	in.mu.Unlock()
	return nil
}

// OnDataReceived decodes payload as an inboundMessage and dispatches it,
// the same command vocabulary as the teacher's client.readLoop switch.
func (in *Interceptor) OnDataReceived(session *wsexchange.WebSocketSession, payload []byte) bool {
	var msg inboundMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		in.sendError(session, "invalid payload")
		return true
	}

	switch msg.Type {
	case "join":
		in.handleJoin(session, msg.ChannelID)
	case "leave":
		in.handleLeave(session, msg.ChannelID)
	case "message":
		in.handleMessage(session, msg)
	case "timeout":
		in.handleModeration(session, msg, ModerationActionTimeout)
	case "remove_timeout":
		in.handleModeration(session, msg, ModerationActionRemoveTimeout)
	case "ban":
		in.handleModeration(session, msg, ModerationActionBan)
	case "unban":
		in.handleModeration(session, msg, ModerationActionUnban)
	default:
		in.sendError(session, "unknown command")
	}
	return true
}

// OnRequestCompleted drops session from every room it joined, the
// fan-out equivalent of the teacher's client.close walking c.rooms.
func (in *Interceptor) OnRequestCompleted(session *wsexchange.WebSocketSession) {
	in.mu.Lock()
	channels := in.members[session]
	delete(in.members, session)
	delete(in.users, session)
	for channelID := range channels {
		if recipients := in.rooms[channelID]; recipients != nil {
			delete(recipients, session)
			if len(recipients) == 0 {
				delete(in.rooms, channelID)
			}
		}
	}
	in.mu.Unlock()
}

func (in *Interceptor) handleJoin(session *wsexchange.WebSocketSession, channelID string) {
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		in.sendError(session, "channel required")
		return
	}
	userID := in.userID(session)
	if in.isBanned(channelID, userID) {
		in.sendError(session, "user is banned")
		return
	}
	if expiry, ok := in.timeoutExpiry(channelID, userID); ok {
		if time.Now().UTC().Before(expiry) {
			in.sendError(session, "user is timed out")
			return
		}
		in.clearTimeout(channelID, userID)
	}

	in.mu.Lock()
	if in.rooms[channelID] == nil {
		in.rooms[channelID] = make(map[*wsexchange.WebSocketSession]struct{})
	}
	in.rooms[channelID][session] = struct{}{}
	if in.members[session] == nil {
		in.members[session] = make(map[string]struct{})
	}
	in.members[session][channelID] = struct{}{}
	in.mu.Unlock()

	in.send(session, outboundMessage{Type: "ack"})
}

func (in *Interceptor) handleLeave(session *wsexchange.WebSocketSession, channelID string) {
	if channelID == "" {
		return
	}
	in.mu.Lock()
	if recipients := in.rooms[channelID]; recipients != nil {
		delete(recipients, session)
		if len(recipients) == 0 {
			delete(in.rooms, channelID)
		}
	}
	if joined := in.members[session]; joined != nil {
		delete(joined, channelID)
	}
	in.mu.Unlock()
}

func (in *Interceptor) handleMessage(session *wsexchange.WebSocketSession, msg inboundMessage) {
	if msg.ChannelID == "" {
		in.sendError(session, "channel required")
		return
	}
	if !in.isJoined(session, msg.ChannelID) {
		in.sendError(session, "join channel first")
		return
	}
	trimmed := strings.TrimSpace(msg.Content)
	if trimmed == "" {
		in.sendError(session, "message cannot be empty")
		return
	}
	if len([]rune(trimmed)) > 500 {
		in.sendError(session, "message exceeds 500 characters")
		return
	}
	id, err := generateID()
	if err != nil {
		in.sendError(session, "failed to generate message id")
		return
	}
	event := MessageEvent{
		ID:        id,
		ChannelID: msg.ChannelID,
		UserID:    in.userID(session),
		Content:   trimmed,
		CreatedAt: time.Now().UTC(),
	}
	evt := Event{Type: EventTypeMessage, Message: &event, OccurredAt: event.CreatedAt}
	in.broadcast(msg.ChannelID, evt)
	metrics.Default().ObserveChatEvent("message")
	in.send(session, outboundMessage{Type: "ack", Event: &evt})
}

func (in *Interceptor) handleModeration(session *wsexchange.WebSocketSession, msg inboundMessage, action ModerationAction) {
	if msg.ChannelID == "" || msg.TargetID == "" {
		in.sendError(session, "channel and target required")
		return
	}
	if !in.isJoined(session, msg.ChannelID) {
		in.sendError(session, "join channel first")
		return
	}
	actorID := in.userID(session)
	if action == ModerationActionTimeout && msg.TargetID == actorID {
		in.sendError(session, "cannot timeout yourself")
		return
	}

	evt := ModerationEvent{
		Action:    action,
		ChannelID: msg.ChannelID,
		ActorID:   actorID,
		TargetID:  msg.TargetID,
		Reason:    strings.TrimSpace(msg.Reason),
	}
	if action == ModerationActionTimeout {
		duration := time.Duration(msg.DurationMs) * time.Millisecond
		if duration <= 0 {
			in.sendError(session, "duration must be positive")
			return
		}
		expires := time.Now().Add(duration).UTC()
		evt.ExpiresAt = &expires
	}

	in.applyModeration(evt)
	broadcast := Event{Type: EventTypeModeration, Moderation: &evt, OccurredAt: time.Now().UTC()}
	in.broadcast(msg.ChannelID, broadcast)
	metrics.Default().ObserveChatEvent("moderation:" + string(action))
}

func (in *Interceptor) applyModeration(evt ModerationEvent) {
	in.mu.Lock()
	defer in.mu.Unlock()
	switch evt.Action {
	case ModerationActionBan:
		if in.bans[evt.ChannelID] == nil {
			in.bans[evt.ChannelID] = make(map[string]struct{})
		}
		in.bans[evt.ChannelID][evt.TargetID] = struct{}{}
	case ModerationActionUnban:
		delete(in.bans[evt.ChannelID], evt.TargetID)
	case ModerationActionTimeout:
		if in.timeouts[evt.ChannelID] == nil {
			in.timeouts[evt.ChannelID] = make(map[string]time.Time)
		}
		if evt.ExpiresAt != nil {
			in.timeouts[evt.ChannelID][evt.TargetID] = evt.ExpiresAt.UTC()
		}
	case ModerationActionRemoveTimeout:
		delete(in.timeouts[evt.ChannelID], evt.TargetID)
	}
}

func (in *Interceptor) isBanned(channelID, userID string) bool {
	in.mu.RLock()
	defer in.mu.RUnlock()
	_, banned := in.bans[channelID][userID]
	return banned
}

func (in *Interceptor) timeoutExpiry(channelID, userID string) (time.Time, bool) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	expiry, ok := in.timeouts[channelID][userID]
	return expiry, ok
}

func (in *Interceptor) clearTimeout(channelID, userID string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	delete(in.timeouts[channelID], userID)
}

func (in *Interceptor) isJoined(session *wsexchange.WebSocketSession, channelID string) bool {
	in.mu.RLock()
	defer in.mu.RUnlock()
	_, ok := in.members[session][channelID]
	return ok
}

func (in *Interceptor) userID(session *wsexchange.WebSocketSession) string {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.users[session]
}

// broadcast snapshots the room's members under the read lock, then
// writes outside it, since WebSocketResponse.Send must never be called
// while holding a lock shared with OnRequestCompleted's cleanup path.
func (in *Interceptor) broadcast(channelID string, event Event) {
	in.mu.RLock()
	recipients := make([]*wsexchange.WebSocketSession, 0, len(in.rooms[channelID]))
	for session := range in.rooms[channelID] {
		recipients = append(recipients, session)
	}
	in.mu.RUnlock()

	payload, err := json.Marshal(outboundMessage{Type: "event", Event: &event})
	if err != nil {
		in.logger.Error("failed to marshal chat event", "error", err)
		return
	}
	for _, session := range recipients {
		if _, err := session.Response().Send(wsexchange.OpcodeText, payload); err != nil {
			in.logger.Warn("failed to deliver chat event", "channel", channelID, "error", err)
		}
	}
}

func (in *Interceptor) send(session *wsexchange.WebSocketSession, msg outboundMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		in.logger.Error("failed to marshal chat message", "error", err)
		return
	}
	if _, err := session.Response().Send(wsexchange.OpcodeText, payload); err != nil {
		in.logger.Warn("failed to deliver chat message", "error", err)
	}
}

func (in *Interceptor) sendError(session *wsexchange.WebSocketSession, message string) {
	in.send(session, outboundMessage{Type: "error", Error: message})
}

func generateID() (string, error) {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"golang.org/x/sync/singleflight"

	"github.com/MahiaRaniNatarajan/smartlearn/internal/audit"
	"github.com/MahiaRaniNatarajan/smartlearn/internal/auth"
	"github.com/MahiaRaniNatarajan/smartlearn/internal/delivery"
	"github.com/MahiaRaniNatarajan/smartlearn/internal/domain"
	"github.com/MahiaRaniNatarajan/smartlearn/internal/hub"
	"github.com/MahiaRaniNatarajan/smartlearn/internal/kafka"
	"github.com/MahiaRaniNatarajan/smartlearn/internal/persist"
	"github.com/MahiaRaniNatarajan/smartlearn/internal/presence"
	"github.com/MahiaRaniNatarajan/smartlearn/internal/repository"
	"github.com/MahiaRaniNatarajan/smartlearn/internal/router"
	"github.com/MahiaRaniNatarajan/smartlearn/pkg/log"
)

const (
	defaultHistoryLimit    = 100
	defaultHistoryMaxLimit = 500
)

// Config holds the service-level policy switches.
type Config struct {
	// AuthResultFrames sends an auth_result frame after every handshake
	// attempt. When false a failed handshake is silent.
	AuthResultFrames bool
	HistoryLimit     int
	HistoryMaxLimit  int
}

// Deps are the collaborators of the chat service.
type Deps struct {
	Hub       *hub.Hub
	Verifier  auth.Verifier
	Router    *router.Router
	Gateway   *persist.Gateway
	Fanout    *delivery.Fanout
	Store     repository.MessageStore
	Members   repository.MembershipLookup
	Directory presence.Directory
	Producer  kafka.MessageProducer
}

type chatService struct {
	hub       *hub.Hub
	verifier  auth.Verifier
	router    *router.Router
	gateway   *persist.Gateway
	fanout    *delivery.Fanout
	store     repository.MessageStore
	members   repository.MembershipLookup
	directory presence.Directory
	producer  kafka.MessageProducer
	config    Config
	sf        singleflight.Group

	// identities orders registry and presence updates per user.
	identities *hub.IdentityLocks
}

func NewChatService(deps Deps, cfg Config) ChatService {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaultHistoryLimit
	}
	if cfg.HistoryMaxLimit <= 0 {
		cfg.HistoryMaxLimit = defaultHistoryMaxLimit
	}
	if deps.Producer == nil {
		deps.Producer = kafka.NopProducer{}
	}
	return &chatService{
		hub:       deps.Hub,
		verifier:  deps.Verifier,
		router:    deps.Router,
		gateway:   deps.Gateway,
		fanout:    deps.Fanout,
		store:     deps.Store,
		members:   deps.Members,
		directory: deps.Directory,
		producer:  deps.Producer,
		config:    cfg,

		identities: hub.NewIdentityLocks(),
	}
}

func (s *chatService) HandleAuth(ctx context.Context, c *hub.Client, token string) error {
	l := log.Ctx(ctx)

	if c.Session.IsAuthenticated() {
		return domain.ErrAlreadyAuthenticated
	}

	identity, err := s.verifier.Verify(ctx, token)
	if err != nil {
		audit.LogWithDetail(ctx, audit.ActionAuthFailed, 0, err.Error(), "handshake rejected")
		if s.config.AuthResultFrames {
			s.send(ctx, c, &domain.AuthResultMessage{
				Type:    domain.MsgTypeAuthResult,
				Success: false,
				Message: err.Error(),
			})
		}
		return fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}

	if err := c.Session.Authenticate(identity); err != nil {
		return err
	}

	unlock := s.identities.Lock(identity.UserID)
	if prev := s.hub.Register(identity.UserID, c); prev != nil {
		audit.LogWithTarget(ctx, audit.ActionSupersede, identity.UserID, prev.ID, "connection superseded")
	}
	if err := s.directory.MarkOnline(ctx, identity.UserID); err != nil {
		l.Warn().Err(err).Int64(log.FieldUserID, identity.UserID).Msg("failed to record presence")
	}
	unlock()

	audit.Log(ctx, audit.ActionAuth, identity.UserID, "connection authenticated")

	if s.config.AuthResultFrames {
		s.send(ctx, c, &domain.AuthResultMessage{
			Type:     domain.MsgTypeAuthResult,
			Success:  true,
			UserID:   identity.UserID,
			Username: identity.Username,
		})
	}
	return nil
}

func (s *chatService) HandleChat(ctx context.Context, c *hub.Client, frame *domain.ChatFrame) error {
	identity, ok := c.Session.Identity()
	if !ok || !c.Session.IsAuthenticated() {
		return ErrNotAuthenticated
	}

	candidate, err := s.router.Validate(identity, frame)
	if err != nil {
		return err
	}

	// Recipients and fan-out run after commit, outside the connection's
	// lifetime: a sender that disconnects still gets its message delivered.
	detached := context.WithoutCancel(ctx)
	msg, err := s.gateway.CommitAndDeliver(ctx, candidate, func(m *domain.Message) persist.Release {
		recipients, rerr := s.router.Recipients(detached, m)
		return func() { s.release(detached, m, recipients, rerr) }
	})
	if err != nil {
		audit.LogWithDetail(ctx, audit.ActionSendFailed, identity.UserID, err.Error(), "message not persisted")
		s.send(ctx, c, domain.NewErrorMessage(domain.ErrCodePersistenceFailed, "message could not be saved"))
		return err
	}

	audit.LogWithTarget(ctx, audit.ActionSendMessage, identity.UserID, strconv.FormatInt(msg.ID, 10), "message sent")
	return nil
}

// release is the ordered step of a committed message: live fan-out, then
// the event publish, both in commit order.
func (s *chatService) release(ctx context.Context, m *domain.Message, recipients []int64, recipientsErr error) {
	l := log.Ctx(ctx)

	if recipientsErr != nil {
		l.Error().Err(recipientsErr).Int64(log.FieldMessageID, m.ID).Msg("failed to resolve recipients")
	} else {
		report := s.fanout.Deliver(ctx, m, recipients)
		l.Debug().
			Int64(log.FieldMessageID, m.ID).
			Int(log.FieldDelivered, report.Delivered).
			Int(log.FieldOffline, report.Offline).
			Int(log.FieldFailed, report.Failed).
			Msg("chat message delivered")
	}

	if err := s.producer.ProduceMessage(ctx, m); err != nil {
		l.Warn().Err(err).Int64(log.FieldMessageID, m.ID).Msg("failed to publish message event")
	}
}

func (s *chatService) HandleDisconnect(ctx context.Context, c *hub.Client) error {
	c.Close()

	identity, ok := c.Session.Identity()
	if !ok {
		return nil
	}

	// Unregister and MarkOffline run as one step per user, ordered against
	// Register and MarkOnline in HandleAuth.
	unlock := s.identities.Lock(identity.UserID)
	if !s.hub.Unregister(c) {
		unlock()
		return nil
	}
	if err := s.directory.MarkOffline(context.WithoutCancel(ctx), identity.UserID); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Int64(log.FieldUserID, identity.UserID).Msg("failed to clear presence")
	}
	unlock()

	audit.Log(ctx, audit.ActionDisconnect, identity.UserID, "connection closed")
	return nil
}

func (s *chatService) History(ctx context.Context, requester domain.Identity, q HistoryQuery) (*HistoryPage, error) {
	if (q.TeamID == nil) == (q.ReceiverID == nil) {
		return nil, ErrInvalidHistoryQuery
	}

	limit := q.Limit
	if limit <= 0 {
		limit = s.config.HistoryLimit
	}
	if limit > s.config.HistoryMaxLimit {
		limit = s.config.HistoryMaxLimit
	}

	var (
		key   string
		fetch func() (interface{}, error)
	)
	if q.TeamID != nil {
		teamID := *q.TeamID
		member, err := s.members.IsMember(ctx, teamID, requester.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to check team membership: %w", err)
		}
		if !member {
			return nil, ErrNotTeamMember
		}
		key = fmt.Sprintf("team:%d:%d:%d", teamID, q.After, limit)
		fetch = func() (interface{}, error) {
			return s.store.TeamHistory(ctx, teamID, q.After, limit+1)
		}
	} else {
		a, b := requester.UserID, *q.ReceiverID
		if a > b {
			a, b = b, a
		}
		key = fmt.Sprintf("direct:%d:%d:%d:%d", a, b, q.After, limit)
		fetch = func() (interface{}, error) {
			return s.store.DirectHistory(ctx, a, b, q.After, limit+1)
		}
	}

	result, err, _ := s.sf.Do(key, fetch)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages from repository: %w", err)
	}

	messages, ok := result.([]*domain.Message)
	if !ok {
		return nil, errors.New("unexpected result type from singleflight")
	}

	page := &HistoryPage{
		Messages:   make([]*domain.ChatMessageOut, 0, min(len(messages), limit)),
		NextCursor: q.After,
	}
	if len(messages) > limit {
		messages = messages[:limit]
		page.HasMore = true
	}
	for _, m := range messages {
		page.Messages = append(page.Messages, m.ToOut())
	}
	if len(messages) > 0 {
		page.NextCursor = messages[len(messages)-1].ID
	}
	return page, nil
}

func (s *chatService) Presence(ctx context.Context, userID int64) (*PresenceStatus, error) {
	status := &PresenceStatus{UserID: userID}
	if _, ok := s.hub.Lookup(userID); ok {
		status.Local = true
		status.Online = true
	}

	addr, err := s.directory.Lookup(ctx, userID)
	switch {
	case err == nil:
		status.Online = true
		status.Address = addr
	case errors.Is(err, presence.ErrNotOnline):
	default:
		return nil, fmt.Errorf("failed to lookup presence: %w", err)
	}
	return status, nil
}

func (s *chatService) ConnectionCount() int {
	return s.hub.Count()
}

func (s *chatService) Start(ctx context.Context) error {
	if err := s.directory.StartHeartbeat(ctx); err != nil {
		return fmt.Errorf("failed to start presence heartbeat: %w", err)
	}
	l := log.L()
	l.Info().Msg("chat service started")
	return nil
}

func (s *chatService) Stop() error {
	l := log.L()
	s.directory.StopHeartbeat()
	if err := s.producer.Close(); err != nil {
		l.Error().Err(err).Msg("failed to close kafka producer")
	}
	if err := s.directory.Close(); err != nil {
		l.Error().Err(err).Msg("failed to close presence directory")
	}
	return nil
}

func (s *chatService) send(ctx context.Context, c *hub.Client, frame interface{}) {
	data, err := json.Marshal(frame)
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldClientID, c.ID).Msg("failed to encode frame")
		return
	}
	if err := c.Enqueue(data); err != nil {
		l := log.Ctx(ctx)
		l.Debug().Err(err).Str(log.FieldClientID, c.ID).Msg("failed to queue frame")
	}
}

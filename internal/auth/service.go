package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	dErrors "givingchain/pkg/domain-errors"
	"givingchain/pkg/platform/sentinel"

	"givingchain/internal/audit"
	"givingchain/internal/identity"
)

// DefaultSessionTTL bounds how long a login stays usable.
const DefaultSessionTTL = 24 * time.Hour

// LoginResult is what a successful register or login hands back to the
// transport layer.
type LoginResult struct {
	Actor       identity.Actor
	SessionID   string
	AccessToken string
}

// Service ties registration and login to session and token issuance.
type Service struct {
	identity   *identity.Service
	sessions   SessionStore
	tokens     *TokenService
	auditor    *audit.Publisher
	sessionTTL time.Duration
	logger     *slog.Logger
}

func NewService(ids *identity.Service, sessions SessionStore, tokens *TokenService, auditor *audit.Publisher, logger *slog.Logger) *Service {
	return &Service{
		identity:   ids,
		sessions:   sessions,
		tokens:     tokens,
		auditor:    auditor,
		sessionTTL: DefaultSessionTTL,
		logger:     logger,
	}
}

// Register creates an account and logs it straight in.
func (s *Service) Register(ctx context.Context, username, password string) (*LoginResult, error) {
	actor, err := s.identity.Register(ctx, username, password)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, audit.EventAccountRegistered, actor)
	return s.openSession(ctx, actor)
}

// Login verifies credentials and opens a session.
func (s *Service) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	actor, err := s.identity.Verify(ctx, username, password)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeUnauthorized) {
			_ = s.auditor.Emit(ctx, audit.Event{
				Action: string(audit.EventLoginFailed),
				Detail: username,
			})
		}
		return nil, err
	}
	s.emit(ctx, audit.EventLoginSucceeded, actor)
	return s.openSession(ctx, actor)
}

// Resume exchanges a bearer token for the actor it represents. This is what
// the auth middleware calls on every authenticated request.
func (s *Service) Resume(ctx context.Context, token string) (identity.Actor, error) {
	actor, _, err := s.ResumeSession(ctx, token)
	return actor, err
}

// ResumeSession is Resume plus the session ID, which the transport layer
// needs for logout.
func (s *Service) ResumeSession(ctx context.Context, token string) (identity.Actor, string, error) {
	claims, err := s.tokens.ValidateToken(token)
	if err != nil {
		return identity.Actor{}, "", err
	}
	session, err := s.sessions.Get(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return identity.Actor{}, "", dErrors.New(dErrors.CodeUnauthenticated, "session expired")
		}
		return identity.Actor{}, "", dErrors.Wrap(dErrors.CodeUnavailable, "session lookup failed", err)
	}
	actor, err := session.Actor()
	if err != nil {
		return identity.Actor{}, "", dErrors.Wrap(dErrors.CodeInternal, "corrupt session", err)
	}
	return actor, session.ID, nil
}

// Logout drops the session behind a token. An already-expired token is fine;
// logout is idempotent.
func (s *Service) Logout(ctx context.Context, token string) error {
	claims, err := s.tokens.ValidateToken(token)
	if err != nil {
		return nil
	}
	return s.sessions.Delete(ctx, claims.SessionID)
}

// LogoutSession drops a session by ID, for callers that already resolved the
// token through middleware.
func (s *Service) LogoutSession(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	return s.sessions.Delete(ctx, sessionID)
}

func (s *Service) openSession(ctx context.Context, actor identity.Actor) (*LoginResult, error) {
	now := time.Now()
	session := &Session{
		ID:        uuid.NewString(),
		DID:       actor.DID,
		Username:  actor.Username,
		KeySeed:   actor.Key.Seed(),
		CreatedAt: now,
		ExpiresAt: now.Add(s.sessionTTL),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, dErrors.Wrap(dErrors.CodeUnavailable, "session create failed", err)
	}

	token, err := s.tokens.GenerateAccessToken(session, s.sessionTTL)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "token signing failed", err)
	}

	s.logger.InfoContext(ctx, "session opened", "did", actor.DID, "session_id", session.ID)
	return &LoginResult{Actor: actor, SessionID: session.ID, AccessToken: token}, nil
}

func (s *Service) emit(ctx context.Context, action audit.AuditEvent, actor identity.Actor) {
	_ = s.auditor.Emit(ctx, audit.Event{
		Action:    string(action),
		ActorDID:  actor.DID,
		ActorName: actor.Username,
		Subject:   actor.DID,
	})
}

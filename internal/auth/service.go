package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"sala.org/internal/obs"
)

// LoginResult is what a successful login returns to the transport layer.
type LoginResult struct {
	Token       string      `json:"token"`
	ExpiresAt   time.Time   `json:"expires_at"`
	User        User        `json:"user"`
	Grants      []RoleGrant `json:"-"`
	Roles       []string    `json:"roles"`
	Permissions []string    `json:"permissions"`
	SessionID   string      `json:"session_id"`
}

// LoginMeta carries request metadata recorded with the session row.
type LoginMeta struct {
	IPAddress string
	UserAgent string
	Location  string
}

// Service implements authentication and verification over a Store. It owns
// the uniform failure behavior: login never reveals whether the username,
// the password or the active flag was at fault.
type Service struct {
	store Store
	codec *TokenCodec
	now   func() time.Time
}

func NewService(store Store, codec *TokenCodec) *Service {
	return &Service{store: store, codec: codec, now: time.Now}
}

// WithClock overrides the service time source. Test use only.
func (s *Service) WithClock(fn func() time.Time) *Service {
	if fn != nil {
		s.now = fn
	}
	return s
}

// Login checks credentials and, only on success, issues a token and opens a
// session row. Every failure mode returns ErrInvalidCredentials and writes
// nothing.
func (s *Service) Login(ctx context.Context, username, password string, meta LoginMeta) (*LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		obs.CountLoginFailure()
		return nil, ErrInvalidCredentials
	}
	user, err := s.store.Users().GetByUsername(ctx, username)
	if err != nil {
		if isNotFound(err) {
			obs.CountLoginFailure()
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.IsActive {
		obs.CountLoginFailure()
		return nil, ErrInvalidCredentials
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		obs.CountLoginFailure()
		return nil, ErrInvalidCredentials
	}

	grants, err := s.store.Users().GrantsForUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	principal := NewPrincipal(*user, grants)

	token, expiresAt, err := s.codec.Generate(user.ID, user.Username, principal.RoleCodes())
	if err != nil {
		return nil, err
	}

	session := &Session{
		UserID:    user.ID,
		SessionID: uuid.NewString(),
		StartAt:   s.now().UTC(),
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		Location:  meta.Location,
	}
	if err := s.store.Sessions().Create(ctx, session); err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}

	return &LoginResult{
		Token:       token,
		ExpiresAt:   expiresAt,
		User:        *user,
		Grants:      grants,
		Roles:       principal.RoleCodes(),
		Permissions: principal.PermissionCodes(),
		SessionID:   session.SessionID,
	}, nil
}

// Verify parses the token and rebuilds the principal from storage. A stale
// token for a since-deactivated user fails here even though its signature is
// still valid.
func (s *Service) Verify(ctx context.Context, token string) (*Principal, error) {
	claims, err := s.codec.Parse(token)
	if err != nil {
		return nil, ErrInvalidToken
	}
	user, err := s.store.Users().GetByID(ctx, claims.Subject)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrInvalidToken
	}
	grants, err := s.store.Users().GrantsForUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return NewPrincipal(*user, grants), nil
}

// Logout closes the session opened at login, identified by the session id
// returned then. Token invalidation is not attempted; expiry handles the
// token itself.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return ErrInvalidInput
	}
	return s.store.Sessions().CloseBySession(ctx, sessionID, s.now().UTC())
}

// EnsureBuiltins inserts any missing catalog permissions. Existing rows are
// left untouched so operator edits survive restarts.
func (s *Service) EnsureBuiltins(ctx context.Context) error {
	perms := s.store.Permissions()
	for _, p := range BuiltinPermissions {
		if _, err := perms.GetByCode(ctx, p.Code); err == nil {
			continue
		} else if !isNotFound(err) {
			return err
		}
		create := p
		if err := perms.Create(ctx, &create); err != nil && !errors.Is(err, ErrConflict) {
			return err
		}
	}
	return nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/regrant/regrant-auth/core"
	"github.com/regrant/regrant-auth/internal/siwe"
	"github.com/regrant/regrant-auth/logging"
	"github.com/regrant/regrant-auth/metrics"
	"github.com/regrant/regrant-auth/ports"
)

// AuthService runs the SIWE login flow and authenticates session tokens
type AuthService struct {
	nonces   ports.NonceStore
	verifier ports.SignatureVerifier
	users    ports.UserRepository
	sessions ports.SessionIssuer
	eventPub ports.EventPublisher
	metrics  metrics.Recorder
	log      logging.Logger

	now       func() time.Time
	accessTTL time.Duration
}

// Option configures an AuthService
type Option func(*AuthService)

// WithEventPublisher publishes a login event for every resolved user
func WithEventPublisher(p ports.EventPublisher) Option {
	return func(s *AuthService) {
		s.eventPub = p
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(s *AuthService) {
		s.metrics = r
	}
}

func WithLogger(l logging.Logger) Option {
	return func(s *AuthService) {
		s.log = l
	}
}

// WithClock sets the time used for message validity windows and events
func WithClock(now func() time.Time) Option {
	return func(s *AuthService) {
		s.now = now
	}
}

// WithAccessTTL sets the session lifetime. Without it the SessionIssuer's
// default applies.
func WithAccessTTL(ttl time.Duration) Option {
	return func(s *AuthService) {
		if ttl > 0 {
			s.accessTTL = ttl
		}
	}
}

// NewAuthService creates a new authentication service
func NewAuthService(
	nonces ports.NonceStore,
	verifier ports.SignatureVerifier,
	users ports.UserRepository,
	sessions ports.SessionIssuer,
	opts ...Option,
) *AuthService {
	s := &AuthService{
		nonces:   nonces,
		verifier: verifier,
		users:    users,
		sessions: sessions,
		metrics:  metrics.Nop{},
		log:      logging.NewDiscard(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IssueNonce creates a fresh login nonce for address
func (s *AuthService) IssueNonce(ctx context.Context, address string) (string, error) {
	if !core.IsWalletAddress(address) {
		return "", core.ErrInvalidAddress
	}

	nonce, err := s.nonces.Issue(ctx, address)
	if err != nil {
		return "", fmt.Errorf("failed to issue nonce: %w", err)
	}

	s.metrics.RecordNonceIssued()
	s.log.Debug(ctx, "siwe nonce issued", "address", address)

	return nonce, nil
}

// Login verifies a signed SIWE message and resolves the user behind it.
//
// The nonce is consumed before the signature is checked, so a failed attempt
// burns it and the client has to request a new one. Store failures are
// returned as-is and leave the nonce untouched.
func (s *AuthService) Login(ctx context.Context, req core.LoginRequest) (*core.User, error) {
	state := StateReceived

	if !core.IsWalletAddress(req.Address) {
		return nil, s.reject(ctx, state, req, core.ErrInvalidAddress)
	}

	msg, err := siwe.Parse(req.Message)
	if err != nil {
		return nil, s.reject(ctx, state, req, err)
	}
	state = StateParsed

	if msg.Nonce != req.Nonce {
		return nil, s.reject(ctx, state, req, fmt.Errorf("%w: message nonce differs from submitted nonce", core.ErrNonceInvalid))
	}

	ok, err := s.nonces.Consume(ctx, req.Address, msg.Nonce)
	if err != nil {
		return nil, s.reject(ctx, state, req, fmt.Errorf("failed to consume nonce: %w", err))
	}
	if !ok {
		return nil, s.reject(ctx, state, req, core.ErrNonceInvalid)
	}
	state = StateNonceValidated

	started := time.Now()
	signer, err := s.verifier.Verify(ctx, msg, req.Signature, s.now())
	s.metrics.RecordVerifyLatency(time.Since(started))
	if err != nil {
		return nil, s.reject(ctx, state, req, err)
	}
	state = StateSignatureVerified

	if !strings.EqualFold(signer.Hex(), req.Address) {
		return nil, s.reject(ctx, state, req, fmt.Errorf("%w: signer %s", core.ErrAddressMismatch, signer.Hex()))
	}
	state = StateAddressMatched

	user, created, err := s.resolveUser(ctx, signer.Hex())
	if err != nil {
		return nil, s.reject(ctx, state, req, err)
	}
	if !user.IsActive {
		return nil, s.reject(ctx, state, req, core.ErrInactiveUser)
	}

	s.metrics.RecordLoginSuccess(created)
	s.log.Info(ctx, "siwe login succeeded",
		"state", StateUserResolved,
		"address", user.WalletAddress,
		"user_id", user.ID,
		"new_user", created,
	)
	s.publishLogin(ctx, user, created)

	return user, nil
}

// IssueAccessToken mints the bearer token returned to the client after login
func (s *AuthService) IssueAccessToken(user *core.User) (string, error) {
	token, err := s.sessions.Issue(user.WalletAddress, s.accessTTL)
	if err != nil {
		return "", fmt.Errorf("failed to create access token: %w", err)
	}
	return token, nil
}

// Authenticate validates a bearer token and loads its user. Unknown users
// are reported as core.ErrInvalidToken, disabled ones as core.ErrInactiveUser.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*core.User, error) {
	subject, err := s.sessions.Validate(token)
	if err != nil {
		return nil, err
	}

	user, err := s.users.FindByAddress(ctx, subject)
	if err != nil {
		if errors.Is(err, core.ErrUserNotFound) {
			return nil, fmt.Errorf("%w: unknown subject", core.ErrInvalidToken)
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if !user.IsActive {
		return nil, core.ErrInactiveUser
	}

	return user, nil
}

// GetUser loads a user by id
func (s *AuthService) GetUser(ctx context.Context, id string) (*core.User, error) {
	return s.users.FindByID(ctx, id)
}

// UpdateProfile changes the email and full name of user
func (s *AuthService) UpdateProfile(ctx context.Context, user *core.User, upd core.ProfileUpdate) (*core.User, error) {
	return s.users.UpdateProfile(ctx, user.ID, upd)
}

func (s *AuthService) resolveUser(ctx context.Context, address string) (*core.User, bool, error) {
	user, err := s.users.FindByAddress(ctx, address)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, core.ErrUserNotFound) {
		return nil, false, fmt.Errorf("failed to find user: %w", err)
	}

	// A concurrent first login may win the insert; Create then returns its row
	candidate := core.NewWalletUser(address)
	candidate.ID = uuid.New().String()

	user, err = s.users.Create(ctx, candidate)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create user: %w", err)
	}
	return user, user.ID == candidate.ID, nil
}

func (s *AuthService) publishLogin(ctx context.Context, user *core.User, created bool) {
	if s.eventPub == nil {
		return
	}

	event := core.LoginEvent{
		UserID:        user.ID,
		WalletAddress: user.WalletAddress,
		NewUser:       created,
		At:            s.now().UTC(),
	}

	// The session is already established, a lost event must not undo it
	if err := s.eventPub.PublishLogin(ctx, event); err != nil {
		s.log.Warn(ctx, "failed to publish login event", "user_id", user.ID, "error", err)
	}
}

// reject records a failed login and returns err unchanged
func (s *AuthService) reject(ctx context.Context, state LoginState, req core.LoginRequest, err error) error {
	why := reason(err)
	s.metrics.RecordLoginRejected(string(state), why)

	if why == "internal" {
		s.log.Error(ctx, "siwe login failed",
			"state", StateRejected,
			"from_state", state,
			"address", req.Address,
			"error", err,
		)
		return err
	}

	s.log.Warn(ctx, "siwe login rejected",
		"state", StateRejected,
		"from_state", state,
		"reason", why,
		"address", req.Address,
		"error", err,
	)
	return err
}

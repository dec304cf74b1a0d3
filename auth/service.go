// Package auth orchestrates the credential lifecycle: signup, login, token
// refresh, logout, email verification, and account deactivation.
//
// The service is the only writer of the user store and the session ledger.
// It is safe for concurrent use; all shared state lives in the stores.
// Every store call is bounded by a timeout, password hashing runs through a
// bounded concurrency gate, and notification dispatch is fire-and-forget so
// a slow mailer can never stall a request.
//
// All credential failures (unknown email, inactive account, wrong
// password) surface as the same error with the same latency profile, so
// none of them can be used to enumerate accounts.
package auth

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/getarx/arx/audit"
	"github.com/getarx/arx/credential"
	"github.com/getarx/arx/domain"
	"github.com/getarx/arx/ledger"
	"github.com/getarx/arx/token"
)

const (
	defaultStoreTimeout  = 5 * time.Second
	defaultNotifyTimeout = 10 * time.Second
)

// Service implements the credential lifecycle over its collaborators.
type Service struct {
	users    domain.UserStore
	sessions *ledger.Ledger
	issuer   *token.Issuer
	hasher   domain.Hasher
	codes    *credential.CodeGenerator

	notifier domain.Notifier
	limiter  domain.RateLimiter
	auditor  audit.Store
	log      *zap.Logger

	defaultRole  string
	newID        domain.IDGenerator
	hashGate     *semaphore.Weighted
	storeTimeout time.Duration
	now          func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithNotifier sets the best-effort message dispatcher.
func WithNotifier(n domain.Notifier) ServiceOption {
	return func(s *Service) { s.notifier = n }
}

// WithRateLimiter injects the throttling capability consulted at signup,
// login, and resend-verification entry points.
func WithRateLimiter(l domain.RateLimiter) ServiceOption {
	return func(s *Service) { s.limiter = l }
}

// WithAuditStore enables security event recording.
func WithAuditStore(a audit.Store) ServiceOption {
	return func(s *Service) { s.auditor = a }
}

// WithLogger sets the structured logger.
func WithLogger(l *zap.Logger) ServiceOption {
	return func(s *Service) { s.log = l }
}

// WithDefaultRole sets the role assigned at signup.
func WithDefaultRole(role string) ServiceOption {
	return func(s *Service) { s.defaultRole = role }
}

// WithCodeTTL sets the verification code lifetime.
func WithCodeTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) { s.codes = credential.NewCodeGenerator(ttl) }
}

// WithStoreTimeout bounds individual store calls.
func WithStoreTimeout(d time.Duration) ServiceOption {
	return func(s *Service) { s.storeTimeout = d }
}

// WithIDGenerator overrides the user id generator.
func WithIDGenerator(g domain.IDGenerator) ServiceOption {
	return func(s *Service) { s.newID = g }
}

func NewService(users domain.UserStore, sessions *ledger.Ledger, issuer *token.Issuer, hasher domain.Hasher, opts ...ServiceOption) *Service {
	s := &Service{
		users:        users,
		sessions:     sessions,
		issuer:       issuer,
		hasher:       hasher,
		codes:        credential.NewCodeGenerator(0),
		log:          zap.NewNop(),
		defaultRole:  "member",
		newID:        func() string { return uuid.New().String() },
		hashGate:     semaphore.NewWeighted(int64(runtime.GOMAXPROCS(0))),
		storeTimeout: defaultStoreTimeout,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// bound derives a context with the store timeout applied.
func (s *Service) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.storeTimeout)
}

// wrapTimeout converts deadline failures into the retryable internal error
// so a timed-out store or hash call never reads as "unauthenticated".
func wrapTimeout(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.ErrTimeout.WithCause(err)
	}
	return err
}

// hash runs password hashing through the concurrency gate so CPU-bound
// bcrypt work cannot monopolize the scheduler under load.
func (s *Service) hash(ctx context.Context, password string) (string, error) {
	if err := s.hashGate.Acquire(ctx, 1); err != nil {
		return "", wrapTimeout(err)
	}
	defer s.hashGate.Release(1)
	return s.hasher.Hash(password)
}

// compare runs password verification through the same gate; a bcrypt
// comparison costs as much CPU as a hash.
func (s *Service) compare(ctx context.Context, password, hash string) (bool, error) {
	if err := s.hashGate.Acquire(ctx, 1); err != nil {
		return false, wrapTimeout(err)
	}
	defer s.hashGate.Release(1)
	return s.hasher.Compare(password, hash), nil
}

func (s *Service) allow(ctx context.Context, key string) error {
	if s.limiter != nil && !s.limiter.Allow(ctx, key) {
		return domain.ErrRateLimited
	}
	return nil
}

// Signup registers a new user in the unverified state and dispatches a
// verification message. Email uniqueness within the tenant is enforced by
// the store's unique constraint; a duplicate fails with ErrEmailTaken.
// Dispatch failure never rolls back user creation.
func (s *Service) Signup(ctx context.Context, tenantID, email, password, fullName string) (*domain.Profile, error) {
	email = domain.NormalizeEmail(email)
	if err := s.allow(ctx, "signup:"+tenantID+":"+email); err != nil {
		return nil, err
	}
	if email == "" || password == "" {
		return nil, domain.NewError(domain.KindValidation, "email and password are required")
	}

	hash, err := s.hash(ctx, password)
	if err != nil {
		return nil, err
	}

	user := domain.NewUser(s.newID(), tenantID, email, fullName, hash, s.defaultRole)

	code, expiresAt, err := s.codes.Generate()
	if err != nil {
		return nil, err
	}
	user.SetVerification(code, expiresAt)

	cctx, cancel := s.bound(ctx)
	defer cancel()
	if err := s.users.CreateUser(cctx, user); err != nil {
		return nil, wrapTimeout(err)
	}

	s.dispatchVerification(user, code)
	s.record(&audit.Event{
		Type:     audit.EventSignup,
		TenantID: tenantID,
		ActorID:  user.ID,
		Status:   "success",
	})

	profile := user.Sanitized()
	return &profile, nil
}

// Login authenticates the user and opens a new device session. The
// password comparison always runs, against a precomputed dummy hash when
// the user does not exist, so missing users, inactive accounts, and wrong
// passwords are indistinguishable in both message and timing.
func (s *Service) Login(ctx context.Context, tenantID, email, password, deviceInfo, ip string) (*token.Pair, *domain.Profile, error) {
	email = domain.NormalizeEmail(email)
	if err := s.allow(ctx, "login:"+tenantID+":"+email); err != nil {
		s.record(&audit.Event{
			Type:      audit.EventLoginBlocked,
			TenantID:  tenantID,
			Status:    "blocked",
			IPAddress: ip,
		})
		return nil, nil, err
	}

	cctx, cancel := s.bound(ctx)
	user, err := s.users.FindUserByEmail(cctx, tenantID, email)
	cancel()
	if err != nil && domain.KindOf(err) != domain.KindNotFound {
		return nil, nil, wrapTimeout(err)
	}

	hash := credential.DummyHash
	if user != nil {
		hash = user.PasswordHash
	}
	ok, err := s.compare(ctx, password, hash)
	if err != nil {
		return nil, nil, err
	}

	if user == nil || !user.Active || !ok {
		s.record(&audit.Event{
			Type:      audit.EventLoginFailure,
			TenantID:  tenantID,
			Status:    "failure",
			IPAddress: ip,
		})
		return nil, nil, domain.ErrInvalidCredentials
	}

	pair, err := s.openSession(ctx, user, deviceInfo, ip)
	if err != nil {
		return nil, nil, err
	}

	s.record(&audit.Event{
		Type:      audit.EventLoginSuccess,
		TenantID:  tenantID,
		ActorID:   user.ID,
		Status:    "success",
		IPAddress: ip,
		Device:    deviceInfo,
	})

	profile := user.Sanitized()
	return pair, &profile, nil
}

// Refresh exchanges a valid refresh token for a fresh pair, rotating the
// matched ledger record in place. A token matching nothing valid is a hard
// authentication failure; when two requests race on the same token, the
// atomic rotation guarantees at most one succeeds.
func (s *Service) Refresh(ctx context.Context, tenantID, userID, presented, deviceInfo, ip string) (*token.Pair, error) {
	cctx, cancel := s.bound(ctx)
	user, err := s.users.GetUser(cctx, tenantID, userID)
	cancel()
	if err != nil {
		if domain.KindOf(err) == domain.KindNotFound {
			return nil, domain.ErrAccountInactive
		}
		return nil, wrapTimeout(err)
	}
	if !user.Active {
		return nil, domain.ErrAccountInactive
	}

	cctx, cancel = s.bound(ctx)
	rec, err := s.sessions.Verify(cctx, tenantID, userID, presented)
	cancel()
	if err != nil {
		s.record(&audit.Event{
			Type:      audit.EventRefreshFailure,
			TenantID:  tenantID,
			ActorID:   userID,
			Status:    "failure",
			IPAddress: ip,
		})
		return nil, wrapTimeout(err)
	}

	pair, err := s.issuer.Issue(token.Principal{
		UserID:   user.ID,
		TenantID: user.TenantID,
		Role:     user.Role,
		Email:    user.Email,
	})
	if err != nil {
		return nil, err
	}

	cctx, cancel = s.bound(ctx)
	err = s.sessions.Rotate(cctx, rec, pair.RefreshToken, deviceInfo, ip, s.issuer.RefreshTTL())
	cancel()
	if err != nil {
		return nil, wrapTimeout(err)
	}

	s.record(&audit.Event{
		Type:      audit.EventRefreshSuccess,
		TenantID:  tenantID,
		ActorID:   userID,
		Status:    "success",
		IPAddress: ip,
	})
	return pair, nil
}

// Logout ends one session when a refresh token is presented, or every
// session when it is empty. It always reports success so an attacker
// cannot probe which sessions exist.
func (s *Service) Logout(ctx context.Context, tenantID, userID, presented string) error {
	cctx, cancel := s.bound(ctx)
	defer cancel()

	var err error
	if presented == "" {
		err = s.sessions.DeleteAll(cctx, tenantID, userID)
	} else {
		err = s.sessions.DeleteMatching(cctx, tenantID, userID, presented)
	}
	if err != nil {
		s.log.Warn("logout cleanup failed",
			zap.String("tenant_id", tenantID),
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}

	s.record(&audit.Event{
		Type:     audit.EventLogout,
		TenantID: tenantID,
		ActorID:  userID,
		Status:   "success",
	})
	return nil
}

// Deactivate soft-deletes the user and deletes every ledger record, forcing
// re-authentication on all devices.
func (s *Service) Deactivate(ctx context.Context, tenantID, userID string) error {
	cctx, cancel := s.bound(ctx)
	user, err := s.users.GetUser(cctx, tenantID, userID)
	cancel()
	if err != nil {
		return wrapTimeout(err)
	}

	effect := user.Deactivate()

	cctx, cancel = s.bound(ctx)
	err = s.users.UpdateUser(cctx, user)
	cancel()
	if err != nil {
		return wrapTimeout(err)
	}

	cctx, cancel = s.bound(ctx)
	err = s.sessions.DeleteAll(cctx, tenantID, userID)
	cancel()
	if err != nil {
		return wrapTimeout(err)
	}

	s.applyEffect(effect)
	return nil
}

// ChangeRole transitions the user's role through the aggregate method.
func (s *Service) ChangeRole(ctx context.Context, tenantID, userID, newRole string) (*domain.Profile, error) {
	cctx, cancel := s.bound(ctx)
	user, err := s.users.GetUser(cctx, tenantID, userID)
	cancel()
	if err != nil {
		return nil, wrapTimeout(err)
	}

	effect, err := user.ChangeRole(newRole)
	if err != nil {
		return nil, err
	}

	cctx, cancel = s.bound(ctx)
	err = s.users.UpdateUser(cctx, user)
	cancel()
	if err != nil {
		return nil, wrapTimeout(err)
	}

	s.applyEffect(effect)
	profile := user.Sanitized()
	return &profile, nil
}

// VerifyEmail consumes a verification code and marks the email verified.
func (s *Service) VerifyEmail(ctx context.Context, tenantID, email, code string) error {
	email = domain.NormalizeEmail(email)
	cctx, cancel := s.bound(ctx)
	user, err := s.users.FindUserByEmail(cctx, tenantID, email)
	cancel()
	if err != nil {
		return wrapTimeout(err)
	}

	effect, err := user.Verify(code, s.now())
	if err != nil {
		s.record(&audit.Event{
			Type:     audit.EventVerifyFailure,
			TenantID: tenantID,
			ActorID:  user.ID,
			Status:   "failure",
		})
		return err
	}

	cctx, cancel = s.bound(ctx)
	err = s.users.UpdateUser(cctx, user)
	cancel()
	if err != nil {
		return wrapTimeout(err)
	}

	s.applyEffect(effect)
	return nil
}

// ResendVerification regenerates the code and re-dispatches the message.
// Fails with ErrAlreadyVerified for verified accounts. Throttling beyond
// the injected limiter belongs to the transport layer.
func (s *Service) ResendVerification(ctx context.Context, tenantID, email string) error {
	email = domain.NormalizeEmail(email)
	if err := s.allow(ctx, "resend:"+tenantID+":"+email); err != nil {
		return err
	}

	cctx, cancel := s.bound(ctx)
	user, err := s.users.FindUserByEmail(cctx, tenantID, email)
	cancel()
	if err != nil {
		return wrapTimeout(err)
	}
	if user.EmailVerified {
		return domain.ErrAlreadyVerified
	}

	code, expiresAt, err := s.codes.Generate()
	if err != nil {
		return err
	}
	user.SetVerification(code, expiresAt)

	cctx, cancel = s.bound(ctx)
	err = s.users.UpdateUser(cctx, user)
	cancel()
	if err != nil {
		return wrapTimeout(err)
	}

	s.dispatchVerification(user, code)
	return nil
}

// CurrentPrincipal returns the sanitized profile for an authenticated
// subject.
func (s *Service) CurrentPrincipal(ctx context.Context, tenantID, userID string) (*domain.Profile, error) {
	cctx, cancel := s.bound(ctx)
	defer cancel()

	user, err := s.users.GetUser(cctx, tenantID, userID)
	if err != nil {
		return nil, wrapTimeout(err)
	}
	if !user.Active {
		return nil, domain.ErrAccountInactive
	}
	profile := user.Sanitized()
	return &profile, nil
}

func (s *Service) openSession(ctx context.Context, user *domain.User, deviceInfo, ip string) (*token.Pair, error) {
	pair, err := s.issuer.Issue(token.Principal{
		UserID:   user.ID,
		TenantID: user.TenantID,
		Role:     user.Role,
		Email:    user.Email,
	})
	if err != nil {
		return nil, err
	}

	cctx, cancel := s.bound(ctx)
	_, err = s.sessions.Create(cctx, user.TenantID, user.ID, pair.RefreshToken, deviceInfo, ip, s.issuer.RefreshTTL())
	cancel()
	if err != nil {
		return nil, wrapTimeout(err)
	}

	cctx, cancel = s.bound(ctx)
	if err := s.sessions.Prune(cctx, user.TenantID, user.ID); err != nil {
		s.log.Warn("session prune failed",
			zap.String("tenant_id", user.TenantID),
			zap.String("user_id", user.ID),
			zap.Error(err),
		)
	}
	cancel()

	return pair, nil
}

// dispatchVerification sends the verification message without blocking the
// request. The goroutine carries its own timeout; failure is logged, never
// surfaced.
func (s *Service) dispatchVerification(user *domain.User, code string) {
	if s.notifier == nil {
		return
	}
	to, tenantID, userID := user.Email, user.TenantID, user.ID
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), defaultNotifyTimeout)
		defer cancel()
		body := fmt.Sprintf("Your verification code is %s. It expires in %s.", code, s.codes.TTL)
		if err := s.notifier.Send(ctx, to, "Verify your email", body); err != nil {
			s.log.Warn("verification dispatch failed",
				zap.String("tenant_id", tenantID),
				zap.String("user_id", userID),
				zap.Error(err),
			)
		}
	}()
}

// applyEffect records the audit trail for an aggregate mutation after its
// persistence write has succeeded.
func (s *Service) applyEffect(effect domain.Effect) {
	eventType := map[string]string{
		"user.verified":     audit.EventVerifySuccess,
		"user.deactivated":  audit.EventUserDeactivated,
		"user.role_changed": audit.EventRoleChanged,
	}[effect.Type]
	if eventType == "" {
		eventType = effect.Type
	}

	var msg string
	if from, ok := effect.Meta["from"]; ok {
		msg = fmt.Sprintf("role changed from %s to %s", from, effect.Meta["to"])
	}
	s.record(&audit.Event{
		Type:     eventType,
		TenantID: effect.TenantID,
		ActorID:  effect.UserID,
		Status:   "success",
		Message:  msg,
	})
}

// record persists an audit event, best-effort.
func (s *Service) record(event *audit.Event) {
	if s.auditor == nil {
		return
	}
	event.ID = s.newID()
	event.CreatedAt = s.now()

	ctx, cancel := context.WithTimeout(context.Background(), s.storeTimeout)
	defer cancel()
	if err := s.auditor.SaveEvent(ctx, event); err != nil {
		s.log.Warn("audit write failed", zap.String("type", event.Type), zap.Error(err))
	}
}

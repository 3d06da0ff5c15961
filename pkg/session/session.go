// Package session holds the signed-in identity and the account operations around it.
//
// A Session is created once at startup and passed to whatever needs the current user.
// Operations that need the network are refused up front while the connectivity gate
// reports offline.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/matt-steen/timeline-tracker/pkg/apperr"
	"github.com/matt-steen/timeline-tracker/pkg/notify"
	"github.com/rs/zerolog/log"
)

// Errors an identity provider reports.
var (
	ErrEmailInUse         = errors.New("email already in use")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrNetwork            = errors.New("network request failed")
	ErrNotVerified        = errors.New("email not verified")
)

// User is a signed-in account.
type User struct {
	ID       string
	Email    string
	Verified bool
}

// AuthListener is told about every sign-in and sign-out. ok is false when nobody is
// signed in.
type AuthListener func(user User, ok bool)

// Provider is the identity service behind a session.
type Provider interface {
	CurrentUser() (User, bool)
	OnAuthChange(l AuthListener) func()
	SignUp(ctx context.Context, email, password string) (User, error)
	SignIn(ctx context.Context, email, password string) (User, error)
	SignOut(ctx context.Context) error
	SendVerificationEmail(ctx context.Context, user User) error
	SendPasswordReset(ctx context.Context, email string) error
}

// Gate decides whether an operation may reach the network.
type Gate interface {
	Check(op string) error
}

// Session is the signed-in state of one running client.
type Session struct {
	provider Provider
	gate     Gate
	notifier notify.Notifier

	mu     sync.Mutex
	stop   func()
	closed bool
}

// New starts a session on provider. gate may be nil, in which case nothing is gated.
func New(provider Provider, gate Gate, notifier notify.Notifier) *Session {
	if notifier == nil {
		notifier = notify.Discard{}
	}

	s := &Session{provider: provider, gate: gate, notifier: notifier}
	s.stop = provider.OnAuthChange(func(user User, ok bool) {
		if ok {
			log.Info().Str("user", user.ID).Msg("signed in")
		} else {
			log.Info().Msg("signed out")
		}
	})

	return s
}

// Close stops listening to the provider. It is safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	s.closed = true
	s.stop()
}

// CurrentUser returns the signed-in user, if any.
func (s *Session) CurrentUser() (User, bool) {
	return s.provider.CurrentUser()
}

// UserID returns the id of the signed-in user, or "".
func (s *Session) UserID() string {
	user, ok := s.provider.CurrentUser()
	if !ok {
		return ""
	}

	return user.ID
}

// OnAuthChange registers l with the provider and returns a function that removes it.
func (s *Session) OnAuthChange(l AuthListener) func() {
	return s.provider.OnAuthChange(l)
}

func (s *Session) check(op string) error {
	if s.gate == nil {
		return nil
	}

	return s.gate.Check(op)
}

// SignUp creates an account and sends its verification email. The account cannot sign
// in until the email is verified.
func (s *Session) SignUp(ctx context.Context, email, password string) (User, error) {
	const op = "sign up"

	if err := s.check(op); err != nil {
		notify.Errorf(s.notifier, "Cannot sign up while offline")

		return User{}, err
	}

	if err := ValidatePassword(password); err != nil {
		return User{}, err
	}

	user, err := s.provider.SignUp(ctx, email, password)
	if err == nil {
		err = s.provider.SendVerificationEmail(ctx, user)
	}

	if err != nil {
		switch {
		case errors.Is(err, ErrNetwork):
			notify.Errorf(s.notifier, "Network error. Please check your connection.")
		case errors.Is(err, ErrEmailInUse):
			notify.Errorf(s.notifier, "Email already in use.")
		default:
			notify.Errorf(s.notifier, "Failed to create account.")
		}

		return User{}, apperr.New(apperr.WriteFailed, op, err)
	}

	notify.Successf(s.notifier, "Verification email sent! Please check your inbox.")

	return user, nil
}

// SignIn signs in a verified account. An unverified account is signed straight back out.
func (s *Session) SignIn(ctx context.Context, email, password string) (User, error) {
	const op = "sign in"

	if err := s.check(op); err != nil {
		notify.Errorf(s.notifier, "Cannot log in while offline")

		return User{}, err
	}

	user, err := s.provider.SignIn(ctx, email, password)
	if err != nil {
		switch {
		case errors.Is(err, ErrNetwork):
			notify.Errorf(s.notifier, "Network error. Please check your connection.")
		case errors.Is(err, ErrInvalidCredentials):
			notify.Errorf(s.notifier, "Invalid email or password.")
		default:
			notify.Errorf(s.notifier, "Failed to log in.")
		}

		return User{}, apperr.New(apperr.Unauthenticated, op, err)
	}

	if !user.Verified {
		if err := s.provider.SignOut(ctx); err != nil {
			log.Warn().Err(err).Str("user", user.ID).Msg("error signing out unverified user")
		}

		notify.Errorf(s.notifier, "Please verify your email before logging in")

		return User{}, apperr.New(apperr.Unauthenticated, op, ErrNotVerified)
	}

	notify.Successf(s.notifier, "Logged in successfully!")

	return user, nil
}

// SignOut ends the current sign-in.
func (s *Session) SignOut(ctx context.Context) error {
	const op = "sign out"

	if err := s.check(op); err != nil {
		notify.Errorf(s.notifier, "Cannot log out while offline")

		return err
	}

	if err := s.provider.SignOut(ctx); err != nil {
		notify.Errorf(s.notifier, "Failed to log out")

		return apperr.New(apperr.WriteFailed, op, err)
	}

	notify.Successf(s.notifier, "Logged out successfully")

	return nil
}

// SendVerificationEmail resends the verification email of the signed-in user.
func (s *Session) SendVerificationEmail(ctx context.Context) error {
	const op = "send verification email"

	user, ok := s.provider.CurrentUser()
	if !ok {
		return apperr.Errorf(apperr.Unauthenticated, op, "no user logged in")
	}

	if err := s.provider.SendVerificationEmail(ctx, user); err != nil {
		notify.Errorf(s.notifier, "Failed to send verification email")

		return apperr.New(apperr.WriteFailed, op, err)
	}

	notify.Successf(s.notifier, "Verification email sent!")

	return nil
}

// SendPasswordReset sends a reset link to email.
func (s *Session) SendPasswordReset(ctx context.Context, email string) error {
	if err := s.provider.SendPasswordReset(ctx, email); err != nil {
		notify.Errorf(s.notifier, "Failed to send password reset email")

		return apperr.New(apperr.WriteFailed, "send password reset", err)
	}

	notify.Successf(s.notifier, "Password reset email sent!")

	return nil
}

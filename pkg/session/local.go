package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

// MailKind says what an outgoing mail is for.
type MailKind string

// These constants are the mails the local provider sends.
const (
	MailVerify MailKind = "verify"
	MailReset  MailKind = "reset"
)

// Mail is a message the local provider would have emailed.
type Mail struct {
	To    string
	Kind  MailKind
	Token string
}

type account struct {
	user User
	hash []byte
}

// Local is an in-process identity provider. Passwords are kept as bcrypt hashes, and
// mails are queued in an outbox instead of being sent. User ids are derived from the
// email address, so the same address maps to the same owner across runs.
type Local struct {
	cost int

	mu        sync.Mutex
	accounts  map[string]*account
	tokens    map[string]Mail
	outbox    []Mail
	current   string
	nextID    int
	listeners map[int]AuthListener
}

// NewLocal returns an empty local provider.
func NewLocal() *Local {
	return &Local{
		cost:      bcrypt.DefaultCost,
		accounts:  map[string]*account{},
		tokens:    map[string]Mail{},
		listeners: map[int]AuthListener{},
	}
}

// UserID is the stable owner id for email.
func UserID(email string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("mailto:"+normalizeEmail(email))).String()
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func newToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("error generating token: %w", err)
	}

	return hex.EncodeToString(buf), nil
}

// CurrentUser returns the signed-in user.
func (l *Local) CurrentUser() (User, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.currentLocked()
}

func (l *Local) currentLocked() (User, bool) {
	acct, ok := l.accounts[l.current]
	if !ok {
		return User{}, false
	}

	return acct.user, true
}

// OnAuthChange registers fn and returns a function that removes it.
func (l *Local) OnAuthChange(fn AuthListener) func() {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := l.nextID
	l.nextID++
	l.listeners[id] = fn

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()

		delete(l.listeners, id)
	}
}

// setCurrent switches the signed-in account and tells the listeners, outside the lock.
func (l *Local) setCurrent(email string) {
	l.mu.Lock()

	if l.current == email {
		l.mu.Unlock()

		return
	}

	l.current = email
	user, ok := l.currentLocked()

	listeners := make([]AuthListener, 0, len(l.listeners))
	for _, fn := range l.listeners {
		listeners = append(listeners, fn)
	}

	l.mu.Unlock()

	for _, fn := range listeners {
		fn(user, ok)
	}
}

// SignUp registers email and signs it in, unverified.
func (l *Local) SignUp(_ context.Context, email, password string) (User, error) {
	email = normalizeEmail(email)

	hash, err := bcrypt.GenerateFromPassword([]byte(password), l.cost)
	if err != nil {
		return User{}, fmt.Errorf("error hashing password: %w", err)
	}

	l.mu.Lock()

	if _, ok := l.accounts[email]; ok {
		l.mu.Unlock()

		return User{}, ErrEmailInUse
	}

	user := User{ID: UserID(email), Email: email}
	l.accounts[email] = &account{user: user, hash: hash}
	l.mu.Unlock()

	l.setCurrent(email)

	return user, nil
}

// SignIn checks the password and signs the account in, verified or not.
func (l *Local) SignIn(_ context.Context, email, password string) (User, error) {
	email = normalizeEmail(email)

	l.mu.Lock()

	var hash []byte
	if acct, ok := l.accounts[email]; ok {
		hash = acct.hash
	}

	l.mu.Unlock()

	// adopted accounts have no password and cannot sign in with one
	if len(hash) == 0 {
		return User{}, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return User{}, ErrInvalidCredentials
		}

		return User{}, fmt.Errorf("error checking password: %w", err)
	}

	l.setCurrent(email)

	user, _ := l.CurrentUser()

	return user, nil
}

// SignOut clears the current sign-in.
func (l *Local) SignOut(context.Context) error {
	l.setCurrent("")

	return nil
}

// Adopt signs in email without a password, registering it as a verified account if it
// is new. It serves single-user setups where the owner comes from configuration.
func (l *Local) Adopt(email string) User {
	email = normalizeEmail(email)

	l.mu.Lock()
	if _, ok := l.accounts[email]; !ok {
		l.accounts[email] = &account{user: User{ID: UserID(email), Email: email, Verified: true}}
	}
	l.mu.Unlock()

	l.setCurrent(email)

	user, _ := l.CurrentUser()

	return user
}

func (l *Local) send(to string, kind MailKind) error {
	token, err := newToken()
	if err != nil {
		return err
	}

	mail := Mail{To: to, Kind: kind, Token: token}

	l.mu.Lock()
	l.tokens[token] = mail
	l.outbox = append(l.outbox, mail)
	l.mu.Unlock()

	log.Info().Str("to", to).Str("kind", string(kind)).Msg("queued mail")

	return nil
}

// SendVerificationEmail queues a verification mail for user.
func (l *Local) SendVerificationEmail(_ context.Context, user User) error {
	return l.send(user.Email, MailVerify)
}

// SendPasswordReset queues a reset mail. Unknown addresses are accepted silently.
func (l *Local) SendPasswordReset(_ context.Context, email string) error {
	email = normalizeEmail(email)

	l.mu.Lock()
	_, ok := l.accounts[email]
	l.mu.Unlock()

	if !ok {
		log.Debug().Str("to", email).Msg("password reset for unknown account")

		return nil
	}

	return l.send(email, MailReset)
}

// Outbox returns the mails queued so far.
func (l *Local) Outbox() []Mail {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]Mail(nil), l.outbox...)
}

func (l *Local) redeem(token string, kind MailKind) (*account, error) {
	mail, ok := l.tokens[token]
	if !ok || mail.Kind != kind {
		return nil, errors.New("invalid or expired token")
	}

	acct, ok := l.accounts[mail.To]
	if !ok {
		return nil, errors.New("invalid or expired token")
	}

	delete(l.tokens, token)

	return acct, nil
}

// Verify marks the account of a verification token as verified.
func (l *Local) Verify(token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	acct, err := l.redeem(token, MailVerify)
	if err != nil {
		return err
	}

	acct.user.Verified = true

	return nil
}

// ResetPassword sets a new password using a reset token. The password policy applies.
func (l *Local) ResetPassword(token, password string) error {
	if err := ValidatePassword(password); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), l.cost)
	if err != nil {
		return fmt.Errorf("error hashing password: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	acct, err := l.redeem(token, MailReset)
	if err != nil {
		return err
	}

	acct.hash = hash

	return nil
}

package session

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/matt-steen/timeline-tracker/pkg/apperr"
	"github.com/matt-steen/timeline-tracker/pkg/connectivity"
	"github.com/matt-steen/timeline-tracker/pkg/model"
	"github.com/matt-steen/timeline-tracker/pkg/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const goodPassword = "Sup3r$ecret"

type toasts struct {
	mu  sync.Mutex
	got []notify.Notification
}

func (t *toasts) Notify(level notify.Level, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.got = append(t.got, notify.Notification{Level: level, Message: message})
}

func (t *toasts) last() notify.Notification {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.got) == 0 {
		return notify.Notification{}
	}

	return t.got[len(t.got)-1]
}

func newTestSession(t *testing.T, online bool) (*Session, *Local, *connectivity.Monitor, *toasts) {
	t.Helper()

	local := NewLocal()
	local.cost = bcrypt.MinCost

	monitor := connectivity.NewMonitor(online)
	n := &toasts{}
	s := New(local, monitor, n)

	t.Cleanup(s.Close)

	return s, local, monitor, n
}

func TestValidatePassword(t *testing.T) {
	t.Parallel()

	tests := []struct {
		password string
		message  string
	}{
		{"Sh0rt!", "Password must be at least 8 characters long"},
		{"lowercase1!", "Password must contain at least one uppercase letter"},
		{"UPPERCASE1!", "Password must contain at least one lowercase letter"},
		{"NoDigits!!", "Password must contain at least one number"},
		{"NoSpecial12", "Password must contain at least one special character"},
		{goodPassword, ""},
	}

	for _, test := range tests {
		t.Run(test.password, func(t *testing.T) {
			t.Parallel()

			err := ValidatePassword(test.password)
			if test.message == "" {
				assert.Nil(t, err)

				return
			}

			var verr *model.ValidationError

			require.True(t, errors.As(err, &verr))
			assert.Equal(t, test.message, verr.Message)
			assert.Equal(t, "password", verr.Field)
			assert.True(t, errors.Is(err, apperr.ValidationFailed))
		})
	}
}

func TestSignUpThenVerifyThenSignIn(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	ctx := context.Background()

	s, local, _, n := newTestSession(t, true)

	user, err := s.SignUp(ctx, "Alice@Example.com ", goodPassword)
	require.Nil(t, err)
	assert.Equal("alice@example.com", user.Email)
	assert.False(user.Verified)
	assert.Equal(UserID("alice@example.com"), user.ID)
	assert.Equal("Verification email sent! Please check your inbox.", n.last().Message)

	require.Nil(t, s.SignOut(ctx))
	assert.Equal("", s.UserID())

	_, err = s.SignIn(ctx, "alice@example.com", goodPassword)
	assert.True(errors.Is(err, ErrNotVerified))
	assert.True(errors.Is(err, apperr.Unauthenticated))
	assert.Equal("", s.UserID(), "unverified sign-in must be signed back out")
	assert.Equal("Please verify your email before logging in", n.last().Message)

	outbox := local.Outbox()
	require.Len(t, outbox, 1)
	assert.Equal(MailVerify, outbox[0].Kind)
	require.Nil(t, local.Verify(outbox[0].Token))
	assert.NotNil(local.Verify(outbox[0].Token), "tokens are single use")

	user, err = s.SignIn(ctx, "alice@example.com", goodPassword)
	require.Nil(t, err)
	assert.True(user.Verified)
	assert.Equal(user.ID, s.UserID())
	assert.Equal(notify.Success, n.last().Level)
}

func TestSignUpRejections(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	ctx := context.Background()

	s, local, _, n := newTestSession(t, true)

	_, err := s.SignUp(ctx, "bob@example.com", "weak")
	assert.True(errors.Is(err, apperr.ValidationFailed))
	assert.Empty(local.Outbox())

	_, err = s.SignUp(ctx, "bob@example.com", goodPassword)
	require.Nil(t, err)

	_, err = s.SignUp(ctx, "bob@example.com", goodPassword)
	assert.True(errors.Is(err, ErrEmailInUse))
	assert.Equal("Email already in use.", n.last().Message)
}

func TestWrongPassword(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, _, _, n := newTestSession(t, true)

	_, err := s.SignIn(ctx, "nobody@example.com", goodPassword)
	assert.True(t, errors.Is(err, ErrInvalidCredentials))
	assert.Equal(t, "Invalid email or password.", n.last().Message)
}

func TestOfflineGatesAccountOperations(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	ctx := context.Background()

	s, local, monitor, _ := newTestSession(t, true)
	local.Adopt("carol@example.com")

	monitor.Handle(connectivity.BecameOffline)

	_, err := s.SignUp(ctx, "dave@example.com", goodPassword)
	assert.True(errors.Is(err, apperr.Offline))

	_, err = s.SignIn(ctx, "carol@example.com", goodPassword)
	assert.True(errors.Is(err, apperr.Offline))

	assert.True(errors.Is(s.SignOut(ctx), apperr.Offline))
	assert.NotEqual("", s.UserID())

	monitor.Handle(connectivity.BecameOnline)
	assert.Nil(s.SignOut(ctx))
	assert.Equal("", s.UserID())
}

func TestSendVerificationEmailNeedsUser(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, local, _, _ := newTestSession(t, true)

	assert.True(t, errors.Is(s.SendVerificationEmail(ctx), apperr.Unauthenticated))

	local.Adopt("erin@example.com")
	assert.Nil(t, s.SendVerificationEmail(ctx))
	assert.Len(t, local.Outbox(), 1)
}

func TestPasswordReset(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)
	ctx := context.Background()

	s, local, _, _ := newTestSession(t, true)

	_, err := s.SignUp(ctx, "frank@example.com", goodPassword)
	require.Nil(t, err)

	require.Nil(t, s.SendPasswordReset(ctx, "frank@example.com"))
	require.Nil(t, s.SendPasswordReset(ctx, "unknown@example.com"))

	outbox := local.Outbox()
	require.Len(t, outbox, 2)
	reset := outbox[1]
	assert.Equal(MailReset, reset.Kind)

	assert.True(errors.Is(local.ResetPassword(reset.Token, "weak"), apperr.ValidationFailed))
	require.Nil(t, local.ResetPassword(reset.Token, "N3w#Password"))

	_, err = local.SignIn(ctx, "frank@example.com", goodPassword)
	assert.True(errors.Is(err, ErrInvalidCredentials))

	_, err = local.SignIn(ctx, "frank@example.com", "N3w#Password")
	assert.Nil(err)
}

func TestAuthChangeListeners(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)

	s, local, _, _ := newTestSession(t, true)

	var seen []bool

	stop := s.OnAuthChange(func(_ User, ok bool) { seen = append(seen, ok) })

	local.Adopt("gina@example.com")
	local.Adopt("gina@example.com")
	require.Nil(t, local.SignOut(context.Background()))

	stop()
	local.Adopt("gina@example.com")

	assert.Equal([]bool{true, false}, seen)
}

func TestAdoptedAccountHasNoPassword(t *testing.T) {
	t.Parallel()

	local := NewLocal()
	user := local.Adopt("hal@example.com")
	assert.True(t, user.Verified)

	_, err := local.SignIn(context.Background(), "hal@example.com", "")
	assert.True(t, errors.Is(err, ErrInvalidCredentials))
}

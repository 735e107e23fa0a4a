package services

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/dmitrijs2005/mindvault/internal/client/client"
	"github.com/dmitrijs2005/mindvault/internal/client/repositories/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---- fakes ----

type memSessions struct {
	s       *session.Session
	saveErr error
}

func (m *memSessions) Load(context.Context) (*session.Session, error) {
	if m.s == nil {
		return nil, nil
	}
	c := *m.s
	return &c, nil
}

func (m *memSessions) Save(_ context.Context, s session.Session) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.s = &s
	return nil
}

func (m *memSessions) Clear(context.Context) error {
	m.s = nil
	return nil
}

type fakeClient struct {
	registered client.Registration
	loginToken string
	loginErr   error
	logoutErr  error
	logoutWith string
	meErr      error
	changeErr  error
	changeOld  string
	changeNew  string
	validErr   error
}

func (f *fakeClient) Register(_ context.Context, r client.Registration) (*client.Account, error) {
	f.registered = r
	return &client.Account{Email: r.Email}, nil
}
func (f *fakeClient) Verify(context.Context, string) error                 { return nil }
func (f *fakeClient) IsVerified(context.Context, string) (bool, error)     { return true, nil }
func (f *fakeClient) ResendVerification(context.Context, string) error     { return nil }
func (f *fakeClient) Ping(context.Context) error                           { return nil }
func (f *fakeClient) Login(_ context.Context, _, _ string) (string, error) { return f.loginToken, f.loginErr }
func (f *fakeClient) Logout(_ context.Context, token string) error {
	f.logoutWith = token
	return f.logoutErr
}
func (f *fakeClient) ValidateToken(_ context.Context, token string) (*client.Principal, error) {
	if f.validErr != nil {
		return nil, f.validErr
	}
	return &client.Principal{Email: "alice@x.com"}, nil
}
func (f *fakeClient) ChangePassword(_ context.Context, _, o, n string) error {
	f.changeOld, f.changeNew = o, n
	return f.changeErr
}
func (f *fakeClient) Me(context.Context, string) (*client.Account, error) {
	if f.meErr != nil {
		return nil, f.meErr
	}
	return &client.Account{Email: "alice@x.com"}, nil
}
func (f *fakeClient) UpdateMe(_ context.Context, _ string, p client.ProfilePatch) (*client.Account, error) {
	return &client.Account{Email: "alice@x.com", FirstName: *p.FirstName}, nil
}

var rejected = &client.APIError{Status: http.StatusUnauthorized, Message: "unauthenticated"}

func loggedIn() *memSessions {
	return &memSessions{s: &session.Session{Email: "alice@x.com", Token: "tok"}}
}

// ---- tests ----

func TestRegister_PassesFields(t *testing.T) {
	fc := &fakeClient{}
	svc := NewAuthService(fc, &memSessions{})

	require.NoError(t, svc.Register(context.Background(), "alice@x.com", []byte("pw"), "Alice", "Smith"))
	assert.Equal(t, client.Registration{Email: "alice@x.com", Password: "pw", FirstName: "Alice", LastName: "Smith"}, fc.registered)
}

func TestLogin_SavesSession(t *testing.T) {
	sessions := &memSessions{}
	svc := NewAuthService(&fakeClient{loginToken: "tok"}, sessions)

	require.NoError(t, svc.Login(context.Background(), "alice@x.com", []byte("pw")))
	require.NotNil(t, sessions.s)
	assert.Equal(t, "tok", sessions.s.Token)
	assert.Equal(t, "alice@x.com", sessions.s.Email)
}

func TestLogin_FailureKeepsNoSession(t *testing.T) {
	sessions := &memSessions{}
	notVerified := &client.APIError{Status: http.StatusForbidden, Message: "account not verified"}
	svc := NewAuthService(&fakeClient{loginErr: notVerified}, sessions)

	err := svc.Login(context.Background(), "alice@x.com", []byte("pw"))
	assert.ErrorIs(t, err, client.ErrNotVerified)
	assert.Nil(t, sessions.s)
}

func TestLogin_SaveError(t *testing.T) {
	boom := errors.New("disk full")
	svc := NewAuthService(&fakeClient{loginToken: "tok"}, &memSessions{saveErr: boom})

	err := svc.Login(context.Background(), "alice@x.com", []byte("pw"))
	assert.ErrorIs(t, err, boom)
}

func TestSessionCalls_RequireLogin(t *testing.T) {
	svc := NewAuthService(&fakeClient{}, &memSessions{})
	ctx := context.Background()

	assert.ErrorIs(t, svc.Logout(ctx), client.ErrNotLoggedIn)
	_, err := svc.Whoami(ctx)
	assert.ErrorIs(t, err, client.ErrNotLoggedIn)
	assert.ErrorIs(t, svc.ChangePassword(ctx, []byte("a"), []byte("b")), client.ErrNotLoggedIn)
	_, err = svc.Profile(ctx)
	assert.ErrorIs(t, err, client.ErrNotLoggedIn)
}

func TestLogout(t *testing.T) {
	t.Run("clears session", func(t *testing.T) {
		fc := &fakeClient{}
		sessions := loggedIn()
		require.NoError(t, NewAuthService(fc, sessions).Logout(context.Background()))
		assert.Equal(t, "tok", fc.logoutWith)
		assert.Nil(t, sessions.s)
	})

	t.Run("server already forgot the token", func(t *testing.T) {
		sessions := loggedIn()
		require.NoError(t, NewAuthService(&fakeClient{logoutErr: rejected}, sessions).Logout(context.Background()))
		assert.Nil(t, sessions.s)
	})

	t.Run("server down keeps session", func(t *testing.T) {
		sessions := loggedIn()
		err := NewAuthService(&fakeClient{logoutErr: client.ErrUnavailable}, sessions).Logout(context.Background())
		assert.ErrorIs(t, err, client.ErrUnavailable)
		assert.NotNil(t, sessions.s)
	})
}

func TestChangePassword_EndsSession(t *testing.T) {
	fc := &fakeClient{}
	sessions := loggedIn()

	require.NoError(t, NewAuthService(fc, sessions).ChangePassword(context.Background(), []byte("old"), []byte("new")))
	assert.Equal(t, "old", fc.changeOld)
	assert.Equal(t, "new", fc.changeNew)
	assert.Nil(t, sessions.s)
}

func TestChangePassword_MismatchKeepsSession(t *testing.T) {
	sessions := loggedIn()
	mismatch := &client.APIError{Status: http.StatusForbidden, Message: "old secret does not match"}

	err := NewAuthService(&fakeClient{changeErr: mismatch}, sessions).ChangePassword(context.Background(), []byte("x"), []byte("y"))
	assert.ErrorIs(t, err, client.ErrForbidden)
	assert.NotNil(t, sessions.s)
}

func TestRejectedToken_ForgetsSession(t *testing.T) {
	sessions := loggedIn()
	svc := NewAuthService(&fakeClient{meErr: rejected, validErr: rejected}, sessions)

	_, err := svc.Profile(context.Background())
	assert.ErrorIs(t, err, client.ErrUnauthorized)
	assert.Nil(t, sessions.s)
}

func TestWhoamiAndUpdateProfile(t *testing.T) {
	svc := NewAuthService(&fakeClient{}, loggedIn())
	ctx := context.Background()

	p, err := svc.Whoami(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alice@x.com", p.Email)

	name := "Al"
	acc, err := svc.UpdateProfile(ctx, client.ProfilePatch{FirstName: &name})
	require.NoError(t, err)
	assert.Equal(t, "Al", acc.FirstName)
}

package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sirama-krs-engine/internal/models"
	"github.com/noah-isme/sirama-krs-engine/internal/sirama"
)

type mockAuthClient struct {
	session    *models.Session
	loginErr   error
	profile    *sirama.Profile
	profileErr error

	loginCalls   int
	lastPassword string
}

func (m *mockAuthClient) Login(ctx context.Context, username, password string) (*models.Session, error) {
	m.loginCalls++
	m.lastPassword = password
	if m.loginErr != nil {
		return nil, m.loginErr
	}
	return m.session, nil
}

func (m *mockAuthClient) GetProfile(ctx context.Context, session *models.Session) (*sirama.Profile, error) {
	if m.profileErr != nil {
		return nil, m.profileErr
	}
	return m.profile, nil
}

type mockDecrypter struct {
	plaintext string
	err       error
}

func (m *mockDecrypter) Decrypt(token string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.plaintext, nil
}

func testAccount() models.Account {
	return models.Account{ID: "acct-1", NIM: "1234567890", PasswordEncrypted: "sealed", Status: models.AccountStatusActive}
}

func TestSessionManagerAuthenticate(t *testing.T) {
	client := &mockAuthClient{
		session: &models.Session{Token: "tok"},
		profile: &sirama.Profile{StudentID: "1234567890", FullName: "Budi"},
	}
	manager := NewSessionManager(client, &mockDecrypter{plaintext: "secret"}, zap.NewNop())

	session, err := manager.Authenticate(context.Background(), testAccount())
	require.NoError(t, err)
	assert.Equal(t, "tok", session.Token)
	assert.Equal(t, "1234567890", session.StudentID)
	assert.Equal(t, "secret", client.lastPassword)
}

func TestSessionManagerRejectedCredentials(t *testing.T) {
	client := &mockAuthClient{loginErr: &sirama.AuthRejectedError{Message: "password salah"}}
	manager := NewSessionManager(client, &mockDecrypter{plaintext: "secret"}, zap.NewNop())

	_, err := manager.Authenticate(context.Background(), testAccount())
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, models.ReasonInvalidCredentials, authErr.Reason)
	assert.False(t, authErr.Reason.Transient())
}

func TestSessionManagerServiceUnavailable(t *testing.T) {
	client := &mockAuthClient{loginErr: &sirama.ServerError{StatusCode: 503, Message: "maintenance"}}
	manager := NewSessionManager(client, &mockDecrypter{plaintext: "secret"}, zap.NewNop())

	_, err := manager.Authenticate(context.Background(), testAccount())
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, models.ReasonServiceUnavailable, authErr.Reason)
	assert.True(t, authErr.Reason.Transient())
}

func TestSessionManagerNetworkUnreachable(t *testing.T) {
	client := &mockAuthClient{loginErr: errors.New("dial tcp: connection refused")}
	manager := NewSessionManager(client, &mockDecrypter{plaintext: "secret"}, zap.NewNop())

	_, err := manager.Authenticate(context.Background(), testAccount())
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, models.ReasonNetworkUnreachable, authErr.Reason)
}

func TestSessionManagerDecryptFailureIsTerminal(t *testing.T) {
	client := &mockAuthClient{session: &models.Session{Token: "tok"}}
	manager := NewSessionManager(client, &mockDecrypter{err: errors.New("bad token")}, zap.NewNop())

	_, err := manager.Authenticate(context.Background(), testAccount())
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, models.ReasonInvalidCredentials, authErr.Reason)
	assert.Zero(t, client.loginCalls)
}

func TestSessionManagerProfileFailure(t *testing.T) {
	client := &mockAuthClient{
		session:    &models.Session{Token: "tok"},
		profileErr: &sirama.ServerError{StatusCode: 500, Message: "profile broken"},
	}
	manager := NewSessionManager(client, &mockDecrypter{plaintext: "secret"}, zap.NewNop())

	_, err := manager.Authenticate(context.Background(), testAccount())
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, models.ReasonServiceUnavailable, authErr.Reason)
}

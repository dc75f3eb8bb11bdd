package engine

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/sirama-krs-engine/internal/models"
	"github.com/noah-isme/sirama-krs-engine/internal/sirama"
)

// AuthClient is the slice of the SIRAMA client the session manager uses.
type AuthClient interface {
	Login(ctx context.Context, username, password string) (*models.Session, error)
	GetProfile(ctx context.Context, session *models.Session) (*sirama.Profile, error)
}

// CredentialDecrypter recovers the plaintext SIRAMA password from its stored
// encrypted form. Decryption happens only here, immediately before login.
type CredentialDecrypter interface {
	Decrypt(token string) (string, error)
}

// AuthError classifies why authentication failed. ReasonInvalidCredentials
// is terminal; the network and service reasons are transient.
type AuthError struct {
	Reason models.Reason
	Err    error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed (%s): %v", e.Reason, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// SessionManager establishes an authenticated session for one account. Each
// run authenticates fresh; sessions are never cached across runs.
type SessionManager struct {
	client      AuthClient
	credentials CredentialDecrypter
	logger      *zap.Logger
}

// NewSessionManager constructs a SessionManager.
func NewSessionManager(client AuthClient, credentials CredentialDecrypter, logger *zap.Logger) *SessionManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionManager{client: client, credentials: credentials, logger: logger}
}

// Authenticate logs the account in and loads the remote student number the
// transaction endpoints require. Failures come back as *AuthError.
func (m *SessionManager) Authenticate(ctx context.Context, account models.Account) (*models.Session, error) {
	password, err := m.credentials.Decrypt(account.PasswordEncrypted)
	if err != nil {
		// A credential handle that cannot be decrypted needs human
		// attention just like a rejected password.
		return nil, &AuthError{Reason: models.ReasonInvalidCredentials, Err: fmt.Errorf("decrypt credential: %w", err)}
	}

	session, err := m.client.Login(ctx, account.NIM, password)
	if err != nil {
		return nil, &AuthError{Reason: classifyAuthFailure(err), Err: err}
	}

	profile, err := m.client.GetProfile(ctx, session)
	if err != nil {
		return nil, &AuthError{Reason: classifyAuthFailure(err), Err: fmt.Errorf("load profile: %w", err)}
	}
	session.StudentID = profile.StudentID

	m.logger.Info("session established",
		zap.String("nim", account.NIM),
		zap.Time("expires_at", session.ExpiresAt),
	)
	return session, nil
}

func classifyAuthFailure(err error) models.Reason {
	var rejected *sirama.AuthRejectedError
	if errors.As(err, &rejected) {
		return models.ReasonInvalidCredentials
	}
	var serverErr *sirama.ServerError
	if errors.As(err, &serverErr) {
		return models.ReasonServiceUnavailable
	}
	// Timeouts and transport failures alike mean the auth service could not
	// be reached.
	return models.ReasonNetworkUnreachable
}

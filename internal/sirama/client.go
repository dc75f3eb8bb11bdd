package sirama

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sirama-krs-engine/internal/models"
	"github.com/noah-isme/sirama-krs-engine/pkg/config"
)

const (
	loginPath       = "/api/oauth/issueauth"
	profilePath     = "/read/api/read/issueprofile"
	transactionPath = "/trans/api/transaction"
)

// Config configures the remote SIRAMA client.
type Config struct {
	AuthBaseURL    string
	ServiceBaseURL string
	Origin         string
	Timeout        time.Duration
}

// FromAppConfig converts the application config section.
func FromAppConfig(cfg config.SiramaConfig) Config {
	return Config{
		AuthBaseURL:    cfg.AuthBaseURL,
		ServiceBaseURL: cfg.ServiceBaseURL,
		Origin:         cfg.Origin,
		Timeout:        cfg.RequestTimeout,
	}
}

// Client talks to the SIRAMA authentication and service endpoints.
type Client struct {
	http   *http.Client
	cfg    Config
	logger *zap.Logger
}

// NewClient constructs a Client. The per-call timeout applies to every
// request the engine issues.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		http:   &http.Client{Timeout: cfg.Timeout},
		cfg:    cfg,
		logger: logger,
	}
}

// Profile is the slice of the student profile the engine needs.
type Profile struct {
	StudentID string `json:"numberid"`
	FullName  string `json:"fullname"`
}

// TransactionResult is the parsed body of an add/drop transaction response.
type TransactionResult struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type loginResponse struct {
	Meta struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	} `json:"meta"`
	Token       string `json:"token"`
	Expires     int64  `json:"expires"`
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Login exchanges the account credentials for a session token. The raw
// credential is never logged.
func (c *Client) Login(ctx context.Context, username, password string) (*models.Session, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.AuthBaseURL+loginPath, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build login request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("login request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read login response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, &AuthRejectedError{Message: messageFromBody(body)}
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, &ServerError{StatusCode: resp.StatusCode, Message: messageFromBody(body)}
	}

	var parsed loginResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &ServerError{StatusCode: resp.StatusCode, Message: "malformed login response"}
	}

	switch {
	case parsed.Token != "" && parsed.Meta.Status == http.StatusOK:
		c.logger.Info("sirama login succeeded", zap.String("username", username))
		return &models.Session{Token: parsed.Token, ExpiresAt: expiryEstimate(parsed.Expires)}, nil
	case parsed.AccessToken != "":
		// Older response shape still seen on some deployments.
		c.logger.Info("sirama login succeeded", zap.String("username", username))
		return &models.Session{Token: parsed.AccessToken, ExpiresAt: expiryEstimate(parsed.ExpiresIn)}, nil
	default:
		msg := parsed.Meta.Message
		if msg == "" {
			msg = "invalid response from server"
		}
		return nil, &AuthRejectedError{Message: msg}
	}
}

// GetProfile loads the student profile for an authenticated session. The
// transaction endpoints require the remote student number it carries.
func (c *Client) GetProfile(ctx context.Context, session *models.Session) (*Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.ServiceBaseURL+profilePath, nil)
	if err != nil {
		return nil, fmt.Errorf("build profile request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Authorization", "Bearer "+session.Token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("profile request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read profile response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &ServerError{StatusCode: resp.StatusCode, Message: messageFromBody(body)}
	}

	var profile Profile
	if err := json.Unmarshal(body, &profile); err != nil {
		return nil, &ServerError{StatusCode: resp.StatusCode, Message: "malformed profile response"}
	}
	if profile.StudentID == "" {
		return nil, &ServerError{StatusCode: resp.StatusCode, Message: "profile missing student number"}
	}
	return &profile, nil
}

// AddCourse enrolls a course through the transaction endpoint identified by
// the opaque enrollment hash.
func (c *Client) AddCourse(ctx context.Context, session *models.Session, enrollmentHash, courseID string) (*TransactionResult, error) {
	form := url.Values{}
	form.Set("studentid", session.StudentID)
	form.Set("courseid", courseID)

	endpoint := fmt.Sprintf("%s%s/%s", c.cfg.ServiceBaseURL, transactionPath, enrollmentHash)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build add course request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Authorization", "Bearer "+session.Token)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return c.doTransaction(req)
}

// DropCourse removes an enrolled course. The remote expects the course
// schedule ID, student number and a flag in the path.
func (c *Client) DropCourse(ctx context.Context, session *models.Session, dropHash, courseScheduleID, flag string) (*TransactionResult, error) {
	if flag == "" {
		flag = "1"
	}
	endpoint := fmt.Sprintf("%s%s/%s/%s/%s/%s", c.cfg.ServiceBaseURL, transactionPath, dropHash, courseScheduleID, session.StudentID, flag)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build drop course request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Authorization", "Bearer "+session.Token)

	return c.doTransaction(req)
}

func (c *Client) doTransaction(req *http.Request) (*TransactionResult, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transaction request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read transaction response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, &TransactionRejectedError{StatusCode: resp.StatusCode, Message: messageFromBody(body)}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &ServerError{StatusCode: resp.StatusCode, Message: messageFromBody(body)}
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, &ServerError{StatusCode: resp.StatusCode, Message: messageFromBody(body)}
	}

	var result TransactionResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, &ServerError{StatusCode: resp.StatusCode, Message: "malformed transaction response"}
	}
	return &result, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", "id")
	if c.cfg.Origin != "" {
		req.Header.Set("Origin", c.cfg.Origin)
		req.Header.Set("Referer", c.cfg.Origin+"/")
	}
}

func messageFromBody(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Meta    struct {
			Message string `json:"message"`
		} `json:"meta"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Meta.Message != "" {
			return payload.Meta.Message
		}
	}
	return strings.TrimSpace(string(body))
}

func expiryEstimate(expires int64) time.Time {
	if expires <= 0 {
		return time.Time{}
	}
	// The remote reports either a unix timestamp or seconds-to-live; both
	// only serve as a best-effort expiry estimate.
	if expires > 1e9 {
		return time.Unix(expires, 0)
	}
	return time.Now().Add(time.Duration(expires) * time.Second)
}

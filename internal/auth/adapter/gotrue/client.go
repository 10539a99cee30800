package gotrue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"linkvault/internal/auth/domain/client"
	"linkvault/internal/auth/domain/model"
	"linkvault/internal/shared/errors"
	"linkvault/internal/shared/logger"

	"github.com/golang-jwt/jwt/v5"
)

// restoreRefreshLead is how close to expiry a restored session may be before
// it is refreshed during CurrentSession.
const restoreRefreshLead = 60 * time.Second

const requestTimeout = 15 * time.Second

// Client talks to a GoTrue-compatible identity endpoint and keeps the
// established session in its SessionStorage.
type Client struct {
	baseURL string
	anonKey string
	http    *http.Client
	storage SessionStorage
	log     logger.Logger
}

var _ client.IdentityProvider = (*Client)(nil)

// New creates an identity client rooted at baseURL.
func New(baseURL, anonKey string, storage SessionStorage, log logger.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		anonKey: anonKey,
		http:    &http.Client{Timeout: requestTimeout},
		storage: storage,
		log:     log.WithComponent("gotrue-client"),
	}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type sessionResponse struct {
	AccessToken  string       `json:"access_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int64        `json:"expires_in"`
	RefreshToken string       `json:"refresh_token"`
	User         userResponse `json:"user"`
}

type userResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

type errorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// CurrentSession restores the persisted session. A session near or past
// expiry is refreshed first; an unreadable session file is dropped.
func (c *Client) CurrentSession(ctx context.Context) (*model.Session, error) {
	sess, err := c.storage.Load()
	if err != nil {
		c.log.Warnf("dropping unreadable session file: %v", err)
		_ = c.storage.Clear()
		return nil, nil
	}
	if sess == nil {
		return nil, nil
	}
	if sess.ExpiresAt.IsZero() {
		sess.ExpiresAt = expiryFromToken(sess.AccessToken)
	}
	if sess.ExpiresAt.IsZero() || sess.ExpiresWithin(restoreRefreshLead) {
		return c.RefreshSession(ctx, sess.RefreshToken)
	}
	return sess, nil
}

func (c *Client) SignUp(ctx context.Context, email, password string) (*model.Session, error) {
	var out sessionResponse
	err := c.doRequest(ctx, http.MethodPost, "/auth/v1/signup", credentialsRequest{Email: email, Password: password}, &out, "")
	if err != nil {
		return nil, err
	}
	return c.established(out), nil
}

func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*model.Session, error) {
	var out sessionResponse
	err := c.doRequest(ctx, http.MethodPost, "/auth/v1/token?grant_type=password", credentialsRequest{Email: email, Password: password}, &out, "")
	if err != nil {
		return nil, err
	}
	return c.established(out), nil
}

// RefreshSession exchanges refreshToken for a new session. The backend
// rotates refresh tokens, so a rejected token also clears the persisted copy.
func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (*model.Session, error) {
	if refreshToken == "" {
		return nil, errors.NewUnauthenticatedError("no refresh token available")
	}
	var out sessionResponse
	err := c.doRequest(ctx, http.MethodPost, "/auth/v1/token?grant_type=refresh_token", refreshRequest{RefreshToken: refreshToken}, &out, "")
	if err != nil {
		if errors.IsUnauthenticated(err) {
			_ = c.storage.Clear()
		}
		return nil, err
	}
	return c.established(out), nil
}

// SignOut revokes the session server-side and clears the persisted copy. The
// local clear happens even when the revoke call fails.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	err := c.doRequest(ctx, http.MethodPost, "/auth/v1/logout", nil, nil, accessToken)
	if clearErr := c.storage.Clear(); clearErr != nil && err == nil {
		err = clearErr
	}
	return err
}

func (c *Client) established(resp sessionResponse) *model.Session {
	sess := &model.Session{
		AccessToken:  resp.AccessToken,
		TokenType:    resp.TokenType,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second),
		User: model.User{
			ID:        resp.User.ID,
			Email:     resp.User.Email,
			CreatedAt: resp.User.CreatedAt,
		},
	}
	if err := c.storage.Save(sess); err != nil {
		c.log.Warnf("persisting session: %v", err)
	}
	return sess
}

// expiryFromToken recovers the expiry from the token's exp claim for session
// files that predate the expires_at field. The signature is not checked; the
// backend still is the authority on token validity.
func expiryFromToken(accessToken string) time.Time {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, &claims); err != nil || claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}

func (c *Client) doRequest(ctx context.Context, method, path string, body, out interface{}, accessToken string) error {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.NewInternalError("encoding request body").WithCause(err)
		}
		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return errors.NewInternalError("building request").WithCause(err)
	}
	req.Header.Set("apikey", c.anonKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.NewTransportError("identity service unreachable").WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return errorFromResponse(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.NewTransportError("decoding identity response").WithCause(err)
	}
	return nil
}

func errorFromResponse(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	message := fmt.Sprintf("identity service returned %d", resp.StatusCode)
	var er errorResponse
	if json.Unmarshal(body, &er) == nil && er.Message != "" {
		message = er.Message
	}
	appErr := errors.FromHTTPStatus(resp.StatusCode, message)
	if er.Code != "" {
		appErr = appErr.WithCode(er.Code)
	}
	return appErr.WithComponent("identity")
}

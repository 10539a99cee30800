package postgrest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	authmodel "linkvault/internal/auth/domain/model"
	"linkvault/internal/bookmarks/domain/model"
	"linkvault/internal/bookmarks/domain/repository"
	"linkvault/internal/shared/errors"
	"linkvault/internal/shared/logger"
)

const requestTimeout = 15 * time.Second

// preferReturnRepresentation asks the backend to echo affected rows, which is
// how a delete that matched nothing becomes detectable.
const preferReturnRepresentation = "return=representation"

// SessionSource supplies the session whose access token authorizes each
// request. Satisfied by the auth session store.
type SessionSource interface {
	Current() *authmodel.Session
}

// Client stores bookmarks through a PostgREST-compatible endpoint. Row-level
// policies on the backend restrict every operation to the token's subject, so
// a stale or tampered client cannot read or write rows it does not own.
type Client struct {
	baseURL  string
	anonKey  string
	sessions SessionSource
	http     *http.Client
	log      logger.Logger
}

var _ repository.BookmarkRepository = (*Client)(nil)

func New(baseURL, anonKey string, sessions SessionSource, log logger.Logger) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		anonKey:  anonKey,
		sessions: sessions,
		http:     &http.Client{Timeout: requestTimeout},
		log:      log.WithComponent("postgrest-client"),
	}
}

type bookmarkRow struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}

func (r bookmarkRow) toModel() model.Bookmark {
	return model.Bookmark{
		ID:        r.ID,
		OwnerID:   r.OwnerID,
		Title:     r.Title,
		URL:       r.URL,
		CreatedAt: r.CreatedAt,
	}
}

type insertRequest struct {
	OwnerID string `json:"owner_id"`
	Title   string `json:"title"`
	URL     string `json:"url"`
}

// List returns ownerID's bookmarks ordered newest first. The ordering comes
// from the backend so cached lists and fresh fetches always agree.
func (c *Client) List(ctx context.Context, ownerID string) ([]model.Bookmark, error) {
	params := url.Values{}
	params.Set("select", "*")
	params.Set("owner_id", "eq."+ownerID)
	params.Set("order", "created_at.desc")

	var rows []bookmarkRow
	if err := c.doRequest(ctx, http.MethodGet, "/rest/v1/bookmarks?"+params.Encode(), nil, "", &rows); err != nil {
		return nil, err
	}
	out := make([]model.Bookmark, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toModel())
	}
	return out, nil
}

// Insert creates a bookmark row. The backend assigns id and created_at and
// echoes the complete row back.
func (c *Client) Insert(ctx context.Context, ownerID, title, urlStr string) (*model.Bookmark, error) {
	var rows []bookmarkRow
	body := insertRequest{OwnerID: ownerID, Title: title, URL: urlStr}
	if err := c.doRequest(ctx, http.MethodPost, "/rest/v1/bookmarks", body, preferReturnRepresentation, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.NewTransportError("backend returned no created row")
	}
	bm := rows[0].toModel()
	return &bm, nil
}

// Delete removes the row with the given id. Deleting a row that does not
// exist, or that belongs to someone else, reports not found; row policies
// make the two cases indistinguishable on the wire.
func (c *Client) Delete(ctx context.Context, id string) error {
	params := url.Values{}
	params.Set("id", "eq."+id)

	var rows []bookmarkRow
	if err := c.doRequest(ctx, http.MethodDelete, "/rest/v1/bookmarks?"+params.Encode(), nil, preferReturnRepresentation, &rows); err != nil {
		return err
	}
	if len(rows) == 0 {
		return errors.NewNotFoundError("bookmark")
	}
	return nil
}

func (c *Client) accessToken() string {
	if sess := c.sessions.Current(); sess != nil {
		return sess.AccessToken
	}
	return ""
}

func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}, prefer string, out interface{}) error {
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
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}
	if token := c.accessToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.NewTransportError("bookmark backend unreachable").WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return errorFromResponse(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.NewTransportError("decoding backend response").WithCause(err)
	}
	return nil
}

type errorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

func errorFromResponse(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	message := fmt.Sprintf("bookmark backend returned %d", resp.StatusCode)
	var er errorResponse
	if json.Unmarshal(body, &er) == nil && er.Message != "" {
		message = er.Message
	}
	appErr := errors.FromHTTPStatus(resp.StatusCode, message)
	if er.Code != "" {
		appErr = appErr.WithCode(er.Code)
	}
	return appErr.WithComponent("bookmarks")
}

package http

import (
	"context"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"linkvault/internal/emulator/domain/model"
	"linkvault/internal/emulator/policy"
)

type RestHandlerTestSuite struct {
	suite.Suite
	env   *testEnv
	alice sessionResponse
	bob   sessionResponse
}

func (suite *RestHandlerTestSuite) SetupTest() {
	suite.env = newTestEnv(suite.T())
	suite.alice = suite.env.signUp(suite.T(), "alice@example.com", "password-a")
	suite.bob = suite.env.signUp(suite.T(), "bob@example.com", "password-b")
}

// insert creates a bookmark through the endpoint, asking for the created row
// back.
func (suite *RestHandlerTestSuite) insert(sess sessionResponse, title, url string) model.Bookmark {
	status, body := suite.env.doRequest(suite.T(), fiber.MethodPost, "/rest/v1/bookmarks", sess.AccessToken,
		map[string]string{"owner_id": sess.User.ID, "title": title, "url": url},
		map[string]string{"Prefer": "return=representation"})
	require.Equal(suite.T(), fiber.StatusCreated, status, "insert response: %s", body)

	var rows []model.Bookmark
	mustDecode(suite.T(), body, &rows)
	require.Len(suite.T(), rows, 1)
	return rows[0]
}

func (suite *RestHandlerTestSuite) TestInsert_ReturnsRepresentation() {
	row := suite.insert(suite.alice, "Go Blog", "https://go.dev/blog")

	assert.NotEmpty(suite.T(), row.ID)
	assert.Equal(suite.T(), suite.alice.User.ID, row.OwnerID)
	assert.Equal(suite.T(), "Go Blog", row.Title)
	assert.Equal(suite.T(), "https://go.dev/blog", row.URL)
	assert.False(suite.T(), row.CreatedAt.IsZero())
}

func (suite *RestHandlerTestSuite) TestInsert_WithoutPreferReturnsNoBody() {
	status, body := suite.env.doRequest(suite.T(), fiber.MethodPost, "/rest/v1/bookmarks", suite.alice.AccessToken,
		map[string]string{"owner_id": suite.alice.User.ID, "title": "Go Blog", "url": "https://go.dev/blog"}, nil)

	assert.Equal(suite.T(), fiber.StatusCreated, status)
	assert.Empty(suite.T(), body)
}

func (suite *RestHandlerTestSuite) TestInsert_ForeignOwnerForbidden() {
	status, body := suite.env.doRequest(suite.T(), fiber.MethodPost, "/rest/v1/bookmarks", suite.alice.AccessToken,
		map[string]string{"owner_id": suite.bob.User.ID, "title": "Not Mine", "url": "https://example.com"},
		map[string]string{"Prefer": "return=representation"})

	assert.Equal(suite.T(), fiber.StatusForbidden, status)
	var errResp errorBody
	mustDecode(suite.T(), body, &errResp)
	assert.Equal(suite.T(), "42501", errResp.Code)

	// Nothing was written.
	rows, err := suite.env.store.ListBookmarksByOwner(context.Background(), suite.bob.User.ID)
	require.NoError(suite.T(), err)
	assert.Empty(suite.T(), rows)
}

func (suite *RestHandlerTestSuite) TestInsert_ConstraintViolations() {
	tests := []struct {
		name string
		body map[string]string
		code string
	}{
		{
			name: "blank title",
			body: map[string]string{"owner_id": suite.alice.User.ID, "title": "   ", "url": "https://example.com"},
			code: "23514",
		},
		{
			name: "missing url",
			body: map[string]string{"owner_id": suite.alice.User.ID, "title": "No URL"},
			code: "23502",
		},
		{
			name: "missing owner",
			body: map[string]string{"title": "No Owner", "url": "https://example.com"},
			code: "23502",
		},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			status, body := suite.env.doRequest(suite.T(), fiber.MethodPost, "/rest/v1/bookmarks",
				suite.alice.AccessToken, tc.body, nil)

			assert.Equal(suite.T(), fiber.StatusBadRequest, status)
			var errResp errorBody
			mustDecode(suite.T(), body, &errResp)
			assert.Equal(suite.T(), tc.code, errResp.Code)
		})
	}
}

func (suite *RestHandlerTestSuite) TestList_ScopedToOwner() {
	first := suite.insert(suite.alice, "First", "https://example.com/1")
	second := suite.insert(suite.alice, "Second", "https://example.com/2")
	suite.insert(suite.bob, "Bobs", "https://example.com/bob")

	status, body := suite.env.doRequest(suite.T(), fiber.MethodGet,
		"/rest/v1/bookmarks?select=*&owner_id=eq."+suite.alice.User.ID+"&order=created_at.desc",
		suite.alice.AccessToken, nil, nil)
	require.Equal(suite.T(), fiber.StatusOK, status, "list response: %s", body)

	var rows []model.Bookmark
	mustDecode(suite.T(), body, &rows)
	require.Len(suite.T(), rows, 2)
	assert.Equal(suite.T(), second.ID, rows[0].ID)
	assert.Equal(suite.T(), first.ID, rows[1].ID)
}

func (suite *RestHandlerTestSuite) TestList_AscendingOrder() {
	first := suite.insert(suite.alice, "First", "https://example.com/1")
	second := suite.insert(suite.alice, "Second", "https://example.com/2")

	status, body := suite.env.doRequest(suite.T(), fiber.MethodGet,
		"/rest/v1/bookmarks?order=created_at.asc", suite.alice.AccessToken, nil, nil)
	require.Equal(suite.T(), fiber.StatusOK, status)

	var rows []model.Bookmark
	mustDecode(suite.T(), body, &rows)
	require.Len(suite.T(), rows, 2)
	assert.Equal(suite.T(), first.ID, rows[0].ID)
	assert.Equal(suite.T(), second.ID, rows[1].ID)
}

func (suite *RestHandlerTestSuite) TestList_ForeignOwnerFilterComesBackEmpty() {
	suite.insert(suite.bob, "Bobs", "https://example.com/bob")

	status, body := suite.env.doRequest(suite.T(), fiber.MethodGet,
		"/rest/v1/bookmarks?owner_id=eq."+suite.bob.User.ID, suite.alice.AccessToken, nil, nil)

	// The rows exist but the select policy hides them.
	require.Equal(suite.T(), fiber.StatusOK, status)
	var rows []model.Bookmark
	mustDecode(suite.T(), body, &rows)
	assert.Empty(suite.T(), rows)
}

func (suite *RestHandlerTestSuite) TestList_Projection() {
	suite.insert(suite.alice, "Go Blog", "https://go.dev/blog")

	status, body := suite.env.doRequest(suite.T(), fiber.MethodGet,
		"/rest/v1/bookmarks?select=id,title", suite.alice.AccessToken, nil, nil)
	require.Equal(suite.T(), fiber.StatusOK, status)

	var rows []map[string]interface{}
	mustDecode(suite.T(), body, &rows)
	require.Len(suite.T(), rows, 1)
	assert.Len(suite.T(), rows[0], 2)
	assert.Equal(suite.T(), "Go Blog", rows[0]["title"])
	assert.NotEmpty(suite.T(), rows[0]["id"])
}

func (suite *RestHandlerTestSuite) TestList_UnknownColumn() {
	status, body := suite.env.doRequest(suite.T(), fiber.MethodGet,
		"/rest/v1/bookmarks?select=id,color", suite.alice.AccessToken, nil, nil)

	assert.Equal(suite.T(), fiber.StatusBadRequest, status)
	var errResp errorBody
	mustDecode(suite.T(), body, &errResp)
	assert.Equal(suite.T(), "42703", errResp.Code)
}

func (suite *RestHandlerTestSuite) TestDelete_OwnRow() {
	row := suite.insert(suite.alice, "Doomed", "https://example.com/doomed")

	status, body := suite.env.doRequest(suite.T(), fiber.MethodDelete,
		"/rest/v1/bookmarks?id=eq."+row.ID, suite.alice.AccessToken, nil,
		map[string]string{"Prefer": "return=representation"})
	require.Equal(suite.T(), fiber.StatusOK, status, "delete response: %s", body)

	var deleted []model.Bookmark
	mustDecode(suite.T(), body, &deleted)
	require.Len(suite.T(), deleted, 1)
	assert.Equal(suite.T(), row.ID, deleted[0].ID)

	rows, err := suite.env.store.ListBookmarksByOwner(context.Background(), suite.alice.User.ID)
	require.NoError(suite.T(), err)
	assert.Empty(suite.T(), rows)
}

func (suite *RestHandlerTestSuite) TestDelete_ForeignRowLooksMissing() {
	row := suite.insert(suite.bob, "Bobs", "https://example.com/bob")

	status, body := suite.env.doRequest(suite.T(), fiber.MethodDelete,
		"/rest/v1/bookmarks?id=eq."+row.ID, suite.alice.AccessToken, nil,
		map[string]string{"Prefer": "return=representation"})

	// Same answer as deleting a row that never existed.
	require.Equal(suite.T(), fiber.StatusOK, status)
	var deleted []model.Bookmark
	mustDecode(suite.T(), body, &deleted)
	assert.Empty(suite.T(), deleted)

	rows, err := suite.env.store.ListBookmarksByOwner(context.Background(), suite.bob.User.ID)
	require.NoError(suite.T(), err)
	assert.Len(suite.T(), rows, 1)
}

func (suite *RestHandlerTestSuite) TestDelete_MissingRow() {
	status, body := suite.env.doRequest(suite.T(), fiber.MethodDelete,
		"/rest/v1/bookmarks?id=eq.does-not-exist", suite.alice.AccessToken, nil,
		map[string]string{"Prefer": "return=representation"})

	require.Equal(suite.T(), fiber.StatusOK, status)
	var deleted []model.Bookmark
	mustDecode(suite.T(), body, &deleted)
	assert.Empty(suite.T(), deleted)
}

func (suite *RestHandlerTestSuite) TestDelete_RequiresIDFilter() {
	status, _ := suite.env.doRequest(suite.T(), fiber.MethodDelete,
		"/rest/v1/bookmarks", suite.alice.AccessToken, nil, nil)
	assert.Equal(suite.T(), fiber.StatusBadRequest, status)
}

func (suite *RestHandlerTestSuite) TestInsert_PublishesChangeEvent() {
	events := make(chan model.ChangeEvent, 1)
	suite.env.bus.Subscribe(policy.BookmarksTable, func(ctx context.Context, event model.ChangeEvent) error {
		events <- event
		return nil
	})

	row := suite.insert(suite.alice, "Watched", "https://example.com/watched")

	select {
	case event := <-events:
		assert.Equal(suite.T(), model.EventInsert, event.Event)
		require.NotNil(suite.T(), event.Row)
		assert.Equal(suite.T(), row.ID, event.Row.ID)
	case <-time.After(time.Second):
		suite.T().Fatal("no insert event published")
	}
}

func (suite *RestHandlerTestSuite) TestDelete_PublishesChangeEvent() {
	row := suite.insert(suite.alice, "Watched", "https://example.com/watched")

	events := make(chan model.ChangeEvent, 1)
	suite.env.bus.Subscribe(policy.BookmarksTable, func(ctx context.Context, event model.ChangeEvent) error {
		events <- event
		return nil
	})

	status, _ := suite.env.doRequest(suite.T(), fiber.MethodDelete,
		"/rest/v1/bookmarks?id=eq."+row.ID, suite.alice.AccessToken, nil, nil)
	require.Equal(suite.T(), fiber.StatusNoContent, status)

	select {
	case event := <-events:
		assert.Equal(suite.T(), model.EventDelete, event.Event)
		require.NotNil(suite.T(), event.OldRow)
		assert.Equal(suite.T(), row.ID, event.OldRow.ID)
	case <-time.After(time.Second):
		suite.T().Fatal("no delete event published")
	}
}

func TestRestHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(RestHandlerTestSuite))
}

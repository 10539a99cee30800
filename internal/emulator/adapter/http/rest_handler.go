package http

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/gofiber/fiber/v2"

	"linkvault/internal/emulator/adapter/persistence/redis"
	"linkvault/internal/emulator/domain/model"
	"linkvault/internal/emulator/eventbus"
	"linkvault/internal/emulator/logger"
	"linkvault/internal/emulator/policy"
	"linkvault/internal/shared/utils"
)

// preferRepresentation asks for the affected rows back instead of an empty
// response.
const preferRepresentation = "return=representation"

// headerPrefer is the PostgREST preference header.
const headerPrefer = "Prefer"

// bookmarkColumns are the columns the bookmarks table exposes.
var bookmarkColumns = []string{"id", "owner_id", "title", "url", "created_at"}

// RestHandler serves the table endpoint the bookmark repository consumes. It
// speaks a small slice of the PostgREST dialect: eq filters, column
// projection, created_at ordering and the return=representation preference.
// Row policies gate every operation, so the handler never trusts the caller's
// filters for authorization.
type RestHandler struct {
	store    *redis.Store
	policies *policy.Engine
	bus      *eventbus.Bus
	log      logger.Logger
}

func NewRestHandler(store *redis.Store, policies *policy.Engine, bus *eventbus.Bus, log logger.Logger) *RestHandler {
	return &RestHandler{
		store:    store,
		policies: policies,
		bus:      bus,
		log:      log.Named("rest-handler"),
	}
}

func (h *RestHandler) RegisterRoutes(router fiber.Router, mw *Middleware) {
	group := router.Group("/rest/v1", mw.RequireAnonKey(), mw.Protect())
	group.Get("/bookmarks", h.List)
	group.Post("/bookmarks", h.Insert)
	group.Delete("/bookmarks", h.Delete)
}

// tableQuery is the parsed slice of query parameters a request may carry.
type tableQuery struct {
	columns    []string          // nil selects every column
	filters    map[string]string // column -> required value
	descending bool
}

type queryError struct {
	status  int
	message string
	code    string
}

func (e *queryError) Error() string { return e.message }

// parseTableQuery validates select, eq filters and order. Unknown columns are
// rejected with the error code a relational backend would use.
func parseTableQuery(c *fiber.Ctx) (tableQuery, *queryError) {
	q := tableQuery{filters: map[string]string{}, descending: true}

	if sel := c.Query("select", "*"); sel != "*" {
		for _, col := range strings.Split(sel, ",") {
			col = strings.TrimSpace(col)
			if !knownColumn(col) {
				return q, &queryError{fiber.StatusBadRequest, fmt.Sprintf("column bookmarks.%s does not exist", col), "42703"}
			}
			q.columns = append(q.columns, col)
		}
	}

	for _, col := range []string{"id", "owner_id"} {
		raw := c.Query(col)
		if raw == "" {
			continue
		}
		value, ok := strings.CutPrefix(raw, "eq.")
		if !ok {
			return q, &queryError{fiber.StatusBadRequest, fmt.Sprintf("unsupported filter on %s: %s", col, raw), ""}
		}
		q.filters[col] = value
	}

	switch order := c.Query("order"); order {
	case "", "created_at.desc":
		q.descending = true
	case "created_at.asc":
		q.descending = false
	default:
		return q, &queryError{fiber.StatusBadRequest, "unsupported order: " + order, ""}
	}

	return q, nil
}

func knownColumn(name string) bool {
	for _, col := range bookmarkColumns {
		if col == name {
			return true
		}
	}
	return false
}

// List returns the rows visible to the caller, filtered and ordered per the
// query.
func (h *RestHandler) List(c *fiber.Ctx) error {
	auth, err := authFromContext(c)
	if err != nil {
		return writeError(c, fiber.StatusUnauthorized, "authentication required", "")
	}
	q, qerr := parseTableQuery(c)
	if qerr != nil {
		return writeError(c, qerr.status, qerr.message, qerr.code)
	}

	// Candidate rows come from the owner index; the select policy still
	// decides visibility row by row.
	scope := auth.UserID
	if owner, ok := q.filters["owner_id"]; ok {
		scope = owner
	}
	rows, err := h.store.ListBookmarksByOwner(c.UserContext(), scope)
	if err != nil {
		h.log.Error("listing bookmarks", logger.Error(err))
		return writeError(c, fiber.StatusInternalServerError, "unable to list bookmarks", "")
	}

	visible := make([]model.Bookmark, 0, len(rows))
	for _, row := range rows {
		if !matchesFilters(row, q.filters) {
			continue
		}
		allowed, err := h.policies.Allowed(policy.BookmarksTable, policy.OpSelect, &auth, &row)
		if err != nil {
			h.log.Error("evaluating select policy", logger.Error(err))
			return writeError(c, fiber.StatusInternalServerError, "policy evaluation failed", "")
		}
		if allowed {
			visible = append(visible, row)
		}
	}

	sortBookmarks(visible, q.descending)
	return c.JSON(projectRows(visible, q.columns))
}

type insertRequest struct {
	OwnerID string  `json:"owner_id"`
	Title   *string `json:"title"`
	URL     *string `json:"url"`
}

// Insert creates a row after the insert policy admits it. The store assigns
// id and created_at the way column defaults would.
func (h *RestHandler) Insert(c *fiber.Ctx) error {
	auth, err := authFromContext(c)
	if err != nil {
		return writeError(c, fiber.StatusUnauthorized, "authentication required", "")
	}

	var req insertRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, fiber.StatusBadRequest, "invalid request body", "")
	}
	if qerr := validateInsert(req); qerr != nil {
		return writeError(c, qerr.status, qerr.message, qerr.code)
	}

	candidate := model.Bookmark{OwnerID: req.OwnerID, Title: *req.Title, URL: *req.URL}
	allowed, err := h.policies.Allowed(policy.BookmarksTable, policy.OpInsert, &auth, &candidate)
	if err != nil {
		h.log.Error("evaluating insert policy", logger.Error(err))
		return writeError(c, fiber.StatusInternalServerError, "policy evaluation failed", "")
	}
	if !allowed {
		return writeError(c, fiber.StatusForbidden, `new row violates row-level security policy for table "bookmarks"`, "42501")
	}

	row, err := h.store.CreateBookmark(c.UserContext(), req.OwnerID, *req.Title, *req.URL)
	if err != nil {
		h.log.Error("creating bookmark", logger.Error(err))
		return writeError(c, fiber.StatusInternalServerError, "unable to create bookmark", "")
	}

	// The row is committed; event delivery outlives this request.
	h.bus.PublishAndForget(context.Background(), policy.BookmarksTable, model.ChangeEvent{
		Event: model.EventInsert,
		Row:   row,
	})

	if c.Get(headerPrefer) == preferRepresentation {
		return c.Status(fiber.StatusCreated).JSON([]model.Bookmark{*row})
	}
	return c.Status(fiber.StatusCreated).Send(nil)
}

// validateInsert enforces the constraints the table schema declares.
func validateInsert(req insertRequest) *queryError {
	if req.OwnerID == "" {
		return &queryError{fiber.StatusBadRequest, `null value in column "owner_id" violates not-null constraint`, "23502"}
	}
	if req.Title == nil {
		return &queryError{fiber.StatusBadRequest, `null value in column "title" violates not-null constraint`, "23502"}
	}
	if req.URL == nil {
		return &queryError{fiber.StatusBadRequest, `null value in column "url" violates not-null constraint`, "23502"}
	}
	if strings.TrimSpace(*req.Title) == "" {
		return &queryError{fiber.StatusBadRequest, `new row for relation "bookmarks" violates check constraint "bookmarks_title_check"`, "23514"}
	}
	if strings.TrimSpace(*req.URL) == "" {
		return &queryError{fiber.StatusBadRequest, `new row for relation "bookmarks" violates check constraint "bookmarks_url_check"`, "23514"}
	}
	return nil
}

// Delete removes the row named by the id filter. A row that does not exist,
// or that the delete policy hides, yields an empty representation; callers
// cannot tell the two apart.
func (h *RestHandler) Delete(c *fiber.Ctx) error {
	auth, err := authFromContext(c)
	if err != nil {
		return writeError(c, fiber.StatusUnauthorized, "authentication required", "")
	}
	q, qerr := parseTableQuery(c)
	if qerr != nil {
		return writeError(c, qerr.status, qerr.message, qerr.code)
	}

	// Deletes must name a row. Nothing in this system deletes table-wide.
	id, ok := q.filters["id"]
	if !ok {
		return writeError(c, fiber.StatusBadRequest, "delete requires an id filter", "")
	}

	row, err := h.store.GetBookmark(c.UserContext(), id)
	if err != nil {
		if errors.Is(err, redis.ErrBookmarkNotFound) {
			return h.emptyRepresentation(c)
		}
		h.log.Error("loading bookmark", logger.Error(err))
		return writeError(c, fiber.StatusInternalServerError, "unable to delete bookmark", "")
	}

	allowed, err := h.policies.Allowed(policy.BookmarksTable, policy.OpDelete, &auth, row)
	if err != nil {
		h.log.Error("evaluating delete policy", logger.Error(err))
		return writeError(c, fiber.StatusInternalServerError, "policy evaluation failed", "")
	}
	if !allowed || !matchesFilters(*row, q.filters) {
		return h.emptyRepresentation(c)
	}

	deleted, err := h.store.DeleteBookmark(c.UserContext(), id)
	if err != nil {
		if errors.Is(err, redis.ErrBookmarkNotFound) {
			return h.emptyRepresentation(c)
		}
		h.log.Error("deleting bookmark", logger.Error(err))
		return writeError(c, fiber.StatusInternalServerError, "unable to delete bookmark", "")
	}

	h.bus.PublishAndForget(context.Background(), policy.BookmarksTable, model.ChangeEvent{
		Event:  model.EventDelete,
		OldRow: deleted,
	})

	if c.Get(headerPrefer) == preferRepresentation {
		return c.JSON([]model.Bookmark{*deleted})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// emptyRepresentation is the response for a delete that matched nothing.
func (h *RestHandler) emptyRepresentation(c *fiber.Ctx) error {
	if c.Get(headerPrefer) == preferRepresentation {
		return c.JSON([]model.Bookmark{})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func authFromContext(c *fiber.Ctx) (policy.AuthContext, error) {
	userID, err := utils.GetUserIDFromContext(c.UserContext())
	if err != nil {
		return policy.AuthContext{}, err
	}
	email, _ := utils.GetUserEmailFromContext(c.UserContext())
	return policy.AuthContext{UserID: userID, Email: email}, nil
}

func matchesFilters(row model.Bookmark, filters map[string]string) bool {
	for col, want := range filters {
		switch col {
		case "id":
			if row.ID != want {
				return false
			}
		case "owner_id":
			if row.OwnerID != want {
				return false
			}
		}
	}
	return true
}

func sortBookmarks(rows []model.Bookmark, descending bool) {
	sort.SliceStable(rows, func(i, j int) bool {
		if descending {
			return rows[i].CreatedAt.After(rows[j].CreatedAt)
		}
		return rows[i].CreatedAt.Before(rows[j].CreatedAt)
	})
}

// projectRows applies the select projection. A nil column list returns the
// rows unchanged.
func projectRows(rows []model.Bookmark, columns []string) interface{} {
	if columns == nil {
		return rows
	}
	out := make([]fiber.Map, 0, len(rows))
	for _, row := range rows {
		entry := fiber.Map{}
		for _, col := range columns {
			switch col {
			case "id":
				entry["id"] = row.ID
			case "owner_id":
				entry["owner_id"] = row.OwnerID
			case "title":
				entry["title"] = row.Title
			case "url":
				entry["url"] = row.URL
			case "created_at":
				entry["created_at"] = row.CreatedAt
			}
		}
		out = append(out, entry)
	}
	return out
}

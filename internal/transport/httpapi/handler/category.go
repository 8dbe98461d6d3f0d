package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/kislikjeka/moneyledger/internal/platform/category"
	"github.com/kislikjeka/moneyledger/pkg/logger"
)

// CategoryServiceInterface defines the category operations needed by CategoryHandler
type CategoryServiceInterface interface {
	Create(ctx context.Context, userID uuid.UUID, req category.CreateRequest) (*category.Category, error)
	Update(ctx context.Context, userID, id uuid.UUID, req category.UpdateRequest) (*category.Category, error)
	Archive(ctx context.Context, userID, id uuid.UUID) error
	Get(ctx context.Context, userID, id uuid.UUID) (*category.Category, error)
	List(ctx context.Context, filter category.Filter) ([]*category.Category, error)
}

// CategoryHandler handles category HTTP requests
type CategoryHandler struct {
	categories CategoryServiceInterface
	logger     *logger.Logger
}

// NewCategoryHandler creates a new category handler
func NewCategoryHandler(categories CategoryServiceInterface, log *logger.Logger) *CategoryHandler {
	return &CategoryHandler{
		categories: categories,
		logger:     log.WithField("component", "http.categories"),
	}
}

// CreateCategoryRequest represents the category creation request
type CreateCategoryRequest struct {
	Name         string  `json:"name"`
	Type         string  `json:"type"`
	ParentID     *string `json:"parent_id,omitempty"`
	BudgetID     *string `json:"budget_id,omitempty"`
	IsReportable *bool   `json:"is_reportable,omitempty"`
}

// UpdateCategoryRequest carries optional changes. An empty parent_id or
// budget_id unlinks.
type UpdateCategoryRequest struct {
	Name         *string `json:"name,omitempty"`
	ParentID     *string `json:"parent_id,omitempty"`
	BudgetID     *string `json:"budget_id,omitempty"`
	IsReportable *bool   `json:"is_reportable,omitempty"`
}

// CategoryResponse represents a category in API responses
type CategoryResponse struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Type         string  `json:"type"`
	ParentID     *string `json:"parent_id,omitempty"`
	BudgetID     *string `json:"budget_id,omitempty"`
	IsArchived   bool    `json:"is_archived"`
	IsReportable bool    `json:"is_reportable"`
}

func toCategoryResponse(c *category.Category) CategoryResponse {
	return CategoryResponse{
		ID:           c.ID.String(),
		Name:         c.Name,
		Type:         string(c.Type),
		ParentID:     uuidString(c.ParentID),
		BudgetID:     uuidString(c.BudgetID),
		IsArchived:   c.IsArchived,
		IsReportable: c.IsReportable,
	}
}

// CreateCategory handles POST /categories
func (h *CategoryHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFrom(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req CreateCategoryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	in := category.CreateRequest{
		Name:         req.Name,
		Type:         category.Type(strings.ToUpper(strings.TrimSpace(req.Type))),
		IsReportable: true,
	}
	if req.IsReportable != nil {
		in.IsReportable = *req.IsReportable
	}
	if in.ParentID, err = parseUUIDPtr(req.ParentID, "parent_id"); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if in.BudgetID, err = parseUUIDPtr(req.BudgetID, "budget_id"); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	c, err := h.categories.Create(r.Context(), userID, in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	respondJSON(w, toCategoryResponse(c), http.StatusCreated)
}

// ListCategories handles GET /categories
func (h *CategoryHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFrom(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	filter := category.Filter{
		UserID:          userID,
		IncludeArchived: queryBool(r, "include_archived"),
	}
	if t := r.URL.Query().Get("type"); t != "" {
		ct := category.Type(strings.ToUpper(t))
		filter.Type = &ct
	}
	if b := r.URL.Query().Get("budget_id"); b != "" {
		if filter.BudgetID, err = parseUUIDPtr(&b, "budget_id"); err != nil {
			writeError(w, r, h.logger, err)
			return
		}
	}

	list, err := h.categories.List(r.Context(), filter)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	out := make([]CategoryResponse, 0, len(list))
	for _, c := range list {
		out = append(out, toCategoryResponse(c))
	}
	respondJSON(w, out, http.StatusOK)
}

// GetCategory handles GET /categories/{id}
func (h *CategoryHandler) GetCategory(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFrom(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	c, err := h.categories.Get(r.Context(), userID, id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	respondJSON(w, toCategoryResponse(c), http.StatusOK)
}

// UpdateCategory handles PATCH /categories/{id}
func (h *CategoryHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFrom(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req UpdateCategoryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	in := category.UpdateRequest{
		Name:         req.Name,
		IsReportable: req.IsReportable,
	}
	if req.ParentID != nil {
		if *req.ParentID == "" {
			in.ClearParent = true
		} else if in.ParentID, err = parseUUIDPtr(req.ParentID, "parent_id"); err != nil {
			writeError(w, r, h.logger, err)
			return
		}
	}
	if req.BudgetID != nil {
		if *req.BudgetID == "" {
			in.ClearBudget = true
		} else if in.BudgetID, err = parseUUIDPtr(req.BudgetID, "budget_id"); err != nil {
			writeError(w, r, h.logger, err)
			return
		}
	}

	c, err := h.categories.Update(r.Context(), userID, id, in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	respondJSON(w, toCategoryResponse(c), http.StatusOK)
}

// ArchiveCategory handles DELETE /categories/{id}. Categories are archived,
// never removed, so entries keep their classification.
func (h *CategoryHandler) ArchiveCategory(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFrom(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if err := h.categories.Archive(r.Context(), userID, id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

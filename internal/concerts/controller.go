package concerts

import (
	"context"
	"errors"
	"net/http"

	"mintix/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Controller struct {
	service Service
}

func NewController(service Service) *Controller {
	return &Controller{service: service}
}

// CreateConcert submits a concert for admin review.
func (c *Controller) CreateConcert(ctx *gin.Context) {
	userID, exists := ctx.Get("user_id")
	if !exists {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
		return
	}

	organizerID, err := uuid.Parse(userID.(string))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "Invalid user ID", nil, nil)
		return
	}

	var req CreateConcertRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	resp, err := c.service.CreateConcert(ctx.Request.Context(), organizerID, req)
	if err != nil {
		switch {
		case errors.Is(err, ErrConcertInPast), errors.Is(err, ErrDuplicateNames):
			response.RespondJSON(ctx, "error", http.StatusBadRequest, err.Error(), nil, nil)
		default:
			response.RespondJSON(ctx, "error", http.StatusInternalServerError, "Failed to create concert", nil, nil)
		}
		return
	}

	response.RespondJSON(ctx, "success", http.StatusCreated, "Concert submitted for review", resp, nil)
}

// ListConcerts returns approved concerts for public browsing.
func (c *Controller) ListConcerts(ctx *gin.Context) {
	var query ConcertListQuery
	if err := ctx.ShouldBindQuery(&query); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid query parameters", nil, err.Error())
		return
	}

	result, err := c.service.ListApproved(ctx.Request.Context(), query.Page, query.Limit)
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusInternalServerError, "Failed to fetch concerts", nil, nil)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Concerts retrieved successfully", result, nil)
}

func (c *Controller) GetConcert(ctx *gin.Context) {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid concert ID", nil, nil)
		return
	}

	resp, err := c.service.GetConcert(ctx.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrConcertNotFound) {
			response.RespondJSON(ctx, "error", http.StatusNotFound, "Concert not found", nil, nil)
			return
		}
		response.RespondJSON(ctx, "error", http.StatusInternalServerError, "Failed to fetch concert", nil, nil)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Concert retrieved successfully", resp, nil)
}

// ListForAdmin returns concerts in any status, filterable by status.
func (c *Controller) ListForAdmin(ctx *gin.Context) {
	var query ConcertListQuery
	if err := ctx.ShouldBindQuery(&query); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid query parameters", nil, err.Error())
		return
	}

	result, err := c.service.ListForAdmin(ctx.Request.Context(), query)
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusInternalServerError, "Failed to fetch concerts", nil, nil)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Concerts retrieved successfully", result, nil)
}

func (c *Controller) Approve(ctx *gin.Context) {
	c.reviewAction(ctx, c.service.Approve, "Concert approved")
}

func (c *Controller) Reject(ctx *gin.Context) {
	c.reviewAction(ctx, c.service.Reject, "Concert rejected")
}

func (c *Controller) RequestInfo(ctx *gin.Context) {
	c.reviewAction(ctx, c.service.RequestInfo, "Information requested from organizer")
}

func (c *Controller) Delete(ctx *gin.Context) {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid concert ID", nil, nil)
		return
	}

	if err := c.service.DeleteConcert(ctx.Request.Context(), id); err != nil {
		switch {
		case errors.Is(err, ErrConcertNotFound):
			response.RespondJSON(ctx, "error", http.StatusNotFound, "Concert not found", nil, nil)
		case errors.Is(err, ErrNotDeletable):
			response.RespondJSON(ctx, "error", http.StatusConflict, "Approved concerts cannot be deleted", nil, nil)
		default:
			response.RespondJSON(ctx, "error", http.StatusInternalServerError, "Failed to delete concert", nil, nil)
		}
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Concert deleted", nil, nil)
}

func (c *Controller) reviewAction(ctx *gin.Context, action func(ctx context.Context, id uuid.UUID, note string) (*ConcertResponse, error), message string) {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid concert ID", nil, nil)
		return
	}

	var req ReviewRequest
	if err := ctx.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	resp, err := action(ctx.Request.Context(), id, req.Note)
	if err != nil {
		switch {
		case errors.Is(err, ErrConcertNotFound):
			response.RespondJSON(ctx, "error", http.StatusNotFound, "Concert not found", nil, nil)
		case errors.Is(err, ErrNotReviewable):
			response.RespondJSON(ctx, "error", http.StatusConflict, "Concert has already been reviewed", nil, nil)
		default:
			response.RespondJSON(ctx, "error", http.StatusInternalServerError, "Failed to update concert", nil, nil)
		}
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, message, resp, nil)
}

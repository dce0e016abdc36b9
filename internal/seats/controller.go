package seats

import (
	"errors"
	"net/http"
	"time"

	"mintix/internal/locking"
	"mintix/internal/shared/middleware"
	"mintix/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
)

type Controller struct {
	coordinator *locking.Coordinator
}

func NewController(coordinator *locking.Coordinator) *Controller {
	return &Controller{coordinator: coordinator}
}

// Lock claims a seat for the caller's wallet. Contended seats answer 409
// with the conflict payload; the holder behind the lock is never revealed.
func (c *Controller) Lock(ctx *gin.Context) {
	wallet, ok := middleware.WalletFromContext(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "Wallet not authenticated", nil, nil)
		return
	}

	var req LockRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	op := locking.OperationSelecting
	if req.Operation != "" {
		op = locking.Operation(req.Operation)
	}

	seat := locking.SeatKey{
		ConcertID:   req.ConcertID,
		SectionName: req.SectionName,
		SeatNumber:  req.SeatNumber,
	}

	result, err := c.coordinator.Acquire(ctx.Request.Context(), seat, wallet, op)
	if err != nil {
		switch {
		case errors.Is(err, locking.ErrInvalidSeat), errors.Is(err, locking.ErrInvalidOperation):
			response.RespondJSON(ctx, "error", http.StatusBadRequest, err.Error(), nil, nil)
		case errors.Is(err, locking.ErrStoreUnavailable):
			response.RespondJSON(ctx, "error", http.StatusServiceUnavailable, "Lock service unavailable", nil, nil)
		default:
			response.RespondJSON(ctx, "error", http.StatusInternalServerError, "Failed to lock seat", nil, nil)
		}
		return
	}

	if !result.Success {
		ctx.JSON(http.StatusConflict, gin.H{
			"success":      false,
			"msg":          "Seat is not available",
			"conflict":     true,
			"reason":       result.Reason,
			"processingBy": result.ProcessingBy,
			"operation":    result.Operation,
		})
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Seat locked", gin.H{
		"seat":       seat,
		"operation":  result.Operation,
		"expires_at": result.ExpiresAt,
		"expires_in": int64(time.Until(result.ExpiresAt).Seconds()),
	}, nil)
}

// Unlock releases the caller's own lock. Releasing a seat you do not hold is
// a no-op that still answers 200; stale clients learn nothing from it.
func (c *Controller) Unlock(ctx *gin.Context) {
	wallet, ok := middleware.WalletFromContext(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "Wallet not authenticated", nil, nil)
		return
	}

	var req UnlockRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	seat := locking.SeatKey{
		ConcertID:   req.ConcertID,
		SectionName: req.SectionName,
		SeatNumber:  req.SeatNumber,
	}

	released := c.coordinator.Release(ctx.Request.Context(), seat, wallet, locking.FinalStateAvailable)
	response.RespondJSON(ctx, "success", http.StatusOK, "Seat unlocked", gin.H{
		"released": released,
	}, nil)
}

// Renew extends the caller's lock as a heartbeat.
func (c *Controller) Renew(ctx *gin.Context) {
	wallet, ok := middleware.WalletFromContext(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "Wallet not authenticated", nil, nil)
		return
	}

	var req RenewRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	seat := locking.SeatKey{
		ConcertID:   req.ConcertID,
		SectionName: req.SectionName,
		SeatNumber:  req.SeatNumber,
	}

	renewed := c.coordinator.Renew(ctx.Request.Context(), seat, wallet)
	if !renewed {
		response.RespondJSON(ctx, "error", http.StatusConflict, "Lock could not be renewed", nil, nil)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Lock renewed", nil, nil)
}

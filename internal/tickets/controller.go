package tickets

import (
	"errors"
	"net/http"

	"mintix/internal/concerts"
	"mintix/internal/shared/middleware"
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

// Mint mints a ticket for the authenticated wallet. Seat contention is
// answered with a 409 carrying the conflict payload the seat map relies on.
func (c *Controller) Mint(ctx *gin.Context) {
	wallet, ok := middleware.WalletFromContext(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "Wallet not authenticated", nil, nil)
		return
	}

	var req MintRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	resp, err := c.service.MintTicket(ctx.Request.Context(), wallet, req)
	if err != nil {
		c.respondMintError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusCreated, "Ticket minted successfully", resp, nil)
}

func (c *Controller) respondMintError(ctx *gin.Context, err error) {
	var conflict *SeatConflictError
	if errors.As(err, &conflict) {
		ctx.JSON(http.StatusConflict, gin.H{
			"success":      false,
			"msg":          "Seat is not available",
			"conflict":     true,
			"reason":       conflict.Reason,
			"processingBy": conflict.ProcessingBy,
			"operation":    conflict.Operation,
		})
		return
	}

	switch {
	case errors.Is(err, ErrSeatTaken):
		ctx.JSON(http.StatusConflict, gin.H{
			"success":  false,
			"msg":      "Seat is not available",
			"conflict": true,
			"reason":   "already_minted",
		})
	case errors.Is(err, concerts.ErrConcertNotFound), errors.Is(err, concerts.ErrSectionNotFound):
		response.RespondJSON(ctx, "error", http.StatusNotFound, "Concert or section not found", nil, nil)
	case errors.Is(err, ErrConcertNotApproved):
		response.RespondJSON(ctx, "error", http.StatusForbidden, "Concert is not open for minting", nil, nil)
	case errors.Is(err, ErrSeatOutOfRange):
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Seat number is outside the section", nil, nil)
	case errors.Is(err, ErrPaymentInvalid):
		response.RespondJSON(ctx, "error", http.StatusPaymentRequired, "Payment verification failed", nil, err.Error())
	default:
		response.RespondJSON(ctx, "error", http.StatusInternalServerError, "Failed to mint ticket", nil, nil)
	}
}

// MintedSeats returns sold seats for a concert; polled by the seat map.
func (c *Controller) MintedSeats(ctx *gin.Context) {
	concertID, err := uuid.Parse(ctx.Param("concertId"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid concert ID", nil, nil)
		return
	}

	resp, err := c.service.MintedSeats(ctx.Request.Context(), concertID)
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusInternalServerError, "Failed to fetch minted seats", nil, nil)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Minted seats retrieved successfully", resp, nil)
}

func (c *Controller) MyTickets(ctx *gin.Context) {
	wallet, ok := middleware.WalletFromContext(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "Wallet not authenticated", nil, nil)
		return
	}

	tickets, err := c.service.MyTickets(ctx.Request.Context(), wallet)
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusInternalServerError, "Failed to fetch tickets", nil, nil)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Tickets retrieved successfully", tickets, nil)
}

func (c *Controller) Get(ctx *gin.Context) {
	ticketID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid ticket ID", nil, nil)
		return
	}

	resp, err := c.service.GetTicket(ctx.Request.Context(), ticketID)
	if err != nil {
		if errors.Is(err, ErrTicketNotFound) {
			response.RespondJSON(ctx, "error", http.StatusNotFound, "Ticket not found", nil, nil)
			return
		}
		response.RespondJSON(ctx, "error", http.StatusInternalServerError, "Failed to fetch ticket", nil, nil)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Ticket retrieved successfully", resp, nil)
}

func (c *Controller) Verify(ctx *gin.Context) {
	ticketID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid ticket ID", nil, nil)
		return
	}

	resp, err := c.service.VerifyTicket(ctx.Request.Context(), ticketID)
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusInternalServerError, "Failed to verify ticket", nil, nil)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Ticket verification result", resp, nil)
}

func (c *Controller) List(ctx *gin.Context) {
	wallet, ok := middleware.WalletFromContext(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "Wallet not authenticated", nil, nil)
		return
	}

	ticketID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid ticket ID", nil, nil)
		return
	}

	var req ListTicketRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	resp, err := c.service.ListTicket(ctx.Request.Context(), wallet, ticketID, req.PriceLamports)
	if err != nil {
		c.respondMarketError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Ticket listed for sale", resp, nil)
}

func (c *Controller) Unlist(ctx *gin.Context) {
	wallet, ok := middleware.WalletFromContext(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "Wallet not authenticated", nil, nil)
		return
	}

	ticketID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid ticket ID", nil, nil)
		return
	}

	resp, err := c.service.UnlistTicket(ctx.Request.Context(), wallet, ticketID)
	if err != nil {
		c.respondMarketError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Ticket removed from sale", resp, nil)
}

func (c *Controller) Buy(ctx *gin.Context) {
	wallet, ok := middleware.WalletFromContext(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "Wallet not authenticated", nil, nil)
		return
	}

	ticketID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid ticket ID", nil, nil)
		return
	}

	var req BuyTicketRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	resp, err := c.service.BuyTicket(ctx.Request.Context(), wallet, ticketID, req.TxSignature)
	if err != nil {
		c.respondMarketError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Ticket purchased successfully", resp, nil)
}

func (c *Controller) respondMarketError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrTicketNotFound):
		response.RespondJSON(ctx, "error", http.StatusNotFound, "Ticket not found", nil, nil)
	case errors.Is(err, ErrNotOwner):
		response.RespondJSON(ctx, "error", http.StatusForbidden, "You do not own this ticket", nil, nil)
	case errors.Is(err, ErrAlreadyListed):
		response.RespondJSON(ctx, "error", http.StatusConflict, "Ticket is already listed", nil, nil)
	case errors.Is(err, ErrNotListed):
		response.RespondJSON(ctx, "error", http.StatusConflict, "Ticket is not listed for sale", nil, nil)
	case errors.Is(err, ErrBuyOwnTicket):
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Cannot buy your own ticket", nil, nil)
	case errors.Is(err, ErrPaymentInvalid):
		response.RespondJSON(ctx, "error", http.StatusPaymentRequired, "Payment verification failed", nil, err.Error())
	default:
		response.RespondJSON(ctx, "error", http.StatusInternalServerError, "Marketplace operation failed", nil, nil)
	}
}

func (c *Controller) Listings(ctx *gin.Context) {
	var query MarketQuery
	if err := ctx.ShouldBindQuery(&query); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid query parameters", nil, err.Error())
		return
	}

	result, err := c.service.MarketListings(ctx.Request.Context(), query)
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusInternalServerError, "Failed to fetch listings", nil, nil)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Listings retrieved successfully", result, nil)
}

func (c *Controller) Stats(ctx *gin.Context) {
	stats, err := c.service.MarketStats(ctx.Request.Context())
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusInternalServerError, "Failed to fetch marketplace stats", nil, nil)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Marketplace stats retrieved successfully", stats, nil)
}

package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/yigit/libris/internal/app/models/dto"
	"github.com/yigit/libris/internal/app/services"
	"github.com/yigit/libris/internal/middleware"
)

// BookRequestController drives the lending workflow
type BookRequestController struct {
	lendingService *services.LendingService
	logger         zerolog.Logger
}

// NewBookRequestController creates a new BookRequestController
func NewBookRequestController(lendingService *services.LendingService, logger zerolog.Logger) *BookRequestController {
	return &BookRequestController{lendingService: lendingService, logger: logger}
}

// List returns every request for staff and the caller's own requests for students
// @Summary List book requests
// @Tags book-requests
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=[]dto.BookRequestResponse}
// @Router /book-requests [get]
func (c *BookRequestController) List(ctx *gin.Context) {
	views, err := c.lendingService.ListRequests(ctx.Request.Context(), middleware.PrincipalFrom(ctx))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.NewBookRequestListResponse(views), ""))
}

// Create files one pending request per book
// @Summary Request books
// @Tags book-requests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CreateBookRequestsRequest true "Book ids"
// @Success 201 {object} dto.APIResponse{data=[]dto.BookRequestResponse}
// @Failure 409 {object} dto.ErrorResponse "A request for one of the books is already pending"
// @Router /book-requests [post]
func (c *BookRequestController) Create(ctx *gin.Context) {
	var req dto.CreateBookRequestsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		middleware.RespondBindingError(ctx, err)
		return
	}

	views, err := c.lendingService.CreateRequests(ctx.Request.Context(), middleware.PrincipalFrom(ctx), req.BookIDs)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, dto.NewSuccessResponse(dto.NewBookRequestListResponse(views), "Book requests created successfully"))
}

// Approve lends the book and sets the due date
// @Summary Approve a book request
// @Tags book-requests
// @Produce json
// @Security BearerAuth
// @Param id path int true "Request ID"
// @Success 200 {object} dto.APIResponse{data=dto.BookRequestResponse}
// @Failure 409 {object} dto.ErrorResponse "Already approved or no copies left"
// @Router /book-requests/{id}/approve [patch]
func (c *BookRequestController) Approve(ctx *gin.Context) {
	id, err := parseIDParam(ctx, "id")
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	view, err := c.lendingService.ApproveRequest(ctx.Request.Context(), middleware.PrincipalFrom(ctx), id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.NewBookRequestResponse(*view), "Book request approved"))
}

// Return hands a lent book back
// @Summary Return a book
// @Tags book-requests
// @Produce json
// @Security BearerAuth
// @Param id path int true "Request ID"
// @Success 200 {object} dto.APIResponse{data=dto.BookRequestResponse}
// @Failure 409 {object} dto.ErrorResponse "Not approved yet or already returned"
// @Router /book-requests/{id}/return [patch]
func (c *BookRequestController) Return(ctx *gin.Context) {
	id, err := parseIDParam(ctx, "id")
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	view, err := c.lendingService.ReturnRequest(ctx.Request.Context(), middleware.PrincipalFrom(ctx), id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.NewBookRequestResponse(*view), "Book returned successfully"))
}

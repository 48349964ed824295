package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/yigit/libris/internal/app/models/dto"
	"github.com/yigit/libris/internal/app/services"
	"github.com/yigit/libris/internal/middleware"
)

// CatalogController serves streams, authors and books
type CatalogController struct {
	catalogService *services.CatalogService
	logger         zerolog.Logger
}

// NewCatalogController creates a new CatalogController
func NewCatalogController(catalogService *services.CatalogService, logger zerolog.Logger) *CatalogController {
	return &CatalogController{catalogService: catalogService, logger: logger}
}

// ListStreams returns every stream
// @Summary List streams
// @Tags catalog
// @Produce json
// @Success 200 {object} dto.APIResponse{data=[]models.Stream}
// @Security BearerAuth
// @Router /streams [get]
func (c *CatalogController) ListStreams(ctx *gin.Context) {
	streams, err := c.catalogService.ListStreams(ctx.Request.Context())
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(streams, ""))
}

// CreateStream adds a stream
// @Summary Create stream
// @Tags catalog
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CreateStreamRequest true "Stream"
// @Success 201 {object} dto.APIResponse{data=models.Stream}
// @Failure 409 {object} dto.ErrorResponse "Stream already exists"
// @Router /streams [post]
func (c *CatalogController) CreateStream(ctx *gin.Context) {
	var req dto.CreateStreamRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		middleware.RespondBindingError(ctx, err)
		return
	}

	stream, err := c.catalogService.CreateStream(ctx.Request.Context(), middleware.PrincipalFrom(ctx), &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, dto.NewSuccessResponse(stream, "Stream created successfully"))
}

// ListAuthors returns every author
// @Summary List authors
// @Tags catalog
// @Produce json
// @Success 200 {object} dto.APIResponse{data=[]models.Author}
// @Security BearerAuth
// @Router /authors [get]
func (c *CatalogController) ListAuthors(ctx *gin.Context) {
	authors, err := c.catalogService.ListAuthors(ctx.Request.Context())
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(authors, ""))
}

// CreateAuthor adds an author
// @Summary Create author
// @Tags catalog
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CreateAuthorRequest true "Author"
// @Success 201 {object} dto.APIResponse{data=models.Author}
// @Router /authors [post]
func (c *CatalogController) CreateAuthor(ctx *gin.Context) {
	var req dto.CreateAuthorRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		middleware.RespondBindingError(ctx, err)
		return
	}

	author, err := c.catalogService.CreateAuthor(ctx.Request.Context(), middleware.PrincipalFrom(ctx), &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, dto.NewSuccessResponse(author, "Author created successfully"))
}

// ListBooks searches the catalog
// @Summary List books
// @Description Case-insensitive search over title and author name, optionally restricted to a stream id ("all" for every stream)
// @Tags catalog
// @Produce json
// @Param search query string false "Title or author substring"
// @Param stream query string false "Stream id or all"
// @Success 200 {object} dto.APIResponse{data=[]dto.BookResponse}
// @Security BearerAuth
// @Router /books [get]
func (c *CatalogController) ListBooks(ctx *gin.Context) {
	var req dto.BookFilterRequest
	if err := ctx.ShouldBindQuery(&req); err != nil {
		middleware.RespondBindingError(ctx, err)
		return
	}

	books, err := c.catalogService.ListBooks(ctx.Request.Context(), &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.NewBookListResponse(books), ""))
}

// GetBook returns one book
// @Summary Get book
// @Tags catalog
// @Produce json
// @Param id path int true "Book ID"
// @Success 200 {object} dto.APIResponse{data=dto.BookResponse}
// @Failure 404 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /books/{id} [get]
func (c *CatalogController) GetBook(ctx *gin.Context) {
	id, err := parseIDParam(ctx, "id")
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	book, err := c.catalogService.GetBook(ctx.Request.Context(), id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.NewBookResponse(book), ""))
}

// CreateBook adds a catalog entry
// @Summary Create book
// @Tags catalog
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CreateBookRequest true "Book"
// @Success 201 {object} dto.APIResponse{data=dto.BookResponse}
// @Failure 409 {object} dto.ErrorResponse "Duplicate title, author and stream"
// @Router /books [post]
func (c *CatalogController) CreateBook(ctx *gin.Context) {
	var req dto.CreateBookRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		middleware.RespondBindingError(ctx, err)
		return
	}

	book, err := c.catalogService.CreateBook(ctx.Request.Context(), middleware.PrincipalFrom(ctx), &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, dto.NewSuccessResponse(dto.NewBookResponse(book), "Book created successfully"))
}

// UpdateBook applies a partial update
// @Summary Update book
// @Tags catalog
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Book ID"
// @Param request body dto.UpdateBookRequest true "Changed fields"
// @Success 200 {object} dto.APIResponse{data=dto.BookResponse}
// @Router /books/{id} [patch]
func (c *CatalogController) UpdateBook(ctx *gin.Context) {
	id, err := parseIDParam(ctx, "id")
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	var req dto.UpdateBookRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		middleware.RespondBindingError(ctx, err)
		return
	}

	book, err := c.catalogService.UpdateBook(ctx.Request.Context(), middleware.PrincipalFrom(ctx), id, &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.NewBookResponse(book), "Book updated successfully"))
}

// DeleteBook removes a book
// @Summary Delete book
// @Tags catalog
// @Security BearerAuth
// @Param id path int true "Book ID"
// @Success 204
// @Router /books/{id} [delete]
func (c *CatalogController) DeleteBook(ctx *gin.Context) {
	id, err := parseIDParam(ctx, "id")
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	if err := c.catalogService.DeleteBook(ctx.Request.Context(), middleware.PrincipalFrom(ctx), id); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

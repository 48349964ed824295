package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/yigit/libris/internal/app/controllers"
	"github.com/yigit/libris/internal/metrics"
	"github.com/yigit/libris/internal/middleware"
)

// Controllers groups the handlers mounted by SetupRouter
type Controllers struct {
	Auth        *controllers.AuthController
	Catalog     *controllers.CatalogController
	BookRequest *controllers.BookRequestController
	Student     *controllers.StudentController
	Health      *controllers.HealthController
}

// SetupRouter configures all application routes.
// Role checks happen in the services, so groups only separate public from authenticated routes.
func SetupRouter(router *gin.Engine, c Controllers, authMiddleware *middleware.AuthMiddleware) {
	router.GET("/health", c.Health.Health)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// API version group
	v1 := router.Group("/api/v1")

	// --- Public routes ---
	auth := v1.Group("/auth")
	{
		auth.POST("/register", c.Auth.Register)
		auth.POST("/login", c.Auth.Login)
		auth.POST("/refresh", c.Auth.RefreshToken)
	}

	// --- Authenticated routes ---
	authenticated := v1.Group("")
	authenticated.Use(authMiddleware.JWTAuth())

	authenticated.PATCH("/auth/change-password", c.Auth.ChangePassword)

	// Catalog; mutations are staff only
	authenticated.GET("/streams", c.Catalog.ListStreams)
	authenticated.GET("/authors", c.Catalog.ListAuthors)
	authenticated.GET("/books", c.Catalog.ListBooks)
	authenticated.GET("/books/:id", c.Catalog.GetBook)
	authenticated.POST("/streams", c.Catalog.CreateStream)
	authenticated.POST("/authors", c.Catalog.CreateAuthor)
	authenticated.POST("/books", c.Catalog.CreateBook)
	authenticated.PATCH("/books/:id", c.Catalog.UpdateBook)
	authenticated.DELETE("/books/:id", c.Catalog.DeleteBook)

	// Lending workflow
	bookRequests := authenticated.Group("/book-requests")
	{
		bookRequests.GET("", c.BookRequest.List)
		bookRequests.POST("", c.BookRequest.Create)
		bookRequests.PATCH("/:id/approve", c.BookRequest.Approve)
		bookRequests.PATCH("/:id/return", c.BookRequest.Return)
	}

	// Own profile
	student := authenticated.Group("/student")
	{
		student.GET("/profile", c.Student.GetProfile)
		student.PATCH("/profile", c.Student.UpdateProfile)
	}

	// Student administration (staff)
	admin := authenticated.Group("/admin")
	{
		admin.GET("/students", c.Student.ListStudents)
		admin.PATCH("/students/:rollno", c.Student.UpdateStudent)
		admin.DELETE("/students/:rollno", c.Student.DeleteStudent)
		admin.PATCH("/students/:rollno/approve", c.Student.ApproveStudent)
		admin.PATCH("/students/:rollno/deactivate", c.Student.DeactivateStudent)
		admin.PATCH("/users/:id/approve", c.Student.ApproveUser)
	}
}

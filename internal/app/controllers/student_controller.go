package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/yigit/libris/internal/app/models/dto"
	"github.com/yigit/libris/internal/app/services"
	"github.com/yigit/libris/internal/middleware"
)

// StudentController serves student profiles and their administration
type StudentController struct {
	studentService *services.StudentService
	logger         zerolog.Logger
}

// NewStudentController creates a new StudentController
func NewStudentController(studentService *services.StudentService, logger zerolog.Logger) *StudentController {
	return &StudentController{studentService: studentService, logger: logger}
}

// GetProfile returns the caller's profile
// @Summary Get own profile
// @Tags students
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.StudentResponse}
// @Router /student/profile [get]
func (c *StudentController) GetProfile(ctx *gin.Context) {
	profile, err := c.studentService.GetOwnProfile(ctx.Request.Context(), middleware.PrincipalFrom(ctx))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.NewStudentResponse(profile), ""))
}

// UpdateProfile edits the caller's profile
// @Summary Update own profile
// @Tags students
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.UpdateProfileRequest true "Changed fields"
// @Success 200 {object} dto.APIResponse{data=dto.StudentResponse}
// @Router /student/profile [patch]
func (c *StudentController) UpdateProfile(ctx *gin.Context) {
	var req dto.UpdateProfileRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		middleware.RespondBindingError(ctx, err)
		return
	}

	profile, err := c.studentService.UpdateOwnProfile(ctx.Request.Context(), middleware.PrincipalFrom(ctx), &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.NewStudentResponse(profile), "Profile updated successfully"))
}

// ListStudents returns every student
// @Summary List students
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=[]dto.StudentResponse}
// @Router /admin/students [get]
func (c *StudentController) ListStudents(ctx *gin.Context) {
	profiles, err := c.studentService.ListStudents(ctx.Request.Context(), middleware.PrincipalFrom(ctx))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.NewStudentListResponse(profiles), ""))
}

// ApproveStudent approves a profile and activates its account
// @Summary Approve student
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param rollno path string true "Roll number"
// @Success 200 {object} dto.APIResponse{data=dto.StudentResponse}
// @Failure 409 {object} dto.ErrorResponse "Already approved"
// @Router /admin/students/{rollno}/approve [patch]
func (c *StudentController) ApproveStudent(ctx *gin.Context) {
	profile, err := c.studentService.ApproveStudent(ctx.Request.Context(), middleware.PrincipalFrom(ctx), ctx.Param("rollno"))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.NewStudentResponse(profile), "Student approved"))
}

// DeactivateStudent revokes approval and disables the account
// @Summary Deactivate student
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param rollno path string true "Roll number"
// @Success 200 {object} dto.APIResponse{data=dto.StudentResponse}
// @Router /admin/students/{rollno}/deactivate [patch]
func (c *StudentController) DeactivateStudent(ctx *gin.Context) {
	profile, err := c.studentService.DeactivateStudent(ctx.Request.Context(), middleware.PrincipalFrom(ctx), ctx.Param("rollno"))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.NewStudentResponse(profile), "Student deactivated"))
}

// UpdateStudent edits any profile
// @Summary Update student
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param rollno path string true "Roll number"
// @Param request body dto.UpdateProfileRequest true "Changed fields"
// @Success 200 {object} dto.APIResponse{data=dto.StudentResponse}
// @Router /admin/students/{rollno} [patch]
func (c *StudentController) UpdateStudent(ctx *gin.Context) {
	var req dto.UpdateProfileRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		middleware.RespondBindingError(ctx, err)
		return
	}

	profile, err := c.studentService.UpdateStudent(ctx.Request.Context(), middleware.PrincipalFrom(ctx), ctx.Param("rollno"), &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.NewStudentResponse(profile), "Student updated successfully"))
}

// DeleteStudent removes a student with their requests and account
// @Summary Delete student
// @Tags admin
// @Security BearerAuth
// @Param rollno path string true "Roll number"
// @Success 204
// @Failure 409 {object} dto.ErrorResponse "Student still holds books"
// @Router /admin/students/{rollno} [delete]
func (c *StudentController) DeleteStudent(ctx *gin.Context) {
	if err := c.studentService.DeleteAccount(ctx.Request.Context(), middleware.PrincipalFrom(ctx), ctx.Param("rollno")); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

// ApproveUser activates an account by user id
// @Summary Activate user
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} dto.APIResponse{data=dto.UserResponse}
// @Router /admin/users/{id}/approve [patch]
func (c *StudentController) ApproveUser(ctx *gin.Context) {
	id, err := parseIDParam(ctx, "id")
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	user, err := c.studentService.ApproveUser(ctx.Request.Context(), middleware.PrincipalFrom(ctx), id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.NewUserResponse(user), "User activated"))
}

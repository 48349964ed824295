package dto

import "github.com/yigit/libris/internal/app/models"

// UpdateProfileRequest is a partial profile update; omitted fields are left unchanged.
// StreamID 0 clears the stream.
type UpdateProfileRequest struct {
	FirstName *string `json:"firstName" binding:"omitempty,max=150"`
	LastName  *string `json:"lastName" binding:"omitempty,max=150"`
	Email     *string `json:"email" binding:"omitempty,email,max=254"`
	StreamID  *int64  `json:"streamId" binding:"omitempty,min=0"`
}

// StudentResponse is a profile together with its account
type StudentResponse struct {
	RollNo     string        `json:"rollno"`
	IsApproved bool          `json:"isApproved"`
	StreamID   *int64        `json:"streamId,omitempty"`
	StreamName *string       `json:"streamName,omitempty"`
	User       *UserResponse `json:"user"`
}

// NewStudentResponse converts a profile model
func NewStudentResponse(p *models.Profile) *StudentResponse {
	if p == nil {
		return nil
	}
	return &StudentResponse{
		RollNo:     p.ID,
		IsApproved: p.IsApproved,
		StreamID:   p.StreamID,
		StreamName: p.StreamName,
		User:       NewUserResponse(p.User),
	}
}

// NewStudentListResponse converts a profile listing
func NewStudentListResponse(profiles []*models.Profile) []*StudentResponse {
	out := make([]*StudentResponse, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, NewStudentResponse(p))
	}
	return out
}

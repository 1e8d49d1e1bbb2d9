package dto

import "github.com/spec-kit/workforce-auth/internal/domain"

// UpdateStatusRequest payload for PATCH /users/:user_id/status.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active inactive fired"`
}

// UserResponse is the public view of a user.
type UserResponse struct {
	ID          string            `json:"id"`
	Email       string            `json:"email"`
	DisplayName string            `json:"display_name"`
	Status      domain.UserStatus `json:"status"`
	Position    domain.Position   `json:"position"`
	TeamID      *int64            `json:"team_id,omitempty"`
}

// NewUserResponse maps a snapshot to its response shape.
func NewUserResponse(s *domain.IdentitySnapshot) UserResponse {
	return UserResponse{
		ID:          s.ID,
		Email:       s.Email,
		DisplayName: s.DisplayName,
		Status:      s.Status,
		Position:    s.Position,
		TeamID:      s.TeamID,
	}
}

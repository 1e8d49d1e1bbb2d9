package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/workforce-auth/internal/api/dto"
	"github.com/spec-kit/workforce-auth/internal/auth"
	"github.com/spec-kit/workforce-auth/internal/domain"
	"github.com/spec-kit/workforce-auth/internal/service"
	apperrors "github.com/spec-kit/workforce-auth/pkg/util"
)

// UserIDParam is the route parameter naming the target user.
const UserIDParam = "user_id"

// UsersHandler serves user reads and status changes behind the access guard.
type UsersHandler struct {
	users *service.UserService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(users *service.UserService) *UsersHandler {
	return &UsersHandler{users: users}
}

// Me handles GET /users/me.
func (h *UsersHandler) Me(c *fiber.Ctx, principal *auth.Principal) error {
	if principal.Identity == nil {
		return apperrors.NewUnauthorized("user required")
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponse(principal.Identity)})
}

// Get handles GET /users/:user_id.
func (h *UsersHandler) Get(c *fiber.Ctx, _ *auth.Principal) error {
	user, err := h.users.GetUser(c.UserContext(), c.Params(UserIDParam))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponse(user)})
}

// UpdateStatus handles PATCH /users/:user_id/status.
func (h *UsersHandler) UpdateStatus(c *fiber.Ctx, principal *auth.Principal) error {
	var req dto.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(req); err != nil {
		return err
	}

	updated, err := h.users.ChangeStatus(c.UserContext(), principal, c.Params(UserIDParam), domain.UserStatus(req.Status))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponse(updated)})
}

package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/workforce-auth/internal/api/dto"
	"github.com/spec-kit/workforce-auth/internal/auth"
	"github.com/spec-kit/workforce-auth/internal/service"
	apperrors "github.com/spec-kit/workforce-auth/pkg/util"
)

// TokenHandler exposes the token issuance endpoints.
type TokenHandler struct {
	auth *service.AuthService
}

// NewTokenHandler constructs handler.
func NewTokenHandler(authService *service.AuthService) *TokenHandler {
	return &TokenHandler{auth: authService}
}

// IssueUserToken handles POST /token_user.
func (h *TokenHandler) IssueUserToken(c *fiber.Ctx) error {
	var req dto.UserLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(req); err != nil {
		return err
	}

	issued, err := h.auth.LoginUser(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewBearerToken(issued.AccessToken, issued.ExpiresAt))
}

// IssueServiceToken handles POST /token_service.
func (h *TokenHandler) IssueServiceToken(c *fiber.Ctx) error {
	issued, err := h.auth.IssueServiceToken(c.Get(auth.ServiceSecretHeader))
	if err != nil {
		return err
	}
	return c.JSON(dto.NewBearerToken(issued.AccessToken, issued.ExpiresAt))
}

package servicetoken

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/workforce-auth/internal/auth"
	"github.com/spec-kit/workforce-auth/internal/domain"
)

// Issuer obtains a fresh service token.
type Issuer interface {
	Issue(ctx context.Context) (string, error)
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// HTTPIssuer exchanges the shared service secret for a token at the auth
// service's token_service endpoint.
type HTTPIssuer struct {
	url     string
	secret  string
	timeout time.Duration
}

// NewHTTPIssuer targets <authURL><apiPrefix>/token_service.
func NewHTTPIssuer(authURL, apiPrefix, secret string, timeout time.Duration) *HTTPIssuer {
	return &HTTPIssuer{
		url:     strings.TrimRight(authURL, "/") + apiPrefix + "/token_service",
		secret:  secret,
		timeout: timeout,
	}
}

// Issue posts the shared secret and returns the access token from the reply.
// The fiber Agent cannot be interrupted mid-flight, so the request is bounded
// by the issuer timeout; a reply that arrives after ctx is done is discarded.
func (h *HTTPIssuer) Issue(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	agent := fiber.Post(h.url).Set(auth.ServiceSecretHeader, h.secret)
	if h.timeout > 0 {
		agent.Timeout(h.timeout)
	}

	var resp tokenResponse
	code, body, errs := agent.Struct(&resp)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if code != http.StatusOK {
		if len(errs) > 0 {
			return "", fmt.Errorf("token_service request: %w", errors.Join(errs...))
		}
		return "", fmt.Errorf("token_service returned %d: %s", code, strings.TrimSpace(string(body)))
	}
	if len(errs) > 0 {
		return "", fmt.Errorf("decode token_service response: %w", errors.Join(errs...))
	}
	if resp.AccessToken == "" {
		return "", errors.New("token_service returned an empty token")
	}
	return resp.AccessToken, nil
}

// LocalIssuer mints service tokens in-process. The auth service itself uses
// it since it holds the service signing secret.
type LocalIssuer struct {
	codec  *auth.TokenCodec
	secret string
}

// NewLocalIssuer builds an issuer signing tokens whose subject is secret.
func NewLocalIssuer(codec *auth.TokenCodec, secret string) *LocalIssuer {
	return &LocalIssuer{codec: codec, secret: secret}
}

func (l *LocalIssuer) Issue(_ context.Context) (string, error) {
	token, _, err := l.codec.Issue(domain.TokenKindService, l.secret, 0)
	return token, err
}

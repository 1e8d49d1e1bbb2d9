package auth

import (
	"net/http"

	apperrors "github.com/spec-kit/workforce-auth/pkg/util"
)

// Authentication and authorization outcomes. Each is a policy decision and maps
// to a 401 or 403; infrastructure failures are reported with
// apperrors.NewDependencyError instead.
var (
	ErrNoCredential             = apperrors.NewDomainError("NO_CREDENTIAL", "no credential presented", http.StatusUnauthorized, nil)
	ErrMalformedHeader          = apperrors.NewDomainError("MALFORMED_HEADER", "malformed authorization header", http.StatusUnauthorized, nil)
	ErrMalformedToken           = apperrors.NewDomainError("MALFORMED_TOKEN", "malformed token", http.StatusUnauthorized, nil)
	ErrInvalidSignature         = apperrors.NewDomainError("INVALID_SIGNATURE", "invalid token signature", http.StatusUnauthorized, nil)
	ErrMissingExpiry            = apperrors.NewDomainError("MISSING_EXPIRY", "token has no expiry", http.StatusUnauthorized, nil)
	ErrExpired                  = apperrors.NewDomainError("TOKEN_EXPIRED", "token expired", http.StatusUnauthorized, nil)
	ErrSubjectNotFound          = apperrors.NewDomainError("SUBJECT_NOT_FOUND", "user not found", http.StatusUnauthorized, nil)
	ErrInsufficientRole         = apperrors.NewDomainError("INSUFFICIENT_ROLE", "you have no access", http.StatusForbidden, nil)
	ErrInvalidServiceCredential = apperrors.NewDomainError("INVALID_SERVICE_CREDENTIAL", "invalid service credential", http.StatusForbidden, nil)
)

// Package auth resolves the identity of incoming requests: the owner whose
// applications a caller may see, and whether the caller holds the reviewer
// role that gates decisions.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/JaimeStill/relief/pkg/handlers"
)

var (
	// ErrInvalidToken is returned for missing, malformed or unverifiable bearer tokens.
	ErrInvalidToken = errors.New("invalid bearer token")
	// ErrUnauthenticated is returned when an operation needs an identity and the request has none.
	ErrUnauthenticated = errors.New("identity required")
	// ErrForbidden is returned when the caller lacks the reviewer role.
	ErrForbidden = errors.New("reviewer role required")
)

// Identity is the resolved caller.
type Identity struct {
	Owner    string
	Reviewer bool
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// WithOwner returns a copy of ctx carrying an applicant identity.
func WithOwner(ctx context.Context, owner string) context.Context {
	return WithIdentity(ctx, Identity{Owner: owner})
}

// FromContext returns the identity stored on ctx; the zero Identity is anonymous.
func FromContext(ctx context.Context) Identity {
	id, _ := ctx.Value(identityKey{}).(Identity)
	return id
}

// Owner returns the owner identity stored on ctx, or "" when anonymous.
func Owner(ctx context.Context) string {
	return FromContext(ctx).Owner
}

// IsReviewer reports whether the caller holds the reviewer role.
func IsReviewer(ctx context.Context) bool {
	return FromContext(ctx).Reviewer
}

// ReadScope returns the owner filter for reads of application data.
// Reviewers read every application and get ""; applicants get their own
// owner id; anonymous callers get ErrUnauthenticated.
func ReadScope(ctx context.Context) (string, error) {
	id := FromContext(ctx)
	switch {
	case id.Reviewer:
		return "", nil
	case id.Owner == "":
		return "", ErrUnauthenticated
	}
	return id.Owner, nil
}

// RequireReviewer wraps next so that only reviewers reach it.
func RequireReviewer(logger *slog.Logger, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := FromContext(r.Context())
		switch {
		case id.Owner == "":
			handlers.RespondError(w, logger, http.StatusUnauthorized, ErrUnauthenticated)
		case !id.Reviewer:
			handlers.RespondError(w, logger, http.StatusForbidden, ErrForbidden)
		default:
			next(w, r)
		}
	}
}

// TokenVerifier verifies a raw bearer token and returns the caller.
type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (Identity, error)
}

type oidcVerifier struct {
	verifier      *oidc.IDTokenVerifier
	ownerClaim    string
	reviewerClaim string
	reviewerRole  string
}

// NewOIDCVerifier discovers the issuer and returns a verifier that reads the
// owner from the configured claim and the reviewer role from the role claim.
func NewOIDCVerifier(ctx context.Context, cfg *Config) (TokenVerifier, error) {
	provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("discover issuer: %w", err)
	}
	return &oidcVerifier{
		verifier:      provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		ownerClaim:    cfg.OwnerClaim,
		reviewerClaim: cfg.ReviewerClaim,
		reviewerRole:  cfg.ReviewerRole,
	}, nil
}

func (v *oidcVerifier) Verify(ctx context.Context, raw string) (Identity, error) {
	token, err := v.verifier.Verify(ctx, raw)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	var claims map[string]any
	if err := token.Claims(&claims); err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return IdentityFromClaims(claims, token.Subject, v.ownerClaim, v.reviewerClaim, v.reviewerRole)
}

// IdentityFromClaims reads an identity out of verified token claims. The
// role claim may be a single string (space or comma separated) or a list.
func IdentityFromClaims(claims map[string]any, subject, ownerClaim, roleClaim, role string) (Identity, error) {
	owner := subject
	if ownerClaim != "" && ownerClaim != "sub" {
		owner, _ = claims[ownerClaim].(string)
	}
	if owner == "" {
		return Identity{}, fmt.Errorf("%w: claim %q missing", ErrInvalidToken, ownerClaim)
	}

	var roles []string
	switch v := claims[roleClaim].(type) {
	case string:
		roles = strings.FieldsFunc(v, func(r rune) bool { return r == ' ' || r == ',' })
	case []any:
		for _, r := range v {
			if s, ok := r.(string); ok {
				roles = append(roles, s)
			}
		}
	}

	return Identity{
		Owner:    owner,
		Reviewer: role != "" && slices.Contains(roles, role),
	}, nil
}

// Middleware attaches the caller identity to each request context.
//
// With a verifier, a bearer token is required and rejected tokens answer
// 401. A nil verifier reads the owner from cfg.OwnerHeader and grants the
// reviewer role to owners listed in cfg.Reviewers.
func Middleware(verifier TokenVerifier, cfg *Config, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if verifier == nil {
				owner := strings.TrimSpace(r.Header.Get(cfg.OwnerHeader))
				if owner != "" {
					id := Identity{Owner: owner, Reviewer: slices.Contains(cfg.Reviewers, owner)}
					r = r.WithContext(WithIdentity(r.Context(), id))
				}
				next.ServeHTTP(w, r)
				return
			}

			raw, ok := bearer(r)
			if !ok {
				handlers.RespondError(w, logger, http.StatusUnauthorized, ErrInvalidToken)
				return
			}

			id, err := verifier.Verify(r.Context(), raw)
			if err != nil {
				logger.Debug("token rejected", "error", err)
				handlers.RespondError(w, logger, http.StatusUnauthorized, ErrInvalidToken)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

func bearer(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

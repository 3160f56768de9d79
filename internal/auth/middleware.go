package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type ctxKey string

const principalKey ctxKey = "auth_principal"

// Error codes written by the middleware.
const (
	CodeMissingAuth  = "missing_auth"
	CodeInvalidToken = "invalid_token"
)

var tracer = otel.Tracer("github.com/WailSalutem-Health-Care/reminder-service/auth")

// MetricsRecorder records authentication failures by reason.
type MetricsRecorder interface {
	RecordAuthFailure(ctx context.Context, reason string)
}

// Middleware validates the bearer token and injects the Principal into the
// request context. Failures are answered with a JSON error body.
func Middleware(ver TokenVerifier, logger zerolog.Logger, metrics MetricsRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := tracer.Start(r.Context(), "auth.Middleware",
				trace.WithSpanKind(trace.SpanKindInternal),
			)
			defer span.End()

			tok, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				span.SetStatus(codes.Error, "missing bearer token")
				span.SetAttributes(attribute.String("error.type", CodeMissingAuth))
				if metrics != nil {
					metrics.RecordAuthFailure(ctx, CodeMissingAuth)
				}
				writeError(w, http.StatusUnauthorized, CodeMissingAuth, "missing bearer token")
				return
			}

			pr, err := ver.ParseAndVerifyToken(tok)
			if err != nil {
				logger.Warn().Err(err).Str("path", r.URL.Path).Msg("token validation failed")
				span.SetStatus(codes.Error, "token validation failed")
				span.SetAttributes(
					attribute.String("error.type", CodeInvalidToken),
					attribute.String("error.message", err.Error()),
				)
				if metrics != nil {
					metrics.RecordAuthFailure(ctx, CodeInvalidToken)
				}
				writeError(w, http.StatusUnauthorized, CodeInvalidToken, err.Error())
				return
			}

			span.SetAttributes(attribute.String("user.id", pr.UserID))
			span.SetStatus(codes.Ok, "authentication successful")

			next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(ctx, pr)))
		})
	}
}

func bearerToken(header string) (string, bool) {
	scheme, tok, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	tok = strings.TrimSpace(tok)
	return tok, tok != ""
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error":   code,
		"message": message,
	})
}

// FromContext extracts Principal from context.
func FromContext(ctx context.Context) (*Principal, bool) {
	pr, ok := ctx.Value(principalKey).(*Principal)
	return pr, ok
}

// ContextWithPrincipal stores a principal in ctx.
func ContextWithPrincipal(ctx context.Context, principal *Principal) context.Context {
	return context.WithValue(ctx, principalKey, principal)
}

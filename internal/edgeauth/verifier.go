package edgeauth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/argus-vms/argus-cloud/internal/authz"
	"github.com/argus-vms/argus-cloud/internal/shared"
)

// Headers carrying the device authentication material.
const (
	HeaderEdgeKey       = "X-EDGE-KEY"
	HeaderEdgeTimestamp = "X-EDGE-TIMESTAMP"
	HeaderEdgeSignature = "X-EDGE-SIGNATURE"
)

// ReplayWindowSeconds bounds how old (or how far in the future) a
// signed request may be. Devices and server are assumed to keep roughly
// synchronized clocks. Fixed by the protocol, deliberately not
// configurable.
const ReplayWindowSeconds = 300

// Machine codes returned on verification failure.
const (
	CodeAuthenticationRequired = "authentication_required"
	CodeInvalidCredentials     = "invalid_credentials"
	CodeConfigurationError     = "configuration_error"
	CodeTimestampInvalid       = "timestamp_invalid"
	CodeInvalidSignature       = "invalid_signature"
)

// VerifyError carries the HTTP surface of a failed verification.
type VerifyError struct {
	Status  int
	Code    string
	Message string
}

func (e *VerifyError) Error() string {
	return e.Code + ": " + e.Message
}

// Request is the subset of an HTTP request covered by the signature.
type Request struct {
	Method    string
	Path      string
	Key       string
	Timestamp string
	Signature string
	Body      []byte
}

// Verifier authenticates edge devices per request. Verification is
// stateless: no session is created and every request stands alone.
type Verifier struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// NewVerifier constructs a Verifier.
func NewVerifier(store Store, logger *slog.Logger) *Verifier {
	return &Verifier{store: store, logger: logger, now: time.Now}
}

// Verify runs the challenge-response protocol against one request and,
// on success, returns the device principal for the rest of the request.
func (v *Verifier) Verify(ctx context.Context, req Request) (authz.DevicePrincipal, *VerifyError) {
	var none authz.DevicePrincipal

	if req.Key == "" || req.Timestamp == "" || req.Signature == "" {
		v.warn("edge verification failed: missing headers",
			slog.Bool("has_key", req.Key != ""),
			slog.Bool("has_timestamp", req.Timestamp != ""),
			slog.Bool("has_signature", req.Signature != ""),
			slog.String("path", req.Path))
		return none, &VerifyError{
			Status:  http.StatusUnauthorized,
			Code:    CodeAuthenticationRequired,
			Message: "Missing required authentication headers (X-EDGE-KEY, X-EDGE-TIMESTAMP, X-EDGE-SIGNATURE)",
		}
	}

	device, err := v.store.FindByKey(ctx, req.Key)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			v.warn("edge verification failed: unknown edge key", slog.String("edge_key", req.Key))
			return none, &VerifyError{
				Status:  http.StatusUnauthorized,
				Code:    CodeInvalidCredentials,
				Message: "Invalid edge server key",
			}
		}
		v.warn("edge verification failed: store error", slog.Any("error", err))
		return none, &VerifyError{
			Status:  http.StatusInternalServerError,
			Code:    CodeConfigurationError,
			Message: "Edge server lookup failed",
		}
	}

	// A device without a provisioned secret is an operator
	// misconfiguration, not an attack.
	if device.EdgeSecret == "" {
		if v.logger != nil {
			v.logger.Error("edge verification failed: device has no secret",
				slog.String("edge_key", req.Key),
				slog.Int64("edge_server_id", device.ID))
		}
		return none, &VerifyError{
			Status:  http.StatusInternalServerError,
			Code:    CodeConfigurationError,
			Message: "Edge server not properly configured",
		}
	}

	requestTime, parseErr := strconv.ParseInt(req.Timestamp, 10, 64)
	now := v.now().Unix()
	diff := now - requestTime
	if diff < 0 {
		diff = -diff
	}
	if parseErr != nil || diff > ReplayWindowSeconds {
		v.warn("edge verification failed: timestamp out of range",
			slog.String("edge_key", req.Key),
			slog.Int64("request_time", requestTime),
			slog.Int64("current_time", now))
		return none, &VerifyError{
			Status:  http.StatusUnauthorized,
			Code:    CodeTimestampInvalid,
			Message: "Request timestamp is too old or too far in the future",
		}
	}

	expected := Sign(device.EdgeSecret, CanonicalString(req.Method, req.Path, req.Timestamp, req.Body))

	// Constant-time comparison; never short-circuit on the first
	// differing byte.
	if !hmac.Equal([]byte(expected), []byte(req.Signature)) {
		v.warn("edge verification failed: signature mismatch",
			slog.String("edge_key", req.Key),
			slog.Int64("edge_server_id", device.ID))
		return none, &VerifyError{
			Status:  http.StatusUnauthorized,
			Code:    CodeInvalidSignature,
			Message: "Invalid signature",
		}
	}

	return authz.DevicePrincipal{
		OrganizationID: device.OrganizationID,
		EdgeServerID:   device.ID,
		EdgeKey:        device.EdgeKey,
	}, nil
}

// CanonicalString builds the exact byte sequence covered by the
// signature: METHOD|PATH|TIMESTAMP|SHA256(BODY). The method is
// uppercased, the path carries no leading slash and no query string,
// and the body digest is lowercase hex (the empty body hashes to
// SHA256 of the empty string).
func CanonicalString(method, path, timestamp string, body []byte) string {
	digest := sha256.Sum256(body)
	return strings.ToUpper(method) + "|" +
		canonicalPath(path) + "|" +
		timestamp + "|" +
		hex.EncodeToString(digest[:])
}

// Sign computes the hex-encoded HMAC-SHA256 of the canonical string.
func Sign(secret, canonical string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(canonical))
	return hex.EncodeToString(mac.Sum(nil))
}

func canonicalPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	return strings.TrimPrefix(path, "/")
}

func (v *Verifier) warn(msg string, args ...any) {
	if v.logger != nil {
		v.logger.Warn(msg, args...)
	}
}

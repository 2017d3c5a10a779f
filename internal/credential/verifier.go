// Package credential implements the bearer-token Credential Verifier
// (spec.md §4.3): constant-time-style verification against a configured
// shared secret with a minimum-strength floor.
package credential

import (
	"crypto/subtle"
	"log/slog"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/wisbric/quotagate/internal/telemetry"
)

// MinTokenLength is the minimum presented-token length (spec.md §4.3).
const MinTokenLength = 32

// hashKey keys the BLAKE2b digest with a fixed constant, the same for every
// server instance, so the comparison runs over keyed rather than unkeyed
// BLAKE2b output; BLAKE2b (unlike SHA-256) supports keyed hashing natively — the
// "modern high-speed cryptographic hash ... applied uniformly" spec.md
// §4.3 and §9 ask for.
var hashKey = []byte("quotagate-credential-verifier-v1")

// Verifier validates a presented bearer token against a configured secret.
// It is pure over (presented, secret); it never touches the KV store.
type Verifier struct {
	secret []byte
	logger *slog.Logger
}

// New creates a Verifier bound to the given configured secret. Callers must
// ensure secret meets the minimum-strength floor at configuration-load time
// (config.Config.Validate); the verifier itself does not re-validate it,
// since that is a server misconfiguration, not a per-request input.
func New(secret string, logger *slog.Logger) *Verifier {
	return &Verifier{secret: []byte(secret), logger: logger}
}

// ExtractBearer pulls the token out of an "Authorization: Bearer <token>"
// header value. It returns ok=false for a missing header, wrong scheme, or
// empty token (spec.md §4.3).
func ExtractBearer(header string) (token string, ok bool) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token = strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if token == "" {
		return "", false
	}
	return token, true
}

// Verify reports whether presented authenticates against the configured
// secret. Per spec.md §8: "verify(presented) returns Unauthorized iff
// len(presented) < 32 OR keyed_hash(presented) != keyed_hash(configured_secret)".
//
// Both digests are always computed, even on the shorter-than-minimum path,
// so that a length check does not itself leak timing information about the
// secret's length (spec.md §4.3, §9).
func (v *Verifier) Verify(presented string) bool {
	presentedDigest := keyedDigest([]byte(presented))
	secretDigest := keyedDigest(v.secret)

	match := subtle.ConstantTimeCompare(presentedDigest[:], secretDigest[:]) == 1
	lengthOK := len(presented) >= MinTokenLength
	ok := match && lengthOK

	outcome := "unauthorized"
	if ok {
		outcome = "ok"
	}
	telemetry.CredentialChecksTotal.WithLabelValues(outcome).Inc()
	// Never log the token itself or its digest (spec.md §4.3).
	v.logger.Debug("credential verification", "outcome", outcome)

	return ok
}

func keyedDigest(data []byte) [32]byte {
	h, err := blake2b.New256(hashKey)
	if err != nil {
		// blake2b.New256 only errors when the key exceeds 64 bytes; hashKey
		// is a fixed, short, compile-time constant, so this is unreachable.
		panic("credential: invalid blake2b key: " + err.Error())
	}
	h.Write(data)
	var out [32]byte
	h.Sum(out[:0])
	return out
}

package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"ai-credits-billing/internal/domain"
)

// The processor signs each delivery with
//
//	X-Payment-Signature: t=<unix seconds>,v1=<hex hmac-sha256>
//
// where the MAC is computed over "<t>.<raw payload>" with the shared webhook
// secret. Verification must run on the exact bytes received; parsing or
// re-serializing the payload first invalidates the check.

// DefaultSignatureTolerance bounds how stale a signed timestamp may be.
const DefaultSignatureTolerance = 5 * time.Minute

func parseSignatureHeader(header string) (timestamp string, signatures []string, err error) {
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			timestamp = kv[1]
		case "v1":
			if kv[1] != "" {
				signatures = append(signatures, kv[1])
			}
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return "", nil, domain.ErrSignatureInvalid
	}
	return timestamp, signatures, nil
}

// VerifySignature checks the signature header against the raw payload bytes.
func VerifySignature(secret string, payload []byte, header string, tolerance time.Duration, now time.Time) error {
	if secret == "" || strings.TrimSpace(header) == "" {
		return domain.ErrSignatureInvalid
	}

	timestamp, signatures, err := parseSignatureHeader(header)
	if err != nil {
		return err
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return domain.ErrSignatureInvalid
	}
	if tolerance > 0 {
		age := now.Sub(time.Unix(ts, 0))
		if age > tolerance || age < -tolerance {
			return fmt.Errorf("signed timestamp outside tolerance: %w", domain.ErrSignatureInvalid)
		}
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, sig := range signatures {
		if hmac.Equal([]byte(strings.ToLower(sig)), []byte(expected)) {
			return nil
		}
	}
	return domain.ErrSignatureInvalid
}

// SignPayload produces a valid signature header for the payload. Used by the
// tests and local tooling to emulate the processor.
func SignPayload(secret string, payload []byte, at time.Time) string {
	timestamp := strconv.FormatInt(at.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	return fmt.Sprintf("t=%s,v1=%s", timestamp, hex.EncodeToString(mac.Sum(nil)))
}

// Package signature signs outbound gateway requests with HMAC-SHA256 and
// verifies them on the receiving side.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Header names carried by signed requests.
const (
	HeaderSignature = "X-Smsrelay-Signature"
	HeaderTimestamp = "X-Smsrelay-Timestamp"
)

var (
	// ErrMissingSignature is returned when a request carries no signature headers.
	ErrMissingSignature = errors.New("signature: missing signature")

	// ErrSignatureMismatch is returned when the signature does not match the body.
	ErrSignatureMismatch = errors.New("signature: mismatch")

	// ErrTimestampExpired is returned when the signed timestamp is outside the tolerance.
	ErrTimestampExpired = errors.New("signature: timestamp outside tolerance")
)

// Sign returns "v1=<hex>" over "{timestamp}.{payload}".
func Sign(payload []byte, secret string, timestamp int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", timestamp)
	mac.Write(payload)
	return "v1=" + hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether sig was produced by Sign for the same inputs.
func Verify(payload []byte, secret string, timestamp int64, sig string) bool {
	return hmac.Equal([]byte(Sign(payload, secret, timestamp)), []byte(sig))
}

// SignRequest sets the signature headers on req for body.
func SignRequest(req *http.Request, body []byte, secret string, now time.Time) {
	ts := now.Unix()
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(ts, 10))
	req.Header.Set(HeaderSignature, Sign(body, secret, ts))
}

// VerifyRequest checks the signature headers of h against body.
// A tolerance of 0 disables the timestamp window check.
func VerifyRequest(h http.Header, body []byte, secret string, tolerance time.Duration, now time.Time) error {
	sig, rawTS := h.Get(HeaderSignature), h.Get(HeaderTimestamp)
	if sig == "" || rawTS == "" {
		return ErrMissingSignature
	}

	ts, err := strconv.ParseInt(rawTS, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad timestamp %q", ErrSignatureMismatch, rawTS)
	}

	if tolerance > 0 {
		skew := now.Sub(time.Unix(ts, 0))
		if skew < 0 {
			skew = -skew
		}
		if skew > tolerance {
			return ErrTimestampExpired
		}
	}

	if !Verify(body, secret, ts, sig) {
		return ErrSignatureMismatch
	}
	return nil
}

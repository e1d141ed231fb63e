package bybit

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// Signer handles Bybit v5 API authentication signatures
type Signer struct {
	apiKey     string
	secret     string
	recvWindow string
}

// NewSigner creates a new Signer instance
func NewSigner(apiKey, secret string, recvWindow time.Duration) *Signer {
	if recvWindow <= 0 {
		recvWindow = 5 * time.Second
	}
	return &Signer{
		apiKey:     apiKey,
		secret:     secret,
		recvWindow: strconv.FormatInt(recvWindow.Milliseconds(), 10),
	}
}

// GenerateHeaders creates the necessary headers for a request.
// payload is the raw query string for GET and the JSON body for POST.
//
// Format: timestamp + apiKey + recvWindow + payload
func (s *Signer) GenerateHeaders(now time.Time, payload string) map[string]string {
	timestamp := strconv.FormatInt(now.UnixMilli(), 10)
	sign := computeHmacSha256(timestamp+s.apiKey+s.recvWindow+payload, s.secret)

	return map[string]string{
		"X-BAPI-API-KEY":     s.apiKey,
		"X-BAPI-TIMESTAMP":   timestamp,
		"X-BAPI-SIGN":        sign,
		"X-BAPI-RECV-WINDOW": s.recvWindow,
		"Content-Type":       "application/json",
	}
}

// WSAuthArgs returns the arguments of the private stream "auth" operation.
func (s *Signer) WSAuthArgs(now time.Time) []interface{} {
	expires := now.Add(authExpiry).UnixMilli()
	sign := computeHmacSha256("GET/realtime"+strconv.FormatInt(expires, 10), s.secret)
	return []interface{}{s.apiKey, expires, sign}
}

func computeHmacSha256(message string, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(message))
	return hex.EncodeToString(h.Sum(nil))
}

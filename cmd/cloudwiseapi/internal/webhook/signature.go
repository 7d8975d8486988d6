package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SignatureHeader is the header carrying the processor's signature.
const SignatureHeader = "Stripe-Signature"

const signatureScheme = "v1"

var (
	errNoTimestamp  = errors.New("no t= element")
	errNoSignatures = errors.New("no v1= element")
)

// signedHeader is a parsed "t=<unix>,v1=<hex>[,v1=<hex>...]" header. Elements
// of other schemes (v0) are ignored.
type signedHeader struct {
	timestamp  time.Time
	rawT       string
	signatures [][]byte
}

func parseSignatureHeader(header string) (*signedHeader, error) {
	parsed := &signedHeader{}

	for _, item := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(item), "=")
		if !ok {
			return nil, fmt.Errorf("element %q is not key=value", item)
		}
		switch key {
		case "t":
			unix, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("timestamp %q: %w", value, err)
			}
			parsed.timestamp = time.Unix(unix, 0)
			parsed.rawT = value
		case signatureScheme:
			sig, err := hex.DecodeString(value)
			if err != nil {
				// A garbled entry cannot match; others may still.
				continue
			}
			parsed.signatures = append(parsed.signatures, sig)
		}
	}

	if parsed.rawT == "" {
		return nil, errNoTimestamp
	}
	if len(parsed.signatures) == 0 {
		return nil, errNoSignatures
	}
	return parsed, nil
}

// computeSignature returns HMAC-SHA256(secret, "<t>.<payload>").
func computeSignature(secret, rawT string, payload []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(rawT))
	mac.Write([]byte("."))
	mac.Write(payload)
	return mac.Sum(nil)
}

// matchingSignature returns the header signature equal to expected, compared
// in constant time.
func (h *signedHeader) matchingSignature(expected []byte) ([]byte, bool) {
	for _, sig := range h.signatures {
		if hmac.Equal(sig, expected) {
			return sig, true
		}
	}
	return nil, false
}

// SignPayload builds a valid signature header for payload at t. Used to
// exercise the endpoint in tests and local development.
func SignPayload(secret string, t time.Time, payload []byte) string {
	rawT := strconv.FormatInt(t.Unix(), 10)
	return "t=" + rawT + "," + signatureScheme + "=" + hex.EncodeToString(computeSignature(secret, rawT, payload))
}

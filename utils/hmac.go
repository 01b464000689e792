package utils

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// EmptyBodyHash is the SHA256 of an empty body
const EmptyBodyHash = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

// BuildStringToSign returns METHOD\nPATH\nTIMESTAMP\nSHA256(body).
func BuildStringToSign(method, path string, timestamp int64, bodyHash string) string {
	return fmt.Sprintf("%s\n%s\n%d\n%s", strings.ToUpper(method), path, timestamp, bodyHash)
}

func ComputeHMACSHA256(secretKey, message string) string {
	h := hmac.New(sha256.New, []byte(secretKey))
	h.Write([]byte(message))
	return hex.EncodeToString(h.Sum(nil))
}

func HashBodySHA256(body []byte) string {
	if len(body) == 0 {
		return EmptyBodyHash
	}
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// ParseHMACHeader splits "HMAC <accessKey>:<signature>".
func ParseHMACHeader(header string) (accessKey, signature string, ok bool) {
	value, found := strings.CutPrefix(header, "HMAC ")
	if !found {
		return "", "", false
	}
	accessKey, signature, found = strings.Cut(value, ":")
	if !found || accessKey == "" || signature == "" {
		return "", "", false
	}
	return accessKey, signature, true
}

// VerifyHMACRequest checks a signature and that the timestamp lies within
// tolerance of now.
func VerifyHMACRequest(secretKey, signature, method, path, timestampHeader string, body []byte, now time.Time, tolerance time.Duration) error {
	ts, err := strconv.ParseInt(timestampHeader, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid X-Timestamp format")
	}
	skew := now.Sub(time.Unix(ts, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > tolerance {
		return fmt.Errorf("request timestamp expired")
	}

	expected := ComputeHMACSHA256(secretKey, BuildStringToSign(method, path, ts, HashBodySHA256(body)))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return fmt.Errorf("invalid signature")
	}
	return nil
}

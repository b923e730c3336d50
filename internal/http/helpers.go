package http

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"montaxi/internal/core"
	"montaxi/internal/summary"
)

// parseYear reads the year query parameter, defaulting to the current year.
func parseYear(r *http.Request) (string, error) {
	v := strings.TrimSpace(r.URL.Query().Get("year"))
	if v == "" {
		return strconv.Itoa(time.Now().Year()), nil
	}
	if y, err := strconv.Atoi(v); err != nil || y < 1900 || y > 9999 {
		return "", core.Invalid("year", "must be a four-digit year")
	}
	return v, nil
}

// parseYearAndGranularity reads year and by for the summary endpoints.
func parseYearAndGranularity(r *http.Request) (string, summary.Granularity, error) {
	year, err := parseYear(r)
	if err != nil {
		return "", "", err
	}
	by, err := summary.ParseGranularity(r.URL.Query().Get("by"))
	if err != nil {
		return "", "", err
	}
	return year, by, nil
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// generateRequestID creates a unique request ID for tracing.
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

// requestID reuses an incoming X-Request-ID when it looks sane.
func requestID(r *http.Request) string {
	if id := sanitizeInput(r.Header.Get("X-Request-ID")); id != "" && len(id) <= 64 {
		return id
	}
	return generateRequestID()
}

// safeFilename keeps a download name to characters every client accepts.
func safeFilename(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		}
		return '_'
	}, name)
}

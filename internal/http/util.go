package httpx

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// parseIntQuery returns the integer value of a query param or a default.
// It is tolerant of missing/invalid values.
func parseIntQuery(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

// ParseLimitOffset parses pagination params and clamps them to [1, maxLimit] and >= 0.
func ParseLimitOffset(r *http.Request, defLimit, maxLimit int) (int, int) {
	maxLimit = max(maxLimit, 1)
	lim := min(max(parseIntQuery(r, "limit", defLimit), 1), maxLimit)
	off := max(parseIntQuery(r, "offset", 0), 0)
	return lim, off
}

// parseDurationQuery accepts Go durations ("30s") and bare seconds ("30").
func parseDurationQuery(r *http.Request, key string) (time.Duration, bool) {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return 0, true
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, secs >= 0
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return 0, false
	}
	return d, true
}

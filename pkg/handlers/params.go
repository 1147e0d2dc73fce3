package handlers

import (
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/argo-explorer/dashboard/pkg/jsonutil"
	"github.com/argo-explorer/dashboard/pkg/render"
)

// maxPageSize bounds the table page a client may ask for.
const maxPageSize = 100

var floatIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,32}$`)

// ParseFloatID extracts and validates the float ID from the request path.
// Returns the ID and true on success, or "" and false on error (after writing
// an error response).
// Expects path parameter: id
func ParseFloatID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (string, bool) {
	id := strings.TrimSpace(r.PathValue("id"))
	if !floatIDPattern.MatchString(id) {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_float_id", "Invalid float ID format"); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return "", false
	}
	return id, true
}

// ValidFloatIDs reports whether every id is a well-formed float ID.
func ValidFloatIDs(ids []string) bool {
	for _, id := range ids {
		if !floatIDPattern.MatchString(strings.TrimSpace(id)) {
			return false
		}
	}
	return true
}

// ParseRenderOptions reads the table and date-filter controls from the query
// string: search, page, page_size, date_start and date_end. Writes a 400 and
// returns false when a value cannot be parsed.
func ParseRenderOptions(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (render.Options, bool) {
	opts, field, ok := renderOptions(r.URL.Query())
	if !ok {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_parameter", "Invalid value for "+field); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return render.Options{}, false
	}
	return opts, true
}

// renderOptions returns the parsed options, or the name of the first bad field.
func renderOptions(q url.Values) (render.Options, string, bool) {
	opts := render.Options{Search: strings.TrimSpace(q.Get("search"))}

	intParam := func(name string, lo, hi int) (int, bool) {
		raw := strings.TrimSpace(q.Get(name))
		if raw == "" {
			return 0, true
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < lo || n > hi {
			return 0, false
		}
		return n, true
	}

	var ok bool
	if opts.Page, ok = intParam("page", 1, 1<<20); !ok {
		return render.Options{}, "page", false
	}
	if opts.PageSize, ok = intParam("page_size", 1, maxPageSize); !ok {
		return render.Options{}, "page_size", false
	}

	if raw := strings.TrimSpace(q.Get("date_start")); raw != "" {
		t, ok := jsonutil.Time(raw)
		if !ok {
			return render.Options{}, "date_start", false
		}
		opts.DateRange.Start = &t
	}
	if raw := strings.TrimSpace(q.Get("date_end")); raw != "" {
		t, ok := jsonutil.Time(raw)
		if !ok {
			return render.Options{}, "date_end", false
		}
		opts.DateRange.End = &t
	}
	return opts, "", true
}

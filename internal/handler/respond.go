package handler

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("ERROR: failed to encode JSON response: %v", err)
	}
}

// writeError emits the uniform failure envelope.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{"success": false, "error": msg})
}

// numericString renders a pgtype.Numeric as a fixed two-decimal string for
// responses. Invalid numerics render as "0.00".
func numericString(n pgtype.Numeric) string {
	if !n.Valid {
		return "0.00"
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return "0.00"
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return "0.00"
	}
	return d.StringFixed(2)
}

func textPtr(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	return &t.String
}

func timePtr(t pgtype.Timestamptz) *time.Time {
	if !t.Valid {
		return nil
	}
	return &t.Time
}

func uuidPtr(u pgtype.UUID) *string {
	if !u.Valid {
		return nil
	}
	s := uuid.UUID(u.Bytes).String()
	return &s
}

// parsePagination reads limit/offset query params with a hard cap.
func parsePagination(r *http.Request, defaultLimit, maxLimit int) (limit, offset int) {
	limit = defaultLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if s := r.URL.Query().Get("offset"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			offset = v
		}
	}
	return limit, offset
}

// parseDateRange reads startDate/endDate query params (YYYY-MM-DD). The end
// bound is exclusive: endDate covers the whole named day.
func parseDateRange(r *http.Request) (start, end time.Time, err error) {
	const layout = "2006-01-02"
	now := time.Now().UTC()
	start = now.AddDate(0, 0, -30).Truncate(24 * time.Hour)
	end = now.AddDate(0, 0, 1).Truncate(24 * time.Hour)

	if s := r.URL.Query().Get("startDate"); s != "" {
		start, err = time.Parse(layout, s)
		if err != nil {
			return start, end, err
		}
	}
	if s := r.URL.Query().Get("endDate"); s != "" {
		end, err = time.Parse(layout, s)
		if err != nil {
			return start, end, err
		}
		end = end.AddDate(0, 0, 1)
	}
	return start, end, nil
}

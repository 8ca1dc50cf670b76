package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/dvloznov/finance-analytics/internal/api/middleware"
	"github.com/dvloznov/finance-analytics/internal/domain"
	"github.com/rs/zerolog"
)

const dateLayout = "2006-01-02"

// dateRange reads start_date and end_date. The end date covers its whole day.
func dateRange(r *http.Request) (start, end *time.Time, err error) {
	query := r.URL.Query()

	if s := query.Get("start_date"); s != "" {
		t, perr := time.Parse(dateLayout, s)
		if perr != nil {
			return nil, nil, domain.NewValidationError("start_date", "must be YYYY-MM-DD")
		}
		start = &t
	}
	if s := query.Get("end_date"); s != "" {
		t, perr := time.Parse(dateLayout, s)
		if perr != nil {
			return nil, nil, domain.NewValidationError("end_date", "must be YYYY-MM-DD")
		}
		t = t.Add(24*time.Hour - time.Millisecond)
		end = &t
	}
	return start, end, nil
}

// intParam reads an optional integer query parameter, returning def when absent.
func intParam(r *http.Request, name string, def int) (int, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, domain.NewValidationError(name, "must be an integer")
	}
	return v, nil
}

func boolParam(r *http.Request, name string) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return v
}

// decodeBody decodes a JSON body into dst. An empty body leaves dst untouched.
func decodeBody(r *http.Request, dst any) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return domain.NewValidationError("body", "is not valid JSON")
	}
	return nil
}

func requireUser(userID string) error {
	if userID == "" {
		return domain.NewValidationError("user_id", "is required")
	}
	return nil
}

// writeFailure logs server-side failures and writes the mapped error response.
func writeFailure(w http.ResponseWriter, log zerolog.Logger, err error, userID, message string) {
	if middleware.ErrorStatus(err) >= http.StatusInternalServerError {
		log.Error().Err(err).Str("user_id", userID).Msg(message)
	}
	middleware.WriteServiceError(w, err, message)
}

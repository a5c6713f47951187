package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/littlewalk/go-walk/models"
)

const maxBodyBytes = 1 << 20

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return &models.ValidationError{Field: "body", Reason: "invalid json: " + err.Error()}
	}
	return nil
}

func queryFloat(r *http.Request, name string) (float64, error) {
	raw := r.URL.Query().Get(name)
	if len(raw) == 0 {
		return 0, &models.ValidationError{Field: name, Reason: "required"}
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, &models.ValidationError{Field: name, Reason: "not a number"}
	}
	return value, nil
}

func queryInt(r *http.Request, name string) (int64, error) {
	raw := r.URL.Query().Get(name)
	if len(raw) == 0 {
		return 0, nil
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, &models.ValidationError{Field: name, Reason: "not an integer"}
	}
	return value, nil
}

// pagination returns nil when neither limit nor skip is given, leaving the defaults to the service.
func pagination(r *http.Request) (*models.Pagination, error) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		return nil, err
	}
	skip, err := queryInt(r, "skip")
	if err != nil {
		return nil, err
	}
	if limit == 0 && skip == 0 {
		return nil, nil
	}
	return &models.Pagination{Limit: limit, Skip: skip}, nil
}

func optionalString(r *http.Request, name string) *string {
	if value := r.URL.Query().Get(name); len(value) > 0 {
		return &value
	}
	return nil
}

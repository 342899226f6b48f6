package validators

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/storefront-settlement/pkg/errors"
)

// Query parameter failures carry details keyed by parameter name, the same
// shape DecodeJSONBody reports for body fields.

// ParseQueryInt reads key as an integer in [min, max], or defaultVal when absent.
func ParseQueryInt(r *http.Request, key string, defaultVal, min, max int) (int, error) {
	raw := queryValue(r, key)
	if raw == "" {
		return defaultVal, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, queryError(key, "must be a whole number")
	}
	if value < min || value > max {
		return 0, queryError(key, fmt.Sprintf("must be between %d and %d", min, max))
	}
	return value, nil
}

// QueryUUID reads key as a UUID. An absent key yields nil.
func QueryUUID(r *http.Request, key string) (*uuid.UUID, error) {
	raw := queryValue(r, key)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, queryError(key, "must be a UUID")
	}
	return &id, nil
}

// QueryEnum reads key as a lower-cased enum value accepted by valid. An
// absent key yields the zero value.
func QueryEnum[T ~string](r *http.Request, key string, valid func(T) bool) (T, error) {
	var zero T
	raw := strings.ToLower(queryValue(r, key))
	if raw == "" {
		return zero, nil
	}
	value := T(raw)
	if !valid(value) {
		return zero, queryError(key, "is not a known value")
	}
	return value, nil
}

func queryValue(r *http.Request, key string) string {
	return strings.TrimSpace(r.URL.Query().Get(key))
}

func queryError(key, message string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, "invalid query parameter").
		WithDetails(map[string]string{key: message})
}

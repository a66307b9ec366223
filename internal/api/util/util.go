package util

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// ApplyConversion applies a converter function to each of the models
// provided to this function. The returned value is a slice which
// has been converted to the new values based on the returned value
// from the converter.
func ApplyConversion[T any, K any](models []T, converter func(T) K) []K {
	dtos := make([]K, 0, len(models))
	for _, v := range models {
		dtos = append(dtos, converter(v))
	}

	return dtos
}

// ParseRecordID extracts the numeric 'id' path param from the context.
func ParseRecordID(ec echo.Context) (int64, error) {
	id, err := strconv.ParseInt(ec.Param("id"), 10, 64)
	if err != nil || id < 1 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "record ID must be a positive integer")
	}

	return id, nil
}

// ParseCandidateID extracts the UUID 'id' path param from the context.
func ParseCandidateID(ec echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(ec.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "candidate ID is not a valid UUID")
	}

	return id, nil
}

// BindAndValidate binds the request body to the target and validates
// it using the struct tags present. Any failure is returned as a
// 400 HTTP error suitable for returning from a handler.
func BindAndValidate(ec echo.Context, validate *validator.Validate, target any) error {
	if err := ec.Bind(target); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("JSON body illegal: %v", err))
	}

	if err := validate.Struct(target); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("JSON body failed validation: %v", err))
	}

	return nil
}

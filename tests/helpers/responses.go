package helpers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"gotest.tools/v3/assert"
)

type APIError struct {
	Message string `json:"message"`
	Offline *bool  `json:"offline,omitempty"`
}

func AssertErrorResponse(t *testing.T, rec *httptest.ResponseRecorder, expectedStatusCode int, expectedMessage string) {
	t.Helper()
	assert.Equal(t, rec.Code, expectedStatusCode, "HTTP response status code did not match expected")

	apiErr := ExtractErrorResponse(t, rec.Body.Bytes())
	if expectedMessage == "" {
		assert.Equal(t, apiErr.Message, http.StatusText(expectedStatusCode))
	} else {
		assert.Equal(t, apiErr.Message, expectedMessage)
	}
}

func ExtractErrorResponse(t *testing.T, body []byte) APIError {
	var apiError APIError
	if err := json.Unmarshal(body, &apiError); err != nil {
		t.Errorf("Could not extract APIError from HTTP response body: %s", err)
	}

	return apiError
}

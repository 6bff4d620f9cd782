package validator

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type settingsBody struct {
	Count  int    `json:"count" validate:"gte=1,lte=10000"`
	Prefix string `json:"prefix" validate:"omitempty,alphanum,max=10"`
}

type requestBody struct {
	Name     string       `json:"name" validate:"required"`
	Type     string       `json:"type" validate:"oneof=percentage fixed_amount"`
	Settings settingsBody `json:"settings"`
}

func TestValidate_Success(t *testing.T) {
	err := Validate(requestBody{Name: "Summer", Type: "percentage", Settings: settingsBody{Count: 5, Prefix: "SUMMER"}})
	assert.NoError(t, err)
}

func TestValidate_ReportsJSONFieldPaths(t *testing.T) {
	err := Validate(requestBody{Type: "bogus", Settings: settingsBody{Count: 0, Prefix: "TOO_LONG_PREFIX"}})
	require.Error(t, err)

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	fields := valErr.Fields()

	assert.Equal(t, "is required", fields["name"])
	assert.Equal(t, "must be one of: percentage fixed_amount", fields["type"])
	assert.Equal(t, "must be greater than or equal to 1", fields["settings.count"])
	assert.Contains(t, fields, "settings.prefix")
}

func TestValidate_MaxMessageUsesUnitForStrings(t *testing.T) {
	err := Validate(settingsBody{Count: 1, Prefix: "ABCDEFGHIJK"})

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "must be at most 10 characters", valErr.Fields()["prefix"])
	assert.Contains(t, valErr.Error(), "settingsBody.prefix")
}

func TestDecodeAndValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"count":3}`))
		var dst settingsBody
		require.NoError(t, DecodeAndValidate(req, &dst))
		assert.Equal(t, 3, dst.Count)
	})

	t.Run("malformed json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{bad`))
		var dst settingsBody
		err := DecodeAndValidate(req, &dst)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "decode request body")
	})

	t.Run("unknown field", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"count":3,"bogus":1}`))
		var dst settingsBody
		require.Error(t, DecodeAndValidate(req, &dst))
	})
}

package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/pwcheck/internal/policy"
	"github.com/jwalitptl/pwcheck/internal/service/check"
	"github.com/jwalitptl/pwcheck/pkg/security"
)

type panicHasher struct {
	security.PasswordHasher
}

func (panicHasher) Hash(string) (string, error) {
	panic("validate must not hash")
}

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(check.NewService(panicHasher{}, nil, zerolog.Nop())).RegisterRoutes(r.Group("/api/v1"))
	return r
}

type envelope[T any] struct {
	Success bool `json:"success"`
	Data    T    `json:"data"`
	Error   *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func TestPolicy(t *testing.T) {
	w := httptest.NewRecorder()
	newRouter().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/policy", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp envelope[PolicyResponse]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 5, resp.Data.MinLength)
	assert.Equal(t, policy.SpecialChars, resp.Data.SpecialChars)
	require.Len(t, resp.Data.Rules, 4)
	assert.Equal(t, "length", resp.Data.Rules[0].Name)
	assert.Equal(t, policy.MsgNoSpecial, resp.Data.Rules[3].Message)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		valid      bool
		violations []string
	}{
		{"strong", `{"password":"Str0ng!"}`, true, []string{}},
		{"empty", `{"password":""}`, false, []string{policy.MsgTooShort, policy.MsgNoUpper, policy.MsgNoDigit, policy.MsgNoSpecial}},
		{"short", `{"password":"Ab1!"}`, false, []string{policy.MsgTooShort}},
		{"no special", `{"password":"Abcde1"}`, false, []string{policy.MsgNoSpecial}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/v1/validate", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			newRouter().ServeHTTP(w, req)
			require.Equal(t, http.StatusOK, w.Code)

			var resp envelope[policy.Result]
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.True(t, resp.Success)
			assert.Equal(t, tt.valid, resp.Data.Valid)
			assert.Equal(t, tt.violations, resp.Data.Violations)
		})
	}
}

func TestValidate_BadRequest(t *testing.T) {
	for _, body := range []string{`{}`, `not json`, `{"password":5}`} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/validate", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		newRouter().ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		var resp envelope[any]
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.False(t, resp.Success)
		require.NotNil(t, resp.Error)
		assert.Equal(t, "invalid request body", resp.Error.Message)
	}
}

package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func handlerCalled(called *bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	}
}

func TestRequire_FailsClosedWhenNoTokenConfigured(t *testing.T) {
	c := New("")
	var called bool
	h := c.Require(handlerCalled(&called))

	req := httptest.NewRequest(http.MethodPost, "/work/request", nil)
	rec := httptest.NewRecorder()
	h(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, called)
}

func TestRequire_RejectsMissingToken(t *testing.T) {
	c := New("secret")
	var called bool
	h := c.Require(handlerCalled(&called))

	req := httptest.NewRequest(http.MethodPost, "/work/request", nil)
	rec := httptest.NewRecorder()
	h(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, called)
}

func TestRequire_AcceptsDedicatedHeader(t *testing.T) {
	c := New("secret")
	var called bool
	h := c.Require(handlerCalled(&called))

	req := httptest.NewRequest(http.MethodPost, "/work/request", nil)
	req.Header.Set("X-API-Token", "secret")
	rec := httptest.NewRecorder()
	h(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, called)
}

func TestRequire_AcceptsBearerHeaderIdentically(t *testing.T) {
	c := New("secret")
	var called bool
	h := c.Require(handlerCalled(&called))

	req := httptest.NewRequest(http.MethodPost, "/work/request", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	h(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, called)
}

func TestRequire_RejectsWrongToken(t *testing.T) {
	c := New("secret")
	var called bool
	h := c.Require(handlerCalled(&called))

	req := httptest.NewRequest(http.MethodPost, "/work/request", nil)
	req.Header.Set("X-API-Token", "wrong")
	rec := httptest.NewRecorder()
	h(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, called)
}

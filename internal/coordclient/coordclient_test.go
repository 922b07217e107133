package coordclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLease_SendsTokenAndDecodesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/work/request", r.URL.Path)
		assert.Equal(t, "tok", r.Header.Get("X-API-Token"))

		var body LeaseRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "w1", body.ClientID)

		json.NewEncoder(w).Encode(LeaseResponse{Success: true, Passwords: []string{"a", "b"}, BatchID: "w1-1"})
	}))
	defer srv.Close()

	c := New(srv.URL, "tok")
	resp, err := c.Lease(context.Background(), LeaseRequest{CPUCount: 4, ClientID: "w1"})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, []string{"a", "b"}, resp.Passwords)
}

func TestReport_PropagatesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"boom"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "tok")
	_, err := c.Report(context.Background(), ResultRequest{BatchID: "x", ClientID: "w1", Success: false})
	assert.Error(t, err)
}

func TestConfirmFound_SendsExpectedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body FoundRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "hunter2", body.Password)
		json.NewEncoder(w).Encode(FoundResponse{Success: true, PasswordFound: true})
	}))
	defer srv.Close()

	c := New(srv.URL, "tok")
	resp, err := c.ConfirmFound(context.Background(), FoundRequest{Password: "hunter2", ClientID: "w1"})
	require.NoError(t, err)
	assert.True(t, resp.PasswordFound)
}

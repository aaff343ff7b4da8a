package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandleClientResourceGetRequiresBearerToken(t *testing.T) {
	h := newTestHarness(t)
	reg := h.registerClient(t, "https://client.example.test/callback")

	req := httptest.NewRequest(http.MethodGet, "/register/"+reg.ClientID, nil)
	rr := httptest.NewRecorder()
	h.srv.Router().ServeHTTP(rr, req)

	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestHandleClientResourceRoundTrip(t *testing.T) {
	h := newTestHarness(t)
	reg := h.registerClient(t, "https://client.example.test/callback")

	get := httptest.NewRequest(http.MethodGet, "/register/"+reg.ClientID, nil)
	get.Header.Set("Authorization", "Bearer "+reg.RegistrationAccessToken)
	rr := httptest.NewRecorder()
	h.srv.Router().ServeHTTP(rr, get)
	require.Equal(t, http.StatusOK, rr.Code)

	putBody := `{"redirect_uris":["https://client.example.test/new-callback"],"client_name":"Renamed"}`
	put := httptest.NewRequest(http.MethodPut, "/register/"+reg.ClientID, bytes.NewBufferString(putBody))
	put.Header.Set("Authorization", "Bearer "+reg.RegistrationAccessToken)
	rr = httptest.NewRecorder()
	h.srv.Router().ServeHTTP(rr, put)
	require.Equal(t, http.StatusOK, rr.Code)
	var updated registrationResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &updated))
	require.Equal(t, "Renamed", updated.ClientName)
	require.Equal(t, reg.ClientID, updated.ClientID)

	del := httptest.NewRequest(http.MethodDelete, "/register/"+reg.ClientID, nil)
	del.Header.Set("Authorization", "Bearer "+reg.RegistrationAccessToken)
	rr = httptest.NewRecorder()
	h.srv.Router().ServeHTTP(rr, del)
	require.Equal(t, http.StatusNoContent, rr.Code)

	get2 := httptest.NewRequest(http.MethodGet, "/register/"+reg.ClientID, nil)
	get2.Header.Set("Authorization", "Bearer "+reg.RegistrationAccessToken)
	rr = httptest.NewRecorder()
	h.srv.Router().ServeHTTP(rr, get2)
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandleClientResourceRejectsWrongToken(t *testing.T) {
	h := newTestHarness(t)
	reg := h.registerClient(t, "https://client.example.test/callback")

	req := httptest.NewRequest(http.MethodGet, "/register/"+reg.ClientID, nil)
	req.Header.Set("Authorization", "Bearer wrong-token")
	rr := httptest.NewRecorder()
	h.srv.Router().ServeHTTP(rr, req)

	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JoeShih716/go-doc-ledger/internal/app/core/adapter/out/memory"
	"github.com/JoeShih716/go-doc-ledger/internal/app/core/usecase"
)

type testServer struct {
	e *echo.Echo
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store, err := memory.NewStore()
	require.NoError(t, err)
	h := NewHandler(usecase.NewCoordinator(store, nil), usecase.NewAccountService(store, nil), nil)
	return &testServer{e: NewServer(h)}
}

func (s *testServer) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(strings.TrimSpace(rec.Body.String()), "{") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func (s *testServer) createAccount(t *testing.T, name string) string {
	t.Helper()
	rec, body := s.do(t, http.MethodPost, "/account", `{"name":"`+name+`","phone":"0912345678"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "0.00", body["balance"])
	return body["account_number"].(string)
}

func TestAccountEndpoints(t *testing.T) {
	s := newTestServer(t)
	number := s.createAccount(t, "Alice")

	rec, body := s.do(t, http.MethodGet, "/account/"+number, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Alice", body["name"])

	rec, _ = s.do(t, http.MethodGet, "/account", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	rec, body = s.do(t, http.MethodDelete, "/account/"+number, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Successfully deleted account", body["message"])

	rec, body = s.do(t, http.MethodDelete, "/account/"+number, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Unable to delete account: "+number, body["message"])
	assert.Equal(t, labelAccount, body["error"])

	rec, body = s.do(t, http.MethodGet, "/account/"+number, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, labelTransaction, body["error"])
}

func TestTransactionEndpoint(t *testing.T) {
	s := newTestServer(t)
	alice := s.createAccount(t, "Alice")
	bob := s.createAccount(t, "Bob")

	rec, body := s.do(t, http.MethodPost, "/transaction",
		`{"amount":150,"recipient_account_number":"`+alice+`","transaction_type":"CREDIT"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Successfully credited 150.00 to "+alice, body["message"])
	assert.NotEmpty(t, body["document_id"])

	rec, body = s.do(t, http.MethodPost, "/transaction",
		`{"amount":"200.00","recipient_account_number":"`+alice+`","transaction_type":"DEBIT"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Insufficient balance in account", body["message"])
	assert.Equal(t, labelTransaction, body["error"])

	rec, body = s.do(t, http.MethodPost, "/transaction",
		`{"amount":50.5,"sender_account_number":"`+alice+`","recipient_account_number":"`+bob+`","transaction_type":"TRANSFER"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Successfully transferred 50.50 from "+alice+" to "+bob, body["message"])

	_, body = s.do(t, http.MethodGet, "/account/"+bob, "")
	assert.Equal(t, "50.50", body["balance"])
}

func TestTransactionEndpointNotFoundMessages(t *testing.T) {
	s := newTestServer(t)
	alice := s.createAccount(t, "Alice")

	rec, body := s.do(t, http.MethodPost, "/transaction",
		`{"amount":1,"recipient_account_number":"nonexistent","transaction_type":"CREDIT"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Recipient account not found", body["message"])

	rec, body = s.do(t, http.MethodPost, "/transaction",
		`{"amount":1,"sender_account_number":"ghost","recipient_account_number":"`+alice+`","transaction_type":"TRANSFER"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Sender account not found", body["message"])
	assert.Equal(t, labelTransaction, body["error"])
}

func TestTransactionEndpointPayloadErrors(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name    string
		body    string
		message string
	}{
		{name: "zero amount", body: `{"amount":0,"recipient_account_number":"A","transaction_type":"CREDIT"}`, message: "Invalid transaction amount"},
		{name: "negative amount", body: `{"amount":-5,"recipient_account_number":"A","transaction_type":"DEBIT"}`, message: "Invalid transaction amount"},
		{name: "transfer without sender", body: `{"amount":5,"recipient_account_number":"A","transaction_type":"TRANSFER"}`, message: "sender_account_number cannot be empty for transfer"},
		{name: "malformed json", body: `{"amount":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := s.do(t, http.MethodPost, "/transaction", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, labelPayload, body["error"])
			if tt.message != "" {
				assert.Equal(t, tt.message, body["message"])
			}
		})
	}
}

func TestResolveErrorFallsBackToPlatformError(t *testing.T) {
	code, body := resolveError(errors.New("connection reset"))
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, labelPlatform, body.Error)

	code, _ = resolveError(context.DeadlineExceeded)
	assert.Equal(t, http.StatusInternalServerError, code)
}

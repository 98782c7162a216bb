package httpserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	partyservice "chipsplit/contexts/game-session/party-service"
	partyhttp "chipsplit/contexts/game-session/party-service/transport/http"
)

func newPartyTestServer() *Server {
	return New(partyservice.NewInMemoryModule(nil), nil, Options{
		AllowedOrigins: []string{"http://localhost:3000"},
	})
}

func doJSON(t *testing.T, server *Server, method string, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)
	return rr
}

func createPartyOverHTTP(t *testing.T, server *Server, buyInCents int64) partyhttp.CreatePartyData {
	t.Helper()
	rr := doJSON(t, server, http.MethodPost, "/v1/parties", partyhttp.CreatePartyRequest{
		HostName:   "Alice",
		BuyInCents: buyInCents,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	var resp partyhttp.CreatePartyResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if resp.Status != "success" || resp.Data.HostToken == "" {
		t.Fatalf("unexpected create response: %+v", resp)
	}
	return resp.Data
}

func TestHealthEndpoint(t *testing.T) {
	server := newPartyTestServer()
	rr := doJSON(t, server, http.MethodGet, "/health", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestPartyEndpointsFullFlow(t *testing.T) {
	server := newPartyTestServer()
	created := createPartyOverHTTP(t, server, 2000)
	code := created.Party.Code

	rr := doJSON(t, server, http.MethodPost, "/v1/parties/"+code+"/join", partyhttp.JoinPartyRequest{
		DisplayName:  "Bob",
		PayoutHandle: "@bob",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("join: expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	var joined partyhttp.JoinPartyResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &joined); err != nil {
		t.Fatalf("decode join response: %v", err)
	}

	for _, sub := range []struct {
		playerID string
		cents    int64
	}{
		{created.Host.PlayerID, 3000},
		{joined.Data.PlayerID, 1000},
	} {
		rr = doJSON(t, server, http.MethodPost, "/v1/parties/"+code+"/submissions", partyhttp.SubmitRequest{
			PlayerID:       sub.playerID,
			ValuationCents: sub.cents,
		})
		if rr.Code != http.StatusCreated {
			t.Fatalf("submit: expected 201, got %d body=%s", rr.Code, rr.Body.String())
		}
	}

	rr = doJSON(t, server, http.MethodGet, "/v1/parties/"+code, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("view: expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	var view partyhttp.PartyViewResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode view response: %v", err)
	}
	if len(view.Data.Players) != 2 || len(view.Data.Submissions) != 2 {
		t.Fatalf("unexpected view: %+v", view.Data)
	}

	rr = doJSON(t, server, http.MethodPost, "/v1/parties/"+code+"/end", partyhttp.EndPartyRequest{
		HostToken: created.HostToken,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("end: expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	var ended partyhttp.EndPartyResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &ended); err != nil {
		t.Fatalf("decode end response: %v", err)
	}
	if ended.Data.PartyCode != code || len(ended.Data.Transfers) != 1 {
		t.Fatalf("unexpected settlement: %+v", ended.Data)
	}

	rr = doJSON(t, server, http.MethodGet, "/v1/parties/"+code+"/settlement", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("settlement: expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	var fetched partyhttp.SettlementResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &fetched); err != nil {
		t.Fatalf("decode settlement response: %v", err)
	}
	if fetched.Data.SettlementID != ended.Data.SettlementID {
		t.Fatalf("settlement lookup returned %s, end returned %s", fetched.Data.SettlementID, ended.Data.SettlementID)
	}
}

func TestCreatePartyRejectsInvalidInput(t *testing.T) {
	server := newPartyTestServer()

	rr := doJSON(t, server, http.MethodPost, "/v1/parties", partyhttp.CreatePartyRequest{
		HostName:   "",
		BuyInCents: 1000,
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty host name, got %d", rr.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/parties", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	server.mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", rec.Code)
	}
	var errResp partyhttp.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &errResp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if errResp.Code != "invalid_json" {
		t.Fatalf("unexpected error code: %s", errResp.Code)
	}
}

func TestUnknownPartyReturns404(t *testing.T) {
	server := newPartyTestServer()
	rr := doJSON(t, server, http.MethodGet, "/v1/parties/ZZZZZ", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d body=%s", rr.Code, rr.Body.String())
	}
	var errResp partyhttp.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &errResp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if errResp.Code != "party_not_found" {
		t.Fatalf("unexpected error code: %s", errResp.Code)
	}
}

func TestEndPartyWrongTokenReturns403(t *testing.T) {
	server := newPartyTestServer()
	created := createPartyOverHTTP(t, server, 1000)

	rr := doJSON(t, server, http.MethodPost, "/v1/parties/"+created.Party.Code+"/end", partyhttp.EndPartyRequest{
		HostToken: "wrong-token",
	})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestSubmitAfterEndReturns409(t *testing.T) {
	server := newPartyTestServer()
	created := createPartyOverHTTP(t, server, 1000)
	code := created.Party.Code

	rr := doJSON(t, server, http.MethodPost, fmt.Sprintf("/v1/parties/%s/submissions", code), partyhttp.SubmitRequest{
		PlayerID:       created.Host.PlayerID,
		ValuationCents: 1000,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("submit: expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	rr = doJSON(t, server, http.MethodPost, "/v1/parties/"+code+"/end", partyhttp.EndPartyRequest{
		HostToken: created.HostToken,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("end: expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, server, http.MethodPost, fmt.Sprintf("/v1/parties/%s/submissions", code), partyhttp.SubmitRequest{
		PlayerID:       created.Host.PlayerID,
		ValuationCents: 2000,
	})
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 after end, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestSettlementBeforeEndReturns404(t *testing.T) {
	server := newPartyTestServer()
	created := createPartyOverHTTP(t, server, 1000)

	rr := doJSON(t, server, http.MethodGet, "/v1/parties/"+created.Party.Code+"/settlement", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before end, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	server := newPartyTestServer()

	req := httptest.NewRequest(http.MethodOptions, "/v1/parties", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("expected allowed origin echoed, got %q", got)
	}
}

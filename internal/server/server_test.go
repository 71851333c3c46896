package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/mohitc/banking-ledger/internal/events"
	"github.com/mohitc/banking-ledger/internal/models"
	"github.com/mohitc/banking-ledger/internal/storage/memory"
	"github.com/mohitc/banking-ledger/internal/transfer"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store := memory.NewStore()
	dir := memory.NewDirectory()
	dir.Seed(
		models.Account{ID: "acc-a", OwnerID: "user-a", Currency: "INR", Status: models.AccountActive},
		models.Account{ID: "acc-b", OwnerID: "user-b", Currency: "INR", Status: models.AccountActive},
	)

	// Opening balance for acc-a.
	tx := models.NewTransaction("treasury", "acc-a", decimal.NewFromInt(100), "fund-acc-a")
	debit, credit := models.NewEntryPair(tx)
	if err := store.CommitTransfer(context.Background(), tx, debit, credit); err != nil {
		t.Fatalf("fund: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	coordinator := transfer.NewCoordinator(store, dir, events.NopPublisher{}, logger)
	return New(coordinator, logger)
}

func doTransfer(t *testing.T, s *Server, key string, amount int64) *http.Response {
	t.Helper()
	body, _ := json.Marshal(map[string]any{
		"from_account": "acc-a",
		"to_account":   "acc-b",
		"amount":       amount,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/transfers", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "user-a")
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	resp, err := s.App().Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	return resp
}

func TestCreateTransferEndpoint(t *testing.T) {
	s := newTestServer(t)

	resp := doTransfer(t, s, "key-1", 40)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status=%d want=201", resp.StatusCode)
	}

	var created struct {
		Transaction models.Transaction `json:"transaction"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatal(err)
	}
	if created.Transaction.Status != models.StatusCompleted {
		t.Fatalf("status=%s want=COMPLETED", created.Transaction.Status)
	}

	// Same key again replays with 200 and the idempotency marker.
	replay := doTransfer(t, s, "key-1", 40)
	if replay.StatusCode != http.StatusOK {
		t.Fatalf("replay status=%d want=200", replay.StatusCode)
	}
	if replay.Header.Get("X-Idempotency-Hit") != "true" {
		t.Fatal("missing X-Idempotency-Hit header on replay")
	}
	var replayed struct {
		Transaction models.Transaction `json:"transaction"`
	}
	if err := json.NewDecoder(replay.Body).Decode(&replayed); err != nil {
		t.Fatal(err)
	}
	if replayed.Transaction.ID != created.Transaction.ID {
		t.Fatalf("replay id=%s want=%s", replayed.Transaction.ID, created.Transaction.ID)
	}
}

func TestCreateTransferRejectsBadRequests(t *testing.T) {
	s := newTestServer(t)

	cases := []struct {
		name   string
		key    string
		amount int64
		want   int
	}{
		{"missing key", "", 40, http.StatusBadRequest},
		{"negative amount", "key-neg", -1, http.StatusBadRequest},
		{"insufficient funds", "key-big", 5000, http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := doTransfer(t, s, tc.key, tc.amount)
			if resp.StatusCode != tc.want {
				t.Fatalf("status=%d want=%d", resp.StatusCode, tc.want)
			}
		})
	}
}

func TestRequiresCallerIdentity(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/accounts/acc-a/balance", nil)
	resp, err := s.App().Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status=%d want=401", resp.StatusCode)
	}
}

func TestBalanceEndpoint(t *testing.T) {
	s := newTestServer(t)
	doTransfer(t, s, "key-1", 40)

	req := httptest.NewRequest(http.MethodGet, "/api/accounts/acc-a/balance", nil)
	req.Header.Set("X-User-ID", "user-a")
	resp, err := s.App().Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d want=200", resp.StatusCode)
	}

	var body struct {
		AccountID string          `json:"account_id"`
		Balance   decimal.Decimal `json:"balance"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if !body.Balance.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("balance=%s want=60", body.Balance)
	}

	// Someone else's account reads as not found.
	req = httptest.NewRequest(http.MethodGet, "/api/accounts/acc-a/balance", nil)
	req.Header.Set("X-User-ID", "user-b")
	resp, err = s.App().Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status=%d want=404", resp.StatusCode)
	}
}

func TestLedgerEndpointRunningBalance(t *testing.T) {
	s := newTestServer(t)
	doTransfer(t, s, "key-1", 40)

	url := "/api/ledger/acc-a?order=asc&running_balance=true"
	req := httptest.NewRequest(http.MethodGet, url, nil)
	req.Header.Set("X-User-ID", "user-a")
	resp, err := s.App().Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d want=200", resp.StatusCode)
	}

	var page struct {
		AccountID string `json:"account_id"`
		Entries   []struct {
			Direction      models.EntryDirection `json:"direction"`
			RunningBalance decimal.Decimal       `json:"running_balance"`
		} `json:"entries"`
		Total int `json:"total"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		t.Fatal(err)
	}
	if page.Total != 2 || len(page.Entries) != 2 {
		t.Fatalf("page=%+v want 2 entries", page)
	}
	if !page.Entries[0].RunningBalance.Equal(decimal.NewFromInt(100)) ||
		!page.Entries[1].RunningBalance.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("running balances=%+v want 100 then 60", page.Entries)
	}
}

func TestHistoryEndpoint(t *testing.T) {
	s := newTestServer(t)
	for i := 0; i < 3; i++ {
		doTransfer(t, s, fmt.Sprintf("key-%d", i), 10)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/transactions?limit=2&page=1", nil)
	req.Header.Set("X-User-ID", "user-a")
	resp, err := s.App().Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d want=200", resp.StatusCode)
	}

	var page struct {
		Transactions []models.Transaction `json:"transactions"`
		Total        int                  `json:"total"`
		Pages        int                  `json:"pages"`
		HasMore      bool                 `json:"has_more"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		t.Fatal(err)
	}
	// Three transfers plus the opening funding transaction.
	if page.Total != 4 || page.Pages != 2 || !page.HasMore || len(page.Transactions) != 2 {
		t.Fatalf("page meta wrong: %+v", page)
	}
}

func TestHistoryStatusFilter(t *testing.T) {
	s := newTestServer(t)
	doTransfer(t, s, "key-1", 10)

	// A typo'd filter is rejected, not answered with an empty page.
	req := httptest.NewRequest(http.MethodGet, "/api/transactions?status=COMPLETE", nil)
	req.Header.Set("X-User-ID", "user-a")
	resp, err := s.App().Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown status filter: status=%d want=400", resp.StatusCode)
	}

	// A known status that matches nothing is a legitimate empty page.
	req = httptest.NewRequest(http.MethodGet, "/api/transactions?status=REVERSED", nil)
	req.Header.Set("X-User-ID", "user-a")
	resp, err = s.App().Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("known status filter: status=%d want=200", resp.StatusCode)
	}
	var page struct {
		Total int `json:"total"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		t.Fatal(err)
	}
	if page.Total != 0 {
		t.Fatalf("total=%d want=0", page.Total)
	}
}

func TestReverseEndpoint(t *testing.T) {
	s := newTestServer(t)

	resp := doTransfer(t, s, "key-1", 40)
	var created struct {
		Transaction models.Transaction `json:"transaction"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatal(err)
	}

	url := "/api/transfers/" + created.Transaction.ID + "/reverse"
	req := httptest.NewRequest(http.MethodPost, url, nil)
	req.Header.Set("X-User-ID", "user-a")
	reverseResp, err := s.App().Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if reverseResp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d want=200", reverseResp.StatusCode)
	}

	var reversed struct {
		Transaction models.Transaction `json:"transaction"`
	}
	if err := json.NewDecoder(reverseResp.Body).Decode(&reversed); err != nil {
		t.Fatal(err)
	}
	if reversed.Transaction.Status != models.StatusReversed {
		t.Fatalf("status=%s want=REVERSED", reversed.Transaction.Status)
	}
}

package ledger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

const pageJSON = `{
  "_embedded": {
    "records": [
      {"hash": "aa", "ledger": 11, "successful": true, "result_meta_xdr": "AAAA", "created_at": "2024-05-01T10:00:00Z"},
      {"hash": "bb", "ledger": 12, "successful": false}
    ]
  }
}`

func TestClient_Transactions_ContractEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/contracts/CABC/transactions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("order") != "asc" || q.Get("limit") != "200" || q.Get("cursor") != "10" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(pageJSON))
	}))
	defer server.Close()

	c := NewClient(server.URL, 5*time.Second, 0)
	txs, err := c.Transactions(context.Background(), "CABC", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(txs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(txs))
	}

	first := txs[0]
	if first.Hash != "aa" || first.LedgerSeq != 11 || !first.Successful || first.ResultMetaXDR != "AAAA" {
		t.Errorf("unexpected first record: %+v", first)
	}
	want := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	if first.CreatedAt == nil || !first.CreatedAt.Equal(want) {
		t.Errorf("unexpected created_at: %v", first.CreatedAt)
	}
	if txs[1].CreatedAt != nil || txs[1].Successful {
		t.Errorf("unexpected second record: %+v", txs[1])
	}
}

func TestClient_Transactions_FallbackOn404(t *testing.T) {
	var contractCalls, accountCalls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/contracts/GABC/transactions":
			contractCalls.Add(1)
			http.NotFound(w, r)
		case "/accounts/GABC/transactions":
			accountCalls.Add(1)
			if r.URL.Query().Get("cursor") != "7" {
				t.Errorf("fallback must keep query params, got %s", r.URL.RawQuery)
			}
			_, _ = w.Write([]byte(pageJSON))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	c := NewClient(server.URL+"/", 5*time.Second, 200)
	txs, err := c.Transactions(context.Background(), "GABC", 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(txs) != 2 {
		t.Errorf("expected 2 records, got %d", len(txs))
	}
	if contractCalls.Load() != 1 || accountCalls.Load() != 1 {
		t.Errorf("expected one call each, got contract=%d account=%d", contractCalls.Load(), accountCalls.Load())
	}
}

func TestClient_Transactions_FallbackAlso404(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer server.Close()

	c := NewClient(server.URL, 5*time.Second, 200)
	_, err := c.Transactions(context.Background(), "GABC", 0)
	if !IsNotFound(err) {
		t.Fatalf("expected not found error, got %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("expected exactly 2 calls, got %d", calls.Load())
	}
}

func TestClient_Transactions_OtherStatusIsError(t *testing.T) {
	tests := []int{http.StatusInternalServerError, http.StatusTooManyRequests, http.StatusBadRequest}

	for _, code := range tests {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(code)
		}))

		c := NewClient(server.URL, 5*time.Second, 200)
		_, err := c.Transactions(context.Background(), "CABC", 0)
		server.Close()

		if err == nil {
			t.Errorf("status %d: expected error", code)
			continue
		}
		if IsNotFound(err) {
			t.Errorf("status %d: must not be treated as not found", code)
		}
		if calls.Load() != 1 {
			t.Errorf("status %d: expected no fallback, got %d calls", code, calls.Load())
		}
	}
}

func TestClient_Transactions_EmptyRecords(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"_embedded":{"records":[]}}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, 5*time.Second, 200)
	txs, err := c.Transactions(context.Background(), "CABC", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(txs) != 0 {
		t.Errorf("expected no records, got %d", len(txs))
	}
}

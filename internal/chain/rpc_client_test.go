package chain

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"treasury-charts/internal/domain"
)

// rpcServer answers every request with the given result or error object.
func rpcServer(t *testing.T, wantMethod string, result interface{}, rpcErr *RPCError) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}
		if req.Method != wantMethod {
			t.Errorf("expected method %s, got %s", wantMethod, req.Method)
		}

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
		}
		if rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestHTTPClient_TreasuryEvents(t *testing.T) {
	server := rpcServer(t, MethodTreasuryEvents, map[string]interface{}{
		"reservesAdded":    []float64{10, 5},
		"yamsSold":         []float64{100, 80},
		"yamsFromReserves": []float64{20, 10},
		"yamsToReserves":   []float64{5, 5},
		"blockNumbers":     []int64{1, 2},
		"blockTimes":       []int64{1000, 2000},
	}, nil)
	defer server.Close()

	client := NewHTTPClient(server.URL)
	snap, err := client.TreasuryEvents(context.Background())
	if err != nil {
		t.Fatalf("TreasuryEvents: %v", err)
	}

	if snap.Len() != 2 {
		t.Fatalf("expected 2 events, got %d", snap.Len())
	}
	if snap.YamsSold[1] != 80 {
		t.Errorf("expected yamsSold[1]=80, got %f", snap.YamsSold[1])
	}
	if snap.BlockTimes[0] != 1000 {
		t.Errorf("expected blockTimes[0]=1000, got %d", snap.BlockTimes[0])
	}
}

func TestHTTPClient_TreasuryEvents_Misaligned(t *testing.T) {
	server := rpcServer(t, MethodTreasuryEvents, map[string]interface{}{
		"reservesAdded":    []float64{10},
		"yamsSold":         []float64{100, 80},
		"yamsFromReserves": []float64{20, 10},
		"yamsToReserves":   []float64{5, 5},
		"blockNumbers":     []int64{1, 2},
		"blockTimes":       []int64{1000, 2000},
	}, nil)
	defer server.Close()

	client := NewHTTPClient(server.URL)
	_, err := client.TreasuryEvents(context.Background())
	if !errors.Is(err, domain.ErrMisalignedSnapshot) {
		t.Fatalf("expected ErrMisalignedSnapshot, got %v", err)
	}
}

func TestHTTPClient_ScalingFactors(t *testing.T) {
	server := rpcServer(t, MethodScalingFactors, map[string]interface{}{
		"factors":      []float64{1.0, 1.05, 1.1},
		"blockNumbers": []int64{100, 200, 300},
		"blockTimes":   []int64{10, 20, 30},
	}, nil)
	defer server.Close()

	client := NewHTTPClient(server.URL)
	h, err := client.ScalingFactors(context.Background())
	if err != nil {
		t.Fatalf("ScalingFactors: %v", err)
	}
	if h.Len() != 3 {
		t.Errorf("expected 3 factors, got %d", h.Len())
	}
	if h.Factors[1] != 1.05 {
		t.Errorf("expected 1.05, got %f", h.Factors[1])
	}
}

func TestHTTPClient_CurrentBlock(t *testing.T) {
	server := rpcServer(t, MethodBlockNumber, "0xa9e3a1", nil)
	defer server.Close()

	client := NewHTTPClient(server.URL)
	block, err := client.CurrentBlock(context.Background())
	if err != nil {
		t.Fatalf("CurrentBlock: %v", err)
	}
	if block != 0xa9e3a1 {
		t.Errorf("expected %d, got %d", 0xa9e3a1, block)
	}
}

func TestHTTPClient_TreasuryBalances_NullRewards(t *testing.T) {
	server := rpcServer(t, MethodTreasuryBalances, map[string]interface{}{
		"yusd":           1896995.0,
		"weth":           555.0,
		"dpi":            3351.0,
		"indexLpRewards": nil,
		"sushiRewards":   12.5,
	}, nil)
	defer server.Close()

	client := NewHTTPClient(server.URL)
	b, err := client.TreasuryBalances(context.Background())
	if err != nil {
		t.Fatalf("TreasuryBalances: %v", err)
	}
	if b.IndexLPRewards != 0 {
		t.Errorf("expected null rewards to decode as 0, got %f", b.IndexLPRewards)
	}
	if b.SushiRewards != 12.5 {
		t.Errorf("expected 12.5 sushi rewards, got %f", b.SushiRewards)
	}
	if !b.Complete() {
		t.Error("expected balances to be complete")
	}
}

func TestHTTPClient_RPCErrorNotRetried(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"error":   map[string]interface{}{"code": -32000, "message": "execution reverted"},
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, WithRetryDelay(time.Millisecond))
	_, err := client.CurrentBlock(context.Background())

	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("expected RPCError, got %v", err)
	}
	if rpcErr.Code != -32000 {
		t.Errorf("expected code -32000, got %d", rpcErr.Code)
	}
	if hits.Load() != 1 {
		t.Errorf("expected 1 request, got %d", hits.Load())
	}
}

func TestHTTPClient_RetriesOnRateLimit(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  "0x10",
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, WithRetryDelay(time.Millisecond))
	block, err := client.CurrentBlock(context.Background())
	if err != nil {
		t.Fatalf("CurrentBlock: %v", err)
	}
	if block != 16 {
		t.Errorf("expected 16, got %d", block)
	}
	if hits.Load() != 3 {
		t.Errorf("expected 3 requests, got %d", hits.Load())
	}
}

func TestHTTPClient_NoRetries(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, WithMaxRetries(0))
	if _, err := client.CurrentBlock(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if hits.Load() != 1 {
		t.Errorf("expected 1 request, got %d", hits.Load())
	}
}

func TestHTTPClient_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewHTTPClient(server.URL, WithRetryDelay(time.Second))
	_, err := client.TreasuryEvents(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"0x0", 0, false},
		{"0x10", 16, false},
		{"0xA9E3A1", 11133857, false},
		{"", 0, true},
		{"0x", 0, true},
		{"0xzz", 0, true},
	}
	for _, tt := range tests {
		got, err := parseQuantity(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseQuantity(%q) err=%v, wantErr=%v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseQuantity(%q)=%d, want %d", tt.in, got, tt.want)
		}
	}
}

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"bandtest/internal/backtest"
	"bandtest/internal/config"
	"bandtest/internal/gather/mock"
	"bandtest/internal/store"
	"bandtest/internal/strategy"
	"bandtest/internal/strategy/builtins"
)

func newTestHandlers(t *testing.T) *Handlers {
	t.Helper()
	profiles, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "profiles.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { profiles.Close() })
	if err := profiles.SeedProfiles(context.Background(), mock.BuiltinProfiles()); err != nil {
		t.Fatalf("SeedProfiles: %v", err)
	}

	reg := strategy.NewRegistry()
	builtins.Register(reg)
	bt := backtest.NewBacktester(reg, nil, mock.NewSource(mock.DefaultSalt, profiles))

	defaults := config.Defaults().Backtest
	defaults.EndDate = "2023-03-31"
	return NewHandlers(bt, profiles, defaults, nil)
}

func postJSON(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestBacktestEndpoint(t *testing.T) {
	h := newTestHandlers(t).Handler()

	rec := postJSON(t, h, "/api/v1/backtest", `{"symbol":"300750"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp RunResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if _, err := uuid.Parse(resp.RunID); err != nil {
		t.Errorf("run_id %q is not a UUID: %v", resp.RunID, err)
	}
	if resp.Result == nil || resp.Result.Symbol != "300750" {
		t.Fatalf("result = %+v, want symbol 300750", resp.Result)
	}
	// 2023-01-01..2023-03-31 inclusive.
	if n := len(resp.Result.EquityCurve); n != 90 {
		t.Errorf("equity curve has %d points, want 90", n)
	}
	if resp.Summary.Symbol != "300750" || resp.Summary.Start != "2023-01-01" {
		t.Errorf("summary = %+v", resp.Summary)
	}
	if resp.Result.InitialCapital != 500000 || resp.Result.Period != 20 {
		t.Errorf("defaults not applied: %+v", resp.Result)
	}
}

func TestBacktestEndpointErrors(t *testing.T) {
	h := newTestHandlers(t).Handler()

	tests := []struct {
		name string
		body string
		want int
	}{
		{"bad json", `{"symbol":`, http.StatusBadRequest},
		{"unknown field", `{"symbl":"x"}`, http.StatusBadRequest},
		{"bad date", `{"start_date":"01/02/2023"}`, http.StatusBadRequest},
		{"inverted range", `{"start_date":"2023-02-01","end_date":"2023-01-01"}`, http.StatusBadRequest},
		{"zero capital", `{"initial_capital":0}`, http.StatusBadRequest},
		{"negative period", `{"period":-1}`, http.StatusBadRequest},
		{"period above cap", `{"period":20000}`, http.StatusBadRequest},
		{"range above cap", `{"start_date":"1900-01-01","end_date":"2100-01-01"}`, http.StatusBadRequest},
		{"unknown strategy", `{"strategy":"martingale"}`, http.StatusNotFound},
		{"unknown source", `{"source":"ftp"}`, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(t, h, "/api/v1/backtest", tt.body)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body.String())
			}
			var e ErrorResponse
			if err := json.NewDecoder(rec.Body).Decode(&e); err != nil || e.Error == "" {
				t.Errorf("error body = %+v, %v", e, err)
			}
		})
	}
}

func TestBarsEndpoint(t *testing.T) {
	h := newTestHandlers(t).Handler()

	rec := get(t, h, "/api/v1/bars?symbol=600519&start=2023-03-01&end=2023-03-10")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp BarsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	// Ten days plus the 50-day warm-up.
	if len(resp.Bars) != 60 {
		t.Errorf("got %d bars, want 60", len(resp.Bars))
	}
	if resp.Source != "mock" {
		t.Errorf("source = %q, want mock", resp.Source)
	}

	if rec := get(t, h, "/api/v1/bars?start=1900-01-01&end=2100-01-01"); rec.Code != http.StatusBadRequest {
		t.Errorf("bars over the range cap status = %d, want 400", rec.Code)
	}
	if rec := get(t, h, "/api/v1/bars?start=2023-03-10&end=2023-03-01"); rec.Code != http.StatusBadRequest {
		t.Errorf("inverted range status = %d, want 400", rec.Code)
	}
}

func TestListingEndpoints(t *testing.T) {
	h := newTestHandlers(t).Handler()

	var profiles ProfilesResponse
	rec := get(t, h, "/api/v1/profiles")
	if err := json.NewDecoder(rec.Body).Decode(&profiles); err != nil {
		t.Fatalf("decoding profiles: %v", err)
	}
	if len(profiles.Profiles) != 4 || profiles.Profiles[0].Symbol != "000001" {
		t.Errorf("profiles = %+v, want the 4 builtins sorted", profiles.Profiles)
	}

	var strategies StrategiesResponse
	rec = get(t, h, "/api/v1/strategies")
	if err := json.NewDecoder(rec.Body).Decode(&strategies); err != nil {
		t.Fatalf("decoding strategies: %v", err)
	}
	if len(strategies.Strategies) != 1 || strategies.Strategies[0] != builtins.BollingerReversionName {
		t.Errorf("strategies = %v", strategies.Strategies)
	}
	if len(strategies.Sources) != 1 || strategies.Sources[0] != "mock" {
		t.Errorf("sources = %v", strategies.Sources)
	}

	if rec := get(t, h, "/healthz"); rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	h := newTestHandlers(t).Handler()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/v1/backtest", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("OPTIONS status = %d, want 204", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}
}

func dialBufconn(t *testing.T, h *Handlers) *BacktestClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	gs := grpc.NewServer()
	NewGRPCServer(h).RegisterGRPC(gs)
	go gs.Serve(lis)
	t.Cleanup(gs.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("grpc.NewClient: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return NewBacktestClient(conn)
}

func TestGRPCRun(t *testing.T) {
	client := dialBufconn(t, newTestHandlers(t))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	period := 10
	resp, err := client.Run(ctx, RunRequest{Symbol: "000001", Period: &period})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if resp.Result == nil || resp.Result.Symbol != "000001" || resp.Result.Period != 10 {
		t.Fatalf("result = %+v", resp.Result)
	}
	if len(resp.Result.EquityCurve) != 90 {
		t.Errorf("equity curve has %d points, want 90", len(resp.Result.EquityCurve))
	}
	if resp.RunID == "" {
		t.Error("missing run_id")
	}

	// Same request over HTTP yields the same metrics.
	body, _ := json.Marshal(RunRequest{Symbol: "000001", Period: &period})
	rec := postJSON(t, newTestHandlers(t).Handler(), "/api/v1/backtest", string(body))
	var httpResp RunResponse
	if err := json.NewDecoder(bytes.NewReader(rec.Body.Bytes())).Decode(&httpResp); err != nil {
		t.Fatalf("decoding http response: %v", err)
	}
	if httpResp.Result.Metrics != resp.Result.Metrics {
		t.Errorf("grpc metrics %+v != http metrics %+v", resp.Result.Metrics, httpResp.Result.Metrics)
	}
}

func TestGRPCErrorCodes(t *testing.T) {
	client := dialBufconn(t, newTestHandlers(t))
	ctx := context.Background()

	zero := 0.0
	tests := []struct {
		name string
		req  RunRequest
		want codes.Code
	}{
		{"invalid range", RunRequest{StartDate: "2023-02-01", EndDate: "2023-01-01"}, codes.InvalidArgument},
		{"invalid capital", RunRequest{InitialCapital: &zero}, codes.InvalidArgument},
		{"unknown strategy", RunRequest{Strategy: "nope"}, codes.NotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.Run(ctx, tt.req)
			if got := status.Code(err); got != tt.want {
				t.Errorf("code = %v, want %v (err %v)", got, tt.want, err)
			}
		})
	}
}

func TestServerServeAndShutdown(t *testing.T) {
	h := newTestHandlers(t)
	srv := NewServer(config.Server{Host: "127.0.0.1", Port: 0, GRPCPort: 1}, h, nil)

	httpLis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	grpcLis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, httpLis, grpcLis) }()

	resp, err := http.Get("http://" + httpLis.Addr().String() + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz status = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve returned %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestErrorMapping(t *testing.T) {
	if got := httpStatus(context.DeadlineExceeded); got != http.StatusInternalServerError {
		t.Errorf("httpStatus(deadline) = %d, want 500", got)
	}
	if got := grpcCode(backtest.ErrUnknownSource); got != codes.NotFound {
		t.Errorf("grpcCode(unknown source) = %v, want NotFound", got)
	}
}

package us

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
)

type fakeClient struct {
	calls int
	fail  int // number of leading calls that fail
	req   marketdata.GetBarsRequest
	bars  map[string][]marketdata.Bar
}

func (f *fakeClient) GetMultiBars(_ []string, req marketdata.GetBarsRequest) (map[string][]marketdata.Bar, error) {
	f.calls++
	f.req = req
	if f.calls <= f.fail {
		return nil, errors.New("503 service unavailable")
	}
	return f.bars, nil
}

func TestAlpacaSourceName(t *testing.T) {
	s := NewAlpacaSource("key", "secret", "https://data.alpaca.markets", "iex", 200, 3)
	if got := s.Name(); got != "alpaca" {
		t.Errorf("AlpacaSource.Name() = %q, want %q", got, "alpaca")
	}
}

func TestAlpacaSourceBars(t *testing.T) {
	// Daily bars are stamped at midnight New York time.
	jan3 := time.Date(2024, 1, 3, 5, 0, 0, 0, time.UTC)
	jan2 := time.Date(2024, 1, 2, 5, 0, 0, 0, time.UTC)
	fc := &fakeClient{bars: map[string][]marketdata.Bar{
		"AAPL": {
			{Timestamp: jan3, Open: 184.2, High: 185.9, Low: 183.4, Close: 184.3, Volume: 58414460},
			{Timestamp: jan2, Open: 187.2, High: 188.4, Low: 183.9, Close: 185.6, Volume: 82488674},
		},
	}}
	s := newAlpacaSource(fc, "iex", 6000, 1)

	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
	bars, err := s.Bars(context.Background(), "aapl", start, end)
	if err != nil {
		t.Fatalf("Bars: %v", err)
	}

	if len(bars) != 2 {
		t.Fatalf("got %d bars, want 2", len(bars))
	}
	if !bars[0].Date.Equal(start) || bars[0].Close != 185.6 || bars[0].Symbol != "AAPL" {
		t.Errorf("bars[0] = %+v, want AAPL on 2024-01-02 closing 185.6", bars[0])
	}
	if bars[1].Volume != 58414460 {
		t.Errorf("bars[1].Volume = %d", bars[1].Volume)
	}

	if want := start.AddDate(0, 0, -50); !fc.req.Start.Equal(want) {
		t.Errorf("request start = %v, want warm-up start %v", fc.req.Start, want)
	}
	if want := end.AddDate(0, 0, 1); !fc.req.End.Equal(want) {
		t.Errorf("request end = %v, want %v", fc.req.End, want)
	}
	if fc.req.TimeFrame != marketdata.OneDay {
		t.Errorf("request timeframe = %v, want OneDay", fc.req.TimeFrame)
	}
}

func TestAlpacaSourceRetries(t *testing.T) {
	fc := &fakeClient{fail: 1, bars: map[string][]marketdata.Bar{}}
	s := newAlpacaSource(fc, "iex", 6000, 2)
	s.baseDelay = time.Millisecond

	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	bars, err := s.Bars(context.Background(), "MSFT", day, day)
	if err != nil {
		t.Fatalf("Bars: %v", err)
	}
	if len(bars) != 0 || fc.calls != 2 {
		t.Errorf("got %d bars after %d calls, want 0 after 2", len(bars), fc.calls)
	}
}

func TestAlpacaSourceGivesUp(t *testing.T) {
	fc := &fakeClient{fail: 5}
	s := newAlpacaSource(fc, "iex", 6000, 2)
	s.baseDelay = time.Millisecond

	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	if _, err := s.Bars(context.Background(), "MSFT", day, day); err == nil {
		t.Fatal("Bars should fail after exhausting retries")
	}
	if fc.calls != 2 {
		t.Errorf("calls = %d, want 2", fc.calls)
	}
}

// Package manual decodes bars pasted or exported by hand as a JSON array of
// {date, open, close, high, low, volume} objects.
package manual

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"
	"time"

	"bandtest/internal/domain"
	"bandtest/internal/gather"
	"bandtest/internal/util"
)

// Compile-time interface check.
var _ gather.BarSource = (*Source)(nil)

// compactLayout is the date format used by exchange data vendors, e.g. 20230103.
const compactLayout = "20060102"

// record is one element of the JSON array. Volume may be fractional in
// vendor exports.
type record struct {
	Date   string   `json:"date"`
	Open   *float64 `json:"open"`
	Close  *float64 `json:"close"`
	High   *float64 `json:"high"`
	Low    *float64 `json:"low"`
	Volume *float64 `json:"volume"`
}

// ParseDate accepts YYYY-MM-DD or compact YYYYMMDD.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) == len(compactLayout) && !strings.Contains(s, "-") {
		return time.Parse(compactLayout, s)
	}
	return util.ParseDate(s)
}

// Decode reads a JSON array of bars for symbol. Bars are returned in
// ascending date order whatever order the input used; vendors often list
// the newest day first. Missing or invalid fields fail with ErrMalformedBar.
func Decode(r io.Reader, symbol string) ([]domain.Bar, error) {
	var records []record
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, domain.NewFieldError(domain.ErrMalformedBar, "json", err.Error())
	}

	bars := make([]domain.Bar, 0, len(records))
	for i, rec := range records {
		b, err := rec.toBar(symbol)
		if err != nil {
			if fe, ok := err.(*domain.FieldError); ok {
				fe.Index = i
			}
			return nil, err
		}
		bars = append(bars, b)
	}

	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	if err := domain.ValidateBars(bars); err != nil {
		return nil, err
	}
	return bars, nil
}

func (rec record) toBar(symbol string) (domain.Bar, error) {
	date, err := ParseDate(rec.Date)
	if err != nil {
		return domain.Bar{}, domain.NewFieldError(domain.ErrMalformedBar, "date", rec.Date)
	}

	fields := []struct {
		name string
		v    *float64
	}{
		{"open", rec.Open}, {"close", rec.Close}, {"high", rec.High}, {"low", rec.Low}, {"volume", rec.Volume},
	}
	for _, f := range fields {
		if f.v == nil {
			return domain.Bar{}, domain.NewFieldError(domain.ErrMalformedBar, f.name, nil)
		}
	}
	vol := *rec.Volume
	if math.IsNaN(vol) || math.IsInf(vol, 0) || vol < 0 {
		return domain.Bar{}, domain.NewFieldError(domain.ErrMalformedBar, "volume", vol)
	}

	return domain.Bar{
		Symbol: symbol,
		Date:   date,
		Open:   *rec.Open,
		High:   *rec.High,
		Low:    *rec.Low,
		Close:  *rec.Close,
		Volume: int64(math.Round(vol)),
	}, nil
}

// DecodeFile decodes the JSON file at path.
func DecodeFile(path, symbol string) ([]domain.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	bars, err := Decode(f, symbol)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return bars, nil
}

// Source serves bars decoded from a single JSON file as a gather.BarSource,
// so a hand-made file can be fed through an Importer. It answers for every
// symbol with the file's bars clipped to the warm-up range.
type Source struct {
	path string
}

// NewSource creates a Source reading path on every call.
func NewSource(path string) *Source {
	return &Source{path: path}
}

// Name returns "manual".
func (s *Source) Name() string { return "manual" }

// Bars decodes the file and keeps the bars within [start - WarmupDays, end].
func (s *Source) Bars(_ context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	bars, err := DecodeFile(s.path, symbol)
	if err != nil {
		return nil, err
	}
	r := gather.DateRange{Start: start, End: end}.WithWarmup()
	out := bars[:0]
	for _, b := range bars {
		if !b.Date.Before(r.Start) && !b.Date.After(r.End) {
			out = append(out, b)
		}
	}
	return out, nil
}

package models

import (
	"math"
	"testing"
	"time"

	"github.com/lox/vocmax/internal/pverr"
)

func hourly(n int, start time.Time) []WeatherRecord {
	recs := make([]WeatherRecord, n)
	for i := range recs {
		recs[i] = WeatherRecord{Time: start.Add(time.Duration(i) * time.Hour)}
	}
	return recs
}

func TestValidate(t *testing.T) {
	start := time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		records []WeatherRecord
		wantErr bool
	}{
		{"uniform hourly", hourly(48, start), false},
		{"single record", hourly(1, start), false},
		{"empty", nil, true},
		{
			name: "duplicate timestamp",
			records: []WeatherRecord{
				{Time: start}, {Time: start.Add(time.Hour)}, {Time: start.Add(time.Hour)},
			},
			wantErr: true,
		},
		{
			name: "gap",
			records: []WeatherRecord{
				{Time: start}, {Time: start.Add(time.Hour)}, {Time: start.Add(3 * time.Hour)},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &WeatherSeries{Records: tt.records}
			err := s.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !pverr.IsConfiguration(err) {
				t.Errorf("expected ConfigurationError, got %T", err)
			}
		})
	}
}

func TestDerivedIntervalAndDuration(t *testing.T) {
	start := time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)
	recs := make([]WeatherRecord, 2*17520)
	for i := range recs {
		recs[i] = WeatherRecord{Time: start.Add(time.Duration(i) * 30 * time.Minute)}
	}
	s := &WeatherSeries{Records: recs}

	if got := s.IntervalHours(); got != 0.5 {
		t.Errorf("IntervalHours() = %v, want 0.5", got)
	}
	if got := s.DurationYears(); math.Abs(got-2*8760/8766.0) > 1e-9 {
		t.Errorf("DurationYears() = %v", got)
	}

	s.Site.IntervalHours = 1
	s.Site.DurationYears = 18
	if s.IntervalHours() != 1 || s.DurationYears() != 18 {
		t.Error("site metadata should take precedence")
	}

	years := s.Years()
	if len(years) != 2 || years[0] != 2019 || years[1] != 2020 {
		t.Errorf("Years() = %v, want [2019 2020]", years)
	}
}

func TestRecordMissing(t *testing.T) {
	r := WeatherRecord{GHI: 100}
	if r.Missing() {
		t.Error("complete record reported missing")
	}
	r.TempAir = math.NaN()
	if !r.Missing() {
		t.Error("NaN temperature not reported missing")
	}
	if (WeatherRecord{DNI: -1}).Negative() != true {
		t.Error("negative DNI not detected")
	}
}

package nsrdb

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"
)

const sample = `Source,Location ID,City,State,Country,Latitude,Longitude,Time Zone,Elevation,Local Time Zone
NSRDB,1000030,-,-,-,43.77,-82.98,-5,177,-5
Year,Month,Day,Hour,Minute,DNI,DHI,GHI,Temperature,Wind Speed,Surface Albedo
1998,1,1,0,0,0,0,0,-3.1,5.2,0.87
1998,1,1,0,30,0,0,0,-3.4,5.0,0.87
1998,1,1,1,0,0,0,,-3.6,4.8,0.87
1998,1,1,1,30,0,0,0,-3.9,4.9,0.87
`

func TestParse(t *testing.T) {
	ws, err := Parse(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(ws.Records) != 4 {
		t.Fatalf("got %d records, want 4", len(ws.Records))
	}

	site := ws.Site
	if site.LocationID != 1000030 || site.Latitude != 43.77 || site.Longitude != -82.98 {
		t.Errorf("unexpected site %+v", site)
	}
	if site.UTCOffset != -5 || site.Elevation != 177 || site.Source != "nsrdb" {
		t.Errorf("unexpected metadata %+v", site)
	}
	if site.IntervalHours != 0.5 {
		t.Errorf("IntervalHours = %v, want 0.5", site.IntervalHours)
	}

	first := ws.Records[0]
	if _, off := first.Time.Zone(); off != -5*3600 {
		t.Errorf("zone offset = %d, want -18000", off)
	}
	want := time.Date(1998, 1, 1, 5, 0, 0, 0, time.UTC)
	if !first.Time.Equal(want) {
		t.Errorf("first time = %v, want %v", first.Time, want)
	}
	if first.TempAir != -3.1 || first.WindSpeed != 5.2 {
		t.Errorf("unexpected first record %+v", first)
	}
	if !math.IsNaN(ws.Records[2].GHI) {
		t.Error("blank GHI should be NaN")
	}
	if err := ws.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"no latitude", "Source,Longitude\nNSRDB,1\nYear\n"},
		{"missing column", "Latitude,Longitude\n1,2\nYear,Month,Day,Hour,Minute,DNI,DHI,GHI,Temperature\n"},
		{"bad year", "Latitude,Longitude\n1,2\nYear,Month,Day,Hour,Minute,DNI,DHI,GHI,Temperature,Wind Speed\nx,1,1,0,0,0,0,0,0,0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(strings.NewReader(tt.input)); err == nil {
				t.Error("expected error")
			}
		})
	}

	_, err := Parse(strings.NewReader("Latitude,Longitude\n1,2\nYear,Month,Day,Hour,Minute,DNI,DHI,GHI,Temperature,Wind Speed\n"))
	if !errors.Is(err, ErrNoRecords) {
		t.Errorf("err = %v, want ErrNoRecords", err)
	}
}

func TestParseKey(t *testing.T) {
	tests := []struct {
		key     string
		id      int64
		lat     float64
		lon     float64
		wantErr bool
	}{
		{key: "1000030_43.77_-82.98.csv", id: 1000030, lat: 43.77, lon: -82.98},
		{key: "weather/77_-33.85_151.21.csv.gz", id: 77, lat: -33.85, lon: 151.21},
		{key: "1000030_43.77_-82.98.npz", wantErr: true},
		{key: "abc_1_2.csv", wantErr: true},
		{key: "1_95_2.csv", wantErr: true},
		{key: "1_2.csv", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			s, err := ParseKey(tt.key)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseKey error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if s.LocationID != tt.id || s.Latitude != tt.lat || s.Longitude != tt.lon || s.ObjectKey != tt.key {
				t.Errorf("ParseKey = %+v", s)
			}
		})
	}
}

func TestIndexNearest(t *testing.T) {
	ix, skipped := NewIndex([]string{
		"3_-37.81_144.96.csv",
		"1_40.71_-74.01.csv",
		"readme.txt",
		"2_51.51_-0.13.csv",
	})
	if ix.Len() != 3 || len(skipped) != 1 {
		t.Fatalf("Len = %d, skipped = %v", ix.Len(), skipped)
	}
	if ix.Sites()[0].LocationID != 1 {
		t.Error("sites should be ordered by location id")
	}

	s, d, ok := ix.Nearest(-37.7, 145.1)
	if !ok || s.LocationID != 3 {
		t.Fatalf("Nearest = %+v, %v", s, ok)
	}
	if d > 20 {
		t.Errorf("distance = %.1f km, want < 20", d)
	}

	if _, _, ok := FromSites(nil).Nearest(0, 0); ok {
		t.Error("empty index should not match")
	}
}

package nsrdb

import (
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/lox/vocmax/internal/geo"
	"github.com/lox/vocmax/internal/models"
)

// Extensions accepted for weather objects.
var objectExtensions = []string{".csv.gz", ".csv"}

// ParseKey extracts the site from an object key of the form
// "<location_id>_<lat>_<lon>.csv", optionally under a prefix.
func ParseKey(key string) (models.Site, error) {
	base := path.Base(key)
	stem := ""
	for _, ext := range objectExtensions {
		if strings.HasSuffix(base, ext) {
			stem = strings.TrimSuffix(base, ext)
			break
		}
	}
	if stem == "" {
		return models.Site{}, fmt.Errorf("key %q: not a weather file", key)
	}
	parts := strings.Split(stem, "_")
	if len(parts) != 3 {
		return models.Site{}, fmt.Errorf("key %q: want <id>_<lat>_<lon>", key)
	}
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return models.Site{}, fmt.Errorf("key %q: location id: %w", key, err)
	}
	lat, err := strconv.ParseFloat(parts[1], 64)
	if err != nil || lat < -90 || lat > 90 {
		return models.Site{}, fmt.Errorf("key %q: bad latitude %q", key, parts[1])
	}
	lon, err := strconv.ParseFloat(parts[2], 64)
	if err != nil || lon < -180 || lon > 180 {
		return models.Site{}, fmt.Errorf("key %q: bad longitude %q", key, parts[2])
	}
	return models.Site{
		LocationID: id,
		Latitude:   lat,
		Longitude:  lon,
		Source:     "nsrdb",
		ObjectKey:  key,
	}, nil
}

// Index is an immutable set of sites searchable by location.
type Index struct {
	sites []models.Site
}

// NewIndex builds an index from object keys. Keys that do not name a
// weather file are skipped and returned so callers can log them.
func NewIndex(keys []string) (*Index, []string) {
	var skipped []string
	sites := make([]models.Site, 0, len(keys))
	for _, k := range keys {
		s, err := ParseKey(k)
		if err != nil {
			skipped = append(skipped, k)
			continue
		}
		sites = append(sites, s)
	}
	return FromSites(sites), skipped
}

// FromSites indexes sites already parsed, ordered by location id.
func FromSites(sites []models.Site) *Index {
	out := append([]models.Site(nil), sites...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].LocationID < out[j].LocationID })
	return &Index{sites: out}
}

// Nearest returns the site closest to the point and its distance in km.
func (ix *Index) Nearest(lat, lon float64) (models.Site, float64, bool) {
	i, d := geo.Nearest(lat, lon, len(ix.sites), func(i int) (float64, float64) {
		return ix.sites[i].Latitude, ix.sites[i].Longitude
	})
	if i < 0 {
		return models.Site{}, 0, false
	}
	return ix.sites[i], d, true
}

// Sites returns a copy of the indexed sites.
func (ix *Index) Sites() []models.Site {
	return append([]models.Site(nil), ix.sites...)
}

func (ix *Index) Len() int { return len(ix.sites) }

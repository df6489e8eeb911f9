package pvmodule

import (
	_ "embed"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"unicode"
)

//go:embed data/cec_modules.csv
var builtinCatalog string

// Catalog is an immutable set of CEC modules keyed by normalised name.
type Catalog struct {
	modules map[string]CEC
	names   []string
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
	defaultErr     error
)

// DefaultCatalog returns the embedded module library, parsed on first use.
func DefaultCatalog() (*Catalog, error) {
	defaultOnce.Do(func() {
		defaultCatalog, defaultErr = ReadCatalog(strings.NewReader(builtinCatalog))
	})
	return defaultCatalog, defaultErr
}

// Key normalises a module name the way SAM library names are indexed:
// every run of non-alphanumeric characters becomes an underscore.
func Key(name string) string {
	var b strings.Builder
	sep := false
	for _, r := range strings.TrimSpace(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			sep = false
			continue
		}
		if !sep {
			b.WriteByte('_')
			sep = true
		}
	}
	return b.String()
}

// ReadCatalog parses a SAM CEC module CSV: a header row, a units row and a
// SAM field-name row, then one module per line.
func ReadCatalog(r io.Reader) (*Catalog, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.TrimSpace(h)] = i
	}
	for _, required := range []string{"Name", "N_s", "a_ref", "I_L_ref", "I_o_ref", "R_sh_ref", "R_s"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("missing column %q", required)
		}
	}
	for i := 0; i < 2; i++ {
		if _, err := cr.Read(); err != nil {
			return nil, fmt.Errorf("read units rows: %w", err)
		}
	}

	cat := &Catalog{modules: make(map[string]CEC)}
	line := 3
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		m, err := parseModule(rec, col)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		key := Key(m.Name)
		if _, dup := cat.modules[key]; !dup {
			cat.names = append(cat.names, key)
		}
		cat.modules[key] = m
	}
	sort.Strings(cat.names)
	return cat, nil
}

func parseModule(rec []string, col map[string]int) (CEC, error) {
	str := func(name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}
	var parseErr error
	num := func(name string) float64 {
		s := str(name)
		if s == "" {
			return 0
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil && parseErr == nil {
			parseErr = fmt.Errorf("%s: %w", name, err)
		}
		return v
	}

	m := CEC{
		Common: Common{
			Name:          str("Name"),
			CellsInSeries: int(num("N_s")),
			FD:            1,
			Bifacial:      Bifacial{IsBifacial: str("Bifacial") == "1"},
		},
		Manufacturer: str("Manufacturer"),
		Technology:   str("Technology"),
		AlphaSC:      num("alpha_sc"),
		ARef:         num("a_ref"),
		ILRef:        num("I_L_ref"),
		IORef:        num("I_o_ref"),
		RShRef:       num("R_sh_ref"),
		RS:           num("R_s"),
		Adjust:       num("Adjust"),
		VocRef:       num("V_oc_ref"),
		IscRef:       num("I_sc_ref"),
		VmpRef:       num("V_mp_ref"),
		ImpRef:       num("I_mp_ref"),
		BetaOC:       num("beta_oc"),
		Area:         num("A_c"),
		STC:          num("STC"),
	}
	if parseErr != nil {
		return CEC{}, parseErr
	}
	if m.Name == "" {
		return CEC{}, fmt.Errorf("empty module name")
	}
	return m, nil
}

// Lookup finds a module by display name or normalised key.
func (c *Catalog) Lookup(name string) (CEC, bool) {
	m, ok := c.modules[Key(name)]
	return m, ok
}

// Names returns normalised module keys in sorted order.
func (c *Catalog) Names() []string {
	return append([]string(nil), c.names...)
}

// Len returns the number of modules.
func (c *Catalog) Len() int { return len(c.modules) }

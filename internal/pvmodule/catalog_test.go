package pvmodule

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Canadian Solar Inc. CS5P-220M", "Canadian_Solar_Inc_CS5P_220M"},
		{"Canadian_Solar_Inc__CS5P_220M", "Canadian_Solar_Inc_CS5P_220M"},
		{"  Generic Mono 72-cell 400W ", "Generic_Mono_72_cell_400W"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Key(tt.in))
	}
}

func TestDefaultCatalog(t *testing.T) {
	cat, err := DefaultCatalog()
	require.NoError(t, err)
	assert.Equal(t, 4, cat.Len())

	again, _ := DefaultCatalog()
	assert.Same(t, cat, again, "catalog loads once")

	names := cat.Names()
	assert.IsIncreasing(t, names)

	bi, ok := cat.Lookup("Generic_Bifacial_144HC_540W")
	require.True(t, ok)
	assert.True(t, bi.IsBifacial)
	assert.Equal(t, 72, bi.CellsInSeries)
	assert.Equal(t, 1.0, bi.FD)

	_, ok = cat.Lookup("nope")
	assert.False(t, ok)

	for _, name := range names {
		m, _ := cat.Lookup(name)
		require.NoError(t, m.Validate(), name)
		v, err := m.Voc(1000, 25)
		require.NoError(t, err)
		assert.InDelta(t, m.VocRef, v, 0.5, name)
	}
}

func TestReadCatalogErrors(t *testing.T) {
	_, err := ReadCatalog(strings.NewReader("Name,N_s\nunits\nfields\n"))
	assert.ErrorContains(t, err, "missing column")

	csv := "Name,N_s,a_ref,I_L_ref,I_o_ref,R_sh_ref,R_s\n,,,,,,\n,,,,,,\nX,abc,1,1,1,1,1\n"
	_, err = ReadCatalog(strings.NewReader(csv))
	assert.ErrorContains(t, err, "line 4")
}

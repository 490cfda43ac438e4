package decoder

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"argo_data_import/samples"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSample(t *testing.T, format samples.Format, p samples.Profile) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), p.FileName)
	require.NoError(t, samples.Write(path, format, p))
	return path
}

func trimmed(s string) string {
	return strings.Trim(s, " \x00")
}

func TestNetCDFDecode_WrittenProfile(t *testing.T) {
	for _, format := range []samples.Format{samples.FormatCDF, samples.FormatHDF5} {
		t.Run(string(format), func(t *testing.T) {
			ds, err := NetCDF{}.Decode(writeSample(t, format, samples.RawProfile()))
			require.NoError(t, err)

			assert.Equal(t, 10, ds.Rows)
			assert.Equal(t, []string{"n_prof", "n_levels"}, ds.Dimensions)

			pres, ok := ds.Column("PRES")
			require.True(t, ok)
			require.Len(t, pres.Floats, 10)
			assert.Equal(t, 5.0, pres.Floats[0])
			assert.Equal(t, 80.0, pres.Floats[9])
			assert.True(t, math.IsNaN(pres.Floats[2]), "missing_value becomes NaN")
			assert.True(t, math.IsNaN(pres.Floats[6]))

			temp, ok := ds.Column("temp")
			require.True(t, ok)
			assert.InDelta(t, 20.1, temp.Floats[0], 1e-5)
			assert.InDelta(t, 11.9, temp.Floats[9], 1e-5)

			juld, ok := ds.Column("juld")
			require.True(t, ok)
			assert.Equal(t, 20000.5, juld.Floats[0])
			assert.Equal(t, 20000.5, juld.Floats[9], "profile values broadcast to every level")
			assert.Equal(t, samples.JULDUnits, juld.Units())

			lat, ok := ds.Column("latitude")
			require.True(t, ok)
			assert.InDelta(t, 43.2, lat.Floats[4], 1e-9)

			platform, ok := ds.Text("platform_number")
			require.True(t, ok, "char arrays decode to text")
			assert.Equal(t, "13858", trimmed(platform))

			project, ok := ds.Text("PROJECT_NAME")
			require.True(t, ok)
			assert.Equal(t, "ARGO-FR", trimmed(project))

			title, ok := ds.Attribute("TITLE")
			require.True(t, ok, "global attribute keys are lowercased")
			assert.Contains(t, fmt.Sprint(title), "Argo float vertical profile")
		})
	}
}

func TestNetCDFDecode_WrittenAdjustedProfile(t *testing.T) {
	for _, format := range []samples.Format{samples.FormatCDF, samples.FormatHDF5} {
		t.Run(string(format), func(t *testing.T) {
			ds, err := NetCDF{}.Decode(writeSample(t, format, samples.AdjustedProfile()))
			require.NoError(t, err)

			assert.Equal(t, 5, ds.Rows)
			for _, name := range []string{"pres_adjusted", "temp_adjusted", "psal_adjusted", "pres", "temp", "psal"} {
				assert.True(t, ds.HasColumn(name), name)
			}

			adj, _ := ds.Column("temp_adjusted")
			assert.True(t, math.IsNaN(adj.Floats[1]))
			assert.InDelta(t, 3.1, adj.Floats[0], 1e-5)

			pi, ok := ds.Text("pi_name")
			require.True(t, ok)
			assert.Equal(t, "Stephen Riser", trimmed(pi))
		})
	}
}

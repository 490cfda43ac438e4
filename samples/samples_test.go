package samples

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatCDF, "CDF": FormatCDF, "hdf5": FormatHDF5, "nc4": FormatHDF5} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseFormat("zarr")
	assert.Error(t, err)
}

func TestWriteDir(t *testing.T) {
	for _, format := range []Format{FormatCDF, FormatHDF5} {
		t.Run(string(format), func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "out")
			paths, err := WriteDir(dir, format, All()...)
			require.NoError(t, err)
			require.Len(t, paths, 4)

			g, err := netcdf.Open(paths[0])
			require.NoError(t, err)
			defer g.Close()

			assert.Contains(t, g.ListVariables(), "PRES")
			assert.Contains(t, g.ListVariables(), "PLATFORM_NUMBER")

			for _, path := range paths {
				info, err := os.Stat(path)
				require.NoError(t, err)
				assert.NotZero(t, info.Size())
			}
		})
	}
}

func TestWrite_BadPath(t *testing.T) {
	err := Write(filepath.Join(t.TempDir(), "missing", "x.nc"), FormatCDF, RawProfile())
	assert.Error(t, err)
}

func TestProfileLevels(t *testing.T) {
	assert.Equal(t, 10, RawProfile().Levels())
	assert.Equal(t, 3, FillPressureProfile().Levels())
	assert.Zero(t, Profile{}.Levels())
}

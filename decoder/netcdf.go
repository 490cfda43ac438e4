package decoder

import (
	"fmt"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
)

// DecodeError reports a file that could not be opened or parsed.
// The file is skipped; the batch goes on.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// NetCDF decodes classic and HDF5-based NetCDF files
type NetCDF struct{}

// Decode opens a file and expands it into a Dataset
func (NetCDF) Decode(path string) (ds *Dataset, err error) {
	// the reader can panic on truncated input
	defer func() {
		if r := recover(); r != nil {
			ds, err = nil, &DecodeError{Path: path, Err: fmt.Errorf("reader panic: %v", r)}
		}
	}()

	group, err := netcdf.Open(path)
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}
	defer group.Close()

	var vars []Variable
	for _, name := range group.ListVariables() {
		v, err := group.GetVariable(name)
		if err != nil {
			return nil, &DecodeError{Path: path, Err: fmt.Errorf("read variable %s: %w", name, err)}
		}
		vars = append(vars, Variable{
			Name:       name,
			Dimensions: v.Dimensions,
			Values:     v.Values,
			Attributes: attributeMap(v.Attributes),
		})
	}

	ds, err = Build(path, vars, attributeMap(group.Attributes()))
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}
	return ds, nil
}

func attributeMap(attrs api.AttributeMap) map[string]interface{} {
	out := make(map[string]interface{})
	if attrs == nil {
		return out
	}
	for _, key := range attrs.Keys() {
		if val, ok := attrs.Get(key); ok {
			out[key] = val
		}
	}
	return out
}

package decoder

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"
)

// Variable is a named array as read from a file, before expansion
type Variable struct {
	Name       string
	Dimensions []string
	Values     interface{}
	Attributes map[string]interface{}
}

// Column is a variable expanded to one value per leaf row.
// Numeric columns use NaN for missing values.
type Column struct {
	Name       string
	Floats     []float64
	Texts      []string
	Attributes map[string]interface{}
}

// IsText reports whether the column holds text values
func (c *Column) IsText() bool {
	return c.Texts != nil
}

// Units returns the units attribute of the column, if any
func (c *Column) Units() string {
	if s, ok := c.Attributes["units"].(string); ok {
		return s
	}
	return ""
}

// Dataset is the flat tabular view of a decoded file
type Dataset struct {
	Path       string
	Rows       int
	Dimensions []string
	Skipped    []string

	columns    map[string]*Column
	variables  map[string]decodedVar
	attributes map[string]interface{}
}

// Column returns a column by its lowercase name
func (d *Dataset) Column(name string) (*Column, bool) {
	c, ok := d.columns[strings.ToLower(name)]
	return c, ok
}

// HasColumn reports whether a column exists
func (d *Dataset) HasColumn(name string) bool {
	_, ok := d.Column(name)
	return ok
}

// ColumnNames returns all column names, sorted
func (d *Dataset) ColumnNames() []string {
	names := make([]string, 0, len(d.columns))
	for name := range d.columns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Attribute returns a global attribute value as stored in the file
func (d *Dataset) Attribute(name string) (interface{}, bool) {
	v, ok := d.attributes[strings.ToLower(name)]
	return v, ok
}

// Text returns the first non-blank value of a text variable. Variables
// that were not expanded into columns are still visible here.
func (d *Dataset) Text(name string) (string, bool) {
	v, ok := d.variables[strings.ToLower(name)]
	if !ok || v.texts == nil {
		return "", false
	}
	for _, s := range v.texts {
		if strings.Trim(s, " \t\r\n\x00") != "" {
			return s, true
		}
	}
	return "", false
}

// FirstValid returns the first non-missing value of a numeric variable
func (d *Dataset) FirstValid(name string) (float64, bool) {
	dv, ok := d.variables[strings.ToLower(name)]
	if !ok || dv.texts != nil {
		return 0, false
	}
	for _, v := range dv.floats {
		if !math.IsNaN(v) {
			return v, true
		}
	}
	return 0, false
}

type decodedVar struct {
	name    string
	dims    []string
	shape   []int
	floats  []float64
	texts   []string
	charDim string
	attrs   map[string]interface{}
}

// Build expands variables into a Dataset. The leaf dimensions are taken
// from the numeric variable with the highest rank (largest size on ties);
// variables whose dimensions are a prefix of them are broadcast to every
// leaf row, all others are recorded in Skipped.
func Build(path string, vars []Variable, attrs map[string]interface{}) (*Dataset, error) {
	ds := &Dataset{
		Path:       path,
		columns:    make(map[string]*Column),
		variables:  make(map[string]decodedVar),
		attributes: lowerKeys(attrs),
	}

	decoded := make([]decodedVar, 0, len(vars))
	for _, v := range vars {
		dv, err := decodeVariable(v)
		if err != nil {
			return nil, fmt.Errorf("variable %s: %w", v.Name, err)
		}
		if dv == nil {
			ds.Skipped = append(ds.Skipped, strings.ToLower(v.Name))
			continue
		}
		decoded = append(decoded, *dv)
		ds.variables[dv.name] = *dv
	}

	leafDims, leafShape, ok := pickLeaf(decoded)
	if !ok {
		// nothing numeric to expand; metadata lookups still work
		for _, dv := range decoded {
			ds.Skipped = append(ds.Skipped, dv.name)
		}
		sort.Strings(ds.Skipped)
		return ds, nil
	}
	ds.Dimensions = leafDims
	ds.Rows = product(leafShape)

	for _, dv := range decoded {
		if dv.texts != nil && dv.charDim != "" {
			dv = splitChars(dv, leafDims, leafShape)
		}
		if !isPrefix(dv.dims, leafDims) || !isPrefixShape(dv.shape, leafShape) {
			ds.Skipped = append(ds.Skipped, dv.name)
			continue
		}
		stride := product(leafShape[len(dv.dims):])
		col := &Column{Name: dv.name, Attributes: dv.attrs}
		if dv.texts != nil {
			col.Texts = make([]string, ds.Rows)
			for r := 0; r < ds.Rows; r++ {
				col.Texts[r] = dv.texts[r/stride]
			}
		} else {
			col.Floats = make([]float64, ds.Rows)
			for r := 0; r < ds.Rows; r++ {
				col.Floats[r] = dv.floats[r/stride]
			}
		}
		ds.columns[dv.name] = col
	}
	sort.Strings(ds.Skipped)

	return ds, nil
}

// decodeVariable flattens a variable. It returns nil for value types that
// cannot be represented as numbers or text.
func decodeVariable(v Variable) (*decodedVar, error) {
	dv := &decodedVar{
		name:  strings.ToLower(v.Name),
		attrs: lowerKeys(v.Attributes),
	}
	for _, d := range v.Dimensions {
		dv.dims = append(dv.dims, strings.ToLower(d))
	}

	rv := reflect.ValueOf(v.Values)
	if !rv.IsValid() {
		return nil, nil
	}

	var leaves []reflect.Value
	shape := collect(rv, 0, nil, &leaves)
	if len(leaves) != product(shape) {
		return nil, fmt.Errorf("ragged array: %d values for shape %v", len(leaves), shape)
	}
	dv.shape = shape

	if len(leaves) == 0 {
		dv.floats = []float64{}
		return dv, alignDims(dv, false)
	}

	switch leaves[0].Kind() {
	case reflect.String:
		dv.texts = make([]string, len(leaves))
		for i, leaf := range leaves {
			if leaf.Kind() != reflect.String {
				return nil, fmt.Errorf("mixed value types")
			}
			dv.texts[i] = leaf.String()
		}
		return dv, alignDims(dv, true)
	default:
		if _, ok := toFloat(leaves[0]); !ok {
			return nil, nil
		}
		fill, hasFill := fillValue(dv.attrs)
		dv.floats = make([]float64, len(leaves))
		for i, leaf := range leaves {
			f, ok := toFloat(leaf)
			if !ok {
				return nil, fmt.Errorf("mixed value types")
			}
			if hasFill && f == fill {
				f = math.NaN()
			}
			dv.floats[i] = f
		}
		return dv, alignDims(dv, false)
	}
}

// alignDims reconciles declared dimensions with the value shape. Text
// values from char arrays lose their trailing string-length dimension.
func alignDims(dv *decodedVar, text bool) error {
	if text && len(dv.dims) == len(dv.shape)+1 {
		dv.charDim = dv.dims[len(dv.dims)-1]
		dv.dims = dv.dims[:len(dv.dims)-1]
	}
	switch {
	case len(dv.dims) == len(dv.shape):
		return nil
	case len(dv.dims) == 0 && product(dv.shape) == 1:
		dv.shape = nil
		return nil
	case dv.dims == nil:
		// no dimension names: name them by position
		for i := range dv.shape {
			dv.dims = append(dv.dims, fmt.Sprintf("%s_dim%d", dv.name, i))
		}
		return nil
	default:
		return fmt.Errorf("dimensions %v do not match shape %v", dv.dims, dv.shape)
	}
}

// splitChars turns a char array whose string dimension is itself a leaf
// dimension (per-level flags such as PRES_QC) into one character per level.
func splitChars(dv decodedVar, leafDims []string, leafShape []int) decodedVar {
	full := append(append([]string{}, dv.dims...), dv.charDim)
	if !isPrefix(full, leafDims) || !isPrefixShape(dv.shape, leafShape) {
		return dv
	}
	width := leafShape[len(dv.dims)]
	chars := make([]string, 0, len(dv.texts)*width)
	for _, s := range dv.texts {
		for i := 0; i < width; i++ {
			if i < len(s) {
				chars = append(chars, s[i:i+1])
			} else {
				chars = append(chars, " ")
			}
		}
	}
	dv.dims = full
	dv.shape = append(append([]int{}, dv.shape...), width)
	dv.texts = chars
	dv.charDim = ""
	return dv
}

func collect(v reflect.Value, depth int, shape []int, leaves *[]reflect.Value) []int {
	if !v.IsValid() {
		return shape
	}
	if v.Kind() == reflect.Interface || v.Kind() == reflect.Ptr {
		return collect(v.Elem(), depth, shape, leaves)
	}
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		*leaves = append(*leaves, v)
		return shape
	}
	if depth == len(shape) {
		shape = append(shape, v.Len())
	}
	for i := 0; i < v.Len(); i++ {
		shape = collect(v.Index(i), depth+1, shape, leaves)
	}
	return shape
}

func toFloat(v reflect.Value) (float64, bool) {
	switch v.Kind() {
	case reflect.Float32, reflect.Float64:
		return v.Float(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint()), true
	default:
		return 0, false
	}
}

// fillValue reads _FillValue, falling back to missing_value. Attribute
// values go through the same conversion as data so float32 fills compare
// exactly.
func fillValue(attrs map[string]interface{}) (float64, bool) {
	for _, key := range []string{"_fillvalue", "missing_value"} {
		raw, ok := attrs[key]
		if !ok {
			continue
		}
		var leaves []reflect.Value
		collect(reflect.ValueOf(raw), 0, nil, &leaves)
		if len(leaves) == 0 {
			continue
		}
		if f, ok := toFloat(leaves[0]); ok {
			return f, true
		}
	}
	return 0, false
}

func pickLeaf(vars []decodedVar) ([]string, []int, bool) {
	var dims []string
	var shape []int
	best := -1
	for _, v := range vars {
		if v.texts != nil {
			continue
		}
		size := product(v.shape)
		if len(v.dims) > len(dims) || (len(v.dims) == len(dims) && size > best) {
			dims, shape, best = v.dims, v.shape, size
		}
	}
	return dims, shape, best >= 0
}

func isPrefix(dims, leaf []string) bool {
	if len(dims) > len(leaf) {
		return false
	}
	for i := range dims {
		if dims[i] != leaf[i] {
			return false
		}
	}
	return true
}

func isPrefixShape(shape, leaf []int) bool {
	if len(shape) > len(leaf) {
		return false
	}
	for i := range shape {
		if shape[i] != leaf[i] {
			return false
		}
	}
	return true
}

func product(shape []int) int {
	n := 1
	for _, s := range shape {
		n *= s
	}
	return n
}

func lowerKeys(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[strings.ToLower(k)] = v
	}
	return out
}

package device

// DataType is the device's element type tag.
type DataType int32

// Device element types.
const (
	Undefined    DataType = -1
	Float32      DataType = 0
	Float16      DataType = 1
	Int8         DataType = 2
	Int32        DataType = 3
	Uint8        DataType = 4
	Int16        DataType = 6
	Uint16       DataType = 7
	Uint32       DataType = 8
	Int64        DataType = 9
	Uint64       DataType = 10
	Float64      DataType = 11
	Bool         DataType = 12
	BFloat16     DataType = 27
	Float8E5M2   DataType = 35
	Float8E4M3FN DataType = 36
	Float8E8M0   DataType = 37
	Float6E3M2   DataType = 38
	Float6E2M3   DataType = 39
	Float4E2M1   DataType = 40
)

var dataTypeNames = map[DataType]string{
	Undefined:    "undefined",
	Float32:      "float32",
	Float16:      "float16",
	Int8:         "int8",
	Int32:        "int32",
	Uint8:        "uint8",
	Int16:        "int16",
	Uint16:       "uint16",
	Uint32:       "uint32",
	Int64:        "int64",
	Uint64:       "uint64",
	Float64:      "float64",
	Bool:         "bool",
	BFloat16:     "bfloat16",
	Float8E5M2:   "float8_e5m2",
	Float8E4M3FN: "float8_e4m3fn",
	Float8E8M0:   "float8_e8m0",
	Float6E3M2:   "float6_e3m2fn",
	Float6E2M3:   "float6_e2m3fn",
	Float4E2M1:   "float4_e2m1fn",
}

// String returns the tag name.
func (d DataType) String() string {
	if name, ok := dataTypeNames[d]; ok {
		return name
	}
	return "unknown"
}

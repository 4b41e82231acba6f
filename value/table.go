// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package value

import (
	"math"

	"github.com/z5labs/strata/variant"
)

// CollectPointer is the collect format of tables collecting a single
// pointer like argument, e.g. an instance.
const CollectPointer = "p"

// Table holds the per type operations on [Value] cells.
//
// Init must leave the cell holding the default value of the type. Copy
// receives an initialised destination. Free releases anything the cell
// owns. Collect stores a single Go argument into the cell and reports
// whether the argument was acceptable; CollectFormat describes what
// Collect expects. Get returns the cell contents as a Go value.
type Table struct {
	Init          func(v *Value)
	Copy          func(src, dst *Value)
	Free          func(v *Value)
	PeekPointer   func(v *Value) any
	CollectFormat string
	Collect       func(v *Value, x any) bool
	Get           func(v *Value) any
}

func numericTable(format string, collect func(v *Value, x any) bool, get func(v *Value) any) *Table {
	return &Table{
		Init:          func(v *Value) { v.num = 0 },
		Copy:          func(src, dst *Value) { dst.num = src.num },
		CollectFormat: format,
		Collect:       collect,
		Get:           get,
	}
}

var (
	boolTable = numericTable(
		"i",
		func(v *Value, x any) bool {
			b, ok := x.(bool)
			if !ok {
				return false
			}
			v.num = 0
			if b {
				v.num = 1
			}
			return true
		},
		func(v *Value) any { return v.num != 0 },
	)

	intTable = numericTable(
		"i",
		func(v *Value, x any) bool {
			n, ok := toInt64(x)
			if !ok || n < math.MinInt32 || n > math.MaxInt32 {
				return false
			}
			v.num = uint64(n)
			return true
		},
		func(v *Value) any { return int(int32(v.num)) },
	)

	uintTable = numericTable(
		"i",
		func(v *Value, x any) bool {
			n, ok := toUint64(x)
			if !ok || n > math.MaxUint32 {
				return false
			}
			v.num = n
			return true
		},
		func(v *Value) any { return uint(uint32(v.num)) },
	)

	int64Table = numericTable(
		"q",
		func(v *Value, x any) bool {
			n, ok := toInt64(x)
			if !ok {
				return false
			}
			v.num = uint64(n)
			return true
		},
		func(v *Value) any { return int64(v.num) },
	)

	uint64Table = numericTable(
		"q",
		func(v *Value, x any) bool {
			n, ok := toUint64(x)
			if !ok {
				return false
			}
			v.num = n
			return true
		},
		func(v *Value) any { return v.num },
	)

	floatTable = numericTable(
		"d",
		func(v *Value, x any) bool {
			f, ok := toFloat64(x)
			if !ok {
				return false
			}
			v.num = uint64(math.Float32bits(float32(f)))
			return true
		},
		func(v *Value) any { return math.Float32frombits(uint32(v.num)) },
	)

	doubleTable = numericTable(
		"d",
		func(v *Value, x any) bool {
			f, ok := toFloat64(x)
			if !ok {
				return false
			}
			v.num = math.Float64bits(f)
			return true
		},
		func(v *Value) any { return math.Float64frombits(v.num) },
	)

	stringTable = &Table{
		Init:          func(v *Value) { v.ptr = "" },
		Copy:          func(src, dst *Value) { dst.ptr = src.ptr },
		Free:          func(v *Value) { v.ptr = nil },
		CollectFormat: CollectPointer,
		Collect: func(v *Value, x any) bool {
			s, ok := x.(string)
			if ok {
				v.ptr = s
			}
			return ok
		},
		Get: func(v *Value) any {
			s, _ := v.ptr.(string)
			return s
		},
	}

	pointerTable = &Table{
		Init:          func(v *Value) { v.ptr = nil },
		Copy:          func(src, dst *Value) { dst.ptr = src.ptr },
		PeekPointer:   func(v *Value) any { return v.ptr },
		CollectFormat: CollectPointer,
		Collect: func(v *Value, x any) bool {
			v.ptr = x
			return true
		},
		Get: func(v *Value) any { return v.ptr },
	}

	boxedTable = &Table{
		Init:          func(v *Value) { v.ptr = nil },
		Copy:          func(src, dst *Value) { dst.ptr = src.ptr },
		Free:          func(v *Value) { v.ptr = nil },
		PeekPointer:   func(v *Value) any { return v.ptr },
		CollectFormat: CollectPointer,
		Collect: func(v *Value, x any) bool {
			v.ptr = x
			return true
		},
		Get: func(v *Value) any { return v.ptr },
	}

	objectTable = &Table{
		Init: func(v *Value) { v.ptr = nil },
		Copy: func(src, dst *Value) {
			if rc, ok := src.ptr.(RefCounted); ok {
				rc.Ref()
			}
			dst.ptr = src.ptr
		},
		Free: func(v *Value) {
			if rc, ok := v.ptr.(RefCounted); ok {
				rc.Unref()
			}
			v.ptr = nil
		},
		PeekPointer:   func(v *Value) any { return v.ptr },
		CollectFormat: CollectPointer,
		Collect: func(v *Value, x any) bool {
			if x == nil {
				v.ptr = nil
				return true
			}
			inst, ok := x.(Instance)
			if !ok || !inst.InstanceType().IsA(v.typ) {
				return false
			}
			if rc, ok := inst.(RefCounted); ok {
				rc.Ref()
			}
			v.ptr = inst
			return true
		},
		Get: func(v *Value) any { return v.ptr },
	}

	variantTable = &Table{
		Init:          func(v *Value) { v.ptr = variant.Variant{} },
		Copy:          func(src, dst *Value) { dst.ptr = src.ptr },
		Free:          func(v *Value) { v.ptr = nil },
		CollectFormat: CollectPointer,
		Collect: func(v *Value, x any) bool {
			vv, ok := x.(variant.Variant)
			if ok {
				v.ptr = vv
			}
			return ok
		},
		Get: func(v *Value) any {
			vv, _ := v.ptr.(variant.Variant)
			return vv
		},
	}
)

func toInt64(x any) (int64, bool) {
	switch n := x.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint:
		if uint64(n) > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	}
	return 0, false
}

func toUint64(x any) (uint64, bool) {
	switch n := x.(type) {
	case uint:
		return uint64(n), true
	case uint8:
		return uint64(n), true
	case uint16:
		return uint64(n), true
	case uint32:
		return uint64(n), true
	case uint64:
		return n, true
	}
	n, ok := toInt64(x)
	if !ok || n < 0 {
		return 0, false
	}
	return uint64(n), true
}

func toFloat64(x any) (float64, bool) {
	switch f := x.(type) {
	case float32:
		return float64(f), true
	case float64:
		return f, true
	}
	if n, ok := toInt64(x); ok {
		return float64(n), true
	}
	return 0, false
}

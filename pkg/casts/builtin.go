package casts

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/surrealdb/surrealdb.go/pkg/models"
	"github.com/surrealdb/surrealodm/pkg/constants"
)

// Values that cannot be coerced are passed through unchanged; rejecting them is
// the validator's job.

// Int keeps values as int64.
type Int struct{}

func (Int) Read(value any) any  { return toInt(value) }
func (Int) Write(value any) any { return toInt(value) }

func toInt(value any) any {
	switch v := value.(type) {
	case int:
		return int64(v)
	case int8:
		return int64(v)
	case int16:
		return int64(v)
	case int32:
		return int64(v)
	case int64:
		return v
	case uint:
		return int64(v)
	case uint8:
		return int64(v)
	case uint16:
		return int64(v)
	case uint32:
		return int64(v)
	case uint64:
		if v > math.MaxInt64 {
			return value
		}
		return int64(v)
	case float32:
		return int64(v)
	case float64:
		return int64(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n
		}
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return n
		}
	case bool:
		if v {
			return int64(1)
		}
		return int64(0)
	}
	return value
}

// Float keeps values as float64.
type Float struct{}

func (Float) Read(value any) any  { return toFloat(value) }
func (Float) Write(value any) any { return toFloat(value) }

func toFloat(value any) any {
	switch v := value.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case uint64:
		return float64(v)
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f
		}
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return value
}

// Bool keeps values as bool.
type Bool struct{}

func (Bool) Read(value any) any  { return toBool(value) }
func (Bool) Write(value any) any { return toBool(value) }

func toBool(value any) any {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	case int:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	}
	return value
}

// String keeps values as string.
type String struct{}

func (String) Read(value any) any  { return toString(value) }
func (String) Write(value any) any { return toString(value) }

func toString(value any) any {
	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// TimeFormat selects the storage representation of a Timestamp.
type TimeFormat int

const (
	// Unix stores seconds since the epoch.
	Unix TimeFormat = iota
	// UnixMilli stores milliseconds since the epoch.
	UnixMilli
	// RFC3339 stores an RFC 3339 string with nanoseconds.
	RFC3339
	// SurrealDateTime stores a models.CustomDateTime, encoded as a native SurrealDB datetime.
	SurrealDateTime
)

// Timestamp keeps values as time.Time in memory and converts them to Format when persisted.
type Timestamp struct {
	Format TimeFormat
}

func (c Timestamp) Read(value any) any  { return c.parse(value) }
func (c Timestamp) Write(value any) any { return c.parse(value) }

// parse reads integers as milliseconds for UnixMilli and as seconds otherwise.
func (c Timestamp) parse(value any) any {
	if c.Format != UnixMilli {
		return toTime(value)
	}
	switch v := value.(type) {
	case int64:
		return time.UnixMilli(v).UTC()
	case int:
		return time.UnixMilli(int64(v)).UTC()
	case uint64:
		return time.UnixMilli(int64(v)).UTC()
	case float64:
		return time.UnixMilli(int64(v)).UTC()
	}
	return toTime(value)
}

func (c Timestamp) Persist(value any) any {
	t, ok := toTime(value).(time.Time)
	if !ok {
		return value
	}

	switch c.Format {
	case UnixMilli:
		return t.UnixMilli()
	case RFC3339:
		return t.UTC().Format(time.RFC3339Nano)
	case SurrealDateTime:
		return models.CustomDateTime{Time: t.UTC()}
	default:
		return t.Unix()
	}
}

func toTime(value any) any {
	switch v := value.(type) {
	case time.Time:
		return v
	case *time.Time:
		if v == nil {
			return nil
		}
		return *v
	case models.CustomDateTime:
		return v.Time
	case *models.CustomDateTime:
		if v == nil {
			return nil
		}
		return v.Time
	case int64:
		return time.Unix(v, 0).UTC()
	case int:
		return time.Unix(int64(v), 0).UTC()
	case uint64:
		return time.Unix(int64(v), 0).UTC()
	case float64:
		sec, frac := math.Modf(v)
		return time.Unix(int64(sec), int64(frac*1e9)).UTC()
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return time.Unix(n, 0).UTC()
		}
	case string:
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return t
		}
	}
	return value
}

// JSON keeps structured values in memory and persists them as a JSON string.
type JSON struct{}

func (JSON) Read(value any) any  { return fromJSON(value) }
func (JSON) Write(value any) any { return fromJSON(value) }

func (JSON) Persist(value any) any {
	b, err := json.Marshal(value)
	if err != nil {
		return value
	}
	return string(b)
}

func fromJSON(value any) any {
	var raw []byte
	switch v := value.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return value
	}

	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return value
	}
	return out
}

// Record keeps values as models.RecordID. Bare identifiers are qualified with Table.
type Record struct {
	Table string
}

func (c Record) Read(value any) any  { return c.toRecord(value) }
func (c Record) Write(value any) any { return c.toRecord(value) }

func (c Record) toRecord(value any) any {
	switch v := value.(type) {
	case models.RecordID:
		return v
	case *models.RecordID:
		if v == nil {
			return nil
		}
		return *v
	case string:
		if table, id, ok := strings.Cut(v, ":"); ok && table != "" {
			return models.NewRecordID(table, id)
		}
		if c.Table == "" {
			return value
		}
		return models.NewRecordID(c.Table, v)
	case int, int64, uint64:
		if c.Table == "" {
			return value
		}
		return models.NewRecordID(c.Table, v)
	}
	return value
}

// Func adapts plain functions to a Cast. A nil function is the identity.
type Func struct {
	ReadFn    func(any) any
	WriteFn   func(any) any
	PersistFn func(any) any
}

func (f Func) Read(value any) any {
	if f.ReadFn == nil {
		return value
	}
	return f.ReadFn(value)
}

func (f Func) Write(value any) any {
	if f.WriteFn == nil {
		return value
	}
	return f.WriteFn(value)
}

func (f Func) Persist(value any) any {
	if f.PersistFn == nil {
		return value
	}
	return f.PersistFn(value)
}

// ByName resolves the cast names accepted in model configuration:
// int, float, bool, string, json, datetime[:unix|unix_ms|rfc3339|surreal] and record[:table].
func ByName(name string) (Cast, error) {
	kind, arg, _ := strings.Cut(strings.TrimSpace(name), ":")

	switch strings.ToLower(kind) {
	case "int", "integer":
		return Int{}, nil
	case "float", "number", "double":
		return Float{}, nil
	case "bool", "boolean":
		return Bool{}, nil
	case "string":
		return String{}, nil
	case "json", "array", "object":
		return JSON{}, nil
	case "record":
		return Record{Table: arg}, nil
	case "datetime", "timestamp", "date":
		switch strings.ToLower(arg) {
		case "", "unix":
			return Timestamp{Format: Unix}, nil
		case "unix_ms":
			return Timestamp{Format: UnixMilli}, nil
		case "rfc3339":
			return Timestamp{Format: RFC3339}, nil
		case "surreal":
			return Timestamp{Format: SurrealDateTime}, nil
		}
	}

	return nil, fmt.Errorf("%w: %q", constants.ErrUnknownCast, name)
}

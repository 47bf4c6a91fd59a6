package versioning

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrDecode reports a version log that is not a JSON object of objects.
var ErrDecode = errors.New("version log decode failed")

// Entry is one archived state: field name to value. Timestamps are stored as
// epoch seconds.
type Entry map[string]any

// Log maps a stringified version number to the state the note had at that
// version.
type Log map[string]Entry

// Key returns the log key for version.
func Key(version int) string {
	return strconv.Itoa(version)
}

// Decode parses a stored version log. Empty text is an empty log.
func Decode(raw string) (Log, error) {
	if strings.TrimSpace(raw) == "" {
		return Log{}, nil
	}
	var log Log
	if err := json.Unmarshal([]byte(raw), &log); err != nil {
		return Log{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if log == nil {
		return Log{}, nil
	}
	return log, nil
}

// DecodeLenient is the recovery path used when the log must be read but can
// not be trusted: anything that fails to decode is logged and treated as an
// empty log.
func DecodeLenient(raw string, logger *zap.SugaredLogger) Log {
	log, err := Decode(raw)
	if err != nil {
		if logger != nil {
			logger.Errorw("version log unreadable, starting a new one", "error", err)
		}
		return Log{}
	}
	return log
}

// Encode serializes the log. Time values are normalized to epoch seconds.
func Encode(log Log) (string, error) {
	if log == nil {
		log = Log{}
	}
	out := make(map[string]map[string]any, len(log))
	for key, entry := range log {
		normalized := make(map[string]any, len(entry))
		for field, value := range entry {
			normalized[field] = normalize(value)
		}
		out[key] = normalized
	}
	data, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("failed to encode version log: %w", err)
	}
	return string(data), nil
}

func normalize(value any) any {
	switch v := value.(type) {
	case time.Time:
		return epochSeconds(v)
	case *time.Time:
		if v == nil {
			return nil
		}
		return epochSeconds(*v)
	default:
		return value
	}
}

func epochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// Versions returns the archived version numbers in ascending order. Keys that
// are not integers are skipped.
func (l Log) Versions() []int {
	versions := make([]int, 0, len(l))
	for key := range l {
		v, err := strconv.Atoi(key)
		if err != nil {
			continue
		}
		versions = append(versions, v)
	}
	sort.Ints(versions)
	return versions
}

// Get returns the entry archived for version.
func (l Log) Get(version int) (Entry, bool) {
	e, ok := l[Key(version)]
	return e, ok
}

// String returns the string value of field, or "" when absent or not a
// string.
func (e Entry) String(field string) string {
	s, _ := e[field].(string)
	return s
}

// Float returns the numeric value of field.
func (e Entry) Float(field string) (float64, bool) {
	switch v := e[field].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

package runtime

import (
	"encoding/json"
	"fmt"
	"math"
	"math/bits"
	"strconv"
	"strings"
)

// Config keys consumed by the executor itself. Every other key is opaque to
// the engine and belongs to the runner.
const (
	KeyTimeoutMS    = "timeoutMs"
	KeyRetries      = "retries"
	KeyRetryDelayMS = "retryDelayMs"
)

var engineKeys = map[string]bool{
	KeyTimeoutMS:    true,
	KeyRetries:      true,
	KeyRetryDelayMS: true,
	"timeout_ms":    true,
}

// IsEngineKey reports whether key is interpreted by the executor.
func IsEngineKey(key string) bool {
	return engineKeys[key]
}

// Config is a node's configuration as declared in the definition.
type Config map[string]any

// Has reports whether key is set to a non-nil value.
func (c Config) Has(key string) bool {
	v, ok := c[key]
	return ok && v != nil
}

// String returns the string value for key, or def when absent.
func (c Config) String(key, def string) string {
	v, ok := c[key]
	if !ok || v == nil {
		return def
	}
	switch s := v.(type) {
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	default:
		return fmt.Sprint(v)
	}
}

// Int returns the integer value for key, or def when absent. Non-integral
// values are an error.
func (c Config) Int(key string, def int) (int, error) {
	v, ok := c[key]
	if !ok || v == nil {
		return def, nil
	}
	n, ok := ConvertToInt(v)
	if !ok {
		return 0, fmt.Errorf("expected integer, got %T (%v)", v, v)
	}
	return n, nil
}

// Bool returns the boolean value for key, or def when absent.
func (c Config) Bool(key string, def bool) bool {
	switch v := c[key].(type) {
	case bool:
		return v
	case string:
		if parsed, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return parsed
		}
	}
	return def
}

// StringMap returns a map value with every value stringified.
func (c Config) StringMap(key string) map[string]string {
	out := map[string]string{}
	switch m := c[key].(type) {
	case map[string]string:
		for k, v := range m {
			out[k] = v
		}
	case map[string]any:
		for k, v := range m {
			out[k] = fmt.Sprint(v)
		}
	}
	return out
}

// RunnerView returns a copy without the executor's own keys.
func (c Config) RunnerView() Config {
	out := make(Config, len(c))
	for k, v := range c {
		if !IsEngineKey(k) {
			out[k] = v
		}
	}
	return out
}

// Decode maps the config onto a typed struct through its JSON tags.
func (c Config) Decode(target any) error {
	raw, err := json.Marshal(c.RunnerView())
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

// ConvertToInt converts the numeric shapes produced by JSON, YAML and HCL
// decoders into an int. Floats must be integral.
func ConvertToInt(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int8:
		return int(v), true
	case int16:
		return int(v), true
	case int32:
		return int(v), true
	case int64:
		if bits.UintSize == 32 && (v > int64(math.MaxInt32) || v < int64(math.MinInt32)) {
			return 0, false
		}
		return int(v), true
	case uint:
		if bits.UintSize == 32 && v > uint(math.MaxInt32) {
			return 0, false
		}
		return int(v), true
	case uint8:
		return int(v), true
	case uint16:
		return int(v), true
	case uint32:
		if bits.UintSize == 32 && v > math.MaxInt32 {
			return 0, false
		}
		return int(v), true
	case uint64:
		if v > uint64(math.MaxInt) {
			return 0, false
		}
		return int(v), true
	case float64:
		if v > float64(math.MaxInt) || v < float64(math.MinInt) || v != math.Trunc(v) {
			return 0, false
		}
		return int(v), true
	case float32:
		f := float64(v)
		if f > float64(math.MaxInt) || f < float64(math.MinInt) || f != math.Trunc(f) {
			return 0, false
		}
		return int(v), true
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return ConvertToInt(n)
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

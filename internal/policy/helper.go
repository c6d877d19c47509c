package policy

import (
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// DecodeEntry is a generic helper to unmarshal one loosely typed document
// entry into a strongly typed struct using JSON tags.
// It uses weak typing to handle string-to-int conversions ("7" -> 7) and
// rejects keys the target does not know about.
func DecodeEntry[T any](entry map[string]any) (*T, error) {
	var result T

	config := &mapstructure.DecoderConfig{
		Result:           &result,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		TagName:          "json",
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			stringToIntervalHookFunc(),
			rejectFractionHookFunc(),
		),
	}

	decoder, err := mapstructure.NewDecoder(config)
	if err != nil {
		return nil, err
	}

	if err := decoder.Decode(entry); err != nil {
		return nil, err
	}

	return &result, nil
}

// decodePolicy turns one document entry into a Policy for volumeID.
// Decoding failures come back as *ConfigError so a malformed entry only
// affects its own volume.
func decodePolicy(volumeID string, raw any) (Policy, error) {
	if raw == nil {
		return Policy{}, &ConfigError{VolumeID: volumeID, Reason: "policy entry is empty"}
	}

	entry, ok := raw.(map[string]any)
	if !ok {
		return Policy{}, &ConfigError{
			VolumeID: volumeID,
			Reason:   fmt.Sprintf("policy entry must be a mapping, got %T", raw),
		}
	}

	parsed, err := DecodeEntry[Policy](entry)
	if err != nil {
		return Policy{}, &ConfigError{VolumeID: volumeID, Reason: err.Error()}
	}

	if parsed.VolumeID != "" && parsed.VolumeID != volumeID {
		return Policy{}, &ConfigError{
			VolumeID: volumeID,
			Field:    "volume_id",
			Value:    parsed.VolumeID,
			Reason:   "does not match the entry key",
		}
	}
	parsed.VolumeID = volumeID

	return *parsed, nil
}

// stringToIntervalHookFunc normalizes recognized interval strings. Unknown
// values pass through trimmed; Validate reports them per volume.
func stringToIntervalHookFunc() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.String || to != reflect.TypeOf(Interval("")) {
			return data, nil
		}
		raw := data.(string)
		if interval, err := ParseInterval(raw); err == nil {
			return interval, nil
		}
		return Interval(strings.TrimSpace(raw)), nil
	}
}

// rejectFractionHookFunc stops 2.5 from silently becoming 2 when decoding
// into an integer field.
func rejectFractionHookFunc() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to.Kind() != reflect.Int {
			return data, nil
		}
		switch from.Kind() {
		case reflect.Float32, reflect.Float64:
			f := reflect.ValueOf(data).Float()
			if f != math.Trunc(f) {
				return nil, fmt.Errorf("expected an integer, got %v", f)
			}
		}
		return data, nil
	}
}

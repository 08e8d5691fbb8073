package host

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/imWorldy/StarfishPlugins/internal/logging"
)

type SettingType string

const (
	SettingToggle SettingType = "toggle"
	SettingText   SettingType = "text"
	SettingCycle  SettingType = "cycle"
)

type CycleValue struct {
	Text  string
	Value any
}

type Setting struct {
	Type        SettingType
	Key         string
	Text        []string
	Description string
	Placeholder string
	Values      []CycleValue
}

// Section groups settings. Defaults may be nested maps; they are flattened
// to dotted keys.
type Section struct {
	Label    string
	Defaults map[string]any
	Settings []Setting
}

type Schema []Section

// Persister stores config values across restarts.
type Persister interface {
	LoadPluginConfig(plugin string) (map[string]any, error)
	SavePluginValue(plugin, key string, value any) error
}

var ErrUnknownSetting = errors.New("unknown setting")

// ConfigStore holds one plugin's values by dotted key. Precedence, lowest
// first: schema defaults, seeded values, persisted values, runtime Set.
type ConfigStore struct {
	plugin    string
	values    map[string]any
	settings  map[string]Setting
	order     []string
	persister Persister
}

func NewConfigStore(plugin string, seed map[string]any, persister Persister) *ConfigStore {
	s := &ConfigStore{
		plugin:    plugin,
		values:    make(map[string]any),
		settings:  make(map[string]Setting),
		persister: persister,
	}
	flatten("", seed, s.values)
	return s
}

// Initialize applies schema defaults to missing keys and loads persisted values.
func (s *ConfigStore) Initialize(schema Schema) {
	defaults := make(map[string]any)
	for _, section := range schema {
		flatten("", section.Defaults, defaults)
		for _, setting := range section.Settings {
			if _, seen := s.settings[setting.Key]; !seen {
				s.order = append(s.order, setting.Key)
			}
			s.settings[setting.Key] = setting
		}
	}
	for k, v := range defaults {
		if _, ok := s.values[k]; !ok {
			s.values[k] = v
		}
	}

	if s.persister == nil {
		return
	}
	stored, err := s.persister.LoadPluginConfig(s.plugin)
	if err != nil {
		logging.Warn("[%s] Failed to load stored config: %v", s.plugin, err)
		return
	}
	for k, v := range stored {
		s.values[k] = v
	}
}

func flatten(prefix string, in map[string]any, out map[string]any) {
	for k, v := range in {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok {
			flatten(key, nested, out)
			continue
		}
		out[key] = v
	}
}

func (s *ConfigStore) Get(key string) (any, bool) {
	v, ok := s.values[key]
	return v, ok
}

func (s *ConfigStore) Bool(key string, fallback bool) bool {
	switch v := s.values[key].(type) {
	case bool:
		return v
	case string:
		if b, err := parseToggle(v); err == nil {
			return b
		}
	}
	return fallback
}

func (s *ConfigStore) String(key string, fallback string) string {
	v, ok := s.values[key]
	if !ok || v == nil {
		return fallback
	}
	if str, ok := v.(string); ok {
		return str
	}
	return fmt.Sprint(v)
}

func (s *ConfigStore) Int(key string, fallback int) int {
	switch v := s.values[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return fallback
}

// Set validates value against the setting type, persists it, then applies it.
func (s *ConfigStore) Set(key string, value any) error {
	setting, known := s.settings[key]
	if !known {
		if _, exists := s.values[key]; !exists {
			return fmt.Errorf("%w: %s", ErrUnknownSetting, key)
		}
	} else if err := checkValue(setting, value); err != nil {
		return err
	}

	// Persist first so a failed save leaves the old value in place
	if s.persister != nil {
		if err := s.persister.SavePluginValue(s.plugin, key, value); err != nil {
			return fmt.Errorf("persist %s: %w", key, err)
		}
	}
	s.values[key] = value
	return nil
}

// ParseValue converts command text into a value of the setting's type.
func (s *ConfigStore) ParseValue(key, raw string) (any, error) {
	setting, ok := s.settings[key]
	if !ok {
		if _, exists := s.values[key]; !exists {
			return nil, fmt.Errorf("%w: %s", ErrUnknownSetting, key)
		}
		return raw, nil
	}

	switch setting.Type {
	case SettingToggle:
		return parseToggle(raw)
	case SettingCycle:
		for _, cv := range setting.Values {
			if strings.EqualFold(fmt.Sprint(cv.Value), raw) || strings.EqualFold(cv.Text, raw) {
				return cv.Value, nil
			}
		}
		return nil, fmt.Errorf("%s must be one of %s", key, cycleChoices(setting))
	default:
		if raw == "-" {
			return "", nil
		}
		return raw, nil
	}
}

// Keys lists settings in schema order, then any other keys sorted.
func (s *ConfigStore) Keys() []string {
	keys := append([]string(nil), s.order...)
	var extra []string
	for k := range s.values {
		if _, ok := s.settings[k]; !ok {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	return append(keys, extra...)
}

func (s *ConfigStore) Setting(key string) (Setting, bool) {
	setting, ok := s.settings[key]
	return setting, ok
}

func checkValue(setting Setting, value any) error {
	switch setting.Type {
	case SettingToggle:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("%s expects on/off", setting.Key)
		}
	case SettingText:
		if _, ok := value.(string); !ok {
			return fmt.Errorf("%s expects text", setting.Key)
		}
	case SettingCycle:
		for _, cv := range setting.Values {
			if fmt.Sprint(cv.Value) == fmt.Sprint(value) {
				return nil
			}
		}
		return fmt.Errorf("%s must be one of %s", setting.Key, cycleChoices(setting))
	}
	return nil
}

func cycleChoices(setting Setting) string {
	choices := make([]string, 0, len(setting.Values))
	for _, cv := range setting.Values {
		choices = append(choices, fmt.Sprint(cv.Value))
	}
	return strings.Join(choices, ", ")
}

func parseToggle(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "on", "true", "yes", "1", "enable", "enabled":
		return true, nil
	case "off", "false", "no", "0", "disable", "disabled":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", raw)
}

// Package config layers the config file and AUDIOCARD_* environment over
// the daemon's command-line options, and watches the file for changes.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/smazurov/audiocard/internal/logging"
)

// EnvPrefix is prepended to every `env` tag when reading the environment.
const EnvPrefix = "AUDIOCARD_"

var durationType = reflect.TypeFor[time.Duration]()

// option is one settable field of an options struct.
type option struct {
	value reflect.Value
	flag  string
	toml  string
	env   string
}

func optionsOf(v reflect.Value) []option {
	t := v.Type()
	out := make([]option, 0, t.NumField())
	for i := range t.NumField() {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		flag := sf.Tag.Get("name")
		if flag == "" {
			flag = fieldNameToFlag(sf.Name)
		}
		out = append(out, option{
			value: v.Field(i),
			flag:  flag,
			toml:  sf.Tag.Get("toml"),
			env:   sf.Tag.Get("env"),
		})
	}
	return out
}

// LoadConfig fills opts, a pointer to an options struct, from the file
// named by its Config field and then from the environment. A flag set on
// cmd's command line wins over both. A missing file is not an error.
func LoadConfig(opts any, cmd *cobra.Command) error {
	v := reflect.ValueOf(opts).Elem()
	fields := optionsOf(v)

	var flags *pflag.FlagSet
	if cmd != nil {
		flags = cmd.Flags()
	}

	var doc map[string]any
	if cf := v.FieldByName("Config"); cf.IsValid() && cf.String() != "" {
		data, err := os.ReadFile(cf.String())
		switch {
		case err == nil:
			if err := toml.Unmarshal(data, &doc); err != nil {
				return fmt.Errorf("parse %s: %w", cf.String(), err)
			}
		case !os.IsNotExist(err):
			return err
		}
	}

	for _, o := range fields {
		if changedOnCLI(flags, o.flag) {
			continue
		}
		if o.toml != "" && doc != nil {
			if raw, ok := lookup(doc, o.toml); ok {
				assign(o.value, raw)
			}
		}
		if o.env != "" {
			if s := os.Getenv(EnvPrefix + o.env); s != "" {
				assign(o.value, s)
			}
		}
	}
	return nil
}

func changedOnCLI(flags *pflag.FlagSet, name string) bool {
	if flags == nil {
		return false
	}
	f := flags.Lookup(name)
	return f != nil && f.Changed
}

// fieldNameToFlag kebab-cases a Go field name, keeping acronyms whole:
// "ALSACard" becomes "alsa-card" and "LoggingDAI" becomes "logging-dai".
func fieldNameToFlag(name string) string {
	rs := []rune(name)
	var b strings.Builder
	for i, r := range rs {
		if i > 0 && unicode.IsUpper(r) {
			prev := rs[i-1]
			nextLower := i+1 < len(rs) && unicode.IsLower(rs[i+1])
			if unicode.IsLower(prev) || nextLower {
				b.WriteByte('-')
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// lookup walks a dotted TOML path such as "logging.jack".
func lookup(doc map[string]any, path string) (any, bool) {
	keys := strings.Split(path, ".")
	node := doc
	for _, k := range keys[:len(keys)-1] {
		next, ok := node[k].(map[string]any)
		if !ok {
			return nil, false
		}
		node = next
	}
	raw, ok := node[keys[len(keys)-1]]
	return raw, ok
}

// assign stores raw into field. raw is either a decoded TOML value or an
// environment string; values of the wrong shape are ignored.
func assign(field reflect.Value, raw any) {
	if !field.CanSet() {
		return
	}
	s, isString := raw.(string)

	switch {
	case field.Type() == durationType:
		if d, err := time.ParseDuration(s); isString && err == nil {
			field.SetInt(int64(d))
		}
	case field.Kind() == reflect.String:
		if isString {
			field.SetString(s)
		}
	case field.Kind() == reflect.Bool:
		if b, ok := raw.(bool); ok {
			field.SetBool(b)
		} else if b, err := strconv.ParseBool(s); isString && err == nil {
			field.SetBool(b)
		}
	case field.CanInt():
		if n, ok := asInt(raw); ok {
			field.SetInt(n)
		}
	case field.CanUint():
		if n, ok := asInt(raw); ok && n >= 0 {
			field.SetUint(uint64(n))
		}
	case field.Kind() == reflect.Slice && field.Type().Elem().Kind() == reflect.String:
		field.Set(reflect.ValueOf(asStrings(raw)))
	}
}

func asInt(raw any) (int64, bool) {
	switch n := raw.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case string:
		v, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		return v, err == nil
	}
	return 0, false
}

// asStrings accepts a TOML array or a comma separated environment value.
func asStrings(raw any) []string {
	var out []string
	switch v := raw.(type) {
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
	case string:
		for _, part := range strings.Split(v, ",") {
			out = append(out, strings.TrimSpace(part))
		}
	}
	return out
}

// LoadLoggingConfig reads the [logging] table. level and format are global,
// every other key is a module level. Defaults are returned when the file is
// absent or unreadable.
func LoadLoggingConfig(configPath string) logging.Config {
	cfg, _ := ReadLoggingConfig(configPath)
	return cfg
}

// ReadLoggingConfig is LoadLoggingConfig that reports why the defaults were
// used. The watcher needs this so a half-written file is not applied as a
// reset.
func ReadLoggingConfig(configPath string) (logging.Config, error) {
	cfg := logging.Config{Level: "info", Format: "text", Modules: map[string]string{}}
	if configPath == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		return cfg, err
	}
	var doc struct {
		Logging map[string]any `toml:"logging"`
	}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", configPath, err)
	}
	for key, raw := range doc.Logging {
		s, ok := raw.(string)
		if !ok {
			continue
		}
		switch key {
		case "level":
			cfg.Level = s
		case "format":
			cfg.Format = s
		default:
			cfg.Modules[key] = s
		}
	}
	return cfg, nil
}

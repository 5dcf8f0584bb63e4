package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/spf13/cobra"
)

type cardOptions struct {
	Config string

	BoardFile   string        `toml:"card.board" env:"BOARD"`
	Master      bool          `toml:"card.master" env:"MASTER"`
	Port        int           `toml:"server.port" env:"PORT"`
	ALSACard    uint          `toml:"alsa.card" env:"ALSA_CARD"`
	SettleDelay time.Duration `toml:"card.settle_delay" env:"SETTLE_DELAY"`
	Services    []string      `toml:"features.services" env:"SERVICES"`
	LoggingJack string        `toml:"logging.jack" env:"LOGGING_JACK"`
}

func writeTOML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audiocard.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const cardTOML = `
[server]
port = 9090

[card]
board = "/etc/audiocard/evb.yaml"
master = true
settle_delay = "250ms"

[alsa]
card = 1

[features]
services = ["bluetooth.service", "pipewire.service"]

[logging]
jack = "debug"
`

func TestLoadConfig_FromFile(t *testing.T) {
	opts := &cardOptions{Config: writeTOML(t, cardTOML), Port: 8090}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	want := cardOptions{
		Config:      opts.Config,
		BoardFile:   "/etc/audiocard/evb.yaml",
		Master:      true,
		Port:        9090,
		ALSACard:    1,
		SettleDelay: 250 * time.Millisecond,
		Services:    []string{"bluetooth.service", "pipewire.service"},
		LoggingJack: "debug",
	}
	if !reflect.DeepEqual(*opts, want) {
		t.Errorf("got  %+v\nwant %+v", *opts, want)
	}
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	t.Setenv("AUDIOCARD_PORT", "7000")
	t.Setenv("AUDIOCARD_MASTER", "false")
	t.Setenv("AUDIOCARD_ALSA_CARD", "2")
	t.Setenv("AUDIOCARD_SETTLE_DELAY", "0s")
	t.Setenv("AUDIOCARD_SERVICES", " bluetooth.service , ofono.service ")

	opts := &cardOptions{Config: writeTOML(t, cardTOML)}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if opts.Port != 7000 || opts.Master || opts.ALSACard != 2 || opts.SettleDelay != 0 {
		t.Errorf("env not applied: %+v", opts)
	}
	if want := []string{"bluetooth.service", "ofono.service"}; !reflect.DeepEqual(opts.Services, want) {
		t.Errorf("Services = %v, want %v", opts.Services, want)
	}
	if opts.BoardFile != "/etc/audiocard/evb.yaml" {
		t.Errorf("file value lost: %q", opts.BoardFile)
	}
}

func TestLoadConfig_ChangedFlagWins(t *testing.T) {
	t.Setenv("AUDIOCARD_PORT", "7000")

	opts := &cardOptions{Config: writeTOML(t, cardTOML)}
	cmd := &cobra.Command{Use: "audiocard"}
	cmd.Flags().IntVar(&opts.Port, "port", 8090, "")
	cmd.Flags().StringVar(&opts.BoardFile, "board-file", "", "")
	if err := cmd.Flags().Parse([]string{"--port", "6000"}); err != nil {
		t.Fatal(err)
	}

	if err := LoadConfig(opts, cmd); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if opts.Port != 6000 {
		t.Errorf("Port = %d, want the command line value", opts.Port)
	}
	if opts.BoardFile != "/etc/audiocard/evb.yaml" {
		t.Errorf("unchanged flag should take the file value, got %q", opts.BoardFile)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	opts := &cardOptions{Config: filepath.Join(t.TempDir(), "absent.toml"), Port: 8090}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("missing file should be ignored: %v", err)
	}
	if opts.Port != 8090 {
		t.Errorf("defaults changed: %+v", opts)
	}
}

func TestLoadConfig_InvalidTOML(t *testing.T) {
	opts := &cardOptions{Config: writeTOML(t, "[card\nboard = \n")}
	if err := LoadConfig(opts, nil); err == nil {
		t.Fatal("expected a parse error")
	}
}

func TestLoadConfig_WrongTypesIgnored(t *testing.T) {
	path := writeTOML(t, "[server]\nport = \"eighty\"\n[card]\nmaster = \"sometimes\"\n[alsa]\ncard = -1\n")
	opts := &cardOptions{Config: path, Port: 8090, ALSACard: 3}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatal(err)
	}
	if opts.Port != 8090 || opts.Master || opts.ALSACard != 3 {
		t.Errorf("bad values were applied: %+v", opts)
	}
}

func TestFieldNameToFlag(t *testing.T) {
	cases := map[string]string{
		"Port":               "port",
		"BoardFile":          "board-file",
		"ALSACard":           "alsa-card",
		"LoggingDAI":         "logging-dai",
		"FeaturesLEDControl": "features-led-control",
		"I2CBus":             "i2c-bus",
	}
	for in, want := range cases {
		if got := fieldNameToFlag(in); got != want {
			t.Errorf("fieldNameToFlag(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLookup(t *testing.T) {
	doc := map[string]any{
		"card":  map[string]any{"board": "evb.yaml", "jack": map[string]any{"pin": int64(17)}},
		"label": "top",
	}
	cases := []struct {
		path string
		want any
		ok   bool
	}{
		{"label", "top", true},
		{"card.board", "evb.yaml", true},
		{"card.jack.pin", int64(17), true},
		{"card.missing", nil, false},
		{"label.sub", nil, false},
	}
	for _, tc := range cases {
		got, ok := lookup(doc, tc.path)
		if ok != tc.ok || !reflect.DeepEqual(got, tc.want) {
			t.Errorf("lookup(%q) = %v, %v; want %v, %v", tc.path, got, ok, tc.want, tc.ok)
		}
	}
}

func TestReadLoggingConfig(t *testing.T) {
	path := writeTOML(t, "[logging]\nlevel = \"warn\"\nformat = \"json\"\njack = \"debug\"\nclock = \"error\"\n")

	cfg, err := ReadLoggingConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Level != "warn" || cfg.Format != "json" {
		t.Errorf("got level=%q format=%q", cfg.Level, cfg.Format)
	}
	if want := map[string]string{"jack": "debug", "clock": "error"}; !reflect.DeepEqual(cfg.Modules, want) {
		t.Errorf("Modules = %v, want %v", cfg.Modules, want)
	}

	if _, err := ReadLoggingConfig(path + ".missing"); err == nil {
		t.Error("missing file should be reported")
	}
	if _, err := ReadLoggingConfig(writeTOML(t, "[logging\n")); err == nil {
		t.Error("parse failure should be reported")
	}
	if def := LoadLoggingConfig(path + ".missing"); def.Level != "info" || def.Format != "text" {
		t.Errorf("defaults = %+v", def)
	}
}

package led

import (
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestNoopController(t *testing.T) {
	ctrl := newNoop(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	if err := ctrl.Set(Activity, true, PatternSolid); err != nil {
		t.Errorf("Set() returned error: %v", err)
	}
	if names := ctrl.Available(); len(names) != 0 {
		t.Errorf("Available() = %v, want empty slice", names)
	}
}

func TestSysfsController_Available(t *testing.T) {
	ctrl := newSysfs(t.TempDir(), map[string]string{"user": "usr_led", Activity: "sys_led"})
	if got := ctrl.Available(); !slices.Equal(got, []string{Activity, "user"}) {
		t.Errorf("Available() = %v", got)
	}
}

func TestSysfsController_Set(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "green_led")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	ctrl := newSysfs(root, map[string]string{Activity: "green_led"})

	read := func(file string) string {
		t.Helper()
		data, err := os.ReadFile(filepath.Join(dir, file))
		if err != nil {
			t.Fatal(err)
		}
		return string(data)
	}

	tests := []struct {
		name        string
		on          bool
		pattern     Pattern
		wantTrigger string
		wantBright  string
	}{
		{"solid", true, PatternSolid, "none", "1"},
		{"blink", true, PatternBlink, "heartbeat", "1"},
		{"raw trigger", true, Pattern("timer"), "timer", "1"},
		{"off keeps trigger", false, PatternNone, "timer", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ctrl.Set(Activity, tt.on, tt.pattern); err != nil {
				t.Fatalf("Set() error: %v", err)
			}
			if got := read("trigger"); got != tt.wantTrigger {
				t.Errorf("trigger = %q, want %q", got, tt.wantTrigger)
			}
			if got := read("brightness"); got != tt.wantBright {
				t.Errorf("brightness = %q, want %q", got, tt.wantBright)
			}
		})
	}
}

func TestSysfsController_SetErrors(t *testing.T) {
	ctrl := newSysfs(t.TempDir(), map[string]string{Activity: "missing_led"})

	if err := ctrl.Set("nonexistent", true, PatternNone); err == nil {
		t.Error("Set() with unknown LED should fail")
	}
	if err := ctrl.Set(Activity, true, PatternNone); err == nil {
		t.Error("Set() with missing sysfs directory should fail")
	}
}

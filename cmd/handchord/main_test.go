package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ayusman/handchord/internal/config"
	"github.com/ayusman/handchord/internal/store"
)

// run executes the root command with a config rooted in dir.
func run(t *testing.T, dir string, args ...string) string {
	t.Helper()

	c := config.Default()
	c.DataDir = dir
	path := filepath.Join(dir, "config.json")
	if err := c.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--config", path}, args...))
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("%v: %v\n%s", args, err, out.String())
	}
	return out.String()
}

func TestPresetsCommands(t *testing.T) {
	dir := t.TempDir()

	out := run(t, dir, "presets", "list")
	if !strings.Contains(out, "d-major") || !strings.Contains(out, "*") {
		t.Errorf("list output missing the active default preset:\n%s", out)
	}

	exported := filepath.Join(dir, "d-major.json")
	run(t, dir, "presets", "export", "d-major", "-o", exported)

	data, err := os.ReadFile(exported)
	if err != nil {
		t.Fatalf("export wrote nothing: %v", err)
	}
	renamed := strings.Replace(string(data), `"name": "d-major"`, `"name": "copy"`, 1)
	imported := filepath.Join(dir, "copy.json")
	if err := os.WriteFile(imported, []byte(renamed), 0644); err != nil {
		t.Fatal(err)
	}

	out = run(t, dir, "presets", "import", imported)
	if !strings.Contains(out, `imported "copy"`) {
		t.Errorf("import output = %q", out)
	}

	out = run(t, dir, "presets", "use", "copy")
	if !strings.Contains(out, "active preset: copy") {
		t.Errorf("use output = %q", out)
	}

	out = run(t, dir, "presets", "show", "copy")
	if !strings.Contains(out, `"slot": "left/thumb"`) {
		t.Errorf("show output missing bindings:\n%s", out)
	}
}

func TestActivePreset_Fallback(t *testing.T) {
	cfg = config.Default()
	cfg.DataDir = t.TempDir()

	st, err := openStore()
	if err != nil {
		t.Fatalf("openStore() error = %v", err)
	}
	defer st.Close()

	if err := st.Settings().Set(store.SettingActivePreset, "gone"); err != nil {
		t.Fatal(err)
	}
	cfg.Play.Preset = "also-gone"

	p, err := activePreset(st, "")
	if err != nil {
		t.Fatalf("activePreset() error = %v", err)
	}
	if p.Name != store.DefaultPresetName {
		t.Errorf("activePreset() = %q, want %q", p.Name, store.DefaultPresetName)
	}

	if _, err := activePreset(st, "gone"); err == nil {
		t.Error("explicit unknown preset should fail")
	}
}

func TestSimulateBuiltin(t *testing.T) {
	out := run(t, t.TempDir(), "simulate", "--builtin", "scenario")
	if !strings.Contains(out, "3 frames") {
		t.Errorf("simulate output = %q", out)
	}
}

func TestApplyPlayFlags(t *testing.T) {
	c := config.Default()

	playCmd.Flags().Set("channel", "10")
	playCmd.Flags().Set("sustain", "750ms")
	playCmd.Flags().Set("addr", "off")
	defer func() {
		playCmd.Flags().Set("channel", "1")
		playCmd.Flags().Set("sustain", "0s")
		playCmd.Flags().Set("addr", "")
	}()

	if err := applyPlayFlags(playCmd, c); err != nil {
		t.Fatalf("applyPlayFlags() error = %v", err)
	}
	if c.MIDI.Channel != 10 {
		t.Errorf("Channel = %d, want 10", c.MIDI.Channel)
	}
	if time.Duration(c.Play.Sustain) != 750*time.Millisecond {
		t.Errorf("Sustain = %v, want 750ms", time.Duration(c.Play.Sustain))
	}
	if c.HTTPAddr != "off" {
		t.Errorf("HTTPAddr = %q, want off", c.HTTPAddr)
	}

	playCmd.Flags().Set("channel", "17")
	if err := applyPlayFlags(playCmd, c); err == nil {
		t.Error("expected error for channel 17")
	}
}

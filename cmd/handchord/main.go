// Command handchord plays MIDI chords from finger gestures seen by a camera.
package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ayusman/handchord/internal/config"
	"github.com/ayusman/handchord/internal/store"
)

var (
	configPath string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:          "handchord",
	Short:        "Play chords with your fingers",
	Long:         `handchord watches both hands through a camera and plays a chord for every raised finger.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			p, err := config.DefaultPath()
			if err != nil {
				return err
			}
			path = p
		}

		c, err := config.Load(path)
		if err != nil {
			return err
		}
		cfg = c
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.handchord/config.json)")
}

func main() {
	cobra.CheckErr(rootCmd.Execute())
}

// openStore opens the preset library in the data directory and seeds the
// default preset.
func openStore() (*store.Store, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	st, err := store.New(cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	if _, err := st.Presets().EnsureDefault(); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

// activePreset resolves the preset to play: an explicit name, then the
// preset activated through the API, then the configured one. A stored or
// configured name that no longer exists falls back to the default preset.
func activePreset(st *store.Store, name string) (*store.Preset, error) {
	if name != "" {
		p, err := st.Presets().GetByName(name)
		if err != nil {
			return nil, fmt.Errorf("preset %q: %w", name, err)
		}
		return p, nil
	}

	var candidates []string
	active, err := st.Settings().Get(store.SettingActivePreset)
	switch {
	case err == nil:
		candidates = append(candidates, active)
	case !errors.Is(err, store.ErrNotFound):
		return nil, err
	}
	candidates = append(candidates, cfg.Play.Preset, store.DefaultPresetName)

	for _, c := range candidates {
		if c == "" {
			continue
		}
		p, err := st.Presets().GetByName(c)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("preset %q: %w", c, err)
		}
		log.Printf("Preset %q not found, trying the next one", c)
	}
	return nil, fmt.Errorf("preset %q: %w", store.DefaultPresetName, store.ErrNotFound)
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and the data directory.
// Returns the first existing directory or empty string if none found.
func findWebDir() string {
	candidates := []string{"web", "../web", "../../web", filepath.Join(cfg.DataDir, "web")}
	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}

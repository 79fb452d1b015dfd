package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ayusman/handchord/internal/store"
)

var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "Manage chord presets",
}

var presetsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List presets",
	Args:  cobra.NoArgs,
	RunE: withStore(func(cmd *cobra.Command, st *store.Store, args []string) error {
		presets, err := st.Presets().List()
		if err != nil {
			return err
		}
		active, err := activePreset(st, "")
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "\tNAME\tSLOTS\tINSTRUMENTS\tSUSTAIN\tDESCRIPTION")
		for _, p := range presets {
			mark := ""
			if p.ID == active.ID {
				mark = "*"
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%v\t%s\n", mark, p.Name, len(p.Bindings), len(p.Instruments), time.Duration(p.Sustain), p.Description)
		}
		return w.Flush()
	}),
}

var presetsShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Print a preset as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: withStore(func(cmd *cobra.Command, st *store.Store, args []string) error {
		p, err := st.Presets().GetByName(args[0])
		if err != nil {
			return fmt.Errorf("preset %q: %w", args[0], err)
		}
		return writePreset(cmd, p, "")
	}),
}

var exportPath string

var presetsExportCmd = &cobra.Command{
	Use:   "export <name>",
	Short: "Write a preset to a JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: withStore(func(cmd *cobra.Command, st *store.Store, args []string) error {
		p, err := st.Presets().GetByName(args[0])
		if err != nil {
			return fmt.Errorf("preset %q: %w", args[0], err)
		}
		return writePreset(cmd, p, exportPath)
	}),
}

var importReplace bool

var presetsImportCmd = &cobra.Command{
	Use:   "import <file.json>",
	Short: "Add a preset from a JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: withStore(func(cmd *cobra.Command, st *store.Store, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		var p store.Preset
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("failed to parse %s: %w", args[0], err)
		}
		p.ID = ""

		existing, err := st.Presets().GetByName(p.Name)
		switch {
		case err == nil && importReplace:
			p.ID = existing.ID
			p.CreatedAt = existing.CreatedAt
			err = st.Presets().Update(&p)
		case err == nil:
			return fmt.Errorf("preset %q: %w (use --replace)", p.Name, store.ErrExists)
		case errors.Is(err, store.ErrNotFound):
			err = st.Presets().Create(&p)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "imported %q\n", p.Name)
		return nil
	}),
}

var presetsUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Make a preset the one played by default",
	Args:  cobra.ExactArgs(1),
	RunE: withStore(func(cmd *cobra.Command, st *store.Store, args []string) error {
		p, err := st.Presets().GetByName(args[0])
		if err != nil {
			return fmt.Errorf("preset %q: %w", args[0], err)
		}
		if err := st.Settings().Set(store.SettingActivePreset, p.Name); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "active preset: %s\n", p.Name)
		return nil
	}),
}

func init() {
	presetsExportCmd.Flags().StringVarP(&exportPath, "output", "o", "", "output file (default: stdout)")
	presetsImportCmd.Flags().BoolVar(&importReplace, "replace", false, "replace a preset with the same name")

	presetsCmd.AddCommand(presetsListCmd, presetsShowCmd, presetsExportCmd, presetsImportCmd, presetsUseCmd)
	rootCmd.AddCommand(presetsCmd)
}

// withStore opens the preset store around a command.
func withStore(run func(cmd *cobra.Command, st *store.Store, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		return run(cmd, st, args)
	}
}

func writePreset(cmd *cobra.Command, p *store.Preset, path string) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	if path == "" {
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}
	return os.WriteFile(path, data, 0644)
}

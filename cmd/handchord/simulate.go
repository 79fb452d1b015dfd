package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/ayusman/handchord/internal/app"
	"github.com/ayusman/handchord/internal/engine"
	"github.com/ayusman/handchord/internal/sink"
	"github.com/ayusman/handchord/testdata"
)

var simOpts struct {
	preset   string
	realtime bool
	midi     bool
	builtin  bool
}

var simulateCmd = &cobra.Command{
	Use:   "simulate <script.json>",
	Short: "Play a scripted sequence of frames without a camera",
	Long: `Feeds a script of finger readings to the note engine and prints every event.
With --builtin the argument names one of the bundled scripts.`,
	Args: cobra.ExactArgs(1),
	RunE: runSimulate,
}

func init() {
	f := simulateCmd.Flags()
	f.StringVar(&simOpts.preset, "preset", "", "preset to play (default: the script's, then the active preset)")
	f.BoolVar(&simOpts.realtime, "realtime", false, "play frames at their script times instead of instantly")
	f.BoolVar(&simOpts.midi, "midi", false, "also send the events to the MIDI output")
	f.BoolVar(&simOpts.builtin, "builtin", false, "load a bundled script by name")

	rootCmd.AddCommand(simulateCmd)
}

func loadScript(arg string) (*app.Script, error) {
	if !simOpts.builtin {
		return app.LoadScript(arg)
	}
	data, err := testdata.Script(arg)
	if err != nil {
		names, _ := testdata.Scripts()
		return nil, fmt.Errorf("%w (bundled scripts: %v)", err, names)
	}
	return app.ParseScript(data)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	script, err := loadScript(args[0])
	if err != nil {
		return err
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	name := simOpts.preset
	if name == "" {
		name = script.Preset
	}
	preset, err := activePreset(st, name)
	if err != nil {
		return err
	}
	engineCfg, err := preset.EngineConfig()
	if err != nil {
		return fmt.Errorf("preset %q: %w", preset.Name, err)
	}
	mapping := preset.Mapping()
	cfg.Play.Apply(&engineCfg, &mapping)

	start := time.Now()
	sinks := sink.Multi{sink.NewLog(log.New(os.Stdout, "", 0)).WithStart(start)}
	if simOpts.midi {
		defer sink.CloseDriver()
		out, err := sink.OpenMIDI(cfg.MIDI.Port, cfg.MIDIChannel())
		if err != nil {
			return err
		}
		defer out.Close()
		sinks = append(sinks, out)
	}

	queue := sink.NewQueue(sinks)
	defer queue.Close()
	engineCfg.Sink = queue

	var manual *engine.ManualScheduler
	if !simOpts.realtime {
		manual = engine.NewManualScheduler(start)
		engineCfg.Scheduler = manual
		engineCfg.Now = manual.Now
	}

	eng, err := engine.New(engineCfg)
	if err != nil {
		return err
	}
	defer eng.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Fprintf(cmd.OutOrStdout(), "preset %q, %d frames over %v\n", preset.Name, len(script.Frames), script.Duration())
	if err := script.Play(ctx, eng, start, manual); err != nil {
		eng.Silence()
		return err
	}
	return nil
}

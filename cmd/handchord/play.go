package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/ayusman/handchord/internal/app"
	"github.com/ayusman/handchord/internal/capture"
	"github.com/ayusman/handchord/internal/config"
	"github.com/ayusman/handchord/internal/detector"
	"github.com/ayusman/handchord/internal/server"
	"github.com/ayusman/handchord/internal/sink"
	"github.com/ayusman/handchord/internal/tray"
	"github.com/ayusman/handchord/internal/tui"
)

var playOpts struct {
	preset        string
	camera        int
	noMirror      bool
	port          string
	channel       int
	addr          string
	sustain       time.Duration
	velocity      bool
	mirroredHands bool
	tui           bool
	tray          bool
}

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Play chords from the camera",
	Long: `Opens the camera and the MIDI output and plays the active preset.
The web UI, the MJPEG stream and the event feed are served on --addr.`,
	RunE: runPlay,
}

func init() {
	f := playCmd.Flags()
	f.StringVar(&playOpts.preset, "preset", "", "preset to play (default: the active preset)")
	f.IntVar(&playOpts.camera, "camera", 0, "camera device id")
	f.BoolVar(&playOpts.noMirror, "no-mirror", false, "do not flip camera frames horizontally")
	f.StringVar(&playOpts.port, "port", "", "MIDI output port name (default: first port)")
	f.IntVar(&playOpts.channel, "channel", 1, "MIDI channel, 1-16")
	f.StringVar(&playOpts.addr, "addr", "", `HTTP listen address, "off" disables the server`)
	f.DurationVar(&playOpts.sustain, "sustain", 0, "time a chord keeps sounding after its finger is lowered")
	f.BoolVar(&playOpts.velocity, "velocity", false, "shape velocity by hand height")
	f.BoolVar(&playOpts.mirroredHands, "mirrored-hands", false, "swap the detector's Left and Right hands")
	f.BoolVar(&playOpts.tui, "tui", false, "show the terminal monitor")
	f.BoolVar(&playOpts.tray, "tray", false, "show the system tray menu")
	playCmd.MarkFlagsMutuallyExclusive("tui", "tray")

	rootCmd.AddCommand(playCmd)
}

// applyPlayFlags overrides config values with the flags given on the
// command line.
func applyPlayFlags(cmd *cobra.Command, c *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("camera") {
		c.Camera.ID = playOpts.camera
	}
	if playOpts.noMirror {
		c.Camera.Mirror = false
	}
	if flags.Changed("port") {
		c.MIDI.Port = playOpts.port
	}
	if flags.Changed("channel") {
		c.MIDI.Channel = playOpts.channel
	}
	if flags.Changed("addr") {
		c.HTTPAddr = playOpts.addr
	}
	if flags.Changed("sustain") {
		c.Play.Sustain = config.Duration(playOpts.sustain)
	}
	if playOpts.velocity {
		c.Play.VelocityShaping = true
	}
	if playOpts.mirroredHands {
		c.Play.MirroredHands = true
	}
	return c.Validate()
}

func runPlay(cmd *cobra.Command, args []string) error {
	if err := applyPlayFlags(cmd, cfg); err != nil {
		return err
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	preset, err := activePreset(st, playOpts.preset)
	if err != nil {
		return err
	}
	engineCfg, err := preset.EngineConfig()
	if err != nil {
		return fmt.Errorf("preset %q: %w", preset.Name, err)
	}
	mapping := preset.Mapping()
	cfg.Play.Apply(&engineCfg, &mapping)
	log.Printf("Playing preset %q (sustain %v, mirrored hands %v)", preset.Name, engineCfg.Sustain, mapping.Mirrored)

	if playOpts.tui {
		// The terminal belongs to the monitor.
		f, err := tea.LogToFile(filepath.Join(cfg.DataDir, "handchord.log"), "")
		if err != nil {
			return err
		}
		defer f.Close()
	}

	defer sink.CloseDriver()
	out, err := sink.OpenMIDI(cfg.MIDI.Port, cfg.MIDIChannel())
	if err != nil {
		return err
	}
	defer out.Close()

	hub := server.NewEventHub()
	defer hub.Close()

	sinks := sink.Multi{out, hub, sink.NewLog(nil)}

	var monitor *tui.Sink
	if playOpts.tui {
		monitor = tui.NewSink()
		defer monitor.Close()
		sinks = append(sinks, monitor)
	}

	var menu *tray.Tray
	if playOpts.tray {
		menu = tray.New()
		sinks = append(sinks, menu)
	}

	a, err := app.New(app.Config{
		Engine:             engineCfg,
		Mapping:            mapping,
		Camera:             capture.NewCamera(cameraOptions(cfg)),
		Detector:           newDetector(cfg),
		Sink:               sinks,
		MotionThreshold:    cfg.Camera.MotionThreshold,
		CalibrationSamples: cfg.Calibration.Samples,
		CalibrationTimeout: time.Duration(cfg.Calibration.Timeout),
	})
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Start(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.HTTPAddr != "" && cfg.HTTPAddr != "off" {
		srv := server.New(server.Config{
			StaticDir: findWebDir(),
			Store:     st,
			Player:    a,
			Frames:    a,
			Events:    hub,
		})
		httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv}
		go func() {
			log.Printf("Starting server on %s", cfg.HTTPAddr)
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("Server failed: %v", err)
				stop()
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			httpSrv.Shutdown(shutdownCtx)
		}()
	}

	switch {
	case monitor != nil:
		go func() {
			<-ctx.Done()
			monitor.Close()
		}()
		return tui.Run(a, monitor)

	case menu != nil:
		menu.OnToggle(a.SetEnabled)
		menu.OnNextInstrument(a.NextInstrument)
		menu.OnSettings(func() { openBrowser(cfg.HTTPAddr) })
		menu.OnQuit(stop)
		go func() {
			<-ctx.Done()
			menu.Quit()
		}()
		menu.Run()
		return nil

	default:
		<-ctx.Done()
		return nil
	}
}

func cameraOptions(c *config.Config) capture.Options {
	opts := capture.DefaultOptions()
	opts.DeviceID = c.Camera.ID
	opts.Mirror = c.Camera.Mirror
	return opts
}

// newDetector starts the MediaPipe detector, falling back to a detector
// that never sees hands.
func newDetector(c *config.Config) detector.Detector {
	dc := detector.DefaultConfig()
	dc.Script = c.Detector.Script
	dc.Python = c.Detector.Python
	if c.Detector.MinConfidence > 0 {
		dc.MinConfidence = c.Detector.MinConfidence
	}

	mp, err := detector.NewMediaPipeDetector(dc)
	if err != nil {
		log.Printf("MediaPipe not available (%v), using mock detector", err)
		return detector.NewMockDetector()
	}
	log.Println("Using MediaPipe hand detection")
	return mp
}

// openBrowser opens the web UI served on addr.
func openBrowser(addr string) {
	url := "http://localhost" + addr
	if addr != "" && addr[0] != ':' {
		url = "http://" + addr
	}

	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		log.Printf("Failed to open %s: %v", url, err)
	}
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	buchla "github.com/cbegin/buchla-go"
	"github.com/cbegin/buchla-go/internal/analysis"
	"github.com/cbegin/buchla-go/internal/midictl"
	"github.com/cbegin/buchla-go/internal/seqfile"
)

// defaultPhrase is a C major arpeggio spread over the three oscillators.
func defaultPhrase() buchla.Sequence {
	pitches := []int{60, 64, 67, 72, 67, 64, 62, 65}
	notes := make([]buchla.Note, len(pitches))
	for i, p := range pitches {
		start := float64(i) * 0.25
		notes[i] = buchla.Note{Pitch: p, StartTime: start, EndTime: start + 0.2, Velocity: 0.9, Channel: i % 3}
	}
	return buchla.Sequence{Notes: notes}
}

func main() {
	var (
		configPath = flag.String("config", "", "path to a YAML rack file")
		seqPath    = flag.String("seq", "", "sequence file (.yaml, .json or .mid)")
		renderPath = flag.String("render", "", "render to this WAV file instead of playing live")
		exportPath = flag.String("export", "", "write the loaded sequence to this file (.yaml, .json or .mid) and exit")
		seconds    = flag.Float64("seconds", 8, "render length, or live play time (0 = until interrupted)")
		channels   = flag.Int("channels", 2, "render channels: 2 or 4")
		analyze    = flag.Bool("analyze", false, "print a spectrum report of the render")
		backend    = flag.String("backend", "", "live output: ebiten (stereo) or oto (quad)")
		tempo      = flag.Float64("tempo", 0, "master clock tempo in BPM (0 = from config)")
		volume     = flag.Float64("volume", -1, "master volume 0-1 (negative = from config)")
		loops      = flag.Int("loops", 0, "stop live playback after N sequence loops (0 = no limit)")
		midiIn     = flag.String("midi", "", "listen to MIDI inputs whose name starts with this prefix")
		listMIDI   = flag.Bool("list-midi", false, "list MIDI inputs and exit")
		logLevel   = flag.String("log-level", "", "debug, info, warn or error (default from config)")
	)
	flag.Parse()

	cfg := buchla.DefaultConfig()
	if *configPath != "" {
		c, err := buchla.LoadConfig(*configPath)
		if err != nil {
			fatal(err)
		}
		cfg = c
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *backend != "" {
		cfg.Backend = *backend
	}
	if *tempo > 0 {
		cfg.Tempo = *tempo
	}
	if *volume >= 0 {
		cfg.MasterVolume = *volume
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Level()}))
	slog.SetDefault(logger)

	if *listMIDI {
		names, err := midictl.Inputs()
		if err != nil {
			fatal(err)
		}
		for _, n := range names {
			fmt.Println(n)
		}
		return
	}

	seq := defaultPhrase()
	if *seqPath != "" {
		s, err := seqfile.Load(*seqPath)
		if err != nil {
			fatal(err)
		}
		seq = s
	}
	if *exportPath != "" {
		if err := export(*exportPath, seq, cfg.Tempo); err != nil {
			fatal(err)
		}
		return
	}

	engine, err := buchla.New(buchla.WithConfig(cfg), buchla.WithLogger(logger))
	if err != nil {
		fatal(err)
	}
	defer engine.Close()
	if err := engine.Initialize(); err != nil {
		fatal(err)
	}

	if *renderPath != "" {
		if err := render(engine, seq, *renderPath, *seconds, *channels, *analyze); err != nil {
			fatal(err)
		}
		return
	}
	if err := play(engine, seq, *seconds, *loops, *midiIn, logger); err != nil {
		fatal(err)
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "buchla:", err)
	os.Exit(1)
}

func export(path string, seq buchla.Sequence, bpm float64) error {
	format, err := seqfile.FormatOf(path)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if format == seqfile.FormatMIDI {
		err = seqfile.WriteMIDI(f, seq, bpm)
	} else {
		err = seqfile.Write(f, seq, format)
	}
	return errors.Join(err, f.Close())
}

func render(e *buchla.Engine, seq buchla.Sequence, path string, seconds float64, channels int, analyze bool) error {
	samples, err := e.Render(seq, seconds, channels)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, buchla.EncodeWAVFloat32LE(samples, e.SampleRate(), channels), 0o644); err != nil {
		return err
	}
	slog.Info("rendered", "path", path, "seconds", seconds, "channels", channels)
	if !analyze {
		return nil
	}
	mono := make([]float64, len(samples)/channels)
	for k := range mono {
		for c := 0; c < channels; c++ {
			mono[k] += float64(samples[k*channels+c])
		}
		mono[k] /= float64(channels)
	}
	rep, err := analysis.Analyze(mono, float64(e.SampleRate()))
	if err != nil {
		return fmt.Errorf("analyze: %w", err)
	}
	fmt.Printf("peak frequency  %8.2f Hz\n", rep.PeakHz)
	fmt.Printf("fundamental     %8.2f Hz\n", rep.Fundamental)
	fmt.Printf("THD             %8.4f (%.1f dB)\n", rep.THD, rep.THDdB)
	fmt.Printf("RMS             %8.4f\n", rep.RMS)
	fmt.Printf("peak level      %8.4f\n", rep.PeakLevel)
	return nil
}

func play(e *buchla.Engine, seq buchla.Sequence, seconds float64, loops int, midiPrefix string, logger *slog.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	if seconds > 0 {
		var stop context.CancelFunc
		ctx, stop = context.WithTimeout(ctx, time.Duration(seconds*float64(time.Second)))
		defer stop()
	}

	if strings.TrimSpace(midiPrefix) != "" {
		bridge := midictl.NewBridge(e, logger)
		stopMIDI, err := midictl.Listen(midiPrefix, bridge)
		if err != nil {
			return fmt.Errorf("midi: %w", err)
		}
		defer stopMIDI()
	}

	events := e.Watch()
	if err := e.Play(ctx); err != nil {
		return err
	}
	e.StartPlayback(seq)
	if !e.Playing() {
		return errors.New("sequence has no playable notes")
	}

	loopCount := 0
	for {
		select {
		case <-ctx.Done():
			e.StopPlayback()
			return e.Stop()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			switch ev.Kind {
			case buchla.EventLoopWrapped:
				loopCount++
				logger.Info("loop completed", "loop", loopCount, "head", ev.Step.Head)
				if loops > 0 && loopCount >= loops {
					e.StopPlayback()
					return e.Stop()
				}
			case buchla.EventStep:
				logger.Debug("step", "head", ev.Step.Head, "step", ev.Step.Step, "cv", ev.Step.CV, "channel", ev.Step.Channel)
			}
		}
	}
}

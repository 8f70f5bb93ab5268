// hooksdemo drives a synthetic offscreen surface through a render loop
// and runs one configured capture hook against it: a headless end-to-end
// exercise of the hook registry, the sampler hooks and the batch
// pipeline.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/e7canasta/renderhooks"
	"github.com/e7canasta/renderhooks/display"
	"github.com/e7canasta/renderhooks/loop"
	"github.com/e7canasta/renderhooks/offscreen"
)

const defaultConfigPath = "config/hooksdemo.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		slog.Error("hooksdemo: failed to load config", "path", *configPath, "error", err)
		os.Exit(1)
	}

	slog.Info("hooksdemo: starting",
		"mode", cfg.Capture.Mode,
		"surface", fmt.Sprintf("%dx%d", cfg.Surface.Width, cfg.Surface.Height),
		"fps", cfg.Surface.FPS,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		slog.Info("hooksdemo: received shutdown signal", "signal", sig)
		cancel()
	}()

	if err := run(ctx, cfg); err != nil {
		slog.Error("hooksdemo: run failed", "error", err)
		os.Exit(1)
	}
	slog.Info("hooksdemo: done")
}

func run(ctx context.Context, cfg *Config) error {
	surface, err := offscreen.New(cfg.Surface.Width, cfg.Surface.Height)
	if err != nil {
		return err
	}

	reg := loop.NewRegistry()
	defer reg.Close()

	hook, cleanup, err := buildHook(cfg)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}

	handle, err := reg.Attach(hook)
	if err != nil {
		return err
	}

	// Render loop: draw a frame, then invoke the hooks, at the target
	// cadence, until the hook reaches a terminal state or the context
	// is cancelled.
	ticker := time.NewTicker(time.Second / time.Duration(cfg.Surface.FPS))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("hooksdemo: render loop cancelled",
				"frames", surface.FrameCount(),
			)
			return nil
		case <-ticker.C:
			surface.Advance(drawGradient)
			reg.Invoke(surface)
		}

		st := handle.Hook().State()
		if st.Ready() {
			report(hook, surface)
			return surface.Flush()
		}
		if st.Terminated() {
			return fmt.Errorf("capture terminated: %w", st.Err())
		}
	}
}

// buildHook constructs the configured hook. The returned cleanup, when
// non-nil, releases resources the hook's displayer holds.
func buildHook(cfg *Config) (renderhooks.Hook, func(), error) {
	switch cfg.Capture.Mode {
	case "screenshot":
		return renderhooks.NewScreenshot(cfg.Capture.Path), nil, nil

	case "sequence":
		h, err := renderhooks.NewSequence(renderhooks.SequenceConfig{
			Dir:      cfg.Capture.Dir,
			Template: cfg.Capture.Template,
			Period:   cfg.Capture.Period(),
			Start:    cfg.Capture.Start,
			Limit:    cfg.Capture.Limit,
		})
		return h, nil, err

	case "grab":
		h, err := renderhooks.NewGrab(renderhooks.GrabConfig{
			Period: cfg.Capture.Period(),
			Limit:  cfg.Capture.Limit,
		})
		return h, nil, err

	case "portal":
		disp, err := display.ConnectMQTT(display.MQTTConfig{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Topic:    cfg.MQTT.Topic,
			QoS:      cfg.MQTT.QoS,
		})
		if err != nil {
			return nil, nil, err
		}
		h, err := renderhooks.NewPortal(renderhooks.PortalConfig{
			Displayer: disp.Displayer(),
			FrameRate: cfg.Capture.FrameRate,
			TimeLimit: cfg.Capture.TimeLimit(),
		})
		if err != nil {
			disp.Close()
			return nil, nil, err
		}
		return h, disp.Close, nil

	case "pipeline":
		h, err := renderhooks.NewBlockPipeline(renderhooks.PipelineConfig{
			Period:    cfg.Capture.Period(),
			Limit:     cfg.Capture.Limit,
			BatchSize: cfg.Capture.BatchSize,
			Process: func(blk *renderhooks.Block) error {
				rows, cols := blk.Bounds()
				slog.Info("hooksdemo: block processed",
					"trace_id", blk.TraceID,
					"frames", blk.Len(),
					"shape", fmt.Sprintf("%dx%d", rows, cols),
				)
				return nil
			},
			OnComplete: func() {
				slog.Info("hooksdemo: pipeline worker finished")
			},
		})
		return h, nil, err

	default:
		return nil, nil, fmt.Errorf("unknown capture mode %q", cfg.Capture.Mode)
	}
}

// report logs mode-specific results after a hook completes.
func report(hook renderhooks.Hook, surface *offscreen.Surface) {
	switch h := hook.(type) {
	case *renderhooks.Sequence:
		slog.Info("hooksdemo: sequence complete",
			"files", len(h.Saved()),
			"surface_stats", surface.Stats(),
		)
	case *renderhooks.Grab:
		slog.Info("hooksdemo: grab complete", "frames", len(h.Frames()))
	case *renderhooks.BlockHook:
		stats := h.Stats()
		slog.Info("hooksdemo: pipeline complete",
			"frames", stats.FramesCaptured,
			"blocks_submitted", stats.BlocksSubmitted,
			"blocks_reused", stats.BlocksReused,
			"blocks_allocated", stats.BlocksAllocated,
		)
	default:
		slog.Info("hooksdemo: capture complete", "hook", hook.Name())
	}
}

// drawGradient renders a moving diagonal gradient so saved frames are
// visually distinct.
func drawGradient(pix []byte, width, height int, frame uint64) {
	shift := byte(frame)
	i := 0
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			pix[i] = 0xff // non-color lead channel
			pix[i+1] = byte(x) + shift
			pix[i+2] = byte(y) + shift
			pix[i+3] = byte(x+y) - shift
			i += 4
		}
	}
}

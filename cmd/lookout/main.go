// Lookout - watches a camera for a target object and reacts with sound
//
// Countdown mode scans the back camera; once the target is held for the
// countdown the session switches to reactive mode on the front camera and
// loops a sound while the target stays in view.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-lookout/internal/config"
	"github.com/teslashibe/go-lookout/internal/log"
	"github.com/teslashibe/go-lookout/pkg/audio"
	"github.com/teslashibe/go-lookout/pkg/behavior"
	"github.com/teslashibe/go-lookout/pkg/camera"
	"github.com/teslashibe/go-lookout/pkg/debug"
	"github.com/teslashibe/go-lookout/pkg/inference"
	"github.com/teslashibe/go-lookout/pkg/session"
	"github.com/teslashibe/go-lookout/pkg/web"
)

// cameraRetry is how long to wait before reopening a camera that failed.
const cameraRetry = 2 * time.Second

// previewInterval rate-limits camera frames sent to the dashboard.
const previewInterval = 200 * time.Millisecond

func main() {
	cfg, opts, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Configuration error: %v\n", err)
		os.Exit(2)
	}
	log.Init(cfg.LogLevel)
	debug.Enabled = opts.debug
	debug.Frames = opts.debugFrames

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, opts); err != nil {
		log.Error("lookout stopped", "err", err)
		os.Exit(1)
	}
}

type runOptions struct {
	debug       bool
	debugFrames bool
	noWeb       bool
	preview     bool
}

// parseFlags loads the config file and applies command line overrides.
func parseFlags() (config.Config, runOptions, error) {
	var opts runOptions

	path := flag.String("config", "", "YAML config file")
	target := flag.String("target", "", "Target identifier (overrides config)")
	model := flag.String("model", "", "Model file (overrides config)")
	kind := flag.String("model-kind", "", "Model kind: yolo, yunet, classifier")
	labels := flag.String("labels", "", "Classifier labels file")
	policy := flag.String("lost-policy", "", "Reactive lost policy: immediate (A) or grace (B)")
	mode := flag.String("mode", "", "Start mode: countdown or reactive")
	port := flag.String("port", "", "Dashboard port")
	sound := flag.String("sound", "", "Sound backend: gst or log")
	flag.BoolVar(&opts.debug, "debug", false, "Enable verbose debug logging")
	flag.BoolVar(&opts.debugFrames, "debug-frames", false, "Trace every frame")
	flag.BoolVar(&opts.noWeb, "no-web", false, "Disable the dashboard")
	flag.BoolVar(&opts.preview, "preview", true, "Stream camera preview to the dashboard")
	flag.Parse()

	cfg, err := config.Load(*path)
	if err != nil {
		return cfg, opts, err
	}

	if *target != "" {
		cfg.Session.Stability.TargetID = *target
	}
	if *model != "" {
		cfg.Model.Path = *model
	}
	if *kind != "" {
		cfg.Model.Kind = *kind
	}
	if *labels != "" {
		cfg.Model.Labels = *labels
	}
	if *policy != "" {
		p, err := behavior.ParseLostPolicy(*policy)
		if err != nil {
			return cfg, opts, err
		}
		cfg.Session.Behavior.LostPolicy = p
	}
	if *mode != "" {
		cfg.StartMode = *mode
	}
	if *port != "" {
		cfg.Web.Port = *port
	}
	if *sound != "" {
		cfg.Sound = *sound
	}
	if opts.debug {
		cfg.LogLevel = "debug"
	}

	return cfg, opts, cfg.Resolve()
}

func run(ctx context.Context, cfg config.Config, opts runOptions) error {
	var sound behavior.Sound
	switch cfg.Sound {
	case config.SoundLog:
		sound = audio.NewLogSound()
	default:
		player := audio.NewPlayer(cfg.Audio)
		defer player.Close()
		sound = player
	}

	sess, err := session.Open(cfg.Session, session.Collaborators{Sound: sound}, cfg.Model.Options())
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	defer sess.Close()

	var (
		srv      *web.Server
		previewT atomic.Int64
	)
	perm := &permissionGate{report: sess.ReportPermission}

	cameras := camera.NewManager(cfg.Camera)
	src := camera.NewSource(cfg.Camera, func(f inference.Frame) bool {
		perm.frameArrived()
		if srv != nil && opts.preview {
			now := time.Now().UnixNano()
			if last := previewT.Load(); now-last >= int64(previewInterval) && previewT.CompareAndSwap(last, now) {
				srv.SendCameraFrame(f.Data)
			}
		}
		return sess.OnFrame(f)
	})
	cameras.OnConfigChange = src.ApplyConfig

	// countdown mode looks out the back, reactive mode at the user
	sess.Subscribe(func(ev session.Event) {
		if ev.Kind != session.EventModeChanged {
			return
		}
		if ev.Mode == behavior.ModeReactive.String() {
			src.SetFacing(camera.FacingFront)
		} else {
			src.SetFacing(camera.FacingBack)
		}
	})

	if !opts.noWeb {
		srv = web.NewServer(cfg.Web, sess, cameras)
		sess.Subscribe(srv.HandleEvent)
	}

	log.Info("lookout starting",
		"session", sess.ID().String(),
		"target", cfg.Session.Stability.TargetID,
		"model", cfg.Model.Path,
		"lost_policy", cfg.Session.Behavior.LostPolicy,
		"start_mode", cfg.StartMode,
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sess.Run(ctx) })
	g.Go(func() error { return capture(ctx, src, perm) })
	if srv != nil {
		g.Go(func() error { return srv.Run(ctx) })
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// capture keeps the camera running. An unavailable device is reported to
// the session as a denied permission and retried.
func capture(ctx context.Context, src *camera.Source, perm *permissionGate) error {
	logger := log.For("camera")
	for {
		err := src.Run(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, camera.ErrDeviceUnavailable) {
			perm.deviceUnavailable()
			logger.Warn("camera unavailable, retrying", "err", err, "retry", cameraRetry)
		} else {
			logger.Error("capture failed, retrying", "err", err, "retry", cameraRetry)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(cameraRetry):
		}
	}
}

// permissionGate reports each camera permission change to the session once.
type permissionGate struct {
	denied atomic.Bool
	report func(granted bool)
}

// frameArrived runs on the capture callback, which must not wait on the
// session loop, so the grant is reported from its own goroutine.
func (g *permissionGate) frameArrived() {
	if g.denied.CompareAndSwap(true, false) {
		go g.report(true)
	}
}

func (g *permissionGate) deviceUnavailable() {
	if g.denied.CompareAndSwap(false, true) {
		g.report(false)
	}
}

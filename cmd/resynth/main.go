package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime/pprof"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/resynth/resynth"
	"github.com/resynth/resynth/builtin"
	"github.com/resynth/resynth/cmd"
	"github.com/resynth/resynth/config"
	"github.com/resynth/resynth/device"
	"github.com/resynth/resynth/device/controlxl"
	"github.com/resynth/resynth/device/launchpad"
	"github.com/resynth/resynth/engine"
	"github.com/resynth/resynth/host"
	"github.com/resynth/resynth/report"
	"github.com/resynth/resynth/rpc"
	"github.com/resynth/resynth/version"
	"github.com/resynth/resynth/wasmhost"
	"github.com/resynth/resynth/watch"
	"github.com/resynth/resynth/wavetable"
	"go.uber.org/zap"
)

var (
	configPath  = flag.String("config", "", "read the configuration from `file` instead of the user config directory")
	artifact    = flag.String("program", "", "play the program `artifact`: a .wasm file or builtin:<name>")
	backend     = flag.String("audio", "", "audio backend: oto, portaudio or headless")
	sampleRate  = flag.Int("rate", 0, "sample rate in Hz")
	rpcAddress  = flag.String("rpc", "", "listen for remote control on `address`")
	noMidi      = flag.Bool("no-midi", false, "do not connect the control surfaces")
	noWatch     = flag.Bool("no-watch", false, "do not reload the program when its artifact changes")
	logLevel    = flag.String("log", "", "log `level`: debug, info, warn or error")
	printConfig = flag.Bool("print-config", false, "print the effective configuration and exit")
	record      = flag.String("record", "", "write the first seconds of audio to a .wav `file` on exit")
	recordFor   = flag.Duration("record-for", time.Minute, "length of the recording")
	pcm         = flag.Bool("c", false, "record 16-bit signed PCM instead of float32")
	cpuprofile  = flag.String("cpuprofile", "", "write cpu profile to `file`")
	versionFlag = flag.Bool("v", false, "print version")
)

func main() {
	flag.Usage = printUsage
	flag.Parse()
	if *versionFlag {
		fmt.Println(version.String("resynth"))
		os.Exit(0)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not load configuration: %v\n", err)
		os.Exit(1)
	}
	applyFlags(&cfg)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if *printConfig {
		fmt.Print(cfg)
		os.Exit(0)
	}
	logger, err := cfg.Log.Logger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			logger.Fatal("could not create CPU profile", zap.Error(err))
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			logger.Fatal("could not start CPU profile", zap.Error(err))
		}
		defer pprof.StopCPUProfile()
	}
	if err := run(cfg, logger); err != nil {
		logger.Error("stopped", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bank := wavetable.DefaultBank()
	bank.Warm()
	wasm, err := wasmhost.NewLoader(ctx, wasmhost.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("cannot create the WebAssembly runtime: %w", err)
	}
	defer wasm.Close()
	mux := host.NewMux(wasm)
	mux.Handle(builtin.Scheme, builtin.Loader{Bank: bank})

	h, err := host.New(ctx, mux, cfg.Program.Artifact,
		host.WithLogger(logger),
		host.WithBudget(cfg.Control.Budget),
		host.WithSwapBudget(cfg.Control.SwapBudget))
	if err != nil {
		return err
	}
	defer h.Close()

	audioContext, err := cmd.NewAudioContext(cfg.Audio)
	if err != nil {
		return fmt.Errorf("could not acquire audio context: %w", err)
	}
	defer audioContext.Close()
	rate := audioContext.SampleRate()

	broker := engine.NewBroker()
	meter := engine.NewMeter(maxFrames(audioContext))
	opts := []engine.ControllerOption{
		engine.WithLogger(logger),
		engine.WithMeter(meter),
		engine.WithInterval(cfg.Control.Interval),
		engine.WithStatusInterval(cfg.Control.StatusInterval),
	}
	if cfg.Devices.Enabled {
		ports := cmd.NewMidiContext()
		defer ports.Close()
		pad, err := connect[launchpad.Input, launchpad.Output](ports, cfg.Devices.Pad, launchpad.NewCodec(cfg.Devices.Launchpad), logger)
		if err != nil {
			return err
		}
		ctrl, err := connect[controlxl.Input, controlxl.Output](ports, cfg.Devices.Control, controlxl.NewCodec(), logger)
		if err != nil {
			return err
		}
		opts = append(opts, engine.WithSurfaces(pad, ctrl))
	}
	controller := engine.NewController(h, broker, opts...)

	var (
		source   resynth.AudioSource = engine.NewRenderer(h.Cell(), broker, meter, rate)
		recorder *engine.Recorder
	)
	if *record != "" {
		recorder = engine.NewRecorder(source, int(recordFor.Seconds()*float64(rate)))
		source = recorder
	}
	audioCloser, err := audioContext.Play(source)
	if err != nil {
		return fmt.Errorf("could not start audio: %w", err)
	}
	defer audioCloser.Close()

	if cfg.Program.Watch && mux.IsFile(cfg.Program.Artifact) {
		w, err := watch.New(cfg.Program.Artifact, watch.WithDebounce(cfg.Program.Debounce), watch.WithLogger(logger))
		if err != nil {
			logger.Warn("not watching the artifact", zap.Error(err))
		} else {
			defer w.Close()
			go w.Run(ctx, broker.Reloads)
		}
	}

	collect := func(st host.Status) report.Data {
		return report.Collect("resynth", version.VersionOrHash, st, meter, controller.Underruns())
	}
	if cfg.RPC.Address != "" {
		server, err := rpc.Listen(cfg.RPC.Address, rpc.NewControl(h, collect))
		if err != nil {
			return err
		}
		defer server.Close()
		logger.Info("remote control listening", zap.Stringer("address", server.Addr()))
	}

	go controller.Run(ctx)
	logger.Info("playing",
		zap.String("artifact", cfg.Program.Artifact),
		zap.String("audio", cfg.Audio.Backend),
		zap.Int("rate", rate))
	<-ctx.Done()

	engine.TrySend(broker.CloseController, struct{}{})
	select {
	case <-broker.FinishedController:
	case <-time.After(3 * time.Second):
		logger.Warn("control loop did not stop in time")
	}
	audioCloser.Close()
	if recorder != nil {
		if err := writeRecording(*record, recorder.Frames(), rate); err != nil {
			logger.Error("could not write the recording", zap.Error(err))
		} else {
			logger.Info("recording written", zap.String("file", *record))
		}
	}
	if reporter, err := report.New(); err == nil {
		if text, err := reporter.Render(collect(h.Status())); err == nil {
			fmt.Fprint(os.Stderr, text)
		}
	}
	return nil
}

// maxFrames is the largest buffer the context renders at once, for sizing
// the meter.
func maxFrames(c resynth.AudioContext) int {
	if f, ok := c.(interface{ MaxFrames() int }); ok {
		return f.MaxFrames()
	}
	return engine.DefaultMeterFrames
}

func writeRecording(path string, frames resynth.AudioBuffer, rate int) error {
	wav, err := resynth.Wav(frames, rate, *pcm)
	if err != nil {
		return err
	}
	return os.WriteFile(path, wav, 0644)
}

// connect opens the surface whose port names start with prefix. An empty
// prefix leaves the surface out; a port that cannot be found is fatal.
func connect[I, O any](ports device.Ports, prefix string, codec device.Codec[I, O], logger *zap.Logger) (*device.Surface[I, O], error) {
	if prefix == "" {
		return nil, nil
	}
	var surface atomic.Pointer[device.Surface[I, O]]
	port, err := ports.Connect(prefix, func(frame []byte) {
		if s := surface.Load(); s != nil {
			s.HandleFrame(frame)
		}
	})
	if err != nil {
		return nil, err
	}
	s := device.NewSurface(codec, port)
	surface.Store(s)
	if err := s.Open(); err != nil {
		return nil, &resynth.DeviceConnectError{Port: port.Name(), Direction: "out", Err: err}
	}
	logger.Info("surface connected", zap.String("port", port.Name()))
	return s, nil
}

func applyFlags(cfg *config.Config) {
	if isFlagPassed("program") {
		cfg.Program.Artifact = *artifact
	}
	if isFlagPassed("audio") {
		cfg.Audio.Backend = *backend
	}
	if isFlagPassed("rate") {
		cfg.Audio.SampleRate = *sampleRate
	}
	if isFlagPassed("rpc") {
		cfg.RPC.Address = *rpcAddress
	}
	if isFlagPassed("log") {
		cfg.Log.Level = *logLevel
	}
	if *noMidi {
		cfg.Devices.Enabled = false
	}
	if *noWatch {
		cfg.Program.Watch = false
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Resynth plays a behavior program from control surfaces and reloads it while it plays.\nUsage: %s [flags]\n", os.Args[0])
	flag.PrintDefaults()
}

func isFlagPassed(name string) bool {
	found := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

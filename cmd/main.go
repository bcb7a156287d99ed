package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/pprof"
	"os"
	"reflect"
	"syscall"
	"time"

	"github.com/aukilabs/flock/capture"
	"github.com/aukilabs/flock/featureflag"
	flockhttp "github.com/aukilabs/flock/http"
	"github.com/aukilabs/flock/render"
	"github.com/aukilabs/flock/simulation"
	"github.com/aukilabs/flock/smoketest"
	"github.com/aukilabs/flock/websocket"
	"github.com/aukilabs/go-tooling/pkg/cli"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/events"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/go-tooling/pkg/metrics"
	"github.com/gdamore/tcell/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/encoding/json"
	xwebsocket "golang.org/x/net/websocket"
	"golang.org/x/sync/errgroup"
)

var (
	// The flock version number. Set at build.
	version = "v0.1.0"

	infoGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name:        "flock_info",
		Help:        "Flock information.",
		ConstLabels: prometheus.Labels{"version": version},
	})
)

// This will effectively disable obfuscation of the config struct. Without it, the keys would get obfuscated causing the cli package to generate garbled command-line options.
// https://github.com/burrowers/garble/issues/403
var _ = reflect.TypeOf(config{})

type config struct {
	Addr               string           `cli:""        env:"FLOCK_ADDR"                  help:"Listening address for viewer connections."`
	AdminAddr          string           `cli:""        env:"FLOCK_ADMIN_ADDR"            help:"Admin listening address."`
	LogLevel           string           `cli:""        env:"FLOCK_LOG_LEVEL"             help:"Log level (debug|info|warning|error)."`
	LogIndent          bool             `cli:""        env:"FLOCK_LOG_INDENT"            help:"Indent logs."`
	FrameDuration      time.Duration    `cli:""        env:"FLOCK_FRAME_DURATION"        help:"The duration of a simulation tick."`
	LogSummaryInterval time.Duration    `cli:",hidden" env:"FLOCK_LOG_SUMMARY_INTERVAL"  help:"The duration between each simulation and viewer log summary."`
	Simulation         simulationConfig `cli:""        env:"-"                           help:"Simulation configuration."`
	Scenario           string           `cli:""        env:"FLOCK_SCENARIO"              help:"YAML file describing the starting population."`
	Ticks              int              `cli:""        env:"FLOCK_TICKS"                 help:"Run the given number of ticks without servers, print the result and exit."`
	Terminal           bool             `cli:""        env:"FLOCK_TERMINAL"              help:"Draw the simulation in the terminal."`
	Capture            captureConfig    `cli:""        env:"-"                           help:"Frame capture configuration."`
	ViewerQueueSize    int              `cli:",hidden" env:"FLOCK_VIEWER_QUEUE_SIZE"     help:"The number of frames queued per viewer before dropping."`
	SmokeTestToken     string           `cli:",hidden" env:"FLOCK_SMOKE_TEST_TOKEN"      help:"Bearer token required to run smoke tests. The smoke test endpoint is disabled when empty."`
	Events             eventsConfig     `cli:",hidden" env:"-"                           help:"Event pusher configuration."`
	FeatureFlags       []string         `cli:",hidden" env:"FLOCK_FEATURE_FLAGS"         help:"Comma separated feature flags"`
	Version            bool             `cli:""        env:"-"                           help:"Show version."`
	Help               bool             `cli:""        env:"-"                           help:"Show help."`
}

type simulationConfig struct {
	Agents           int      `cli:"" env:"FLOCK_AGENTS"            help:"The number of agents."`
	Width            float64  `cli:"" env:"FLOCK_WIDTH"             help:"The width of the world."`
	Height           float64  `cli:"" env:"FLOCK_HEIGHT"            help:"The height of the world."`
	VelocityRange    float64  `cli:"" env:"FLOCK_VELOCITY_RANGE"    help:"The range of the initial velocity components."`
	MaxSpeed         float64  `cli:"" env:"FLOCK_MAX_SPEED"         help:"The speed of agents."`
	Capacity         int      `cli:"" env:"FLOCK_CAPACITY"          help:"The number of agents a quadtree node holds before splitting."`
	LimitArea        bool     `cli:"" env:"FLOCK_LIMIT_AREA"        help:"Refuse to split quadtree nodes smaller than 1x1."`
	Threshold        float64  `cli:"" env:"FLOCK_THRESHOLD"         help:"The neighborhood distance."`
	AlignmentWeight  float64  `cli:"" env:"FLOCK_ALIGNMENT_WEIGHT"  help:"The weight of the alignment rule."`
	CohesionWeight   float64  `cli:"" env:"FLOCK_COHESION_WEIGHT"   help:"The weight of the cohesion rule."`
	SeparationWeight float64  `cli:"" env:"FLOCK_SEPARATION_WEIGHT" help:"The weight of the separation rule."`
	Radius           float64  `cli:"" env:"FLOCK_RADIUS"            help:"The display radius of agents."`
	Palette          []string `cli:"" env:"FLOCK_PALETTE"           help:"Comma separated hex colors agents are drawn with."`
	Seed             uint64   `cli:"" env:"FLOCK_SEED"              help:"The random seed. 0 picks a time based seed."`
}

type captureConfig struct {
	File   string `cli:"" env:"FLOCK_CAPTURE_FILE"   help:"File where frames are written as JSON lines."`
	Frames int    `cli:"" env:"FLOCK_CAPTURE_FRAMES" help:"The number of frames to capture. 0 captures until exit."`
}

type eventsConfig struct {
	Endpoint      string        `cli:",hidden" env:"FLOCK_EVENTS_ENDPOINT"       help:"Endpoint to where events are pushed."`
	FlushInterval time.Duration `cli:",hidden" env:"FLOCK_EVENTS_FLUSH_INTERVAL" help:"The duration between each event flush."`
	BatchSize     int           `cli:",hidden" env:"FLOCK_EVENTS_BATCH_SIZE"     help:"The maximum number of events sent at once."`
	QueueSize     int           `cli:",hidden" env:"FLOCK_EVENTS_QUEUE_SIZE"     help:"The size of the queue where events are stored."`
}

func main() {
	defaults := simulation.DefaultConfig()

	conf := config{
		Addr:               ":4000",
		AdminAddr:          ":18190",
		LogLevel:           logs.InfoLevel.String(),
		FrameDuration:      time.Millisecond * 16,
		LogSummaryInterval: time.Minute,
		Simulation: simulationConfig{
			Agents:           defaults.Agents,
			Width:            defaults.Width,
			Height:           defaults.Height,
			VelocityRange:    defaults.VelocityRange,
			MaxSpeed:         defaults.MaxSpeed,
			Capacity:         defaults.Capacity,
			LimitArea:        defaults.LimitArea,
			Threshold:        defaults.Threshold,
			AlignmentWeight:  defaults.Weights[0],
			CohesionWeight:   defaults.Weights[1],
			SeparationWeight: defaults.Weights[2],
			Radius:           defaults.Radius,
			Palette:          defaults.Palette,
		},
		Capture: captureConfig{
			Frames: 600,
		},
		Events: eventsConfig{
			FlushInterval: events.DefaultFlushInterval,
			BatchSize:     events.DefaultBatchSize,
			QueueSize:     events.DefaultQueueSize,
		},
	}

	// set the information gauge to 1, useful for SUM query
	infoGauge.Set(1)

	ctx, cancel := cli.ContextWithSignals(context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer cancel()

	cli.Register().
		Help("Starts a flocking simulation server.").
		Options(&conf)
	cli.Load()

	if conf.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	logs.SetLevel(logs.ParseLevel(conf.LogLevel))
	logs.Encoder = json.Marshal
	if conf.LogIndent {
		logs.Encoder = func(v any) ([]byte, error) {
			return json.MarshalIndent(v, "", "  ")
		}
	}

	errors.Encoder = json.Marshal

	if conf.Events.Endpoint != "" {
		eventsPusher := events.Pusher{
			Endpoint:      conf.Events.Endpoint,
			FlushInterval: conf.Events.FlushInterval,
			BatchSize:     conf.Events.BatchSize,
			QueueSize:     conf.Events.QueueSize,
			Transport:     metrics.HTTPTransport(http.DefaultTransport),
		}
		go eventsPusher.Start()
		defer eventsPusher.Close()

		eventsLogger := events.Logger{
			Pusher:           &eventsPusher,
			SDKType:          "flock",
			SDKVersionFamily: version,
		}
		logs.SetLogger(eventsLogger.Log)
	}

	simConf := conf.Simulation.simulationConfig()
	sim, err := newSimulation(simConf, conf.Scenario)
	if err != nil {
		logs.Fatal(errors.New("creating simulation failed").Wrap(err))
	}

	flags := featureflag.New(conf.FeatureFlags)
	runner := &simulation.Runner{
		Simulation:      sim,
		FrameDuration:   conf.FrameDuration,
		SummaryInterval: conf.LogSummaryInterval,
		FeatureFlags:    flags,
	}

	if conf.Ticks > 0 {
		if err := runTicks(ctx, runner, conf.Ticks, os.Stdout); err != nil {
			logs.Fatal(err)
		}
		return
	}

	g, ctx := errgroup.WithContext(ctx)

	if conf.Capture.File != "" {
		f, err := os.Create(conf.Capture.File)
		if err != nil {
			logs.Fatal(errors.New("creating capture file failed").
				WithTag("file_name", conf.Capture.File).
				Wrap(err))
		}
		defer f.Close()

		frameCapture := &capture.FrameHandler{
			Writer:   f,
			Duration: conf.Capture.Frames,
		}
		frameCapture.HandleFrames(ctx)
		cancelCapture := runner.HandleFrame(frameCapture.HandleFrame)

		// Done is also closed once the frames queued before a shutdown are
		// written, the file must stay open until then.
		g.Go(func() error {
			<-frameCapture.Done()
			cancelCapture()
			logs.WithTag("file_name", conf.Capture.File).
				WithTag("frames", frameCapture.Written()).
				Info("capture stopped")
			return frameCapture.Err()
		})
	}

	if conf.Terminal {
		screen, err := tcell.NewScreen()
		if err != nil {
			logs.Fatal(errors.New("creating terminal screen failed").Wrap(err))
		}
		if err := screen.Init(); err != nil {
			logs.Fatal(errors.New("initializing terminal screen failed").Wrap(err))
		}
		defer screen.Fini()

		// Logs would be drawn over the simulation.
		if conf.Events.Endpoint == "" {
			logs.SetLogger(func(logs.Entry) {})
		}

		term := render.NewTerminal(screen)
		defer runner.HandleFrame(term.HandleFrame)()

		g.Go(func() error {
			term.WaitQuit(ctx)
			cancel()
			return nil
		})
	}

	hub := &websocket.Hub{
		SendChanSize:    conf.ViewerQueueSize,
		SummaryInterval: conf.LogSummaryInterval,
		FeatureFlags:    flags,
	}
	defer runner.HandleFrame(hub.Broadcast)()

	readinessCheck := func() bool {
		_, ok := hub.LastFrame()
		return ok
	}

	var service http.ServeMux
	service.Handle("/health", flockhttp.HandleWithCORS(http.HandlerFunc(flockhttp.HandleHealthCheck)))
	service.Handle("/version", flockhttp.HandleWithCORS(http.HandlerFunc(flockhttp.HandleVersion(version))))
	service.Handle("/ready", flockhttp.HandleWithCORS(http.HandlerFunc(flockhttp.HandleReadyCheck(readinessCheck))))
	service.Handle("/frame", flockhttp.HandleWithCORS(flockhttp.HandleFrameSnapshot(hub.LastFrame)))
	if conf.SmokeTestToken != "" {
		service.Handle("/smoke-test", flockhttp.HandleWithCORS(flockhttp.VerifyAuthTokenHandler(conf.SmokeTestToken,
			smoketest.HandleSmokeTest(ctx, smoketest.Options{
				Config: simConf,
			}))))
	}
	service.Handle("/", flockhttp.HandleWithCORS(hub.Server(ctx)))
	service.Handle("/ping", xwebsocket.Server{
		Handler: func(ws *xwebsocket.Conn) {
			defer ws.Close()
			io.Copy(ws, ws)
		},
	})

	var admin http.ServeMux
	admin.Handle("/metrics", promhttp.Handler())
	admin.HandleFunc("/health", flockhttp.HandleHealthCheck)
	admin.HandleFunc("/debug/pprof/", pprof.Index)
	admin.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	admin.HandleFunc("/debug/pprof/profile", pprof.Profile)
	admin.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	admin.HandleFunc("/debug/pprof/trace", pprof.Trace)
	admin.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
	admin.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	admin.Handle("/debug/pprof/threadcreate", pprof.Handler("threadcreate"))
	admin.Handle("/debug/pprof/block", pprof.Handler("block"))
	admin.HandleFunc("/ready", flockhttp.HandleReadyCheck(readinessCheck))

	logs.WithTag("version", version).
		WithTag("log_level", conf.LogLevel).
		WithTag("simulation_id", sim.ID).
		WithTag("seed", sim.Seed).
		WithTag("feature_flags", flags.List()).
		Info("starting flock server")

	g.Go(func() error {
		return runner.Run(ctx)
	})

	g.Go(func() error {
		return flockhttp.ListenAndServe(ctx,
			&http.Server{Addr: conf.Addr, Handler: metrics.HTTPHandler(&service,
				flockhttp.MetricsPathFormatter)},
			&http.Server{Addr: conf.AdminAddr, Handler: &admin},
		)
	})

	if err := g.Wait(); err != nil {
		logs.Fatal(errors.New("flock server stopped").Wrap(err))
	}
}

func (c simulationConfig) simulationConfig() simulation.Config {
	return simulation.Config{
		Agents:        c.Agents,
		Width:         c.Width,
		Height:        c.Height,
		VelocityRange: c.VelocityRange,
		MaxSpeed:      c.MaxSpeed,
		Capacity:      c.Capacity,
		LimitArea:     c.LimitArea,
		Threshold:     c.Threshold,
		Weights:       [3]float64{c.AlignmentWeight, c.CohesionWeight, c.SeparationWeight},
		Radius:        c.Radius,
		Palette:       c.Palette,
		Seed:          c.Seed,
	}
}

func newSimulation(conf simulation.Config, scenarioFile string) (*simulation.Simulation, error) {
	if scenarioFile == "" {
		return simulation.New(conf)
	}

	sc, err := simulation.LoadScenarioFile(scenarioFile)
	if err != nil {
		return nil, err
	}
	return simulation.NewFromScenario(conf, sc)
}

type ticksResult struct {
	SimulationID   string  `json:"simulation_id"`
	Seed           uint64  `json:"seed"`
	Tick           uint64  `json:"tick"`
	AbortedTicks   int     `json:"aborted_ticks"`
	TicksPerSecond float64 `json:"ticks_per_second"`
	MeanNeighbors  float64 `json:"mean_neighbors"`
	Digest         uint64  `json:"digest"`
}

func runTicks(ctx context.Context, r *simulation.Runner, ticks int, w io.Writer) error {
	stats, err := r.RunTicks(ctx, ticks)
	if err != nil {
		logs.Warn(err)
	}

	data, err := json.Marshal(ticksResult{
		SimulationID:   r.Simulation.ID,
		Seed:           r.Simulation.Seed,
		Tick:           r.Simulation.Tick,
		AbortedTicks:   stats.Aborted,
		TicksPerSecond: stats.TicksPerSecond(),
		MeanNeighbors:  stats.MeanNeighbors(),
		Digest:         r.Simulation.Digest(),
	})
	if err != nil {
		return errors.New("encoding result failed").Wrap(err)
	}

	_, err = fmt.Fprintln(w, string(data))
	return err
}

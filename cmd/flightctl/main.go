// cmd/flightctl/main.go
// Copyright(c) 2025 flightctl contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// flightctl flies a configured set of simulated drones through their
// choreographies, keeping them apart through a shared virtual
// environment. An interrupt makes every drone hover in place; a second
// one exits immediately.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/flightctl/flightctl/command"
	"github.com/flightctl/flightctl/config"
	"github.com/flightctl/flightctl/control"
	"github.com/flightctl/flightctl/estimator"
	"github.com/flightctl/flightctl/fake"
	"github.com/flightctl/flightctl/flight"
	"github.com/flightctl/flightctl/log"
	"github.com/flightctl/flightctl/monitor"
	"github.com/flightctl/flightctl/recorder"
	"github.com/flightctl/flightctl/task"
	"github.com/flightctl/flightctl/util"
	"github.com/flightctl/flightctl/venv"

	"github.com/goforj/godump"
	"golang.org/x/sync/errgroup"
)

var (
	configFile = flag.String("config", "", "JSON flight configuration; the built-in one is used if empty")
	logLevel   = flag.String("loglevel", "info", "logging level: debug, info, warn, error")
	logDir     = flag.String("logdir", "", "log file directory")
	recordDir  = flag.String("record", "", "directory to write flight recordings to")
	dumpConfig = flag.Bool("dumpconfig", false, "print the configuration and exit")
	replay     = flag.String("replay", "", "print the flight recording in the given file and exit")
	noise      = flag.Float64("noise", 0, "standard deviation, in meters, of noise added to the pose estimate")
)

// emergencyHover is how long drones hover after an interrupt.
const emergencyHover = time.Minute

type drone struct {
	name     string
	vehicle  *fake.Drone
	source   flight.StateSource
	sink     flight.VelocitySink
	rec      *recorder.Recorder
	executor *task.Executor
	opts     command.Options
}

func main() {
	flag.Parse()

	if *replay != "" {
		recs, err := recorder.Load(*replay)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", *replay, err)
			os.Exit(1)
		}
		godump.Fdump(os.Stdout, recs)
		return
	}

	lg := log.New(*logLevel, *logDir)
	defer lg.CatchAndReportCrash()

	cfg := config.Default()
	if *configFile != "" {
		var err error
		if cfg, err = config.Load(*configFile); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", *configFile, err)
			os.Exit(1)
		}
	}
	if *dumpConfig {
		godump.Fdump(os.Stdout, cfg)
		return
	}

	if err := run(cfg, lg); err != nil {
		lg.Error("flight failed", slog.Any("error", err))
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, lg *log.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	spawn := func(f func(context.Context) error) {
		g.Go(func() error {
			defer lg.CatchAndReportCrash()
			if err := f(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	clock := flight.SystemClock
	env, err := venv.NewEnvironment(clock, venv.EnvironmentConfig{
		RefreshRate: cfg.RefreshRate,
		NeighborTTL: 2 * cfg.LifeSpanDuration(),
	}, lg)
	if err != nil {
		return err
	}
	spawn(env.Run)

	start := clock.Now().Add(cfg.StartDelayDuration())
	var drones []*drone
	for i, dc := range cfg.Drones {
		d, err := newDrone(cfg, dc, env, clock, start, int64(i), spawn, lg)
		if err != nil {
			for _, d := range drones {
				d.executor.Close()
			}
			cancel()
			_ = g.Wait()
			return fmt.Errorf("%s: %w", dc.Name, err)
		}
		drones = append(drones, d)
	}

	sig := make(chan os.Signal, 2)
	signal.Notify(sig, os.Interrupt)
	defer signal.Stop(sig)
	go func() {
		select {
		case <-sig:
		case <-ctx.Done():
			return
		}
		lg.Warn("interrupt: all drones hover")
		for _, d := range drones {
			h, err := command.NewHover(emergencyHover, d.opts)
			if err != nil {
				lg.Error("emergency hover", slog.String("drone", d.name), slog.Any("error", err))
				continue
			}
			d.executor.Submit(task.New("emergency hover", task.FirstOrderEmergency, h))
		}

		select {
		case <-sig:
			lg.Warn("second interrupt: exiting")
			cancel()
		case <-ctx.Done():
		}
	}()

	for _, d := range drones {
		if err := d.executor.Wait(gctx); err != nil {
			break
		}
	}
	lg.Info("all tasks finished", slog.Any("neighbors", env.Neighbors()))

	for _, d := range drones {
		d.executor.Close()
		lg.Info("final pose", slog.String("drone", d.name), slog.String("pose", d.vehicle.Pose().String()),
			slog.Int("commands", d.vehicle.Commands()))
	}
	cancel()
	err = g.Wait()

	if *recordDir != "" {
		for _, d := range drones {
			path := filepath.Join(*recordDir, d.name+".rec")
			if serr := d.rec.Save(path); serr != nil {
				err = errors.Join(err, fmt.Errorf("%s: %w", path, serr))
			} else {
				lg.Info("saved flight recording", slog.String("path", path), slog.Int("records", d.rec.Len()))
			}
		}
	}
	return err
}

func newDrone(cfg *config.Config, dc config.Drone, env *venv.Environment, clock flight.Clock, start time.Time,
	seed int64, spawn func(func(context.Context) error), lg *log.Logger) (*drone, error) {
	lg = lg.With(slog.String("drone", dc.Name))

	ch, err := dc.Choreography()
	if err != nil {
		return nil, err
	}
	// The monitor gets its own copy since choreographies evict segments
	// as they are queried.
	monitorCh, err := dc.Choreography()
	if err != nil {
		return nil, err
	}

	v := fake.NewDrone(dc.Name, dc.Start, clock)
	v.MaxSpeed = dc.MaxSpeed
	spawn(func(ctx context.Context) error { return v.Run(ctx, cfg.PeriodDuration()/2) })

	var source flight.StateSource = estimator.NewOdometry(v, v)
	if *noise > 0 {
		n, err := estimator.NewNoisy(source, estimator.NoisyConfig{
			Rate:        2 / cfg.Period,
			NoiseStdDev: *noise,
			Window:      cfg.EstimatorWindow,
			Seed:        seed,
		}, lg)
		if err != nil {
			return nil, err
		}
		spawn(n.Run)
		source = n
	}

	d := &drone{
		name:     dc.Name,
		vehicle:  v,
		source:   source,
		sink:     v,
	}
	if *recordDir != "" {
		d.rec = recorder.New(v, source, clock)
		d.sink = d.rec
	}

	poseMonitor := monitor.NewPoseOutdated(source, clock, cfg.StalenessDuration(), lg)
	spawn(poseMonitor.Run)
	trajMonitor := monitor.NewOutOfTrajectory(monitorCh, source, clock, start, cfg.MinimumDeviation, lg)
	spawn(trajMonitor.Run)

	var ctrl control.Controller
	if cfg.Controller == config.ControllerPID {
		ctrl = control.NewPID(cfg.PID, lg)
	} else {
		ctrl = control.NewConstrained(control.ConstrainedConfig{
			Name:            dc.Name,
			Params:          cfg.PID,
			MinVelocity:     cfg.MinVelocity,
			MaxVelocity:     cfg.MaxVelocity,
			MaxAcceleration: cfg.MaxAcceleration,
			Environment:     env,
			PoseMonitor:     poseMonitor,
		}, lg)
	}

	d.opts = command.Options{
		Period:          cfg.PeriodDuration(),
		LagCompensation: cfg.LagDuration(),
		StateLifetime:   cfg.StateLifetimeDuration(),
		Source:          source,
		Sink:            d.sink,
		Controller:      ctrl,
		Clock:           clock,
		Logger:          lg,
	}

	perform, err := command.NewPerformChoreography(ch, d.opts)
	if err != nil {
		return nil, err
	}
	hover, err := command.NewHover(2*time.Second, d.opts)
	if err != nil {
		return nil, err
	}

	// Drop keep-distance pheromones at the current pose for as long as
	// the drone is localized.
	spawn(func(ctx context.Context) error {
		return util.Every(ctx, util.Seconds(1/cfg.DropRate), func() {
			if s, ok := source.CurrentState(); ok {
				if err := env.DropKeepDistance(dc.Name, s.Pose, cfg.MinimumSeparation, cfg.LifeSpanDuration()); err != nil {
					lg.Error("dropping pheromone", slog.Any("error", err))
				}
			}
		})
	})

	d.executor = task.NewExecutor(dc.Name, lg)
	status := d.executor.Submit(task.New("choreography", task.Normal,
		command.WaitForLocalization(command.WaitUntil(perform, start, clock), source), hover))
	lg.Info("submitted choreography", slog.String("status", status.String()), slog.Time("start", start),
		slog.Float64("duration", ch.Duration()))

	return d, nil
}

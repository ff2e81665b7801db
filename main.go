package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Rione/racoon-frc/config"
	"github.com/Rione/racoon-frc/hal/gpio"
	"github.com/Rione/racoon-frc/robot"
	"github.com/Rione/racoon-frc/task"
	"github.com/hashicorp/go-hclog"
	"github.com/urfave/cli"
)

func main() {
	app := cli.NewApp()
	app.Name = "racoon"
	app.Usage = "run the robot program"
	app.Version = getVersion()
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "env",
			Value: ".env",
			Usage: "settings file",
		},
		cli.StringFlag{
			Name:  "link",
			Usage: "driver link: sim, udp or serial",
		},
		cli.StringFlag{
			Name:  "log-level",
			Usage: "trace, debug, info, warn or error",
		},
		cli.BoolFlag{
			Name:  "no-upgrade",
			Usage: "skip the release check on boot",
		},
		cli.StringFlag{
			Name:  "health",
			Usage: "gRPC health listening address",
		},
	}
	app.Action = run
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "racoon:", err)
		os.Exit(1)
	}
}

func loadConfig(c *cli.Context) (config.Config, error) {
	cfg, err := config.Load(c.String("env"))
	if err != nil {
		return cfg, err
	}
	if c.IsSet("link") {
		cfg.Link = c.String("link")
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	if c.IsSet("health") {
		cfg.HealthAddr = c.String("health")
	}
	if c.Bool("no-upgrade") {
		cfg.AutoUpgrade = false
	}
	return cfg, config.Validate(cfg)
}

func run(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	l := hclog.New(&hclog.LoggerOptions{
		Name:  "racoon",
		Level: hclog.LevelFromString(cfg.LogLevel),
	})
	l.Info("starting", "version", getVersion(), "link", cfg.Link, "tick_hz", cfg.TickHz)

	if cfg.AutoUpgrade {
		updated, err := confirmAndSelfUpdate(l, cfg.GitHubToken)
		if err != nil {
			l.Warn("self update failed", "error", err)
		}
		if updated {
			return nil
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	be, err := openBackend(cfg, l)
	if err != nil {
		return err
	}
	defer be.Close()

	rt := robot.NewRuntime(be.link, be.inputs, be.bus,
		robot.WithLogger(l),
		robot.WithDebounce(cfg.Debounce),
		robot.WithTaskInterval(cfg.TaskInterval),
	)
	sched := robot.New(newDemoRobot(l, be.encoder, be.armLimit), rt,
		robot.WithTickRate(cfg.TickHz),
		robot.WithHALInit(cfg.HALTimeout, cfg.HALMode),
	)

	if cfg.HealthAddr != "" {
		api, err := newHealthAPI(cfg.HealthAddr, l)
		if err != nil {
			return err
		}
		defer api.Stop()
		go func() {
			if err := api.Serve(); err != nil {
				l.Error("health api stopped", "error", err)
			}
		}()
		go func() {
			select {
			case <-sched.Started():
				api.SetServing(true)
			case <-ctx.Done():
			}
		}()
	}

	if be.gpio {
		led := gpio.NewStatusLED(uint8(cfg.LEDPin), rt.Mode)
		rt.Tasks.Run("status-led", led.Blink)
		buzzer := gpio.NewBuzzer(PIN_BUZZER)
		rt.Tasks.Run("startup-melody", once(rt.Tasks, "startup-melody", l, func(ctx context.Context) error {
			return buzzer.Play(ctx, gpio.StartupMelody)
		}))
	}

	return sched.Run(ctx)
}

// once wraps fn into an activity that runs a single time and then removes
// itself from m. A failure is logged rather than returned.
func once(m *task.Manager, id task.ID, l hclog.Logger, fn task.Activity) task.Activity {
	return func(ctx context.Context) error {
		err := fn(ctx)
		if err != nil && ctx.Err() == nil {
			l.Warn("one-shot task failed", "id", id, "error", err)
		}
		m.Abort(id)
		return nil
	}
}

// @title                       Battery Scheduler API
// @version                     1.0
// @description                 Plans and writes the time-of-use charge schedule of a home battery inverter.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "battery_scheduler/docs"
	"battery_scheduler/internal/config"
	"battery_scheduler/internal/device"
	"battery_scheduler/internal/handlers"
	"battery_scheduler/internal/logger"
	"battery_scheduler/internal/models"
	"battery_scheduler/internal/optimizer"
	"battery_scheduler/internal/prices"
	"battery_scheduler/internal/publish"
	"battery_scheduler/internal/repository"
	"battery_scheduler/internal/repository/db"
	"battery_scheduler/internal/server"
	"battery_scheduler/internal/service"
	"battery_scheduler/internal/trigger"

	"github.com/spf13/cobra"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "battery-scheduler",
		Short:         "Plan home battery charge/discharge periods from day-ahead spot prices",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default configs/config.yml)")
	root.AddCommand(serveCmd(), runCmd(), showCmd())

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the daily trigger and the HTTP API until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer a.close()
			return a.serve()
		},
	}
}

func runCmd() *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one scheduling pass and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			modes, err := parseModes(mode)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.close()

			var failed []error
			for _, m := range modes {
				res, err := a.services.Scheduler.Run(cmd.Context(), m)
				if err != nil {
					failed = append(failed, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s run %s: %s %s\n", m, res.RunID, res.Outcome, res.Reason)
			}
			return errors.Join(failed...)
		},
	}
	cmd.Flags().StringVar(&mode, "mode", string(models.ModeRegular), "regular, evening or both")
	return cmd
}

func showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the schedule currently stored on the inverter",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			log, err := logger.Init(cfg.Log.Level, cfg.Log.File)
			if err != nil {
				return err
			}
			sched, err := device.NewLink(cfg.DeviceConfig(), log).ReadSchedule(cmd.Context())
			if err != nil {
				return err
			}
			for _, line := range optimizer.FormatBlock("Current Schedule", sched.Periods) {
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}
}

func parseModes(s string) ([]models.Mode, error) {
	if s == "both" {
		return []models.Mode{models.ModeRegular, models.ModeEvening}, nil
	}
	m, err := models.ParseMode(s)
	if err != nil {
		return nil, err
	}
	return []models.Mode{m}, nil
}

// app holds the wired process.
type app struct {
	cfg       *config.Config
	log       *logger.Logger
	db        *sql.DB
	publisher *publish.Publisher
	services  *service.Service
}

func newApp(ctx context.Context, withAPI bool) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	log, err := logger.Init(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	if withAPI && cfg.Auth.SigningKey == "" {
		return nil, errors.New("auth.signing_key is required to serve the API")
	}

	conn, err := openDB(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	a := &app{cfg: cfg, log: log, db: conn}

	deps := service.Deps{
		Repos:  repository.NewRepository(conn),
		Device: device.NewLink(cfg.DeviceConfig(), log),
		Prices: prices.NewClient(cfg.PricesConfig(), log),
		Log:    log,
		Scheduler: service.SchedulerConfig{
			Zone:    cfg.Location(),
			Regular: cfg.OptimizerOptions(),
			Evening: cfg.EveningOptions(),
		},
		SigningKey:  cfg.Auth.SigningKey,
		AllowSignUp: cfg.Auth.AllowSignUp,
	}
	if cfg.MQTT.Enabled {
		p := publish.New(cfg.PublishConfig(), log)
		if err := p.Connect(ctx); err != nil {
			// runs still work without the broker; the client keeps retrying
			log.Warnw("mqtt_connect_failed", "broker", cfg.MQTT.Broker, "err", err)
		}
		a.publisher = p
		deps.Publisher = p
	}
	a.services = service.NewService(deps)
	return a, nil
}

func (a *app) close() {
	if a.publisher != nil {
		a.publisher.Close()
	}
	if err := a.db.Close(); err != nil {
		a.log.Errorw("failed to close sqlite", "err", err)
	}
	_ = a.log.Sync()
}

// serve runs the trigger and the API until SIGINT/SIGTERM.
func (a *app) serve() error {
	jobs, err := a.cfg.TriggerJobs()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if len(jobs) > 0 {
		daily, err := trigger.NewDaily(jobs, a.cfg.Location(), a.log)
		if err != nil {
			return err
		}
		go a.runTrigger(ctx, daily)
	}

	srv := &server.Server{}
	apiHandler := handlers.NewHandler(a.services, a.log)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run(a.cfg.Port, apiHandler.InitRoutes(), server.Timeouts{
			ReadHeader: a.cfg.Server.ReadHeaderTimeout,
			Write:      a.cfg.Server.WriteTimeout,
			Idle:       a.cfg.Server.IdleTimeout,
		})
	}()
	a.log.Infow("http_server_started", "port", a.cfg.Port)

	return waitForShutdown(cancel, srv, errCh, a.cfg.Server.ShutdownTimeout, a.log)
}

func (a *app) runTrigger(ctx context.Context, t trigger.Trigger) {
	t.Run(ctx, func(ctx context.Context, mode models.Mode) {
		res, err := a.services.Scheduler.Run(ctx, mode)
		if err != nil {
			a.log.Errorw("scheduled_run_failed", "mode", mode, "err", err)
			return
		}
		a.log.Infow("scheduled_run_done", "mode", mode, "run_id", res.RunID, "outcome", res.Outcome)
	})
}

// openDB initializes the SQLite database using configuration.
func openDB(cfg *config.Config, log *logger.Logger) (*sql.DB, error) {
	path := cfg.DB.Path
	if path == "" {
		log.Infow("db.path not set in config; using default file", "default", "battery_scheduler.db")
		path = "battery_scheduler.db"
	}
	return db.Open(path)
}

// waitForShutdown blocks on a termination signal or a server failure, then
// drains in-flight requests.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, errCh <-chan error, timeout time.Duration, log *logger.Logger) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	var runErr error
	select {
	case <-quit:
	case runErr = <-errCh:
		if runErr != nil {
			log.Errorw("http_server_failed", "err", runErr)
		}
	}

	log.Infow("shutting down server...")
	cancel()

	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		return errors.Join(runErr, fmt.Errorf("server forced to shutdown: %w", err))
	}
	return runErr
}

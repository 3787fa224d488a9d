package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/nfvri/ran-scheduler/pkg/handover"
	"github.com/nfvri/ran-scheduler/pkg/kpi"
	"github.com/nfvri/ran-scheduler/pkg/manager"
	"github.com/nfvri/ran-scheduler/pkg/model"
	redisLib "github.com/nfvri/ran-scheduler/pkg/store/redis"
	"github.com/schollz/progressbar/v3"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

const envPrefix = "RANSCHED"

func newViper(cmd *cobra.Command) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, err
	}
	level, err := log.ParseLevel(v.GetString("log-level"))
	if err != nil {
		return nil, err
	}
	log.SetLevel(level)
	return v, nil
}

func loadScenario(path string) (*model.Model, error) {
	m := &model.Model{}
	if err := model.LoadConfigFile(m, path); err != nil {
		return nil, err
	}
	return m, nil
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "ran-scheduler",
		Short:         "Downlink PRB scheduler for simulated RAN cells",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "config/scenario.yaml", "scenario file")
	root.PersistentFlags().String("log-level", "info", "log level")
	root.AddCommand(newRunCmd(), newValidateCmd())
	return root
}

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Load and validate a scenario",
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := newViper(cmd)
			if err != nil {
				return err
			}
			m, err := loadScenario(v.GetString("config"))
			if err != nil {
				return err
			}
			log.Infof("Scenario %s is valid: %d cells, %d UEs", v.GetString("config"), len(m.Cells), len(m.UEs))
			if v.GetBool("print") {
				out, err := yaml.Marshal(m)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(out)
				return err
			}
			return nil
		},
	}
	cmd.Flags().Bool("print", false, "print the scenario with defaults applied")
	return cmd
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the scheduler over a scenario",
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := newViper(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return run(ctx, v)
		},
	}
	flags := cmd.Flags()
	flags.Int("ticks", 100, "number of scheduling ticks")
	flags.Float64("dt", 0.1, "tick duration in seconds")
	flags.String("kpi-csv", "", "write per UE KPI records to this CSV file")
	flags.String("plot", "", "save a per cell load plot to this image file")
	flags.String("metrics-addr", "", "serve Prometheus metrics on this address")
	flags.String("handover", string(handover.A3), "handover type, empty disables handover")
	flags.Float64("hysteresis", 2, "A3 hysteresis in dB")
	flags.Bool("cqi-from-sinr", false, "derive the downlink CQI from the serving cell SINR")
	flags.Bool("interference", false, "count co-channel neighbor cells in the SINR")
	flags.Bool("reset-rates-on-mcs-loss", false, "zero the rates of UEs that lose their MCS")
	flags.Bool("progress", true, "show a progress bar")
	flags.Bool("redis", false, "store cell snapshots in redis")
	flags.String("redis-host", "localhost", "redis host")
	flags.String("redis-port", "6379", "redis port")
	flags.String("redis-db", "0", "redis database")
	flags.String("redis-username", "", "redis username")
	flags.String("redis-password", "", "redis password")
	return cmd
}

func run(ctx context.Context, v *viper.Viper) error {
	ticks := v.GetInt("ticks")
	dt := v.GetFloat64("dt")
	if ticks < 0 || dt < 0 {
		return fmt.Errorf("ticks and dt must not be negative")
	}

	m, err := loadScenario(v.GetString("config"))
	if err != nil {
		return err
	}
	mgr, err := manager.NewManager(&manager.Config{
		HOType:              handover.HOType(v.GetString("handover")),
		HysteresisDB:        v.GetFloat64("hysteresis"),
		CQIFromSINR:         v.GetBool("cqi-from-sinr"),
		Interference:        v.GetBool("interference"),
		ResetRatesOnMCSLoss: v.GetBool("reset-rates-on-mcs-loss"),
		SlicingEnabled:      len(m.SliceWeights) > 1,
	})
	if err != nil {
		return err
	}
	if err := mgr.Load(m); err != nil {
		return err
	}

	if path := v.GetString("kpi-csv"); path != "" {
		w, err := kpi.CreateCSV(path)
		if err != nil {
			return err
		}
		mgr.SetKPIWriter(w)
	}
	defer func() {
		if err := mgr.Close(); err != nil {
			log.Warnf("Unable to close KPI output: %v", err)
		}
	}()

	if v.GetBool("redis") {
		client, err := redisLib.InitClient(ctx, v.GetString("redis-host"), v.GetString("redis-port"),
			v.GetString("redis-db"), v.GetString("redis-username"), v.GetString("redis-password"))
		if err != nil {
			return err
		}
		defer client.Close()
		mgr.SetStore(redisLib.NewRedisStore(client))
	}

	if addr := v.GetString("metrics-addr"); addr != "" {
		exporter, err := kpi.NewExporter(nil)
		if err != nil {
			return err
		}
		mgr.SetExporter(exporter)
		srv := &http.Server{Addr: addr, Handler: exporter.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			log.Infof("Serving metrics on %s", addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Errorf("Metrics server failed: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	if v.GetBool("progress") {
		bar := progressbar.Default(int64(ticks), "Ticks")
		mgr.SetTickHook(func(uint64) { _ = bar.Add(1) })
	}

	if err := mgr.Run(ctx, ticks, dt); err != nil {
		return err
	}
	log.Infof("Completed %d ticks, %d handovers, snapshot id %s", mgr.Tick(), mgr.Handovers(), mgr.SnapshotID())

	if path := v.GetString("plot"); path != "" && ticks > 0 {
		if err := mgr.History().Save(path); err != nil {
			return err
		}
	}
	return nil
}

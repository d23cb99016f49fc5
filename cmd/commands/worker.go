package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sliceflow/pipeline/config"
	"github.com/sliceflow/pipeline/engine"
	"github.com/sliceflow/pipeline/logging/logger"
	"github.com/sliceflow/pipeline/media"
	"github.com/sliceflow/pipeline/queue"
	"github.com/sliceflow/pipeline/storage"
	"github.com/sliceflow/pipeline/tasks"
	"github.com/sliceflow/pipeline/taskstate"
)

// NewWorkerCommand creates the worker command. The worker consumes
// pipeline jobs from the broker and runs them to completion.
func NewWorkerCommand() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the pipeline job worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			return runWorker(cfg)
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "config file path")
	return cmd
}

func runWorker(cfg *config.Config) error {
	log := logger.StandardLogger()
	cleanup, err := log.Init(cfg.Logger)
	if err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gateway, err := storage.NewGateway(cfg.Storage, log.Logger)
	if err != nil {
		return err
	}
	if err := gateway.EnsureBucket(ctx); err != nil {
		// The bucket may already be managed out of band.
		log.WithError(err).Warn("bucket provisioning failed, continuing")
	}

	store, err := taskstate.Open(ctx, cfg.Database, log.Logger)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		return err
	}

	var reporter tasks.Reporter
	if cfg.Redis != nil && cfg.Redis.Addr != "" {
		rr, err := queue.NewRedisReporter(ctx, cfg.Redis, log.Logger)
		if err != nil {
			log.WithError(err).Warn("result backend unavailable, task state reporting disabled")
		} else {
			defer rr.Close()
			reporter = rr
		}
	}

	orch := tasks.NewOrchestrator(store, gateway, engine.NewHTTPEngine(cfg.Engine), reporter, log.Logger)
	ffmpeg := media.NewFFmpeg(log.Logger)

	consumer, err := queue.NewConsumer(cfg.Queue, log.Logger)
	if err != nil {
		return err
	}
	defer consumer.Close()

	log.WithField("queue", cfg.Queue.Queue).Info("worker started")
	return consumer.Run(ctx, dispatcher(orch, ffmpeg))
}

// sliceParams is the payload of a SLICE job.
type sliceParams struct {
	Ranges []tasks.SliceRange `json:"ranges"`
}

// dispatcher maps queue envelopes onto orchestrator stage executions.
func dispatcher(orch *tasks.Orchestrator, ffmpeg *media.FFmpeg) queue.Handler {
	return func(ctx context.Context, env *queue.Envelope) error {
		job := &tasks.Job{
			ID:        env.JobID,
			VideoID:   env.VideoID,
			ProjectID: env.ProjectID,
			UserID:    env.UserID,
			SubTask:   env.SubTask,
		}

		var err error
		switch env.Stage {
		case taskstate.StageGenerateSRT:
			_, err = orch.GenerateSubtitles(ctx, job)
		case taskstate.StageExtractAudio:
			_, err = orch.ExtractAudio(ctx, job, ffmpeg, env.Location)
		case taskstate.StageSlice:
			var params sliceParams
			if len(env.Payload) > 0 {
				if perr := json.Unmarshal(env.Payload, &params); perr != nil {
					return fmt.Errorf("failed to decode slice payload: %w", perr)
				}
			}
			_, err = orch.SliceVideo(ctx, job, ffmpeg, env.Location, params.Ranges)
		default:
			return fmt.Errorf("unsupported stage %q", env.Stage)
		}
		return err
	}
}

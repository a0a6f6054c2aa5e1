package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/yungbote/mentat-backend/internal/app"
	"github.com/yungbote/mentat-backend/internal/backfill"
	apperr "github.com/yungbote/mentat-backend/internal/pkg/errors"
)

const (
	exitOK      = 0
	exitError   = 1
	exitTimeout = 124
)

func main() {
	step := flag.String("step", "all", "pipeline step to run: chunk, embed, summary or all")
	batch := flag.Int("batch", 50, "max videos per step")
	dryRun := flag.Bool("dry-run", false, "report candidates without writing anything")
	status := flag.Bool("status", false, "print store counters and exit")
	timeout := flag.Duration("timeout", 0, "overall run deadline (0 = none)")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using process environment")
	}

	a, err := app.New()
	if err != nil {
		fmt.Printf("Failed to start: %v\n", err)
		os.Exit(exitError)
	}

	progress := make(chan backfill.ProgressEvent, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range progress {
			if ev.OK {
				a.Log.Info("video processed", "step", ev.Step, "video_id", ev.VideoID, "duration", ev.Duration)
				continue
			}
			a.Log.Warn("video failed", "step", ev.Step, "video_id", ev.VideoID, "reason", ev.Reason)
		}
	}()

	worker, err := a.NewBackfillWorker(progress)
	if err != nil {
		a.Log.Error("Worker init failed", "error", err)
		os.Exit(exitError)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if *timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	if *status {
		stats, err := worker.Status(ctx)
		if err != nil {
			a.Log.Error("Status failed", "error", err)
			os.Exit(exitCode(err))
		}
		printJSON(stats)
		return
	}

	report, err := worker.Run(ctx, *step, *batch, *dryRun)
	close(progress)
	<-done
	if err != nil {
		a.Log.Error("Backfill run failed", "step", *step, "error", err)
		os.Exit(exitCode(err))
	}
	printJSON(report)
	if report.Failed() {
		os.Exit(exitError)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	a.Shutdown(shutdownCtx)
}

func exitCode(err error) int {
	if errors.Is(err, apperr.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return exitTimeout
	}
	return exitError
}

func printJSON(v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("%+v\n", v)
		return
	}
	fmt.Println(string(out))
}

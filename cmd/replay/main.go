// Command replay checks a recorded report workflow history against the
// current workflow code and fails on any non-determinism.
package main

import (
	"flag"
	"fmt"
	"os"

	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"github.com/Kocoro-lab/interplay/internal/temporal"
	"github.com/Kocoro-lab/interplay/internal/workflows"
)

func main() {
	historyPath := flag.String("history", "", "Path to a workflow history JSON export (temporal workflow show --output json)")
	flag.Parse()

	if *historyPath == "" {
		fmt.Fprintln(os.Stderr, "usage: replay -history /path/to/history.json")
		os.Exit(2)
	}

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	replayer := worker.NewWorkflowReplayer()
	workflows.Register(replayer)
	if err := replayer.ReplayWorkflowHistoryFromJSONFile(temporal.NewZapAdapter(logger), *historyPath); err != nil {
		logger.Fatal("Replay failed (non-deterministic change or invalid history)", zap.String("history", *historyPath), zap.Error(err))
	}
	logger.Info("Replay succeeded", zap.String("history", *historyPath))
}

// compute-baseline scores a current feature vector against a history of
// vectors passed as its single JSON argument.
//
// Usage:
//
//	compute-baseline '{"current_features":{...},"feature_history":[{...}]}'
//
// feature_history is most recent first. On failure it prints
// {"error": "..."} and exits with status 1.
package main

import (
	"encoding/json"
	"io"
	"os"

	"sketchd/internal/config"
	"sketchd/internal/pipeline"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, out io.Writer) int {
	if len(args) < 1 {
		return fail(out, "No input data provided")
	}

	cfg := config.DefaultConfig()
	cfg.ApplyEnvOverrides()

	rep, err := pipeline.Score([]byte(args[0]), cfg.Baseline.Options())
	if err != nil {
		return fail(out, err.Error())
	}

	data, err := json.Marshal(rep)
	if err != nil {
		return fail(out, err.Error())
	}
	out.Write(append(data, '\n'))
	return 0
}

func fail(out io.Writer, msg string) int {
	data, _ := json.Marshal(map[string]string{"error": msg})
	out.Write(append(data, '\n'))
	return 1
}

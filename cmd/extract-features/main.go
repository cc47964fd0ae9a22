// extract-features prints the feature vector and QC flags of the drawing
// passed as its single JSON argument.
//
// Usage:
//
//	extract-features '{"strokes":[...],"canvas_w":800,"canvas_h":600}'
//
// On failure it prints {"error": "..."} and exits with status 1.
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

	ex, err := pipeline.Extract([]byte(args[0]), cfg.Extraction)
	if err != nil {
		return fail(out, err.Error())
	}

	data, err := json.Marshal(ex)
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

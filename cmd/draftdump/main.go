// Command draftdump prints the draft rebuilt from a stored event log.
//
//	draftdump log.json
//	draftdump < log.json
//	draftdump -series 2770137
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/DoyleJ11/scrim-review/internal/config"
	"github.com/DoyleJ11/scrim-review/internal/engine"
	"github.com/DoyleJ11/scrim-review/internal/store"
)

type dump struct {
	Draft      engine.DraftRecord    `json:"draft"`
	Resolution engine.Resolution     `json:"resolution"`
	Timeline   []engine.TimelineStep `json:"timeline"`
	Conflicts  []string              `json:"conflicts,omitempty"`
}

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "draftdump:", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("draftdump", flag.ContinueOnError)
	seriesID := fs.String("series", "", "read the event log of this series from the configured store")
	whole := fs.Bool("whole", false, "do not skip events before the last validated marker")
	if err := fs.Parse(args); err != nil {
		return err
	}

	events, err := readEvents(fs.Arg(0), *seriesID, stdin)
	if err != nil {
		return err
	}

	var out dump
	if *whole {
		out.Draft, out.Resolution = engine.ReconstructDetailed(events)
	} else {
		out.Draft, out.Resolution = engine.ReconstructGame(events)
	}
	out.Timeline = engine.Timeline(out.Draft)
	out.Conflicts = engine.Conflicts(out.Draft)

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func readEvents(path, seriesID string, stdin io.Reader) ([]engine.FeedEvent, error) {
	if seriesID != "" {
		cfg, err := config.Load()
		if err != nil {
			return nil, err
		}
		st, err := store.Open(cfg.DBDriver, cfg.SQLitePath, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		defer st.Close()
		return st.EventLog(context.Background(), seriesID)
	}

	r := stdin
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return engine.DecodeEventLog(raw)
}

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/outreachkit/prospector/internal/mocksearch"
	"github.com/outreachkit/prospector/internal/prospect"
)

func main() {
	addr := defaultString("MOCK_SEARCH_ADDR", ":9090")
	recordsPath := defaultString("MOCK_SEARCH_RECORDS", "")

	fs := flag.NewFlagSet("mock-search", flag.ExitOnError)
	fs.StringVar(&addr, "addr", addr, "Listen address")
	fs.StringVar(&recordsPath, "records", recordsPath, "JSON file with the raw prospect records to serve (env: MOCK_SEARCH_RECORDS)")
	pendingPolls := fs.Int("pending-polls", 2, "Status polls to answer with running before completing")
	failJob := fs.Bool("fail-job", false, "Resolve every job as failed")
	_ = fs.Parse(os.Args[1:])

	srv := mocksearch.New()
	srv.PendingPolls = *pendingPolls
	srv.FailJob = *failJob
	if recordsPath != "" {
		records, err := loadRecords(recordsPath)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "records error: %v\n", err)
			os.Exit(2)
		}
		srv.Records = records
	}

	_, _ = fmt.Fprintf(os.Stdout, "mock-search listening on %s (records=%d pendingPolls=%d failJob=%t)\n",
		addr, len(srv.Records), srv.PendingPolls, srv.FailJob)
	if err := http.ListenAndServe(addr, srv.Handler()); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func loadRecords(path string) ([]prospect.RawRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var records []prospect.RawRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return records, nil
}

func defaultString(envVar string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(envVar))
	if v == "" {
		return fallback
	}
	return v
}

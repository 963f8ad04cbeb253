// Package main implements the transform CLI: one pipeline run from a
// tabular file plus a mapping config to exported graph artifacts.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/path2target/transform-core/internal/config"
	"github.com/path2target/transform-core/internal/core"
	"github.com/path2target/transform-core/internal/engine"
	"github.com/path2target/transform-core/internal/export"
	"github.com/path2target/transform-core/internal/mapping"
	"github.com/path2target/transform-core/internal/source"
	"github.com/path2target/transform-core/internal/validate"
)

func main() {
	var (
		sourcePath  = flag.String("source", "", "tabular input file (.csv or .tsv)")
		mappingPath = flag.String("mapping", "", "mapping config file (YAML)")
		shapesPath  = flag.String("shapes", "", "shape set file (YAML); default is the Biolink skeleton")
		formats     = flag.String("formats", "rdf,jsonld,tsv", "comma-separated export formats")
		sinkID      = flag.String("sink", "", "artifact sink (memory or file); default from config")
		force       = flag.Bool("force", false, "export even when validation reports errors")
	)
	flag.Parse()

	if *sourcePath == "" || *mappingPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	src, err := source.Open(*sourcePath)
	if err != nil {
		fatal("open source", err)
	}

	mappingCfg, err := mapping.Load(*mappingPath)
	if err != nil {
		fatal("load mapping", err)
	}

	var shapes *validate.ShapeSet
	if *shapesPath != "" {
		shapes, err = validate.LoadShapes(*shapesPath)
		if err != nil {
			fatal("load shapes", err)
		}
	}

	formatList, err := parseFormats(*formats)
	if err != nil {
		log.Fatalf("parse formats: %v", err)
	}

	cfg := config.Load()
	eng := engine.New(cfg, nil, nil, nil)

	result, err := eng.Run(ctx, &engine.RunRequest{
		Source:                src,
		Mapping:               mappingCfg,
		Shapes:                shapes,
		Formats:               formatList,
		SinkID:                *sinkID,
		AllowExportWithErrors: *force,
	})
	if err != nil {
		fatal("run", err)
	}

	log.Printf("run %s: %d rows, %d nodes, %d edges",
		result.RunID, result.Stats["rows"], result.Stats["nodes"], result.Stats["edges"])
	printReport("pre-export", result.PreReport)
	for format, report := range result.PostReports {
		printReport("post-export "+string(format), report)
	}

	if result.ExportBlocked {
		log.Printf("export blocked: validation reported errors (use -force to export anyway)")
		os.Exit(1)
	}
	for _, ref := range result.ArtifactRefs {
		log.Printf("artifact: %s", ref)
	}
}

// fatal reports a failure with its engine error code and retryability when
// the error carries them.
func fatal(stage string, err error) {
	var coded interface {
		CodeValue() string
		RetryableStatus() bool
	}
	if errors.As(err, &coded) {
		if coded.RetryableStatus() {
			log.Fatalf("%s failed [%s, retryable]: %v", stage, coded.CodeValue(), err)
		}
		log.Fatalf("%s failed [%s]: %v", stage, coded.CodeValue(), err)
	}
	log.Fatalf("%s failed: %v", stage, err)
}

func printReport(stage string, report *core.Report) {
	if report == nil {
		return
	}
	log.Printf("%s: %d errors, %d warnings",
		stage, report.Count(core.SeverityError), report.Count(core.SeverityWarning))
	for _, f := range report.Findings {
		log.Printf("  [%s] %s %s: %s", f.Severity, f.Scope, f.TargetRef, f.Message)
	}
}

func parseFormats(s string) ([]export.Format, error) {
	var out []export.Format
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		switch export.Format(part) {
		case export.FormatRDF, export.FormatJSONLD, export.FormatTSV:
			out = append(out, export.Format(part))
		default:
			return nil, fmt.Errorf("unknown format %q", part)
		}
	}
	return out, nil
}

package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/basekick-labs/pointmap/internal/config"
	"github.com/basekick-labs/pointmap/internal/ingest"
	"github.com/basekick-labs/pointmap/internal/logger"
	"github.com/basekick-labs/pointmap/internal/mapper"
	"github.com/basekick-labs/pointmap/internal/storage"
	"github.com/basekick-labs/pointmap/pkg/models"
	"github.com/rs/zerolog/log"
)

// Version is set at build time
var Version = "dev"

// inputRecord is one JSON line read from the input stream
type inputRecord struct {
	Model  string                 `json:"model"`
	ID     string                 `json:"id"`
	Values map[string]interface{} `json:"values"`
	Time   *int64                 `json:"time,omitempty"`
	Unit   string                 `json:"unit,omitempty"`
}

func main() {
	configPath := flag.String("config", "", "Path to config file (default: search pointmap.toml)")
	inputPath := flag.String("input", "", "Input file of JSON records, one per line (default: stdin)")
	outputPath := flag.String("output", "", "Output file for the encoded payload (default: stdout)")
	batchSize := flag.Int("batch", 1000, "Records mapped per batch; output keeps input order")
	flag.Parse()

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Log.Level, cfg.Log.Format)
	log.Info().Str("version", Version).Msg("Starting pointmap...")

	registry := storage.NewRegistry(log.Logger)
	if err := cfg.RegisterModels(registry); err != nil {
		log.Fatal().Err(err).Msg("Failed to register models")
	}
	log.Info().Strs("models", registry.Names()).Msg("Models registered")

	encoder, err := ingest.NewEncoder(cfg.Output.Format, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create encoder")
	}

	in := io.Reader(os.Stdin)
	if *inputPath != "" {
		f, err := os.Open(*inputPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", *inputPath).Msg("Failed to open input")
		}
		defer f.Close()
		in = f
	}

	out := io.Writer(os.Stdout)
	if *outputPath != "" {
		f, err := os.Create(*outputPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", *outputPath).Msg("Failed to create output")
		}
		defer f.Close()
		out = f
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r := &runner{
		mapper:    mapper.New(registry, &mapper.Config{Workers: cfg.Mapper.Workers}, log.Logger),
		encoder:   encoder,
		gzip:      cfg.Output.Gzip,
		batchSize: *batchSize,
		out:       out,
	}

	start := time.Now()
	count, err := r.run(ctx, in)
	if err != nil {
		log.Error().Err(err).Int("records", count).Msg("Mapping failed")
		os.Exit(1)
	}

	log.Info().
		Int("records", count).
		Dur("elapsed", time.Since(start)).
		Msg("Mapping complete")
}

type runner struct {
	mapper    *mapper.Mapper
	encoder   ingest.Encoder
	gzip      bool
	batchSize int
	out       io.Writer

	pending []pendingItem
}

// pendingItem is a decoded record waiting for the next flush
type pendingItem struct {
	model string
	item  mapper.Item
}

func (r *runner) run(ctx context.Context, in io.Reader) (int, error) {
	if r.batchSize <= 0 {
		r.batchSize = 1
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	count := 0
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		rec, err := decodeRecord(line)
		if err != nil {
			return count, fmt.Errorf("line %d: %w", lineNo, err)
		}
		item, err := rec.item()
		if err != nil {
			return count, fmt.Errorf("line %d: %w", lineNo, err)
		}

		r.pending = append(r.pending, pendingItem{model: rec.Model, item: item})
		count++

		if len(r.pending) >= r.batchSize {
			if err := r.flush(ctx); err != nil {
				return count, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return count, fmt.Errorf("failed to read input: %w", err)
	}

	return count, r.flush(ctx)
}

func (r *runner) flush(ctx context.Context) error {
	if len(r.pending) == 0 {
		return nil
	}

	// MapBatch works on one model at a time; remember where each record
	// came from so the payload keeps input order
	var order []string
	items := make(map[string][]mapper.Item)
	positions := make(map[string][]int)
	for i, p := range r.pending {
		if _, ok := items[p.model]; !ok {
			order = append(order, p.model)
		}
		items[p.model] = append(items[p.model], p.item)
		positions[p.model] = append(positions[p.model], i)
	}

	points := make([]models.Point, len(r.pending))
	for _, model := range order {
		mapped, err := r.mapper.MapBatch(ctx, model, items[model], storage.MapBuilder{})
		if err != nil {
			return fmt.Errorf("model %s: %w", model, err)
		}
		for j, p := range mapped {
			points[positions[model][j]] = p
		}
	}
	r.pending = r.pending[:0]

	payload, err := r.encoder.EncodeBatch(points)
	if err != nil {
		return err
	}
	if r.gzip {
		if payload, err = ingest.Gzip(payload); err != nil {
			return err
		}
	}

	_, err = r.out.Write(payload)
	return err
}

func decodeRecord(line []byte) (*inputRecord, error) {
	dec := json.NewDecoder(bytes.NewReader(line))
	// Keep integers as integers so they encode as integer fields
	dec.UseNumber()

	var rec inputRecord
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("invalid record: %w", err)
	}
	if rec.Model == "" {
		return nil, errors.New("record has no model")
	}
	for k, v := range rec.Values {
		rec.Values[k] = normalizeNumber(v)
	}
	return &rec, nil
}

func normalizeNumber(v interface{}) interface{} {
	n, ok := v.(json.Number)
	if !ok {
		return v
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}

func (rec *inputRecord) item() (mapper.Item, error) {
	item := mapper.Item{Data: &storage.MapData{Identity: rec.ID, Values: rec.Values}}
	switch {
	case rec.Time == nil && rec.Unit == "":
		return item, nil
	case rec.Time == nil:
		return item, fmt.Errorf("record has unit %q but no time", rec.Unit)
	case rec.Unit == "":
		return item, errors.New("record has time but no unit")
	}

	unit, err := parseUnit(rec.Unit)
	if err != nil {
		return item, err
	}
	item.Time = *rec.Time
	item.TimeUnit = unit
	return item, nil
}

func parseUnit(unit string) (time.Duration, error) {
	switch unit {
	case "ns":
		return time.Nanosecond, nil
	case "us":
		return time.Microsecond, nil
	case "ms":
		return time.Millisecond, nil
	case "s":
		return time.Second, nil
	default:
		return 0, fmt.Errorf("unsupported time unit %q", unit)
	}
}

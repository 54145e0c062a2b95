package ingestion

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/turtacn/TRAXX-Intelligence/internal/config"
	"github.com/turtacn/TRAXX-Intelligence/pkg/errors"
	"github.com/turtacn/TRAXX-Intelligence/pkg/types/common"
)

// Source produces the initial dataset of a session.
type Source interface {
	Name() string
	Dataset(ctx context.Context) (Dataset, error)
}

// NewSource picks the source named in cfg.
func NewSource(cfg config.IngestionConfig, clock common.Clock) (Source, error) {
	if clock == nil {
		clock = common.SystemClock()
	}
	switch cfg.Source {
	case "", "generator":
		return &GeneratorSource{
			Generator: Generator{Seed: cfg.Seed, Trackers: cfg.Trackers, Facilities: cfg.Facilities},
			clock:     clock,
		}, nil
	case "fixture":
		if cfg.FixturePath == "" {
			return nil, errors.New(errors.ErrCodeValidation, "fixture source requires a fixture path")
		}
		return &FixtureSource{Path: cfg.FixturePath}, nil
	}
	return nil, errors.Newf(errors.ErrCodeValidation, "unknown ingestion source %q", cfg.Source)
}

// GeneratorSource serves the seeded mock fleet.
type GeneratorSource struct {
	Generator Generator
	clock     common.Clock
}

func (s *GeneratorSource) Name() string { return "generator" }

func (s *GeneratorSource) Dataset(ctx context.Context) (Dataset, error) {
	if err := ctx.Err(); err != nil {
		return Dataset{}, err
	}
	clock := s.clock
	if clock == nil {
		clock = common.SystemClock()
	}
	return s.Generator.Generate(clock.Now()), nil
}

// FixtureSource reads a YAML or JSON dataset file.
type FixtureSource struct {
	Path string
}

func (s *FixtureSource) Name() string { return "fixture" }

func (s *FixtureSource) Dataset(ctx context.Context) (Dataset, error) {
	if err := ctx.Err(); err != nil {
		return Dataset{}, err
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return Dataset{}, errors.Wrap(err, errors.ErrCodeIngestSourceFailed, "failed to read fixture "+s.Path)
	}
	return DecodeDataset(data, filepath.Ext(s.Path))
}

// DecodeDataset parses a dataset.  ext selects the format (".json", ".yaml",
// ".yml"); anything else is sniffed from the first non-space byte.
func DecodeDataset(data []byte, ext string) (Dataset, error) {
	var ds Dataset
	var err error
	if isJSON(data, ext) {
		err = json.Unmarshal(data, &ds)
	} else {
		err = yaml.Unmarshal(data, &ds)
	}
	if err != nil {
		return Dataset{}, errors.Wrap(err, errors.ErrCodeIngestDecodeFailed, "failed to decode dataset")
	}
	return ds, nil
}

// DecodeScanEvents parses one feed message: a single JSON object or an
// array of them.
func DecodeScanEvents(data []byte) ([]ScanEvent, error) {
	return DecodeTrackerScans(data, "")
}

// DecodeTrackerScans is DecodeScanEvents for feeds that address one tracker
// per channel: events without a tracker id are attributed to trackerID.
func DecodeTrackerScans(data []byte, trackerID string) ([]ScanEvent, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.New(errors.ErrCodeIngestDecodeFailed, "empty scan payload")
	}
	var events []ScanEvent
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &events); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeIngestDecodeFailed, "failed to decode scan events")
		}
	} else {
		var ev ScanEvent
		if err := json.Unmarshal(trimmed, &ev); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeIngestDecodeFailed, "failed to decode scan event")
		}
		events = []ScanEvent{ev}
	}
	out := events[:0]
	for _, ev := range events {
		ev.TrackerID = strings.TrimSpace(ev.TrackerID)
		if ev.TrackerID == "" {
			ev.TrackerID = strings.TrimSpace(trackerID)
		}
		if ev.TrackerID != "" {
			out = append(out, ev)
		}
	}
	if len(out) == 0 {
		return nil, errors.New(errors.ErrCodeIngestDecodeFailed, "scan payload carries no tracker id")
	}
	return out, nil
}

func isJSON(data []byte, ext string) bool {
	switch strings.ToLower(ext) {
	case ".json":
		return true
	case ".yaml", ".yml":
		return false
	}
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[')
}

//Personal.AI order the ending

package media

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/amillerrr/media-ingest/pkg/models"
)

// Aspect-ratio classification tolerance around 16:9 and 9:16.
const ratioTolerance = 0.1

// ProbeTool is the external analysis binary.
const ProbeTool = "ffprobe"

// Prober extracts stream geometry from a local file and classifies its
// aspect ratio.
type Prober struct {
	runner CommandRunner
}

// NewProber creates a Prober using the given runner.
func NewProber(runner CommandRunner) *Prober {
	return &Prober{runner: runner}
}

type probeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
}

// Probe runs the analysis tool against path and returns the geometry
// classification of the first video stream. Any tool failure, missing
// stream, or malformed output is a processing error - there is no silent
// default.
func (p *Prober) Probe(ctx context.Context, path string) (models.Classification, error) {
	stdout, stderr, err := p.runner.Run(ctx, ProbeTool,
		"-v", "error",
		"-print_format", "json",
		"-show_streams",
		path,
	)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v: %s", models.ErrProcessing, ProbeTool, err, stderr)
	}

	var out probeOutput
	if err := json.Unmarshal(stdout, &out); err != nil {
		return "", fmt.Errorf("%w: parse %s output: %v", models.ErrProcessing, ProbeTool, err)
	}

	for _, stream := range out.Streams {
		if stream.CodecType != "video" {
			continue
		}
		if stream.Width <= 0 || stream.Height <= 0 {
			return "", fmt.Errorf("%w: video stream has invalid geometry %dx%d", models.ErrProcessing, stream.Width, stream.Height)
		}
		return Classify(stream.Width, stream.Height), nil
	}

	return "", fmt.Errorf("%w: no video stream found", models.ErrProcessing)
}

// Classify buckets a width/height pair by aspect ratio: landscape within
// the tolerance of 16:9, portrait within the tolerance of 9:16, otherwise
// other.
func Classify(width, height int) models.Classification {
	ratio := float64(width) / float64(height)

	switch {
	case math.Abs(ratio-16.0/9.0) < ratioTolerance:
		return models.ClassLandscape
	case math.Abs(ratio-9.0/16.0) < ratioTolerance:
		return models.ClassPortrait
	default:
		return models.ClassOther
	}
}

package media

import (
	"context"
	"fmt"
	"os"

	"github.com/amillerrr/media-ingest/pkg/models"
)

// RemuxTool is the external remuxing binary.
const RemuxTool = "ffmpeg"

// RemuxSuffix is appended to the input path to derive the output path, so
// repeated calls on the same input produce the same name.
const RemuxSuffix = ".faststart.mp4"

// Remuxer rewrites a container for progressive playback: streams are
// copied without re-encoding while the index metadata moves to the front
// of the file.
type Remuxer struct {
	runner CommandRunner
}

// NewRemuxer creates a Remuxer using the given runner.
func NewRemuxer(runner CommandRunner) *Remuxer {
	return &Remuxer{runner: runner}
}

// OutputPath returns the derived output path for an input path.
func OutputPath(inputPath string) string {
	return inputPath + RemuxSuffix
}

// Remux produces a playback-optimized copy of the file at path and returns
// the new path. On success the caller owns the produced file and must
// delete it once consumed; on any error Remux removes whatever the tool
// left at the output path, so a failed or killed run never leaks a partial
// file.
func (r *Remuxer) Remux(ctx context.Context, path string) (string, error) {
	outPath := OutputPath(path)

	_, stderr, err := r.runner.Run(ctx, RemuxTool,
		"-y",
		"-i", path,
		"-c", "copy",
		"-movflags", "faststart",
		"-map_metadata", "0",
		"-f", "mp4",
		outPath,
	)
	if err != nil {
		os.Remove(outPath)
		return "", fmt.Errorf("%w: %s: %v: %s", models.ErrProcessing, RemuxTool, err, stderr)
	}

	info, err := os.Stat(outPath)
	if err != nil {
		os.Remove(outPath)
		return "", fmt.Errorf("%w: remuxed file missing: %v", models.ErrProcessing, err)
	}
	if info.Size() == 0 {
		os.Remove(outPath)
		return "", fmt.Errorf("%w: remuxed file is empty", models.ErrProcessing)
	}

	return outPath, nil
}

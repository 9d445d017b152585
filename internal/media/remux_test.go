package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/amillerrr/media-ingest/pkg/models"
)

func TestOutputPath(t *testing.T) {
	got := OutputPath("/tmp/staging/abc123")
	want := "/tmp/staging/abc123" + RemuxSuffix
	if got != want {
		t.Errorf("OutputPath() = %s, want %s", got, want)
	}
}

func TestRemux(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "input")
	if err := os.WriteFile(input, []byte("raw video bytes"), 0o600); err != nil {
		t.Fatal(err)
	}

	runner := &fakeRunner{remuxData: []byte("remuxed video bytes")}
	remuxer := NewRemuxer(runner)

	outPath, err := remuxer.Remux(context.Background(), input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outPath != OutputPath(input) {
		t.Errorf("expected output path %s, got %s", OutputPath(input), outPath)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("failed to read remuxed file: %v", err)
	}
	if string(data) != "remuxed video bytes" {
		t.Errorf("unexpected remuxed content: %q", data)
	}
}

func TestRemuxToolFailure(t *testing.T) {
	runner := &fakeRunner{remuxErr: errors.New("exit status 1")}
	remuxer := NewRemuxer(runner)

	_, err := remuxer.Remux(context.Background(), filepath.Join(t.TempDir(), "input"))
	if !errors.Is(err, models.ErrProcessing) {
		t.Fatalf("expected processing error, got %v", err)
	}
}

func TestRemuxFailureRemovesPartialOutput(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "input")
	if err := os.WriteFile(input, []byte("raw video bytes"), 0o600); err != nil {
		t.Fatal(err)
	}

	// A killed tool can leave a half-written output file behind.
	runner := &fakeRunner{
		remuxErr:     errors.New("signal: killed"),
		remuxPartial: []byte("partial bytes"),
	}
	remuxer := NewRemuxer(runner)

	_, err := remuxer.Remux(context.Background(), input)
	if !errors.Is(err, models.ErrProcessing) {
		t.Fatalf("expected processing error, got %v", err)
	}

	if _, err := os.Stat(OutputPath(input)); !os.IsNotExist(err) {
		t.Errorf("partial output file survived the failed remux, stat err = %v", err)
	}
}

func TestRemuxEmptyOutput(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "input")
	if err := os.WriteFile(input, []byte("raw video bytes"), 0o600); err != nil {
		t.Fatal(err)
	}

	runner := &fakeRunner{remuxData: []byte{}}
	remuxer := NewRemuxer(runner)

	_, err := remuxer.Remux(context.Background(), input)
	if !errors.Is(err, models.ErrProcessing) {
		t.Fatalf("expected processing error for empty output, got %v", err)
	}

	if _, err := os.Stat(OutputPath(input)); !os.IsNotExist(err) {
		t.Errorf("empty output file survived the failed remux, stat err = %v", err)
	}
}

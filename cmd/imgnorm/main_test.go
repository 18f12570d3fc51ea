package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"image-normalizer/internal/http-server/handler/image/dto"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

func writePNG(t *testing.T, dir string, width, height int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 5), G: uint8(y * 11), B: uint8((x * y) % 251), A: 0xff})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	path := filepath.Join(dir, "photo.png")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	return path
}

func TestPlanCommand(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{args: []string{"plan", "4000", "3000"}, want: "1920x1440\n"},
		{args: []string{"plan", "1080", "1920"}, want: "1080x1920\n"},
		{args: []string{"plan", "3000", "3000"}, want: "1920x1920\n"},
		{args: []string{"plan", "640", "480"}, want: "640x480\n"},
		{args: []string{"plan", "--max-dimension", "100", "300", "200"}, want: "100x67\n"},
	}

	for _, tc := range tests {
		t.Run(strings.Join(tc.args, " "), func(t *testing.T) {
			out, err := runCLI(t, tc.args...)
			require.NoError(t, err)
			assert.Equal(t, tc.want, out)
		})
	}
}

func TestPlanCommandRejectsBadInput(t *testing.T) {
	_, err := runCLI(t, "plan", "wide", "100")
	require.Error(t, err)

	_, err = runCLI(t, "plan", "100")
	require.Error(t, err)
}

func TestNormalizeCommandWritesOutput(t *testing.T) {
	dir := t.TempDir()
	input := writePNG(t, dir, 300, 200)

	out, err := runCLI(t, "normalize", input, "--max-dimension", "150", "--max-bytes", "1000")
	require.NoError(t, err)
	assert.Contains(t, out, "150x100 jpeg")

	data, err := os.ReadFile(filepath.Join(dir, "photo.normalized.jpg"))
	require.NoError(t, err)
	decoded, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 150, 100), decoded.Bounds())
}

func TestNormalizeCommandPassThrough(t *testing.T) {
	dir := t.TempDir()
	input := writePNG(t, dir, 20, 10)
	output := filepath.Join(dir, "out.png")

	out, err := runCLI(t, "normalize", input, "-o", output)
	require.NoError(t, err)
	assert.Contains(t, out, "unchanged")

	original, err := os.ReadFile(input)
	require.NoError(t, err)
	written, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, original, written)
}

func TestNormalizeCommandPayload(t *testing.T) {
	dir := t.TempDir()
	input := writePNG(t, dir, 20, 10)

	out, err := runCLI(t, "normalize", input, "--payload")
	require.NoError(t, err)

	var payload dto.PayloadResponse
	require.NoError(t, json.Unmarshal([]byte(out), &payload))
	assert.Equal(t, "png", payload.FileType)

	original, err := os.ReadFile(input)
	require.NoError(t, err)
	assert.Equal(t, base64.StdEncoding.EncodeToString(original), payload.Base64String)
}

func TestNormalizeCommandRejectsNonImage(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(input, []byte("just text"), 0o600))

	_, err := runCLI(t, "normalize", input)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not an image")
}

func TestNormalizeCommandBadBudget(t *testing.T) {
	dir := t.TempDir()
	input := writePNG(t, dir, 4, 4)

	_, err := runCLI(t, "normalize", input, "--max-bytes", "lots")
	require.Error(t, err)
}

func TestNormalizeCommandRejectsUnknownInterpolation(t *testing.T) {
	dir := t.TempDir()
	input := writePNG(t, dir, 4, 4)

	_, err := runCLI(t, "normalize", input, "--interpolation", "nearest")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--interpolation")
}

func TestNormalizeCommandMaxPixels(t *testing.T) {
	dir := t.TempDir()
	input := writePNG(t, dir, 300, 200)

	_, err := runCLI(t, "normalize", input, "--max-bytes", "100", "--max-pixels", "1000")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pixel limit")

	_, err = os.Stat(filepath.Join(dir, "photo.normalized.jpg"))
	assert.True(t, os.IsNotExist(err))
}

func TestNormalizeCommandStopsOnCancelledContext(t *testing.T) {
	dir := t.TempDir()
	input := writePNG(t, dir, 300, 200)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cmd := newRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"normalize", input, "--max-bytes", "100"})
	err := cmd.ExecuteContext(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

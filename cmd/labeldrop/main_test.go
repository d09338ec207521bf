package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dataset = "ProductName,MRP,Product Code,GTIN\n" +
	"Bath Towel,499,A1,4006381333931\n" +
	"Hand Towel,199,B/2,\n"

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeDataset(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(dataset), 0o644))
	return p
}

func TestRootCommandLayout(t *testing.T) {
	root := newRootCommand()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"render", "export", "inspect", "stack", "test", "run"} {
		assert.True(t, names[want], want)
	}

	stack, _, err := root.Find([]string{"stack", "up"})
	require.NoError(t, err)
	assert.Equal(t, "up", stack.Name())
}

func TestRenderWritesLabelsPerDataset(t *testing.T) {
	dir := t.TempDir()
	first := writeDataset(t, dir, "spring.csv")
	second := writeDataset(t, dir, "autumn.csv")
	out := filepath.Join(dir, "out")

	stdout, err := execute(t, "render", "--csv", first, "--csv", second, "--out", out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "2 rendered, 0 failed")

	for _, stem := range []string{"spring", "autumn"} {
		assert.FileExists(t, filepath.Join(out, stem, "001_A1.png"))
		assert.FileExists(t, filepath.Join(out, stem, "002_B-2.png"))
	}
}

func TestRenderRequiresDataset(t *testing.T) {
	_, err := execute(t, "render", "--out", t.TempDir())
	assert.ErrorContains(t, err, "--csv")
}

func TestRenderRejectsUnknownBarcodeMode(t *testing.T) {
	dir := t.TempDir()
	_, err := execute(t, "render", "--csv", writeDataset(t, dir, "a.csv"), "--barcode-mode", "scan")
	assert.ErrorContains(t, err, "unknown barcode mode")
}

func TestExportSheetThenInspect(t *testing.T) {
	dir := t.TempDir()
	sheet := filepath.Join(dir, "labels.pdf")

	stdout, err := execute(t, "export", "pdf", "--csv", writeDataset(t, dir, "labels.csv"), "--out", sheet)
	require.NoError(t, err)
	assert.Contains(t, stdout, "wrote "+sheet+" (1 pages)")

	stdout, err = execute(t, "inspect", sheet)
	require.NoError(t, err)
	assert.Contains(t, stdout, "1 pages")
}

func TestExportArchive(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "labels.zip")

	stdout, err := execute(t, "export", "zip", "--csv", writeDataset(t, dir, "labels.csv"), "--out", archive)
	require.NoError(t, err)
	assert.Contains(t, stdout, "(2 entries)")
	info, err := os.Stat(archive)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestExportUnknownKind(t *testing.T) {
	_, err := execute(t, "export", "tar", "--csv", "x.csv")
	assert.Error(t, err)
}

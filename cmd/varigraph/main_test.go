package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func captureOutput(t *testing.T, fn func() error) (stdout, stderr string, err error) {
	t.Helper()
	oldOut, oldErr := os.Stdout, os.Stderr
	defer func() {
		os.Stdout, os.Stderr = oldOut, oldErr
	}()

	outR, outW, _ := os.Pipe()
	errR, errW, _ := os.Pipe()
	os.Stdout, os.Stderr = outW, errW

	doneOut := make(chan struct{})
	var bufOut bytes.Buffer
	go func() { io.Copy(&bufOut, outR); close(doneOut) }()

	doneErr := make(chan struct{})
	var bufErr bytes.Buffer
	go func() { io.Copy(&bufErr, errR); close(doneErr) }()

	err = fn()
	outW.Close()
	errW.Close()
	<-doneOut
	<-doneErr
	stdout, stderr = bufOut.String(), bufErr.String()
	return
}

func TestHelp(t *testing.T) {
	out, _, err := captureOutput(t, func() error {
		return run([]string{"help", "serve"})
	})
	require.NoError(t, err)
	require.Contains(t, out, "serve FLAGS")
}

func TestMissingCommand(t *testing.T) {
	_, errOut, err := captureOutput(t, func() error {
		return run(nil)
	})
	require.EqualError(t, err, "missing command")
	require.Contains(t, errOut, "USAGE")
}

func TestUnknownCommand(t *testing.T) {
	_, _, err := captureOutput(t, func() error {
		return run([]string{"frobnicate"})
	})
	require.EqualError(t, err, `unknown command "frobnicate"`)
}

func TestValidateDefaultManifest(t *testing.T) {
	out, _, err := captureOutput(t, func() error {
		return run([]string{"validate"})
	})
	require.NoError(t, err)
	require.Contains(t, out, "ok: 1 genomes, memory store")
}

func TestValidateRejectsBadManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.yaml")
	require.NoError(t, os.WriteFile(path, []byte("genomes: []\nstore:\n  driver: memory\n"), 0644))

	_, _, err := captureOutput(t, func() error {
		return run([]string{"validate", "-manifest", path})
	})
	require.ErrorContains(t, err, "no genomes declared")
}

func TestQueryVersion(t *testing.T) {
	out, _, err := captureOutput(t, func() error {
		return run([]string{"query", "-q", "{ version { api { major minor patch } } }"})
	})
	require.NoError(t, err)
	require.Contains(t, out, `"major": "0"`)
}

func TestQueryRejectsBadQuery(t *testing.T) {
	_, errOut, err := captureOutput(t, func() error {
		return run([]string{"query", "-q", "{ nope }"})
	})
	require.EqualError(t, err, "query does not compile")
	require.Contains(t, errOut, "nope")
}

func TestLoadThenServeFromSQLite(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "variation.db")

	out, _, err := captureOutput(t, func() error {
		return run([]string{"load", "-db", dbPath})
	})
	require.NoError(t, err)
	require.Contains(t, out, "documents into")

	manifest := filepath.Join(dir, "manifest.yaml")
	body := "genomes:\n  - id: a7335667-93e7-11ec-a39d-005056b38ce3\n    name: GRCh38.p13\nstore:\n  driver: sqlite\n  path: " + dbPath + "\n"
	require.NoError(t, os.WriteFile(manifest, []byte(body), 0644))

	query := `{ variant(by_id: {genome_id: "a7335667-93e7-11ec-a39d-005056b38ce3", variant_id: "rs699"}) { name } }`
	out, _, err = captureOutput(t, func() error {
		return run([]string{"query", "-manifest", manifest, "-q", query})
	})
	require.NoError(t, err)
	require.Contains(t, out, `"name": "rs699"`)
}

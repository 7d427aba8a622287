package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func execute(args ...string) error {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	return cmd.Execute()
}

func TestRecoverFlagsMutuallyExclusive(t *testing.T) {
	// Rejected at flag parsing, before any file is touched.
	err := execute("--recover-all", "--recover", "400000", "does-not-exist")
	require.Error(t, err)
	require.Contains(t, err.Error(), "recover")
}

func TestMissingFilename(t *testing.T) {
	require.Error(t, execute())
}

func TestUnsupportedFormat(t *testing.T) {
	err := execute("--format", "svg", "does-not-exist")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported output format")
}

func TestInvalidRecoverList(t *testing.T) {
	err := execute("--recover", "zzzz", "does-not-exist")
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid address")
}

func TestMissingBinary(t *testing.T) {
	require.Error(t, execute("does-not-exist"))
}

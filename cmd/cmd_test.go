package cmd

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRootCommand(t *testing.T) {
	root := NewRootCommand()

	assert.Equal(t, "wayfinder", root.Use)
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))

	var names []string
	for _, sub := range root.Commands() {
		names = append(names, sub.Name())
	}
	assert.Contains(t, names, "serve")
}

func TestRootCommandHelp(t *testing.T) {
	root := NewRootCommand()
	out := new(bytes.Buffer)
	root.SetOut(out)
	root.SetErr(out)
	root.SetArgs([]string{"--help"})

	err := root.ExecuteContext(context.Background())
	require.NoError(t, err)
	assert.Contains(t, out.String(), "navigation memory")
}

func TestRootCommandVersion(t *testing.T) {
	root := NewRootCommand()
	out := new(bytes.Buffer)
	root.SetOut(out)
	root.SetErr(out)
	root.SetArgs([]string{"--version"})

	err := root.ExecuteContext(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Version, strings.TrimSpace(out.String()))
}

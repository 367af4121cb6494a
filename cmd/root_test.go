package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	expected := []string{"document", "publish", "parts", "catalogs", "failures", "published", "serve"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "qhd-cli", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestPublishCommand_Flags(t *testing.T) {
	flag := publishCmd.Flags().Lookup("type")
	require.NotNil(t, flag)
	assert.Equal(t, "[process]", flag.DefValue)

	flag = publishCmd.Flags().Lookup("skip-published")
	require.NotNil(t, flag)
	assert.Equal(t, "false", flag.DefValue)
}

func TestDocumentCommand_Flags(t *testing.T) {
	flag := documentCmd.Flags().Lookup("type")
	require.NotNil(t, flag)
	assert.Equal(t, "process", flag.DefValue)
	require.NotNil(t, documentCmd.Flags().ShorthandLookup("o"))
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestParseDocTypes(t *testing.T) {
	types, err := parseDocTypes([]string{"process", "data_qh", "product"})
	require.NoError(t, err)
	assert.Len(t, types, 3)

	_, err = parseDocTypes([]string{"bogus"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown document type")
}

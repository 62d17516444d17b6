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

	expected := []string{"assess", "score", "dedupe", "freelancer", "run", "report", "runs", "migrate"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "contact-intel", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestCommandFlags(t *testing.T) {
	tests := []struct {
		name  string
		flags []string
	}{
		{"assess", []string{"input", "format", "output"}},
		{"score", []string{"contacts", "contents", "beats", "outlets", "languages", "format", "output"}},
		{"dedupe", []string{"contacts", "output"}},
		{"freelancer", []string{"contact", "history", "update", "save", "output"}},
		{"run", []string{"contents", "contacts", "histories", "target", "label", "save", "output"}},
		{"report", []string{"run", "run-id", "xlsx", "format"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, _, err := rootCmd.Find([]string{tt.name})
			require.NoError(t, err)
			for _, f := range tt.flags {
				assert.NotNil(t, cmd.Flags().Lookup(f), "%s should have --%s", tt.name, f)
			}
		})
	}
}

func TestAssessCommand_DefaultFormat(t *testing.T) {
	flag := assessCmd.Flags().Lookup("format")
	require.NotNil(t, flag)
	assert.Equal(t, "table", flag.DefValue)
}

func TestRunsCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range runsCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"list", "show", "stats"} {
		assert.True(t, names[name], "runs should have subcommand %q", name)
	}

	flag := runsListCmd.Flags().Lookup("limit")
	require.NotNil(t, flag)
	assert.Equal(t, "50", flag.DefValue)
}

func TestCheckFormat(t *testing.T) {
	for _, f := range []string{"table", "csv", "json"} {
		assert.NoError(t, checkFormat(f))
	}
	assert.Error(t, checkFormat("xml"))
}

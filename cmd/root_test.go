package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_Subcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	assert.True(t, names["analyze"])
	assert.True(t, names["requests"])
	assert.True(t, names["serve"])
}

func TestAnalyzeCommand_RequestFlagRequired(t *testing.T) {
	flag := analyzeCmd.Flags().Lookup("request")
	require.NotNil(t, flag)
	assert.Equal(t, []string{"true"}, flag.Annotations["cobra_annotation_bash_completion_one_required_flag"])
}

package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "paperfig", cmd.Use)
	assert.Contains(t, cmd.Long, "generate/critique loop")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := [][]string{
		{"generate"}, {"rerun"}, {"diff"}, {"inspect"}, {"export"}, {"audit"},
		{"critique-architecture"}, {"docs", "check"}, {"docs", "regenerate"},
		{"templates", "list"}, {"templates", "validate"}, {"templates", "lint"},
		{"runs"}, {"command-catalog"},
	}

	for _, path := range commands {
		name := path[len(path)-1]
		t.Run(name, func(t *testing.T) {
			subCmd, _, err := cmd.Find(path)
			require.NoError(t, err, "Command %v should exist", path)
			require.NotNil(t, subCmd)
			assert.Equal(t, name, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	for _, name := range []string{"config", "run-root"} {
		flag := cmd.PersistentFlags().Lookup(name)
		require.NotNil(t, flag, name)
		assert.Empty(t, flag.DefValue)
	}
}

func TestRunFlags(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"generate", "rerun"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err)
		for _, flag := range []string{
			"max-iterations", "quality-threshold", "dimension-threshold", "template-pack",
			"arch-critique", "block-severity", "audit-mode", "contrib",
		} {
			assert.NotNil(t, sub.Flags().Lookup(flag), "%s --%s", name, flag)
		}
	}
}

func TestInspectCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	inspectCmd, _, err := cmd.Find([]string{"inspect"})
	require.NoError(t, err)

	for _, flag := range []string{"figure-id", "failures-only", "min-score", "failed-dimension"} {
		assert.NotNil(t, inspectCmd.Flags().Lookup(flag), flag)
	}
	outputFlag := inspectCmd.Flags().Lookup("output")
	require.NotNil(t, outputFlag)
	assert.Equal(t, "o", outputFlag.Shorthand)
}

func TestCritiqueArchitectureFlags(t *testing.T) {
	cmd := NewRootCommand()
	critiqueCmd, _, err := cmd.Find([]string{"critique-architecture"})
	require.NoError(t, err)

	assert.NotNil(t, critiqueCmd.Flags().Lookup("block-severity"))
	assert.NotNil(t, critiqueCmd.Flags().Lookup("enable"))
	assert.NotNil(t, critiqueCmd.Flags().Lookup("list-rules"))
}

func TestCommandCatalog(t *testing.T) {
	catalog := commandCatalog(NewRootCommand())
	assert.Contains(t, catalog, "paperfig generate")
	assert.Contains(t, catalog, "paperfig docs check")
	assert.Contains(t, catalog, "paperfig templates lint")
	assert.NotContains(t, catalog, "paperfig docs", "groups without a RunE are not listed")
	assert.NotContains(t, catalog, "paperfig help")
}

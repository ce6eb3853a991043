package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServer(t *testing.T) {
	s := NewServer(ServerDeps{}, "test")
	require.NotNil(t, s)
	assert.NotNil(t, s.MCPServer())
	assert.NotNil(t, s.logger)
}

func TestToolRegistration(t *testing.T) {
	s := NewServer(ServerDeps{}, "test")

	tools := s.mcpServer.ListTools()
	require.Len(t, tools, 8)

	for _, name := range []string{
		"workflow.execute",
		"workflow.execute_config",
		"workflow.validate",
		"run.get",
		"run.list",
		"run.events",
		"modules.list",
		"workflow.diagram",
	} {
		assert.NotNil(t, s.mcpServer.GetTool(name), "tool %s should be registered", name)
	}
}

func TestToolDefinitions(t *testing.T) {
	tests := []struct {
		toolName    string
		description string
	}{
		{"workflow.execute", "Run a stored workflow and record the run"},
		{"workflow.execute_config", "Run an inline step tree without a stored workflow"},
		{"run.events", "List the step events of a run in order"},
	}

	s := NewServer(ServerDeps{}, "test")
	for _, tc := range tests {
		t.Run(tc.toolName, func(t *testing.T) {
			tool := s.mcpServer.GetTool(tc.toolName)
			require.NotNil(t, tool)
			assert.Equal(t, tc.description, tool.Tool.Description)
		})
	}
}

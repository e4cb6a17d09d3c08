package trendserver

import (
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func TestRegisterTools(t *testing.T) {
	server := mcp.NewServer(&mcp.Implementation{Name: "go_trend", Version: "test"}, nil)
	// AddTool panics when an input or output schema cannot be inferred.
	RegisterTools(server, &Services{})
}

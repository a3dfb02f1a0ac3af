// Package prompts contains MCP prompt implementations for capture logs.
package prompts

// Config holds configuration needed by prompts.
type Config struct {
	LogPath      string
	FaultMarker  string
	ReplayTarget string // host:port replay scripts connect to
}

func argOr(req map[string]string, name, fallback string) string {
	if v, ok := req[name]; ok && v != "" {
		return v
	}
	return fallback
}

package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/supporttools/logcheck/pkg/types"
)

// Environment variables handed to an external classifier.
const (
	EnvLine   = "LOGCHECK_LINE"
	EnvOutput = "LOGCHECK_OUTPUT"
)

// jsonOutput is the structured reply an external classifier may print.
type jsonOutput struct {
	Result *int    `json:"result"`
	Output *string `json:"output,omitempty"`
	Metric *string `json:"metric,omitempty"`
}

// Plugin runs an external program once per matched line.
//
// The line is written to the program's stdin and exported as LOGCHECK_LINE,
// the accumulated output as LOGCHECK_OUTPUT. A JSON object on stdout
// ({"result":1,"output":"...","metric":"..."}) is used as-is. Otherwise the
// exit code decides: 0 counts the line, 1 does not, anything else is a
// classifier fault. A non-empty first stdout line then replaces the output.
type Plugin struct {
	path     string
	executor Executor
}

// NewPlugin validates path and returns a Plugin using executor.
func NewPlugin(path string, executor Executor) (*Plugin, error) {
	if err := ValidateProgram(path); err != nil {
		return nil, types.UsageError("invalid classifier file: %v", err)
	}
	return &Plugin{path: path, executor: executor}, nil
}

// Classify implements Classifier.
func (p *Plugin) Classify(ctx context.Context, line string, st *State) (int, error) {
	env := map[string]string{
		EnvLine:   line,
		EnvOutput: st.Output,
	}

	stdout, stderr, exitCode, err := p.executor.Execute(ctx, p.path, line+"\n", env)
	if err != nil {
		return 0, err
	}
	return parseReply(stdout, stderr, exitCode, st)
}

// String returns the program path.
func (p *Plugin) String() string {
	return fmt.Sprintf("plugin(%s)", p.path)
}

func parseReply(stdout, stderr string, exitCode int, st *State) (int, error) {
	trimmed := strings.TrimSpace(stdout)

	if strings.HasPrefix(trimmed, "{") {
		var out jsonOutput
		if err := json.Unmarshal([]byte(trimmed), &out); err == nil && out.Result != nil {
			if out.Output != nil {
				st.Output = *out.Output
				st.OutputSet = true
			}
			if out.Metric != nil {
				st.Metric = *out.Metric
				st.MetricSet = true
			}
			return *out.Result, nil
		}
	}

	var result int
	switch exitCode {
	case 0:
		result = 1
	case 1:
		result = 0
	default:
		msg := strings.TrimSpace(stderr)
		if msg == "" {
			msg = firstLine(trimmed)
		}
		return 0, fmt.Errorf("classifier exited with code %d: %s", exitCode, msg)
	}

	if first := firstLine(trimmed); first != "" {
		st.Output = first
		st.OutputSet = true
	}
	return result, nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"os/exec"
	"slices"
	"strings"
	"time"
)

// StdioRequest is written as one JSON document to a stdio definition's stdin.
type StdioRequest struct {
	PluginID  string         `json:"plugin_id"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// StdioDefinition runs a subprocess per execution. The request is written
// to stdin; stdout carries {"outputs": {...}} or {"error": {...}}.
type StdioDefinition struct {
	manifest Manifest
}

// NewStdioDefinition creates a stdio definition from m.
func NewStdioDefinition(m Manifest, _ Natives) (Definition, error) {
	if strings.TrimSpace(m.Command) == "" {
		return nil, newDefinitionError(ErrorCodeInvalidRequest, "tool: stdio definition command is empty", false, nil)
	}
	return &StdioDefinition{manifest: m}, nil
}

func (d *StdioDefinition) ID() string         { return d.manifest.ID }
func (d *StdioDefinition) Manifest() Manifest { return d.manifest }

// Execute runs the configured command once.
func (d *StdioDefinition) Execute(ctx context.Context, args map[string]any) (map[string]any, error) {
	execCtx, cancel := withStdioTimeout(ctx, time.Duration(d.manifest.TimeoutMS)*time.Millisecond)
	defer cancel()

	cmd, stdin, stdout, stderr, err := d.prepareCommand(execCtx)
	if err != nil {
		return nil, err
	}

	if err := cmd.Start(); err != nil {
		return nil, newDefinitionError(ErrorCodeTransportFailure, "tool: stdio start command", true, err)
	}

	if err := writeStdioRequest(cmd, stdin, StdioRequest{PluginID: d.manifest.ID, Arguments: args}); err != nil {
		return nil, err
	}

	stdoutBytes, stdoutErr := io.ReadAll(stdout)
	waitErr := cmd.Wait()
	stderrBytes := stderr.Bytes()
	if stdoutErr != nil {
		return nil, newDefinitionError(ErrorCodeTransportFailure, "tool: stdio read stdout", true, stdoutErr)
	}

	return decodeStdioResult(execCtx, stdoutBytes, stderrBytes, waitErr)
}

// Teardown is a no-op; stdio definitions hold no process between executions.
func (d *StdioDefinition) Teardown(ctx context.Context) error {
	return nil
}

func withStdioTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, hasDeadline := parent.Deadline(); !hasDeadline && timeout > 0 {
		return context.WithTimeout(parent, timeout)
	}
	return parent, func() {}
}

// prepareCommand wires stdin and stdout as pipes. Stderr is collected into
// a buffer by the exec package so a process that writes a lot of it before
// reading its request cannot stall on a full pipe.
func (d *StdioDefinition) prepareCommand(execCtx context.Context) (*exec.Cmd, io.WriteCloser, io.ReadCloser, *bytes.Buffer, error) {
	// #nosec G204 -- command/args are explicitly configured by the definition manifest.
	cmd := exec.CommandContext(execCtx, d.manifest.Command, d.manifest.Args...)
	if len(d.manifest.Env) > 0 {
		cmd.Env = append(os.Environ(), flattenEnv(d.manifest.Env)...)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, nil, nil, nil, newDefinitionError(ErrorCodeInvalidRequest, "tool: stdio open stdin", false, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, nil, nil, newDefinitionError(ErrorCodeInvalidRequest, "tool: stdio open stdout", false, err)
	}
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr
	return cmd, stdin, stdout, stderr, nil
}

func writeStdioRequest(cmd *exec.Cmd, stdin io.WriteCloser, req StdioRequest) error {
	if err := json.NewEncoder(stdin).Encode(req); err != nil {
		_ = stdin.Close()
		_ = cmd.Wait()
		return newDefinitionError(ErrorCodeInvalidRequest, "tool: stdio encode request", false, err)
	}
	if err := stdin.Close(); err != nil {
		_ = cmd.Wait()
		return newDefinitionError(ErrorCodeTransportFailure, "tool: stdio close stdin", true, err)
	}
	return nil
}

func decodeStdioResult(execCtx context.Context, stdoutBytes, stderrBytes []byte, waitErr error) (map[string]any, error) {
	if execCtx.Err() != nil {
		if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
			return nil, newDefinitionError(ErrorCodeTimeout, "tool: stdio execution timed out", true, execCtx.Err())
		}
		return nil, newDefinitionError(ErrorCodeTransportFailure, "tool: stdio execution canceled", false, execCtx.Err())
	}

	if waitErr != nil {
		message := strings.TrimSpace(string(stderrBytes))
		if message == "" {
			message = waitErr.Error()
		}
		return nil, withDetails(
			newDefinitionError(ErrorCodeUpstreamFailure, "tool: stdio execution failed: "+message, false, waitErr),
			map[string]any{"stderr": message},
		)
	}

	return decodeStdioOutput(stdoutBytes)
}

func decodeStdioOutput(raw []byte) (map[string]any, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return map[string]any{}, nil
	}

	var resp struct {
		Outputs map[string]any   `json:"outputs"`
		Error   *DefinitionError `json:"error"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, newDefinitionError(ErrorCodeDecodeFailure, "tool: stdio decode output", false, err)
	}
	if resp.Error != nil {
		if strings.TrimSpace(resp.Error.Code) == "" {
			resp.Error.Code = ErrorCodeUpstreamFailure
		}
		return nil, resp.Error
	}
	if resp.Outputs == nil {
		resp.Outputs = map[string]any{}
	}
	return resp.Outputs, nil
}

func flattenEnv(values map[string]string) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	out := make([]string, 0, len(values))
	for _, key := range keys {
		out = append(out, key+"="+values[key])
	}
	return out
}

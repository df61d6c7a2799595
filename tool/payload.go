package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// PayloadVersion is the version stamped on every encoded payload.
const PayloadVersion = 1

// Invocation is a decoded command payload.
type Invocation struct {
	Version   int            `json:"v"`
	PluginID  string         `json:"plugin_id"`
	Arguments map[string]any `json:"arguments"`
}

// ValidateArguments reports an ErrInvalidArgument when a value is not a
// string, number or bool.
func ValidateArguments(args map[string]any) error {
	for key, value := range args {
		switch value.(type) {
		case string, bool,
			int, int8, int16, int32, int64,
			uint, uint8, uint16, uint32, uint64,
			float32, float64, json.Number:
		default:
			return fmt.Errorf("%w: %q has type %T", ErrInvalidArgument, key, value)
		}
	}
	return nil
}

// EncodePayload returns the host-storable text for invoking pluginID with
// args. Keys are emitted in sorted order so equal commands encode equally.
func EncodePayload(pluginID string, args map[string]any) (string, error) {
	if strings.TrimSpace(pluginID) == "" {
		return "", fmt.Errorf("%w: plugin id is required", ErrInvalidPayload)
	}
	if err := ValidateArguments(args); err != nil {
		return "", err
	}
	if args == nil {
		args = map[string]any{}
	}
	data, err := json.Marshal(Invocation{Version: PayloadVersion, PluginID: pluginID, Arguments: args})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return string(data), nil
}

// DecodePayload parses payload text produced by EncodePayload.
func DecodePayload(payload string) (Invocation, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(payload)))
	dec.DisallowUnknownFields()

	var inv Invocation
	if err := dec.Decode(&inv); err != nil {
		return Invocation{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if inv.Version != PayloadVersion {
		return Invocation{}, fmt.Errorf("%w: unsupported version %d", ErrInvalidPayload, inv.Version)
	}
	if strings.TrimSpace(inv.PluginID) == "" {
		return Invocation{}, fmt.Errorf("%w: plugin id is required", ErrInvalidPayload)
	}
	if err := ValidateArguments(inv.Arguments); err != nil {
		return Invocation{}, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	if inv.Arguments == nil {
		inv.Arguments = map[string]any{}
	}
	return inv, nil
}

// Executor runs a definition by plugin id.
type Executor interface {
	Execute(ctx context.Context, pluginID string, args map[string]any) (map[string]any, error)
}

// Dispatcher interprets stored payloads and executes them.
type Dispatcher struct {
	exec Executor
}

// NewDispatcher creates a dispatcher bound to exec.
func NewDispatcher(exec Executor) *Dispatcher {
	return &Dispatcher{exec: exec}
}

// Dispatch decodes payload and executes the invocation it names.
func (d *Dispatcher) Dispatch(ctx context.Context, payload string) (map[string]any, error) {
	inv, err := DecodePayload(payload)
	if err != nil {
		return nil, err
	}
	return d.exec.Execute(ctx, inv.PluginID, inv.Arguments)
}

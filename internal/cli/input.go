package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/rewind/internal/diff"
	"github.com/roach88/rewind/internal/history"
	"github.com/roach88/rewind/internal/value"
)

// fieldInput holds the flags that describe a record's fields.
type fieldInput struct {
	Fields string   // inline JSON object
	File   string   // YAML or JSON file
	Set    []string // key=value overrides
	Unset  []string // keys to drop
}

func (in *fieldInput) empty() bool {
	return in.Fields == "" && in.File == "" && len(in.Set) == 0 && len(in.Unset) == 0
}

// resolve builds the field set: base (or the inline/file document when
// given), then --set, then --unset.
func (in *fieldInput) resolve(base value.Object) (value.Object, error) {
	if in.Fields != "" && in.File != "" {
		return nil, NewExitError(ExitCommandError, "--fields and --file are mutually exclusive")
	}

	fields := base.Clone()

	switch {
	case in.Fields != "":
		obj, err := value.ParseObject([]byte(in.Fields))
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "invalid --fields", err)
		}
		fields = obj
	case in.File != "":
		obj, err := readObjectFile(in.File)
		if err != nil {
			return nil, err
		}
		fields = obj
	}

	for _, kv := range in.Set {
		key, raw, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("invalid --set %q: expected key=value", kv))
		}
		v, err := parseScalar(raw)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, fmt.Sprintf("invalid --set %q", kv), err)
		}
		fields[key] = v
	}
	for _, key := range in.Unset {
		delete(fields, key)
	}
	return fields, nil
}

// parseScalar reads raw as JSON when it parses, and as a plain string
// otherwise, so --set name=Doe and --set tags=["a"] both work.
func parseScalar(raw string) (value.Value, error) {
	v, err := value.Parse([]byte(raw))
	if err == nil {
		return v, nil
	}
	if errors.Is(err, value.ErrFloat) {
		return nil, err
	}
	return value.String(raw), nil
}

// readDocument decodes a YAML or JSON file into a Value. JSON goes
// through value.Parse so large integers keep their precision.
func readDocument(path string) (value.Value, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to read input file", err)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') && json.Valid(trimmed) {
		v, err := value.Parse(trimmed)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, fmt.Sprintf("invalid JSON in %s", path), err)
		}
		return v, nil
	}

	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("invalid YAML in %s", path), err)
	}
	v, err := value.FromGo(raw)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("invalid document in %s", path), err)
	}
	return v, nil
}

func readObjectFile(path string) (value.Object, error) {
	v, err := readDocument(path)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(value.Object)
	if !ok {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("%s: expected an object, got %s", path, value.Kind(v)))
	}
	return obj, nil
}

func readArrayFile(path string) (value.Array, error) {
	v, err := readDocument(path)
	if err != nil {
		return nil, err
	}
	arr, ok := v.(value.Array)
	if !ok {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("%s: expected an array, got %s", path, value.Kind(v)))
	}
	return arr, nil
}

// actorFlags holds attribution flags for mutating commands.
type actorFlags struct {
	User   string
	Reason string
}

func (a actorFlags) actor() history.Actor {
	return history.Session{Username: a.User, Reason: a.Reason}
}

// serviceError wraps a service failure with an exit code. A history that
// no longer replays is a failure; everything else is a command error.
func serviceError(message string, err error) error {
	if errors.Is(err, diff.ErrMalformedDiff) || errors.Is(err, history.ErrLogOrder) {
		return WrapExitError(ExitFailure, message, err)
	}
	return WrapExitError(ExitCommandError, message, err)
}

// render formats a value as canonical JSON.
func render(v value.Value) string {
	if v == nil {
		return "(absent)"
	}
	data, err := value.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return string(data)
}

// Package ruleengine invokes the external rule-based classification engine
// as a subprocess and parses its JSON verdict.
package ruleengine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// UnknownStatus is assigned when the engine output carries no key that
// matches a measurement name under any of the accepted spellings.
const UnknownStatus = "unknown"

// Verdict is the per-measurement output of the engine.
type Verdict struct {
	Classification string `json:"classification"`
}

// Engine runs the classification script once per completed test instance.
type Engine struct {
	bin     string
	script  string
	timeout time.Duration
}

func New(bin, script string, timeout time.Duration) *Engine {
	return &Engine{bin: bin, script: script, timeout: timeout}
}

// Classify passes the template ID and the measurement map to the script as
// arguments and decodes the JSON object it prints on stdout. A non-zero exit
// or undecodable output is returned as an error; the caller decides whether
// that aborts the batch.
func (e *Engine) Classify(ctx context.Context, templateID string, input map[string]interface{}) (map[string]Verdict, error) {
	payload, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("encoding engine input: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, e.bin, e.script, templateID, string(payload))
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		return nil, fmt.Errorf("classification engine: %s", detail)
	}

	var verdicts map[string]Verdict
	if err := json.Unmarshal(stdout.Bytes(), &verdicts); err != nil {
		return nil, fmt.Errorf("decoding engine output: %w", err)
	}
	return verdicts, nil
}

// keyCandidates lists the spellings tried against the engine output for a
// measurement display name, most specific first. The engine normalizes names
// inconsistently across rule sets, so matching is deliberately loose.
var keyCandidates = []func(string) string{
	func(name string) string { return strings.ReplaceAll(strings.ToLower(name), " ", "_") },
	strings.ToLower,
	func(name string) string { return name },
	func(name string) string { return strings.ReplaceAll(name, " ", "") },
}

// StatusFor resolves the classification label for a measurement display name.
// The first candidate key present in the verdict map wins; no match yields
// UnknownStatus rather than an error.
func StatusFor(verdicts map[string]Verdict, name string) string {
	for _, candidate := range keyCandidates {
		if v, ok := verdicts[candidate(name)]; ok {
			return v.Classification
		}
	}
	return UnknownStatus
}

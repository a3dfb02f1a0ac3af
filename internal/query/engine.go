// Package query runs jq expressions over connection summaries.
package query

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/itchyny/gojq"

	"github.com/usestring/aptrace/pkg/types"
)

// Engine executes JQ queries against connection summaries.
type Engine struct{}

// NewEngine creates a new query engine.
func NewEngine() *Engine {
	return &Engine{}
}

// compile parses and compiles expression.
func compile(expression string) (*gojq.Code, error) {
	query, err := gojq.Parse(expression)
	if err != nil {
		var parseErr *gojq.ParseError
		if errors.As(err, &parseErr) {
			return nil, fmt.Errorf("invalid jq expression at position %d: %w", parseErr.Offset, err)
		}
		return nil, fmt.Errorf("invalid jq expression: %w", err)
	}

	code, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("failed to compile jq expression: %w", err)
	}
	return code, nil
}

// ValidateExpression checks if a JQ expression is valid without executing it.
func (e *Engine) ValidateExpression(expression string) error {
	_, err := compile(expression)
	return err
}

// Run executes expression once per summary and collects every output.
// Null outputs are dropped. Errors raised for a single connection are
// reported in the result and do not stop the run.
func (e *Engine) Run(summaries []types.ConnectionSummary, expression string, deduplicate bool, maxResults int) (*types.QueryResult, error) {
	code, err := compile(expression)
	if err != nil {
		return nil, err
	}

	result := &types.QueryResult{
		Values: make([]any, 0),
		Errors: make([]string, 0),
	}

	seen := make(map[string]bool)
	seenErrors := make(map[string]bool)

	for i := range summaries {
		if maxResults > 0 && len(result.Values) >= maxResults {
			break
		}

		s := &summaries[i]
		label := fmt.Sprintf("conn@%d", s.Start)
		input, err := types.ToAny(s)
		if err != nil {
			return nil, fmt.Errorf("%s: encoding summary: %w", label, err)
		}

		matched := false
		iter := code.Run(input)
		for {
			if maxResults > 0 && len(result.Values) >= maxResults {
				break
			}

			v, ok := iter.Next()
			if !ok {
				break
			}

			if err, isErr := v.(error); isErr {
				msg := formatJQError(label, err)
				if !seenErrors[msg] {
					result.Errors = append(result.Errors, msg)
					seenErrors[msg] = true
				}
				continue
			}

			if v == nil {
				continue
			}

			result.RawCount++
			matched = true

			if deduplicate {
				key := valueKey(v)
				if seen[key] {
					continue
				}
				seen[key] = true
			}

			result.Values = append(result.Values, v)
		}
		if matched {
			result.Matched = append(result.Matched, s.Start)
		}
	}

	return result, nil
}

// Filter keeps the summaries for which expression yields at least one value
// other than false or null.
func (e *Engine) Filter(summaries []types.ConnectionSummary, expression string) ([]types.ConnectionSummary, []string, error) {
	code, err := compile(expression)
	if err != nil {
		return nil, nil, err
	}

	var (
		kept []types.ConnectionSummary
		errs []string
	)
	for i := range summaries {
		s := &summaries[i]
		input, err := types.ToAny(s)
		if err != nil {
			return nil, nil, fmt.Errorf("conn@%d: encoding summary: %w", s.Start, err)
		}

		iter := code.Run(input)
		for {
			v, ok := iter.Next()
			if !ok {
				break
			}
			if err, isErr := v.(error); isErr {
				errs = append(errs, formatJQError(fmt.Sprintf("conn@%d", s.Start), err))
				break
			}
			if truthy(v) {
				kept = append(kept, *s)
				break
			}
		}
	}
	return kept, errs, nil
}

func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	default:
		return true
	}
}

// formatJQError creates a helpful error message for JQ execution errors.
//
// Runtime JQ errors (like "cannot iterate over: null") are plain errors
// without typed wrappers in gojq, so string matching is used for hints.
func formatJQError(label string, err error) string {
	var haltErr *gojq.HaltError
	if errors.As(err, &haltErr) {
		if haltErr.Value() == nil {
			return fmt.Sprintf("%s: query halted", label)
		}
		return fmt.Sprintf("%s: query halted with: %v", label, haltErr.Value())
	}

	errStr := err.Error()

	var hint string
	switch {
	case strings.Contains(errStr, "cannot iterate over: null"):
		hint = " (the field may not exist on a connection summary)"
	case strings.Contains(errStr, "cannot index") && strings.Contains(errStr, "with"):
		hint = " (field not found or wrong type)"
	case strings.Contains(errStr, "cannot be iterated"):
		hint = " (each input is a single connection object, try removing '[]')"
	}

	return fmt.Sprintf("%s: %s%s", label, errStr, hint)
}

// valueKey creates a string key for deduplication.
func valueKey(v any) string {
	switch val := v.(type) {
	case string:
		return "s:" + val
	case float64:
		return fmt.Sprintf("n:%v", val)
	case int:
		return fmt.Sprintf("n:%d", val)
	case bool:
		return fmt.Sprintf("b:%v", val)
	case nil:
		return "null"
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("?:%v", val)
		}
		return "j:" + string(b)
	}
}

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sumatoshi-tech/reexport/pkg/directive"
	"github.com/Sumatoshi-tech/reexport/pkg/expand"
	"github.com/Sumatoshi-tech/reexport/pkg/generate"
	"github.com/Sumatoshi-tech/reexport/pkg/scan"
)

// Tool names.
const (
	ToolNameExpand = "reexport_expand"
	ToolNameScan   = "reexport_scan"
)

// Sentinel errors for tool input validation.
var (
	ErrEmptyInvocation = errors.New("invocation parameter is required and must not be empty")
	ErrEmptyDir        = errors.New("dir parameter is required and must not be empty")
	ErrDirNotAbsolute  = errors.New("dir must be an absolute path")
	ErrDirNotFound     = errors.New("dir does not exist or is not a directory")
	ErrNoLoader        = errors.New("server has no package loader")
)

// ExpandInput is the input schema for reexport_expand.
type ExpandInput struct {
	Invocation string `json:"invocation"     jsonschema:"helper invocation, e.g. expose(models, utils) or bundle(\"routes\")"`
	Dir        string `json:"dir"            jsonschema:"absolute path of the invoking package directory"`
	File       string `json:"file,omitempty" jsonschema:"invoking file name; names the output and is required by extend"`
}

// ScanInput is the input schema for reexport_scan.
type ScanInput struct {
	Dir string `json:"dir" jsonschema:"absolute path of the tree to scan"`
}

// ExpandResult is the payload of reexport_expand.
type ExpandResult struct {
	Output     string   `json:"output"`
	Changed    bool     `json:"changed"`
	Statements int      `json:"statements"`
	Summary    []string `json:"summary"`
	Content    string   `json:"content"`
	Diff       string   `json:"diff,omitempty"`
}

// ScanResult is the payload of reexport_scan.
type ScanResult struct {
	Directives []scan.Directive `json:"directives"`
}

// ToolOutput is a generic wrapper for tool results.
type ToolOutput struct {
	Data any `json:"data"`
}

func (s *Server) handleExpand(ctx context.Context, _ *mcpsdk.CallToolRequest, input ExpandInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if input.Invocation == "" {
		return errorResult(ErrEmptyInvocation)
	}

	err := validateDir(input.Dir)
	if err != nil {
		return errorResult(err)
	}

	if !s.hasLoader {
		return errorResult(ErrNoLoader)
	}

	inv, err := directive.Parse(input.Invocation)
	if err != nil {
		return errorResult(err)
	}

	file := input.File
	if file != "" && !filepath.IsAbs(file) {
		file = filepath.Join(input.Dir, file)
	}

	res, err := s.engine.Run(ctx, generate.Request{
		Dir:         input.Dir,
		File:        file,
		Invocations: []directive.Invocation{inv},
	})
	if err != nil {
		return errorResult(err)
	}

	s.logger.DebugContext(ctx, "expand tool finished", "dir", input.Dir, "statements", res.Statements)

	return jsonResult(ExpandResult{
		Output:     res.Output,
		Changed:    res.Changed,
		Statements: res.Statements,
		Summary:    expand.Summary(res.Expansion),
		Content:    string(res.Content),
		Diff:       res.Diff,
	})
}

func (s *Server) handleScan(ctx context.Context, _ *mcpsdk.CallToolRequest, input ScanInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
	err := validateDir(input.Dir)
	if err != nil {
		return errorResult(err)
	}

	found, err := scan.Dir(ctx, input.Dir, scan.Options{Exclude: s.exclude})
	if err != nil {
		return errorResult(err)
	}

	if found == nil {
		found = []scan.Directive{}
	}

	return jsonResult(ScanResult{Directives: found})
}

func validateDir(dir string) error {
	if dir == "" {
		return ErrEmptyDir
	}

	if !filepath.IsAbs(dir) {
		return fmt.Errorf("%w: %s", ErrDirNotAbsolute, dir)
	}

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrDirNotFound, dir)
	}

	return nil
}

// errorResult builds a CallToolResult with isError set.
func errorResult(err error) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: err.Error()},
		},
		IsError: true,
	}, ToolOutput{}, nil
}

// jsonResult builds a CallToolResult with JSON-encoded content.
func jsonResult(value any) (*mcpsdk.CallToolResult, ToolOutput, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encode result: %w", err))
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: string(data)},
		},
	}, ToolOutput{Data: value}, nil
}

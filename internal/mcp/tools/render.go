package tools

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/usestring/aptrace/internal/render"
	"github.com/usestring/aptrace/pkg/types"
)

// RenderInput is the input for aplog_render.
type RenderInput struct {
	Offset        int64  `json:"offset" jsonschema:"Any offset inside the connection to render"`
	Format        string `json:"format" jsonschema:"Artifact format: str, hex, repr, locate, bounds, literal, replay-naive, replay-diff or pcap"`
	OutputPath    string `json:"output_path,omitempty" jsonschema:"Write the artifact to this file instead of returning it; required for pcap"`
	Package       string `json:"package,omitempty" jsonschema:"Go package name for the literal format (default: capture)"`
	ReadTimeoutMs int    `json:"read_timeout_ms,omitempty" jsonschema:"Receive timeout baked into replay-diff scripts (default: 2000)"`
}

// RenderOutput is the output for aplog_render.
type RenderOutput struct {
	Format     string             `json:"format"`
	Bytes      int                `json:"bytes"`
	Truncated  bool               `json:"truncated,omitempty"`
	OutputPath string             `json:"output_path,omitempty"`
	Resource   *types.ResourceRef `json:"resource,omitempty"`
}

// ToolRender renders the connection holding an offset in one of the
// artifact formats.
func ToolRender(d *Deps) func(ctx context.Context, req *sdkmcp.CallToolRequest, input RenderInput) (*sdkmcp.CallToolResult, RenderOutput, error) {
	return func(ctx context.Context, req *sdkmcp.CallToolRequest, input RenderInput) (*sdkmcp.CallToolResult, RenderOutput, error) {
		f, err := render.ParseFormat(input.Format)
		if err != nil {
			return nil, RenderOutput{}, ErrInvalidInput(err.Error())
		}
		if input.ReadTimeoutMs < 0 {
			return nil, RenderOutput{}, ErrInvalidInput("read_timeout_ms must not be negative")
		}

		opts := render.Options{
			CapturePath: d.Config.CapturePath,
			ReadTimeout: time.Duration(input.ReadTimeoutMs) * time.Millisecond,
			Package:     input.Package,
		}
		if err := opts.Validate(f); err != nil {
			return nil, RenderOutput{}, WrapLogError(err)
		}

		if input.OutputPath != "" {
			n, err := renderToFile(d, input.Offset, f, opts, input.OutputPath)
			if err != nil {
				return nil, RenderOutput{}, WrapLogError(err)
			}
			out := RenderOutput{
				Format:     f.String(),
				Bytes:      n,
				OutputPath: input.OutputPath,
				Resource:   connectionRef(input.Offset),
			}
			return textResult(fmt.Sprintf("wrote %d bytes of %s to %s", n, f, input.OutputPath)), out, nil
		}

		if f.Binary() {
			return nil, RenderOutput{}, ErrInvalidInput(fmt.Sprintf("format %s is binary, set output_path", f))
		}

		buf := &cappedBuffer{limit: d.Config.MaxRenderBytes}
		if err := render.Render(d.Log, input.Offset, f, opts, buf); err != nil {
			return nil, RenderOutput{}, WrapLogError(err)
		}

		var sb strings.Builder
		sb.Write(buf.buf)
		if buf.truncated() {
			fmt.Fprintf(&sb, "\n[truncated: %d of %d bytes shown]\n", len(buf.buf), buf.written)
		}
		return textResult(sb.String()), RenderOutput{
			Format:    f.String(),
			Bytes:     buf.written,
			Truncated: buf.truncated(),
			Resource:  connectionRef(input.Offset),
		}, nil
	}
}

func renderToFile(d *Deps, offset int64, f render.Format, opts render.Options, path string) (int, error) {
	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("creating %s: %w", path, err)
	}

	if err := render.Render(d.Log, offset, f, opts, file); err != nil {
		file.Close()
		os.Remove(path)
		return 0, err
	}
	if err := file.Close(); err != nil {
		return 0, fmt.Errorf("closing %s: %w", path, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return int(info.Size()), nil
}

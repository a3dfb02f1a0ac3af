package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/usestring/aptrace/internal/cache"
	"github.com/usestring/aptrace/internal/config"
	"github.com/usestring/aptrace/internal/render"
	"github.com/usestring/aptrace/pkg/aplog"
)

func newStreamCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stream <log> <offset> <format> [aux] [out]",
		Short: "Render the connection containing an offset",
		Long: `Render the connection containing <offset> in one of the formats:
` + strings.Join(render.FormatNames(), ", ") + `.

[aux] is the original capture for pcap and the package name for literal.
[out] is the output file, standard output when omitted or "-".
Exits with status 5 when the offset falls in no connection.`,
		Args: cobra.RangeArgs(3, 5),
		RunE: runStream,
	}
	cmd.Flags().Duration("read-timeout", render.DefaultReadTimeout, "receive timeout baked into replay-diff scripts")
	cmd.Flags().String("tz", "UTC", "time zone for dump timestamps")
	return cmd
}

func runStream(cmd *cobra.Command, args []string) error {
	offset, err := parseOffset(args[1])
	if err != nil {
		return err
	}
	format, err := render.ParseFormat(args[2])
	if err != nil {
		return err
	}

	readTimeout, _ := cmd.Flags().GetDuration("read-timeout")
	tz, _ := cmd.Flags().GetString("tz")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return fmt.Errorf("loading time zone: %w", err)
	}

	opts := render.Options{
		CapturePath: config.Load().CapturePath,
		ReadTimeout: readTimeout,
		Location:    loc,
	}
	if len(args) > 3 && args[3] != "" {
		if format == render.FormatLiteral {
			opts.Package = args[3]
		} else {
			opts.CapturePath = args[3]
		}
	}
	if err := opts.Validate(format); err != nil {
		return err
	}

	r, err := cache.OpenLog(args[0], config.Load().HeaderCacheMaxItems)
	if err != nil {
		return err
	}
	defer r.Close()

	out := "-"
	if len(args) > 4 {
		out = args[4]
	}
	err = renderTo(r, offset, format, opts, out, cmd.OutOrStdout())
	if errors.Is(err, render.ErrNotFound) {
		return &exitError{code: ExitNotFound, err: err}
	}
	return err
}

// renderTo renders into the file at path, or stdout when path is "-". A
// failed render leaves no file behind.
func renderTo(r *aplog.Reader, offset int64, f render.Format, opts render.Options, path string, stdout io.Writer) error {
	if path == "-" || path == "" {
		return render.Render(r, offset, f, opts, stdout)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output: %w", err)
	}
	err = render.Render(r, offset, f, opts, file)
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
	}
	return err
}

// parseOffset accepts decimal, 0x hex and 0o octal offsets.
func parseOffset(s string) (int64, error) {
	v, err := strconv.ParseInt(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid offset %q: %w", s, err)
	}
	if v < 0 {
		return 0, fmt.Errorf("invalid offset %q: negative", s)
	}
	return v, nil
}

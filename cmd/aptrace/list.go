package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/usestring/aptrace/internal/cache"
	"github.com/usestring/aptrace/internal/catalog"
	"github.com/usestring/aptrace/internal/config"
	"github.com/usestring/aptrace/internal/query"
	"github.com/usestring/aptrace/pkg/types"
)

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list <log>",
		Short: "List connection summaries",
		Long: `List the connections of a capture log as JSON summaries.

--where keeps connections for which a jq expression is truthy. --jq runs an
expression over every matching summary and prints one value per line.`,
		Args: cobra.ExactArgs(1),
		RunE: runList,
	}

	f := cmd.Flags()
	f.String("server", "", "server ip:port")
	f.String("server-ip", "", "server address")
	f.Int("server-port", 0, "server port")
	f.String("client-ip", "", "client address")
	f.Int64("since", 0, "first connection time, unix seconds")
	f.Int64("until", 0, "last connection time, unix seconds")
	f.Int("min-packets", 0, "minimum packet count")
	f.Int("limit", catalog.DefaultListLimit, "page size")
	f.Int("offset", 0, "page start")
	f.String("where", "", "jq filter over summaries")
	f.String("jq", "", "jq expression to extract from matching summaries")
	f.Bool("dedup", false, "drop repeated --jq values")
	f.Bool("summary", false, "print the log summary instead")
	f.Int("workers", catalog.DefaultWorkers, "concurrent connection scans")
	return cmd
}

func runList(cmd *cobra.Command, args []string) error {
	f := cmd.Flags()
	req := &types.ListRequest{}
	req.Server, _ = f.GetString("server")
	req.ServerIP, _ = f.GetString("server-ip")
	req.ServerPort, _ = f.GetInt("server-port")
	req.ClientIP, _ = f.GetString("client-ip")
	req.Since, _ = f.GetInt64("since")
	req.Until, _ = f.GetInt64("until")
	req.MinPackets, _ = f.GetInt("min-packets")
	req.Limit, _ = f.GetInt("limit")
	req.Offset, _ = f.GetInt("offset")
	where, _ := f.GetString("where")
	expr, _ := f.GetString("jq")
	dedup, _ := f.GetBool("dedup")
	summary, _ := f.GetBool("summary")
	workers, _ := f.GetInt("workers")

	engine := query.NewEngine()
	for _, e := range []string{where, expr} {
		if e == "" {
			continue
		}
		if err := engine.ValidateExpression(e); err != nil {
			return err
		}
	}

	r, err := cache.OpenLog(args[0], config.Load().HeaderCacheMaxItems)
	if err != nil {
		return err
	}
	defer r.Close()

	cat, err := catalog.Build(cmd.Context(), r, workers)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	if summary {
		s := cat.Summary(cat.Len())
		s.Path = args[0]
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	}

	matches := cat.Matching(req)
	if where != "" {
		var errs []string
		matches, errs, err = engine.Filter(matches, where)
		if err != nil {
			return err
		}
		warnQueryErrors(cmd, errs)
	}

	if expr != "" {
		res, err := engine.Run(matches, expr, dedup, 0)
		if err != nil {
			return err
		}
		warnQueryErrors(cmd, res.Errors)
		for _, v := range res.Values {
			if err := enc.Encode(v); err != nil {
				return err
			}
		}
		return nil
	}

	enc.SetIndent("", "  ")
	return enc.Encode(catalog.Page(matches, req))
}

func warnQueryErrors(cmd *cobra.Command, errs []string) {
	for _, e := range errs {
		fmt.Fprintln(cmd.ErrOrStderr(), "warning:", e)
	}
}

package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/usestring/aptrace/internal/cache"
	"github.com/usestring/aptrace/internal/config"
	"github.com/usestring/aptrace/internal/search"
	"github.com/usestring/aptrace/pkg/types"
)

func newSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <log> <pattern>",
		Short: "Find a byte pattern in packet payloads",
		Long: `Print "path<TAB>offset<TAB>length" for every occurrence of <pattern> in the
packet payloads of <log>, in log order. The lines are valid input for
"aptrace context".`,
		Args: cobra.ExactArgs(2),
		RunE: runSearch,
	}

	f := cmd.Flags()
	f.Bool("hex", false, "pattern is hex encoded")
	f.BoolP("ignore-case", "i", false, "fold ASCII letters")
	f.String("direction", "", "client or server")
	f.Int("limit", 1000, "maximum matches to print")
	f.Int("offset", 0, "matches to skip")
	f.Int("workers", search.DefaultWorkers, "concurrent connection scans")
	f.Bool("json", false, "print the response as JSON, with context")
	return cmd
}

func runSearch(cmd *cobra.Command, args []string) error {
	f := cmd.Flags()
	req := &types.SearchRequest{Pattern: args[1]}
	req.Hex, _ = f.GetBool("hex")
	req.IgnoreCase, _ = f.GetBool("ignore-case")
	req.Direction, _ = f.GetString("direction")
	req.Limit, _ = f.GetInt("limit")
	req.Offset, _ = f.GetInt("offset")
	workers, _ := f.GetInt("workers")
	if err := search.Validate(req); err != nil {
		return err
	}

	r, err := cache.OpenLog(args[0], config.Load().HeaderCacheMaxItems)
	if err != nil {
		return err
	}
	defer r.Close()

	resp, err := search.New(r, workers).Search(cmd.Context(), req, nil)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON, _ := f.GetBool("json"); asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	for _, m := range resp.Matches {
		if _, err := fmt.Fprintf(out, "%s\t%d\t%d\n", args[0], m.Offset, m.Length); err != nil {
			return err
		}
	}
	return nil
}

package main

import (
	"github.com/spf13/cobra"

	"github.com/usestring/aptrace/internal/resolve"
)

func newContextCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "context",
		Short: "Answer context queries read from standard input",
		Long: `Read "path<TAB>offset<TAB>length" lines from standard input and answer
each with "path<TAB>offset<TAB>context", where context is the escaped
payload text around the match. Unanswerable queries get an empty context.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b := resolve.NewBatch()
			defer b.Close()
			return b.Serve(cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

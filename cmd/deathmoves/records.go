package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/lox/deathmoves/cmd/deathmoves/shared"
	"github.com/lox/deathmoves/internal/record"
)

// RecordsCmd prints the most recent results from the record store
type RecordsCmd struct {
	Limit int `short:"n" default:"20" help:"Number of records to show"`
}

func (c *RecordsCmd) Run(cli *CLI) error {
	cfg, err := shared.LoadConfig(cli.Config)
	if err != nil {
		return err
	}

	store, err := record.Open(cfg.Records.Path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	recs, err := store.List(context.Background(), c.Limit)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		fmt.Println("No records yet.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "WHEN\tSPEAKER\tBRANCH\tOUTCOME\tTITLE")
	for _, r := range recs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			r.CreatedAt.Local().Format("2006-01-02 15:04"), r.Speaker, r.Branch, r.Outcome, r.Title)
	}
	return w.Flush()
}

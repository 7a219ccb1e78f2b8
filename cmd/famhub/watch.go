package main

import (
	"fmt"
	"io"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dukerupert/famhub/internal/client"
	"github.com/dukerupert/famhub/internal/model"
)

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().String("server", "http://localhost:8080", "famhub server URL")
	watchCmd.Flags().String("token", "", "bearer token (see famhub token)")
	watchCmd.Flags().String("table", "chores", "collection to watch: chores, groceries or notes")
	watchCmd.MarkFlagRequired("token")
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print a live collection every time it changes",
	Args:  cobra.NoArgs,
	RunE:  runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	serverURL, _ := cmd.Flags().GetString("server")
	token, _ := cmd.Flags().GetString("token")
	table, _ := cmd.Flags().GetString("table")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := client.New(serverURL, token, nil)
	out := &printer{w: cmd.OutOrStdout()}

	var closeFeed func()
	var err error
	switch table {
	case "chores":
		var f *client.Feed[model.Chore]
		if f, err = c.ChoreFeed(ctx, out.chores); err == nil {
			closeFeed = f.Close
		}
	case "groceries":
		var f *client.Feed[model.Grocery]
		if f, err = c.GroceryFeed(ctx, out.groceries); err == nil {
			closeFeed = f.Close
		}
	case "notes":
		var f *client.Feed[model.Note]
		if f, err = c.NoteFeed(ctx, out.notes); err == nil {
			closeFeed = f.Close
		}
	default:
		return fmt.Errorf("unknown table %q", table)
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	defer closeFeed()

	<-ctx.Done()
	return nil
}

// printer writes each snapshot as a plain list. Snapshots can arrive from
// the feed goroutine and from local writes, so output is serialized.
type printer struct {
	mu sync.Mutex
	w  io.Writer
}

func (p *printer) header(n int, what string) {
	fmt.Fprintf(p.w, "--- %d %s\n", n, what)
}

func (p *printer) chores(items []model.Chore) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.header(len(items), "chores")
	for _, c := range items {
		mark := " "
		if c.IsCompleted {
			mark = "x"
		}
		owner := "anyone"
		if c.AssignedTo != nil {
			owner = *c.AssignedTo
		}
		fmt.Fprintf(p.w, "[%s] %-32s %3d pts  %s\n", mark, c.Title, c.Points, owner)
	}
}

func (p *printer) groceries(items []model.Grocery) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.header(len(items), "groceries")
	names, groups := client.GroupByCategory(items)
	for _, name := range names {
		fmt.Fprintf(p.w, "%s\n", name)
		for _, g := range groups[name] {
			mark := " "
			if g.IsPurchased {
				mark = "x"
			}
			fmt.Fprintf(p.w, "  [%s] %s %s\n", mark, g.ItemName, g.Quantity)
		}
	}
}

func (p *printer) notes(items []model.Note) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.header(len(items), "notes")
	for _, n := range items {
		fmt.Fprintf(p.w, "(%s) %s\n", n.Color, n.Content)
	}
}

// Command inspect prints the persisted chat snapshot as tables.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gookit/color"
	"github.com/kelseyhightower/envconfig"
	"github.com/olekukonko/tablewriter"

	"github.com/devaloi/chatrelay/internal/codec"
	"github.com/devaloi/chatrelay/internal/store"
)

type Config struct {
	Backend string `envconfig:"STORE_BACKEND" default:"file"`
	Path    string `envconfig:"DATA_PATH" default:"data/history.json"`
	Codec   string `envconfig:"SNAPSHOT_CODEC" default:"json"`
	// INSPECT_COLOURS toggles coloured section headers
	Colours bool `envconfig:"INSPECT_COLOURS" default:"true"`
}

func main() {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	flag.StringVar(&cfg.Backend, "backend", cfg.Backend, "store backend: file, sqlite, badger")
	flag.StringVar(&cfg.Path, "path", cfg.Path, "snapshot path")
	flag.StringVar(&cfg.Codec, "codec", cfg.Codec, "snapshot codec: json, proto")
	key := flag.String("key", "", "print the messages of one conversation")
	flag.Parse()

	if err := run(os.Stdout, cfg, *key); err != nil {
		fmt.Fprintf(os.Stderr, "inspect: %v\n", err)
		os.Exit(1)
	}
}

func run(w io.Writer, cfg Config, key string) error {
	c, err := codec.ByName(cfg.Codec)
	if err != nil {
		return err
	}
	st, err := store.Open(cfg.Backend, cfg.Path, c)
	if err != nil {
		return err
	}
	defer st.Close()

	snap, err := st.Load(context.Background())
	if err != nil {
		return err
	}
	if key != "" {
		return renderConversation(w, snap, key, cfg.Colours)
	}
	renderSummary(w, snap, cfg.Colours)
	return nil
}

func heading(w io.Writer, title string, colours bool) {
	if colours {
		title = color.New(color.FgCyan, color.OpBold).Render(title)
	}
	fmt.Fprintln(w, title)
}

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	return table
}

func renderSummary(w io.Writer, snap codec.Snapshot, colours bool) {
	heading(w, "== Conversations ==", colours)
	table := newTable(w, []string{"Key", "Kind", "Messages", "First", "Last"})
	for _, key := range sortedKeys(snap.History) {
		records := snap.History[key]
		kind := "direct"
		if _, ok := snap.Groups[key]; ok {
			kind = "group"
		}
		first, last := "-", "-"
		if n := len(records); n > 0 {
			first = records[0].Timestamp.Format(time.RFC3339)
			last = records[n-1].Timestamp.Format(time.RFC3339)
		}
		table.Append([]string{key, kind, strconv.Itoa(len(records)), first, last})
	}
	table.Render()

	heading(w, "\n== Groups ==", colours)
	table = newTable(w, []string{"Group", "Members"})
	for _, name := range sortedKeys(snap.Groups) {
		table.Append([]string{name, strings.Join(snap.Groups[name], ", ")})
	}
	table.Render()
}

func renderConversation(w io.Writer, snap codec.Snapshot, key string, colours bool) error {
	records, ok := snap.History[key]
	if !ok {
		return fmt.Errorf("no conversation %q", key)
	}
	heading(w, "== "+key+" ==", colours)
	table := newTable(w, []string{"Time", "From", "To", "Type", "Message"})
	for _, r := range records {
		kind := r.Type
		if kind == "" {
			kind = "text"
		}
		body := r.Message
		if r.Mime != "" {
			body += " (" + r.Mime + ")"
		}
		table.Append([]string{r.Timestamp.Format(time.RFC3339), r.From, r.To, kind, body})
	}
	table.Render()
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/c50bossio/6fb-methodologies-sub002/internal/inventory"
)

// Format selects the output encoding of Render.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat validates a --format value.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatText, FormatJSON:
		return Format(s), nil
	}
	return "", fmt.Errorf("invalid format %q: must be 'text' or 'json'", s)
}

// Render writes v to w. JSON output is indented. Text output knows how to
// lay out the inventory views as tables; anything else is printed with
// fmt.
func Render(w io.Writer, f Format, v any) error {
	if f == FormatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}

	switch x := v.(type) {
	case Overview:
		return writeOverview(w, x)
	case *Overview:
		return writeOverview(w, *x)
	case inventory.Snapshot:
		return writeSnapshots(w, []inventory.Snapshot{x}, nil)
	case *inventory.Snapshot:
		return writeSnapshots(w, []inventory.Snapshot{*x}, nil)
	case []inventory.Transaction:
		return writeTransactions(w, x)
	case []inventory.Expansion:
		return writeExpansions(w, x)
	case []EventSummary:
		return writeEvents(w, x)
	default:
		_, err := fmt.Fprintln(w, v)
		return err
	}
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func tierStatus(s inventory.Snapshot, t inventory.Tier) string {
	switch {
	case s.ActualAvailable.Get(t) == 0:
		return "sold out"
	case s.PublicAvailable.Get(t) == 0:
		return "public sold out"
	default:
		return "open"
	}
}

func writeSnapshots(w io.Writer, snaps []inventory.Snapshot, totals *Totals) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "EVENT\tTIER\tPUBLIC\tACTUAL\tSOLD\tPUBLIC AVAIL\tACTUAL AVAIL\tSTATUS")
	for _, s := range snaps {
		for _, t := range inventory.Tiers {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%s\n",
				s.EventID, t,
				s.PublicLimit.Get(t), s.ActualLimit.Get(t), s.Sold.Get(t),
				s.PublicAvailable.Get(t), s.ActualAvailable.Get(t),
				tierStatus(s, t))
		}
	}
	if totals != nil {
		for _, t := range inventory.Tiers {
			fmt.Fprintf(tw, "TOTAL\t%s\t%d\t%d\t%d\t%d\t%d\t-\n",
				t,
				totals.PublicLimit.Get(t), totals.ActualLimit.Get(t), totals.Sold.Get(t),
				totals.PublicAvailable.Get(t), totals.ActualAvailable.Get(t))
		}
	}
	return tw.Flush()
}

func writeOverview(w io.Writer, o Overview) error {
	if err := writeSnapshots(w, o.Events, &o.Totals); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n%d of %d events sold out, %d publicly sold out\n",
		o.SoldOut, len(o.Events), o.PublicSoldOut)
	return err
}

func writeTransactions(w io.Writer, txs []inventory.Transaction) error {
	if len(txs) == 0 {
		_, err := fmt.Fprintln(w, "No transactions")
		return err
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "SEQ\tID\tTIER\tOPERATION\tQTY\tTIMESTAMP\tMETADATA")
	for _, tx := range txs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%s\t%s\n",
			tx.Seq, tx.ID, tx.Tier, tx.Operation, tx.Quantity,
			tx.Timestamp.UTC().Format(time.RFC3339), formatMetadata(tx.Metadata))
	}
	return tw.Flush()
}

func writeExpansions(w io.Writer, exps []inventory.Expansion) error {
	if len(exps) == 0 {
		_, err := fmt.Fprintln(w, "No expansions")
		return err
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "SEQ\tTIER\tSPOTS\tAUTHORIZED BY\tTIMESTAMP\tREASON")
	for _, e := range exps {
		reason := e.Reason
		if reason == "" {
			reason = "-"
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\t%s\n",
			e.Seq, e.Tier, e.AdditionalSpots, e.AuthorizedBy,
			e.Timestamp.UTC().Format(time.RFC3339), reason)
	}
	return tw.Flush()
}

func writeEvents(w io.Writer, events []EventSummary) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "EVENT\tNAME\tGA\tVIP")
	for _, e := range events {
		name := e.Name
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.ID, name,
			limitPair(e.Public.GA, e.Actual.GA), limitPair(e.Public.VIP, e.Actual.VIP))
	}
	return tw.Flush()
}

// limitPair shows the public limit, followed by the actual limit when an
// expansion has raised it.
func limitPair(public, actual int) string {
	if actual == public {
		return fmt.Sprintf("%d", public)
	}
	return fmt.Sprintf("%d (+%d)", public, actual-public)
}

// formatMetadata renders metadata as sorted key=value pairs.
func formatMetadata(md inventory.Metadata) string {
	if len(md) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(md))
	for k := range md {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+md[k])
	}
	return strings.Join(parts, " ")
}

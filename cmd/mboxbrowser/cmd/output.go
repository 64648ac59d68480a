package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/wesm/mboxbrowser/internal/session"
	"github.com/wesm/mboxbrowser/internal/textutil"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeEntryTable prints entries as an aligned table.
func writeEntryTable(w io.Writer, entries []session.EmailEntry) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "INDEX\tDATE\tFROM\tSUBJECT\tATT\tLABELS")
	fmt.Fprintln(tw, "─────\t────\t────\t───────\t───\t──────")

	for _, e := range entries {
		from := e.FromAddress
		if e.FromName != "" {
			from = e.FromName
		}
		att := ""
		if e.HasAttachments {
			att = "yes"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			e.Index,
			shortDate(e.Date),
			textutil.FitWidth(textutil.SingleLine(from), 30),
			textutil.FitWidth(textutil.SingleLine(e.Subject), 50),
			att,
			textutil.FitWidth(strings.Join(e.Labels, ","), 30),
		)
	}
	return tw.Flush()
}

// shortDate trims an RFC 3339 timestamp to its date.
func shortDate(rfc3339 string) string {
	if len(rfc3339) < 10 {
		return rfc3339
	}
	return rfc3339[:10]
}

func formatAddress(a session.EmailAddress) string {
	if a.Name != "" {
		return fmt.Sprintf("%s <%s>", a.Name, a.Address)
	}
	return a.Address
}

func formatAddresses(addrs []session.EmailAddress) string {
	parts := make([]string, len(addrs))
	for i, a := range addrs {
		parts[i] = formatAddress(a)
	}
	return strings.Join(parts, ", ")
}

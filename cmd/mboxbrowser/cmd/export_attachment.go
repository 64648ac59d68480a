package cmd

import (
	"encoding/base64"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/wesm/mboxbrowser/internal/export"
)

var (
	exportAttachmentOutput string
	exportAttachmentJSON   bool
	exportAttachmentBase64 bool
	exportAttachmentZip    string
)

var exportAttachmentCmd = &cobra.Command{
	Use:   "export-attachment <mbox-file> <index> [attachment]",
	Short: "Export attachments of a message",
	Long: `Export one attachment of a message, or all of its attachments as a zip.

The attachment number is the [n] shown by 'show'.

Examples:
  mboxbrowser export-attachment archive.mbox 12 0 -o invoice.pdf
  mboxbrowser export-attachment archive.mbox 12 0 > invoice.pdf     # stdout (binary)
  mboxbrowser export-attachment archive.mbox 12 0 --base64          # stdout (base64)
  mboxbrowser export-attachment archive.mbox 12 0 --json            # JSON with base64 data
  mboxbrowser export-attachment archive.mbox 12 --zip attachments.zip`,
	Args: cobra.RangeArgs(2, 3),
	RunE: runExportAttachment,
}

func runExportAttachment(cmd *cobra.Command, args []string) error {
	seq, err := parseIndex(args[1])
	if err != nil {
		return err
	}

	// Validate flag combinations
	if exportAttachmentJSON && exportAttachmentBase64 {
		return fmt.Errorf("--json and --base64 are mutually exclusive")
	}
	if exportAttachmentOutput != "" && exportAttachmentOutput != "-" {
		if exportAttachmentJSON {
			return fmt.Errorf("--json and --output are mutually exclusive (--json writes to stdout)")
		}
		if exportAttachmentBase64 {
			return fmt.Errorf("--base64 and --output are mutually exclusive (--base64 writes to stdout)")
		}
	}
	if exportAttachmentZip != "" && len(args) == 3 {
		return fmt.Errorf("--zip exports every attachment; omit the attachment number")
	}
	if exportAttachmentZip == "" && len(args) < 3 {
		return fmt.Errorf("specify an attachment number or --zip")
	}

	sess, _, err := openMailbox(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	defer sess.Close()

	if exportAttachmentZip != "" {
		stats := export.Zip(exportAttachmentZip, sess, []int{seq})
		fmt.Fprintln(cmd.OutOrStdout(), export.FormatExportResult(stats))
		if stats.Count == 0 || stats.WriteError {
			return fmt.Errorf("no attachments exported")
		}
		return nil
	}

	idx, err := parseIndex(args[2])
	if err != nil {
		return err
	}
	body, err := sess.GetEmailBody(seq)
	if err != nil {
		return err
	}
	data, err := sess.GetAttachment(seq, idx)
	if err != nil {
		return err
	}
	meta := body.Attachments[idx]

	out := cmd.OutOrStdout()
	switch {
	case exportAttachmentJSON:
		return writeJSON(out, map[string]any{
			"filename":     meta.Filename,
			"content_type": meta.ContentType,
			"size":         len(data),
			"data_base64":  base64.StdEncoding.EncodeToString(data),
		})
	case exportAttachmentBase64:
		fmt.Fprintln(out, base64.StdEncoding.EncodeToString(data))
		return nil
	case exportAttachmentOutput == "" || exportAttachmentOutput == "-":
		_, err := out.Write(data)
		return err
	}

	if err := export.WriteFile(exportAttachmentOutput, data); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Exported attachment to: %s (%d bytes)\n", exportAttachmentOutput, len(data))
	return nil
}

func init() {
	rootCmd.AddCommand(exportAttachmentCmd)
	exportAttachmentCmd.Flags().StringVarP(&exportAttachmentOutput, "output", "o", "", "Output file path (default: stdout, use - for stdout)")
	exportAttachmentCmd.Flags().BoolVar(&exportAttachmentJSON, "json", false, "Output as JSON with base64-encoded data")
	exportAttachmentCmd.Flags().BoolVar(&exportAttachmentBase64, "base64", false, "Output raw base64 to stdout")
	exportAttachmentCmd.Flags().StringVar(&exportAttachmentZip, "zip", "", "Write all attachments of the message to this zip file")
}

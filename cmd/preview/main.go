// Command preview derives the reminder schedule of a prescription file
// offline, applies review edits and prints the events or an .ics export.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/WailSalutem-Health-Care/reminder-service/internal/prescription"
	"github.com/WailSalutem-Health-Care/reminder-service/internal/schedule"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "preview <prescription.json|yaml|->",
		Short: "Preview medication reminders for a prescription",
		Args:  cobra.ExactArgs(1),
		RunE:  runPreview,
	}
	rootCmd.Flags().String("tz", "Asia/Kolkata", "IANA time zone for the reminders")
	rootCmd.Flags().StringArray("add", nil, "add a dose time, e.g. Amoxicillin=21:00")
	rootCmd.Flags().StringArray("remove", nil, "remove a dose time, e.g. 0=08:00")
	rootCmd.Flags().StringArray("change", nil, "move a dose time, e.g. Amoxicillin=08:00>09:00")
	rootCmd.Flags().String("ics", "", "write an iCalendar export to this path")
	rootCmd.Flags().String("format", "yaml", "output format for the events: yaml or json")
	return rootCmd
}

func runPreview(cmd *cobra.Command, args []string) error {
	tz, _ := cmd.Flags().GetString("tz")
	adds, _ := cmd.Flags().GetStringArray("add")
	removes, _ := cmd.Flags().GetStringArray("remove")
	changes, _ := cmd.Flags().GetStringArray("change")
	icsPath, _ := cmd.Flags().GetString("ics")
	format, _ := cmd.Flags().GetString("format")

	rx, err := readPrescription(args[0], cmd.InOrStdin())
	if err != nil {
		return err
	}

	review := schedule.NewReview(rx)
	if err := applyEdits(review, adds, removes, changes); err != nil {
		return err
	}
	confirmed, err := review.Confirm()
	if err != nil {
		return err
	}

	builder, err := schedule.NewBuilder(schedule.Options{TimeZone: tz})
	if err != nil {
		return err
	}
	preview, err := builder.Preview(confirmed)
	if err != nil {
		return err
	}
	events := builder.Build(confirmed)

	out := struct {
		Preview schedule.Preview         `json:"preview" yaml:"preview"`
		Events  []schedule.CalendarEvent `json:"events" yaml:"events"`
	}{preview, events}

	w := cmd.OutOrStdout()
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return err
		}
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(out); err != nil {
			return err
		}
		if err := enc.Close(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown format %q", format)
	}

	if icsPath != "" {
		doc, err := schedule.ExportICS(events, time.Now())
		if err != nil {
			return err
		}
		if err := os.WriteFile(icsPath, []byte(doc), 0o644); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d reminders to %s\n", len(events), icsPath)
	}
	return nil
}

// readPrescription decodes a JSON or YAML prescription; "-" reads stdin.
func readPrescription(path string, stdin io.Reader) (prescription.ParsedPrescription, error) {
	var (
		raw []byte
		err error
	)
	if path == "-" {
		raw, err = io.ReadAll(stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return prescription.ParsedPrescription{}, err
	}

	var rx prescription.ParsedPrescription
	// JSON documents are valid YAML.
	if err := yaml.Unmarshal(raw, &rx); err != nil {
		return prescription.ParsedPrescription{}, fmt.Errorf("decode prescription: %w", err)
	}
	return rx, nil
}

func applyEdits(review *schedule.Review, adds, removes, changes []string) error {
	for _, e := range adds {
		idx, at, err := splitEdit(review, e)
		if err != nil {
			return err
		}
		if err := review.AddTime(idx, at); err != nil {
			return fmt.Errorf("add %q: %w", e, err)
		}
	}
	for _, e := range removes {
		idx, at, err := splitEdit(review, e)
		if err != nil {
			return err
		}
		if err := review.RemoveTime(idx, at); err != nil {
			return fmt.Errorf("remove %q: %w", e, err)
		}
	}
	for _, e := range changes {
		idx, move, err := splitEdit(review, e)
		if err != nil {
			return err
		}
		from, to, ok := strings.Cut(move, ">")
		if !ok {
			return fmt.Errorf("change %q: expected FROM>TO", e)
		}
		if err := review.ChangeTime(idx, from, to); err != nil {
			return fmt.Errorf("change %q: %w", e, err)
		}
	}
	return nil
}

// splitEdit parses "medicine=value" where medicine is a name or an index.
func splitEdit(review *schedule.Review, edit string) (int, string, error) {
	i := strings.LastIndex(edit, "=")
	if i <= 0 {
		return 0, "", fmt.Errorf("edit %q: expected MEDICINE=TIME", edit)
	}
	idx, err := review.Lookup(edit[:i])
	if err != nil {
		return 0, "", fmt.Errorf("edit %q: %w", edit, err)
	}
	return idx, strings.TrimSpace(edit[i+1:]), nil
}

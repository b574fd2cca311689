package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ehr/console/internal/domain/billingstatus"
	"github.com/ehr/console/internal/platform/export"
	"github.com/ehr/console/pkg/consolemodels"
)

type classifyOptions struct {
	Format   string
	Date     string
	Timezone string
}

// classifiedRow is one patient as the console would list it.
type classifiedRow struct {
	ID                    string              `json:"id"`
	Name                  string              `json:"name"`
	UHID                  string              `json:"uhId,omitempty"`
	Status                billingstatus.Label `json:"status"`
	StatusColor           string              `json:"statusColor"`
	SuperconsultantStatus billingstatus.Label `json:"superconsultantStatus"`
	Outstanding           float64             `json:"outstanding"`
	SuperconsultantDue    float64             `json:"superconsultantDue"`
	Appointment           string              `json:"appointment"`
	Reassigned            bool                `json:"reassigned"`
}

func classifyCmd() *cobra.Command {
	opts := classifyOptions{}
	var file string
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Derive billing statuses for an exported patient list",
		Long: "Reads a JSON patient list (an array, or an object with a \"patients\" or \"data\" array)\n" +
			"and prints each patient's billing status and relevant appointment date.",
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			if file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			return runClassify(cmd.OutOrStdout(), in, opts)
		},
	}
	tz := os.Getenv("TIMEZONE")
	if tz == "" {
		tz = "Asia/Kolkata"
	}
	cmd.Flags().StringVar(&file, "file", "", `Patient list JSON ("-" for stdin)`)
	cmd.Flags().StringVar(&opts.Format, "format", "table", "Output format: table, csv or json")
	cmd.Flags().StringVar(&opts.Date, "date", "", "Only patients whose relevant date falls on this day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.Timezone, "timezone", tz, "Time zone for zone-less dates")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func runClassify(w io.Writer, r io.Reader, opts classifyOptions) error {
	loc, err := time.LoadLocation(opts.Timezone)
	if err != nil {
		return fmt.Errorf("timezone %q: %w", opts.Timezone, err)
	}
	patients, err := decodePatients(r)
	if err != nil {
		return err
	}

	resolver := billingstatus.NewResolver(loc)
	entries := make([]billingstatus.Entry, 0, len(patients))
	var day time.Time
	if opts.Date != "" {
		if day, err = export.ParseDay(opts.Date, loc); err != nil {
			return fmt.Errorf("invalid --date: %w", err)
		}
	}
	for i := range patients {
		tl := resolver.Timeline(&patients[i])
		if !day.IsZero() && !tl.OnDay(day) {
			continue
		}
		entries = append(entries, billingstatus.Entry{Patient: &patients[i], Timeline: tl})
	}
	billingstatus.SortEntries(entries)

	rows := make([]classifiedRow, 0, len(entries))
	for _, en := range entries {
		p := en.Patient
		sum := billingstatus.Summarize(p.Billing)
		rows = append(rows, classifiedRow{
			ID:                    p.ID,
			Name:                  p.Name,
			UHID:                  p.UHID,
			Status:                sum.Status,
			StatusColor:           sum.Status.ColorKey(),
			SuperconsultantStatus: sum.SuperconsultantStatus,
			Outstanding:           sum.Outstanding.Total(),
			SuperconsultantDue:    sum.SuperconsultantDue,
			Appointment:           en.Timeline.Display(),
			Reassigned:            p.Reassigned(),
		})
	}

	switch strings.ToLower(opts.Format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	case "csv":
		return export.WriteCSV(w, classifiedTable(rows))
	case "table", "":
		t := classifiedTable(rows)
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, strings.Join(t.Header, "\t"))
		for _, row := range t.Rows {
			fmt.Fprintln(tw, strings.Join(row, "\t"))
		}
		return tw.Flush()
	}
	return fmt.Errorf("unknown format %q: want table, csv or json", opts.Format)
}

func classifiedTable(rows []classifiedRow) *export.Table {
	t := &export.Table{Header: []string{
		"id", "name", "uhid", "status", "superconsultant_status",
		"outstanding", "superconsultant_due", "appointment", "reassigned",
	}}
	for _, r := range rows {
		reassigned := "no"
		if r.Reassigned {
			reassigned = "yes"
		}
		t.Append(r.ID, r.Name, r.UHID, string(r.Status), string(r.SuperconsultantStatus),
			export.Money(r.Outstanding), export.Money(r.SuperconsultantDue), r.Appointment, reassigned)
	}
	return t
}

// decodePatients accepts a bare array or an API envelope.
func decodePatients(r io.Reader) ([]consolemodels.Patient, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read patients: %w", err)
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, fmt.Errorf("patient list is empty")
	}
	if raw[0] == '[' {
		var patients []consolemodels.Patient
		if err := json.Unmarshal(raw, &patients); err != nil {
			return nil, fmt.Errorf("decode patients: %w", err)
		}
		return patients, nil
	}
	var env struct {
		Patients []consolemodels.Patient `json:"patients"`
		Data     []consolemodels.Patient `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode patients: %w", err)
	}
	if env.Patients != nil {
		return env.Patients, nil
	}
	return env.Data, nil
}

package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/ehr/console/internal/config"
	"github.com/ehr/console/internal/domain/billingstatus"
	"github.com/ehr/console/internal/platform/db"
)

const patientsFixture = `[
	{
		"id": "p1", "name": "Ravi Kumar", "uhId": "UH-1",
		"appointments": [{"scheduledAt": "2024-06-10T10:00:00+05:30"}],
		"billing": [{"type": "consultation", "amount": 850, "paidAmount": 0}]
	},
	{
		"id": "p2", "name": "Meena Iyer",
		"appointmentTime": "2024-06-09T09:00:00+05:30",
		"billing": [{"type": "consultation", "amount": 850, "paidAmount": 850}]
	},
	{
		"id": "p3", "name": "Arjun Das",
		"assignedAt": "2024-06-10T08:00:00+05:30"
	}
]`

func classifyJSON(t *testing.T, input string, opts classifyOptions) []classifiedRow {
	t.Helper()
	opts.Format = "json"
	if opts.Timezone == "" {
		opts.Timezone = "Asia/Kolkata"
	}
	var out bytes.Buffer
	if err := runClassify(&out, strings.NewReader(input), opts); err != nil {
		t.Fatalf("runClassify: %v", err)
	}
	var rows []classifiedRow
	if err := json.Unmarshal(out.Bytes(), &rows); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	return rows
}

func TestRunClassify_JSON(t *testing.T) {
	rows := classifyJSON(t, patientsFixture, classifyOptions{})
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	order := rows[0].ID + "," + rows[1].ID + "," + rows[2].ID
	if order != "p2,p1,p3" {
		t.Errorf("expected appointments first, earliest first; got %s", order)
	}
	want := map[string]billingstatus.Label{
		"p1": billingstatus.LabelConsultationFeePending,
		"p2": billingstatus.LabelAllPaid,
		"p3": billingstatus.LabelConsultationFeeRequired,
	}
	for _, r := range rows {
		if r.Status != want[r.ID] {
			t.Errorf("%s: expected %q, got %q", r.ID, want[r.ID], r.Status)
		}
	}
	if rows[1].Outstanding != 850 || rows[1].StatusColor != "orange" {
		t.Errorf("unexpected p1 row %+v", rows[1])
	}
	if !strings.HasSuffix(rows[2].Appointment, "(Assigned)") {
		t.Errorf("expected assignment fallback display, got %q", rows[2].Appointment)
	}
}

func TestRunClassify_DateFilter(t *testing.T) {
	rows := classifyJSON(t, patientsFixture, classifyOptions{Date: "2024-06-10"})
	if len(rows) != 2 || rows[0].ID != "p1" || rows[1].ID != "p3" {
		t.Errorf("expected p1 and p3 on 10 June, got %+v", rows)
	}
}

func TestRunClassify_Envelope(t *testing.T) {
	rows := classifyJSON(t, `{"patients": `+patientsFixture+`}`, classifyOptions{})
	if len(rows) != 3 {
		t.Errorf("expected 3 rows from envelope, got %d", len(rows))
	}
	rows = classifyJSON(t, `{"data": [{"id": "x"}]}`, classifyOptions{})
	if len(rows) != 1 || rows[0].ID != "x" {
		t.Errorf("expected data envelope to decode, got %+v", rows)
	}
}

func TestRunClassify_CSVAndTable(t *testing.T) {
	var csvOut bytes.Buffer
	if err := runClassify(&csvOut, strings.NewReader(patientsFixture), classifyOptions{Format: "csv", Timezone: "UTC"}); err != nil {
		t.Fatalf("csv: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(csvOut.String()), "\n")
	if len(lines) != 4 || !strings.HasPrefix(lines[0], "id,name,uhid,status") {
		t.Errorf("unexpected csv output:\n%s", csvOut.String())
	}

	var tableOut bytes.Buffer
	if err := runClassify(&tableOut, strings.NewReader(patientsFixture), classifyOptions{Format: "table", Timezone: "UTC"}); err != nil {
		t.Fatalf("table: %v", err)
	}
	if !strings.Contains(tableOut.String(), "Consultation Fee Pending") {
		t.Errorf("expected label in table output:\n%s", tableOut.String())
	}
}

func TestRunClassify_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		opts  classifyOptions
	}{
		{"unknown format", patientsFixture, classifyOptions{Format: "xml", Timezone: "UTC"}},
		{"bad timezone", patientsFixture, classifyOptions{Format: "json", Timezone: "Mars/Olympus"}},
		{"bad date", patientsFixture, classifyOptions{Format: "json", Timezone: "UTC", Date: "10/06/2024"}},
		{"empty input", "  ", classifyOptions{Format: "json", Timezone: "UTC"}},
		{"not json", "patients", classifyOptions{Format: "json", Timezone: "UTC"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := runClassify(&bytes.Buffer{}, strings.NewReader(tt.input), tt.opts); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestPrintStatuses(t *testing.T) {
	at := time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)
	var out bytes.Buffer
	printStatuses(&out, []db.MigrationStatus{
		{Version: 1, Name: "console", Applied: true, AppliedAt: &at},
		{Version: 2, Name: "indexes"},
	})
	s := out.String()
	if !strings.Contains(s, "applied") || !strings.Contains(s, "2024-06-01 09:30:00") || !strings.Contains(s, "pending") {
		t.Errorf("unexpected status output:\n%s", s)
	}
}

func TestAuthMiddleware_Selection(t *testing.T) {
	if authMiddleware(&config.Config{Env: "development"}) == nil {
		t.Error("expected development middleware")
	}
	if authMiddleware(&config.Config{Env: "production", AuthSigningKey: "k"}) == nil {
		t.Error("expected token middleware")
	}
}

func TestCommands(t *testing.T) {
	for _, name := range []string{"serve", "migrate", "classify"} {
		var found bool
		for _, c := range []string{serveCmd().Name(), migrateCmd().Name(), classifyCmd().Name()} {
			if c == name {
				found = true
			}
		}
		if !found {
			t.Errorf("missing %s command", name)
		}
	}
	if f := classifyCmd().Flags().Lookup("format"); f == nil || f.DefValue != "table" {
		t.Error("expected --format to default to table")
	}
}

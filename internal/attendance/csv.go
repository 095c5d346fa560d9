package attendance

import (
	"encoding/csv"
	"io"
	"time"
)

// ExportRow is one line of the attendance report.
type ExportRow struct {
	Name        string
	InternID    string
	Date        string
	SignInTime  string
	SignOutTime string
	Status      string
}

// WriteCSV writes the report with a header row. encoding/csv quotes
// embedded commas and quotes, so free-form names cannot break the format.
func WriteCSV(w io.Writer, rows []ExportRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Name", "InternID", "Date", "SignInTime", "SignOutTime", "Status"}); err != nil {
		return err
	}
	for _, row := range rows {
		if err := cw.Write([]string{row.Name, row.InternID, row.Date, row.SignInTime, row.SignOutTime, row.Status}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// FormatClock renders a timestamp as a 12-hour wall-clock time in loc,
// or "N/A" when the timestamp is absent.
func FormatClock(t *time.Time, loc *time.Location) string {
	if t == nil {
		return "N/A"
	}
	return t.In(loc).Format("03:04 PM")
}

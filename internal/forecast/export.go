package forecast

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

// WriteJSON streams the response as indented JSON.
func WriteJSON(w io.Writer, resp *Response) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

// WriteCSV streams the hourly points as CSV, one row per point.
func WriteCSV(w io.Writer, resp *Response) error {
	cw := csv.NewWriter(w)
	header := []string{"time", "probability", "amount_mm", "confidence_low_mm", "confidence_high_mm"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, p := range resp.Points {
		row := []string{
			p.Time.UTC().Format("2006-01-02T15:04:05Z"),
			strconv.FormatFloat(p.PrecipitationProbability, 'f', 3, 64),
			strconv.FormatFloat(p.PrecipitationAmountMM, 'f', 3, 64),
			strconv.FormatFloat(p.ConfidenceLowMM, 'f', 3, 64),
			strconv.FormatFloat(p.ConfidenceHighMM, 'f', 3, 64),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

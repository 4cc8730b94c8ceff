package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/Zyldzkie/gas-guard/internal/model"
)

var header = []string{"id", "user_email", "mobile_number", "level", "ppm", "datetime", "color"}

func recordRow(rec model.AlertRecord) []string {
	return []string{
		rec.ID,
		rec.UserEmail,
		rec.MobileNumber,
		string(rec.Level),
		strconv.FormatFloat(rec.PPM, 'f', -1, 64),
		rec.Datetime.UTC().Format(time.RFC3339Nano),
		rec.Color,
	}
}

// WriteCSV streams alert records as a tabular file, one row per record,
// in the order given (the store returns newest first).
func WriteCSV(w io.Writer, records []model.AlertRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, rec := range records {
		if err := cw.Write(recordRow(rec)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

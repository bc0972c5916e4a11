package board

import (
	"strconv"
	"strings"

	"container-request-board/internal/model"
)

var exportHeader = []string{
	"Serial No", "Part No", "Revision", "Quantity", "Location",
	"Deliver To", "Request Type", "Request Time", "Fulfilled Time",
	"Duration (min)", "Fulfillment Type", "Current Location",
}

// ExportCSV renders history records as CSV, one line per record plus a
// header. Every field is quoted so serial numbers with leading zeros
// survive a spreadsheet import.
func ExportCSV(records []model.RequestHistory) string {
	var sb strings.Builder
	writeRow(&sb, exportHeader)
	for _, r := range records {
		writeRow(&sb, []string{
			r.SerialNo,
			r.PartNo,
			r.Revision,
			r.Quantity.String(),
			r.Location,
			r.DeliverTo,
			r.RequestType,
			r.ReqTime.UTC().Format("2006-01-02 15:04:05"),
			r.FulfilledTime.UTC().Format("2006-01-02 15:04:05"),
			strconv.Itoa(r.FulfillmentDurationMinutes),
			r.FulfillmentType,
			r.CurrentLocation,
		})
	}
	return sb.String()
}

func writeRow(sb *strings.Builder, fields []string) {
	for i, f := range fields {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteByte('"')
		sb.WriteString(strings.ReplaceAll(f, `"`, `""`))
		sb.WriteByte('"')
	}
	sb.WriteString("\r\n")
}

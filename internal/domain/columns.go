package domain

import "errors"

// Source and derived column names used by the meteorological enrichment.
const (
	ColAirTemp        = "AirTC_Avg"
	ColRelHumidity    = "RH_Avg"
	ColAirPressure    = "P_Air_Avg"
	ColBlackGlobeTemp = "BGTemp_C_Avg"

	ColEsat     = "esat_kPa"
	ColEa       = "ea_kPa"
	ColDewpoint = "dewpoint_C"
	ColWetBulb  = "wet_bulb_C"
	ColWBGT     = "WBGT_C"
)

// DerivedColumns lists the enrichment outputs in the order they are appended.
var DerivedColumns = []string{ColEsat, ColEa, ColDewpoint, ColWetBulb, ColWBGT}

// timestampAliases are checked in order before falling back to the first column.
var timestampAliases = []string{"TIMESTAMP", "timestamp", "DateTime", "datetime", "TIME", "time"}

// ErrNoColumns is returned when a header declares no columns at all.
var ErrNoColumns = errors.New("no columns found in header")

// TimestampColumn picks the timestamp column from a header. The second return
// is false when no known alias matched and the first column was assumed.
func TimestampColumn(columns []string) (string, bool, error) {
	for _, alias := range timestampAliases {
		for _, c := range columns {
			if c == alias {
				return c, true, nil
			}
		}
	}
	if len(columns) == 0 {
		return "", false, ErrNoColumns
	}
	return columns[0], false, nil
}

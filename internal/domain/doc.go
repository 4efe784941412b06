// Package domain models Biobasis meteorological station observations.
//
// # Data Source
//
// Observations originate from a Campbell Scientific datalogger (station MM1)
// that writes one TOA5 ".dat" file per day, named
// "Biobasis_MM1_YYYYMMDD.dat". Each file carries a four-line header followed
// by comma-separated data rows logged at a nominal 30-minute interval.
//
// # TOA5 Conventions
//
// Header lines:
//
//	1: environment  "TOA5","MM1","CR1000X","12345","CR1000X.Std.05","CPU:prog.CR1X","1234","Table30"
//	2: field names  "TIMESTAMP","RECORD","AirTC_Avg","RH_Avg","P_Air_Avg","BGTemp_C_Avg",...
//	3: units        "TS","RN","Deg C","%","mbar","Deg C",...
//	4: statistics   "","","Avg","Avg","Avg","Avg",...
//
// Timestamps are logger wall-clock "2006-01-02 15:04:05" values with no zone.
// They are carried as UTC [time.Time] values and never converted.
//
// "NAN" is the logger sentinel for a failed or absent measurement. It, empty
// cells and anything non-numeric become a missing [Value].
//
// # Missing Values
//
// [Value] is numeric-or-missing. Missing propagates through every derived
// quantity: any formula with a missing operand yields missing, never zero and
// never a NaN that could be mistaken for a number. Output writers render
// missing as the literal token "NaN".
//
// # Derived Fields
//
// After the daily series are merged onto the canonical grid, five derived
// columns are appended per record:
//
//	esat_kPa    saturation vapor pressure over water (Campbell polynomial)
//	ea_kPa      actual vapor pressure from relative humidity
//	dewpoint_C  inverse Tetens dewpoint
//	wet_bulb_C  psychrometric wet-bulb temperature (damped fixed-point solve)
//	WBGT_C      outdoor Wet-Bulb Globe Temperature, 0.2*BG + 0.7*Tw + 0.1*T
//
// Derived fields never overwrite raw fields.
package domain

// Package toa5 reads Campbell Scientific TOA5 daily logger files.
//
// A TOA5 file is comma separated text with a four line header followed by
// data rows:
//
//	"TOA5","MM1","CR1000X","12345","CR1000X.Std.05","CPU:biobasis.CR1X","1234","Table30"
//	"TIMESTAMP","RECORD","AirTC_Avg","RH_Avg","P_Air_Avg","BGTemp_C_Avg"
//	"TS","RN","Deg C","%","mbar","Deg C"
//	"","","Avg","Avg","Avg","Avg"
//	"2024-06-01 00:30:00",0,14.21,81.3,1008.4,13.9
//
// Line one describes the station and program, line two names the columns,
// line three carries units and line four the logger statistic. Cells the
// logger could not measure are written as NAN.
//
// Timestamps are wall-clock logger time with no zone. They are parsed into
// time.Time values in UTC without any conversion so that grid alignment works
// on the same clock the logger used.
//
// Daily files are discovered by name: <prefix>_<station>_YYYYMMDD.dat.
package toa5

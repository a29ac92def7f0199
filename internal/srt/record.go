// Package srt contains telemetry records parsed from subtitle sidecar files.
package srt

import (
	"regexp"
	"strconv"
	"strings"
)

// Record is one parsed telemetry line. A nil field means the line's schema
// did not carry it; absence propagates, it is never coerced to zero.
type Record struct {
	Signal      *int
	Channel     *string
	FlightTime  *int
	SkyBat      *float64
	GroundBat   *float64
	Latency     *int
	BitrateMbps *float64
	Distance    *int
	Frequency   *int
	Sp          *int
	Gp          *int
	AirTemp     *int
	GndTemp     *int
	STYMode     *int
}

// DebugRecord is the diagnostic-build telemetry line. Its schema is fixed, so
// all fields are required.
type DebugRecord struct {
	Signal  int
	Channel int
	Latency int
	Sp      [4]int
	Gp      [4]int
	GTP     int
	GTP0    int
	STP     int
	STP0    int
	GSNR    float64
	SSNR    float64
	GTemp   float64
	STemp   float64
	Frame   int
	GErr    int
	SErr    int
	SErrExt int
	ISO     int
	ISOMode string
	ISOExp  int
	Gain    float64
	GainExp float64
}

var (
	genericRE = regexp.MustCompile(`(\w+):\s*([^:\s]+)`)

	extendedRE = regexp.MustCompile(
		`^Signal:(\d+) CH:(\S+) Hz:(\d+) FlightTime:(\d+) Sp=(\d+) Gp=(\d+)` +
			` SBat:([\d.]+)V GBat:([\d.]+)V Delay:(\d+)ms Bitrate:([\d.]+)Mbps Distance:(\d+)m$`)

	debugRE = regexp.MustCompile(
		`^CH:(\d+) MCS:(\d+)` +
			` SP\[\s*(\d+)\s+(\d+)\s+(\d+)\s+(\d+)\]` +
			` GP\[\s*(\d+)\s+(\d+)\s+(\d+)\s+(\d+)\]` +
			` GTP:(\d+) GTP0:(\d+) STP:(\d+) STP0:(\d+)` +
			` GSNR:(-?[\d.]+) SSNR:(-?[\d.]+) Gtemp:([\d.]+) Stemp:([\d.]+)` +
			` Delay:(\d+)ms Frame:(\d+)\s+Gerr:(\d+) SErr:(\d+) (\d+),` +
			` \[iso:(\d+),mode=(\w+), exp:(\d+)\] \[gain:([\d.]+) exp:([\d.]+)ms\]$`)
)

// ParseRecord parses a telemetry line, trying the extended fixed schema
// first and falling back to the tolerant generic key:value schema. It
// reports false when the line matches neither.
func ParseRecord(line string) (*Record, bool) {
	if rec, ok := parseExtended(line); ok {
		return rec, true
	}
	return parseGeneric(line)
}

func parseExtended(line string) (*Record, bool) {
	m := extendedRE.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return nil, false
	}

	return &Record{
		Signal:      parseIntOpt(m[1]),
		Channel:     strOpt(m[2]),
		Frequency:   parseIntOpt(m[3]),
		FlightTime:  parseIntOpt(m[4]),
		Sp:          parseIntOpt(m[5]),
		Gp:          parseIntOpt(m[6]),
		SkyBat:      parseFloatOpt(m[7]),
		GroundBat:   parseFloatOpt(m[8]),
		Latency:     parseIntOpt(m[9]),
		BitrateMbps: parseFloatOpt(m[10]),
		Distance:    parseIntOpt(m[11]),
	}, true
}

func parseGeneric(line string) (*Record, bool) {
	rec := &Record{}
	recognized := 0

	for _, m := range genericRE.FindAllStringSubmatch(line, -1) {
		key, value := m[1], m[2]

		switch key {
		case "Signal", "MCS":
			rec.Signal = parseIntOpt(value)
		case "CH":
			rec.Channel = strOpt(value)
		case "FlightTime":
			rec.FlightTime = parseIntOpt(value)
		case "SBat":
			rec.SkyBat = parseFloatOpt(strings.TrimSuffix(value, "V"))
		case "GBat":
			rec.GroundBat = parseFloatOpt(strings.TrimSuffix(value, "V"))
		case "Delay":
			rec.Latency = parseIntOpt(strings.TrimSuffix(value, "ms"))
		case "Bitrate":
			rec.BitrateMbps = parseFloatOpt(strings.TrimSuffix(value, "Mbps"))
		case "Distance":
			rec.Distance = parseIntOpt(strings.TrimSuffix(value, "m"))
		case "AirTemp":
			rec.AirTemp = parseIntOpt(value)
		case "GndTemp":
			rec.GndTemp = parseIntOpt(value)
		case "STYMode":
			rec.STYMode = parseIntOpt(value)
		default:
			continue
		}
		recognized++
	}

	if recognized == 0 {
		return nil, false
	}
	return rec, true
}

// ParseDebugRecord parses a diagnostic-build telemetry line. It reports
// false unless every token is present in the expected punctuation.
func ParseDebugRecord(line string) (*DebugRecord, bool) {
	m := debugRE.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return nil, false
	}

	num := func(i int) int {
		v, _ := strconv.Atoi(m[i])
		return v
	}
	fnum := func(i int) float64 {
		v, _ := strconv.ParseFloat(m[i], 64)
		return v
	}

	return &DebugRecord{
		Channel: num(1),
		Signal:  num(2),
		Sp:      [4]int{num(3), num(4), num(5), num(6)},
		Gp:      [4]int{num(7), num(8), num(9), num(10)},
		GTP:     num(11),
		GTP0:    num(12),
		STP:     num(13),
		STP0:    num(14),
		GSNR:    fnum(15),
		SSNR:    fnum(16),
		GTemp:   fnum(17),
		STemp:   fnum(18),
		Latency: num(19),
		Frame:   num(20),
		GErr:    num(21),
		SErr:    num(22),
		SErrExt: num(23),
		ISO:     num(24),
		ISOMode: m[25],
		ISOExp:  num(26),
		Gain:    fnum(27),
		GainExp: fnum(28),
	}, true
}

func parseIntOpt(s string) *int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &v
}

func parseFloatOpt(s string) *float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

func strOpt(s string) *string {
	return &s
}

package osd

// Firmware is the flight controller firmware that produced an OSD recording.
type Firmware int

// Supported firmwares.
const (
	FirmwareUnknown Firmware = iota
	FirmwareBetaflight
	FirmwareInav
	FirmwareArduPilot
	FirmwareKiss
	FirmwareKissUltra
)

// firmwareCodes maps the 4-byte code found in OSD file headers.
var firmwareCodes = map[string]Firmware{
	"BTFL": FirmwareBetaflight,
	"INAV": FirmwareInav,
	"ARDU": FirmwareArduPilot,
	"KISS": FirmwareKiss,
	"ULTR": FirmwareKissUltra,
}

// FirmwareFromCode parses a firmware code from an OSD file header.
func FirmwareFromCode(code string) Firmware {
	if fw, ok := firmwareCodes[code]; ok {
		return fw
	}
	return FirmwareUnknown
}

// String implements fmt.Stringer.
func (f Firmware) String() string {
	switch f {
	case FirmwareBetaflight:
		return "Betaflight"
	case FirmwareInav:
		return "INAV"
	case FirmwareArduPilot:
		return "ArduPilot"
	case FirmwareKiss:
		return "Kiss"
	case FirmwareKissUltra:
		return "Kiss Ultra"
	default:
		return "Unknown"
	}
}

package fritzhome

import (
	"encoding/xml"
	"math"
	"strconv"
	"strings"
)

// Function bits of the AHA functionbitmask attribute.
const (
	functionThermostat        = 1 << 6
	functionTemperatureSensor = 1 << 8
	functionSwitch            = 1 << 9
)

// HKR codes that mean "off" and "on" instead of a temperature.
const (
	thermostatOff = 253
	thermostatOn  = 254
)

// Device is a smart home device as reported by getdevicelistinfos.
// Optional readings are nil when the device does not report them.
type Device struct {
	AIN             string
	Name            string
	Manufacturer    string
	ProductName     string
	FirmwareVersion string
	Present         bool

	HasSwitch            bool
	HasTemperatureSensor bool
	HasThermostat        bool

	BatteryLevel *float64
	BatteryLow   *bool

	Temperature *float64
	Offset      *float64

	ActualTemperature *float64
	TargetTemperature *float64
	// Comfort and eco setpoints are NaN when the thermostat reports off/on
	// instead of a temperature.
	ComfortTemperature float64
	EcoTemperature     float64

	AdaptiveHeatingActive *bool
	BoostActive           *bool
	HolidayActive         *bool
	SummerActive          *bool
	WindowOpen            *bool
}

type deviceList struct {
	XMLName xml.Name    `xml:"devicelist"`
	Devices []xmlDevice `xml:"device"`
}

type xmlDevice struct {
	Identifier      string          `xml:"identifier,attr"`
	FunctionBitmask int             `xml:"functionbitmask,attr"`
	FirmwareVersion string          `xml:"fwversion,attr"`
	Manufacturer    string          `xml:"manufacturer,attr"`
	ProductName     string          `xml:"productname,attr"`
	Present         string          `xml:"present"`
	Name            string          `xml:"name"`
	Battery         *string         `xml:"battery"`
	BatteryLow      *string         `xml:"batterylow"`
	Temperature     *xmlTemperature `xml:"temperature"`
	Thermostat      *xmlThermostat  `xml:"hkr"`
}

type xmlTemperature struct {
	Celsius *string `xml:"celsius"`
	Offset  *string `xml:"offset"`
}

type xmlThermostat struct {
	Actual          *string `xml:"tist"`
	Target          *string `xml:"tsoll"`
	Comfort         *string `xml:"komfort"`
	Eco             *string `xml:"absenk"`
	WindowOpen      *string `xml:"windowopenactiv"`
	Boost           *string `xml:"boostactive"`
	Holiday         *string `xml:"holidayactive"`
	Summer          *string `xml:"summeractive"`
	AdaptiveHeating *string `xml:"adaptiveHeatingActive"`
}

func newDevice(x xmlDevice) *Device {
	d := &Device{
		AIN:                  x.Identifier,
		Name:                 x.Name,
		Manufacturer:         x.Manufacturer,
		ProductName:          x.ProductName,
		FirmwareVersion:      x.FirmwareVersion,
		Present:              strings.TrimSpace(x.Present) == "1",
		HasSwitch:            x.FunctionBitmask&functionSwitch != 0,
		HasTemperatureSensor: x.FunctionBitmask&functionTemperatureSensor != 0,
		HasThermostat:        x.FunctionBitmask&functionThermostat != 0,
		BatteryLevel:         parseNumber(x.Battery, 1),
		BatteryLow:           parseFlag(x.BatteryLow),
		ComfortTemperature:   math.NaN(),
		EcoTemperature:       math.NaN(),
	}

	if t := x.Temperature; t != nil {
		d.Temperature = parseNumber(t.Celsius, 10)
		d.Offset = parseNumber(t.Offset, 10)
	}

	if h := x.Thermostat; h != nil {
		d.ActualTemperature = parseThermostat(h.Actual)
		d.TargetTemperature = parseThermostat(h.Target)
		if v := parseThermostat(h.Comfort); v != nil {
			d.ComfortTemperature = *v
		}
		if v := parseThermostat(h.Eco); v != nil {
			d.EcoTemperature = *v
		}
		d.AdaptiveHeatingActive = parseFlag(h.AdaptiveHeating)
		d.BoostActive = parseFlag(h.Boost)
		d.HolidayActive = parseFlag(h.Holiday)
		d.SummerActive = parseFlag(h.Summer)
		d.WindowOpen = parseFlag(h.WindowOpen)
	}

	return d
}

// parseNumber returns the element value divided by scale, or nil when the
// element is missing, empty or not a number.
func parseNumber(s *string, scale float64) *float64 {
	if s == nil {
		return nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(*s), 64)
	if err != nil {
		return nil
	}
	v /= scale
	return &v
}

// parseThermostat decodes HKR values, which are given in 0.5 °C steps.
func parseThermostat(s *string) *float64 {
	raw := parseNumber(s, 1)
	if raw == nil || *raw == thermostatOff || *raw == thermostatOn {
		return nil
	}
	v := *raw / 2
	return &v
}

func parseFlag(s *string) *bool {
	if s == nil {
		return nil
	}
	var b bool
	switch strings.TrimSpace(*s) {
	case "1":
		b = true
	case "0":
		b = false
	default:
		return nil
	}
	return &b
}

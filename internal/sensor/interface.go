package sensor

// Driver interfaces wrap the raw sensor buses. Implementations own all
// bus access and calibration; the sampler only sees engineering units.
// A driver returns an error for a failed read; it must not block beyond
// its bus timeout.

// AnemometerDriver reads wind speed in m/s.
type AnemometerDriver interface {
	ReadWindSpeed() (float64, error)
}

// PowerMeterDriver reads the generator bus (INA226-class shunt monitor).
type PowerMeterDriver interface {
	ReadBusVoltage() (float64, error)
	ReadBusCurrent() (float64, error)
}

// EnvironmentDriver reads ambient conditions (BME280-class sensor).
type EnvironmentDriver interface {
	ReadTemperature() (float64, error) // °C
	ReadPressure() (float64, error)    // hPa
	ReadHumidity() (float64, error)    // %RH
}

package thermal

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
)

// WeatherRecord is one hourly outdoor observation.
type WeatherRecord struct {
	DryBulb  float64 // dry bulb temperature, Celsius
	Humidity float64 // relative humidity, percent
}

// LoadWeather reads an hourly weather file: CSV rows of drybulb,humidity,
// one row per simulated hour, optional header. The number of rows fixes the
// run period length.
func LoadWeather(path string) ([]WeatherRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening weather file: %w", err)
	}
	defer f.Close()

	rd := csv.NewReader(f)
	rd.FieldsPerRecord = 2
	rows, err := rd.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading weather file %s: %w", path, err)
	}

	out := make([]WeatherRecord, 0, len(rows))
	for i, row := range rows {
		drybulb, err := strconv.ParseFloat(row[0], 64)
		if err != nil {
			if i == 0 {
				// header row
				continue
			}
			return nil, fmt.Errorf("weather file %s row %d: bad drybulb %q", path, i+1, row[0])
		}
		humidity, err := strconv.ParseFloat(row[1], 64)
		if err != nil {
			return nil, fmt.Errorf("weather file %s row %d: bad humidity %q", path, i+1, row[1])
		}
		out = append(out, WeatherRecord{DryBulb: drybulb, Humidity: humidity})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("weather file %s has no records", path)
	}
	return out, nil
}

package warehouse

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/depotradar/depotradar/internal/geo"
)

// Normalize converts a raw store record into a canonical Warehouse.
// It is total: malformed or missing fields degrade to zero values,
// so nothing downstream re-validates.
func Normalize(rec Record, requestCount int) Warehouse {
	f := rec.Fields
	return Warehouse{
		ID:          rec.ID,
		WarehouseID: stringField(f["WarehouseID"]),
		Name:        stringField(f["Warehouse Name"]),
		City:        stringField(f["City"]),
		State:       stringField(f["State"]),
		Zip:         strings.TrimSpace(stringField(f["ZIP"])),
		Status:      stringField(f["Status"]),
		Tier:        stringField(f["Tier"]),
		Coordinate: geo.Coordinate{
			Lat: floatField(f["Latitude"]),
			Lng: floatField(f["Longitude"]),
		},
		Hazmat:         stringField(f["Hazmat"]),
		Disposal:       stringField(f["Disposal"]),
		TempControlled: stringField(f["Warehouse Temp Controlled"]),
		FoodGrade:      stringField(f["Food Grade"]),
		PaperClamps:    stringField(f["Paper Clamps"]),
		ParkingSpots:   stringField(f["Parking Spots"]),
		RequestCount:   requestCount,
	}
}

// stringField coerces an arbitrary store value to a string. Lists become
// comma-joined strings for downstream set matching. Upstream formula
// failures arrive as {"error": ...} objects and become empty strings.
func stringField(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []any:
		parts := make([]string, 0, len(x))
		for _, item := range x {
			parts = append(parts, stringField(item))
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		if _, ok := x["error"]; ok {
			return ""
		}
		return fmt.Sprint(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

// floatField coerces an arbitrary store value to a float64. Strings are
// parsed; anything unparseable degrades to 0.
func floatField(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0
		}
		return f
	case int:
		return float64(x)
	default:
		return 0
	}
}

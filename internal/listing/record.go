package listing

import (
	"strings"
)

// Column names as they appear in CSV headers and JSON payloads.
const (
	ColName         = "name"
	ColFuel         = "fuel"
	ColTransmission = "transmission"
	ColOwner        = "owner"
	ColSeats        = "seats"
	ColYear         = "year"
	ColKmDriven     = "km_driven"
	ColAge          = "age"
	ColSellerType   = "seller_type"
	ColMileage      = "mileage"
	ColEngine       = "engine"
	ColMaxPower     = "max_power"
	ColTorque       = "torque"
)

// Columns lists every column a Record can carry, in canonical order.
var Columns = []string{
	ColName, ColYear, ColKmDriven, ColAge, ColFuel, ColSellerType,
	ColTransmission, ColOwner, ColMileage, ColEngine, ColMaxPower,
	ColTorque, ColSeats,
}

// Record is one raw listing row.
type Record struct {
	Name         Cell `json:"name,omitzero"`
	Year         Cell `json:"year,omitzero"`
	KmDriven     Cell `json:"km_driven,omitzero"`
	Age          Cell `json:"age,omitzero"`
	Fuel         Cell `json:"fuel,omitzero"`
	SellerType   Cell `json:"seller_type,omitzero"`
	Transmission Cell `json:"transmission,omitzero"`
	Owner        Cell `json:"owner,omitzero"`
	Mileage      Cell `json:"mileage,omitzero"`
	Engine       Cell `json:"engine,omitzero"`
	MaxPower     Cell `json:"max_power,omitzero"`
	Torque       Cell `json:"torque,omitzero"`
	Seats        Cell `json:"seats,omitzero"`
}

func (r *Record) cell(column string) *Cell {
	switch column {
	case ColName:
		return &r.Name
	case ColYear:
		return &r.Year
	case ColKmDriven:
		return &r.KmDriven
	case ColAge:
		return &r.Age
	case ColFuel:
		return &r.Fuel
	case ColSellerType:
		return &r.SellerType
	case ColTransmission:
		return &r.Transmission
	case ColOwner:
		return &r.Owner
	case ColMileage:
		return &r.Mileage
	case ColEngine:
		return &r.Engine
	case ColMaxPower:
		return &r.MaxPower
	case ColTorque:
		return &r.Torque
	case ColSeats:
		return &r.Seats
	}
	return nil
}

// Get returns the cell for a column; unknown columns are missing.
func (r Record) Get(column string) Cell {
	if c := r.cell(column); c != nil {
		return *c
	}
	return Cell{}
}

// Set assigns a cell and reports whether the column is known.
func (r *Record) Set(column string, value Cell) bool {
	c := r.cell(column)
	if c == nil {
		return false
	}
	*c = value
	return true
}

// MissingColumns returns the required columns that at least one record does
// not carry, in the order of required.
func MissingColumns(records []Record, required []string) []string {
	var missing []string
	for _, col := range required {
		for _, r := range records {
			if !r.Get(col).Present() {
				missing = append(missing, col)
				break
			}
		}
	}
	return missing
}

// FromCSV builds a record from a header and a row of the same length.
// Empty cells become null, unknown headers are ignored.
func FromCSV(header, row []string) Record {
	var r Record
	for i, col := range header {
		if i >= len(row) {
			break
		}
		col = strings.TrimSpace(col)
		if row[i] == "" {
			r.Set(col, Null())
			continue
		}
		r.Set(col, Text(row[i]))
	}
	// Columns present in the header but cut short in the row are null.
	for i := len(row); i < len(header); i++ {
		r.Set(strings.TrimSpace(header[i]), Null())
	}
	return r
}

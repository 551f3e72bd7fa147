package listing

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCell_UnmarshalJSON(t *testing.T) {
	var rec Record
	err := json.Unmarshal([]byte(`{"name":"Hyundai i20","seats":5,"torque":null,"fuel":true}`), &rec)
	require.NoError(t, err)

	name, ok := rec.Name.Str()
	require.True(t, ok)
	assert.Equal(t, "Hyundai i20", name)

	seats, ok := rec.Seats.Num()
	require.True(t, ok)
	assert.Equal(t, 5.0, seats)

	assert.Equal(t, KindNull, rec.Torque.Kind())
	assert.True(t, rec.Torque.Present())
	assert.Equal(t, KindNumber, rec.Fuel.Kind())
	assert.False(t, rec.Mileage.Present())
}

func TestCell_UnmarshalJSON_RejectsObjects(t *testing.T) {
	var rec Record
	err := json.Unmarshal([]byte(`{"name":{"x":1}}`), &rec)
	assert.Error(t, err)
}

func TestRecord_MarshalJSON_OmitsMissing(t *testing.T) {
	rec := Record{Name: Text("Maruti Swift"), Seats: Number(5), Torque: Null()}
	data, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Maruti Swift","torque":null,"seats":5}`, string(data))
}

func TestCell_String(t *testing.T) {
	tests := []struct {
		name string
		cell Cell
		want string
	}{
		{"text", Text("Diesel"), "Diesel"},
		{"integral number", Number(5), "5"},
		{"fractional number", Number(23.4), "23.4"},
		{"null", Null(), "nan"},
		{"missing", Cell{}, "nan"},
		{"nan number", Number(math.NaN()), "nan"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.cell.String())
		})
	}
}

func TestFormatFloat(t *testing.T) {
	assert.Equal(t, "1200.0", FormatFloat(1200))
	assert.Equal(t, "1.5", FormatFloat(1.5))
	assert.Equal(t, "nan", FormatFloat(math.NaN()))
}

func TestFromCSV(t *testing.T) {
	header := []string{"name", "fuel", "seats", "unknown", "torque"}
	rec := FromCSV(header, []string{"Honda City 1.5 V MT", "", "5", "x"})

	name, _ := rec.Name.Str()
	assert.Equal(t, "Honda City 1.5 V MT", name)
	assert.Equal(t, KindNull, rec.Fuel.Kind())
	assert.Equal(t, KindText, rec.Seats.Kind())
	assert.Equal(t, KindNull, rec.Torque.Kind())
	assert.False(t, rec.Year.Present())
}

func TestMissingColumns(t *testing.T) {
	records := []Record{
		{Name: Text("a"), Fuel: Text("Diesel"), Seats: Number(5)},
		{Name: Text("b"), Seats: Number(5)},
	}

	missing := MissingColumns(records, []string{ColName, ColFuel, ColOwner, ColSeats})
	assert.Equal(t, []string{ColFuel, ColOwner}, missing)
	assert.Empty(t, MissingColumns(nil, []string{ColName}))
}

func TestRecord_SetUnknownColumn(t *testing.T) {
	var rec Record
	assert.False(t, rec.Set("colour", Text("red")))
	assert.True(t, rec.Set(ColOwner, Text("First Owner")))
	assert.Equal(t, "First Owner", rec.Get(ColOwner).String())
	assert.False(t, rec.Get("colour").Present())
}

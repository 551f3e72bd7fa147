package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatPrice(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{452000, "4,52,000"},
		{1234567.8, "12,34,568"},
		{12345678, "1,23,45,678"},
		{-1500, "-1,500"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, FormatPrice(tc.in), "%v", tc.in)
	}
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "250ms", FormatDuration(250*time.Millisecond))
	assert.Equal(t, "1.5s", FormatDuration(1500*time.Millisecond))
	assert.Equal(t, "2.0m", FormatDuration(2*time.Minute))
}

func TestUI_Table(t *testing.T) {
	var buf bytes.Buffer
	ui := NewUI(&buf, false, true)
	ui.Table([]string{"Model", "R2"}, [][]string{{"model1", "0.91"}, {"model2", "0.95"}})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 6)
	assert.Equal(t, "+--------+------+", lines[0])
	assert.Equal(t, "| Model  | R2   |", lines[1])
	assert.Equal(t, "| model2 | 0.95 |", lines[4])
}

func TestUI_JSONModeSuppressesText(t *testing.T) {
	var buf bytes.Buffer
	ui := NewUI(&buf, true, true)
	ui.Success("done")
	ui.Info("info")
	ui.Section("title")
	ui.KeyValue("k", "v")
	ui.Table([]string{"a"}, [][]string{{"b"}})
	assert.Nil(t, ui.ProgressBar("x", 10))
	assert.Zero(t, buf.Len())

	assert.NoError(t, ui.JSON(map[string]int{"n": 1}))
	assert.JSONEq(t, `{"n":1}`, buf.String())
}

func TestUI_PlainMessages(t *testing.T) {
	var buf bytes.Buffer
	ui := NewUI(&buf, false, true)
	ui.Success("priced %d", 3)
	ui.KeyValue("Model", "model2")
	assert.Equal(t, "✓ priced 3\n  Model: model2\n", buf.String())
}

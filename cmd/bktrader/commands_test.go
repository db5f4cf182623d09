package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bktrader/internal/session"
)

func TestParseCodes(t *testing.T) {
	codes, err := parseCodes(" 510050, 159915,,")
	require.NoError(t, err)
	assert.Equal(t, []uint32{510050, 159915}, codes)

	_, err = parseCodes("510050,abc")
	assert.Error(t, err)
	_, err = parseCodes("99999999999")
	assert.Error(t, err)
}

func TestDateRangeParse(t *testing.T) {
	r := dateRange{start: "2024-01-02", end: "2024-11-29"}
	start, end, err := r.parse(session.China)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, session.China), start)
	assert.Equal(t, time.Date(2024, 11, 29, 0, 0, 0, 0, session.China), end)

	_, _, err = (&dateRange{}).parse(session.China)
	assert.ErrorContains(t, err, "-start is required")

	_, _, err = (&dateRange{start: "2024-02-01", end: "2024-01-01"}).parse(session.China)
	assert.ErrorContains(t, err, "before")

	_, _, err = (&dateRange{start: "01/02/2024"}).parse(session.China)
	assert.Error(t, err)
}

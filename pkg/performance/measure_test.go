package performance

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMeasure(t *testing.T) {
	m, err := Measure("sleep", func() error {
		time.Sleep(10 * time.Millisecond)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "sleep", m.Name)
	assert.GreaterOrEqual(t, m.WallTime, 10*time.Millisecond)
	assert.NotZero(t, m.HeapAllocAfter)
}

func TestMeasurePassesThroughError(t *testing.T) {
	boom := errors.New("boom")
	m, err := Measure("fail", func() error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.NotNil(t, m)
}

func TestMeasurementString(t *testing.T) {
	m := &Measurement{Name: "convert", WallTime: time.Second, CPUTime: 500 * time.Millisecond, CPUPercent: 50}
	s := m.String()
	assert.True(t, strings.HasPrefix(s, "convert:"))
	assert.Contains(t, s, "wall=1s")
}

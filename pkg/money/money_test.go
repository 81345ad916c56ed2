package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCommission(t *testing.T) {
	assert.Equal(t, 200.0, LineRevenue(100, 2))
	assert.Equal(t, 10.0, Commission(200, 5))
	assert.Equal(t, 20.0, Commission(200, 10))
	assert.Equal(t, 0.37, Commission(12.345, 3))
	assert.Equal(t, 59.97, LineRevenue(19.99, 3))
}

func TestPercent(t *testing.T) {
	assert.Equal(t, 0.0, Percent(1, 0))
	assert.Equal(t, 33.33, Percent(1, 3))
	assert.Equal(t, 100.0, Percent(4, 4))
}

package ladder

import (
	"testing"

	"kraken-ladder-go/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "82.6", FormatPrice(82.64462809917354, 1))
	assert.Equal(t, "5.5", FormatPrice(5.45, 1))
	assert.Equal(t, "0.00001235", FormatPrice(0.000012345678, 8))
	assert.Equal(t, "64250", FormatPrice(64250.4, 0))
	assert.Equal(t, "0.12345679", FormatVolume(0.123456789))
	assert.Equal(t, "N/A", FormatOptional(models.None(), 2))
	assert.Equal(t, "33.33", FormatOptional(models.Some(33.3333), 2))
}

func TestOffsetReference(t *testing.T) {
	assert.Equal(t, 49000.0, OffsetReference(50000, 2, models.Buy, 1))
	assert.Equal(t, 51000.0, OffsetReference(50000, 2, models.Sell, 1))
	assert.Equal(t, 0.61, OffsetReference(0.6234, 2.5, models.Buy, 2))
}

func TestDefaultTotal(t *testing.T) {
	assert.Equal(t, 5000.0, DefaultTotal(1000, models.Leveraged(5)))
	assert.Equal(t, 1000.0, DefaultTotal(1000, models.Spot()))
}

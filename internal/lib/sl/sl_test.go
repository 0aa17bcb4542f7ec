package sl_test

import (
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/magabrotheeeer/price-alert/internal/lib/sl"
)

func TestErr_ReturnsCorrectAttr(t *testing.T) {
	err := errors.New("something went wrong")
	attr := sl.Err(err)

	assert.Equal(t, "error", attr.Key)
	assert.Equal(t, slog.StringValue("something went wrong"), attr.Value)
}

func TestErr_WrappedError(t *testing.T) {
	err := fmt.Errorf("pricefeed.Fetch: %w", errors.New("connection refused"))
	attr := sl.Err(err)

	assert.Equal(t, "pricefeed.Fetch: connection refused", attr.Value.String())
}

func TestErr_NilError(t *testing.T) {
	assert.NotPanics(t, func() {
		attr := sl.Err(nil)
		assert.Equal(t, "<nil>", attr.Value.String())
	})
}

func TestOp(t *testing.T) {
	attr := sl.Op("alert.RunCycle")

	assert.Equal(t, "op", attr.Key)
	assert.Equal(t, "alert.RunCycle", attr.Value.String())
}

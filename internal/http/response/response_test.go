package response

import (
	"testing"

	"github.com/go-playground/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOKWithData(t *testing.T) {
	data := map[string]string{"key": "value"}
	resp := OKWithData(data)

	assert.Equal(t, StatusOK, resp.Status)
	assert.Empty(t, resp.Error)
	assert.Equal(t, data, resp.Data)
}

func TestError(t *testing.T) {
	resp := Error("something went wrong")

	assert.Equal(t, StatusError, resp.Status)
	assert.Equal(t, "something went wrong", resp.Error)
}

func TestValidationError(t *testing.T) {
	type request struct {
		Username string   `validate:"required,alphanum"`
		Password string   `validate:"min=6"`
		Symbol   string   `validate:"max=3"`
		Price    *float64 `validate:"omitempty,gt=0"`
	}
	price := -1.0

	err := validator.New().Struct(request{Username: "!!!", Password: "abc", Symbol: "BTCUSDT", Price: &price})
	require.Error(t, err)

	resp := ValidationError(err.(validator.ValidationErrors))

	assert.Equal(t, StatusError, resp.Status)
	assert.Contains(t, resp.Error, "field Username can contain only numbers and letters")
	assert.Contains(t, resp.Error, "field Password must be at least 6 characters")
	assert.Contains(t, resp.Error, "field Symbol must be at most 3 characters")
	assert.Contains(t, resp.Error, "field Price must be greater than 0")
}

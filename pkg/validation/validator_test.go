package validation

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type registerPayload struct {
	Name     string `json:"name" validate:"required,personname"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,pwd"`
}

type orderPayload struct {
	Items []struct {
		ProductID int64 `json:"productId" validate:"gt=0"`
		Quantity  int   `json:"quantity" validate:"gt=0"`
	} `json:"items" validate:"required,min=1,dive"`
}

func TestPasswordBoundary(t *testing.T) {
	p := registerPayload{Name: "Ana Silva", Email: "ana@ex.com"}

	p.Password = "1234567"
	err := Struct(p)
	require.Error(t, err)
	assert.Equal(t, map[string]string{"password": "must be between 8 and 128 characters long"}, ToDetails(err))

	p.Password = "12345678"
	assert.NoError(t, Struct(p))

	p.Password = strings.Repeat("x", 128)
	assert.NoError(t, Struct(p))
	p.Password = strings.Repeat("x", 129)
	assert.Error(t, Struct(p))
}

func TestNameAndEmail(t *testing.T) {
	err := Struct(registerPayload{Name: "A", Email: "not-an-email", Password: "password1"})
	require.Error(t, err)
	d := ToDetails(err)
	assert.Equal(t, "must be between 2 and 100 characters long", d["name"])
	assert.Equal(t, "must be a valid email", d["email"])
}

func TestNestedItemPaths(t *testing.T) {
	var p orderPayload
	require.NoError(t, json.Unmarshal([]byte(`{"items":[{"productId":5,"quantity":0}]}`), &p))
	err := Struct(p)
	require.Error(t, err)
	assert.Equal(t, "must be greater than 0", ToDetails(err)["items[0].quantity"])

	p.Items = nil
	err = Struct(p)
	require.Error(t, err)
	assert.Contains(t, ToDetails(err), "items")
}

func TestToDetailsJSON(t *testing.T) {
	var v map[string]any
	err := json.Unmarshal([]byte(`{"a":`), &v)
	assert.Equal(t, map[string]string{"payload": "invalid json"}, ToDetails(err))
	assert.Nil(t, ToDetails(nil))
}

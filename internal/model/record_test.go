package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAssignsPositionalKeywordAndDefaults(t *testing.T) {
	rec, err := New(inventorSchema, []any{"Ada"}, nil)
	require.NoError(t, err)

	name, err := rec.Get("name")
	require.NoError(t, err)
	assert.Equal(t, "Ada", name)

	city, err := rec.Get("city")
	require.NoError(t, err)
	assert.Nil(t, city)
}

func TestNewConstructionErrors(t *testing.T) {
	tests := []struct {
		name   string
		args   []any
		kwargs map[string]any
		want   error
	}{
		{"misnamed keyword", nil, map[string]any{"nmae": "Ada"}, ErrUnknownField},
		{"too many positional", []any{"Ada", "London", "extra"}, nil, ErrTooManyArgs},
		{"duplicate value", []any{"Ada"}, map[string]any{"name": "Alan"}, ErrDuplicateField},
		{"missing required", nil, map[string]any{"city": "London"}, ErrMissingField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := New(inventorSchema, tt.args, tt.kwargs)
			assert.Nil(t, rec)
			assert.ErrorIs(t, err, tt.want)

			var cerr *ConstructionError
			require.True(t, errors.As(err, &cerr))
			assert.Equal(t, "test.Inventor", cerr.Type)
			assert.Equal(t, tt.args, cerr.Args)
			assert.Equal(t, tt.kwargs, cerr.Kwargs)
		})
	}
}

func TestConstructionErrorMessageCarriesArguments(t *testing.T) {
	_, err := New(inventorSchema, []any{"Ada"}, map[string]any{"cty": "London"})
	require.Error(t, err)

	msg := err.Error()
	assert.Contains(t, msg, `unexpected keyword argument "cty"`)
	assert.Contains(t, msg, "args:[Ada]")
	assert.Contains(t, msg, "kwargs:map[cty:London]")
}

func TestRecordGetUnknownField(t *testing.T) {
	rec := inventor("Ada", "")
	_, err := rec.Get("age")
	assert.ErrorIs(t, err, ErrNoField)
}

func TestMustNewPanics(t *testing.T) {
	assert.Panics(t, func() { MustNew(inventorSchema, nil, nil) })
}

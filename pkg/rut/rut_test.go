package rut_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/levelup-api/pkg/rut"
)

func TestValidateAcceptsCommonShapes(t *testing.T) {
	for _, input := range []string{"12345678-5", "12.345.678-5", "123456785", "12.345.6785", " 7.654.321-6 ", "10.000.013-k"} {
		require.NoError(t, rut.Validate(input), input)
	}
}

func TestValidateRejectsBadInput(t *testing.T) {
	require.ErrorIs(t, rut.Validate("abc"), rut.ErrInvalidFormat)
	require.ErrorIs(t, rut.Validate("6-K"), rut.ErrInvalidFormat)
	require.ErrorIs(t, rut.Validate("12.345.678-9"), rut.ErrInvalidCheckDigit)
}

func TestFormatProducesCanonicalForm(t *testing.T) {
	require.Equal(t, "12.345.678-5", rut.Format("123456785"))
	require.Equal(t, "7.654.321-6", rut.Format("7654321-6"))
	require.Equal(t, "10.000.013-K", rut.Format("10000013k"))
}

func TestNormalize(t *testing.T) {
	value, err := rut.Normalize("11111111-1")
	require.NoError(t, err)
	require.Equal(t, "11.111.111-1", value)

	_, err = rut.Normalize("11111111-2")
	require.Error(t, err)
}

func TestFromNumberRoundTrips(t *testing.T) {
	formatted := rut.FromNumber(18000000)
	require.Equal(t, "18.000.000-3", formatted)
	require.NoError(t, rut.Validate(formatted))
}

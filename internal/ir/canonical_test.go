package ir

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"string", IRString("hello"), `"hello"`},
		{"empty string", IRString(""), `""`},
		{"int", IRInt(42), "42"},
		{"negative int", IRInt(-100), "-100"},
		{"min int64", IRInt(math.MinInt64), "-9223372036854775808"},
		{"bool true", IRBool(true), "true"},
		{"nothing", IRNothing{}, `{"nothing":true}`},
		{"symbol", IRSymbol("x"), `{"sym":"x"}`},
		{"function", NewIRFunction("Base", "+"), `{"fn":"Base.+"}`},
		{"float", IRFloat(2.5), `{"f64":"0x4004000000000000"}`},
		{"empty array", IRArray{}, "[]"},
		{"array of ints", IRArray{IRInt(1), IRInt(2), IRInt(3)}, "[1,2,3]"},
		{"simple object", IRObject{"a": IRInt(1)}, `{"a":1}`},
		{"type slice", []Type{TypeInt64, TypeBool}, `["Int64","Bool"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalSortedKeys(t *testing.T) {
	obj := IRObject{
		"zebra": IRInt(1),
		"alpha": IRInt(2),
		"beta":  IRInt(3),
	}

	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":2,"beta":3,"zebra":1}`, string(result))
}

func TestMarshalCanonicalNoHTMLEscape(t *testing.T) {
	result, err := MarshalCanonical(IRString("a<b>&c "))
	require.NoError(t, err)
	assert.Equal(t, "\"a<b>&c \"", string(result))
}

func TestMarshalCanonicalEscapesControl(t *testing.T) {
	result, err := MarshalCanonical(IRString("a\"b\\c\n\x01"))
	require.NoError(t, err)
	assert.Equal(t, `"a\"b\\c\n\u0001"`, string(result))
}

func TestMarshalCanonicalNFC(t *testing.T) {
	// "e" + combining acute accent normalizes to U+00E9.
	decomposed, err := MarshalCanonical(IRString("e\u0301"))
	require.NoError(t, err)
	composed, err := MarshalCanonical(IRString("\u00e9"))
	require.NoError(t, err)
	assert.Equal(t, composed, decomposed)
}

func TestMarshalCanonicalRejects(t *testing.T) {
	_, err := MarshalCanonical(nil)
	assert.Error(t, err)

	_, err = MarshalCanonical(3.14)
	assert.Error(t, err)

	_, err = MarshalCanonical(struct{}{})
	assert.Error(t, err)
}

func TestSymbolAndStringDoNotCollide(t *testing.T) {
	assert.False(t, EqualValues(IRSymbol("x"), IRString("x")))
	assert.True(t, EqualValues(IRFloat(math.NaN()), IRFloat(math.NaN())))
	assert.False(t, EqualValues(IRFloat(0), IRFloat(math.Copysign(0, -1))))
	assert.True(t, EqualValues(NewIRFunction("Base", "+"), NewIRFunction("Base", "+")))
}

func TestMarshalCanonicalTypeSliceInObject(t *testing.T) {
	got, err := MarshalCanonical(map[string]any{
		"signature": []Type{TypeInt64, TypeBool},
		"method":    "Main.f",
	})
	require.NoError(t, err)
	assert.Equal(t, `{"method":"Main.f","signature":["Int64","Bool"]}`, string(got))
}

package logic

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormula_String(t *testing.T) {
	a, b, c := NewVar("A"), NewVar("B"), NewVar("C")

	tests := []struct {
		name string
		f    Formula
		want string
	}{
		{"variable", a, "A"},
		{"negation", NewNot(a), "!A"},
		{"conjunction", NewAnd(a, b, c), "A && B && C"},
		{"disjunction inside conjunction", NewAnd(NewOr(a, b), c), "(A || B) && C"},
		{"conjunction inside disjunction", NewOr(NewAnd(a, b), c), "A && B || C"},
		{"negated disjunction", NewNot(NewOr(a, b)), "!(A || B)"},
		{"negated conjunction", NewNot(NewAnd(a, b)), "!(A && B)"},
		{"constants", NewAnd(True, False), "true && false"},
		{"empty conjunction", NewAnd(), "true"},
		{"empty disjunction", NewOr(), "false"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.f.String())
		})
	}
}

func TestParse_RoundTrip(t *testing.T) {
	inputs := []string{
		"CONFIG_A",
		"!CONFIG_A",
		"CONFIG_A && !CONFIG_B",
		"(CONFIG_A || CONFIG_B) && CONFIG_C",
		"!(CONFIG_A && CONFIG_B) || X",
		"true",
		"false && Y",
	}

	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			f, err := Parse(in)
			require.NoError(t, err)
			assert.Equal(t, in, f.String())

			again, err := Parse(f.String())
			require.NoError(t, err)
			assert.True(t, Equal(f, again))
		})
	}
}

func TestParse_RightNestedIsCanonicallyEqual(t *testing.T) {
	right := And{Left: NewVar("A"), Right: And{Left: NewVar("B"), Right: NewVar("C")}}
	parsed, err := Parse(right.String())
	require.NoError(t, err)

	assert.Equal(t, "A && B && C", right.String())
	assert.True(t, Equal(right, parsed))
	assert.NotEqual(t, Formula(right), parsed, "parsing nests to the left")
}

func TestParse_AlternativeSyntax(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"not X", "!X"},
		{"X and Y or Z", "X && Y || Z"},
		{"X or Y and Z", "X || Y && Z"},
		{"1 && !0", "true && !false"},
		{"  ( ( X ) )  ", "X"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			f, err := Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, f.String())
		})
	}
}

func TestParse_Errors(t *testing.T) {
	inputs := []string{
		"",
		"X &&",
		"X & Y",
		"(X || Y",
		"X Y",
		"X $ Y",
		"10",
	}

	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			_, err := Parse(in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrSyntax))

			var synErr *SyntaxError
			assert.True(t, errors.As(err, &synErr))
		})
	}
}

func TestVariables(t *testing.T) {
	f := MustParse("CONFIG_B && (CONFIG_A || !CONFIG_B) && X")
	assert.Equal(t, []string{"CONFIG_A", "CONFIG_B", "X"}, Variables(f))
	assert.Empty(t, Variables(True))
}

func TestAnyVariable(t *testing.T) {
	f := MustParse("A && (B || !C)")
	assert.True(t, AnyVariable(f, func(n string) bool { return n == "C" }))
	assert.False(t, AnyVariable(f, func(n string) bool { return n == "D" }))
}

func TestSimplify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"X && true", "X"},
		{"true && X", "X"},
		{"X && false", "false"},
		{"X || true", "true"},
		{"false || X", "X"},
		{"!!X", "X"},
		{"!true", "false"},
		{"!(X && true)", "!X"},
		{"(A || false) && (B || C)", "A && (B || C)"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Simplify(MustParse(tt.in)).String())
		})
	}
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(MustParse("A && B"), NewAnd(NewVar("A"), NewVar("B"))))
	assert.False(t, Equal(MustParse("A && B"), MustParse("B && A")))
	assert.True(t, Equal(nil, nil))
	assert.False(t, Equal(nil, True))
}

func TestIsIdentifier(t *testing.T) {
	assert.True(t, IsIdentifier("CONFIG_X"))
	assert.True(t, IsIdentifier("_t1"))
	assert.False(t, IsIdentifier("1X"))
	assert.False(t, IsIdentifier("A-B"))
	assert.False(t, IsIdentifier("and"))
	assert.False(t, IsIdentifier(""))
}

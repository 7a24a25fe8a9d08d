package natsort

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompare(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want int
	}{
		{"both empty", "", "", 0},
		{"empty first", "", "a", -1},
		{"empty first against digit", "", "0", -1},
		{"non-empty after empty", "a", "", 1},
		{"numeric not lexicographic", "img2", "img10", -1},
		{"numeric greater", "img10", "img9", 1},
		{"equal numbers continue", "img10a", "img10b", -1},
		{"leading zeros same value", "img007", "img7", 0},
		{"case insensitive", "IMG1", "img1", 0},
		{"case insensitive order", "apple", "Banana", -1},
		{"digit before letter", "1abc", "abc", -1},
		{"letter after digit", "abc", "1abc", 1},
		{"numeric name before alphabetic", "12345", "abc", -1},
		{"prefix sorts first", "img", "img1", -1},
		{"huge numbers", "f123456789012345678901234567890", "f123456789012345678901234567891", -1},
		{"multiple runs", "a1b2c3", "a1b2c10", -1},
		{"non ascii case folding", "éclair", "ÉCLAIR", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compare(tt.a, tt.b))
			assert.Equal(t, -tt.want, Compare(tt.b, tt.a), "comparison must be antisymmetric")
		})
	}
}

func TestSort(t *testing.T) {
	names := []string{"img2.png", "img10.png", "img1.png"}
	Sort(names)
	assert.Equal(t, []string{"img1.png", "img2.png", "img10.png"}, names)
}

func TestSort_StableForEquivalentNames(t *testing.T) {
	names := []string{"b", "IMG01", "img1", "a"}
	Sort(names)
	assert.Equal(t, []string{"a", "b", "IMG01", "img1"}, names)
}

func TestLess_EmptyString(t *testing.T) {
	for _, name := range []string{"a", "0", "Z", " ", "img1"} {
		assert.True(t, Less("", name), "empty string must sort before %q", name)
		assert.False(t, Less(name, ""))
	}
	assert.False(t, Less("", ""))
}

func TestCompare_StrictWeakOrdering(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	alphabet := []string{"a", "B", "b", "0", "1", "9", "01", "10", "x", "_"}

	names := make([]string, 0, 40)
	for i := 0; i < 40; i++ {
		var sb strings.Builder
		n := rng.Intn(5)
		for k := 0; k < n; k++ {
			sb.WriteString(alphabet[rng.Intn(len(alphabet))])
		}
		names = append(names, sb.String())
	}

	for _, a := range names {
		require.False(t, Less(a, a), "irreflexive: %q", a)
		for _, b := range names {
			if Less(a, b) {
				require.False(t, Less(b, a), "asymmetric: %q %q", a, b)
			}
			for _, c := range names {
				if Less(a, b) && Less(b, c) {
					require.True(t, Less(a, c), "transitive: %q < %q < %q", a, b, c)
				}
				// Incomparability must be transitive for a strict weak ordering.
				if Compare(a, b) == 0 && Compare(b, c) == 0 {
					require.Equal(t, 0, Compare(a, c), "equivalence: %q ~ %q ~ %q", a, b, c)
				}
			}
		}
	}
}

func TestCompare_PathologicalLength(t *testing.T) {
	a := strings.Repeat("1a", 200000)
	b := a + "2"
	assert.Equal(t, -1, Compare(a, b))
	assert.Equal(t, 0, Compare(a, strings.ToUpper(a)))
}

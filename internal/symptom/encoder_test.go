package symptom

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testVocabulary(t *testing.T) *Vocabulary {
	t.Helper()
	v, err := NewVocabulary([]string{"itching", "skin_rash", "nodal_skin_eruptions", "continuous_sneezing", "shivering"})
	require.NoError(t, err)
	return v
}

func TestNewVocabulary(t *testing.T) {
	t.Run("normalizes names", func(t *testing.T) {
		v, err := NewVocabulary([]string{" itching", "skin_rash "})
		require.NoError(t, err)
		assert.Equal(t, []string{"itching", "skin_rash"}, v.Names())
		idx, ok := v.Index("skin_rash")
		assert.True(t, ok)
		assert.Equal(t, 1, idx)
	})

	t.Run("rejects duplicates", func(t *testing.T) {
		_, err := NewVocabulary([]string{"itching", " itching"})
		require.Error(t, err)
	})

	t.Run("rejects blanks", func(t *testing.T) {
		_, err := NewVocabulary([]string{"itching", "  "})
		require.Error(t, err)
	})

	t.Run("rejects empty", func(t *testing.T) {
		_, err := NewVocabulary(nil)
		require.ErrorIs(t, err, ErrEmptyVocabulary)
	})
}

func TestEncode(t *testing.T) {
	v := testVocabulary(t)

	t.Run("empty selection is the zero vector", func(t *testing.T) {
		vec := Encode(nil, v)
		require.Len(t, vec, v.Len())
		assert.Equal(t, 0, vec.Ones())
	})

	t.Run("one per selected symptom", func(t *testing.T) {
		vec := Encode([]string{"itching", "shivering"}, v)
		assert.Equal(t, FeatureVector{1, 0, 0, 0, 1}, vec)
		assert.Equal(t, 2, vec.Ones())
	})

	t.Run("order independent", func(t *testing.T) {
		a := Encode([]string{"skin_rash", "itching", "continuous_sneezing"}, v)
		b := Encode([]string{"continuous_sneezing", "skin_rash", "itching"}, v)
		assert.Equal(t, a, b)
	})

	t.Run("duplicates are idempotent", func(t *testing.T) {
		a := Encode([]string{"itching", "itching", "itching"}, v)
		assert.Equal(t, Encode([]string{"itching"}, v), a)
	})

	t.Run("unknown symptoms ignored", func(t *testing.T) {
		assert.Equal(t, Encode(nil, v), Encode([]string{"not_a_symptom"}, v))
	})

	t.Run("every subset has exactly its size in ones", func(t *testing.T) {
		names := v.Names()
		for mask := 0; mask < 1<<len(names); mask++ {
			var subset []string
			for i, n := range names {
				if mask&(1<<i) != 0 {
					subset = append(subset, n)
				}
			}
			vec := Encode(subset, v)
			require.Len(t, vec, v.Len())
			assert.Equal(t, len(subset), vec.Ones(), "mask %b", mask)
			for _, x := range vec {
				assert.True(t, x == 0 || x == 1)
			}
		}
	})
}

func TestEncodeReport(t *testing.T) {
	v := testVocabulary(t)
	r := EncodeReport([]string{"itching", "", "headache", "itching", "headache"}, v)
	assert.Equal(t, []string{"itching"}, r.Recognized)
	assert.Equal(t, []string{"headache"}, r.Unrecognized)
	assert.Equal(t, 1, r.Vector.Ones())
}

func TestExtractFromTable(t *testing.T) {
	table := strings.Join([]string{
		"Disease,Symptom_1,Symptom_2,Symptom_3",
		"Fungal infection, itching, skin_rash,None",
		"Allergy, continuous_sneezing, shivering, itching",
		"Acne,skin_rash,NONE,",
	}, "\n")

	names, err := ExtractFromTable(strings.NewReader(table))
	require.NoError(t, err)
	assert.Equal(t, []string{"itching", "skin_rash", "continuous_sneezing", "shivering"}, names)
}

func TestExtractFromTableRequiresSymptomColumns(t *testing.T) {
	_, err := ExtractFromTable(strings.NewReader("Disease,Cause\nflu,virus\n"))
	require.Error(t, err)
}

func TestListRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteList(&buf, []string{"itching", "skin_rash"}))
	assert.True(t, strings.HasPrefix(buf.String(), "Symptom\n"))

	names, err := ReadList(&buf)
	require.NoError(t, err)
	assert.Equal(t, []string{"itching", "skin_rash"}, names)
}

func TestIsNoneSentinel(t *testing.T) {
	assert.True(t, IsNoneSentinel("None"))
	assert.True(t, IsNoneSentinel(" none "))
	assert.True(t, IsNoneSentinel("NONE"))
	assert.False(t, IsNoneSentinel("nonexistent"))
	assert.False(t, IsNoneSentinel(""))
}

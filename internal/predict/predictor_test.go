package predict

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skufu/GoSymptom/internal/model"
	"github.com/Skufu/GoSymptom/internal/reference"
)

func testArtifact(t *testing.T) *model.Artifact {
	t.Helper()
	a, err := model.Bundle{
		FormatVersion: model.FormatVersion,
		Vocabulary: []string{
			"itching", "skin_rash", "nodal_skin_eruptions",
			"continuous_sneezing", "shivering", "chills", "joint_pain",
		},
		Selector: model.SelectorSpec{Support: []int{0, 1, 2, 3, 4, 5}},
		Classifier: model.ClassifierSpec{
			Kind: model.KindLinear,
			Linear: &model.LinearSpec{
				Coef: [][]float64{
					{0, 0, 0, 2, 2, 2},
					{2, 2, 2, 0, 0, 0},
					{0, 0, 0, 0, 0, 0},
				},
				Intercept: []float64{0, 0, 0.5},
			},
		},
		Labels: []string{"Allergy", "Fungal infection", "GERD"},
	}.Build()
	require.NoError(t, err)
	return a
}

func testTables() *reference.Tables {
	t := reference.NewTables()
	for _, d := range []string{"Allergy", "Fungal infection", "GERD"} {
		t.Descriptions[d] = d + " description"
		t.Medications[d] = "['" + d + " medication']"
	}
	t.Precautions["Allergy"] = []string{"apply calamine", "", "use ice to compress itching"}
	t.Precautions["Fungal infection"] = []string{"bath twice", "None", "keep infected area dry", "none"}
	t.Precautions["GERD"] = []string{"avoid fatty spicy food", "NONE"}
	return t
}

func newTestPredictor(t *testing.T, policy Policy) *Predictor {
	return New(Context{Artifact: testArtifact(t), Tables: testTables()}, policy, nil)
}

func TestPredictFungalInfection(t *testing.T) {
	p := newTestPredictor(t, Policy{})

	r, err := p.Predict([]string{"itching", "skin_rash"})
	require.NoError(t, err)
	assert.Equal(t, "Fungal infection", r.Disease)
	assert.Equal(t, "Fungal infection description", r.Description)
	assert.Equal(t, []string{"bath twice", "keep infected area dry"}, r.Precautions)
	for _, prec := range r.Precautions {
		assert.NotEqual(t, "none", strings.ToLower(prec))
	}
	assert.Greater(t, r.Confidence, 0.5)
	assert.Empty(t, r.Unrecognized)
}

func TestPredictIsIdempotent(t *testing.T) {
	p := newTestPredictor(t, Policy{})
	input := []string{"shivering", "chills", "itching"}

	first, err := p.Predict(input)
	require.NoError(t, err)
	second, err := p.Predict(input)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, []string{"shivering", "chills", "itching"}, input)

	reordered, err := p.Predict([]string{"itching", "chills", "shivering", "chills"})
	require.NoError(t, err)
	assert.Equal(t, first, reordered)
}

func TestPredictNoSymptoms(t *testing.T) {
	p := newTestPredictor(t, Policy{})
	for _, input := range [][]string{nil, {}, {"", "   "}} {
		_, err := p.Predict(input)
		require.ErrorIs(t, err, ErrNoSymptoms)
	}
}

func TestPredictUnrecognizedStillPredicts(t *testing.T) {
	p := newTestPredictor(t, Policy{})

	r, err := p.Predict([]string{"not_a_symptom"})
	require.NoError(t, err)
	assert.Equal(t, "GERD", r.Disease)
	assert.Equal(t, []string{"not_a_symptom"}, r.Unrecognized)
	assert.Equal(t, []string{"avoid fatty spicy food"}, r.Precautions)
}

func TestPredictMissingMedicationRow(t *testing.T) {
	c := Context{Artifact: testArtifact(t), Tables: testTables()}
	delete(c.Tables.Medications, "Fungal infection")
	p := New(c, Policy{}, nil)

	_, err := p.Predict([]string{"itching", "skin_rash"})
	var lookup *LookupError
	require.ErrorAs(t, err, &lookup)
	assert.Equal(t, reference.TableMedications, lookup.Missing.Table)
	assert.Equal(t, "Fungal infection", lookup.Missing.Disease)

	// other diseases are unaffected
	r, err := p.Predict([]string{"chills"})
	require.NoError(t, err)
	assert.Equal(t, "Allergy", r.Disease)
}

func TestPredictWithoutArtifact(t *testing.T) {
	p := New(Context{Tables: testTables()}, Policy{}, nil)

	_, err := p.Predict([]string{"itching"})
	var me *ModelError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, "load", me.Op)
	assert.Nil(t, p.Options())
	assert.False(t, p.Loaded())
}

func TestPredictAbstention(t *testing.T) {
	t.Run("unrecognized", func(t *testing.T) {
		p := newTestPredictor(t, Policy{AbstainWhenUnrecognized: true})

		r, err := p.Predict([]string{"not_a_symptom"})
		require.ErrorIs(t, err, ErrAbstained)
		assert.Equal(t, []string{"not_a_symptom"}, r.Unrecognized)

		_, err = p.Predict([]string{"not_a_symptom", "itching"})
		require.NoError(t, err)
	})

	t.Run("min confidence", func(t *testing.T) {
		p := newTestPredictor(t, Policy{MinConfidence: 0.9})

		// scores 0, 2, 0.5 give roughly 0.74
		r, err := p.Predict([]string{"itching"})
		require.ErrorIs(t, err, ErrAbstained)
		assert.InDelta(t, 0.74, r.Confidence, 0.01)

		r, err = p.Predict([]string{"itching", "skin_rash", "nodal_skin_eruptions"})
		require.NoError(t, err)
		assert.Equal(t, "Fungal infection", r.Disease)
	})
}

func TestOptionsAndLabels(t *testing.T) {
	p := newTestPredictor(t, Policy{})
	assert.True(t, p.Loaded())
	assert.Len(t, p.Options(), 7)
	assert.Equal(t, "itching", p.Options()[0])
	assert.Equal(t, []string{"Allergy", "Fungal infection", "GERD"}, p.Labels())
}

func TestFormatMarkdown(t *testing.T) {
	got := FormatMarkdown(Result{
		Disease:     "GERD",
		Description: "Reflux.",
		Medications: "Antacids",
		Precautions: []string{"avoid fatty spicy food", "maintain healthy weight"},
	})
	want := "Based on your symptoms, you may have **GERD**.\n\n" +
		"**Description:** Reflux.\n\n" +
		"**Medications:** Antacids\n\n" +
		"**Precautions:**\n" +
		"- avoid fatty spicy food\n" +
		"- maintain healthy weight\n" +
		"\n_Note: This is a prediction. Please consult a real doctor for confirmation._"
	assert.Equal(t, want, got)
}

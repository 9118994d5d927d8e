package grading

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func decodeMap(t *testing.T, raw string) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(raw), &out))
	return out
}

func TestGradeMCQSingleAndMultiple(t *testing.T) {
	config := decodeMap(t, `{"preguntas":[
		{"id":"q1","correctas":[1]},
		{"id":"q2","correctas":[0,2],"multiple":true},
		{"id":"q3","correctas":[0]}
	]}`)
	answers := decodeMap(t, `{"q1":1,"q2":[2,0]}`)

	score, feedback := Grade(TypeMCQ, config, answers)
	require.InDelta(t, 2.0/3.0, score, 1e-9)

	detail := feedback["detalle"].([]map[string]interface{})
	require.Len(t, detail, 3)
	require.Equal(t, false, detail[2]["correcta"])
	require.Equal(t, []int{-1}, detail[2]["respuesta"])
}

func TestGradeTF(t *testing.T) {
	config := decodeMap(t, `{"items":[{"id":"a","correcta":true},{"id":"b","correcta":false},{"id":"c","correcta":true}]}`)
	answers := decodeMap(t, `{"a":true,"b":false}`)

	score, _ := Grade("TF", config, answers)
	require.InDelta(t, 2.0/3.0, score, 1e-9)
}

func TestGradeFIBNormalizesText(t *testing.T) {
	config := decodeMap(t, `{"items":[{"id":"x","respuestas":["Agua","H2O"]},{"id":"y","respuestas":["sol"]}]}`)
	answers := decodeMap(t, `{"x":"  agua ","y":"luna"}`)

	score, feedback := Grade("FIB", config, answers)
	require.InDelta(t, 0.5, score, 1e-9)
	detail := feedback["detalle"].([]map[string]interface{})
	require.Equal(t, []string{"agua", "h2o"}, detail[0]["esperada"])
}

func TestGradeSortRequiresExactOrder(t *testing.T) {
	config := decodeMap(t, `{"orden_correcto":["a","b","c"]}`)

	score, _ := Grade("SORT", config, decodeMap(t, `{"orden":["a","b","c"]}`))
	require.Equal(t, 1.0, score)

	score, _ = Grade("SORT", config, decodeMap(t, `{"orden":["a","c","b"]}`))
	require.Equal(t, 0.0, score)
}

func TestGradeMatchGivesPartialCredit(t *testing.T) {
	config := decodeMap(t, `{"pares":[
		{"left":{"id":"l1"},"right":{"id":"rA"}},
		{"left":{"id":"l2"},"right":{"id":"rB"}},
		{"left":{"id":"l3"},"right":{"id":"rC"}},
		{"left":{"id":"l4"},"right":{"id":"rD"}}
	]}`)
	answers := decodeMap(t, `{"pares":[{"left":"l1","right":"rA"},{"left":"l2","right":"rC"},{"left":"l3","right":"rC"}]}`)

	score, feedback := Grade("MATCH", config, answers)
	require.InDelta(t, 0.5, score, 1e-9)
	require.Equal(t, 2, feedback["correctos"])
	require.Equal(t, 4, feedback["total"])
}

func TestGradeUnknownTypeAndEmptyConfig(t *testing.T) {
	score, feedback := Grade("ESSAY", nil, nil)
	require.Equal(t, 0.0, score)
	require.Equal(t, ErrUnsupportedType, feedback["error"])

	score, _ = Grade("MCQ", map[string]interface{}{}, nil)
	require.Equal(t, 0.0, score)

	for _, kind := range []string{"mcq", " MCQ", "Tf"} {
		score, feedback = Grade(kind, decodeMap(t, `{"preguntas":[{"id":"q1","correctas":[0]}]}`), decodeMap(t, `{"q1":0}`))
		require.Equal(t, 0.0, score, kind)
		require.Equal(t, ErrUnsupportedType, feedback["error"], kind)
	}
}

func TestEvaluateGameAnswer(t *testing.T) {
	withTotals := EvaluateGameAnswer(GamePayload{Meta: map[string]interface{}{"correctas": float64(3), "total": float64(4)}}, 10)
	require.InDelta(t, 0.75, withTotals.Ratio, 1e-9)
	require.False(t, withTotals.Correct)
	require.Equal(t, 8, withTotals.Points)

	scored := EvaluateGameAnswer(GamePayload{Score: float64(1), Meta: map[string]interface{}{"correctas": 5, "total": 5}}, 20)
	require.True(t, scored.Correct)
	require.Equal(t, 20, scored.Points)

	completedOnly := EvaluateGameAnswer(GamePayload{Completed: true}, 10)
	require.True(t, completedOnly.Correct)
	require.Equal(t, 0, completedOnly.Points)

	clamped := EvaluateGameAnswer(GamePayload{Score: float64(7)}, 10)
	require.Equal(t, 10, clamped.Points)
}

func TestReadOutcomeUsesMetaAndReconstructsHits(t *testing.T) {
	tally := &Tally{}

	fromMeta := ReadOutcome(decodeMap(t, `{"kind":"Trivia","meta":{"correctas":4,"total":4}}`), "", false, tally)
	require.True(t, fromMeta.Correct)
	require.Equal(t, "trivia", fromMeta.Kind)
	require.Equal(t, 0, *fromMeta.Misses)

	fromScore := ReadOutcome(decodeMap(t, `{"score":0.5,"total":6,"completado":false}`), "memory", true, tally)
	require.Equal(t, 3, *fromScore.Hits)
	require.Equal(t, 3, *fromScore.Misses)
	require.False(t, fromScore.Correct)
	require.False(t, fromScore.Completed)
	require.Equal(t, "memory", fromScore.Kind)

	legacy := ReadOutcome(decodeMap(t, `{"completado":true}`), "vf", true, tally)
	require.True(t, legacy.Correct)

	missing := ReadOutcome(nil, "cloze", false, tally)
	require.False(t, missing.Correct)
	require.False(t, missing.Answered)

	require.Equal(t, Tally{Good: 4 + 3 + 1, Questions: 4 + 6 + 1 + 1}, *tally)
	require.Equal(t, 67, tally.Percent())
}

func TestFilters(t *testing.T) {
	require.Equal(t, FilterAll, NormalizeFilter("bogus"))
	require.Equal(t, FilterWrong, NormalizeFilter("SOLO_MALAS"))
	require.True(t, Keep(FilterGood, Outcome{Correct: true}))
	require.False(t, Keep(FilterGood, Outcome{Correct: false}))
	require.True(t, Keep(FilterAll, Outcome{}))
	require.Equal(t, 0, Tally{}.Percent())
}

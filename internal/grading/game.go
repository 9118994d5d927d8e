package grading

import (
	"math"
	"strings"

	"github.com/noah-isme/levelup-api/internal/gamification"
)

// GamePayload is what a minigame posts after an item is played.
type GamePayload struct {
	Meta      map[string]interface{} `json:"meta"`
	Completed bool                   `json:"completado"`
	Kind      string                 `json:"kind"`
	Score     interface{}            `json:"score"`
}

// Evaluation is the graded outcome of one game item.
type Evaluation struct {
	Ratio   float64
	Correct bool
	Points  int
	Hits    *int
	Total   *int
}

// EvaluateGameAnswer derives the ratio, correctness and points earned for an item.
func EvaluateGameAnswer(payload GamePayload, maxPoints int) Evaluation {
	eval := Evaluation{}
	if hits, ok := gamification.MetaInt(payload.Meta, "correctas"); ok {
		eval.Hits = &hits
	}
	if total, ok := gamification.MetaInt(payload.Meta, "total"); ok {
		eval.Total = &total
	}

	hasTotals := eval.Hits != nil && eval.Total != nil && *eval.Total != 0

	switch score := payload.Score.(type) {
	case float64:
		eval.Ratio = score
	case int:
		eval.Ratio = float64(score)
	default:
		if hasTotals {
			eval.Ratio = float64(*eval.Hits) / float64(*eval.Total)
		}
	}
	eval.Ratio = math.Max(0, math.Min(1, eval.Ratio))

	if hasTotals {
		eval.Correct = *eval.Hits == *eval.Total
	} else {
		eval.Correct = payload.Completed
	}

	if maxPoints < 0 {
		maxPoints = 0
	}
	eval.Points = int(math.Round(eval.Ratio * float64(maxPoints)))
	return eval
}

// Outcome is the reconstructed result of an item for the results page.
type Outcome struct {
	Kind      string `json:"kind"`
	Correct   bool   `json:"correct"`
	Hits      *int   `json:"hits"`
	Total     *int   `json:"total"`
	Misses    *int   `json:"misses"`
	Completed bool   `json:"completed"`
	Answered  bool   `json:"answered"`
}

// Tally accumulates good answers and questions for the global percentage.
type Tally struct {
	Good      int `json:"good"`
	Questions int `json:"questions"`
}

// Percent is round(good * 100 / questions), zero when nothing was asked.
func (t Tally) Percent() int {
	if t.Questions <= 0 {
		return 0
	}
	return int(math.Round(float64(t.Good) * 100 / float64(t.Questions)))
}

// ReadOutcome rebuilds an item outcome from a stored answer payload.
// answer is nil when the item was never answered; storedCorrect is the flag saved with the answer.
func ReadOutcome(answer map[string]interface{}, itemKind string, storedCorrect bool, tally *Tally) Outcome {
	out := Outcome{Answered: answer != nil}

	kind, _ := answer["kind"].(string)
	if kind == "" {
		kind = itemKind
	}
	out.Kind = strings.ToLower(kind)

	meta, _ := answer["meta"].(map[string]interface{})
	if len(meta) == 0 && answer != nil {
		meta = map[string]interface{}{
			"correctas": answer["correctas"],
			"total":     answer["total"],
			"misses":    answer["incorrectas"],
		}
	}

	if v, ok := gamification.MetaInt(meta, "correctas"); ok {
		out.Hits = &v
	}
	if v, ok := gamification.MetaInt(meta, "total"); ok {
		out.Total = &v
	}
	if v, ok := gamification.MetaInt(meta, "misses"); ok {
		out.Misses = &v
	}

	if out.Hits == nil && out.Total != nil {
		if score, ok := answer["score"].(float64); ok {
			hits := int(math.Round(score * float64(*out.Total)))
			out.Hits = &hits
		}
	}
	if out.Misses == nil && out.Hits != nil && out.Total != nil {
		misses := *out.Total - *out.Hits
		if misses < 0 {
			misses = 0
		}
		out.Misses = &misses
	}

	if out.Hits != nil && out.Total != nil && *out.Total > 0 {
		out.Correct = *out.Hits == *out.Total
		if tally != nil {
			tally.Good += *out.Hits
			tally.Questions += *out.Total
		}
	} else {
		out.Correct = answer != nil && storedCorrect
		if tally != nil {
			tally.Questions++
			if out.Correct {
				tally.Good++
			}
		}
	}

	out.Completed = answer != nil
	if done, ok := answer["completado"].(bool); ok {
		out.Completed = done
	}
	return out
}

// Result filters accepted by the results page.
const (
	FilterAll   = "todo"
	FilterGood  = "solo_buenas"
	FilterWrong = "solo_malas"
)

// NormalizeFilter falls back to FilterAll for unknown values.
func NormalizeFilter(value string) string {
	switch v := strings.ToLower(strings.TrimSpace(value)); v {
	case FilterGood, FilterWrong:
		return v
	default:
		return FilterAll
	}
}

// Keep reports whether an outcome passes the filter.
func Keep(filter string, outcome Outcome) bool {
	switch filter {
	case FilterGood:
		return outcome.Correct
	case FilterWrong:
		return !outcome.Correct
	default:
		return true
	}
}

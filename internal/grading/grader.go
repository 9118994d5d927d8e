package grading

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Supported structured question types.
const (
	TypeMCQ   = "MCQ"
	TypeTF    = "TF"
	TypeFIB   = "FIB"
	TypeSort  = "SORT"
	TypeMatch = "MATCH"
)

// ErrUnsupportedType is the feedback message for unknown question types.
const ErrUnsupportedType = "Tipo no soportado"

// Feedback is the per-type grading breakdown.
type Feedback map[string]interface{}

// Grade scores answers against a question config. The score is normalised to 0..1.
// kind must match one of the Type constants exactly.
func Grade(kind string, config, answers map[string]interface{}) (float64, Feedback) {
	if config == nil {
		config = map[string]interface{}{}
	}
	if answers == nil {
		answers = map[string]interface{}{}
	}

	switch kind {
	case TypeMCQ:
		return gradeMCQ(config, answers)
	case TypeTF:
		return gradeTF(config, answers)
	case TypeFIB:
		return gradeFIB(config, answers)
	case TypeSort:
		return gradeSort(config, answers)
	case TypeMatch:
		return gradeMatch(config, answers)
	default:
		return 0, Feedback{"error": ErrUnsupportedType}
	}
}

func gradeMCQ(config, answers map[string]interface{}) (float64, Feedback) {
	questions := objectList(config["preguntas"])
	hits := 0
	detail := make([]map[string]interface{}, 0, len(questions))

	for _, question := range questions {
		id := fmt.Sprint(question["id"])
		expected := intSet(question["correctas"])

		var given map[int]struct{}
		raw, answered := answers[id]
		if truthy(question["multiple"]) {
			given = intSet(raw)
		} else if !answered || raw == nil {
			given = map[int]struct{}{-1: {}}
		} else {
			given = intSet([]interface{}{raw})
		}

		ok := reflect.DeepEqual(given, expected)
		if ok {
			hits++
		}
		detail = append(detail, map[string]interface{}{
			"id":        id,
			"correcta":  ok,
			"respuesta": sortedKeys(given),
			"esperada":  sortedKeys(expected),
		})
	}

	return ratio(hits, len(questions)), Feedback{"detalle": detail}
}

func gradeTF(config, answers map[string]interface{}) (float64, Feedback) {
	items := objectList(config["items"])
	hits := 0
	detail := make([]map[string]interface{}, 0, len(items))

	for _, item := range items {
		id := fmt.Sprint(item["id"])
		expected := truthy(item["correcta"])
		given := truthy(answers[id])
		ok := given == expected
		if ok {
			hits++
		}
		detail = append(detail, map[string]interface{}{"id": id, "correcta": ok, "respuesta": given, "esperada": expected})
	}

	return ratio(hits, len(items)), Feedback{"detalle": detail}
}

func gradeFIB(config, answers map[string]interface{}) (float64, Feedback) {
	items := objectList(config["items"])
	hits := 0
	detail := make([]map[string]interface{}, 0, len(items))

	for _, item := range items {
		id := fmt.Sprint(item["id"])
		accepted := map[string]struct{}{}
		for _, value := range list(item["respuestas"]) {
			accepted[normalizeText(value)] = struct{}{}
		}

		given := ""
		if raw, ok := answers[id]; ok && raw != nil {
			given = normalizeText(raw)
		}
		_, ok := accepted[given]
		if ok {
			hits++
		}

		expected := make([]string, 0, len(accepted))
		for value := range accepted {
			expected = append(expected, value)
		}
		sort.Strings(expected)
		detail = append(detail, map[string]interface{}{"id": id, "correcta": ok, "respuesta": given, "esperada": expected})
	}

	return ratio(hits, len(items)), Feedback{"detalle": detail}
}

func gradeSort(config, answers map[string]interface{}) (float64, Feedback) {
	expected := list(config["orden_correcto"])
	given := list(answers["orden"])

	ok := len(expected) == len(given)
	if ok {
		for i := range expected {
			if fmt.Sprint(expected[i]) != fmt.Sprint(given[i]) {
				ok = false
				break
			}
		}
	}

	score := 0.0
	if ok {
		score = 1
	}
	return score, Feedback{"correcta": expected, "respuesta": given}
}

type pair struct {
	left  string
	right string
}

func gradeMatch(config, answers map[string]interface{}) (float64, Feedback) {
	expected := map[pair]struct{}{}
	for _, p := range objectList(config["pares"]) {
		left, _ := p["left"].(map[string]interface{})
		right, _ := p["right"].(map[string]interface{})
		expected[pair{left: fmt.Sprint(left["id"]), right: fmt.Sprint(right["id"])}] = struct{}{}
	}

	given := map[pair]struct{}{}
	for _, p := range objectList(answers["pares"]) {
		given[pair{left: fmt.Sprint(p["left"]), right: fmt.Sprint(p["right"])}] = struct{}{}
	}

	matched := 0
	for p := range given {
		if _, ok := expected[p]; ok {
			matched++
		}
	}
	total := len(expected)
	if total == 0 {
		total = 1
	}

	return float64(matched) / float64(total), Feedback{
		"correctos": matched,
		"total":     total,
		"det": map[string]interface{}{
			"esperado":  pairList(expected),
			"respuesta": pairList(given),
		},
	}
}

func ratio(hits, total int) float64 {
	if total == 0 {
		total = 1
	}
	return float64(hits) / float64(total)
}

func list(value interface{}) []interface{} {
	switch v := value.(type) {
	case []interface{}:
		return v
	case []string:
		out := make([]interface{}, len(v))
		for i := range v {
			out[i] = v[i]
		}
		return out
	case []int:
		out := make([]interface{}, len(v))
		for i := range v {
			out[i] = v[i]
		}
		return out
	default:
		return nil
	}
}

func objectList(value interface{}) []map[string]interface{} {
	if typed, ok := value.([]map[string]interface{}); ok {
		return typed
	}
	raw := list(value)
	out := make([]map[string]interface{}, 0, len(raw))
	for _, entry := range raw {
		if obj, ok := entry.(map[string]interface{}); ok {
			out = append(out, obj)
		}
	}
	return out
}

func intSet(value interface{}) map[int]struct{} {
	set := map[int]struct{}{}
	for _, entry := range list(value) {
		if n, ok := toInt(entry); ok {
			set[n] = struct{}{}
		}
	}
	return set
}

func toInt(value interface{}) (int, bool) {
	switch v := value.(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case int64:
		return int(v), true
	default:
		return 0, false
	}
}

func truthy(value interface{}) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case float64:
		return v != 0
	case int:
		return v != 0
	case string:
		return v != ""
	case []interface{}:
		return len(v) > 0
	case map[string]interface{}:
		return len(v) > 0
	default:
		return true
	}
}

func normalizeText(value interface{}) string {
	return strings.ToLower(strings.TrimSpace(fmt.Sprint(value)))
}

func sortedKeys(set map[int]struct{}) []int {
	out := make([]int, 0, len(set))
	for key := range set {
		out = append(out, key)
	}
	sort.Ints(out)
	return out
}

func pairList(set map[pair]struct{}) [][2]string {
	out := make([][2]string, 0, len(set))
	for p := range set {
		out = append(out, [2]string{p.left, p.right})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i][0] != out[j][0] {
			return out[i][0] < out[j][0]
		}
		return out[i][1] < out[j][1]
	})
	return out
}

package minigame

import (
	"embed"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Item types accepted by the activity builder.
const (
	ItemTypeGame       = "game"
	ItemTypeGameConfig = "game_config"
)

// Minigame kinds.
const (
	KindDragMatch = "dragmatch"
	KindMemory    = "memory"
	KindTrivia    = "trivia"
	KindClassify  = "classify"
	KindCloze     = "cloze"
	KindOrdering  = "ordering"
	KindTrueFalse = "vf"
	KindLabyrinth = "labyrinth"
	KindShop      = "shop"
)

const (
	// DefaultConfigStatement labels configuration items created without a statement.
	DefaultConfigStatement = "Configuración del minijuego"
	// DefaultHint is shown when the item carries no hint of its own.
	DefaultHint = "Piensa en los conceptos clave que viste en clase."

	minTimeLimit = 5
	maxTimeLimit = 3600
	clozeHole    = "___"
)

// Kinds lists every supported kind with its builder label.
var Kinds = []struct {
	Kind  string `json:"kind"`
	Label string `json:"label"`
}{
	{KindDragMatch, "Drag & Match"},
	{KindMemory, "Memoria (pares)"},
	{KindTrivia, "Trivia (opción múltiple)"},
	{KindTrueFalse, "Verdadero / Falso"},
	{KindClassify, "Clasificar en categorías"},
	{KindCloze, "Completar (cloze)"},
	{KindOrdering, "Ordenar pasos"},
	{KindLabyrinth, "Laberinto de puertas"},
	{KindShop, "Tiendita (precios)"},
}

// Error is a builder validation failure suitable for showing to the author.
type Error struct {
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func invalid(format string, args ...interface{}) error {
	return &Error{Message: fmt.Sprintf(format, args...)}
}

// IsValidationError reports whether err came from item validation.
func IsValidationError(err error) bool {
	var target *Error
	return errors.As(err, &target)
}

// Input is the raw builder submission for one item.
type Input struct {
	Type      string
	Statement string
	Kind      string
	TimeLimit *int
	Data      map[string]interface{}
}

// Normalized is the validated item ready to persist.
type Normalized struct {
	Type      string
	Statement string
	Data      map[string]interface{}
}

//go:embed schemas/*.json
var schemaFS embed.FS

var (
	schemaOnce sync.Once
	schemas    map[string]*jsonschema.Schema
	schemaErr  error
)

var schemaFiles = map[string]string{
	KindDragMatch:      "pairs.json",
	KindMemory:         "pairs.json",
	KindTrivia:         "trivia.json",
	KindClassify:       "classify.json",
	KindCloze:          "cloze.json",
	KindOrdering:       "ordering.json",
	KindTrueFalse:      "vf.json",
	ItemTypeGameConfig: "game_config.json",
}

func loadSchemas() (map[string]*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiled := make(map[string]*jsonschema.Schema, len(schemaFiles))
		for key, file := range schemaFiles {
			raw, err := schemaFS.ReadFile("schemas/" + file)
			if err != nil {
				schemaErr = err
				return
			}
			schema, err := jsonschema.CompileString(file, string(raw))
			if err != nil {
				schemaErr = fmt.Errorf("compile %s: %w", file, err)
				return
			}
			compiled[key] = schema
		}
		schemas = compiled
	})
	return schemas, schemaErr
}

// Validate checks a builder item and returns its normalized form.
func Validate(in Input) (Normalized, error) {
	switch strings.ToLower(strings.TrimSpace(in.Type)) {
	case ItemTypeGame, "":
		return validateGame(in)
	case ItemTypeGameConfig:
		return validateConfig(in)
	default:
		return Normalized{}, invalid("only %q and %q items are supported", ItemTypeGame, ItemTypeGameConfig)
	}
}

func validateGame(in Input) (Normalized, error) {
	payload := in.Data
	if payload == nil {
		payload = map[string]interface{}{}
	}

	kind := normalizeKind(in.Kind)
	if kind == "" {
		if raw, ok := payload["kind"].(string); ok {
			kind = normalizeKind(raw)
		}
	}
	if !IsKind(kind) {
		if kind == "" {
			kind = "(empty)"
		}
		return Normalized{}, invalid("unsupported game kind: %s", kind)
	}

	data := map[string]interface{}{"kind": kind}

	if limit, ok := timeLimit(in.TimeLimit, payload); ok {
		if limit < minTimeLimit || limit > maxTimeLimit {
			return Normalized{}, invalid("time limit must be between %d and %d seconds", minTimeLimit, maxTimeLimit)
		}
		data["timeLimit"] = limit
	}

	if err := checkSchema(kind, payload); err != nil {
		return Normalized{}, err
	}

	switch kind {
	case KindDragMatch, KindMemory:
		pairs := asList(payload["pairs"])
		for _, entry := range pairs {
			pair := asList(entry)
			if len(pair) != 2 || blank(pair[0]) || blank(pair[1]) {
				return Normalized{}, invalid("define at least one valid pair (A and B)")
			}
		}
		data["pairs"] = pairs

	case KindTrivia:
		questions := asList(payload["questions"])
		for _, entry := range questions {
			question, _ := entry.(map[string]interface{})
			opts := asList(question["opts"])
			if blank(question["q"]) || len(opts) < 2 {
				return Normalized{}, invalid("each question needs text and at least 2 options")
			}
			for _, opt := range opts {
				if blank(opt) {
					return Normalized{}, invalid("each question needs text and at least 2 options")
				}
			}
			if raw, exists := question["ans"]; exists {
				ans, ok := raw.(float64)
				if !ok || ans != float64(int(ans)) || int(ans) < 0 || int(ans) >= len(opts) {
					return Normalized{}, invalid("answer index out of range")
				}
			}
		}
		data["questions"] = questions

	case KindClassify:
		data["categories"] = asList(payload["categories"])
		data["items"] = asList(payload["items"])

	case KindCloze:
		text := fmt.Sprint(payload["text"])
		answers := asList(payload["answers"])
		if holes := strings.Count(text, clozeHole); holes > 0 && len(answers) != holes {
			return Normalized{}, invalid("the number of answers must match the %s holes", clozeHole)
		}
		if answers == nil {
			answers = []interface{}{}
		}
		data["text"] = text
		data["answers"] = answers
		if bank, exists := payload["bank"]; exists {
			list := asList(bank)
			if list == nil {
				list = []interface{}{}
			}
			data["bank"] = list
		}

	case KindOrdering:
		steps := asList(payload["steps"])
		for _, step := range steps {
			if blank(step) {
				return Normalized{}, invalid("add at least 2 steps")
			}
		}
		data["steps"] = steps

	case KindTrueFalse:
		data["statements"] = asList(payload["statements"])

	case KindLabyrinth, KindShop:
		for key, value := range payload {
			if key == "kind" || key == "timeLimit" || key == "time_limit" {
				continue
			}
			data[key] = value
		}
	}

	if hint, ok := payload["hint"].(string); ok && strings.TrimSpace(hint) != "" {
		data["hint"] = strings.TrimSpace(hint)
	}

	return Normalized{Type: ItemTypeGame, Statement: strings.TrimSpace(in.Statement), Data: data}, nil
}

func validateConfig(in Input) (Normalized, error) {
	cfg := in.Data
	if cfg == nil {
		cfg = map[string]interface{}{}
	}

	if err := checkSchema(ItemTypeGameConfig, cfg); err != nil {
		return Normalized{}, err
	}

	mode := "id"
	if raw, ok := cfg["mapping_mode"].(string); ok && strings.TrimSpace(raw) != "" {
		mode = strings.ToLower(strings.TrimSpace(raw))
	}
	if mode != "id" && mode != "index" {
		return Normalized{}, invalid(`mapping_mode must be "id" or "index"`)
	}

	if raw, exists := cfg["fallback_correct"]; exists {
		n, ok := raw.(float64)
		if !ok || n != float64(int(n)) || n < 0 {
			return Normalized{}, invalid("fallback_correct must be an integer >= 0 (0-based)")
		}
	}

	statement := strings.TrimSpace(in.Statement)
	if statement == "" {
		statement = DefaultConfigStatement
	}

	return Normalized{Type: ItemTypeGameConfig, Statement: statement, Data: cfg}, nil
}

func checkSchema(key string, payload map[string]interface{}) error {
	compiled, err := loadSchemas()
	if err != nil {
		return err
	}
	schema, ok := compiled[key]
	if !ok {
		return nil
	}
	if err := schema.Validate(payload); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			return invalid("invalid %s data: %s", key, leafMessage(verr))
		}
		return invalid("invalid %s data", key)
	}
	return nil
}

func leafMessage(err *jsonschema.ValidationError) string {
	for len(err.Causes) > 0 {
		err = err.Causes[0]
	}
	location := err.InstanceLocation
	if location == "" {
		location = "/"
	}
	return location + " " + err.Message
}

// Hint returns the item hint or the default text.
func Hint(data map[string]interface{}) string {
	if hint, ok := data["hint"].(string); ok && strings.TrimSpace(hint) != "" {
		return strings.TrimSpace(hint)
	}
	return DefaultHint
}

// KindOf reads the kind stored in item data, defaulting to trivia.
func KindOf(data map[string]interface{}) string {
	if kind, ok := data["kind"].(string); ok && kind != "" {
		return normalizeKind(kind)
	}
	return KindTrivia
}

// IsKind reports whether kind is a supported minigame.
func IsKind(kind string) bool {
	for _, entry := range Kinds {
		if entry.Kind == kind {
			return true
		}
	}
	return false
}

func normalizeKind(kind string) string {
	return strings.ToLower(strings.TrimSpace(kind))
}

func timeLimit(explicit *int, payload map[string]interface{}) (int, bool) {
	if explicit != nil && *explicit != 0 {
		return *explicit, true
	}
	for _, key := range []string{"timeLimit", "time_limit"} {
		if value, ok := payload[key].(float64); ok && value != 0 {
			return int(value), true
		}
	}
	return 0, false
}

func asList(value interface{}) []interface{} {
	list, _ := value.([]interface{})
	return list
}

func blank(value interface{}) bool {
	if value == nil {
		return true
	}
	return strings.TrimSpace(fmt.Sprint(value)) == ""
}

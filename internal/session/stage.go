package session

import "fmt"

// Stage is the position of a session in the fridge-to-recipe workflow.
// Stages are ordered; an action is allowed from its minimum stage onwards.
type Stage int

const (
	Idle Stage = iota
	ImagesUploaded
	IngredientsExtracted
	IngredientsConfirmed
	RecipesGenerated
	RecipeSelected
	DocumentRendered
)

var stageNames = [...]string{
	Idle:                 "idle",
	ImagesUploaded:       "images_uploaded",
	IngredientsExtracted: "ingredients_extracted",
	IngredientsConfirmed: "ingredients_confirmed",
	RecipesGenerated:     "recipes_generated",
	RecipeSelected:       "recipe_selected",
	DocumentRendered:     "document_rendered",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageNames[s]
}

func (s Stage) MarshalText() ([]byte, error) {
	if s < 0 || int(s) >= len(stageNames) {
		return nil, fmt.Errorf("unknown stage %d", int(s))
	}
	return []byte(stageNames[s]), nil
}

func (s *Stage) UnmarshalText(text []byte) error {
	for i, name := range stageNames {
		if name == string(text) {
			*s = Stage(i)
			return nil
		}
	}
	return fmt.Errorf("unknown stage %q", text)
}

// Action names a step of the Orchestrator
type Action string

const (
	ActionUpload          Action = "upload"
	ActionClearImages     Action = "clear_images"
	ActionExtract         Action = "extract"
	ActionEditIngredients Action = "edit_ingredients"
	ActionConfirm         Action = "confirm"
	ActionGenerate        Action = "generate"
	ActionSelect          Action = "select"
	ActionRender          Action = "render"
)

// minStage is the transition table: the earliest stage each action may run from
var minStage = map[Action]Stage{
	ActionUpload:          Idle,
	ActionClearImages:     Idle,
	ActionExtract:         ImagesUploaded,
	ActionEditIngredients: IngredientsExtracted,
	ActionConfirm:         IngredientsExtracted,
	ActionGenerate:        IngredientsConfirmed,
	ActionSelect:          RecipesGenerated,
	ActionRender:          RecipeSelected,
}

// Allowed reports whether action may run from stage s
func (s Stage) Allowed(action Action) bool {
	min, ok := minStage[action]
	return ok && s >= min
}

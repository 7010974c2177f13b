package scanning

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/zombor/fridge-chef/internal/kitchen"
	"github.com/zombor/fridge-chef/internal/llm"
)

// ingredientItem accepts both `"Egg"` and `{"name": "Egg", "quantity": 6}`
type ingredientItem struct {
	Name     llm.FlexString `json:"name"`
	Quantity llm.FlexString `json:"quantity"`
	Unit     llm.FlexString `json:"unit"`
}

func (i *ingredientItem) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*i = ingredientItem{Name: llm.FlexString(strings.TrimSpace(name))}
		return nil
	}
	type plain ingredientItem
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*i = ingredientItem(p)
	return nil
}

// parseIngredients parses the JSON response from the vision model.
// Items that cannot be decoded are skipped; the reply is rejected only when
// nothing usable remains.
func parseIngredients(text string) ([]kitchen.Ingredient, error) {
	payload, err := llm.ExtractJSON(text)
	if err != nil {
		return nil, &ExtractionParseError{Raw: text, Err: err}
	}

	var items []json.RawMessage
	if payload[0] == '{' {
		var envelope struct {
			Ingredients []json.RawMessage `json:"ingredients"`
			Items       []json.RawMessage `json:"items"`
		}
		if err := json.Unmarshal([]byte(payload), &envelope); err != nil {
			return nil, &ExtractionParseError{Raw: text, Err: fmt.Errorf("unmarshaling json: %w", err)}
		}
		if envelope.Ingredients == nil && envelope.Items == nil {
			return nil, &ExtractionParseError{Raw: text, Err: errors.New(`missing "ingredients" field`)}
		}
		items = envelope.Ingredients
		if items == nil {
			items = envelope.Items
		}
	} else if err := json.Unmarshal([]byte(payload), &items); err != nil {
		return nil, &ExtractionParseError{Raw: text, Err: fmt.Errorf("unmarshaling json: %w", err)}
	}

	ingredients := make([]kitchen.Ingredient, 0, len(items))
	malformed := 0
	for _, raw := range items {
		var item ingredientItem
		if err := json.Unmarshal(raw, &item); err != nil || item.Name == "" {
			malformed++
			continue
		}
		ingredients = append(ingredients, kitchen.Ingredient{
			Name:     string(item.Name),
			Quantity: string(item.Quantity),
			Unit:     string(item.Unit),
		})
	}

	if len(items) > 0 && malformed == len(items) {
		return nil, &ExtractionParseError{Raw: text, Err: fmt.Errorf("none of the %d list items is an ingredient", len(items))}
	}

	ingredients = kitchen.DedupeIngredients(ingredients)
	if len(ingredients) == 0 {
		return nil, ErrNoIngredients
	}
	return ingredients, nil
}

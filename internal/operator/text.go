package operator

import "github.com/roach88/textflow/internal/value"

func textInputDefinition() Definition {
	return Definition{
		Kind:    KindTextInput,
		Name:    "Text Input",
		Outputs: []Port{{ID: "text", Name: "Text"}},
		Transform: func(_ []value.Value, config value.Object) ([]value.Value, error) {
			text, ok := config["text"]
			if !ok {
				return []value.Value{value.Undefined{}}, nil
			}
			return []value.Value{value.Clone(text)}, nil
		},
		Defaults: value.Object{"text": value.String("Hello World")},
	}
}

func textDisplayDefinition() Definition {
	return Definition{
		Kind:   KindTextDisplay,
		Name:   "Text Display",
		Inputs: []Port{{ID: "text", Name: "Text"}},
		Transform: func(_ []value.Value, _ value.Object) ([]value.Value, error) {
			return nil, nil
		},
		Display: true,
	}
}

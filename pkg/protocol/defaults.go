package protocol

// TextDefaults fills absent fields of completion and chat requests.
type TextDefaults struct {
	Prompt       string  `yaml:"prompt"`
	SystemPrompt string  `yaml:"system_prompt"`
	MaxTokens    int     `yaml:"max_tokens"`
	Temperature  float64 `yaml:"temperature"`
}

// ImageDefaults fills absent fields of image requests. The image itself
// has no default.
type ImageDefaults struct {
	Prompt       string `yaml:"prompt"`
	SystemPrompt string `yaml:"system_prompt"`
}

// Defaults holds the per-kind request defaults.
type Defaults struct {
	Completion TextDefaults  `yaml:"completion"`
	Chat       TextDefaults  `yaml:"chat"`
	Image      ImageDefaults `yaml:"image"`
}

// StandardDefaults returns the built-in request defaults.
// MaxTokens -1 means no limit on the local runtime.
func StandardDefaults() Defaults {
	return Defaults{
		Completion: TextDefaults{
			Prompt:       `Say: "this is a test".`,
			SystemPrompt: "You are a helpful assistant.",
			MaxTokens:    -1,
			Temperature:  0.7,
		},
		Chat: TextDefaults{
			Prompt:       "Say this is a test",
			SystemPrompt: "You are William Shakespeare and speak like in the 1590s.",
			MaxTokens:    -1,
			Temperature:  0.7,
		},
		Image: ImageDefaults{
			Prompt:       "Describe the image provided.",
			SystemPrompt: "You are a helpful assistant.",
		},
	}
}

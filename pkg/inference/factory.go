package inference

import "fmt"

// New builds the provider named by kind ("ollama" or "openai").
func New(kind string, opts ...Option) (Provider, error) {
	switch kind {
	case providerOllama:
		return NewOllama(opts...)
	case providerOpenAI:
		return NewClient(opts...)
	default:
		return nil, fmt.Errorf("inference: unknown provider %q", kind)
	}
}

package mock

import "github.com/poiesic/docindex/ai"

// Provider bundles the mock services behind the ai.Provider contract.
type Provider struct {
	embedder  *Embedder
	extractor *FieldExtractor
}

var _ ai.Provider = (*Provider)(nil)

// NewProvider creates a provider backed by the mock services.
func NewProvider() *Provider {
	return &Provider{
		embedder:  NewEmbedder(),
		extractor: NewFieldExtractor(),
	}
}

// Embedder returns the deterministic mock embedder.
func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

// FieldExtractor returns the mock field extractor.
func (p *Provider) FieldExtractor() ai.FieldExtractor {
	return p.extractor
}

// Close is a no-op.
func (p *Provider) Close() error {
	return nil
}

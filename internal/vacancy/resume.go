package vacancy

import (
	"strings"
	"time"
)

type Resume struct {
	ID        string    `json:"id,omitempty" mapstructure:"id"`
	Name      string    `json:"name" mapstructure:"name"`
	Email     string    `json:"email,omitempty" mapstructure:"email"`
	Text      string    `json:"text" mapstructure:"text"`
	Active    bool      `json:"active" mapstructure:"active"`
	Embedding []float32 `json:"-" mapstructure:"embedding"`
	CreatedAt time.Time `json:"created_at,omitempty" mapstructure:"created_at"`
	UpdatedAt time.Time `json:"updated_at,omitempty" mapstructure:"updated_at"`
}

// EmbeddingText is the text that represents the résumé in vector space.
func (r *Resume) EmbeddingText() string {
	name := strings.TrimSpace(r.Name)
	text := strings.TrimSpace(r.Text)
	if name == "" {
		return text
	}
	return name + "\n\n" + text
}

// HasEmbedding reports whether a non-empty vector is attached.
func (r *Resume) HasEmbedding() bool {
	return len(r.Embedding) > 0
}

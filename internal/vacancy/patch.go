package vacancy

import (
	"fmt"
	"strings"
	"time"
)

// VacancyPatch carries partial updates. Nil fields are left untouched.
type VacancyPatch struct {
	Title       *string `json:"title,omitempty"`
	Company     *string `json:"company,omitempty"`
	Location    *string `json:"location,omitempty"`
	Hours       *string `json:"hours,omitempty"`
	Rate        *string `json:"rate,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty"`
}

func (p VacancyPatch) Validate() error {
	if p.Status != nil && !IsValidStatus(*p.Status) {
		return fmt.Errorf("unknown vacancy status %q", *p.Status)
	}
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return fmt.Errorf("title must not be empty")
	}
	return nil
}

// Apply returns a copy of v with the patch applied.
func (p VacancyPatch) Apply(v *Vacancy, now time.Time) *Vacancy {
	out := *v
	setString(&out.Title, p.Title)
	setString(&out.Company, p.Company)
	setString(&out.Location, p.Location)
	setString(&out.Hours, p.Hours)
	setString(&out.Rate, p.Rate)
	setString(&out.Description, p.Description)
	setString(&out.Status, p.Status)
	out.UpdatedAt = now
	return &out
}

// Fields returns the canonical field names touched by the patch with their values.
func (p VacancyPatch) Fields() map[string]any {
	fields := map[string]any{}
	putString(fields, "title", p.Title)
	putString(fields, "company", p.Company)
	putString(fields, "location", p.Location)
	putString(fields, "hours", p.Hours)
	putString(fields, "rate", p.Rate)
	putString(fields, "description", p.Description)
	putString(fields, "status", p.Status)
	return fields
}

// ResumePatch carries partial résumé updates.
type ResumePatch struct {
	Name   *string `json:"name,omitempty"`
	Email  *string `json:"email,omitempty"`
	Text   *string `json:"text,omitempty"`
	Active *bool   `json:"active,omitempty"`
}

func (p ResumePatch) Validate() error {
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return fmt.Errorf("name must not be empty")
	}
	if p.Text != nil && strings.TrimSpace(*p.Text) == "" {
		return fmt.Errorf("text must not be empty")
	}
	return nil
}

// TextChanged reports whether the patch requires a new embedding.
func (p ResumePatch) TextChanged(r *Resume) bool {
	return (p.Text != nil && *p.Text != r.Text) || (p.Name != nil && *p.Name != r.Name)
}

func (p ResumePatch) Apply(r *Resume, now time.Time) *Resume {
	out := *r
	setString(&out.Name, p.Name)
	setString(&out.Email, p.Email)
	setString(&out.Text, p.Text)
	if p.Active != nil {
		out.Active = *p.Active
	}
	out.UpdatedAt = now
	return &out
}

func (p ResumePatch) Fields() map[string]any {
	fields := map[string]any{}
	putString(fields, "name", p.Name)
	putString(fields, "email", p.Email)
	putString(fields, "text", p.Text)
	if p.Active != nil {
		fields["active"] = *p.Active
	}
	return fields
}

// MatchPatch carries a review decision.
type MatchPatch struct {
	Status *string `json:"status,omitempty"`
}

func (p MatchPatch) Validate() error {
	if p.Status == nil {
		return fmt.Errorf("status is required")
	}
	if !IsValidMatchStatus(*p.Status) {
		return fmt.Errorf("unknown match status %q", *p.Status)
	}
	return nil
}

func (p MatchPatch) Apply(m *Match) *Match {
	out := *m
	setString(&out.Status, p.Status)
	return &out
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

func putString(fields map[string]any, key string, v *string) {
	if v != nil {
		fields[key] = strings.TrimSpace(*v)
	}
}

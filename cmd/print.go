package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/spigell/vacancy-matcher/internal/store"
	"github.com/spigell/vacancy-matcher/internal/utils"
	"github.com/spigell/vacancy-matcher/internal/vacancy"
)

const ruleWidth = 110

func clip(s string, width int) string {
	if len([]rune(s)) <= width {
		return s
	}
	return utils.TruncateForLog(s, width-3)
}

func header(w io.Writer, format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	fmt.Fprintln(w, color.New(color.Bold).Sprint(line))
	fmt.Fprintln(w, strings.Repeat("-", ruleWidth))
}

// scoreString pads before colouring so that columns stay aligned.
func scoreString(m *vacancy.Match, minScore float64) string {
	s := fmt.Sprintf("%-6.2f", m.Score)
	switch {
	case m.Error != "":
		return color.MagentaString(s)
	case m.Fit && m.Score >= minScore:
		return color.GreenString(s)
	case m.Score >= minScore/2:
		return color.YellowString(s)
	default:
		return color.RedString(s)
	}
}

func printVacancies(w io.Writer, items []*vacancy.Vacancy) {
	header(w, "%-36s %-9s %-22s %-28s %s", "ID", "Status", "Company", "Title", "URL")
	for _, v := range items {
		fmt.Fprintf(w, "%-36s %-9s %-22s %-28s %s\n",
			v.ID, v.Status, clip(v.Company, 22), clip(v.Title, 28), v.URL)
	}
}

func printResumes(w io.Writer, items []*vacancy.Resume) {
	header(w, "%-36s %-6s %-9s %-24s %s", "ID", "Active", "Embedded", "Name", "Email")
	for _, r := range items {
		fmt.Fprintf(w, "%-36s %-6t %-9t %-24s %s\n", r.ID, r.Active, r.HasEmbedding(), clip(r.Name, 24), r.Email)
	}
}

// names resolves vacancy titles and résumé names for display. Unknown ids
// are shown as is.
type names struct {
	store     store.Store
	vacancies *vacancy.Vacancies
	resumes   map[string]string
}

func newNames(s store.Store) *names {
	return &names{store: s, vacancies: &vacancy.Vacancies{}, resumes: map[string]string{}}
}

func (n *names) vacancy(ctx context.Context, id string) *vacancy.Vacancy {
	if v := n.vacancies.FindByID(id); v != nil {
		return v
	}
	v, err := n.store.GetVacancy(ctx, id)
	if err != nil {
		v = &vacancy.Vacancy{ID: id, Title: id}
	}
	n.vacancies.Items = append(n.vacancies.Items, v)
	return v
}

func (n *names) resume(ctx context.Context, id string) string {
	if name, ok := n.resumes[id]; ok {
		return name
	}
	name := id
	if r, err := n.store.GetResume(ctx, id); err == nil && r.Name != "" {
		name = r.Name
	}
	n.resumes[id] = name
	return name
}

func printMatches(ctx context.Context, w io.Writer, n *names, items []*vacancy.Match, minScore float64) {
	header(w, "%-6s %-11s %-20s %-28s %-22s %s", "Score", "Status", "Candidate", "Vacancy", "Company", "ID")
	for _, m := range items {
		v := n.vacancy(ctx, m.VacancyID)
		fmt.Fprintf(w, "%s %-11s %-20s %-28s %-22s %s\n",
			scoreString(m, minScore), m.Status, clip(n.resume(ctx, m.ResumeID), 20),
			clip(v.Title, 28), clip(v.Company, 22), m.ID)
	}
}

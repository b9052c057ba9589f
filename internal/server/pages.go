package server

import (
	"fmt"
	"net/http"
	"strings"

	g "maragu.dev/gomponents"
	. "maragu.dev/gomponents/html"

	"github.com/smtindex/smtindex/internal/utils"
	"github.com/smtindex/smtindex/pkg/catalog"
	"github.com/smtindex/smtindex/pkg/sources"
	"github.com/smtindex/smtindex/pkg/storage"
)

const homeChangesLimit = 20

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status, query := q.Get("status"), q.Get("q")
	templates := filterTemplates(s.Catalog.Templates, status, query, q.Get("fuzzy") == "true")

	var changes []storage.Change
	if s.DB != nil {
		var err error
		changes, err = s.DB.ListRecentChanges(r.Context(), homeChangesLimit)
		if err != nil {
			utils.Log.Warnf("Listing changes for home page: %v", err)
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageLayout("SMT Index",
		catalogContent(s.Catalog, templates, status, query),
		g.If(len(changes) > 0, changesContent(changes)),
	).Render(w); err != nil {
		utils.Log.Debugf("Rendering home page: %v", err)
	}
}

func pageLayout(title string, content ...g.Node) g.Node {
	return g.Group([]g.Node{
		g.Raw("<!DOCTYPE html>"),
		HTML(Lang("en"),
			Head(
				Meta(Charset("UTF-8")),
				Meta(Name("viewport"), Content("width=device-width, initial-scale=1.0")),
				TitleEl(g.Text(title)),
				Script(Src("https://cdn.tailwindcss.com")),
			),
			Body(Class("bg-slate-950 text-slate-200 font-sans"),
				Main(Class("max-w-6xl mx-auto px-4 py-8 space-y-10"),
					H1(Class("text-3xl font-bold text-white"), g.Text(title)),
					g.Group(content),
				),
			),
		),
	})
}

func catalogContent(c *catalog.Catalog, templates []catalog.TemplateRecord, status, query string) g.Node {
	rows := make([]g.Node, 0, len(templates))
	for _, t := range templates {
		rows = append(rows, templateRow(t))
	}

	return Section(
		P(Class("text-sm text-slate-400 mb-4"),
			g.Textf("%d of %d templates, generated %s", len(templates), len(c.Templates), c.GeneratedAt.Time.Format("2006-01-02 15:04 MST")),
		),
		searchForm(status, query),
		Table(Class("w-full text-sm"),
			THead(
				Tr(Class("text-left text-slate-400 border-b border-slate-800"),
					Th(Class("py-2"), g.Text("ID")),
					Th(g.Text("Name")),
					Th(g.Text("Status")),
					Th(g.Text("Latest")),
					Th(g.Text("Versions")),
				),
			),
			TBody(g.Group(rows)),
		),
	)
}

func searchForm(status, query string) g.Node {
	options := []g.Node{Option(Value(""), g.Text("All statuses"))}
	for _, st := range sources.Statuses {
		options = append(options, Option(Value(string(st)), g.If(strings.EqualFold(status, string(st)), Selected()), g.Text(string(st))))
	}

	return Form(Method("get"), Action("/"), Class("flex gap-2 mb-4"),
		Input(Type("search"), Name("q"), Value(query), Placeholder("Search templates"),
			Class("flex-1 bg-slate-900 border border-slate-700 rounded px-3 py-1.5")),
		Select(Name("status"), Class("bg-slate-900 border border-slate-700 rounded px-2"), g.Group(options)),
		Button(Type("submit"), Class("bg-cyan-700 rounded px-4"), g.Text("Filter")),
	)
}

func templateRow(t catalog.TemplateRecord) g.Node {
	latest := g.Node(Span(Class("text-slate-500"), g.Text("-")))
	if v, ok := t.Latest(); ok {
		latest = versionLink(v)
	}

	return Tr(Class("border-b border-slate-900 align-top"),
		Td(Class("py-1.5 pr-3 font-mono text-xs"), A(Href("/templates/"+t.ID), g.Text(t.ID))),
		Td(Class("pr-3"), g.Text(t.Name)),
		Td(Class("pr-3"), statusBadge(t.Status)),
		Td(Class("pr-3"), latest),
		Td(g.Textf("%d", len(t.Versions))),
	)
}

func versionLink(v catalog.TemplateVersion) g.Node {
	switch {
	case v.Links.GitHub != nil && *v.Links.GitHub != "":
		return A(Href(*v.Links.GitHub), Class("text-cyan-400"), g.Text(v.Version))
	case v.Links.PDF != nil && *v.Links.PDF != "":
		return A(Href(*v.Links.PDF), Class("text-cyan-400"), g.Text(v.Version))
	}
	return g.Text(v.Version)
}

// statusBadge renders a colored badge for the template status.
func statusBadge(status sources.Status) g.Node {
	colors := "bg-slate-700 text-slate-300"
	switch status {
	case sources.StatusPublished:
		colors = "bg-emerald-900/50 text-emerald-300 border border-emerald-800"
	case sources.StatusInReview:
		colors = "bg-amber-900/50 text-amber-300 border border-amber-800"
	case sources.StatusInDevelopment:
		colors = "bg-blue-900/50 text-blue-300 border border-blue-800"
	case sources.StatusProposal:
		colors = "bg-purple-900/50 text-purple-300 border border-purple-800"
	}
	return Span(Class("inline-flex items-center px-2 py-0.5 text-[11px] font-semibold rounded-md "+colors), g.Text(string(status)))
}

func changesContent(changes []storage.Change) g.Node {
	items := make([]g.Node, 0, len(changes))
	for _, c := range changes {
		label := c.TemplateID
		if c.Version != "" {
			label = fmt.Sprintf("%s %s", c.TemplateID, c.Version)
		}
		items = append(items, Li(Class("flex gap-3 items-center"),
			Span(Class("text-slate-500 text-xs w-36"), g.Text(c.OccurredAt.Format("2006-01-02 15:04"))),
			changeBadge(c.ChangeType),
			Span(Class("font-mono text-xs"), g.Text(label)),
		))
	}
	return Section(
		H2(Class("text-xl font-semibold text-white mb-3"), g.Text("Recent changes")),
		Ul(Class("space-y-1 text-sm"), g.Group(items)),
	)
}

// changeBadge renders a colored badge for the change type.
func changeBadge(changeType string) g.Node {
	colors := "bg-slate-700 text-slate-300"
	switch changeType {
	case storage.ChangeAdded:
		colors = "bg-emerald-900/50 text-emerald-300 border border-emerald-800"
	case storage.ChangeRemoved:
		colors = "bg-red-900/50 text-red-300 border border-red-800"
	case storage.ChangeUpdated:
		colors = "bg-amber-900/50 text-amber-300 border border-amber-800"
	}
	return Span(Class("inline-flex items-center px-2 py-0.5 text-[11px] font-semibold rounded-md "+colors), g.Text(changeType))
}

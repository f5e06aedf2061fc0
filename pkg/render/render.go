// Package render maps answer responses to display output. Rendering is pure:
// it has no side effects and never fails on its own content.
package render

import (
	"fmt"
	"html/template"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/rizome-dev/researchgo/pkg/models"
)

const (
	AnswerHeading    = "Answer"
	CitationsHeading = "Citations:"
	NeedMoreHeading  = "Not enough information"
	NeedMoreHint     = "Try asking a more specific or related question:"
)

// Item is one list entry. Items with an Href render as links.
type Item struct {
	Text string
	Href string
}

// Output is the display representation of a response
type Output struct {
	Variant   models.Variant
	Heading   string
	Body      string
	ListTitle string
	Items     []Item
}

// Empty reports whether there is nothing to display
func (o Output) Empty() bool {
	return o.Heading == ""
}

// Render maps a response to its display output. A nil response or an
// unrecognized status yields empty output.
func Render(resp *models.AnswerResponse) Output {
	switch resp.Variant() {
	case models.VariantComplete:
		items := make([]Item, 0, len(resp.Complete.Citations))
		for _, c := range resp.Complete.Citations {
			items = append(items, Item{
				Text: fmt.Sprintf("[%s] %s", c.ID, c.Title),
				Href: c.URL,
			})
		}
		return Output{
			Variant:   models.VariantComplete,
			Heading:   AnswerHeading,
			Body:      resp.Complete.Answer,
			ListTitle: CitationsHeading,
			Items:     items,
		}
	case models.VariantNeedMoreInfo:
		items := make([]Item, 0, len(resp.NeedMoreInfo.NewQueries))
		for _, q := range resp.NeedMoreInfo.NewQueries {
			items = append(items, Item{Text: q})
		}
		return Output{
			Variant: models.VariantNeedMoreInfo,
			Heading: NeedMoreHeading,
			Body:    NeedMoreHint,
			Items:   items,
		}
	case models.VariantUnrecognized:
		return Output{}
	}
	return Output{}
}

var resultTemplate = template.Must(template.New("result").Parse(
	`{{if .Heading}}<div class="result result-{{.Variant}}">` +
		`<h2>{{.Heading}}</h2>` +
		`<p>{{.Body}}</p>` +
		`{{if .ListTitle}}<h3>{{.ListTitle}}</h3>{{end}}` +
		`<ul class="result-list">` +
		`{{range .Items}}<li>{{if .Href}}<a href="{{.Href}}" target="_blank" rel="noreferrer">{{.Text}}</a>{{else}}{{.Text}}{{end}}</li>{{end}}` +
		`</ul></div>{{end}}`))

// HTML renders the output as an HTML fragment. Empty output yields "".
func HTML(out Output) template.HTML {
	var b strings.Builder
	if err := resultTemplate.Execute(&b, out); err != nil {
		return ""
	}
	return template.HTML(b.String())
}

// Markdown renders the output as Markdown, falling back to plain text if
// the HTML cannot be converted.
func Markdown(out Output) string {
	if out.Empty() {
		return ""
	}

	md, err := htmltomarkdown.ConvertString(string(HTML(out)))
	if err != nil {
		return Text(out)
	}
	return md
}

// Text renders the output for a terminal
func Text(out Output) string {
	if out.Empty() {
		return ""
	}

	var b strings.Builder
	b.WriteString(out.Heading)
	b.WriteString("\n")
	b.WriteString(out.Body)
	b.WriteString("\n")
	if out.ListTitle != "" {
		b.WriteString("\n")
		b.WriteString(out.ListTitle)
		b.WriteString("\n")
	}
	for _, item := range out.Items {
		if item.Href != "" {
			fmt.Fprintf(&b, "  %s <%s>\n", item.Text, item.Href)
		} else {
			fmt.Fprintf(&b, "  - %s\n", item.Text)
		}
	}
	return b.String()
}

package portal

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/coursewatch/tracker/internal/assignment"
	"github.com/hazyhaar/coursewatch/tracker/internal/course"
)

// StatusUnknown is the activity status when no completion icon is present.
const StatusUnknown = "Unknown"

// Page is a fetched assignment page. Err is set when the download failed.
type Page struct {
	URL  string
	HTML string
	Err  error
}

var (
	sanitizer   = bluemonday.UGCPolicy()
	mdConverter = converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(),
		),
	)
)

// ParseCourse extracts the sections of a Moodle course page. Sections
// without a name heading are skipped.
func ParseCourse(page string) ([]course.Section, error) {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("portal: parse course page: %w", err)
	}
	sections := []course.Section{}
	for _, li := range findAll(doc, element(atom.Li, "section", "main")) {
		heading := findFirst(li, element(atom.H3, "sectionname"))
		if heading == nil {
			continue
		}
		sec := course.Section{
			ID:         getAttr(li, "id"),
			Name:       textContent(heading),
			Activities: []course.Activity{},
		}
		for _, act := range findAll(li, element(atom.Li, "activity")) {
			name := findFirst(act, element(atom.Span, "instancename"))
			if name == nil {
				continue
			}
			status := StatusUnknown
			if img := findFirst(act, func(n *html.Node) bool {
				return n.Type == html.ElementNode && n.DataAtom == atom.Img && hasAttr(n, "alt")
			}); img != nil {
				status = getAttr(img, "alt")
			}
			sec.Activities = append(sec.Activities, course.Activity{
				Name:   textContent(name),
				Status: status,
			})
		}
		sections = append(sections, sec)
	}
	return sections, nil
}

// ParseAssignmentLinks returns the assignment links listed on a course
// page, resolved against pageURL. Titles mentioning a due date ride along
// in the link fragment.
func ParseAssignmentLinks(page string, pageURL *url.URL) ([]string, error) {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("portal: parse course page: %w", err)
	}
	var links []string
	seen := make(map[string]bool)
	for _, li := range findAll(doc, element(atom.Li, "activity", "assign", "modtype_assign")) {
		a := findFirst(li, element(atom.A, "aalink"))
		if a == nil || !hasAttr(a, "href") {
			continue
		}
		ref, err := url.Parse(strings.TrimSpace(getAttr(a, "href")))
		if err != nil {
			continue
		}
		if pageURL != nil {
			ref = pageURL.ResolveReference(ref)
		}
		ref.Fragment, ref.RawFragment = "", ""
		link := ref.String()
		if seen[link] {
			continue
		}
		seen[link] = true

		if title := textContent(findFirst(a, element(atom.Span, "instancename"))); strings.Contains(strings.ToLower(title), "due") {
			link = assignment.WithTitle(link, title)
		}
		links = append(links, link)
	}
	return links, nil
}

// ParseAssignmentPage reads the name, description and detail table of an
// assignment page.
func ParseAssignmentPage(p Page, courseCode string) (assignment.Raw, error) {
	if p.Err != nil {
		return assignment.Raw{}, fmt.Errorf("portal: assignment page %s: %w", p.URL, p.Err)
	}
	doc, err := html.Parse(strings.NewReader(p.HTML))
	if err != nil {
		return assignment.Raw{}, fmt.Errorf("portal: parse assignment page: %w", err)
	}
	raw := assignment.Raw{
		CourseCode: courseCode,
		SourceURL:  p.URL,
		Details:    make(map[string]string),
	}
	raw.Name = textContent(findFirst(doc, element(atom.H2)))
	if intro := findFirst(doc, byID("intro")); intro != nil {
		raw.Text = textContent(intro)
		raw.Description = describe(intro, p.URL, raw.Text)
	}
	if tbl := findFirst(doc, element(atom.Table, "generaltable")); tbl != nil {
		for _, row := range findAll(tbl, element(atom.Tr)) {
			th := findFirst(row, element(atom.Th))
			td := findFirst(row, element(atom.Td))
			if th == nil || td == nil {
				continue
			}
			raw.Details[textContent(th)] = textContent(td)
		}
	}
	return raw, nil
}

// describe renders the intro block as sanitized markdown, falling back to
// plain.
func describe(intro *html.Node, pageURL, plain string) string {
	clean := sanitizer.Sanitize(innerHTML(intro))
	md, err := mdConverter.ConvertString(clean, converter.WithDomain(pageURL))
	if err != nil || strings.TrimSpace(md) == "" {
		return plain
	}
	return strings.TrimSpace(md)
}

// loginErrorText returns the first error message shown on a login page.
func loginErrorText(doc *html.Node) string {
	for _, match := range []func(*html.Node) bool{
		element(atom.Div, "loginerrors"),
		element(atom.Div, "alert-danger"),
		element(atom.Div, "alert"),
		func(n *html.Node) bool { return n.DataAtom == atom.Div && getAttr(n, "id") == "notice" },
	} {
		if n := findFirst(doc, match); n != nil {
			if t := textContent(n); t != "" {
				return t
			}
		}
	}
	return "no specific error message found"
}

// loginForm describes the Moodle login form.
type loginForm struct {
	action string
	fields url.Values
}

// parseLoginForm reads form#login: its action and every named input that
// is not a submit button.
func parseLoginForm(doc *html.Node) (*loginForm, bool) {
	form := findFirst(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.DataAtom == atom.Form && getAttr(n, "id") == "login"
	})
	if form == nil {
		return nil, false
	}
	lf := &loginForm{action: getAttr(form, "action"), fields: url.Values{}}
	for _, in := range findAll(form, element(atom.Input)) {
		name := getAttr(in, "name")
		if name == "" || strings.EqualFold(getAttr(in, "type"), "submit") {
			continue
		}
		lf.fields.Set(name, getAttr(in, "value"))
	}
	return lf, true
}

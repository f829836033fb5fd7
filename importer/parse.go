// Package importer turns a loosely structured Markdown profile document
// into post and project candidates. Parsing is pure; reading the document
// is left to a Source.
package importer

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/eringen/folio/content"
)

// ProjectNames are the project headings recognized in block mode.
var ProjectNames = []string{
	"AI Content Generator Pro",
	"Social Growth Suite",
	"E-commerce Analytics Pro",
	"AI Video Script Studio",
}

const (
	minSectionLength  = 20
	descriptionLength = 180
)

var (
	htmlTag      = regexp.MustCompile(`<[^>]*>`)
	mdImage      = regexp.MustCompile(`!\[[^\]]*\]\([^)]+\)`)
	mdLink       = regexp.MustCompile(`\[[^\]]+\]\([^)]+\)`)
	titleMarkup  = regexp.MustCompile("[*_`#]")
	bodyMarkup   = regexp.MustCompile("[*_`>#-]")
	boldRun      = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	fencedBlock  = regexp.MustCompile("(?s)```(.*?)```")
	nextHeading3 = regexp.MustCompile(`\n###\s+`)
)

// Section is a second-level heading and its body.
type Section struct {
	Title       string `json:"title"`
	Slug        string `json:"slug"`
	Content     string `json:"content"`
	Description string `json:"description"`
}

// Project is a known project block.
type Project struct {
	Title       string   `json:"title"`
	Slug        string   `json:"slug"`
	Summary     string   `json:"summary"`
	Description string   `json:"description"`
	Content     string   `json:"content"`
	TechStack   string   `json:"techStack"`
	Features    []string `json:"features"`
	Status      string   `json:"status"`
	Featured    bool     `json:"featured"`
	Draft       bool     `json:"draft"`
}

// ParseSections splits doc on "## " headings. Sections whose body is 20
// characters or fewer once markup is stripped are dropped.
func ParseSections(doc string) []Section {
	type raw struct {
		title string
		body  strings.Builder
	}
	var (
		found   []*raw
		current *raw
	)
	flush := func() {
		if current != nil && strings.TrimSpace(current.body.String()) != "" {
			found = append(found, current)
		}
	}
	for _, line := range splitLines(doc) {
		if strings.HasPrefix(line, "## ") {
			flush()
			current = &raw{title: normalizeTitle(strings.TrimLeft(line[2:], " \t"))}
			continue
		}
		if current != nil {
			current.body.WriteString(line)
			current.body.WriteByte('\n')
		}
	}
	flush()

	sections := []Section{}
	for i, r := range found {
		body := r.body.String()
		if len([]rune(plainText(body))) <= minSectionLength {
			continue
		}
		n := strconv.Itoa(i + 1)
		title := r.title
		if title == "" {
			title = "Thong tin " + n
		}
		slug := content.Slugify(title)
		if slug == "" {
			slug = "section-" + n
		}
		sections = append(sections, Section{
			Title:       title,
			Slug:        slug,
			Content:     strings.TrimSpace(body),
			Description: truncate(plainText(body), descriptionLength),
		})
	}
	return sections
}

// ParseProjects extracts every block headed "### <name>" for the names in
// ProjectNames, in that order. A block runs until the next third-level
// heading.
func ParseProjects(doc string) []Project {
	projects := []Project{}
	for _, name := range ProjectNames {
		marker := "### " + name
		start := strings.Index(doc, marker)
		if start < 0 {
			continue
		}
		block := doc[start+len(marker):]
		if loc := nextHeading3.FindStringIndex(block); loc != nil {
			block = block[:loc[0]]
		}

		description := ""
		if m := boldRun.FindStringSubmatch(block); m != nil {
			description = strings.TrimSpace(m[1])
		}
		if description == "" {
			description = name + " project"
		}
		techStack := ""
		if m := fencedBlock.FindStringSubmatch(block); m != nil {
			techStack = collapseSpace(m[1])
		}

		projects = append(projects, Project{
			Title:       name,
			Slug:        content.Slugify(name),
			Summary:     description,
			Description: description,
			Content:     strings.TrimSpace(block),
			TechStack:   techStack,
			Features:    features(block),
			Status:      "active",
			Featured:    true,
			Draft:       false,
		})
	}
	return projects
}

// Candidate is a parsed record ready to be created.
type Candidate struct {
	Slug   string
	Title  string
	Fields content.Input
}

// ParseDocument parses doc in the mode matching kind: section mode for
// posts, block mode for projects.
func ParseDocument(doc string, kind content.Kind) ([]Candidate, error) {
	switch kind {
	case content.KindPost:
		sections := ParseSections(doc)
		out := make([]Candidate, 0, len(sections))
		for _, s := range sections {
			out = append(out, Candidate{Slug: s.Slug, Title: s.Title, Fields: s.Fields()})
		}
		return out, nil
	case content.KindProject:
		projects := ParseProjects(doc)
		out := make([]Candidate, 0, len(projects))
		for _, p := range projects {
			out = append(out, Candidate{Slug: p.Slug, Title: p.Title, Fields: p.Fields()})
		}
		return out, nil
	}
	return nil, fmt.Errorf("importer: unsupported kind %q", kind)
}

// Fields maps the section onto post input.
func (s Section) Fields() content.Input {
	return content.Input{
		"title":       s.Title,
		"slug":        s.Slug,
		"content":     s.Content,
		"description": s.Description,
	}
}

// Fields maps the project onto project input. Features stay in the block
// content; projects have no separate field for them.
func (p Project) Fields() content.Input {
	return content.Input{
		"title":       p.Title,
		"slug":        p.Slug,
		"summary":     p.Summary,
		"description": p.Description,
		"content":     p.Content,
		"techStack":   p.TechStack,
		"status":      p.Status,
		"featured":    p.Featured,
		"draft":       p.Draft,
	}
}

// Defaults fills fields the document does not carry.
type Defaults struct {
	Author  string
	RepoURL string
}

// Apply returns a copy of c with defaults for its kind filled in.
func (d Defaults) Apply(kind content.Kind, c Candidate) Candidate {
	fields := make(content.Input, len(c.Fields)+3)
	for k, v := range c.Fields {
		fields[k] = v
	}
	switch kind {
	case content.KindPost:
		author := d.Author
		if author == "" {
			author = "Admin"
		}
		fields["author"] = author
		fields["categories"] = []string{"thongtin", "profile"}
		fields["tags"] = []string{"thongtin-md", "import"}
		fields["featured"] = false
		fields["draft"] = false
	case content.KindProject:
		fields["repoUrl"] = d.RepoURL
	}
	c.Fields = fields
	return c
}

func normalizeTitle(s string) string {
	s = htmlTag.ReplaceAllString(s, " ")
	s = mdImage.ReplaceAllString(s, " ")
	s = mdLink.ReplaceAllString(s, " ")
	s = titleMarkup.ReplaceAllString(s, " ")
	return collapseSpace(s)
}

func plainText(s string) string {
	s = htmlTag.ReplaceAllString(s, " ")
	s = mdImage.ReplaceAllString(s, " ")
	s = mdLink.ReplaceAllString(s, " ")
	s = bodyMarkup.ReplaceAllString(s, " ")
	return collapseSpace(s)
}

func features(block string) []string {
	out := []string{}
	for _, line := range splitLines(block) {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "- ") {
			continue
		}
		if item := strings.TrimSpace(line[2:]); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func splitLines(s string) []string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

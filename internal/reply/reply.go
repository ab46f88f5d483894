// Package reply renders a resolved document record into a single chat
// message line. Rendering is polymorphic over the document type through
// a closed variant set: paper, issue, editorial, standing document and
// not-found.
package reply

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/wg21tools/paperbot/internal/feed"
)

// audienceCodes translates subgroup names to their committee
// abbreviations. Unknown subgroups pass through unchanged.
var audienceCodes = map[string]string{
	"Core":                        "CWG",
	"Evolution":                   "EWG",
	"Library":                     "LWG",
	"Library Evolution":           "LEWG",
	"Direction Group":             "DG",
	"Library Evolution Incubator": "LEWGI",
	"Evolution Incubator":         "EWGI",
}

var githubIssuePattern = regexp.MustCompile(`/issues/(\d+)`)

type formatter interface {
	format() (string, error)
}

// Render produces the reply line for a resolved reference. A nil doc
// renders the not-found variant. A record missing a field the variant
// needs returns an error; the caller drops that reference and keeps the
// rest of the batch.
func Render(reference string, doc *feed.Document) (string, error) {
	return formatterFor(reference, doc).format()
}

func formatterFor(reference string, doc *feed.Document) formatter {
	if doc == nil {
		return notFound{reference}
	}
	switch doc.Type {
	case feed.TypePaper:
		return paper{reference, doc}
	case feed.TypeIssue:
		return issue{reference, doc}
	case feed.TypeEditorial:
		return editorial{reference, doc}
	case feed.TypeStandingDocument:
		return standingDocument{reference, doc}
	default:
		return unknown{reference, doc.Type}
	}
}

type paper struct {
	ref string
	doc *feed.Document
}

func (f paper) format() (string, error) {
	if f.doc.Title == "" {
		return "", fmt.Errorf("paper %s: missing title", f.ref)
	}

	text := "[" + f.ref + "]"
	if f.doc.Subgroup != "" {
		text += " " + audience(f.doc.Subgroup) + ":"
	}
	text += " " + f.doc.Title

	extra := ""
	if f.doc.Author != "" {
		extra += " by " + condenseAuthors(f.doc.Author)
	}
	if f.doc.Date != "" {
		extra += " (" + f.doc.Date + ")"
	}

	components := []string{":rolled_up_newspaper:", link(text, f.doc.LongLink) + extra}

	github, err := githubComponent(f.ref, f.doc)
	if err != nil {
		return "", err
	}
	components = append(components, github...)
	components = append(components, relatedComponent("issue", f.doc.Issues)...)

	return join(components), nil
}

type issue struct {
	ref string
	doc *feed.Document
}

func (f issue) format() (string, error) {
	if f.doc.Title == "" {
		return "", fmt.Errorf("issue %s: missing title", f.ref)
	}
	if f.doc.Submitter == "" {
		return "", fmt.Errorf("issue %s: missing submitter", f.ref)
	}

	text := fmt.Sprintf("[%s] %s", f.ref, f.doc.Title)
	extra := "submitted by " + f.doc.Submitter
	if f.doc.Date != "" {
		extra += " (" + f.doc.Date + ")"
	}

	components := []string{":speech_balloon:", link(text, f.doc.LongLink) + " " + extra}

	if f.doc.Section != "" {
		components = append(components, "Section: "+f.doc.Section)
	}
	github, err := githubComponent(f.ref, f.doc)
	if err != nil {
		return "", err
	}
	components = append(components, github...)
	components = append(components, relatedComponent("paper", f.doc.Papers)...)

	return join(components), nil
}

type editorial struct {
	ref string
	doc *feed.Document
}

func (f editorial) format() (string, error) {
	if f.doc.Title == "" {
		return "", fmt.Errorf("editorial %s: missing title", f.ref)
	}
	text := fmt.Sprintf("[%s] %s", f.ref, f.doc.Title)
	return join([]string{":lower_left_ballpoint_pen: ", link(text, f.doc.LongLink)}), nil
}

type standingDocument struct {
	ref string
	doc *feed.Document
}

func (f standingDocument) format() (string, error) {
	if f.doc.Title == "" {
		return "", fmt.Errorf("standing document %s: missing title", f.ref)
	}
	text := fmt.Sprintf("[%s] %s", f.ref, f.doc.Title)
	return join([]string{":compass:", link(text, f.doc.LongLink)}), nil
}

type notFound struct {
	ref string
}

func (f notFound) format() (string, error) {
	return join([]string{
		":mag:",
		fmt.Sprintf("Sorry, I could not find an issue or paper called `%s` :worried:", f.ref),
	}), nil
}

type unknown struct {
	ref     string
	docType string
}

func (f unknown) format() (string, error) {
	return "", fmt.Errorf("document %s: unknown type %q", f.ref, f.docType)
}

// link renders a markdown hyperlink with the text escaped so embedded
// brackets can't break out of it.
func link(text, url string) string {
	return fmt.Sprintf("[%s](%s)", escape(text), url)
}

func escape(text string) string {
	r := strings.NewReplacer("[", `\[`, "]", `\]`, "(", `\(`, ")", `\)`)
	return r.Replace(text)
}

// condenseAuthors keeps up to two authors verbatim and collapses longer
// lists to "first et al.".
func condenseAuthors(author string) string {
	authors := strings.Split(author, ", ")
	if len(authors) <= 2 {
		return strings.Join(authors, ", ")
	}
	return authors[0] + " et al."
}

func audience(subgroup string) string {
	subgroups := strings.Split(subgroup, ", ")
	codes := make([]string, len(subgroups))
	for i, sg := range subgroups {
		if code, ok := audienceCodes[sg]; ok {
			codes[i] = code
		} else {
			codes[i] = sg
		}
	}
	return strings.Join(codes, ", ")
}

func githubComponent(ref string, doc *feed.Document) ([]string, error) {
	if doc.GithubURL == "" {
		return nil, nil
	}
	m := githubIssuePattern.FindStringSubmatch(doc.GithubURL)
	if m == nil {
		return nil, fmt.Errorf("document %s: no issue number in github url %q", ref, doc.GithubURL)
	}
	return []string{"Github issue: " + link("#"+m[1], doc.GithubURL)}, nil
}

func relatedComponent(kind string, refs []string) []string {
	if len(refs) == 0 {
		return nil
	}
	heading := "Related " + kind + ": "
	if len(refs) > 1 {
		heading = "Related " + kind + "s: "
	}
	links := make([]string, len(refs))
	for i, ref := range refs {
		links[i] = link(ref, "https://wg21.link/"+ref)
	}
	return []string{heading + strings.Join(links, ", ")}
}

func join(components []string) string {
	return strings.Join(components, " | ")
}

package feed

// Document types as they appear in the remote index.
const (
	TypePaper            = "paper"
	TypeIssue            = "issue"
	TypeEditorial        = "editorial"
	TypeStandingDocument = "standing-document"
)

// Document is one entry of the remote document index. Optional string
// fields are empty when absent; optional lists are nil.
type Document struct {
	Type      string   `json:"type"`
	Title     string   `json:"title"`
	Subgroup  string   `json:"subgroup,omitempty"`
	Author    string   `json:"author,omitempty"`
	Submitter string   `json:"submitter,omitempty"`
	Date      string   `json:"date,omitempty"`
	Section   string   `json:"section,omitempty"`
	Issues    []string `json:"issues,omitempty"`
	Papers    []string `json:"papers,omitempty"`
	GithubURL string   `json:"github_url,omitempty"`
	LongLink  string   `json:"long_link"`
}

// Entry pairs a raw document id with its record. Entries keep the
// iteration order of the source payload; equal-revision tie-breaking in
// the reference index depends on it.
type Entry struct {
	ID  string
	Doc Document
}

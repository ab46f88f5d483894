package reply

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wg21tools/paperbot/internal/feed"
)

func TestRenderPaper(t *testing.T) {
	doc := &feed.Document{
		Type:      feed.TypePaper,
		Title:     "Concepts",
		Subgroup:  "Evolution, Library Evolution",
		Author:    "Alice Author, Bob Builder, Carol Coder",
		Date:      "2020-01-15",
		LongLink:  "https://wg21.link/p1234r2",
		GithubURL: "https://github.com/cplusplus/papers/issues/42",
		Issues:    []string{"CWG123"},
	}

	line, err := Render("P1234R2", doc)
	require.NoError(t, err)
	assert.Equal(t,
		`:rolled_up_newspaper: | [\[P1234R2\] EWG, LEWG: Concepts](https://wg21.link/p1234r2) by Alice Author et al. (2020-01-15) | Github issue: [#42](https://github.com/cplusplus/papers/issues/42) | Related issue: [CWG123](https://wg21.link/CWG123)`,
		line)
}

func TestRenderPaperMinimal(t *testing.T) {
	doc := &feed.Document{
		Type:     feed.TypePaper,
		Title:    "Modules",
		LongLink: "https://wg21.link/p1103",
	}

	line, err := Render("P1103", doc)
	require.NoError(t, err)
	assert.Equal(t, `:rolled_up_newspaper: | [\[P1103\] Modules](https://wg21.link/p1103)`, line)
}

func TestRenderPaperTwoAuthorsKeptVerbatim(t *testing.T) {
	doc := &feed.Document{
		Type:     feed.TypePaper,
		Title:    "Pattern matching",
		Author:   "Alice Author, Bob Builder",
		LongLink: "https://wg21.link/p1371",
	}

	line, err := Render("P1371", doc)
	require.NoError(t, err)
	assert.Contains(t, line, "by Alice Author, Bob Builder")
	assert.NotContains(t, line, "et al.")
}

func TestRenderIssue(t *testing.T) {
	doc := &feed.Document{
		Type:      feed.TypeIssue,
		Title:     "Wording for concepts",
		Submitter: "Great Britain",
		Date:      "3 Feb 2020",
		Section:   "[temp.constr]",
		LongLink:  "https://wg21.link/cwg123",
		Papers:    []string{"P1234", "P5678"},
	}

	line, err := Render("CWG123", doc)
	require.NoError(t, err)
	assert.Equal(t,
		`:speech_balloon: | [\[CWG123\] Wording for concepts](https://wg21.link/cwg123) submitted by Great Britain (3 Feb 2020) | Section: [temp.constr] | Related papers: [P1234](https://wg21.link/P1234), [P5678](https://wg21.link/P5678)`,
		line)
}

func TestRenderEditorial(t *testing.T) {
	doc := &feed.Document{
		Type:     feed.TypeEditorial,
		Title:    "Fix typo",
		LongLink: "https://wg21.link/edit1",
	}

	line, err := Render("EDIT1", doc)
	require.NoError(t, err)
	assert.Equal(t, `:lower_left_ballpoint_pen:  | [\[EDIT1\] Fix typo](https://wg21.link/edit1)`, line)
}

func TestRenderStandingDocument(t *testing.T) {
	doc := &feed.Document{
		Type:     feed.TypeStandingDocument,
		Title:    "Admission procedures",
		LongLink: "https://wg21.link/sd6",
	}

	line, err := Render("SD6", doc)
	require.NoError(t, err)
	assert.Equal(t, `:compass: | [\[SD6\] Admission procedures](https://wg21.link/sd6)`, line)
}

func TestRenderNotFound(t *testing.T) {
	line, err := Render("P9999", nil)
	require.NoError(t, err)
	assert.Equal(t, ":mag: | Sorry, I could not find an issue or paper called `P9999` :worried:", line)
}

func TestRenderEscapesLinkText(t *testing.T) {
	doc := &feed.Document{
		Type:     feed.TypePaper,
		Title:    "operator() (part 2)",
		LongLink: "https://wg21.link/p1",
	}

	line, err := Render("P1", doc)
	require.NoError(t, err)
	assert.Contains(t, line, `operator\(\) \(part 2\)`)
}

func TestRenderErrors(t *testing.T) {
	tests := map[string]*feed.Document{
		"paper without title": {Type: feed.TypePaper, LongLink: "x"},
		"issue without submitter": {
			Type: feed.TypeIssue, Title: "T", LongLink: "x",
		},
		"unknown type": {Type: "memo", Title: "T", LongLink: "x"},
		"github url without issue number": {
			Type: feed.TypePaper, Title: "T", LongLink: "x",
			GithubURL: "https://github.com/cplusplus/papers",
		},
	}

	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Render("P1", doc)
			assert.Error(t, err)
		})
	}
}

func TestAudienceTranslation(t *testing.T) {
	assert.Equal(t, "CWG, LWG", audience("Core, Library"))
	assert.Equal(t, "LEWGI", audience("Library Evolution Incubator"))
	assert.Equal(t, "SG21", audience("SG21"))
}

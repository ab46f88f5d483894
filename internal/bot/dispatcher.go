package bot

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/wg21tools/paperbot/internal/feed"
	"github.com/wg21tools/paperbot/internal/mattermost"
	"github.com/wg21tools/paperbot/internal/refindex"
	"github.com/wg21tools/paperbot/internal/reply"
)

const (
	// staleAfter drops posts the bot was too slow to see; replying to
	// minutes-old messages reads as noise.
	staleAfter = time.Minute

	// maxSearchResults caps how many hits one search reply renders. The
	// reply still reports the true total.
	maxSearchResults = 15
)

var (
	commandTokenPattern     = regexp.MustCompile(`[\s,\.;:!\?]+`)
	bareReferencePattern    = regexp.MustCompile(`(?:(?:C|E|LE?)WG|FS|SD|N|P|D|EDIT) ?\d+(?:R\d+)?`)
	bracketReferencePattern = regexp.MustCompile(`\[((?:(?:C|E|LE?)WG|FS|SD|N|P|D|EDIT) ?\d+(?:R\d+)?)]`)
)

// Dispatcher classifies each polled post and routes it to help, search,
// the privileged kill command or paper lookup.
type Dispatcher struct {
	transport Transport
	index     *refindex.Index
	poller    *Poller
	self      *mattermost.User
	operators map[string]bool
	logger    *zap.Logger

	now  func() time.Time
	exit func(code int) // os.Exit, injectable for tests
}

// NewDispatcher wires the dispatcher. operators are the usernames
// allowed to use the kill command.
func NewDispatcher(transport Transport, index *refindex.Index, poller *Poller, self *mattermost.User, operators []string, logger *zap.Logger) *Dispatcher {
	allowed := make(map[string]bool, len(operators))
	for _, op := range operators {
		allowed[op] = true
	}
	return &Dispatcher{
		transport: transport,
		index:     index,
		poller:    poller,
		self:      self,
		operators: allowed,
		logger:    logger,
		now:       time.Now,
		exit:      os.Exit,
	}
}

// RunOnce polls all channels and processes the batch. Posts starting
// with a bot mention are commands; only the first one per batch is
// handled and the cycle ends there. Every other surviving post is
// scanned for bracketed references.
func (d *Dispatcher) RunOnce(ctx context.Context) error {
	posts, err := d.poller.Poll(ctx)
	if err != nil {
		return err
	}

	mention := "@" + d.self.Username
	for _, post := range posts {
		if d.shouldSkip(post) {
			continue
		}

		user, err := d.transport.GetUser(ctx, post.UserID)
		if err != nil {
			return fmt.Errorf("look up author of %s: %w", post.ID, err)
		}

		if strings.Contains(post.Message, mention) {
			d.logMention(post, user)
		}

		if strings.HasPrefix(post.Message, mention) {
			return d.handleCommand(ctx, post, user)
		}

		if err := d.handlePaperRequest(ctx, post, user, false); err != nil {
			return err
		}
	}
	return nil
}

// shouldSkip filters out posts that must never trigger a reply: edits,
// the bot's own posts, stale posts and thread replies.
func (d *Dispatcher) shouldSkip(post mattermost.Post) bool {
	if post.UpdateAt != post.CreateAt {
		return true
	}
	if post.UserID == d.self.ID {
		return true
	}
	if time.UnixMilli(post.CreateAt).Before(d.now().Add(-staleAfter)) {
		return true
	}
	if post.RootID != "" {
		return true
	}
	return false
}

func (d *Dispatcher) handleCommand(ctx context.Context, post mattermost.Post, user *mattermost.User) error {
	tokens := splitTokens(post.Message)

	command := ""
	if len(tokens) >= 2 {
		command = tokens[1]
	}

	switch command {
	case "help":
		return d.handleHelp(ctx, post, user)
	case "kill":
		d.handleKill(user)
		return nil
	case "search":
		return d.handleSearch(ctx, tokens, post)
	default:
		return d.handlePaperRequest(ctx, post, user, true)
	}
}

func (d *Dispatcher) handleHelp(ctx context.Context, post mattermost.Post, user *mattermost.User) error {
	d.logger.Info("help requested",
		zap.String("user", user.Username),
		zap.String("display_name", displayName(user)))

	bot := d.self.Username
	text := fmt.Sprintf(":book: | Usage: \"@%s search [papers|issues|everything] <keywords>\"\n"+
		"\t\t\t\tor \"@%s <Nxxxx|Pxxxx|PxxxxRx|Dxxxx|DxxxxRx|CWGxxx|EWGxxx|LWGxxx|LEWGxxx|FSxxx>\"\n"+
		"\n"+
		"%s will also lookup any paper posted in square brackets, even without being mentioned.",
		bot, bot, bot)
	return d.reply(ctx, post, text)
}

// handleKill terminates the process for operators and is a logged no-op
// for everyone else. Intentional fatal exit, not a failure.
func (d *Dispatcher) handleKill(user *mattermost.User) {
	if !d.operators[user.Username] {
		d.logger.Warn("ignoring kill request",
			zap.String("user", user.Username))
		return
	}
	d.logger.Info("terminating after operator request",
		zap.String("user", user.Username),
		zap.String("display_name", displayName(user)))
	d.exit(1)
}

func (d *Dispatcher) handleSearch(ctx context.Context, tokens []string, post mattermost.Post) error {
	typeFilter := ""
	keywords := tokens[2:]
	if len(tokens) >= 3 {
		switch tokens[2] {
		case "papers":
			typeFilter = feed.TypePaper
			keywords = tokens[3:]
		case "issues":
			typeFilter = feed.TypeIssue
			keywords = tokens[3:]
		case "everything":
			keywords = tokens[3:]
		}
	}

	if err := d.index.RefreshIfStale(ctx); err != nil {
		return err
	}

	results, total, err := d.index.Search(keywords, typeFilter, maxSearchResults)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		return d.reply(ctx, post, "No results found.")
	}

	lines := make([]string, 0, len(results))
	for _, result := range results {
		key, doc, err := d.index.Resolve(ctx, result.Ref)
		if err != nil {
			return err
		}
		line, err := reply.Render(key, doc)
		if err != nil {
			d.logger.Warn("formatting search result failed",
				zap.String("reference", result.Ref),
				zap.Error(err))
			return d.reply(ctx, post, "An error occurred.")
		}
		lines = append(lines, "1. "+line)
	}

	text := fmt.Sprintf("%d results for your query", total)
	if total != len(results) {
		text += fmt.Sprintf(", showing most recent %d", len(results))
	}
	text += ":\n" + strings.Join(lines, "\n")
	return d.reply(ctx, post, text)
}

// handlePaperRequest resolves every reference found in the post and
// replies with one line per reference. A reference that fails to
// resolve into a renderable line is logged and dropped without
// suppressing the others. No references, no reply.
func (d *Dispatcher) handlePaperRequest(ctx context.Context, post mattermost.Post, user *mattermost.User, includeBare bool) error {
	references := dedupe(extractReferences(post.Message, includeBare))

	var lines []string
	for _, ref := range references {
		key, doc, err := d.index.Resolve(ctx, ref)
		if err != nil {
			return err
		}
		line, err := reply.Render(key, doc)
		if err != nil {
			d.logger.Warn("formatting document failed",
				zap.String("reference", ref),
				zap.String("user", user.Username),
				zap.Error(err))
			continue
		}
		lines = append(lines, line)
	}

	if len(lines) == 0 {
		return nil
	}
	return d.reply(ctx, post, strings.Join(lines, "\n"))
}

// extractReferences pools matches of the bare-mention pattern (only
// when permitted for this message) and the bracketed pattern (always)
// against the upper-cased text.
func extractReferences(message string, includeBare bool) []string {
	upper := strings.ToUpper(message)

	var references []string
	if includeBare {
		references = append(references, bareReferencePattern.FindAllString(upper, -1)...)
	}
	for _, m := range bracketReferencePattern.FindAllStringSubmatch(upper, -1) {
		references = append(references, m[1])
	}
	return references
}

// dedupe strips whitespace from each reference and removes duplicates.
// Order is not significant post-dedup.
func dedupe(references []string) []string {
	seen := make(map[string]bool, len(references))
	var out []string
	for _, ref := range references {
		ref = strings.ReplaceAll(ref, " ", "")
		if seen[ref] {
			continue
		}
		seen[ref] = true
		out = append(out, ref)
	}
	return out
}

func splitTokens(message string) []string {
	var tokens []string
	for _, token := range commandTokenPattern.Split(message, -1) {
		if strings.TrimSpace(token) != "" {
			tokens = append(tokens, token)
		}
	}
	return tokens
}

func (d *Dispatcher) reply(ctx context.Context, post mattermost.Post, text string) error {
	root := post.RootID
	if root == "" {
		root = post.ID
	}
	return d.transport.CreatePost(ctx, post.ChannelID, root, text)
}

func (d *Dispatcher) logMention(post mattermost.Post, user *mattermost.User) {
	channelName := "(none)"
	if ch, ok := d.poller.Channel(post.ChannelID); ok && ch.DisplayName != "" {
		channelName = ch.DisplayName
	}
	nickname := user.Nickname
	if nickname == "" {
		nickname = "(none)"
	}
	d.logger.Info("bot mentioned",
		zap.String("user", user.Username),
		zap.String("nickname", nickname),
		zap.String("display_name", displayName(user)),
		zap.String("channel", channelName),
		zap.String("channel_id", post.ChannelID),
		zap.String("message", post.Message))
}

func displayName(user *mattermost.User) string {
	if user.FirstName == "" {
		return "(none)"
	}
	return user.FirstName + " " + user.LastName
}

package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"golang.org/x/net/html"

	verrors "github.com/agentvault/agentvault/internal/errors"
)

// ChatGPTProducer scans <vault>/chatgpt for saved HTML pages and
// conversations.json exports.
type ChatGPTProducer struct {
	vaultDir string
}

// NewChatGPTProducer creates a producer rooted at the vault directory.
func NewChatGPTProducer(vaultDir string) *ChatGPTProducer {
	return &ChatGPTProducer{vaultDir: vaultDir}
}

// Source implements Producer.
func (p *ChatGPTProducer) Source() string { return "chatgpt" }

// Produce implements Producer. A missing chatgpt directory is not an
// error; the source simply yields nothing.
func (p *ChatGPTProducer) Produce(ctx context.Context, out chan<- Document) error {
	base := filepath.Join(p.vaultDir, "chatgpt")
	if _, err := os.Stat(base); os.IsNotExist(err) {
		return nil
	}

	return filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return verrors.New(verrors.ErrCodeVaultUnreadable, fmt.Sprintf("scan %s", base), err)
		}
		if d.IsDir() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		name := strings.ToLower(d.Name())
		switch {
		case strings.HasSuffix(name, ".html"):
			p.produceHTML(ctx, path, out)
		case strings.HasSuffix(name, ".json") && strings.Contains(name, "conversation"):
			p.produceConversations(ctx, path, out)
		}
		return nil
	})
}

func (p *ChatGPTProducer) produceHTML(ctx context.Context, path string, out chan<- Document) {
	raw, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("skip unreadable export", slog.String("path", path), slog.Any("error", err))
		return
	}

	text, err := extractText(string(raw))
	if err != nil {
		slog.Warn("skip malformed html export", slog.String("path", path), slog.Any("error", err))
		return
	}

	send(ctx, out, Document{
		Source:  p.Source(),
		Path:    p.relPath(path),
		Title:   "ChatGPT export: " + filepath.Base(path),
		Content: text,
	})
}

func (p *ChatGPTProducer) produceConversations(ctx context.Context, path string, out chan<- Document) {
	raw, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("skip unreadable export", slog.String("path", path), slog.Any("error", err))
		return
	}

	convs, err := parseConversations(raw)
	if err != nil {
		slog.Warn("skip malformed conversations export",
			slog.String("path", path), slog.Any("error", err))
		return
	}

	rel := p.relPath(path)
	for i, conv := range convs {
		// One file can hold many conversations; fragments keep the
		// (source, path) key unique per conversation.
		docPath := rel
		if len(convs) > 1 {
			docPath = fmt.Sprintf("%s#%d", rel, i+1)
		}
		send(ctx, out, Document{
			Source:    p.Source(),
			Path:      docPath,
			Title:     conv.title,
			CreatedAt: conv.createdAt,
			Content:   conv.content,
		})
	}
}

func (p *ChatGPTProducer) relPath(path string) string {
	if rel, err := filepath.Rel(p.vaultDir, path); err == nil {
		return filepath.ToSlash(rel)
	}
	return filepath.ToSlash(path)
}

// conversation is one flattened ChatGPT conversation.
type conversation struct {
	title     string
	createdAt string
	content   string
}

// rawConversation mirrors the export schema loosely; exports have
// changed shape over time, so every field is optional.
type rawConversation struct {
	Title      string                `json:"title"`
	CreateTime json.Number           `json:"create_time"`
	Mapping    map[string]rawMapNode `json:"mapping"`
}

type rawMapNode struct {
	Message *rawMessage `json:"message"`
}

type rawMessage struct {
	Author struct {
		Role string `json:"role"`
	} `json:"author"`
	Content struct {
		Parts []json.RawMessage `json:"parts"`
	} `json:"content"`
	CreateTime json.Number `json:"create_time"`
}

// parseConversations accepts both a bare conversation list and the
// wrapped {"conversations": [...]} form.
func parseConversations(raw []byte) ([]conversation, error) {
	var list []rawConversation

	var wrapped struct {
		Conversations []rawConversation `json:"conversations"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Conversations != nil {
		list = wrapped.Conversations
	} else if err := json.Unmarshal(raw, &list); err != nil {
		return nil, verrors.New(verrors.ErrCodeExportMalformed, "not a conversations export", err)
	}

	out := make([]conversation, 0, len(list))
	for _, rc := range list {
		conv := conversation{title: rc.Title}
		if conv.title == "" {
			conv.title = "ChatGPT conversation"
		}
		conv.createdAt = epochToRFC3339(rc.CreateTime)
		conv.content = flattenMapping(rc.Mapping)
		out = append(out, conv)
	}
	return out, nil
}

// flattenMapping renders the message graph as "[role] body" blocks
// ordered by message create_time.
func flattenMapping(mapping map[string]rawMapNode) string {
	type entry struct {
		at   float64
		text string
	}

	entries := make([]entry, 0, len(mapping))
	for _, node := range mapping {
		if node.Message == nil {
			continue
		}
		msg := node.Message

		role := strings.TrimSpace(msg.Author.Role)
		if role == "" {
			role = "unknown"
		}

		var parts []string
		for _, part := range msg.Content.Parts {
			var s string
			if err := json.Unmarshal(part, &s); err != nil {
				// Non-text parts (images, tool payloads) carry no
				// searchable words.
				continue
			}
			parts = append(parts, s)
		}
		body := strings.TrimSpace(strings.Join(parts, "\n"))
		if body == "" {
			continue
		}

		at, _ := msg.CreateTime.Float64()
		entries = append(entries, entry{at: at, text: "[" + role + "] " + body})
	}

	sort.SliceStable(entries, func(i, j int) bool { return entries[i].at < entries[j].at })

	blocks := make([]string, len(entries))
	for i, e := range entries {
		blocks[i] = e.text
	}
	return strings.TrimSpace(strings.Join(blocks, "\n\n"))
}

// epochToRFC3339 converts a unix timestamp (possibly fractional) to
// RFC3339 UTC; unparseable values become empty.
func epochToRFC3339(n json.Number) string {
	if n.String() == "" {
		return ""
	}
	f, err := n.Float64()
	if err != nil {
		return ""
	}
	sec := int64(f)
	nsec := int64((f - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec).UTC().Format(time.RFC3339)
}

var blankRuns = regexp.MustCompile(`\n{3,}`)

// extractText renders an HTML document as plain text: script and style
// are dropped, block-ish boundaries become newlines, and runs of blank
// lines collapse to one.
func extractText(src string) (string, error) {
	root, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return "", err
	}

	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript":
				return
			}
		}
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				b.WriteString(text)
				b.WriteString("\n")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	return strings.TrimSpace(blankRuns.ReplaceAllString(b.String(), "\n\n")), nil
}

// send delivers a document unless the context is already cancelled.
func send(ctx context.Context, out chan<- Document, doc Document) {
	select {
	case out <- doc:
	case <-ctx.Done():
	}
}

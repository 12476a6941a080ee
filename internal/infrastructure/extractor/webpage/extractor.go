package webpage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/net/html/charset"

	"github.com/kirillkom/context-assistant/internal/core/domain"
	"github.com/kirillkom/context-assistant/internal/infrastructure/resilience"
)

const maxPageBytes = 8 << 20

// Extractor downloads one page with a single GET and returns its visible text nodes joined
// by newlines. Non-2xx answers are parsed like any other body. The host is the user's choice,
// so a failure is reported to that user only and never retried.
type Extractor struct {
	client    *http.Client
	userAgent string
	executor  *resilience.Executor
}

func NewExtractor(client *http.Client, userAgent string, executor *resilience.Executor) *Extractor {
	if client == nil {
		client = http.DefaultClient
	}
	return &Extractor{
		client:    client,
		userAgent: userAgent,
		executor:  executor,
	}
}

func (e *Extractor) Extract(ctx context.Context, pageURL string) (string, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return "", domain.WrapError(domain.ErrInvalidInput, "fetch page", fmt.Errorf("invalid url %q", pageURL))
	}

	text, err := resilience.Call(ctx, e.executor, "page.fetch", func(callCtx context.Context) (string, error) {
		return e.fetch(callCtx, parsed.String())
	}, resilience.ClassifyTarget)
	if err != nil {
		return "", resilience.WrapTemporary("fetch page", err, resilience.ClassifyHTTP)
	}
	return text, nil
}

func (e *Extractor) fetch(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("build page request: %w", err)
	}
	if e.userAgent != "" {
		req.Header.Set("User-Agent", e.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("get page: %w", err)
	}
	defer resp.Body.Close()

	body, err := charset.NewReader(io.LimitReader(resp.Body, maxPageBytes), resp.Header.Get("Content-Type"))
	if err != nil {
		return "", fmt.Errorf("decode page charset: %w", err)
	}
	doc, err := html.Parse(body)
	if err != nil {
		return "", fmt.Errorf("parse page: %w", err)
	}
	return VisibleText(doc), nil
}

// VisibleText returns every text node under n in document order, joined with "\n".
// Script, style, template and noscript content is skipped; nothing is trimmed.
func VisibleText(n *html.Node) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		switch node.Type {
		case html.TextNode:
			parts = append(parts, node.Data)
			return
		case html.CommentNode, html.DoctypeNode:
			return
		case html.ElementNode:
			switch node.DataAtom {
			case atom.Script, atom.Style, atom.Template, atom.Noscript:
				return
			}
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return strings.Join(parts, "\n")
}

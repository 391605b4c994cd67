// Package readability turns a web page into the plain text the model reads.
package readability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/html"
)

const (
	defaultTimeout = 15 * time.Second
	maxBodyBytes   = 5 << 20
	// MaxChars bounds the text handed to the model.
	MaxChars = 20000
)

var (
	ErrInvalidURL     = errors.New("url must be absolute http or https")
	ErrBlockedAddress = errors.New("url resolves to a non-public address")
)

// reserved ranges IsGlobalUnicast and IsPrivate do not cover.
var reserved = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("192.0.0.0/24"),
	netip.MustParsePrefix("198.18.0.0/15"),
	netip.MustParsePrefix("240.0.0.0/4"),
	netip.MustParsePrefix("64:ff9b::/96"),
}

// Client fetches readable text for a URL. With an Endpoint it delegates to a
// text extraction service (GET {Endpoint}?url=...); without one it downloads
// the page itself and strips the markup, dialing public addresses only.
type Client struct {
	endpoint string
	http     *http.Client
}

func New(endpoint string, timeout time.Duration) *Client {
	endpoint = strings.TrimRight(endpoint, "/")
	if endpoint != "" {
		return newClient(endpoint, timeout, nil)
	}
	return newClient("", timeout, publicOnly)
}

func newClient(endpoint string, timeout time.Duration, control func(network, address string, c syscall.RawConn) error) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if control != nil {
		// The check runs on the resolved address of every dial, redirects
		// included. A proxy would hide the target, so none is used.
		transport.Proxy = nil
		transport.DialContext = (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
			Control:   control,
		}).DialContext
	}
	return &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: timeout, Transport: transport},
	}
}

// publicOnly is a net.Dialer Control func refusing loopback, private,
// link-local and reserved addresses.
func publicOnly(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, address)
	}
	ip, err := netip.ParseAddr(host)
	if err != nil || !IsPublic(ip) {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, host)
	}
	return nil
}

// IsPublic reports whether ip is a globally routable unicast address.
func IsPublic(ip netip.Addr) bool {
	ip = ip.Unmap()
	if !ip.IsGlobalUnicast() || ip.IsPrivate() {
		return false
	}
	for _, p := range reserved {
		if p.Contains(ip) {
			return false
		}
	}
	return true
}

// Text returns the readable text of pageURL. An empty string with a nil error
// means the page had no readable content.
func (c *Client) Text(ctx context.Context, pageURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(pageURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", ErrInvalidURL
	}

	target := u.String()
	if c.endpoint != "" {
		target = c.endpoint + "?url=" + url.QueryEscape(u.String())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "SoonlistBot/1.0 (+https://www.soonlist.com)")
	req.Header.Set("Accept", "text/html,text/plain;q=0.9,*/*;q=0.5")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", redactURL(u), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("fetch %s: unexpected status %d", redactURL(u), resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", redactURL(u), err)
	}

	var text string
	if c.endpoint == "" && isHTML(resp.Header.Get("Content-Type"), body) {
		text = ExtractText(string(body))
	} else {
		text = collapse(string(body))
	}
	text = truncate(text, MaxChars)

	logrus.WithFields(logrus.Fields{
		"url":      redactURL(u),
		"chars":    len(text),
		"duration": time.Since(start).String(),
	}).Debug("readable text fetched")
	return text, nil
}

var skipped = map[string]bool{
	"script": true, "style": true, "noscript": true, "svg": true,
	"nav": true, "footer": true, "header": true, "template": true, "iframe": true,
}

var blocks = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "h1": true, "h2": true,
	"h3": true, "h4": true, "h5": true, "h6": true, "tr": true, "section": true,
	"article": true, "time": true,
}

// ExtractText returns the visible text of an HTML document, preceded by its
// title and description meta tags, which often carry the event date.
func ExtractText(doc string) string {
	z := html.NewTokenizer(strings.NewReader(doc))

	var (
		meta    []string
		title   string
		sb      strings.Builder
		skip    int
		inTitle bool
	)

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			out := strings.TrimSpace(strings.Join(append([]string{title}, meta...), "\n") + "\n" + collapse(sb.String()))
			return strings.TrimSpace(out)

		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			name := tok.Data
			switch {
			case name == "title":
				inTitle = tt == html.StartTagToken
			case name == "meta":
				if content := metaContent(tok); content != "" {
					meta = append(meta, content)
				}
			case skipped[name] && tt == html.StartTagToken:
				skip++
			case blocks[name]:
				sb.WriteString("\n")
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			switch {
			case string(name) == "title":
				inTitle = false
			case skipped[string(name)] && skip > 0:
				skip--
			case blocks[string(name)]:
				sb.WriteString("\n")
			}

		case html.TextToken:
			text := string(z.Text())
			if inTitle {
				title = strings.TrimSpace(text)
				continue
			}
			if skip == 0 {
				sb.WriteString(strings.Join(strings.Fields(text), " "))
				sb.WriteString(" ")
			}
		}
	}
}

func metaContent(tok html.Token) string {
	var key, content string
	for _, a := range tok.Attr {
		switch a.Key {
		case "name", "property":
			key = strings.ToLower(a.Val)
		case "content":
			content = strings.TrimSpace(a.Val)
		}
	}
	switch key {
	case "description", "og:description", "og:title", "twitter:description":
		return content
	}
	return ""
}

// collapse squeezes runs of spaces and drops blank lines.
func collapse(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if l = strings.Join(strings.Fields(l), " "); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func isHTML(contentType string, body []byte) bool {
	if strings.Contains(contentType, "html") {
		return true
	}
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(string(body[:min(len(body), 512)]))), "<!doctype html") ||
		strings.Contains(strings.ToLower(string(body[:min(len(body), 512)])), "<html")
}

// redactURL drops the query string, which may carry tokens.
func redactURL(u *url.URL) string {
	c := *u
	c.RawQuery = ""
	c.Fragment = ""
	c.User = nil
	return c.String()
}

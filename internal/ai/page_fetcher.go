package ai

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"syscall"
	"time"
	"unicode/utf8"

	"careerlaunch/internal/config"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"
)

const maxPageBytes = 5 << 20

// jobPostingSelectors locate the posting body on common job boards and career pages
var jobPostingSelectors = []string{
	".job-description",
	"#job-description",
	".jobs-description__content",
	".job-details",
	".posting-page",
	"[data-testid='jobDescriptionText']",
	"#jobDescriptionText",
	"main",
	"article",
	"#content",
	".content",
}

const noiseSelectors = "nav, footer, header, script, style, noscript, iframe, form, svg, .cookie-banner, .popup, .ad, .ads, .sidebar"

// PageFetcher downloads a job posting and converts its main content to markdown
type PageFetcher struct {
	client          *http.Client
	userAgent       string
	maxContentChars int
}

// NewPageFetcher creates a fetcher from the resolver configuration
func NewPageFetcher(cfg config.ResolverConfig) *PageFetcher {
	timeout := cfg.FetchTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	dialer := &net.Dialer{Timeout: timeout}
	if !cfg.AllowPrivateHosts {
		dialer.Control = rejectInternalAddr
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	transport.DialContext = dialer.DialContext

	return &PageFetcher{
		client:          &http.Client{Timeout: timeout, Transport: transport},
		userAgent:       cfg.UserAgent,
		maxContentChars: cfg.MaxContentChars,
	}
}

// Fetch retrieves the page at rawURL and returns its main content as markdown
func (f *PageFetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return "", fmt.Errorf("invalid URL %q", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "html") {
		return "", fmt.Errorf("unsupported content type %q", ct)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	return f.extract(string(body))
}

// errInternalAddr is returned when a fetch would connect to a non-public address
var errInternalAddr = stderrors.New("refusing to fetch from a non-public address")

// rejectInternalAddr runs after name resolution, so it also covers redirects
// and hostnames that resolve to internal addresses
func rejectInternalAddr(_, address string, _ syscall.RawConn) error {
	addrPort, err := netip.ParseAddrPort(address)
	if err != nil {
		return fmt.Errorf("%w: %s", errInternalAddr, address)
	}
	if !isPublicAddr(addrPort.Addr()) {
		return fmt.Errorf("%w: %s", errInternalAddr, addrPort.Addr())
	}
	return nil
}

func isPublicAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	return addr.IsValid() &&
		!addr.IsLoopback() &&
		!addr.IsPrivate() &&
		!addr.IsLinkLocalUnicast() &&
		!addr.IsLinkLocalMulticast() &&
		!addr.IsInterfaceLocalMulticast() &&
		!addr.IsMulticast() &&
		!addr.IsUnspecified()
}

// extract selects the posting region of the page and converts it to markdown
func (f *PageFetcher) extract(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	doc.Find(noiseSelectors).Remove()

	content := doc.Find("body")
	for _, selector := range jobPostingSelectors {
		if selection := doc.Find(selector); selection.Length() > 0 {
			content = selection.First()
			break
		}
	}

	fragment, err := goquery.OuterHtml(content)
	if err != nil {
		return "", fmt.Errorf("failed to render content: %w", err)
	}

	markdown, err := htmltomarkdown.ConvertString(fragment)
	if err != nil {
		return "", fmt.Errorf("failed to convert HTML to markdown: %w", err)
	}

	markdown = strings.TrimSpace(markdown)
	if f.maxContentChars > 0 {
		markdown = truncateChars(markdown, f.maxContentChars)
	}
	return markdown, nil
}

// truncateChars keeps the first n characters of s
func truncateChars(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

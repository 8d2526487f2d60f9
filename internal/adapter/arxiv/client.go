package arxiv

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"paperrag/internal/domain"
	"paperrag/internal/port"
)

const (
	DefaultBaseURL = "http://export.arxiv.org/api/query"
	DefaultQuery   = "(cat:cs.AI OR cat:cs.LG OR cat:cs.CL OR cat:cs.CV)"
)

// Client talks to the arXiv Atom API.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

type feed struct {
	Entries []entry `xml:"entry"`
}

type entry struct {
	ID        string   `xml:"id"`
	Title     string   `xml:"title"`
	Summary   string   `xml:"summary"`
	Published string   `xml:"published"`
	Authors   []author `xml:"author"`
	Links     []link   `xml:"link"`
}

type author struct {
	Name string `xml:"name"`
}

type link struct {
	Href  string `xml:"href,attr"`
	Title string `xml:"title,attr"`
	Type  string `xml:"type,attr"`
}

// Search returns the newest submissions matching query.
func (c *Client) Search(ctx context.Context, query string, max int) ([]port.CatalogEntry, error) {
	params := url.Values{}
	params.Set("search_query", query)
	params.Set("start", "0")
	params.Set("max_results", strconv.Itoa(max))
	params.Set("sortBy", "submittedDate")
	params.Set("sortOrder", "descending")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: arxiv query: %w", domain.ErrCollaborator, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: arxiv query returned %s", domain.ErrCollaborator, resp.Status)
	}

	var f feed
	if err := xml.NewDecoder(resp.Body).Decode(&f); err != nil {
		return nil, fmt.Errorf("%w: decode arxiv feed: %w", domain.ErrCollaborator, err)
	}

	entries := make([]port.CatalogEntry, 0, len(f.Entries))
	for _, e := range f.Entries {
		entries = append(entries, toEntry(e))
	}
	return entries, nil
}

func (c *Client) Download(ctx context.Context, e port.CatalogEntry, w io.Writer) error {
	if e.PDFURL == "" {
		return fmt.Errorf("no pdf link for %s", e.Paper.PaperID)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.PDFURL, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: download %s: %w", domain.ErrCollaborator, e.Paper.PaperID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: download %s returned %s", domain.ErrCollaborator, e.Paper.PaperID, resp.Status)
	}
	_, err = io.Copy(w, resp.Body)
	return err
}

func toEntry(e entry) port.CatalogEntry {
	paper := domain.Paper{
		PaperID:  ShortID(e.ID),
		Title:    collapse(e.Title),
		Summary:  strings.TrimSpace(e.Summary),
		ArxivURL: strings.TrimSpace(e.ID),
	}
	for _, a := range e.Authors {
		paper.Authors = append(paper.Authors, strings.TrimSpace(a.Name))
	}
	if t, err := time.Parse(time.RFC3339, strings.TrimSpace(e.Published)); err == nil {
		paper.Published = &t
	}

	var pdfURL string
	for _, l := range e.Links {
		if l.Title == "pdf" || l.Type == "application/pdf" {
			pdfURL = l.Href
			break
		}
	}
	return port.CatalogEntry{Paper: paper, PDFURL: pdfURL}
}

// ShortID turns an entry URL like http://arxiv.org/abs/hep-th/9901001v2
// into a file-safe id (hep-th_9901001v2).
func ShortID(entryID string) string {
	id := strings.TrimSpace(entryID)
	if i := strings.Index(id, "/abs/"); i >= 0 {
		id = id[i+len("/abs/"):]
	}
	return strings.ReplaceAll(id, "/", "_")
}

var (
	unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._ -]`)
	whitespace  = regexp.MustCompile(`\s+`)
)

// SanitizeFilename keeps a conservative character set and caps the
// length at 90 bytes.
func SanitizeFilename(s string) string {
	s = unsafeChars.ReplaceAllString(s, "")
	s = strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
	if len(s) > 90 {
		s = s[:90]
	}
	return s
}

// FileName is the local PDF name for a paper.
func FileName(p domain.Paper) string {
	return p.PaperID + "_" + SanitizeFilename(p.Title) + ".pdf"
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

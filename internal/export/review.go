package export

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"digikala/crawler/internal/domain"

	"github.com/PuerkitoBio/goquery"
)

// ReviewWriter appends each review's text and a line break to w. Text is
// written as is, so a review may itself span several lines.
type ReviewWriter struct {
	mu        sync.Mutex
	w         *bufio.Writer
	closer    io.Closer
	stripHTML bool
}

func NewReviewWriter(w io.Writer, stripHTML bool) *ReviewWriter {
	rw := &ReviewWriter{
		w:         bufio.NewWriter(w),
		stripHTML: stripHTML,
	}
	if c, ok := w.(io.Closer); ok {
		rw.closer = c
	}
	return rw
}

// OpenReviewFile opens path for appending, creating it if needed.
func OpenReviewFile(path string, stripHTML bool) (*ReviewWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open reviews file %s: %w", path, err)
	}
	return NewReviewWriter(f, stripHTML), nil
}

func (rw *ReviewWriter) WriteReview(_ context.Context, review domain.Review) error {
	text := review.Text
	if rw.stripHTML {
		plain, err := textFromHTML(text)
		if err != nil {
			return err
		}
		text = plain
	}

	rw.mu.Lock()
	defer rw.mu.Unlock()

	if _, err := rw.w.WriteString(text + "\n"); err != nil {
		return fmt.Errorf("failed to write review: %w", err)
	}
	// One flush per record keeps records whole on disk.
	if err := rw.w.Flush(); err != nil {
		return fmt.Errorf("failed to flush review: %w", err)
	}
	return nil
}

func (rw *ReviewWriter) Close() error {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if err := rw.w.Flush(); err != nil {
		return err
	}
	if rw.closer != nil {
		return rw.closer.Close()
	}
	return nil
}

// textFromHTML renders the markup some descriptions carry as plain text.
func textFromHTML(s string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return "", fmt.Errorf("failed to parse review markup: %w", err)
	}

	doc.Find("br").ReplaceWithHtml("\n")
	return strings.TrimSpace(doc.Text()), nil
}

package export

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"digikala/crawler/internal/domain"
)

// CommentWriter writes comments as JSON lines.
type CommentWriter struct {
	mu     sync.Mutex
	w      *bufio.Writer
	enc    *json.Encoder
	closer io.Closer
}

func NewCommentWriter(w io.Writer) *CommentWriter {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)

	cw := &CommentWriter{w: bw, enc: enc}
	if c, ok := w.(io.Closer); ok {
		cw.closer = c
	}
	return cw
}

func OpenCommentFile(path string) (*CommentWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open comments file %s: %w", path, err)
	}
	return NewCommentWriter(f), nil
}

func (cw *CommentWriter) SaveComment(_ context.Context, comment domain.Comment) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if err := cw.enc.Encode(comment); err != nil {
		return fmt.Errorf("failed to encode comment: %w", err)
	}
	if err := cw.w.Flush(); err != nil {
		return fmt.Errorf("failed to flush comment: %w", err)
	}
	return nil
}

func (cw *CommentWriter) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if err := cw.w.Flush(); err != nil {
		return err
	}
	if cw.closer != nil {
		return cw.closer.Close()
	}
	return nil
}

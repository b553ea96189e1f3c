package ingest

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/yassine-youcefi/rasa-rag-chatbot/engine/chunker"
	"github.com/yassine-youcefi/rasa-rag-chatbot/engine/domain"
)

// ExtractText reads a PDF and returns the cleaned text of its pages, one
// page after another. Files without a PDF header are rejected; a PDF
// without text yields "".
func ExtractText(path string) (text string, err error) {
	if err := checkHeader(path); err != nil {
		return "", err
	}
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("parse pdf %s: %w", path, err)
	}
	defer f.Close()

	// The reader panics on some malformed objects.
	defer func() {
		if rec := recover(); rec != nil {
			text, err = "", fmt.Errorf("parse pdf %s: %v", path, rec)
		}
	}()

	pages := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		s, err := p.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("parse pdf %s: page %d: %w", path, i, err)
		}
		pages = append(pages, s)
	}
	return chunker.Clean(strings.Join(pages, "\n")), nil
}

func checkHeader(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("read pdf: %w", err)
	}
	defer f.Close()
	head, _ := bufio.NewReader(f).Peek(1024)
	if !strings.HasPrefix(strings.TrimLeft(string(head), " \t\r\n"), "%PDF-") {
		return fmt.Errorf("%s: %w", path, domain.ErrUnsupportedFile)
	}
	return nil
}

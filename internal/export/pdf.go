// Package export renders a chat transcript as a downloadable PDF document.
package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"

	"synbot/internal/models"
)

// PDF serializes an ordered message sequence into a single-font,
// single-column document: a centered title line, then one wrapped
// paragraph per message labelled with its role. An empty sequence yields
// a valid title-only document.
func PDF(messages []models.Message, title string) ([]byte, error) {
	doc := fpdf.New("P", "mm", "A4", "")
	// Core fonts are cp1252; the translator substitutes anything outside it
	// instead of corrupting the stream.
	tr := doc.UnicodeTranslatorFromDescriptor("")
	doc.AddPage()
	doc.SetFont("Arial", "", 12)
	doc.CellFormat(200, 10, tr(fmt.Sprintf("Chat Summary: %s", title)), "", 1, "C", false, 0, "")
	doc.Ln(10)

	for _, msg := range messages {
		doc.MultiCell(0, 10, tr(fmt.Sprintf("%s: %s", msg.Role.Label(), msg.Content)), "", "L", false)
		doc.Ln(1)
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// Filename derives a safe download name from the thread name.
func Filename(threadName string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '"', '\n', '\r':
			return '_'
		}
		return r
	}, threadName)
	name = strings.TrimSpace(name)
	if name == "" {
		name = "chat"
	}
	return name + ".pdf"
}

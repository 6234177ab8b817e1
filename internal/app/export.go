package app

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/jung-kurt/gofpdf"
	"github.com/rs/zerolog/log"

	"github.com/MitsuhaFe/Digest-AI/internal/store"
)

// ExportMarkdown renders an article the way the dashboard exports it. Saved
// HTML is converted to Markdown; otherwise the plain content is used.
func ExportMarkdown(a store.Article) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", a.Title)
	fmt.Fprintf(&b, "**来源**: %s  \n", a.Source)
	fmt.Fprintf(&b, "**原文链接**: %s  \n", a.URL)
	fmt.Fprintf(&b, "**保存时间**: %s  \n", a.DateAdded.In(time.Local).Format("2006/1/2 15:04:05"))
	if len(a.Tags) > 0 {
		fmt.Fprintf(&b, "**标签**: %s  \n", strings.Join(a.Tags, ", "))
	}
	b.WriteString("\n---\n\n")

	b.WriteString("## 📝 AI 摘要\n\n")
	if a.Summary != "" {
		b.WriteString(a.Summary)
	} else {
		b.WriteString("暂无摘要")
	}
	b.WriteString("\n\n")

	b.WriteString("## 💡 核心观点\n\n")
	if len(a.KeyPoints) == 0 {
		b.WriteString("暂无核心观点\n")
	}
	for i, p := range a.KeyPoints {
		fmt.Fprintf(&b, "%d. %s\n", i+1, p)
	}
	b.WriteString("\n---\n\n")

	b.WriteString("## 📄 原文内容\n\n")
	b.WriteString(originalMarkdown(a))
	b.WriteString("\n\n\n---\n\n")
	b.WriteString("*本文由 Digest AI 导出*\n")
	return b.String()
}

func originalMarkdown(a store.Article) string {
	if strings.TrimSpace(a.HTMLContent) != "" {
		md, err := htmltomarkdown.ConvertString(a.HTMLContent)
		if err == nil && strings.TrimSpace(md) != "" {
			return strings.TrimSpace(md)
		}
		if err != nil {
			log.Debug().Err(err).Str("id", a.ID).Msg("html to markdown failed; using plain content")
		}
	}
	if strings.TrimSpace(a.Content) == "" {
		return "内容不可用"
	}
	return a.Content
}

var linkRe = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)

// ExportPDF renders the Markdown export as a simple PDF. fontPath names a
// UTF-8 TrueType font; without one the core Helvetica font is used and
// characters outside cp1252 are lost.
func ExportPDF(a store.Article, fontPath string, w io.Writer) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	family := "Helvetica"
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	if strings.TrimSpace(fontPath) != "" {
		family = "body"
		pdf.AddUTF8Font(family, "", fontPath)
		pdf.AddUTF8Font(family, "B", fontPath)
		tr = func(s string) string { return s }
	}
	pdf.SetTitle(a.Title, true)
	pdf.AddPage()
	pdf.SetFont(family, "", 11)

	scanner := bufio.NewScanner(strings.NewReader(ExportMarkdown(a)))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		s := strings.TrimSpace(scanner.Text())
		if s == "" {
			pdf.Ln(5)
			continue
		}
		if s == "---" {
			y := pdf.GetY()
			pdf.Line(10, y, 200, y)
			pdf.Ln(2)
			continue
		}
		if strings.HasPrefix(s, "#") {
			i := 0
			for i < len(s) && s[i] == '#' {
				i++
			}
			text := strings.TrimSpace(s[i:])
			if text == "" {
				continue
			}
			size := 16.0
			if i >= 2 {
				size = 13.0
			}
			pdf.SetFont(family, "B", size)
			pdf.MultiCell(0, 8, tr(text), "", "L", false)
			pdf.SetFont(family, "", 11)
			continue
		}
		s = strings.ReplaceAll(s, "**", "")
		parts := linkRe.FindAllStringSubmatchIndex(s, -1)
		if len(parts) == 0 {
			pdf.MultiCell(0, 5, tr(s), "", "L", false)
			continue
		}
		pos := 0
		for _, m := range parts {
			if m[0] > pos {
				pdf.Write(5, tr(s[pos:m[0]]))
			}
			pdf.WriteLinkString(5, tr(s[m[2]:m[3]]), s[m[4]:m[5]])
			pos = m[1]
		}
		if pos < len(s) {
			pdf.Write(5, tr(s[pos:]))
		}
		pdf.Ln(6)
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return pdf.Output(w)
}

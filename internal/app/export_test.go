package app

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/MitsuhaFe/Digest-AI/internal/store"
)

func storeArticle(title, id string) store.Article {
	return store.Article{ID: id, Title: title, DateAdded: time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)}
}

func TestExportMarkdown(t *testing.T) {
	a := storeArticle("Tide Pools", "id")
	a.Source = "Field Notes"
	a.URL = "https://example.com/tide"
	a.Tags = []string{"ocean", "nature"}
	a.Summary = "A short summary."
	a.KeyPoints = []string{"first", "second"}
	a.HTMLContent = `<h2>Intro</h2><p>Some <strong>bold</strong> text.</p>`
	md := ExportMarkdown(a)
	for _, want := range []string{
		"# Tide Pools\n\n",
		"**来源**: Field Notes  \n",
		"**原文链接**: https://example.com/tide  \n",
		"**标签**: ocean, nature  \n",
		"## 📝 AI 摘要\n\nA short summary.\n\n",
		"1. first\n2. second\n",
		"## Intro",
		"**bold**",
		"*本文由 Digest AI 导出*\n",
	} {
		if !strings.Contains(md, want) {
			t.Fatalf("markdown missing %q:\n%s", want, md)
		}
	}
}

func TestExportMarkdown_Fallbacks(t *testing.T) {
	a := storeArticle("Empty", "id")
	md := ExportMarkdown(a)
	for _, want := range []string{"暂无摘要", "暂无核心观点", "内容不可用"} {
		if !strings.Contains(md, want) {
			t.Fatalf("missing %q", want)
		}
	}
	if strings.Contains(md, "**标签**") {
		t.Fatalf("tag line should be omitted without tags")
	}
	a.Content = "plain text body"
	if !strings.Contains(ExportMarkdown(a), "plain text body") {
		t.Fatalf("plain content should be used without HTML")
	}
}

func TestExportPDF(t *testing.T) {
	a := storeArticle("Tide Pools", "id")
	a.Summary = "Summary with a [link](https://example.com)."
	a.KeyPoints = []string{"one"}
	a.Content = "Body"
	var buf bytes.Buffer
	if err := ExportPDF(a, "", &buf); err != nil {
		t.Fatalf("export: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
		t.Fatalf("not a pdf: %q", buf.Bytes()[:16])
	}
}

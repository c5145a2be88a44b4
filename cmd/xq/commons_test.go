package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/midbel/xquery/dom"
	"github.com/midbel/xquery/xpath"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	file := filepath.Join(dir, name)
	if err := os.WriteFile(file, []byte(content), 0o644); err != nil {
		t.Fatalf("fail to write %s: %s", name, err)
	}
	return file
}

func TestCollectFiles(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.xml", "<a/>")
	b := writeFile(t, dir, "b.xml", "<b/>")
	writeFile(t, dir, "notes.txt", "skip")

	got, err := collectFiles([]string{dir, "other.xml"})
	if err != nil {
		t.Fatalf("fail to collect files: %s", err)
	}
	want := []string{a, b, "other.xml"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("files mismatched (-want +got):\n%s", diff)
	}
}

func TestCompilerOptions(t *testing.T) {
	var (
		dir    = t.TempDir()
		config = writeFile(t, dir, "config.xml", `<xq><namespace prefix="x">urn:x</namespace><variable name="limit">2</variable></xq>`)
		source = writeFile(t, dir, "source.xml", `<root xmlns:x="urn:x"><x:item>1</x:item><x:item>2</x:item><x:item>3</x:item></root>`)
	)
	options, err := getCompilerOptions(config)
	if err != nil {
		t.Fatalf("fail to read configuration: %s", err)
	}
	doc, err := parseDocument(source, ParserOptions{})
	if err != nil {
		t.Fatalf("fail to parse document: %s", err)
	}
	options = append(options, xpath.WithFacade(dom.Facade{}))
	q, err := xpath.Build("/root/x:item[position() <= $limit]", options...)
	if err != nil {
		t.Fatalf("fail to build query: %s", err)
	}
	items, err := q.Find(doc.Root)
	if err != nil {
		t.Fatalf("fail to evaluate query: %s", err)
	}
	if len(items) != 2 {
		t.Errorf("want 2 items, got %d", len(items))
	}
}

func TestWriterOptions(t *testing.T) {
	opts := WriterOptions{Compact: true, NoProlog: true}.options()
	if !opts.Compact() || !opts.NoProlog() || opts.NoComment() {
		t.Errorf("writer options not translated: %b", opts)
	}
}

package reader

import (
	"bytes"
	"context"
	"fmt"
	"strconv"

	pdflib "github.com/ledongthuc/pdf"
)

// PDFFormat implements Format for PDF files using the page-indexed reader.
type PDFFormat struct{}

func init() {
	Register(&PDFFormat{})
}

func (f *PDFFormat) Name() string         { return "PDF" }
func (f *PDFFormat) Extensions() []string { return []string{".pdf"} }
func (f *PDFFormat) New(path string, src Source, opts Options) Reader {
	return NewPagedReader(path, &pdfPages{path: path, src: src}, opts)
}

// pdfPages is a PageSource over a PDF held in memory.
type pdfPages struct {
	path string
	src  Source
	doc  *pdflib.Reader
}

func (p *pdfPages) Open(ctx context.Context) (info PageInfo, err error) {
	data, err := p.src.ReadFile(p.path)
	if err != nil {
		return PageInfo{}, err
	}
	defer func() {
		if r := recover(); r != nil {
			info, err = PageInfo{}, fmt.Errorf("parse pdf: %v", r)
		}
	}()
	doc, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return PageInfo{}, fmt.Errorf("parse pdf: %w", err)
	}
	p.doc = doc

	md := statMetadata(p.src, p.path)
	meta := doc.Trailer().Key("Info")
	title := meta.Key("Title").Text()
	author := meta.Key("Author").Text()
	if s := meta.Key("Subject").Text(); s != "" {
		md["subject"] = s
	}
	if s := meta.Key("Producer").Text(); s != "" {
		md["producer"] = s
	}
	md["pages"] = strconv.Itoa(doc.NumPage())

	return PageInfo{
		Pages:    doc.NumPage(),
		Title:    title,
		Author:   author,
		Metadata: md,
	}, nil
}

func (p *pdfPages) PageText(ctx context.Context, n int) (text string, err error) {
	if p.doc == nil {
		return "", ErrNotLoaded
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("pdf page %d: %v", n, r)
		}
	}()
	page := p.doc.Page(n)
	if page.V.IsNull() {
		return "", nil
	}
	return page.GetPlainText(nil)
}

func (p *pdfPages) Close() error {
	p.doc = nil
	return nil
}

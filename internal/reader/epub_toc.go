package reader

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/taylorskalyo/goreader/epub"
)

// NCX XML structures for parsing toc.ncx
type ncx struct {
	NavMap navMap `xml:"navMap"`
}

type navMap struct {
	NavPoints []navPoint `xml:"navPoint"`
}

type navPoint struct {
	ID        string     `xml:"id,attr"`
	PlayOrder int        `xml:"playOrder,attr"`
	Label     navLabel   `xml:"navLabel"`
	Content   navContent `xml:"content"`
	Children  []navPoint `xml:"navPoint"`
}

type navLabel struct {
	Text string `xml:"text"`
}

type navContent struct {
	Src string `xml:"src,attr"`
}

// readNCX parses the NCX navigation map of an EPUB held in data into a TOC
// tree whose fragment ids are the navPoint sources.
func readNCX(data []byte, book *epub.Rootfile) ([]TOCEntry, error) {
	ncxData, err := findAndReadNCX(data, book)
	if err != nil {
		return nil, err
	}

	var toc ncx
	if err := xml.Unmarshal(ncxData, &toc); err != nil {
		return nil, fmt.Errorf("failed to parse NCX: %w", err)
	}
	return navPointsToTOC(toc.NavMap.NavPoints), nil
}

func navPointsToTOC(points []navPoint) []TOCEntry {
	var entries []TOCEntry
	for _, np := range points {
		src := strings.TrimSpace(np.Content.Src)
		entries = append(entries, TOCEntry{
			ID:         np.ID,
			Label:      strings.TrimSpace(np.Label.Text),
			FragmentID: src,
			Position:   AtFragment(src),
			Children:   navPointsToTOC(np.Children),
		})
	}
	return entries
}

// tocTitles maps hrefs, with and without anchors and directories, to the
// first TOC label that points at them.
func tocTitles(entries []TOCEntry) map[string]string {
	result := make(map[string]string)

	var extract func([]TOCEntry)
	extract = func(entries []TOCEntry) {
		for _, e := range entries {
			href := e.FragmentID
			if _, exists := result[href]; !exists {
				result[href] = e.Label
			}
			if idx := strings.Index(href, "#"); idx != -1 {
				baseHref := href[:idx]
				if _, exists := result[baseHref]; !exists {
					result[baseHref] = e.Label
				}
			}
			baseHref := path.Base(href)
			if idx := strings.Index(baseHref, "#"); idx != -1 {
				baseHref = baseHref[:idx]
			}
			if _, exists := result[baseHref]; !exists {
				result[baseHref] = e.Label
			}

			extract(e.Children)
		}
	}
	extract(entries)

	return result
}

func findAndReadNCX(data []byte, book *epub.Rootfile) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	var ncxPath string
	for _, item := range book.Manifest.Items {
		if item.MediaType == "application/x-dtbncx+xml" {
			ncxPath = item.HREF
			break
		}
	}
	if ncxPath == "" {
		for _, f := range zr.File {
			if strings.HasSuffix(strings.ToLower(f.Name), ".ncx") {
				ncxPath = f.Name
				break
			}
		}
	}

	if ncxPath == "" {
		return nil, fmt.Errorf("no NCX file found in EPUB")
	}

	for _, f := range zr.File {
		if f.Name == ncxPath || strings.HasSuffix(f.Name, "/"+ncxPath) || path.Base(f.Name) == path.Base(ncxPath) {
			rc, err := f.Open()
			if err != nil {
				return nil, err
			}
			defer rc.Close()
			return io.ReadAll(rc)
		}
	}

	return nil, fmt.Errorf("NCX file %s not found in archive", ncxPath)
}

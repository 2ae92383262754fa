// Package metalink serializes a download queue into a Metalink v4 (RFC 5854)
// document, the job description aria2c reads from its standard input.
package metalink

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/glorpus-work/gopill/internal/logger"
	"github.com/glorpus-work/gopill/pkg/errors"
	"github.com/glorpus-work/gopill/pkg/model"
)

// Namespace is the Metalink v4 XML namespace.
const Namespace = "urn:ietf:params:xml:ns:metalink"

// HashSHA256 is the IANA hash name used for package checksums.
const HashSHA256 = "sha-256"

// Document is a Metalink v4 document.
type Document struct {
	XMLName xml.Name `xml:"urn:ietf:params:xml:ns:metalink metalink"`
	Files   []File   `xml:"file"`
}

// File is one downloadable file.
type File struct {
	Name   string `xml:"name,attr"`
	Size   int64  `xml:"size,omitempty"`
	Hashes []Hash `xml:"hash,omitempty"`
	URLs   []URL  `xml:"url"`
}

// Hash is an expected content digest.
type Hash struct {
	Type  string `xml:"type,attr"`
	Value string `xml:",chardata"`
}

// URL is a source location. Priority 1 is the most preferred.
type URL struct {
	Priority int    `xml:"priority,attr"`
	Value    string `xml:",chardata"`
}

// FromQueue builds a document with one entry per artifact, followed directly
// by its signature entry when one is wanted. Local file:// sources never
// appear; an artifact left without remote sources is skipped.
func FromQueue(q *model.DownloadQueue) *Document {
	doc := &Document{}
	for _, db := range q.Databases() {
		doc.add(db.Filename(), 0, "", db.URLs(), db.WantsSignature)
	}
	for _, pkg := range q.Packages() {
		doc.add(pkg.Filename, pkg.Size, pkg.Checksum, pkg.URLs, pkg.WantsSignature)
	}
	return doc
}

func (d *Document) add(name string, size int64, checksum string, candidates []string, sig bool) {
	urls := remoteURLs(candidates)
	if len(urls) == 0 {
		logger.Warn("No remote source for artifact, leaving it out of the metalink", logger.Fields{"file": name})
		return
	}

	f := File{Name: name, Size: size, URLs: prioritized(urls, "")}
	if checksum != "" {
		f.Hashes = []Hash{{Type: HashSHA256, Value: strings.ToLower(checksum)}}
	}
	d.Files = append(d.Files, f)

	if sig {
		d.Files = append(d.Files, File{
			Name: name + model.SignatureExt,
			URLs: prioritized(urls, model.SignatureExt),
		})
	}
}

// Filenames returns the file names in document order.
func (d *Document) Filenames() []string {
	names := make([]string, 0, len(d.Files))
	for _, f := range d.Files {
		names = append(names, f.Name)
	}
	return names
}

// Marshal renders the document with an XML declaration.
func (d *Document) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(d); err != nil {
		return nil, errors.Wrap(err, "failed to encode metalink")
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// Parse decodes a document produced by Marshal.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode metalink: %w", err)
	}
	return &doc, nil
}

func remoteURLs(candidates []string) []string {
	var urls []string
	for _, u := range candidates {
		if u == "" || strings.HasPrefix(u, "file://") {
			continue
		}
		urls = append(urls, u)
	}
	return urls
}

func prioritized(urls []string, suffix string) []URL {
	out := make([]URL, 0, len(urls))
	for i, u := range urls {
		out = append(out, URL{Priority: i + 1, Value: u + suffix})
	}
	return out
}

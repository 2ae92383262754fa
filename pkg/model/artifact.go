// Package model provides data structures and types for representing the
// artifacts gopill fetches and the queues that carry them between transports.
package model

import (
	"strings"

	"github.com/hashicorp/go-version"
)

const (
	// DatabaseExt is the extension of a sync database.
	DatabaseExt = ".db"
	// FilesExt is the extension of a sync database that also carries file lists.
	FilesExt = ".files"
	// SignatureExt is the extension of a detached signature.
	SignatureExt = ".sig"
)

// DatabaseArtifact represents one repository's sync database.
type DatabaseArtifact struct {
	Name            string   `json:"name" yaml:"name"`
	Servers         []string `json:"servers" yaml:"servers"`
	WantsSignature  bool     `json:"wants_signature" yaml:"wants_signature"`
	WantsFilesIndex bool     `json:"wants_files_index" yaml:"wants_files_index"`
}

// Filename returns the on-disk name of the database, honoring WantsFilesIndex.
func (d DatabaseArtifact) Filename() string {
	if d.WantsFilesIndex {
		return d.Name + FilesExt
	}
	return d.Name + DatabaseExt
}

// URLs returns one download URL per server, in server order.
func (d DatabaseArtifact) URLs() []string {
	urls := make([]string, 0, len(d.Servers))
	for _, server := range d.Servers {
		urls = append(urls, JoinURL(server, d.Filename()))
	}
	return urls
}

// PackageArtifact represents one package file in a sync repository.
type PackageArtifact struct {
	Name           string   `json:"name" yaml:"name"`
	Version        string   `json:"version" yaml:"version"`
	Filename       string   `json:"filename" yaml:"filename"`
	Repository     string   `json:"repository" yaml:"repository"`
	Checksum       string   `json:"checksum" yaml:"checksum"`
	Size           int64    `json:"size,omitempty" yaml:"size,omitempty"`
	URLs           []string `json:"urls" yaml:"urls"`
	WantsSignature bool     `json:"wants_signature" yaml:"wants_signature"`
}

// CompareVersions orders two pacman version strings ("epoch:pkgver-pkgrel").
// It returns -1, 0 or 1. Epochs compare numerically, then pkgver and pkgrel
// through go-version; parts go-version cannot parse compare as strings.
func CompareVersions(a, b string) int {
	ae, av, ar := splitVersion(a)
	be, bv, br := splitVersion(b)
	if c := compareSegment(ae, be); c != 0 {
		return c
	}
	if c := compareSegment(av, bv); c != 0 {
		return c
	}
	return compareSegment(ar, br)
}

func splitVersion(v string) (epoch, pkgver, pkgrel string) {
	epoch = "0"
	if i := strings.IndexByte(v, ':'); i >= 0 {
		epoch, v = v[:i], v[i+1:]
	}
	pkgrel = "0"
	if i := strings.LastIndexByte(v, '-'); i >= 0 {
		v, pkgrel = v[:i], v[i+1:]
	}
	return epoch, v, pkgrel
}

func compareSegment(a, b string) int {
	va, errA := version.NewVersion(a)
	vb, errB := version.NewVersion(b)
	if errA == nil && errB == nil {
		return va.Compare(vb)
	}
	return strings.Compare(a, b)
}

// JoinURL joins a server base and a filename with exactly one slash.
func JoinURL(base, name string) string {
	return strings.TrimRight(base, "/") + "/" + name
}

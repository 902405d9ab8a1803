// Package manifest discovers and parses sticker manifests and turns them into download tasks.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
)

// Entry is one sticker in a manifest. Either field may be missing or empty.
type Entry struct {
	URL   string `json:"url,omitempty"`
	Thumb string `json:"thumb,omitempty"`
}

// Refs returns the entry's non-empty asset references in (url, thumb) order
func (e Entry) Refs() []string {
	refs := make([]string, 0, 2)
	if e.URL != "" {
		refs = append(refs, e.URL)
	}
	if e.Thumb != "" {
		refs = append(refs, e.Thumb)
	}
	return refs
}

// Manifest is the document shape { "data": { "data": [ Entry... ] } }
type Manifest struct {
	Data *struct {
		Data []Entry `json:"data"`
	} `json:"data"`
}

// Entries returns the sticker list, or nil when the nested list is absent
func (m *Manifest) Entries() []Entry {
	if m == nil || m.Data == nil {
		return nil
	}
	return m.Data.Data
}

// ParseError reports a manifest that could not be read or decoded
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("reading manifest %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Parse reads and decodes the manifest at path
func Parse(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	return &m, nil
}

package datasource

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/rolepattern/pkg/debug"
	"github.com/vanderheijden86/rolepattern/pkg/model"
)

// Document is the on-disk JSON form. Elements may be written flat or in
// the {"data": {...}} envelope graph front ends commonly emit; both decode
// to the same model types.
//
//	{
//	  "versions": [1, 2],
//	  "elements": {
//	    "nodes": [{"data": {"id": "n1", "version": 1, "role": "A"}}],
//	    "edges": [{"data": {"id": "e1", "version": 1, "source": "n1", ...}}]
//	  }
//	}
type Document struct {
	Versions []model.Version `json:"versions,omitempty"`
	Elements model.Elements  `json:"-"`
}

type wireDocument struct {
	Versions []model.Version `json:"versions,omitempty"`
	Elements wireElements    `json:"elements"`
}

type wireElements struct {
	Nodes []json.RawMessage `json:"nodes"`
	Edges []json.RawMessage `json:"edges"`
}

type envelope struct {
	Data json.RawMessage `json:"data"`
}

// unwrap returns the "data" payload when present, else raw itself.
func unwrap(raw json.RawMessage) json.RawMessage {
	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil && len(env.Data) > 0 && !bytes.Equal(env.Data, []byte("null")) {
		return env.Data
	}
	return raw
}

// ParseDocument decodes a graph document. Versions default to the order
// they first appear on elements when the document carries no list.
func ParseDocument(r io.Reader) (Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Document{}, fmt.Errorf("reading document: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	var wire wireDocument
	if err := json.Unmarshal(data, &wire); err != nil {
		return Document{}, fmt.Errorf("parsing document: %w", err)
	}

	doc := Document{Versions: wire.Versions}
	doc.Elements.Nodes = make([]model.Node, 0, len(wire.Elements.Nodes))
	for i, raw := range wire.Elements.Nodes {
		var n model.Node
		if err := json.Unmarshal(unwrap(raw), &n); err != nil {
			return Document{}, fmt.Errorf("node %d: %w", i, err)
		}
		doc.Elements.Nodes = append(doc.Elements.Nodes, n)
	}
	doc.Elements.Edges = make([]model.Edge, 0, len(wire.Elements.Edges))
	for i, raw := range wire.Elements.Edges {
		var e model.Edge
		if err := json.Unmarshal(unwrap(raw), &e); err != nil {
			return Document{}, fmt.Errorf("edge %d: %w", i, err)
		}
		doc.Elements.Edges = append(doc.Elements.Edges, e)
	}
	if doc.Versions == nil {
		doc.Versions = doc.Elements.Versions()
	}
	return doc, nil
}

// WriteDocument encodes doc in the envelope form.
func WriteDocument(w io.Writer, doc Document) error {
	type nodeEnv struct {
		Data model.Node `json:"data"`
	}
	type edgeEnv struct {
		Data model.Edge `json:"data"`
	}
	out := struct {
		Versions []model.Version `json:"versions"`
		Elements struct {
			Nodes []nodeEnv `json:"nodes"`
			Edges []edgeEnv `json:"edges"`
		} `json:"elements"`
	}{Versions: doc.Versions}
	out.Elements.Nodes = make([]nodeEnv, len(doc.Elements.Nodes))
	for i, n := range doc.Elements.Nodes {
		out.Elements.Nodes[i] = nodeEnv{n}
	}
	out.Elements.Edges = make([]edgeEnv, len(doc.Elements.Edges))
	for i, e := range doc.Elements.Edges {
		out.Elements.Edges[i] = edgeEnv{e}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// FileSource reads a JSON document, re-parsing only when the file's
// modification time or size changes.
type FileSource struct {
	path string

	mu      sync.Mutex
	doc     Document
	modTime time.Time
	size    int64
	loaded  bool
}

// NewFileSource returns a source for the document at path. Nothing is
// read until the first call.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Path returns the document path.
func (s *FileSource) Path() string {
	return s.path
}

func (s *FileSource) load(ctx context.Context) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := os.Stat(s.path)
	if err != nil {
		return Document{}, fmt.Errorf("stat %s: %w", s.path, err)
	}
	if s.loaded && info.ModTime().Equal(s.modTime) && info.Size() == s.size {
		return s.doc, nil
	}

	f, err := os.Open(s.path)
	if err != nil {
		return Document{}, fmt.Errorf("open %s: %w", s.path, err)
	}
	defer f.Close()

	start := time.Now()
	doc, err := ParseDocument(f)
	if err != nil {
		return Document{}, fmt.Errorf("%s: %w", s.path, err)
	}
	debug.LogTiming("parse "+s.path, time.Since(start))

	s.doc = doc
	s.modTime = info.ModTime()
	s.size = info.Size()
	s.loaded = true
	return doc, nil
}

func (s *FileSource) Elements(ctx context.Context) (model.Elements, error) {
	doc, err := s.load(ctx)
	return doc.Elements, err
}

func (s *FileSource) Versions(ctx context.Context) ([]model.Version, error) {
	doc, err := s.load(ctx)
	return doc.Versions, err
}

func (s *FileSource) Close() error { return nil }

// Package workspace holds the in-memory set of editable documents.
//
// Documents are kept in creation order and at most one is active. All
// accessors return copies; the Workspace is the only owner of document
// state. A Workspace is safe for concurrent use.
package workspace

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

var (
	ErrNotFound        = errors.New("document not found")
	ErrUnknownLanguage = errors.New("unknown language")
)

// Document is one editable unit of source text.
type Document struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Content  string `json:"content"`
	Language string `json:"language"`
	Path     string `json:"path"`
}

// Workspace is an ordered collection of documents.
type Workspace struct {
	langs  Languages
	docs   []*Document
	active string
	mu     sync.RWMutex
}

// New returns an empty workspace using langs, or DefaultLanguages if nil.
func New(langs Languages) *Workspace {
	if langs == nil {
		langs = DefaultLanguages
	}
	return &Workspace{langs: langs}
}

// Languages returns the workspace's language registry.
func (w *Workspace) Languages() Languages {
	return w.langs
}

// Create adds a document for languageID with the language's default
// content and makes it active. The first document is named main<ext>;
// later ones new_file_<n><ext>.
func (w *Workspace) Create(languageID string) (Document, error) {
	lang, ok := w.langs.Lookup(languageID)
	if !ok {
		return Document{}, fmt.Errorf("%w: %q", ErrUnknownLanguage, languageID)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	name := w.nextName(lang)
	doc := &Document{
		ID:       uuid.NewString(),
		Name:     name,
		Content:  lang.DefaultCode,
		Language: lang.ID,
		Path:     name,
	}
	w.docs = append(w.docs, doc)
	w.active = doc.ID
	return *doc, nil
}

func (w *Workspace) nextName(lang Language) string {
	if len(w.docs) == 0 {
		return "main" + lang.Extension
	}
	for n := len(w.docs) + 1; ; n++ {
		name := fmt.Sprintf("new_file_%d%s", n, lang.Extension)
		if !w.nameTaken(name) {
			return name
		}
	}
}

func (w *Workspace) nameTaken(name string) bool {
	for _, d := range w.docs {
		if d.Name == name {
			return true
		}
	}
	return false
}

func (w *Workspace) find(id string) (int, *Document) {
	for i, d := range w.docs {
		if d.ID == id {
			return i, d
		}
	}
	return -1, nil
}

// Select makes the document with id active.
func (w *Workspace) Select(id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, d := w.find(id); d == nil {
		return ErrNotFound
	}
	w.active = id
	return nil
}

// Delete removes a document. If it was active, the first remaining
// document becomes active, or none if the workspace is now empty.
func (w *Workspace) Delete(id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	i, d := w.find(id)
	if d == nil {
		return ErrNotFound
	}
	w.docs = append(w.docs[:i], w.docs[i+1:]...)

	if w.active == id {
		w.active = ""
		if len(w.docs) > 0 {
			w.active = w.docs[0].ID
		}
	}
	return nil
}

// Edit replaces a document's content.
func (w *Workspace) Edit(id, content string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	_, d := w.find(id)
	if d == nil {
		return ErrNotFound
	}
	d.Content = content
	return nil
}

// Rename changes a document's name and path.
func (w *Workspace) Rename(id, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("name required")
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	_, d := w.find(id)
	if d == nil {
		return ErrNotFound
	}
	d.Name = name
	d.Path = name
	return nil
}

// ChangeLanguage reassigns a document's language and swaps its file
// extension. Content is reset to the new language's default only when it
// still equals the previous language's unmodified default.
func (w *Workspace) ChangeLanguage(id, languageID string) error {
	lang, ok := w.langs.Lookup(languageID)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownLanguage, languageID)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	_, d := w.find(id)
	if d == nil {
		return ErrNotFound
	}

	prev, _ := w.langs.Lookup(d.Language)
	if d.Content == prev.DefaultCode {
		d.Content = lang.DefaultCode
	}

	base := d.Name
	if idx := strings.IndexByte(base, '.'); idx != -1 {
		base = base[:idx]
	}
	d.Name = base + lang.Extension
	d.Path = d.Name
	d.Language = lang.ID
	return nil
}

// Get returns the document with id.
func (w *Workspace) Get(id string) (Document, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	_, d := w.find(id)
	if d == nil {
		return Document{}, ErrNotFound
	}
	return *d, nil
}

// Active returns the active document, if any.
func (w *Workspace) Active() (Document, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	_, d := w.find(w.active)
	if d == nil {
		return Document{}, false
	}
	return *d, true
}

// Documents returns all documents in creation order.
func (w *Workspace) Documents() []Document {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make([]Document, len(w.docs))
	for i, d := range w.docs {
		out[i] = *d
	}
	return out
}

// Len returns the number of documents.
func (w *Workspace) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.docs)
}

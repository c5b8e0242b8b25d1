package render

import (
	"fmt"
	"log"
	"os"
	"sort"
	"sync"

	"github.com/gogpu/gg/text"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomedium"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
)

// DefaultFont is used whenever a requested font is unknown or failed to load.
const DefaultFont = "Go Regular"

var builtinFonts = map[string][]byte{
	"Go Regular": goregular.TTF,
	"Go Bold":    gobold.TTF,
	"Go Italic":  goitalic.TTF,
	"Go Medium":  gomedium.TTF,
	"Go Mono":    gomono.TTF,
}

type faceKey struct {
	name string
	size float64
}

// FontCatalog holds the selectable fonts and caches faces per size.
type FontCatalog struct {
	mu      sync.Mutex
	sources map[string]*text.FontSource
	faces   map[faceKey]text.Face
}

// NewFontCatalog loads the built-in Go fonts plus any TTF files given as
// name -> path. Files that cannot be read or parsed are skipped.
func NewFontCatalog(files map[string]string) (*FontCatalog, error) {
	c := &FontCatalog{
		sources: make(map[string]*text.FontSource),
		faces:   make(map[faceKey]text.Face),
	}
	for name, data := range builtinFonts {
		src, err := text.NewFontSource(data)
		if err != nil {
			return nil, fmt.Errorf("load built-in font %q: %w", name, err)
		}
		c.sources[name] = src
	}
	for name, path := range files {
		if err := c.LoadFile(name, path); err != nil {
			log.Printf("[FONTS] %v, falling back to %s", err, DefaultFont)
		}
	}
	return c, nil
}

// LoadFile registers a TTF file under name.
func (c *FontCatalog) LoadFile(name, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read font %q: %w", name, err)
	}
	src, err := text.NewFontSource(data)
	if err != nil {
		return fmt.Errorf("parse font %q: %w", name, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.sources[name]; ok {
		_ = old.Close()
	}
	c.sources[name] = src
	for k := range c.faces {
		if k.name == name {
			delete(c.faces, k)
		}
	}
	return nil
}

// Names lists the available fonts in alphabetical order.
func (c *FontCatalog) Names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.sources))
	for n := range c.sources {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Has reports whether name is loaded.
func (c *FontCatalog) Has(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.sources[name]
	return ok
}

// Face returns the face for name at size, using DefaultFont for unknown names.
func (c *FontCatalog) Face(name string, size float64) text.Face {
	c.mu.Lock()
	defer c.mu.Unlock()
	src, ok := c.sources[name]
	if !ok {
		name = DefaultFont
		if src, ok = c.sources[name]; !ok {
			return nil
		}
	}
	key := faceKey{name: name, size: size}
	if f, ok := c.faces[key]; ok {
		return f
	}
	f := src.Face(size)
	c.faces[key] = f
	return f
}

// Close releases every font source.
func (c *FontCatalog) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for name, src := range c.sources {
		_ = src.Close()
		delete(c.sources, name)
	}
	c.faces = make(map[faceKey]text.Face)
	return nil
}

// Package assets serves the embedded stylesheets and scripts under
// content-digest file names.
package assets

import (
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/suteetoe/thing-service/pkg/logger"
	"go.uber.org/zap"
)

//go:embed static
var staticFS embed.FS

// Prefix is the URL path assets are served under
const Prefix = "/assets"

// ManifestFile is written next to the precompiled assets
const ManifestFile = "manifest.json"

const digestLength = 16

type asset struct {
	logical string
	digest  string
	content []byte
}

// Pipeline knows every embedded asset and its fingerprinted name
type Pipeline struct {
	byLogical map[string]*asset
	byDigest  map[string]*asset
}

// NewPipeline reads and fingerprints the embedded assets
func NewPipeline() (*Pipeline, error) {
	return newPipeline(staticFS, "static")
}

func newPipeline(fsys fs.FS, root string) (*Pipeline, error) {
	p := &Pipeline{
		byLogical: map[string]*asset{},
		byDigest:  map[string]*asset{},
	}

	err := fs.WalkDir(fsys, root, func(name string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return err
		}
		logical := strings.TrimPrefix(name, root+"/")
		a := &asset{logical: logical, digest: digestName(logical, content), content: content}
		p.byLogical[a.logical] = a
		p.byDigest[a.digest] = a
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load assets: %w", err)
	}
	return p, nil
}

// digestName turns application.css into application-<hash>.css
func digestName(logical string, content []byte) string {
	sum := sha256.Sum256(content)
	ext := path.Ext(logical)
	return strings.TrimSuffix(logical, ext) + "-" + hex.EncodeToString(sum[:])[:digestLength] + ext
}

// Path returns the public URL of a logical asset. Unknown assets keep their name.
func (p *Pipeline) Path(logical string) string {
	if a, ok := p.byLogical[logical]; ok {
		return Prefix + "/" + a.digest
	}
	return Prefix + "/" + logical
}

// Manifest maps logical names to digest names
func (p *Pipeline) Manifest() map[string]string {
	out := make(map[string]string, len(p.byLogical))
	for logical, a := range p.byLogical {
		out[logical] = a.digest
	}
	return out
}

// Handler serves assets by digest or logical name. Digest names are cached forever.
func (p *Pipeline) Handler() echo.HandlerFunc {
	return func(c echo.Context) error {
		name := c.Param("*")

		if a, ok := p.byDigest[name]; ok {
			c.Response().Header().Set("Cache-Control", "public, max-age=31536000, immutable")
			return c.Blob(http.StatusOK, contentType(name), a.content)
		}
		if a, ok := p.byLogical[name]; ok {
			c.Response().Header().Set("Cache-Control", "no-cache")
			return c.Blob(http.StatusOK, contentType(name), a.content)
		}

		logger.FromEcho(c).Debug("Asset not found", zap.String("asset", name))
		return echo.ErrNotFound
	}
}

// Precompile writes every digested asset and the manifest to dir and returns
// the written file names.
func (p *Pipeline) Precompile(dir string) ([]string, error) {
	logicals := make([]string, 0, len(p.byLogical))
	for logical := range p.byLogical {
		logicals = append(logicals, logical)
	}
	sort.Strings(logicals)

	var written []string
	for _, logical := range logicals {
		a := p.byLogical[logical]
		target := filepath.Join(dir, filepath.FromSlash(a.digest))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return written, fmt.Errorf("failed to create %s: %w", filepath.Dir(target), err)
		}
		if err := os.WriteFile(target, a.content, 0o644); err != nil {
			return written, fmt.Errorf("failed to write %s: %w", target, err)
		}
		written = append(written, target)
	}

	manifest, err := json.MarshalIndent(p.Manifest(), "", "  ")
	if err != nil {
		return written, fmt.Errorf("failed to encode manifest: %w", err)
	}
	target := filepath.Join(dir, ManifestFile)
	if err := os.WriteFile(target, manifest, 0o644); err != nil {
		return written, fmt.Errorf("failed to write %s: %w", target, err)
	}
	return append(written, target), nil
}

func contentType(name string) string {
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		return ct
	}
	return echo.MIMEOctetStream
}

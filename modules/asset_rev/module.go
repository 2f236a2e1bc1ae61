// Package asset_rev provides the "asset_rev" transform: it renames assets
// to content-hashed names and rewrites references to them.
package asset_rev

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"path"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/specialistvlad/burstbuild/internal/ctxlog"
	"github.com/specialistvlad/burstbuild/internal/filetree"
	"github.com/specialistvlad/burstbuild/internal/registry"
	"github.com/specialistvlad/burstbuild/internal/stage"
	"github.com/zclconf/go-cty/cty"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

var (
	defaultExtensions        = []string{"js", "css", "png", "jpg", "jpeg", "gif", "svg", "map"}
	defaultReplaceExtensions = []string{"html", "css", "js"}
)

// AssetMapPath is where the rename map is written when generate_asset_map is set.
const AssetMapPath = "assets/assetMap.json"

// Transform fingerprints every file with one of the configured extensions
// (not matching exclude) as name-<md5>.ext and rewrites references in files
// with a replace_extensions extension. Hashes are computed from the
// original content. prepend is put in front of rewritten references.
func Transform(ctx context.Context, inputs []*filetree.Tree, cfg stage.Config) (*filetree.Tree, error) {
	logger := ctxlog.FromContext(ctx)
	extensions, err := cfg.Strings("extensions", defaultExtensions)
	if err != nil {
		return nil, err
	}
	replaceExtensions, err := cfg.Strings("replace_extensions", defaultReplaceExtensions)
	if err != nil {
		return nil, err
	}
	exclude, err := cfg.Strings("exclude", nil)
	if err != nil {
		return nil, err
	}
	prepend, err := cfg.String("prepend", "")
	if err != nil {
		return nil, err
	}
	assetMap, err := cfg.Bool("generate_asset_map", false)
	if err != nil {
		return nil, err
	}

	in := inputs[0]
	renames := make(map[string]string)
	_ = in.Walk(func(p string, e filetree.Entry) error {
		if hasExt(p, extensions) && !excluded(p, exclude) {
			renames[p] = fingerprinted(p, e.Content())
		}
		return nil
	})

	b := filetree.NewBuilder()
	_ = in.Walk(func(p string, e filetree.Entry) error {
		content := e.Content()
		if hasExt(p, replaceExtensions) {
			content = rewrite(content, p, renames, prepend)
		}
		dst := p
		if renamed, ok := renames[p]; ok {
			dst = renamed
		}
		b.Add(dst, content, e.Mode())
		return nil
	})
	if assetMap {
		raw, err := json.MarshalIndent(map[string]any{"assets": renames, "prepend": prepend}, "", "  ")
		if err != nil {
			return nil, err
		}
		b.Add(AssetMapPath, raw, filetree.DefaultMode)
	}
	logger.Debug("Assets fingerprinted.", "count", len(renames))
	return b.Tree()
}

// fingerprinted inserts the md5 of content before the first extension of
// the file name, so "app.js.map" becomes "app-<hash>.js.map".
func fingerprinted(p string, content []byte) string {
	sum := md5.Sum(content)
	hash := hex.EncodeToString(sum[:])
	dir, file := path.Split(p)
	name, ext, found := strings.Cut(file, ".")
	if !found {
		return dir + file + "-" + hash
	}
	return dir + name + "-" + hash + "." + ext
}

func hasExt(p string, exts []string) bool {
	for _, ext := range exts {
		if strings.HasSuffix(p, "."+strings.TrimPrefix(ext, ".")) {
			return true
		}
	}
	return false
}

func excluded(p string, patterns []string) bool {
	for _, pat := range patterns {
		if ok, _ := doublestar.Match(pat, p); ok {
			return true
		}
	}
	return false
}

type reference struct {
	from, to string
}

// references lists the spellings under which the file at p may refer to
// each renamed asset: root-relative with and without a leading slash, and
// relative to p's directory. With a prepend value every reference becomes
// absolute. Longer spellings come first.
func references(p string, renames map[string]string, prepend string) []reference {
	dir := path.Dir(p)
	base := strings.TrimSuffix(prepend, "/")
	var refs []reference
	for from, to := range renames {
		if prepend != "" {
			refs = append(refs,
				reference{from: "/" + from, to: base + "/" + to},
				reference{from: from, to: base + "/" + to},
			)
			continue
		}
		refs = append(refs,
			reference{from: "/" + from, to: "/" + to},
			reference{from: from, to: to},
		)
		if dir != "." && strings.HasPrefix(from, dir+"/") {
			refs = append(refs, reference{from: strings.TrimPrefix(from, dir+"/"), to: strings.TrimPrefix(to, dir+"/")})
		}
	}
	sort.Slice(refs, func(i, j int) bool {
		if len(refs[i].from) != len(refs[j].from) {
			return len(refs[i].from) > len(refs[j].from)
		}
		return refs[i].from < refs[j].from
	})
	return refs
}

func isPathByte(c byte) bool {
	return c == '/' || c == '.' || c == '-' || c == '_' ||
		('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}

// bounded reports whether s[i:end] stands alone as a path: it is not
// preceded by a path character and not followed by one, except for a
// sentence-ending dot.
func bounded(s string, i, end int) bool {
	if i > 0 && isPathByte(s[i-1]) {
		return false
	}
	if end == len(s) {
		return true
	}
	if s[end] == '.' {
		return end+1 == len(s) || !isPathByte(s[end+1])
	}
	return !isPathByte(s[end])
}

// rewrite replaces whole-path references to renamed assets.
func rewrite(content []byte, p string, renames map[string]string, prepend string) []byte {
	if len(renames) == 0 {
		return content
	}
	refs := references(p, renames, prepend)
	s := string(content)
	var b strings.Builder
	for i := 0; i < len(s); {
		matched := false
		for _, r := range refs {
			if strings.HasPrefix(s[i:], r.from) && bounded(s, i, i+len(r.from)) {
				b.WriteString(r.to)
				i += len(r.from)
				matched = true
				break
			}
		}
		if !matched {
			b.WriteByte(s[i])
			i++
		}
	}
	return []byte(b.String())
}

// Register registers the transform with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterTransform("asset_rev", &registry.Transform{
		Fn: Transform,
		Options: map[string]cty.Type{
			"extensions":         cty.List(cty.String),
			"replace_extensions": cty.List(cty.String),
			"exclude":            cty.List(cty.String),
			"prepend":            cty.String,
			"generate_asset_map": cty.Bool,
		},
		MinInputs:   1,
		MaxInputs:   1,
		Description: "Fingerprint assets and rewrite references.",
	})
}

// Package assets mirrors the remote media referenced by scraped records into a
// local directory tree and rewrites the records to point at the local copies.
package assets

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/brojonat/gyards/property"
)

const (
	DefaultTimeout = 10 * time.Second
	assetsDir      = "assets"

	categoryBuilderLogo = "Builder Logo"
	categoryThumbnail   = "Project Images/Thumbnail"
	categoryAmenity     = "Amenities Icon"
	categoryFloorPlan   = "Floor Plan Image"
	categoryGallery     = "Project Images"
	categoryVideo       = "Videos"
)

// Mirror receives every file the localizer resolved, keyed by its path
// relative to the output root.
type Mirror interface {
	Mirror(ctx context.Context, relPath, localPath string) error
}

type Options struct {
	HTTPClient *http.Client
	Timeout    time.Duration
	Mirror     Mirror
}

// Localizer downloads media into Root and rewrites record fields to paths
// relative to Root. It is meant to run once, single-threaded, after a scrape.
type Localizer struct {
	logger  *slog.Logger
	root    string
	hc      *http.Client
	timeout time.Duration
	mirror  Mirror
}

func NewLocalizer(logger *slog.Logger, root string, opts Options) *Localizer {
	l := &Localizer{
		logger:  logger,
		root:    root,
		hc:      opts.HTTPClient,
		timeout: opts.Timeout,
		mirror:  opts.Mirror,
	}
	if l.hc == nil {
		l.hc = http.DefaultClient
	}
	if l.timeout <= 0 {
		l.timeout = DefaultTimeout
	}
	return l
}

// Localize rewrites the media fields of records in place and returns them with
// a report of what was downloaded, skipped and failed. Fields whose download
// failed keep their remote URL. Virtual tour links are never touched.
func (l *Localizer) Localize(ctx context.Context, records []property.Record) ([]property.Record, *Report) {
	rep := &Report{}
	for i := range records {
		if ctx.Err() != nil {
			break
		}
		l.localizeRecord(ctx, &records[i], rep)
	}
	return records, rep
}

func (l *Localizer) localizeRecord(ctx context.Context, r *property.Record, rep *Report) {
	id := r.ID
	if id == "" {
		id = "unknown"
	}
	l.resolve(ctx, rep, &r.BuilderInfo.ImageURL, id, categoryBuilderLogo, "")
	l.resolve(ctx, rep, &r.Project.ThumbnailImage, id, categoryThumbnail, "")

	for _, k := range sortedKeys(r.Project.Amenities) {
		items := r.Project.Amenities[k]
		for j := range items {
			l.resolve(ctx, rep, &items[j].IconURL, id, categoryAmenity, "")
		}
	}
	for _, k := range sortedKeys(r.Project.FloorPlans) {
		items := r.Project.FloorPlans[k]
		for j := range items {
			l.resolve(ctx, rep, &items[j].Image2DURL, id, categoryFloorPlan, k)
		}
	}
	for _, k := range sortedKeys(r.AllMedia.Images) {
		items := r.AllMedia.Images[k]
		for j := range items {
			l.resolve(ctx, rep, &items[j].Src, id, categoryGallery, k)
		}
	}
	for j := range r.AllMedia.Videos {
		l.resolve(ctx, rep, &r.AllMedia.Videos[j].Src, id, categoryVideo, "")
	}
}

// resolve localizes the asset *field points at and rewrites *field on success.
func (l *Localizer) resolve(ctx context.Context, rep *Report, field *string, id, category, sub string) {
	src := *field
	if src == "" {
		return
	}
	rel, err := AssetPath(id, category, sub, src)
	if err != nil {
		l.logger.Warn("cannot place asset", "url", src, "error", err.Error())
		rep.Failed = append(rep.Failed, Failure{URL: src, Path: ""})
		return
	}
	full := filepath.Join(l.root, filepath.FromSlash(rel))
	shown := filepath.ToSlash(full)

	if _, err := os.Stat(full); err == nil {
		rep.Skipped = append(rep.Skipped, shown)
		*field = rel
		l.mirrorFile(ctx, rel, full)
		return
	}

	if err := l.download(ctx, src, full); err != nil {
		l.logger.Warn("asset download failed", "url", src, "path", shown, "error", err.Error())
		rep.Failed = append(rep.Failed, Failure{URL: src, Path: shown})
		return
	}
	rep.Downloaded = append(rep.Downloaded, shown)
	*field = rel
	l.mirrorFile(ctx, rel, full)
}

func (l *Localizer) mirrorFile(ctx context.Context, rel, full string) {
	if l.mirror == nil {
		return
	}
	if err := l.mirror.Mirror(ctx, rel, full); err != nil {
		l.logger.Error("error mirroring asset", "path", rel, "error", err.Error())
	}
}

// download streams src into dst through a temporary file in the same
// directory so dst is either absent or complete.
func (l *Localizer) download(ctx context.Context, src, dst string) error {
	u, err := url.Parse(src)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("not a remote url: %q", src)
	}
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return err
	}
	res, err := l.hc.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", res.Status)
	}

	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dst)+".*.part")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, res.Body); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}

// AssetPath returns the slash-separated path, relative to the output root, at
// which the asset behind src is stored:
//
//	assets/{id}/{category}[/{sub}]/{basename}
//
// Spaces in folder names become underscores.
func AssetPath(id, category, sub, src string) (string, error) {
	base, err := basename(src)
	if err != nil {
		return "", err
	}
	parts := []string{assetsDir, segment(id), folder(category)}
	if sub != "" {
		parts = append(parts, segment(sub))
	}
	parts = append(parts, base)
	return path.Join(parts...), nil
}

func basename(src string) (string, error) {
	p := src
	if u, err := url.Parse(src); err == nil {
		p = u.EscapedPath()
	}
	b := path.Base(p)
	if b == "" || b == "." || b == "/" || b == ".." {
		return "", fmt.Errorf("no file name in %q", src)
	}
	return b, nil
}

// folder keeps the nesting of a category like "Project Images/Thumbnail".
func folder(category string) string {
	segs := strings.Split(category, "/")
	for i, s := range segs {
		segs[i] = segment(s)
	}
	return strings.Join(segs, "/")
}

// segment makes one path element out of site-provided text.
func segment(s string) string {
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "_")
	s = strings.NewReplacer("/", "_", `\`, "_").Replace(s)
	if s == "" || s == "." || s == ".." {
		return "_"
	}
	return s
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}


package geo

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/shanehull/bottlescraper/internal/config"
	"github.com/shanehull/bottlescraper/internal/types"
)

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// Builder geocodes store addresses and writes one map page per product.
type Builder struct {
	geocoder Geocoder
	cfg      config.MapConfig
	tmpl     *template.Template
	now      func() time.Time
}

func NewBuilder(geocoder Geocoder, cfg config.MapConfig) *Builder {
	return &Builder{
		geocoder: geocoder,
		cfg:      cfg,
		tmpl:     template.Must(template.New("map").Parse(mapHTMLTemplate)),
		now:      time.Now,
	}
}

type mapPage struct {
	types.MapArtifact
	Zoom      int
	Generated string
}

// Build writes the map for entry. Addresses that cannot be geocoded are
// skipped; an empty address list still yields a map with the centre marker.
func (b *Builder) Build(ctx context.Context, entry types.CatalogEntry, zip string, addresses []string) (types.MapArtifact, error) {
	artifact := types.MapArtifact{
		ProductCode: entry.Code,
		ProductName: entry.Name,
		ZIP:         zip,
		Center:      b.center(ctx),
	}

	for _, address := range addresses {
		if err := ctx.Err(); err != nil {
			return types.MapArtifact{}, err
		}

		coord, err := b.geocoder.Geocode(ctx, Query(address, b.cfg.RegionSuffix))
		if err != nil {
			slog.Warn("Failed to geocode store, skipping marker", "product", entry.Code, "address", address, "error", err)
			artifact.Skipped = append(artifact.Skipped, address)
			continue
		}
		artifact.Markers = append(artifact.Markers, types.Marker{Label: address, Coordinate: coord})
	}

	if err := os.MkdirAll(b.cfg.Dir, 0o755); err != nil {
		return types.MapArtifact{}, fmt.Errorf("failed to create map directory %s: %w", b.cfg.Dir, err)
	}

	fileName := fmt.Sprintf("%s_%s.html", unsafeFileChars.ReplaceAllString(entry.Code, "_"), zip)
	artifact.Path = filepath.Join(b.cfg.Dir, fileName)

	page := mapPage{
		MapArtifact: artifact,
		Zoom:        11,
		Generated:   b.now().Format("2006-01-02 15:04"),
	}
	if len(artifact.Markers) > 0 {
		page.Zoom = 10
	}

	var buf bytes.Buffer
	if err := b.tmpl.Execute(&buf, page); err != nil {
		return types.MapArtifact{}, fmt.Errorf("failed to render map for %s: %w", entry.Code, err)
	}
	if err := os.WriteFile(artifact.Path, buf.Bytes(), 0o644); err != nil {
		return types.MapArtifact{}, fmt.Errorf("failed to write map %s: %w", artifact.Path, err)
	}

	url, err := b.url(artifact.Path, fileName)
	if err != nil {
		return types.MapArtifact{}, err
	}
	artifact.URL = url

	slog.Info("Map saved", "product", entry.Code, "path", artifact.Path, "markers", len(artifact.Markers))
	return artifact, nil
}

func (b *Builder) center(ctx context.Context) types.Marker {
	center := types.Marker{Label: b.cfg.CenterCity, Coordinate: b.cfg.DefaultCenter}
	if b.cfg.CenterCity == "" {
		return center
	}

	coord, err := b.geocoder.Geocode(ctx, b.cfg.CenterCity)
	if err != nil {
		slog.Warn("Failed to geocode map centre, using default", "city", b.cfg.CenterCity, "error", err)
		return center
	}
	center.Coordinate = coord
	return center
}

func (b *Builder) url(path, fileName string) (string, error) {
	if b.cfg.BaseURL != "" {
		return b.cfg.BaseURL + "/" + fileName, nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve map path %s: %w", path, err)
	}
	return "file://" + filepath.ToSlash(abs), nil
}

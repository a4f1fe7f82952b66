package media

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/brojonat/gyards/extract"
	"github.com/brojonat/gyards/property"
	"github.com/jmespath/go-jmespath"
)

const (
	jmesImages = "data.images[].{subTab: subTab, title: title, src: src, alt: alt}"
	jmesVideos = "data.videos[].{type: type, src: src, alt: alt}"
)

// parseGalleryPayload maps the gallery endpoint's JSON onto Media with the
// same rules the HTML gallery follows.
func parseGalleryPayload(b []byte) (property.Media, error) {
	m := property.NewMedia()
	var data interface{}
	if err := json.Unmarshal(b, &data); err != nil {
		return m, fmt.Errorf("error parsing gallery payload: %w", err)
	}

	images, err := jmesList(jmesImages, data)
	if err != nil {
		return m, fmt.Errorf("error searching gallery images: %w", err)
	}
	for _, v := range images {
		sub, src := jmesString(v, "subTab"), extract.StripQuery(jmesString(v, "src"))
		if sub == "" || src == "" {
			continue
		}
		m.Images[sub] = append(m.Images[sub], property.Image{
			Title: jmesString(v, "title"),
			Src:   src,
			Alt:   jmesString(v, "alt"),
		})
	}

	videos, err := jmesList(jmesVideos, data)
	if err != nil {
		return m, fmt.Errorf("error searching gallery videos: %w", err)
	}
	for _, v := range videos {
		src := jmesString(v, "src")
		if src == "" {
			continue
		}
		m.Videos = append(m.Videos, property.Video{
			Type: jmesString(v, "type"),
			Src:  src,
			Alt:  jmesString(v, "alt"),
		})
	}
	return m, nil
}

func jmesList(expr string, data interface{}) ([]interface{}, error) {
	res, err := jmespath.Search(expr, data)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, nil
	}
	l, ok := res.([]interface{})
	if !ok {
		return nil, fmt.Errorf("could not handle jmes return type %T", res)
	}
	return l, nil
}

func jmesString(v interface{}, key string) string {
	obj, ok := v.(map[string]interface{})
	if !ok {
		return ""
	}
	switch s := obj[key].(type) {
	case string:
		return strings.TrimSpace(s)
	case float64:
		return strings.TrimSpace(fmt.Sprint(s))
	default:
		return ""
	}
}

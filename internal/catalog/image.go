package catalog

import (
	"encoding/json"
	"strings"
)

// rawDelimiter separates paths in the oldest catalog payloads, which join
// every dish photo into one string.
const rawDelimiter = "|"

type imageKind int

const (
	imageNone imageKind = iota
	imageObjectArray
	imageSingleField
	imageDelimitedRaw
)

// imageSource is the tagged form of the three legacy upstream image shapes.
// Downstream code never branches on shape again; it only calls primary().
type imageSource struct {
	kind imageKind
	urls []string
}

func (s imageSource) primary() string {
	if len(s.urls) == 0 {
		return ""
	}
	return s.urls[0]
}

type imageObject struct {
	URL      string `json:"url"`
	ImageURL string `json:"imageUrl"`
}

func (o imageObject) value() string {
	if o.URL != "" {
		return o.URL
	}
	return o.ImageURL
}

// normalizeImage folds the three legacy shapes into one imageSource:
// an array of objects under "images", a single "image" field, or a
// delimiter-joined raw string in either place.
func normalizeImage(images json.RawMessage, single string) imageSource {
	if len(images) > 0 {
		var objects []imageObject
		if err := json.Unmarshal(images, &objects); err == nil {
			urls := make([]string, 0, len(objects))
			for _, obj := range objects {
				if v := strings.TrimSpace(obj.value()); v != "" {
					urls = append(urls, v)
				}
			}
			if len(urls) > 0 {
				return imageSource{kind: imageObjectArray, urls: urls}
			}
		}

		var raw string
		if err := json.Unmarshal(images, &raw); err == nil {
			if src := fromRawString(raw); src.kind != imageNone {
				return src
			}
		}
	}

	return fromRawString(single)
}

func fromRawString(raw string) imageSource {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return imageSource{kind: imageNone}
	}
	if strings.Contains(raw, rawDelimiter) {
		var urls []string
		for _, part := range strings.Split(raw, rawDelimiter) {
			if v := strings.TrimSpace(part); v != "" {
				urls = append(urls, v)
			}
		}
		if len(urls) == 0 {
			return imageSource{kind: imageNone}
		}
		return imageSource{kind: imageDelimitedRaw, urls: urls}
	}
	return imageSource{kind: imageSingleField, urls: []string{raw}}
}

// AbsoluteImageURL prefixes relative paths with the configured backend origin.
// Paths that already carry a scheme pass through untouched.
func AbsoluteImageURL(origin, path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	origin = strings.TrimRight(origin, "/")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return origin + path
}

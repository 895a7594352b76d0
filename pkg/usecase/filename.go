package usecase

import (
	"net/http"
	"net/url"
	"path"
	"strings"
)

// DefaultFileName is used when neither the response nor the URL yields a name
const DefaultFileName = "download"

// DeriveFileName picks the local file name of a download. A filename in
// Content-Disposition wins over the last segment of the URL path. The result
// is always a bare base name.
func DeriveFileName(header http.Header, rawURL string) string {
	if header != nil {
		if name := fileNameFromDisposition(header.Get("Content-Disposition")); name != "" {
			return name
		}
	}
	if name := fileNameFromURL(rawURL); name != "" {
		return name
	}
	return DefaultFileName
}

func fileNameFromDisposition(value string) string {
	if value == "" {
		return ""
	}

	var plain, extended string
	for _, part := range strings.Split(value, ";") {
		key, val, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		val = strings.TrimSpace(val)

		switch strings.ToLower(strings.TrimSpace(key)) {
		case "filename":
			plain = strings.Trim(val, `"'`)
		case "filename*":
			// charset'language'percent-encoded-name
			fields := strings.SplitN(strings.Trim(val, `"`), "'", 3)
			if len(fields) != 3 {
				continue
			}
			if decoded, err := url.PathUnescape(fields[2]); err == nil {
				extended = decoded
			}
		}
	}

	if name := sanitizeFileName(extended); name != "" {
		return name
	}
	return sanitizeFileName(plain)
}

func fileNameFromURL(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	} else {
		p, _, _ = strings.Cut(p, "?")
		p, _, _ = strings.Cut(p, "#")
	}
	return sanitizeFileName(p)
}

// sanitizeFileName reduces name to its base and returns "" when nothing
// usable is left.
func sanitizeFileName(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, `\`, "/"))
	if name == "" {
		return ""
	}
	base := path.Base(name)
	switch base {
	case ".", "..", "/":
		return ""
	}
	if strings.ContainsRune(base, 0) {
		return ""
	}
	return base
}

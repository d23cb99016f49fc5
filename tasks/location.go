package tasks

import (
	"net/url"
	"strings"
)

// LocationKind tags the historical formats an artifact location may be
// recorded in.
type LocationKind int

const (
	// LocationBareKey is a bucket-relative object key.
	LocationBareKey LocationKind = iota
	// LocationBucketPrefixed is an object key carrying the bucket name
	// as its first path segment.
	LocationBucketPrefixed
	// LocationFullURL is a complete URL whose path starts with the
	// bucket segment.
	LocationFullURL
)

func (k LocationKind) String() string {
	switch k {
	case LocationBucketPrefixed:
		return "bucket_prefixed"
	case LocationFullURL:
		return "full_url"
	default:
		return "bare_key"
	}
}

// Location is a parsed artifact location. All three recorded formats
// normalize to the same bucket-relative key.
type Location struct {
	Kind LocationKind
	Raw  string
	Key  string
}

// ParseLocation classifies a recorded artifact location and normalizes
// it to a bucket-relative key. Older records stored bucket-prefixed
// paths or full URLs; newer ones store bare keys.
func ParseLocation(raw, bucket string) Location {
	if bucket != "" {
		if key, ok := strings.CutPrefix(raw, bucket+"/"); ok {
			return Location{Kind: LocationBucketPrefixed, Raw: raw, Key: key}
		}
	}

	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		if u, err := url.Parse(raw); err == nil {
			// Path is /{bucket}/{key...}; drop the bucket segment.
			trimmed := strings.TrimPrefix(u.Path, "/")
			if _, key, ok := strings.Cut(trimmed, "/"); ok && key != "" {
				return Location{Kind: LocationFullURL, Raw: raw, Key: key}
			}
		}
		// A URL without a key path falls through as-is; the storage
		// lookup will fail with a precise error.
		return Location{Kind: LocationFullURL, Raw: raw, Key: raw}
	}

	return Location{Kind: LocationBareKey, Raw: raw, Key: raw}
}

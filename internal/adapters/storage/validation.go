package storage

import (
	"fmt"
	"path"
	"strings"
)

const maxObjectKeyLen = 512

// AllowedPhotoExtensions lists the file types accepted as request photos.
var AllowedPhotoExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
	".heic": true,
}

// ValidateObjectKey checks that key is a relative object path with an image
// extension.
func ValidateObjectKey(key string) error {
	if key == "" || len(key) > maxObjectKeyLen {
		return fmt.Errorf("invalid object key length")
	}
	if strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return fmt.Errorf("object key must be a relative path")
	}
	if cleaned := path.Clean(key); cleaned != key || strings.HasPrefix(cleaned, "..") {
		return fmt.Errorf("object key must not contain relative segments")
	}
	if !IsPhotoKey(key) {
		return fmt.Errorf("object type %q is not allowed", path.Ext(key))
	}
	return nil
}

// IsPhotoKey reports whether key has an allowed image extension.
func IsPhotoKey(key string) bool {
	return AllowedPhotoExtensions[strings.ToLower(path.Ext(key))]
}

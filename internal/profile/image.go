// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VolunteerHub Contributors

package profile

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/lo"
	"github.com/samber/oops"

	"github.com/volunteerhub/volunteerhub/pkg/errutil"
)

// MaxImageSize is the largest accepted profile image in bytes.
const MaxImageSize = 5 << 20

// imageTypes maps accepted content types to their canonical extension.
var imageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// extAliases are the extensions kept as uploaded for each content type.
var extAliases = map[string][]string{
	"image/jpeg": {".jpg", ".jpeg"},
	"image/png":  {".png"},
	"image/gif":  {".gif"},
	"image/webp": {".webp"},
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// saveAttempts bounds how many suffixed names Save tries after a collision.
const saveAttempts = 3

// Image is an uploaded profile picture.
type Image struct {
	Filename string
	Content  io.Reader
}

// ImageStore persists profile images and returns the URL they are served at.
type ImageStore interface {
	Save(ctx context.Context, name string, data []byte) (string, error)
}

// DiskStore writes images into a directory served under URLPrefix.
type DiskStore struct {
	Dir       string
	URLPrefix string
}

// NewDiskStore creates dir if needed and returns a store serving files
// under /uploads.
func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, oops.Code("PROFILE_UPLOADS_DIR_FAILED").With("dir", dir).Wrap(err)
	}
	return &DiskStore{Dir: dir, URLPrefix: "/uploads"}, nil
}

// Save writes data to Dir/name. Existing files are never overwritten: when
// name is taken, a random suffix is added before the extension and the
// returned URL names the file actually written.
func (d *DiskStore) Save(_ context.Context, name string, data []byte) (string, error) {
	if name != filepath.Base(name) || name == "." || name == ".." {
		return "", oops.Code("PROFILE_IMAGE_NAME_INVALID").With("name", name).Errorf("image name must be a plain file name")
	}
	candidate := name
	for attempt := 0; ; attempt++ {
		err := d.write(candidate, data)
		if err == nil {
			return strings.TrimRight(d.URLPrefix, "/") + "/" + candidate, nil
		}
		if !errors.Is(err, fs.ErrExist) || attempt+1 >= saveAttempts {
			return "", oops.Code("PROFILE_IMAGE_WRITE_FAILED").
				With("path", filepath.Join(d.Dir, candidate)).
				With("attempts", attempt+1).
				Wrap(err)
		}
		candidate = suffixed(name)
	}
}

func (d *DiskStore) write(name string, data []byte) error {
	path := filepath.Join(d.Dir, name)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return err
	}
	return nil
}

// suffixed inserts six random base32 characters before name's extension.
func suffixed(name string) string {
	ext := filepath.Ext(name)
	id := strings.ToLower(ulid.Make().String())
	return strings.TrimSuffix(name, ext) + "-" + id[len(id)-6:] + ext
}

// readImage reads img, enforcing the size limit and sniffing the content type.
func readImage(img Image) ([]byte, string, error) {
	data, err := io.ReadAll(io.LimitReader(img.Content, MaxImageSize+1))
	if err != nil {
		return nil, "", oops.Code("PROFILE_IMAGE_READ_FAILED").Wrap(err)
	}
	if len(data) == 0 {
		return nil, "", errutil.Validation("PROFILE_IMAGE_EMPTY", "Image is empty")
	}
	if len(data) > MaxImageSize {
		return nil, "", errutil.Validation("PROFILE_IMAGE_TOO_LARGE", "Image must be 5 MB or smaller")
	}
	contentType := http.DetectContentType(data[:min(len(data), 512)])
	if _, ok := imageTypes[contentType]; !ok {
		return nil, "", oops.Code("PROFILE_IMAGE_TYPE").
			With("content_type", contentType).
			Wrap(errutil.Validation("PROFILE_IMAGE_TYPE", "Image must be JPEG, PNG, GIF or WebP"))
	}
	return bytes.Clone(data), contentType, nil
}

// ImageName builds the stored file name for an upload: the upload time in
// Unix milliseconds, the sanitized base name and an extension matching
// contentType.
func ImageName(original, contentType string, at time.Time) string {
	original = filepath.Base(strings.ReplaceAll(original, `\`, "/"))
	ext := strings.ToLower(filepath.Ext(original))
	base := unsafeChars.ReplaceAllString(strings.TrimSuffix(original, filepath.Ext(original)), "")
	if base == "" {
		base = "image"
	}
	if !lo.Contains(extAliases[contentType], ext) {
		ext = imageTypes[contentType]
	}
	return strconv.FormatInt(at.UnixMilli(), 10) + "-" + base + ext
}

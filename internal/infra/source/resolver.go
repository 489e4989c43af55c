package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"

	"capcache/internal/domain"
	"capcache/internal/logging"
)

var ErrUnsupportedScheme = errors.New("unsupported source scheme")

type FileSystem interface {
	Stat(path string) (fs.FileInfo, error)
	Open(path string) (io.ReadCloser, error)
}

type ContentOpener interface {
	OpenRead(ctx context.Context, ref domain.ShareableRef, owner string) (io.ReadCloser, int64, error)
}

// Resolver opens capture sources by reference: plain paths, file://,
// content:// and http(s):// URLs.
type Resolver struct {
	FS      FileSystem
	Content ContentOpener
	Owner   string
	HTTP    *resty.Client
	Logger  logging.Logger
}

// OpenRead opens ref for reading. The returned size is -1 when unknown.
func (r *Resolver) OpenRead(ctx context.Context, ref string) (io.ReadCloser, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	if strings.TrimSpace(ref) == "" {
		return nil, 0, errors.New("empty source reference")
	}

	scheme, u := parseScheme(ref)
	switch scheme {
	case "":
		return r.openFile(ref)
	case "file":
		return r.openFile(u.Path)
	case "content":
		if r.Content == nil {
			return nil, 0, fmt.Errorf("%w: %s (no content provider)", ErrUnsupportedScheme, scheme)
		}
		return r.Content.OpenRead(ctx, domain.ShareableRef(ref), r.Owner)
	case "http", "https":
		return r.openHTTP(ctx, ref)
	default:
		return nil, 0, fmt.Errorf("%w: %s", ErrUnsupportedScheme, scheme)
	}
}

func (r *Resolver) openFile(path string) (io.ReadCloser, int64, error) {
	if r.FS == nil {
		return nil, 0, errors.New("resolver requires FS")
	}
	info, err := r.FS.Stat(path)
	if err != nil {
		return nil, 0, err
	}
	if info.IsDir() {
		return nil, 0, fmt.Errorf("%s is a directory", path)
	}
	file, err := r.FS.Open(path)
	if err != nil {
		return nil, 0, err
	}
	r.Logger.Verbosef("Opened local source %s (%d bytes)", path, info.Size())
	return file, info.Size(), nil
}

func (r *Resolver) openHTTP(ctx context.Context, ref string) (io.ReadCloser, int64, error) {
	client := r.HTTP
	if client == nil {
		client = NewHTTPClient("")
	}

	resp, err := client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(ref)
	if err != nil {
		return nil, 0, err
	}
	body := resp.RawBody()
	if !resp.IsSuccess() {
		if body != nil {
			body.Close()
		}
		return nil, 0, fmt.Errorf("failed to fetch capture: %s", resp.Status())
	}

	size := int64(-1)
	if resp.RawResponse != nil {
		size = resp.RawResponse.ContentLength
	}
	r.Logger.Verbosef("Fetching remote source %s (%s, %d bytes)", ref, resp.Header().Get("Content-Type"), size)
	return body, size, nil
}

// parseScheme returns the lower-cased scheme of ref, or "" for plain paths.
// Single-letter schemes are treated as Windows drive letters.
func parseScheme(ref string) (string, *url.URL) {
	u, err := url.Parse(ref)
	if err != nil || len(u.Scheme) < 2 {
		return "", nil
	}
	return strings.ToLower(u.Scheme), u
}

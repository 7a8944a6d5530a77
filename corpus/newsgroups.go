package corpus

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"
)

const (
	// NewsgroupsArchiveURL serves the by-date split of the 20 Newsgroups corpus
	NewsgroupsArchiveURL = "https://ndownloader.figshare.com/files/5975967"

	newsgroupsArchiveName = "20news-bydate.tar.gz"
)

// NewsgroupsConfig configures a NewsgroupsSource
type NewsgroupsConfig struct {
	// URL of the 20news-bydate tarball. If empty, uses NewsgroupsArchiveURL.
	URL string

	// CacheDir holds the downloaded archive. If empty, uses <user cache dir>/newsbench.
	CacheDir string

	// HTTPClient downloads the archive. If nil, uses http.DefaultClient.
	HTTPClient *http.Client

	Logger *zap.Logger
}

// NewsgroupsSource reads the 20 Newsgroups corpus from a locally cached
// copy of the by-date archive, downloading it on first use.
type NewsgroupsSource struct {
	url        string
	cacheDir   string
	httpClient *http.Client
	logger     *zap.Logger
}

var _ Source = (*NewsgroupsSource)(nil)

// NewNewsgroupsSource creates a NewsgroupsSource
func NewNewsgroupsSource(cfg NewsgroupsConfig) (*NewsgroupsSource, error) {
	if cfg.URL == "" {
		cfg.URL = NewsgroupsArchiveURL
	}
	if cfg.CacheDir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve cache dir: %w", err)
		}
		cfg.CacheDir = filepath.Join(base, "newsbench")
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &NewsgroupsSource{
		url:        cfg.URL,
		cacheDir:   cfg.CacheDir,
		httpClient: cfg.HTTPClient,
		logger:     cfg.Logger,
	}, nil
}

// ArchivePath is where the archive is cached
func (s *NewsgroupsSource) ArchivePath() string {
	return filepath.Join(s.cacheDir, newsgroupsArchiveName)
}

// Fetch implements Source. Documents are ordered by category then file
// name, stripped, and shuffled with opts.Seed.
func (s *NewsgroupsSource) Fetch(ctx context.Context, categories CategorySet, subset Subset, opts FetchOptions) ([]Document, error) {
	archive, err := s.EnsureArchive(ctx)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(archive)
	if err != nil {
		return nil, fmt.Errorf("failed to open newsgroups archive: %w", err)
	}
	defer f.Close()

	docs, err := readNewsgroupsArchive(ctx, f, categories, subset)
	if err != nil {
		return nil, err
	}

	for i := range docs {
		docs[i].Text = Strip(docs[i].Text, opts.Strip)
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	rng.Shuffle(len(docs), func(i, j int) {
		docs[i], docs[j] = docs[j], docs[i]
	})

	return docs, nil
}

// EnsureArchive downloads the archive into the cache dir unless it is
// already there, and returns its path.
func (s *NewsgroupsSource) EnsureArchive(ctx context.Context) (string, error) {
	dst := s.ArchivePath()
	if _, err := os.Stat(dst); err == nil {
		return dst, nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to stat newsgroups archive: %w", err)
	}

	if err := os.MkdirAll(s.cacheDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create cache dir %s: %w", s.cacheDir, err)
	}

	s.logger.Info("downloading newsgroups archive", zap.String("url", s.url), zap.String("dest", dst))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create download request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download newsgroups archive: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to download newsgroups archive: status %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(s.cacheDir, newsgroupsArchiveName+".*.part")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write newsgroups archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write newsgroups archive: %w", err)
	}

	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", fmt.Errorf("failed to move newsgroups archive into place: %w", err)
	}

	return dst, nil
}

type archiveEntry struct {
	label int
	name  string
	text  string
}

// readNewsgroupsArchive reads <prefix>-<subset>/<category>/<file> entries
// of a gzipped tarball for the requested categories.
func readNewsgroupsArchive(ctx context.Context, r io.Reader, categories CategorySet, subset Subset) ([]Document, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open gzip stream: %w", err)
	}
	defer gz.Close()

	wanted := make(map[string]int, len(categories))
	for i, c := range categories {
		wanted[c.Name] = i
	}

	decoder := charmap.ISO8859_1.NewDecoder()
	suffix := "-" + string(subset)
	seen := make(map[int]bool, len(categories))
	var entries []archiveEntry

	tr := tar.NewReader(gz)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read newsgroups archive: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		parts := strings.Split(path.Clean(hdr.Name), "/")
		if len(parts) != 3 || !strings.HasSuffix(parts[0], suffix) {
			continue
		}
		label, ok := wanted[parts[1]]
		if !ok {
			continue
		}

		raw, err := io.ReadAll(tr)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", hdr.Name, err)
		}
		text, err := decoder.Bytes(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", hdr.Name, err)
		}

		seen[label] = true
		entries = append(entries, archiveEntry{label: label, name: parts[2], text: string(text)})
	}

	for i, c := range categories {
		if !seen[i] {
			return nil, fmt.Errorf("%w: %q has no %s documents in the archive", ErrUnknownCategory, c.Name, subset)
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].label != entries[j].label {
			return entries[i].label < entries[j].label
		}
		return entries[i].name < entries[j].name
	})

	docs := make([]Document, len(entries))
	for i, e := range entries {
		docs[i] = Document{Text: e.text, Label: e.label}
	}
	return docs, nil
}

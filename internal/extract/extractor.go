// Package extract downloads the daily trading-session bundle from B3 and
// unpacks its two nested archive layers into bulletin XML documents.
package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/b3quotes/b3-quote-service/internal/config"
	"github.com/b3quotes/b3-quote-service/internal/marketday"
	"github.com/b3quotes/b3-quote-service/internal/storage"
)

// ErrSourceUnavailable means no archive is published for the requested day.
// Routine for weekends, holidays and not-yet-published sessions; callers
// walk back to an earlier business day.
var ErrSourceUnavailable = errors.New("no session archive available")

// ExtractionError means a downloaded archive could not be unpacked or held
// no bulletin documents. Fatal for that day.
type ExtractionError struct {
	DayKey string
	Reason string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed for %s: %s", e.DayKey, e.Reason)
}

// minArchiveSize filters out the tiny error pages B3 serves in place of a
// missing file
const minArchiveSize = 200

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/127.0 Safari/537.36"

// Extractor fetches and unpacks one trading day's bulletin bundle
type Extractor struct {
	baseURL string
	client  *http.Client
	store   storage.Store
	logger  *slog.Logger
}

// New creates an Extractor that persists unpacked bulletins into store
func New(cfg config.SourceConfig, store storage.Store, logger *slog.Logger) *Extractor {
	return &Extractor{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: cfg.Timeout},
		store:   store,
		logger:  logger,
	}
}

// BuildURL returns the download locator for a day key
func (e *Extractor) BuildURL(dayKey string) string {
	return fmt.Sprintf("%s?filelist=SPRE%s.zip", e.baseURL, dayKey)
}

// Download fetches the day's compressed bundle. It returns
// ErrSourceUnavailable on transport errors, non-success status, undersized
// bodies, and payloads without the ZIP magic signature.
func (e *Extractor) Download(ctx context.Context, dayKey string) ([]byte, error) {
	url := e.BuildURL(dayKey)
	e.logger.Info("downloading session archive", "day", dayKey, "url", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build download request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		e.logger.Warn("archive download failed", "day", dayKey, "error", err)
		return nil, ErrSourceUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		e.logger.Warn("archive download rejected", "day", dayKey, "status", resp.StatusCode)
		return nil, ErrSourceUnavailable
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		e.logger.Warn("archive body read failed", "day", dayKey, "error", err)
		return nil, ErrSourceUnavailable
	}

	if len(data) <= minArchiveSize || !bytes.HasPrefix(data, []byte("PK")) {
		e.logger.Warn("archive payload not a zip", "day", dayKey, "size", len(data))
		return nil, ErrSourceUnavailable
	}

	return data, nil
}

// Unpack opens the outer archive, locates the inner SPRE<key>.zip, and
// returns every bulletin XML document inside it keyed by file name
func (e *Extractor) Unpack(data []byte, dayKey string) (map[string][]byte, error) {
	inner, err := readZipEntry(data, fmt.Sprintf("SPRE%s.zip", dayKey))
	if err != nil {
		return nil, &ExtractionError{DayKey: dayKey, Reason: err.Error()}
	}

	reader, err := zip.NewReader(bytes.NewReader(inner), int64(len(inner)))
	if err != nil {
		return nil, &ExtractionError{DayKey: dayKey, Reason: fmt.Sprintf("inner archive unreadable: %v", err)}
	}

	bulletins := make(map[string][]byte)
	for _, f := range reader.File {
		if !strings.HasSuffix(strings.ToLower(f.Name), ".xml") {
			continue
		}
		content, err := readZipFile(f)
		if err != nil {
			return nil, &ExtractionError{DayKey: dayKey, Reason: fmt.Sprintf("failed to read %s: %v", f.Name, err)}
		}
		bulletins[f.Name] = content
	}

	if len(bulletins) == 0 {
		return nil, &ExtractionError{DayKey: dayKey, Reason: "no bulletin XML files in archive"}
	}

	return bulletins, nil
}

// FetchDay downloads, unpacks and uploads one day's bulletins to the object
// store under xml/<day-key>/. Returns the number of bulletins stored.
func (e *Extractor) FetchDay(ctx context.Context, dayKey string) (int, error) {
	data, err := e.Download(ctx, dayKey)
	if err != nil {
		return 0, err
	}

	bulletins, err := e.Unpack(data, dayKey)
	if err != nil {
		return 0, err
	}

	for name, content := range bulletins {
		if err := e.store.Upload(ctx, storage.BulletinName(dayKey, name), content); err != nil {
			return 0, fmt.Errorf("failed to upload bulletin %s: %w", name, err)
		}
	}

	e.logger.Info("bulletins extracted", "day", dayKey, "files", len(bulletins))
	return len(bulletins), nil
}

// FindMostRecent walks back over business days from the anchor and fetches
// the first day with a published archive, returning its key. maxDays bounds
// the attempt budget.
func (e *Extractor) FindMostRecent(ctx context.Context, anchor time.Time, maxDays int) (string, int, error) {
	for _, day := range walkBackKeys(anchor, maxDays) {
		n, err := e.FetchDay(ctx, day)
		if errors.Is(err, ErrSourceUnavailable) {
			e.logger.Info("no archive for day, trying previous business day", "day", day)
			continue
		}
		if err != nil {
			return day, 0, err
		}
		return day, n, nil
	}
	return "", 0, ErrSourceUnavailable
}

func walkBackKeys(anchor time.Time, n int) []string {
	days := marketday.WalkBack(anchor, n)
	keys := make([]string, len(days))
	for i, d := range days {
		keys[i] = marketday.Key(d)
	}
	return keys
}

func readZipEntry(archive []byte, name string) ([]byte, error) {
	reader, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return nil, fmt.Errorf("outer archive unreadable: %v", err)
	}
	for _, f := range reader.File {
		if f.Name == name || strings.HasSuffix(f.Name, "/"+name) {
			return readZipFile(f)
		}
	}
	return nil, fmt.Errorf("inner archive %s not found", name)
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

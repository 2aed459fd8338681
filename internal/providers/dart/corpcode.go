package dart

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/seenimoa/dartfin/internal/infra"
	"github.com/seenimoa/dartfin/pkg/models"
	"github.com/seenimoa/dartfin/pkg/utils"
)

const corpCodeCacheKey = "corp_codes"

// CorpCodes maps six-digit stock codes to eight-digit DART corp codes using
// the corpCode.xml table. The table is read from a local file when one is
// configured, otherwise downloaded, and kept for the configured TTL.
type CorpCodes struct {
	client *Client
	file   string
	cache  *infra.Cache
	mu     sync.Mutex // serializes reloads
	log    zerolog.Logger
}

// NewCorpCodes creates a corp-code table. file may name a CORPCODE.xml or the
// zip DART serves; when empty the table is downloaded with client.
func NewCorpCodes(client *Client, file string, ttl time.Duration) *CorpCodes {
	if ttl <= 0 {
		ttl = defaultCorpCodeTTL
	}
	log := zerolog.Nop()
	if client != nil {
		log = client.log
	}
	return &CorpCodes{
		client: client,
		file:   file,
		cache:  infra.NewCache(ttl),
		log:    log.With().Str("table", "corp_code").Logger(),
	}
}

// CorpCode returns the corp code registered for stockCode. The bool is false
// when the stock code is not listed; the error reports a failure to load the
// table.
func (cc *CorpCodes) CorpCode(ctx context.Context, stockCode string) (string, bool, error) {
	entry, ok, err := cc.Lookup(ctx, stockCode)
	if err != nil || !ok {
		return "", false, err
	}
	return entry.CorpCode, true, nil
}

// Lookup returns the full corp-code entry for stockCode.
func (cc *CorpCodes) Lookup(ctx context.Context, stockCode string) (models.CorpCode, bool, error) {
	table, err := cc.table(ctx)
	if err != nil {
		return models.CorpCode{}, false, err
	}
	entry, ok := table[utils.NormalizeStockCode(stockCode)]
	return entry, ok, nil
}

// Len returns the number of listed companies in the table.
func (cc *CorpCodes) Len(ctx context.Context) (int, error) {
	table, err := cc.table(ctx)
	if err != nil {
		return 0, err
	}
	return len(table), nil
}

// Invalidate drops the loaded table so the next lookup reloads it.
func (cc *CorpCodes) Invalidate() {
	cc.cache.Invalidate(corpCodeCacheKey)
}

func (cc *CorpCodes) table(ctx context.Context) (map[string]models.CorpCode, error) {
	if v, ok := cc.cache.Get(corpCodeCacheKey); ok {
		return v.(map[string]models.CorpCode), nil
	}

	cc.mu.Lock()
	defer cc.mu.Unlock()
	if v, ok := cc.cache.Get(corpCodeCacheKey); ok {
		return v.(map[string]models.CorpCode), nil
	}

	data, source, err := cc.read(ctx)
	if err != nil {
		return nil, err
	}
	entries, err := ParseCorpCodes(data)
	if err != nil {
		return nil, fmt.Errorf("corp codes from %s: %w", source, err)
	}

	table := make(map[string]models.CorpCode, len(entries))
	for _, e := range entries {
		if e.StockCode == "" {
			continue // unlisted company
		}
		table[e.StockCode] = e
	}
	cc.cache.Set(corpCodeCacheKey, table)

	cc.log.Info().
		Str("source", source).
		Int("companies", len(entries)).
		Int("listed", len(table)).
		Msg("loaded corp code table")
	return table, nil
}

func (cc *CorpCodes) read(ctx context.Context) ([]byte, string, error) {
	if cc.file != "" {
		data, err := os.ReadFile(cc.file)
		if err != nil {
			return nil, cc.file, fmt.Errorf("read corp code file: %w", err)
		}
		return data, cc.file, nil
	}
	if cc.client == nil {
		return nil, "", errors.New("corp codes: no file configured and no client")
	}

	body, err := cc.client.get(ctx, endpointCorpCode, nil)
	if err != nil {
		return nil, endpointCorpCode, fmt.Errorf("download corp codes: %w", err)
	}
	defer body.Close()
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, endpointCorpCode, fmt.Errorf("read corp codes: %w", err)
	}
	return data, endpointCorpCode, nil
}

// corpCodeDoc is the CORPCODE.xml document. Errors are reported in the same
// <result> root with status and message instead of list entries.
type corpCodeDoc struct {
	XMLName xml.Name          `xml:"result"`
	Status  string            `xml:"status"`
	Message string            `xml:"message"`
	List    []models.CorpCode `xml:"list"`
}

// ParseCorpCodes decodes a corp-code table from either the zip archive the
// API serves or a bare CORPCODE.xml document. Stock codes are trimmed; an
// unlisted company has an empty stock code.
func ParseCorpCodes(data []byte) ([]models.CorpCode, error) {
	if bytes.HasPrefix(data, []byte("PK")) {
		xmlData, err := unzipCorpCodes(data)
		if err != nil {
			return nil, err
		}
		data = xmlData
	}
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '{' {
		// Key errors may come back as a JSON envelope.
		var env struct {
			Status  string `json:"status"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, fmt.Errorf("parse corp code response: %w", err)
		}
		if err := StatusError(env.Status, env.Message); err != nil {
			return nil, err
		}
		return nil, errors.New("corp code response carried no table")
	}

	var doc corpCodeDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse corp code xml: %w", err)
	}
	if doc.Status != "" {
		if err := StatusError(doc.Status, doc.Message); err != nil {
			return nil, err
		}
	}

	for i := range doc.List {
		e := &doc.List[i]
		e.CorpCode = strings.TrimSpace(e.CorpCode)
		e.CorpName = strings.TrimSpace(e.CorpName)
		e.StockCode = strings.TrimSpace(e.StockCode)
		e.ModifyDate = strings.TrimSpace(e.ModifyDate)
	}
	return doc.List, nil
}

func unzipCorpCodes(data []byte) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open corp code archive: %w", err)
	}
	for _, f := range zr.File {
		if !strings.EqualFold(f.Name, "CORPCODE.xml") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", f.Name, err)
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, errors.New("corp code archive has no CORPCODE.xml")
}

// Package service sequences the resolution pipeline for each entry
// operation: PDF upload, explicit lot/plan list, and address lookup.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"parcel-agent/internal/arcgis"
	"parcel-agent/internal/kmz"
	"parcel-agent/internal/lotplan"
	"parcel-agent/internal/models"
	"parcel-agent/internal/pdftext"
	"parcel-agent/internal/resolver"
)

// Error classes the HTTP layer maps onto status codes.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNoParcels    = errors.New("no parcels found")
	ErrUpstream     = errors.New("upstream resolution failed")
)

// The PDF path caps how many extracted tokens go upstream; a scan of a
// survey plan index can match hundreds.
const maxPDFTokens = 100

// KMZResult is one finished request: the archive bytes plus the metadata
// callers need for the download response and partial-failure reporting.
type KMZResult struct {
	Data     []byte
	Filename string
	Parcels  int
	Failed   []models.LotPlan
}

// Auditor records request metadata after completion. Implementations must
// not persist parcel data itself.
type Auditor interface {
	RecordRequest(ctx context.Context, rec models.RequestRecord) error
}

// Service owns the pipeline dependencies for the three entry operations.
type Service struct {
	resolver *resolver.Resolver
	audit    Auditor
	log      *slog.Logger
}

// New creates a Service. audit may be nil to disable request logging.
func New(res *resolver.Resolver, audit Auditor, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{resolver: res, audit: audit, log: log}
}

// ProcessPDF extracts text from the uploaded PDF and resolves it into a KMZ.
func (s *Service) ProcessPDF(ctx context.Context, pdfBytes []byte, relax bool) (*KMZResult, error) {
	started := time.Now()

	text, err := pdftext.ExtractText(pdfBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	result, folderName := s.resolveText(ctx, text, relax)
	return s.finish(ctx, "process_pdf_kmz", text[:min(len(text), 200)], result, folderName, started)
}

// resolveText resolves raw document text: lot/plan tokens first, then the
// parsed address lines whenever the token path produced no parcels, first
// hit wins. Returns the result and the folder label for the KMZ.
func (s *Service) resolveText(ctx context.Context, text string, relax bool) (*models.ResolutionResult, string) {
	tokens := lotplan.Extract(text)
	if len(tokens) > maxPDFTokens {
		tokens = tokens[:maxPDFTokens]
	}

	result := &models.ResolutionResult{}
	folderName := ""
	if len(tokens) > 0 {
		result, _ = s.resolver.ResolveTokens(ctx, tokens)
		if !result.Empty() {
			folderName = result.Parcels[0].LotPlan.Canonical()
		}
	}

	// Garbled OCR can match the token patterns without naming a real parcel;
	// the address lines are still worth trying then.
	if result.Empty() {
		for _, addr := range lotplan.ParseAddresses(text) {
			res, _, err := s.resolver.ResolveAddress(ctx, addr, relax)
			if err != nil {
				s.log.Warn("address candidate failed", "address", addr.Label(), "error", err)
				continue
			}
			if !res.Empty() {
				return res, addr.Label()
			}
		}
	}

	return result, folderName
}

// KMZByLotplan resolves an explicit comma/space-separated token list.
func (s *Service) KMZByLotplan(ctx context.Context, listText string) (*KMZResult, error) {
	started := time.Now()

	tokens := lotplan.ParseList(listText)
	if len(tokens) == 0 {
		return nil, fmt.Errorf("%w: provide lotplan=2 RP12345 or a comma-separated list", ErrInvalidInput)
	}

	result, _ := s.resolver.ResolveTokens(ctx, tokens)

	displays := make([]string, 0, len(tokens))
	for _, t := range tokens {
		displays = append(displays, t.Display())
	}
	folderName := strings.Join(displays, " & ")
	if len(folderName) > 120 {
		folderName = folderName[:120]
	}

	return s.finish(ctx, "kmz_by_lotplan", listText, result, folderName, started)
}

// KMZByAddress resolves a structured (or free-text) address.
func (s *Service) KMZByAddress(ctx context.Context, q models.AddressQuery, relax bool) (*KMZResult, error) {
	started := time.Now()

	if q == (models.AddressQuery{}) {
		return nil, fmt.Errorf("%w: empty address", ErrInvalidInput)
	}

	result, _, err := s.resolver.ResolveAddress(ctx, q, relax)
	if err != nil {
		if errors.Is(err, arcgis.ErrMissingHouseNumber) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	return s.finish(ctx, "kmz_by_address", q.Label(), result, q.Label(), started)
}

// ParseAddressText turns a free-text address into a structured query,
// falling back to an exact-address match on the raw string when the line
// does not parse.
func ParseAddressText(text string) models.AddressQuery {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.AddressQuery{}
	}
	if parsed := lotplan.ParseAddresses(text); len(parsed) > 0 {
		return parsed[0]
	}
	return models.AddressQuery{Original: text}
}

// finish classifies the outcome, encodes the KMZ, and writes the audit
// record. Zero parcels with no upstream failures is NotFound; zero parcels
// where every token failed is an upstream error.
func (s *Service) finish(ctx context.Context, operation, input string, result *models.ResolutionResult, folderName string, started time.Time) (*KMZResult, error) {
	status := "ok"
	defer func() {
		s.record(ctx, operation, input, result, status, time.Since(started))
	}()

	if result.Empty() {
		if len(result.Failed) > 0 {
			status = "upstream_failed"
			return nil, fmt.Errorf("%w: all %d token(s) failed", ErrUpstream, len(result.Failed))
		}
		status = "not_found"
		return nil, ErrNoParcels
	}
	if result.Partial() {
		status = "partial"
	}

	safe := SafeName(folderName)
	data, err := kmz.Encode(result, safe)
	if err != nil {
		status = "encode_failed"
		return nil, fmt.Errorf("encoding KMZ: %w", err)
	}

	return &KMZResult{
		Data:     data,
		Filename: safe + ".kmz",
		Parcels:  len(result.Parcels),
		Failed:   result.Failed,
	}, nil
}

func (s *Service) record(ctx context.Context, operation, input string, result *models.ResolutionResult, status string, elapsed time.Duration) {
	if s.audit == nil {
		return
	}

	failed := make([]string, 0, len(result.Failed))
	for _, t := range result.Failed {
		failed = append(failed, t.Canonical())
	}

	rec := models.RequestRecord{
		Operation:    operation,
		Input:        input,
		ParcelCount:  len(result.Parcels),
		FailedCount:  len(result.Failed),
		FailedTokens: strings.Join(failed, ","),
		Status:       status,
		DurationMs:   elapsed.Milliseconds(),
	}
	if err := s.audit.RecordRequest(ctx, rec); err != nil {
		s.log.Warn("audit record failed", "error", err)
	}
}

// SafeName reduces a folder label to characters safe for filenames and KML
// folder names, defaulting to "parcels" when nothing survives.
func SafeName(name string) string {
	var b strings.Builder
	for _, ch := range name {
		if ch == ' ' || ch == '-' || ch == '_' || ch == ',' ||
			(ch >= '0' && ch <= '9') || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') {
			b.WriteRune(ch)
		}
	}
	out := strings.ReplaceAll(b.String(), ",,", ",")
	out = strings.Trim(strings.TrimSpace(out), ",")
	if out == "" {
		return "parcels"
	}
	return out
}

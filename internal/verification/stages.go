package verification

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"docverify/internal/validation"
	"docverify/internal/verification/models"
	"docverify/internal/verification/ports"
	dErrors "docverify/pkg/domain-errors"
	"docverify/pkg/platform/circuit"
	pstrings "docverify/pkg/platform/strings"
)

// Stage is one step of the pipeline. A stage either returns an Outcome or
// an error; a returned *StageError aborts with its code and any other error
// aborts with UNKNOWN_ERROR.
type Stage interface {
	Name() string
	Run(ctx context.Context, rc *RunContext) (Outcome, error)
}

// TypeCanonicalizer maps classifier labels to canonical document types.
type TypeCanonicalizer interface {
	Canonicalize(label string) (string, bool)
}

// RuleValidator runs the business rules.
type RuleValidator interface {
	Validate(in validation.Input) validation.Outcome
}

// Limits bound what Acquire accepts.
type Limits struct {
	MaxFileBytes        int64
	MaxPDFPages         int
	AllowedContentTypes []string
}

// DefaultLimits accept PDFs up to 20 pages and common image formats up to 20 MiB.
var DefaultLimits = Limits{
	MaxFileBytes:        20 << 20,
	MaxPDFPages:         20,
	AllowedContentTypes: []string{"application/pdf", "image/jpeg", "image/png"},
}

// collaboratorError classifies a failed collaborator call. An open breaker
// is reported as SERVICE_UNAVAILABLE whatever the stage.
func collaboratorError(err error, callFailed, malformed dErrors.Code) *StageError {
	switch {
	case errors.Is(err, circuit.ErrOpen):
		return &StageError{Code: dErrors.CodeServiceUnavailable, Details: err.Error(), Err: err}
	case malformed != "" && errors.Is(err, ports.ErrMalformedResponse):
		return &StageError{Code: malformed, Details: err.Error(), Err: err}
	default:
		return &StageError{Code: callFailed, Details: err.Error(), Err: err}
	}
}

// --- Acquire ---------------------------------------------------------------

type acquireStage struct {
	store  ports.SourceStore
	limits Limits
}

func (s *acquireStage) Name() string { return models.StageAcquire }

func (s *acquireStage) Run(ctx context.Context, rc *RunContext) (Outcome, error) {
	data := rc.Source.Data
	if len(data) == 0 {
		return Fail(dErrors.CodeFileEmpty, "uploaded file is empty"), nil
	}
	if int64(len(data)) > s.limits.MaxFileBytes {
		return Fail(dErrors.CodeFileTooLarge, "file is %d bytes, limit is %d", len(data), s.limits.MaxFileBytes), nil
	}

	contentType := sniffContentType(data)
	if !slices.Contains(s.limits.AllowedContentTypes, contentType) {
		return Fail(dErrors.CodeUnsupportedFileType, "content type %q is not accepted", contentType), nil
	}

	pages := 1
	if contentType == "application/pdf" {
		pages = countPDFPages(data)
		if pages > s.limits.MaxPDFPages {
			return Fail(dErrors.CodePDFTooManyPages, "document has %d pages, limit is %d", pages, s.limits.MaxPDFPages), nil
		}
	}

	rc.Source.ContentType = contentType
	ref, err := s.store.Save(ctx, rc.RunID, rc.Source)
	if err != nil {
		return Abort(&StageError{Code: dErrors.CodeFileSaveFailed, Details: "could not persist the uploaded file", Err: err}), nil
	}

	return Continue(Artifacts{
		"source_path":  ref,
		"page_count":   pages,
		"content_type": contentType,
	}), nil
}

func sniffContentType(data []byte) string {
	ct := http.DetectContentType(data)
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.TrimSpace(ct)
}

// pdfPageObject matches page objects but not the /Pages tree nodes.
var pdfPageObject = regexp.MustCompile(`/Type\s*/Page([^s]|$)`)

// countPDFPages counts page objects in the raw file. Compressed object
// streams hide them, in which case the document counts as one page.
func countPDFPages(data []byte) int {
	return max(len(pdfPageObject.FindAllIndex(data, -1)), 1)
}

// --- Recognize -------------------------------------------------------------

type recognizeStage struct {
	recognizer ports.Recognizer
}

func (s *recognizeStage) Name() string { return models.StageRecognize }

func (s *recognizeStage) Run(ctx context.Context, rc *RunContext) (Outcome, error) {
	res, err := s.recognizer.Recognize(ctx, rc.Source)
	if err != nil {
		return Abort(collaboratorError(err, dErrors.CodeOCRFailed, "")), nil
	}
	if res == nil {
		return Fail(dErrors.CodeOCREmpty, "recognizer returned no pages"), nil
	}

	text := strings.TrimSpace(strings.Join(res.Pages, "\n"))
	if text == "" {
		return Fail(dErrors.CodeOCREmpty, "no text recognized on %d page(s)", len(res.Pages)), nil
	}
	rc.text = text

	return Continue(Artifacts{
		"ocr_chars": utf8.RuneCountInString(text),
		"ocr_pages": len(res.Pages),
	}), nil
}

// --- Classify --------------------------------------------------------------

type classifyStage struct {
	classifier ports.Classifier
	catalog    TypeCanonicalizer
}

func (s *classifyStage) Name() string { return models.StageClassify }

func (s *classifyStage) Run(ctx context.Context, rc *RunContext) (Outcome, error) {
	labels, err := s.classifier.Classify(ctx, rc.text)
	if err != nil {
		return Abort(collaboratorError(err, dErrors.CodeLLMClassifyFailed, dErrors.CodeDocTypeParseError)), nil
	}

	var canonical, unresolved []string
	for _, label := range labels {
		if code, ok := s.catalog.Canonicalize(label); ok {
			canonical = append(canonical, code)
		} else {
			unresolved = append(unresolved, label)
		}
	}
	// Codes come back exactly as the catalog spells them, so no case folding.
	types := pstrings.DedupeAndTrim(canonical)
	unresolved = pstrings.DedupeAndTrim(unresolved)
	if len(types) > 1 {
		return Fail(dErrors.CodeMultipleDocuments, "document types found: %s", strings.Join(types, ", ")), nil
	}

	// Without a canonical match the first raw label is kept so Validate
	// reports DOC_TYPE_UNKNOWN against what the classifier actually said.
	docType := ""
	switch {
	case len(types) == 1:
		docType = types[0]
	case len(unresolved) > 0:
		docType = unresolved[0]
	}
	if docType != "" {
		rc.docType = &docType
	}

	return Continue(Artifacts{
		"doc_type":            docType,
		"doc_type_labels":     labels,
		"doc_type_unresolved": unresolved,
	}), nil
}

// --- Extract ---------------------------------------------------------------

type extractStage struct {
	extractor ports.Extractor
}

func (s *extractStage) Name() string { return models.StageExtract }

func (s *extractStage) Run(ctx context.Context, rc *RunContext) (Outcome, error) {
	fields, err := s.extractor.Extract(ctx, rc.text, rc.DocType())
	if err != nil {
		return Abort(collaboratorError(err, dErrors.CodeLLMExtractFailed, dErrors.CodeExtractSchemaMismatch)), nil
	}
	if fields == nil {
		return Fail(dErrors.CodeExtractSchemaMismatch, "extractor returned no fields"), nil
	}
	rc.fields = fields

	return Continue(Artifacts{
		"extracted_fio":      fields.FIO,
		"extracted_doc_date": fields.DocDate,
	}), nil
}

// --- Validate --------------------------------------------------------------

type validateStage struct {
	validator RuleValidator
}

func (s *validateStage) Name() string { return models.StageValidate }

func (s *validateStage) Run(_ context.Context, rc *RunContext) (Outcome, error) {
	if rc.fields == nil {
		return Outcome{}, errors.New("validate reached without extracted fields")
	}
	out := s.validator.Validate(validation.Input{
		ClaimedFIO:       rc.ClaimedFIO,
		ExtractedFIO:     rc.fields.FIO,
		ExtractedDocDate: rc.fields.DocDate,
		DocType:          rc.DocType(),
		Now:              rc.Now,
	})
	rc.validation = &out
	for _, code := range out.Errors {
		rc.addError(models.ErrorRecord{Code: code, Stage: models.StageValidate})
	}

	artifacts := Artifacts{}
	if out.NameMatch != nil {
		artifacts["name_match"] = out.NameMatch.Diagnostics
	}
	if out.Validity.Deadline != nil {
		artifacts["valid_until"] = out.Validity.Deadline.Format(time.RFC3339)
	}
	artifacts["validity_window_days"] = out.Validity.WindowDays
	return Continue(artifacts), nil
}

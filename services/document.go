package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/h2non/filetype"
	pdfcpuapi "github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/unidoc/unioffice/document"
	"go.uber.org/zap"

	"truthlens/metrics"
)

const (
	MimePlain = "text/plain"
	MimePDF   = "application/pdf"
	MimeDOCX  = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

	DocumentNotSupported = "Document type not supported"
	DocumentNotExtracted = "Document content could not be extracted"
	maxDocumentRunes     = 20000
	sniffHeaderBytes     = 261
)

// DocumentExtractor turns an uploaded document into plain text.
type DocumentExtractor struct {
	metrics *metrics.Recorder
	log     *zap.Logger
}

func NewDocumentExtractor(rec *metrics.Recorder, log *zap.Logger) *DocumentExtractor {
	if log == nil {
		log = zap.NewNop()
	}
	return &DocumentExtractor{metrics: rec, log: log.Named("document")}
}

// ExtractText returns the document text, or one of the placeholder strings
// when the type is unsupported or extraction fails.
func (d *DocumentExtractor) ExtractText(ctx context.Context, path, declared string) string {
	mimeType := normalizeMime(declared)
	if mimeType == "" || mimeType == "application/octet-stream" {
		sniffed, err := sniffMime(path)
		if err != nil {
			d.log.Warn("document sniff failed", zap.String("path", path), zap.Error(err))
			d.metrics.CollaboratorFailed("document")
			return DocumentNotExtracted
		}
		mimeType = sniffed
	}

	var (
		text string
		err  error
	)
	switch mimeType {
	case MimePlain:
		text, err = readPlain(path)
	case MimePDF:
		text, err = extractPDFText(ctx, path)
	case MimeDOCX:
		text, err = extractDOCXText(path)
	default:
		d.log.Info("unsupported document type", zap.String("mime", mimeType))
		return DocumentNotSupported
	}
	if err != nil {
		d.log.Warn("document extraction failed", zap.String("mime", mimeType), zap.Error(err))
		d.metrics.CollaboratorFailed("document")
		return DocumentNotExtracted
	}
	return truncate(strings.TrimSpace(text), maxDocumentRunes)
}

func normalizeMime(declared string) string {
	if declared == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(declared)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(declared))
	}
	return mt
}

// sniffMime reads the magic header; undetected UTF-8 content counts as plain text.
func sniffMime(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	head := make([]byte, sniffHeaderBytes)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", err
	}
	head = head[:n]

	kind, err := filetype.Match(head)
	if err == nil && kind != filetype.Unknown {
		return kind.MIME.Value, nil
	}
	if utf8.Valid(head) {
		return MimePlain, nil
	}
	return "application/octet-stream", nil
}

func readPlain(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%s is not valid UTF-8", filepath.Base(path))
	}
	return string(data), nil
}

// extractPDFText writes page content streams to a temp dir and decodes the
// shown text of each page.
func extractPDFText(ctx context.Context, path string) (string, error) {
	outDir, err := os.MkdirTemp("", "truthlens-pdf-")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(outDir)

	if err := pdfcpuapi.ExtractContentFile(path, outDir, nil, model.NewDefaultConfiguration()); err != nil {
		return "", fmt.Errorf("pdfcpu: %w", err)
	}

	var b strings.Builder
	err = filepath.Walk(outDir, func(p string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if filepath.Ext(p) == ".txt" {
			if data, err := os.ReadFile(p); err == nil {
				if text := contentStreamText(data); text != "" {
					b.WriteString(text)
					b.WriteByte('\n')
				}
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return b.String(), nil
}

func extractDOCXText(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	doc, err := document.Read(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("unioffice: %w", err)
	}

	var sb strings.Builder
	for _, p := range doc.Paragraphs() {
		for _, run := range p.Runs() {
			sb.WriteString(run.Text())
		}
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

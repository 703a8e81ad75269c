// Package documents renders sanction letters for approved applications.
package documents

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/template"
	"time"

	"loan-workers/internal/common/logger"
	"loan-workers/internal/pipeline"
)

//go:embed templates/sanction_letter.tmpl
var templateFS embed.FS

var (
	ErrInvalidApplicationID = errors.New("INVALID_APPLICATION_ID")
	ErrRenderFailed         = errors.New("DOCUMENT_RENDER_FAILED")
	ErrWriteFailed          = errors.New("DOCUMENT_WRITE_FAILED")
)

const fileExtension = ".txt"

// letter is the data passed to the template.
type letter struct {
	ApplicationID string
	Reference     string
	IssuedOn      time.Time
	Terms         pipeline.Terms
	EMI           float64
}

// SanctionLetterGenerator writes plain text letters to OutputDir and
// addresses them under URLPrefix.
type SanctionLetterGenerator struct {
	outputDir string
	urlPrefix string
	tmpl      *template.Template
	now       func() time.Time
	logger    logger.Logger
}

func NewSanctionLetterGenerator(outputDir, urlPrefix string, log logger.Logger) (*SanctionLetterGenerator, error) {
	tmpl, err := template.New("sanction_letter.tmpl").
		Funcs(template.FuncMap{
			"amount": pipeline.FormatAmount,
			"rupees": pipeline.FormatRupees,
		}).
		ParseFS(templateFS, "templates/sanction_letter.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse sanction letter template: %w", err)
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &SanctionLetterGenerator{
		outputDir: outputDir,
		urlPrefix: strings.TrimRight(urlPrefix, "/"),
		tmpl:      tmpl,
		now:       time.Now,
		logger:    log.WithFields(map[string]interface{}{"component": "documents"}),
	}, nil
}

// Generate renders the letter and writes it atomically to <outputDir>/<id>.txt.
func (g *SanctionLetterGenerator) Generate(ctx context.Context, applicationID string, terms pipeline.Terms) (pipeline.DocumentRef, error) {
	if err := ctx.Err(); err != nil {
		return pipeline.DocumentRef{}, err
	}
	if !validID(applicationID) {
		return pipeline.DocumentRef{}, fmt.Errorf("%w: %q", ErrInvalidApplicationID, applicationID)
	}

	rate := terms.AnnualRatePct
	if rate == 0 {
		rate = pipeline.DefaultAnnualRate
		terms.AnnualRatePct = rate
	}
	data := letter{
		ApplicationID: applicationID,
		Reference:     Reference(applicationID),
		IssuedOn:      g.now(),
		Terms:         terms,
		EMI:           pipeline.Round2(pipeline.EMI(float64(terms.LoanAmount), terms.Tenure, rate)),
	}

	var buf bytes.Buffer
	if err := g.tmpl.Execute(&buf, data); err != nil {
		return pipeline.DocumentRef{}, fmt.Errorf("%w: %v", ErrRenderFailed, err)
	}

	if err := os.MkdirAll(g.outputDir, 0o755); err != nil {
		return pipeline.DocumentRef{}, fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	path := g.Path(applicationID)
	tmp, err := os.CreateTemp(g.outputDir, applicationID+".*.tmp")
	if err != nil {
		return pipeline.DocumentRef{}, fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return pipeline.DocumentRef{}, fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return pipeline.DocumentRef{}, fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return pipeline.DocumentRef{}, fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}

	g.logger.Info("sanction letter generated", map[string]interface{}{
		"applicationId": applicationID,
		"reference":     data.Reference,
		"path":          path,
	})

	return pipeline.DocumentRef{URL: g.URL(applicationID), Path: path}, nil
}

func (g *SanctionLetterGenerator) Path(applicationID string) string {
	return filepath.Join(g.outputDir, applicationID+fileExtension)
}

func (g *SanctionLetterGenerator) URL(applicationID string) string {
	return g.urlPrefix + "/" + applicationID + fileExtension
}

func (g *SanctionLetterGenerator) OutputDir() string {
	return g.outputDir
}

// Reference builds the letter reference number. Numeric ids are zero padded
// to six digits, anything else uses the first eight characters uppercased.
func Reference(applicationID string) string {
	if n, err := strconv.ParseUint(applicationID, 10, 64); err == nil {
		return fmt.Sprintf("LOAN-%06d", n)
	}
	id := strings.ToUpper(strings.ReplaceAll(applicationID, "-", ""))
	if len(id) > 8 {
		id = id[:8]
	}
	return "LOAN-" + id
}

func validID(id string) bool {
	if id == "" || id == "." || id == ".." {
		return false
	}
	return !strings.ContainsAny(id, `/\`) && filepath.Base(id) == id
}

package stages

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/akolanti/docpipeline/internal/domain/docModel"
	"github.com/akolanti/docpipeline/internal/domain/jobModel"
	"github.com/dslipak/pdf"
	"github.com/lu4p/cat"
)

type parseHandler struct {
	stages *Stages
}

func (h *parseHandler) JobType() string {
	return jobModel.JobTypeParse
}

func (h *parseHandler) Handle(ctx context.Context, job jobModel.Job) error {
	doc, live := h.stages.liveDocument(ctx, job)
	if !live {
		return nil
	}

	doc, err := h.stages.enterStage(ctx, doc, job, docModel.IndexingParsing)
	if err != nil {
		return err
	}

	pages, err := extractPages(doc.SourcePath)
	if err != nil {
		err = fmt.Errorf("parse document %s: %w", doc.Id, err)
		h.stages.failDocument(ctx, job, err)
		return err
	}
	if len(pages) == 0 {
		err = fmt.Errorf("parse document %s: no extractable content", doc.Id)
		h.stages.failDocument(ctx, job, err)
		return err
	}

	doc.Pages = pages
	h.stages.setStageProgress(&doc, jobModel.JobTypeParse, 100)
	if err := h.stages.documents.SaveDocument(ctx, doc); err != nil {
		return fmt.Errorf("save parsed document %s: %w", doc.Id, err)
	}
	return h.stages.advance(ctx, job, jobModel.JobTypeChunk)
}

func extractPages(path string) ([]docModel.DocPage, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return extractPDF(path)
	case ".docx", ".odt", ".rtf", ".txt":
		return extractFlatText(path)
	default:
		return nil, fmt.Errorf("unsupported content type: %s", filepath.Ext(path))
	}
}

func extractPDF(path string) ([]docModel.DocPage, error) {
	f, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}

	var pages []docModel.DocPage
	numPages := f.NumPage()
	for i := 1; i <= numPages; i++ {
		page := f.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := protectExtract(page)
		if err != nil {
			//keep going; one unreadable page should not sink the document
			continue
		}
		pages = append(pages, docModel.DocPage{
			Number:  i,
			Content: content,
		})
	}
	return pages, nil
}

// cat reads .odt, .docx, .rtf and plaintext; it yields one undivided body,
// so everything lands on a single page.
func extractFlatText(path string) ([]docModel.DocPage, error) {
	text, err := cat.File(path)
	if err != nil {
		return nil, fmt.Errorf("failed to extract document text: %w", err)
	}
	return []docModel.DocPage{
		{
			Number:  1,
			Content: text,
		},
	}, nil
}

// protectExtract guards GetPlainText, which can hang on malformed pages.
func protectExtract(page pdf.Page) (string, error) {
	type result struct {
		content string
		err     error
	}
	resChan := make(chan result, 1)

	go func() {
		content, err := page.GetPlainText(nil)
		resChan <- result{content, err}
	}()
	select {
	case r := <-resChan:
		return r.content, r.err
	case <-time.After(time.Second * 10):
		return "", errors.New("page extraction timeout")
	}
}

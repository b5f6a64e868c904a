package pipeline

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/receptro/constants"
)

// runDocument is ocr -> extract.
func (r *Router) runDocument(ctx context.Context, res *Result, art *artifacts, log *slog.Logger) error {
	if err := r.enter(ctx, res, log, constants.StageOCR); err != nil {
		return err
	}
	text, err := r.eng.OCR.Recognize(ctx, res.Input.Path)
	if err != nil {
		return r.fail(res, log, constants.StageOCR, err)
	}
	res.RawText = text
	if err := art.writeText(ArtifactOCRText, "ocr_text.txt", text+"\n"); err != nil {
		return r.fail(res, log, constants.StageOCR, err)
	}
	res.completed(constants.StageOCR)
	if text == "" {
		log.Warn("ocr produced no text")
	}
	log.Debug("router.stage.ok", "stage", constants.StageOCR, "chars", len(text))

	if err := r.enter(ctx, res, log, constants.StageExtract); err != nil {
		return err
	}
	ext := r.extractor.Extract(text)
	res.Fields = &ext
	if err := art.writeJSON(ArtifactFields, "fields.json", ext); err != nil {
		return r.fail(res, log, constants.StageExtract, err)
	}
	res.completed(constants.StageExtract)
	log.Debug("router.stage.ok", "stage", constants.StageExtract, "field_count", ext.FieldCount)
	return nil
}

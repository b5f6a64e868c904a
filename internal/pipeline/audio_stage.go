package pipeline

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/receptro/constants"
	"github.com/joseph-ayodele/receptro/internal/engines"
)

// intentArtifact is what intent.json holds.
type intentArtifact struct {
	Intent       string            `json:"intent"`
	Confidence   float64           `json:"confidence"`
	Parameters   map[string]string `json:"parameters"`
	Rule         string            `json:"rule,omitempty"`
	OriginalText string            `json:"original_text"`
	ResponseText string            `json:"response_text"`
}

// runAudio is transcribe -> recognize -> synthesize.
func (r *Router) runAudio(ctx context.Context, res *Result, art *artifacts, log *slog.Logger) error {
	if err := r.enter(ctx, res, log, constants.StageTranscribe); err != nil {
		return err
	}
	transcript, err := r.eng.Transcriber.Transcribe(ctx, res.Input.Path)
	if err != nil {
		return r.fail(res, log, constants.StageTranscribe, err)
	}
	res.Transcript = transcript
	if err := art.writeText(ArtifactTranscript, "transcript.txt", transcript+"\n"); err != nil {
		return r.fail(res, log, constants.StageTranscribe, err)
	}
	res.completed(constants.StageTranscribe)
	log.Debug("router.stage.ok", "stage", constants.StageTranscribe, "chars", len(transcript))

	if err := r.enter(ctx, res, log, constants.StageRecognize); err != nil {
		return err
	}
	rec := r.recognizer.Recognize(transcript)
	res.Intent = &rec
	reply, err := r.recognizer.Reply(rec)
	if err != nil {
		return r.fail(res, log, constants.StageRecognize, err)
	}
	res.Reply = reply
	if err := art.writeJSON(ArtifactIntent, "intent.json", intentArtifact{
		Intent:       rec.Intent,
		Confidence:   rec.Confidence,
		Parameters:   rec.Parameters,
		Rule:         rec.Rule,
		OriginalText: rec.Text,
		ResponseText: reply,
	}); err != nil {
		return r.fail(res, log, constants.StageRecognize, err)
	}
	res.completed(constants.StageRecognize)
	log.Debug("router.stage.ok", "stage", constants.StageRecognize,
		"intent", rec.Intent, "confidence", rec.Confidence, "rule", rec.Rule)

	if err := r.enter(ctx, res, log, constants.StageSynthesize); err != nil {
		return err
	}
	out, err := r.eng.Synthesizer.Synthesize(ctx, reply, engines.SynthesisOptions{
		OutputPath: art.path("reply.wav"),
		Voice:      r.cfg.Voice,
	})
	if err != nil {
		return r.fail(res, log, constants.StageSynthesize, err)
	}
	res.Outputs[ArtifactReply] = out
	res.completed(constants.StageSynthesize)
	log.Debug("router.stage.ok", "stage", constants.StageSynthesize, "output", out)
	return nil
}

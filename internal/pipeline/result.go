package pipeline

import (
	"encoding/json"
	"time"

	"github.com/joseph-ayodele/receptro/constants"
	"github.com/joseph-ayodele/receptro/internal/fields"
	"github.com/joseph-ayodele/receptro/internal/intent"
)

// Result is everything one run produced. The router writes it once; callers
// treat it as read-only.
type Result struct {
	ID         string
	Input      InputFile
	StartedAt  time.Time
	FinishedAt time.Time

	// audio
	Transcript string
	Intent     *intent.Result
	Reply      string

	// document
	RawText string
	Fields  *fields.Result

	Outputs         map[string]string // artifact name -> path
	CompletedStages []constants.Stage
	Failure         *StageError
}

// Status is COMPLETED unless a stage failed.
func (r *Result) Status() constants.RunStatus {
	if r.Failure != nil {
		return constants.RunStatusFailed
	}
	return constants.RunStatusCompleted
}

func (r *Result) completed(stage constants.Stage) {
	r.CompletedStages = append(r.CompletedStages, stage)
}

// Record flattens the result into its stored/exported shape.
func (r *Result) Record() Record {
	rec := Record{
		ID:              r.ID,
		InputFile:       r.Input.Path,
		FileType:        r.Input.Kind,
		Timestamp:       r.StartedAt.UTC(),
		Outputs:         map[string]string{},
		CompletedStages: append([]constants.Stage{}, r.CompletedStages...),
	}
	for k, v := range r.Outputs {
		rec.Outputs[k] = v
	}
	switch r.Input.Kind {
	case constants.Audio:
		rec.TranscriptText = r.Transcript
		rec.ResponseText = r.Reply
		if r.Intent != nil {
			rec.Intent = r.Intent.Intent
			rec.Confidence = r.Intent.Confidence
			rec.Parameters = r.Intent.Parameters
		}
	case constants.Image:
		rec.RawText = r.RawText
		if r.Fields != nil {
			rec.ExtractedFields = r.Fields.Fields
			rec.FieldCount = r.Fields.FieldCount
		}
	}
	if r.Failure != nil {
		rec.Error = &RecordError{Stage: r.Failure.Stage, Message: r.Failure.Err.Error()}
	}
	return rec
}

func (r *Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Record())
}

// RecordError names the failed stage of a stored run.
type RecordError struct {
	Stage   constants.Stage `json:"stage"`
	Message string          `json:"message"`
}

// Record is the persisted form of a Result. Audio and document records share
// the envelope; MarshalJSON emits only the fields of the record's kind.
type Record struct {
	ID        string
	InputFile string
	FileType  constants.FileKind
	Timestamp time.Time

	TranscriptText string
	Intent         string // empty when recognition never ran
	Confidence     float64
	Parameters     map[string]string
	ResponseText   string

	RawText         string
	ExtractedFields map[string]string
	FieldCount      int

	Outputs         map[string]string
	CompletedStages []constants.Stage
	Error           *RecordError
}

// Status is COMPLETED unless the record carries an error.
func (r Record) Status() constants.RunStatus {
	if r.Error != nil {
		return constants.RunStatusFailed
	}
	return constants.RunStatusCompleted
}

// FailedStage is the stage named by the record's error, or "".
func (r Record) FailedStage() constants.Stage {
	if r.Error == nil {
		return ""
	}
	return r.Error.Stage
}

type envelopeJSON struct {
	ID        string             `json:"id"`
	InputFile string             `json:"input_file"`
	FileType  constants.FileKind `json:"file_type"`
	Timestamp time.Time          `json:"timestamp"`
}

type audioRecordJSON struct {
	envelopeJSON
	TranscriptText  string            `json:"transcript_text"`
	Intent          *string           `json:"intent"`
	Confidence      float64           `json:"confidence"`
	Parameters      map[string]string `json:"parameters"`
	ResponseText    string            `json:"response_text"`
	Outputs         map[string]string `json:"outputs"`
	CompletedStages []constants.Stage `json:"completed_stages"`
	Error           *RecordError      `json:"error,omitempty"`
}

type documentRecordJSON struct {
	envelopeJSON
	RawText         string            `json:"raw_text"`
	ExtractedFields map[string]string `json:"extracted_fields"`
	FieldCount      int               `json:"field_count"`
	Outputs         map[string]string `json:"outputs"`
	CompletedStages []constants.Stage `json:"completed_stages"`
	Error           *RecordError      `json:"error,omitempty"`
}

// anyRecordJSON decodes either shape; the key sets do not overlap.
type anyRecordJSON struct {
	envelopeJSON
	TranscriptText  string            `json:"transcript_text"`
	Intent          *string           `json:"intent"`
	Confidence      float64           `json:"confidence"`
	Parameters      map[string]string `json:"parameters"`
	ResponseText    string            `json:"response_text"`
	RawText         string            `json:"raw_text"`
	ExtractedFields map[string]string `json:"extracted_fields"`
	FieldCount      int               `json:"field_count"`
	Outputs         map[string]string `json:"outputs"`
	CompletedStages []constants.Stage `json:"completed_stages"`
	Error           *RecordError      `json:"error,omitempty"`
}

func (r Record) MarshalJSON() ([]byte, error) {
	env := envelopeJSON{ID: r.ID, InputFile: r.InputFile, FileType: r.FileType, Timestamp: r.Timestamp}
	outputs := r.Outputs
	if outputs == nil {
		outputs = map[string]string{}
	}
	stages := r.CompletedStages
	if stages == nil {
		stages = []constants.Stage{}
	}

	if r.FileType == constants.Audio {
		out := audioRecordJSON{
			envelopeJSON:    env,
			TranscriptText:  r.TranscriptText,
			Confidence:      r.Confidence,
			Parameters:      r.Parameters,
			ResponseText:    r.ResponseText,
			Outputs:         outputs,
			CompletedStages: stages,
			Error:           r.Error,
		}
		if r.Intent != "" {
			i := r.Intent
			out.Intent = &i
			if out.Parameters == nil {
				out.Parameters = map[string]string{}
			}
		}
		return json.Marshal(out)
	}

	extracted := r.ExtractedFields
	if extracted == nil {
		extracted = map[string]string{}
	}
	return json.Marshal(documentRecordJSON{
		envelopeJSON:    env,
		RawText:         r.RawText,
		ExtractedFields: extracted,
		FieldCount:      r.FieldCount,
		Outputs:         outputs,
		CompletedStages: stages,
		Error:           r.Error,
	})
}

func (r *Record) UnmarshalJSON(b []byte) error {
	var in anyRecordJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	*r = Record{
		ID:              in.ID,
		InputFile:       in.InputFile,
		FileType:        in.FileType,
		Timestamp:       in.Timestamp,
		TranscriptText:  in.TranscriptText,
		Confidence:      in.Confidence,
		Parameters:      in.Parameters,
		ResponseText:    in.ResponseText,
		RawText:         in.RawText,
		ExtractedFields: in.ExtractedFields,
		FieldCount:      in.FieldCount,
		Outputs:         in.Outputs,
		CompletedStages: in.CompletedStages,
		Error:           in.Error,
	}
	if in.Intent != nil {
		r.Intent = *in.Intent
	}
	return nil
}

package meeting

// Normalize detects the format of content, parses it and renders the canonical
// text. It never fails; call Validate first to reject unusable input.
func Normalize(content string) *NormalizedTranscript {
	return NormalizeAs(content, Detect(content))
}

// NormalizeAs parses content as format, skipping detection. An unknown format
// falls back to plain.
func NormalizeAs(content string, format TranscriptFormat) *NormalizedTranscript {
	if !format.IsValid() {
		format = FormatPlain
	}
	entries := ParserFor(format).Parse(content)
	raw := RenderFormat(entries, format)

	return &NormalizedTranscript{
		Entries:      entries,
		Participants: ExtractParticipants(raw),
		RawText:      raw,
		Format:       format,
	}
}

// NormalizeText returns only the normalized text of content.
func NormalizeText(content string) string {
	return Normalize(content).RawText
}

// NormalizeValidated validates content with opts before normalizing it. A
// rejected transcript is returned as a *errors.PipelineError.
func NormalizeValidated(content string, opts ValidationOptions) (*NormalizedTranscript, error) {
	if err := Validate(content, opts).Err(); err != nil {
		return nil, err
	}
	return Normalize(content), nil
}

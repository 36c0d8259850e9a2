package app

import (
	"livequiz-service/internal/domain"
)

// playbackDirective computes the single media window for a question: the clip
// starts at the authored offset and stops at offset+duration. Free-text and
// multiple-choice variants carry no media window, only the question payload.
// Client-reported durations are never consulted.
func playbackDirective(q domain.Question) (domain.PlayMedia, bool) {
	if !q.Type.HasMedia() {
		return domain.PlayMedia{}, false
	}
	return domain.PlayMedia{
		ID:            q.ID,
		QuestionIndex: q.Position,
		Round:         q.Round,
		Artist:        q.Artist,
		Title:         q.Title,
		URL:           q.MediaURL,
		Start:         q.StartOffset,
		Duration:      q.Duration,
		QuestionType:  q.Type,
		ExtraQuestion: q.ExtraQuestion,
	}, true
}

// displayPayload is the screen-side question announcement. For media-backed
// variants it is the playback directive itself; for text variants it carries
// the question text with a zeroed media window.
func displayPayload(q domain.Question) domain.PlayMedia {
	if media, ok := playbackDirective(q); ok {
		return media
	}
	return domain.PlayMedia{
		ID:            q.ID,
		QuestionIndex: q.Position,
		Round:         q.Round,
		QuestionType:  q.Type,
		Duration:      q.Duration,
		QuestionText:  q.QuestionText,
	}
}

// unlockPayload opens the per-variant answer sheet on contestant devices.
func unlockPayload(q domain.Question, startedAt float64) domain.UnlockInput {
	payload := domain.UnlockInput{
		QuestionID:        q.ID,
		QuestionType:      q.Type,
		Round:             q.Round,
		QuestionIndex:     q.Position,
		QuestionStartedAt: startedAt,
	}
	switch q.Type {
	case domain.QuestionText:
		payload.QuestionText = q.QuestionText
	case domain.QuestionMultipleChoice:
		payload.QuestionText = q.QuestionText
		payload.Choices = q.Choices
	case domain.QuestionSimultaneous:
		payload.ExtraQuestion = q.ExtraQuestion
	}
	return payload
}

package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mohammad-safakhou/topicbook/internal/task"
)

var (
	ErrNoContentGathered       = errors.New("no content gathered")
	ErrOutlineGenerationFailed = errors.New("outline generation failed")
	ErrFinalSynthesisFailed    = errors.New("final synthesis failed")
	ErrPersistFailed           = errors.New("persist failed")
	ErrCancelled               = errors.New("task cancelled")
)

// KindOf maps a pipeline error to the failure kind recorded on the task.
func KindOf(err error) task.Kind {
	switch {
	case errors.Is(err, ErrNoContentGathered):
		return task.KindNoContentGathered
	case errors.Is(err, ErrOutlineGenerationFailed):
		return task.KindOutlineGenerationFailed
	case errors.Is(err, ErrFinalSynthesisFailed):
		return task.KindFinalSynthesisFailed
	case errors.Is(err, ErrPersistFailed):
		return task.KindPersistFailed
	case errors.Is(err, ErrCancelled):
		return task.KindCancelled
	default:
		return task.KindInternal
	}
}

// FailureMessage is the text shown to the user for a failed run.
func FailureMessage(err error) string {
	switch KindOf(err) {
	case task.KindNoContentGathered:
		return "Could not gather any content."
	case task.KindOutlineGenerationFailed:
		return "Could not generate structure."
	case task.KindFinalSynthesisFailed:
		return "Could not generate final content."
	case task.KindPersistFailed:
		return "Could not save the TopicBook: " + cause(err, ErrPersistFailed)
	case task.KindCancelled:
		return "Task cancelled: " + cause(err, ErrCancelled)
	default:
		return fmt.Sprintf("Internal error: %v", err)
	}
}

// cause drops the sentinel prefix from errors built as "%w: %w".
func cause(err, sentinel error) string {
	return strings.TrimPrefix(err.Error(), sentinel.Error()+": ")
}

// Package cli holds what the loadremover commands share: exit codes and the
// mapping from errors to them.
package cli

import (
	"context"
	"errors"

	"github.com/lkarlslund/loadremover/internal/config"
	"github.com/lkarlslund/loadremover/internal/match"
	"github.com/lkarlslund/loadremover/internal/timecode"
	"github.com/lkarlslund/loadremover/internal/video"
	"github.com/lkarlslund/loadremover/internal/visualize"
)

const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitUsage       = 2
	ExitInput       = 3
	ExitOutput      = 4
	ExitInterrupted = 130
)

// ExitCode classifies err for os.Exit.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, context.Canceled):
		return ExitInterrupted
	case errors.Is(err, config.ErrInvalid),
		errors.Is(err, timecode.ErrFormat),
		errors.Is(err, match.ErrTemplateUnreadable),
		errors.Is(err, match.ErrTemplateFlat),
		errors.Is(err, match.ErrFrameTooSmall):
		return ExitUsage
	case errors.Is(err, video.ErrOpenSource),
		errors.Is(err, video.ErrDecode),
		errors.Is(err, visualize.ErrReadImage):
		return ExitInput
	case errors.Is(err, video.ErrOpenSink),
		errors.Is(err, video.ErrWrite),
		errors.Is(err, visualize.ErrWriteImage):
		return ExitOutput
	}
	return ExitFailure
}

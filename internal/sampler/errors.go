package sampler

import (
	"errors"

	"github.com/maauso/video-sampler/internal/media"
	"github.com/maauso/video-sampler/internal/storage"
)

// Failure kinds reported in logs and metrics.
const (
	KindPipelineBuild       = "pipeline_build"
	KindNoVideoStream       = "no_video_stream"
	KindDurationUnavailable = "duration_unavailable"
	KindSeek                = "seek"
	KindEncode              = "encode"
	KindPublish             = "publish"
	KindInvalidTask         = "invalid_task"
	KindUnknown             = "unknown"
)

// Kind classifies a task error into a stable label.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrInvalidTask), errors.Is(err, ErrInvalidPlan), errors.Is(err, media.ErrInvalidDimensions):
		return KindInvalidTask
	case errors.Is(err, media.ErrPipelineBuild), errors.Is(err, media.ErrInvalidState):
		return KindPipelineBuild
	case errors.Is(err, media.ErrNoVideoStream):
		return KindNoVideoStream
	case errors.Is(err, media.ErrDurationUnavailable):
		return KindDurationUnavailable
	case errors.Is(err, media.ErrSeek):
		return KindSeek
	case errors.Is(err, ErrEncode):
		return KindEncode
	case errors.Is(err, storage.ErrPublish):
		return KindPublish
	default:
		return KindUnknown
	}
}

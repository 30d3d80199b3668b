package media

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ProbeResult is the subset of ffprobe output the pipeline negotiates with.
type ProbeResult struct {
	// FormatName is the demuxer chosen for the container.
	FormatName string
	// Duration is the container duration, zero when unknown.
	Duration time.Duration
	// Video is the first video stream that is not an attached picture.
	Video *VideoStream
}

// VideoStream describes one decodable video stream.
type VideoStream struct {
	Index    int
	Codec    string
	Width    int
	Height   int
	Duration time.Duration

	// FrameInterval is one frame's display time, zero when the rate is unknown.
	FrameInterval time.Duration
}

// ParseProbe converts raw ffprobe JSON output into a ProbeResult.
// Exported for testing without a real ffprobe binary.
func ParseProbe(data []byte) (*ProbeResult, error) {
	var raw ffprobeOutput
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse ffprobe JSON: %w", err)
	}

	pr := &ProbeResult{
		FormatName: raw.Format.FormatName,
		Duration:   parseSeconds(raw.Format.Duration),
	}
	for i := range raw.Streams {
		s := &raw.Streams[i]
		if s.CodecType != "video" || s.Disposition["attached_pic"] == 1 {
			continue
		}
		pr.Video = &VideoStream{
			Index:         s.Index,
			Codec:         s.CodecName,
			Width:         s.Width,
			Height:        s.Height,
			Duration:      parseSeconds(s.Duration),
			FrameInterval: parseFrameInterval(s.AvgFrameRate),
		}
		if pr.Video.FrameInterval == 0 {
			pr.Video.FrameInterval = parseFrameInterval(s.RFrameRate)
		}
		break
	}
	return pr, nil
}

// --- ffprobe JSON wire types ---

type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeFormat struct {
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
}

type ffprobeStream struct {
	Index        int            `json:"index"`
	CodecName    string         `json:"codec_name"`
	CodecType    string         `json:"codec_type"`
	Width        int            `json:"width"`
	Height       int            `json:"height"`
	Duration     string         `json:"duration"`
	AvgFrameRate string         `json:"avg_frame_rate"`
	RFrameRate   string         `json:"r_frame_rate"`
	Disposition  map[string]int `json:"disposition"`
}

// maxSeconds is the largest value that fits a time.Duration.
const maxSeconds = float64(math.MaxInt64) / float64(time.Second)

// parseSeconds converts an ffprobe seconds string ("12.345000", "N/A") into
// a duration. Unparseable, negative, or non-finite values yield zero.
func parseSeconds(s string) time.Duration {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || f <= 0 || f >= maxSeconds {
		return 0
	}
	return time.Duration(f * float64(time.Second))
}

// parseFrameInterval converts an ffprobe rational frame rate ("25/1",
// "30000/1001") into the duration of one frame. "0/0" and malformed rates
// yield zero.
func parseFrameInterval(rate string) time.Duration {
	num, den, ok := strings.Cut(strings.TrimSpace(rate), "/")
	if !ok {
		den = "1"
	}
	n, err := strconv.ParseFloat(num, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) || n <= 0 {
		return 0
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || math.IsNaN(d) || math.IsInf(d, 0) || d <= 0 {
		return 0
	}
	return time.Duration(d / n * float64(time.Second))
}

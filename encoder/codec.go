package encoder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/stevecastle/fxlab/binexec"
)

// ErrNoSupportedCodec is returned when none of the candidate codecs is
// available in the local ffmpeg build.
var ErrNoSupportedCodec = errors.New("no supported codec")

// Codec is one encoder/container combination.
type Codec struct {
	// Encoder is the ffmpeg encoder name.
	Encoder   string `json:"encoder"`
	Profile   string `json:"profile,omitempty"`
	Container string `json:"container"`
	Extension string `json:"extension"`
	MIME      string `json:"mime"`
}

// Candidates lists codecs in order of preference: H.264 High first, then
// other H.264 encoders, VP9, VP8 and finally MPEG-4 part 2.
var Candidates = []Codec{
	{Encoder: "libx264", Profile: "high", Container: "mp4", Extension: "mp4", MIME: "video/mp4"},
	{Encoder: "h264_videotoolbox", Profile: "high", Container: "mp4", Extension: "mp4", MIME: "video/mp4"},
	{Encoder: "h264_mf", Container: "mp4", Extension: "mp4", MIME: "video/mp4"},
	{Encoder: "libopenh264", Container: "mp4", Extension: "mp4", MIME: "video/mp4"},
	{Encoder: "libvpx-vp9", Container: "webm", Extension: "webm", MIME: "video/webm"},
	{Encoder: "libvpx", Container: "webm", Extension: "webm", MIME: "video/webm"},
	{Encoder: "mpeg4", Container: "mp4", Extension: "mp4", MIME: "video/mp4"},
}

// Filter keeps the candidates named in encoders, in the order given. An
// empty list keeps Candidates unchanged.
func Filter(encoders []string) []Codec {
	if len(encoders) == 0 {
		return Candidates
	}
	var out []Codec
	for _, name := range encoders {
		for _, c := range Candidates {
			if c.Encoder == name {
				out = append(out, c)
			}
		}
	}
	return out
}

// Probe asks ffmpeg which video encoders it was built with.
func Probe(ctx context.Context, ffmpeg binexec.Tool) (map[string]bool, error) {
	cmd, err := ffmpeg.Command(ctx, "-hide_banner", "-encoders")
	if err != nil {
		return nil, err
	}
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("list encoders: %w", err)
	}
	return parseEncoders(strings.NewReader(string(out))), nil
}

// parseEncoders reads `ffmpeg -encoders` output. Video encoder lines start
// with a capability column whose first letter is V, e.g.
// " V....D libx264              libx264 H.264 ...".
func parseEncoders(r io.Reader) map[string]bool {
	found := make(map[string]bool)
	sc := bufio.NewScanner(r)
	listing := false
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, "------") {
			listing = true
			continue
		}
		if !listing {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 || len(fields[0]) != 6 || fields[0][0] != 'V' {
			continue
		}
		found[fields[1]] = true
	}
	return found
}

// Select returns the first candidate present in available.
func Select(available map[string]bool, candidates []Codec) (Codec, error) {
	for _, c := range candidates {
		if available[c.Encoder] {
			return c, nil
		}
	}
	names := make([]string, len(candidates))
	for i, c := range candidates {
		names[i] = c.Encoder
	}
	return Codec{}, fmt.Errorf("%w (tried %s)", ErrNoSupportedCodec, strings.Join(names, ", "))
}

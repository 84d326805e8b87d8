package render

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"shorts-factory/config"
	"shorts-factory/subtitles"
	"shorts-factory/types"
)

// Segment is one voiced scene on the output timeline.
type Segment struct {
	Scene    int
	Audio    string
	Image    string // "" when the scene has no image
	Speaker  string
	Line     string
	Duration float64
}

// Job is everything the muxer needs for one video.
type Job struct {
	ProjectID       string
	Output          string
	Format          types.VideoFormat
	Segments        []Segment
	BackgroundVideo string
	Music           string
	MusicVolume     float64
	CaptionsFile    string
}

// Total is the summed segment duration in seconds.
func (j Job) Total() float64 {
	var t float64
	for _, s := range j.Segments {
		t += s.Duration
	}
	return t
}

// Muxer turns a Job into a video file.
type Muxer interface {
	Mux(ctx context.Context, job Job) (string, error)
}

// Prober measures media duration in seconds.
type Prober interface {
	Duration(ctx context.Context, file string) (float64, error)
}

type execFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// FFmpeg renders with the ffmpeg and ffprobe binaries.
type FFmpeg struct {
	ffmpeg  string
	ffprobe string
	fps     int
	bgColor string
	zoom    float64
	exec    execFunc
}

func NewFFmpeg(cfg config.RenderConfig) *FFmpeg {
	f := &FFmpeg{
		ffmpeg:  cfg.FFmpegBin,
		ffprobe: cfg.FFprobeBin,
		fps:     cfg.FPS,
		bgColor: cfg.BackgroundColor,
		zoom:    cfg.KenBurnsZoomFactor,
		exec:    runCommand,
	}
	if f.ffmpeg == "" {
		f.ffmpeg = "ffmpeg"
	}
	if f.ffprobe == "" {
		f.ffprobe = "ffprobe"
	}
	if f.fps <= 0 {
		f.fps = 30
	}
	if f.bgColor == "" {
		f.bgColor = "0x0f0f19"
	}
	if f.zoom < 1 {
		f.zoom = 1.08
	}
	return f
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > 500 {
			msg = msg[len(msg)-500:]
		}
		return out, fmt.Errorf("%s: %w: %s", name, err, msg)
	}
	return out, nil
}

// Duration uses ffprobe to get accurate duration in seconds.
func (f *FFmpeg) Duration(ctx context.Context, file string) (float64, error) {
	out, err := f.exec(ctx, f.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		file,
	)
	if err != nil {
		return 0, err
	}
	var dur float64
	if _, err := fmt.Sscanf(strings.TrimSpace(string(out)), "%f", &dur); err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", out, err)
	}
	return dur, nil
}

// Mux builds the final video: visuals, then the voice track with optional
// music, then captions. Intermediate files live next to job.Output and are
// removed afterwards.
func (f *FFmpeg) Mux(ctx context.Context, job Job) (string, error) {
	if len(job.Segments) == 0 {
		return "", fmt.Errorf("no audio segments")
	}
	workDir := filepath.Join(filepath.Dir(job.Output), "work")
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return "", err
	}
	defer os.RemoveAll(workDir)

	w, h := frameSize(job.Format)
	total := job.Total()

	log.Printf("[render] Step 1/4: visuals for %d segments (%.1fs)", len(job.Segments), total)
	silent, err := f.visuals(ctx, job, workDir, w, h)
	if err != nil {
		return "", fmt.Errorf("visuals: %w", err)
	}

	log.Println("[render] Step 2/4: merging audio...")
	audio := filepath.Join(workDir, "voice.m4a")
	if _, err := f.exec(ctx, f.ffmpeg, concatAudioArgs(job.Segments, audio)...); err != nil {
		return "", fmt.Errorf("merge audio: %w", err)
	}
	if job.Music != "" {
		mixed := filepath.Join(workDir, "mixed.m4a")
		if _, err := f.exec(ctx, f.ffmpeg, mixMusicArgs(audio, job.Music, job.MusicVolume, total, mixed)...); err != nil {
			log.Printf("[render] Warning: music mix failed: %v, continuing without music", err)
		} else {
			audio = mixed
		}
	}

	log.Println("[render] Step 3/4: combining video + audio...")
	if err := os.MkdirAll(filepath.Dir(job.Output), 0755); err != nil {
		return "", err
	}
	if _, err := f.exec(ctx, f.ffmpeg, combineArgs(silent, audio, job.CaptionsFile, job.Output)...); err != nil {
		if job.CaptionsFile == "" {
			return "", fmt.Errorf("combine: %w", err)
		}
		log.Printf("[render] Warning: caption burn failed: %v, continuing without captions", err)
		if _, err := f.exec(ctx, f.ffmpeg, combineArgs(silent, audio, "", job.Output)...); err != nil {
			return "", fmt.Errorf("combine: %w", err)
		}
	}

	log.Printf("[render] Step 4/4: ✅ %s", job.Output)
	return job.Output, nil
}

// visuals returns a silent video covering the whole timeline. Image segments
// get a Ken Burns pan; segments without an image show the background video
// when there is one, or a solid frame.
func (f *FFmpeg) visuals(ctx context.Context, job Job, dir string, w, h int) (string, error) {
	out := filepath.Join(dir, "visuals.mp4")
	if !hasImages(job.Segments) {
		if job.BackgroundVideo != "" {
			_, err := f.exec(ctx, f.ffmpeg, loopVideoArgs(job.BackgroundVideo, 0, job.Total(), w, h, f.fps, out)...)
			return out, err
		}
		_, err := f.exec(ctx, f.ffmpeg, solidArgs(f.bgColor, job.Total(), w, h, f.fps, out)...)
		return out, err
	}

	var clips []string
	var offset float64
	for i, seg := range job.Segments {
		clip := filepath.Join(dir, fmt.Sprintf("clip_%03d.mp4", i))
		var args []string
		switch {
		case seg.Image != "":
			args = kenBurnsArgs(seg.Image, seg.Duration, f.zoom, w, h, f.fps, clip)
		case job.BackgroundVideo != "":
			args = loopVideoArgs(job.BackgroundVideo, offset, seg.Duration, w, h, f.fps, clip)
		default:
			args = solidArgs(f.bgColor, seg.Duration, w, h, f.fps, clip)
		}
		if _, err := f.exec(ctx, f.ffmpeg, args...); err != nil {
			return "", fmt.Errorf("segment %d: %w", i, err)
		}
		clips = append(clips, clip)
		offset += seg.Duration
	}

	list := filepath.Join(dir, "visuals_concat.txt")
	var lines []string
	for _, c := range clips {
		lines = append(lines, fmt.Sprintf("file '%s'", c))
	}
	if err := os.WriteFile(list, []byte(strings.Join(lines, "\n")), 0644); err != nil {
		return "", err
	}
	_, err := f.exec(ctx, f.ffmpeg, "-y", "-f", "concat", "-safe", "0", "-i", list, "-c", "copy", out)
	return out, err
}

func hasImages(segs []Segment) bool {
	for _, s := range segs {
		if s.Image != "" {
			return true
		}
	}
	return false
}

func frameSize(f types.VideoFormat) (int, int) {
	if f == types.FormatVertical {
		return 720, 1280
	}
	return 1280, 720
}

func seconds(v float64) string { return fmt.Sprintf("%.3f", v) }

// kenBurnsArgs applies a slow zoom from 1.0 to zoom over a still image.
func kenBurnsArgs(image string, dur, zoom float64, w, h, fps int, out string) []string {
	frames := int(dur * float64(fps))
	if frames < 1 {
		frames = 1
	}
	step := (zoom - 1.0) / float64(frames)
	filter := fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d,zoompan=z='min(zoom+%.6f,%.3f)':x='iw/2-(iw/zoom/2)':y='ih/2-(ih/zoom/2)':d=%d:s=%dx%d:fps=%d,setsar=1",
		w*2, h*2, w*2, h*2, step, zoom, frames, w, h, fps,
	)
	return []string{"-y",
		"-loop", "1",
		"-i", image,
		"-vf", filter,
		"-t", seconds(dur),
		"-c:v", "libx264", "-preset", "fast", "-crf", "23",
		"-pix_fmt", "yuv420p",
		"-an",
		out,
	}
}

func solidArgs(color string, dur float64, w, h, fps int, out string) []string {
	return []string{"-y",
		"-f", "lavfi",
		"-i", fmt.Sprintf("color=c=%s:s=%dx%d:d=%s:r=%d", color, w, h, seconds(dur), fps),
		"-c:v", "libx264", "-preset", "ultrafast", "-crf", "28",
		"-pix_fmt", "yuv420p",
		out,
	}
}

// loopVideoArgs loops src, cropped to fill the frame, and cuts dur seconds
// starting at offset.
func loopVideoArgs(src string, offset, dur float64, w, h, fps int, out string) []string {
	return []string{"-y",
		"-stream_loop", "-1",
		"-i", src,
		"-ss", seconds(offset),
		"-t", seconds(dur),
		"-vf", fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d,fps=%d,setsar=1", w, h, w, h, fps),
		"-c:v", "libx264", "-preset", "fast", "-crf", "23",
		"-pix_fmt", "yuv420p",
		"-an",
		out,
	}
}

// concatAudioArgs joins segment audio in timeline order.
func concatAudioArgs(segs []Segment, out string) []string {
	args := []string{"-y"}
	var in strings.Builder
	for i, s := range segs {
		args = append(args, "-i", s.Audio)
		fmt.Fprintf(&in, "[%d:a]", i)
	}
	filter := fmt.Sprintf("%sconcat=n=%d:v=0:a=1[out]", in.String(), len(segs))
	return append(args, "-filter_complex", filter, "-map", "[out]", "-c:a", "aac", "-b:a", "192k", out)
}

func mixMusicArgs(voice, music string, volume, dur float64, out string) []string {
	return []string{"-y",
		"-i", voice,
		"-stream_loop", "-1",
		"-i", music,
		"-filter_complex", fmt.Sprintf("[1:a]volume=%.2f[music];[0:a][music]amix=inputs=2:duration=first:normalize=0[out]", volume),
		"-map", "[out]",
		"-t", seconds(dur),
		"-c:a", "aac", "-b:a", "192k",
		out,
	}
}

// combineArgs muxes the silent video with audio, burning captions when set.
func combineArgs(video, audio, captions, out string) []string {
	args := []string{"-y", "-i", video, "-i", audio}
	if captions != "" {
		args = append(args, "-vf", fmt.Sprintf("ass='%s'", subtitles.EscapeFilterPath(captions)),
			"-c:v", "libx264", "-preset", "fast", "-crf", "22")
	} else {
		args = append(args, "-c:v", "copy")
	}
	return append(args,
		"-map", "0:v:0", "-map", "1:a:0",
		"-c:a", "aac", "-b:a", "192k",
		"-shortest",
		"-movflags", "+faststart",
		out,
	)
}

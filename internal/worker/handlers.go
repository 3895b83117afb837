package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"clipforge/internal/database"
	"clipforge/internal/metrics"
	"clipforge/internal/render"
	"clipforge/internal/storage"
	"clipforge/pkg/models"
)

const presignExpiry = 7 * 24 * time.Hour

// mediaPath returns the on-disk path of an artifact under the media root
func (w *Worker) mediaPath(kind, name string) string {
	return filepath.Join(w.cfg.Media.RootDir, kind, name)
}

// mediaURL returns the externally servable URL mirroring mediaPath
func (w *Worker) mediaURL(kind, name string) string {
	return w.cfg.Media.BaseURL + "/" + kind + "/" + name
}

// mirror uploads an artifact to object storage when a storage client
// is configured, returning a presigned URL. Without storage the local
// URL mirror is used.
func (w *Worker) mirror(ctx context.Context, kind, clipID, suffix, ext, localPath string) string {
	name := filepath.Base(localPath)
	if w.uploader == nil {
		return w.mediaURL(kind, name)
	}

	objectName := storage.ObjectName(kind, clipID, suffix, ext)
	if err := w.uploader.UploadFile(ctx, objectName, localPath); err != nil {
		w.logger.WithClipID(clipID).WithError(err).Warn("Failed to mirror artifact")
		return w.mediaURL(kind, name)
	}

	url, err := w.uploader.GetURL(ctx, objectName, presignExpiry)
	if err != nil {
		w.logger.WithClipID(clipID).WithError(err).Warn("Failed to presign artifact URL")
		return w.mediaURL(kind, name)
	}
	return url
}

// handleIngest downloads the source video and probes it, then chains
// the transcription stage.
func (w *Worker) handleIngest(ctx context.Context, job *models.Job) error {
	video, err := w.repo.GetVideo(ctx, job.VideoID)
	if err != nil {
		return fmt.Errorf("failed to load video: %w", err)
	}

	// A redelivered ingest job skips the download if the file is
	// already on disk.
	if video.SourcePath == "" || !fileExists(video.SourcePath) {
		path, err := w.downloader.Download(ctx, video.SourceURL, filepath.Join(w.cfg.Media.RootDir, "source"))
		if err != nil {
			return fmt.Errorf("failed to download source: %w", err)
		}
		video.SourcePath = path
	}

	if info, err := w.prober.Probe(ctx, video.SourcePath); err == nil {
		video.DurationSec = info.Duration
	}

	video.Status = models.VideoStatusIngested
	if err := w.repo.UpdateVideo(ctx, video); err != nil {
		return fmt.Errorf("failed to update video: %w", err)
	}

	return w.enqueue(ctx, &models.Job{Type: models.JobTranscribe, VideoID: video.ID})
}

// handleTranscribe runs speech-to-text over the ingested source and
// chains the analysis stage. The transcript upsert keeps redelivery
// safe: one transcript row per video.
func (w *Worker) handleTranscribe(ctx context.Context, job *models.Job) error {
	video, err := w.repo.GetVideo(ctx, job.VideoID)
	if err != nil {
		return fmt.Errorf("failed to load video: %w", err)
	}

	result, err := w.transcriber.Transcribe(ctx, video.SourcePath)
	if err != nil {
		return fmt.Errorf("failed to transcribe: %w", err)
	}

	t := &models.Transcript{
		VideoID:  video.ID,
		Language: result.Language,
		Text:     result.Text,
		Words:    result.Words,
	}
	if err := w.repo.UpsertTranscript(ctx, t); err != nil {
		return err
	}

	video.Language = result.Language
	video.Status = models.VideoStatusTranscribed
	if err := w.repo.UpdateVideo(ctx, video); err != nil {
		return fmt.Errorf("failed to update video: %w", err)
	}

	return w.enqueue(ctx, &models.Job{Type: models.JobAnalyze, VideoID: video.ID})
}

// handleAnalyze ranks highlight candidates from the transcript. A
// missing or empty transcript is a no-op, not a failure.
func (w *Worker) handleAnalyze(ctx context.Context, job *models.Job) error {
	transcript, err := w.repo.GetTranscript(ctx, job.VideoID)
	if errors.Is(err, database.ErrNotFound) {
		w.logger.WithVideoID(job.VideoID).Warn("No transcript to analyze")
		return nil
	}
	if err != nil {
		return err
	}
	if len(transcript.Words) == 0 {
		w.logger.WithVideoID(job.VideoID).Warn("Transcript has no words")
		return nil
	}

	candidates, err := w.ranker.Rank(ctx, transcript.Words)
	if err != nil {
		return fmt.Errorf("failed to rank segments: %w", err)
	}

	segments := make([]*models.Segment, len(candidates))
	for i, c := range candidates {
		segments[i] = &models.Segment{
			VideoID:   job.VideoID,
			Start:     c.Start,
			End:       c.End,
			Score:     c.Score,
			Features:  c.Features,
			Embedding: c.Embedding,
			Reason:    c.Reason,
		}
	}

	if err := w.repo.ReplaceSegments(ctx, job.VideoID, segments); err != nil {
		return err
	}
	metrics.SegmentsKept.Observe(float64(len(segments)))

	video, err := w.repo.GetVideo(ctx, job.VideoID)
	if err != nil {
		return fmt.Errorf("failed to load video: %w", err)
	}
	video.Status = models.VideoStatusAnalyzed
	if err := w.repo.UpdateVideo(ctx, video); err != nil {
		return fmt.Errorf("failed to update video: %w", err)
	}

	w.logger.WithVideoID(job.VideoID).WithField("segments", len(segments)).Info("Analysis complete")
	return nil
}

// clipRange resolves the time range of a render job, falling back to
// the referenced segment's bounds when the descriptor carries none.
func (w *Worker) clipRange(ctx context.Context, job *models.Job) (float64, float64, error) {
	if job.End > job.Start {
		return job.Start, job.End, nil
	}
	if job.SegmentID == "" {
		return 0, 0, fmt.Errorf("render job has no time range")
	}

	segment, err := w.repo.GetSegment(ctx, job.SegmentID)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to load segment: %w", err)
	}
	return segment.Start, segment.End, nil
}

// handleRender encodes one clip: face-aware crop for vertical output,
// burned-in captions when the transcript is available, fixed encode
// parameters. An encode failure marks the clip failed.
func (w *Worker) handleRender(ctx context.Context, job *models.Job) error {
	clip, err := w.repo.GetClip(ctx, job.ClipID)
	if err != nil {
		return fmt.Errorf("failed to load clip: %w", err)
	}
	video, err := w.repo.GetVideo(ctx, clip.VideoID)
	if err != nil {
		return fmt.Errorf("failed to load video: %w", err)
	}

	start, end, err := w.clipRange(ctx, job)
	if err != nil {
		return err
	}

	// Hints only apply to the vertical format. A nil hint from the
	// engine means the centered default.
	var hint *models.CropHint
	if clip.AspectRatio == models.AspectVertical && w.reframer != nil {
		hint, err = w.reframer.StaticCrop(ctx, video.SourcePath, start, end)
		if err != nil {
			return fmt.Errorf("failed to compute crop: %w", err)
		}
	}

	vf := render.FilterGraph(clip.AspectRatio, hint)

	subtitlePath, err := w.writeSubtitles(ctx, clip, start, end)
	if err != nil {
		w.logger.WithClipID(clip.ID).WithError(err).Warn("Skipping captions")
	} else if subtitlePath != "" {
		defer os.Remove(subtitlePath)
		vf = render.WithSubtitles(vf, subtitlePath)
	}

	if err := os.MkdirAll(filepath.Join(w.cfg.Media.RootDir, "clips"), 0o755); err != nil {
		return fmt.Errorf("failed to create clips dir: %w", err)
	}
	outputPath := w.mediaPath("clips", clip.ID+".mp4")

	directive := render.EncodeDirective{
		InputPath:   video.SourcePath,
		OutputPath:  outputPath,
		Start:       start,
		End:         end,
		FilterGraph: vf,
	}
	if err := w.encoder.Encode(ctx, directive); err != nil {
		if updateErr := w.repo.UpdateClipOutput(ctx, clip.ID, "", "", models.ClipStatusFailed); updateErr != nil {
			w.logger.WithClipID(clip.ID).WithError(updateErr).Error("Failed to mark clip failed")
		}
		return err
	}

	storageURL := w.mirror(ctx, "clips", clip.ID, "", ".mp4", outputPath)
	if err := w.repo.UpdateClipOutput(ctx, clip.ID, outputPath, storageURL, models.ClipStatusDone); err != nil {
		return err
	}

	metrics.ClipsRenderedTotal.WithLabelValues(clip.AspectRatio).Inc()
	w.logger.WithClipID(clip.ID).WithField("output", outputPath).Info("Clip rendered")
	return nil
}

// writeSubtitles builds the caption file for a clip's range. Styled
// ASS output is used when the clip has emphasis keywords, plain SRT
// otherwise. An empty path means no captions.
func (w *Worker) writeSubtitles(ctx context.Context, clip *models.Clip, start, end float64) (string, error) {
	transcript, err := w.repo.GetTranscript(ctx, clip.VideoID)
	if errors.Is(err, database.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	cues := render.BuildCues(transcript.Words, start, end, w.cfg.Render.MaxCueGap)
	if len(cues) == 0 {
		return "", nil
	}

	if err := os.MkdirAll(w.cfg.Media.TempDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create temp dir: %w", err)
	}

	if len(clip.CaptionStyle.Keywords) > 0 {
		path := filepath.Join(w.cfg.Media.TempDir, clip.ID+".ass")
		opts := render.StyleOptions{
			FontName:      w.cfg.Render.FontName,
			FontSize:      w.cfg.Render.FontSize,
			PrimaryColor:  w.cfg.Render.PrimaryColor,
			EmphasisColor: w.cfg.Render.EmphasisColor,
			Keywords:      clip.CaptionStyle.Keywords,
		}
		return path, render.SaveASS(path, cues, opts)
	}

	path := filepath.Join(w.cfg.Media.TempDir, clip.ID+".srt")
	return path, render.SaveSRT(path, cues)
}

// composeThumbnail renders one thumbnail variant and returns its
// stored variant record.
func (w *Worker) composeThumbnail(ctx context.Context, clip *models.Clip, video *models.Video, start, end float64, key, style, title string) (models.ThumbnailVariant, error) {
	var hint *models.CropHint
	if clip.AspectRatio == models.AspectVertical && w.reframer != nil {
		h, err := w.reframer.StaticCrop(ctx, video.SourcePath, start, end)
		if err == nil {
			hint = h
		}
	}

	if err := os.MkdirAll(filepath.Join(w.cfg.Media.RootDir, "thumbnails"), 0o755); err != nil {
		return models.ThumbnailVariant{}, fmt.Errorf("failed to create thumbnails dir: %w", err)
	}

	name := clip.ID + ".jpg"
	suffix := ""
	if key != "main" {
		name = clip.ID + "_" + key + ".jpg"
		suffix = key
	}
	outputPath := w.mediaPath("thumbnails", name)

	spec := render.ThumbnailSpec{
		SourcePath: video.SourcePath,
		Start:      start,
		End:        end,
		Aspect:     clip.AspectRatio,
		Hint:       hint,
		Title:      title,
		OutputPath: outputPath,
	}
	if err := w.composer.Compose(ctx, spec); err != nil {
		return models.ThumbnailVariant{}, fmt.Errorf("failed to compose thumbnail %s: %w", key, err)
	}

	return models.ThumbnailVariant{
		Key:   key,
		Path:  outputPath,
		URL:   w.mirror(ctx, "thumbnails", clip.ID, suffix, ".jpg", outputPath),
		Style: style,
	}, nil
}

// thumbnailContext loads the clip, its video and its time range
func (w *Worker) thumbnailContext(ctx context.Context, job *models.Job) (*models.Clip, *models.Video, float64, float64, error) {
	clip, err := w.repo.GetClip(ctx, job.ClipID)
	if err != nil {
		return nil, nil, 0, 0, fmt.Errorf("failed to load clip: %w", err)
	}
	video, err := w.repo.GetVideo(ctx, clip.VideoID)
	if err != nil {
		return nil, nil, 0, 0, fmt.Errorf("failed to load video: %w", err)
	}

	job.SegmentID = firstNonEmpty(job.SegmentID, clip.SegmentID)
	start, end, err := w.clipRange(ctx, job)
	if err != nil {
		return nil, nil, 0, 0, err
	}
	return clip, video, start, end, nil
}

// handleThumbnail composes the clip's single primary thumbnail
func (w *Worker) handleThumbnail(ctx context.Context, job *models.Job) error {
	clip, video, start, end, err := w.thumbnailContext(ctx, job)
	if err != nil {
		return err
	}

	title := firstNonEmpty(job.Title, clip.Title, video.Title)
	variant, err := w.composeThumbnail(ctx, clip, video, start, end, "main", "", title)
	if err != nil {
		return err
	}

	clip.Thumbnails = clip.Thumbnails.Upsert(variant)
	if err := w.repo.UpdateClipThumbnails(ctx, clip.ID, clip.Thumbnails, variant.URL); err != nil {
		return err
	}

	metrics.ThumbnailsGeneratedTotal.WithLabelValues("single").Inc()
	return nil
}

// handleThumbnailsAB composes the two competing variants. Upserting by
// key keeps a redelivered job from duplicating variants.
func (w *Worker) handleThumbnailsAB(ctx context.Context, job *models.Job) error {
	clip, video, start, end, err := w.thumbnailContext(ctx, job)
	if err != nil {
		return err
	}

	titleA := firstNonEmpty(job.TitleA, clip.Title, video.Title)
	titleB := firstNonEmpty(job.TitleB, titleA)

	for _, v := range []struct {
		key   string
		title string
	}{
		{string(models.VariantA), titleA},
		{string(models.VariantB), titleB},
	} {
		variant, err := w.composeThumbnail(ctx, clip, video, start, end, v.key, "", v.title)
		if err != nil {
			return err
		}
		clip.Thumbnails = clip.Thumbnails.Upsert(variant)
	}

	thumbnailURL := clip.ThumbnailURL
	if a, ok := clip.Thumbnails.Get(string(models.VariantA)); ok && thumbnailURL == "" {
		thumbnailURL = a.URL
	}
	if err := w.repo.UpdateClipThumbnails(ctx, clip.ID, clip.Thumbnails, thumbnailURL); err != nil {
		return err
	}

	metrics.ThumbnailsGeneratedTotal.WithLabelValues("ab").Inc()
	return nil
}

// handleThumbnailStyles composes the four style pack variants
func (w *Worker) handleThumbnailStyles(ctx context.Context, job *models.Job) error {
	clip, video, start, end, err := w.thumbnailContext(ctx, job)
	if err != nil {
		return err
	}

	title := firstNonEmpty(job.Title, clip.Title, video.Title)
	for _, sv := range render.StyleVariants(title) {
		variant, err := w.composeThumbnail(ctx, clip, video, start, end, sv.Key, sv.Key, sv.Title)
		if err != nil {
			return err
		}
		clip.Thumbnails = clip.Thumbnails.Upsert(variant)
	}

	if err := w.repo.UpdateClipThumbnails(ctx, clip.ID, clip.Thumbnails, clip.ThumbnailURL); err != nil {
		return err
	}

	metrics.ThumbnailsGeneratedTotal.WithLabelValues("style").Inc()
	return nil
}

// handleThumbSet promotes an already generated variant to be the
// clip's live thumbnail.
func (w *Worker) handleThumbSet(ctx context.Context, job *models.Job) error {
	clip, err := w.repo.GetClip(ctx, job.ClipID)
	if err != nil {
		return fmt.Errorf("failed to load clip: %w", err)
	}

	key := firstNonEmpty(job.StyleKey, string(job.Variant))
	variant, ok := clip.Thumbnails.Get(key)
	if !ok {
		return fmt.Errorf("clip has no thumbnail variant %q", key)
	}

	if err := w.repo.UpdateClipThumbnails(ctx, clip.ID, clip.Thumbnails, variant.URL); err != nil {
		return err
	}

	if w.publisher != nil {
		if err := w.publisher.SetThumbnail(ctx, clip.ID, models.Variant(key), variant.Path); err != nil {
			w.logger.WithClipID(clip.ID).WithError(err).Warn("Failed to publish thumbnail")
		}
	}
	return nil
}

// handleAutoRender queues render jobs for the top scored segments of a
// video. Segments that already have clips are skipped so re-running
// does not duplicate work.
func (w *Worker) handleAutoRender(ctx context.Context, job *models.Job) error {
	video, err := w.repo.GetVideo(ctx, job.VideoID)
	if err != nil {
		return fmt.Errorf("failed to load video: %w", err)
	}

	segments, err := w.repo.ListSegmentsByVideo(ctx, job.VideoID)
	if err != nil {
		return err
	}

	existing, err := w.repo.ListClipsByVideo(ctx, job.VideoID)
	if err != nil {
		return err
	}
	clipped := make(map[string]bool, len(existing))
	for _, c := range existing {
		if c.SegmentID != "" {
			clipped[c.SegmentID] = true
		}
	}

	topK := job.TopK
	if topK <= 0 {
		topK = w.cfg.Schedule.AutoRenderTopK
	}

	queued := 0
	for _, segment := range segments {
		if queued >= topK {
			break
		}
		if clipped[segment.ID] {
			continue
		}

		clip := &models.Clip{
			VideoID:     video.ID,
			SegmentID:   segment.ID,
			AspectRatio: models.AspectVertical,
			Title:       video.Title,
		}
		if err := w.repo.CreateClip(ctx, clip); err != nil {
			return err
		}

		err := w.enqueue(ctx, &models.Job{
			Type:      models.JobRender,
			ClipID:    clip.ID,
			SegmentID: segment.ID,
			Start:     segment.Start,
			End:       segment.End,
		})
		if err != nil {
			return err
		}
		queued++
	}

	w.logger.WithVideoID(video.ID).WithField("queued", queued).Info("Auto-render queued")
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

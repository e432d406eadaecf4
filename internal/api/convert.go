// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/vid2gif/internal/artifact"
	"github.com/ManuGH/vid2gif/internal/config"
	"github.com/ManuGH/vid2gif/internal/log"
	"github.com/ManuGH/vid2gif/internal/sizefit"
	"github.com/ManuGH/vid2gif/internal/telemetry"
)

const (
	// multipartSlack covers boundaries and part headers around the file.
	multipartSlack = 64 << 10
	formFileField  = "file"
)

// Response headers describing the accepted rendition.
const (
	HeaderFPS      = "X-Vid2gif-Fps"
	HeaderWidth    = "X-Vid2gif-Width"
	HeaderAttempts = "X-Vid2gif-Attempts"
)

var (
	errUploadTooLarge = errors.New("upload exceeds the input limit")
	errEmptyUpload    = errors.New("upload is empty")
	errNoFilePart     = errors.New("multipart body has no \"file\" part")
	validExt          = regexp.MustCompile(`^\.[A-Za-z0-9]{1,8}$`)
)

// handleConvert accepts a video and answers with the first GIF rendition
// that fits the ceiling.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := log.RequestIDFromContext(ctx)
	logger := log.WithComponentFromContext(ctx, "api")

	ceiling, err := s.ceilingFor(r)
	if err != nil {
		writeProblem(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	scope, err := artifact.NewScope(ctx, s.cfg.WorkDir, reqID)
	if err != nil {
		logger.Error().Err(err).Str(log.FieldEvent, "convert.scope_failed").Msg("cannot prepare work directory")
		writeProblem(w, r, http.StatusInternalServerError, "internal_error", "work directory unavailable")
		return
	}
	defer scope.Close()

	input, n, err := s.receive(w, r, scope)
	switch {
	case errors.Is(err, errUploadTooLarge):
		writeProblem(w, r, http.StatusRequestEntityTooLarge, "input_too_large",
			fmt.Sprintf("input exceeds %s", config.ByteSize(s.cfg.MaxInputBytes)))
		return
	case err != nil:
		logger.Warn().Err(err).Str(log.FieldEvent, "convert.upload_failed").Msg("could not read upload")
		writeProblem(w, r, http.StatusBadRequest, "input_unreadable", "download failed: "+err.Error())
		return
	}
	trace.SpanFromContext(ctx).SetAttributes(telemetry.FitAttributes(reqID, n, ceiling)...)

	if s.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()
	}
	if err := s.slots.Acquire(ctx, 1); err != nil {
		logger.Warn().Err(err).Str(log.FieldEvent, "convert.busy").Msg("gave up waiting for a conversion slot")
		writeProblem(w, r, http.StatusServiceUnavailable, "busy", "all conversion slots are in use")
		return
	}
	defer s.slots.Release(1)

	output := scope.New(artifact.KindOutput, "gif")
	out := s.fitter.Fit(ctx, sizefit.Request{
		ID:           reqID,
		InputPath:    input.Path,
		OutputPath:   output.Path,
		CeilingBytes: ceiling,
	})
	if !out.OK {
		code, kind := outcomeStatus(out)
		logger.Warn().
			Err(out.Err()).
			Str(log.FieldEvent, "convert.failed").
			Str(log.FieldReason, string(out.Reason)).
			Int("attempts", len(out.Attempts)).
			Msg("conversion failed")
		detail := "conversion failed: " + out.Err().Error()
		if out.Reason == sizefit.ReasonOutputUnwritable {
			detail = "conversion failed"
		}
		writeProblem(w, r, code, kind, detail)
		return
	}

	s.stream(w, logger, out, reqID)
}

// ceilingFor resolves the optional ceiling_bytes query against the
// configured ceiling, which it may lower but never raise.
func (s *Server) ceilingFor(r *http.Request) (int64, error) {
	raw := r.URL.Query().Get("ceiling_bytes")
	if raw == "" {
		return s.cfg.CeilingBytes, nil
	}
	v, err := config.ParseByteSize(raw)
	if err != nil {
		return 0, fmt.Errorf("ceiling_bytes: %w", err)
	}
	if v <= 0 || int64(v) > s.cfg.CeilingBytes {
		return 0, fmt.Errorf("ceiling_bytes must be in (0, %d]", s.cfg.CeilingBytes)
	}
	return int64(v), nil
}

// receive stores the upload as an input artifact. The body is either the
// raw video or a multipart form with a "file" field.
func (s *Server) receive(w http.ResponseWriter, r *http.Request, scope *artifact.Scope) (*artifact.Artifact, int64, error) {
	limit := s.cfg.MaxInputBytes
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartSlack)

	src := io.Reader(r.Body)
	name := ""
	if mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type")); err == nil && mt == "multipart/form-data" {
		part, err := filePart(r)
		if err != nil {
			return nil, 0, err
		}
		defer part.Close()
		src, name = part, part.FileName()
	}

	input := scope.New(artifact.KindInput, inputExt(name))
	// #nosec G304 -- path is allocated by the artifact scope
	f, err := os.OpenFile(input.Path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, 0, fmt.Errorf("create input: %w", err)
	}
	n, copyErr := io.Copy(f, io.LimitReader(src, limit+1))
	closeErr := f.Close()
	switch {
	case isTooLarge(copyErr) || n > limit:
		return nil, n, errUploadTooLarge
	case copyErr != nil:
		return nil, n, copyErr
	case closeErr != nil:
		return nil, n, closeErr
	case n == 0:
		return nil, 0, errEmptyUpload
	}
	return input, n, nil
}

func filePart(r *http.Request) (*multipart.Part, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, err
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, errNoFilePart
		}
		if err != nil {
			if isTooLarge(err) {
				return nil, errUploadTooLarge
			}
			return nil, err
		}
		if part.FormName() == formFileField {
			return part, nil
		}
		_ = part.Close()
	}
}

// inputExt keeps a plausible container extension so ffmpeg's probing has a
// hint; anything odd becomes "video".
func inputExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if !validExt.MatchString(ext) {
		return "video"
	}
	return ext
}

func (s *Server) stream(w http.ResponseWriter, logger zerolog.Logger, out sizefit.Outcome, reqID string) {
	// #nosec G304 -- path is produced by the controller inside the work dir
	f, err := os.Open(out.OutputPath)
	if err != nil {
		logger.Error().Err(err).Str(log.FieldEvent, "convert.open_output_failed").Msg("accepted output vanished")
		http.Error(w, "output unavailable", http.StatusInternalServerError)
		return
	}
	defer f.Close()

	h := w.Header()
	h.Set("Content-Type", "image/gif")
	h.Set("Content-Length", strconv.FormatInt(out.SizeBytes, 10))
	h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": "video_" + reqID + ".gif",
	}))
	h.Set(HeaderFPS, strconv.Itoa(out.Entry.FPS))
	h.Set(HeaderWidth, strconv.Itoa(out.Entry.Width))
	h.Set(HeaderAttempts, strconv.Itoa(len(out.Attempts)))
	w.WriteHeader(http.StatusOK)

	n, err := io.Copy(w, f)
	if err != nil {
		logger.Warn().Err(err).Int64("bytes_sent", n).Str(log.FieldEvent, "convert.stream_failed").Msg("client went away during download")
		return
	}
	logger.Info().
		Str(log.FieldEvent, "convert.delivered").
		Int(log.FieldFPS, out.Entry.FPS).
		Int(log.FieldWidth, out.Entry.Width).
		Int64(log.FieldSizeBytes, n).
		Msg("gif delivered")
}

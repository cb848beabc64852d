package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"voicenote/intake"
	"voicenote/session"
)

type statusResponse struct {
	session.Snapshot
	Copied bool `json:"copied"`
}

type transcriptRequest struct {
	Text *string `json:"text" binding:"required"`
}

func (s *Server) fail(c *gin.Context, status int, msg string, err error) {
	if err != nil {
		c.Error(err)
	}
	c.AbortWithStatusJSON(status, gin.H{
		"error":      msg,
		"request_id": c.GetString(requestIDKey),
	})
}

func (s *Server) snapshot() statusResponse {
	return statusResponse{Snapshot: s.ctrl.Snapshot(), Copied: s.editor.Copied()}
}

func (s *Server) status(c *gin.Context) {
	c.JSON(http.StatusOK, s.snapshot())
}

// transcribe accepts a multipart upload in field "file". With ?wait=true
// the response is held until the transcription finishes.
func (s *Server) transcribe(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.config.MaxUploadSize+1<<20)

	fh, err := c.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			s.metrics.Rejected("too_large")
			s.fail(c, http.StatusRequestEntityTooLarge, intake.NoticeTooLarge, err)
			return
		}
		s.fail(c, http.StatusBadRequest, "missing multipart field \"file\"", err)
		return
	}
	mimeType := fh.Header.Get("Content-Type")
	if err := intake.Validate(fh.Filename, mimeType, fh.Size); err != nil {
		s.metrics.Rejected(rejectReason(err))
		s.fail(c, intakeStatus(err), intake.Notice(err), err)
		return
	}

	f, err := fh.Open()
	if err != nil {
		s.fail(c, http.StatusBadRequest, "cannot read upload", err)
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, intake.MaxSize+1))
	if err != nil {
		s.fail(c, http.StatusBadRequest, "cannot read upload", err)
		return
	}

	id, err := s.ctrl.Upload(fh.Filename, mimeType, data)
	switch {
	case err == nil:
	case errors.Is(err, session.ErrBusy), errors.Is(err, session.ErrRecording):
		s.fail(c, http.StatusConflict, err.Error(), err)
		return
	case intake.Notice(err) != "":
		s.fail(c, intakeStatus(err), intake.Notice(err), err)
		return
	default:
		s.fail(c, http.StatusInternalServerError, err.Error(), err)
		return
	}

	if wait, _ := strconv.ParseBool(c.Query("wait")); wait {
		s.ctrl.Wait()
		c.JSON(http.StatusOK, s.snapshot())
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"submission": id, "status": session.Processing.String()})
}

func intakeStatus(err error) int {
	if errors.Is(err, intake.ErrTooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusUnsupportedMediaType
}

func rejectReason(err error) string {
	if errors.Is(err, intake.ErrTooLarge) {
		return "too_large"
	}
	return "unsupported_type"
}

func (s *Server) reset(c *gin.Context) {
	if err := s.ctrl.Reset(); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, session.ErrBusy) {
			status = http.StatusConflict
		}
		s.fail(c, status, err.Error(), err)
		return
	}
	c.JSON(http.StatusOK, s.snapshot())
}

func (s *Server) getTranscript(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"text": s.editor.Text(), "copied": s.editor.Copied()})
}

func (s *Server) putTranscript(c *gin.Context) {
	var req transcriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, http.StatusBadRequest, "body must be {\"text\": \"...\"}", err)
		return
	}
	s.editor.SetText(*req.Text)
	c.JSON(http.StatusOK, gin.H{"text": s.editor.Text()})
}

func (s *Server) download(c *gin.Context) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", s.editor.SaveName()))
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(s.editor.Text()))
}

func (s *Server) copy(c *gin.Context) {
	if err := s.editor.Copy(); err != nil {
		s.fail(c, http.StatusInternalServerError, "clipboard unavailable", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"copied": true})
}

func (s *Server) save(c *gin.Context) {
	path, err := s.editor.Save(s.config.SaveDir)
	if err != nil {
		s.fail(c, http.StatusInternalServerError, "save failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"path": path})
}

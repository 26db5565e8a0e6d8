package sessions

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"certiresume-backend/internal/certificates"
	"certiresume-backend/internal/intake"
	"certiresume-backend/internal/shared/server/middleware"
	"certiresume-backend/internal/shared/server/respond"
	"certiresume-backend/resume/assemble"
	"certiresume-backend/resume/render"
)

type Handler struct {
	Svc        *Service
	Validator  *intake.Validator
	Registry   *certificates.Registry
	Dispatcher Dispatcher

	MaxUploadBytes int64
}

func NewHandler(svc *Service, validator *intake.Validator, registry *certificates.Registry, dispatcher Dispatcher, maxUploadBytes int64) *Handler {
	return &Handler{
		Svc:            svc,
		Validator:      validator,
		Registry:       registry,
		Dispatcher:     dispatcher,
		MaxUploadBytes: maxUploadBytes,
	}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/sessions", h.createSession)
	rg.GET("/sessions/:id", h.getSession)
	rg.POST("/sessions/:id/certificates", h.uploadCertificates)
	rg.GET("/sessions/:id/certificates", h.listCertificates)
	rg.DELETE("/sessions/:id/certificates/:entryId", h.removeCertificate)
	rg.POST("/sessions/:id/assemble", h.assembleDraft)
	rg.PATCH("/sessions/:id/draft", h.patchDraft)
	rg.GET("/sessions/:id/render", h.renderResume)
}

func (h *Handler) createSession(c *gin.Context) {
	session, err := h.Svc.Create(c.Request.Context(), middleware.UserIDFromContext(c))
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "could not create session", nil)
		return
	}
	respond.JSON(c, http.StatusCreated, newSessionResponse(session))
}

func (h *Handler) getSession(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	session, err := h.Svc.GetOwned(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		h.sessionError(c, err)
		return
	}
	entries, err := h.Svc.Entries(c.Request.Context(), userID, session.ID)
	if err != nil {
		h.sessionError(c, err)
		return
	}
	respond.OK(c, gin.H{"session": newSessionResponse(session), "entries": entries})
}

func (h *Handler) uploadCertificates(c *gin.Context) {
	sessionID := c.Param("id")
	if _, err := h.Svc.GetOwned(c.Request.Context(), middleware.UserIDFromContext(c), sessionID); err != nil {
		h.sessionError(c, err)
		return
	}

	// Cap the request well above the per-file limit so intake gets to name
	// an oversize rejection instead of the reader aborting mid-parse.
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes*8+1<<20)
	form, err := c.MultipartForm()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid multipart body", nil)
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		files = form.File["file"]
	}
	if len(files) == 0 {
		respond.Error(c, http.StatusBadRequest, "validation_error", "no file provided", nil)
		return
	}

	// Each file is screened on its own: a rejected file never blocks its
	// siblings, it is just reported back alongside the created entries.
	type upload struct {
		desc intake.Accepted
		file *multipart.FileHeader
	}
	accepted := make([]upload, 0, len(files))
	var rejections []map[string]string
	for _, fh := range files {
		desc, err := h.Validator.Validate(fh.Filename, fh.Header.Get("Content-Type"), fh.Size)
		if err != nil {
			rejections = append(rejections, map[string]string{
				"file":   fh.Filename,
				"reason": intakeCode(err),
			})
			continue
		}
		accepted = append(accepted, upload{desc: desc, file: fh})
	}
	if len(accepted) == 0 {
		respond.Error(c, http.StatusBadRequest, rejections[0]["reason"], "file rejected", rejections)
		return
	}

	entries := make([]certificates.Entry, 0, len(accepted))
	for _, up := range accepted {
		data, err := readUpload(up.file)
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "could not read file", nil)
			return
		}
		entry, err := h.Registry.AddEntry(c.Request.Context(), sessionID, up.desc.FileName, up.desc.MimeType, up.desc.SizeBytes)
		if err != nil {
			respond.Error(c, http.StatusInternalServerError, "internal_error", "could not register entry", nil)
			return
		}
		if err := h.Dispatcher.Dispatch(c.Request.Context(), entry, data); err != nil {
			respond.Error(c, http.StatusInternalServerError, "internal_error", "could not dispatch extraction", nil)
			return
		}
		entries = append(entries, entry)
	}
	payload := gin.H{"entries": entries}
	if len(rejections) > 0 {
		payload["rejections"] = rejections
	}
	respond.JSON(c, http.StatusCreated, payload)
}

func (h *Handler) listCertificates(c *gin.Context) {
	entries, err := h.Svc.Entries(c.Request.Context(), middleware.UserIDFromContext(c), c.Param("id"))
	if err != nil {
		h.sessionError(c, err)
		return
	}
	respond.OK(c, gin.H{"entries": entries})
}

func (h *Handler) removeCertificate(c *gin.Context) {
	sessionID := c.Param("id")
	if _, err := h.Svc.GetOwned(c.Request.Context(), middleware.UserIDFromContext(c), sessionID); err != nil {
		h.sessionError(c, err)
		return
	}

	entryID := c.Param("entryId")
	entry, err := h.Registry.Get(c.Request.Context(), entryID)
	if err != nil || entry.SessionID != sessionID {
		respond.Error(c, http.StatusNotFound, "not_found", "entry not found", nil)
		return
	}

	switch entry.Status {
	case certificates.StatusUploading, certificates.StatusProcessing:
		if err := h.Dispatcher.Cancel(c.Request.Context(), entryID); err != nil {
			respond.Error(c, http.StatusConflict, "InvalidTransition", "entry is not removable", nil)
			return
		}
		respond.JSON(c, http.StatusAccepted, gin.H{"status": string(certificates.StatusCancelling)})
	case certificates.StatusCancelling:
		respond.Error(c, http.StatusConflict, "InvalidTransition", "cancellation already pending", nil)
	default:
		if err := h.Registry.Remove(c.Request.Context(), entryID); err != nil {
			respond.Error(c, http.StatusConflict, "InvalidTransition", "entry is not removable", nil)
			return
		}
		if entry.StorageKey != "" && h.Svc.store != nil {
			_ = h.Svc.store.Delete(c.Request.Context(), entry.StorageKey)
		}
		c.Status(http.StatusNoContent)
	}
}

func (h *Handler) assembleDraft(c *gin.Context) {
	draft, err := h.Svc.Assemble(c.Request.Context(), middleware.UserIDFromContext(c), c.Param("id"))
	if err != nil {
		h.sessionError(c, err)
		return
	}
	respond.OK(c, newDraftResponse(draft))
}

func (h *Handler) patchDraft(c *gin.Context) {
	var edits assemble.Edits
	if err := c.ShouldBindJSON(&edits); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	draft, err := h.Svc.ApplyEdits(c.Request.Context(), middleware.UserIDFromContext(c), c.Param("id"), edits)
	if err != nil {
		h.sessionError(c, err)
		return
	}
	respond.OK(c, newDraftResponse(draft))
}

func (h *Handler) renderResume(c *gin.Context) {
	doc, err := h.Svc.Render(c.Request.Context(), middleware.UserIDFromContext(c), c.Param("id"), c.Query("template"))
	if err != nil {
		if errors.Is(err, render.ErrUnknownTemplate) {
			respond.Error(c, http.StatusNotFound, "UnknownTemplate", "unknown template", nil)
			return
		}
		h.sessionError(c, err)
		return
	}
	respond.OK(c, doc)
}

func (h *Handler) sessionError(c *gin.Context, err error) {
	if errors.Is(err, ErrNotFound) {
		respond.Error(c, http.StatusNotFound, "not_found", "session not found", nil)
		return
	}
	respond.Error(c, http.StatusInternalServerError, "internal_error", "unexpected error", nil)
}

func intakeCode(err error) string {
	switch {
	case errors.Is(err, intake.ErrOversizeFile):
		return "OversizeFile"
	case errors.Is(err, intake.ErrUnsupportedFormat):
		return "UnsupportedFormat"
	default:
		return "validation_error"
	}
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

package gateway

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"chatboard/internal/chat"
	"chatboard/internal/model"
)

const (
	// multipartOverhead is the slack allowed on top of the upload limit for
	// the other form fields and part headers.
	multipartOverhead = 1 << 20
	// multipartMemory is how much of a form is held in memory before parts
	// spill to temporary files.
	multipartMemory = 8 << 20
)

type sendMessageRequest struct {
	RecipientID string            `json:"recipientId"`
	Content     string            `json:"content"`
	Type        model.MessageType `json:"type"`
	File        *model.FileMeta   `json:"file"`
}

// sendMessage accepts JSON or a multipart form carrying the attachment in
// the "file" part.
func (g *Gateway) sendMessage(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		g.sendAttachment(w, r)
		return
	}

	var req sendMessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		g.fail(w, r, err)
		return
	}

	msg, err := g.svc.Conversations.Send(r.Context(), chat.SendInput{
		SenderID:    userID(r),
		RecipientID: req.RecipientID,
		Content:     req.Content,
		Type:        req.Type,
		File:        req.File,
	})
	if err != nil {
		g.fail(w, r, err)
		return
	}
	g.ok(w, http.StatusCreated, "", map[string]any{"message": msg})
}

func (g *Gateway) sendAttachment(w http.ResponseWriter, r *http.Request) {
	if g.opts.MaxUploadSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, g.opts.MaxUploadSize+multipartOverhead)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		g.fail(w, r, uploadError(err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		g.fail(w, r, uploadError(err))
		return
	}
	defer file.Close()

	up := chat.Upload{
		Name:     filepath.Base(header.Filename),
		MimeType: header.Header.Get("Content-Type"),
		Size:     header.Size,
		Body:     file,
	}
	if up.MimeType == "" || up.MimeType == "application/octet-stream" {
		if t := mime.TypeByExtension(filepath.Ext(up.Name)); t != "" {
			up.MimeType = t
		}
	}

	msg, err := g.svc.Conversations.SendAttachment(r.Context(), chat.SendInput{
		SenderID:    userID(r),
		RecipientID: r.FormValue("recipientId"),
		Content:     r.FormValue("content"),
	}, up)
	if err != nil {
		g.fail(w, r, err)
		return
	}
	g.ok(w, http.StatusCreated, "", map[string]any{"message": msg})
}

func (g *Gateway) conversation(w http.ResponseWriter, r *http.Request) {
	msgs, err := g.svc.Conversations.History(r.Context(), userID(r), r.PathValue("userId"))
	if err != nil {
		g.fail(w, r, err)
		return
	}
	g.ok(w, http.StatusOK, "", map[string]any{"messages": orEmpty(msgs)})
}

func (g *Gateway) editMessage(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Content string `json:"content"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		g.fail(w, r, err)
		return
	}

	msg, err := g.svc.Conversations.Edit(r.Context(), r.PathValue("id"), userID(r), body.Content)
	if err != nil {
		g.fail(w, r, err)
		return
	}
	g.ok(w, http.StatusOK, "", map[string]any{"message": msg})
}

func (g *Gateway) deleteMessage(w http.ResponseWriter, r *http.Request) {
	if _, err := g.svc.Conversations.Delete(r.Context(), r.PathValue("id"), userID(r)); err != nil {
		g.fail(w, r, err)
		return
	}
	g.ok(w, http.StatusOK, "Message deleted successfully", nil)
}

func (g *Gateway) markMessageRead(w http.ResponseWriter, r *http.Request) {
	msg, err := g.svc.Conversations.MarkRead(r.Context(), r.PathValue("id"), userID(r))
	if err != nil {
		g.fail(w, r, err)
		return
	}
	g.ok(w, http.StatusOK, "", map[string]any{"message": msg})
}

func uploadError(err error) error {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return fmt.Errorf("%w: upload exceeds %d bytes", chat.ErrValidation, tooLarge.Limit)
	case errors.Is(err, http.ErrMissingFile):
		return fmt.Errorf("%w: file is required", chat.ErrValidation)
	default:
		return fmt.Errorf("%w: malformed multipart body", chat.ErrValidation)
	}
}

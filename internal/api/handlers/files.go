// files.go — обработчики операций над файлами реестра.
package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/uyinene-ledger/registry/internal/api/errors"
	"github.com/uyinene-ledger/registry/internal/api/middleware"
	"github.com/uyinene-ledger/registry/internal/domain/model"
	"github.com/uyinene-ledger/registry/internal/service"
)

// maxUploadSize — предел размера multipart-запроса загрузки (512 MiB).
const maxUploadSize = 512 << 20

// uploadRequest — JSON-тело регистрации уже загруженного содержимого.
type uploadRequest struct {
	ContentID     string `json:"content_id"`
	FileName      string `json:"file_name"`
	IsPrivate     bool   `json:"is_private"`
	FileSize      int64  `json:"file_size"`
	FileType      string `json:"file_type"`
	EncryptionKey string `json:"encryption_key"`
}

// idListResponse — ответ списочных запросов по id.
type idListResponse struct {
	FileIDs []int64 `json:"file_ids"`
	Total   int     `json:"total"`
}

// fileListResponse — ответ списочных запросов с полными записями.
type fileListResponse struct {
	Files []*model.FileRecord `json:"files"`
	Total int                 `json:"total"`
}

// accessLogResponse — ответ запроса журнала доступа.
type accessLogResponse struct {
	FileID  int64                  `json:"file_id"`
	Entries []*model.AccessLogEntry `json:"entries"`
	Total   int                    `json:"total"`
}

// UploadFile — POST /api/v1/files.
// Два режима по Content-Type:
//   - multipart/form-data: содержимое загружается в IPFS, реестр
//     получает CID и размер от узла;
//   - application/json: регистрация уже загруженного содержимого по CID.
func (h *APIHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	caller := middleware.PrincipalFromContext(r.Context())

	var in service.UploadInput
	contentType := r.Header.Get("Content-Type")

	if strings.HasPrefix(contentType, "multipart/form-data") {
		var ok bool
		in, ok = h.uploadMultipart(w, r)
		if !ok {
			return
		}
	} else {
		var req uploadRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apierrors.ValidationError(w, "некорректное тело запроса")
			return
		}
		in = service.UploadInput{
			ContentID:     req.ContentID,
			FileName:      req.FileName,
			IsPrivate:     req.IsPrivate,
			FileSize:      req.FileSize,
			FileType:      req.FileType,
			EncryptionKey: req.EncryptionKey,
		}
	}

	f, err := h.registry.Upload(r.Context(), caller, in)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, f)
}

// uploadMultipart разбирает multipart-запрос и загружает содержимое в IPFS.
// При ошибке пишет ответ и возвращает ok=false.
func (h *APIHandler) uploadMultipart(w http.ResponseWriter, r *http.Request) (service.UploadInput, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		apierrors.ValidationError(w, "некорректный multipart-запрос")
		return service.UploadInput{}, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		apierrors.ValidationError(w, "отсутствует поле file")
		return service.UploadInput{}, false
	}
	defer file.Close()

	cid, size, err := h.storage.Add(r.Context(), header.Filename, file)
	if err != nil {
		apierrors.StorageUnavailable(w, "ошибка загрузки содержимого: "+err.Error())
		return service.UploadInput{}, false
	}

	fileType := header.Header.Get("Content-Type")
	if ft := r.FormValue("file_type"); ft != "" {
		fileType = ft
	}

	return service.UploadInput{
		ContentID:     cid,
		FileName:      header.Filename,
		IsPrivate:     r.FormValue("is_private") == "true",
		FileSize:      size,
		FileType:      fileType,
		EncryptionKey: r.FormValue("encryption_key"),
	}, true
}

// GetFile — GET /api/v1/files/{id}.
// Успешное чтение фиксируется в журнале доступа.
func (h *APIHandler) GetFile(w http.ResponseWriter, r *http.Request) {
	id, ok := fileIDParam(w, r)
	if !ok {
		return
	}
	caller := middleware.PrincipalFromContext(r.Context())

	f, err := h.registry.Get(r.Context(), caller, id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, f)
}

// DownloadFile — GET /api/v1/files/{id}/content.
// Проверяет доступ как обычное чтение и стримит содержимое из IPFS.
func (h *APIHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	id, ok := fileIDParam(w, r)
	if !ok {
		return
	}
	caller := middleware.PrincipalFromContext(r.Context())

	f, err := h.registry.Get(r.Context(), caller, id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	rc, err := h.storage.Cat(r.Context(), f.ContentID)
	if err != nil {
		apierrors.StorageUnavailable(w, "ошибка чтения содержимого: "+err.Error())
		return
	}
	defer rc.Close()

	if f.FileType != "" {
		w.Header().Set("Content-Type", f.FileType)
	} else {
		w.Header().Set("Content-Type", "application/octet-stream")
	}
	w.Header().Set("Content-Disposition", `attachment; filename="`+f.FileName+`"`)
	_, _ = io.Copy(w, rc)
}

// shareRequest — тело запроса шаринга.
type shareRequest struct {
	Recipient string `json:"recipient"`
}

// ShareFile — POST /api/v1/files/{id}/share.
func (h *APIHandler) ShareFile(w http.ResponseWriter, r *http.Request) {
	id, ok := fileIDParam(w, r)
	if !ok {
		return
	}
	caller := middleware.PrincipalFromContext(r.Context())

	var req shareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "некорректное тело запроса")
		return
	}

	if err := h.registry.Share(r.Context(), caller, id, req.Recipient); err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"file_id":   id,
		"recipient": req.Recipient,
	})
}

// DeleteFile — DELETE /api/v1/files/{id}.
// Логическое удаление: запись остаётся в реестре как tombstone.
func (h *APIHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	id, ok := fileIDParam(w, r)
	if !ok {
		return
	}
	caller := middleware.PrincipalFromContext(r.Context())

	if err := h.registry.Delete(r.Context(), caller, id); err != nil {
		h.writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListMyFiles — GET /api/v1/files/my.
func (h *APIHandler) ListMyFiles(w http.ResponseWriter, r *http.Request) {
	caller := middleware.PrincipalFromContext(r.Context())

	ids, err := h.registry.UserFiles(r.Context(), caller)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, idListResponse{FileIDs: ids, Total: len(ids)})
}

// ListSharedWithMe — GET /api/v1/files/shared-with-me.
func (h *APIHandler) ListSharedWithMe(w http.ResponseWriter, r *http.Request) {
	caller := middleware.PrincipalFromContext(r.Context())

	ids, err := h.registry.SharedFiles(r.Context(), caller)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, idListResponse{FileIDs: ids, Total: len(ids)})
}

// ListUserFiles — GET /api/v1/files/user/{principal}.
// Список id файлов указанного владельца, доступен любому
// аутентифицированному пользователю.
func (h *APIHandler) ListUserFiles(w http.ResponseWriter, r *http.Request) {
	principal := chi.URLParam(r, "principal")

	ids, err := h.registry.UserFiles(r.Context(), principal)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, idListResponse{FileIDs: ids, Total: len(ids)})
}

// ListSharedWith — GET /api/v1/files/shared-with/{principal}.
func (h *APIHandler) ListSharedWith(w http.ResponseWriter, r *http.Request) {
	principal := chi.URLParam(r, "principal")

	ids, err := h.registry.SharedFiles(r.Context(), principal)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, idListResponse{FileIDs: ids, Total: len(ids)})
}

// ListSharedBy — GET /api/v1/files/shared-by/{principal}.
// Файлы, которыми principal поделился, со списками получателей.
func (h *APIHandler) ListSharedBy(w http.ResponseWriter, r *http.Request) {
	principal := chi.URLParam(r, "principal")

	files, err := h.registry.SharedBy(r.Context(), principal)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, fileListResponse{Files: files, Total: len(files)})
}

// ListPublicFiles — GET /api/v1/files/public.
func (h *APIHandler) ListPublicFiles(w http.ResponseWriter, r *http.Request) {
	files, err := h.registry.PublicFiles(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, fileListResponse{Files: files, Total: len(files)})
}

// ListAllFiles — GET /api/v1/files (только привилегированные роли).
func (h *APIHandler) ListAllFiles(w http.ResponseWriter, r *http.Request) {
	caller := middleware.PrincipalFromContext(r.Context())

	files, err := h.registry.AllFiles(r.Context(), caller)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, fileListResponse{Files: files, Total: len(files)})
}

// GetAccessLogs — GET /api/v1/files/{id}/logs (только привилегированные роли).
func (h *APIHandler) GetAccessLogs(w http.ResponseWriter, r *http.Request) {
	id, ok := fileIDParam(w, r)
	if !ok {
		return
	}
	caller := middleware.PrincipalFromContext(r.Context())

	entries, err := h.registry.AccessLogs(r.Context(), caller, id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, accessLogResponse{
		FileID:  id,
		Entries: entries,
		Total:   len(entries),
	})
}

// fileIDParam извлекает и валидирует {id} из пути.
// При ошибке пишет 400 и возвращает ok=false.
func fileIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		apierrors.ValidationError(w, "некорректный идентификатор файла")
		return 0, false
	}
	return id, true
}

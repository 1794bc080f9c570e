package handlers

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"os"

	"suggesterr/services/backup"
)

// BackupHandler serves the master-only backup management endpoints.
type BackupHandler struct {
	backup *backup.Service
}

// NewBackupHandler creates a new backup handler.
func NewBackupHandler(backupSvc *backup.Service) *BackupHandler {
	return &BackupHandler{backup: backupSvc}
}

// List serves GET /api/backups/.
func (h *BackupHandler) List(w http.ResponseWriter, r *http.Request) {
	backups, err := h.backup.ListBackups()
	if err != nil {
		log.Printf("[handlers] list backups: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list backups")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"backups": backups})
}

// Create serves POST /api/backups/.
func (h *BackupHandler) Create(w http.ResponseWriter, r *http.Request) {
	info, err := h.backup.CreateBackup(backup.BackupTypeManual)
	if err != nil {
		log.Printf("[handlers] create backup: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create backup")
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

// Delete serves DELETE /api/backups/{filename}/.
func (h *BackupHandler) Delete(w http.ResponseWriter, r *http.Request) {
	filename := muxVar(r, "filename")

	if err := h.backup.DeleteBackup(filename); err != nil {
		if os.IsNotExist(err) {
			writeError(w, http.StatusNotFound, "backup not found")
			return
		}
		log.Printf("[handlers] delete backup %s: %v", filename, err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// Download serves GET /api/backups/{filename}/download/.
func (h *BackupHandler) Download(w http.ResponseWriter, r *http.Request) {
	filename := muxVar(r, "filename")

	reader, size, err := h.backup.GetBackupReader(filename)
	if err != nil {
		if os.IsNotExist(err) {
			writeError(w, http.StatusNotFound, "backup not found")
			return
		}
		log.Printf("[handlers] download backup %s: %v", filename, err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Length", fmt.Sprintf("%d", size))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if _, err := io.Copy(w, reader); err != nil {
		log.Printf("[handlers] stream backup %s: %v", filename, err)
	}
}

// Restore serves POST /api/backups/{filename}/restore/. A pre-restore backup
// is taken automatically before any file is replaced.
func (h *BackupHandler) Restore(w http.ResponseWriter, r *http.Request) {
	filename := muxVar(r, "filename")

	if err := h.backup.RestoreBackup(filename); err != nil {
		if os.IsNotExist(err) {
			writeError(w, http.StatusNotFound, "backup not found")
			return
		}
		log.Printf("[handlers] restore backup %s: %v", filename, err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "restored",
		"message": "restart the server to pick up the restored data files",
	})
}

// Cleanup serves POST /api/backups/cleanup/.
func (h *BackupHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	cleaned, err := h.backup.CleanupOldBackups()
	if err != nil {
		log.Printf("[handlers] cleanup backups: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to clean up backups")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cleaned": cleaned})
}

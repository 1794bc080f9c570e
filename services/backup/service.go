package backup

import (
	"archive/zip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"suggesterr/config"
)

// BackupType indicates how the backup was created
type BackupType string

const (
	BackupTypeManual     BackupType = "manual"
	BackupTypeScheduled  BackupType = "scheduled"
	BackupTypePreRestore BackupType = "pre_restore"
)

const backupPrefix = "suggesterr_backup_"

// BackupInfo contains metadata about a backup file
type BackupInfo struct {
	Filename  string     `json:"filename"`
	Size      int64      `json:"size"`
	CreatedAt time.Time  `json:"createdAt"`
	Type      BackupType `json:"type"`
	Version   string     `json:"version,omitempty"`
}

// Manifest contains metadata about the backup contents
type Manifest struct {
	Version     string            `json:"version"`
	CreatedAt   time.Time         `json:"createdAt"`
	Type        BackupType        `json:"type"`
	Files       map[string]string `json:"files"` // filename -> sha256 checksum
	Description string            `json:"description,omitempty"`
}

// Service handles backup creation, management, and restoration of the
// application's data files.
type Service struct {
	mu            sync.RWMutex
	backupDir     string
	dataDir       string
	configManager *config.Manager
}

// Files to backup (relative to dataDir)
var backupFiles = []string{
	"settings.json",
	"accounts.json",
	"sessions.json",
	"families.json",
	"suggesterr.db",
}

// NewService creates a new backup service storing archives under
// dataDir/backups.
func NewService(dataDir string, configManager *config.Manager) (*Service, error) {
	backupDir := filepath.Join(dataDir, "backups")
	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		return nil, fmt.Errorf("create backup directory: %w", err)
	}

	return &Service{
		backupDir:     backupDir,
		dataDir:       dataDir,
		configManager: configManager,
	}, nil
}

// CreateBackup creates a new backup archive containing all known data files.
func (s *Service) CreateBackup(backupType BackupType) (*BackupInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.createBackupLocked(backupType)
}

func (s *Service) createBackupLocked(backupType BackupType) (*BackupInfo, error) {
	timestamp := time.Now().UTC().Format("20060102-150405")
	filename := fmt.Sprintf("%s%s.zip", backupPrefix, timestamp)
	backupPath := filepath.Join(s.backupDir, filename)

	// Timestamps are second-granularity; a restore creates its pre-restore
	// backup within the same second as the archive being restored. Never
	// overwrite an existing archive.
	for n := 2; ; n++ {
		if _, err := os.Stat(backupPath); os.IsNotExist(err) {
			break
		}
		filename = fmt.Sprintf("%s%s-%d.zip", backupPrefix, timestamp, n)
		backupPath = filepath.Join(s.backupDir, filename)
	}

	// Write to a temp file first so a failed backup never leaves a
	// half-written archive behind.
	tmpPath := backupPath + ".tmp"
	zipFile, err := os.Create(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("create backup file: %w", err)
	}

	zipWriter := zip.NewWriter(zipFile)

	manifest := Manifest{
		Version:   "1.0",
		CreatedAt: time.Now().UTC(),
		Type:      backupType,
		Files:     make(map[string]string),
	}

	for _, name := range backupFiles {
		srcPath := filepath.Join(s.dataDir, name)

		stat, err := os.Stat(srcPath)
		if os.IsNotExist(err) {
			log.Printf("[backup] Skipping %s (not found)", name)
			continue
		}
		if err != nil {
			log.Printf("[backup] Error checking %s: %v", name, err)
			continue
		}
		if stat.IsDir() {
			continue
		}

		checksum, err := addFileToZip(zipWriter, srcPath, name)
		if err != nil {
			log.Printf("[backup] Warning: failed to backup %s: %v", name, err)
			continue
		}
		manifest.Files[name] = checksum
		log.Printf("[backup] Added %s", name)
	}

	fail := func(err error) (*BackupInfo, error) {
		zipWriter.Close()
		zipFile.Close()
		os.Remove(tmpPath)
		return nil, err
	}

	manifestJSON, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fail(fmt.Errorf("marshal manifest: %w", err))
	}

	manifestWriter, err := zipWriter.Create("manifest.json")
	if err != nil {
		return fail(fmt.Errorf("create manifest in zip: %w", err))
	}
	if _, err := manifestWriter.Write(manifestJSON); err != nil {
		return fail(fmt.Errorf("write manifest: %w", err))
	}

	if err := zipWriter.Close(); err != nil {
		zipFile.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("close zip writer: %w", err)
	}
	if err := zipFile.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("close zip file: %w", err)
	}

	if err := os.Rename(tmpPath, backupPath); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("finalize backup: %w", err)
	}

	stat, err := os.Stat(backupPath)
	if err != nil {
		return nil, fmt.Errorf("stat backup: %w", err)
	}

	info := &BackupInfo{
		Filename:  filename,
		Size:      stat.Size(),
		CreatedAt: manifest.CreatedAt,
		Type:      backupType,
		Version:   manifest.Version,
	}

	log.Printf("[backup] Created backup: %s (%d bytes, %d files)", filename, info.Size, len(manifest.Files))
	return info, nil
}

// addFileToZip adds a file to the zip archive, returning its sha256 checksum.
func addFileToZip(zipWriter *zip.Writer, srcPath, destName string) (string, error) {
	file, err := os.Open(srcPath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hasher := sha256.New()
	teeReader := io.TeeReader(file, hasher)

	writer, err := zipWriter.Create(destName)
	if err != nil {
		return "", err
	}

	if _, err := io.Copy(writer, teeReader); err != nil {
		return "", err
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// ListBackups returns all available backups sorted by creation time, newest first.
func (s *Service) ListBackups() ([]BackupInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.backupDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []BackupInfo{}, nil
		}
		return nil, fmt.Errorf("read backup directory: %w", err)
	}

	var backups []BackupInfo

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if !strings.HasPrefix(name, backupPrefix) || !strings.HasSuffix(name, ".zip") {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			log.Printf("[backup] Error getting info for %s: %v", name, err)
			continue
		}

		backup := BackupInfo{
			Filename:  name,
			Size:      info.Size(),
			CreatedAt: info.ModTime(),
			Type:      BackupTypeManual,
		}

		// The manifest has the authoritative metadata when readable.
		if manifest, err := s.readManifest(filepath.Join(s.backupDir, name)); err == nil {
			backup.CreatedAt = manifest.CreatedAt
			backup.Type = manifest.Type
			backup.Version = manifest.Version
		}

		backups = append(backups, backup)
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].CreatedAt.After(backups[j].CreatedAt)
	})

	return backups, nil
}

// readManifest reads the manifest from a backup zip file
func (s *Service) readManifest(zipPath string) (*Manifest, error) {
	reader, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	for _, file := range reader.File {
		if file.Name == "manifest.json" {
			rc, err := file.Open()
			if err != nil {
				return nil, err
			}
			defer rc.Close()

			var manifest Manifest
			if err := json.NewDecoder(rc).Decode(&manifest); err != nil {
				return nil, err
			}

			return &manifest, nil
		}
	}

	return nil, errors.New("manifest not found in backup")
}

// validateFilename rejects names that could escape the backup directory or
// that do not look like our archives.
func validateFilename(filename string) error {
	if strings.Contains(filename, "/") || strings.Contains(filename, "\\") || strings.HasPrefix(filename, ".") {
		return errors.New("invalid backup filename")
	}
	if !strings.HasPrefix(filename, backupPrefix) || !strings.HasSuffix(filename, ".zip") {
		return errors.New("invalid backup filename format")
	}
	return nil
}

// DeleteBackup removes a backup file
func (s *Service) DeleteBackup(filename string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.deleteBackupLocked(filename)
}

func (s *Service) deleteBackupLocked(filename string) error {
	if err := validateFilename(filename); err != nil {
		return err
	}

	backupPath := filepath.Join(s.backupDir, filename)

	if _, err := os.Stat(backupPath); os.IsNotExist(err) {
		return errors.New("backup not found")
	}

	if err := os.Remove(backupPath); err != nil {
		return fmt.Errorf("delete backup: %w", err)
	}

	log.Printf("[backup] Deleted backup: %s", filename)
	return nil
}

// RestoreBackup restores data files from a backup archive. A pre-restore
// safety backup of the current data is created first.
func (s *Service) RestoreBackup(filename string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := validateFilename(filename); err != nil {
		return err
	}

	backupPath := filepath.Join(s.backupDir, filename)

	if _, err := os.Stat(backupPath); os.IsNotExist(err) {
		return errors.New("backup not found")
	}

	manifest, err := s.readManifest(backupPath)
	if err != nil {
		return fmt.Errorf("read manifest: %w", err)
	}

	if _, err := s.createBackupLocked(BackupTypePreRestore); err != nil {
		return fmt.Errorf("create pre-restore backup: %w", err)
	}

	log.Printf("[backup] Restoring from backup: %s (created %s)", filename, manifest.CreatedAt.Format(time.RFC3339))

	reader, err := zip.OpenReader(backupPath)
	if err != nil {
		return fmt.Errorf("open backup: %w", err)
	}
	defer reader.Close()

	restoredCount := 0
	for _, file := range reader.File {
		if file.Name == "manifest.json" {
			continue
		}

		// Only restore files the manifest vouches for
		expectedChecksum, ok := manifest.Files[file.Name]
		if !ok {
			log.Printf("[backup] Skipping unknown file in backup: %s", file.Name)
			continue
		}

		destPath := filepath.Join(s.dataDir, file.Name)

		if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
			return fmt.Errorf("create directory for %s: %w", file.Name, err)
		}

		tmpPath := destPath + ".restore.tmp"
		checksum, err := extractFile(file, tmpPath)
		if err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("extract %s: %w", file.Name, err)
		}

		if checksum != expectedChecksum {
			os.Remove(tmpPath)
			return fmt.Errorf("checksum mismatch for %s", file.Name)
		}

		if err := os.Rename(tmpPath, destPath); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("finalize %s: %w", file.Name, err)
		}

		restoredCount++
		log.Printf("[backup] Restored %s", file.Name)
	}

	log.Printf("[backup] Restore completed: %d files restored from %s", restoredCount, filename)
	return nil
}

// extractFile extracts a file from the zip archive to destPath, returning
// the sha256 checksum of the written bytes.
func extractFile(file *zip.File, destPath string) (string, error) {
	rc, err := file.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	outFile, err := os.Create(destPath)
	if err != nil {
		return "", err
	}
	defer outFile.Close()

	hasher := sha256.New()
	writer := io.MultiWriter(outFile, hasher)

	if _, err := io.Copy(writer, rc); err != nil {
		return "", err
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// GetBackupReader returns a reader for downloading a backup file
func (s *Service) GetBackupReader(filename string) (io.ReadCloser, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := validateFilename(filename); err != nil {
		return nil, 0, err
	}

	backupPath := filepath.Join(s.backupDir, filename)

	file, err := os.Open(backupPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, errors.New("backup not found")
		}
		return nil, 0, err
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, 0, err
	}

	return file, stat.Size(), nil
}

// CleanupOldBackups removes old backups based on retention settings.
func (s *Service) CleanupOldBackups() (int, error) {
	settings := s.configManager.Get()
	if settings.BackupRetentionDays == 0 && settings.BackupRetentionCount == 0 {
		return 0, nil
	}

	backups, err := s.ListBackups()
	if err != nil {
		return 0, fmt.Errorf("list backups: %w", err)
	}

	toDelete := make(map[string]bool)

	if settings.BackupRetentionDays > 0 {
		cutoff := time.Now().UTC().AddDate(0, 0, -settings.BackupRetentionDays)
		for _, backup := range backups {
			if backup.CreatedAt.Before(cutoff) {
				toDelete[backup.Filename] = true
			}
		}
	}

	// Keep the newest N backups; ListBackups already sorts newest first.
	if settings.BackupRetentionCount > 0 && len(backups) > settings.BackupRetentionCount {
		for i := settings.BackupRetentionCount; i < len(backups); i++ {
			toDelete[backups[i].Filename] = true
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for filename := range toDelete {
		if err := s.deleteBackupLocked(filename); err != nil {
			log.Printf("[backup] Warning: failed to delete old backup %s: %v", filename, err)
			continue
		}
		deleted++
	}

	if deleted > 0 {
		log.Printf("[backup] Cleaned up %d old backups", deleted)
	}

	return deleted, nil
}

// GetBackupDir returns the backup directory path
func (s *Service) GetBackupDir() string {
	return s.backupDir
}

// DriveClaw - WhatsApp Google Drive assistant
// License: MIT

package main

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sipeed/driveclaw/pkg/config"
)

const archivePrefixDriveclaw = "driveclaw/"

type backupOptions struct {
	OutputPath string
}

type restoreOptions struct {
	DryRun bool
	Force  bool
}

type backupEntry struct {
	SourcePath  string
	ArchivePath string
}

func backupCmd() {
	args := os.Args[2:]
	if len(args) == 0 {
		backupCreateCmd(nil)
		return
	}

	switch args[0] {
	case "create":
		backupCreateCmd(args[1:])
	case "list":
		backupListCmd()
	case "restore":
		backupRestoreCmd(args[1:])
	case "help", "--help", "-h":
		backupHelp()
	default:
		fmt.Printf("Unknown backup command: %s\n", args[0])
		backupHelp()
	}
}

func backupHelp() {
	fmt.Println("\nBackup commands:")
	fmt.Println("  create                  Create a backup archive (default)")
	fmt.Println("  list                    Show files that would be backed up")
	fmt.Println("  restore <archive>       Restore from a backup archive")
	fmt.Println()
	fmt.Println("Create options:")
	fmt.Println("  -o, --output <path>     Output tar.gz path")
	fmt.Println()
	fmt.Println("Restore options:")
	fmt.Println("  --dry-run               Print what would be restored without writing files")
	fmt.Println("  --force                 Overwrite existing files")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  driveclaw backup create")
	fmt.Println("  driveclaw backup create --output ~/Desktop/driveclaw-backup.tar.gz")
	fmt.Println("  driveclaw backup restore ~/.driveclaw/backups/driveclaw-backup-20260101-120000.tar.gz")
	fmt.Println("  driveclaw backup restore backup.tar.gz --dry-run")
}

func backupCreateCmd(args []string) {
	opts, showHelp, err := parseBackupOptions(args)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		backupHelp()
		return
	}
	if showHelp {
		backupHelp()
		return
	}

	entries := collectBackupEntries()
	if len(entries) == 0 {
		fmt.Println("No backup targets found. Run the gateway once to create them, then try again.")
		return
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fmt.Printf("Error resolving home directory: %v\n", err)
		os.Exit(1)
	}

	if opts.OutputPath == "" {
		opts.OutputPath = defaultBackupPath()
	}
	opts.OutputPath = expandHomePath(opts.OutputPath, homeDir)

	if err := os.MkdirAll(filepath.Dir(opts.OutputPath), 0755); err != nil {
		fmt.Printf("Error creating backup directory: %v\n", err)
		os.Exit(1)
	}

	if err := createBackupArchive(opts.OutputPath, entries); err != nil {
		fmt.Printf("Error creating backup archive: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Backup created: %s\n", opts.OutputPath)
	fmt.Printf("  Included %d path(s)\n", len(entries))
}

func backupListCmd() {
	entries := collectBackupEntries()
	if len(entries) == 0 {
		fmt.Println("No backup targets found.")
		return
	}

	fmt.Println("\nBackup targets:")
	fmt.Println("---------------")
	for _, entry := range entries {
		fmt.Printf("  %s -> %s\n", entry.SourcePath, entry.ArchivePath)
	}
}

func backupRestoreCmd(args []string) {
	opts, archivePath, showHelp, err := parseRestoreOptions(args)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		backupHelp()
		return
	}
	if showHelp {
		backupHelp()
		return
	}
	if archivePath == "" {
		fmt.Println("Error: restore requires an archive path")
		fmt.Println("Usage: driveclaw backup restore <archive> [options]")
		os.Exit(1)
	}

	if err := extractBackupArchive(archivePath, config.ConfigDir(), opts); err != nil {
		fmt.Printf("Error restoring backup: %v\n", err)
		os.Exit(1)
	}

	if opts.DryRun {
		fmt.Println("Dry run complete. No files were written.")
	} else {
		fmt.Println("Restore complete.")
	}
}

func parseBackupOptions(args []string) (backupOptions, bool, error) {
	opts := backupOptions{}
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-o", "--output":
			if i+1 >= len(args) {
				return opts, false, fmt.Errorf("%s requires a value", args[i])
			}
			opts.OutputPath = args[i+1]
			i++
		case "help", "--help", "-h":
			return opts, true, nil
		default:
			return opts, false, fmt.Errorf("unknown option: %s", args[i])
		}
	}
	return opts, false, nil
}

func parseRestoreOptions(args []string) (restoreOptions, string, bool, error) {
	opts := restoreOptions{}
	var archivePath string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--dry-run":
			opts.DryRun = true
		case "--force":
			opts.Force = true
		case "help", "--help", "-h":
			return opts, "", true, nil
		default:
			if strings.HasPrefix(args[i], "-") {
				return opts, "", false, fmt.Errorf("unknown option: %s", args[i])
			}
			if archivePath == "" {
				archivePath = args[i]
			}
		}
	}
	return opts, archivePath, false, nil
}

func defaultBackupPath() string {
	timestamp := time.Now().UTC().Format("20060102-150405")
	return filepath.Join(config.ConfigDir(), "backups", fmt.Sprintf("driveclaw-backup-%s.tar.gz", timestamp))
}

func expandHomePath(path string, homeDir string) string {
	if path == "~" {
		return homeDir
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir, path[2:])
	}
	return path
}

// collectBackupEntries gathers the config file, the WhatsApp pairing
// database and the audit log. Paths configured outside the config dir
// are archived under their base name and restored into the config dir.
func collectBackupEntries() []backupEntry {
	candidates := []string{config.ConfigPath()}

	if cfg, err := config.LoadConfig(config.ConfigPath()); err == nil {
		if p := config.ExpandHome(cfg.Channels.WhatsApp.DBPath); p != "" {
			candidates = append(candidates, p, p+"-wal", p+"-shm")
		}
		if p := config.ExpandHome(cfg.Audit.LogFilePath); p != "" {
			candidates = append(candidates, p)
		}
	}

	existing := make([]backupEntry, 0, len(candidates))
	for _, source := range candidates {
		if info, err := os.Stat(source); err != nil || info.IsDir() {
			continue
		}
		existing = append(existing, backupEntry{
			SourcePath:  source,
			ArchivePath: archivePrefixDriveclaw + filepath.Base(source),
		})
	}
	return existing
}

func createBackupArchive(outputPath string, entries []backupEntry) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	defer file.Close()

	gzw := gzip.NewWriter(file)
	defer gzw.Close()

	tw := tar.NewWriter(gzw)
	defer tw.Close()

	for _, entry := range entries {
		if err := addFileToArchive(tw, entry.SourcePath, entry.ArchivePath); err != nil {
			return err
		}
	}

	return nil
}

func addFileToArchive(tw *tar.Writer, sourcePath, archivePath string) error {
	info, err := os.Stat(sourcePath)
	if err != nil {
		return err
	}

	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	header.Name = archivePath

	if err := tw.WriteHeader(header); err != nil {
		return err
	}

	file, err := os.Open(sourcePath)
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = io.Copy(tw, file)
	return err
}

func extractBackupArchive(archivePath, baseDir string, opts restoreOptions) error {
	home, _ := os.UserHomeDir()
	archivePath = expandHomePath(archivePath, home)

	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()

	gzr, err := gzip.NewReader(f)
	if err != nil {
		return err
	}
	defer gzr.Close()

	tr := tar.NewReader(gzr)
	restored := 0
	skipped := 0

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		name := filepath.ToSlash(hdr.Name)
		if !strings.HasPrefix(name, archivePrefixDriveclaw) {
			continue
		}
		rel := strings.TrimPrefix(name, archivePrefixDriveclaw)
		if rel == "" || strings.Contains(rel, "/") || strings.Contains(rel, "..") {
			continue
		}
		dest := filepath.Join(baseDir, rel)

		if opts.DryRun {
			fmt.Printf("  [file] %s -> %s\n", name, dest)
			restored++
			continue
		}

		if _, err := os.Stat(dest); err == nil && !opts.Force {
			skipped++
			continue
		}

		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			return fmt.Errorf("mkdir %s: %w", filepath.Dir(dest), err)
		}

		mode := hdr.FileInfo().Mode()
		out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
		if err != nil {
			return fmt.Errorf("create %s: %w", dest, err)
		}
		_, err = io.Copy(out, tr)
		out.Close()
		if err != nil {
			return fmt.Errorf("write %s: %w", dest, err)
		}
		restored++
	}

	if !opts.DryRun && skipped > 0 {
		fmt.Printf("  Skipped %d existing path(s) (use --force to overwrite)\n", skipped)
	}
	fmt.Printf("  Restored %d path(s)\n", restored)
	return nil
}

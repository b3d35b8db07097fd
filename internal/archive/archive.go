// Package archive packs a closed engagement into a tar.gz file and
// restores it again.
package archive

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/HerbHall/netscope/internal/store"
)

// DatabaseEntry is the archive name of the database copy.
const DatabaseEntry = "netscope.db"

// ErrUnsafePath is returned by Restore for entries that would land outside
// the destination directory.
var ErrUnsafePath = errors.New("archive entry escapes destination")

// ErrDestinationExists is returned by Restore when a file would be
// overwritten without force.
var ErrDestinationExists = errors.New("destination file exists")

// Archive writes a tar.gz containing every regular file under dir, stored
// beneath the directory's base name, plus the database at dbPath when it
// exists. The database WAL is checkpointed before copying.
func Archive(ctx context.Context, dir, dbPath, output string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("engagement directory not found: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	outFile, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer outFile.Close()

	gw := gzip.NewWriter(outFile)
	tw := tar.NewWriter(gw)

	base := filepath.Base(filepath.Clean(dir))
	absOut, _ := filepath.Abs(output)
	walkErr := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		// Skip the archive itself when it is written inside dir.
		if abs, _ := filepath.Abs(p); abs == absOut {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		return addFileToTar(tw, p, path.Join(base, filepath.ToSlash(rel)))
	})
	if walkErr != nil {
		return fmt.Errorf("adding engagement files to archive: %w", walkErr)
	}

	if dbPath != "" {
		if _, err := os.Stat(dbPath); err == nil {
			// Checkpoint WAL to flush pending writes.
			if err := checkpointWAL(ctx, dbPath); err != nil {
				return fmt.Errorf("WAL checkpoint failed: %w", err)
			}
			if err := addFileToTar(tw, dbPath, DatabaseEntry); err != nil {
				return fmt.Errorf("adding database to archive: %w", err)
			}
		}
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("finishing tar stream: %w", err)
	}
	if err := gw.Close(); err != nil {
		return fmt.Errorf("finishing gzip stream: %w", err)
	}
	return outFile.Close()
}

func checkpointWAL(ctx context.Context, dbPath string) error {
	st, err := store.New(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()
	return st.Checkpoint(ctx)
}

// addFileToTar adds a single file to the tar archive under the given name.
func addFileToTar(tw *tar.Writer, filePath, archiveName string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	hdr.Name = archiveName

	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}

	_, err = io.Copy(tw, f)
	return err
}

// Restore extracts an archive written by Archive into dest. Existing files
// are only replaced when force is set; entries with absolute paths or ".."
// components are rejected before anything is written.
func Restore(ctx context.Context, input, dest string, force bool) error {
	entries, err := listEntries(input)
	if err != nil {
		return err
	}
	for _, name := range entries {
		target, err := safeJoin(dest, name)
		if err != nil {
			return err
		}
		if !force {
			if _, err := os.Stat(target); err == nil {
				return fmt.Errorf("%w: %s (use force to overwrite)", ErrDestinationExists, target)
			}
		}
	}

	f, err := os.Open(input)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close()

	gr, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("reading gzip stream: %w", err)
	}
	defer gr.Close()

	tr := tar.NewReader(gr)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading archive: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		target, err := safeJoin(dest, hdr.Name)
		if err != nil {
			return err
		}
		if err := extractFile(tr, target, hdr.FileInfo().Mode().Perm()); err != nil {
			return fmt.Errorf("restoring %s: %w", hdr.Name, err)
		}
	}
}

// listEntries returns the names of the regular files in an archive.
func listEntries(input string) ([]string, error) {
	f, err := os.Open(input)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close()

	gr, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("reading gzip stream: %w", err)
	}
	defer gr.Close()

	var names []string
	tr := tar.NewReader(gr)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return names, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading archive: %w", err)
		}
		if hdr.Typeflag == tar.TypeReg {
			names = append(names, hdr.Name)
		}
	}
}

// safeJoin resolves an archive entry name under dest.
func safeJoin(dest, name string) (string, error) {
	if name == "" || path.IsAbs(name) || filepath.IsAbs(name) || strings.Contains(name, `\`) {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, name)
	}
	clean := path.Clean(name)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, name)
	}
	return filepath.Join(dest, filepath.FromSlash(clean)), nil
}

func extractFile(r io.Reader, target string, perm fs.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return err
	}
	if perm == 0 {
		perm = 0o640
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil { //nolint:gosec // archives are produced by Archive for the operator's own engagements
		out.Close()
		return err
	}
	return out.Close()
}

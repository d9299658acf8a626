package download

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"wadlib/internal/model"
	"wadlib/internal/wad"
)

const zipMagic = "PK\x03\x04"

// CheckMagic verifies the leading bytes of a file against its extension
// family. Extensions outside the known families are accepted as is.
func CheckMagic(path, filename string, head []byte) error {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".wad":
		if wad.KindOf(head) == wad.KindUnknown {
			return &model.IntegrityError{Path: path, Expected: "IWAD or PWAD", Actual: printable(head)}
		}
	case ".pk3", ".pk7", ".zip", ".ipk3":
		if len(head) < len(zipMagic) || string(head[:len(zipMagic)]) != zipMagic {
			return &model.IntegrityError{Path: path, Expected: `PK\x03\x04`, Actual: printable(head)}
		}
	}
	return nil
}

// Validate checks the file at path, which will be committed as filename.
// sum, when set, is the expected lowercase or uppercase hex SHA-256.
func Validate(path, filename, sum string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s for validation: %w", path, err)
	}
	defer f.Close()

	head := make([]byte, 4)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := CheckMagic(path, filename, head[:n]); err != nil {
		return err
	}

	if sum == "" {
		return nil
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewinding %s: %w", path, err)
	}
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return fmt.Errorf("hashing %s: %w", path, err)
	}
	if got := hex.EncodeToString(h.Sum(nil)); !strings.EqualFold(got, sum) {
		return &model.IntegrityError{Path: path, Expected: "sha256 " + strings.ToLower(sum), Actual: got}
	}
	return nil
}

func printable(b []byte) string {
	return strings.ToValidUTF8(string(b), "?")
}

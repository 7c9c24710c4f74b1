package extract

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
)

// OCR recognizes text in documents whose text layer is absent, such as
// scanned PDFs.
type OCR interface {
	Recognize(ctx context.Context, path string) (string, error)
}

// Tesseract runs the tesseract binary as a subprocess.
type Tesseract struct {
	// Binary is the tesseract executable. Default "tesseract".
	Binary string
	// Languages is the tesseract -l argument, e.g. "eng+deu".
	Languages string
}

var _ OCR = (*Tesseract)(nil)

// Recognize runs tesseract on the file and returns the recognized text.
func (t *Tesseract) Recognize(ctx context.Context, path string) (string, error) {
	binary := t.Binary
	if binary == "" {
		binary = "tesseract"
	}

	args := []string{path, "stdout"}
	if t.Languages != "" {
		args = append(args, "-l", t.Languages)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("tesseract: %v: %s", err, stderr.String())
	}
	return stdout.String(), nil
}

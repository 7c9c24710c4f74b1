package extract

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/dslipak/pdf"
)

// pageTimeout bounds text extraction of a single PDF page. Malformed
// pages can send the parser into unbounded work.
const pageTimeout = 10 * time.Second

func readPDFText(path string, logger *slog.Logger) (string, error) {
	f, err := pdf.Open(path)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	numPages := f.NumPage()
	for i := 1; i <= numPages; i++ {
		page := f.Page(i)
		if page.V.IsNull() {
			continue
		}

		content, err := readPageGuarded(page)
		if err != nil {
			// Skip the broken page, keep the rest of the document.
			logger.Warn("skipping unreadable page", "path", path, "page", i, "err", err)
			continue
		}

		sb.WriteString(content)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

// readPageGuarded runs page extraction in a goroutine so a hung parse
// cannot stall the whole run.
func readPageGuarded(page pdf.Page) (string, error) {
	type result struct {
		content string
		err     error
	}
	resChan := make(chan result, 1)

	go func() {
		content, err := page.GetPlainText(nil)
		resChan <- result{content, err}
	}()

	select {
	case r := <-resChan:
		return r.content, r.err
	case <-time.After(pageTimeout):
		return "", errors.New("page extraction timed out")
	}
}

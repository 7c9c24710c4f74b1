// Package extract turns document files into plain text. PDFs are read
// page by page with a per-page timeout guard; office and plaintext
// formats go through a single converter. A PDF that yields no text can
// optionally fall back to OCR.
package extract

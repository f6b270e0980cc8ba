package index

import (
	"crypto/sha256"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/unicode/norm"
)

// Required knowledge base columns.
const (
	ColumnJobDescription = "job_description"
	ColumnQuestions      = "questions"
)

var (
	// ErrKnowledgeBaseNotFound is returned when the knowledge base file does not exist.
	ErrKnowledgeBaseNotFound = errors.New("knowledge base not found")
	// ErrMissingColumns is returned when the header row lacks a required column.
	ErrMissingColumns = errors.New("knowledge base must have 'job_description' and 'questions' columns")
)

// Document is one rendered knowledge base row.
type Document struct {
	// ID is a content hash of Text.
	ID string
	// Text is the job description followed by its questions.
	Text string
	// Source is the original job description.
	Source string
}

// RenderDocument builds the document for a single (job description, questions) row.
func RenderDocument(jobDescription, questions string) Document {
	text := fmt.Sprintf("Job Description: %s\nQuestions: %s",
		jobDescription, strings.Join(strings.Split(questions, ","), ", "))
	return Document{
		ID:     hashText(text),
		Text:   text,
		Source: jobDescription,
	}
}

// LoadKnowledgeBase reads a spreadsheet (.xlsx, .xlsm) or delimited file (.csv, .tsv)
// and renders one Document per row. sheet selects a worksheet by name; empty
// means the first sheet. Rows that render identically are kept once.
func LoadKnowledgeBase(path, sheet string) ([]Document, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w at: %s", ErrKnowledgeBaseNotFound, path)
		}
		return nil, err
	}

	var rows [][]string
	var err error
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".xlsx", ".xlsm":
		rows, err = readSpreadsheet(path, sheet)
	case ".csv":
		rows, err = readDelimited(path, ',')
	case ".tsv":
		rows, err = readDelimited(path, '\t')
	default:
		return nil, fmt.Errorf("unsupported knowledge base format %q", ext)
	}
	if err != nil {
		return nil, err
	}
	return documentsFromRows(rows)
}

func readSpreadsheet(path, sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open spreadsheet: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("spreadsheet %s has no sheets", path)
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return rows, nil
}

func readDelimited(path string, sep rune) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = sep
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var rows [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

// documentsFromRows locates the required columns in the header row and renders the rest.
func documentsFromRows(rows [][]string) ([]Document, error) {
	if len(rows) == 0 {
		return nil, ErrMissingColumns
	}
	descCol, questionsCol := -1, -1
	for i, name := range rows[0] {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))) {
		case ColumnJobDescription:
			descCol = i
		case ColumnQuestions:
			questionsCol = i
		}
	}
	if descCol < 0 || questionsCol < 0 {
		return nil, ErrMissingColumns
	}

	docs := make([]Document, 0, len(rows)-1)
	seen := make(map[string]bool)
	for _, row := range rows[1:] {
		desc := cell(row, descCol)
		questions := cell(row, questionsCol)
		if desc == "" && questions == "" {
			continue
		}
		doc := RenderDocument(desc, questions)
		// Rows rendering to the same text share an ID and collapse to the first,
		// so repeated rows cannot fill several of the top-k slots.
		if seen[doc.ID] {
			continue
		}
		seen[doc.ID] = true
		docs = append(docs, doc)
	}
	return docs, nil
}

// cell returns the normalized value at col, or "" for short rows.
func cell(row []string, col int) string {
	if col >= len(row) {
		return ""
	}
	return NormalizeText(row[col])
}

// NormalizeText applies NFKC normalization and trims surrounding whitespace.
func NormalizeText(s string) string {
	return strings.TrimSpace(norm.NFKC.String(s))
}

func hashText(s string) string {
	h := sha256.Sum256([]byte(s))
	return fmt.Sprintf("%x", h)
}
